// Package embeddedmqtt runs a small in-process MQTT broker so catalog
// announcements work out of the box without an external broker.
package embeddedmqtt

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	mqtt "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"go.uber.org/zap"
)

// Config configures the embedded broker.
type Config struct {
	Listen         string
	AllowAnonymous bool
	Username       string
	Password       string
}

// Module runs the embedded broker.
type Module struct {
	log    *zap.Logger
	server *mqtt.Server
	config Config
}

// NewModule creates the embedded broker module.
func NewModule(log *zap.Logger, cfg Config) (*Module, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if strings.TrimSpace(cfg.Listen) == "" {
		cfg.Listen = "127.0.0.1:1883"
	}
	server, err := newServer(log, cfg)
	if err != nil {
		return nil, err
	}
	return &Module{log: log, server: server, config: cfg}, nil
}

// Run serves the broker until ctx is done.
func (m *Module) Run(ctx context.Context) error {
	listener := listeners.NewTCP(listeners.Config{ID: "tcp-embedded", Address: m.config.Listen})
	if err := m.server.AddListener(listener); err != nil {
		return err
	}
	go func() {
		_ = m.server.Serve()
	}()
	m.log.Info("embedded mqtt broker started", zap.String("listen", m.config.Listen))

	<-ctx.Done()
	m.server.Close()
	return nil
}

func newServer(log *zap.Logger, cfg Config) (*mqtt.Server, error) {
	server := mqtt.New(&mqtt.Options{
		InlineClient: true,
		Logger:       slog.New(&zapHandler{log: log}),
	})

	switch {
	case cfg.AllowAnonymous:
		if err := server.AddHook(new(auth.AllowHook), nil); err != nil {
			return nil, err
		}
	case cfg.Username != "":
		ledger := &auth.Ledger{
			Auth: auth.AuthRules{{Username: auth.RString(cfg.Username), Password: auth.RString(cfg.Password), Allow: true}},
			ACL:  auth.ACLRules{{Username: auth.RString(cfg.Username), Filters: auth.Filters{auth.RString("#"): auth.ReadWrite}}},
		}
		if err := server.AddHook(new(auth.Hook), &auth.Options{Ledger: ledger}); err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("embedded mqtt requires allow_anonymous or username")
	}
	return server, nil
}

// BrokerURL returns the client URL for the broker's listen address.
func BrokerURL(listen string) string {
	return "mqtt://" + listen
}

// zapHandler bridges mochi's slog logger onto zap.
type zapHandler struct {
	log   *zap.Logger
	attrs []slog.Attr
}

func (h *zapHandler) Enabled(_ context.Context, _ slog.Level) bool { return true }

func (h *zapHandler) Handle(_ context.Context, record slog.Record) error {
	fields := make([]zap.Field, 0, len(h.attrs)+record.NumAttrs())
	for _, attr := range h.attrs {
		fields = append(fields, zap.Any(attr.Key, attr.Value.Any()))
	}
	record.Attrs(func(attr slog.Attr) bool {
		fields = append(fields, zap.Any(attr.Key, attr.Value.Any()))
		return true
	})
	switch {
	case record.Level >= slog.LevelError:
		h.log.Error(record.Message, fields...)
	case record.Level >= slog.LevelWarn:
		h.log.Warn(record.Message, fields...)
	case record.Level >= slog.LevelInfo:
		h.log.Info(record.Message, fields...)
	default:
		h.log.Debug(record.Message, fields...)
	}
	return nil
}

func (h *zapHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	next = append(next, h.attrs...)
	next = append(next, attrs...)
	return &zapHandler{log: h.log, attrs: next}
}

func (h *zapHandler) WithGroup(_ string) slog.Handler { return h }
