// Package announce publishes the discovered server catalog over MQTT so
// other nodes on the network can consume it without polling the HTTP API.
package announce

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/dlnaview/dlnaview/internal/registry"
	"github.com/dlnaview/dlnaview/pkg/api"
)

// Publisher sends MQTT messages. *mqtt.Client satisfies it.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// Config configures the announcer.
type Config struct {
	TopicBase string
	Interval  time.Duration
}

func (c *Config) applyDefaults() {
	if c.TopicBase == "" {
		c.TopicBase = "dlnaview"
	}
	if c.Interval <= 0 {
		c.Interval = 5 * time.Second
	}
}

// Module watches the registry revision and publishes catalog snapshots.
// The snapshot topic is retained, so late subscribers see the current
// catalog immediately.
type Module struct {
	log      *zap.Logger
	registry *registry.Registry
	pub      Publisher
	config   Config

	lastRev   uint64
	published bool
	announced map[string]bool
}

// NewModule creates the announcer.
func NewModule(log *zap.Logger, reg *registry.Registry, pub Publisher, cfg Config) (*Module, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if reg == nil {
		return nil, errors.New("announce: registry required")
	}
	if pub == nil {
		return nil, errors.New("announce: publisher required")
	}
	cfg.applyDefaults()
	return &Module{
		log:       log.Named("announce"),
		registry:  reg,
		pub:       pub,
		config:    cfg,
		announced: make(map[string]bool),
	}, nil
}

// Run publishes an initial snapshot and then republishes whenever the
// registry revision changes, until ctx is done.
func (m *Module) Run(ctx context.Context) error {
	m.publishIfChanged()
	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.publishIfChanged()
		}
	}
}

func (m *Module) publishIfChanged() {
	rev := m.registry.Revision()
	if m.published && rev == m.lastRev {
		return
	}
	servers := m.registry.List()
	if err := m.publishSnapshot(servers); err != nil {
		m.log.Warn("snapshot publish failed", zap.Error(err))
		return
	}
	m.publishAppearances(servers)
	m.lastRev = rev
	m.published = true
}

func (m *Module) publishSnapshot(servers []registry.MediaServer) error {
	out := make([]api.ServerInfo, 0, len(servers))
	for _, server := range servers {
		out = append(out, api.ServerInfo{
			ID:           server.ID,
			FriendlyName: server.FriendlyName,
			USN:          server.USN,
			Location:     server.Location,
			BaseURL:      server.BaseURL,
			ControlURL:   server.ControlURL,
			IconURL:      server.IconURL,
		})
	}
	payload, err := json.Marshal(out)
	if err != nil {
		return err
	}
	return m.pub.Publish(m.config.TopicBase+"/servers", 1, true, payload)
}

type serverEvent struct {
	Event        string `json:"event"`
	ID           string `json:"id"`
	FriendlyName string `json:"friendlyName"`
	TS           int64  `json:"ts"`
}

func (m *Module) publishAppearances(servers []registry.MediaServer) {
	for _, server := range servers {
		if m.announced[server.ID] {
			continue
		}
		payload, err := json.Marshal(serverEvent{
			Event:        "server_appeared",
			ID:           server.ID,
			FriendlyName: server.FriendlyName,
			TS:           time.Now().Unix(),
		})
		if err != nil {
			continue
		}
		if err := m.pub.Publish(m.config.TopicBase+"/events", 1, false, payload); err != nil {
			m.log.Warn("event publish failed", zap.String("server", server.ID), zap.Error(err))
			continue
		}
		m.announced[server.ID] = true
	}
}
