// Package webapi serves the browse API, the streaming proxy and the static
// UI over a single HTTP listener.
package webapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dlnaview/dlnaview/internal/registry"
	"github.com/dlnaview/dlnaview/internal/upnp"
)

// Config configures the web API module.
type Config struct {
	Listen        string
	StaticDir     string
	BrowseTimeout time.Duration
	CacheTTL      time.Duration
	CacheSize     int
	CacheCompress bool
}

func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = ":8080"
	}
	if c.BrowseTimeout <= 0 {
		c.BrowseTimeout = 30 * time.Second
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 30 * time.Second
	}
}

// Browser issues ContentDirectory browse calls. *upnp.Client satisfies it.
type Browser interface {
	BrowseAll(ctx context.Context, controlURL, objectID string) (upnp.BrowseResult, error)
	Metadata(ctx context.Context, controlURL, objectID string) (string, error)
}

// Module is the HTTP front end.
type Module struct {
	log      *zap.Logger
	registry *registry.Registry
	browser  Browser
	config   Config

	cache    cacheInterface
	cacheCtx context.Context

	// stream deliberately has no timeout: media playback holds the upstream
	// connection open for as long as the client keeps reading.
	stream *http.Client

	mu      sync.Mutex
	server  *http.Server
	ln      net.Listener
	baseURL string
}

// NewModule creates the web API module.
func NewModule(log *zap.Logger, reg *registry.Registry, browser Browser, cfg Config) (*Module, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if reg == nil {
		return nil, errors.New("webapi: registry required")
	}
	if browser == nil {
		return nil, errors.New("webapi: browser required")
	}
	cfg.applyDefaults()
	return &Module{
		log:      log.Named("webapi"),
		registry: reg,
		browser:  browser,
		config:   cfg,
		cache:    newBrowseCache(cfg.CacheSize),
		cacheCtx: context.Background(),
		stream:   &http.Client{},
	}, nil
}

// Run starts the HTTP server and blocks until ctx is done.
func (m *Module) Run(ctx context.Context) error {
	if err := m.startServer(); err != nil {
		return err
	}
	<-ctx.Done()
	m.shutdownServer()
	return nil
}

// BaseURL returns the server's base URL once Run has bound the listener.
func (m *Module) BaseURL() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.baseURL
}

func (m *Module) startServer() error {
	ln, err := net.Listen("tcp", m.config.Listen)
	if err != nil {
		return err
	}
	host, port, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		_ = ln.Close()
		return err
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	server := &http.Server{Handler: m.Handler()}

	m.mu.Lock()
	m.baseURL = fmt.Sprintf("http://%s:%s", host, port)
	m.server = server
	m.ln = ln
	baseURL := m.baseURL
	m.mu.Unlock()

	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.log.Warn("http server stopped", zap.Error(err))
		}
	}()
	m.log.Info("http server started", zap.String("base_url", baseURL))
	return nil
}

func (m *Module) shutdownServer() {
	m.mu.Lock()
	server := m.server
	m.server = nil
	ln := m.ln
	m.ln = nil
	m.mu.Unlock()
	if ln != nil {
		_ = ln.Close()
	}
	if server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = server.Shutdown(ctx)
		cancel()
	}
}

// Handler builds the route table. Exposed so tests can drive the mux without
// binding a listener.
func (m *Module) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/servers", m.handleServers)
	mux.HandleFunc("/api/browse", m.handleBrowse)
	mux.HandleFunc("/proxy", m.handleProxy)
	mux.HandleFunc("/healthz", m.handleHealthz)
	if m.config.StaticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(m.config.StaticDir)))
	}
	return mux
}
