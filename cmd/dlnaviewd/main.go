package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/dlnaview/dlnaview/internal/adapters/mqtt"
	"github.com/dlnaview/dlnaview/internal/adapters/ssdp"
	"github.com/dlnaview/dlnaview/internal/dlnaviewd"
	"github.com/dlnaview/dlnaview/internal/modules/announce"
	embeddedmqtt "github.com/dlnaview/dlnaview/internal/modules/embedded_mqtt"
	"github.com/dlnaview/dlnaview/internal/modules/webapi"
	"github.com/dlnaview/dlnaview/internal/registry"
	"github.com/dlnaview/dlnaview/internal/upnp"
)

func main() {
	var (
		configPath  string
		listen      string
		staticDir   string
		logLevel    string
		logFormat   string
		logOutput   string
		printConfig bool
		dryRun      bool
	)

	defaultConfig, err := dlnaviewd.DefaultConfigPath()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	flag.StringVar(&configPath, "config", defaultConfig, "config file path")
	flag.StringVar(&listen, "listen", "", "HTTP listen address override")
	flag.StringVar(&staticDir, "static-dir", "", "static UI directory override")
	flag.StringVar(&logLevel, "log-level", "", "log level override")
	flag.StringVar(&logFormat, "log-format", "", "log format override (json|console)")
	flag.StringVar(&logOutput, "log-output", "", "log output override (stdout|stderr|path)")
	flag.BoolVar(&printConfig, "print-config", false, "print resolved config and exit")
	flag.BoolVar(&dryRun, "dry-run", false, "validate config and exit")
	flag.Parse()

	cfg, err := loadConfig(configPath, defaultConfig)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	applyOverrides(&cfg, listen, staticDir, logLevel, logFormat, logOutput)

	if printConfig {
		printResolvedConfig(cfg)
		return
	}
	if dryRun {
		return
	}

	logger, err := dlnaviewd.NewLogger(dlnaviewd.LogConfig{
		Level:  cfg.Server.LogLevel,
		Format: cfg.Server.LogFormat,
		Output: cfg.Server.LogOutput,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info("dlnaviewd starting",
		zap.String("listen", cfg.Server.Listen),
		zap.String("config", configPath),
	)

	modules, err := buildModules(cfg, logger)
	if err != nil {
		logger.Error("failed to build modules", zap.Error(err))
		os.Exit(1)
	}

	supervisor := dlnaviewd.Supervisor{Logger: logger}
	if err := supervisor.Run(ctx, modules); err != nil {
		logger.Error("supervisor error", zap.Error(err))
		os.Exit(1)
	}
}

// loadConfig tolerates a missing file at the default location; everything
// then runs on built-in defaults.
func loadConfig(path, defaultPath string) (dlnaviewd.Config, error) {
	cfg, err := dlnaviewd.LoadConfig(path)
	if err != nil {
		if path == defaultPath && errors.Is(err, os.ErrNotExist) {
			return dlnaviewd.Config{}, nil
		}
		return dlnaviewd.Config{}, err
	}
	return cfg, nil
}

func applyOverrides(cfg *dlnaviewd.Config, listen, staticDir, logLevel, logFormat, logOutput string) {
	if listen != "" {
		cfg.Server.Listen = listen
	}
	if staticDir != "" {
		cfg.Server.StaticDir = staticDir
	}
	if logLevel != "" {
		cfg.Server.LogLevel = logLevel
	}
	if logFormat != "" {
		cfg.Server.LogFormat = logFormat
	}
	if logOutput != "" {
		cfg.Server.LogOutput = logOutput
	}
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = ":8080"
	}
	if cfg.MQTT.Enabled && cfg.MQTT.Broker == "" && cfg.EmbeddedMQTT.Enabled {
		listen := cfg.EmbeddedMQTT.Listen
		if listen == "" {
			listen = "127.0.0.1:1883"
		}
		cfg.MQTT.Broker = embeddedmqtt.BrokerURL(listen)
	}
}

func buildModules(cfg dlnaviewd.Config, logger *zap.Logger) ([]dlnaviewd.ModuleRunner, error) {
	reg := registry.New()

	resolver := upnp.NewResolver(logger, 0)
	searcher := ssdp.NewClient(logger,
		time.Duration(cfg.Discovery.SearchWaitMS)*time.Millisecond,
		cfg.Discovery.LocalAddr,
	)
	runner := registry.NewRunner(logger, reg, searcher, resolver, registry.RunnerConfig{
		Interval: time.Duration(cfg.Discovery.IntervalMS) * time.Millisecond,
	})

	browser := upnp.NewClient(logger,
		time.Duration(cfg.Browse.TimeoutMS)*time.Millisecond,
		cfg.Browse.PageSize,
	)
	web, err := webapi.NewModule(logger, reg, browser, webapi.Config{
		Listen:        cfg.Server.Listen,
		StaticDir:     cfg.Server.StaticDir,
		BrowseTimeout: time.Duration(cfg.Browse.TimeoutMS) * time.Millisecond,
		CacheTTL:      time.Duration(cfg.Browse.CacheTTLMS) * time.Millisecond,
		CacheSize:     cfg.Browse.CacheSize,
		CacheCompress: cfg.Browse.CacheCompress,
	})
	if err != nil {
		return nil, err
	}

	modules := []dlnaviewd.ModuleRunner{
		{Name: "discovery", Run: runner.Run},
		{Name: "webapi", Run: web.Run},
	}

	if cfg.Discovery.Passive {
		modules = append(modules, dlnaviewd.ModuleRunner{
			Name: "ssdp_monitor",
			Run: func(ctx context.Context) error {
				return searcher.Monitor(ctx, func(ann ssdp.Announcement) {
					go runner.HandleAnnouncement(ctx, ann)
				})
			},
		})
	}

	if cfg.EmbeddedMQTT.Enabled {
		broker, err := embeddedmqtt.NewModule(logger.With(zap.String("module", "embedded_mqtt")), embeddedmqtt.Config{
			Listen:         cfg.EmbeddedMQTT.Listen,
			AllowAnonymous: cfg.EmbeddedMQTT.AllowAnonymous,
			Username:       cfg.EmbeddedMQTT.Username,
			Password:       cfg.EmbeddedMQTT.Password,
		})
		if err != nil {
			return nil, err
		}
		modules = append(modules, dlnaviewd.ModuleRunner{Name: "embedded_mqtt", Run: broker.Run})
	}

	if cfg.MQTT.Enabled {
		if cfg.MQTT.Broker == "" {
			return nil, errors.New("mqtt enabled but no broker configured")
		}
		modules = append(modules, dlnaviewd.ModuleRunner{Name: "announce", Run: newAnnouncer(cfg, logger, reg)})
	}

	return modules, nil
}

// newAnnouncer returns a runner that connects to the broker lazily so the
// embedded broker has time to bind its listener first.
func newAnnouncer(cfg dlnaviewd.Config, logger *zap.Logger, reg *registry.Registry) func(context.Context) error {
	clientID := cfg.MQTT.ClientID
	if clientID == "" {
		clientID = fmt.Sprintf("dlnaviewd-%d", time.Now().UnixNano())
	}
	return func(ctx context.Context) error {
		if cfg.EmbeddedMQTT.Enabled {
			listen := cfg.EmbeddedMQTT.Listen
			if listen == "" {
				listen = "127.0.0.1:1883"
			}
			if err := waitForListen(listen, 3*time.Second); err != nil {
				return err
			}
		}
		client, err := mqtt.NewClient(mqtt.Options{
			BrokerURL: cfg.MQTT.Broker,
			ClientID:  clientID,
			Username:  cfg.MQTT.User,
			Password:  cfg.MQTT.Pass,
			TLSCA:     cfg.MQTT.TLSCA,
			TLSCert:   cfg.MQTT.TLSCert,
			TLSKey:    cfg.MQTT.TLSKey,
			Logger:    logger,
		})
		if err != nil {
			return err
		}
		defer client.Close()

		module, err := announce.NewModule(logger, reg, client, announce.Config{
			TopicBase: cfg.MQTT.TopicBase,
			Interval:  time.Duration(cfg.MQTT.IntervalMS) * time.Millisecond,
		})
		if err != nil {
			return err
		}
		return module.Run(ctx)
	}
}

func waitForListen(listen string, timeout time.Duration) error {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return err
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	addr := net.JoinHostPort(host, port)
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 200*time.Millisecond)
		if err == nil {
			_ = conn.Close()
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	return fmt.Errorf("mqtt broker not ready at %s", addr)
}

func printResolvedConfig(cfg dlnaviewd.Config) {
	fmt.Fprintf(os.Stdout,
		"listen=%s static_dir=%s log_level=%s log_format=%s discovery_interval_ms=%d passive=%t mqtt_enabled=%t broker=%s\n",
		cfg.Server.Listen,
		cfg.Server.StaticDir,
		cfg.Server.LogLevel,
		cfg.Server.LogFormat,
		cfg.Discovery.IntervalMS,
		cfg.Discovery.Passive,
		cfg.MQTT.Enabled,
		cfg.MQTT.Broker,
	)
}
