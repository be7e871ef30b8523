// Package dlnaviewd holds the daemon's configuration, logging and module
// supervision plumbing.
package dlnaviewd

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the top-level configuration for dlnaviewd.
type Config struct {
	Server       ServerConfig       `toml:"server"`
	Discovery    DiscoveryConfig    `toml:"discovery"`
	Browse       BrowseConfig       `toml:"browse"`
	MQTT         MQTTConfig         `toml:"mqtt"`
	EmbeddedMQTT EmbeddedMQTTConfig `toml:"embedded_mqtt"`
}

// ServerConfig defines the HTTP front end and logging.
type ServerConfig struct {
	Listen    string `toml:"listen"`
	StaticDir string `toml:"static_dir"`
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
	LogOutput string `toml:"log_output"`
}

// DiscoveryConfig tunes SSDP discovery.
type DiscoveryConfig struct {
	IntervalMS   int64  `toml:"interval_ms"`
	SearchWaitMS int64  `toml:"search_wait_ms"`
	Passive      bool   `toml:"passive"`
	LocalAddr    string `toml:"local_addr"`
}

// BrowseConfig tunes ContentDirectory browsing and the listing cache.
type BrowseConfig struct {
	PageSize      int   `toml:"page_size"`
	TimeoutMS     int64 `toml:"timeout_ms"`
	CacheTTLMS    int64 `toml:"cache_ttl_ms"`
	CacheSize     int   `toml:"cache_size"`
	CacheCompress bool  `toml:"cache_compress"`
}

// MQTTConfig configures catalog announcements to a broker.
type MQTTConfig struct {
	Enabled    bool   `toml:"enabled"`
	Broker     string `toml:"broker"`
	TopicBase  string `toml:"topic_base"`
	ClientID   string `toml:"client_id"`
	User       string `toml:"user"`
	Pass       string `toml:"pass"`
	TLSCA      string `toml:"tls_ca"`
	TLSCert    string `toml:"tls_cert"`
	TLSKey     string `toml:"tls_key"`
	IntervalMS int64  `toml:"interval_ms"`
}

// EmbeddedMQTTConfig configures the in-process broker.
type EmbeddedMQTTConfig struct {
	Enabled        bool   `toml:"enabled"`
	Listen         string `toml:"listen"`
	AllowAnonymous bool   `toml:"allow_anonymous"`
	Username       string `toml:"username"`
	Password       string `toml:"password"`
}

// LoadConfig loads a config file from path.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path required")
	}
	info, err := os.Stat(path)
	if err != nil {
		return Config{}, err
	}
	if info.IsDir() {
		return Config{}, errors.New("config path is a directory")
	}

	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DefaultConfigPath returns the default config location.
func DefaultConfigPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "dlnaview", "dlnaviewd.toml"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "dlnaview", "dlnaviewd.toml"), nil
}
