// Package config provides configuration management for go-pugblog.
package config

import (
	"fmt"
	"log"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var AppVersion = "-unset-" // will be set at build time

const (
	DefaultListenPort     = 8000
	DefaultDatabaseURL    = "sqlite://data/pugblog.sq3"
	DefaultStaticDir      = "static"
	DefaultSessionTimeout = 14 * 24 * time.Hour // two weeks, like the old session cookie age
)

// MainConfig holds the main configuration for go-pugblog
type MainConfig struct {
	// Web interface settings
	Web WebConfig `yaml:"web"`

	// Database settings
	Database DatabaseConfig `yaml:"database"`

	AppVersion string `yaml:"-"` // Application version, set at build time
}

// WebConfig holds web interface configuration
type WebConfig struct {
	ListenPort       int           `yaml:"listen_port"`
	SSL              bool          `yaml:"ssl"`
	CertFile         string        `yaml:"cert_file,omitempty"`
	KeyFile          string        `yaml:"key_file,omitempty"`
	StaticDir        string        `yaml:"static_dir"`
	Debug            bool          `yaml:"debug"`
	SecretKey        string        `yaml:"secret_key"`
	AllowedHosts     []string      `yaml:"allowed_hosts"`
	TrustedProxies   []string      `yaml:"trusted_proxies"`
	SessionTimeout   time.Duration `yaml:"session_timeout"`
	EnableSetupRoute bool          `yaml:"enable_setup_route"` // temporary seed route, switch off after first deploy
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL          string `yaml:"url"` // sqlite://path, plain path or postgres://...
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
	WALMode      *bool  `yaml:"wal_mode"`
}

// Flags carries command-line overrides; empty values are ignored
type Flags struct {
	DatabaseURL string
	Port        int
	Debug       bool
	StaticDir   string
}

var DefaultAllowedHosts = []string{"127.0.0.1", "localhost"}

var DefaultTrustedProxies = []string{"127.0.0.1", "::1", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"}

// NewDefaultConfig returns a configuration with sensible defaults
func NewDefaultConfig() *MainConfig {
	return &MainConfig{
		AppVersion: AppVersion,
		Web: WebConfig{
			ListenPort:     DefaultListenPort,
			StaticDir:      DefaultStaticDir,
			AllowedHosts:   append([]string(nil), DefaultAllowedHosts...),
			TrustedProxies: append([]string(nil), DefaultTrustedProxies...),
			SessionTimeout: DefaultSessionTimeout,
		},
		Database: DatabaseConfig{
			URL:          DefaultDatabaseURL,
			MaxOpenConns: 25,
			MaxIdleConns: 5,
		},
	}
}

// Load reads a YAML config file on top of the defaults
func Load(path string) (*MainConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := NewDefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.Web.SecretKey = expandEnv(cfg.Web.SecretKey)
	cfg.Web.StaticDir = expandEnv(cfg.Web.StaticDir)
	cfg.Web.CertFile = expandEnv(cfg.Web.CertFile)
	cfg.Web.KeyFile = expandEnv(cfg.Web.KeyFile)
	cfg.Database.URL = expandEnv(cfg.Database.URL)
	for i, host := range cfg.Web.AllowedHosts {
		cfg.Web.AllowedHosts[i] = expandEnv(host)
	}

	return cfg, nil
}

// LoadOrDefault loads path if it exists, otherwise returns the defaults
func LoadOrDefault(path string) (*MainConfig, error) {
	if path == "" {
		return NewDefaultConfig(), nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return NewDefaultConfig(), nil
	}
	return Load(path)
}

// ApplyEnv overrides settings from the process environment
func (c *MainConfig) ApplyEnv() {
	if v := os.Getenv("SECRET_KEY"); v != "" {
		c.Web.SecretKey = v
	}
	if v := os.Getenv("DEBUG"); v != "" {
		c.Web.Debug = parseBool(v)
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.URL = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Web.ListenPort = port
		} else {
			log.Printf("[CONFIG]: ignoring invalid PORT=%q", v)
		}
	}
	if v := os.Getenv("ALLOWED_HOSTS"); v != "" {
		c.Web.AllowedHosts = splitList(v)
	}
	if v := os.Getenv("STATIC_DIR"); v != "" {
		c.Web.StaticDir = v
	}
	if v := os.Getenv("ENABLE_SETUP_ROUTE"); v != "" {
		c.Web.EnableSetupRoute = parseBool(v)
	}
}

// ApplyFlags overrides settings from command-line flags
func (c *MainConfig) ApplyFlags(flags *Flags) {
	if flags == nil {
		return
	}
	if flags.DatabaseURL != "" {
		c.Database.URL = flags.DatabaseURL
	}
	if flags.Port > 0 {
		c.Web.ListenPort = flags.Port
	}
	if flags.Debug {
		c.Web.Debug = true
	}
	if flags.StaticDir != "" {
		c.Web.StaticDir = flags.StaticDir
	}
}

// Validate checks the settings needed to serve requests
func (c *MainConfig) Validate() error {
	if c.Web.ListenPort < 1 || c.Web.ListenPort > 65535 {
		return fmt.Errorf("invalid port number: %d (must be between 1 and 65535)", c.Web.ListenPort)
	}
	if c.Web.SecretKey == "" {
		if !c.Web.Debug {
			return fmt.Errorf("secret_key is required (set in config or SECRET_KEY env) unless debug is enabled")
		}
		c.Web.SecretKey = "insecure-debug-secret-key"
		log.Printf("[CONFIG]: WARNING: no secret key set, using an insecure debug key")
	}
	if c.Web.SSL && (c.Web.CertFile == "" || c.Web.KeyFile == "") {
		return fmt.Errorf("ssl enabled but cert_file or key_file not specified")
	}
	if c.Database.URL == "" {
		return fmt.Errorf("database url is required")
	}
	return nil
}

// GetSessionTimeout returns the sliding session timeout
func (c *WebConfig) GetSessionTimeout() time.Duration {
	if c.SessionTimeout > 0 {
		return c.SessionTimeout
	}
	return DefaultSessionTimeout
}

// GetStaticDir returns the static directory
func (c *WebConfig) GetStaticDir() string {
	if c.StaticDir != "" {
		return c.StaticDir
	}
	return DefaultStaticDir
}

// AllowedHostsWithPort lists every allowed host with and without the listen port,
// since the Host header carries the port when it is not the scheme default.
func (c *WebConfig) AllowedHostsWithPort() []string {
	var out []string
	seen := make(map[string]bool)
	add := func(h string) {
		if h != "" && !seen[h] {
			seen[h] = true
			out = append(out, h)
		}
	}
	for _, host := range c.AllowedHosts {
		host = strings.TrimSpace(host)
		if host == "" || host == "*" {
			continue
		}
		add(host)
		if c.ListenPort > 0 {
			add(net.JoinHostPort(strings.Trim(host, "[]"), strconv.Itoa(c.ListenPort)))
		}
	}
	return out
}

// AllowsAnyHost reports whether the host check is switched off
func (c *WebConfig) AllowsAnyHost() bool {
	for _, host := range c.AllowedHosts {
		if strings.TrimSpace(host) == "*" {
			return true
		}
	}
	return len(c.AllowedHosts) == 0
}

func expandEnv(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		envVar := s[2 : len(s)-1]
		return os.Getenv(envVar)
	}
	return os.ExpandEnv(s)
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
