// Package config handles TOML configuration loading and validation.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	toml "github.com/pelletier/go-toml/v2"
)

// configSearchPaths lists paths checked in order when no explicit config is given.
var configSearchPaths = []string{
	"/etc/fetch-proxy/config.toml",
	"configs/config.toml",
}

// reservedRoutes are served by the proxy itself and cannot host metrics.
var reservedRoutes = []string{"/api/proxy", "/proxy", "/healthz"}

// CLI holds command-line arguments parsed by Kong.
type CLI struct {
	Config      string `kong:"short='c',help='Path to TOML config file.',env='CONFIG_PATH'"`
	Host        string `kong:"help='Listen host (overrides config).',env='HOST'"`
	Port        int    `kong:"short='p',help='Listen port (overrides config).',env='PORT'"`
	LogLevel    string `kong:"help='Log level: debug|info|warn|error (overrides config).',env='LOG_LEVEL'"`
	EgressProxy string `kong:"help='Egress proxy URL, socks5:// or http(s):// (overrides config).',env='EGRESS_PROXY'"`
}

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Forward  ForwardConfig  `toml:"forward"`
	Upstream UpstreamConfig `toml:"upstream"`
	Log      LogConfig      `toml:"log"`
	Metrics  MetricsConfig  `toml:"metrics"`

	filePath string // resolved config file path (unexported)
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host      string          `toml:"host"`
	Port      int             `toml:"port"` // 0 means "use default" (8000); TOML cannot distinguish 0 from unset
	RateLimit RateLimitConfig `toml:"rate_limit"`
}

// RateLimitConfig controls per-IP request rate limiting.
type RateLimitConfig struct {
	Enabled           bool    `toml:"enabled"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// ForwardConfig holds the retry policy of the attempt loop.
type ForwardConfig struct {
	MaxAttempts    int      `toml:"max_attempts"`
	AttemptTimeout Duration `toml:"attempt_timeout"`
	BackoffBase    Duration `toml:"backoff_base"`
	// Deadline is the execution ceiling for one inbound request. The worst
	// case of the policy above must fit under it.
	Deadline Duration `toml:"deadline"`
}

// UpstreamConfig holds outbound connection settings.
type UpstreamConfig struct {
	IdleConnections int    `toml:"idle_connections"`
	MaxBodyBytes    int64  `toml:"max_body_bytes"`
	MaxRedirects    int    `toml:"max_redirects"`
	EgressProxy     string `toml:"egress_proxy"`
	DisableHTTP2    bool   `toml:"disable_http2"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Duration is a time.Duration read from a Go duration string ("6s", "1500ms").
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Load reads the TOML config file and applies CLI overrides.
// When no explicit path is given (via --config or CONFIG_PATH), it searches
// /etc/fetch-proxy/config.toml then configs/config.toml, and falls back to
// built-in defaults if neither exists.
func Load(cli *CLI) (*Config, error) {
	var cfg Config

	path := cli.Config
	if path == "" {
		path = findConfig()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		cfg.filePath = path
	}

	cfg.applyCLI(cli)
	cfg.setDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &cfg, nil
}

// applyCLI overrides config values with non-zero CLI flags.
func (c *Config) applyCLI(cli *CLI) {
	if cli.Host != "" {
		c.Server.Host = cli.Host
	}
	if cli.Port != 0 {
		c.Server.Port = cli.Port
	}
	if cli.LogLevel != "" {
		c.Log.Level = cli.LogLevel
	}
	if cli.EgressProxy != "" {
		c.Upstream.EgressProxy = cli.EgressProxy
	}
}

// setDefaults fills zero-valued fields with sensible defaults.
// For integer fields, zero means "unset" because TOML cannot distinguish
// between an explicit 0 and an omitted key.
func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Forward.MaxAttempts == 0 {
		c.Forward.MaxAttempts = 3
	}
	if c.Forward.AttemptTimeout.Duration == 0 {
		c.Forward.AttemptTimeout.Duration = 6 * time.Second
	}
	if c.Forward.BackoffBase.Duration == 0 {
		c.Forward.BackoffBase.Duration = time.Second
	}
	if c.Forward.Deadline.Duration == 0 {
		c.Forward.Deadline.Duration = 25 * time.Second
	}
	if c.Upstream.IdleConnections == 0 {
		c.Upstream.IdleConnections = 100
	}
	if c.Upstream.MaxBodyBytes == 0 {
		c.Upstream.MaxBodyBytes = 10 * 1024 * 1024 // 10 MB
	}
	if c.Upstream.MaxRedirects == 0 {
		c.Upstream.MaxRedirects = 10
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

func (c *Config) validate() error {
	return validation.Errors{
		"server":   c.Server.validate(),
		"forward":  c.Forward.validate(),
		"upstream": c.Upstream.validate(),
		"log":      c.Log.validate(),
		"metrics":  c.Metrics.validate(),
	}.Filter()
}

func (s ServerConfig) validate() error {
	errs := validation.Errors{
		"port": validation.Validate(s.Port, validation.Min(0), validation.Max(65535)),
	}
	if s.RateLimit.Enabled {
		errs["rate_limit.requests_per_second"] = validation.Validate(s.RateLimit.RequestsPerSecond,
			validation.Min(0.0).Exclusive().Error("must be > 0 when rate limiting is enabled"))
	}
	return errs.Filter()
}

func (f ForwardConfig) validate() error {
	errs := validation.Errors{
		"max_attempts":    validation.Validate(f.MaxAttempts, validation.Min(1), validation.Max(10)),
		"attempt_timeout": validation.Validate(f.AttemptTimeout.Duration, validation.Min(time.Duration(1))),
		"backoff_base":    validation.Validate(f.BackoffBase.Duration, validation.Min(time.Duration(0))),
		"deadline":        validation.Validate(f.Deadline.Duration, validation.Min(time.Duration(1))),
	}
	if err := errs.Filter(); err != nil {
		return err
	}
	if worst := f.WorstCase(); worst > f.Deadline.Duration {
		return fmt.Errorf("worst-case latency %s (max_attempts x attempt_timeout + timeout backoff) exceeds deadline %s",
			worst, f.Deadline.Duration)
	}
	return nil
}

// WorstCase returns the longest the attempt loop can run: every attempt
// times out, and every gap uses the timeout backoff of 2 x base x attempt.
func (f ForwardConfig) WorstCase() time.Duration {
	total := time.Duration(f.MaxAttempts) * f.AttemptTimeout.Duration
	for attempt := 1; attempt < f.MaxAttempts; attempt++ {
		total += 2 * time.Duration(attempt) * f.BackoffBase.Duration
	}
	return total
}

func (u UpstreamConfig) validate() error {
	return validation.Errors{
		"idle_connections": validation.Validate(u.IdleConnections, validation.Min(0)),
		"max_body_bytes":   validation.Validate(u.MaxBodyBytes, validation.Min(int64(0))),
		"max_redirects":    validation.Validate(u.MaxRedirects, validation.Min(0)),
		"egress_proxy":     validation.Validate(u.EgressProxy, validation.By(validateEgressProxy)),
	}.Filter()
}

func validateEgressProxy(value any) error {
	raw, _ := value.(string)
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("not a valid URL: %w", err)
	}
	switch u.Scheme {
	case "socks5", "socks5h", "http", "https":
	default:
		return fmt.Errorf("scheme must be socks5, socks5h, http or https; got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("host is required")
	}
	return nil
}

func (l LogConfig) validate() error {
	return validation.Errors{
		"level": validation.Validate(strings.ToLower(l.Level),
			validation.In("debug", "info", "warn", "error").Error("must be one of: debug, info, warn, error")),
		"format": validation.Validate(strings.ToLower(l.Format),
			validation.In("json", "text").Error("must be one of: json, text")),
	}.Filter()
}

func (m MetricsConfig) validate() error {
	if !m.Enabled {
		return nil
	}
	return validation.Validate(m.Path, validation.By(func(value any) error {
		p, _ := value.(string)
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("path must start with '/'; got %q", p)
		}
		for _, reserved := range reservedRoutes {
			if p == reserved || strings.HasPrefix(p, reserved+"/") {
				return fmt.Errorf("path %q conflicts with reserved route %q", p, reserved)
			}
		}
		return nil
	}))
}

// findConfig returns the first config path that exists, or empty string.
func findConfig() string {
	return findConfigInPaths(configSearchPaths)
}

// findConfigInPaths returns the first path that exists on disk, or empty string.
func findConfigInPaths(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Addr returns the server listen address as host:port.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// WarnPermissions logs a warning if the config file is readable by group or others.
func (c *Config) WarnPermissions(logger *slog.Logger) {
	if c.filePath == "" {
		return
	}
	info, err := os.Stat(c.filePath)
	if err != nil {
		return
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		logger.Warn("config file is readable by group/others; consider chmod 600",
			"path", c.filePath,
			"mode", fmt.Sprintf("%04o", perm),
		)
	}
}
