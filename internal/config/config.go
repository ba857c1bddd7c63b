// Package config handles configuration loading from files, defaults, and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/javiermolinar/airtime/internal/command"
	"github.com/javiermolinar/airtime/internal/grid"
	"github.com/javiermolinar/airtime/internal/lifecycle"
	"github.com/javiermolinar/airtime/internal/report"
	"github.com/javiermolinar/airtime/internal/scheduler"
	"github.com/javiermolinar/airtime/internal/slot"
)

// Config holds the application configuration.
type Config struct {
	Grid     GridConfig      `toml:"grid" yaml:"grid"`
	Channels []ChannelConfig `toml:"channels" yaml:"channels"`
	// Groups lists channel names per occupancy report block.
	Groups [][]string `toml:"groups" yaml:"groups"`
	// Colors maps operator tags to color names (red, yellow, pink, cyan).
	Colors  map[string]string `toml:"colors" yaml:"colors"`
	Months  MonthsConfig      `toml:"months" yaml:"months"`
	Store   StoreConfig       `toml:"store" yaml:"store"`
	Session SessionConfig     `toml:"session" yaml:"session"`
	Pacing  PacingConfig      `toml:"pacing" yaml:"pacing"`
	Retry   RetryConfig       `toml:"retry" yaml:"retry"`
	Server  ServerConfig      `toml:"server" yaml:"server"`
	Report  ReportConfig      `toml:"report" yaml:"report"`
	Log     LogConfig         `toml:"log" yaml:"log"`
}

// GridConfig holds the per-channel table geometry.
type GridConfig struct {
	TableWidth   int `toml:"table_width" yaml:"table_width"`
	TableHeight  int `toml:"table_height" yaml:"table_height"`
	HSpacing     int `toml:"hspacing" yaml:"hspacing"`
	VSpacing     int `toml:"vspacing" yaml:"vspacing"`
	TablesPerRow int `toml:"tables_per_row" yaml:"tables_per_row"`
}

// ChannelConfig is one catalogue entry. Order matters: it places the table.
type ChannelConfig struct {
	Name string `toml:"name" yaml:"name"`
	Link string `toml:"link,omitempty" yaml:"link,omitempty"`
}

// MonthsConfig holds the labels written into and used to name grids.
type MonthsConfig struct {
	Names      []string `toml:"names" yaml:"names"`       // January first
	Weekdays   []string `toml:"weekdays" yaml:"weekdays"` // Monday first
	Headers    []string `toml:"headers" yaml:"headers"`
	DateFormat string   `toml:"date_format" yaml:"date_format"`
	// Keep is how many months, ending with the current one, survive pruning.
	Keep int `toml:"keep" yaml:"keep"`
}

// StoreConfig selects the grid backend.
type StoreConfig struct {
	Backend string `toml:"backend" yaml:"backend"` // "memory", "sqlite", "xlsx"
	Path    string `toml:"path" yaml:"path"`
}

// SessionConfig selects where per-user state lives.
type SessionConfig struct {
	Backend  string `toml:"backend" yaml:"backend"` // "memory", "redis"
	RedisURL string `toml:"redis_url" yaml:"redis_url"`
	Prefix   string `toml:"prefix" yaml:"prefix"`
	TTLMs    int64  `toml:"ttl_ms" yaml:"ttl_ms"`
}

// PacingConfig throttles grid writes.
type PacingConfig struct {
	BatchSize      int   `toml:"batch_size" yaml:"batch_size"`
	ReserveDelayMs int64 `toml:"reserve_delay_ms" yaml:"reserve_delay_ms"`
	CancelDelayMs  int64 `toml:"cancel_delay_ms" yaml:"cancel_delay_ms"`
}

// RetryConfig bounds the backoff applied to transient store failures.
type RetryConfig struct {
	MaxAttempts   int     `toml:"max_attempts" yaml:"max_attempts"`
	InitialMs     int64   `toml:"initial_ms" yaml:"initial_ms"`
	MaxIntervalMs int64   `toml:"max_interval_ms" yaml:"max_interval_ms"`
	Multiplier    float64 `toml:"multiplier" yaml:"multiplier"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Addr string `toml:"addr" yaml:"addr"`
}

// ReportConfig holds user-facing texts. Format strings keep their verbs.
type ReportConfig struct {
	Success   string `toml:"success" yaml:"success"`
	Skip      string `toml:"skip" yaml:"skip"`
	Error     string `toml:"error" yaml:"error"`
	AllBusy   string `toml:"all_busy" yaml:"all_busy"`
	Ready     string `toml:"ready" yaml:"ready"`
	Failure   string `toml:"failure" yaml:"failure"`
	NoPeriod  string `toml:"no_period" yaml:"no_period"`
	Reset     string `toml:"reset" yaml:"reset"`
	DayHeader string `toml:"day_header" yaml:"day_header"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level     string `toml:"level" yaml:"level"` // "debug", "info", "warn", "error"
	DebugFile string `toml:"debug_file" yaml:"debug_file"`
}

// Default returns the default configuration.
func Default() *Config {
	layout := grid.DefaultLayout()
	names := lifecycle.DefaultNames()
	pacing := scheduler.DefaultPacing()
	retry := grid.DefaultRetryPolicy()
	headings := report.DefaultHeadings()
	messages := command.DefaultMessages()

	return &Config{
		Grid: GridConfig{
			TableWidth:   layout.TableWidth,
			TableHeight:  layout.TableHeight,
			HSpacing:     layout.HSpacing,
			VSpacing:     layout.VSpacing,
			TablesPerRow: layout.TablesPerRow,
		},
		Colors: map[string]string{},
		Months: MonthsConfig{
			Names:      names.Months[:],
			Weekdays:   names.Weekdays[:],
			Headers:    names.Headers,
			DateFormat: names.DateFormat,
			Keep:       lifecycle.DefaultKeepMonths,
		},
		Store: StoreConfig{
			Backend: "sqlite",
			Path:    defaultStorePath(),
		},
		Session: SessionConfig{
			Backend: "memory",
			Prefix:  "airtime",
			TTLMs:   (24 * time.Hour).Milliseconds(),
		},
		Pacing: PacingConfig{
			BatchSize:      pacing.BatchSize,
			ReserveDelayMs: pacing.ReserveDelay.Milliseconds(),
			CancelDelayMs:  pacing.CancelDelay.Milliseconds(),
		},
		Retry: RetryConfig{
			MaxAttempts:   retry.MaxAttempts,
			InitialMs:     retry.Initial.Milliseconds(),
			MaxIntervalMs: retry.MaxInterval.Milliseconds(),
			Multiplier:    retry.Multiplier,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Report: ReportConfig{
			Success:   headings.Success,
			Skip:      headings.Skip,
			Error:     headings.Error,
			AllBusy:   headings.AllBusy,
			Ready:     messages.Ready,
			Failure:   messages.Failure,
			NoPeriod:  messages.NoPeriod,
			Reset:     messages.Reset,
			DayHeader: messages.DayHeader,
		},
		Log: LogConfig{
			Level:     "info",
			DebugFile: "airtime-debug.log",
		},
	}
}

// defaultStorePath returns the default grid database path.
func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "airtime.db"
	}
	return filepath.Join(home, ".local", "share", "airtime", "airtime.db")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.toml"
	}
	return filepath.Join(home, ".config", "airtime", "config.toml")
}

// Load loads configuration from the default path, merging with defaults and env vars.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigPath())
}

// LoadFrom loads configuration from the specified path.
// It starts with defaults, overlays file config if it exists, then applies env overrides.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	if err := loadFromFile(path, cfg); err != nil {
		return nil, err
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	cfg.Store.Path = expandPath(cfg.Store.Path)
	cfg.Log.DebugFile = expandPath(cfg.Log.DebugFile)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// loadFromFile loads config from a file if it exists.
func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	if isYAML(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = toml.Unmarshal(data, cfg)
	}
	if err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Environment variables take precedence over file config.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("AIRTIME_STORE_BACKEND"); v != "" {
		cfg.Store.Backend = v
	}
	if v := os.Getenv("AIRTIME_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}

	if v := os.Getenv("AIRTIME_SESSION_BACKEND"); v != "" {
		cfg.Session.Backend = v
	}
	if v := os.Getenv("AIRTIME_REDIS_URL"); v != "" {
		cfg.Session.RedisURL = v
	}

	if v := os.Getenv("AIRTIME_SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("AIRTIME_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}

	if v := os.Getenv("AIRTIME_RESERVE_DELAY_MS"); v != "" {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("AIRTIME_RESERVE_DELAY_MS: %w", err)
		}
		cfg.Pacing.ReserveDelayMs = ms
	}
	if v := os.Getenv("AIRTIME_CANCEL_DELAY_MS"); v != "" {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("AIRTIME_CANCEL_DELAY_MS: %w", err)
		}
		cfg.Pacing.CancelDelayMs = ms
	}
	return nil
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

var (
	validStores   = map[string]bool{"memory": true, "sqlite": true, "xlsx": true}
	validSessions = map[string]bool{"memory": true, "redis": true}
	validLevels   = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := c.Layout().Validate(); err != nil {
		return fmt.Errorf("grid: %w", err)
	}

	// An empty catalogue is allowed here so that commands which never touch
	// a grid work before any channel is configured.
	if len(c.Channels) > 0 {
		catalog, err := c.Catalog()
		if err != nil {
			return err
		}
		if _, err := c.GroupIndexes(catalog); err != nil {
			return err
		}
	} else if len(c.Groups) > 0 {
		return errors.New("groups reference channels but none are configured")
	}
	if _, err := c.Palette(); err != nil {
		return err
	}

	names, err := c.Names()
	if err != nil {
		return err
	}
	if len(names.Headers) != c.Grid.TableWidth {
		return fmt.Errorf("months.headers must have %d entries, got %d", c.Grid.TableWidth, len(names.Headers))
	}
	if c.Months.Keep < 1 {
		return errors.New("months.keep must be at least 1")
	}

	if !validStores[c.Store.Backend] {
		return fmt.Errorf("invalid store backend: %s", c.Store.Backend)
	}
	if c.Store.Backend != "memory" && c.Store.Path == "" {
		return errors.New("store.path must be set")
	}
	if !validSessions[c.Session.Backend] {
		return fmt.Errorf("invalid session backend: %s", c.Session.Backend)
	}
	if c.Session.Backend == "redis" && c.Session.RedisURL == "" {
		return errors.New("session.redis_url must be set for the redis backend")
	}

	if c.Pacing.BatchSize < 1 {
		return errors.New("pacing.batch_size must be at least 1")
	}
	if c.Pacing.ReserveDelayMs < 0 || c.Pacing.CancelDelayMs < 0 {
		return errors.New("pacing delays cannot be negative")
	}
	if c.Retry.MaxAttempts < 1 {
		return errors.New("retry.max_attempts must be at least 1")
	}
	if c.Retry.Multiplier < 1 {
		return errors.New("retry.multiplier must be at least 1")
	}

	if !validLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}
	return nil
}

// Layout returns the grid geometry.
func (c *Config) Layout() grid.Layout {
	return grid.Layout{
		TableWidth:   c.Grid.TableWidth,
		TableHeight:  c.Grid.TableHeight,
		HSpacing:     c.Grid.HSpacing,
		VSpacing:     c.Grid.VSpacing,
		TablesPerRow: c.Grid.TablesPerRow,
	}
}

// Catalog builds the channel catalogue.
func (c *Config) Catalog() (*slot.Catalog, error) {
	channels := make([]slot.Channel, len(c.Channels))
	for i, ch := range c.Channels {
		channels[i] = slot.Channel{Name: ch.Name, Link: ch.Link}
	}
	catalog, err := slot.NewCatalog(channels)
	if err != nil {
		return nil, fmt.Errorf("channels: %w", err)
	}
	return catalog, nil
}

// GroupIndexes resolves the report groups to catalogue positions.
func (c *Config) GroupIndexes(catalog *slot.Catalog) ([][]int, error) {
	out := make([][]int, 0, len(c.Groups))
	for gi, g := range c.Groups {
		idx := make([]int, 0, len(g))
		for _, name := range g {
			i, ok := catalog.Index(strings.TrimSpace(name))
			if !ok {
				return nil, fmt.Errorf("groups[%d]: unknown channel %q", gi, name)
			}
			idx = append(idx, i)
		}
		out = append(out, idx)
	}
	return out, nil
}

// Palette builds the color tag table.
func (c *Config) Palette() (slot.Palette, error) {
	tags := make(map[string]slot.Color, len(c.Colors))
	for tag, name := range c.Colors {
		color, ok := slot.ColorByName(name)
		if !ok {
			return slot.Palette{}, fmt.Errorf("colors.%s: unknown color %q", tag, name)
		}
		tags[tag] = color
	}
	return slot.NewPalette(tags), nil
}

// Names builds the grid labels.
func (c *Config) Names() (lifecycle.Names, error) {
	var n lifecycle.Names
	if len(c.Months.Names) != len(n.Months) {
		return n, fmt.Errorf("months.names must have 12 entries, got %d", len(c.Months.Names))
	}
	if len(c.Months.Weekdays) != len(n.Weekdays) {
		return n, fmt.Errorf("months.weekdays must have 7 entries, got %d", len(c.Months.Weekdays))
	}
	copy(n.Months[:], c.Months.Names)
	copy(n.Weekdays[:], c.Months.Weekdays)
	n.Headers = c.Months.Headers
	n.DateFormat = c.Months.DateFormat
	if err := n.Validate(); err != nil {
		return n, fmt.Errorf("months: %w", err)
	}
	return n, nil
}

// Headings returns the report section labels.
func (c *Config) Headings() report.Headings {
	return report.Headings{
		Success: c.Report.Success,
		Skip:    c.Report.Skip,
		Error:   c.Report.Error,
		AllBusy: c.Report.AllBusy,
	}
}

// Messages returns the dispatcher texts.
func (c *Config) Messages() command.Messages {
	return command.Messages{
		Ready:     c.Report.Ready,
		Failure:   c.Report.Failure,
		NoPeriod:  c.Report.NoPeriod,
		Reset:     c.Report.Reset,
		DayHeader: c.Report.DayHeader,
	}
}

// Pacer returns the write pacing.
func (c *Config) Pacer() scheduler.Pacing {
	return scheduler.Pacing{
		BatchSize:    c.Pacing.BatchSize,
		ReserveDelay: time.Duration(c.Pacing.ReserveDelayMs) * time.Millisecond,
		CancelDelay:  time.Duration(c.Pacing.CancelDelayMs) * time.Millisecond,
	}
}

// RetryPolicy returns the store backoff policy.
func (c *Config) RetryPolicy() grid.RetryPolicy {
	return grid.RetryPolicy{
		MaxAttempts: c.Retry.MaxAttempts,
		Initial:     time.Duration(c.Retry.InitialMs) * time.Millisecond,
		MaxInterval: time.Duration(c.Retry.MaxIntervalMs) * time.Millisecond,
		Multiplier:  c.Retry.Multiplier,
	}
}

// SessionTTL returns how long an idle session is kept.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Session.TTLMs) * time.Millisecond
}

// Save writes the configuration to the default path.
func (c *Config) Save() error {
	return c.SaveTo(DefaultConfigPath())
}

// SaveTo writes the configuration to the specified path, as YAML when the
// extension asks for it.
func (c *Config) SaveTo(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = toml.Marshal(c)
	}
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}
