package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/javiermolinar/airtime/internal/slot"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Grid.TableWidth != 6 || cfg.Grid.TableHeight != 33 {
		t.Errorf("expected 6x33 tables, got %dx%d", cfg.Grid.TableWidth, cfg.Grid.TableHeight)
	}
	if cfg.Grid.TablesPerRow != 4 {
		t.Errorf("expected 4 tables per row, got %d", cfg.Grid.TablesPerRow)
	}
	if cfg.Months.Names[0] != "January" {
		t.Errorf("expected English month names, got %v", cfg.Months.Names)
	}
	if cfg.Months.Keep != 3 {
		t.Errorf("expected keep 3, got %d", cfg.Months.Keep)
	}
	if cfg.Pacing.BatchSize != 10 || cfg.Pacing.ReserveDelayMs != 1000 || cfg.Pacing.CancelDelayMs != 500 {
		t.Errorf("unexpected pacing %+v", cfg.Pacing)
	}
	if cfg.Store.Backend != "sqlite" {
		t.Errorf("expected sqlite store, got %s", cfg.Store.Backend)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config is invalid: %v", err)
	}
}

func TestLoadFrom_FileNotExists(t *testing.T) {
	cfg, err := LoadFrom("/nonexistent/path/config.toml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Session.Backend != "memory" {
		t.Errorf("expected default session backend, got %s", cfg.Session.Backend)
	}
}

func TestLoadFrom_ValidFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")

	content := `
groups = [["Alpha", "Beta"], ["Gamma"]]

[[channels]]
name = "Alpha"
link = "https://t.me/alpha"

[[channels]]
name = "Beta"

[[channels]]
name = "Gamma"

[colors]
"красный" = "red"
"бирюзовый" = "cyan"

[store]
backend = "xlsx"
path = "/tmp/schedule.xlsx"

[pacing]
batch_size = 5
reserve_delay_ms = 250
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadFrom(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	catalog, err := cfg.Catalog()
	if err != nil {
		t.Fatalf("Catalog failed: %v", err)
	}
	if catalog.Len() != 3 || catalog.At(0).Link != "https://t.me/alpha" {
		t.Errorf("unexpected catalogue %+v", catalog.Channels())
	}

	groups, err := cfg.GroupIndexes(catalog)
	if err != nil {
		t.Fatalf("GroupIndexes failed: %v", err)
	}
	if len(groups) != 2 || len(groups[0]) != 2 || groups[1][0] != 2 {
		t.Errorf("groups = %v", groups)
	}

	palette, err := cfg.Palette()
	if err != nil {
		t.Fatalf("Palette failed: %v", err)
	}
	if palette.Lookup("Красный") != slot.ColorRed || palette.Lookup("бирюзовый") != slot.ColorCyan {
		t.Error("palette did not pick up configured tags")
	}

	if cfg.Store.Backend != "xlsx" || cfg.Store.Path != "/tmp/schedule.xlsx" {
		t.Errorf("unexpected store %+v", cfg.Store)
	}

	pacing := cfg.Pacer()
	if pacing.BatchSize != 5 || pacing.ReserveDelay != 250*time.Millisecond {
		t.Errorf("unexpected pacing %+v", pacing)
	}
	// Keys missing from the file keep their defaults.
	if pacing.CancelDelay != 500*time.Millisecond {
		t.Errorf("expected default cancel delay, got %v", pacing.CancelDelay)
	}
}

func TestLoadFrom_YAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")

	content := `
channels:
  - name: Alpha
  - name: Beta
session:
  backend: redis
  redis_url: redis://localhost:6379/0
server:
  addr: ":9090"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadFrom(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cfg.Channels) != 2 || cfg.Channels[1].Name != "Beta" {
		t.Errorf("unexpected channels %+v", cfg.Channels)
	}
	if cfg.Session.Backend != "redis" || cfg.Session.RedisURL != "redis://localhost:6379/0" {
		t.Errorf("unexpected session %+v", cfg.Session)
	}
	if cfg.Server.Addr != ":9090" {
		t.Errorf("expected addr :9090, got %s", cfg.Server.Addr)
	}
}

func TestLoadFrom_EnvOverrides(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")

	content := `
[store]
backend = "sqlite"
path = "/tmp/test.db"

[server]
addr = ":7000"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	t.Setenv("AIRTIME_STORE_PATH", "/tmp/override.db")
	t.Setenv("AIRTIME_RESERVE_DELAY_MS", "0")
	t.Setenv("AIRTIME_LOG_LEVEL", "debug")

	cfg, err := LoadFrom(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Env should override file
	if cfg.Store.Path != "/tmp/override.db" {
		t.Errorf("expected store path from env, got %s", cfg.Store.Path)
	}
	// File value should be kept when no env override
	if cfg.Server.Addr != ":7000" {
		t.Errorf("expected addr :7000 from file, got %s", cfg.Server.Addr)
	}
	// Env should override default
	if cfg.Pacing.ReserveDelayMs != 0 {
		t.Errorf("expected reserve delay 0 from env, got %d", cfg.Pacing.ReserveDelayMs)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected log level debug from env, got %s", cfg.Log.Level)
	}
}

func TestLoadFrom_BadEnvDuration(t *testing.T) {
	t.Setenv("AIRTIME_CANCEL_DELAY_MS", "soon")

	if _, err := LoadFrom("/nonexistent/path/config.toml"); err == nil {
		t.Error("expected error for a non-numeric delay")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"narrow table", func(c *Config) { c.Grid.TableWidth = 4 }},
		{"no tables per row", func(c *Config) { c.Grid.TablesPerRow = 0 }},
		{"duplicate channel", func(c *Config) {
			c.Channels = []ChannelConfig{{Name: "A"}, {Name: "A"}}
		}},
		{"group with unknown channel", func(c *Config) {
			c.Channels = []ChannelConfig{{Name: "A"}}
			c.Groups = [][]string{{"B"}}
		}},
		{"groups without channels", func(c *Config) { c.Groups = [][]string{{"A"}} }},
		{"unknown color", func(c *Config) { c.Colors = map[string]string{"x": "mauve"} }},
		{"eleven months", func(c *Config) { c.Months.Names = c.Months.Names[:11] }},
		{"duplicate month", func(c *Config) {
			c.Months.Names = append([]string{}, c.Months.Names...)
			c.Months.Names[1] = c.Months.Names[0]
		}},
		{"header count", func(c *Config) { c.Months.Headers = []string{"Day"} }},
		{"keep zero", func(c *Config) { c.Months.Keep = 0 }},
		{"unknown store", func(c *Config) { c.Store.Backend = "sheets" }},
		{"store without path", func(c *Config) { c.Store.Path = "" }},
		{"redis without url", func(c *Config) { c.Session.Backend = "redis" }},
		{"zero batch", func(c *Config) { c.Pacing.BatchSize = 0 }},
		{"negative delay", func(c *Config) { c.Pacing.CancelDelayMs = -1 }},
		{"zero attempts", func(c *Config) { c.Retry.MaxAttempts = 0 }},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestValidate_MemoryStoreNeedsNoPath(t *testing.T) {
	cfg := Default()
	cfg.Store.Backend = "memory"
	cfg.Store.Path = ""

	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNames(t *testing.T) {
	cfg := Default()
	cfg.Months.Names = []string{
		"Январь", "Февраль", "Март", "Апрель", "Май", "Июнь",
		"Июль", "Август", "Сентябрь", "Октябрь", "Ноябрь", "Декабрь",
	}

	names, err := cfg.Names()
	if err != nil {
		t.Fatalf("Names failed: %v", err)
	}
	if names.Months[2] != "Март" || names.Weekdays[0] != "Mon" {
		t.Errorf("unexpected names %+v", names)
	}
}

func TestRetryPolicy(t *testing.T) {
	cfg := Default()
	cfg.Retry.InitialMs = 0

	policy := cfg.RetryPolicy()
	if policy.Initial != 0 || policy.MaxInterval != time.Minute || policy.MaxAttempts != 5 {
		t.Errorf("unexpected policy %+v", policy)
	}
}

func TestExpandPath(t *testing.T) {
	home, _ := os.UserHomeDir()

	tests := []struct {
		input string
		want  string
	}{
		{"~/test.db", filepath.Join(home, "test.db")},
		{"/absolute/path.db", "/absolute/path.db"},
		{"relative/path.db", "relative/path.db"},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			got := expandPath(tc.input)
			if got != tc.want {
				t.Errorf("expandPath(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	for _, name := range []string{"config.toml", "config.yaml"} {
		t.Run(name, func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), name)

			cfg := Default()
			cfg.Channels = []ChannelConfig{{Name: "Alpha", Link: "https://t.me/alpha"}, {Name: "Beta"}}
			cfg.Groups = [][]string{{"Beta"}}
			cfg.Colors = map[string]string{"красный": "red"}
			cfg.Pacing.ReserveDelayMs = 300

			if err := cfg.SaveTo(configPath); err != nil {
				t.Fatalf("failed to save config: %v", err)
			}

			loaded, err := LoadFrom(configPath)
			if err != nil {
				t.Fatalf("failed to load config: %v", err)
			}

			if len(loaded.Channels) != 2 || loaded.Channels[0].Link != "https://t.me/alpha" {
				t.Errorf("channels = %+v", loaded.Channels)
			}
			if len(loaded.Groups) != 1 || loaded.Groups[0][0] != "Beta" {
				t.Errorf("groups = %v", loaded.Groups)
			}
			if loaded.Colors["красный"] != "red" {
				t.Errorf("colors = %v", loaded.Colors)
			}
			if loaded.Pacing.ReserveDelayMs != 300 {
				t.Errorf("expected reserve delay 300, got %d", loaded.Pacing.ReserveDelayMs)
			}
		})
	}
}

func TestLoadFrom_SampleConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := LoadFrom(filepath.Join("..", "..", "airtime.sample.toml"))
	if err != nil {
		t.Fatalf("sample config does not load: %v", err)
	}

	names, err := cfg.Names()
	if err != nil {
		t.Fatalf("Names failed: %v", err)
	}
	if names.Months[2] != "Март" || names.Headers[2] != "№1 (утро)" {
		t.Errorf("unexpected names %+v", names)
	}
	if cfg.Report.AllBusy != "Все каналы заняты" {
		t.Errorf("all_busy = %q", cfg.Report.AllBusy)
	}
	if cfg.Store.Path == "~/.local/share/airtime/schedule.xlsx" {
		t.Error("store path was not expanded")
	}
	if len(cfg.Channels) != 5 || len(cfg.Groups) != 2 {
		t.Errorf("channels = %d, groups = %d", len(cfg.Channels), len(cfg.Groups))
	}
}
