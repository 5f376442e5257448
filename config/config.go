package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"enrolldash/inputs"

	"gopkg.in/yaml.v3"
)

// Config represents the complete dashboard configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	HTTP     HTTPConfig     `yaml:"http"`
	Data     DataConfig     `yaml:"data"`
	Chart    ChartConfig    `yaml:"chart"`
	Logging  LoggingConfig  `yaml:"logging"`
	UI       UIConfig       `yaml:"ui"`
	Recorder RecorderConfig `yaml:"recorder"`
}

// ServerConfig holds page-level text
type ServerConfig struct {
	Title   string `yaml:"title"`
	Caption string `yaml:"caption"`
}

// HTTPConfig contains web surface settings
type HTTPConfig struct {
	Enabled                bool   `yaml:"enabled"`
	Addr                   string `yaml:"addr"`
	MaxUploadBytes         int64  `yaml:"max_upload_bytes"`
	ReadTimeoutSeconds     int    `yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds    int    `yaml:"write_timeout_seconds"`
	ShutdownTimeoutSeconds int    `yaml:"shutdown_timeout_seconds"`
}

// DataConfig locates the bundled default inputs
type DataConfig struct {
	Dir    string           `yaml:"dir"`
	Files  inputs.Filenames `yaml:"files"`
	Remote RemoteConfig     `yaml:"remote"`
}

// RemoteConfig refreshes the default files from URLs. An input with no URL
// keeps whatever is on disk.
type RemoteConfig struct {
	Enabled        bool             `yaml:"enabled"`
	URLs           inputs.Filenames `yaml:"urls"`
	RefreshMinutes int              `yaml:"refresh_minutes"`
	TimeoutSeconds int              `yaml:"timeout_seconds"`
	MaxBytes       int64            `yaml:"max_bytes"`
}

// ChartConfig sizes rendered charts in pixels
type ChartConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Dir           string `yaml:"dir"`
	RetentionDays int    `yaml:"retention_days"`
}

// RecorderConfig controls the SQLite pass history
type RecorderConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Path            string `yaml:"path"`
	PerSurfaceLimit int    `yaml:"per_surface_limit"`
}

// UIConfig controls the terminal console surface
type UIConfig struct {
	Console bool `yaml:"console"`
}

const (
	minChartWidth  = 200
	minChartHeight = 150
)

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{HTTP: HTTPConfig{Enabled: true}}
	applyDefaults(cfg)
	return cfg
}

// Load reads a single YAML file, or every *.yaml/*.yml file in a directory in
// lexical order. Later files override keys set by earlier ones; keys a file
// does not mention are left alone.
func Load(path string) (*Config, error) {
	files, err := configFiles(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{HTTP: HTTPConfig{Enabled: true}}
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", file, err)
		}
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func configFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config path: %w", err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("failed to list config directory: %w", err)
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".yaml", ".yml":
			files = append(files, filepath.Join(path, entry.Name()))
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no YAML files in config directory %s", path)
	}
	sort.Strings(files)
	return files, nil
}

func applyDefaults(cfg *Config) {
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8501"
	}
	if cfg.HTTP.MaxUploadBytes == 0 {
		cfg.HTTP.MaxUploadBytes = 32 << 20
	}
	if cfg.HTTP.ReadTimeoutSeconds == 0 {
		cfg.HTTP.ReadTimeoutSeconds = 30
	}
	if cfg.HTTP.WriteTimeoutSeconds == 0 {
		cfg.HTTP.WriteTimeoutSeconds = 30
	}
	if cfg.HTTP.ShutdownTimeoutSeconds == 0 {
		cfg.HTTP.ShutdownTimeoutSeconds = 5
	}
	if cfg.Data.Dir == "" {
		cfg.Data.Dir = "data"
	}
	defaults := inputs.DefaultFilenames()
	files := &cfg.Data.Files
	if files.History == "" {
		files.History = defaults.History
	}
	if files.Forecast == "" {
		files.Forecast = defaults.Forecast
	}
	if files.Backtest == "" {
		files.Backtest = defaults.Backtest
	}
	if files.Classification == "" {
		files.Classification = defaults.Classification
	}
	if files.Interest == "" {
		files.Interest = defaults.Interest
	}
	if cfg.Data.Remote.RefreshMinutes == 0 {
		cfg.Data.Remote.RefreshMinutes = 60
	}
	if cfg.Data.Remote.TimeoutSeconds == 0 {
		cfg.Data.Remote.TimeoutSeconds = 30
	}
	if cfg.Data.Remote.MaxBytes == 0 {
		cfg.Data.Remote.MaxBytes = 32 << 20
	}
	if cfg.Chart.Width == 0 {
		cfg.Chart.Width = 960
	}
	if cfg.Chart.Height == 0 {
		cfg.Chart.Height = 420
	}
	if cfg.Logging.Dir == "" {
		cfg.Logging.Dir = filepath.Join("data", "logs")
	}
	if cfg.Logging.RetentionDays == 0 {
		cfg.Logging.RetentionDays = 7
	}
	if cfg.Recorder.Path == "" {
		cfg.Recorder.Path = filepath.Join("data", "passes.db")
	}
	if cfg.Recorder.PerSurfaceLimit == 0 {
		cfg.Recorder.PerSurfaceLimit = 5000
	}
}

// Validate rejects settings the surfaces cannot run with.
func (c *Config) Validate() error {
	var problems []string
	if c.HTTP.Enabled && strings.TrimSpace(c.HTTP.Addr) == "" {
		problems = append(problems, "http.addr must not be empty")
	}
	if c.HTTP.MaxUploadBytes < 0 {
		problems = append(problems, "http.max_upload_bytes must be > 0")
	}
	if c.HTTP.ReadTimeoutSeconds < 0 || c.HTTP.WriteTimeoutSeconds < 0 || c.HTTP.ShutdownTimeoutSeconds < 0 {
		problems = append(problems, "http timeouts must be >= 0")
	}
	if c.Data.Remote.Enabled {
		remote := c.Data.Remote
		if remote.RefreshMinutes < 0 || remote.TimeoutSeconds < 0 || remote.MaxBytes < 0 {
			problems = append(problems, "data.remote settings must be >= 0")
		}
		if remote.URLs == (inputs.Filenames{}) {
			problems = append(problems, "data.remote.urls must name at least one input")
		}
	}
	if c.Chart.Width < minChartWidth || c.Chart.Height < minChartHeight {
		problems = append(problems, fmt.Sprintf("chart size must be at least %dx%d", minChartWidth, minChartHeight))
	}
	if c.Logging.RetentionDays < 0 {
		problems = append(problems, "logging.retention_days must be >= 0")
	}
	if c.Recorder.Enabled && c.Recorder.PerSurfaceLimit < 0 {
		problems = append(problems, "recorder.per_surface_limit must be > 0")
	}
	if !c.HTTP.Enabled && !c.UI.Console {
		problems = append(problems, "at least one of http.enabled or ui.console must be true")
	}
	if len(problems) > 0 {
		return errors.New("invalid config: " + strings.Join(problems, "; "))
	}
	return nil
}

// Timeout converts a seconds setting to a duration.
func Timeout(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}

// Print displays the configuration
func (c *Config) Print() {
	fmt.Printf("Dashboard: %s\n", c.Server.Title)
	if c.HTTP.Enabled {
		fmt.Printf("HTTP: %s (max upload %d bytes)\n", c.HTTP.Addr, c.HTTP.MaxUploadBytes)
	}
	fmt.Printf("Data: %s [%s, %s, %s, %s, %s]\n", c.Data.Dir,
		c.Data.Files.History, c.Data.Files.Forecast, c.Data.Files.Backtest,
		c.Data.Files.Classification, c.Data.Files.Interest)
	if c.Data.Remote.Enabled {
		fmt.Printf("Remote refresh: every %d minutes\n", c.Data.Remote.RefreshMinutes)
	}
	fmt.Printf("Charts: %dx%d\n", c.Chart.Width, c.Chart.Height)
	if c.Logging.Enabled {
		fmt.Printf("Logging: %s (retention %d days)\n", c.Logging.Dir, c.Logging.RetentionDays)
	}
	if c.Recorder.Enabled {
		fmt.Printf("Pass history: %s (limit %d per surface)\n", c.Recorder.Path, c.Recorder.PerSurfaceLimit)
	}
	if c.UI.Console {
		fmt.Println("Console: enabled")
	}
}
