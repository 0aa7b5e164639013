package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

const (
	envPrefix = "REVIEWDECK"

	defaultServerURL             = "http://127.0.0.1:8000"
	defaultRequestTimeoutSeconds = 10
	defaultDebounceMS            = 800
	defaultToastCooldownMS       = 3000
	defaultActiveIntervalMS      = 2000
	defaultIdleIntervalMS        = 10000
	defaultWindowSize            = 60
	defaultPollIntervalMS        = 3000
	defaultJobTimeoutMinutes     = 30
	defaultToastTTLSeconds       = 4
	defaultToastQueueSize        = 8
)

type CoreConfig struct {
	Server      CoreServerConfig      `toml:"server"`
	Logging     CoreLoggingConfig     `toml:"logging"`
	Persistence CorePersistenceConfig `toml:"persistence"`
	Telemetry   CoreTelemetryConfig   `toml:"telemetry"`
	Scheduler   CoreSchedulerConfig   `toml:"scheduler"`
}

type CoreServerConfig struct {
	URL                   string `toml:"url"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
}

type CoreLoggingConfig struct {
	Level string `toml:"level"`
	Path  string `toml:"path"`
}

type CorePersistenceConfig struct {
	DebounceMS      int `toml:"debounce_ms"`
	ToastCooldownMS int `toml:"toast_cooldown_ms"`
}

type CoreTelemetryConfig struct {
	ActiveIntervalMS int `toml:"active_interval_ms"`
	IdleIntervalMS   int `toml:"idle_interval_ms"`
	WindowSize       int `toml:"window_size"`
}

type CoreSchedulerConfig struct {
	PollIntervalMS    int    `toml:"poll_interval_ms"`
	JobTimeoutMinutes int    `toml:"job_timeout_minutes"`
	Destination       string `toml:"destination"`
}

type UIConfig struct {
	Tabs   UITabsConfig   `toml:"tabs"`
	Toasts UIToastsConfig `toml:"toasts"`
	Report UIReportConfig `toml:"report"`
}

type UITabsConfig struct {
	Initial string `toml:"initial"`
}

type UIToastsConfig struct {
	TTLSeconds int `toml:"ttl_seconds"`
	QueueSize  int `toml:"queue_size"`
}

type UIReportConfig struct {
	Style string `toml:"style"`
}

func DefaultCoreConfig() CoreConfig {
	return CoreConfig{
		Server: CoreServerConfig{
			URL:                   defaultServerURL,
			RequestTimeoutSeconds: defaultRequestTimeoutSeconds,
		},
		Logging: CoreLoggingConfig{
			Level: "info",
		},
		Persistence: CorePersistenceConfig{
			DebounceMS:      defaultDebounceMS,
			ToastCooldownMS: defaultToastCooldownMS,
		},
		Telemetry: CoreTelemetryConfig{
			ActiveIntervalMS: defaultActiveIntervalMS,
			IdleIntervalMS:   defaultIdleIntervalMS,
			WindowSize:       defaultWindowSize,
		},
		Scheduler: CoreSchedulerConfig{
			PollIntervalMS:    defaultPollIntervalMS,
			JobTimeoutMinutes: defaultJobTimeoutMinutes,
		},
	}
}

// LoadCoreConfig reads config.toml from the data dir and applies
// REVIEWDECK_* environment overrides on top.
func LoadCoreConfig() (CoreConfig, error) {
	path, err := CoreConfigPath()
	if err != nil {
		return CoreConfig{}, err
	}
	cfg, err := loadCoreConfigFromPath(path)
	if err != nil {
		return CoreConfig{}, err
	}
	applyEnvOverrides(&cfg, newEnv())
	return cfg, nil
}

func newEnv() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	return v
}

func applyEnvOverrides(cfg *CoreConfig, env *viper.Viper) {
	if cfg == nil || env == nil {
		return
	}
	if url := strings.TrimSpace(env.GetString("server_url")); url != "" {
		cfg.Server.URL = url
	}
	if level := strings.TrimSpace(env.GetString("log_level")); level != "" {
		cfg.Logging.Level = level
	}
	if destination := strings.TrimSpace(env.GetString("destination")); destination != "" {
		cfg.Scheduler.Destination = destination
	}
}

func (c CoreConfig) ServerURL() string {
	url := strings.TrimSpace(c.Server.URL)
	if url == "" {
		return defaultServerURL
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "http://" + url
	}
	return strings.TrimRight(url, "/")
}

func (c CoreConfig) RequestTimeout() time.Duration {
	return seconds(c.Server.RequestTimeoutSeconds, defaultRequestTimeoutSeconds)
}

func (c CoreConfig) LogLevel() string {
	level := strings.TrimSpace(c.Logging.Level)
	if level == "" {
		return "info"
	}
	return level
}

// LogPath resolves the UI log file, defaulting to ui.log in the data dir.
func (c CoreConfig) LogPath() (string, error) {
	path := strings.TrimSpace(c.Logging.Path)
	if path == "" {
		return LogPath()
	}
	return resolveConfigPath(path)
}

func (c CoreConfig) DebounceDelay() time.Duration {
	return millis(c.Persistence.DebounceMS, defaultDebounceMS)
}

func (c CoreConfig) ToastCooldown() time.Duration {
	return millis(c.Persistence.ToastCooldownMS, defaultToastCooldownMS)
}

func (c CoreConfig) TelemetryIntervals() (active, idle time.Duration) {
	active = millis(c.Telemetry.ActiveIntervalMS, defaultActiveIntervalMS)
	idle = millis(c.Telemetry.IdleIntervalMS, defaultIdleIntervalMS)
	if idle < active {
		idle = active
	}
	return active, idle
}

func (c CoreConfig) TelemetryWindowSize() int {
	if c.Telemetry.WindowSize <= 0 {
		return defaultWindowSize
	}
	return c.Telemetry.WindowSize
}

func (c CoreConfig) SchedulerPollInterval() time.Duration {
	return millis(c.Scheduler.PollIntervalMS, defaultPollIntervalMS)
}

func (c CoreConfig) JobTimeout() time.Duration {
	minutes := c.Scheduler.JobTimeoutMinutes
	if minutes <= 0 {
		minutes = defaultJobTimeoutMinutes
	}
	return time.Duration(minutes) * time.Minute
}

func (c CoreConfig) Destination() string {
	return strings.TrimSpace(c.Scheduler.Destination)
}

func DefaultUIConfig() UIConfig {
	return UIConfig{
		Tabs: UITabsConfig{
			Initial: "scraper",
		},
		Toasts: UIToastsConfig{
			TTLSeconds: defaultToastTTLSeconds,
			QueueSize:  defaultToastQueueSize,
		},
		Report: UIReportConfig{
			Style: "dark",
		},
	}
}

func LoadUIConfig() (UIConfig, error) {
	path, err := UIConfigPath()
	if err != nil {
		return UIConfig{}, err
	}
	return loadUIConfigFromPath(path)
}

func (c UIConfig) InitialTab() string {
	tab := strings.ToLower(strings.TrimSpace(c.Tabs.Initial))
	if tab == "" {
		return "scraper"
	}
	return tab
}

func (c UIConfig) ToastTTL() time.Duration {
	return seconds(c.Toasts.TTLSeconds, defaultToastTTLSeconds)
}

func (c UIConfig) ToastQueueSize() int {
	if c.Toasts.QueueSize <= 0 {
		return defaultToastQueueSize
	}
	return c.Toasts.QueueSize
}

func (c UIConfig) ReportStyle() string {
	style := strings.ToLower(strings.TrimSpace(c.Report.Style))
	switch style {
	case "dark", "light", "notty", "ascii":
		return style
	default:
		return "dark"
	}
}

func loadCoreConfigFromPath(path string) (CoreConfig, error) {
	cfg := DefaultCoreConfig()
	if err := readTOML(path, &cfg); err != nil {
		return CoreConfig{}, err
	}
	return cfg, nil
}

func loadUIConfigFromPath(path string) (UIConfig, error) {
	cfg := DefaultUIConfig()
	if err := readTOML(path, &cfg); err != nil {
		return UIConfig{}, err
	}
	return cfg, nil
}

func readTOML(path string, out any) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return errors.New("path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	return toml.Unmarshal(data, out)
}

func resolveConfigPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", errors.New("path is required")
	}
	if strings.HasPrefix(path, "~") {
		return homedir.Expand(path)
	}
	if filepath.IsAbs(path) {
		return path, nil
	}
	dataDir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, path), nil
}

func millis(value, fallback int) time.Duration {
	if value <= 0 {
		value = fallback
	}
	return time.Duration(value) * time.Millisecond
}

func seconds(value, fallback int) time.Duration {
	if value <= 0 {
		value = fallback
	}
	return time.Duration(value) * time.Second
}
