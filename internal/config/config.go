package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const appName = "ideaminer"

// Provider names accepted in [analysis].provider.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// Fetch clients accepted in [sources].client.
const (
	ClientAPI     = "api"
	ClientFeed    = "feed"
	ClientBrowser = "browser"
)

// Storage drivers and seen-set backends.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	SeenSQL        = "sql"
	SeenRedis      = "redis"
)

// Config holds all application configuration
type Config struct {
	Version  int            `toml:"version"`
	Sources  SourcesConfig  `toml:"sources"`
	Reddit   RedditConfig   `toml:"reddit"`
	Analysis AnalysisConfig `toml:"analysis"`
	Storage  StorageConfig  `toml:"storage"`
	Schedule ScheduleConfig `toml:"schedule"`
	Digest   DigestConfig   `toml:"digest"`
	Email    EmailConfig    `toml:"email"`
	Server   ServerConfig   `toml:"server"`
	Logging  LoggingConfig  `toml:"logging"`
}

type SourcesConfig struct {
	Subreddits     []string `toml:"subreddits"`
	ItemsPerSource int      `toml:"items_per_source"`
	RepliesPerItem int      `toml:"replies_per_item"`
	ContextReplies int      `toml:"context_replies"`
	Client         string   `toml:"client"`
	Listing        string   `toml:"listing"`
	TopWindow      string   `toml:"top_window"`
	Headless       bool     `toml:"headless"`
}

type RedditConfig struct {
	ClientID          string `toml:"client_id"`
	ClientSecret      string `toml:"client_secret"`
	UserAgent         string `toml:"user_agent"`
	RequestsPerMinute int    `toml:"requests_per_minute"`
}

type AnalysisConfig struct {
	Provider        string   `toml:"provider"`
	APIKey          string   `toml:"api_key"`
	Organization    string   `toml:"organization"`
	Model           string   `toml:"model"`
	Temperature     float64  `toml:"temperature"`
	MaxOutputTokens int      `toml:"max_output_tokens"`
	ItemDelay       Duration `toml:"item_delay"`
	StrictPlaybook  bool     `toml:"strict_playbook"`
	CacheExchanges  bool     `toml:"cache_exchanges"`
	CacheSteps      bool     `toml:"cache_steps"`
}

type StorageConfig struct {
	Driver      string `toml:"driver"`
	DSN         string `toml:"dsn"`
	SeenBackend string `toml:"seen_backend"`
	RedisAddr   string `toml:"redis_addr"`
	RedisKey    string `toml:"redis_key"`
	ResultsFile string `toml:"results_file"`
}

type ScheduleConfig struct {
	Enabled       bool   `toml:"enabled"`
	Cron          string `toml:"cron"`
	IntervalHours int    `toml:"interval_hours"`
	Timezone      string `toml:"timezone"`
}

type DigestConfig struct {
	Enabled  bool `toml:"enabled"`
	MaxIdeas int  `toml:"max_ideas"`
}

type EmailConfig struct {
	Provider string `toml:"provider"`
	SMTPHost string `toml:"smtp_host"`
	SMTPPort int    `toml:"smtp_port"`
	SMTPUser string `toml:"smtp_user"`
	SMTPPass string `toml:"smtp_pass"`
	FromAddr string `toml:"from_address"`
	ToAddr   string `toml:"to_address"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type LoggingConfig struct {
	Level       string `toml:"level"`
	Development bool   `toml:"development"`
}

// Duration is a time.Duration written as "1.2s" in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns a Config with sensible defaults
func Default() *Config {
	return &Config{
		Version: 1,
		Sources: SourcesConfig{
			Subreddits:     []string{"consulting"},
			ItemsPerSource: 3,
			RepliesPerItem: 10,
			ContextReplies: 10,
			Client:         ClientAPI,
			Listing:        "new",
			TopWindow:      "week",
			Headless:       true,
		},
		Reddit: RedditConfig{
			UserAgent:         "reddit-scraper/0.3",
			RequestsPerMinute: 60,
		},
		Analysis: AnalysisConfig{
			Provider:        ProviderOpenAI,
			Model:           "o4-mini",
			Temperature:     0.45,
			MaxOutputTokens: 25000,
			ItemDelay:       Duration{1200 * time.Millisecond},
		},
		Storage: StorageConfig{
			Driver:      DriverSQLite,
			SeenBackend: SeenSQL,
			RedisKey:    "ideaminer:seen",
			ResultsFile: "results.jsonl",
		},
		Schedule: ScheduleConfig{
			Cron:          "",
			IntervalHours: 6,
			Timezone:      "UTC",
		},
		Digest: DigestConfig{
			MaxIdeas: 20,
		},
		Email: EmailConfig{
			Provider: "smtp",
			SMTPPort: 587,
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8089",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch c.Analysis.Provider {
	case ProviderOpenAI, ProviderAnthropic, ProviderGemini:
	default:
		return fmt.Errorf("analysis.provider: unknown provider %q", c.Analysis.Provider)
	}
	switch c.Sources.Client {
	case ClientAPI, ClientFeed, ClientBrowser:
	default:
		return fmt.Errorf("sources.client: unknown client %q", c.Sources.Client)
	}
	switch c.Sources.Listing {
	case "new", "top":
	default:
		return fmt.Errorf("sources.listing: must be new or top, got %q", c.Sources.Listing)
	}
	switch c.Storage.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver)
	}
	switch c.Storage.SeenBackend {
	case SeenSQL, SeenRedis:
	default:
		return fmt.Errorf("storage.seen_backend: unknown backend %q", c.Storage.SeenBackend)
	}
	if c.Storage.SeenBackend == SeenRedis && c.Storage.RedisAddr == "" {
		return errors.New("storage.redis_addr: required when seen_backend is redis")
	}
	if c.Sources.ItemsPerSource <= 0 {
		return errors.New("sources.items_per_source: must be positive")
	}
	if c.Sources.RepliesPerItem < 0 || c.Sources.ContextReplies < 0 {
		return errors.New("sources: reply limits must not be negative")
	}
	if c.Analysis.MaxOutputTokens <= 0 {
		return errors.New("analysis.max_output_tokens: must be positive")
	}
	if c.Analysis.ItemDelay.Duration < 0 {
		return errors.New("analysis.item_delay: must not be negative")
	}
	return nil
}

// Subreddits normalises names: trims whitespace, strips an "r/" prefix and
// drops empties.
func Subreddits(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		n = strings.TrimPrefix(strings.TrimPrefix(n, "/"), "r/")
		if n != "" {
			out = append(out, n)
		}
	}
	return out
}

// ConfigDir returns the platform-appropriate config directory
func ConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, appName), nil
}

// ConfigPath returns the full path to the config file
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// CacheDir returns the directory for cached LLM exchanges and step artifacts.
func CacheDir() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cacheDir, appName), nil
}

// DataDir holds the default sqlite database.
func DataDir() (string, error) {
	return ConfigDir()
}

// DefaultDSN is the sqlite file used when storage.dsn is empty.
func DefaultDSN() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "scraper.db"), nil
}

// Load reads config from path, or from ConfigPath when path is empty. A
// missing file yields Default(). Environment overrides are applied last.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	}

	ApplyEnv(cfg)
	return cfg, nil
}

// Save writes config to path, or to ConfigPath when path is empty.
func (c *Config) Save(path string) error {
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return err
		}
		path = p
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(c)
}
