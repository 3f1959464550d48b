package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"trendwatch/internal/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App      App      `mapstructure:"app"`
	Database Database `mapstructure:"database"`
	Reddit   Reddit   `mapstructure:"reddit"`
	Feeds    Feeds    `mapstructure:"feeds"`
	Trends   Trends   `mapstructure:"trends"`
	Alerts   Alerts   `mapstructure:"alerts"`
}

// App holds general application configuration
type App struct {
	Debug      bool   `mapstructure:"debug"`
	LogLevel   string `mapstructure:"log_level"`
	ConfigFile string `mapstructure:"config_file"`
}

// Database holds storage locations. ChromaPath is recorded for the external
// retrieval system; the core never touches it.
type Database struct {
	Path       string `mapstructure:"path"`
	ChromaPath string `mapstructure:"chroma_path"`
}

// Reddit holds discussion-site adapter credentials and fetch policy.
type Reddit struct {
	ClientID     string   `mapstructure:"client_id"`
	ClientSecret string   `mapstructure:"client_secret"`
	UserAgent    string   `mapstructure:"user_agent"`
	Subreddits   []string `mapstructure:"subreddits"`
	Sort         string   `mapstructure:"sort"` // new | hot | top-daily
}

// Enabled reports whether the adapter has usable credentials.
func (r Reddit) Enabled() bool {
	return r.ClientID != "" && r.ClientSecret != ""
}

// Feeds holds syndication-feed adapter configuration.
type Feeds struct {
	URLs              []string `mapstructure:"urls"`
	UserAgent         string   `mapstructure:"user_agent"`
	Timeout           string   `mapstructure:"timeout"`
	MaxEntriesPerFeed int      `mapstructure:"max_entries_per_feed"`
}

// Trends holds the two-window scoring parameters.
type Trends struct {
	MinCount      int `mapstructure:"min_count"`
	WindowHours   int `mapstructure:"window_hours"`
	BaselineHours int `mapstructure:"baseline_hours"`
	RetentionDays int `mapstructure:"retention_days"`
}

// Alerts holds alert gating thresholds and sink credentials.
type Alerts struct {
	Enabled          bool     `mapstructure:"enabled"`
	TrendThreshold   float64  `mapstructure:"trend_threshold"`
	GrowthThreshold  float64  `mapstructure:"growth_threshold"`
	VolumeThreshold  int      `mapstructure:"volume_threshold"`
	CooldownSeconds  int      `mapstructure:"cooldown_seconds"`
	KeywordWatchlist []string `mapstructure:"keyword_watchlist"`
	WebhookURL       string   `mapstructure:"webhook_url"`
	EmailSMTP        string   `mapstructure:"email_smtp"`
	EmailUser        string   `mapstructure:"email_user"`
	EmailPass        string   `mapstructure:"email_pass"`
	EmailTo          string   `mapstructure:"email_to"`
}

// EmailConfigured reports whether the SMTP sink has full credentials.
func (a Alerts) EmailConfigured() bool {
	return a.EmailUser != "" && a.EmailPass != "" && a.EmailTo != ""
}

// DefaultSubreddits are monitored when none are configured.
var DefaultSubreddits = []string{
	"news",
	"technology",
	"worldnews",
	"memes",
	"todayilearned",
	"askreddit",
	"funny",
	"politics",
	"science",
	"entertainment",
}

// DefaultFeedURLs are used when RSS_FEEDS is empty.
var DefaultFeedURLs = []string{
	"https://www.reddit.com/r/news/.rss",
	"https://www.reddit.com/r/technology/.rss",
	"https://www.reddit.com/r/worldnews/.rss",
	"https://feeds.bbci.co.uk/news/rss.xml",
	"http://rss.cnn.com/rss/edition.rss",
	"https://techcrunch.com/feed/",
	"https://www.wired.com/feed/rss",
	"https://feeds.reuters.com/reuters/topNews",
}

var globalConfig *Config

// Load loads the configuration from .env, config file, and environment.
func Load(configFile string) (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	// Load .env file if it exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			logger.Warn("Error loading .env file", "error", err.Error())
		}
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
		viper.SetConfigName(".trendwatch")
		viper.SetConfigType("yaml")
	}

	setDefaults()
	bindEnvironmentVariables()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := postProcessConfig(config); err != nil {
		return nil, fmt.Errorf("error post-processing config: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	globalConfig = config
	return config, nil
}

// Get returns the global configuration, loading it if necessary
func Get() *Config {
	if globalConfig == nil {
		config, err := Load("")
		if err != nil {
			panic(fmt.Sprintf("Failed to load configuration: %v", err))
		}
		return config
	}
	return globalConfig
}

// Reset clears the cached configuration. Used by tests.
func Reset() {
	globalConfig = nil
	viper.Reset()
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("app.debug", false)
	viper.SetDefault("app.log_level", "info")

	viper.SetDefault("database.path", "./data/social.db")
	viper.SetDefault("database.chroma_path", "./data/chroma")

	viper.SetDefault("reddit.user_agent", "trendwatch/1.0")
	viper.SetDefault("reddit.subreddits", DefaultSubreddits)
	viper.SetDefault("reddit.sort", "new")

	viper.SetDefault("feeds.urls", []string{})
	viper.SetDefault("feeds.user_agent", "trendwatch/1.0")
	viper.SetDefault("feeds.timeout", "30s")
	viper.SetDefault("feeds.max_entries_per_feed", 50)

	viper.SetDefault("trends.min_count", 10)
	viper.SetDefault("trends.window_hours", 24)
	viper.SetDefault("trends.baseline_hours", 168)
	viper.SetDefault("trends.retention_days", 30)

	viper.SetDefault("alerts.enabled", false)
	viper.SetDefault("alerts.trend_threshold", 2.0)
	viper.SetDefault("alerts.growth_threshold", 1.0)
	viper.SetDefault("alerts.volume_threshold", 100)
	viper.SetDefault("alerts.cooldown_seconds", 3600)
	viper.SetDefault("alerts.email_smtp", "smtp.gmail.com:587")
}

// bindEnvironmentVariables sets up flexible environment variable binding
func bindEnvironmentVariables() {
	bindEnvKeys("database.path", []string{"DB_PATH"})
	bindEnvKeys("database.chroma_path", []string{"CHROMA_PATH"})

	bindEnvKeys("reddit.client_id", []string{"REDDIT_CLIENT_ID"})
	bindEnvKeys("reddit.client_secret", []string{"REDDIT_CLIENT_SECRET"})
	bindEnvKeys("reddit.user_agent", []string{"REDDIT_USER_AGENT"})

	bindEnvInt("trends.min_count", "TREND_MIN_COUNT")
	bindEnvInt("trends.window_hours", "TREND_WINDOW_HOURS")
	bindEnvInt("trends.baseline_hours", "TREND_BASELINE_HOURS")

	bindEnvKeys("alerts.webhook_url", []string{"ALERT_WEBHOOK_URL"})
	bindEnvKeys("alerts.email_smtp", []string{"ALERT_EMAIL_SMTP"})
	bindEnvKeys("alerts.email_user", []string{"ALERT_EMAIL_USER"})
	bindEnvKeys("alerts.email_pass", []string{"ALERT_EMAIL_PASS"})
	bindEnvKeys("alerts.email_to", []string{"ALERT_EMAIL_TO"})

	// RSS_FEEDS is comma-separated in the environment
	if feeds := os.Getenv("RSS_FEEDS"); feeds != "" {
		var urls []string
		for _, u := range strings.Split(feeds, ",") {
			if u = strings.TrimSpace(u); u != "" {
				urls = append(urls, u)
			}
		}
		viper.Set("feeds.urls", urls)
	}
}

// bindEnvKeys binds the first found environment variable to a viper key
func bindEnvKeys(viperKey string, envKeys []string) {
	for _, envKey := range envKeys {
		if value := os.Getenv(envKey); value != "" {
			viper.Set(viperKey, value)
			return
		}
	}
}

// bindEnvInt binds an integer environment variable, warning and keeping the
// default when the value does not parse.
func bindEnvInt(viperKey, envKey string) {
	value := os.Getenv(envKey)
	if value == "" {
		return
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		logger.Warn("Ignoring non-integer environment value", "var", envKey, "value", value)
		return
	}
	viper.Set(viperKey, n)
}

// postProcessConfig applies post-processing to configuration values
func postProcessConfig(config *Config) error {
	// Ensure the database directory exists
	if dir := filepath.Dir(config.Database.Path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("cannot create database directory %s: %w", dir, err)
		}
	}

	// Drop feed URLs that are not http(s)
	var valid []string
	for _, u := range config.Feeds.URLs {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
			valid = append(valid, u)
		} else {
			logger.Warn("Invalid RSS feed URL dropped", "url", u)
		}
	}
	config.Feeds.URLs = valid

	// Fall back to the built-in feed list when nothing is configured
	if len(config.Feeds.URLs) == 0 {
		config.Feeds.URLs = append([]string{}, DefaultFeedURLs...)
	}

	if config.Reddit.Sort == "" {
		config.Reddit.Sort = "new"
	}
	return nil
}

// validateConfig checks parameter sanity. Degenerate window/baseline is a
// warning, not an error.
func validateConfig(config *Config) error {
	if config.Trends.MinCount < 1 {
		return fmt.Errorf("trends.min_count must be positive, got %d", config.Trends.MinCount)
	}
	if config.Trends.WindowHours < 1 || config.Trends.BaselineHours < 1 {
		return fmt.Errorf("trend windows must be positive (window=%d baseline=%d)",
			config.Trends.WindowHours, config.Trends.BaselineHours)
	}
	if config.Trends.WindowHours >= config.Trends.BaselineHours {
		logger.Warn("Trend window should be smaller than baseline period",
			"window_hours", config.Trends.WindowHours,
			"baseline_hours", config.Trends.BaselineHours)
	}
	if !config.Reddit.Enabled() && len(config.Feeds.URLs) == 0 {
		return fmt.Errorf("no data sources configured (Reddit credentials or RSS feeds)")
	}
	return nil
}
