// Package config loads the application configuration from an optional YAML file,
// a .env file for local runs, and environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	AWS     AWSConfig     `yaml:"aws"`
	Tables  TablesConfig  `yaml:"tables"`
	Logging LoggingConfig `yaml:"logging"`
	Twitter TwitterConfig `yaml:"twitter"`
	Watcher WatcherConfig `yaml:"watcher"`
	Server  ServerConfig  `yaml:"server"`
	Metrics MetricsConfig `yaml:"metrics"`
	// RunLocal makes the Lambda binaries run a local server or a simulated event.
	RunLocal bool `yaml:"runLocal"`
}

// AWSConfig selects the region and an optional LocalStack endpoint.
type AWSConfig struct {
	Region           string `yaml:"region"`
	EndpointOverride string `yaml:"endpointOverride"`
}

// TablesConfig names the DynamoDB tables.
type TablesConfig struct {
	Tweets  string `yaml:"tweets"`
	Cursors string `yaml:"cursors"`
}

// LoggingConfig controls the zap level and encoder ("json" or "console").
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TwitterConfig holds the recent-search settings used by the quote poller.
type TwitterConfig struct {
	BearerToken string `yaml:"bearerToken"`
	BaseURL     string `yaml:"baseURL"`
	Query       string `yaml:"query"`
	MaxResults  int    `yaml:"maxResults"`
	CursorFile  string `yaml:"cursorFile"`
}

// WatcherConfig controls the local DynamoDB Streams runner.
type WatcherConfig struct {
	PollInterval time.Duration `yaml:"pollInterval"`
	MetricsAddr  string        `yaml:"metricsAddr"`
}

// ServerConfig holds the local HTTP listen address for the API.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// MetricsConfig controls CloudWatch custom metrics.
type MetricsConfig struct {
	Namespace string `yaml:"namespace"`
	Publish   bool   `yaml:"publish"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides on top of the defaults. Outside CI a .env file in the working
// directory is loaded first.
func Load(path string) (*Config, error) {
	if os.Getenv("CI") == "" {
		_ = godotenv.Load()
	}

	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Tables: TablesConfig{
			Tweets:  "scrapcast_tweets",
			Cursors: "scrapcast_cursors",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Twitter: TwitterConfig{
			BaseURL:    "https://api.twitter.com",
			Query:      "@ScrapCastGoGo is:quote",
			MaxResults: 10,
			CursorFile: "last_tweet_id.txt",
		},
		Watcher: WatcherConfig{
			PollInterval: time.Second,
			MetricsAddr:  ":9090",
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Metrics: MetricsConfig{
			Namespace: "ScrapCast",
		},
	}
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("AWS_REGION"); v != "" {
		cfg.AWS.Region = v
	}
	if v := os.Getenv("AWS_ENDPOINT_OVERRIDE"); v != "" {
		cfg.AWS.EndpointOverride = v
	}
	if v := os.Getenv("TWEETS_TABLE"); v != "" {
		cfg.Tables.Tweets = v
	}
	if v := os.Getenv("CURSORS_TABLE"); v != "" {
		cfg.Tables.Cursors = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("BEARER_TOKEN"); v != "" {
		cfg.Twitter.BearerToken = v
	}
	if v := os.Getenv("TWITTER_BASE_URL"); v != "" {
		cfg.Twitter.BaseURL = v
	}
	if v := os.Getenv("SCRAPCAST_QUERY"); v != "" {
		cfg.Twitter.Query = v
	}
	if v := os.Getenv("LAST_TWEET_ID_FILE"); v != "" {
		cfg.Twitter.CursorFile = v
	}
	if v := os.Getenv("WATCH_POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parsing WATCH_POLL_INTERVAL %q: %w", v, err)
		}
		cfg.Watcher.PollInterval = d
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		cfg.Watcher.MetricsAddr = v
	}
	if v := os.Getenv("SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("METRICS_NAMESPACE"); v != "" {
		cfg.Metrics.Namespace = v
	}
	if v := os.Getenv("METRICS_PUBLISH"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parsing METRICS_PUBLISH %q: %w", v, err)
		}
		cfg.Metrics.Publish = b
	}
	if v := os.Getenv("RUN_LOCAL"); v != "" {
		cfg.RunLocal = v == "true"
	}
	return nil
}
