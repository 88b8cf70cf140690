package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Site      SiteConfig
	Scraper   ScraperConfig
	Scheduler SchedulerConfig
	Proxy     ProxyConfig
	S3        S3Config
	DBPath    string
	DomainDB  string // optional Postgres DSN for domain sync
	OutputDir string
	LogLevel  string
	Agents    []AgentEntry
}

type SiteConfig struct {
	BaseURL    string `yaml:"base_url"`
	LocalePath string `yaml:"locale_path"`
	// IndexPath is joined with an agent ID to form the listing index URL.
	IndexPath string `yaml:"index_path"`
}

type ScraperConfig struct {
	Headless    bool
	Concurrency int           // detail-fetch sessions, 1-5
	NavRetries  int           // attempts per navigation
	WaitTimeout time.Duration // ready-selector wait before degrading
	PageDelayMS int           // delay between index pages
	MaxPages    int           // pagination backstop
}

type SchedulerConfig struct {
	Interval time.Duration
	Cron     string
}

type ProxyConfig struct {
	URL string
}

type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

type AgentEntry struct {
	ID string `yaml:"id"`
}

type rosterFile struct {
	Site   SiteConfig   `yaml:"site"`
	Agents []AgentEntry `yaml:"agents"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Site: SiteConfig{
			BaseURL:    getEnv("SITE_BASE_URL", "https://www.sothebysrealty.com"),
			LocalePath: getEnv("SITE_LOCALE_PATH", "/turksandcaicossir/eng"),
			IndexPath:  getEnv("SITE_INDEX_PATH", "/sales/int"),
		},
		Scraper: ScraperConfig{
			Headless:    os.Getenv("SCRAPE_HEADFUL") != "true",
			Concurrency: clampInt(getEnvInt("SCRAPE_CONCURRENCY", 2), 1, 5),
			NavRetries:  getEnvInt("SCRAPE_NAV_RETRIES", 3),
			WaitTimeout: getEnvDuration("SCRAPE_WAIT_TIMEOUT", 20*time.Second),
			PageDelayMS: getEnvInt("SCRAPE_PAGE_DELAY_MS", 1500),
			MaxPages:    getEnvInt("SCRAPE_MAX_PAGES", 50),
		},
		Scheduler: SchedulerConfig{
			Cron: os.Getenv("SCRAPE_CRON"),
		},
		Proxy: ProxyConfig{
			URL: os.Getenv("PROXY_URL"),
		},
		S3: S3Config{
			Bucket:          os.Getenv("S3_BUCKET"),
			Region:          getEnv("S3_REGION", "us-east-1"),
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		},
		DBPath:    getEnv("DB_PATH", "scrooper.db"),
		DomainDB:  os.Getenv("DOMAIN_DB_URL"),
		OutputDir: getEnv("OUTPUT_DIR", "."),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
	}

	if interval := os.Getenv("SCRAPE_INTERVAL"); interval != "" {
		if d, err := time.ParseDuration(interval); err == nil {
			cfg.Scheduler.Interval = d
		}
	}

	if err := cfg.loadRoster(getEnv("AGENTS_FILE", "config/agents.yaml")); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadRoster reads the YAML agent roster. Missing file is fine: the daemon
// then only responds to commands and one-shot flags.
func (c *Config) loadRoster(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var roster rosterFile
	if err := yaml.Unmarshal(data, &roster); err != nil {
		return err
	}

	if roster.Site.BaseURL != "" {
		c.Site.BaseURL = roster.Site.BaseURL
	}
	if roster.Site.LocalePath != "" {
		c.Site.LocalePath = roster.Site.LocalePath
	}
	if roster.Site.IndexPath != "" {
		c.Site.IndexPath = roster.Site.IndexPath
	}
	c.Agents = roster.Agents
	return nil
}

// AgentIndexURL builds the paginated listing index URL for an agent.
func (c *Config) AgentIndexURL(agentID string) string {
	return c.Site.BaseURL + c.Site.LocalePath + c.Site.IndexPath + "/" + agentID
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
