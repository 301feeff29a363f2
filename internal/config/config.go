// Package config loads runtime configuration from defaults, an optional YAML
// file and COURSESCRAPE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/v0xg/coursescrape/internal/logger"
)

// EnvPrefix is prepended to every environment override
const EnvPrefix = "COURSESCRAPE"

// Config is the full application configuration
type Config struct {
	Browser     BrowserConfig     `mapstructure:"browser"`
	Navigation  NavigationConfig  `mapstructure:"navigation"`
	Run         RunConfig         `mapstructure:"run"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Store       StoreConfig       `mapstructure:"store"`
	Log         logger.Config     `mapstructure:"log"`
	AI          AIConfig          `mapstructure:"ai"`
	Credentials CredentialsConfig `mapstructure:"credentials"`
}

// BrowserConfig controls how the browser is launched
type BrowserConfig struct {
	Headless   bool   `mapstructure:"headless"`
	Width      int    `mapstructure:"width"`
	Height     int    `mapstructure:"height"`
	ProfileDir string `mapstructure:"profile_dir"` // Chrome/Chromium profile directory for reusing a logged-in session
	ControlURL string `mapstructure:"control_url"` // attach to an already running browser instead of launching one
	UserAgent  string `mapstructure:"user_agent"`
}

// NavigationConfig sets the default navigation retry policy
type NavigationConfig struct {
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
	BaseDelay  time.Duration `mapstructure:"base_delay"`
}

// RunConfig controls the orchestration loop
type RunConfig struct {
	Delay     time.Duration `mapstructure:"delay"`
	OutputDir string        `mapstructure:"output_dir"`
}

// StorageConfig selects and configures the artifact backend
type StorageConfig struct {
	Backend            string        `mapstructure:"backend"` // local or minio
	LocalRoot          string        `mapstructure:"local_root"`
	BaseURL            string        `mapstructure:"base_url"`
	Endpoint           string        `mapstructure:"endpoint"`
	AccessKey          string        `mapstructure:"access_key"`
	SecretKey          string        `mapstructure:"secret_key"`
	Bucket             string        `mapstructure:"bucket"`
	UseSSL             bool          `mapstructure:"use_ssl"`
	Region             string        `mapstructure:"region"`
	FetchTimeout       time.Duration `mapstructure:"fetch_timeout"`
	MaxScreenshotWidth uint          `mapstructure:"max_screenshot_width"`
}

// StoreConfig configures the record store
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// AIConfig enables optional tagging. An empty provider disables it.
type AIConfig struct {
	Provider string        `mapstructure:"provider"`
	Model    string        `mapstructure:"model"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// SiteCredentials is one login
type SiteCredentials struct {
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
}

// CredentialsConfig holds logins per target site
type CredentialsConfig struct {
	Roadmaps   SiteCredentials `mapstructure:"roadmaps"`
	Curriculum SiteCredentials `mapstructure:"curriculum"`
	Snorkl     SiteCredentials `mapstructure:"snorkl"`
}

// For returns the credentials configured for a site name
func (c CredentialsConfig) For(site string) (SiteCredentials, bool) {
	var creds SiteCredentials
	switch site {
	case "roadmaps":
		creds = c.Roadmaps
	case "curriculum":
		creds = c.Curriculum
	case "snorkl":
		creds = c.Snorkl
	default:
		return SiteCredentials{}, false
	}
	return creds, creds.Email != "" && creds.Password != ""
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.width", 1280)
	v.SetDefault("browser.height", 900)
	v.SetDefault("browser.profile_dir", "")
	v.SetDefault("browser.control_url", "")
	v.SetDefault("browser.user_agent", "")

	v.SetDefault("navigation.timeout", 30*time.Second)
	v.SetDefault("navigation.max_retries", 3)
	v.SetDefault("navigation.base_delay", 2*time.Second)

	v.SetDefault("run.delay", 2*time.Second)
	v.SetDefault("run.output_dir", "output")

	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.local_root", "output/artifacts")
	v.SetDefault("storage.base_url", "")
	v.SetDefault("storage.endpoint", "localhost:9000")
	v.SetDefault("storage.access_key", "")
	v.SetDefault("storage.secret_key", "")
	v.SetDefault("storage.bucket", "coursescrape")
	v.SetDefault("storage.use_ssl", false)
	v.SetDefault("storage.region", "")
	v.SetDefault("storage.fetch_timeout", 60*time.Second)
	v.SetDefault("storage.max_screenshot_width", 1600)

	v.SetDefault("store.path", "output/coursescrape.db")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", false)

	v.SetDefault("ai.provider", "")
	v.SetDefault("ai.model", "")
	v.SetDefault("ai.cache_ttl", time.Hour)

	for _, site := range []string{"roadmaps", "curriculum", "snorkl"} {
		v.SetDefault("credentials."+site+".email", "")
		v.SetDefault("credentials."+site+".password", "")
	}
}

// Load reads configuration. file may be empty, in which case coursescrape.yaml
// is looked up in the working directory and ~/.config/coursescrape.
func Load(file string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("coursescrape")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/coursescrape")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the pipeline cannot run with
func (c *Config) Validate() error {
	var problems []string

	if c.Navigation.Timeout <= 0 {
		problems = append(problems, "navigation.timeout must be positive")
	}
	if c.Navigation.MaxRetries <= 0 {
		problems = append(problems, "navigation.max_retries must be positive")
	}
	if c.Navigation.BaseDelay < 0 {
		problems = append(problems, "navigation.base_delay must not be negative")
	}
	if c.Run.Delay < 0 {
		problems = append(problems, "run.delay must not be negative")
	}
	switch c.Storage.Backend {
	case "local":
		if c.Storage.LocalRoot == "" {
			problems = append(problems, "storage.local_root is required for the local backend")
		}
	case "minio":
		if c.Storage.Endpoint == "" || c.Storage.Bucket == "" {
			problems = append(problems, "storage.endpoint and storage.bucket are required for the minio backend")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown storage.backend: %q (supported: local, minio)", c.Storage.Backend))
	}
	switch c.AI.Provider {
	case "", "claude", "anthropic", "openai", "gpt":
	default:
		problems = append(problems, fmt.Sprintf("unknown ai.provider: %q (supported: claude, openai)", c.AI.Provider))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}
