// Package config содержит логику чтения конфигурации клиента записи в салон.
package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Режимы сборки клиента.
const (
	ModeDevelopment = "development"
	ModeProduction  = "production"
)

// Адреса бэкенда по умолчанию для каждого режима.
const (
	DevelopmentAPIURL = "http://localhost:3001"
	ProductionAPIURL  = "https://api.beautybook.app"
)

const (
	defaultRunAddress = "localhost:8090"
	defaultTokenFile  = ".salon-session.json"
)

// Timings содержит интервалы и лимиты загрузки данных.
type Timings struct {
	LoadDebounce           time.Duration `env:"LOAD_DEBOUNCE" envDefault:"3s"`
	CacheTTL               time.Duration `env:"CACHE_TTL" envDefault:"30s"`
	InterCallDelay         time.Duration `env:"INTER_CALL_DELAY" envDefault:"2s"`
	TooManyRequestsBackoff time.Duration `env:"TOO_MANY_REQUESTS_BACKOFF" envDefault:"5s"`
	BootstrapDelay         time.Duration `env:"BOOTSTRAP_DELAY" envDefault:"500ms"`
	RateLimitWindow        time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"60s"`
	RateLimitMax           int           `env:"RATE_LIMIT_MAX" envDefault:"25"`
	RequestTimeout         time.Duration `env:"REQUEST_TIMEOUT" envDefault:"15s"`
	AutoRefreshInterval    time.Duration `env:"AUTO_REFRESH_INTERVAL" envDefault:"0s"`
}

// Config содержит параметры конфигурации клиента.
type Config struct {
	RunAddress  string `env:"RUN_ADDRESS"`
	Mode        string `env:"APP_MODE"`
	APIBaseURL  string `env:"API_BASE_URL"`
	TokenFile   string `env:"TOKEN_FILE"`
	DatabaseURI string `env:"DATABASE_URI"`
	AccessKey   string `env:"ACCESS_KEY"`

	Timings
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envMode := cfg.Mode
	envAPIBaseURL := cfg.APIBaseURL
	envTokenFile := cfg.TokenFile
	envDatabaseURI := cfg.DatabaseURI
	envAccessKey := cfg.AccessKey

	flag.StringVar(&cfg.RunAddress, "a", defaultRunAddress, "address and port of the local state API")
	flag.StringVar(&cfg.Mode, "m", ModeDevelopment, "build mode: development or production")
	flag.StringVar(&cfg.APIBaseURL, "b", "", "backend base URL, overrides the mode default")
	flag.StringVar(&cfg.TokenFile, "t", defaultTokenFile, "file for persisted session tokens")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI for persisted session tokens")
	flag.StringVar(&cfg.AccessKey, "k", "", "shared key required by the local state API")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envMode != "" {
		cfg.Mode = envMode
	}
	if envAPIBaseURL != "" {
		cfg.APIBaseURL = envAPIBaseURL
	}
	if envTokenFile != "" {
		cfg.TokenFile = envTokenFile
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envAccessKey != "" {
		cfg.AccessKey = envAccessKey
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = defaultRunAddress
	}

	switch cfg.Mode {
	case ModeDevelopment, ModeProduction:
	default:
		return nil, fmt.Errorf("unknown mode %q", cfg.Mode)
	}

	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = DevelopmentAPIURL
		if cfg.Mode == ModeProduction {
			cfg.APIBaseURL = ProductionAPIURL
		}
	}

	if cfg.RateLimitMax <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_MAX must be positive, got %d", cfg.RateLimitMax)
	}

	return cfg, nil
}

// Production сообщает, что клиент собран для продакшена.
func (c *Config) Production() bool {
	return c.Mode == ModeProduction
}
