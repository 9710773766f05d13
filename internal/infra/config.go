package infra

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"crypto_dash/internal/domain"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultUserAgent is a browser-like user agent string to avoid bot detection
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	DefaultCoinGeckoURL = "https://api.coingecko.com/api/v3"
)

// Config는 애플리케이션의 모든 설정을 담습니다.
// LoadConfig로 로드된 후에 환경 변수를 통해 민감 내용을 덮어씁니다.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	API struct {
		CoinGecko struct {
			BaseURL         string  `yaml:"base_url"`
			APIKey          string  `yaml:"api_key"`
			VsCurrency      string  `yaml:"vs_currency"`
			TimeoutSec      int     `yaml:"timeout_sec"`
			RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
			RateLimitBurst  int     `yaml:"rate_limit_burst"`
			MaxRetries      int     `yaml:"max_retries"`
		} `yaml:"coingecko"`
	} `yaml:"api"`

	Refresh struct {
		IntervalMS          int `yaml:"interval_ms"`
		ListingSize         int `yaml:"listing_size"`
		UniverseSize        int `yaml:"universe_size"`
		MoversCount         int `yaml:"movers_count"`
		ChartDays           int `yaml:"chart_days"`
		ChartPollIntervalMS int `yaml:"chart_poll_interval_ms"`
	} `yaml:"refresh"`

	Storage struct {
		Path      string `yaml:"path"`
		IconsDir  string `yaml:"icons_dir"`
		SyncIcons bool   `yaml:"sync_icons"`
	} `yaml:"storage"`

	Server struct {
		Addr      string `yaml:"addr"`
		PprofAddr string `yaml:"pprof_addr"`
	} `yaml:"server"`

	UI struct {
		Theme string `yaml:"theme"`
	} `yaml:"ui"`

	Logging struct {
		Level string `yaml:"level"`
		Dir   string `yaml:"dir"`
	} `yaml:"logging"`
}

// DefaultConfig returns the settings used when no config file is present.
func DefaultConfig() *Config {
	var cfg Config
	cfg.App.Name = "crypto_dash"
	cfg.App.Version = "dev"
	cfg.API.CoinGecko.BaseURL = DefaultCoinGeckoURL
	cfg.API.CoinGecko.VsCurrency = "usd"
	cfg.API.CoinGecko.TimeoutSec = 10
	cfg.API.CoinGecko.RateLimitPerSec = 0.5
	cfg.API.CoinGecko.RateLimitBurst = 3
	cfg.API.CoinGecko.MaxRetries = 2
	cfg.Refresh.IntervalMS = 300000 // 5분
	cfg.Refresh.ListingSize = 50
	cfg.Refresh.UniverseSize = 100
	cfg.Refresh.MoversCount = 5
	cfg.Refresh.ChartDays = 7
	cfg.Refresh.ChartPollIntervalMS = 60000
	cfg.Storage.Path = "data/crypto_dash.db"
	cfg.Storage.IconsDir = "data/icons"
	cfg.Server.Addr = "localhost:8080"
	cfg.Server.PprofAddr = "localhost:6060"
	cfg.UI.Theme = "dark"
	cfg.Logging.Level = "info"
	cfg.Logging.Dir = "logs"
	return &cfg
}

// LoadConfig는 설정 파일을 읽고 파싱합니다.
// A missing file yields DefaultConfig; .env is loaded before env overrides apply.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// defaults only
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, &domain.ConfigError{Field: path, Err: err}
		}
	}

	// .env never overrides variables already present in the environment
	_ = godotenv.Load()

	// 4원칙: 보안 우선 - 환경 변수 오버라이드 지원
	overrideWithEnv(cfg)

	// 5원칙: 설정 유효성 검사
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	cg := c.API.CoinGecko
	if !strings.HasPrefix(cg.BaseURL, "http://") && !strings.HasPrefix(cg.BaseURL, "https://") {
		return &domain.ConfigError{Field: "api.coingecko.base_url", Err: fmt.Errorf("invalid URL %q", cg.BaseURL)}
	}
	if cg.RateLimitPerSec <= 0 {
		return &domain.ConfigError{Field: "api.coingecko.rate_limit_per_sec", Err: errors.New("must be positive")}
	}
	if cg.MaxRetries < 0 {
		return &domain.ConfigError{Field: "api.coingecko.max_retries", Err: errors.New("must not be negative")}
	}

	if c.Refresh.IntervalMS <= 0 {
		return &domain.ConfigError{Field: "refresh.interval_ms", Err: errors.New("must be positive")}
	}
	if c.Refresh.ListingSize <= 0 || c.Refresh.UniverseSize <= 0 {
		return &domain.ConfigError{Field: "refresh", Err: errors.New("listing and universe sizes must be positive")}
	}
	if c.Refresh.MoversCount <= 0 {
		return &domain.ConfigError{Field: "refresh.movers_count", Err: errors.New("must be positive")}
	}
	if c.Refresh.ChartDays <= 0 {
		return &domain.ConfigError{Field: "refresh.chart_days", Err: errors.New("must be positive")}
	}

	return nil
}

// overrideWithEnv는 환경 변수가 존재할 경우 설정 값을 덮어씁니다.
func overrideWithEnv(cfg *Config) {
	if key := os.Getenv("CRYPTO_COINGECKO_KEY"); key != "" {
		cfg.API.CoinGecko.APIKey = key
	}
	if url := os.Getenv("CRYPTO_COINGECKO_URL"); url != "" {
		cfg.API.CoinGecko.BaseURL = url
	}
	if path := os.Getenv("CRYPTO_DB_PATH"); path != "" {
		cfg.Storage.Path = path
	}
	if addr := os.Getenv("CRYPTO_HTTP_ADDR"); addr != "" {
		cfg.Server.Addr = addr
	}
	if level := os.Getenv("CRYPTO_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
}
