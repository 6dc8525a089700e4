package gerbango

import (
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config carries environment-driven client configuration. Every field maps
// to a GERBANGO_* environment variable, e.g. GERBANGO_BASE_URL and
// GERBANGO_CACHE_TTL. Durations use Go syntax ("500ms", "2m").
type Config struct {
	BaseURL string `mapstructure:"base_url"`
	Token   string `mapstructure:"token"`

	HTTPTimeout time.Duration `mapstructure:"http_timeout"`

	RateLimitCapacity int           `mapstructure:"rate_limit_capacity"`
	RateLimitRefill   float64       `mapstructure:"rate_limit_refill"`
	RateLimitMaxWait  time.Duration `mapstructure:"rate_limit_max_wait"`

	MaxAttempts    int           `mapstructure:"max_attempts"`
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay"`
	RetryMaxDelay  time.Duration `mapstructure:"retry_max_delay"`
	RetryJitter    float64       `mapstructure:"retry_jitter"`

	CacheEnabled   bool          `mapstructure:"cache_enabled"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl"`
	CacheNamespace string        `mapstructure:"cache_namespace"`

	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`

	CircuitBreakerEnabled          bool          `mapstructure:"circuit_breaker_enabled"`
	CircuitBreakerFailureThreshold int           `mapstructure:"circuit_breaker_failure_threshold"`
	CircuitBreakerRecoveryTimeout  time.Duration `mapstructure:"circuit_breaker_recovery_timeout"`
	CircuitBreakerSuccessThreshold int           `mapstructure:"circuit_breaker_success_threshold"`

	Deduplication bool `mapstructure:"deduplication"`
	Metrics       bool `mapstructure:"metrics"`
	Debug         bool `mapstructure:"debug"`
}

// LoadConfig reads configuration from the environment with the GERBANGO_
// prefix. A .env file in the working directory is merged in first when
// present; a missing file is not an error.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("GERBANGO")
	v.AutomaticEnv()

	v.SetDefault("http_timeout", 30*time.Second)
	v.SetDefault("rate_limit_capacity", 0)
	v.SetDefault("rate_limit_refill", 0.0)
	v.SetDefault("rate_limit_max_wait", time.Duration(0))
	v.SetDefault("max_attempts", DefaultMaxAttempts)
	v.SetDefault("retry_base_delay", DefaultBaseDelay)
	v.SetDefault("retry_max_delay", DefaultMaxDelay)
	v.SetDefault("retry_jitter", DefaultJitterFraction)
	v.SetDefault("cache_enabled", false)
	v.SetDefault("cache_ttl", DefaultCacheTTL)
	v.SetDefault("cache_namespace", DefaultCacheNamespace)
	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("circuit_breaker_enabled", false)
	v.SetDefault("circuit_breaker_failure_threshold", 5)
	v.SetDefault("circuit_breaker_recovery_timeout", 60*time.Second)
	v.SetDefault("circuit_breaker_success_threshold", 2)
	v.SetDefault("deduplication", false)
	v.SetDefault("metrics", false)
	v.SetDefault("debug", false)

	// AutomaticEnv alone does not surface env-only keys through Unmarshal;
	// binding each key explicitly does.
	for _, key := range []string{
		"base_url", "token", "http_timeout",
		"rate_limit_capacity", "rate_limit_refill", "rate_limit_max_wait",
		"max_attempts", "retry_base_delay", "retry_max_delay", "retry_jitter",
		"cache_enabled", "cache_ttl", "cache_namespace",
		"redis_addr", "redis_password", "redis_db",
		"circuit_breaker_enabled", "circuit_breaker_failure_threshold",
		"circuit_breaker_recovery_timeout", "circuit_breaker_success_threshold",
		"deduplication", "metrics", "debug",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Options translates the config into functional options for New. Operations
// are code, not configuration, so callers append WithOperations themselves.
func (cfg *Config) Options() []Option {
	options := []Option{
		WithUpstream(cfg.BaseURL, cfg.Token),
		WithMaxAttempts(cfg.MaxAttempts),
		WithRetryBaseDelay(cfg.RetryBaseDelay),
		WithRetryMaxDelay(cfg.RetryMaxDelay),
		WithRetryJitter(cfg.RetryJitter),
	}

	if cfg.HTTPTimeout > 0 {
		options = append(options, WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}))
	}

	if cfg.RateLimitCapacity > 0 {
		options = append(options, WithRateLimiter(cfg.RateLimitCapacity, cfg.RateLimitRefill))
		if cfg.RateLimitMaxWait > 0 {
			options = append(options, WithRateLimiterMaxWait(cfg.RateLimitMaxWait))
		}
	}

	if cfg.RedisAddr != "" {
		store := NewRedisStore(RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		options = append(options, WithCacheStore(store))
	} else if cfg.CacheEnabled {
		options = append(options, WithCache(cfg.CacheTTL))
	}
	if cfg.CacheNamespace != "" && cfg.CacheNamespace != DefaultCacheNamespace {
		options = append(options, WithCacheNamespace(cfg.CacheNamespace))
	}

	if cfg.CircuitBreakerEnabled {
		options = append(options, WithCircuitBreaker(CircuitBreakerConfig{
			FailureThreshold: cfg.CircuitBreakerFailureThreshold,
			RecoveryTimeout:  cfg.CircuitBreakerRecoveryTimeout,
			SuccessThreshold: cfg.CircuitBreakerSuccessThreshold,
		}))
	}

	if cfg.Deduplication {
		options = append(options, WithDeduplication())
	}
	if cfg.Metrics {
		options = append(options, WithMetrics())
	}
	if cfg.Debug {
		options = append(options, WithDebug())
	}

	return options
}
