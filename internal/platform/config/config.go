package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/lueurxax/feedpulse/internal/core/domain"
	apperrors "github.com/lueurxax/feedpulse/internal/core/errors"
)

const hoursPerDay = 24

// Base is the configuration shared by the service and the operator CLI.
type Base struct {
	AppEnv              string        `env:"APP_ENV" envDefault:"local"`
	PostgresDSN         string        `env:"POSTGRES_DSN,required"`
	DBMaxConnections    int32         `env:"DB_MAX_CONNECTIONS" envDefault:"25"`
	DBMinConnections    int32         `env:"DB_MIN_CONNECTIONS" envDefault:"2"`
	DBMaxConnIdleTime   time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"30m"`
	DBMaxConnLifetime   time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"1h"`
	DBHealthCheckPeriod time.Duration `env:"DB_HEALTH_CHECK_PERIOD" envDefault:"1m"`

	// Credential vault
	VaultKeys          string `env:"VAULT_KEYS,required"`
	VaultActiveVersion int    `env:"VAULT_ACTIVE_VERSION" envDefault:"1"`
}

type Config struct {
	Base

	HealthPort int `env:"HEALTH_PORT" envDefault:"8080"`

	// Telegram MTProto
	TGAPIID          int     `env:"TG_API_ID,required"`
	TGAPIHash        string  `env:"TG_API_HASH,required"`
	RateLimitRPS     float64 `env:"RATE_LIMIT_RPS" envDefault:"1"`
	ReaderFetchLimit int     `env:"READER_FETCH_LIMIT" envDefault:"100"`

	// Object storage
	SupabaseURL       string        `env:"SUPABASE_URL"`
	SupabaseKey       string        `env:"SUPABASE_KEY"`
	SupabaseBucket    string        `env:"SUPABASE_BUCKET" envDefault:"media"`
	StorageTimeout    time.Duration `env:"STORAGE_TIMEOUT" envDefault:"60s"`
	StorageUploadRPS  float64       `env:"STORAGE_UPLOAD_RPS" envDefault:"5"`
	MediaMaxSizeBytes int64         `env:"MEDIA_MAX_SIZE_BYTES" envDefault:"20971520"`

	// Poller
	PollInterval          time.Duration `env:"POLL_INTERVAL" envDefault:"60s"`
	PollerWorkers         int           `env:"POLLER_WORKERS" envDefault:"2"`
	FloodWaitMaxBackoff   time.Duration `env:"FLOOD_WAIT_MAX_BACKOFF" envDefault:"1h"`
	FloodWaitMaxAttempts  int           `env:"FLOOD_WAIT_MAX_ATTEMPTS" envDefault:"0"`
	AccountConnectTimeout time.Duration `env:"ACCOUNT_CONNECT_TIMEOUT" envDefault:"30s"`

	// Clustering and ranking
	TopicInterval       time.Duration `env:"TOPIC_INTERVAL" envDefault:"3600s"`
	RankingInterval     time.Duration `env:"RANKING_INTERVAL" envDefault:"600s"`
	SimilarityThreshold float64       `env:"SIMILARITY_THRESHOLD" envDefault:"0.3"`
	ClusterLookback     time.Duration `env:"CLUSTER_LOOKBACK" envDefault:"24h"`
	RankingWindows      string        `env:"RANKING_WINDOWS" envDefault:"24h,7d"`
	JobTimeout          time.Duration `env:"JOB_TIMEOUT" envDefault:"15m"`
	JobLockingEnabled   bool          `env:"JOB_LOCKING_ENABLED" envDefault:"true"`
}

func Load() (*Config, error) {
	_ = godotenv.Load() //nolint:errcheck // .env file is optional, error is expected when not present

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadBase reads only the database and vault settings.
func LoadBase() (*Base, error) {
	_ = godotenv.Load() //nolint:errcheck // .env file is optional, error is expected when not present

	cfg := &Base{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment config: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.SimilarityThreshold <= 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("%w: SIMILARITY_THRESHOLD must be within (0,1], got %v", apperrors.ErrInvalidInput, c.SimilarityThreshold)
	}

	if c.TopicInterval <= 0 || c.RankingInterval <= 0 || c.PollInterval <= 0 {
		return fmt.Errorf("%w: job intervals must be positive", apperrors.ErrInvalidInput)
	}

	if _, err := c.Windows(); err != nil {
		return err
	}

	return nil
}

// Windows parses RankingWindows into ranking windows ordered by span.
func (c *Config) Windows() ([]domain.Window, error) {
	return ParseWindows(c.RankingWindows)
}

// MediaEnabled reports whether object storage is configured.
func (c *Config) MediaEnabled() bool {
	return c.SupabaseURL != "" && c.SupabaseKey != ""
}

// ParseWindows parses a comma separated list such as "24h,7d".
// Day suffixes are accepted in addition to time.ParseDuration units.
func ParseWindows(s string) ([]domain.Window, error) {
	var windows []domain.Window

	seen := make(map[string]struct{})

	for _, part := range strings.Split(s, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}

		if _, ok := seen[name]; ok {
			continue
		}

		span, err := parseSpan(name)
		if err != nil {
			return nil, err
		}

		seen[name] = struct{}{}
		windows = append(windows, domain.Window{Name: name, Span: span})
	}

	if len(windows) == 0 {
		return nil, fmt.Errorf("%w: RANKING_WINDOWS is empty", apperrors.ErrInvalidInput)
	}

	sort.SliceStable(windows, func(i, j int) bool { return windows[i].Span < windows[j].Span })

	return windows, nil
}

func parseSpan(name string) (time.Duration, error) {
	if days, ok := strings.CutSuffix(name, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("%w: window %q", apperrors.ErrInvalidInput, name)
		}

		return time.Duration(n) * hoursPerDay * time.Hour, nil
	}

	d, err := time.ParseDuration(name)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%w: window %q", apperrors.ErrInvalidInput, name)
	}

	return d, nil
}
