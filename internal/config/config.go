package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	INSi     INSiConfig     `mapstructure:"insi"`
	Policy   PolicyConfig   `mapstructure:"policy"`
	SMTP     SMTPConfig     `mapstructure:"smtp"`
	Worker   WorkerConfig   `mapstructure:"worker"`
}

type ServerConfig struct {
	Port           int `mapstructure:"port"`
	TimeoutSeconds int `mapstructure:"timeoutSeconds"`
}

type DatabaseConfig struct {
	Host                   string `mapstructure:"host"`
	Port                   int    `mapstructure:"port"`
	User                   string `mapstructure:"user"`
	Password               string `mapstructure:"password"`
	Name                   string `mapstructure:"name"`
	SSLMode                string `mapstructure:"sslmode"`
	MaxOpenConns           int    `mapstructure:"max_open_conns"`
	MaxIdleConns           int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `mapstructure:"conn_max_lifetime_minutes"`
}

type RedisConfig struct {
	URL          string `mapstructure:"url"`
	MaxRetries   int    `mapstructure:"max_retries"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpiryHours int    `mapstructure:"expiry_hours"`
}

// INSiConfig configures the national-identifier teleservice client. The
// remote service specifies no intrinsic timeout, so one is imposed here.
type INSiConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	APIKey     string        `mapstructure:"api_key"`
	Timeout    time.Duration `mapstructure:"timeout"`
	RequestTTL time.Duration `mapstructure:"request_ttl"`
}

// PolicyConfig supplies facility policy defaults used when no database row
// exists, plus the cache TTL of the policy provider.
type PolicyConfig struct {
	FacilityID          string        `mapstructure:"facility_id"`
	CacheTTL            time.Duration `mapstructure:"cache_ttl"`
	ProbableThreshold   int           `mapstructure:"probable_threshold"`
	PossibleFloor       int           `mapstructure:"possible_floor"`
	MinQualityScore     int           `mapstructure:"min_quality_score"`
	SimilarityThreshold float64       `mapstructure:"similarity_threshold"`
	DemoteToDoubtful    bool          `mapstructure:"demote_to_doubtful"`
}

type SMTPConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	From         string `mapstructure:"from"`
	VigilanceBox string `mapstructure:"vigilance_box"`
}

type WorkerConfig struct {
	OutboxBatchSize      int           `mapstructure:"outbox_batch_size"`
	OutboxPollInterval   time.Duration `mapstructure:"outbox_poll_interval"`
	OutboxRetryAttempts  int           `mapstructure:"outbox_retry_attempts"`
	OutboxRetryDelay     time.Duration `mapstructure:"outbox_retry_delay"`
	QualitySweepInterval time.Duration `mapstructure:"quality_sweep_interval"`
	ExpirySweepInterval  time.Duration `mapstructure:"expiry_sweep_interval"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.timeoutSeconds", 30)
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime_minutes", 30)
	viper.SetDefault("insi.timeout", 10*time.Second)
	viper.SetDefault("insi.request_ttl", 24*time.Hour)
	viper.SetDefault("policy.facility_id", "default")
	viper.SetDefault("policy.cache_ttl", 5*time.Minute)
	viper.SetDefault("policy.probable_threshold", 80)
	viper.SetDefault("policy.possible_floor", 50)
	viper.SetDefault("policy.min_quality_score", 40)
	viper.SetDefault("policy.similarity_threshold", 0.8)
	viper.SetDefault("policy.demote_to_doubtful", true)
	viper.SetDefault("worker.outbox_batch_size", 50)
	viper.SetDefault("worker.outbox_poll_interval", 5*time.Second)
	viper.SetDefault("worker.outbox_retry_attempts", 3)
	viper.SetDefault("worker.outbox_retry_delay", time.Second)
	viper.SetDefault("worker.quality_sweep_interval", time.Hour)
	viper.SetDefault("worker.expiry_sweep_interval", 15*time.Minute)
}
