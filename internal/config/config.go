package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type PostgresConfig struct {
	DSN             string
	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type StorageConfig struct {
	Endpoint        string
	AccessKey       string
	SecretKey       string
	BucketOriginals string
	BucketProcessed string
	UseSSL          bool
	Region          string
}

type SecurityConfig struct {
	JWTAccessSecret string
	JWTAccessTTL    time.Duration
	RefreshTokenTTL time.Duration
}

// AIConfig holds credentials and endpoints for the three external
// capabilities. Endpoints are configurable so tests can point the
// clients at a local httptest server.
type AIConfig struct {
	PhotoroomAPIKey   string
	PhotoroomEndpoint string
	GeminiAPIKey      string
	GeminiEndpoint    string
	GeminiModel       string
	StabilityAPIKey   string
	StabilityEndpoint string
	RequestTimeout    time.Duration
}

type PipelineConfig struct {
	// Posts stuck in processing longer than this are treated as
	// interrupted and marked failed by the reaper job.
	StaleRunThreshold time.Duration
	// Upper bound on how long the per-post run lock is held.
	RunLockTTL time.Duration
}

type AppConfig struct {
	Environment      string
	HTTP             HTTPConfig
	Postgres         PostgresConfig
	Redis            RedisConfig
	Storage          StorageConfig
	Security         SecurityConfig
	AI               AIConfig
	Pipeline         PipelineConfig
	AllowCORSOrigins []string
}

func Load() (*AppConfig, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")

	v.SetEnvPrefix("CRAFTBOOST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that every secret the process cannot run without is
// present and names the missing settings, so a bad deployment fails at
// startup instead of on the first pipeline run.
func (c *AppConfig) Validate() error {
	required := []struct {
		key   string
		value string
	}{
		{"postgres.dsn", c.Postgres.DSN},
		{"storage.accesskey", c.Storage.AccessKey},
		{"storage.secretkey", c.Storage.SecretKey},
		{"security.jwtaccesssecret", c.Security.JWTAccessSecret},
		{"ai.photoroomapikey", c.AI.PhotoroomAPIKey},
		{"ai.geminiapikey", c.AI.GeminiAPIKey},
		{"ai.stabilityapikey", c.AI.StabilityAPIKey},
	}

	var missing []string
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			missing = append(missing, r.key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.readtimeout", "30s")
	v.SetDefault("http.writetimeout", "120s") // a pipeline run blocks the response
	v.SetDefault("http.idletimeout", "60s")

	// Secrets default to empty strings so AutomaticEnv binds them; viper
	// only maps env vars onto keys it already knows about.
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.maxopen", 30)
	v.SetDefault("postgres.maxidle", 10)
	v.SetDefault("postgres.connmaxlifetime", "30m")

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("storage.endpoint", "127.0.0.1:9000")
	v.SetDefault("storage.accesskey", "")
	v.SetDefault("storage.secretkey", "")
	v.SetDefault("storage.bucketoriginals", "craftboost-originals")
	v.SetDefault("storage.bucketprocessed", "craftboost-processed")
	v.SetDefault("storage.usessl", false)
	v.SetDefault("storage.region", "us-east-1")

	v.SetDefault("security.jwtaccesssecret", "")
	v.SetDefault("security.jwtaccessttl", "15m")
	v.SetDefault("security.refreshtokenttl", "720h") // 30 days

	v.SetDefault("ai.photoroomapikey", "")
	v.SetDefault("ai.photoroomendpoint", "https://sdk.photoroom.com/v1/segment")
	v.SetDefault("ai.geminiapikey", "")
	v.SetDefault("ai.geminiendpoint", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("ai.geminimodel", "gemini-2.0-flash")
	v.SetDefault("ai.stabilityapikey", "")
	v.SetDefault("ai.stabilityendpoint", "https://api.stability.ai/v2beta/stable-image/edit/search-and-replace")
	v.SetDefault("ai.requesttimeout", "60s")

	v.SetDefault("pipeline.stalerunthreshold", "15m")
	v.SetDefault("pipeline.runlockttl", "5m")
}
