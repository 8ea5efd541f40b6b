package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env        string           `json:"env"`
	Http       HttpConfig       `json:"http"`
	Postgres   PostgresConfig   `json:"postgres"`
	Redis      RedisConfig      `json:"redis"`
	Auth       AuthConfig       `json:"auth"`
	CORS       CORSConfig       `json:"cors"`
	Media      MediaConfig      `json:"media"`
	Classifier ClassifierConfig `json:"classifier"`
	SMS        SMSConfig        `json:"sms"`
	Hospital   HospitalConfig   `json:"hospital"`
	Sweeper    SweeperConfig    `json:"sweeper"`
	Stats      StatsConfig      `json:"stats"`
}

type HttpConfig struct {
	Port            string        `json:"port"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	RateLimitRPS    float64       `json:"rate_limit_rps"`
	RateLimitBurst  int           `json:"rate_limit_burst"`
}

type PostgresConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Database string `json:"database"`
	User     string `json:"user"`
	Password string `json:"password,omitempty"`
	SSLMode  string `json:"ssl_mode"`

	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password,omitempty"`
	DB       int    `json:"db"`
}

type AuthConfig struct {
	JWTSecret     string        `json:"-"`
	TokenTTL      time.Duration `json:"token_ttl"`
	AdminEmail    string        `json:"admin_email"`
	AdminPassword string        `json:"-"`
}

type CORSConfig struct {
	AllowedOrigins []string `json:"allowed_origins"`
}

type MediaConfig struct {
	Backend   string `json:"backend"`
	UploadDir string `json:"upload_dir"`
	S3        S3Config
}

type S3Config struct {
	Bucket    string `json:"bucket"`
	Region    string `json:"region"`
	Endpoint  string `json:"endpoint"`
	PathStyle bool   `json:"path_style"`
}

type ClassifierConfig struct {
	URL     string        `json:"url"`
	Timeout time.Duration `json:"timeout"`
}

type SMSConfig struct {
	Provider    string        `json:"provider"`
	CountryCode string        `json:"country_code"`
	SendTimeout time.Duration `json:"send_timeout"`
	MaxAttempts int           `json:"max_attempts"`
	QueueKey    string        `json:"queue_key"`
	Twilio      TwilioConfig  `json:"-"`
	Kavenegar   KavenegarConfig
}

type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	From       string
}

type KavenegarConfig struct {
	APIKey string `json:"-"`
	Sender string `json:"sender"`
}

type HospitalConfig struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type SweeperConfig struct {
	Spec     string        `json:"spec"`
	StaleAge time.Duration `json:"stale_age"`
	Batch    int           `json:"batch"`
	Disabled bool          `json:"disabled"`
}

type StatsConfig struct {
	CacheTTL time.Duration `json:"cache_ttl"`
}

func Load() (*Config, error) {
	stdLogger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		stdLogger.Warn(".env load warning", slog.Any("error", err))
	}

	cfg := &Config{
		Env: getEnv("ENV", "local"),
		Http: HttpConfig{
			Port:            getEnv("HTTP_PORT", ":8080"),
			ReadTimeout:     getEnvDuration("HTTP_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvDuration("HTTP_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvDuration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
			RateLimitRPS:    getEnvFloat("HTTP_RATE_LIMIT_RPS", 10),
			RateLimitBurst:  getEnvInt("HTTP_RATE_LIMIT_BURST", 20),
		},
		Postgres: PostgresConfig{
			Host:            getEnv("POSTGRES_HOST", "pg-local"),
			Port:            getEnvInt("POSTGRES_PORT", 5432),
			Database:        getEnv("POSTGRES_DB", "road_accident"),
			User:            getEnv("POSTGRES_USER", "postgres"),
			Password:        getEnv("POSTGRES_PASSWORD", "postgres"),
			SSLMode:         getEnv("POSTGRES_SSL_MODE", "disable"),
			MaxConns:        int32(getEnvInt("POSTGRES_MAX_CONNS", 20)),
			MinConns:        1,
			MaxConnLifetime: 1 * time.Hour,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "redis-local:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			JWTSecret:     getEnv("JWT_SECRET", ""),
			TokenTTL:      getEnvDuration("JWT_TTL", 24*time.Hour),
			AdminEmail:    getEnv("ADMIN_EMAIL", "admin@example.com"),
			AdminPassword: getEnv("ADMIN_PASSWORD", ""),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvList("CORS_ORIGINS", []string{"http://localhost:3000"}),
		},
		Media: MediaConfig{
			Backend:   getEnv("MEDIA_BACKEND", "local"),
			UploadDir: getEnv("UPLOAD_DIR", "uploads"),
			S3: S3Config{
				Bucket:    getEnv("S3_BUCKET", ""),
				Region:    getEnv("S3_REGION", "us-east-1"),
				Endpoint:  getEnv("S3_ENDPOINT", ""),
				PathStyle: getEnvBool("S3_PATH_STYLE", false),
			},
		},
		Classifier: ClassifierConfig{
			URL:     getEnv("CLASSIFIER_URL", "http://classifier-local:8000/predict"),
			Timeout: getEnvDuration("CLASSIFIER_TIMEOUT", 20*time.Second),
		},
		SMS: SMSConfig{
			Provider:    strings.ToLower(getEnv("SMS_PROVIDER", "log")),
			CountryCode: getEnv("PHONE_COUNTRY_CODE", "91"),
			SendTimeout: getEnvDuration("SMS_SEND_TIMEOUT", 10*time.Second),
			MaxAttempts: getEnvInt("SMS_MAX_ATTEMPTS", 3),
			QueueKey:    getEnv("SMS_QUEUE_KEY", "sms:queue"),
			Twilio: TwilioConfig{
				AccountSID: getEnv("TWILIO_ACCOUNT_SID", ""),
				AuthToken:  getEnv("TWILIO_AUTH_TOKEN", ""),
				From:       getEnv("TWILIO_PHONE_NUMBER", ""),
			},
			Kavenegar: KavenegarConfig{
				APIKey: getEnv("KAVENEGAR_API_KEY", ""),
				Sender: getEnv("KAVENEGAR_SENDER", ""),
			},
		},
		Hospital: HospitalConfig{
			Name:      getEnv("HOSPITAL_NAME", "Nearest Hospital"),
			Latitude:  getEnvFloat("HOSPITAL_LAT", 12.9716),
			Longitude: getEnvFloat("HOSPITAL_LON", 77.5946),
		},
		Sweeper: SweeperConfig{
			Spec:     getEnv("SMS_SWEEP_SPEC", "0 * * * * *"),
			StaleAge: getEnvDuration("SMS_SWEEP_STALE_AGE", 5*time.Minute),
			Batch:    getEnvInt("SMS_SWEEP_BATCH", 50),
			Disabled: getEnvBool("SMS_SWEEP_DISABLED", false),
		},
		Stats: StatsConfig{
			CacheTTL: getEnvDuration("STATS_CACHE_TTL", 30*time.Second),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	stdLogger.Info("Config loaded successfully",
		slog.String("env", cfg.Env),
		slog.String("http_port", cfg.Http.Port),
		slog.String("postgres_db", cfg.Postgres.Database),
		slog.String("redis_addr", cfg.Redis.Addr),
		slog.String("media_backend", cfg.Media.Backend),
		slog.String("sms_provider", cfg.SMS.Provider))

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Http.Port == "" || c.Http.Port[0] != ':' {
		return errors.New("HTTP_PORT must start with ':' like ':8080'")
	}
	if c.Postgres.Host == "" {
		return errors.New("POSTGRES_HOST required")
	}
	if len(c.Auth.JWTSecret) < 16 {
		return errors.New("JWT_SECRET must be at least 16 characters")
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("JWT_TTL must be positive")
	}
	if c.Classifier.URL == "" {
		return errors.New("CLASSIFIER_URL required")
	}

	switch c.Media.Backend {
	case "local":
		if c.Media.UploadDir == "" {
			return errors.New("UPLOAD_DIR required for local media backend")
		}
	case "s3":
		if c.Media.S3.Bucket == "" {
			return errors.New("S3_BUCKET required for s3 media backend")
		}
	default:
		return fmt.Errorf("MEDIA_BACKEND must be local or s3, got %q", c.Media.Backend)
	}

	switch c.SMS.Provider {
	case "log":
	case "twilio":
		if c.SMS.Twilio.AccountSID == "" || c.SMS.Twilio.AuthToken == "" || c.SMS.Twilio.From == "" {
			return errors.New("TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and TWILIO_PHONE_NUMBER required")
		}
	case "kavenegar":
		if c.SMS.Kavenegar.APIKey == "" {
			return errors.New("KAVENEGAR_API_KEY required")
		}
	default:
		return fmt.Errorf("SMS_PROVIDER must be log, twilio or kavenegar, got %q", c.SMS.Provider)
	}
	if c.SMS.MaxAttempts < 1 {
		return errors.New("SMS_MAX_ATTEMPTS must be at least 1")
	}

	if c.Hospital.Latitude < -90 || c.Hospital.Latitude > 90 ||
		c.Hospital.Longitude < -180 || c.Hospital.Longitude > 180 {
		return errors.New("HOSPITAL_LAT/HOSPITAL_LON out of range")
	}

	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getEnvList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
