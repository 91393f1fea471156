package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the service
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	CORS     CORSConfig
	FBR      FBRConfig
	Storage  StorageConfig
	Redis    RedisConfig
	LogLevel string
}

type ServerConfig struct {
	Port    string
	Release bool // GIN_MODE=release
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// DSN builds the postgres connection string
func (d DatabaseConfig) DSN() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.Name + "?sslmode=" + d.SSLMode
}

// AuthConfig is handed to the authenticator at construction time.
type AuthConfig struct {
	JWTSecret          string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	AccessCookieName   string
	RefreshCookieName  string
	CookieSecure       bool
	CookieSameSiteNone bool
}

type CORSConfig struct {
	AllowedOrigins []string
}

type FBRConfig struct {
	BaseURL         string
	RegistrationURL string
	Sandbox         bool
	Timeout         time.Duration
}

type StorageConfig struct {
	Type           string // "local", "s3" or "gcs"
	LocalBaseDir   string
	LocalPublicURL string
	S3Endpoint     string
	S3Bucket       string
	S3Region       string
	S3AccessKey    string
	S3SecretKey    string
	S3PublicURL    string
	GCSBucket      string
}

type RedisConfig struct {
	Addr            string
	Password        string
	DB              int
	RegistrationTTL time.Duration
}

const devJWTSecret = "default_super_secret_key"

// Load reads configs/.env (then .env) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")
	_ = godotenv.Load()

	release := os.Getenv("GIN_MODE") == "release"
	hosted := os.Getenv("RENDER") != ""

	cfg := &Config{
		Server: ServerConfig{
			Port:    getEnvOrDefault("PORT", "8080"),
			Release: release,
		},
		Database: DatabaseConfig{
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getEnvOrDefault("DB_PORT", "5432"),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: getEnvOrDefault("DB_PASSWORD", "postgres"),
			Name:     getEnvOrDefault("DB_NAME", "postgres"),
			SSLMode:  getEnvOrDefault("DB_SSLMODE", "disable"),
		},
		Auth: AuthConfig{
			JWTSecret:          os.Getenv("JWT_SECRET"),
			AccessTokenTTL:     getDurationOrDefault("JWT_ACCESS_TTL", 24*time.Hour),
			RefreshTokenTTL:    getDurationOrDefault("JWT_REFRESH_TTL", 7*24*time.Hour),
			AccessCookieName:   getEnvOrDefault("AUTH_ACCESS_COOKIE", "access_token"),
			RefreshCookieName:  getEnvOrDefault("AUTH_REFRESH_COOKIE", "refresh_token"),
			CookieSecure:       release || hosted,
			CookieSameSiteNone: release || hosted,
		},
		CORS: CORSConfig{
			AllowedOrigins: parseCommaSeparated(getEnvOrDefault("CORS_ALLOWED_ORIGINS", "http://localhost:5173,http://127.0.0.1:5173,http://localhost:3000")),
		},
		FBR: FBRConfig{
			BaseURL:         getEnvOrDefault("FBR_BASE_URL", "https://gw.fbr.gov.pk/di_data/v1/di"),
			RegistrationURL: getEnvOrDefault("FBR_REGISTRATION_URL", "https://gw.fbr.gov.pk/dist/v1/Get_Reg_Type"),
			Sandbox:         getBoolOrDefault("FBR_SANDBOX", true),
			Timeout:         getDurationOrDefault("FBR_TIMEOUT", 30*time.Second),
		},
		Storage: StorageConfig{
			Type:           getEnvOrDefault("STORAGE_TYPE", "local"),
			LocalBaseDir:   getEnvOrDefault("STORAGE_LOCAL_BASE_DIR", "./uploads"),
			LocalPublicURL: getEnvOrDefault("STORAGE_LOCAL_PUBLIC_URL", "/uploads"),
			S3Endpoint:     os.Getenv("STORAGE_S3_ENDPOINT"),
			S3Bucket:       getEnvOrDefault("STORAGE_S3_BUCKET", "invoice-uploads"),
			S3Region:       getEnvOrDefault("STORAGE_S3_REGION", "us-east-1"),
			S3AccessKey:    os.Getenv("STORAGE_S3_ACCESS_KEY"),
			S3SecretKey:    os.Getenv("STORAGE_S3_SECRET_KEY"),
			S3PublicURL:    os.Getenv("STORAGE_S3_PUBLIC_URL"),
			GCSBucket:      os.Getenv("STORAGE_GCS_BUCKET"),
		},
		Redis: RedisConfig{
			Addr:            os.Getenv("REDIS_ADDR"),
			Password:        os.Getenv("REDIS_PASSWORD"),
			DB:              getIntOrDefault("REDIS_DB", 0),
			RegistrationTTL: getDurationOrDefault("REGISTRATION_CACHE_TTL", 12*time.Hour),
		},
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
	}

	if cfg.Auth.JWTSecret == "" {
		if release {
			return nil, errors.New("JWT_SECRET environment variable is required in release mode")
		}
		cfg.Auth.JWTSecret = devJWTSecret
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the loaded values are usable
func (c *Config) Validate() error {
	switch c.Storage.Type {
	case "local", "s3", "gcs":
	default:
		return fmt.Errorf("unsupported STORAGE_TYPE %q", c.Storage.Type)
	}
	if c.Storage.Type == "gcs" && c.Storage.GCSBucket == "" {
		return errors.New("STORAGE_GCS_BUCKET is required when STORAGE_TYPE=gcs")
	}
	if c.Auth.AccessTokenTTL <= 0 || c.Auth.RefreshTokenTTL <= 0 {
		return errors.New("token TTLs must be positive")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func parseCommaSeparated(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
