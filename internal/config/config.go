package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type LogConfig struct {
	Level     string
	Format    string
	Component string
	Source    bool
}

type DBConfig struct {
	Driver   string // mysql | postgres | sqlite
	DSN      string
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type HTTPConfig struct {
	Host        string
	Port        string
	CORSOrigins []string
}

type GRPCConfig struct {
	Host string
	Port string
}

type JWTConfig struct {
	Secret string
	TTL    time.Duration
}

// ReaperConfig drives the inactivity sweep. NotifyAfter must be shorter
// than DeleteAfter.
type ReaperConfig struct {
	Enabled     bool
	Interval    time.Duration
	NotifyAfter time.Duration
	DeleteAfter time.Duration
	LeaseTTL    time.Duration
}

type StorageConfig struct {
	Driver     string // local | s3
	Dir        string
	URLPrefix  string
	S3Bucket   string
	S3Region   string
	S3Endpoint string
	AccessKey  string
	SecretKey  string
}

type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// AdminConfig is the operator account upserted by cmd/seed.
type AdminConfig struct {
	Email    string
	Password string
	Name     string
}

type Config struct {
	App struct {
		ENV string
	}

	Log     LogConfig
	DB      DBConfig
	Redis   RedisConfig
	HTTP    HTTPConfig
	GRPC    GRPCConfig
	JWT     JWTConfig
	Reaper  ReaperConfig
	Storage StorageConfig
	SMTP    SMTPConfig
	Admin   AdminConfig
}

// New loads configuration from an optional .env file in the working
// directory and the process environment. Environment wins over the file.
func New() *Config {
	return Load(".env")
}

// Load is New with an explicit dotenv path. A missing file is not an error.
func Load(envFile string) *Config {
	v := viper.New()
	setDefaults(v)

	if envFile != "" {
		v.SetConfigFile(envFile)
		v.SetConfigType("env")
		_ = v.ReadInConfig()
	}
	v.AutomaticEnv()

	cfg := &Config{}
	cfg.App.ENV = strings.ToLower(v.GetString("app_env"))

	// Logger
	cfg.Log.Level = v.GetString("log_level")
	cfg.Log.Format = v.GetString("log_format")
	cfg.Log.Component = v.GetString("log_component")
	cfg.Log.Source = isTruthy(v.GetString("log_source"))

	// Database
	cfg.DB.Driver = strings.ToLower(v.GetString("db_driver"))
	cfg.DB.Host = v.GetString("db_host")
	cfg.DB.Port = v.GetString("db_port")
	cfg.DB.User = v.GetString("db_user")
	cfg.DB.Password = v.GetString("db_password")
	cfg.DB.Name = v.GetString("db_name")
	cfg.DB.SSLMode = v.GetString("db_sslmode")
	cfg.DB.DSN = strings.TrimSpace(v.GetString("database_url"))
	if cfg.DB.DSN == "" {
		cfg.DB.DSN = cfg.DB.buildDSN()
	}

	// Redis
	cfg.Redis.Addr = v.GetString("redis_addr")
	cfg.Redis.Password = v.GetString("redis_password")
	cfg.Redis.DB = v.GetInt("redis_db")

	// HTTP
	cfg.HTTP.Host = v.GetString("http_host")
	cfg.HTTP.Port = v.GetString("http_port")
	cfg.HTTP.CORSOrigins = splitList(v.GetString("cors_origins"))

	// gRPC
	cfg.GRPC.Host = v.GetString("grpc_host")
	cfg.GRPC.Port = v.GetString("grpc_port")

	// Auth
	cfg.JWT.Secret = v.GetString("jwt_secret")
	cfg.JWT.TTL = v.GetDuration("jwt_ttl")

	// Reaper
	cfg.Reaper.Enabled = isTruthy(v.GetString("reaper_enabled"))
	cfg.Reaper.Interval = v.GetDuration("reaper_interval")
	cfg.Reaper.NotifyAfter = v.GetDuration("reaper_notify_after")
	cfg.Reaper.DeleteAfter = v.GetDuration("reaper_delete_after")
	cfg.Reaper.LeaseTTL = v.GetDuration("reaper_lease_ttl")

	// Uploads
	cfg.Storage.Driver = strings.ToLower(v.GetString("storage_driver"))
	cfg.Storage.Dir = v.GetString("storage_dir")
	cfg.Storage.URLPrefix = v.GetString("storage_url_prefix")
	cfg.Storage.S3Bucket = v.GetString("s3_bucket")
	cfg.Storage.S3Region = v.GetString("s3_region")
	cfg.Storage.S3Endpoint = v.GetString("s3_endpoint")
	cfg.Storage.AccessKey = v.GetString("s3_access_key")
	cfg.Storage.SecretKey = v.GetString("s3_secret_key")

	// Mail
	cfg.SMTP.Host = v.GetString("smtp_host")
	cfg.SMTP.Port = v.GetInt("smtp_port")
	cfg.SMTP.User = v.GetString("smtp_user")
	cfg.SMTP.Password = v.GetString("smtp_pass")
	cfg.SMTP.From = v.GetString("smtp_from")

	// Seeded admin
	cfg.Admin.Email = strings.ToLower(strings.TrimSpace(v.GetString("admin_email")))
	cfg.Admin.Password = v.GetString("admin_password")
	cfg.Admin.Name = v.GetString("admin_name")

	return cfg
}

// Validate reports configuration that would make the server misbehave.
func (c *Config) Validate() error {
	switch c.DB.Driver {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported db driver %q", c.DB.Driver)
	}
	switch c.Storage.Driver {
	case "local":
	case "s3":
		if c.Storage.S3Bucket == "" {
			return fmt.Errorf("s3 storage requires S3_BUCKET")
		}
	default:
		return fmt.Errorf("unsupported storage driver %q", c.Storage.Driver)
	}
	if c.Reaper.NotifyAfter >= c.Reaper.DeleteAfter {
		return fmt.Errorf("reaper notify threshold (%s) must be below delete threshold (%s)",
			c.Reaper.NotifyAfter, c.Reaper.DeleteAfter)
	}
	if c.App.ENV == "production" && c.JWT.Secret == defaultJWTSecret {
		return fmt.Errorf("JWT_SECRET must be set in production")
	}
	return nil
}

const defaultJWTSecret = "secret"

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_env", "development")

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("log_component", "matrimony_api")
	v.SetDefault("log_source", "false")

	v.SetDefault("db_driver", "mysql")
	v.SetDefault("db_host", "localhost")
	v.SetDefault("db_port", "3306")
	v.SetDefault("db_user", "root")
	v.SetDefault("db_password", "root")
	v.SetDefault("db_name", "matrimony")
	v.SetDefault("db_sslmode", "disable")
	v.SetDefault("database_url", "")

	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)

	v.SetDefault("http_host", "0.0.0.0")
	v.SetDefault("http_port", "4000")
	v.SetDefault("cors_origins", "https://matrimony-sengunthar.netlify.app")

	v.SetDefault("grpc_host", "127.0.0.1")
	v.SetDefault("grpc_port", "50051")

	v.SetDefault("jwt_secret", defaultJWTSecret)
	v.SetDefault("jwt_ttl", "168h")

	v.SetDefault("reaper_enabled", "true")
	v.SetDefault("reaper_interval", "1h")
	v.SetDefault("reaper_notify_after", "552h") // 23 days
	v.SetDefault("reaper_delete_after", "720h") // 30 days
	v.SetDefault("reaper_lease_ttl", "10m")

	v.SetDefault("storage_driver", "local")
	v.SetDefault("storage_dir", "uploads")
	v.SetDefault("storage_url_prefix", "/uploads")
	v.SetDefault("s3_bucket", "")
	v.SetDefault("s3_region", "us-east-1")
	v.SetDefault("s3_endpoint", "")
	v.SetDefault("s3_access_key", "")
	v.SetDefault("s3_secret_key", "")

	v.SetDefault("smtp_host", "")
	v.SetDefault("smtp_port", 587)
	v.SetDefault("smtp_user", "")
	v.SetDefault("smtp_pass", "")
	v.SetDefault("smtp_from", "no-reply@example.com")

	v.SetDefault("admin_email", "admin@sengunthar.com")
	v.SetDefault("admin_password", "Admin@123")
	v.SetDefault("admin_name", "System Administrator")
}

func (d DBConfig) buildDSN() string {
	switch d.Driver {
	case "postgres":
		return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
	case "sqlite":
		return d.Name + ".db"
	default:
		return fmt.Sprintf(
			"%s:%s@tcp(%s:%s)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
			d.User, d.Password, d.Host, d.Port, d.Name,
		)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}
