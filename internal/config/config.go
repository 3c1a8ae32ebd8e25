package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Addr            string
		ShutdownSeconds int
	}
	Log struct {
		Level string
	}
	Auth struct {
		// PasswordPolicy is "plaintext" or "bcrypt".
		PasswordPolicy   string
		BrowserSecret    string
		BrowserIssuer    string
		BrowserTTLHours  int
		SecureCookies    bool
		NoticeTTLSeconds int
	}
	Storage struct {
		// Driver selects the key-value backend: sqlite, redis, postgres, s3 or memory.
		Driver string
	}
	SQLite struct {
		Path string
	}
	Redis struct {
		Addr      string
		Password  string
		DB        int
		KeyPrefix string
	}
	Postgres struct {
		URL string
	}
	S3 struct {
		Bucket    string
		KeyPrefix string
		Region    string
		Endpoint  string
	}
	AWS struct {
		Profile string
	}
}

// Load reads configuration from environment variables and optional config files.
func Load() (Config, error) {
	// a missing .env is fine
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("MARKETPLACE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", "0.0.0.0:8080")
	v.SetDefault("server.shutdownseconds", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("auth.passwordpolicy", "plaintext")
	v.SetDefault("auth.browsersecret", "")
	v.SetDefault("auth.browserissuer", "marketplace")
	v.SetDefault("auth.browserttlhours", 24*365)
	v.SetDefault("auth.securecookies", false)
	v.SetDefault("auth.noticettlseconds", 60)
	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("sqlite.path", "data/marketplace.db")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.keyprefix", "marketplace:")
	v.SetDefault("postgres.url", "")
	v.SetDefault("s3.bucket", "")
	v.SetDefault("s3.keyprefix", "marketplace-state")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("aws.profile", "")

	v.SetConfigName("config")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // optional file

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Storage.Driver = strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))

	return cfg, nil
}

// Validate checks the settings the selected backend cannot run without.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Auth.BrowserSecret) == "" {
		return fmt.Errorf("auth browser secret is required")
	}
	switch c.Storage.Driver {
	case "sqlite":
		if c.SQLite.Path == "" {
			return fmt.Errorf("sqlite path is required")
		}
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis addr is required")
		}
	case "postgres":
		if c.Postgres.URL == "" {
			return fmt.Errorf("postgres url is required")
		}
	case "s3":
		if c.S3.Bucket == "" {
			return fmt.Errorf("s3 bucket is required")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	return nil
}
