package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	ModeBlocking  = "blocking"
	ModeEventLoop = "eventloop"

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverPGX      = "pgx"
)

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Addr            string
		Mode            string
		MaxPageSize     int64         `mapstructure:"max_page_size"`
		ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	}
	Database struct {
		Driver          string
		DSN             string
		MaxOpenConns    int           `mapstructure:"max_open_conns"`
		MaxIdleConns    int           `mapstructure:"max_idle_conns"`
		ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
		AcquireTimeout  time.Duration `mapstructure:"acquire_timeout"`
		AutoMigrate     bool          `mapstructure:"auto_migrate"`
	}
	EventLoop struct {
		Workers   int
		QueueSize int `mapstructure:"queue_size"`
	}
	Log struct {
		Level  string
		Format string
	}
	Stats struct {
		Schedule string
	}
}

// New returns a viper instance carrying defaults and env bindings. Callers
// may bind flags onto it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("USERBENCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", "0.0.0.0:8080")
	v.SetDefault("server.mode", ModeBlocking)
	v.SetDefault("server.max_page_size", 1000)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.dsn", "data/userbench.db")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.acquire_timeout", 5*time.Second)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("eventloop.workers", 0)
	v.SetDefault("eventloop.queue_size", 4096)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("stats.schedule", "@every 30s")

	return v
}

// Load reads configuration from environment variables and optional config files.
func Load(v *viper.Viper) (Config, error) {
	loadDotEnv()

	if v == nil {
		v = New()
	}
	v.SetConfigName("config")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // optional file

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot run with.
func (c Config) Validate() error {
	switch c.Server.Mode {
	case ModeBlocking, ModeEventLoop:
	default:
		return fmt.Errorf("unknown server mode %q (want %s or %s)", c.Server.Mode, ModeBlocking, ModeEventLoop)
	}
	switch c.Database.Driver {
	case DriverSQLite, DriverPostgres, DriverPGX:
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		return fmt.Errorf("database dsn is required")
	}
	if c.Server.MaxPageSize < 1 {
		return fmt.Errorf("server.max_page_size must be positive")
	}
	if c.Database.MaxOpenConns < 1 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.EventLoop.Workers < 0 {
		return fmt.Errorf("eventloop.workers must not be negative")
	}
	if c.EventLoop.QueueSize < 1 {
		return fmt.Errorf("eventloop.queue_size must be positive")
	}
	return nil
}

func loadDotEnv() {
	file, err := os.Open(".env")
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		partsIndex := strings.Index(line, "=")
		if partsIndex <= 0 {
			continue
		}

		key := strings.TrimSpace(strings.TrimPrefix(line[:partsIndex], "export "))
		value := strings.TrimSpace(line[partsIndex+1:])
		value = strings.Trim(value, `"'`)
		if key == "" {
			continue
		}

		if _, exists := os.LookupEnv(key); !exists {
			_ = os.Setenv(key, value)
		}
	}
}
