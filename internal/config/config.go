package config

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/caarlos0/env/v11"
	"github.com/go-sql-driver/mysql"
)

// Store drivers understood by the server.
const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"
)

// minSecretLength is the shortest signing secret accepted in production.
const minSecretLength = 32

var (
	ErrUnknownDriver = errors.New("unknown STORE_DRIVER")
	ErrWeakSecret    = errors.New("JWT_SECRET must be at least 32 bytes in production")
)

type Config struct {
	Port          string     `env:"PORT" envDefault:"8080"`
	Env           string     `env:"ENV" envDefault:"development"`
	LogLevel      slog.Level `env:"LOG_LEVEL" envDefault:"info"`
	StoreDriver   string     `env:"STORE_DRIVER" envDefault:"mysql"`
	DatabaseDSN   string     `env:"DATABASE_DSN" envDefault:"root:password@tcp(127.0.0.1:3306)/docassist?parseTime=true"`
	MongoURI      string     `env:"MONGO_URI" envDefault:"mongodb://localhost:27017"`
	MongoDatabase string     `env:"MONGO_DATABASE" envDefault:"health"`
	JWTSecret     string     `env:"JWT_SECRET,required,notEmpty"`
}

// IsProduction reports whether the process runs in the production environment.
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

// Load reads the configuration from the environment. A missing signing
// secret is an error; callers are expected to exit.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if len(cfg.JWTSecret) < minSecretLength {
		if cfg.IsProduction() {
			return Config{}, ErrWeakSecret
		}
		slog.Warn("JWT_SECRET is shorter than 32 bytes, acceptable for development only")
	}

	switch cfg.StoreDriver {
	case DriverMySQL:
		dsn, err := normalizeMySQLDSN(cfg.DatabaseDSN)
		if err != nil {
			return Config{}, err
		}
		cfg.DatabaseDSN = dsn
	case DriverSQLite, DriverMongo:
	default:
		return Config{}, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.StoreDriver)
	}

	return cfg, nil
}

// normalizeMySQLDSN makes sure DATETIME columns scan into time.Time.
func normalizeMySQLDSN(dsn string) (string, error) {
	mc, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse DATABASE_DSN: %w", err)
	}
	mc.ParseTime = true
	return mc.FormatDSN(), nil
}
