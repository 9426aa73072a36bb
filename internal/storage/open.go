package storage

import (
	"context"
	"fmt"
	"strings"
)

type Driver string

const (
	DriverMemory   Driver = "memory"
	DriverJSON     Driver = "json"
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
	DriverS3       Driver = "s3"
)

type Config struct {
	Driver      Driver   `mapstructure:"driver"`
	FilePath    string   `mapstructure:"file_path"`
	SQLitePath  string   `mapstructure:"sqlite_path"`
	PostgresDSN string   `mapstructure:"postgres_dsn"`
	S3          S3Config `mapstructure:"s3"`
}

// Open constructs the backend selected by cfg.Driver. An empty driver means
// the JSON file store.
func Open(ctx context.Context, cfg Config) (KV, error) {
	switch Driver(strings.ToLower(string(cfg.Driver))) {
	case DriverMemory:
		return NewMemoryStore(), nil
	case DriverJSON, "":
		store := NewFileStore(cfg.FilePath)
		if err := store.Load(); err != nil {
			return nil, err
		}
		return store, nil
	case DriverSQLite:
		return NewSQLiteStore(cfg.SQLitePath)
	case DriverPostgres:
		return NewPostgresStore(ctx, cfg.PostgresDSN)
	case DriverS3:
		return NewS3Store(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
