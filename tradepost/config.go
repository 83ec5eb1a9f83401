package tradepost

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/pelletier/go-toml/v2"
)

func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err = toml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type Config struct {
	Log      LogConfig      `toml:"log"`
	Server   ServerConfig   `toml:"server"`
	DB       DBConfig       `toml:"db"`
	Mongo    MongoConfig    `toml:"mongo"`
	Catalog  CatalogConfig  `toml:"catalog"`
	Commerce CommerceConfig `toml:"commerce"`
}

type CatalogConfig struct {
	BaseURL string `toml:"base_url"`
}

type CommerceConfig struct {
	AdminIDs []string `toml:"admin_ids"`
}

type LogConfig struct {
	Level     slog.Level `toml:"level"`
	Format    string     `toml:"format"`
	AddSource bool       `toml:"add_source"`
}

type ServerConfig struct {
	ListenAddr string `toml:"listen_addr"`
	// Trusted header carrying the verified actor id set by the auth proxy.
	IdentityHeader string `toml:"identity_header"`
}

type DBConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	User         string `toml:"user"`
	Password     string `toml:"password"`
	Database     string `toml:"database"`
	PoolSize     int    `toml:"pool_size"`
	MaxIdleConns int    `toml:"max_idle_conns"`
	MaxLifetime  int    `toml:"max_lifetime"`
}

type MongoConfig struct {
	URI      string `toml:"uri"`
	Database string `toml:"database"`
}
