package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v4"
)

type Config struct {
	Gateway     GatewayConfig     `yaml:"gateway"`
	Redis       RedisConfig       `yaml:"redis"`
	ParcelMatch ParcelMatchConfig `yaml:"parcelmatch"`
}

type GatewayConfig struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type ParcelMatchConfig struct {
	SyncIntervalSeconds int `yaml:"sync_interval_seconds"`

	// "redis" | "file". file — для хостов без локального redis.
	StorageBackend string `yaml:"storage_backend"`
	StorageDir     string `yaml:"storage_dir"`

	DebugHTTPAddr string `yaml:"debug_http_addr"`
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	return &config, nil
}
