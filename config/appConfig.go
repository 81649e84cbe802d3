package config

import (
	"os"

	"olxmarket_api/config/values"

	"gopkg.in/yaml.v3"
)

type OlxConfig struct {
	BaseURL   string           `yaml:"base_url"`
	OlxValues values.OlxValues `yaml:"default_values"`
}

type ServerConfig struct {
	Address string `yaml:"address"`
}

type AmqpConfig struct {
	URL         string `yaml:"url"`
	ImportQueue string `yaml:"import_queue"`
	Workers     int    `yaml:"workers"`
}

type AppConfig struct {
	Olx      OlxConfig      `yaml:"olx"`
	Postgres PostgresConfig `yaml:"postgres"`
	Server   ServerConfig   `yaml:"server"`
	Amqp     AmqpConfig     `yaml:"amqp"`
}

func LoadConfig(filename string) (*AppConfig, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	config := &AppConfig{}
	if err := decoder.Decode(config); err != nil {
		return nil, err
	}
	return config, nil
}
