package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Storage  StorageConfig  `yaml:"storage"`
	WhatsApp WhatsAppConfig `yaml:"whatsapp"`
	Email    EmailConfig    `yaml:"email"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns the listen address for the HTTP server.
func (s ServerConfig) Addr() string {
	host := s.Host
	port := s.Port
	if port == 0 {
		port = 8080
	}
	return fmt.Sprintf("%s:%d", host, port)
}

// DatabaseConfig holds Postgres connection settings.
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// RedisConfig holds the live-update channel connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// StorageConfig holds S3 object storage settings for attachments and media.
// When AccessKeyID and SecretAccessKey are empty the default AWS credential
// chain is used.
type StorageConfig struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	PublicBaseURL   string `yaml:"public_base_url"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// WhatsAppConfig holds the outbound WhatsApp function endpoints.
type WhatsAppConfig struct {
	SendURL      string `yaml:"send_url"`
	TemplatesURL string `yaml:"templates_url"`
	AuthToken    string `yaml:"auth_token"`
}

// EmailConfig holds the bulk email function endpoint and sender defaults.
type EmailConfig struct {
	SendURL     string `yaml:"send_url"`
	AuthToken   string `yaml:"auth_token"`
	SenderEmail string `yaml:"sender_email"`
	SenderName  string `yaml:"sender_name"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// LoadFromEnv loads configuration from a YAML file with environment
// variable overrides. A .env file is honored if present. The file itself
// is optional; a config built entirely from environment variables is valid.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if path != "" {
		if loaded, err := Load(path); err == nil {
			cfg = loaded
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	if host := os.Getenv("SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if n, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = n
		}
	}
	if url := os.Getenv("DATABASE_URL"); url != "" {
		cfg.Database.URL = url
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}
	if pw := os.Getenv("REDIS_PASSWORD"); pw != "" {
		cfg.Redis.Password = pw
	}
	if bucket := os.Getenv("STORAGE_BUCKET"); bucket != "" {
		cfg.Storage.Bucket = bucket
	}
	if region := os.Getenv("STORAGE_REGION"); region != "" {
		cfg.Storage.Region = region
	}
	if base := os.Getenv("STORAGE_PUBLIC_BASE_URL"); base != "" {
		cfg.Storage.PublicBaseURL = base
	}
	if key := os.Getenv("STORAGE_ACCESS_KEY_ID"); key != "" {
		cfg.Storage.AccessKeyID = key
	}
	if secret := os.Getenv("STORAGE_SECRET_ACCESS_KEY"); secret != "" {
		cfg.Storage.SecretAccessKey = secret
	}
	if url := os.Getenv("WHATSAPP_SEND_URL"); url != "" {
		cfg.WhatsApp.SendURL = url
	}
	if url := os.Getenv("WHATSAPP_TEMPLATES_URL"); url != "" {
		cfg.WhatsApp.TemplatesURL = url
	}
	if token := os.Getenv("WHATSAPP_AUTH_TOKEN"); token != "" {
		cfg.WhatsApp.AuthToken = token
	}
	if url := os.Getenv("EMAIL_SEND_URL"); url != "" {
		cfg.Email.SendURL = url
	}
	if token := os.Getenv("EMAIL_AUTH_TOKEN"); token != "" {
		cfg.Email.AuthToken = token
	}
	if email := os.Getenv("EMAIL_SENDER_EMAIL"); email != "" {
		cfg.Email.SenderEmail = email
	}
	if name := os.Getenv("EMAIL_SENDER_NAME"); name != "" {
		cfg.Email.SenderName = name
	}

	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("database url is required (config file or DATABASE_URL)")
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}

	return cfg, nil
}
