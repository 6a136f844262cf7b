package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port        int    `yaml:"port"`
	DatabaseURL string `yaml:"database_url"`
	NatsURL     string `yaml:"nats_url"`
	LogLevel    string `yaml:"log_level"`

	EmbeddingBaseURL string `yaml:"embedding_base_url"`
	EmbeddingAPIKey  string `yaml:"embedding_api_key"`
	EmbeddingModel   string `yaml:"embedding_model"`
	EmbeddingDim     int    `yaml:"embedding_dim"`

	ExtractAPIURL     string `yaml:"extract_api_url"`
	ExtractAPIKey     string `yaml:"extract_api_key"`
	ExtractModel      string `yaml:"extract_model"`
	ExtractMaxRetries int    `yaml:"extract_max_retries"`

	SlackBotToken     string `yaml:"slack_bot_token"`
	SlackAlertChannel string `yaml:"slack_alert_channel"`
}

// Load reads configuration from the environment. When CONFIG_PATH points at
// a YAML file, its non-empty values override the environment.
func Load() (Config, error) {
	cfg := Config{
		Port:              envInt("MEETINGD_PORT", 8800),
		DatabaseURL:       envStr("DATABASE_URL", ""),
		NatsURL:           envStr("NATS_URL", ""),
		LogLevel:          envStr("LOG_LEVEL", "info"),
		EmbeddingBaseURL:  envStr("EMBEDDING_BASE_URL", "https://api.openai.com/v1"),
		EmbeddingAPIKey:   envStr("OPENAI_API_KEY", ""),
		EmbeddingModel:    envStr("EMBEDDING_MODEL", "text-embedding-3-small"),
		EmbeddingDim:      envInt("EMBEDDING_DIM", 384),
		ExtractAPIURL:     envStr("EXTRACT_API_URL", "https://api.anthropic.com/v1/messages"),
		ExtractAPIKey:     envStr("ANTHROPIC_API_KEY", ""),
		ExtractModel:      envStr("EXTRACT_MODEL", "claude-haiku-4-5"),
		ExtractMaxRetries: envInt("EXTRACT_MAX_RETRIES", 3),
		SlackBotToken:     envStr("SLACK_BOT_TOKEN", ""),
		SlackAlertChannel: envStr("SLACK_ALERT_CHANNEL", ""),
	}

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := overlayFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	return cfg, nil
}

func overlayFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	if file.Port != 0 {
		cfg.Port = file.Port
	}
	if file.DatabaseURL != "" {
		cfg.DatabaseURL = file.DatabaseURL
	}
	if file.NatsURL != "" {
		cfg.NatsURL = file.NatsURL
	}
	if file.LogLevel != "" {
		cfg.LogLevel = file.LogLevel
	}
	if file.EmbeddingBaseURL != "" {
		cfg.EmbeddingBaseURL = file.EmbeddingBaseURL
	}
	if file.EmbeddingAPIKey != "" {
		cfg.EmbeddingAPIKey = file.EmbeddingAPIKey
	}
	if file.EmbeddingModel != "" {
		cfg.EmbeddingModel = file.EmbeddingModel
	}
	if file.EmbeddingDim != 0 {
		cfg.EmbeddingDim = file.EmbeddingDim
	}
	if file.ExtractAPIURL != "" {
		cfg.ExtractAPIURL = file.ExtractAPIURL
	}
	if file.ExtractAPIKey != "" {
		cfg.ExtractAPIKey = file.ExtractAPIKey
	}
	if file.ExtractModel != "" {
		cfg.ExtractModel = file.ExtractModel
	}
	if file.ExtractMaxRetries != 0 {
		cfg.ExtractMaxRetries = file.ExtractMaxRetries
	}
	if file.SlackBotToken != "" {
		cfg.SlackBotToken = file.SlackBotToken
	}
	if file.SlackAlertChannel != "" {
		cfg.SlackAlertChannel = file.SlackAlertChannel
	}

	return nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
