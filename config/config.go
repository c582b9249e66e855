package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	StorageDriverFile   = "file"
	StorageDriverRedis  = "redis"
	StorageDriverMemory = "memory"
)

type OpenAI struct {
	OpenAIAPIKey     string        `yaml:"api_key" env:"OPENAI_API_KEY"`
	OpenAIModel      string        `yaml:"model" env:"OPENAI_MODEL" env-default:"gpt-3.5-turbo"`
	OpenAIBaseURL    string        `yaml:"base_url" env:"OPENAI_BASE_URL" env-default:"https://api.openai.com/v1"`
	Temperature      float32       `yaml:"temperature" env:"OPENAI_TEMPERATURE" env-default:"0.7"`
	MaxTokens        int           `yaml:"max_tokens" env:"OPENAI_MAX_TOKENS" env-default:"512"`
	MaxContextTokens int           `yaml:"max_context_tokens" env:"OPENAI_MAX_CONTEXT_TOKENS" env-default:"0"`
	RequestTimeout   time.Duration `yaml:"request_timeout" env:"OPENAI_REQUEST_TIMEOUT" env-default:"60s"`
}

type Storage struct {
	Driver        string `yaml:"driver" env:"STORAGE_DRIVER" env-default:"file"`
	Key           string `yaml:"key" env:"STORAGE_KEY" env-default:"chats"`
	Dir           string `yaml:"dir" env:"STORAGE_DIR" env-default:".telegpt"`
	RedisEndpoint string `yaml:"redis_endpoint" env:"REDIS_ENDPOINT" env-default:"localhost:6379"`
}

type Chat struct {
	UserLabel string `yaml:"user_label" env:"CHAT_USER_LABEL" env-default:"You"`
}

type Timer struct {
	Seconds int `yaml:"seconds" env:"TIMER_SECONDS" env-default:"10"`
}

type Telegram struct {
	TelegramAPIToken  string  `yaml:"api_token" env:"TELEGRAM_APITOKEN"`
	AllowedTelegramID []int64 `yaml:"allowed_id" env:"TELEGRAM_ALLOWED_ID" env-separator:","`
}

type Log struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"text"`
}

type Config struct {
	OpenAI   OpenAI   `yaml:"openai"`
	Storage  Storage  `yaml:"storage"`
	Chat     Chat     `yaml:"chat"`
	Timer    Timer    `yaml:"timer"`
	Telegram Telegram `yaml:"telegram"`
	Log      Log      `yaml:"log"`
}

// LoadConfig reads .env (if present), then the yaml file at cfgPath (if present),
// then the environment. An empty cfgPath skips the file.
func LoadConfig(cfgPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	var cfg Config
	if cfgPath != "" {
		if _, err := os.Stat(cfgPath); err == nil {
			if err = cleanenv.ReadConfig(cfgPath, &cfg); err != nil {
				return nil, fmt.Errorf("failed to read config %s: %w", cfgPath, err)
			}
			return &cfg, nil
		}
	}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read env: %w", err)
	}
	return &cfg, nil
}
