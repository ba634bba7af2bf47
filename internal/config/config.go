package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server    ServerConfig
	Auth      AuthConfig
	Database  DatabaseConfig
	Model     ModelConfig
	Chat      ChatConfig
	Therapist TherapistConfig
	Telegram  TelegramConfig
}

// Load 从环境变量加载配置。调用方负责提前加载 .env 文件。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	cfg := &Config{Server: server}
	sections := []struct {
		name   string
		target any
	}{
		{"auth", &cfg.Auth},
		{"database", &cfg.Database},
		{"model", &cfg.Model},
		{"chat", &cfg.Chat},
		{"therapist", &cfg.Therapist},
		{"telegram", &cfg.Telegram},
	}
	for _, section := range sections {
		if err := env.Parse(section.target); err != nil {
			return nil, fmt.Errorf("parse %s config: %w", section.name, err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Port           string   `env:"PORT" envDefault:"8080"`
	Addr           string
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	LogLevel       string   `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat      string   `env:"LOG_FORMAT" envDefault:"json"`
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	var cfg ServerConfig
	if err := env.Parse(&cfg); err != nil {
		return ServerConfig{}, fmt.Errorf("parse server config: %w", err)
	}

	port := strings.TrimSpace(cfg.Port)
	switch {
	case strings.Contains(port, ":"):
		// 允许直接传入 ":8080" 或 "127.0.0.1:8080"。
		cfg.Addr = port
	case port == "" || strings.Contains(port, " "):
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", cfg.Port)
	default:
		cfg.Addr = ":" + port
	}
	return cfg, nil
}

// AuthConfig 描述登录令牌相关配置。
type AuthConfig struct {
	JWTSecret string        `env:"JWT_SECRET"`
	Issuer    string        `env:"JWT_ISSUER" envDefault:"mindcare"`
	TokenTTL  time.Duration `env:"AUTH_TOKEN_TTL" envDefault:"24h"`
}

// DatabaseConfig 选择持久化后端。Driver 取值 sqlite、mysql 或 postgres。
type DatabaseConfig struct {
	Driver   string `env:"DATABASE_DRIVER" envDefault:"sqlite"`
	DSN      string `env:"DATABASE_URL" envDefault:"data/mindcare.db"`
	MaxConns int32  `env:"DATABASE_MAX_CONNS" envDefault:"10"`
	MinConns int32  `env:"DATABASE_MIN_CONNS" envDefault:"2"`
	Migrate  bool   `env:"DATABASE_AUTO_MIGRATE" envDefault:"true"`
}

// ChatConfig 描述单轮对话流水线的可调参数。
type ChatConfig struct {
	MaxMessageChars  int           `env:"MAX_MESSAGE_CHARS" envDefault:"300"`
	HistoryWindow    int           `env:"HISTORY_WINDOW" envDefault:"10"`
	HistoryIdleTTL   time.Duration `env:"HISTORY_IDLE_TTL" envDefault:"2h"`
	MaxInputTokens   int           `env:"MAX_INPUT_TOKENS" envDefault:"1000"`
	ContextLimit     int           `env:"CONTEXT_LIMIT" envDefault:"1024"`
	NewTokenBudget   int           `env:"NEW_TOKEN_BUDGET" envDefault:"80"`
	MaxResponseWords int           `env:"MAX_RESPONSE_WORDS" envDefault:"60"`
	MinResponseWords int           `env:"MIN_RESPONSE_WORDS" envDefault:"3"`
	EOSToken         string        `env:"EOS_TOKEN" envDefault:"<|endoftext|>"`
	MoodTablePath    string        `env:"MOOD_TABLE_PATH"`
}

// TherapistConfig 描述咨询师目录的抓取与调度。
type TherapistConfig struct {
	Enabled            bool   `env:"THERAPIST_REFRESH_ENABLED" envDefault:"true"`
	GooglePlacesAPIKey string `env:"GOOGLE_PLACES_API_KEY"`
	Location           string `env:"THERAPIST_LOCATION" envDefault:"Hyderabad"`
	Keyword            string `env:"THERAPIST_KEYWORD" envDefault:"therapist"`
	PractoURL          string `env:"THERAPIST_PRACTO_URL" envDefault:"https://www.practo.com/hyderabad/psychologist"`
	PractoLimit        int    `env:"THERAPIST_PRACTO_LIMIT" envDefault:"3"`
	OutputPath         string `env:"THERAPIST_OUTPUT_PATH" envDefault:"data/therapists.json"`
	Schedule           string `env:"THERAPIST_SCHEDULE" envDefault:"@every 360h"`
}

// TelegramConfig 为空时不启动 Telegram 通道。
type TelegramConfig struct {
	BotToken string `env:"TELEGRAM_BOT_TOKEN"`
}

// Enabled 表示是否配置了 Telegram 机器人。
func (c TelegramConfig) Enabled() bool {
	return strings.TrimSpace(c.BotToken) != ""
}

func (c *Config) validate() error {
	var errs []error

	if len(c.Auth.JWTSecret) < 16 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 16 characters"))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("AUTH_TOKEN_TTL must be positive"))
	}

	switch c.Database.Driver {
	case "sqlite", "mysql", "postgres":
	default:
		errs = append(errs, fmt.Errorf("unsupported DATABASE_DRIVER %q", c.Database.Driver))
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}

	if c.Chat.MaxMessageChars < 1 {
		errs = append(errs, errors.New("MAX_MESSAGE_CHARS must be positive"))
	}
	if c.Chat.HistoryWindow < 0 {
		errs = append(errs, errors.New("HISTORY_WINDOW must not be negative"))
	}
	if c.Chat.MaxInputTokens < 1 || c.Chat.ContextLimit < c.Chat.MaxInputTokens {
		errs = append(errs, fmt.Errorf("CONTEXT_LIMIT (%d) must be >= MAX_INPUT_TOKENS (%d) > 0", c.Chat.ContextLimit, c.Chat.MaxInputTokens))
	}
	if c.Chat.NewTokenBudget < 1 {
		errs = append(errs, errors.New("NEW_TOKEN_BUDGET must be positive"))
	}
	if c.Chat.MinResponseWords < 0 || c.Chat.MaxResponseWords < c.Chat.MinResponseWords {
		errs = append(errs, errors.New("MAX_RESPONSE_WORDS must be >= MIN_RESPONSE_WORDS >= 0"))
	}

	errs = append(errs, c.Model.validate()...)
	return errors.Join(errs...)
}
