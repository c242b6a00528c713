package config

import (
	"fmt"
	"strings"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Queue      QueueConfig      `mapstructure:"queue"`
	Generation GenerationConfig `mapstructure:"generation"`
	Poller     PollerConfig     `mapstructure:"poller"`
	Log        LogConfig        `mapstructure:"log"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"min=1,max=65535"`
	BaseURL         string        `mapstructure:"base_url" validate:"omitempty,url"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
	CORS            CORSConfig    `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins" validate:"dive,origin"`
}

type DatabaseConfig struct {
	Driver          string            `mapstructure:"driver" validate:"oneof=mysql postgres sqlite"`
	DSN             string            `mapstructure:"dsn"`
	Host            string            `mapstructure:"host"`
	Port            int               `mapstructure:"port"`
	Database        string            `mapstructure:"database"`
	Username        string            `mapstructure:"username"`
	Password        string            `mapstructure:"password"`
	TLS             bool              `mapstructure:"tls"`
	Params          map[string]string `mapstructure:"params"`
	MaxOpenConns    int               `mapstructure:"max_open_conns"`
	MaxIdleConns    int               `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int               `mapstructure:"conn_max_lifetime_seconds"`
}

type LLMConfig struct {
	Provider         string        `mapstructure:"provider" validate:"oneof=gemini groq"`
	MaxRetryAttempts uint          `mapstructure:"max_retry_attempts" validate:"max=10"`
	RetryDelay       time.Duration `mapstructure:"retry_delay"`
	Timeout          time.Duration `mapstructure:"timeout"`
	Gemini           GeminiConfig  `mapstructure:"gemini"`
	Groq             GroqConfig    `mapstructure:"groq"`
}

type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type GroqConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url" validate:"omitempty,url"`
}

type QueueConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Key          string        `mapstructure:"key"`
	Workers      int           `mapstructure:"workers" validate:"min=1"`
	BlockTimeout time.Duration `mapstructure:"block_timeout"`
	Redis        RedisConfig   `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr" validate:"omitempty,hostname_port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type GenerationConfig struct {
	// Fallback pushes failed direct generations onto the background queue.
	Fallback bool `mapstructure:"fallback"`
}

type PollerConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	MaxAttempts int           `mapstructure:"max_attempts" validate:"min=1"`
}

type LogConfig struct {
	Mode  string `mapstructure:"mode" validate:"oneof=development production dev prod"`
	Level string `mapstructure:"level" validate:"oneof=debug info"`
}

// APIKey returns the credential of the configured provider.
func (c LLMConfig) APIKey() string {
	switch c.Provider {
	case "groq":
		return c.Groq.APIKey
	default:
		return c.Gemini.APIKey
	}
}

type ConfigLoader struct {
	viper      *viper.Viper
	validator  *validator.Validate
	translator ut.Translator
}

func NewConfigLoader(configFile string) (*ConfigLoader, error) {
	validate, trans, err := newValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to create new validator: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/aicademy")
	}

	return &ConfigLoader{
		viper:      v,
		validator:  validate,
		translator: trans,
	}, nil
}

func (loader *ConfigLoader) Load() (*Config, error) {
	v := loader.viper

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.cors.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.database", "aicademy")
	v.SetDefault("database.username", "aicademy")
	v.SetDefault("llm.provider", "gemini")
	v.SetDefault("llm.max_retry_attempts", 3)
	v.SetDefault("llm.retry_delay", 2*time.Second)
	v.SetDefault("llm.timeout", 90*time.Second)
	v.SetDefault("llm.gemini.model", "gemini-1.5-flash")
	v.SetDefault("llm.groq.model", "llama-3.3-70b-versatile")
	v.SetDefault("llm.groq.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("queue.enabled", false)
	v.SetDefault("queue.key", "aicademy:generation")
	v.SetDefault("queue.workers", 2)
	v.SetDefault("queue.block_timeout", 5*time.Second)
	v.SetDefault("queue.redis.addr", "localhost:6379")
	v.SetDefault("generation.fallback", true)
	v.SetDefault("poller.interval", 3*time.Second)
	v.SetDefault("poller.max_attempts", 10)
	v.SetDefault("log.mode", "development")
	v.SetDefault("log.level", "info")

	// Secrets are bound to environment variables only
	bindings := map[string]string{
		"llm.provider":         "LLM_PROVIDER",
		"llm.gemini.api_key":   "GEMINI_API_KEY",
		"llm.groq.api_key":     "GROQ_API_KEY",
		"database.password":    "DB_PASSWORD",
		"database.dsn":         "DATABASE_DSN",
		"queue.redis.addr":     "REDIS_ADDR",
		"queue.redis.password": "REDIS_PASSWORD",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s environment variable: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("configuration file found but could not be read: %w. Please check the file format and permissions", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration format: %w", err)
	}

	if err := loader.validator.Struct(cfg); err != nil {
		validationErrors := err.(validator.ValidationErrors)
		var errorMsgs []string
		for _, e := range validationErrors {
			errorMsgs = append(errorMsgs, e.Translate(loader.translator))
		}
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(errorMsgs, ", "))
	}

	return &cfg, nil
}
