package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"LLM_PROVIDER", "GEMINI_API_KEY", "GROQ_API_KEY", "DB_PASSWORD",
		"DATABASE_DSN", "REDIS_ADDR", "REDIS_PASSWORD",
	} {
		t.Setenv(key, "")
	}
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			BaseURL:         "http://localhost:8080",
			ShutdownTimeout: 10 * time.Second,
			CORS: CORSConfig{
				AllowedOrigins: []string{"http://localhost:3000"},
			},
		},
		Database: DatabaseConfig{
			Driver:   "mysql",
			Host:     "localhost",
			Port:     3306,
			Database: "aicademy",
			Username: "aicademy",
		},
		LLM: LLMConfig{
			Provider:         "gemini",
			MaxRetryAttempts: 3,
			RetryDelay:       2 * time.Second,
			Timeout:          90 * time.Second,
			Gemini:           GeminiConfig{Model: "gemini-1.5-flash"},
			Groq: GroqConfig{
				Model:   "llama-3.3-70b-versatile",
				BaseURL: "https://api.groq.com/openai/v1",
			},
		},
		Queue: QueueConfig{
			Key:          "aicademy:generation",
			Workers:      2,
			BlockTimeout: 5 * time.Second,
			Redis:        RedisConfig{Addr: "localhost:6379"},
		},
		Generation: GenerationConfig{Fallback: true},
		Poller: PollerConfig{
			Interval:    3 * time.Second,
			MaxAttempts: 10,
		},
		Log: LogConfig{Mode: "development", Level: "info"},
	}
}

func TestConfigLoader_Load(t *testing.T) {
	tests := []struct {
		name              string
		configContent     string
		env               map[string]string
		wantErr           bool
		want              func() *Config
		wantErrorContains []string
	}{
		{
			name:          "no config file uses defaults",
			configContent: "",
			want:          defaultConfig,
		},
		{
			name: "custom values override defaults",
			configContent: `server:
  port: 9090
  cors:
    allowed_origins:
      - https://aicademy.example.com
database:
  driver: sqlite
  dsn: file:aicademy.db
llm:
  provider: groq
  retry_delay: 500ms
queue:
  enabled: true
  workers: 4
poller:
  interval: 1s
  max_attempts: 5
`,
			want: func() *Config {
				cfg := defaultConfig()
				cfg.Server.Port = 9090
				cfg.Server.CORS.AllowedOrigins = []string{"https://aicademy.example.com"}
				cfg.Database.Driver = "sqlite"
				cfg.Database.DSN = "file:aicademy.db"
				cfg.LLM.Provider = "groq"
				cfg.LLM.RetryDelay = 500 * time.Millisecond
				cfg.Queue.Enabled = true
				cfg.Queue.Workers = 4
				cfg.Poller.Interval = time.Second
				cfg.Poller.MaxAttempts = 5
				return cfg
			},
		},
		{
			name:          "secrets come from the environment",
			configContent: "",
			env: map[string]string{
				"GEMINI_API_KEY": "gemini-secret",
				"DB_PASSWORD":    "db-secret",
			},
			want: func() *Config {
				cfg := defaultConfig()
				cfg.LLM.Gemini.APIKey = "gemini-secret"
				cfg.Database.Password = "db-secret"
				return cfg
			},
		},
		{
			name: "invalid YAML format",
			configContent: `server:
  port: 9090
  invalid yaml format here [[[
`,
			wantErr: true,
			wantErrorContains: []string{
				"configuration file found but could not be read",
				"Please check the file format and permissions",
			},
		},
		{
			name: "unknown provider",
			configContent: `llm:
  provider: openai
`,
			wantErr:           true,
			wantErrorContains: []string{"invalid configuration", "provider must be one of [gemini groq]"},
		},
		{
			name: "origin with a path is rejected",
			configContent: `server:
  cors:
    allowed_origins:
      - https://aicademy.example.com/app
`,
			wantErr:           true,
			wantErrorContains: []string{"must be \"*\" or a scheme://host[:port] origin"},
		},
		{
			name: "zero shutdown timeout is rejected",
			configContent: `server:
  shutdown_timeout: 0s
`,
			wantErr:           true,
			wantErrorContains: []string{"invalid configuration", "shutdown_timeout"},
		},
		{
			name: "zero poller attempts is rejected",
			configContent: `poller:
  max_attempts: 0
`,
			wantErr:           true,
			wantErrorContains: []string{"max_attempts must be 1 or greater"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			configPath := ""
			if tt.configContent != "" {
				configPath = filepath.Join(t.TempDir(), "config.yml")
				require.NoError(t, os.WriteFile(configPath, []byte(tt.configContent), 0644))
			} else {
				originalDir, err := os.Getwd()
				require.NoError(t, err)
				t.Cleanup(func() {
					require.NoError(t, os.Chdir(originalDir))
				})
				require.NoError(t, os.Chdir(t.TempDir()))
				t.Setenv("HOME", t.TempDir())
			}

			loader, err := NewConfigLoader(configPath)
			require.NoError(t, err)
			got, err := loader.Load()

			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, got)
				for _, wantMsg := range tt.wantErrorContains {
					assert.Contains(t, err.Error(), wantMsg)
				}
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want(), got)
		})
	}
}

func TestLLMConfig_APIKey(t *testing.T) {
	cfg := LLMConfig{
		Gemini: GeminiConfig{APIKey: "g"},
		Groq:   GroqConfig{APIKey: "q"},
	}

	cfg.Provider = "gemini"
	assert.Equal(t, "g", cfg.APIKey())
	cfg.Provider = "groq"
	assert.Equal(t, "q", cfg.APIKey())
}
