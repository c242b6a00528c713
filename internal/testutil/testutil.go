// Package testutil provides shared test helpers for creating config files and databases.
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gopkg.in/yaml.v3"

	"github.com/ryhan5/aicademy/internal/config"
	"github.com/ryhan5/aicademy/internal/database"
	"github.com/ryhan5/aicademy/internal/logger"
)

// NewSQLiteDB opens a migrated in-memory SQLite database closed at test cleanup.
func NewSQLiteDB(t *testing.T) *sqlx.DB {
	t.Helper()

	db, err := database.Open(config.DatabaseConfig{Driver: database.DriverSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	require.NoError(t, database.Migrate(context.Background(), db))
	return db
}

// NewObservedLogger returns a logger recording entries at level and above.
func NewObservedLogger(level zapcore.Level) (*logger.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return &logger.Logger{SugaredLogger: zap.New(core).Sugar()}, logs
}

// SetupTestConfig writes a config file using SQLite and the given LLM provider.
// Returns the path to the generated config file.
func SetupTestConfig(t *testing.T, tmpDir string, provider string) string {
	t.Helper()
	return writeConfig(t, tmpDir, provider, false)
}

// SetupTestConfigWithAPIKey is SetupTestConfig with fake keys for both providers.
func SetupTestConfigWithAPIKey(t *testing.T, tmpDir string, provider string) string {
	t.Helper()
	return writeConfig(t, tmpDir, provider, true)
}

func writeConfig(t *testing.T, tmpDir string, provider string, withKeys bool) string {
	t.Helper()

	llm := map[string]any{
		"provider":           provider,
		"max_retry_attempts": 1,
		"retry_delay":        "10ms",
	}
	if withKeys {
		llm["gemini"] = map[string]any{"api_key": "fake-gemini-key"}
		llm["groq"] = map[string]any{"api_key": "fake-groq-key"}
	}
	content, err := yaml.Marshal(map[string]any{
		"server": map[string]any{"port": 18080},
		"database": map[string]any{
			"driver": "sqlite",
			"dsn":    filepath.Join(tmpDir, "aicademy.db"),
		},
		"llm": llm,
		"poller": map[string]any{
			"interval":     "10ms",
			"max_attempts": 3,
		},
	})
	require.NoError(t, err)

	configPath := filepath.Join(tmpDir, "config.yml")
	require.NoError(t, os.WriteFile(configPath, content, 0644))
	return configPath
}
