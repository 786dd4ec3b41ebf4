package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/joho/godotenv"
)

func TestGodotenvQuoting(t *testing.T) {
	content := `TEST_VAR='value with "double quotes"'`
	tmpfile, err := os.CreateTemp("", ".env.test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(tmpfile.Name())

	if _, err := tmpfile.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}

	env, err := godotenv.Read(tmpfile.Name())
	if err != nil {
		t.Fatalf("Error reading env: %v", err)
	}

	expected := `value with "double quotes"`
	if env["TEST_VAR"] != expected {
		t.Errorf("Expected %s, got %s", expected, env["TEST_VAR"])
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DATA_PATH", dir)
	t.Setenv("MYSQL_DSN", "")
	t.Setenv("MYSQL_HOST", "db.local")
	t.Setenv("MYSQL_USER", "analisis")
	t.Setenv("REDIS_ADDRESS", "localhost:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("MYSQL_PORT", "3306")
	t.Setenv("REDIS_PROGRESS_TTL_HOURS", "24")
	t.Setenv("HISTORY_PATH", "")
	os.Unsetenv("HISTORY_PATH")
	t.Setenv("NARRATIVE_MODE", "ejecutivo")
	t.Setenv("STAGE_TIMEOUT_SECONDS", "30")
	t.Setenv("DISCORD_BOT_TOKEN", "tok")
	t.Setenv("DISCORD_CHANNEL_ID", "chan")
	t.Setenv("ANTHROPIC_API_KEY", "")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}

	if cfg.LogDir != filepath.Join(dir, "logs") {
		t.Errorf("LogDir = %s", cfg.LogDir)
	}
	if cfg.HistoryPath != filepath.Join(dir, "runs.jsonl") {
		t.Errorf("HistoryPath = %s", cfg.HistoryPath)
	}
	if !cfg.UseMySQL() || cfg.MySQL.Port != "3306" {
		t.Errorf("MySQL = %+v", cfg.MySQL)
	}
	if cfg.Redis.DB != 2 || cfg.Redis.TTL != 24*time.Hour {
		t.Errorf("Redis = %+v", cfg.Redis)
	}
	if cfg.NarrativeMode != "ejecutivo" {
		t.Errorf("NarrativeMode = %s", cfg.NarrativeMode)
	}
	if cfg.StageTimeout != 30*time.Second {
		t.Errorf("StageTimeout = %s", cfg.StageTimeout)
	}
	if !cfg.Discord.Enabled() {
		t.Error("Discord should be enabled")
	}
	if cfg.Anthropic.APIKey != "" {
		t.Error("Anthropic key should be empty")
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Setenv("DATA_PATH", t.TempDir())
	t.Setenv("NARRATIVE_MODE", "resumido")
	t.Setenv("STAGE_TIMEOUT_SECONDS", "nope")
	t.Setenv("MYSQL_DSN", "")
	t.Setenv("MYSQL_HOST", "")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.NarrativeMode != "completo" {
		t.Errorf("NarrativeMode = %s, want completo", cfg.NarrativeMode)
	}
	if cfg.StageTimeout != 2*time.Minute {
		t.Errorf("StageTimeout = %s, want 2m", cfg.StageTimeout)
	}
	if cfg.UseMySQL() {
		t.Error("UseMySQL() with no DSN or host")
	}
}
