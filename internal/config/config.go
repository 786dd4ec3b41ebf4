package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"analisis-mcp/internal/cases"
	"analisis-mcp/internal/notify"
	"analisis-mcp/internal/store"
)

// Case catalog sources.
const (
	CatalogFile  = "file"
	CatalogMySQL = "mysql"
)

// AppConfig holds the complete application configuration.
type AppConfig struct {
	DataPath      string
	LogDir        string
	HistoryPath   string
	FixturePath   string
	CatalogPath   string
	CatalogSource string
	NarrativeMode string
	StageTimeout  time.Duration

	MySQL     store.MySQLConfig
	Redis     RedisConfig
	Anthropic AnthropicConfig
	Discord   notify.Config
}

// RedisConfig selects the progress store. An empty address keeps progress
// in process; a zero TTL keeps the store default.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	TTL      time.Duration
}

// AnthropicConfig enables report rewriting when a key is present.
type AnthropicConfig struct {
	APIKey string
	Model  string
}

// UseMySQL reports whether a database is configured.
func (c *AppConfig) UseMySQL() bool {
	return c.MySQL.DSN != "" || c.MySQL.Host != ""
}

// Load loads the configuration from .env files and environment variables.
func Load() (*AppConfig, error) {
	// 1. Executable directory first; MCP clients rarely start us from the project dir.
	exePath, err := os.Executable()
	exeDir := ""
	if err == nil {
		exeDir = filepath.Dir(exePath)
		envPath := filepath.Join(exeDir, ".env")
		if err := godotenv.Load(envPath); err == nil {
			log.Debug().Str("path", envPath).Msg("Loaded configuration from binary directory")
		}
	}

	// 2. Working directory
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found in working directory, relying on environment variables or binary-relative .env")
	}

	// 3. Data paths
	dataPath := os.Getenv("DATA_PATH")
	if dataPath == "" {
		if exeDir != "" {
			dataPath = exeDir
		} else {
			dataPath = "."
		}
	}

	logDir := filepath.Join(dataPath, "logs")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		log.Warn().Err(err).Str("path", logDir).Msg("Failed to create log directory")
	}

	mode := getEnv("NARRATIVE_MODE", cases.ModeCompleto)
	if mode != cases.ModeEjecutivo && mode != cases.ModeCompleto {
		log.Warn().Str("mode", mode).Msg("Unknown NARRATIVE_MODE, using completo")
		mode = cases.ModeCompleto
	}

	cfg := &AppConfig{
		DataPath:      dataPath,
		LogDir:        logDir,
		HistoryPath:   getEnv("HISTORY_PATH", filepath.Join(dataPath, "runs.jsonl")),
		FixturePath:   getEnv("FIXTURE_PATH", ""),
		CatalogPath:   getEnv("CASE_CATALOG_PATH", ""),
		CatalogSource: getEnv("CASE_CATALOG_SOURCE", CatalogFile),
		NarrativeMode: mode,
		StageTimeout:  time.Duration(getEnvInt("STAGE_TIMEOUT_SECONDS", 120)) * time.Second,
		MySQL: store.MySQLConfig{
			DSN:      getEnv("MYSQL_DSN", ""),
			Host:     getEnv("MYSQL_HOST", ""),
			Port:     getEnv("MYSQL_PORT", "3306"),
			User:     getEnv("MYSQL_USER", ""),
			Password: getEnv("MYSQL_PASSWORD", ""),
			Database: getEnv("MYSQL_DATABASE", ""),
		},
		Redis: RedisConfig{
			Address:  getEnv("REDIS_ADDRESS", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			TTL:      time.Duration(getEnvInt("REDIS_PROGRESS_TTL_HOURS", 0)) * time.Hour,
		},
		Anthropic: AnthropicConfig{
			APIKey: getEnv("ANTHROPIC_API_KEY", ""),
			Model:  getEnv("ANTHROPIC_MODEL", ""),
		},
		Discord: notify.Config{
			BotToken:  getEnv("DISCORD_BOT_TOKEN", ""),
			ChannelID: getEnv("DISCORD_CHANNEL_ID", ""),
			ReportURL: getEnv("REPORT_URL_FORMAT", ""),
		},
	}

	if cfg.StageTimeout <= 0 {
		cfg.StageTimeout = 2 * time.Minute
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
		log.Warn().Str("key", key).Str("value", value).Msg("Ignoring non-numeric environment value")
	}
	return fallback
}
