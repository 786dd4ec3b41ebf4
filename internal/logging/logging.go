package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileName is the rotating log file inside the log directory.
const FileName = "analisis-mcp.log"

// Init initializes the global logger with dual sinks: os.Stderr and a rotating file.
// Stdout is never written to; it carries the MCP stdio transport.
func Init(verbose bool) {
	// Init runs before config.Load, so the binary-relative .env is read here
	// for LOGS_FOLDER and DATA_PATH.
	exePath, err := os.Executable()
	if err == nil {
		_ = godotenv.Load(filepath.Join(filepath.Dir(exePath), ".env"))
	}

	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	isTerminal := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
	consoleWriter := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
		NoColor:    !isTerminal,
	}

	logDir := resolveDir(exePath, err)
	if err := ensureWritable(logDir); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fileWriter := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, FileName),
		MaxSize:    16, // megabytes
		MaxBackups: 32,
		MaxAge:     90, // days
		Compress:   true,
	}

	log.Logger = New(io.Writer(consoleWriter), fileWriter)
}

// New builds a timestamped logger over the given sinks.
func New(sinks ...io.Writer) zerolog.Logger {
	return zerolog.New(zerolog.MultiLevelWriter(sinks...)).
		With().
		Timestamp().
		Logger()
}

// resolveDir picks LOGS_FOLDER, then DATA_PATH/logs, then logs/ beside the
// binary.
func resolveDir(exePath string, exeErr error) string {
	if dir := os.Getenv("LOGS_FOLDER"); dir != "" {
		return dir
	}
	if data := os.Getenv("DATA_PATH"); data != "" {
		return filepath.Join(data, "logs")
	}
	if exeErr == nil {
		return filepath.Join(filepath.Dir(exePath), "logs")
	}
	return "logs"
}

// ensureWritable creates dir if needed and proves a file can be written in it.
func ensureWritable(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create log directory %q: %w", dir, err)
	}
	probe, err := os.CreateTemp(dir, ".write-test-*")
	if err != nil {
		return fmt.Errorf("log directory %q is not writable: %w", dir, err)
	}
	probe.Close()
	return os.Remove(probe.Name())
}
