// Package logging provides config-driven categorized file-based logging
// for nerddash. Logs are written to .nerddash/logs/ with separate files
// per category. Logging is controlled by debug_mode in
// .nerddash/config.yaml - when false, no logs are written.
package logging

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Category represents a log category/subsystem.
type Category string

const (
	CategoryBoot      Category = "boot"      // Startup and initialization
	CategoryTransport Category = "transport" // WebSocket session lifecycle
	CategoryBus       Category = "bus"       // Event bus dispatch
	CategoryStore     Category = "store"     // Domain state mutations
	CategoryIntent    Category = "intent"    // Outbound intent envelopes
	CategoryConfig    Category = "config"    // Config loading and hot reload
)

// loggingConfig mirrors the relevant parts of config.LoggingConfig
// to avoid circular imports.
type loggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Categories map[string]bool `yaml:"categories"`
	Level      string          `yaml:"level"`
}

// configFile structure for reading .nerddash/config.yaml.
type configFile struct {
	Logging loggingConfig `yaml:"logging"`
}

// Logger wraps a standard logger with category and file output.
type Logger struct {
	category Category
	logger   *log.Logger
	file     *os.File
}

var (
	loggers   = make(map[Category]*Logger)
	loggersMu sync.RWMutex
	logsDir   string
	workspace string
	cfg       loggingConfig
	cfgMu     sync.RWMutex
	logLevel  int
)

// Log levels.
const (
	LevelDebug = 0
	LevelInfo  = 1
	LevelWarn  = 2
	LevelError = 3
)

// Initialize sets up the logging directory and loads config.
// Should be called once at startup with the workspace path.
func Initialize(ws string) error {
	if ws == "" {
		return fmt.Errorf("workspace path required")
	}

	workspace = ws
	logsDir = filepath.Join(workspace, ".nerddash", "logs")

	if err := loadConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "[logging] Warning: could not load config: %v\n", err)
		cfg.DebugMode = false
	}

	if !IsDebugMode() {
		return nil // Silent no-op in production mode
	}

	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	boot := Get(CategoryBoot)
	boot.Info("=== nerddash logging initialized ===")
	boot.Info("Workspace: %s", workspace)
	boot.Info("Logs directory: %s", logsDir)

	return nil
}

// loadConfig reads the logging config from .nerddash/config.yaml.
func loadConfig() error {
	cfgMu.Lock()
	defer cfgMu.Unlock()

	configPath := filepath.Join(workspace, ".nerddash", "config.yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// No config = production mode (no logging)
			cfg.DebugMode = false
			return nil
		}
		return err
	}

	var cf configFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	cfg = cf.Logging

	switch cfg.Level {
	case "debug":
		logLevel = LevelDebug
	case "info":
		logLevel = LevelInfo
	case "warn", "warning":
		logLevel = LevelWarn
	case "error":
		logLevel = LevelError
	default:
		logLevel = LevelInfo
	}

	return nil
}

// ReloadConfig reloads the config from disk.
// Call this if config changes at runtime.
func ReloadConfig() error {
	return loadConfig()
}

// IsDebugMode returns whether debug logging is enabled.
func IsDebugMode() bool {
	cfgMu.RLock()
	defer cfgMu.RUnlock()
	return cfg.DebugMode
}

// IsCategoryEnabled returns whether a specific category is enabled.
func IsCategoryEnabled(category Category) bool {
	cfgMu.RLock()
	defer cfgMu.RUnlock()

	if !cfg.DebugMode {
		return false
	}
	if cfg.Categories == nil {
		return true // All enabled by default in debug mode
	}
	enabled, exists := cfg.Categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

// Get returns (or creates) a logger for the given category.
// Returns a no-op logger if debug mode is disabled or category is disabled.
func Get(category Category) *Logger {
	if !IsCategoryEnabled(category) || logsDir == "" {
		return &Logger{category: category}
	}

	loggersMu.RLock()
	if l, ok := loggers[category]; ok {
		loggersMu.RUnlock()
		return l
	}
	loggersMu.RUnlock()

	loggersMu.Lock()
	defer loggersMu.Unlock()

	// Double-check after acquiring write lock
	if l, ok := loggers[category]; ok {
		return l
	}

	// Date prefix for easy rotation
	date := time.Now().Format("2006-01-02")
	logPath := filepath.Join(logsDir, fmt.Sprintf("%s_%s.log", date, category))

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] Warning: could not open log file %s: %v\n", logPath, err)
		return &Logger{category: category}
	}

	l := &Logger{
		category: category,
		file:     file,
		logger:   log.New(file, "", log.Ldate|log.Ltime|log.Lmicroseconds),
	}
	loggers[category] = l
	return l
}

// Debug logs a debug message (only if level <= debug).
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.logger == nil || logLevel > LevelDebug {
		return
	}
	l.logger.Printf("[DEBUG] %s", fmt.Sprintf(format, args...))
}

// Info logs an informational message (only if level <= info).
func (l *Logger) Info(format string, args ...interface{}) {
	if l.logger == nil || logLevel > LevelInfo {
		return
	}
	l.logger.Printf("[INFO] %s", fmt.Sprintf(format, args...))
}

// Warn logs a warning message (only if level <= warn).
func (l *Logger) Warn(format string, args ...interface{}) {
	if l.logger == nil || logLevel > LevelWarn {
		return
	}
	l.logger.Printf("[WARN] %s", fmt.Sprintf(format, args...))
}

// Error logs an error message (always logged if logger exists).
func (l *Logger) Error(format string, args ...interface{}) {
	if l.logger == nil {
		return
	}
	l.logger.Printf("[ERROR] %s", fmt.Sprintf(format, args...))
}

// CloseAll closes all open log files (call at shutdown).
func CloseAll() {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	for _, l := range loggers {
		if l.file != nil {
			l.file.Close()
		}
	}
	loggers = make(map[Category]*Logger)
}

// =============================================================================
// CONVENIENCE FUNCTIONS - Quick logging without getting a logger first
// These are no-ops if the category is disabled
// =============================================================================

// Boot logs to the boot category.
func Boot(format string, args ...interface{}) {
	Get(CategoryBoot).Info(format, args...)
}

// BootDebug logs debug to the boot category.
func BootDebug(format string, args ...interface{}) {
	Get(CategoryBoot).Debug(format, args...)
}

// Transport logs to the transport category.
func Transport(format string, args ...interface{}) {
	Get(CategoryTransport).Info(format, args...)
}

// TransportDebug logs debug to the transport category.
func TransportDebug(format string, args ...interface{}) {
	Get(CategoryTransport).Debug(format, args...)
}

// TransportWarn logs warning to the transport category.
func TransportWarn(format string, args ...interface{}) {
	Get(CategoryTransport).Warn(format, args...)
}

// TransportError logs error to the transport category.
func TransportError(format string, args ...interface{}) {
	Get(CategoryTransport).Error(format, args...)
}

// Bus logs to the bus category.
func Bus(format string, args ...interface{}) {
	Get(CategoryBus).Info(format, args...)
}

// BusDebug logs debug to the bus category.
func BusDebug(format string, args ...interface{}) {
	Get(CategoryBus).Debug(format, args...)
}

// BusError logs error to the bus category.
func BusError(format string, args ...interface{}) {
	Get(CategoryBus).Error(format, args...)
}

// Store logs to the store category.
func Store(format string, args ...interface{}) {
	Get(CategoryStore).Info(format, args...)
}

// StoreDebug logs debug to the store category.
func StoreDebug(format string, args ...interface{}) {
	Get(CategoryStore).Debug(format, args...)
}

// StoreWarn logs warning to the store category.
func StoreWarn(format string, args ...interface{}) {
	Get(CategoryStore).Warn(format, args...)
}

// Intent logs to the intent category.
func Intent(format string, args ...interface{}) {
	Get(CategoryIntent).Info(format, args...)
}

// IntentWarn logs warning to the intent category.
func IntentWarn(format string, args ...interface{}) {
	Get(CategoryIntent).Warn(format, args...)
}

// Config logs to the config category.
func Config(format string, args ...interface{}) {
	Get(CategoryConfig).Info(format, args...)
}

// ConfigWarn logs warning to the config category.
func ConfigWarn(format string, args ...interface{}) {
	Get(CategoryConfig).Warn(format, args...)
}
