// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Storage backends.
const (
	BackendBadger = "badger"
	BackendSQLite = "sqlite"
)

// Config holds the application configuration.
type Config struct {
	App     AppConfig
	Logger  LoggerConfig
	Server  ServerConfig
	Storage StorageConfig
	Search  SearchConfig
	Inbox   InboxConfig
	Seed    SeedConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Port         string        // Server port (default: 8080)
	ReadTimeout  time.Duration // HTTP read timeout (default: 15s)
	WriteTimeout time.Duration // HTTP write timeout (default: 15s)
	IdleTimeout  time.Duration // HTTP idle timeout (default: 60s)
	// CORSOrigins lists the origins allowed to read the public JSON endpoint (default: *)
	CORSOrigins []string
	// PublicRateLimit is requests per second per client on the public endpoint (0 disables)
	PublicRateLimit float64
	PublicBurst     int
}

// StorageConfig selects the tree store.
type StorageConfig struct {
	// Backend is badger or sqlite (default: badger)
	Backend string
	// Path is the data directory (default: ~/jsonmaker/data)
	Path string
}

// BadgerDir is the badger database directory inside the data path.
func (s StorageConfig) BadgerDir() string {
	return filepath.Join(s.Path, "badger")
}

// SQLiteFile is the sqlite database file inside the data path.
func (s StorageConfig) SQLiteFile() string {
	return filepath.Join(s.Path, "jsonmaker.db")
}

// SearchConfig holds node search configuration.
type SearchConfig struct {
	Enabled bool
	// IndexPath is the bleve index directory (default: {storage}/search.bleve)
	IndexPath string
}

// InboxConfig holds the import inbox configuration.
type InboxConfig struct {
	Enabled bool
	// Dir is watched for <account>.json and <account>@<target>.json files (default: {storage}/inbox)
	Dir string
	// SettleDelay is how long a file must be quiet before it is imported (default: 500ms)
	SettleDelay time.Duration
}

// SeedConfig is the tree every account starts with.
type SeedConfig struct {
	Title string
	Value string
}

// LoadConfig loads configuration from the process command line.
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}

// Load loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("jsonmaker", flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")

	// Server flags
	serverPort := fs.String("port", "", "Server port (default: 8080)")
	readTimeout := fs.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := fs.String("write-timeout", "", "HTTP write timeout (default: 15s)")
	idleTimeout := fs.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	corsOrigins := fs.String("cors-origins", "", "Comma separated origins allowed on the public endpoint (default: *)")
	publicRate := fs.String("public-rate-limit", "", "Public endpoint requests per second per client (default: 10)")
	publicBurst := fs.String("public-burst", "", "Public endpoint burst size (default: 20)")

	// Storage flags
	backend := fs.String("storage-backend", "", "Tree store backend: badger or sqlite (default: badger)")
	dataPath := fs.String("data-path", "", "Base path for stored trees")

	// Search flags
	searchEnabled := fs.String("search-enabled", "", "Index nodes for search (default: true)")
	searchPath := fs.String("search-index-path", "", "Path for the search index")

	// Inbox flags
	inboxEnabled := fs.String("inbox-enabled", "", "Import JSON files dropped in the inbox (default: false)")
	inboxDir := fs.String("inbox-dir", "", "Import inbox directory")
	inboxSettle := fs.String("inbox-settle", "", "Quiet period before an inbox file is imported (default: 500ms)")

	seedTitle := fs.String("seed-title", "", "Root title for new trees (default: Fishdan)")
	seedValue := fs.String("seed-value", "", "Root value for new trees (default: https://www.fishdan.com)")

	envFile := fs.String("env-file", ".env", "Path to .env file")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Server: ServerConfig{
			Port:            getConfigValue(*serverPort, "SERVER_PORT", "8080"),
			CORSOrigins:     splitList(getConfigValue(*corsOrigins, "CORS_ORIGINS", "*")),
			PublicRateLimit: getFloatConfigValue(*publicRate, "PUBLIC_RATE_LIMIT", 10),
			PublicBurst:     getIntConfigValue(*publicBurst, "PUBLIC_BURST", 20),
		},
		Storage: StorageConfig{
			Backend: strings.ToLower(getConfigValue(*backend, "STORAGE_BACKEND", BackendBadger)),
			Path:    getConfigValue(*dataPath, "DATA_PATH", ""),
		},
		Search: SearchConfig{
			Enabled:   getBoolConfigValue(*searchEnabled, "SEARCH_ENABLED", true),
			IndexPath: getConfigValue(*searchPath, "SEARCH_INDEX_PATH", ""),
		},
		Inbox: InboxConfig{
			Enabled: getBoolConfigValue(*inboxEnabled, "INBOX_ENABLED", false),
			Dir:     getConfigValue(*inboxDir, "INBOX_DIR", ""),
		},
		Seed: SeedConfig{
			Title: getConfigValue(*seedTitle, "SEED_TITLE", "Fishdan"),
			Value: getConfigValue(*seedValue, "SEED_VALUE", "https://www.fishdan.com"),
		},
	}

	var err error
	if cfg.Server.ReadTimeout, err = parseDuration(*readTimeout, "SERVER_READ_TIMEOUT", "15s"); err != nil {
		return nil, fmt.Errorf("invalid read timeout: %w", err)
	}
	if cfg.Server.WriteTimeout, err = parseDuration(*writeTimeout, "SERVER_WRITE_TIMEOUT", "15s"); err != nil {
		return nil, fmt.Errorf("invalid write timeout: %w", err)
	}
	if cfg.Server.IdleTimeout, err = parseDuration(*idleTimeout, "SERVER_IDLE_TIMEOUT", "60s"); err != nil {
		return nil, fmt.Errorf("invalid idle timeout: %w", err)
	}
	if cfg.Inbox.SettleDelay, err = parseDuration(*inboxSettle, "INBOX_SETTLE_DELAY", "500ms"); err != nil {
		return nil, fmt.Errorf("invalid inbox settle delay: %w", err)
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	if c.App.Environment == "" {
		return errors.New("ENV is required")
	}

	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	switch c.Storage.Backend {
	case BackendBadger, BackendSQLite:
	default:
		return fmt.Errorf("invalid storage backend: %s (must be badger or sqlite)", c.Storage.Backend)
	}

	if c.Storage.Path == "" {
		return errors.New("data path cannot be empty after expansion")
	}

	if c.Server.PublicRateLimit < 0 {
		return fmt.Errorf("invalid public rate limit: %v", c.Server.PublicRateLimit)
	}
	if c.Server.PublicRateLimit > 0 && c.Server.PublicBurst < 1 {
		return fmt.Errorf("invalid public burst: %d (must be at least 1)", c.Server.PublicBurst)
	}

	if strings.TrimSpace(c.Seed.Title) == "" {
		return errors.New("seed title cannot be empty")
	}

	return nil
}

// expandPaths resolves the data path and the paths derived from it.
func (c *Config) expandPaths() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	if c.Storage.Path, err = expandPath(c.Storage.Path, filepath.Join(homeDir, "jsonmaker", "data")); err != nil {
		return fmt.Errorf("invalid data path: %w", err)
	}
	if c.Search.IndexPath, err = expandPath(c.Search.IndexPath, filepath.Join(c.Storage.Path, "search.bleve")); err != nil {
		return fmt.Errorf("invalid search index path: %w", err)
	}
	if c.Inbox.Dir, err = expandPath(c.Inbox.Dir, filepath.Join(c.Storage.Path, "inbox")); err != nil {
		return fmt.Errorf("invalid inbox path: %w", err)
	}
	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	// Expand tilde.
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	// Make absolute if needed.
	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	// Priority 1: Command-line flag.
	if flagValue != "" {
		return flagValue
	}

	// Priority 2: Environment variable.
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}

	// Priority 3: Default value.
	return defaultValue
}

// getBoolConfigValue returns a bool from flag, env var, or default.
// Accepts: "true", "1", "yes" (case-insensitive) as true; anything else is false.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	result, err := strconv.Atoi(strings.TrimSpace(strValue))
	if err != nil {
		return defaultValue
	}
	return result
}

// getFloatConfigValue returns a float from flag, env var, or default.
func getFloatConfigValue(flagValue, envKey string, defaultValue float64) float64 {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	result, err := strconv.ParseFloat(strings.TrimSpace(strValue), 64)
	if err != nil {
		return defaultValue
	}
	return result
}

func parseDuration(flagValue, envKey, defaultValue string) (time.Duration, error) {
	raw := getConfigValue(flagValue, envKey, defaultValue)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%q: %w", raw, err)
	}
	return d, nil
}

// splitList splits a comma separated value, dropping empty entries.
func splitList(raw string) []string {
	var out []string
	for part := range strings.SplitSeq(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments.
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		// Only set if not already set (env vars take precedence over .env file).
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
