package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all client configuration.
type Config struct {
	API     APIConfig
	Storage StorageConfig
	Paging  PagingConfig
	LogFile string // diagnostics go here when set
	// RegisterDelay is the pause between a successful registration and the login prompt.
	RegisterDelay time.Duration
}

// APIConfig contains backend settings.
type APIConfig struct {
	BaseURL string        // e.g. http://localhost:8080/api
	Timeout time.Duration // 0 means wait indefinitely
}

// StorageConfig locates the persisted session.
type StorageConfig struct {
	Home    string
	DBPath  string
	KeyPath string
}

// PagingConfig holds the page size of each list.
type PagingConfig struct {
	Books        int
	Users        int
	Transactions int
}

// Load reads configuration from the environment. Each envFile that exists is
// loaded first; variables already set in the environment win.
func Load(envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	home := getEnv("LIBRARY_HOME", "")
	if home == "" {
		userHome, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("LIBRARY_HOME is not set and no home directory: %w", err)
		}
		home = filepath.Join(userHome, ".librarydesk")
	}

	cfg := &Config{
		API: APIConfig{
			BaseURL: getEnv("LIBRARY_API_URL", "http://localhost:8080/api"),
		},
		Storage: StorageConfig{
			Home:    home,
			DBPath:  getEnv("LIBRARY_DB_PATH", filepath.Join(home, "session.db")),
			KeyPath: getEnv("LIBRARY_KEY_PATH", filepath.Join(home, "session.key")),
		},
		LogFile: getEnv("LIBRARY_LOG_FILE", ""),
	}

	var err error
	if cfg.API.Timeout, err = getEnvDuration("LIBRARY_HTTP_TIMEOUT", 0); err != nil {
		return nil, err
	}
	if cfg.RegisterDelay, err = getEnvDuration("LIBRARY_REGISTER_DELAY", 3*time.Second); err != nil {
		return nil, err
	}
	if cfg.Paging.Books, err = getEnvInt("LIBRARY_BOOKS_PAGE_SIZE", 9); err != nil {
		return nil, err
	}
	if cfg.Paging.Users, err = getEnvInt("LIBRARY_USERS_PAGE_SIZE", 3); err != nil {
		return nil, err
	}
	if cfg.Paging.Transactions, err = getEnvInt("LIBRARY_TRANSACTIONS_PAGE_SIZE", 10); err != nil {
		return nil, err
	}

	if cfg.API.BaseURL == "" {
		return nil, fmt.Errorf("LIBRARY_API_URL must not be empty")
	}
	for name, n := range map[string]int{
		"LIBRARY_BOOKS_PAGE_SIZE":        cfg.Paging.Books,
		"LIBRARY_USERS_PAGE_SIZE":        cfg.Paging.Users,
		"LIBRARY_TRANSACTIONS_PAGE_SIZE": cfg.Paging.Transactions,
	} {
		if n < 1 {
			return nil, fmt.Errorf("%s must be at least 1, got %d", name, n)
		}
	}
	return cfg, nil
}

// getEnv retrieves an environment variable with a default fallback.
func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

// getEnvInt retrieves an environment variable as an integer with a default fallback.
func getEnvInt(key string, defaultVal int) (int, error) {
	if value, exists := os.LookupEnv(key); exists {
		intVal, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("invalid integer for %s: %w", key, err)
		}
		return intVal, nil
	}
	return defaultVal, nil
}

func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	if value, exists := os.LookupEnv(key); exists {
		d, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %w", key, err)
		}
		return d, nil
	}
	return defaultVal, nil
}

// String returns a string representation of the config (the session key path is masked).
func (c *Config) String() string {
	return fmt.Sprintf("Config{API: %s, timeout: %s, session: %s, key: *** (masked) ***, pages: %d/%d/%d}",
		c.API.BaseURL, c.API.Timeout, c.Storage.DBPath, c.Paging.Books, c.Paging.Users, c.Paging.Transactions)
}
