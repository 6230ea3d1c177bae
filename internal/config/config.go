package config

import (
	"fmt"
	"net/netip"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"nozze/internal/core"
)

// Catalog backends.
const (
	BackendFiles  = "files"
	BackendSQLite = "sqlite"
	BackendSheets = "sheets"
)

type Config struct {
	// HTTP Server
	Port     string
	LogLevel string

	// Backend selection
	DataBackend string
	DataDir     string

	// Database
	SQLiteDBPath string

	// AMQP, optional for the server and required by the worker
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets
	GoogleSpreadsheetID          string
	GoogleCategoriesSheet        string
	GooglePackagesSheet          string
	GoogleServiceAccountJSON     string
	GoogleServiceAccountFile     string
	GoogleApplicationCredentials string

	// Planning defaults, as decimal amounts
	DefaultBudget string
	DefaultCut    string

	// Plan cache
	PlanCacheSize int
	PlanCacheTTL  time.Duration

	// Worker
	SweepInterval  time.Duration
	SweepBatchSize int

	RateLimitPerMinute int
	// Comma separated CIDRs whose X-Forwarded-For is trusted
	TrustedProxies string
}

func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8081"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DataBackend: getEnv("DATA_BACKEND", BackendFiles),
		DataDir:     getEnv("DATA_DIR", "./data"),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/nozze.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "nozze"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "scenarios"),

		GoogleSpreadsheetID:          getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleCategoriesSheet:        getEnv("GOOGLE_CATEGORIES_SHEET_NAME", "Categories"),
		GooglePackagesSheet:          getEnv("GOOGLE_PACKAGES_SHEET_NAME", "Packages"),
		GoogleServiceAccountJSON:     getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile:     getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		GoogleApplicationCredentials: getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),

		DefaultBudget: getEnv("DEFAULT_BUDGET", "40000"),
		DefaultCut:    getEnv("DEFAULT_CUT", "2000"),

		PlanCacheSize: getEnvInt("PLAN_CACHE_SIZE", 256),
		PlanCacheTTL:  getEnvDuration("PLAN_CACHE_TTL", 10*time.Minute),

		SweepInterval:  getEnvDuration("SWEEP_INTERVAL", 30*time.Second),
		SweepBatchSize: getEnvInt("SWEEP_BATCH_SIZE", 10),

		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		TrustedProxies:     getEnv("TRUSTED_PROXIES", ""),
	}
}

// Validate validates the configuration and returns every problem found
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLevels, strings.ToLower(c.LogLevel)) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, validLevels))
	}

	validBackends := []string{BackendFiles, BackendSQLite, BackendSheets}
	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	// The files backend reads DATA_DIR and the sqlite backend seeds from it.
	if (c.DataBackend == BackendFiles || c.DataBackend == BackendSQLite) && c.DataDir == "" {
		errors = append(errors, "data directory cannot be empty when using files or sqlite backend")
	}

	if c.DataBackend == BackendSQLite {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.DataBackend == BackendSheets {
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets backend")
		}
		if c.GoogleCategoriesSheet == "" || c.GooglePackagesSheet == "" {
			errors = append(errors, "Google categories and packages sheet names cannot be empty")
		}
		credFile := c.GoogleServiceAccountFile
		if credFile == "" {
			credFile = c.GoogleApplicationCredentials
		}
		if c.GoogleServiceAccountJSON == "" && credFile == "" {
			errors = append(errors, "one of GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_APPLICATION_CREDENTIALS must be provided for sheets backend")
		} else if c.GoogleServiceAccountJSON == "" {
			if _, err := os.Stat(credFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", credFile))
			}
		}
	}

	budget, errBudget := core.ParseAmount(c.DefaultBudget)
	if errBudget != nil {
		errors = append(errors, fmt.Sprintf("invalid default budget '%s': must be a non-negative amount", c.DefaultBudget))
	}
	cut, errCut := core.ParseAmount(c.DefaultCut)
	if errCut != nil {
		errors = append(errors, fmt.Sprintf("invalid default cut '%s': must be a non-negative amount", c.DefaultCut))
	}
	if errBudget == nil && errCut == nil && cut.Cents > budget.Cents {
		errors = append(errors, fmt.Sprintf("default cut %s exceeds default budget %s", cut, budget))
	}

	if c.PlanCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid plan cache size %d: must be at least 1", c.PlanCacheSize))
	}
	if c.PlanCacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid plan cache TTL %v: must be at least 1 second", c.PlanCacheTTL))
	}

	if c.SweepBatchSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid sweep batch size %d: must be at least 1", c.SweepBatchSize))
	} else if c.SweepBatchSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid sweep batch size %d: must be at most 1000", c.SweepBatchSize))
	}
	if c.SweepInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid sweep interval %v: must be at least 1 second", c.SweepInterval))
	} else if c.SweepInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid sweep interval %v: must be at most 24 hours", c.SweepInterval))
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}

	for _, cidr := range c.TrustedProxyList() {
		if _, err := netip.ParsePrefix(cidr); err != nil {
			errors = append(errors, fmt.Sprintf("invalid trusted proxy '%s': must be a CIDR", cidr))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// Defaults returns the default budget and cut. Call after Validate.
func (c *Config) Defaults() (budget, cut core.Money) {
	budget, _ = core.ParseAmount(c.DefaultBudget)
	cut, _ = core.ParseAmount(c.DefaultCut)
	return budget, cut
}

// TrustedProxyList splits TrustedProxies into trimmed, non-empty CIDRs.
func (c *Config) TrustedProxyList() []string {
	var out []string
	for _, p := range strings.Split(c.TrustedProxies, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
