package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Profile is the configuration to start main server.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Addr is the binding address for server
	Addr string
	// Port is the binding port for server
	Port int
	// Data is the data directory
	Data string
	// DSN points to where bizcache stores its own data
	DSN string
	// Driver is the database driver (sqlite or postgres)
	Driver string
	// Version is the current version of server
	Version string

	// Cache Configuration
	CacheMaxItems        int           // BIZCACHE_CACHE_MAX_ITEMS (default: 1000)
	CacheDefaultTTL      time.Duration // BIZCACHE_CACHE_TTL (default: 5m)
	CacheCleanupInterval time.Duration // BIZCACHE_CACHE_CLEANUP_INTERVAL (default: 0, lazy expiration only)
	CachePolicy          string        // BIZCACHE_CACHE_POLICY (default: fifo)

	// Deployment Configuration
	Instances       int    // BIZCACHE_INSTANCES (default: 1)
	SharedCacheAddr string // BIZCACHE_SHARED_CACHE_ADDR (default: "")

	// Rate Limiting
	RateLimitRPS   float64 // BIZCACHE_RATE_LIMIT_RPS (default: 10)
	RateLimitBurst int     // BIZCACHE_RATE_LIMIT_BURST (default: 20)

	// AdminToken guards cache administration routes. Empty leaves them open in
	// dev and demo and disabled in prod.
	AdminToken string // BIZCACHE_ADMIN_TOKEN
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsProd returns true when running in production mode.
func (p *Profile) IsProd() bool {
	return p.Mode == "prod"
}

// getEnvOrDefault returns the environment variable value or the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// FromEnv loads configuration from environment variables.
// Values already set on the profile are kept when the variable is empty.
func (p *Profile) FromEnv() {
	getInt := func(key string, current, defaultValue int) int {
		if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
			return v
		}
		if current != 0 {
			return current
		}
		return defaultValue
	}
	getDuration := func(key string, current, defaultValue time.Duration) time.Duration {
		if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
			return v
		}
		if current != 0 {
			return current
		}
		return defaultValue
	}

	p.Mode = getEnvOrDefault("BIZCACHE_MODE", p.Mode)
	p.Driver = getEnvOrDefault("BIZCACHE_DRIVER", p.Driver)
	p.DSN = getEnvOrDefault("BIZCACHE_DSN", p.DSN)
	p.Data = getEnvOrDefault("BIZCACHE_DATA", p.Data)

	p.CacheMaxItems = getInt("BIZCACHE_CACHE_MAX_ITEMS", p.CacheMaxItems, 1000)
	p.CacheDefaultTTL = getDuration("BIZCACHE_CACHE_TTL", p.CacheDefaultTTL, 5*time.Minute)
	p.CacheCleanupInterval = getDuration("BIZCACHE_CACHE_CLEANUP_INTERVAL", p.CacheCleanupInterval, 0)
	p.CachePolicy = getEnvOrDefault("BIZCACHE_CACHE_POLICY", p.CachePolicy)
	if p.CachePolicy == "" {
		p.CachePolicy = "fifo"
	}

	p.Instances = getInt("BIZCACHE_INSTANCES", p.Instances, 1)
	p.SharedCacheAddr = getEnvOrDefault("BIZCACHE_SHARED_CACHE_ADDR", p.SharedCacheAddr)

	if v, err := strconv.ParseFloat(os.Getenv("BIZCACHE_RATE_LIMIT_RPS"), 64); err == nil {
		p.RateLimitRPS = v
	} else if p.RateLimitRPS == 0 {
		p.RateLimitRPS = 10
	}
	p.RateLimitBurst = getInt("BIZCACHE_RATE_LIMIT_BURST", p.RateLimitBurst, 20)
	p.AdminToken = getEnvOrDefault("BIZCACHE_ADMIN_TOKEN", p.AdminToken)
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}
	if p.Driver == "" {
		p.Driver = "sqlite"
	}
	if p.Driver != "sqlite" && p.Driver != "postgres" {
		return errors.Errorf("unsupported driver %q: only 'sqlite' and 'postgres' are supported", p.Driver)
	}
	if p.CacheMaxItems < 0 {
		return errors.Errorf("cache max items must not be negative, got %d", p.CacheMaxItems)
	}
	if p.Instances < 1 {
		p.Instances = 1
	}

	if p.Mode == "prod" && p.Data == "" {
		if runtime.GOOS == "windows" {
			p.Data = filepath.Join(os.Getenv("ProgramData"), "bizcache")
			if _, err := os.Stat(p.Data); os.IsNotExist(err) {
				if err := os.MkdirAll(p.Data, 0770); err != nil {
					slog.Error("failed to create data directory", slog.String("data", p.Data), slog.String("error", err.Error()))
					return err
				}
			}
		} else {
			p.Data = "/var/opt/bizcache"
		}
	}
	if p.Data == "" {
		p.Data = "."
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check dsn", slog.String("data", dataDir), slog.String("error", err.Error()))
		return err
	}

	p.Data = dataDir
	if p.Driver == "sqlite" && p.DSN == "" {
		dbFile := fmt.Sprintf("bizcache_%s.db", p.Mode)
		p.DSN = filepath.Join(dataDir, dbFile)
	}
	if p.Driver == "postgres" && p.DSN == "" {
		return errors.New("postgres driver requires a DSN")
	}

	return nil
}
