package test

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/hrygo/bizcache/internal/profile"
	"github.com/hrygo/bizcache/store"
	"github.com/hrygo/bizcache/store/cache"
	"github.com/hrygo/bizcache/store/db"
)

// NewTestingStore returns a migrated store backed by a fresh database and a new
// cache. SQLite is used unless DRIVER=postgres and POSTGRES_TEST_DSN are set.
func NewTestingStore(ctx context.Context, t *testing.T) *store.Store {
	t.Helper()
	return NewTestingStoreWithCache(ctx, t, cache.New(cache.Config{Logger: slog.New(slog.DiscardHandler)}))
}

// NewTestingStoreWithCache is NewTestingStore with a caller-provided cache.
func NewTestingStoreWithCache(ctx context.Context, t *testing.T, c *cache.Cache) *store.Store {
	t.Helper()

	profile := getTestingProfile(t)
	dbDriver, err := db.NewDBDriver(profile)
	if err != nil {
		t.Fatalf("failed to create db driver: %v", err)
	}

	s := store.New(dbDriver, profile, c)
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate db: %v", err)
	}
	t.Cleanup(func() {
		c.Close()
		s.Close()
	})
	return s
}

func getTestingProfile(t *testing.T) *profile.Profile {
	t.Helper()

	driver := getDriverFromEnv()
	p := &profile.Profile{
		Mode:   "dev",
		Driver: driver,
	}
	switch driver {
	case "postgres":
		p.DSN = GetPostgresDSN(t)
	default:
		dir := t.TempDir()
		p.Data = dir
		p.DSN = filepath.Join(dir, "bizcache_test.db")
	}
	return p
}

func getDriverFromEnv() string {
	if driver := os.Getenv("DRIVER"); driver != "" {
		return driver
	}
	return "sqlite"
}

// GetPostgresDSN returns the DSN of the PostgreSQL test database, skipping the
// test when none is configured. The database must be empty.
func GetPostgresDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN is not set")
	}
	return dsn
}
