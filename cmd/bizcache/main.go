package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/hrygo/bizcache/internal/profile"
	"github.com/hrygo/bizcache/server"
	"github.com/hrygo/bizcache/store"
	"github.com/hrygo/bizcache/store/cache"
	"github.com/hrygo/bizcache/store/db"
)

const version = "0.1.0"

const shutdownTimeout = 10 * time.Second

var rootCmd = &cobra.Command{
	Use:          "bizcache",
	Short:        "Product catalogue and user preferences API fronted by a bounded TTL cache.",
	Version:      version,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		instanceProfile, err := loadProfile()
		if err != nil {
			return err
		}
		logger := newLogger(instanceProfile)
		slog.SetDefault(logger)
		return run(cmd.Context(), instanceProfile, logger)
	},
}

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("driver", "sqlite")
	viper.SetDefault("port", 8081)

	flags := rootCmd.PersistentFlags()
	flags.String("mode", "dev", `mode of server, can be "prod" or "dev" or "demo"`)
	flags.String("addr", "", "address of server")
	flags.Int("port", 8081, "port of server")
	flags.String("data", "", "data directory")
	flags.String("driver", "sqlite", "database driver, sqlite or postgres")
	flags.String("dsn", "", "database source name")
	flags.Int("cache-max-items", cache.DefaultMaxItems, "maximum number of cache entries")
	flags.Duration("cache-ttl", cache.DefaultTTL, "default lifetime of cache entries")
	flags.Duration("cache-cleanup-interval", 0, "interval of the expired entry sweeper, 0 disables it")
	flags.String("cache-policy", cache.PolicyFIFO, "cache eviction policy, fifo or lru")
	flags.Int("instances", 1, "number of replicas serving the same data")
	flags.String("shared-cache-addr", "", "address of a shared cache, silences the multi-instance warning")
	flags.Float64("rate-limit-rps", 10, "requests per second allowed per client")
	flags.Int("rate-limit-burst", 20, "request burst allowed per client")
	flags.String("admin-token", "", "bearer token for cache administration routes")

	for _, name := range []string{
		"mode", "addr", "port", "data", "driver", "dsn",
		"cache-max-items", "cache-ttl", "cache-cleanup-interval", "cache-policy",
		"instances", "shared-cache-addr", "rate-limit-rps", "rate-limit-burst", "admin-token",
	} {
		if err := viper.BindPFlag(name, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("bizcache")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	rootCmd.AddCommand(benchCmd)
}

// loadProfile builds the profile from flags and BIZCACHE_* variables.
func loadProfile() (*profile.Profile, error) {
	instanceProfile := &profile.Profile{
		Mode:                 viper.GetString("mode"),
		Addr:                 viper.GetString("addr"),
		Port:                 viper.GetInt("port"),
		Data:                 viper.GetString("data"),
		Driver:               viper.GetString("driver"),
		DSN:                  viper.GetString("dsn"),
		Version:              version,
		CacheMaxItems:        viper.GetInt("cache-max-items"),
		CacheDefaultTTL:      viper.GetDuration("cache-ttl"),
		CacheCleanupInterval: viper.GetDuration("cache-cleanup-interval"),
		CachePolicy:          viper.GetString("cache-policy"),
		Instances:            viper.GetInt("instances"),
		SharedCacheAddr:      viper.GetString("shared-cache-addr"),
		RateLimitRPS:         viper.GetFloat64("rate-limit-rps"),
		RateLimitBurst:       viper.GetInt("rate-limit-burst"),
		AdminToken:           viper.GetString("admin-token"),
	}
	instanceProfile.FromEnv()
	if err := instanceProfile.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return instanceProfile, nil
}

func newLogger(p *profile.Profile) *slog.Logger {
	level := slog.LevelInfo
	if p.IsDev() {
		level = slog.LevelDebug
	}
	options := &slog.HandlerOptions{Level: level}
	if p.IsProd() {
		return slog.New(slog.NewJSONHandler(os.Stderr, options))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, options))
}

// openStore opens the database, applies the schema and returns a store with its
// cache. The returned cleanup closes both.
func openStore(ctx context.Context, p *profile.Profile, logger *slog.Logger) (*store.Store, func(), error) {
	dbDriver, err := db.NewDBDriver(p)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to create db driver")
	}

	appCache, err := store.NewCache(p, logger, func(key string, _ any) {
		logger.Debug("cache entry displaced", "key", key)
	})
	if err != nil {
		dbDriver.Close()
		return nil, nil, err
	}

	storeInstance := store.New(dbDriver, p, appCache)
	cleanup := func() {
		appCache.Close()
		if err := storeInstance.Close(); err != nil {
			logger.Error("failed to close store", "error", err)
		}
	}
	if err := storeInstance.Migrate(ctx); err != nil {
		cleanup()
		return nil, nil, errors.Wrap(err, "failed to migrate")
	}
	return storeInstance, cleanup, nil
}

func run(ctx context.Context, p *profile.Profile, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	storeInstance, cleanup, err := openStore(ctx, p, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	s, err := server.NewServer(p, storeInstance, logger)
	if err != nil {
		return errors.Wrap(err, "failed to create server")
	}

	printGreetings(p)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.Start(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped", "cache", storeInstance.Cache().String())
	return nil
}

func printGreetings(p *profile.Profile) {
	fmt.Printf("bizcache %s started successfully!\n", p.Version)
	fmt.Printf("Data directory: %s\n", p.Data)
	fmt.Printf("Database driver: %s\n", p.Driver)
	fmt.Printf("Cache: max %d entries, ttl %s, policy %s\n", p.CacheMaxItems, p.CacheDefaultTTL, p.CachePolicy)
	addr := p.Addr
	if addr == "" {
		addr = "localhost"
	}
	fmt.Printf("Server running on http://%s:%d\n", addr, p.Port)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
