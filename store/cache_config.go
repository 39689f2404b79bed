package store

import (
	"log/slog"

	"github.com/pkg/errors"

	"github.com/hrygo/bizcache/internal/profile"
	"github.com/hrygo/bizcache/store/cache"
)

// NewCache builds the process cache from the profile settings.
func NewCache(profile *profile.Profile, logger *slog.Logger, onEviction func(key string, value any)) (*cache.Cache, error) {
	policy, err := cache.ParsePolicy(profile.CachePolicy)
	if err != nil {
		return nil, errors.Wrap(err, "invalid cache configuration")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return cache.New(cache.Config{
		MaxItems:        profile.CacheMaxItems,
		DefaultTTL:      profile.CacheDefaultTTL,
		CleanupInterval: profile.CacheCleanupInterval,
		Policy:          policy,
		OnEviction:      onEviction,
		Logger:          logger.With("component", "cache"),
		Production:      profile.IsProd(),
		Instances:       profile.Instances,
		SharedCacheAddr: profile.SharedCacheAddr,
	}), nil
}
