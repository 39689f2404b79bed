package store

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"github.com/pkg/errors"

	"github.com/hrygo/bizcache/internal/profile"
	"github.com/hrygo/bizcache/store/cache"
)

// ErrNotFound is returned by writes that target a missing row.
var ErrNotFound = errors.New("not found")

const (
	productListTTL     = 5 * time.Minute
	productTTL         = 10 * time.Minute
	userPreferencesTTL = 5 * time.Minute

	userPreferencesResource = "preferences"
)

// Store provides database access to all raw objects. Reads go through the
// injected cache, writes go to the driver and then invalidate the affected keys.
type Store struct {
	profile *profile.Profile
	driver  Driver
	cache   *cache.Cache
}

// New creates a new instance of Store. The cache is owned by the caller.
func New(driver Driver, profile *profile.Profile, c *cache.Cache) *Store {
	return &Store{
		driver:  driver,
		profile: profile,
		cache:   c,
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

// Cache returns the cache fronting the store.
func (s *Store) Cache() *cache.Cache {
	return s.cache
}

func (s *Store) Close() error {
	return s.driver.Close()
}

// ListActiveProducts returns the active products ordered by sort order.
func (s *Store) ListActiveProducts(ctx context.Context) ([]*Product, error) {
	return cache.GetOrSetAs(ctx, s.cache, cache.AllProductsKey(), productListTTL, func(ctx context.Context) ([]*Product, error) {
		status := ProductActive
		return s.driver.ListProducts(ctx, &FindProduct{Status: &status})
	})
}

// GetProductBySlug returns the product with slug, or nil when there is none.
// The miss is cached too.
func (s *Store) GetProductBySlug(ctx context.Context, slug string) (*Product, error) {
	return cache.GetOrSetAs(ctx, s.cache, cache.ProductSlugKey(slug), productTTL, func(ctx context.Context) (*Product, error) {
		return s.getProduct(ctx, &FindProduct{Slug: &slug})
	})
}

// GetProductByID returns the product with id, or nil when there is none.
func (s *Store) GetProductByID(ctx context.Context, id int64) (*Product, error) {
	return cache.GetOrSetAs(ctx, s.cache, cache.ProductKey(id), productTTL, func(ctx context.Context) (*Product, error) {
		return s.getProduct(ctx, &FindProduct{ID: &id})
	})
}

func (s *Store) getProduct(ctx context.Context, find *FindProduct) (*Product, error) {
	limit := 1
	find.Limit = &limit
	list, err := s.driver.ListProducts(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

// CreateProduct inserts create. A missing slug is generated and a missing status
// defaults to ACTIVE.
func (s *Store) CreateProduct(ctx context.Context, create *Product) (*Product, error) {
	if create.Slug == "" {
		create.Slug = strings.ToLower(shortuuid.New())
	}
	if create.Status == "" {
		create.Status = ProductActive
	}
	if !create.Status.Valid() {
		return nil, errors.Errorf("invalid product status %q", create.Status)
	}

	product, err := s.driver.CreateProduct(ctx, create)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create product")
	}
	s.invalidateProducts()
	return product, nil
}

func (s *Store) UpdateProduct(ctx context.Context, update *UpdateProduct) (*Product, error) {
	if update.Status != nil && !update.Status.Valid() {
		return nil, errors.Errorf("invalid product status %q", *update.Status)
	}

	product, err := s.driver.UpdateProduct(ctx, update)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to update product %d", update.ID)
	}
	s.invalidateProducts()
	return product, nil
}

func (s *Store) DeleteProduct(ctx context.Context, delete *DeleteProduct) error {
	if err := s.driver.DeleteProduct(ctx, delete); err != nil {
		return errors.Wrapf(err, "failed to delete product %d", delete.ID)
	}
	s.invalidateProducts()
	return nil
}

// invalidateProducts drops every single-product entry and the listing.
func (s *Store) invalidateProducts() {
	removed := s.cache.InvalidateProducts()
	if s.cache.Delete(cache.AllProductsKey()) {
		removed++
	}
	slog.Debug("product cache invalidated", "removed", removed)
}

// GetUserPreferences returns the preferences of userID, or nil when none were saved.
func (s *Store) GetUserPreferences(ctx context.Context, userID int64) (*UserPreferences, error) {
	key := cache.UserKey(userID, userPreferencesResource)
	return cache.GetOrSetAs(ctx, s.cache, key, userPreferencesTTL, func(ctx context.Context) (*UserPreferences, error) {
		return s.driver.GetUserPreferences(ctx, &FindUserPreferences{UserID: userID})
	})
}

// UpsertUserPreferences saves the preferences and drops every cached entry of the user.
func (s *Store) UpsertUserPreferences(ctx context.Context, upsert *UpsertUserPreferences) (*UserPreferences, error) {
	preferences, err := s.driver.UpsertUserPreferences(ctx, upsert)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to upsert preferences of user %d", upsert.UserID)
	}
	s.cache.InvalidateUser(upsert.UserID)
	return preferences, nil
}
