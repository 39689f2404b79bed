package cache

import (
	"fmt"
	"regexp"

	"github.com/pkg/errors"
)

// ErrInvalidPattern wraps regexp compilation failures from InvalidatePattern.
var ErrInvalidPattern = errors.New("invalid invalidation pattern")

// InvalidatePattern removes every key matched by the regular expression pattern
// and returns how many were removed. The pattern is not anchored: "user:1:" also
// matches "superuser:1:x". Use a leading ^ to match prefixes only.
func (c *Cache) InvalidatePattern(pattern string) (int, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return 0, &patternError{pattern: pattern, cause: err}
	}
	return c.InvalidateRegexp(re), nil
}

// InvalidateRegexp removes every key matched by re. GetOrSet fetches running for
// matched keys will not store their results.
func (c *Cache) InvalidateRegexp(re *regexp.Regexp) int {
	c.mu.Lock()
	c.abandonFlightsLocked(re.MatchString)
	removed := 0
	for key := range c.entries {
		if re.MatchString(key) {
			c.removeLocked(key)
			removed++
		}
	}
	c.mu.Unlock()

	c.logger.Debug("cache invalidated", "pattern", re.String(), "removed", removed)
	return removed
}

// Key grammar: {domain}:{scopeId}:{resource}. The invalidation helpers below only
// see keys built with these functions.

// UserKey returns the key of a per-user resource, e.g. "user:42:profile".
func UserKey(userID int64, resource string) string {
	return fmt.Sprintf("user:%d:%s", userID, resource)
}

// ProductKey returns the key of a single product, e.g. "product:7".
func ProductKey(productID int64) string {
	return fmt.Sprintf("product:%d", productID)
}

// ProductSlugKey returns the key of a product looked up by slug.
func ProductSlugKey(slug string) string {
	return "product:slug:" + slug
}

// AllProductsKey returns the key of the product listing.
func AllProductsKey() string {
	return "products:all"
}

// InvalidateUser removes every entry of userID.
func (c *Cache) InvalidateUser(userID int64) int {
	return c.InvalidateRegexp(regexp.MustCompile(fmt.Sprintf("^user:%d:", userID)))
}

var productPattern = regexp.MustCompile("^product:")

// InvalidateProducts removes every single-product entry. The listing stored under
// AllProductsKey does not match and has to be deleted separately.
func (c *Cache) InvalidateProducts() int {
	return c.InvalidateRegexp(productPattern)
}

type patternError struct {
	pattern string
	cause   error
}

func (e *patternError) Error() string {
	return fmt.Sprintf("%s %q: %v", ErrInvalidPattern.Error(), e.pattern, e.cause)
}

func (e *patternError) Unwrap() []error {
	return []error{ErrInvalidPattern, e.cause}
}
