package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	apierrors "github.com/hrygo/bizcache/server/internal/errors"
	"github.com/hrygo/bizcache/store/cache"
)

type InvalidateCacheRequest struct {
	Pattern string `json:"pattern"`
}

type InvalidateCacheResponse struct {
	Deleted int `json:"deleted"`
}

// GET /api/v1/cache/stats
func (s *APIV1Service) GetCacheStats(c echo.Context) error {
	return c.JSON(http.StatusOK, s.Cache.Stats())
}

// InvalidateCache removes every key matched by the regular expression in the
// body. The pattern is not anchored.
// POST /api/v1/cache/invalidate
func (s *APIV1Service) InvalidateCache(c echo.Context) error {
	request := &InvalidateCacheRequest{}
	if err := c.Bind(request); err != nil {
		return apierrors.InvalidArgument("invalid request body")
	}
	if request.Pattern == "" {
		return apierrors.InvalidArgument("pattern is required")
	}

	deleted, err := s.Cache.InvalidatePattern(request.Pattern)
	if err != nil {
		if errors.Is(err, cache.ErrInvalidPattern) {
			return apierrors.Wrap(err, apierrors.ErrCodeInvalidArgument, err.Error())
		}
		return apierrors.Internal(err)
	}
	return c.JSON(http.StatusOK, InvalidateCacheResponse{Deleted: deleted})
}

// DELETE /api/v1/cache
func (s *APIV1Service) ClearCache(c echo.Context) error {
	s.Cache.Clear()
	return c.NoContent(http.StatusNoContent)
}
