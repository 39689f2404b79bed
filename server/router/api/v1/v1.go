package v1

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/hrygo/bizcache/internal/profile"
	apierrors "github.com/hrygo/bizcache/server/internal/errors"
	"github.com/hrygo/bizcache/server/internal/observability"
	"github.com/hrygo/bizcache/server/middleware"
	"github.com/hrygo/bizcache/store"
	"github.com/hrygo/bizcache/store/cache"
)

// APIV1Service serves the JSON API under /api/v1.
type APIV1Service struct {
	Profile *profile.Profile
	Store   *store.Store
	Cache   *cache.Cache
}

func NewAPIV1Service(profile *profile.Profile, store *store.Store) *APIV1Service {
	return &APIV1Service{
		Profile: profile,
		Store:   store,
		Cache:   store.Cache(),
	}
}

// RegisterRoutes mounts every API route on g.
func (s *APIV1Service) RegisterRoutes(g *echo.Group) {
	g.GET("/products", s.ListProducts)
	g.POST("/products", s.CreateProduct)
	g.GET("/products/slug/:slug", s.GetProductBySlug)
	g.GET("/products/:id", s.GetProduct)
	g.PATCH("/products/:id", s.UpdateProduct)
	g.DELETE("/products/:id", s.DeleteProduct)

	g.GET("/users/:id/preferences", s.GetUserPreferences)
	g.PUT("/users/:id/preferences", s.UpsertUserPreferences)

	g.GET("/cache/stats", s.GetCacheStats)
	adminAuth := middleware.AdminAuth(s.Profile.AdminToken, !s.Profile.IsProd())
	g.POST("/cache/invalidate", s.InvalidateCache, adminAuth)
	g.DELETE("/cache", s.ClearCache, adminAuth)
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Code    apierrors.ErrorCode `json:"code"`
	Message string              `json:"message"`
}

// ErrorHandler writes errors returned by handlers as ErrorResponse. APIError keeps
// its code, echo.HTTPError keeps its status, everything else is INTERNAL.
func ErrorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := toErrorResponse(err)
		if status >= http.StatusInternalServerError {
			log := logger
			if reqCtx, ok := observability.FromContext(c.Request().Context()); ok {
				log = reqCtx.WithFields()
			}
			log.Error("request failed", slog.String(observability.LogFieldErrorCode, string(body.Code)), slog.String("error", err.Error()))
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, body)
		}
		if err != nil {
			logger.Error("failed to write error response", slog.String("error", err.Error()))
		}
	}
}

func toErrorResponse(err error) (int, ErrorResponse) {
	var apiErr *apierrors.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code.HTTPStatus(), ErrorResponse{Code: apiErr.Code, Message: apiErr.Message}
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		code := apierrors.ErrCodeInternal
		switch httpErr.Code {
		case http.StatusBadRequest, http.StatusMethodNotAllowed, http.StatusUnsupportedMediaType:
			code = apierrors.ErrCodeInvalidArgument
		case http.StatusNotFound:
			code = apierrors.ErrCodeNotFound
		case http.StatusTooManyRequests:
			code = apierrors.ErrCodeRateLimitExceeded
		}
		message := http.StatusText(httpErr.Code)
		if m, ok := httpErr.Message.(string); ok {
			message = m
		}
		return httpErr.Code, ErrorResponse{Code: code, Message: message}
	}

	return http.StatusInternalServerError, ErrorResponse{Code: apierrors.ErrCodeInternal, Message: "internal error"}
}

// storeError maps an error from the store to an APIError.
func storeError(err error, resource string) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return apierrors.NotFound(resource)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return apierrors.Wrap(err, apierrors.ErrCodeCanceled, "request canceled")
	default:
		return apierrors.Internal(err)
	}
}

func parseIDParam(c echo.Context, name string) (int64, error) {
	raw := c.Param(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apierrors.InvalidArgument("invalid " + name + ": " + raw).WithContext(name, raw)
	}
	return id, nil
}
