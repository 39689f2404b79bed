package v1

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	apierrors "github.com/hrygo/bizcache/server/internal/errors"
	"github.com/hrygo/bizcache/store"
)

// Product is the API representation of store.Product.
type Product struct {
	ID          int64     `json:"id"`
	Slug        string    `json:"slug"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	PriceCents  int64     `json:"price_cents"`
	Status      string    `json:"status"`
	SortOrder   int32     `json:"sort_order"`
	CreateTime  time.Time `json:"create_time"`
	UpdateTime  time.Time `json:"update_time"`
}

type CreateProductRequest struct {
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	Description string `json:"description"`
	PriceCents  int64  `json:"price_cents"`
	Status      string `json:"status"`
	SortOrder   int32  `json:"sort_order"`
}

// UpdateProductRequest carries the fields to change. Absent fields are kept.
type UpdateProductRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	PriceCents  *int64  `json:"price_cents"`
	Status      *string `json:"status"`
	SortOrder   *int32  `json:"sort_order"`
}

// ListProducts returns the active products.
// GET /api/v1/products
func (s *APIV1Service) ListProducts(c echo.Context) error {
	products, err := s.Store.ListActiveProducts(c.Request().Context())
	if err != nil {
		return storeError(err, "products")
	}
	response := make([]*Product, 0, len(products))
	for _, product := range products {
		response = append(response, convertProductFromStore(product))
	}
	return c.JSON(http.StatusOK, response)
}

// GET /api/v1/products/:id
func (s *APIV1Service) GetProduct(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	product, err := s.Store.GetProductByID(c.Request().Context(), id)
	if err != nil {
		return storeError(err, "product")
	}
	if product == nil {
		return apierrors.NotFound("product")
	}
	return c.JSON(http.StatusOK, convertProductFromStore(product))
}

// GET /api/v1/products/slug/:slug
func (s *APIV1Service) GetProductBySlug(c echo.Context) error {
	slug := strings.TrimSpace(c.Param("slug"))
	if slug == "" {
		return apierrors.InvalidArgument("slug is required")
	}
	product, err := s.Store.GetProductBySlug(c.Request().Context(), slug)
	if err != nil {
		return storeError(err, "product")
	}
	if product == nil {
		return apierrors.NotFound("product")
	}
	return c.JSON(http.StatusOK, convertProductFromStore(product))
}

// POST /api/v1/products
func (s *APIV1Service) CreateProduct(c echo.Context) error {
	request := &CreateProductRequest{}
	if err := c.Bind(request); err != nil {
		return apierrors.InvalidArgument("invalid request body")
	}
	if strings.TrimSpace(request.Name) == "" {
		return apierrors.InvalidArgument("name is required")
	}
	if request.PriceCents < 0 {
		return apierrors.InvalidArgument("price_cents must not be negative")
	}
	status, err := parseProductStatus(request.Status)
	if err != nil {
		return err
	}

	product, err := s.Store.CreateProduct(c.Request().Context(), &store.Product{
		Slug:        strings.TrimSpace(request.Slug),
		Name:        strings.TrimSpace(request.Name),
		Description: request.Description,
		PriceCents:  request.PriceCents,
		Status:      status,
		SortOrder:   request.SortOrder,
	})
	if err != nil {
		return storeError(err, "product")
	}
	return c.JSON(http.StatusCreated, convertProductFromStore(product))
}

// PATCH /api/v1/products/:id
func (s *APIV1Service) UpdateProduct(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	request := &UpdateProductRequest{}
	if err := c.Bind(request); err != nil {
		return apierrors.InvalidArgument("invalid request body")
	}

	update := &store.UpdateProduct{
		ID:          id,
		Description: request.Description,
		PriceCents:  request.PriceCents,
		SortOrder:   request.SortOrder,
	}
	if request.Name != nil {
		name := strings.TrimSpace(*request.Name)
		if name == "" {
			return apierrors.InvalidArgument("name must not be empty")
		}
		update.Name = &name
	}
	if request.PriceCents != nil && *request.PriceCents < 0 {
		return apierrors.InvalidArgument("price_cents must not be negative")
	}
	if request.Status != nil {
		status, err := parseProductStatus(*request.Status)
		if err != nil {
			return err
		}
		update.Status = &status
	}

	product, err := s.Store.UpdateProduct(c.Request().Context(), update)
	if err != nil {
		return storeError(err, "product")
	}
	return c.JSON(http.StatusOK, convertProductFromStore(product))
}

// DELETE /api/v1/products/:id
func (s *APIV1Service) DeleteProduct(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	if err := s.Store.DeleteProduct(c.Request().Context(), &store.DeleteProduct{ID: id}); err != nil {
		return storeError(err, "product")
	}
	return c.NoContent(http.StatusNoContent)
}

// parseProductStatus accepts a status in any case; empty means ACTIVE.
func parseProductStatus(raw string) (store.ProductStatus, error) {
	if raw == "" {
		return store.ProductActive, nil
	}
	status := store.ProductStatus(strings.ToUpper(raw))
	if !status.Valid() {
		return "", apierrors.InvalidArgument("invalid status: " + raw)
	}
	return status, nil
}

func convertProductFromStore(product *store.Product) *Product {
	return &Product{
		ID:          product.ID,
		Slug:        product.Slug,
		Name:        product.Name,
		Description: product.Description,
		PriceCents:  product.PriceCents,
		Status:      product.Status.String(),
		SortOrder:   product.SortOrder,
		CreateTime:  time.Unix(product.CreatedTs, 0).UTC(),
		UpdateTime:  time.Unix(product.UpdatedTs, 0).UTC(),
	}
}
