package store

// ProductStatus is the publication state of a product.
type ProductStatus string

const (
	// ProductActive products are listed in the catalogue.
	ProductActive ProductStatus = "ACTIVE"
	// ProductArchived products are kept but no longer listed.
	ProductArchived ProductStatus = "ARCHIVED"
)

func (s ProductStatus) String() string {
	return string(s)
}

// Valid reports whether s is a known status.
func (s ProductStatus) Valid() bool {
	return s == ProductActive || s == ProductArchived
}

type Product struct {
	ID          int64
	Slug        string
	Name        string
	Description string
	PriceCents  int64
	Status      ProductStatus
	SortOrder   int32
	CreatedTs   int64
	UpdatedTs   int64
}

// FindProduct specifies the conditions for finding products.
type FindProduct struct {
	ID     *int64
	Slug   *string
	Status *ProductStatus
	Limit  *int
}

// UpdateProduct specifies the fields to change on a product. Nil fields are left as is.
type UpdateProduct struct {
	ID          int64
	Name        *string
	Description *string
	PriceCents  *int64
	Status      *ProductStatus
	SortOrder   *int32
}

type DeleteProduct struct {
	ID int64
}
