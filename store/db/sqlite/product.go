package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/hrygo/bizcache/store"
)

const productFields = `id, slug, name, description, price_cents, status, sort_order, created_ts, updated_ts`

func scanProduct(row interface{ Scan(...any) error }) (*store.Product, error) {
	p := &store.Product{}
	var status string
	if err := row.Scan(&p.ID, &p.Slug, &p.Name, &p.Description, &p.PriceCents, &status, &p.SortOrder, &p.CreatedTs, &p.UpdatedTs); err != nil {
		return nil, err
	}
	p.Status = store.ProductStatus(status)
	return p, nil
}

func (d *DB) CreateProduct(ctx context.Context, create *store.Product) (*store.Product, error) {
	now := time.Now().Unix()
	stmt := `INSERT INTO product (slug, name, description, price_cents, status, sort_order, created_ts, updated_ts)
		VALUES (` + placeholders(8) + `)
		RETURNING ` + productFields
	product, err := scanProduct(d.db.QueryRowContext(ctx, stmt,
		create.Slug, create.Name, create.Description, create.PriceCents, create.Status.String(), create.SortOrder, now, now,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	return product, nil
}

func (d *DB) ListProducts(ctx context.Context, find *store.FindProduct) ([]*store.Product, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if find.Slug != nil {
		where, args = append(where, "slug = "+placeholder(len(args)+1)), append(args, *find.Slug)
	}
	if find.Status != nil {
		where, args = append(where, "status = "+placeholder(len(args)+1)), append(args, find.Status.String())
	}

	query := `SELECT ` + productFields + ` FROM product WHERE ` + strings.Join(where, " AND ") + ` ORDER BY sort_order ASC, id ASC`
	if find.Limit != nil {
		query = fmt.Sprintf("%s LIMIT %d", query, *find.Limit)
	}
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	list := make([]*store.Product, 0)
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		list = append(list, product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate products: %w", err)
	}

	return list, nil
}

func (d *DB) UpdateProduct(ctx context.Context, update *store.UpdateProduct) (*store.Product, error) {
	set, args := []string{}, []any{}

	if update.Name != nil {
		set, args = append(set, "name = "+placeholder(len(args)+1)), append(args, *update.Name)
	}
	if update.Description != nil {
		set, args = append(set, "description = "+placeholder(len(args)+1)), append(args, *update.Description)
	}
	if update.PriceCents != nil {
		set, args = append(set, "price_cents = "+placeholder(len(args)+1)), append(args, *update.PriceCents)
	}
	if update.Status != nil {
		set, args = append(set, "status = "+placeholder(len(args)+1)), append(args, update.Status.String())
	}
	if update.SortOrder != nil {
		set, args = append(set, "sort_order = "+placeholder(len(args)+1)), append(args, *update.SortOrder)
	}
	set, args = append(set, "updated_ts = "+placeholder(len(args)+1)), append(args, time.Now().Unix())

	args = append(args, update.ID)
	stmt := `UPDATE product SET ` + strings.Join(set, ", ") + ` WHERE id = ` + placeholder(len(args)) + ` RETURNING ` + productFields
	product, err := scanProduct(d.db.QueryRowContext(ctx, stmt, args...))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("product %d: %w", update.ID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to update product: %w", err)
	}
	return product, nil
}

func (d *DB) DeleteProduct(ctx context.Context, delete *store.DeleteProduct) error {
	result, err := d.db.ExecContext(ctx, `DELETE FROM product WHERE id = `+placeholder(1), delete.ID)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("product %d: %w", delete.ID, store.ErrNotFound)
	}
	return nil
}
