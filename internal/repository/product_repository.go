package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/webshop-checkout/internal/model"
)

// ProductRepo reads the product catalog.  Metadata is decoded and
// validated on every load so callers only ever see well-formed products.
type ProductRepo struct {
	db *sql.DB
}

// NewProductRepo returns a ProductRepo bound to db.
func NewProductRepo(db *sql.DB) *ProductRepo { return &ProductRepo{db: db} }

const productColumns = `id, slug, title, price, stock, campus_id, metadata`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(s rowScanner) (model.Product, error) {
	var (
		p      model.Product
		stock  sql.NullInt64
		campus sql.NullString
		meta   []byte
	)
	if err := s.Scan(&p.ID, &p.Slug, &p.Title, &p.Price, &stock, &campus, &meta); err != nil {
		return model.Product{}, err
	}
	if stock.Valid {
		n := int(stock.Int64)
		p.Stock = &n
	}
	if campus.Valid && campus.String != "" {
		c := campus.String
		p.CampusID = &c
	}
	m, err := model.ParseMetadata(meta)
	if err != nil {
		return model.Product{}, fmt.Errorf("product %s: %w", p.ID, err)
	}
	p.Metadata = m
	return p, nil
}

// GetByID loads one product.  It returns ErrNotFound when the id is
// unknown and model.ErrInvalidMetadata when the stored metadata is
// malformed.
func (r *ProductRepo) GetByID(ctx context.Context, id string) (model.Product, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ?`, id)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Product{}, ErrNotFound
	}
	return p, err
}

// List returns a page of products ordered by title.  Products with
// malformed metadata are skipped rather than failing the whole page.
func (r *ProductRepo) List(ctx context.Context, limit, offset int) ([]model.Product, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+productColumns+` FROM products ORDER BY title, id LIMIT ? OFFSET ?`,
		limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Product, 0, limit)
	for rows.Next() {
		p, err := scanProduct(rows)
		if errors.Is(err, model.ErrInvalidMetadata) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
