package catalog

import (
	"context"
	"errors"
	"fmt"
	"github.com/ariefcatur/pos-terminal/internal/apperr"
	"github.com/ariefcatur/pos-terminal/internal/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type Repo struct{ DB postgres.DB }

const productCols = `id, name, price::text, stock`

func scanProduct(row pgx.Row) (Product, error) {
	var (
		p     Product
		price string
	)
	if err := row.Scan(&p.ID, &p.Name, &price, &p.Stock); err != nil {
		return Product{}, err
	}
	d, err := decimal.NewFromString(price)
	if err != nil {
		return Product{}, fmt.Errorf("product %d price %q: %w", p.ID, price, err)
	}
	p.Price = d
	return p, nil
}

func (r *Repo) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+productCols+` FROM products ORDER BY id`)
	if err != nil {
		return nil, apperr.Storage("list products", err)
	}
	defer rows.Close()

	out := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, apperr.Storage("list products", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage("list products", err)
	}
	return out, nil
}

func (r *Repo) CreateProduct(ctx context.Context, np NewProduct) (Product, error) {
	row := r.DB.QueryRow(ctx, `
		INSERT INTO products (name, price, stock)
		VALUES ($1, $2, $3)
		RETURNING `+productCols, np.Name, np.Price, np.Stock)
	p, err := scanProduct(row)
	if err != nil {
		return Product{}, apperr.Storage("create product", err)
	}
	return p, nil
}

// UpdateStock overwrites stock unconditionally.
func (r *Repo) UpdateStock(ctx context.Context, id int64, stock int) (Product, error) {
	row := r.DB.QueryRow(ctx, `UPDATE products SET stock = $2 WHERE id = $1 RETURNING `+productCols, id, stock)
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, apperr.NotFound("product", id)
	}
	if err != nil {
		return Product{}, apperr.Storage("update stock", err)
	}
	return p, nil
}

// ResetStock sets every product's stock to the same value and returns how
// many rows were touched.
func (r *Repo) ResetStock(ctx context.Context, stock int) (int64, error) {
	ct, err := r.DB.Exec(ctx, `UPDATE products SET stock = $1`, stock)
	if err != nil {
		return 0, apperr.Storage("reset stock", err)
	}
	return ct.RowsAffected(), nil
}

// LowStock returns the products among ids whose stock is at or below threshold.
func (r *Repo) LowStock(ctx context.Context, ids []int64, threshold int) ([]Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.DB.Query(ctx, `
		SELECT `+productCols+` FROM products
		WHERE id = ANY($1) AND stock <= $2
		ORDER BY id`, ids, threshold)
	if err != nil {
		return nil, apperr.Storage("low stock", err)
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, apperr.Storage("low stock", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage("low stock", err)
	}
	return out, nil
}
