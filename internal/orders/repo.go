package orders

import (
	"context"
	"errors"
	"fmt"
	"github.com/ariefcatur/pos-terminal/internal/apperr"
	"github.com/ariefcatur/pos-terminal/internal/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type Repo struct {
	DB  postgres.DB
	Log zerolog.Logger
}

func parseAmounts(vals ...string) ([]decimal.Decimal, error) {
	out := make([]decimal.Decimal, len(vals))
	for i, v := range vals {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return nil, fmt.Errorf("amount %q: %w", v, err)
		}
		out[i] = d
	}
	return out, nil
}

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o               Order
		total, discount string
	)
	if err := row.Scan(&o.ID, &total, &discount, &o.CreatedAt); err != nil {
		return Order{}, err
	}
	amounts, err := parseAmounts(total, discount)
	if err != nil {
		return Order{}, err
	}
	o.TotalAmount, o.Discount = amounts[0], amounts[1]
	return o, nil
}

// ListOrders returns every order header, newest first.
func (r *Repo) ListOrders(ctx context.Context) ([]Order, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, total_amount::text, discount::text, created_at
		FROM orders ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, apperr.Storage("list orders", err)
	}
	defer rows.Close()

	out := []Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, apperr.Storage("list orders", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage("list orders", err)
	}
	return out, nil
}

func (r *Repo) GetOrder(ctx context.Context, id int64) (OrderDetail, error) {
	row := r.DB.QueryRow(ctx, `
		SELECT id, total_amount::text, discount::text, created_at
		FROM orders WHERE id = $1`, id)
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return OrderDetail{}, apperr.NotFound("order", id)
	}
	if err != nil {
		return OrderDetail{}, apperr.Storage("get order", err)
	}

	rows, err := r.DB.Query(ctx, `
		SELECT product_id, product_name, quantity, price::text
		FROM order_items WHERE order_id = $1 ORDER BY id`, id)
	if err != nil {
		return OrderDetail{}, apperr.Storage("get order items", err)
	}
	defer rows.Close()

	detail := OrderDetail{Order: o, Items: []OrderItem{}}
	for rows.Next() {
		var (
			it    OrderItem
			price string
		)
		if err := rows.Scan(&it.ProductID, &it.Name, &it.Quantity, &price); err != nil {
			return OrderDetail{}, apperr.Storage("get order items", err)
		}
		amounts, err := parseAmounts(price)
		if err != nil {
			return OrderDetail{}, apperr.Storage("get order items", err)
		}
		it.Price = amounts[0]
		detail.Items = append(detail.Items, it)
	}
	if err := rows.Err(); err != nil {
		return OrderDetail{}, apperr.Storage("get order items", err)
	}
	return detail, nil
}
