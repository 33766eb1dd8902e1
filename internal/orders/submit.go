package orders

import (
	"context"
	"errors"
	"fmt"
	"github.com/ariefcatur/pos-terminal/internal/apperr"
	"github.com/ariefcatur/pos-terminal/internal/postgres"
	"github.com/jackc/pgx/v5"
)

// SubmitOrder persists the header, locks and decrements stock per line item
// in the order given, and records the item snapshots, all in one transaction.
// A shortage on any item rolls back everything done for this order.
func (r *Repo) SubmitOrder(ctx context.Context, s Submission) (int64, error) {
	if err := s.Validate(); err != nil {
		return 0, err
	}

	m := NewMachine(len(s.Items))
	var orderID int64

	err := postgres.WithTx(ctx, r.DB, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `
			INSERT INTO orders (total_amount, discount)
			VALUES ($1, $2) RETURNING id`, s.TotalAmount, s.Discount).Scan(&orderID); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		for i, it := range s.Items {
			// row lock: a concurrent submission on the same product waits here
			var stock int
			err := tx.QueryRow(ctx, `SELECT stock FROM products WHERE id = $1 FOR UPDATE`, it.ProductID).Scan(&stock)
			if errors.Is(err, pgx.ErrNoRows) {
				return apperr.NotFound("product", it.ProductID)
			}
			if err != nil {
				return fmt.Errorf("lock product %d: %w", it.ProductID, err)
			}
			if err := m.Check(i); err != nil {
				return err
			}
			if stock < it.Quantity {
				return &apperr.StockShortageError{
					ProductID: it.ProductID, Name: it.Name, Requested: it.Quantity, Remaining: stock,
				}
			}

			ct, err := tx.Exec(ctx, `UPDATE products SET stock = stock - $2 WHERE id = $1`, it.ProductID, it.Quantity)
			if err != nil {
				return fmt.Errorf("decrement product %d: %w", it.ProductID, err)
			}
			if ct.RowsAffected() != 1 {
				return fmt.Errorf("decrement product %d: %d rows affected", it.ProductID, ct.RowsAffected())
			}

			if _, err := tx.Exec(ctx, `
				INSERT INTO order_items (order_id, product_id, product_name, quantity, price)
				VALUES ($1, $2, $3, $4, $5)`,
				orderID, it.ProductID, it.Name, it.Quantity, it.Price); err != nil {
				return fmt.Errorf("insert item %d: %w", it.ProductID, err)
			}
			if err := m.Apply(i); err != nil {
				return err
			}
		}
		return m.ReadyToCommit()
	})
	if err != nil {
		_ = m.RollBack()
		r.Log.Info().Err(err).Stringer("state", m.State()).Msg("order submission rolled back")
		return 0, apperr.Storage("submit order", err)
	}
	if err := m.Commit(); err != nil {
		return 0, apperr.Storage("submit order", err)
	}
	r.Log.Debug().Int64("order_id", orderID).Int("items", len(s.Items)).Msg("order committed")
	return orderID, nil
}
