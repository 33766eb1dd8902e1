// Package stockwatch reacts to submitted orders and raises a StockLow event
// for every sold product that fell to the low-stock threshold.
package stockwatch

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/ariefcatur/pos-terminal/internal/catalog"
	kafkax "github.com/ariefcatur/pos-terminal/internal/kafka"
	"github.com/ariefcatur/pos-terminal/internal/orders"
	"github.com/ariefcatur/pos-terminal/internal/redisx"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"
)

type ProductFinder interface {
	LowStock(ctx context.Context, ids []int64, threshold int) ([]catalog.Product, error)
}

type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

type Service struct {
	Products    ProductFinder
	Redis       redis.Cmdable
	Publisher   Publisher
	Threshold   int
	ServiceName string
	Log         zerolog.Logger
}

// HandleOrderSubmitted is installed as the consumer handler. Redelivered
// events are skipped by event id.
func (s *Service) HandleOrderSubmitted(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		// poison message: log and commit so the partition keeps moving
		s.Log.Error().Err(err).Int64("offset", m.Offset).Msg("undecodable envelope skipped")
		return nil
	}
	if env.EventType != orders.EventOrderSubmitted {
		return nil
	}

	dkey := fmt.Sprintf(redisx.KeyDedup, s.ServiceName, env.EventID)
	fresh, err := redisx.Claim(ctx, s.Redis, dkey, redisx.TTLDedup)
	if err != nil {
		return fmt.Errorf("dedup %s: %w", env.EventID, err)
	}
	if !fresh {
		s.Log.Debug().Str("event_id", env.EventID).Msg("duplicate event skipped")
		return nil
	}

	if err := s.process(ctx, env); err != nil {
		// release the claim so the redelivery is not mistaken for a duplicate
		_ = s.Redis.Del(context.WithoutCancel(ctx), dkey).Err()
		return err
	}
	return nil
}

func (s *Service) process(ctx context.Context, env orders.Envelope) error {
	p, err := kafkax.UnwrapPayload[orders.OrderSubmittedPayload](env.Payload)
	if err != nil {
		return err
	}

	ids := make([]int64, 0, len(p.Items))
	seen := make(map[int64]bool, len(p.Items))
	for _, it := range p.Items {
		if !seen[it.ProductID] {
			seen[it.ProductID] = true
			ids = append(ids, it.ProductID)
		}
	}

	low, err := s.Products.LowStock(ctx, ids, s.Threshold)
	if err != nil {
		return err
	}
	for _, prod := range low {
		if err := s.Redis.Set(ctx, fmt.Sprintf(redisx.KeyStockLow, prod.ID), prod.Stock, redisx.TTLStockLow).Err(); err != nil {
			s.Log.Warn().Err(err).Int64("product_id", prod.ID).Msg("set stock_low flag")
		}
		if err := s.publishLow(prod, p.OrderID, env.TraceID); err != nil {
			return err
		}
		s.Log.Info().Int64("product_id", prod.ID).Str("name", prod.Name).Int("stock", prod.Stock).
			Int64("order_id", p.OrderID).Msg("stock low")
	}
	return nil
}

func (s *Service) publishLow(p catalog.Product, orderID int64, trace string) error {
	key := orders.PartitionKey(p.ID)
	ev, err := orders.NewEnvelope(orders.EventStockLow, s.ServiceName, trace, string(orders.PartitionKey(orderID)),
		orders.StockLowPayload{ProductID: p.ID, Name: p.Name, Stock: p.Stock, Threshold: s.Threshold, OrderID: orderID})
	if err != nil {
		return err
	}
	s.Publisher.Publish(key, kafkax.MustMarshal(ev), kafkax.EventHeaders(orders.EventStockLow, ev.EventVersion)...)
	return nil
}
