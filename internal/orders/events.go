package orders

import (
	"encoding/json"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"time"
)

const (
	EventOrderSubmitted = "OrderSubmitted"
	EventStockLow       = "StockLow"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

func NewEnvelope(eventType, producer, traceID, correlationID string, payload any) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		TraceID:       traceID,
		CorrelationID: correlationID,
		Payload:       b,
	}, nil
}

type SoldItem struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Qty       int             `json:"qty"`
	Price     decimal.Decimal `json:"price"`
}

type OrderSubmittedPayload struct {
	OrderID     int64           `json:"order_id"`
	Items       []SoldItem      `json:"items"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Discount    decimal.Decimal `json:"discount"`
}

func NewOrderSubmittedPayload(orderID int64, s Submission) OrderSubmittedPayload {
	items := make([]SoldItem, 0, len(s.Items))
	for _, it := range s.Items {
		items = append(items, SoldItem{ProductID: it.ProductID, Name: it.Name, Qty: it.Quantity, Price: it.Price})
	}
	return OrderSubmittedPayload{OrderID: orderID, Items: items, TotalAmount: s.TotalAmount, Discount: s.Discount}
}

type StockLowPayload struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	Stock     int    `json:"stock"`
	Threshold int    `json:"threshold"`
	OrderID   int64  `json:"order_id,omitempty"`
}
