package orders

import (
	"encoding/json"
	"github.com/ariefcatur/pos-terminal/internal/apperr"
	"github.com/shopspring/decimal"
	"time"
)

// Tolerance allowed between the submitted total and the one recomputed from
// the line items.
var totalTolerance = decimal.New(1, -2)

type Order struct {
	ID          int64           `json:"id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Discount    decimal.Decimal `json:"discount"`
	CreatedAt   time.Time       `json:"created_at"`
}

// OrderItem carries the name and price captured when the order was placed.
type OrderItem struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type OrderDetail struct {
	Order
	Items []OrderItem `json:"items"`
}

// Amounts go out with two decimals, matching NUMERIC(12,2).
type orderJSON struct {
	ID          int64     `json:"id"`
	TotalAmount string    `json:"total_amount"`
	Discount    string    `json:"discount"`
	CreatedAt   time.Time `json:"created_at"`
}

func (o Order) wire() orderJSON {
	return orderJSON{o.ID, o.TotalAmount.StringFixed(2), o.Discount.StringFixed(2), o.CreatedAt}
}

func (o Order) MarshalJSON() ([]byte, error) { return json.Marshal(o.wire()) }

func (it OrderItem) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ProductID int64  `json:"product_id"`
		Name      string `json:"name"`
		Quantity  int    `json:"quantity"`
		Price     string `json:"price"`
	}{it.ProductID, it.Name, it.Quantity, it.Price.StringFixed(2)})
}

// MarshalJSON is required: the one promoted from Order would drop Items.
func (d OrderDetail) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		orderJSON
		Items []OrderItem `json:"items"`
	}{d.Order.wire(), d.Items})
}

// LineItem is one cart line as the terminal submits it.
type LineItem struct {
	ProductID int64           `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

func (li LineItem) Amount() decimal.Decimal {
	return li.Price.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

type Submission struct {
	Items       []LineItem
	TotalAmount decimal.Decimal
	Discount    decimal.Decimal
}

func (s Submission) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range s.Items {
		sum = sum.Add(it.Amount())
	}
	return sum
}

// ExpectedTotal is the subtotal minus discount. Validate rejects a discount
// larger than the subtotal, so items always add up to total + discount.
func (s Submission) ExpectedTotal() decimal.Decimal {
	return s.Subtotal().Sub(s.Discount)
}

func (s Submission) Validate() error {
	if len(s.Items) == 0 {
		return apperr.Validation("order is empty, add some products first")
	}
	for i, it := range s.Items {
		switch {
		case it.ProductID <= 0:
			return apperr.Validation("item %d: invalid product id", i+1)
		case it.Name == "":
			return apperr.Validation("item %d: name is required", i+1)
		case it.Price.IsNegative():
			return apperr.Validation("item %d: price must not be negative", i+1)
		case it.Quantity <= 0:
			return apperr.Validation("item %d: quantity must be positive", i+1)
		}
	}
	if s.TotalAmount.IsNegative() || s.Discount.IsNegative() {
		return apperr.Validation("total amount and discount must not be negative")
	}
	if sub := s.Subtotal(); s.Discount.GreaterThan(sub) {
		return apperr.Validation("discount %s exceeds subtotal %s",
			s.Discount.StringFixed(2), sub.StringFixed(2))
	}
	if s.TotalAmount.Sub(s.ExpectedTotal()).Abs().GreaterThan(totalTolerance) {
		return apperr.Validation("total amount %s does not match items (expected %s)",
			s.TotalAmount.StringFixed(2), s.ExpectedTotal().StringFixed(2))
	}
	return nil
}
