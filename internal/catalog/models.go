package catalog

import (
	"encoding/json"
	"github.com/shopspring/decimal"
	"strings"
)

// DefaultStock is what resetAllStock writes to every product.
const DefaultStock = 100

// LowStockBelow marks products the terminal flags as running low.
const LowStockBelow = 5

type Product struct {
	ID    int64           `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Stock int             `json:"stock"`
}

// MarshalJSON writes price the way NUMERIC(12,2) prints it, e.g. "4.50".
func (p Product) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID    int64  `json:"id"`
		Name  string `json:"name"`
		Price string `json:"price"`
		Stock int    `json:"stock"`
	}{p.ID, p.Name, p.Price.StringFixed(2), p.Stock})
}

func (p Product) OutOfStock() bool { return p.Stock <= 0 }

func (p Product) LowStock() bool { return p.Stock > 0 && p.Stock < LowStockBelow }

type NewProduct struct {
	Name  string
	Price decimal.Decimal
	Stock int
}

// Filter keeps products whose name contains term, ignoring case. An empty
// term keeps everything.
func Filter(products []Product, term string) []Product {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return products
	}
	out := make([]Product, 0, len(products))
	for _, p := range products {
		if strings.Contains(strings.ToLower(p.Name), term) {
			out = append(out, p)
		}
	}
	return out
}
