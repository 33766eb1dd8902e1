// Package terminal is the cashier side of the POS: an in-memory cart with a
// snapshot discount and cash handling, an HTTP client for the API and a
// line-oriented session that ties them together.
package terminal

import (
	"errors"
	"fmt"
	"github.com/ariefcatur/pos-terminal/internal/catalog"
	"github.com/ariefcatur/pos-terminal/internal/orders"
	"github.com/shopspring/decimal"
)

var (
	ErrOutOfStock    = errors.New("this product is out of stock")
	ErrEmptyCart     = errors.New("order is empty, add some products first")
	ErrNotEnoughCash = errors.New("cash received is less than the total amount")
	ErrNotInCart     = errors.New("product is not in the cart")
)

var hundred = decimal.NewFromInt(100)

type Line struct {
	ProductID int64
	Name      string
	Price     decimal.Decimal
	Quantity  int
}

func (l Line) Amount() decimal.Decimal { return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity))) }

// Cart lives only in memory. It is cleared after a successful checkout and
// left untouched when checkout fails so the cashier can retry.
type Cart struct {
	lines       []Line
	discount    decimal.Decimal
	discountPct decimal.Decimal
	cash        decimal.Decimal
}

func NewCart() *Cart { return &Cart{} }

// Add puts one unit of p in the cart, or bumps an existing line by one.
func (c *Cart) Add(p catalog.Product) error {
	if p.OutOfStock() {
		return ErrOutOfStock
	}
	for i := range c.lines {
		if c.lines[i].ProductID == p.ID {
			c.lines[i].Quantity++
			return nil
		}
	}
	c.lines = append(c.lines, Line{ProductID: p.ID, Name: p.Name, Price: p.Price, Quantity: 1})
	return nil
}

func (c *Cart) Remove(id int64) error {
	for i := range c.lines {
		if c.lines[i].ProductID == id {
			c.lines = append(c.lines[:i], c.lines[i+1:]...)
			return nil
		}
	}
	return ErrNotInCart
}

// SetQuantity with n <= 0 removes the line.
func (c *Cart) SetQuantity(id int64, n int) error {
	if n <= 0 {
		return c.Remove(id)
	}
	for i := range c.lines {
		if c.lines[i].ProductID == id {
			c.lines[i].Quantity = n
			return nil
		}
	}
	return ErrNotInCart
}

func (c *Cart) Lines() []Line { return append([]Line(nil), c.lines...) }

func (c *Cart) Empty() bool { return len(c.lines) == 0 }

func (c *Cart) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, l := range c.lines {
		sum = sum.Add(l.Amount())
	}
	return sum
}

// ApplyDiscount fixes the discount amount at pct of the current subtotal.
// Later cart edits do not recompute it.
func (c *Cart) ApplyDiscount(pct decimal.Decimal) error {
	if pct.IsNegative() || pct.GreaterThan(hundred) {
		return fmt.Errorf("discount must be between 0 and 100 percent, got %s", pct)
	}
	c.discountPct = pct
	c.discount = c.Subtotal().Mul(pct).Div(hundred).Round(2)
	return nil
}

func (c *Cart) ClearDiscount() {
	c.discount = decimal.Zero
	c.discountPct = decimal.Zero
}

func (c *Cart) Discount() decimal.Decimal    { return c.discount }
func (c *Cart) DiscountPct() decimal.Decimal { return c.discountPct }

// Total never goes below zero; Checkout refuses a discount larger than the
// subtotal.
func (c *Cart) Total() decimal.Decimal {
	t := c.Subtotal().Sub(c.discount)
	if t.IsNegative() {
		return decimal.Zero
	}
	return t
}

func (c *Cart) SetCash(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return errors.New("cash received must not be negative")
	}
	c.cash = amount
	return nil
}

func (c *Cart) Cash() decimal.Decimal { return c.cash }

func (c *Cart) ChangeDue() decimal.Decimal {
	if t := c.Total(); c.cash.GreaterThan(t) {
		return c.cash.Sub(t)
	}
	return decimal.Zero
}

// Checkout checks the cart can be paid and builds the order to submit.
func (c *Cart) Checkout() (orders.Submission, error) {
	if c.Empty() {
		return orders.Submission{}, ErrEmptyCart
	}
	if c.discount.GreaterThan(c.Subtotal()) {
		return orders.Submission{}, ErrDiscountTooLarge
	}
	if c.cash.LessThan(c.Total()) {
		return orders.Submission{}, ErrNotEnoughCash
	}
	items := make([]orders.LineItem, 0, len(c.lines))
	for _, l := range c.lines {
		items = append(items, orders.LineItem{ProductID: l.ProductID, Name: l.Name, Price: l.Price, Quantity: l.Quantity})
	}
	return orders.Submission{Items: items, TotalAmount: c.Total(), Discount: c.discount}, nil
}

// Receipt describes a paid order. Taken before Reset.
type Receipt struct {
	OrderID     int64
	Total       decimal.Decimal
	Cash        decimal.Decimal
	Change      decimal.Decimal
	Discount    decimal.Decimal
	DiscountPct decimal.Decimal
}

func (c *Cart) Receipt(orderID int64) Receipt {
	return Receipt{
		OrderID:     orderID,
		Total:       c.Total(),
		Cash:        c.cash,
		Change:      c.ChangeDue(),
		Discount:    c.discount,
		DiscountPct: c.discountPct,
	}
}

// Reset clears lines, discount and cash.
func (c *Cart) Reset() { *c = Cart{} }
