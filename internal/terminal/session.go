package terminal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"github.com/ariefcatur/pos-terminal/internal/catalog"
	"github.com/ariefcatur/pos-terminal/internal/orders"
	"github.com/shopspring/decimal"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
)

// API is what the session needs from the server; *Client implements it.
type API interface {
	ListProducts(ctx context.Context) ([]catalog.Product, error)
	CreateProduct(ctx context.Context, np catalog.NewProduct) (catalog.Product, error)
	UpdateStock(ctx context.Context, id int64, stock int) (catalog.Product, error)
	ResetStock(ctx context.Context) (int64, error)
	SubmitOrder(ctx context.Context, s orders.Submission) (int64, error)
	ListOrders(ctx context.Context) ([]orders.Order, error)
	GetOrder(ctx context.Context, id int64) (orders.OrderDetail, error)
}

var _ API = (*Client)(nil)

var errQuit = errors.New("quit")

const helpText = `commands:
  products [search]            list products, optionally filtered by name
  add <id>                     add one unit to the cart
  qty <id> <n>                 set quantity (0 removes)
  remove <id>                  remove from the cart
  cart                         show the cart
  discount <percent>           apply a discount on the current subtotal
  cleardiscount                remove the discount
  cash <amount>                set cash received
  pay                          submit the order
  orders                       list past orders
  order <id>                   show one order
  newproduct <price> <stock> <name>
  setstock <id> <n>
  resetstock                   set every product's stock to 100
  help | quit`

type Session struct {
	API      API
	Cart     *Cart
	Currency string

	in       *bufio.Scanner
	out      io.Writer
	products []catalog.Product
}

func NewSession(api API, currency string, in io.Reader, out io.Writer) *Session {
	return &Session{API: api, Cart: NewCart(), Currency: currency, in: bufio.NewScanner(in), out: out}
}

// Run reads commands until quit or EOF.
func (s *Session) Run(ctx context.Context) error {
	if err := s.refresh(ctx); err != nil {
		s.printf("could not load products: %v\n", err)
	}
	s.printf("type 'help' for commands\n")
	for {
		s.printf("> ")
		if !s.in.Scan() {
			return s.in.Err()
		}
		err := s.Exec(ctx, s.in.Text())
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			s.printf("error: %v\n", err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// Exec runs one command line.
func (s *Session) Exec(ctx context.Context, line string) error {
	f := strings.Fields(line)
	if len(f) == 0 {
		return nil
	}
	cmd, args := strings.ToLower(f[0]), f[1:]
	switch cmd {
	case "help", "?":
		s.printf("%s\n", helpText)
		return nil
	case "quit", "exit", "q":
		return errQuit
	case "products", "p":
		if err := s.refresh(ctx); err != nil {
			return err
		}
		s.printProducts(catalog.Filter(s.products, strings.Join(args, " ")))
		return nil
	case "add":
		return s.add(ctx, args)
	case "qty":
		id, n, err := idAndInt(args)
		if err != nil {
			return err
		}
		if err := s.Cart.SetQuantity(id, n); err != nil {
			return err
		}
		s.printCart()
		return nil
	case "remove", "rm":
		id, err := oneID(args)
		if err != nil {
			return err
		}
		if err := s.Cart.Remove(id); err != nil {
			return err
		}
		s.printCart()
		return nil
	case "cart":
		s.printCart()
		return nil
	case "discount":
		pct, err := oneDecimal(args, "percent")
		if err != nil {
			return err
		}
		if err := s.Cart.ApplyDiscount(pct); err != nil {
			return err
		}
		s.printCart()
		return nil
	case "cleardiscount":
		s.Cart.ClearDiscount()
		s.printCart()
		return nil
	case "cash":
		amt, err := oneDecimal(args, "amount")
		if err != nil {
			return err
		}
		if err := s.Cart.SetCash(amt); err != nil {
			return err
		}
		s.printf("Change: %s\n", s.money(s.Cart.ChangeDue()))
		return nil
	case "pay":
		return s.pay(ctx)
	case "orders":
		return s.listOrders(ctx)
	case "order":
		id, err := oneID(args)
		if err != nil {
			return err
		}
		return s.showOrder(ctx, id)
	case "newproduct":
		return s.newProduct(ctx, args)
	case "setstock":
		id, n, err := idAndInt(args)
		if err != nil {
			return err
		}
		p, err := s.API.UpdateStock(ctx, id, n)
		if err != nil {
			return err
		}
		s.printf("%s stock set to %d\n", p.Name, p.Stock)
		return s.refresh(ctx)
	case "resetstock":
		return s.resetStock(ctx)
	}
	return fmt.Errorf("unknown command %q, type 'help'", cmd)
}

func (s *Session) refresh(ctx context.Context) error {
	ps, err := s.API.ListProducts(ctx)
	if err != nil {
		return err
	}
	s.products = ps
	return nil
}

func (s *Session) add(ctx context.Context, args []string) error {
	id, err := oneID(args)
	if err != nil {
		return err
	}
	p, ok := s.product(id)
	if !ok {
		if err := s.refresh(ctx); err != nil {
			return err
		}
		if p, ok = s.product(id); !ok {
			return fmt.Errorf("product %d not found", id)
		}
	}
	if err := s.Cart.Add(p); err != nil {
		return err
	}
	s.printCart()
	return nil
}

func (s *Session) product(id int64) (catalog.Product, bool) {
	for _, p := range s.products {
		if p.ID == id {
			return p, true
		}
	}
	return catalog.Product{}, false
}

// pay submits the cart. On failure the cart is kept as is.
func (s *Session) pay(ctx context.Context) error {
	sub, err := s.Cart.Checkout()
	if err != nil {
		return err
	}
	id, err := s.API.SubmitOrder(ctx, sub)
	if err != nil {
		return err
	}
	r := s.Cart.Receipt(id)
	s.Cart.Reset()

	s.printf("Payment successful! (order #%d)\n", r.OrderID)
	s.printf("Total: %s\n", s.money(r.Total))
	s.printf("Cash Received: %s\n", s.money(r.Cash))
	s.printf("Change: %s\n", s.money(r.Change))
	s.printf("Discount Applied: -%s (%s%%)\n", s.money(r.Discount), r.DiscountPct.String())

	if err := s.refresh(ctx); err != nil {
		s.printf("could not reload products: %v\n", err)
	}
	return nil
}

func (s *Session) listOrders(ctx context.Context) error {
	all, err := s.API.ListOrders(ctx)
	if err != nil {
		return err
	}
	if len(all) == 0 {
		s.printf("no orders yet\n")
		return nil
	}
	tw := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tTOTAL\tDISCOUNT")
	for _, o := range all {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", o.ID, o.CreatedAt.Local().Format("2006-01-02 15:04"),
			s.money(o.TotalAmount), s.money(o.Discount))
	}
	return tw.Flush()
}

func (s *Session) showOrder(ctx context.Context, id int64) error {
	d, err := s.API.GetOrder(ctx, id)
	if err != nil {
		return err
	}
	s.printf("Order #%d  %s\n", d.ID, d.CreatedAt.Local().Format("2006-01-02 15:04"))
	for _, it := range d.Items {
		s.printf("  %s (Qty: %d) - %s each\n", it.Name, it.Quantity, s.money(it.Price))
	}
	s.printf("Total: %s\n", s.money(d.TotalAmount))
	s.printf("Discount: %s\n", s.money(d.Discount))
	return nil
}

func (s *Session) newProduct(ctx context.Context, args []string) error {
	if len(args) < 3 {
		return errors.New("usage: newproduct <price> <stock> <name>")
	}
	price, err := decimal.NewFromString(args[0])
	if err != nil {
		return fmt.Errorf("invalid price %q", args[0])
	}
	stock, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid stock %q", args[1])
	}
	p, err := s.API.CreateProduct(ctx, catalog.NewProduct{Name: strings.Join(args[2:], " "), Price: price, Stock: stock})
	if err != nil {
		return err
	}
	s.printf("added #%d %s at %s (stock %d)\n", p.ID, p.Name, s.money(p.Price), p.Stock)
	return s.refresh(ctx)
}

func (s *Session) resetStock(ctx context.Context) error {
	s.printf("Reset all stock to %d? [y/N] ", catalog.DefaultStock)
	if !s.in.Scan() {
		return s.in.Err()
	}
	if a := strings.ToLower(strings.TrimSpace(s.in.Text())); a != "y" && a != "yes" {
		s.printf("cancelled\n")
		return nil
	}
	n, err := s.API.ResetStock(ctx)
	if err != nil {
		return err
	}
	s.printf("stock reset for %d products\n", n)
	return s.refresh(ctx)
}

func (s *Session) printProducts(ps []catalog.Product) {
	if len(ps) == 0 {
		s.printf("no products\n")
		return
	}
	tw := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tPRICE\tSTOCK\t")
	for _, p := range ps {
		mark := ""
		switch {
		case p.OutOfStock():
			mark = "OUT"
		case p.LowStock():
			mark = "LOW"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n", p.ID, p.Name, s.money(p.Price), p.Stock, mark)
	}
	_ = tw.Flush()
}

func (s *Session) printCart() {
	c := s.Cart
	if c.Empty() {
		s.printf("cart is empty\n")
	}
	for _, l := range c.Lines() {
		s.printf("  #%d %s x%d (%s each) = %s\n", l.ProductID, l.Name, l.Quantity, s.money(l.Price), s.money(l.Amount()))
	}
	s.printf("Subtotal: %s\n", s.money(c.Subtotal()))
	if c.Discount().IsPositive() {
		s.printf("Discount: -%s (%s%%)\n", s.money(c.Discount()), c.DiscountPct().String())
	}
	s.printf("Total: %s\n", s.money(c.Total()))
}

func (s *Session) money(d decimal.Decimal) string {
	if s.Currency == "" {
		return d.StringFixed(2)
	}
	return d.StringFixed(2) + " " + s.Currency
}

func (s *Session) printf(format string, args ...any) { fmt.Fprintf(s.out, format, args...) }

func oneID(args []string) (int64, error) {
	if len(args) != 1 {
		return 0, errors.New("expected one product or order id")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", args[0])
	}
	return id, nil
}

func idAndInt(args []string) (int64, int, error) {
	if len(args) != 2 {
		return 0, 0, errors.New("expected <id> <number>")
	}
	id, err := oneID(args[:1])
	if err != nil {
		return 0, 0, err
	}
	n, err := strconv.Atoi(args[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid number %q", args[1])
	}
	return id, n, nil
}

func oneDecimal(args []string, what string) (decimal.Decimal, error) {
	if len(args) != 1 {
		return decimal.Zero, fmt.Errorf("expected one %s", what)
	}
	d, err := decimal.NewFromString(args[0])
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q", what, args[0])
	}
	return d, nil
}
