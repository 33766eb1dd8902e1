package terminal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"github.com/ariefcatur/pos-terminal/internal/catalog"
	"github.com/ariefcatur/pos-terminal/internal/orders"
	"github.com/shopspring/decimal"
	"io"
	"net/http"
	"strings"
	"time"
)

// APIError carries the server's {message} body.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string { return e.Message }

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var eb struct {
			Message string `json:"message"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&eb); err != nil || eb.Message == "" {
			eb.Message = fmt.Sprintf("%s %s: %s", method, path, resp.Status)
		}
		return &APIError{Status: resp.StatusCode, Message: eb.Message}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) ListProducts(ctx context.Context) ([]catalog.Product, error) {
	var ps []catalog.Product
	err := c.do(ctx, http.MethodGet, "/api/products", nil, &ps)
	return ps, err
}

func (c *Client) CreateProduct(ctx context.Context, np catalog.NewProduct) (catalog.Product, error) {
	in := struct {
		Name  string          `json:"name"`
		Price decimal.Decimal `json:"price"`
		Stock int             `json:"stock"`
	}{np.Name, np.Price, np.Stock}
	var p catalog.Product
	err := c.do(ctx, http.MethodPost, "/api/products", in, &p)
	return p, err
}

func (c *Client) UpdateStock(ctx context.Context, id int64, stock int) (catalog.Product, error) {
	in := struct {
		Stock int `json:"stock"`
	}{stock}
	var p catalog.Product
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("/api/products/%d", id), in, &p)
	return p, err
}

func (c *Client) ResetStock(ctx context.Context) (int64, error) {
	var out struct {
		Updated int64 `json:"updated"`
	}
	err := c.do(ctx, http.MethodPut, "/api/products/reset-stock", nil, &out)
	return out.Updated, err
}

func (c *Client) SubmitOrder(ctx context.Context, s orders.Submission) (int64, error) {
	in := struct {
		Order       []orders.LineItem `json:"order"`
		TotalAmount decimal.Decimal   `json:"totalAmount"`
		Discount    decimal.Decimal   `json:"discount"`
	}{s.Items, s.TotalAmount, s.Discount}
	var out struct {
		OrderID int64 `json:"order_id"`
	}
	err := c.do(ctx, http.MethodPost, "/api/orders", in, &out)
	return out.OrderID, err
}

func (c *Client) ListOrders(ctx context.Context) ([]orders.Order, error) {
	var all []orders.Order
	err := c.do(ctx, http.MethodGet, "/api/orders", nil, &all)
	return all, err
}

func (c *Client) GetOrder(ctx context.Context, id int64) (orders.OrderDetail, error) {
	var d orders.OrderDetail
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/orders/%d", id), nil, &d)
	return d, err
}
