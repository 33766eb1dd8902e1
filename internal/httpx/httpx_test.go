package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"github.com/ariefcatur/pos-terminal/internal/apperr"
	"github.com/ariefcatur/pos-terminal/internal/catalog"
	"github.com/ariefcatur/pos-terminal/internal/orders"
	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeProducts struct {
	products []catalog.Product
	lists    int
	err      error
	reset    int
}

func (f *fakeProducts) ListProducts(context.Context) ([]catalog.Product, error) {
	f.lists++
	return f.products, f.err
}

func (f *fakeProducts) CreateProduct(_ context.Context, np catalog.NewProduct) (catalog.Product, error) {
	p := catalog.Product{ID: int64(len(f.products) + 1), Name: np.Name, Price: np.Price, Stock: np.Stock}
	f.products = append(f.products, p)
	return p, nil
}

func (f *fakeProducts) UpdateStock(_ context.Context, id int64, stock int) (catalog.Product, error) {
	for i := range f.products {
		if f.products[i].ID == id {
			f.products[i].Stock = stock
			return f.products[i], nil
		}
	}
	return catalog.Product{}, apperr.NotFound("product", id)
}

func (f *fakeProducts) ResetStock(_ context.Context, stock int) (int64, error) {
	f.reset = stock
	for i := range f.products {
		f.products[i].Stock = stock
	}
	return int64(len(f.products)), nil
}

type fakeCache struct {
	ps          []catalog.Product
	hit         bool
	invalidated int
}

func (c *fakeCache) GetProducts(context.Context) ([]catalog.Product, bool, error) {
	return c.ps, c.hit, nil
}

func (c *fakeCache) SetProducts(_ context.Context, ps []catalog.Product) error {
	c.ps, c.hit = ps, true
	return nil
}

func (c *fakeCache) Invalidate(context.Context) error {
	c.ps, c.hit = nil, false
	c.invalidated++
	return nil
}

type fakeOrders struct {
	submitted []orders.Submission
	err       error
	list      []orders.Order
	detail    map[int64]orders.OrderDetail
}

func (f *fakeOrders) SubmitOrder(_ context.Context, s orders.Submission) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.submitted = append(f.submitted, s)
	return int64(100 + len(f.submitted)), nil
}

func (f *fakeOrders) ListOrders(context.Context) ([]orders.Order, error) { return f.list, nil }

func (f *fakeOrders) GetOrder(_ context.Context, id int64) (orders.OrderDetail, error) {
	d, ok := f.detail[id]
	if !ok {
		return orders.OrderDetail{}, apperr.NotFound("order", id)
	}
	return d, nil
}

type fakePublisher struct {
	mu   sync.Mutex
	keys []string
	vals [][]byte
	hdrs [][]kafkago.Header
}

func (p *fakePublisher) Publish(key, value []byte, headers ...kafkago.Header) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, string(key))
	p.vals = append(p.vals, value)
	p.hdrs = append(p.hdrs, headers)
}

type fixture struct {
	products *fakeProducts
	orders   *fakeOrders
	cache    *fakeCache
	pub      *fakePublisher
	srv      http.Handler
}

func newFixture() *fixture {
	f := &fixture{
		products: &fakeProducts{products: []catalog.Product{
			{ID: 1, Name: "Tea", Price: decimal.RequireFromString("4.50"), Stock: 5},
			{ID: 2, Name: "Cake", Price: decimal.RequireFromString("12.00"), Stock: 0},
		}},
		orders: &fakeOrders{detail: map[int64]orders.OrderDetail{}},
		cache:  &fakeCache{},
		pub:    &fakePublisher{},
	}
	r := NewRouter(zerolog.Nop(), 0, 0)
	(&ProductsHandler{Store: f.products, Cache: f.cache}).Register(r)
	(&OrdersHandler{Store: f.orders, Cache: f.cache, Publisher: f.pub, Service: "pos-api"}).Register(r)
	f.srv = r
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)
	return rec
}

func decodeMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var b errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &b))
	return b.Message
}

func TestHealthz(t *testing.T) {
	rec := newFixture().do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestListProductsFillsCache(t *testing.T) {
	f := newFixture()

	rec := f.do(t, http.MethodGet, "/api/products", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got []catalog.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got, 2)

	f.do(t, http.MethodGet, "/api/products", "")
	assert.Equal(t, 1, f.products.lists, "second read served from cache")
}

func TestListProductsStorageErrorIsGeneric(t *testing.T) {
	f := newFixture()
	f.products.err = &apperr.StorageError{Op: "list products", Err: errors.New("password authentication failed")}

	rec := f.do(t, http.MethodGet, "/api/products", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal server error", decodeMessage(t, rec))
}

func TestCreateProduct(t *testing.T) {
	f := newFixture()
	f.cache.hit = true

	rec := f.do(t, http.MethodPost, "/api/products", `{"name":" Milk ","price":"2.25","stock":10}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var p catalog.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, int64(3), p.ID)
	assert.Equal(t, "Milk", p.Name)
	assert.Equal(t, 1, f.cache.invalidated)
}

func TestCreateProductValidation(t *testing.T) {
	cases := map[string]struct {
		body string
		msg  string
	}{
		"blank name":     {`{"name":"  ","price":1,"stock":1}`, "name is required"},
		"missing price":  {`{"name":"x","stock":1}`, "price is required"},
		"negative price": {`{"name":"x","price":-1,"stock":1}`, "price must not be negative"},
		"missing stock":  {`{"name":"x","price":1}`, "stock is required"},
		"negative stock": {`{"name":"x","price":1,"stock":-2}`, "stock must not be negative"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture()
			rec := f.do(t, http.MethodPost, "/api/products", tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tc.msg, decodeMessage(t, rec))
			assert.Len(t, f.products.products, 2)
		})
	}
}

func TestCreateProductUnknownField(t *testing.T) {
	rec := newFixture().do(t, http.MethodPost, "/api/products", `{"name":"x","price":1,"stock":1,"sku":"A"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeMessage(t, rec), "unknown field")
}

func TestUpdateStock(t *testing.T) {
	f := newFixture()

	rec := f.do(t, http.MethodPut, "/api/products/2", `{"stock":40}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 40, f.products.products[1].Stock)
	assert.Equal(t, 1, f.cache.invalidated)

	rec = f.do(t, http.MethodPut, "/api/products/99", `{"stock":1}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "product 99 not found", decodeMessage(t, rec))

	rec = f.do(t, http.MethodPut, "/api/products/abc", `{"stock":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPut, "/api/products/1", `{"stock":-1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResetStock(t *testing.T) {
	f := newFixture()

	rec := f.do(t, http.MethodPut, "/api/products/reset-stock", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Message string `json:"message"`
		Updated int64  `json:"updated"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, int64(2), body.Updated)
	assert.Equal(t, catalog.DefaultStock, f.products.reset)
	for _, p := range f.products.products {
		assert.Equal(t, 100, p.Stock)
	}
}

const teaOrder = `{"order":[{"id":1,"name":"Tea","price":4.5,"quantity":2}],"totalAmount":8.1,"discount":0.9}`

func TestSubmitOrder(t *testing.T) {
	f := newFixture()

	rec := f.do(t, http.MethodPost, "/api/orders", teaOrder)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp submitOrderResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(101), resp.OrderID)
	assert.Equal(t, "Order submitted successfully", resp.Message)

	require.Len(t, f.orders.submitted, 1)
	s := f.orders.submitted[0]
	assert.True(t, s.Discount.Equal(decimal.RequireFromString("0.9")))
	assert.Equal(t, 2, s.Items[0].Quantity)
	assert.Equal(t, 1, f.cache.invalidated)

	require.Len(t, f.pub.keys, 1)
	assert.Equal(t, "101", f.pub.keys[0])
	var env orders.Envelope
	require.NoError(t, json.Unmarshal(f.pub.vals[0], &env))
	assert.Equal(t, orders.EventOrderSubmitted, env.EventType)
	assert.Equal(t, "pos-api", env.Producer)
	assert.NotEmpty(t, env.TraceID)
	var p orders.OrderSubmittedPayload
	require.NoError(t, json.Unmarshal(env.Payload, &p))
	assert.Equal(t, int64(101), p.OrderID)
	require.Len(t, p.Items, 1)
	assert.Equal(t, 2, p.Items[0].Qty)
}

func TestSubmitOrderRejectsBadInput(t *testing.T) {
	cases := map[string]struct {
		body string
		msg  string
	}{
		"empty":         {`{"order":[],"totalAmount":0,"discount":0}`, "order is empty, add some products first"},
		"no total":      {`{"order":[{"id":1,"name":"Tea","price":4.5,"quantity":1}]}`, "totalAmount is required"},
		"no quantity":   {`{"order":[{"id":1,"name":"Tea","price":4.5}],"totalAmount":4.5}`, "item 1: quantity is required"},
		"zero quantity": {`{"order":[{"id":1,"name":"Tea","price":4.5,"quantity":0}],"totalAmount":0}`, "item 1: quantity must be positive"},
		"wrong total":   {`{"order":[{"id":1,"name":"Tea","price":4.5,"quantity":1}],"totalAmount":1}`, "total amount 1.00 does not match items (expected 4.50)"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture()
			rec := f.do(t, http.MethodPost, "/api/orders", tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tc.msg, decodeMessage(t, rec))
			assert.Empty(t, f.orders.submitted)
			assert.Empty(t, f.pub.keys)
		})
	}
}

func TestSubmitOrderErrorsMapToStatus(t *testing.T) {
	cases := map[string]struct {
		err  error
		code int
		msg  string
	}{
		"shortage": {&apperr.StockShortageError{ProductID: 2, Name: "Cake", Requested: 1}, http.StatusBadRequest, "Cake is out of stock: only 0 left"},
		"missing":  {apperr.NotFound("product", 9), http.StatusNotFound, "product 9 not found"},
		"storage":  {&apperr.StorageError{Op: "submit order", Err: errors.New("deadlock")}, http.StatusInternalServerError, "internal server error"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture()
			f.orders.err = tc.err
			rec := f.do(t, http.MethodPost, "/api/orders", teaOrder)
			assert.Equal(t, tc.code, rec.Code)
			assert.Equal(t, tc.msg, decodeMessage(t, rec))
			assert.Empty(t, f.pub.keys, "nothing published for a failed order")
			assert.Zero(t, f.cache.invalidated)
		})
	}
}

func TestSubmitOrderWithoutPublisher(t *testing.T) {
	f := newFixture()
	r := NewRouter(zerolog.Nop(), 0, 0)
	(&OrdersHandler{Store: f.orders}).Register(r)

	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(teaOrder))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestListAndGetOrders(t *testing.T) {
	f := newFixture()
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	f.orders.list = []orders.Order{{ID: 2, CreatedAt: now}, {ID: 1, CreatedAt: now.Add(-time.Hour)}}
	f.orders.detail[2] = orders.OrderDetail{
		Order: orders.Order{ID: 2, TotalAmount: decimal.RequireFromString("9"), CreatedAt: now},
		Items: []orders.OrderItem{{ProductID: 1, Name: "Tea", Quantity: 2, Price: decimal.RequireFromString("4.50")}},
	}

	rec := f.do(t, http.MethodGet, "/api/orders", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []orders.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.Equal(t, int64(2), list[0].ID)

	rec = f.do(t, http.MethodGet, "/api/orders/2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var d orders.OrderDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
	assert.Equal(t, int64(2), d.ID)
	require.Len(t, d.Items, 1)
	assert.Equal(t, "Tea", d.Items[0].Name)

	rec = f.do(t, http.MethodGet, "/api/orders/7", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "order 7 not found", decodeMessage(t, rec))
}

func TestRateLimit(t *testing.T) {
	r := NewRouter(zerolog.Nop(), 1, 1)
	req := func() int {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		return rec.Code
	}
	assert.Equal(t, http.StatusOK, req())
	assert.Equal(t, http.StatusTooManyRequests, req())
}
