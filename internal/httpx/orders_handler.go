package httpx

import (
	"context"
	"github.com/ariefcatur/pos-terminal/internal/apperr"
	kafkax "github.com/ariefcatur/pos-terminal/internal/kafka"
	"github.com/ariefcatur/pos-terminal/internal/orders"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/hlog"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"net/http"
	"time"
)

type OrderStore interface {
	SubmitOrder(ctx context.Context, s orders.Submission) (int64, error)
	ListOrders(ctx context.Context) ([]orders.Order, error)
	GetOrder(ctx context.Context, id int64) (orders.OrderDetail, error)
}

// Publisher is satisfied by *kafka.Producer.
type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

type OrdersHandler struct {
	Store     OrderStore
	Cache     ProductCache // optional
	Publisher Publisher    // optional
	Service   string
}

type lineItemReq struct {
	ID       *int64           `json:"id"`
	Name     *string          `json:"name"`
	Price    *decimal.Decimal `json:"price"`
	Quantity *int             `json:"quantity"`
}

type submitOrderReq struct {
	Order       []lineItemReq    `json:"order"`
	TotalAmount *decimal.Decimal `json:"totalAmount"`
	Discount    *decimal.Decimal `json:"discount"`
}

func (req submitOrderReq) toSubmission() (orders.Submission, error) {
	if len(req.Order) == 0 {
		return orders.Submission{}, apperr.Validation("order is empty, add some products first")
	}
	if req.TotalAmount == nil {
		return orders.Submission{}, apperr.Validation("totalAmount is required")
	}
	s := orders.Submission{
		Items:       make([]orders.LineItem, 0, len(req.Order)),
		TotalAmount: *req.TotalAmount,
		Discount:    decimal.Zero,
	}
	if req.Discount != nil {
		s.Discount = *req.Discount
	}
	for i, it := range req.Order {
		switch {
		case it.ID == nil:
			return orders.Submission{}, apperr.Validation("item %d: id is required", i+1)
		case it.Name == nil:
			return orders.Submission{}, apperr.Validation("item %d: name is required", i+1)
		case it.Price == nil:
			return orders.Submission{}, apperr.Validation("item %d: price is required", i+1)
		case it.Quantity == nil:
			return orders.Submission{}, apperr.Validation("item %d: quantity is required", i+1)
		}
		s.Items = append(s.Items, orders.LineItem{
			ProductID: *it.ID, Name: *it.Name, Price: *it.Price, Quantity: *it.Quantity,
		})
	}
	return s, s.Validate()
}

type submitOrderResp struct {
	Message string `json:"message"`
	OrderID int64  `json:"order_id"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Post("/api/orders", h.submit)
	r.Get("/api/orders", h.list)
	r.Get("/api/orders/{id}", h.get)
}

func (h *OrdersHandler) submit(w http.ResponseWriter, r *http.Request) {
	var req submitOrderReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	s, err := req.toSubmission()
	if err != nil {
		writeError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	orderID, err := h.Store.SubmitOrder(ctx, s)
	if err != nil {
		writeError(w, r, err)
		return
	}

	// committed: nothing below may change the response
	bg := context.WithoutCancel(r.Context())
	if h.Cache != nil {
		if err := h.Cache.Invalidate(bg); err != nil {
			hlog.FromRequest(r).Warn().Err(err).Msg("product cache invalidate")
		}
	}
	h.publishSubmitted(r, orderID, s)

	writeJSON(w, http.StatusCreated, submitOrderResp{Message: "Order submitted successfully", OrderID: orderID})
}

func (h *OrdersHandler) publishSubmitted(r *http.Request, orderID int64, s orders.Submission) {
	if h.Publisher == nil {
		return
	}
	key := orders.PartitionKey(orderID)
	ev, err := orders.NewEnvelope(orders.EventOrderSubmitted, h.Service,
		middleware.GetReqID(r.Context()), string(key), orders.NewOrderSubmittedPayload(orderID, s))
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Int64("order_id", orderID).Msg("build order event")
		return
	}
	h.Publisher.Publish(key, kafkax.MustMarshal(ev), kafkax.EventHeaders(orders.EventOrderSubmitted, ev.EventVersion)...)
}

func (h *OrdersHandler) list(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	all, err := h.Store.ListOrders(ctx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, all)
}

func (h *OrdersHandler) get(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"), "order")
	if err != nil {
		writeError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Store.GetOrder(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}
