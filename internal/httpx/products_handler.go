package httpx

import (
	"context"
	"github.com/ariefcatur/pos-terminal/internal/apperr"
	"github.com/ariefcatur/pos-terminal/internal/catalog"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"
	"github.com/shopspring/decimal"
	"net/http"
	"strings"
	"time"
)

type ProductStore interface {
	ListProducts(ctx context.Context) ([]catalog.Product, error)
	CreateProduct(ctx context.Context, np catalog.NewProduct) (catalog.Product, error)
	UpdateStock(ctx context.Context, id int64, stock int) (catalog.Product, error)
	ResetStock(ctx context.Context, stock int) (int64, error)
}

// ProductCache is optional; see redisx.ProductCache.
type ProductCache interface {
	GetProducts(ctx context.Context) ([]catalog.Product, bool, error)
	SetProducts(ctx context.Context, ps []catalog.Product) error
	Invalidate(ctx context.Context) error
}

type ProductsHandler struct {
	Store ProductStore
	Cache ProductCache
}

type createProductReq struct {
	Name  *string          `json:"name"`
	Price *decimal.Decimal `json:"price"`
	Stock *int             `json:"stock"`
}

func (req createProductReq) validate() (catalog.NewProduct, error) {
	if req.Name == nil || strings.TrimSpace(*req.Name) == "" {
		return catalog.NewProduct{}, apperr.Validation("name is required")
	}
	if req.Price == nil {
		return catalog.NewProduct{}, apperr.Validation("price is required")
	}
	if req.Price.IsNegative() {
		return catalog.NewProduct{}, apperr.Validation("price must not be negative")
	}
	if req.Stock == nil {
		return catalog.NewProduct{}, apperr.Validation("stock is required")
	}
	if *req.Stock < 0 {
		return catalog.NewProduct{}, apperr.Validation("stock must not be negative")
	}
	return catalog.NewProduct{
		Name:  strings.TrimSpace(*req.Name),
		Price: req.Price.Round(2),
		Stock: *req.Stock,
	}, nil
}

type updateStockReq struct {
	Stock *int `json:"stock"`
}

func (h *ProductsHandler) Register(r chi.Router) {
	r.Get("/api/products", h.list)
	r.Post("/api/products", h.create)
	// registered before /{id} so "reset-stock" is never parsed as an id
	r.Put("/api/products/reset-stock", h.resetStock)
	r.Put("/api/products/{id}", h.updateStock)
}

func (h *ProductsHandler) list(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if h.Cache != nil {
		ps, ok, err := h.Cache.GetProducts(ctx)
		if err != nil {
			hlog.FromRequest(r).Warn().Err(err).Msg("product cache read")
		}
		if ok {
			writeJSON(w, http.StatusOK, ps)
			return
		}
	}

	ps, err := h.Store.ListProducts(ctx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if h.Cache != nil {
		if err := h.Cache.SetProducts(ctx, ps); err != nil {
			hlog.FromRequest(r).Warn().Err(err).Msg("product cache write")
		}
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *ProductsHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createProductReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	np, err := req.validate()
	if err != nil {
		writeError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	p, err := h.Store.CreateProduct(ctx, np)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.invalidate(r)
	writeJSON(w, http.StatusCreated, p)
}

func (h *ProductsHandler) updateStock(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"), "product")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req updateStockReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Stock == nil {
		writeError(w, r, apperr.Validation("stock is required"))
		return
	}
	if *req.Stock < 0 {
		writeError(w, r, apperr.Validation("stock must not be negative"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	p, err := h.Store.UpdateStock(ctx, id, *req.Stock)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.invalidate(r)
	writeJSON(w, http.StatusOK, p)
}

func (h *ProductsHandler) resetStock(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	n, err := h.Store.ResetStock(ctx, catalog.DefaultStock)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.invalidate(r)
	body := message("All stock reset to %d", catalog.DefaultStock)
	body["updated"] = n
	writeJSON(w, http.StatusOK, body)
}

func (h *ProductsHandler) invalidate(r *http.Request) {
	if h.Cache == nil {
		return
	}
	if err := h.Cache.Invalidate(context.WithoutCancel(r.Context())); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("product cache invalidate")
	}
}
