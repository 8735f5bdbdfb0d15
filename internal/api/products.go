package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/procureflow/procureflow/internal/catalog"
	"github.com/procureflow/procureflow/internal/log"
)

const maxProductBody = 64 << 10

// productsHandler serves the catalog endpoints.
type productsHandler struct {
	catalog catalog.Repository
	logger  log.Logger
}

type productListResponse struct {
	Count int               `json:"count"`
	Data  []catalog.Product `json:"data"`
	Query string            `json:"query,omitempty"`
}

// list serves GET /api/products with an optional free-text filter.
func (h *productsHandler) list(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")

	var (
		products []catalog.Product
		err      error
	)
	if query == "" {
		products, err = h.catalog.List(r.Context())
	} else {
		products, err = h.catalog.Filter(r.Context(), query)
	}
	if err != nil {
		h.logger.Error("listing products failed", "error", err)
		writeError(w, http.StatusInternalServerError, "list_failed", "failed to list products", h.logger)
		return
	}

	for i := range products {
		products[i] = products[i].Normalized()
	}
	writeJSON(w, http.StatusOK, productListResponse{Count: len(products), Data: products, Query: query}, h.logger)
}

// get serves GET /api/products/{id}.
func (h *productsHandler) get(w http.ResponseWriter, r *http.Request) {
	p, err := h.catalog.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Not found"}, h.logger)
			return
		}
		h.logger.Error("getting product failed", "error", err)
		writeError(w, http.StatusInternalServerError, "get_failed", "failed to get product", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, p.Normalized(), h.logger)
}

type registerRequest struct {
	Name        string  `json:"name"`
	Category    string  `json:"category"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
}

// register serves POST /api/register. Missing fields get catalog
// defaults, an empty body counts as an empty object; only malformed
// JSON is rejected.
func (h *productsHandler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req, maxProductBody); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body", h.logger)
		return
	}

	p, err := h.catalog.Add(r.Context(), catalog.Product{
		Name:        req.Name,
		Category:    req.Category,
		Description: req.Description,
		Price:       req.Price,
	})
	if err != nil {
		h.logger.Error("registering product failed", "error", err)
		writeError(w, http.StatusInternalServerError, "register_failed", "failed to register product", h.logger)
		return
	}

	h.logger.Info("product registered", "product_id", p.ID, "name", p.Name)
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "product": p}, h.logger)
}

type checkoutItem struct {
	ProductID string  `json:"productId"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
}

type checkoutRequest struct {
	Items []checkoutItem `json:"items"`
}

type checkoutResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Total   string `json:"total"`
}

// checkout serves POST /api/checkout, totaling the submitted cart
// lines with decimal arithmetic.
func (h *productsHandler) checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decodeJSON(r, &req, maxProductBody); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body", h.logger)
		return
	}

	// An empty cart checks out to a zero total rather than an error.
	total := decimal.Zero
	var count int
	for _, item := range req.Items {
		qty := item.Quantity
		if qty < 1 {
			qty = 1
		}
		count += qty
		total = total.Add(decimal.NewFromFloat(item.Price).Mul(decimal.NewFromInt(int64(qty))))
	}

	h.logger.Info("checkout complete", "items", count, "total", total.StringFixed(2))
	writeJSON(w, http.StatusOK, checkoutResponse{
		Success: true,
		Message: "Checkout successful",
		Total:   total.StringFixed(2),
	}, h.logger)
}
