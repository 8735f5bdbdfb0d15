// Package catalog provides the procurement product catalog.
//
// The catalog is exposed through the [Repository] interface so the API
// layer, the assistant tools, and tests share one injected instance
// with an explicit lifecycle instead of package-level state.
package catalog

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"
)

// Product statuses assigned by the catalog.
const (
	StatusInStock         = "In Stock"
	StatusPendingApproval = "Pending Approval"
)

// Defaults applied when registering a product with missing fields.
const (
	DefaultName     = "Unnamed Product"
	DefaultCategory = "Uncategorized"
)

// ErrNotFound indicates the requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product is a single catalog entry. Products are immutable once
// created except for Status.
type Product struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Price       float64  `json:"price"`
	Status      string   `json:"status"`
	Images      []string `json:"images"`
}

// Normalized returns a copy with a non-nil Images slice, giving every
// API and tool response the same field shape.
func (p Product) Normalized() Product {
	if p.Images == nil {
		p.Images = []string{}
	}
	return p
}

// Repository defines catalog access for the API layer and the
// assistant tools.
type Repository interface {
	// List returns all products in catalog order.
	List(ctx context.Context) ([]Product, error)

	// Get returns the product with the given id.
	// Returns ErrNotFound if no such product exists.
	Get(ctx context.Context, id string) (Product, error)

	// Add registers a new product, applying defaults for missing
	// fields, and returns the stored product.
	Add(ctx context.Context, p Product) (Product, error)

	// Filter returns the products matching the free-text query,
	// in catalog order.
	Filter(ctx context.Context, query string) ([]Product, error)
}

// MemoryRepository is an in-memory Repository guarded by a mutex.
// The zero value is not useful — use NewMemoryRepository.
type MemoryRepository struct {
	mu       sync.RWMutex
	products []Product
	now      func() time.Time
}

// NewMemoryRepository creates a repository pre-populated with the
// given products.
func NewMemoryRepository(seed []Product) *MemoryRepository {
	products := make([]Product, len(seed))
	for i, p := range seed {
		products[i] = p.Normalized()
	}
	return &MemoryRepository{products: products, now: time.Now}
}

// List returns a copy of all products in catalog order.
func (r *MemoryRepository) List(_ context.Context) ([]Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Product, len(r.products))
	copy(out, r.products)
	return out, nil
}

// Get returns the product with the given id, or ErrNotFound.
func (r *MemoryRepository) Get(_ context.Context, id string) (Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.products {
		if p.ID == id {
			return p, nil
		}
	}
	return Product{}, ErrNotFound
}

// Add registers a new product. Empty fields receive defaults and the
// id is assigned from the current clock, matching registration via
// both the REST endpoint and the registerProduct tool.
func (r *MemoryRepository) Add(_ context.Context, p Product) (Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.Name == "" {
		p.Name = DefaultName
	}
	if p.Category == "" {
		p.Category = DefaultCategory
	}
	if p.Status == "" {
		p.Status = StatusPendingApproval
	}
	if p.Price < 0 {
		p.Price = 0
	}
	p.ID = strconv.FormatInt(r.now().UnixMilli(), 10)
	p = p.Normalized()

	r.products = append(r.products, p)
	return p, nil
}

// Filter returns the products matching the query, in catalog order.
func (r *MemoryRepository) Filter(_ context.Context, query string) ([]Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return FilterProducts(r.products, query), nil
}

// Seed returns the built-in demo catalog.
func Seed() []Product {
	return []Product{
		{
			ID:          "1",
			Name:        "USB-C Cable 2m",
			Category:    "Electronics",
			Description: "High-speed USB-C charging cable with durable braided design",
			Price:       12.99,
			Status:      StatusInStock,
			Images:      []string{"https://images.unsplash.com/photo-1625948515291-69613efd103f?w=800&q=80"},
		},
		{
			ID:          "2",
			Name:        "USB-C Cable 1m",
			Category:    "Electronics",
			Description: "Compact USB-C cable for desktop use",
			Price:       9.99,
			Status:      StatusInStock,
			Images:      []string{"https://images.unsplash.com/photo-1625948515291-69613efd103f?w=800&q=80"},
		},
		{
			ID:          "3",
			Name:        "Wireless Mouse",
			Category:    "Electronics",
			Description: "Ergonomic wireless mouse with precision tracking",
			Price:       24.99,
			Status:      StatusInStock,
			Images:      []string{"https://images.unsplash.com/photo-1527864550417-7fd91fc51a46?w=800&q=80"},
		},
		{
			ID:          "4",
			Name:        "Mechanical Keyboard",
			Category:    "Electronics",
			Description: "Tenkeyless mechanical keyboard with tactile switches",
			Price:       89.99,
			Status:      StatusInStock,
			Images:      []string{"https://images.unsplash.com/photo-1587829741301-dc798b83add3?w=800&q=80"},
		},
		{
			ID:          "5",
			Name:        "Desk Organizer",
			Category:    "Office Supplies",
			Description: "Bamboo desk organizer with compartments for stationery",
			Price:       19.99,
			Status:      StatusInStock,
			Images:      []string{"https://images.unsplash.com/photo-1587145820266-a5951ee6f620?w=800&q=80"},
		},
		{
			ID:          "6",
			Name:        "Notebook A5 Ruled",
			Category:    "Office Supplies",
			Description: "Hardcover ruled notebook, 192 pages",
			Price:       6.49,
			Status:      StatusInStock,
			Images:      []string{"https://images.unsplash.com/photo-1531346878377-a5be20888e57?w=800&q=80"},
		},
	}
}
