// Package cart holds the in-session shopping cart and its derived
// totals. The item list lives in memory for the session; the pinned
// flag of the cart panel survives restarts via a small state file.
package cart

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/procureflow/procureflow/internal/catalog"
)

// Quantity bounds for a single line item.
const (
	MinQuantity = 1
	MaxQuantity = 999
)

// Item is one cart line: a product plus its quantity.
type Item struct {
	catalog.Product
	Quantity int `json:"quantity"`
}

// Store is a concurrency-safe cart keyed by product id. Adding an
// existing product merges quantities; decrementing to zero removes
// the line.
type Store struct {
	mu    sync.Mutex
	items map[string]Item
	order []string // product ids in insertion order

	pinned    bool
	statePath string // empty disables persistence
}

// Option configures a Store.
type Option func(*Store)

// WithStateFile persists the pinned flag to path. The file is read
// at construction and rewritten on every pin change.
func WithStateFile(path string) Option {
	return func(s *Store) { s.statePath = path }
}

// New builds an empty cart.
func New(opts ...Option) *Store {
	s := &Store{items: make(map[string]Item)}
	for _, opt := range opts {
		opt(s)
	}
	s.loadState()
	return s
}

// Add inserts the product with the given quantity, merging into an
// existing line. Quantities clamp to [MinQuantity, MaxQuantity].
func (s *Store) Add(p catalog.Product, quantity int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	quantity = clamp(quantity)
	if item, ok := s.items[p.ID]; ok {
		item.Quantity = clamp(item.Quantity + quantity)
		s.items[p.ID] = item
		return
	}
	s.items[p.ID] = Item{Product: p.Normalized(), Quantity: quantity}
	s.order = append(s.order, p.ID)
}

// Increment raises the line's quantity by one. Unknown ids are a no-op.
func (s *Store) Increment(productID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item, ok := s.items[productID]; ok {
		item.Quantity = clamp(item.Quantity + 1)
		s.items[productID] = item
	}
}

// Decrement lowers the line's quantity by one, removing the line when
// it reaches zero.
func (s *Store) Decrement(productID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[productID]
	if !ok {
		return
	}
	if item.Quantity <= MinQuantity {
		s.removeLocked(productID)
		return
	}
	item.Quantity--
	s.items[productID] = item
}

// Remove deletes the line regardless of quantity.
func (s *Store) Remove(productID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(productID)
}

// Clear empties the cart. The pinned flag is untouched.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]Item)
	s.order = nil
}

func (s *Store) removeLocked(productID string) {
	if _, ok := s.items[productID]; !ok {
		return
	}
	delete(s.items, productID)
	for i, id := range s.order {
		if id == productID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Items returns the cart lines in insertion order.
func (s *Store) Items() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Item, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.items[id])
	}
	return out
}

// TotalCount is the sum of all line quantities.
func (s *Store) TotalCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int
	for _, item := range s.items {
		n += item.Quantity
	}
	return n
}

// TotalAmount is the sum of price*quantity over all lines.
func (s *Store) TotalAmount() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := decimal.Zero
	for _, item := range s.items {
		price := decimal.NewFromFloat(item.Price)
		total = total.Add(price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

// Pinned reports whether the cart panel is pinned open.
func (s *Store) Pinned() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pinned
}

// SetPinned updates the pinned flag and persists it.
func (s *Store) SetPinned(pinned bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pinned = pinned
	return s.saveStateLocked()
}

type persistedState struct {
	Pinned bool `json:"pinned"`
}

func (s *Store) loadState() {
	if s.statePath == "" {
		return
	}
	data, err := os.ReadFile(s.statePath)
	if err != nil {
		return
	}
	var st persistedState
	if json.Unmarshal(data, &st) == nil {
		s.pinned = st.Pinned
	}
}

func (s *Store) saveStateLocked() error {
	if s.statePath == "" {
		return nil
	}
	data, err := json.Marshal(persistedState{Pinned: s.pinned})
	if err != nil {
		return fmt.Errorf("encoding cart state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.statePath), 0o755); err != nil {
		return fmt.Errorf("creating state dir: %w", err)
	}
	tmp := s.statePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing cart state: %w", err)
	}
	if err := os.Rename(tmp, s.statePath); err != nil {
		return fmt.Errorf("replacing cart state: %w", err)
	}
	return nil
}

// SortedIDs returns the product ids currently in the cart, sorted.
// Handy for deterministic output in logs and tests.
func (s *Store) SortedIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.items))
	for id := range s.items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func clamp(q int) int {
	if q < MinQuantity {
		return MinQuantity
	}
	if q > MaxQuantity {
		return MaxQuantity
	}
	return q
}
