package chat

import (
	"github.com/procureflow/procureflow/internal/cart"
	"github.com/procureflow/procureflow/internal/catalog"
)

// StoreEffects applies reducer cart effects to a cart store. It is
// the production CartEffects implementation: the reducer's
// exactly-once guard decides when to fire, the store holds the items.
type StoreEffects struct {
	Cart *cart.Store
}

func (e StoreEffects) AddToCart(p catalog.Product, quantity int) {
	e.Cart.Add(p, quantity)
}
