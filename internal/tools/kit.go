package tools

import (
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/procureflow/procureflow/internal/cart"
	"github.com/procureflow/procureflow/internal/catalog"
	"github.com/procureflow/procureflow/internal/log"
	"github.com/procureflow/procureflow/internal/message"
)

// MaxSearchResults caps how many products a search tool call returns.
const MaxSearchResults = 10

// Kit holds the dependencies shared by all tool handlers.
// Business failures (unknown product, empty cart) are reported in the
// output payload with success false so the model can correct itself;
// a Go error is reserved for hard failures.
type Kit struct {
	catalog catalog.Repository
	cart    *cart.Store
	logger  log.Logger
}

// NewKit creates a Kit. The repository and cart are required.
func NewKit(repo catalog.Repository, store *cart.Store, logger log.Logger) (*Kit, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository is required")
	}
	if store == nil {
		return nil, fmt.Errorf("cart store is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Kit{catalog: repo, cart: store, logger: logger}, nil
}

// SearchInput defines input for the searchProducts tool.
type SearchInput struct {
	Query string `json:"query" jsonschema_description:"Free-text product search, e.g. 'usb-c cables' or 'office chairs under review'"`
}

// SearchOutput is the searchProducts result.
type SearchOutput struct {
	Success  bool              `json:"success"`
	Count    int               `json:"count"`
	Products []catalog.Product `json:"products"`
	Message  string            `json:"message"`
}

// RegisterInput defines input for the registerProduct tool.
type RegisterInput struct {
	Name        string  `json:"name" jsonschema_description:"Product name"`
	Category    string  `json:"category,omitempty" jsonschema_description:"Product category, e.g. 'Electronics'"`
	Description string  `json:"description,omitempty" jsonschema_description:"Short product description"`
	Price       float64 `json:"price,omitempty" jsonschema_description:"Unit price in dollars"`
}

// RegisterOutput is the registerProduct result.
type RegisterOutput struct {
	Success bool            `json:"success"`
	Product catalog.Product `json:"product"`
	Message string          `json:"message"`
}

// CartItemInput defines input for addToCart.
type CartItemInput struct {
	ProductID string `json:"productId" jsonschema_description:"Id of the product to add"`
	Quantity  int    `json:"quantity,omitempty" jsonschema_description:"How many units, defaults to 1"`
}

// CartItemOutput is the addToCart result. The reducer applies the
// cart mutation from this payload, once per tool call id.
type CartItemOutput struct {
	Success  bool            `json:"success"`
	Product  catalog.Product `json:"product,omitempty"`
	Quantity int             `json:"quantity,omitempty"`
	Message  string          `json:"message,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// RemoveInput defines input for removeFromCart.
type RemoveInput struct {
	ProductID string `json:"productId" jsonschema_description:"Id of the product to remove"`
}

// RemoveOutput is the removeFromCart result.
type RemoveOutput struct {
	Success   bool   `json:"success"`
	ProductID string `json:"productId,omitempty"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
}

// ViewCartInput defines input for viewCart (none needed).
type ViewCartInput struct{}

// ViewCartOutput is the viewCart result.
type ViewCartOutput struct {
	Success     bool        `json:"success"`
	Items       []cart.Item `json:"items"`
	TotalCount  int         `json:"totalCount"`
	TotalAmount string      `json:"totalAmount"`
	Message     string      `json:"message"`
}

// PaymentInput defines input for the payment method tools.
type PaymentInput struct {
	Method string `json:"method,omitempty" jsonschema_description:"Payment method label, e.g. 'corporate card ending 4421'"`
}

// ShippingInput defines input for the shipping address tools.
type ShippingInput struct {
	Address string `json:"address,omitempty" jsonschema_description:"Full shipping address"`
}

// AckOutput is the generic acknowledgement for payment, shipping and
// finalization steps.
type AckOutput struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// FinalizeInput defines input for finalizePurchase (none needed).
type FinalizeInput struct{}

// FinalizeOutput is the finalizePurchase result.
type FinalizeOutput struct {
	Success    bool   `json:"success"`
	ItemCount  int    `json:"itemCount"`
	TotalPrice string `json:"totalPrice"`
	Message    string `json:"message"`
}

// Register defines all procurement tools with Genkit, each wrapped
// for lifecycle events.
func (k *Kit) Register(g *genkit.Genkit) ([]ai.Tool, error) {
	if g == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}

	return []ai.Tool{
		genkit.DefineTool(g, message.ToolSearchProducts,
			"Search the product catalog with a free-text query. "+
				"Returns up to 10 matching products with id, name, category, price and approval status. "+
				"Use this whenever the user asks to find, show or browse products.",
			WithEvents(message.ToolSearchProducts, k.SearchProducts)),
		genkit.DefineTool(g, message.ToolRegisterProduct,
			"Register a new product in the catalog. "+
				"Missing fields get defaults and the product starts in Pending Approval status. "+
				"Use this when the user wants to add or list a new product.",
			WithEvents(message.ToolRegisterProduct, k.RegisterProduct)),
		genkit.DefineTool(g, message.ToolAddToCart,
			"Add a catalog product to the shopping cart by product id. "+
				"Quantity defaults to 1 and is clamped between 1 and 999. "+
				"Fails with success false when the product id does not exist.",
			WithEvents(message.ToolAddToCart, k.AddToCart)),
		genkit.DefineTool(g, message.ToolRemoveFromCart,
			"Remove a product line from the shopping cart by product id.",
			WithEvents(message.ToolRemoveFromCart, k.RemoveFromCart)),
		genkit.DefineTool(g, message.ToolViewCart,
			"Show the current cart contents with line quantities and totals.",
			WithEvents(message.ToolViewCart, k.ViewCart)),
		genkit.DefineTool(g, message.ToolAddPaymentMethod,
			"Add a payment method to the purchase. Use when the user provides card or account details.",
			WithEvents(message.ToolAddPaymentMethod, k.AddPaymentMethod)),
		genkit.DefineTool(g, message.ToolChangePaymentMethod,
			"Switch the purchase to a different payment method.",
			WithEvents(message.ToolChangePaymentMethod, k.ChangePaymentMethod)),
		genkit.DefineTool(g, message.ToolRemovePaymentMethod,
			"Remove the current payment method from the purchase.",
			WithEvents(message.ToolRemovePaymentMethod, k.RemovePaymentMethod)),
		genkit.DefineTool(g, message.ToolAddShippingAddress,
			"Add a shipping address to the purchase.",
			WithEvents(message.ToolAddShippingAddress, k.AddShippingAddress)),
		genkit.DefineTool(g, message.ToolChangeShippingAddress,
			"Change the shipping address of the purchase.",
			WithEvents(message.ToolChangeShippingAddress, k.ChangeShippingAddress)),
		genkit.DefineTool(g, message.ToolRemoveShippingAddress,
			"Remove the shipping address from the purchase.",
			WithEvents(message.ToolRemoveShippingAddress, k.RemoveShippingAddress)),
		genkit.DefineTool(g, message.ToolFinalizePurchase,
			"Finalize the purchase of everything currently in the cart and clear it. "+
				"Only call this after the user has confirmed they want to check out.",
			WithEvents(message.ToolFinalizePurchase, k.FinalizePurchase)),
	}, nil
}

// SearchProducts filters the catalog and returns at most
// MaxSearchResults matches.
func (k *Kit) SearchProducts(ctx *ai.ToolContext, input SearchInput) (SearchOutput, error) {
	k.logger.Debug("searchProducts called", "query", input.Query)

	products, err := k.catalog.Filter(ctx.Context, input.Query)
	if err != nil {
		return SearchOutput{}, fmt.Errorf("filtering products: %w", err)
	}

	total := len(products)
	if len(products) > MaxSearchResults {
		products = products[:MaxSearchResults]
	}
	msg := fmt.Sprintf("Found %d products matching %q.", total, input.Query)
	if total > MaxSearchResults {
		msg = fmt.Sprintf("Found %d products matching %q, showing the first %d.", total, input.Query, MaxSearchResults)
	}
	return SearchOutput{Success: true, Count: total, Products: products, Message: msg}, nil
}

// RegisterProduct adds a product to the catalog with defaults applied.
func (k *Kit) RegisterProduct(ctx *ai.ToolContext, input RegisterInput) (RegisterOutput, error) {
	k.logger.Debug("registerProduct called", "name", input.Name)

	p, err := k.catalog.Add(ctx.Context, catalog.Product{
		Name:        input.Name,
		Category:    input.Category,
		Description: input.Description,
		Price:       input.Price,
	})
	if err != nil {
		return RegisterOutput{}, fmt.Errorf("registering product: %w", err)
	}
	return RegisterOutput{
		Success: true,
		Product: p,
		Message: fmt.Sprintf("Registered %q in %s with status %s.", p.Name, p.Category, p.Status),
	}, nil
}

// AddToCart resolves the product and reports the line to add. The
// actual cart mutation happens in the stream reducer so replays of a
// persisted conversation never add the item twice.
func (k *Kit) AddToCart(ctx *ai.ToolContext, input CartItemInput) (CartItemOutput, error) {
	k.logger.Debug("addToCart called", "product_id", input.ProductID, "quantity", input.Quantity)

	p, err := k.catalog.Get(ctx.Context, input.ProductID)
	if err != nil {
		if err == catalog.ErrNotFound {
			return CartItemOutput{Success: false, Error: "Product not found"}, nil
		}
		return CartItemOutput{}, fmt.Errorf("looking up product: %w", err)
	}

	qty := input.Quantity
	if qty < cart.MinQuantity {
		qty = cart.MinQuantity
	}
	if qty > cart.MaxQuantity {
		qty = cart.MaxQuantity
	}
	return CartItemOutput{
		Success:  true,
		Product:  p,
		Quantity: qty,
		Message:  fmt.Sprintf("Added %d x %s to the cart.", qty, p.Name),
	}, nil
}

// RemoveFromCart removes a cart line.
func (k *Kit) RemoveFromCart(_ *ai.ToolContext, input RemoveInput) (RemoveOutput, error) {
	k.logger.Debug("removeFromCart called", "product_id", input.ProductID)

	if input.ProductID == "" {
		return RemoveOutput{Success: false, Error: "Product id is required"}, nil
	}
	k.cart.Remove(input.ProductID)
	return RemoveOutput{
		Success:   true,
		ProductID: input.ProductID,
		Message:   "Removed the product from the cart.",
	}, nil
}

// ViewCart snapshots the cart contents.
func (k *Kit) ViewCart(_ *ai.ToolContext, _ ViewCartInput) (ViewCartOutput, error) {
	items := k.cart.Items()
	total := k.cart.TotalAmount()

	msg := fmt.Sprintf("The cart has %d items totaling $%s.", k.cart.TotalCount(), total.StringFixed(2))
	if len(items) == 0 {
		msg = "The cart is empty."
	}
	return ViewCartOutput{
		Success:     true,
		Items:       items,
		TotalCount:  k.cart.TotalCount(),
		TotalAmount: total.StringFixed(2),
		Message:     msg,
	}, nil
}

// AddPaymentMethod acknowledges a payment method for the purchase.
func (k *Kit) AddPaymentMethod(_ *ai.ToolContext, input PaymentInput) (AckOutput, error) {
	return ack("Payment method added", input.Method), nil
}

// ChangePaymentMethod acknowledges switching payment methods.
func (k *Kit) ChangePaymentMethod(_ *ai.ToolContext, input PaymentInput) (AckOutput, error) {
	return ack("Payment method changed", input.Method), nil
}

// RemovePaymentMethod acknowledges removing the payment method.
func (k *Kit) RemovePaymentMethod(_ *ai.ToolContext, _ PaymentInput) (AckOutput, error) {
	return AckOutput{Success: true, Message: "Payment method removed."}, nil
}

// AddShippingAddress acknowledges a shipping address.
func (k *Kit) AddShippingAddress(_ *ai.ToolContext, input ShippingInput) (AckOutput, error) {
	return ack("Shipping address added", input.Address), nil
}

// ChangeShippingAddress acknowledges changing the shipping address.
func (k *Kit) ChangeShippingAddress(_ *ai.ToolContext, input ShippingInput) (AckOutput, error) {
	return ack("Shipping address changed", input.Address), nil
}

// RemoveShippingAddress acknowledges removing the shipping address.
func (k *Kit) RemoveShippingAddress(_ *ai.ToolContext, _ ShippingInput) (AckOutput, error) {
	return AckOutput{Success: true, Message: "Shipping address removed."}, nil
}

// FinalizePurchase checks out the current cart and clears it.
func (k *Kit) FinalizePurchase(_ *ai.ToolContext, _ FinalizeInput) (FinalizeOutput, error) {
	items := k.cart.Items()
	if len(items) == 0 {
		return FinalizeOutput{Success: false, Message: "The cart is empty, nothing to purchase."}, nil
	}

	count := k.cart.TotalCount()
	total := k.cart.TotalAmount()
	k.cart.Clear()

	k.logger.Info("purchase finalized", "items", count, "total", total.StringFixed(2))
	return FinalizeOutput{
		Success:    true,
		ItemCount:  count,
		TotalPrice: total.StringFixed(2),
		Message:    fmt.Sprintf("Purchase complete: %d items for $%s.", count, total.StringFixed(2)),
	}, nil
}

func ack(action, detail string) AckOutput {
	if detail == "" {
		return AckOutput{Success: true, Message: action + "."}
	}
	return AckOutput{Success: true, Message: fmt.Sprintf("%s: %s.", action, detail)}
}
