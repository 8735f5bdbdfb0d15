package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/firebase/genkit/go/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/procureflow/procureflow/internal/cart"
	"github.com/procureflow/procureflow/internal/catalog"
)

func newTestKit(t *testing.T) (*Kit, *cart.Store) {
	t.Helper()
	store := cart.New()
	kit, err := NewKit(catalog.NewMemoryRepository(catalog.Seed()), store, nil)
	require.NoError(t, err)
	return kit, store
}

func toolCtx() *ai.ToolContext {
	return &ai.ToolContext{Context: context.Background()}
}

func TestNewKitRequiresDeps(t *testing.T) {
	_, err := NewKit(nil, cart.New(), nil)
	assert.Error(t, err)

	_, err = NewKit(catalog.NewMemoryRepository(nil), nil, nil)
	assert.Error(t, err)
}

func TestSearchProducts(t *testing.T) {
	kit, _ := newTestKit(t)

	out, err := kit.SearchProducts(toolCtx(), SearchInput{Query: "usb-c cable"})
	require.NoError(t, err)
	assert.True(t, out.Success)
	require.NotEmpty(t, out.Products)
	assert.Equal(t, out.Count, len(out.Products))
	for _, p := range out.Products {
		assert.Contains(t, p.Name, "USB-C")
	}
}

func TestSearchProductsCapsResults(t *testing.T) {
	seed := make([]catalog.Product, 0, 25)
	for i := 0; i < 25; i++ {
		seed = append(seed, catalog.Product{
			ID:   string(rune('a' + i)),
			Name: "Widget", Category: "Hardware", Status: catalog.StatusInStock,
		})
	}
	kit, err := NewKit(catalog.NewMemoryRepository(seed), cart.New(), nil)
	require.NoError(t, err)

	out, err := kit.SearchProducts(toolCtx(), SearchInput{Query: "widget"})
	require.NoError(t, err)
	assert.Equal(t, 25, out.Count)
	assert.Len(t, out.Products, MaxSearchResults)
	assert.Contains(t, out.Message, "showing the first 10")
}

func TestRegisterProductDefaults(t *testing.T) {
	kit, _ := newTestKit(t)

	out, err := kit.RegisterProduct(toolCtx(), RegisterInput{})
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, catalog.DefaultName, out.Product.Name)
	assert.Equal(t, catalog.DefaultCategory, out.Product.Category)
	assert.Equal(t, catalog.StatusPendingApproval, out.Product.Status)
	assert.NotEmpty(t, out.Product.ID)
}

func TestAddToCartUnknownProduct(t *testing.T) {
	kit, store := newTestKit(t)

	out, err := kit.AddToCart(toolCtx(), CartItemInput{ProductID: "nope", Quantity: 1})
	require.NoError(t, err)
	assert.False(t, out.Success)
	assert.Equal(t, "Product not found", out.Error)
	assert.Empty(t, store.Items(), "tool does not mutate the cart directly")
}

func TestAddToCartClampsQuantity(t *testing.T) {
	kit, _ := newTestKit(t)

	out, err := kit.AddToCart(toolCtx(), CartItemInput{ProductID: "1"})
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, 1, out.Quantity)

	out, err = kit.AddToCart(toolCtx(), CartItemInput{ProductID: "1", Quantity: 100000})
	require.NoError(t, err)
	assert.Equal(t, cart.MaxQuantity, out.Quantity)
}

func TestViewCartAndFinalize(t *testing.T) {
	kit, store := newTestKit(t)

	empty, err := kit.ViewCart(toolCtx(), ViewCartInput{})
	require.NoError(t, err)
	assert.Equal(t, "The cart is empty.", empty.Message)

	store.Add(catalog.Product{ID: "1", Name: "Cable", Price: 12.99}, 2)

	view, err := kit.ViewCart(toolCtx(), ViewCartInput{})
	require.NoError(t, err)
	assert.Equal(t, 2, view.TotalCount)
	assert.Equal(t, "25.98", view.TotalAmount)

	fin, err := kit.FinalizePurchase(toolCtx(), FinalizeInput{})
	require.NoError(t, err)
	assert.True(t, fin.Success)
	assert.Equal(t, 2, fin.ItemCount)
	assert.Equal(t, "25.98", fin.TotalPrice)
	assert.Empty(t, store.Items(), "finalize clears the cart")

	again, err := kit.FinalizePurchase(toolCtx(), FinalizeInput{})
	require.NoError(t, err)
	assert.False(t, again.Success)
}

func TestRemoveFromCart(t *testing.T) {
	kit, store := newTestKit(t)
	store.Add(catalog.Product{ID: "1", Name: "Cable", Price: 1}, 1)

	out, err := kit.RemoveFromCart(toolCtx(), RemoveInput{ProductID: "1"})
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Empty(t, store.Items())

	out, err = kit.RemoveFromCart(toolCtx(), RemoveInput{})
	require.NoError(t, err)
	assert.False(t, out.Success)
}

func TestPaymentAndShippingAcks(t *testing.T) {
	kit, _ := newTestKit(t)

	out, err := kit.AddPaymentMethod(toolCtx(), PaymentInput{Method: "corporate card"})
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Contains(t, out.Message, "corporate card")

	out, err = kit.RemoveShippingAddress(toolCtx(), ShippingInput{})
	require.NoError(t, err)
	assert.True(t, out.Success)
}

// captureEmitter records the lifecycle calls WithEvents makes.
type captureEmitter struct {
	calls []string
	ids   []string
	last  json.RawMessage
}

func (c *captureEmitter) ToolCall(tool, callID string, input json.RawMessage) {
	c.calls = append(c.calls, "call:"+tool)
	c.ids = append(c.ids, callID)
	c.last = input
}

func (c *captureEmitter) ToolResult(tool, callID string, output json.RawMessage) {
	c.calls = append(c.calls, "result:"+tool)
	c.ids = append(c.ids, callID)
	c.last = output
}

func (c *captureEmitter) ToolError(tool, callID, errText string) {
	c.calls = append(c.calls, "error:"+tool)
	c.ids = append(c.ids, callID)
}

func TestWithEventsEmitsLifecycle(t *testing.T) {
	kit, _ := newTestKit(t)
	emitter := &captureEmitter{}

	ctx := &ai.ToolContext{Context: ContextWithEmitter(context.Background(), emitter)}
	wrapped := WithEvents("searchProducts", kit.SearchProducts)

	_, err := wrapped(ctx, SearchInput{Query: "cable"})
	require.NoError(t, err)

	require.Equal(t, []string{"call:searchProducts", "result:searchProducts"}, emitter.calls)
	assert.Equal(t, emitter.ids[0], emitter.ids[1], "same call id across states")

	var out SearchOutput
	require.NoError(t, json.Unmarshal(emitter.last, &out))
	assert.True(t, out.Success)
}

func TestWithEventsFreshCallIDs(t *testing.T) {
	kit, _ := newTestKit(t)
	emitter := &captureEmitter{}
	ctx := &ai.ToolContext{Context: ContextWithEmitter(context.Background(), emitter)}
	wrapped := WithEvents("viewCart", kit.ViewCart)

	_, err := wrapped(ctx, ViewCartInput{})
	require.NoError(t, err)
	_, err = wrapped(ctx, ViewCartInput{})
	require.NoError(t, err)

	assert.NotEqual(t, emitter.ids[0], emitter.ids[2], "each invocation gets its own call id")
}

func TestWithEventsNoEmitterPassthrough(t *testing.T) {
	kit, _ := newTestKit(t)
	wrapped := WithEvents("viewCart", kit.ViewCart)

	out, err := wrapped(toolCtx(), ViewCartInput{})
	require.NoError(t, err)
	assert.True(t, out.Success)
}
