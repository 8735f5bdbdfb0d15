package chat

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/procureflow/procureflow/internal/cart"
	"github.com/procureflow/procureflow/internal/catalog"
	"github.com/procureflow/procureflow/internal/message"
)

type recordingEffects struct {
	calls []struct {
		product  catalog.Product
		quantity int
	}
}

func (e *recordingEffects) AddToCart(p catalog.Product, qty int) {
	e.calls = append(e.calls, struct {
		product  catalog.Product
		quantity int
	}{p, qty})
}

func addToCartPart(callID string, state message.ToolState, output string) message.ToolPart {
	p := message.ToolPart{
		Tool:       message.ToolAddToCart,
		ToolCallID: callID,
		State:      state,
		Input:      json.RawMessage(`{"productId":"1","quantity":2}`),
	}
	if output != "" {
		p.Output = json.RawMessage(output)
	}
	return p
}

func TestReducerStatusLifecycle(t *testing.T) {
	r := NewReducer(nil, nil)
	assert.Equal(t, StatusIdle, r.Status())

	r.Submit(message.Message{ID: "u1", Role: message.RoleUser, Parts: []message.Part{message.TextPart{Text: "hi"}}})
	assert.Equal(t, StatusSubmitted, r.Status())

	require.NoError(t, r.Apply(message.StartEvent("a1")))
	assert.Equal(t, StatusStreaming, r.Status())

	require.NoError(t, r.Apply(message.FinishEvent("a1")))
	assert.Equal(t, StatusIdle, r.Status())

	require.NoError(t, r.Apply(message.ErrorEvent("a1", "boom")))
	assert.Equal(t, StatusError, r.Status())
}

func TestReducerAccumulatesParts(t *testing.T) {
	r := NewReducer(nil, nil)
	require.NoError(t, r.Apply(message.StartEvent("a1")))
	require.NoError(t, r.Apply(message.PartEvent("a1", 0, message.TextPart{Text: "Looking"})))
	require.NoError(t, r.Apply(message.PartEvent("a1", 0, message.TextPart{Text: "Looking that up"})))
	require.NoError(t, r.Apply(message.PartEvent("a1", 1, message.TextPart{Text: " now."})))
	require.NoError(t, r.Apply(message.FinishEvent("a1")))

	msgs := r.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, message.RoleAssistant, msgs[0].Role)
	assert.Equal(t, "Looking that up now.", msgs[0].Text())
}

func TestReducerEffectFiresOnce(t *testing.T) {
	eff := &recordingEffects{}
	r := NewReducer(nil, eff)

	out := `{"success":true,"quantity":2,"product":{"id":"1","name":"USB-C Cable","price":12.99}}`
	require.NoError(t, r.Apply(message.StartEvent("a1")))
	require.NoError(t, r.Apply(message.PartEvent("a1", 0, addToCartPart("call-1", message.StateInputStreaming, ""))))
	require.NoError(t, r.Apply(message.PartEvent("a1", 0, addToCartPart("call-1", message.StateInputAvailable, ""))))
	require.NoError(t, r.Apply(message.PartEvent("a1", 0, addToCartPart("call-1", message.StateOutputAvailable, out))))

	// Replaying the terminal part must not re-fire the effect.
	require.NoError(t, r.Apply(message.PartEvent("a1", 0, addToCartPart("call-1", message.StateOutputAvailable, out))))

	require.Len(t, eff.calls, 1)
	assert.Equal(t, "1", eff.calls[0].product.ID)
	assert.Equal(t, 2, eff.calls[0].quantity)
}

func TestReducerEffectDistinctCallIDs(t *testing.T) {
	eff := &recordingEffects{}
	r := NewReducer(nil, eff)
	out := `{"success":true,"quantity":1,"product":{"id":"2"}}`

	require.NoError(t, r.Apply(message.StartEvent("a1")))
	require.NoError(t, r.Apply(message.PartEvent("a1", 0, addToCartPart("call-1", message.StateOutputAvailable, out))))
	require.NoError(t, r.Apply(message.PartEvent("a1", 1, addToCartPart("call-2", message.StateOutputAvailable, out))))

	assert.Len(t, eff.calls, 2)
}

func TestReducerStaleHistoryNeverFires(t *testing.T) {
	eff := &recordingEffects{}
	history := []message.Message{{
		ID:   "old",
		Role: message.RoleAssistant,
		Parts: []message.Part{addToCartPart("call-old", message.StateOutputAvailable,
			`{"success":true,"quantity":1,"product":{"id":"1"}}`)},
	}}
	r := NewReducer(history, eff)

	assert.False(t, r.Live("old"))

	// Re-processing the stale message's part fires nothing.
	require.NoError(t, r.Apply(message.PartEvent("old", 0, addToCartPart("call-old", message.StateOutputAvailable,
		`{"success":true,"quantity":1,"product":{"id":"1"}}`))))
	assert.Empty(t, eff.calls)

	require.NoError(t, r.Apply(message.StartEvent("new")))
	assert.True(t, r.Live("new"))
}

func TestReducerEffectSkipsFailureAndError(t *testing.T) {
	eff := &recordingEffects{}
	r := NewReducer(nil, eff)

	require.NoError(t, r.Apply(message.StartEvent("a1")))
	require.NoError(t, r.Apply(message.PartEvent("a1", 0,
		addToCartPart("call-1", message.StateOutputAvailable, `{"success":false,"error":"Product not found"}`))))

	errPart := addToCartPart("call-2", message.StateOutputError, "")
	errPart.ErrorText = "tool crashed"
	require.NoError(t, r.Apply(message.PartEvent("a1", 1, errPart)))

	assert.Empty(t, eff.calls)
}

func TestReducerToolStateNeverRegresses(t *testing.T) {
	r := NewReducer(nil, nil)
	out := `{"success":true,"quantity":1,"product":{"id":"1"}}`

	require.NoError(t, r.Apply(message.StartEvent("a1")))
	require.NoError(t, r.Apply(message.PartEvent("a1", 0, addToCartPart("c", message.StateOutputAvailable, out))))
	require.NoError(t, r.Apply(message.PartEvent("a1", 0, addToCartPart("c", message.StateInputStreaming, ""))))

	msgs := r.Messages()
	tp, ok := msgs[0].Parts[0].(message.ToolPart)
	require.True(t, ok)
	assert.Equal(t, message.StateOutputAvailable, tp.State)
}

func TestReducerDefaultQuantity(t *testing.T) {
	eff := &recordingEffects{}
	r := NewReducer(nil, eff)

	require.NoError(t, r.Apply(message.StartEvent("a1")))
	require.NoError(t, r.Apply(message.PartEvent("a1", 0,
		addToCartPart("c", message.StateOutputAvailable, `{"success":true,"product":{"id":"3"}}`))))

	require.Len(t, eff.calls, 1)
	assert.Equal(t, 1, eff.calls[0].quantity)
}

func TestStoreEffectsAddsToCart(t *testing.T) {
	store := cart.New()
	r := NewReducer(nil, StoreEffects{Cart: store})

	out := `{"success":true,"quantity":2,"product":{"id":"1","name":"USB-C Cable 2m","price":12.99}}`
	require.NoError(t, r.Apply(message.StartEvent("a1")))
	require.NoError(t, r.Apply(message.PartEvent("a1", 0, addToCartPart("call-1", message.StateOutputAvailable, out))))

	// Replay of the same terminal part must not double-add.
	require.NoError(t, r.Apply(message.PartEvent("a1", 0, addToCartPart("call-1", message.StateOutputAvailable, out))))
	require.NoError(t, r.Apply(message.FinishEvent("a1")))

	require.Equal(t, 2, store.TotalCount())
	items := store.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "1", items[0].ID)
}
