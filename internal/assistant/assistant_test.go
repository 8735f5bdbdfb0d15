package assistant

import (
	"context"
	"testing"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/procureflow/procureflow/internal/cart"
	"github.com/procureflow/procureflow/internal/catalog"
	"github.com/procureflow/procureflow/internal/chatstore"
	"github.com/procureflow/procureflow/internal/log"
	"github.com/procureflow/procureflow/internal/message"
	"github.com/procureflow/procureflow/internal/testutil"
	"github.com/procureflow/procureflow/internal/tools"
)

type fixture struct {
	agent *Agent
	store *chatstore.Store
	mock  *testutil.MockLLM
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()

	g := genkit.Init(context.Background())
	require.NotNil(t, g)

	mock := testutil.NewMockLLM("I can help with procurement.")
	mock.RegisterModel(g)

	kit, err := tools.NewKit(catalog.NewMemoryRepository(catalog.Seed()), cart.New(), nil)
	require.NoError(t, err)
	refs, err := kit.Register(g)
	require.NoError(t, err)

	store, err := chatstore.New(t.TempDir(), nil)
	require.NoError(t, err)

	if cfg.Model == "" {
		cfg.Model = testutil.MockModelName
	}
	if cfg.MaxTurns == 0 {
		cfg.MaxTurns = 5
	}
	agent, err := New(g, store, refs, cfg, nil)
	require.NoError(t, err)

	return &fixture{agent: agent, store: store, mock: mock}
}

func userMsg(id, text string) message.Message {
	return message.Message{ID: id, Role: message.RoleUser, Parts: []message.Part{message.TextPart{Text: text}}}
}

func collectEvents(events *[]message.Event) EmitFunc {
	return func(ev message.Event) error {
		*events = append(*events, ev)
		return nil
	}
}

func TestSendStreamsTextResponse(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	chatID, err := f.store.Create(ctx)
	require.NoError(t, err)

	f.mock.AddResponse("hello", "Hi! What do you need to buy?")

	var events []message.Event
	require.NoError(t, f.agent.Send(ctx, chatID, userMsg("u1", "hello there"), collectEvents(&events)))

	require.NotEmpty(t, events)
	assert.Equal(t, message.EventStart, events[0].Kind)
	assert.Equal(t, message.EventFinish, events[len(events)-1].Kind)

	history, err := f.store.Load(ctx, chatID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, message.RoleUser, history[0].Role)
	assert.Equal(t, message.RoleAssistant, history[1].Role)
	assert.Equal(t, "Hi! What do you need to buy?", history[1].Text())
}

func TestSendDuplicateByID(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	chatID, err := f.store.Create(ctx)
	require.NoError(t, err)

	require.NoError(t, f.agent.Send(ctx, chatID, userMsg("u1", "first"), nil))
	err = f.agent.Send(ctx, chatID, userMsg("u1", "first"), nil)
	assert.ErrorIs(t, err, ErrDuplicate)

	history, err := f.store.Load(ctx, chatID)
	require.NoError(t, err)
	assert.Len(t, history, 2, "duplicate added nothing")
}

func TestSendDuplicateByText(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	chatID, err := f.store.Create(ctx)
	require.NoError(t, err)

	require.NoError(t, f.agent.Send(ctx, chatID, userMsg("u1", "Show me cables"), nil))

	// Same text, new id, but the earlier turn was already answered.
	err = f.agent.Send(ctx, chatID, userMsg("u2", "show me  CABLES"), nil)
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestSendSameTextUnansweredIsNotDuplicate(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	chatID, err := f.store.Create(ctx)
	require.NoError(t, err)

	// A user turn with no assistant reply after it, as after a crash.
	require.NoError(t, f.store.Save(ctx, chatID, []message.Message{userMsg("u1", "show me cables")}))

	err = f.agent.Send(ctx, chatID, userMsg("u2", "show me cables"), nil)
	assert.NoError(t, err)
}

func TestSendMissingChat(t *testing.T) {
	f := newFixture(t, Config{})
	err := f.agent.Send(context.Background(), "no-such-chat", userMsg("u1", "hi"), nil)
	assert.ErrorIs(t, err, chatstore.ErrNotFound)
}

func TestSendToolCallStreamsParts(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	chatID, err := f.store.Create(ctx)
	require.NoError(t, err)

	f.mock.AddToolResponse("cart", []*ai.ToolRequest{
		{Name: message.ToolViewCart, Input: map[string]any{}},
	}, "Your cart is empty.")

	var events []message.Event
	require.NoError(t, f.agent.Send(ctx, chatID, userMsg("u1", "what is in my cart"), collectEvents(&events)))

	var sawCall, sawResult bool
	for _, ev := range events {
		tp, ok := ev.Part.(message.ToolPart)
		if !ok {
			continue
		}
		require.Equal(t, message.ToolViewCart, tp.Tool)
		switch tp.State {
		case message.StateInputAvailable:
			sawCall = true
		case message.StateOutputAvailable:
			sawResult = true
			assert.NotEmpty(t, tp.Output)
		}
	}
	assert.True(t, sawCall, "tool call part streamed")
	assert.True(t, sawResult, "tool result part streamed")

	history, err := f.store.Load(ctx, chatID)
	require.NoError(t, err)
	require.Len(t, history, 2)

	var toolParts int
	for _, p := range history[1].Parts {
		if tp, ok := p.(message.ToolPart); ok {
			toolParts++
			assert.Equal(t, message.StateOutputAvailable, tp.State)
			assert.NotEmpty(t, tp.ToolCallID)
		}
	}
	assert.Equal(t, 1, toolParts, "one persisted part per tool call")
}

func TestSendRateLimited(t *testing.T) {
	f := newFixture(t, Config{RateLimit: rate.Limit(0.001), RateBurst: 1})
	ctx := context.Background()

	chatID, err := f.store.Create(ctx)
	require.NoError(t, err)

	require.NoError(t, f.agent.Send(ctx, chatID, userMsg("u1", "one"), nil))
	err = f.agent.Send(ctx, chatID, userMsg("u2", "two"), nil)
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestNewValidatesConfig(t *testing.T) {
	g := genkit.Init(context.Background())
	require.NotNil(t, g)
	store, err := chatstore.New(t.TempDir(), nil)
	require.NoError(t, err)

	_, err = New(g, store, nil, Config{Model: "", MaxTurns: 5}, nil)
	assert.Error(t, err)

	_, err = New(g, store, nil, Config{Model: "m", MaxTurns: 0}, nil)
	assert.Error(t, err)

	_, err = New(nil, store, nil, Config{Model: "m", MaxTurns: 1}, nil)
	assert.Error(t, err)
}

func TestAssemblerSnapshotIsACopy(t *testing.T) {
	asm := newAssembler("a1", nil, log.NewNop())
	asm.appendText("hello")
	asm.ToolCall(message.ToolViewCart, "call-1", nil)

	parts := asm.snapshot()
	require.Len(t, parts, 2)

	// Mutating the snapshot must not touch the assembler's state.
	parts[0] = message.TextPart{Text: "clobbered"}
	again := asm.snapshot()
	tp, ok := again[0].(message.TextPart)
	require.True(t, ok)
	assert.Equal(t, "hello", tp.Text)
}
