// Package assistant runs the procurement chat agent: it takes a user
// message, streams the model's response as message events, and
// persists the finished conversation.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/procureflow/procureflow/internal/chatstore"
	"github.com/procureflow/procureflow/internal/log"
	"github.com/procureflow/procureflow/internal/message"
	"github.com/procureflow/procureflow/internal/tools"
)

// Sentinel errors for the HTTP layer to map onto status codes.
var (
	// ErrDuplicate means this user message was already processed;
	// the caller should not start a second generation.
	ErrDuplicate = errors.New("duplicate message")

	// ErrRateLimited means the model call budget is exhausted.
	ErrRateLimited = errors.New("rate limited")
)

// SystemPrompt instructs the model on its role and tool use.
const SystemPrompt = `You are a procurement assistant for an internal company storefront.
Help users find products, register new products, manage their shopping cart,
set payment and shipping details, and finalize purchases.

Always use the provided tools instead of guessing:
- searchProducts to look up catalog items before recommending anything
- addToCart / removeFromCart / viewCart for any cart change the user asks for
- registerProduct when the user wants to list a new product
- finalizePurchase only after the user explicitly confirms checkout

Keep answers short and factual. Quote product names, prices and approval
status exactly as the tools return them.`

// Config holds the agent settings.
type Config struct {
	// Model is the fully qualified Genkit model name,
	// e.g. "openai/gpt-5-nano".
	Model string

	// MaxTurns bounds the tool-call loop per request.
	MaxTurns int

	// RateLimit and RateBurst bound model calls per second.
	// A zero RateLimit disables limiting.
	RateLimit rate.Limit
	RateBurst int
}

func (c Config) validate() error {
	if c.Model == "" {
		return fmt.Errorf("model name is required")
	}
	if c.MaxTurns < 1 {
		return fmt.Errorf("max turns must be at least 1, got %d", c.MaxTurns)
	}
	return nil
}

// Agent generates assistant responses over persisted conversations.
type Agent struct {
	g       *genkit.Genkit
	store   *chatstore.Store
	tools   []ai.ToolRef
	cfg     Config
	limiter *rate.Limiter
	logger  log.Logger
}

// New creates an Agent. The tool refs come from tools.Kit.Register.
func New(g *genkit.Genkit, store *chatstore.Store, toolRefs []ai.Tool, cfg Config, logger log.Logger) (*Agent, error) {
	if g == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}
	if store == nil {
		return nil, fmt.Errorf("chat store is required")
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = log.NewNop()
	}

	refs := make([]ai.ToolRef, len(toolRefs))
	for i, t := range toolRefs {
		refs[i] = t
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(cfg.RateLimit, burst)
	}

	return &Agent{g: g, store: store, tools: refs, cfg: cfg, limiter: limiter, logger: logger}, nil
}

// EmitFunc receives stream events as they are produced. Returning an
// error stops event delivery but not generation or persistence.
type EmitFunc func(message.Event) error

// Send processes one user message on the given chat: it loads history,
// rejects duplicates, streams the assistant response through emit, and
// persists the full conversation on completion.
//
// Generation and persistence outlive the client: callers pass a
// context that is not canceled by client disconnect.
func (a *Agent) Send(ctx context.Context, chatID string, userMsg message.Message, emit EmitFunc) error {
	if a.limiter != nil && !a.limiter.Allow() {
		return ErrRateLimited
	}
	if userMsg.ID == "" {
		userMsg.ID = uuid.NewString()
	}
	userMsg.Role = message.RoleUser

	history, err := a.store.Load(ctx, chatID)
	if err != nil {
		return fmt.Errorf("loading chat %s: %w", chatID, err)
	}
	if isDuplicate(history, userMsg) {
		a.logger.InfoContext(ctx, "duplicate message ignored", "chat_id", chatID, "message_id", userMsg.ID)
		return ErrDuplicate
	}

	// Persist the user turn immediately so it survives a failed
	// generation.
	history = append(history, userMsg)
	if err := a.store.Save(ctx, chatID, history); err != nil {
		return fmt.Errorf("saving user message: %w", err)
	}

	assistantID := uuid.NewString()
	asm := newAssembler(assistantID, emit, a.logger)
	asm.start()

	genCtx := tools.ContextWithEmitter(ctx, asm)
	resp, err := genkit.Generate(genCtx, a.g,
		ai.WithModelName(a.cfg.Model),
		ai.WithSystem(SystemPrompt),
		ai.WithMessagesFn(func(context.Context, any) ([]*ai.Message, error) {
			return toModelMessages(history), nil
		}),
		ai.WithTools(a.tools...),
		ai.WithMaxTurns(a.cfg.MaxTurns),
		ai.WithStreaming(func(_ context.Context, chunk *ai.ModelResponseChunk) error {
			if chunk == nil {
				return nil
			}
			for _, part := range chunk.Content {
				if part.IsText() && part.Text != "" {
					asm.appendText(part.Text)
				}
			}
			return nil
		}),
	)
	if err != nil {
		asm.fail(err.Error())
		a.logger.ErrorContext(ctx, "generation failed", "chat_id", chatID, "error", err)
		return fmt.Errorf("generating response: %w", err)
	}

	// Some providers return the final text without streaming it.
	if asm.textLen() == 0 && resp.Text() != "" {
		asm.appendText(resp.Text())
	}
	asm.finish()

	assistantMsg := message.Message{ID: assistantID, Role: message.RoleAssistant, Parts: asm.snapshot()}
	history = append(history, assistantMsg)
	if err := a.store.Save(ctx, chatID, history); err != nil {
		a.logger.ErrorContext(ctx, "saving assistant message failed", "chat_id", chatID, "error", err)
		return fmt.Errorf("saving assistant message: %w", err)
	}
	return nil
}

// isDuplicate applies the two duplicate-submission guards: an id
// already in history, or the same normalized text as a user turn that
// already has an assistant reply after it.
func isDuplicate(history []message.Message, userMsg message.Message) bool {
	norm := normalizeText(userMsg.Text())
	for i, m := range history {
		if m.ID == userMsg.ID {
			return true
		}
		if m.Role != message.RoleUser || norm == "" || normalizeText(m.Text()) != norm {
			continue
		}
		for _, later := range history[i+1:] {
			if later.Role == message.RoleAssistant {
				return true
			}
		}
	}
	return false
}

func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// toModelMessages converts persisted history to model messages. Text
// parts carry the conversation; tool and file parts are elided since
// their outcomes are restated in the surrounding text.
func toModelMessages(history []message.Message) []*ai.Message {
	out := make([]*ai.Message, 0, len(history))
	for _, m := range history {
		text := m.Text()
		if text == "" {
			continue
		}
		switch m.Role {
		case message.RoleUser:
			out = append(out, ai.NewUserMessage(ai.NewTextPart(text)))
		case message.RoleAssistant:
			out = append(out, ai.NewModelMessage(ai.NewTextPart(text)))
		}
	}
	return out
}
