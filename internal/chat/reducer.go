// Package chat implements the stream reducer: it folds message events
// into an ordered message list and fires cart side effects exactly
// once per tool call.
package chat

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/procureflow/procureflow/internal/catalog"
	"github.com/procureflow/procureflow/internal/message"
)

// Status is the reducer's submission lifecycle.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusSubmitted Status = "submitted"
	StatusStreaming Status = "streaming"
	StatusError     Status = "error"
)

// CartEffects receives the side effects of completed tool calls.
// Effects are invoked with the reducer lock held, so implementations
// must return promptly and must not call back into the reducer.
type CartEffects interface {
	// AddToCart is invoked at most once per tool call id, when an
	// addToCart part on a live message reaches output-available
	// with success true.
	AddToCart(product catalog.Product, quantity int)
}

// NopEffects discards all effects.
type NopEffects struct{}

func (NopEffects) AddToCart(catalog.Product, int) {}

// addToCartOutput is the slice of the tool output the effect needs.
type addToCartOutput struct {
	Success  bool            `json:"success"`
	Quantity int             `json:"quantity"`
	Product  catalog.Product `json:"product"`
}

// Reducer folds stream events into messages. Messages loaded before
// the first event (history) are marked stale: their tool parts render
// but never re-fire effects.
type Reducer struct {
	mu sync.Mutex

	status   Status
	messages []message.Message
	index    map[string]int // message id -> position in messages

	stale   map[string]struct{} // message ids present at mount
	applied map[string]struct{} // tool call ids whose effect has fired

	effects CartEffects
}

// NewReducer builds a reducer over the given history. All history
// messages are stale.
func NewReducer(history []message.Message, effects CartEffects) *Reducer {
	if effects == nil {
		effects = NopEffects{}
	}
	r := &Reducer{
		status:  StatusIdle,
		index:   make(map[string]int),
		stale:   make(map[string]struct{}),
		applied: make(map[string]struct{}),
		effects: effects,
	}
	for _, m := range history {
		r.index[m.ID] = len(r.messages)
		r.messages = append(r.messages, m)
		r.stale[m.ID] = struct{}{}
	}
	return r
}

// Status returns the current submission status.
func (r *Reducer) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Messages returns a snapshot of the message list.
func (r *Reducer) Messages() []message.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]message.Message, len(r.messages))
	copy(out, r.messages)
	return out
}

// Live reports whether the message belongs to the current session
// rather than loaded history.
func (r *Reducer) Live(messageID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, stale := r.stale[messageID]
	return !stale
}

// Submit records a user message and moves the reducer to submitted.
func (r *Reducer) Submit(m message.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upsertLocked(m)
	r.status = StatusSubmitted
}

// Apply folds one stream event. Events for unknown message ids on
// part/finish/error create or close messages defensively rather than
// failing: the stream is the source of truth.
func (r *Reducer) Apply(ev message.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch ev.Kind {
	case message.EventStart:
		role := ev.Role
		if role == "" {
			role = message.RoleAssistant
		}
		r.upsertLocked(message.Message{ID: ev.MessageID, Role: role})
		r.status = StatusStreaming

	case message.EventPart:
		pos, ok := r.index[ev.MessageID]
		if !ok {
			r.upsertLocked(message.Message{ID: ev.MessageID, Role: message.RoleAssistant})
			pos = r.index[ev.MessageID]
		}
		if err := r.setPartLocked(pos, ev.Index, ev.Part); err != nil {
			return err
		}
		r.status = StatusStreaming
		r.fireEffectsLocked(ev.MessageID, ev.Part)

	case message.EventFinish:
		r.status = StatusIdle

	case message.EventError:
		r.status = StatusError

	default:
		return fmt.Errorf("unknown event kind %q", ev.Kind)
	}
	return nil
}

// Fail moves the reducer to error outside of the event stream, for
// transport failures.
func (r *Reducer) Fail() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = StatusError
}

func (r *Reducer) upsertLocked(m message.Message) {
	if pos, ok := r.index[m.ID]; ok {
		r.messages[pos] = m
		return
	}
	r.index[m.ID] = len(r.messages)
	r.messages = append(r.messages, m)
}

// setPartLocked replaces the part slot, growing the list as needed.
// Tool parts never regress: a replay of an earlier state is dropped.
func (r *Reducer) setPartLocked(pos, idx int, p message.Part) error {
	if idx < 0 {
		return fmt.Errorf("negative part index %d", idx)
	}
	m := &r.messages[pos]
	for len(m.Parts) <= idx {
		m.Parts = append(m.Parts, nil)
	}

	if prev, ok := m.Parts[idx].(message.ToolPart); ok {
		next, isTool := p.(message.ToolPart)
		if isTool && prev.State != next.State && !prev.State.CanAdvance(next.State) {
			return nil
		}
	}
	m.Parts[idx] = p
	return nil
}

// fireEffectsLocked applies the cart effect for a completed addToCart
// call, at most once per tool call id and only on live messages.
func (r *Reducer) fireEffectsLocked(messageID string, p message.Part) {
	tp, ok := p.(message.ToolPart)
	if !ok || tp.Tool != message.ToolAddToCart {
		return
	}
	if tp.State != message.StateOutputAvailable || tp.ToolCallID == "" {
		return
	}
	if _, stale := r.stale[messageID]; stale {
		return
	}
	if _, done := r.applied[tp.ToolCallID]; done {
		return
	}
	r.applied[tp.ToolCallID] = struct{}{}

	var out addToCartOutput
	if err := json.Unmarshal(tp.Output, &out); err != nil || !out.Success {
		return
	}
	qty := out.Quantity
	if qty < 1 {
		qty = 1
	}
	r.effects.AddToCart(out.Product, qty)
}
