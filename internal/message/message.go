// Package message defines the chat message model shared by the
// assistant, the stream reducer, and chat persistence.
//
// A message is an ordered list of parts. Parts form a closed tagged
// union: text, file, reasoning, or one tool part per assistant tool.
// Decoding an unknown part type is an error — there is no silent
// default branch.
package message

import (
	"encoding/json"
	"fmt"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Part type tags as they appear on the wire. Tool parts use the
// "tool-" prefix followed by the tool name.
const (
	TypeText      = "text"
	TypeFile      = "file"
	TypeReasoning = "reasoning"

	toolTypePrefix = "tool-"
)

// Tool names the assistant may call. This is the complete set; a tool
// part referencing any other name fails validation.
const (
	ToolSearchProducts        = "searchProducts"
	ToolRegisterProduct       = "registerProduct"
	ToolAddToCart             = "addToCart"
	ToolRemoveFromCart        = "removeFromCart"
	ToolViewCart              = "viewCart"
	ToolAddPaymentMethod      = "addPaymentMethod"
	ToolChangePaymentMethod   = "changePaymentMethod"
	ToolRemovePaymentMethod   = "removePaymentMethod"
	ToolAddShippingAddress    = "addShippingAddress"
	ToolChangeShippingAddress = "changeShippingAddress"
	ToolRemoveShippingAddress = "removeShippingAddress"
	ToolFinalizePurchase      = "finalizePurchase"
)

// toolNames is the closed set of valid tool names.
var toolNames = map[string]struct{}{
	ToolSearchProducts:        {},
	ToolRegisterProduct:       {},
	ToolAddToCart:             {},
	ToolRemoveFromCart:        {},
	ToolViewCart:              {},
	ToolAddPaymentMethod:      {},
	ToolChangePaymentMethod:   {},
	ToolRemovePaymentMethod:   {},
	ToolAddShippingAddress:    {},
	ToolChangeShippingAddress: {},
	ToolRemoveShippingAddress: {},
	ToolFinalizePurchase:      {},
}

// ToolNames returns all valid tool names.
func ToolNames() []string {
	names := make([]string, 0, len(toolNames))
	for name := range toolNames {
		names = append(names, name)
	}
	return names
}

// IsToolName reports whether name is a known tool.
func IsToolName(name string) bool {
	_, ok := toolNames[name]
	return ok
}

// ToolState is the tool-part lifecycle state.
type ToolState string

// Tool part states, in order. A part only moves forward.
const (
	StateInputStreaming  ToolState = "input-streaming"
	StateInputAvailable  ToolState = "input-available"
	StateOutputAvailable ToolState = "output-available"
	StateOutputError     ToolState = "output-error"
)

// rank orders states for CanAdvance. Both terminal states share a rank.
func (s ToolState) rank() int {
	switch s {
	case StateInputStreaming:
		return 0
	case StateInputAvailable:
		return 1
	case StateOutputAvailable, StateOutputError:
		return 2
	default:
		return -1
	}
}

// Valid reports whether s is a known state.
func (s ToolState) Valid() bool {
	return s.rank() >= 0
}

// CanAdvance reports whether a part in state s may transition to next.
// Transitions never move backward and terminal states never change.
func (s ToolState) CanAdvance(next ToolState) bool {
	if !s.Valid() || !next.Valid() {
		return false
	}
	if s.rank() == 2 {
		return false
	}
	return next.rank() > s.rank()
}

// Part is one atomic unit of a chat message.
//
// The concrete types are TextPart, FilePart, ReasoningPart, and
// ToolPart. The interface is sealed: no implementations outside this
// package.
type Part interface {
	// Type returns the wire tag ("text", "file", "reasoning",
	// or "tool-<name>").
	Type() string

	isPart()
}

// TextPart is plain message text.
type TextPart struct {
	Text string `json:"text"`
}

func (TextPart) Type() string { return TypeText }
func (TextPart) isPart()      {}

// FilePart is an attached file reference.
type FilePart struct {
	MediaType string `json:"mediaType,omitempty"`
	URL       string `json:"url"`
	Filename  string `json:"filename,omitempty"`
}

func (FilePart) Type() string { return TypeFile }
func (FilePart) isPart()      {}

// ReasoningPart is assistant-only reasoning text.
type ReasoningPart struct {
	Text string `json:"text"`
}

func (ReasoningPart) Type() string { return TypeReasoning }
func (ReasoningPart) isPart()      {}

// ToolPart is a tool invocation and its streamed outcome.
type ToolPart struct {
	Tool       string          `json:"-"` // encoded in the type tag
	ToolCallID string          `json:"toolCallId"`
	State      ToolState       `json:"state"`
	Input      json.RawMessage `json:"input,omitempty"`
	Output     json.RawMessage `json:"output,omitempty"`
	ErrorText  string          `json:"errorText,omitempty"`
}

func (p ToolPart) Type() string { return toolTypePrefix + p.Tool }
func (ToolPart) isPart()        {}

// Message is one chat turn. Parts accumulate over the course of a
// stream; ID is assigned once and stable.
type Message struct {
	ID    string `json:"id"`
	Role  string `json:"role"`
	Parts []Part `json:"parts"`
}

// Text concatenates the message's text parts.
func (m Message) Text() string {
	var out string
	for _, p := range m.Parts {
		if tp, ok := p.(TextPart); ok {
			out += tp.Text
		}
	}
	return out
}

// partEnvelope carries the type tag alongside the part payload.
type partEnvelope struct {
	Type string `json:"type"`

	// text / reasoning
	Text string `json:"text,omitempty"`

	// file
	MediaType string `json:"mediaType,omitempty"`
	URL       string `json:"url,omitempty"`
	Filename  string `json:"filename,omitempty"`

	// tool
	ToolCallID string          `json:"toolCallId,omitempty"`
	State      ToolState       `json:"state,omitempty"`
	Input      json.RawMessage `json:"input,omitempty"`
	Output     json.RawMessage `json:"output,omitempty"`
	ErrorText  string          `json:"errorText,omitempty"`
}

// MarshalPart encodes a part with its type tag.
func MarshalPart(p Part) ([]byte, error) {
	switch v := p.(type) {
	case TextPart:
		return json.Marshal(partEnvelope{Type: TypeText, Text: v.Text})
	case ReasoningPart:
		return json.Marshal(partEnvelope{Type: TypeReasoning, Text: v.Text})
	case FilePart:
		return json.Marshal(partEnvelope{
			Type: TypeFile, MediaType: v.MediaType, URL: v.URL, Filename: v.Filename,
		})
	case ToolPart:
		if !IsToolName(v.Tool) {
			return nil, fmt.Errorf("unknown tool name %q", v.Tool)
		}
		return json.Marshal(partEnvelope{
			Type:       v.Type(),
			ToolCallID: v.ToolCallID,
			State:      v.State,
			Input:      v.Input,
			Output:     v.Output,
			ErrorText:  v.ErrorText,
		})
	default:
		return nil, fmt.Errorf("unknown part type %T", p)
	}
}

// UnmarshalPart decodes a tagged part. Unknown type tags are an error.
func UnmarshalPart(data []byte) (Part, error) {
	var env partEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decoding part: %w", err)
	}

	switch env.Type {
	case TypeText:
		return TextPart{Text: env.Text}, nil
	case TypeReasoning:
		return ReasoningPart{Text: env.Text}, nil
	case TypeFile:
		return FilePart{MediaType: env.MediaType, URL: env.URL, Filename: env.Filename}, nil
	default:
		name, ok := cutToolType(env.Type)
		if !ok {
			return nil, fmt.Errorf("unknown part type %q", env.Type)
		}
		if !env.State.Valid() {
			return nil, fmt.Errorf("tool part %q: invalid state %q", name, env.State)
		}
		return ToolPart{
			Tool:       name,
			ToolCallID: env.ToolCallID,
			State:      env.State,
			Input:      env.Input,
			Output:     env.Output,
			ErrorText:  env.ErrorText,
		}, nil
	}
}

// cutToolType extracts and validates the tool name from a "tool-<name>" tag.
func cutToolType(typeTag string) (string, bool) {
	if len(typeTag) <= len(toolTypePrefix) || typeTag[:len(toolTypePrefix)] != toolTypePrefix {
		return "", false
	}
	name := typeTag[len(toolTypePrefix):]
	return name, IsToolName(name)
}

// MarshalJSON encodes the message with tagged parts.
func (m Message) MarshalJSON() ([]byte, error) {
	parts := make([]json.RawMessage, len(m.Parts))
	for i, p := range m.Parts {
		data, err := MarshalPart(p)
		if err != nil {
			return nil, fmt.Errorf("message %s part %d: %w", m.ID, i, err)
		}
		parts[i] = data
	}
	return json.Marshal(struct {
		ID    string            `json:"id"`
		Role  string            `json:"role"`
		Parts []json.RawMessage `json:"parts"`
	}{ID: m.ID, Role: m.Role, Parts: parts})
}

// UnmarshalJSON decodes the message, rejecting unknown part types.
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID    string            `json:"id"`
		Role  string            `json:"role"`
		Parts []json.RawMessage `json:"parts"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decoding message: %w", err)
	}

	parts := make([]Part, len(raw.Parts))
	for i, rp := range raw.Parts {
		p, err := UnmarshalPart(rp)
		if err != nil {
			return fmt.Errorf("message %s part %d: %w", raw.ID, i, err)
		}
		parts[i] = p
	}

	m.ID = raw.ID
	m.Role = raw.Role
	m.Parts = parts
	return nil
}
