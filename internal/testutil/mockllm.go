// Package testutil provides deterministic test doubles for the
// assistant and API layers.
package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// MockModelName is the Genkit model name the mock registers under.
const MockModelName = "mock/test-model"

// MockLLM provides deterministic model responses for testing. It
// matches the last user message against registered patterns and
// returns the corresponding response, optionally requesting tools.
//
// Thread-safe for concurrent use.
type MockLLM struct {
	mu       sync.Mutex
	rules    []mockRule
	fallback string
	calls    []MockCall
}

type mockRule struct {
	pattern  string            // substring match, lowercased
	response string            // text response
	tools    []*ai.ToolRequest // tool calls to request, nil for text only
}

// MockCall records one call to the mock model.
type MockCall struct {
	UserMessage string
	Response    string
}

// NewMockLLM creates a mock with the given fallback response, used
// when no pattern matches.
func NewMockLLM(fallback string) *MockLLM {
	return &MockLLM{fallback: fallback}
}

// AddResponse registers a pattern-response pair. Patterns match
// case-insensitively as substrings; first match wins.
func (m *MockLLM) AddResponse(pattern, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, mockRule{pattern: strings.ToLower(pattern), response: response})
}

// AddToolResponse registers a pattern that triggers tool requests
// before the text response.
func (m *MockLLM) AddToolResponse(pattern string, tools []*ai.ToolRequest, textResponse string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, mockRule{pattern: strings.ToLower(pattern), response: textResponse, tools: tools})
}

// Calls returns a copy of all recorded calls.
func (m *MockLLM) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]MockCall, len(m.calls))
	copy(cp, m.calls)
	return cp
}

// RegisterModel registers the mock as a Genkit model.
func (m *MockLLM) RegisterModel(g *genkit.Genkit) ai.Model {
	return genkit.DefineModel(g, MockModelName, &ai.ModelOptions{
		Label: "Mock Test Model",
		Supports: &ai.ModelSupports{
			Multiturn:  true,
			Tools:      true,
			SystemRole: true,
		},
	}, m.generate)
}

func (m *MockLLM) generate(ctx context.Context, req *ai.ModelRequest, cb ai.ModelStreamCallback) (*ai.ModelResponse, error) {
	var userText string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == ai.RoleUser {
			userText = req.Messages[i].Text()
			break
		}
	}

	// Tool responses in the request mean the tool loop already ran;
	// finish with the matched rule's text instead of re-requesting.
	toolLoopDone := false
	for _, msg := range req.Messages {
		if msg.Role == ai.RoleTool {
			toolLoopDone = true
			break
		}
	}

	m.mu.Lock()
	var matched *mockRule
	lower := strings.ToLower(userText)
	for i := range m.rules {
		if strings.Contains(lower, m.rules[i].pattern) {
			matched = &m.rules[i]
			break
		}
	}
	responseText := m.fallback
	if matched != nil {
		responseText = matched.response
	}
	m.calls = append(m.calls, MockCall{UserMessage: userText, Response: responseText})
	m.mu.Unlock()

	var parts []*ai.Part
	if matched != nil && len(matched.tools) > 0 && !toolLoopDone {
		for _, tr := range matched.tools {
			parts = append(parts, &ai.Part{Kind: ai.PartToolRequest, ToolRequest: tr})
		}
	} else {
		if cb != nil {
			_ = cb(ctx, &ai.ModelResponseChunk{Content: []*ai.Part{ai.NewTextPart(responseText)}})
		}
		parts = append(parts, ai.NewTextPart(responseText))
	}

	return &ai.ModelResponse{
		Request: req,
		Message: &ai.Message{Role: ai.RoleModel, Content: parts},
	}, nil
}
