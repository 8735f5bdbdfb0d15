package message

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartRoundTrip(t *testing.T) {
	parts := []Part{
		TextPart{Text: "hello"},
		ReasoningPart{Text: "thinking about cables"},
		FilePart{MediaType: "image/png", URL: "data:image/png;base64,xyz", Filename: "shot.png"},
		ToolPart{
			Tool:       ToolAddToCart,
			ToolCallID: "call-1",
			State:      StateOutputAvailable,
			Input:      json.RawMessage(`{"productId":"1","quantity":2}`),
			Output:     json.RawMessage(`{"success":true}`),
		},
	}

	for _, p := range parts {
		data, err := MarshalPart(p)
		require.NoError(t, err)

		got, err := UnmarshalPart(data)
		require.NoError(t, err)
		assert.Equal(t, p.Type(), got.Type())
		assert.Equal(t, p, got)
	}
}

func TestToolPartTypeTag(t *testing.T) {
	p := ToolPart{Tool: ToolSearchProducts, ToolCallID: "c", State: StateInputAvailable}
	data, err := MarshalPart(p)
	require.NoError(t, err)

	var env map[string]any
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, "tool-searchProducts", env["type"])
}

func TestUnmarshalPartUnknownType(t *testing.T) {
	cases := []string{
		`{"type":"video","url":"x"}`,
		`{"type":"tool-doSomethingElse","toolCallId":"c","state":"input-available"}`,
		`{"type":"tool-","toolCallId":"c","state":"input-available"}`,
		`{"type":""}`,
	}
	for _, raw := range cases {
		_, err := UnmarshalPart([]byte(raw))
		assert.Error(t, err, raw)
	}
}

func TestUnmarshalToolPartInvalidState(t *testing.T) {
	_, err := UnmarshalPart([]byte(`{"type":"tool-viewCart","toolCallId":"c","state":"done"}`))
	assert.Error(t, err)
}

func TestMarshalToolPartUnknownTool(t *testing.T) {
	_, err := MarshalPart(ToolPart{Tool: "eraseDatabase", State: StateInputAvailable})
	assert.Error(t, err)
}

func TestToolStateCanAdvance(t *testing.T) {
	tests := []struct {
		from, to ToolState
		want     bool
	}{
		{StateInputStreaming, StateInputAvailable, true},
		{StateInputStreaming, StateOutputAvailable, true},
		{StateInputStreaming, StateOutputError, true},
		{StateInputAvailable, StateOutputAvailable, true},
		{StateInputAvailable, StateOutputError, true},
		{StateInputAvailable, StateInputStreaming, false},
		{StateOutputAvailable, StateOutputError, false},
		{StateOutputAvailable, StateInputStreaming, false},
		{StateOutputError, StateOutputAvailable, false},
		{StateInputStreaming, StateInputStreaming, false},
		{StateInputStreaming, ToolState("bogus"), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.from.CanAdvance(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestMessageRoundTrip(t *testing.T) {
	msg := Message{
		ID:   "msg-1",
		Role: RoleAssistant,
		Parts: []Part{
			TextPart{Text: "Added to your cart."},
			ToolPart{
				Tool:       ToolAddToCart,
				ToolCallID: "call-9",
				State:      StateOutputAvailable,
				Input:      json.RawMessage(`{"productId":"2","quantity":1}`),
				Output:     json.RawMessage(`{"success":true}`),
			},
		},
	}

	data, err := json.Marshal(msg)
	require.NoError(t, err)

	var got Message
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, msg, got)
}

func TestMessageUnmarshalRejectsUnknownPart(t *testing.T) {
	raw := `{"id":"m","role":"assistant","parts":[{"type":"text","text":"ok"},{"type":"sticker"}]}`
	var got Message
	err := json.Unmarshal([]byte(raw), &got)
	assert.Error(t, err)
}

func TestMessageText(t *testing.T) {
	msg := Message{Parts: []Part{
		TextPart{Text: "a"},
		ReasoningPart{Text: "skip"},
		TextPart{Text: "b"},
	}}
	assert.Equal(t, "ab", msg.Text())
}

func TestEventPayloadRoundTrip(t *testing.T) {
	events := []Event{
		StartEvent("m1"),
		PartEvent("m1", 0, TextPart{Text: "hi"}),
		PartEvent("m1", 1, ToolPart{Tool: ToolViewCart, ToolCallID: "c", State: StateInputStreaming}),
		FinishEvent("m1"),
		ErrorEvent("m1", "provider unavailable"),
	}

	for _, ev := range events {
		payload, err := ev.Payload()
		require.NoError(t, err)

		got, err := ParseEvent(ev.Kind, payload)
		require.NoError(t, err)
		assert.Equal(t, ev, got)
	}
}

func TestParseEventUnknownKind(t *testing.T) {
	_, err := ParseEvent("delta", []byte(`{"messageId":"m"}`))
	assert.Error(t, err)
}

func TestParseEventPartMissingIndex(t *testing.T) {
	_, err := ParseEvent(EventPart, []byte(`{"messageId":"m","part":{"type":"text","text":"x"}}`))
	assert.Error(t, err)
}
