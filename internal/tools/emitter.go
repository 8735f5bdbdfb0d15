// Package tools registers the procurement tools the assistant can
// call: catalog search and registration, cart manipulation, payment
// and shipping management, and purchase finalization.
package tools

import (
	"context"
	"encoding/json"
)

// emitterKey uses an empty struct for a zero-allocation context key.
type emitterKey struct{}

// PartEmitter receives tool lifecycle events during a streamed
// response. Each call carries the tool call id so the consumer can
// address the same message part across states.
type PartEmitter interface {
	// ToolCall signals that a tool is about to run with the given
	// input. The part moves to input-available.
	ToolCall(tool, callID string, input json.RawMessage)

	// ToolResult signals successful completion. The part moves to
	// output-available. Business failures (success:false payloads)
	// still arrive here; the model reads them from the output.
	ToolResult(tool, callID string, output json.RawMessage)

	// ToolError signals a hard execution failure. The part moves to
	// output-error.
	ToolError(tool, callID, errText string)
}

// EmitterFromContext retrieves the PartEmitter, or nil when the call
// is not part of a streamed response.
func EmitterFromContext(ctx context.Context) PartEmitter {
	emitter, _ := ctx.Value(emitterKey{}).(PartEmitter)
	return emitter
}

// ContextWithEmitter binds a PartEmitter to the request context.
func ContextWithEmitter(ctx context.Context, emitter PartEmitter) context.Context {
	return context.WithValue(ctx, emitterKey{}, emitter)
}
