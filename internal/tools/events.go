package tools

import (
	"encoding/json"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"
)

// WithEvents wraps a typed tool handler to emit lifecycle events.
// Each invocation gets a fresh tool call id, so repeated calls to the
// same tool within one response stay distinct parts.
//
// Without an emitter in context the wrapper is a pass-through.
func WithEvents[In, Out any](name string, fn func(*ai.ToolContext, In) (Out, error)) func(*ai.ToolContext, In) (Out, error) {
	return func(ctx *ai.ToolContext, input In) (Out, error) {
		emitter := EmitterFromContext(ctx.Context)
		if emitter == nil {
			return fn(ctx, input)
		}

		callID := uuid.NewString()
		inputJSON, err := json.Marshal(input)
		if err != nil {
			inputJSON = json.RawMessage("{}")
		}
		emitter.ToolCall(name, callID, inputJSON)

		result, err := fn(ctx, input)
		if err != nil {
			emitter.ToolError(name, callID, err.Error())
			return result, err
		}

		outputJSON, merr := json.Marshal(result)
		if merr != nil {
			emitter.ToolError(name, callID, merr.Error())
			return result, err
		}
		emitter.ToolResult(name, callID, outputJSON)
		return result, nil
	}
}
