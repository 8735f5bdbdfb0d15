package assistant

import (
	"encoding/json"
	"sync"

	"github.com/procureflow/procureflow/internal/log"
	"github.com/procureflow/procureflow/internal/message"
)

// assembler builds the assistant message part list while mirroring
// every change to the event stream. It implements tools.PartEmitter
// for tool lifecycle updates and receives text deltas from the model
// streaming callback.
//
// Emit failures (client gone) are logged once and then ignored so the
// message still assembles for persistence.
type assembler struct {
	mu        sync.Mutex
	messageID string
	parts     []message.Part
	callIndex map[string]int // tool call id -> part slot
	textIndex int            // open text part, -1 when none
	textTotal int

	emit       EmitFunc
	emitBroken bool
	logger     log.Logger
}

func newAssembler(messageID string, emit EmitFunc, logger log.Logger) *assembler {
	if emit == nil {
		emit = func(message.Event) error { return nil }
	}
	return &assembler{
		messageID: messageID,
		callIndex: make(map[string]int),
		textIndex: -1,
		emit:      emit,
		logger:    logger,
	}
}

func (a *assembler) start() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.send(message.StartEvent(a.messageID))
}

func (a *assembler) finish() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.send(message.FinishEvent(a.messageID))
}

func (a *assembler) fail(errText string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.send(message.ErrorEvent(a.messageID, errText))
}

// appendText extends the open text part, or opens a new one after a
// tool part closed the previous run.
func (a *assembler) appendText(delta string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.textIndex < 0 {
		a.textIndex = len(a.parts)
		a.parts = append(a.parts, message.TextPart{})
	}
	p := a.parts[a.textIndex].(message.TextPart)
	p.Text += delta
	a.parts[a.textIndex] = p
	a.textTotal += len(delta)

	a.send(message.PartEvent(a.messageID, a.textIndex, p))
}

func (a *assembler) textLen() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.textTotal
}

func (a *assembler) snapshot() []message.Part {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]message.Part, len(a.parts))
	copy(out, a.parts)
	return out
}

// ToolCall opens a tool part in input-available state.
func (a *assembler) ToolCall(tool, callID string, input json.RawMessage) {
	a.mu.Lock()
	defer a.mu.Unlock()

	idx := len(a.parts)
	p := message.ToolPart{Tool: tool, ToolCallID: callID, State: message.StateInputAvailable, Input: input}
	a.parts = append(a.parts, p)
	a.callIndex[callID] = idx
	a.textIndex = -1

	a.send(message.PartEvent(a.messageID, idx, p))
}

// ToolResult moves the call's part to output-available.
func (a *assembler) ToolResult(tool, callID string, output json.RawMessage) {
	a.updateTool(tool, callID, message.StateOutputAvailable, output, "")
}

// ToolError moves the call's part to output-error.
func (a *assembler) ToolError(tool, callID, errText string) {
	a.updateTool(tool, callID, message.StateOutputError, nil, errText)
}

func (a *assembler) updateTool(tool, callID string, state message.ToolState, output json.RawMessage, errText string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	idx, ok := a.callIndex[callID]
	if !ok {
		// Result without a preceding call, open a slot anyway.
		idx = len(a.parts)
		a.parts = append(a.parts, message.ToolPart{Tool: tool, ToolCallID: callID, State: state})
		a.callIndex[callID] = idx
		a.textIndex = -1
	}

	p := a.parts[idx].(message.ToolPart)
	if !p.State.CanAdvance(state) && p.State != state {
		return
	}
	p.State = state
	p.Output = output
	p.ErrorText = errText
	a.parts[idx] = p

	a.send(message.PartEvent(a.messageID, idx, p))
}

func (a *assembler) send(ev message.Event) {
	if a.emitBroken {
		return
	}
	if err := a.emit(ev); err != nil {
		a.emitBroken = true
		if a.logger != nil {
			a.logger.Debug("event stream closed, continuing assembly", "message_id", a.messageID, "error", err)
		}
	}
}
