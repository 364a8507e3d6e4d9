package casehandler

import (
	"context"
	"fmt"

	"caseflow/internal/agent"
	"caseflow/internal/domain"
)

// DefaultHooks wires an Agent directly into ProcessMessage/GenerateResponse
// so the repository is runnable end-to-end without a caller supplying a
// business state machine. ProcessMessage always requests a response pass
// for inbound user content; GenerateResponse runs one agent turn, persists
// the reply, sends its text if it has any, and stops the loop (no tool
// executor is wired here, so tool calls in a reply are persisted but not
// executed or looped on).
type DefaultHooks struct {
	Agent     *agent.Agent
	MaxTokens int
}

func (d *DefaultHooks) ProcessMessage(_ context.Context, _ *CaseHandler, msg domain.Message) (bool, error) {
	switch msg.(type) {
	case *domain.UserContentMsg, *domain.UserInteractiveReplyMsg:
		return true, nil
	default:
		return false, nil
	}
}

func (d *DefaultHooks) GenerateResponse(ctx context.Context, h *CaseHandler, maxTokens int) (bool, error) {
	if maxTokens <= 0 {
		maxTokens = d.MaxTokens
	}

	history, err := h.ContextBuild(ctx, true)
	if err != nil {
		return false, fmt.Errorf("building context: %w", err)
	}

	reply, err := d.Agent.GetResponse(ctx, history, h.CaseID())
	if err != nil {
		return false, fmt.Errorf("generating response: %w", err)
	}

	if reply.Text == "" && len(reply.ToolCalls) == 0 {
		return false, nil
	}

	if err := h.ContextUpdate(ctx, reply); err != nil {
		return false, fmt.Errorf("persisting assistant response: %w", err)
	}

	if reply.Text != "" {
		if err := h.SendText(ctx, reply.Text); err != nil {
			return false, fmt.Errorf("sending response: %w", err)
		}
	}

	return false, nil
}

// AsHooks returns d's methods bound as the CaseHandler hook function types.
func (d *DefaultHooks) AsHooks() (ProcessMessageFunc, GenerateResponseFunc) {
	return d.ProcessMessage, d.GenerateResponse
}
