package agent

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"caseflow/internal/domain"
)

// AnthropicProvider invokes the Anthropic Messages API.
type AnthropicProvider struct {
	client  *anthropic.Client
	modelID string
}

func NewAnthropicProvider(apiKey, modelID string) *AnthropicProvider {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicProvider{client: &client, modelID: modelID}
}

func (p *AnthropicProvider) SupportsTools() bool { return true }

func (p *AnthropicProvider) Invoke(ctx context.Context, req Request) (*Response, error) {
	messages, err := anthropicMessages(req.Messages)
	if err != nil {
		return nil, fmt.Errorf("anthropic: building messages: %w", err)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.modelID),
		Messages:  messages,
		MaxTokens: int64(maxTokensOrDefault(req.MaxTokens)),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if req.Thinking {
		params.Thinking = anthropic.ThinkingConfigParamOfEnabled(2048)
	}
	if len(req.Tools) > 0 {
		params.Tools = anthropicTools(req.Tools)
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}

	resp := &Response{
		Model:        string(msg.Model),
		TokensInput:  int(msg.Usage.InputTokens),
		TokensOutput: int(msg.Usage.OutputTokens),
	}
	for _, block := range msg.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			resp.Text += variant.Text
		case anthropic.ToolUseBlock:
			input, ok := variant.Input.(map[string]any)
			if !ok {
				input = map[string]any{}
			}
			resp.ToolCalls = append(resp.ToolCalls, domain.ToolCall{
				ID:    variant.ID,
				Name:  variant.Name,
				Input: input,
			})
		}
	}
	return resp, nil
}

func anthropicMessages(messages []domain.Message) ([]anthropic.MessageParam, error) {
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		switch msg := m.(type) {
		case *domain.UserContentMsg:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Text)))
		case *domain.UserInteractiveReplyMsg:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Choice.Title)))
		case *domain.ServerTextMsg:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Text)))
		case *domain.AssistantMsg:
			blocks := make([]anthropic.ContentBlockParamUnion, 0, 1+len(msg.ToolCalls))
			if msg.Text != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Text))
			}
			for _, tc := range msg.ToolCalls {
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, tc.Input, tc.Name))
			}
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		case *domain.ToolResultsMsg:
			blocks := make([]anthropic.ContentBlockParamUnion, 0, len(msg.ToolResults))
			for _, tr := range msg.ToolResults {
				content := tr.Content
				if tr.Error != "" {
					content = tr.Error
				}
				blocks = append(blocks, anthropic.NewToolResultBlock(tr.ID, content, tr.Error != ""))
			}
			out = append(out, anthropic.NewUserMessage(blocks...))
		default:
			return nil, fmt.Errorf("anthropic: unhandled message type %T", m)
		}
	}
	return out, nil
}

func anthropicTools(tools []ToolSpec) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		out = append(out, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: t.InputSchema["properties"],
				},
			},
		})
	}
	return out
}

func maxTokensOrDefault(n int) int {
	if n <= 0 {
		return 4096
	}
	return n
}
