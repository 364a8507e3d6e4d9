package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"caseflow/internal/domain"
)

// OpenAIProvider invokes OpenAI's Chat Completions API, or any
// OpenAI-compatible endpoint (OpenRouter, self-hosted gateways) reached
// through a custom base URL.
type OpenAIProvider struct {
	client  *openai.Client
	modelID string
}

func NewOpenAIProvider(apiKey, baseURL, modelID string) *OpenAIProvider {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)
	return &OpenAIProvider{client: &client, modelID: modelID}
}

func (p *OpenAIProvider) SupportsTools() bool { return true }

func (p *OpenAIProvider) Invoke(ctx context.Context, req Request) (*Response, error) {
	messages, err := openaiMessages(req)
	if err != nil {
		return nil, fmt.Errorf("openai: building messages: %w", err)
	}

	params := openai.ChatCompletionNewParams{
		Model:               p.modelID,
		Messages:            messages,
		MaxCompletionTokens: openai.Int(int64(maxTokensOrDefault(req.MaxTokens))),
	}
	if req.Thinking {
		params.ReasoningEffort = openai.ReasoningEffortMedium
	}
	if len(req.Tools) > 0 {
		params.Tools = openaiTools(req.Tools)
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai: no choices in response")
	}

	choice := resp.Choices[0]
	out := &Response{
		Text:         choice.Message.Content,
		Model:        resp.Model,
		TokensInput:  int(resp.Usage.PromptTokens),
		TokensOutput: int(resp.Usage.CompletionTokens),
	}
	for _, tc := range choice.Message.ToolCalls {
		var input map[string]any
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &input); err != nil {
			input = map[string]any{}
		}
		out.ToolCalls = append(out.ToolCalls, domain.ToolCall{
			ID:    tc.ID,
			Name:  tc.Function.Name,
			Input: input,
		})
	}
	return out, nil
}

func openaiMessages(req Request) ([]openai.ChatCompletionMessageParamUnion, error) {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.System != "" {
		out = append(out, openai.SystemMessage(req.System))
	}
	for _, m := range req.Messages {
		switch msg := m.(type) {
		case *domain.UserContentMsg:
			out = append(out, openai.UserMessage(msg.Text))
		case *domain.UserInteractiveReplyMsg:
			out = append(out, openai.UserMessage(msg.Choice.Title))
		case *domain.ServerTextMsg:
			out = append(out, openai.UserMessage(msg.Text))
		case *domain.AssistantMsg:
			if len(msg.ToolCalls) == 0 {
				out = append(out, openai.AssistantMessage(msg.Text))
				continue
			}
			assistant := openai.ChatCompletionAssistantMessageParam{}
			if msg.Text != "" {
				assistant.Content = openai.ChatCompletionAssistantMessageParamContentUnion{
					OfString: openai.String(msg.Text),
				}
			}
			for _, tc := range msg.ToolCalls {
				arguments, err := json.Marshal(tc.Input)
				if err != nil {
					return nil, fmt.Errorf("openai: marshaling tool call arguments: %w", err)
				}
				assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallParam{
					ID: tc.ID,
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      tc.Name,
						Arguments: string(arguments),
					},
				})
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant})
		case *domain.ToolResultsMsg:
			for _, tr := range msg.ToolResults {
				content := tr.Content
				if tr.Error != "" {
					content = tr.Error
				}
				out = append(out, openai.ToolMessage(content, tr.ID))
			}
		default:
			return nil, fmt.Errorf("openai: unhandled message type %T", m)
		}
	}
	return out, nil
}

func openaiTools(tools []ToolSpec) []openai.ChatCompletionToolParam {
	out := make([]openai.ChatCompletionToolParam, 0, len(tools))
	for _, t := range tools {
		out = append(out, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        t.Name,
				Description: openai.String(t.Description),
				Parameters:  t.InputSchema,
			},
		})
	}
	return out
}
