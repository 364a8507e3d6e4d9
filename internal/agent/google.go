package agent

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"caseflow/internal/domain"
)

// GoogleProvider invokes the Gemini API through google.golang.org/genai.
type GoogleProvider struct {
	client  *genai.Client
	modelID string
}

func NewGoogleProvider(ctx context.Context, apiKey, modelID string) (*GoogleProvider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("google: creating client: %w", err)
	}
	return &GoogleProvider{client: client, modelID: modelID}, nil
}

func (p *GoogleProvider) SupportsTools() bool { return true }

func (p *GoogleProvider) Invoke(ctx context.Context, req Request) (*Response, error) {
	contents, err := googleContents(req.Messages)
	if err != nil {
		return nil, fmt.Errorf("google: building contents: %w", err)
	}

	config := &genai.GenerateContentConfig{}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.Thinking {
		config.ThinkingConfig = &genai.ThinkingConfig{IncludeThoughts: true}
	}
	if len(req.Tools) > 0 {
		config.Tools = googleTools(req.Tools)
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.modelID, contents, config)
	if err != nil {
		return nil, fmt.Errorf("google: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("google: no candidates in response")
	}

	out := &Response{Model: p.modelID}
	if resp.UsageMetadata != nil {
		out.TokensInput = int(resp.UsageMetadata.PromptTokenCount)
		out.TokensOutput = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			out.Text += part.Text
		}
		if part.FunctionCall != nil {
			out.ToolCalls = append(out.ToolCalls, domain.ToolCall{
				ID:    part.FunctionCall.ID,
				Name:  part.FunctionCall.Name,
				Input: part.FunctionCall.Args,
			})
		}
	}
	return out, nil
}

func googleContents(messages []domain.Message) ([]*genai.Content, error) {
	out := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		switch msg := m.(type) {
		case *domain.UserContentMsg:
			out = append(out, genai.NewContentFromText(msg.Text, genai.RoleUser))
		case *domain.UserInteractiveReplyMsg:
			out = append(out, genai.NewContentFromText(msg.Choice.Title, genai.RoleUser))
		case *domain.ServerTextMsg:
			out = append(out, genai.NewContentFromText(msg.Text, genai.RoleUser))
		case *domain.AssistantMsg:
			out = append(out, genai.NewContentFromText(msg.Text, genai.RoleModel))
		case *domain.ToolResultsMsg:
			for _, tr := range msg.ToolResults {
				content := tr.Content
				if tr.Error != "" {
					content = tr.Error
				}
				out = append(out, genai.NewContentFromText(content, genai.RoleUser))
			}
		default:
			return nil, fmt.Errorf("google: unhandled message type %T", m)
		}
	}
	return out, nil
}

func googleTools(tools []ToolSpec) []*genai.Tool {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}
