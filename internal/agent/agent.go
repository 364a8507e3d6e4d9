// Package agent assembles provider requests from conversational context
// and normalizes whatever a concrete LLM API returns into the domain's
// AssistantMsg shape, regardless of which provider answered.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"caseflow/internal/domain"
)

// PostProcessor transforms an assistant's response text after normalization,
// e.g. reformatting markdown for a destination that doesn't render it.
type PostProcessor func(string) string

// Agent is immutable once constructed: prompts are merged and tools loaded
// exactly once at New, never mutated by a GetResponse call. Each call
// builds a fresh Request instead of touching Agent state.
type Agent struct {
	name           string
	systemPrompt   string
	tools          []ToolSpec
	provider       Provider
	modelID        string
	postProcessors []PostProcessor
}

// Config describes how to build one Agent.
type Config struct {
	Name           string
	SystemPrompt   string
	Tools          []ToolSpec
	Provider       Provider
	ModelID        string
	PostProcessors []PostProcessor
}

func New(cfg Config) (*Agent, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("agent: provider is required")
	}
	if len(cfg.Tools) > 0 && !cfg.Provider.SupportsTools() {
		return nil, fmt.Errorf("agent: provider for model %q does not support tool calls", cfg.ModelID)
	}
	return &Agent{
		name:           cfg.Name,
		systemPrompt:   cfg.SystemPrompt,
		tools:          cfg.Tools,
		provider:       cfg.Provider,
		modelID:        cfg.ModelID,
		postProcessors: cfg.PostProcessors,
	}, nil
}

// GetResponse assembles a Request from history, invokes the provider, and
// normalizes the reply into an AssistantMsg. caseID is threaded through so
// the returned message is ready to persist as-is.
func (a *Agent) GetResponse(ctx context.Context, history []domain.Message, caseID int) (*domain.AssistantMsg, error) {
	req := Request{
		System:   a.systemPrompt,
		Messages: history,
		Tools:    a.tools,
	}

	resp, err := a.provider.Invoke(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", a.name, err)
	}

	text := resp.Text
	for _, pp := range a.postProcessors {
		text = pp(text)
	}

	msg, err := domain.NewAssistantMsg(domain.Base{CaseID: caseID}, text, resp.ToolCalls, nil, "")
	if err != nil {
		return nil, fmt.Errorf("agent %s: normalizing response: %w", a.name, err)
	}
	msg.Agent = a.name
	msg.Model = resp.Model
	msg.TokensInput = resp.TokensInput
	msg.TokensOutput = resp.TokensOutput
	msg.TokensTotal = resp.TokensInput + resp.TokensOutput

	log.Info().
		Str("agent", a.name).
		Str("model", resp.Model).
		Int("tokens_total", msg.TokensTotal).
		Int("tool_calls", len(resp.ToolCalls)).
		Msg("agent response generated")

	return msg, nil
}

// GetStructuredResponse invokes the provider and parses the response text as
// JSON into out, stripping a ```json / ``` code fence first if the model
// wrapped its answer in one (providers do this even when asked not to).
func (a *Agent) GetStructuredResponse(ctx context.Context, history []domain.Message, out any) error {
	req := Request{System: a.systemPrompt, Messages: history}
	resp, err := a.provider.Invoke(ctx, req)
	if err != nil {
		return fmt.Errorf("agent %s: %w", a.name, err)
	}

	content := stripCodeFence(resp.Text)
	if err := json.Unmarshal([]byte(content), out); err != nil {
		log.Error().Err(err).Str("agent", a.name).Str("content", content).Msg("failed to parse structured response")
		return fmt.Errorf("agent %s: parsing structured response: %w", a.name, err)
	}
	return nil
}

func stripCodeFence(content string) string {
	content = strings.TrimSpace(content)
	switch {
	case strings.HasPrefix(content, "```json"):
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimSuffix(content, "```")
	case strings.HasPrefix(content, "```"):
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(content, "```")
	}
	return strings.TrimSpace(content)
}

// NewProviderForAlias resolves alias through the catalog and constructs the
// matching concrete Provider, reading provider API keys from cfg.
func NewProviderForAlias(ctx context.Context, alias string, keys ProviderKeys) (Provider, string, error) {
	api, modelID, err := Resolve(alias)
	if err != nil {
		return nil, "", err
	}
	switch api {
	case "anthropic":
		return NewAnthropicProvider(keys.AnthropicAPIKey, modelID), modelID, nil
	case "openai":
		return NewOpenAIProvider(keys.OpenAIAPIKey, keys.OpenAIBaseURL, modelID), modelID, nil
	case "google":
		p, err := NewGoogleProvider(ctx, keys.GoogleAPIKey, modelID)
		if err != nil {
			return nil, "", err
		}
		return p, modelID, nil
	default:
		return nil, "", fmt.Errorf("agent: unsupported provider api %q", api)
	}
}

// ProviderKeys carries the API credentials a concrete Provider needs.
type ProviderKeys struct {
	AnthropicAPIKey string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	GoogleAPIKey    string
}
