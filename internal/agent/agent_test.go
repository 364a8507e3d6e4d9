package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caseflow/internal/domain"
)

type fakeProvider struct {
	supportsTools bool
	response      *Response
	err           error
	lastReq       Request
}

func (f *fakeProvider) SupportsTools() bool { return f.supportsTools }

func (f *fakeProvider) Invoke(_ context.Context, req Request) (*Response, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.response, nil
}

func TestResolve_KnownAlias(t *testing.T) {
	api, modelID, err := Resolve("claude-sonnet")
	require.NoError(t, err)
	assert.Equal(t, "anthropic", api)
	assert.Equal(t, "claude-sonnet-4-20250514", modelID)
}

func TestResolve_UnknownAlias(t *testing.T) {
	_, _, err := Resolve("not-a-real-model")
	assert.Error(t, err)
}

func TestNew_RejectsToolsAgainstNoToolProvider(t *testing.T) {
	provider := &fakeProvider{supportsTools: false}
	_, err := New(Config{
		Provider: provider,
		Tools:    []ToolSpec{{Name: "lookup"}},
	})
	assert.Error(t, err)
}

func TestGetResponse_NormalizesTextAndTokens(t *testing.T) {
	provider := &fakeProvider{
		supportsTools: true,
		response: &Response{
			Text:         "hello there",
			Model:        "claude-sonnet-4-20250514",
			TokensInput:  10,
			TokensOutput: 5,
		},
	}
	a, err := New(Config{Name: "caseflow-agent", Provider: provider, ModelID: "claude-sonnet-4-20250514"})
	require.NoError(t, err)

	msg, err := a.GetResponse(context.Background(), nil, 7)
	require.NoError(t, err)
	assert.Equal(t, "hello there", msg.Text)
	assert.Equal(t, 15, msg.TokensTotal)
	assert.Equal(t, 7, msg.CaseID)
	assert.Equal(t, "caseflow-agent", msg.Agent)
}

func TestGetResponse_AppliesPostProcessors(t *testing.T) {
	provider := &fakeProvider{supportsTools: true, response: &Response{Text: "**bold**"}}
	upper := func(s string) string { return s + "!" }
	a, err := New(Config{Provider: provider, PostProcessors: []PostProcessor{upper}})
	require.NoError(t, err)

	msg, err := a.GetResponse(context.Background(), nil, 1)
	require.NoError(t, err)
	assert.Equal(t, "**bold**!", msg.Text)
}

func TestGetResponse_NormalizesToolCalls(t *testing.T) {
	provider := &fakeProvider{
		supportsTools: true,
		response: &Response{
			ToolCalls: []domain.ToolCall{{ID: "t1", Name: "lookup", Input: map[string]any{"q": "x"}}},
		},
	}
	a, err := New(Config{Provider: provider})
	require.NoError(t, err)

	msg, err := a.GetResponse(context.Background(), nil, 1)
	require.NoError(t, err)
	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "lookup", msg.ToolCalls[0].Name)
}

func TestGetStructuredResponse_StripsJSONFence(t *testing.T) {
	provider := &fakeProvider{
		supportsTools: true,
		response:      &Response{Text: "```json\n{\"ok\":true}\n```"},
	}
	a, err := New(Config{Provider: provider})
	require.NoError(t, err)

	var out struct {
		OK bool `json:"ok"`
	}
	require.NoError(t, a.GetStructuredResponse(context.Background(), nil, &out))
	assert.True(t, out.OK)
}

func TestGetStructuredResponse_StripsBareFence(t *testing.T) {
	provider := &fakeProvider{supportsTools: true, response: &Response{Text: "```\n{\"ok\":true}\n```"}}
	a, err := New(Config{Provider: provider})
	require.NoError(t, err)

	var out struct {
		OK bool `json:"ok"`
	}
	require.NoError(t, a.GetStructuredResponse(context.Background(), nil, &out))
	assert.True(t, out.OK)
}

func TestGetStructuredResponse_InvalidJSONErrors(t *testing.T) {
	provider := &fakeProvider{supportsTools: true, response: &Response{Text: "not json"}}
	a, err := New(Config{Provider: provider})
	require.NoError(t, err)

	var out map[string]any
	assert.Error(t, a.GetStructuredResponse(context.Background(), nil, &out))
}
