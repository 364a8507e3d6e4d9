package agent

import "fmt"

// entry binds a short alias (what a case's manifest or a caller names as
// "model") to a concrete provider API and wire model id. Mirrors the
// api/alias resolution table the agent used to pick a concrete SDK call.
type entry struct {
	api       string
	modelID   string
	fallbacks []string // openrouter-style chain, returned by Fallbacks; no Provider sends it with a request
}

var catalog = map[string]entry{
	"claude-sonnet":   {api: "anthropic", modelID: "claude-sonnet-4-20250514"},
	"claude-haiku":    {api: "anthropic", modelID: "claude-3-5-haiku-20241022"},
	"gpt-4o":          {api: "openai", modelID: "gpt-4o"},
	"gpt-4o-mini":     {api: "openai", modelID: "gpt-4o-mini"},
	"gemini-flash":    {api: "google", modelID: "gemini-2.0-flash"},
	"gemini-pro":      {api: "google", modelID: "gemini-2.0-pro"},
	"openrouter-auto": {
		api:     "openai",
		modelID: "openrouter/auto",
		fallbacks: []string{
			"meta-llama/llama-3.1-70b-instruct",
			"mistralai/mixtral-8x7b-instruct",
		},
	},
}

// noToolCallAPIs lists wire APIs whose models (as used here) do not accept
// a tools parameter. It is read only by SupportsTools(api); agent.New
// instead rejects tools when the Provider's own SupportsTools reports false.
var noToolCallAPIs = map[string]bool{
	"mistral": true,
}

// Resolve looks up alias and returns the provider api name and concrete
// model id to invoke. An unknown alias is an error.
func Resolve(alias string) (api string, modelID string, err error) {
	e, ok := catalog[alias]
	if !ok {
		return "", "", fmt.Errorf("agent: unknown model alias %q", alias)
	}
	return e.api, e.modelID, nil
}

// Fallbacks returns the ordered fallback chain for alias, empty if none.
func Fallbacks(alias string) []string {
	return catalog[alias].fallbacks
}

// SupportsTools reports whether api accepts a tools parameter.
func SupportsTools(api string) bool {
	return !noToolCallAPIs[api]
}
