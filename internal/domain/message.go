package domain

import (
	"encoding/json"
	"fmt"
)

// Role is the provider-request role a message maps to.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleServer    Role = "user" // ServerMsg.role intentionally maps to "user" (server-as-user channel)
	RoleTool      Role = "tool"
)

// Basemodel tags identify the closed set of message variants. Every
// persisted message document carries one of these as its "basemodel"
// discriminator.
const (
	BasemodelUserContent          = "UserContentMsg"
	BasemodelUserInteractiveReply = "UserInteractiveReplyMsg"
	BasemodelServerText           = "ServerTextMsg"
	BasemodelServerInteractive    = "ServerInteractiveOptsMsg"
	BasemodelAssistant            = "AssistantMsg"
	BasemodelToolResults          = "ToolResultsMsg"
)

// Base carries the fields common to every message variant.
type Base struct {
	Basemodel      string `json:"basemodel"`
	Origin         string `json:"origin,omitempty"`
	CaseID         int    `json:"case_id"`
	IdempotencyKey string `json:"idempotency_key"`
	TimeCreated    string `json:"time_created"`
	TimeReceived   string `json:"time_received"`
	ID             string `json:"id"`
}

// fillDefaults derives ID/timestamps/idempotency key when the caller left
// them unset, matching construction-time behavior described for every
// message variant.
func (b *Base) fillDefaults(basemodel string) {
	b.Basemodel = basemodel
	now := NowUTCISO()
	if b.TimeCreated == "" {
		b.TimeCreated = now
	}
	if b.TimeReceived == "" {
		b.TimeReceived = now
	}
	if b.IdempotencyKey == "" {
		b.IdempotencyKey = NewIdempotencyKey()
	}
	if b.ID == "" {
		b.ID = DeriveMessageID(b.TimeReceived, basemodel)
	}
}

// Message is the closed tagged union of everything that can be stored in a
// case's message list. Implementations are a fixed, known set; new variants
// are never added by a caller, only by this package.
type Message interface {
	Basemodel() string
	Meta() *Base
	Role() Role
}

// ---- UserContentMsg ----

type UserContentMsg struct {
	Base
	Text  string     `json:"text,omitempty"`
	Media *MediaData `json:"media,omitempty"`
}

func NewUserContentMsg(base Base, text string, media *MediaData) (*UserContentMsg, error) {
	if text == "" && media == nil {
		return nil, fmt.Errorf("UserContentMsg requires text or media")
	}
	m := &UserContentMsg{Base: base, Text: text, Media: media}
	m.fillDefaults(BasemodelUserContent)
	if m.Media != nil {
		m.Media.Name = m.ID + extOf(m.Media.Name)
	}
	return m, nil
}

func (m *UserContentMsg) Basemodel() string { return BasemodelUserContent }
func (m *UserContentMsg) Meta() *Base {  return &m.Base }
func (m *UserContentMsg) Role() Role {  return RoleUser }

// ---- UserInteractiveReplyMsg ----

type InteractiveChoice struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type UserInteractiveReplyMsg struct {
	Base
	Choice InteractiveChoice `json:"choice"`
}

func NewUserInteractiveReplyMsg(base Base, choice InteractiveChoice) *UserInteractiveReplyMsg {
	m := &UserInteractiveReplyMsg{Base: base, Choice: choice}
	m.fillDefaults(BasemodelUserInteractiveReply)
	return m
}

func (m *UserInteractiveReplyMsg) Basemodel() string { return BasemodelUserInteractiveReply }
func (m *UserInteractiveReplyMsg) Meta() *Base {  return &m.Base }
func (m *UserInteractiveReplyMsg) Role() Role {  return RoleUser }

// ---- ServerTextMsg ----

type ServerTextMsg struct {
	Base
	Text string `json:"text"`
}

func NewServerTextMsg(base Base, text string) *ServerTextMsg {
	m := &ServerTextMsg{Base: base, Text: text}
	m.fillDefaults(BasemodelServerText)
	return m
}

func (m *ServerTextMsg) Basemodel() string { return BasemodelServerText }
func (m *ServerTextMsg) Meta() *Base {  return &m.Base }

// role intentionally "user": the server channel is fed back to the agent
// as a user turn (design note: re-confirm against outbound protocol).
func (m *ServerTextMsg) Role() Role { return RoleServer }

// ---- ServerInteractiveOptsMsg ----

type InteractiveOptsType string

const (
	InteractiveOptsButton InteractiveOptsType = "button"
	InteractiveOptsList   InteractiveOptsType = "list"
)

type InteractiveOption struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type ServerInteractiveOptsMsg struct {
	Base
	Type    InteractiveOptsType `json:"type"`
	Header  string              `json:"header,omitempty"`
	Body    string              `json:"body"`
	Footer  string              `json:"footer,omitempty"`
	Button  string              `json:"button,omitempty"`
	Options []InteractiveOption `json:"options"`
}

const (
	maxButtonOptions = 3
	maxListOptions   = 10
)

func NewServerInteractiveOptsMsg(base Base, optsType InteractiveOptsType, body string, options []InteractiveOption, header, footer, button string) (*ServerInteractiveOptsMsg, error) {
	if len(options) < 2 {
		return nil, fmt.Errorf("ServerInteractiveOptsMsg requires at least 2 options")
	}
	switch optsType {
	case InteractiveOptsButton:
		if len(options) > maxButtonOptions {
			return nil, fmt.Errorf("button interactive messages support at most %d options, got %d", maxButtonOptions, len(options))
		}
	case InteractiveOptsList:
		if len(options) > maxListOptions {
			return nil, fmt.Errorf("list interactive messages support at most %d options, got %d", maxListOptions, len(options))
		}
	default:
		return nil, fmt.Errorf("unknown interactive opts type %q", optsType)
	}
	m := &ServerInteractiveOptsMsg{
		Base: base, Type: optsType, Header: header, Body: body, Footer: footer, Button: button, Options: options,
	}
	m.fillDefaults(BasemodelServerInteractive)
	return m, nil
}

func (m *ServerInteractiveOptsMsg) Basemodel() string { return BasemodelServerInteractive }
func (m *ServerInteractiveOptsMsg) Meta() *Base {  return &m.Base }
func (m *ServerInteractiveOptsMsg) Role() Role {  return RoleServer }

// ---- AssistantMsg ----

type ToolCall struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Input map[string]any `json:"input"`
}

type AssistantMsg struct {
	Base
	Text         string         `json:"text,omitempty"`
	ToolCalls    []ToolCall     `json:"tool_calls,omitempty"`
	StOutput     map[string]any `json:"st_output,omitempty"`
	StOutBm      string         `json:"st_out_bm,omitempty"`
	Agent        string         `json:"agent,omitempty"`
	API          string         `json:"api,omitempty"`
	Model        string         `json:"model,omitempty"`
	TokensInput  int            `json:"tokens_input,omitempty"`
	TokensOutput int            `json:"tokens_output,omitempty"`
	TokensTotal  int            `json:"tokens_total,omitempty"`
}

func NewAssistantMsg(base Base, text string, toolCalls []ToolCall, stOutput map[string]any, stOutBm string) (*AssistantMsg, error) {
	if text == "" && len(toolCalls) == 0 && stOutput == nil {
		return nil, fmt.Errorf("AssistantMsg requires text, tool_calls, or structured output")
	}
	m := &AssistantMsg{Base: base, Text: text, ToolCalls: toolCalls, StOutput: stOutput, StOutBm: stOutBm}
	m.fillDefaults(BasemodelAssistant)
	return m, nil
}

func (m *AssistantMsg) Basemodel() string { return BasemodelAssistant }
func (m *AssistantMsg) Meta() *Base {  return &m.Base }
func (m *AssistantMsg) Role() Role {  return RoleAssistant }

// ---- ToolResultsMsg ----

type ToolResult struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Error   string `json:"error,omitempty"`
}

type ToolResultsMsg struct {
	Base
	ToolResults []ToolResult `json:"tool_results"`
}

func NewToolResultsMsg(base Base, results []ToolResult) (*ToolResultsMsg, error) {
	if len(results) == 0 {
		return nil, fmt.Errorf("ToolResultsMsg requires at least one tool result")
	}
	m := &ToolResultsMsg{Base: base, ToolResults: results}
	m.fillDefaults(BasemodelToolResults)
	return m, nil
}

func (m *ToolResultsMsg) Basemodel() string { return BasemodelToolResults }
func (m *ToolResultsMsg) Meta() *Base {  return &m.Base }
func (m *ToolResultsMsg) Role() Role {  return RoleTool }

// UnmarshalMessage reads the basemodel discriminator out of raw and
// rehydrates the matching variant. An unknown tag is reported as an error
// so callers can treat the stored document as absent, per the "malformed
// stored message" error-handling rule.
func UnmarshalMessage(raw []byte) (Message, error) {
	var tag struct {
		Basemodel string `json:"basemodel"`
	}
	if err := json.Unmarshal(raw, &tag); err != nil {
		return nil, fmt.Errorf("reading basemodel discriminator: %w", err)
	}
	switch tag.Basemodel {
	case BasemodelUserContent:
		var m UserContentMsg
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		return &m, nil
	case BasemodelUserInteractiveReply:
		var m UserInteractiveReplyMsg
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		return &m, nil
	case BasemodelServerText:
		var m ServerTextMsg
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		return &m, nil
	case BasemodelServerInteractive:
		var m ServerInteractiveOptsMsg
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		return &m, nil
	case BasemodelAssistant:
		var m AssistantMsg
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		return &m, nil
	case BasemodelToolResults:
		var m ToolResultsMsg
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		return &m, nil
	default:
		return nil, fmt.Errorf("unknown basemodel tag %q", tag.Basemodel)
	}
}

func extOf(name string) string {
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '.' {
			return name[i:]
		}
	}
	return ""
}
