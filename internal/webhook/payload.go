// Package webhook parses the WhatsApp Cloud API inbound webhook payload
// shape into the narrow types the worker and case handler operate on.
package webhook

import "encoding/json"

// Envelope is the top-level webhook body.
type Envelope struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

type Change struct {
	Value Value  `json:"value"`
	Field string `json:"field"`
}

type Value struct {
	MessagingProduct string     `json:"messaging_product"`
	Metadata         Metadata   `json:"metadata"`
	Contacts         []Contact  `json:"contacts"`
	Messages         []Message  `json:"messages"`
}

type Metadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

type Contact struct {
	WAID    string  `json:"wa_id"`
	Profile Profile `json:"profile"`
}

type Profile struct {
	Name string `json:"name"`
}

// MessageContext mirrors the optional reply/forward metadata WhatsApp
// attaches to an inbound message.
type MessageContext struct {
	From                string `json:"from,omitempty"`
	ID                  string `json:"id,omitempty"`
	Forwarded           bool   `json:"forwarded,omitempty"`
	FrequentlyForwarded bool   `json:"frequently_forwarded,omitempty"`
}

// Message is one inbound WhatsApp message. Parse decodes every payload
// field present in the body (normally only the one named by Type) into its
// typed field; absent payload fields stay nil.
type Message struct {
	From      string          `json:"from"`
	ID        string          `json:"id"`
	Timestamp string          `json:"timestamp"`
	Type      string          `json:"type"`
	Context   *MessageContext `json:"context,omitempty"`

	Text        *TextPayload        `json:"text,omitempty"`
	Interactive *InteractivePayload `json:"interactive,omitempty"`
	Image       *MediaPayload       `json:"image,omitempty"`
	Video       *MediaPayload       `json:"video,omitempty"`
	Audio       *MediaPayload       `json:"audio,omitempty"`
	Sticker     *MediaPayload       `json:"sticker,omitempty"`
	Reaction    *ReactionPayload    `json:"reaction,omitempty"`
}

type TextPayload struct {
	Body string `json:"body"`
}

type InteractivePayload struct {
	Type        string             `json:"type"` // button_reply | list_reply
	ButtonReply *ReplyPayload      `json:"button_reply,omitempty"`
	ListReply   *ReplyPayload      `json:"list_reply,omitempty"`
}

type ReplyPayload struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type MediaPayload struct {
	ID      string `json:"id"`
	Mime    string `json:"mime_type"`
	SHA256  string `json:"sha256"`
	Caption string `json:"caption,omitempty"`
}

type ReactionPayload struct {
	MessageID string `json:"message_id"`
	Emoji     string `json:"emoji"`
}

// Parse decodes the raw webhook request body into an Envelope.
func Parse(body []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// MediaPayloadOf returns the media payload attached to m, if its type
// carries one, along with the WhatsApp media type name.
func (m Message) MediaPayloadOf() (*MediaPayload, string) {
	switch {
	case m.Image != nil:
		return m.Image, "image"
	case m.Video != nil:
		return m.Video, "video"
	case m.Audio != nil:
		return m.Audio, "audio"
	case m.Sticker != nil:
		return m.Sticker, "sticker"
	default:
		return nil, ""
	}
}

// Caption returns the text content to associate with m: the text body for
// text messages, or the media caption for media messages.
func (m Message) Caption() string {
	if m.Text != nil {
		return m.Text.Body
	}
	if media, _ := m.MediaPayloadOf(); media != nil {
		return media.Caption
	}
	return ""
}
