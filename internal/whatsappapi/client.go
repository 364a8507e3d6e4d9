// Package whatsappapi is the outbound WhatsApp Cloud API client: sending
// text/interactive/media messages, fetching inbound media, and verifying
// webhook signatures.
package whatsappapi

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"caseflow/internal/config"
	"caseflow/internal/domain"
)

// Client is the outbound WhatsApp Cloud API surface; NewClient returns its
// production implementation.
type Client interface {
	SendText(phoneNumber, text string) error
	SendInteractive(phoneNumber string, message InteractiveMessage) error
	SendMedia(phoneNumber string, media domain.MediaContent, filename string) error
	FetchMedia(mediaID string) (domain.MediaContent, error)
	VerifyWebhookSignature(payload []byte, signature string) bool
}

type client struct {
	cfg        *config.WhatsAppConfig
	httpClient *http.Client
}

func NewClient(cfg *config.WhatsAppConfig) Client {
	return &client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// InteractiveMessage mirrors the WhatsApp Cloud API's interactive message
// envelope for both button and list types.
type InteractiveMessage struct {
	Type   string         `json:"type"`
	Header *MessageHeader `json:"header,omitempty"`
	Body   MessageBody    `json:"body"`
	Footer *MessageFooter `json:"footer,omitempty"`
	Action MessageAction  `json:"action"`
}

type MessageHeader struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type MessageBody struct {
	Text string `json:"text"`
}

type MessageFooter struct {
	Text string `json:"text"`
}

type MessageAction struct {
	Buttons  []Button  `json:"buttons,omitempty"`
	Button   string    `json:"button,omitempty"`
	Sections []Section `json:"sections,omitempty"`
}

type Button struct {
	Type  string      `json:"type"`
	Reply ButtonReply `json:"reply"`
}

type ButtonReply struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type Section struct {
	Title string `json:"title"`
	Rows  []Row  `json:"rows"`
}

type Row struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// NewInteractiveMessage builds the wire envelope from a domain interactive
// message, choosing the button or list action shape by type.
func NewInteractiveMessage(msg *domain.ServerInteractiveOptsMsg) InteractiveMessage {
	im := InteractiveMessage{
		Type: string(msg.Type),
		Body: MessageBody{Text: msg.Body},
	}
	if msg.Header != "" {
		im.Header = &MessageHeader{Type: "text", Text: msg.Header}
	}
	if msg.Footer != "" {
		im.Footer = &MessageFooter{Text: msg.Footer}
	}
	switch msg.Type {
	case domain.InteractiveOptsButton:
		buttons := make([]Button, 0, len(msg.Options))
		for _, opt := range msg.Options {
			buttons = append(buttons, Button{Type: "reply", Reply: ButtonReply{ID: opt.ID, Title: opt.Title}})
		}
		im.Action = MessageAction{Buttons: buttons}
	case domain.InteractiveOptsList:
		rows := make([]Row, 0, len(msg.Options))
		for _, opt := range msg.Options {
			rows = append(rows, Row{ID: opt.ID, Title: opt.Title, Description: opt.Description})
		}
		im.Action = MessageAction{Button: msg.Button, Sections: []Section{{Title: msg.Body, Rows: rows}}}
	}
	return im
}

// SendText chunks text at the configured max message length and sends each
// chunk in order, since WhatsApp rejects a single message over the limit.
func (c *client) SendText(phoneNumber, text string) error {
	for _, chunk := range ChunkText(text, c.cfg.MaxMessageLen) {
		payload := map[string]any{
			"messaging_product": "whatsapp",
			"recipient_type":    "individual",
			"to":                phoneNumber,
			"type":              "text",
			"text":              map[string]string{"body": chunk},
		}
		if err := c.sendRequest(c.messagesURL(), payload, 3); err != nil {
			return err
		}
	}
	return nil
}

func (c *client) SendInteractive(phoneNumber string, message InteractiveMessage) error {
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"recipient_type":    "individual",
		"to":                phoneNumber,
		"type":              "interactive",
		"interactive":       message,
	}
	return c.sendRequest(c.messagesURL(), payload, 3)
}

// SendMedia uploads media bytes then sends a document message referencing
// the resulting media id, following the Cloud API's two-step media flow.
func (c *client) SendMedia(phoneNumber string, media domain.MediaContent, filename string) error {
	mediaID, err := c.uploadMedia(media, filename)
	if err != nil {
		return fmt.Errorf("uploading media: %w", err)
	}
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"recipient_type":    "individual",
		"to":                phoneNumber,
		"type":              "document",
		"document": map[string]string{
			"id":       mediaID,
			"filename": filename,
		},
	}
	return c.sendRequest(c.messagesURL(), payload, 3)
}

func (c *client) uploadMedia(media domain.MediaContent, filename string) (string, error) {
	var body bytes.Buffer
	body.Write(media.Content)

	url := fmt.Sprintf("%s/%s/media", c.cfg.APIURL, c.cfg.OperatorID)
	req, err := http.NewRequest(http.MethodPost, url, &body)
	if err != nil {
		return "", fmt.Errorf("creating upload request: %w", err)
	}
	req.Header.Set("Content-Type", media.Mime)
	req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("uploading media: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("media upload returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("parsing media upload response: %w", err)
	}
	return parsed.ID, nil
}

// FetchMedia resolves a media id to a download URL, then downloads the
// bytes, following the Cloud API's two-step media-fetch flow.
func (c *client) FetchMedia(mediaID string) (domain.MediaContent, error) {
	metaURL := fmt.Sprintf("%s/%s", c.cfg.APIURL, mediaID)
	req, err := http.NewRequest(http.MethodGet, metaURL, nil)
	if err != nil {
		return domain.MediaContent{}, fmt.Errorf("creating media metadata request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.MediaContent{}, fmt.Errorf("fetching media metadata: %w", err)
	}
	defer resp.Body.Close()
	metaBody, _ := io.ReadAll(resp.Body)

	var meta struct {
		URL      string `json:"url"`
		MimeType string `json:"mime_type"`
	}
	if err := json.Unmarshal(metaBody, &meta); err != nil {
		return domain.MediaContent{}, fmt.Errorf("parsing media metadata: %w", err)
	}

	dlReq, err := http.NewRequest(http.MethodGet, meta.URL, nil)
	if err != nil {
		return domain.MediaContent{}, fmt.Errorf("creating media download request: %w", err)
	}
	dlReq.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)

	dlResp, err := c.httpClient.Do(dlReq)
	if err != nil {
		return domain.MediaContent{}, fmt.Errorf("downloading media: %w", err)
	}
	defer dlResp.Body.Close()

	content, err := io.ReadAll(dlResp.Body)
	if err != nil {
		return domain.MediaContent{}, fmt.Errorf("reading media bytes: %w", err)
	}
	return domain.MediaContent{Mime: meta.MimeType, Content: content}, nil
}

func (c *client) messagesURL() string {
	return fmt.Sprintf("%s/%s/messages", c.cfg.APIURL, c.cfg.OperatorID)
}

func (c *client) sendRequest(url string, payload any, maxRetries int) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling payload: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		req, err := http.NewRequest(http.MethodPost, url, bytes.NewBuffer(jsonData))
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed (attempt %d/%d): %w", attempt, maxRetries, err)
			log.Warn().Err(err).Int("attempt", attempt).Msg("whatsapp API request failed, retrying")
			time.Sleep(time.Duration(attempt) * time.Second)
			continue
		}

		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			log.Debug().Int("status", resp.StatusCode).Msg("whatsapp API request successful")
			return nil
		}

		lastErr = fmt.Errorf("API returned status %d (attempt %d/%d): %s", resp.StatusCode, attempt, maxRetries, string(body))
		log.Warn().Int("status", resp.StatusCode).Int("attempt", attempt).Msg("whatsapp API request failed")

		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return lastErr
		}
		time.Sleep(time.Duration(attempt) * time.Second)
	}
	return lastErr
}

// VerifyWebhookSignature checks the X-Hub-Signature-256 header against the
// raw request body using the configured app secret.
func (c *client) VerifyWebhookSignature(payload []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(c.cfg.AppSecret))
	mac.Write(payload)
	expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))

	valid := hmac.Equal([]byte(signature), []byte(expected))
	if !valid {
		log.Warn().Msg("webhook signature verification failed")
	}
	return valid
}
