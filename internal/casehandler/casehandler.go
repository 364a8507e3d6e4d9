// Package casehandler implements the per-(operator,user) case lifecycle:
// deciding which case a message belongs to, persisting it under the user
// lock, building bounded conversational context, and routing outbound
// sends through the WhatsApp client.
package casehandler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"caseflow/internal/domain"
	"caseflow/internal/lock"
	"caseflow/internal/storage"
	"caseflow/internal/whatsappapi"
)

const (
	defaultMaxContextLen = 20
	defaultStaleAfter     = 48 * time.Hour
)

// StateMachine is the optional business-logic hook fed every ingested and
// context-built message. No concrete implementation ships with this
// repository; callers that need one supply their own.
type StateMachine interface {
	Reset()
	IngestMessage(msg domain.Message)
}

// ProcessMessageFunc handles one freshly-ingested inbound message. It
// returns true iff a response-generation pass should follow.
type ProcessMessageFunc func(ctx context.Context, h *CaseHandler, msg domain.Message) (bool, error)

// GenerateResponseFunc produces (and sends) one assistant turn. It returns
// true iff another pass is needed, e.g. to resolve a tool call.
type GenerateResponseFunc func(ctx context.Context, h *CaseHandler, maxTokens int) (bool, error)

// InboundMessage is the narrow shape dedup_and_ingest_message needs from a
// parsed webhook payload, independent of the webhook's wire format.
type InboundMessage struct {
	ID            string
	TimestampUnix string
	Text          string
	Choice        *domain.InteractiveChoice
	MediaMime     string
	MediaName     string
}

// Config constructs one CaseHandler, scoped to a single (operator, user).
type Config struct {
	Storage          *storage.Storage
	Locker           *lock.Locker
	WhatsApp         whatsappapi.Client
	UserPhoneNumber  string
	StateMachine     StateMachine
	Debug            bool
	MaxContextLen    int
	StaleAfter       time.Duration
	ProcessMessage   ProcessMessageFunc
	GenerateResponse GenerateResponseFunc
}

// CaseHandler is instantiated per (operator, user) request/worker pass.
type CaseHandler struct {
	storage         *storage.Storage
	locker          *lock.Locker
	whatsapp        whatsappapi.Client
	userPhoneNumber string
	stateMachine    StateMachine
	debug           bool
	maxContextLen   int
	staleAfter      time.Duration

	processMessage   ProcessMessageFunc
	generateResponse GenerateResponseFunc

	caseID   int
	manifest *domain.CaseManifest
	context  []domain.Message
}

func New(cfg Config) *CaseHandler {
	maxLen := cfg.MaxContextLen
	if maxLen <= 0 {
		maxLen = defaultMaxContextLen
	}
	staleAfter := cfg.StaleAfter
	if staleAfter <= 0 {
		staleAfter = defaultStaleAfter
	}
	return &CaseHandler{
		storage:          cfg.Storage,
		locker:           cfg.Locker,
		whatsapp:         cfg.WhatsApp,
		userPhoneNumber:  cfg.UserPhoneNumber,
		stateMachine:     cfg.StateMachine,
		debug:            cfg.Debug,
		maxContextLen:    maxLen,
		staleAfter:       staleAfter,
		processMessage:   cfg.ProcessMessage,
		generateResponse: cfg.GenerateResponse,
	}
}

func (h *CaseHandler) CaseID() int                    { return h.caseID }
func (h *CaseHandler) Manifest() *domain.CaseManifest { return h.manifest }
func (h *CaseHandler) Context() []domain.Message      { return h.context }
func (h *CaseHandler) Storage() *storage.Storage       { return h.storage }

// UserDataLookup loads the persisted UserData, or constructs one for a
// first-contact user. If name is new, it is appended under the user lock
// and the document persisted; otherwise nothing is written.
func (h *CaseHandler) UserDataLookup(ctx context.Context, name string) (*domain.UserData, error) {
	var data domain.UserData
	found, err := h.storage.JSONRead(ctx, h.storage.Keys().UserData(), &data)
	if err != nil {
		return nil, fmt.Errorf("reading user data: %w", err)
	}
	if !found {
		data = *domain.NewUserData(h.storage.Keys().UserID)
	}

	if name == "" || !isNewName(&data, name) {
		return &data, nil
	}

	lk, err := h.locker.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring user lock for name update: %w", err)
	}
	defer lk.Release(ctx)

	if data.AppendName(name) {
		if err := h.storage.JSONWrite(ctx, h.storage.Keys().UserData(), &data); err != nil {
			return nil, fmt.Errorf("writing user data: %w", err)
		}
	}
	return &data, nil
}

func isNewName(data *domain.UserData, name string) bool {
	for _, existing := range data.Names {
		if existing == name {
			return false
		}
	}
	return true
}

// CaseDecide resolves which case new activity belongs to: the existing open
// case if one exists and isn't stale, or a freshly opened one otherwise.
func (h *CaseHandler) CaseDecide(ctx context.Context) (int, *domain.CaseManifest, error) {
	var index domain.CaseIndex
	found, err := h.storage.JSONRead(ctx, h.storage.Keys().CaseIndex(), &index)
	if err != nil {
		return 0, nil, fmt.Errorf("reading case index: %w", err)
	}
	if !found || index.OpenCaseID == nil {
		return h.CaseOpenNew(ctx)
	}

	h.storage.SetCaseID(*index.OpenCaseID)
	manifest, manifestFound, err := h.storage.ManifestLoad(ctx)
	if err != nil {
		return 0, nil, fmt.Errorf("loading manifest: %w", err)
	}
	if !manifestFound || manifest.Status != domain.CaseStatusOpen {
		return h.CaseOpenNew(ctx)
	}

	if h.isStale(manifest) {
		manifest.Status = domain.CaseStatusTimeout
		if err := h.storage.ManifestWrite(ctx, manifest); err != nil {
			return 0, nil, fmt.Errorf("writing timed-out manifest: %w", err)
		}
		if err := h.clearCaseIndex(ctx); err != nil {
			return 0, nil, err
		}
		return h.CaseOpenNew(ctx)
	}

	h.caseID = manifest.CaseID
	h.manifest = manifest
	return manifest.CaseID, manifest, nil
}

func (h *CaseHandler) isStale(m *domain.CaseManifest) bool {
	last := m.TimeLastMessage
	if last == "" {
		last = m.TimeOpened
	}
	lastTime, err := domain.ParseUTCISO(last)
	if err != nil {
		return false
	}
	return time.Since(lastTime) > h.staleAfter
}

// CaseOpenNew allocates and persists a fresh case, marking it as the user's
// open case.
func (h *CaseHandler) CaseOpenNew(ctx context.Context) (int, *domain.CaseManifest, error) {
	caseID, err := h.storage.GetNextCaseID(ctx)
	if err != nil {
		return 0, nil, fmt.Errorf("allocating case id: %w", err)
	}
	h.storage.SetCaseID(caseID)

	manifest := domain.NewCaseManifest(caseID)
	if err := h.storage.ManifestWrite(ctx, manifest); err != nil {
		return 0, nil, fmt.Errorf("writing new manifest: %w", err)
	}
	if err := h.storage.JSONWrite(ctx, h.storage.Keys().CaseIndex(), &domain.CaseIndex{OpenCaseID: &caseID}); err != nil {
		return 0, nil, fmt.Errorf("writing case index: %w", err)
	}

	h.caseID = caseID
	h.manifest = manifest
	if h.stateMachine != nil {
		h.stateMachine.Reset()
	}
	log.Info().Int("case_id", caseID).Str("user_id", h.storage.Keys().UserID).Msg("opened new case")
	return caseID, manifest, nil
}

// CaseMarkAsResolved closes the current case and clears the open-case
// index entry.
func (h *CaseHandler) CaseMarkAsResolved(ctx context.Context) error {
	if h.manifest == nil {
		return fmt.Errorf("no active case to resolve")
	}
	h.manifest.Status = domain.CaseStatusResolved
	h.manifest.TimeClosed = domain.NowUTCISO()
	if err := h.storage.ManifestWrite(ctx, h.manifest); err != nil {
		return fmt.Errorf("writing resolved manifest: %w", err)
	}
	return h.clearCaseIndex(ctx)
}

func (h *CaseHandler) clearCaseIndex(ctx context.Context) error {
	return h.storage.JSONWrite(ctx, h.storage.Keys().CaseIndex(), &domain.CaseIndex{})
}

// ContextBuild ensures the current case is known, loads its messages in
// (time_created, time_received) order, truncates to maxContextLen when
// truncate is set, and feeds each to the state machine hook.
func (h *CaseHandler) ContextBuild(ctx context.Context, truncate bool) ([]domain.Message, error) {
	if h.manifest == nil {
		if _, _, err := h.CaseDecide(ctx); err != nil {
			return nil, err
		}
	}

	messages, err := h.storage.LoadContext(ctx, h.manifest, h.maxContextLen, truncate)
	if err != nil {
		return nil, fmt.Errorf("loading context: %w", err)
	}

	if h.stateMachine != nil {
		for _, msg := range messages {
			h.stateMachine.IngestMessage(msg)
		}
	}

	h.context = messages
	return messages, nil
}

// ContextUpdate persists msg, appends it to the manifest, and writes its
// dedup marker, all under the user lock. The dedup marker is written last,
// inside the same critical section as the manifest append, so a crash
// between the two never leaves a message dedup-marked without being
// recorded in the manifest.
func (h *CaseHandler) ContextUpdate(ctx context.Context, msg domain.Message) error {
	if h.manifest == nil {
		return fmt.Errorf("no active case: call CaseDecide first")
	}

	lk, err := h.locker.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquiring user lock: %w", err)
	}
	defer lk.Release(ctx)

	if err := h.storage.MessageWrite(ctx, msg); err != nil {
		return fmt.Errorf("writing message: %w", err)
	}
	if err := h.storage.ManifestAppend(ctx, h.manifest, msg); err != nil {
		return fmt.Errorf("appending to manifest: %w", err)
	}
	if err := h.storage.DedupWrite(ctx, msg.Meta().IdempotencyKey); err != nil {
		return fmt.Errorf("writing dedup marker: %w", err)
	}

	h.context = append(h.context, msg)
	if h.stateMachine != nil {
		h.stateMachine.IngestMessage(msg)
	}
	return nil
}

// DedupAndIngestMessage maps an inbound WhatsApp message to a domain
// variant and persists it, unless its id has already been ingested.
// Returns (nil, nil) for a duplicate or an unmappable inbound message.
func (h *CaseHandler) DedupAndIngestMessage(ctx context.Context, wa InboundMessage, media *domain.MediaContent) (domain.Message, error) {
	if h.storage.DedupExists(ctx, wa.ID) {
		return nil, nil
	}

	if _, _, err := h.CaseDecide(ctx); err != nil {
		return nil, fmt.Errorf("deciding case: %w", err)
	}

	timeCreated := domain.UnixToUTCISO(wa.TimestampUnix)
	base := domain.Base{
		CaseID:         h.caseID,
		IdempotencyKey: wa.ID,
		TimeCreated:    timeCreated,
	}

	var msg domain.Message
	switch {
	case wa.Choice != nil:
		msg = domain.NewUserInteractiveReplyMsg(base, *wa.Choice)
	case wa.Text != "" || media != nil:
		var mediaData *domain.MediaData
		if media != nil {
			mediaData = domain.NewMediaData(media.Mime, wa.MediaName, media.Content)
		}
		built, err := domain.NewUserContentMsg(base, wa.Text, mediaData)
		if err != nil {
			return nil, fmt.Errorf("building user content message: %w", err)
		}
		msg = built
	default:
		return nil, nil
	}

	if err := h.ContextUpdate(ctx, msg); err != nil {
		return nil, err
	}

	if media != nil {
		userMsg, ok := msg.(*domain.UserContentMsg)
		if ok {
			lk, err := h.locker.Acquire(ctx)
			if err != nil {
				return nil, fmt.Errorf("acquiring user lock for media write: %w", err)
			}
			err = h.storage.MediaWrite(ctx, userMsg, *media)
			lk.Release(ctx)
			if err != nil {
				return nil, fmt.Errorf("writing media: %w", err)
			}
		}
	}

	return msg, nil
}

// SendText chunks and sends text, using the debug envelope (stderr-visible
// prefixed copy) instead of the live WhatsApp API when Debug is set.
func (h *CaseHandler) SendText(ctx context.Context, text string) error {
	if h.debug {
		log.Info().Str("user_id", h.userPhoneNumber).Str("text", text).Msg("📝 Text (debug, not sent)")
		return nil
	}
	return h.whatsapp.SendText(h.userPhoneNumber, text)
}

// SendInteractive sends a button/list message through the WhatsApp client,
// or logs it under the debug envelope.
func (h *CaseHandler) SendInteractive(ctx context.Context, msg *domain.ServerInteractiveOptsMsg) error {
	if h.debug {
		log.Info().Str("user_id", h.userPhoneNumber).Str("type", string(msg.Type)).Str("body", msg.Body).
			Msg("🔘 Interactive (debug, not sent)")
		return nil
	}
	return h.whatsapp.SendInteractive(h.userPhoneNumber, whatsappapi.NewInteractiveMessage(msg))
}

// ProcessMessage runs the configured ProcessMessageFunc hook, if any.
func (h *CaseHandler) ProcessMessage(ctx context.Context, msg domain.Message) (bool, error) {
	if h.processMessage == nil {
		return false, nil
	}
	return h.processMessage(ctx, h, msg)
}

// GenerateResponse runs the configured GenerateResponseFunc hook, if any.
func (h *CaseHandler) GenerateResponse(ctx context.Context, maxTokens int) (bool, error) {
	if h.generateResponse == nil {
		return false, nil
	}
	return h.generateResponse(ctx, h, maxTokens)
}
