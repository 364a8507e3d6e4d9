// Package worker runs the single cooperative polling loop that drains the
// durable local queue, ingests WhatsApp webhook payloads into cases, and
// runs coalesced response-generation passes.
package worker

import (
	"context"
	"fmt"
	"mime"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"caseflow/internal/casehandler"
	"caseflow/internal/domain"
	"caseflow/internal/metrics"
	"caseflow/internal/queue"
	"caseflow/internal/utils"
	"caseflow/internal/webhook"
	"caseflow/internal/whatsappapi"
)

// HandlerFactory builds a fresh CaseHandler scoped to one (operator, user)
// pair. Workers never reuse a handler across iterations; in-memory handler
// state is not shared across passes or goroutines.
type HandlerFactory func(operatorID, userID, userPhoneNumber string) *casehandler.CaseHandler

type jobKey struct {
	operatorID string
	userID     string
}

// Worker is the single-threaded loop described by the response-coalescing
// model: an ingestion step that drains the queue, and a response step that
// fires generate_response passes for users whose coalescing delay elapsed.
type Worker struct {
	queue      *queue.Store
	whatsapp   whatsappapi.Client
	newHandler HandlerFactory
	metrics    *metrics.Registry

	pollBusy      time.Duration
	pollIdle      time.Duration
	responseDelay time.Duration

	mu     sync.Mutex
	jobDue map[jobKey]time.Time
}

func New(store *queue.Store, wa whatsappapi.Client, factory HandlerFactory, reg *metrics.Registry, pollBusy, pollIdle, responseDelay time.Duration) *Worker {
	return &Worker{
		queue:         store,
		whatsapp:      wa,
		newHandler:    factory,
		metrics:       reg,
		pollBusy:      pollBusy,
		pollIdle:      pollIdle,
		responseDelay: responseDelay,
		jobDue:        make(map[jobKey]time.Time),
	}
}

// Run blocks, iterating until ctx is cancelled. Cancellation is cooperative:
// it is only observed between iterations, never during an in-flight I/O
// call, matching the source's stop_flag semantics.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("worker stopping")
			return
		default:
		}

		didWork, err := w.tick(ctx)
		if err != nil {
			log.Error().Err(err).Msg("worker iteration failed")
		}

		// Go's garbage collector runs concurrently with the mutator and is
		// paced by allocation rate, not by an explicit per-iteration
		// trigger; forcing a collection here would fight the scheduler
		// rather than smooth latency, so there is no runtime.GC() call.

		interval := w.pollIdle
		if didWork || w.hasPendingJobs() {
			interval = w.pollBusy
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

func (w *Worker) hasPendingJobs() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.jobDue) > 0
}

func (w *Worker) tick(ctx context.Context) (bool, error) {
	ingested, err := w.ingestionStep(ctx)
	if err != nil {
		return ingested, err
	}
	responded, err := w.responseStep(ctx)
	return ingested || responded, err
}

// ingestionStep claims at most one queue row and processes its payload.
func (w *Worker) ingestionStep(ctx context.Context) (bool, error) {
	timer := w.metrics.ClaimTimer()
	claimed, err := w.queue.ClaimNext()
	timer.ObserveDuration()
	if err != nil {
		return false, fmt.Errorf("claiming next job: %w", err)
	}
	if claimed == nil {
		return false, nil
	}
	w.metrics.RecordJobClaimed()

	if err := w.processPayload(ctx, claimed.Payload); err != nil {
		w.metrics.RecordJobFailed("ingest")
		if markErr := w.queue.MarkError(claimed.RowID, err.Error()); markErr != nil {
			log.Error().Err(markErr).Str("row_id", claimed.RowID).Msg("failed to mark job errored")
		}
		return true, err
	}

	if err := w.queue.MarkDone(claimed.RowID); err != nil {
		return true, fmt.Errorf("marking job done: %w", err)
	}
	return true, nil
}

func (w *Worker) processPayload(ctx context.Context, payload string) error {
	env, err := webhook.Parse([]byte(payload))
	if err != nil {
		return fmt.Errorf("parsing webhook payload: %w", err)
	}

	for _, entry := range env.Entry {
		for _, change := range entry.Changes {
			if err := w.processChange(ctx, change.Value); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *Worker) processChange(ctx context.Context, value webhook.Value) error {
	operatorID := value.Metadata.PhoneNumberID

	byUser := make(map[string][]webhook.Message)
	for _, m := range value.Messages {
		byUser[m.From] = append(byUser[m.From], m)
	}

	for _, contact := range value.Contacts {
		userID := contact.WAID
		msgs := byUser[userID]
		if len(msgs) == 0 {
			continue
		}
		if err := utils.ValidatePhoneNumber(userID); err != nil {
			log.Warn().Err(err).Str("wa_id", userID).Msg("contact wa_id is not an E.164 phone number")
		}

		h := w.newHandler(operatorID, userID, userID)
		if contact.Profile.Name != "" {
			if _, err := h.UserDataLookup(ctx, contact.Profile.Name); err != nil {
				return fmt.Errorf("resolving user data for %s: %w", userID, err)
			}
		}

		respond := false
		for _, wm := range msgs {
			ingested, err := w.ingestOne(ctx, h, wm)
			if err != nil {
				return fmt.Errorf("ingesting message %s: %w", wm.ID, err)
			}
			if ingested == nil {
				continue
			}
			ok, err := h.ProcessMessage(ctx, ingested)
			if err != nil {
				return fmt.Errorf("processing message %s: %w", wm.ID, err)
			}
			if ok {
				respond = true
			}
		}

		if respond {
			w.scheduleResponse(operatorID, userID)
		}
	}
	return nil
}

func (w *Worker) ingestOne(ctx context.Context, h *casehandler.CaseHandler, wm webhook.Message) (domain.Message, error) {
	text := wm.Caption()
	if text != "" {
		if sanitized, err := utils.SanitizeMessage(text); err == nil {
			text = sanitized
		} else {
			log.Warn().Err(err).Str("message_id", wm.ID).Msg("dropping unsanitizable message text")
			text = ""
		}
	}

	inbound := casehandler.InboundMessage{
		ID:            wm.ID,
		TimestampUnix: wm.Timestamp,
		Text:          text,
	}

	if wm.Interactive != nil {
		var reply *webhook.ReplyPayload
		switch wm.Interactive.Type {
		case "button_reply":
			reply = wm.Interactive.ButtonReply
		case "list_reply":
			reply = wm.Interactive.ListReply
		}
		if reply != nil {
			inbound.Choice = &domain.InteractiveChoice{ID: reply.ID, Title: reply.Title}
		}
	}

	var media *domain.MediaContent
	if payload, kind := wm.MediaPayloadOf(); payload != nil {
		content, err := w.whatsapp.FetchMedia(payload.ID)
		if err != nil {
			return nil, fmt.Errorf("fetching %s media %s: %w", kind, payload.ID, err)
		}
		media = &content
		inbound.MediaName = wm.ID + extensionFor(content.Mime)
	}

	return h.DedupAndIngestMessage(ctx, inbound, media)
}

func extensionFor(mimeType string) string {
	if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}

func (w *Worker) scheduleResponse(operatorID, userID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.jobDue[jobKey{operatorID, userID}] = time.Now().Add(w.responseDelay)
}

// responseStep runs generate_response to completion for every job whose
// coalescing delay has elapsed.
func (w *Worker) responseStep(ctx context.Context) (bool, error) {
	due := w.dueJobs()
	if len(due) == 0 {
		return false, nil
	}

	for _, key := range due {
		h := w.newHandler(key.operatorID, key.userID, key.userID)
		for {
			more, err := h.GenerateResponse(ctx, 0)
			if err != nil {
				w.metrics.RecordJobFailed("respond")
				log.Error().Err(err).Str("operator", key.operatorID).Str("user", key.userID).
					Msg("generate_response failed")
				break
			}
			if !more {
				break
			}
		}
		w.clearJob(key)
	}
	return true, nil
}

func (w *Worker) dueJobs() []jobKey {
	w.mu.Lock()
	defer w.mu.Unlock()
	now := time.Now()
	var due []jobKey
	for key, at := range w.jobDue {
		if !now.Before(at) {
			due = append(due, key)
		}
	}
	return due
}

func (w *Worker) clearJob(key jobKey) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.jobDue, key)
}
