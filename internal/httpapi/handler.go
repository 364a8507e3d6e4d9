// Package httpapi implements the thin WhatsApp Cloud API webhook front end:
// the GET verification handshake and the POST handler that authenticates
// the payload and enqueues it for the worker, nothing more.
package httpapi

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"caseflow/internal/config"
	"caseflow/internal/metrics"
	"caseflow/internal/queue"
	"caseflow/internal/types"
	"caseflow/internal/utils"
	"caseflow/internal/whatsappapi"
)

// Handler wires the webhook routes onto a gin engine.
type Handler struct {
	cfg      *config.WhatsAppConfig
	queue    *queue.Store
	whatsapp whatsappapi.Client
	metrics  *metrics.Registry
}

func New(cfg *config.WhatsAppConfig, q *queue.Store, wa whatsappapi.Client, reg *metrics.Registry) *Handler {
	return &Handler{cfg: cfg, queue: q, whatsapp: wa, metrics: reg}
}

// Register mounts the webhook routes under r.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/webhook", h.Verify)
	r.POST("/webhook", h.Ingest)
}

// Verify answers the WhatsApp Cloud API subscription handshake:
// GET /webhook?hub.mode=subscribe&hub.verify_token=...&hub.challenge=...
func (h *Handler) Verify(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode != "subscribe" || token != h.cfg.VerifyToken {
		h.metrics.RecordWebhookRequest("verify_rejected")
		c.Status(http.StatusForbidden)
		return
	}
	h.metrics.RecordWebhookRequest("verify_ok")
	c.String(http.StatusOK, challenge)
}

// Ingest authenticates the payload signature and enqueues the raw body
// onto the durable local queue. It does not parse or process the payload;
// that is entirely the worker's job.
func (h *Handler) Ingest(c *gin.Context) {
	timer := h.metrics.WebhookTimer()
	defer timer.ObserveDuration()

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.metrics.RecordWebhookRequest("read_error")
		utils.SendErrorResponse(c, types.NewAPIError(types.ErrorCodeValidationFailed, "could not read request body", http.StatusBadRequest))
		return
	}

	signature := c.GetHeader("X-Hub-Signature-256")
	if !h.whatsapp.VerifyWebhookSignature(body, signature) {
		h.metrics.RecordWebhookRequest("signature_invalid")
		log.Warn().Msg("rejecting webhook request with invalid signature")
		utils.SendErrorResponse(c, types.ErrUnauthorized)
		return
	}

	inserted, err := h.queue.Enqueue(string(body))
	if err != nil {
		h.metrics.RecordWebhookRequest("enqueue_error")
		log.Error().Err(err).Msg("failed to enqueue webhook payload")
		utils.SendErrorResponse(c, types.NewAPIError(types.ErrorCodeQueueError, "failed to enqueue webhook payload", http.StatusInternalServerError))
		return
	}

	status := "enqueued"
	if !inserted {
		status = "duplicate"
	}
	h.metrics.RecordJobEnqueued(status)
	h.metrics.RecordWebhookRequest(status)
	utils.SendSuccessResponse(c, gin.H{"status": status})
}
