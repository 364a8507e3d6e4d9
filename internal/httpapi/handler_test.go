package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caseflow/internal/config"
	"caseflow/internal/domain"
	"caseflow/internal/metrics"
	"caseflow/internal/queue"
	"caseflow/internal/whatsappapi"
)

type rejectingWhatsApp struct{}

func (rejectingWhatsApp) SendText(string, string) error                               { return nil }
func (rejectingWhatsApp) SendInteractive(string, whatsappapi.InteractiveMessage) error { return nil }
func (rejectingWhatsApp) SendMedia(string, domain.MediaContent, string) error          { return nil }
func (rejectingWhatsApp) FetchMedia(string) (domain.MediaContent, error) {
	return domain.MediaContent{}, nil
}
func (rejectingWhatsApp) VerifyWebhookSignature([]byte, string) bool { return false }

type acceptingWhatsApp struct{}

func (acceptingWhatsApp) SendText(string, string) error                               { return nil }
func (acceptingWhatsApp) SendInteractive(string, whatsappapi.InteractiveMessage) error { return nil }
func (acceptingWhatsApp) SendMedia(string, domain.MediaContent, string) error          { return nil }
func (acceptingWhatsApp) FetchMedia(string) (domain.MediaContent, error) {
	return domain.MediaContent{}, nil
}
func (acceptingWhatsApp) VerifyWebhookSignature([]byte, string) bool { return true }

func TestVerify_CorrectTokenEchoesChallenge(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := &Handler{cfg: &config.WhatsAppConfig{VerifyToken: "secret-token"}, metrics: metrics.New()}
	h.Register(r)

	req := httptest.NewRequest(http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=secret-token&hub.challenge=123", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "123", rec.Body.String())
}

func TestVerify_WrongTokenRejected(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := &Handler{cfg: &config.WhatsAppConfig{VerifyToken: "secret-token"}, metrics: metrics.New()}
	h.Register(r)

	req := httptest.NewRequest(http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=123", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestIngest_InvalidSignatureRejected(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store, err := queue.Open("file::memory:?cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	r := gin.New()
	h := New(&config.WhatsAppConfig{VerifyToken: "t"}, store, rejectingWhatsApp{}, metrics.New())
	h.Register(r)

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"object":"whatsapp_business_account"}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestIngest_ValidSignatureEnqueuesPayload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store, err := queue.Open("file::memory:?cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	r := gin.New()
	h := New(&config.WhatsAppConfig{VerifyToken: "t"}, store, acceptingWhatsApp{}, metrics.New())
	h.Register(r)

	payload := `{"object":"whatsapp_business_account"}`
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	claimed, err := store.ClaimNext()
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, payload, claimed.Payload)
}

func TestIngest_DuplicatePayloadStillReturnsOK(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store, err := queue.Open("file::memory:?cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	r := gin.New()
	h := New(&config.WhatsAppConfig{VerifyToken: "t"}, store, acceptingWhatsApp{}, metrics.New())
	h.Register(r)

	payload := `{"object":"whatsapp_business_account","entry":[]}`
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(payload))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}
