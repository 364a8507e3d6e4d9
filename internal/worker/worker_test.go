package worker

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caseflow/internal/casehandler"
	"caseflow/internal/domain"
	"caseflow/internal/lock"
	"caseflow/internal/metrics"
	"caseflow/internal/objectstore"
	"caseflow/internal/queue"
	"caseflow/internal/storage"
	"caseflow/internal/whatsappapi"
)

type fakeBackend struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeBackend() *fakeBackend { return &fakeBackend{objects: make(map[string][]byte)} }

func (f *fakeBackend) Head(_ context.Context, key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[key]
	return ok
}

func (f *fakeBackend) Get(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.objects[key], nil
}

func (f *fakeBackend) Put(_ context.Context, key string, body []byte, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = body
	return nil
}

func (f *fakeBackend) PutJSON(ctx context.Context, key string, obj any) error {
	body, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	return f.Put(ctx, key, body, "application/json")
}

func (f *fakeBackend) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

func (f *fakeBackend) ListObjects(_ context.Context, prefix string) ([]objectstore.Object, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []objectstore.Object
	for key := range f.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, objectstore.Object{Key: key, LastModifiedUnix: float64(time.Now().Unix())})
		}
	}
	return out, nil
}

func (f *fakeBackend) ListDirectories(_ context.Context, prefix string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	seen := map[string]bool{}
	var out []string
	for key := range f.objects {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		rest := key[len(prefix):]
		if idx := strings.Index(rest, "/"); idx >= 0 {
			rest = rest[:idx]
		}
		if rest != "" && !seen[rest] {
			seen[rest] = true
			out = append(out, rest)
		}
	}
	return out, nil
}

type fakeWhatsApp struct {
	mu       sync.Mutex
	sentText []string
}

func (f *fakeWhatsApp) SendText(_ string, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sentText = append(f.sentText, text)
	return nil
}
func (f *fakeWhatsApp) SendInteractive(string, whatsappapi.InteractiveMessage) error { return nil }
func (f *fakeWhatsApp) SendMedia(string, domain.MediaContent, string) error          { return nil }
func (f *fakeWhatsApp) FetchMedia(string) (domain.MediaContent, error) {
	return domain.MediaContent{}, nil
}
func (f *fakeWhatsApp) VerifyWebhookSignature([]byte, string) bool { return true }

type countingHooks struct {
	mu       sync.Mutex
	replies  int
	maxTurns int
}

func (h *countingHooks) ProcessMessage(_ context.Context, _ *casehandler.CaseHandler, msg domain.Message) (bool, error) {
	switch msg.(type) {
	case *domain.UserContentMsg, *domain.UserInteractiveReplyMsg:
		return true, nil
	default:
		return false, nil
	}
}

func (h *countingHooks) GenerateResponse(ctx context.Context, ch *casehandler.CaseHandler, _ int) (bool, error) {
	h.mu.Lock()
	h.replies++
	turn := h.replies
	h.mu.Unlock()
	if turn > h.maxTurns {
		return false, nil
	}
	if err := ch.SendText(ctx, "reply"); err != nil {
		return false, err
	}
	return true, nil
}

func newTestWorker(t *testing.T, hooks *countingHooks) (*Worker, *queue.Store, *fakeBackend, *fakeWhatsApp) {
	t.Helper()
	backend := newFakeBackend()
	wa := &fakeWhatsApp{}
	store, err := queue.Open("file::memory:?cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	factory := func(operatorID, userID, userPhoneNumber string) *casehandler.CaseHandler {
		s := storage.New(backend, operatorID, userID)
		locker := lock.New(backend, s.Keys().LocksDir(), time.Second, 10*time.Millisecond, time.Second)
		return casehandler.New(casehandler.Config{
			Storage:          s,
			Locker:           locker,
			WhatsApp:         wa,
			UserPhoneNumber:  userPhoneNumber,
			ProcessMessage:   hooks.ProcessMessage,
			GenerateResponse: hooks.GenerateResponse,
		})
	}

	reg := metrics.New()
	w := New(store, wa, factory, reg, time.Millisecond, time.Millisecond, 10*time.Millisecond)
	return w, store, backend, wa
}

const textWebhookPayload = `{
  "object": "whatsapp_business_account",
  "entry": [{
    "id": "E1",
    "changes": [{
      "field": "messages",
      "value": {
        "messaging_product": "whatsapp",
        "metadata": {"display_phone_number": "1555", "phone_number_id": "OP1"},
        "contacts": [{"wa_id": "U1", "profile": {"name": "Ada"}}],
        "messages": [{"from": "U1", "id": "wamid.A", "timestamp": "1700000000", "type": "text", "text": {"body": "hi"}}]
      }
    }]
  }]
}`

func TestIngestionStep_PersistsMessageAndSchedulesResponse(t *testing.T) {
	hooks := &countingHooks{maxTurns: 0}
	w, store, backend, _ := newTestWorker(t, hooks)

	inserted, err := store.Enqueue(textWebhookPayload)
	require.NoError(t, err)
	require.True(t, inserted)

	didWork, err := w.ingestionStep(context.Background())
	require.NoError(t, err)
	assert.True(t, didWork)
	assert.True(t, w.hasPendingJobs())

	assert.True(t, backend.Head(context.Background(), "OP1/U1/case_index.json"))
}

func TestResponseStep_RunsUntilFalseThenClearsJob(t *testing.T) {
	hooks := &countingHooks{maxTurns: 2}
	w, store, _, wa := newTestWorker(t, hooks)

	_, err := store.Enqueue(textWebhookPayload)
	require.NoError(t, err)
	_, err = w.ingestionStep(context.Background())
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	didWork, err := w.responseStep(context.Background())
	require.NoError(t, err)
	assert.True(t, didWork)
	assert.False(t, w.hasPendingJobs())
	assert.Equal(t, []string{"reply", "reply"}, wa.sentText)
}

func TestIngestionStep_NoPendingRowsReturnsFalse(t *testing.T) {
	hooks := &countingHooks{}
	w, _, _, _ := newTestWorker(t, hooks)

	didWork, err := w.ingestionStep(context.Background())
	require.NoError(t, err)
	assert.False(t, didWork)
}
