package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caseflow/internal/domain"
)

func fixedTime(offsetSeconds int) time.Time {
	return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(offsetSeconds) * time.Second)
}

func newTestStorage() (*Storage, *fakeBackend) {
	backend := newFakeBackend()
	return New(backend, "OP1", "U1"), backend
}

func TestGetNextCaseID_NoExistingCases(t *testing.T) {
	s, _ := newTestStorage()
	ctx := context.Background()

	next, err := s.GetNextCaseID(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, next)
}

func TestGetNextCaseID_ReturnsMaxPlusOne(t *testing.T) {
	s, backend := newTestStorage()
	ctx := context.Background()

	backend.objects[s.Keys().Manifest(1)] = []byte("{}")
	backend.objects[s.Keys().Manifest(7)] = []byte("{}")
	backend.objects[s.Keys().Manifest(3)] = []byte("{}")

	next, err := s.GetNextCaseID(ctx)
	require.NoError(t, err)
	assert.Equal(t, 8, next)
}

func TestManifestAppend_DeduplicatesMessageIDs(t *testing.T) {
	s, _ := newTestStorage()
	s.SetCaseID(1)
	ctx := context.Background()

	m := domain.NewCaseManifest(1)
	msg, err := domain.NewUserContentMsg(domain.Base{
		TimeCreated:  "2026-01-01T00:00:00Z",
		TimeReceived: "2026-01-01T00:00:00Z",
	}, "hello", nil)
	require.NoError(t, err)

	require.NoError(t, s.ManifestAppend(ctx, m, msg))
	require.NoError(t, s.ManifestAppend(ctx, m, msg))

	assert.Equal(t, []string{msg.ID}, m.MessageIDs)
	assert.Equal(t, "2026-01-01T00:00:00Z", m.TimeLastMessage)
}

func TestManifestAppend_BumpsTimeLastMessageToLatest(t *testing.T) {
	s, _ := newTestStorage()
	s.SetCaseID(1)
	ctx := context.Background()

	m := domain.NewCaseManifest(1)
	earlier, err := domain.NewUserContentMsg(domain.Base{
		TimeCreated: "2026-01-01T00:00:00Z", TimeReceived: "2026-01-01T00:00:00Z",
	}, "first", nil)
	require.NoError(t, err)
	later, err := domain.NewUserContentMsg(domain.Base{
		TimeCreated: "2026-01-01T01:00:00Z", TimeReceived: "2026-01-01T01:00:00Z",
	}, "second", nil)
	require.NoError(t, err)

	require.NoError(t, s.ManifestAppend(ctx, m, earlier))
	require.NoError(t, s.ManifestAppend(ctx, m, later))

	assert.Equal(t, "2026-01-01T01:00:00Z", m.TimeLastMessage)
	assert.Equal(t, []string{earlier.ID, later.ID}, m.MessageIDs)
}

func TestMessageRead_UnknownBasemodelTreatedAsAbsent(t *testing.T) {
	s, backend := newTestStorage()
	s.SetCaseID(1)
	ctx := context.Background()

	backend.objects[s.Keys().Message(1, "bad-id")] = []byte(`{"basemodel":"NotARealTag"}`)

	msg, err := s.MessageRead(ctx, "bad-id")
	require.NoError(t, err)
	assert.Nil(t, msg)
}

func TestMessageRead_MissingReturnsNil(t *testing.T) {
	s, _ := newTestStorage()
	s.SetCaseID(1)
	ctx := context.Background()

	msg, err := s.MessageRead(ctx, "does-not-exist")
	require.NoError(t, err)
	assert.Nil(t, msg)
}

func TestMediaWrite_FirstWriterWins(t *testing.T) {
	s, backend := newTestStorage()
	s.SetCaseID(1)
	ctx := context.Background()

	media := domain.NewMediaData("image/jpeg", "photo.jpg", []byte("first"))
	msg, err := domain.NewUserContentMsg(domain.Base{}, "", media)
	require.NoError(t, err)

	require.NoError(t, s.MediaWrite(ctx, msg, domain.MediaContent{Mime: "image/jpeg", Content: []byte("first")}))
	require.NoError(t, s.MediaWrite(ctx, msg, domain.MediaContent{Mime: "image/jpeg", Content: []byte("second")}))

	stored := backend.objects[s.Keys().Media(1, msg.Media.Name)]
	assert.Equal(t, "first", string(stored))
}

func TestLoadContext_SortsAndTruncates(t *testing.T) {
	s, _ := newTestStorage()
	s.SetCaseID(1)
	ctx := context.Background()

	m := domain.NewCaseManifest(1)
	for i := 0; i < 25; i++ {
		ts := domain.FormatUTCISO(fixedTime(i))
		msg, err := domain.NewUserContentMsg(domain.Base{TimeCreated: ts, TimeReceived: ts}, "msg", nil)
		require.NoError(t, err)
		require.NoError(t, s.MessageWrite(ctx, msg))
		m.MessageIDs = append(m.MessageIDs, msg.ID)
	}

	messages, err := s.LoadContext(ctx, m, 20, true)
	require.NoError(t, err)
	assert.Len(t, messages, 20)

	// the 20 kept should be the most recent 20 (indices 5..24)
	first := messages[0].Meta()
	assert.Equal(t, domain.FormatUTCISO(fixedTime(5)), first.TimeCreated)
}
