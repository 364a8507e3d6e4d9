package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUserContentMsg_RequiresTextOrMedia(t *testing.T) {
	_, err := NewUserContentMsg(Base{}, "", nil)
	assert.Error(t, err)
}

func TestNewUserContentMsg_RenamesMediaToMessageID(t *testing.T) {
	media := &MediaData{Mime: "image/jpeg", Name: "photo.jpg"}
	msg, err := NewUserContentMsg(Base{TimeReceived: "2026-01-01T00:00:00Z"}, "", media)
	require.NoError(t, err)
	assert.Equal(t, msg.ID+".jpg", msg.Media.Name)
}

func TestDeriveMessageID(t *testing.T) {
	id := DeriveMessageID("2026-01-01T00:00:00.123Z", BasemodelUserContent)
	assert.Equal(t, "2026-01-01_00-00-00-123_UserContentMsg", id)
}

func TestServerInteractiveOptsMsg_ButtonOptionCaps(t *testing.T) {
	opts := make([]InteractiveOption, 3)
	for i := range opts {
		opts[i] = InteractiveOption{ID: "o", Title: "t"}
	}
	_, err := NewServerInteractiveOptsMsg(Base{}, InteractiveOptsButton, "body", opts, "", "", "")
	assert.NoError(t, err)

	tooMany := append(opts, InteractiveOption{ID: "o4", Title: "t4"})
	_, err = NewServerInteractiveOptsMsg(Base{}, InteractiveOptsButton, "body", tooMany, "", "", "")
	assert.Error(t, err)
}

func TestServerInteractiveOptsMsg_ListOptionCaps(t *testing.T) {
	opts := make([]InteractiveOption, 10)
	for i := range opts {
		opts[i] = InteractiveOption{ID: "o", Title: "t"}
	}
	_, err := NewServerInteractiveOptsMsg(Base{}, InteractiveOptsList, "body", opts, "", "", "")
	assert.NoError(t, err)

	tooMany := append(opts, InteractiveOption{ID: "o11", Title: "t11"})
	_, err = NewServerInteractiveOptsMsg(Base{}, InteractiveOptsList, "body", tooMany, "", "", "")
	assert.Error(t, err)
}

func TestNewAssistantMsg_RejectsEmpty(t *testing.T) {
	_, err := NewAssistantMsg(Base{}, "", nil, nil, "")
	assert.Error(t, err)
}

func TestNewAssistantMsg_AcceptsToolCallsOnly(t *testing.T) {
	msg, err := NewAssistantMsg(Base{}, "", []ToolCall{{ID: "t1", Name: "lookup"}}, nil, "")
	require.NoError(t, err)
	assert.Equal(t, BasemodelAssistant, msg.Basemodel())
}

func TestUnmarshalMessage_RoundTrip(t *testing.T) {
	original, err := NewUserContentMsg(Base{TimeReceived: "2026-01-01T00:00:00Z"}, "hi", nil)
	require.NoError(t, err)

	raw, err := json.Marshal(original)
	require.NoError(t, err)

	rehydrated, err := UnmarshalMessage(raw)
	require.NoError(t, err)

	back, ok := rehydrated.(*UserContentMsg)
	require.True(t, ok)
	assert.Equal(t, original.Text, back.Text)
	assert.Equal(t, original.ID, back.ID)
}

func TestUnmarshalMessage_UnknownTagIsError(t *testing.T) {
	_, err := UnmarshalMessage([]byte(`{"basemodel":"NotRealMsg"}`))
	assert.Error(t, err)
}

func TestUserData_AppendNameIsUniqueAndOrdered(t *testing.T) {
	u := NewUserData("U1")
	assert.True(t, u.AppendName("Ada"))
	assert.False(t, u.AppendName("Ada"))
	assert.True(t, u.AppendName("Grace"))
	assert.Equal(t, []string{"Ada", "Grace"}, u.Names)
}
