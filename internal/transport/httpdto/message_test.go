package httpdto

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"cute-chat/internal/domain/message"
	"cute-chat/internal/domain/user"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultBubble(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := message.Record{
		ID:        "m1",
		CreatedAt: at,
		Text:      "hi",
		Image:     "https://img/a.png",
		Sender:    &user.Ref{ID: "u1", Name: "Alice"},
		ReadByIDs: message.ReadBySet([]string{"u2", "u1"}),
		Delivery:  message.DeliveryPending,
	}

	dto := DefaultBubble(rec)
	assert.Equal(t, "m1", dto.ID)
	assert.Equal(t, "2024-03-01T12:00:00Z", dto.CreatedAt)
	assert.Equal(t, "pending", dto.Status)
	assert.Equal(t, []string{"u1", "u2"}, dto.ReadBy)
	require.NotNil(t, dto.User)
	assert.Equal(t, "Alice", dto.User.Name)
	assert.False(t, dto.System)

	system := DefaultBubble(message.Record{ID: "s1", CreatedAt: at, IsSystem: true, Delivery: message.DeliveryConfirmed})
	assert.Nil(t, system.User)
	assert.True(t, system.System)
}

func TestRenderList_CustomRenderer(t *testing.T) {
	records := []message.Record{{ID: "b"}, {ID: "a"}}
	out := RenderList(records, func(rec message.Record) MessageDTO {
		return MessageDTO{ID: "custom-" + rec.ID}
	})
	require.Len(t, out, 2)
	assert.Equal(t, "custom-b", out[0].ID)
	assert.Equal(t, "custom-a", out[1].ID)

	assert.Len(t, RenderList(records, nil), 2)
}

func TestFrames_JSON(t *testing.T) {
	raw, err := json.Marshal(LoadingFrame(false))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"loading","loading":false}`, string(raw))

	raw, err = json.Marshal(MessagesFrame(nil, false))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"messages","has_earlier":false}`, string(raw))

	raw, err = json.Marshal(SendFailedFrame("d1", errors.New("offline")))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"send_failed","draft_id":"d1","error":"offline"}`, string(raw))

	raw, err = json.Marshal(ViewersFrame([]string{"u1", "u2"}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"viewers","viewers":["u1","u2"]}`, string(raw))
}

func TestClientFrame_Draft(t *testing.T) {
	viewer := user.Ref{ID: "u1", Name: "Alice"}
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	var f ClientFrame
	require.NoError(t, json.Unmarshal([]byte(`{"type":"send","text":"hello"}`), &f))
	d := f.Draft(viewer, now)
	assert.NotEmpty(t, d.ID)
	assert.Equal(t, now, d.CreatedAt)
	assert.Equal(t, "hello", d.Text)
	assert.Equal(t, viewer, d.Sender)
	assert.NoError(t, d.Validate())

	require.NoError(t, json.Unmarshal([]byte(`{"type":"send","id":"m9","text":"x","created_at":"2024-02-01T00:00:00Z"}`), &f))
	d = f.Draft(viewer, now)
	assert.Equal(t, "m9", d.ID)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), d.CreatedAt.UTC())
}
