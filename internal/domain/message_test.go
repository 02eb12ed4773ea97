package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func TestMessageView_DeletedMasksEverything(t *testing.T) {
	now := time.Now().UTC()
	msg := &Message{
		ID:       7,
		Type:     MessageTypeImage,
		Body:     strPtr("caption"),
		MediaURL: strPtr("https://cdn/img.png"),
		ClientID: "k1",
		EditedAt: &now,
	}

	v := msg.View()
	assert.True(t, v.IsEdited)
	assert.Equal(t, "caption", *v.Body)

	msg.DeletedAt = &now
	v = msg.View()
	assert.True(t, v.IsDeleted)
	assert.False(t, v.IsEdited)
	assert.Nil(t, v.Body)
	assert.Nil(t, v.MediaURL)
	assert.Nil(t, v.EditedAt)
	assert.Equal(t, "k1", v.ClientID)
}

func TestMessage_Before(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	a := &Message{ID: 1, CreatedAt: ts}
	b := &Message{ID: 2, CreatedAt: ts}
	c := &Message{ID: 0, CreatedAt: ts.Add(time.Microsecond)}

	assert.True(t, a.Before(b))
	assert.False(t, b.Before(a))
	assert.True(t, b.Before(c))
	assert.False(t, a.Before(a))
}

func TestMessage_Preview(t *testing.T) {
	assert.Equal(t, "hi", (&Message{Type: MessageTypeText, Body: strPtr("  hi ")}).Preview())
	assert.Equal(t, "[video]", (&Message{Type: MessageTypeVideo}).Preview())

	long := strings.Repeat("가", 100)
	p := (&Message{Type: MessageTypeText, Body: &long}).Preview()
	assert.True(t, strings.HasSuffix(p, "…"))
	assert.Equal(t, previewRunes+1, len([]rune(p)))

	now := time.Now()
	assert.Empty(t, (&Message{Type: MessageTypeText, Body: strPtr("x"), DeletedAt: &now}).Preview())
}

func TestMessageType(t *testing.T) {
	assert.True(t, MessageTypeText.Valid())
	assert.False(t, MessageTypeText.IsMedia())
	assert.True(t, MessageTypeFile.IsMedia())
	assert.False(t, MessageType("sticker").Valid())
}
