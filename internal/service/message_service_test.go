package service

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/realtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSend_Validation(t *testing.T) {
	h := newHarness(t)
	conv := h.resolve(t, "alice", "bob")
	long := strings.Repeat("x", 4001)

	tests := []struct {
		name string
		in   SendInput
		want error
	}{
		{"missing client id", SendInput{Type: domain.MessageTypeText, Body: strPtr("hi")}, common.ErrInvalidArgument},
		{"unknown type", SendInput{ClientID: "k", Type: "sticker", Body: strPtr("hi")}, common.ErrValidation},
		{"empty body", SendInput{ClientID: "k", Type: domain.MessageTypeText, Body: strPtr("   ")}, common.ErrValidation},
		{"nil body", SendInput{ClientID: "k", Type: domain.MessageTypeText}, common.ErrValidation},
		{"image without url", SendInput{ClientID: "k", Type: domain.MessageTypeImage, Body: strPtr("caption")}, common.ErrValidation},
		{"text with media", SendInput{ClientID: "k", Type: domain.MessageTypeText, Body: strPtr("hi"), MediaURL: strPtr("https://x")}, common.ErrValidation},
		{"too long", SendInput{ClientID: "k", Type: domain.MessageTypeText, Body: &long}, common.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.in.ConversationID = conv
			tt.in.SenderActorID = "alice"
			_, err := h.messages.Send(context.Background(), tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	var count int64
	h.db.Model(&domain.Message{}).Count(&count)
	assert.Zero(t, count)
}

func TestSend_MediaMessage(t *testing.T) {
	h := newHarness(t)
	conv := h.resolve(t, "alice", "bob")

	v, err := h.messages.Send(context.Background(), SendInput{
		ConversationID: conv, SenderActorID: "alice", ClientID: "img1",
		Type: domain.MessageTypeImage, MediaURL: strPtr("https://cdn/a.png"),
	})
	require.NoError(t, err)
	assert.Nil(t, v.Body)
	assert.Equal(t, "https://cdn/a.png", *v.MediaURL)
}

func TestSend_Gate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	conv := h.resolve(t, "alice", "bob")

	_, err := h.messages.Send(ctx, SendInput{ConversationID: conv, SenderActorID: "carol", ClientID: "k1", Type: domain.MessageTypeText, Body: strPtr("hi")})
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = h.messages.Send(ctx, SendInput{ConversationID: "missing", SenderActorID: "alice", ClientID: "k1", Type: domain.MessageTypeText, Body: strPtr("hi")})
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestSend_BlockedByCounterpart(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	conv := h.resolve(t, "alice", "bob")

	_, err := h.blocks.Block(ctx, "bob", "alice")
	require.NoError(t, err)

	_, err = h.messages.Send(ctx, SendInput{ConversationID: conv, SenderActorID: "alice", ClientID: "k1", Type: domain.MessageTypeText, Body: strPtr("hi")})
	assert.ErrorIs(t, err, common.ErrForbidden)

	// memberships stay active; bob can still write to alice
	view, err := h.convs.Get(ctx, "alice", conv)
	require.NoError(t, err)
	for _, m := range view.Members {
		assert.True(t, m.IsActive)
	}
	h.send(t, conv, "bob", "k2", "still here")

	require.NoError(t, h.blocks.Unblock(ctx, "bob", "alice"))
	h.send(t, conv, "alice", "k1", "hi")
}

func TestSend_IdempotentOnClientID(t *testing.T) {
	h := newHarness(t)
	conv := h.resolve(t, "alice", "bob")

	first := h.send(t, conv, "alice", "k1", "hi")
	again := h.send(t, conv, "alice", "k1", "hi (retry)")
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, "hi", *again.Body)

	// another sender may reuse the token
	other := h.send(t, conv, "bob", "k1", "yo")
	assert.NotEqual(t, first.ID, other.ID)

	var count int64
	h.db.Model(&domain.Message{}).Where("client_id = ?", "k1").Count(&count)
	assert.Equal(t, int64(2), count)
}

func TestSend_CancelledIsNotApplied(t *testing.T) {
	h := newHarness(t)
	conv := h.resolve(t, "alice", "bob")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := h.messages.Send(ctx, SendInput{ConversationID: conv, SenderActorID: "alice", ClientID: "k1", Type: domain.MessageTypeText, Body: strPtr("hi")})
	assert.ErrorIs(t, err, context.Canceled)

	var count int64
	h.db.Model(&domain.Message{}).Count(&count)
	assert.Zero(t, count)
}

func TestSend_PublishesToConversationTopic(t *testing.T) {
	h := newHarness(t)
	conv := h.resolve(t, "alice", "bob")
	sub := h.hub.Subscribe(realtime.ConversationTopic(conv))
	defer sub.Close()

	sent := h.send(t, conv, "alice", "k1", "hi")

	select {
	case ev := <-sub.Events():
		assert.Equal(t, realtime.EventMessageCreated, ev.Type)
		assert.Equal(t, "alice", ev.Origin)
		var payload messageEvent
		require.NoError(t, json.Unmarshal(ev.Payload, &payload))
		assert.Equal(t, sent.ID, payload.Message.ID)
		assert.Equal(t, "k1", payload.Message.ClientID)
	case <-time.After(time.Second):
		t.Fatal("no message.created event")
	}
}

func TestEdit(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	conv := h.resolve(t, "alice", "bob")
	msg := h.send(t, conv, "alice", "k1", "hi")
	assert.False(t, msg.IsEdited)

	_, err := h.messages.Edit(ctx, "bob", msg.ID, "hacked")
	assert.ErrorIs(t, err, common.ErrForbidden)
	_, err = h.messages.Edit(ctx, "carol", msg.ID, "hacked")
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, err = h.messages.Edit(ctx, "alice", msg.ID, "  ")
	assert.ErrorIs(t, err, common.ErrValidation)
	_, err = h.messages.Edit(ctx, "alice", 9999, "x")
	assert.ErrorIs(t, err, common.ErrNotFound)

	edited, err := h.messages.Edit(ctx, "alice", msg.ID, "hello")
	require.NoError(t, err)
	assert.True(t, edited.IsEdited)
	assert.Equal(t, "hello", *edited.Body)
	firstEdit := *edited.EditedAt

	time.Sleep(2 * time.Millisecond)
	edited, err = h.messages.Edit(ctx, "alice", msg.ID, "hello!")
	require.NoError(t, err)
	assert.True(t, edited.EditedAt.After(firstEdit))

	_, err = h.messages.SoftDelete(ctx, "alice", msg.ID)
	require.NoError(t, err)
	_, err = h.messages.Edit(ctx, "alice", msg.ID, "resurrect")
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestSoftDelete(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	conv := h.resolve(t, "alice", "bob")
	msg := h.send(t, conv, "alice", "k1", "hi")
	_, err := h.messages.Edit(ctx, "alice", msg.ID, "hello")
	require.NoError(t, err)

	_, err = h.messages.SoftDelete(ctx, "bob", msg.ID)
	assert.ErrorIs(t, err, common.ErrForbidden)

	deleted, err := h.messages.SoftDelete(ctx, "alice", msg.ID)
	require.NoError(t, err)
	assert.True(t, deleted.IsDeleted)
	assert.False(t, deleted.IsEdited)
	assert.Nil(t, deleted.Body)
	assert.Nil(t, deleted.MediaURL)

	again, err := h.messages.SoftDelete(ctx, "alice", msg.ID)
	require.NoError(t, err)
	assert.True(t, again.IsDeleted)

	for _, reader := range []string{"alice", "bob"} {
		page, _, err := h.messages.List(ctx, reader, conv, ListQuery{})
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.True(t, page[0].IsDeleted)
		assert.False(t, page[0].IsEdited)
		assert.Nil(t, page[0].Body)
	}

	var stored domain.Message
	require.NoError(t, h.db.First(&stored, msg.ID).Error)
	require.NotNil(t, stored.DeletedByActorID)
	assert.Equal(t, "alice", *stored.DeletedByActorID)
}

func TestSoftDelete_Authorizer(t *testing.T) {
	h := newHarness(t, withAuthorizer(GroupOwnerAuthorizer{}))
	ctx := context.Background()

	// promote bob to a group owner in an ad hoc group conversation
	conv := h.resolve(t, "alice", "bob")
	require.NoError(t, h.db.Model(&domain.Conversation{}).Where("id = ?", conv).Update("is_group", true).Error)
	require.NoError(t, h.db.Model(&domain.ConversationMember{}).
		Where("conversation_id = ? AND actor_id = ?", conv, "bob").Update("role", domain.RoleOwner).Error)
	require.NoError(t, h.db.Model(&domain.ConversationMember{}).
		Where("conversation_id = ? AND actor_id = ?", conv, "alice").Update("role", domain.RoleMember).Error)

	msg := h.send(t, conv, "alice", "k1", "hi")
	deleted, err := h.messages.SoftDelete(ctx, "bob", msg.ID)
	require.NoError(t, err)
	assert.True(t, deleted.IsDeleted)

	reply := h.send(t, conv, "bob", "k2", "moderated")
	_, err = h.messages.SoftDelete(ctx, "alice", reply.ID)
	assert.ErrorIs(t, err, common.ErrForbidden)
}

func TestList_Paging(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	conv := h.resolve(t, "alice", "bob")

	var sent []*domain.MessageView
	for i := 0; i < 5; i++ {
		sender := "alice"
		if i%2 == 1 {
			sender = "bob"
		}
		sent = append(sent, h.send(t, conv, sender, "k"+string(rune('0'+i)), "m"))
	}

	page, meta, err := h.messages.List(ctx, "bob", conv, ListQuery{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, sent[3].ID, page[0].ID)
	assert.Equal(t, sent[4].ID, page[1].ID)
	assert.True(t, meta.HasMore)
	assert.Equal(t, sent[3].ID, meta.NextBefore)

	page, meta, err = h.messages.List(ctx, "bob", conv, ListQuery{Limit: 2, BeforeID: meta.NextBefore})
	require.NoError(t, err)
	assert.Equal(t, []uint64{sent[1].ID, sent[2].ID}, []uint64{page[0].ID, page[1].ID})

	page, meta, err = h.messages.List(ctx, "bob", conv, ListQuery{Limit: 2, BeforeID: meta.NextBefore})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.False(t, meta.HasMore)

	_, _, err = h.messages.List(ctx, "carol", conv, ListQuery{})
	assert.ErrorIs(t, err, common.ErrNotFound)

	other := h.resolve(t, "alice", "carol")
	foreign := h.send(t, other, "alice", "z", "elsewhere")
	_, _, err = h.messages.List(ctx, "bob", conv, ListQuery{BeforeID: foreign.ID})
	assert.ErrorIs(t, err, common.ErrInvalidArgument)
}
