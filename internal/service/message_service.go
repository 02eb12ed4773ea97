package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/internal/config"
	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/metrics"
	"github.com/damoang/angple-messenger/internal/realtime"
	"github.com/damoang/angple-messenger/internal/repository"
	"github.com/damoang/angple-messenger/pkg/logger"
)

// SendInput is one send attempt. ClientID makes retries idempotent.
type SendInput struct {
	Body           *string
	MediaURL       *string
	ConversationID string
	SenderActorID  string
	ClientID       string
	Type           domain.MessageType
}

// ListQuery pages backwards from BeforeID (0 = newest page)
type ListQuery struct {
	BeforeID uint64
	Limit    int
}

// DeleteAuthorizer decides whether a non-sender may unsend a message
type DeleteAuthorizer interface {
	CanDelete(ctx context.Context, actorID string, conv *domain.Conversation, members []*domain.ConversationMember, msg *domain.Message) bool
}

type senderOnly struct{}

func (senderOnly) CanDelete(context.Context, string, *domain.Conversation, []*domain.ConversationMember, *domain.Message) bool {
	return false
}

// SenderOnly lets nobody but the sender delete
var SenderOnly DeleteAuthorizer = senderOnly{}

// GroupOwnerAuthorizer also lets active owners of group conversations delete
type GroupOwnerAuthorizer struct{}

func (GroupOwnerAuthorizer) CanDelete(_ context.Context, actorID string, conv *domain.Conversation, members []*domain.ConversationMember, _ *domain.Message) bool {
	if !conv.IsGroup {
		return false
	}
	for _, m := range members {
		if m.ActorID == actorID && m.IsActive && m.Role == domain.RoleOwner {
			return true
		}
	}
	return false
}

// MessageService message store operations
type MessageService interface {
	Send(ctx context.Context, in SendInput) (*domain.MessageView, error)
	Edit(ctx context.Context, actorID string, messageID uint64, newBody string) (*domain.MessageView, error)
	SoftDelete(ctx context.Context, actorID string, messageID uint64) (*domain.MessageView, error)
	List(ctx context.Context, actorID, conversationID string, q ListQuery) ([]*domain.MessageView, *common.Meta, error)
}

type messageService struct {
	repo       repository.MessageRepository
	memberRepo repository.MemberRepository
	gate       *Gate
	blocks     BlockService
	authorizer DeleteAuthorizer
	notifier   *Notifier
	cfg        config.MessagingConfig
}

// NewMessageService creates a new MessageService; a nil authorizer means SenderOnly
func NewMessageService(
	repo repository.MessageRepository,
	convRepo repository.ConversationRepository,
	memberRepo repository.MemberRepository,
	blocks BlockService,
	authorizer DeleteAuthorizer,
	notifier *Notifier,
	cfg config.MessagingConfig,
) MessageService {
	if authorizer == nil {
		authorizer = SenderOnly
	}
	return &messageService{
		repo:       repo,
		memberRepo: memberRepo,
		gate:       NewGate(convRepo, memberRepo),
		blocks:     blocks,
		authorizer: authorizer,
		notifier:   notifier,
		cfg:        cfg,
	}
}

func (s *messageService) validate(in *SendInput) error {
	if in.ConversationID == "" || in.SenderActorID == "" {
		return common.Invalid("conversation and sender are required")
	}
	if strings.TrimSpace(in.ClientID) == "" {
		return common.Invalid("client_id is required")
	}
	if !in.Type.Valid() {
		return common.Validation("unknown message type %q", in.Type)
	}
	if in.Body != nil {
		trimmed := strings.TrimSpace(*in.Body)
		if trimmed == "" {
			in.Body = nil
		} else if err := s.checkLength(trimmed); err != nil {
			return err
		}
	}
	if in.MediaURL != nil && strings.TrimSpace(*in.MediaURL) == "" {
		in.MediaURL = nil
	}
	switch {
	case in.Type == domain.MessageTypeText && in.Body == nil:
		return common.Validation("message body is empty")
	case in.Type == domain.MessageTypeText && in.MediaURL != nil:
		return common.Validation("text messages carry no media")
	case in.Type.IsMedia() && in.MediaURL == nil:
		return common.Validation("%s messages require media_url", in.Type)
	}
	return nil
}

func (s *messageService) checkLength(body string) error {
	if s.cfg.MaxBodyLength > 0 && utf8.RuneCountInString(body) > s.cfg.MaxBodyLength {
		return common.Validation("message body exceeds %d characters", s.cfg.MaxBodyLength)
	}
	return nil
}

// Send persists a message once per (conversation, sender, client id)
func (s *messageService) Send(ctx context.Context, in SendInput) (*domain.MessageView, error) {
	if err := s.validate(&in); err != nil {
		return nil, err
	}

	conv, members, err := s.gate.Readable(ctx, in.SenderActorID, in.ConversationID)
	if err != nil {
		return nil, err
	}
	blocks, err := s.blocks.StateFor(ctx, in.SenderActorID, Others(in.SenderActorID, members))
	if err != nil {
		return nil, err
	}
	if !CanSend(in.SenderActorID, conv, members, blocks) {
		return nil, common.ErrForbidden
	}

	// a retry of a send that already landed returns the stored row
	existing, err := s.repo.FindByClientID(ctx, in.ConversationID, in.SenderActorID, in.ClientID)
	if err == nil {
		return existing.View(), nil
	}
	if err = common.StorageErr(err); !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	// an abandoned send is never applied
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	msg := &domain.Message{
		ConversationID: in.ConversationID,
		SenderActorID:  in.SenderActorID,
		ClientID:       in.ClientID,
		Type:           in.Type,
		Body:           in.Body,
		MediaURL:       in.MediaURL,
		CreatedAt:      nowUTC(),
	}
	if err := s.repo.Create(ctx, msg); err != nil {
		if repository.IsDuplicateKey(err) {
			winner, ferr := s.repo.FindByClientID(ctx, in.ConversationID, in.SenderActorID, in.ClientID)
			if ferr != nil {
				return nil, common.StorageErr(ferr)
			}
			return winner.View(), nil
		}
		return nil, common.StorageErr(err)
	}

	// the row is committed; follow-ups must not be cut short by the caller leaving
	bg := context.WithoutCancel(ctx)
	metrics.MessagesSent.WithLabelValues(string(msg.Type)).Inc()
	if _, err := s.memberRepo.UnarchiveForNewMessage(bg, msg.ConversationID, msg.SenderActorID); err != nil {
		logger.GetLogger().Warn().Err(err).Str("conversation_id", msg.ConversationID).Msg("unarchive on new message failed")
	}

	view := msg.View()
	s.notifier.BumpInbox(bg, ActiveIDs(members)...)
	s.notifier.Conversation(bg, realtime.EventMessageCreated, msg.ConversationID, msg.SenderActorID, messageEvent{Message: view})
	return view, nil
}

// loadForMutation finds a message and applies the read gate of its conversation
func (s *messageService) loadForMutation(ctx context.Context, actorID string, messageID uint64) (*domain.Message, *domain.Conversation, []*domain.ConversationMember, error) {
	if messageID == 0 || actorID == "" {
		return nil, nil, nil, common.Invalid("message id is required")
	}
	msg, err := s.repo.FindByID(ctx, messageID)
	if err != nil {
		return nil, nil, nil, common.StorageErr(err)
	}
	conv, members, err := s.gate.Readable(ctx, actorID, msg.ConversationID)
	if err != nil {
		return nil, nil, nil, err
	}
	return msg, conv, members, nil
}

// Edit replaces the body of a live message; only the sender may edit
func (s *messageService) Edit(ctx context.Context, actorID string, messageID uint64, newBody string) (*domain.MessageView, error) {
	msg, _, members, err := s.loadForMutation(ctx, actorID, messageID)
	if err != nil {
		return nil, err
	}
	if msg.SenderActorID != actorID {
		return nil, common.ErrForbidden
	}
	if msg.IsDeleted() {
		return nil, common.Validation("message was deleted")
	}
	body := strings.TrimSpace(newBody)
	if body == "" {
		return nil, common.Validation("message body is empty")
	}
	if err := s.checkLength(body); err != nil {
		return nil, err
	}

	n, err := s.repo.UpdateBody(ctx, messageID, body, nowUTC())
	if err != nil {
		return nil, common.StorageErr(err)
	}
	if n == 0 {
		// a concurrent delete won
		return nil, common.Validation("message was deleted")
	}

	updated, err := s.repo.FindByID(ctx, messageID)
	if err != nil {
		return nil, common.StorageErr(err)
	}
	bg := context.WithoutCancel(ctx)
	metrics.MessageMutations.WithLabelValues("edit").Inc()
	view := updated.View()
	s.notifier.BumpInbox(bg, ActiveIDs(members)...)
	s.notifier.Conversation(bg, realtime.EventMessageEdited, updated.ConversationID, actorID, messageEvent{Message: view})
	return view, nil
}

// SoftDelete unsends a message. Idempotent and irreversible.
func (s *messageService) SoftDelete(ctx context.Context, actorID string, messageID uint64) (*domain.MessageView, error) {
	msg, conv, members, err := s.loadForMutation(ctx, actorID, messageID)
	if err != nil {
		return nil, err
	}
	if msg.SenderActorID != actorID && !s.authorizer.CanDelete(ctx, actorID, conv, members, msg) {
		return nil, common.ErrForbidden
	}
	if msg.IsDeleted() {
		return msg.View(), nil
	}

	n, err := s.repo.MarkDeleted(ctx, messageID, actorID, nowUTC())
	if err != nil {
		return nil, common.StorageErr(err)
	}
	deleted, err := s.repo.FindByID(ctx, messageID)
	if err != nil {
		return nil, common.StorageErr(err)
	}
	view := deleted.View()
	if n == 0 {
		return view, nil
	}

	bg := context.WithoutCancel(ctx)
	metrics.MessageMutations.WithLabelValues("delete").Inc()
	s.notifier.BumpInbox(bg, ActiveIDs(members)...)
	s.notifier.Conversation(bg, realtime.EventMessageDeleted, deleted.ConversationID, actorID, messageEvent{Message: view})
	return view, nil
}

// List returns one page in (created_at, id) ascending order
func (s *messageService) List(ctx context.Context, actorID, conversationID string, q ListQuery) ([]*domain.MessageView, *common.Meta, error) {
	if _, _, err := s.gate.Readable(ctx, actorID, conversationID); err != nil {
		return nil, nil, err
	}

	limit := q.Limit
	if limit <= 0 {
		limit = s.cfg.PageSize
	}
	if s.cfg.MaxPageSize > 0 && limit > s.cfg.MaxPageSize {
		limit = s.cfg.MaxPageSize
	}

	var cursor *domain.Message
	if q.BeforeID > 0 {
		c, err := s.repo.FindByID(ctx, q.BeforeID)
		if err != nil || c.ConversationID != conversationID {
			return nil, nil, common.Invalid("unknown cursor %d", q.BeforeID)
		}
		cursor = c
	}

	msgs, err := s.repo.ListBefore(ctx, conversationID, cursor, limit+1)
	if err != nil {
		return nil, nil, common.StorageErr(err)
	}
	hasMore := len(msgs) > limit
	if hasMore {
		msgs = msgs[1:]
	}

	views := make([]*domain.MessageView, len(msgs))
	for i, m := range msgs {
		views[i] = m.View()
	}
	meta := &common.Meta{Limit: limit, HasMore: hasMore}
	if hasMore && len(msgs) > 0 {
		meta.NextBefore = msgs[0].ID
	}
	return views, meta, nil
}
