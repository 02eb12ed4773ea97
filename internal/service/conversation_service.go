package service

import (
	"context"
	"errors"
	"time"

	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/metrics"
	"github.com/damoang/angple-messenger/internal/realtime"
	"github.com/damoang/angple-messenger/internal/repository"
	"github.com/damoang/angple-messenger/pkg/logger"
	"github.com/google/uuid"
)

// ConversationService resolves and manages conversations
type ConversationService interface {
	// Resolve returns the single conversation between two actors in a realm, creating it on first use
	Resolve(ctx context.Context, actorA, actorB, realmID string) (string, error)
	Get(ctx context.Context, actorID, conversationID string) (*domain.ConversationView, error)
	Leave(ctx context.Context, actorID, conversationID string) error
	Archive(ctx context.Context, actorID, conversationID string, untilNew bool) error
	Unarchive(ctx context.Context, actorID, conversationID string) error
	SetFolder(ctx context.Context, actorID, conversationID string, folder domain.Folder) error
}

type conversationService struct {
	convRepo   repository.ConversationRepository
	memberRepo repository.MemberRepository
	actorRepo  repository.ActorRepository
	gate       *Gate
	notifier   *Notifier
}

// NewConversationService creates a new ConversationService
func NewConversationService(
	convRepo repository.ConversationRepository,
	memberRepo repository.MemberRepository,
	actorRepo repository.ActorRepository,
	notifier *Notifier,
) ConversationService {
	return &conversationService{
		convRepo:   convRepo,
		memberRepo: memberRepo,
		actorRepo:  actorRepo,
		gate:       NewGate(convRepo, memberRepo),
		notifier:   notifier,
	}
}

func nowUTC() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// Resolve canonicalizes the pair and relies on the unique index to settle races
func (s *conversationService) Resolve(ctx context.Context, actorA, actorB, realmID string) (string, error) {
	if actorA == "" || actorB == "" {
		return "", common.Invalid("both actor ids are required")
	}
	if actorA == actorB {
		return "", common.Invalid("cannot open a conversation with yourself")
	}
	if realmID == "" {
		realmID = domain.DefaultRealm
	}
	low, high := domain.CanonicalPair(actorA, actorB)

	conv, err := s.convRepo.FindPair(ctx, realmID, low, high)
	if err == nil {
		metrics.ConversationResolves.WithLabelValues("existing").Inc()
		return conv.ID, nil
	}
	if err = common.StorageErr(err); !errors.Is(err, common.ErrNotFound) {
		return "", err
	}

	now := nowUTC()
	conv = &domain.Conversation{
		ID:               uuid.NewString(),
		RealmID:          realmID,
		IsGroup:          false,
		CreatedByActorID: actorA,
		CreatedAt:        now,
		ActorLow:         &low,
		ActorHigh:        &high,
	}
	members := []*domain.ConversationMember{
		{ConversationID: conv.ID, ActorID: actorA, Role: domain.RoleOwner, IsActive: true, Folder: domain.FolderInbox, JoinedAt: now},
		{ConversationID: conv.ID, ActorID: actorB, Role: domain.RoleMember, IsActive: true, Folder: domain.FolderInbox, JoinedAt: now},
	}

	created, err := s.convRepo.CreatePair(ctx, conv, members)
	if err != nil {
		return "", common.StorageErr(err)
	}
	if !created {
		// lost the race, read the winner
		winner, err := s.convRepo.FindPair(ctx, realmID, low, high)
		if err != nil {
			return "", common.StorageErr(err)
		}
		metrics.ConversationResolves.WithLabelValues("raced").Inc()
		return winner.ID, nil
	}

	metrics.ConversationResolves.WithLabelValues("created").Inc()
	logger.GetLogger().Debug().Str("conversation_id", conv.ID).Str("realm_id", realmID).Msg("conversation created")
	s.notifier.BumpInbox(context.WithoutCancel(ctx), actorA, actorB)
	return conv.ID, nil
}

// Get returns a conversation with its members and counterpart
func (s *conversationService) Get(ctx context.Context, actorID, conversationID string) (*domain.ConversationView, error) {
	conv, members, err := s.gate.Readable(ctx, actorID, conversationID)
	if err != nil {
		return nil, err
	}
	view := conv.View(members)

	if peer := domain.Counterpart(actorID, members); peer != "" {
		view.Counterpart = domain.UnknownActor(peer)
		if a, err := s.actorRepo.FindByID(ctx, peer); err == nil {
			view.Counterpart = a.View()
		}
	}
	return view, nil
}

// Leave soft-leaves; history stays
func (s *conversationService) Leave(ctx context.Context, actorID, conversationID string) error {
	_, members, err := s.gate.Readable(ctx, actorID, conversationID)
	if err != nil {
		return err
	}
	if err := s.memberRepo.SetActive(ctx, conversationID, actorID, false); err != nil {
		return common.StorageErr(err)
	}
	// live subscriptions of the leaver are torn down on this event
	s.notifier.Conversation(context.WithoutCancel(ctx), realtime.EventMemberLeft, conversationID, actorID, memberEvent{ActorID: actorID})
	s.notifier.BumpInbox(context.WithoutCancel(ctx), ActiveIDs(members)...)
	return nil
}

// Archive hides the conversation from the actor's folders. With untilNew the
// next message from someone else brings it back.
func (s *conversationService) Archive(ctx context.Context, actorID, conversationID string, untilNew bool) error {
	if _, _, err := s.gate.Readable(ctx, actorID, conversationID); err != nil {
		return err
	}
	now := nowUTC()
	if err := s.memberRepo.SetArchive(ctx, conversationID, actorID, &now, untilNew); err != nil {
		return common.StorageErr(err)
	}
	s.notifier.BumpInbox(context.WithoutCancel(ctx), actorID)
	return nil
}

// Unarchive restores the conversation to its folder
func (s *conversationService) Unarchive(ctx context.Context, actorID, conversationID string) error {
	if _, _, err := s.gate.Readable(ctx, actorID, conversationID); err != nil {
		return err
	}
	if err := s.memberRepo.SetArchive(ctx, conversationID, actorID, nil, false); err != nil {
		return common.StorageErr(err)
	}
	s.notifier.BumpInbox(context.WithoutCancel(ctx), actorID)
	return nil
}

// SetFolder reclassifies the actor's membership
func (s *conversationService) SetFolder(ctx context.Context, actorID, conversationID string, folder domain.Folder) error {
	if !folder.Assignable() {
		return common.Invalid("folder %q cannot be assigned", folder)
	}
	if _, _, err := s.gate.Readable(ctx, actorID, conversationID); err != nil {
		return err
	}
	if err := s.memberRepo.SetFolder(ctx, conversationID, actorID, folder); err != nil {
		return common.StorageErr(err)
	}
	s.notifier.BumpInbox(context.WithoutCancel(ctx), actorID)
	return nil
}
