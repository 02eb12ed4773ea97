package service

import (
	"context"
	"errors"
	"sync"

	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/realtime"
	"github.com/damoang/angple-messenger/internal/repository"
	"golang.org/x/sync/errgroup"
)

// unreadFanOut bounds concurrent count queries per request
const unreadFanOut = 8

// ReadStateService per-member read pointers and unread counts
type ReadStateService interface {
	// MarkRead moves the actor's pointer to the newest live message; never backwards
	MarkRead(ctx context.Context, actorID, conversationID string) error
	UnreadCount(ctx context.Context, actorID, conversationID string) (int64, error)
	UnreadCounts(ctx context.Context, actorID string, members []*domain.ConversationMember) (map[string]int64, error)
	TotalUnread(ctx context.Context, actorID string) (int64, error)
}

type readStateService struct {
	msgRepo    repository.MessageRepository
	memberRepo repository.MemberRepository
	gate       *Gate
	notifier   *Notifier
}

// NewReadStateService creates a new ReadStateService
func NewReadStateService(
	msgRepo repository.MessageRepository,
	convRepo repository.ConversationRepository,
	memberRepo repository.MemberRepository,
	notifier *Notifier,
) ReadStateService {
	return &readStateService{
		msgRepo:    msgRepo,
		memberRepo: memberRepo,
		gate:       NewGate(convRepo, memberRepo),
		notifier:   notifier,
	}
}

func (s *readStateService) MarkRead(ctx context.Context, actorID, conversationID string) error {
	if _, _, err := s.gate.Readable(ctx, actorID, conversationID); err != nil {
		return err
	}

	target, err := s.msgRepo.Latest(ctx, conversationID, false)
	if err != nil {
		err = common.StorageErr(err)
		if errors.Is(err, common.ErrNotFound) {
			return nil // nothing to read yet
		}
		return err
	}

	moved, err := s.memberRepo.AdvanceReadPointer(ctx, conversationID, actorID, target, nowUTC())
	if err != nil {
		return common.StorageErr(err)
	}
	if moved {
		bg := context.WithoutCancel(ctx)
		s.notifier.BumpInbox(bg, actorID)
		s.notifier.Conversation(bg, realtime.EventReadUpdated, conversationID, actorID,
			readEvent{ActorID: actorID, LastReadMessageID: target.ID})
	}
	return nil
}

func (s *readStateService) UnreadCount(ctx context.Context, actorID, conversationID string) (int64, error) {
	_, members, err := s.gate.Readable(ctx, actorID, conversationID)
	if err != nil {
		return 0, err
	}
	var pointer *uint64
	for _, m := range members {
		if m.ActorID == actorID {
			pointer = m.LastReadMessageID
		}
	}
	n, err := s.msgRepo.CountAfter(ctx, conversationID, actorID, pointer)
	if err != nil {
		return 0, common.StorageErr(err)
	}
	return n, nil
}

// UnreadCounts computes counts for the given memberships of actorID concurrently
func (s *readStateService) UnreadCounts(ctx context.Context, actorID string, members []*domain.ConversationMember) (map[string]int64, error) {
	out := make(map[string]int64, len(members))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(unreadFanOut)
	for _, m := range members {
		m := m
		if m.ActorID != actorID {
			continue
		}
		g.Go(func() error {
			n, err := s.msgRepo.CountAfter(gctx, m.ConversationID, actorID, m.LastReadMessageID)
			if err != nil {
				return common.StorageErr(err)
			}
			mu.Lock()
			out[m.ConversationID] = n
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// TotalUnread sums unread counts over the actor's inbox folder
func (s *readStateService) TotalUnread(ctx context.Context, actorID string) (int64, error) {
	members, err := s.memberRepo.ListForActor(ctx, actorID, domain.FolderInbox)
	if err != nil {
		return 0, common.StorageErr(err)
	}
	counts, err := s.UnreadCounts(ctx, actorID, members)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, n := range counts {
		total += n
	}
	return total, nil
}
