package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/repository"
	"github.com/damoang/angple-messenger/pkg/cache"
	"github.com/damoang/angple-messenger/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// InboxService composes per-actor folder views
type InboxService interface {
	ListFolder(ctx context.Context, actorID string, folder domain.Folder) ([]*domain.ConversationSummary, error)
	// Changes blocks until the actor's inbox version differs from since or timeout passes
	Changes(ctx context.Context, actorID string, since uint64, timeout time.Duration) (*domain.InboxChanges, error)
	// Version is the actor's current inbox version, the starting point for Changes
	Version(actorID string) uint64
	Settings(ctx context.Context, actorID string) (*domain.ActorSetting, error)
	UpdateSettings(ctx context.Context, actorID string, hideEmpty bool) (*domain.ActorSetting, error)
}

type inboxService struct {
	convRepo    repository.ConversationRepository
	memberRepo  repository.MemberRepository
	msgRepo     repository.MessageRepository
	actorRepo   repository.ActorRepository
	settingRepo repository.SettingRepository
	readState   ReadStateService
	cache       cache.Service
	notifier    *Notifier
}

// NewInboxService creates a new InboxService
func NewInboxService(
	convRepo repository.ConversationRepository,
	memberRepo repository.MemberRepository,
	msgRepo repository.MessageRepository,
	actorRepo repository.ActorRepository,
	settingRepo repository.SettingRepository,
	readState ReadStateService,
	cacheSvc cache.Service,
	notifier *Notifier,
) InboxService {
	return &inboxService{
		convRepo:    convRepo,
		memberRepo:  memberRepo,
		msgRepo:     msgRepo,
		actorRepo:   actorRepo,
		settingRepo: settingRepo,
		readState:   readState,
		cache:       cacheSvc,
		notifier:    notifier,
	}
}

func (s *inboxService) ListFolder(ctx context.Context, actorID string, folder domain.Folder) ([]*domain.ConversationSummary, error) {
	if actorID == "" {
		return nil, common.Invalid("actor id is required")
	}
	if folder == "" {
		folder = domain.FolderInbox
	}
	if !folder.Valid() {
		return nil, common.Invalid("unknown folder %q", folder)
	}

	// read the stamp first: a bump during the build leaves the entry under a dead key
	stamp := s.notifier.Versions().Stamp(actorID)
	var cached []*domain.ConversationSummary
	err := s.cache.GetInbox(ctx, actorID, string(folder), stamp, &cached)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		logger.GetLogger().Warn().Err(err).Msg("inbox cache read failed")
	}

	summaries, err := s.build(ctx, actorID, folder)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetInbox(ctx, actorID, string(folder), stamp, summaries); err != nil {
		logger.GetLogger().Warn().Err(err).Msg("inbox cache write failed")
	}
	return summaries, nil
}

func (s *inboxService) build(ctx context.Context, actorID string, folder domain.Folder) ([]*domain.ConversationSummary, error) {
	members, err := s.memberRepo.ListForActor(ctx, actorID, folder)
	if err != nil {
		return nil, common.StorageErr(err)
	}
	summaries := make([]*domain.ConversationSummary, 0, len(members))
	if len(members) == 0 {
		return summaries, nil
	}

	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.ConversationID
	}
	convs, err := s.convRepo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, common.StorageErr(err)
	}
	roster, err := s.memberRepo.ListByConversations(ctx, ids)
	if err != nil {
		return nil, common.StorageErr(err)
	}

	peers := make(map[string]string, len(ids))
	peerIDs := make([]string, 0, len(ids))
	for convID, rows := range roster {
		if p := domain.Counterpart(actorID, rows); p != "" {
			peers[convID] = p
			peerIDs = append(peerIDs, p)
		}
	}
	actors, err := s.actorRepo.FindByIDs(ctx, peerIDs)
	if err != nil {
		return nil, common.StorageErr(err)
	}

	counts, err := s.readState.UnreadCounts(ctx, actorID, members)
	if err != nil {
		return nil, err
	}

	latest := make(map[string]*domain.Message, len(ids))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(unreadFanOut)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			msg, err := s.msgRepo.Latest(gctx, id, true)
			if err != nil {
				if err = common.StorageErr(err); errors.Is(err, common.ErrNotFound) {
					return nil
				}
				return err
			}
			mu.Lock()
			latest[id] = msg
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	setting, err := s.settingRepo.Get(ctx, actorID)
	if err != nil {
		return nil, common.StorageErr(err)
	}

	for _, m := range members {
		conv, ok := convs[m.ConversationID]
		if !ok {
			continue
		}
		sum := &domain.ConversationSummary{
			ConversationID: conv.ID,
			RealmID:        conv.RealmID,
			IsGroup:        conv.IsGroup,
			Folder:         m.Folder,
			Archived:       m.Archived(),
			UnreadCount:    counts[conv.ID],
			LastActivityAt: conv.CreatedAt,
		}
		if p, ok := peers[conv.ID]; ok {
			sum.Counterpart = domain.UnknownActor(p)
			if a, ok := actors[p]; ok {
				sum.Counterpart = a.View()
			}
		}
		if msg, ok := latest[conv.ID]; ok {
			id := msg.ID
			sum.LastMessageID = &id
			sum.Preview = msg.Preview()
			sum.LastActivityAt = msg.CreatedAt
		}
		if setting.HideEmptyConversations && !sum.HasContent() {
			continue
		}
		summaries = append(summaries, sum)
	}

	sort.Slice(summaries, func(i, j int) bool {
		a, b := summaries[i], summaries[j]
		if !a.LastActivityAt.Equal(b.LastActivityAt) {
			return a.LastActivityAt.After(b.LastActivityAt)
		}
		return a.ConversationID < b.ConversationID
	})
	return summaries, nil
}

func (s *inboxService) Changes(ctx context.Context, actorID string, since uint64, timeout time.Duration) (*domain.InboxChanges, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	v, err := s.notifier.Versions().Wait(ctx, actorID, since)
	if errors.Is(err, context.DeadlineExceeded) {
		return &domain.InboxChanges{Version: v, Changed: false}, nil
	}
	if err != nil {
		return nil, err
	}
	return &domain.InboxChanges{Version: v, Changed: true}, nil
}

func (s *inboxService) Version(actorID string) uint64 {
	return s.notifier.Versions().Version(actorID)
}

func (s *inboxService) Settings(ctx context.Context, actorID string) (*domain.ActorSetting, error) {
	setting, err := s.settingRepo.Get(ctx, actorID)
	if err != nil {
		return nil, common.StorageErr(err)
	}
	return setting, nil
}

func (s *inboxService) UpdateSettings(ctx context.Context, actorID string, hideEmpty bool) (*domain.ActorSetting, error) {
	setting := &domain.ActorSetting{ActorID: actorID, HideEmptyConversations: hideEmpty, UpdatedAt: time.Now().UTC()}
	if err := s.settingRepo.Save(ctx, setting); err != nil {
		return nil, common.StorageErr(err)
	}
	s.notifier.BumpInbox(context.WithoutCancel(ctx), actorID)
	return setting, nil
}
