package service

import (
	"context"

	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/repository"
)

// BlockService actor block/relationship logic
type BlockService interface {
	Block(ctx context.Context, actorID, targetID string) (*domain.BlockView, error)
	Unblock(ctx context.Context, actorID, targetID string) error
	List(ctx context.Context, actorID string) ([]*domain.BlockView, error)
	IsBlocked(ctx context.Context, blockerID, blockedID string) (bool, error)
	// StateFor loads which of candidates blocked target
	StateFor(ctx context.Context, target string, candidates []string) (BlockState, error)
}

type blockService struct {
	repo      repository.BlockRepository
	actorRepo repository.ActorRepository
}

// NewBlockService creates a new BlockService
func NewBlockService(repo repository.BlockRepository, actorRepo repository.ActorRepository) BlockService {
	return &blockService{repo: repo, actorRepo: actorRepo}
}

// Block blocks a target actor
func (s *blockService) Block(ctx context.Context, actorID, targetID string) (*domain.BlockView, error) {
	if actorID == "" || targetID == "" {
		return nil, common.Invalid("actor ids are required")
	}
	if actorID == targetID {
		return nil, common.Invalid("cannot block yourself")
	}

	target, err := s.actorRepo.FindByID(ctx, targetID)
	if err != nil {
		return nil, common.StorageErr(err)
	}

	block, err := s.repo.Create(ctx, actorID, targetID)
	if err != nil {
		return nil, common.StorageErr(err)
	}
	return &domain.BlockView{BlockID: block.ID, Actor: target.View(), BlockedAt: block.CreatedAt}, nil
}

// Unblock removes a block
func (s *blockService) Unblock(ctx context.Context, actorID, targetID string) error {
	n, err := s.repo.Delete(ctx, actorID, targetID)
	if err != nil {
		return common.StorageErr(err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

// List returns blocked actors
func (s *blockService) List(ctx context.Context, actorID string) ([]*domain.BlockView, error) {
	blocks, err := s.repo.FindByActor(ctx, actorID)
	if err != nil {
		return nil, common.StorageErr(err)
	}

	ids := make([]string, len(blocks))
	for i, b := range blocks {
		ids[i] = b.BlockedActorID
	}
	actors, err := s.actorRepo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, common.StorageErr(err)
	}

	out := make([]*domain.BlockView, len(blocks))
	for i, b := range blocks {
		view := domain.UnknownActor(b.BlockedActorID)
		if a, ok := actors[b.BlockedActorID]; ok {
			view = a.View()
		}
		out[i] = &domain.BlockView{BlockID: b.ID, Actor: view, BlockedAt: b.CreatedAt}
	}
	return out, nil
}

// IsBlocked reports whether blockerID has blocked blockedID
func (s *blockService) IsBlocked(ctx context.Context, blockerID, blockedID string) (bool, error) {
	ok, err := s.repo.AnyBlocks(ctx, []string{blockerID}, blockedID)
	if err != nil {
		return false, common.StorageErr(err)
	}
	return ok, nil
}

func (s *blockService) StateFor(ctx context.Context, target string, candidates []string) (BlockState, error) {
	blockers, err := s.repo.FindBlockers(ctx, candidates, target)
	if err != nil {
		return nil, common.StorageErr(err)
	}
	set := make(blockSet, len(blockers))
	for _, b := range blockers {
		set[[2]string{b, target}] = struct{}{}
	}
	return set, nil
}
