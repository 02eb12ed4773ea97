package service

import (
	"context"
	"errors"

	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/repository"
	"github.com/damoang/angple-messenger/pkg/logger"
)

// BlockState answers whether blocker has blocked target
type BlockState interface {
	Blocks(blocker, target string) bool
}

// blockSet is a BlockState over known (blocker, target) pairs
type blockSet map[[2]string]struct{}

func (b blockSet) Blocks(blocker, target string) bool {
	_, ok := b[[2]string{blocker, target}]
	return ok
}

// NoBlocks is a BlockState in which nobody blocks anybody
var NoBlocks BlockState = blockSet{}

// CanRead reports whether actorID holds an active membership. Never errors.
func CanRead(actorID string, members []*domain.ConversationMember) bool {
	for _, m := range members {
		if m.ActorID == actorID && m.IsActive {
			return true
		}
	}
	return false
}

// CanSend additionally requires another active member and no block from any counterpart
func CanSend(actorID string, conv *domain.Conversation, members []*domain.ConversationMember, blocks BlockState) bool {
	if conv == nil || !CanRead(actorID, members) {
		return false
	}
	others := 0
	for _, m := range members {
		if m.ActorID == actorID {
			continue
		}
		if blocks != nil && blocks.Blocks(m.ActorID, actorID) {
			return false
		}
		if m.IsActive {
			others++
		}
	}
	return others > 0
}

// Gate loads the state the membership checks run on
type Gate struct {
	convRepo   repository.ConversationRepository
	memberRepo repository.MemberRepository
}

// NewGate creates a Gate
func NewGate(convRepo repository.ConversationRepository, memberRepo repository.MemberRepository) *Gate {
	return &Gate{convRepo: convRepo, memberRepo: memberRepo}
}

// Load returns a conversation and its members
func (g *Gate) Load(ctx context.Context, conversationID string) (*domain.Conversation, []*domain.ConversationMember, error) {
	conv, err := g.convRepo.FindByID(ctx, conversationID)
	if err != nil {
		return nil, nil, common.StorageErr(err)
	}
	members, err := g.memberRepo.ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, nil, common.StorageErr(err)
	}
	return conv, members, nil
}

// Readable loads the conversation for actorID. Every denial, including a
// failed lookup, surfaces as ErrNotFound so existence never leaks.
func (g *Gate) Readable(ctx context.Context, actorID, conversationID string) (*domain.Conversation, []*domain.ConversationMember, error) {
	if conversationID == "" {
		return nil, nil, common.Invalid("conversation id is required")
	}
	conv, members, err := g.Load(ctx, conversationID)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, nil, err
		}
		if !errors.Is(err, common.ErrNotFound) {
			logger.GetLogger().Warn().Err(err).Str("conversation_id", conversationID).Msg("membership lookup failed")
		}
		return nil, nil, common.ErrNotFound
	}
	if !CanRead(actorID, members) {
		return nil, nil, common.ErrNotFound
	}
	return conv, members, nil
}

// Others returns member ids other than actorID
func Others(actorID string, members []*domain.ConversationMember) []string {
	out := make([]string, 0, len(members))
	for _, m := range members {
		if m.ActorID != actorID {
			out = append(out, m.ActorID)
		}
	}
	return out
}

// ActiveIDs returns ids of active members
func ActiveIDs(members []*domain.ConversationMember) []string {
	out := make([]string, 0, len(members))
	for _, m := range members {
		if m.IsActive {
			out = append(out, m.ActorID)
		}
	}
	return out
}
