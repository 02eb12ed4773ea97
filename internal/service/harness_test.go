package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/damoang/angple-messenger/internal/config"
	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/invalidate"
	"github.com/damoang/angple-messenger/internal/migration"
	"github.com/damoang/angple-messenger/internal/realtime"
	"github.com/damoang/angple-messenger/internal/repository"
	"github.com/damoang/angple-messenger/pkg/cache"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, migration.Run(db))
	return db
}

type harness struct {
	db       *gorm.DB
	hub      *realtime.Hub
	notifier *Notifier
	gate     *Gate
	convs    ConversationService
	messages MessageService
	reads    ReadStateService
	inbox    InboxService
	blocks   BlockService
}

type harnessOption func(*harnessConfig)

type harnessConfig struct {
	cache      cache.Service
	authorizer DeleteAuthorizer
	messaging  config.MessagingConfig
}

func withCache(c cache.Service) harnessOption {
	return func(hc *harnessConfig) { hc.cache = c }
}

func withAuthorizer(a DeleteAuthorizer) harnessOption {
	return func(hc *harnessConfig) { hc.authorizer = a }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	hc := &harnessConfig{
		cache:     cache.NewService(nil),
		messaging: config.Default().Messaging,
	}
	for _, o := range opts {
		o(hc)
	}

	db := setupTestDB(t)
	convRepo := repository.NewConversationRepository(db)
	memberRepo := repository.NewMemberRepository(db)
	msgRepo := repository.NewMessageRepository(db)
	actorRepo := repository.NewActorRepository(db)
	settingRepo := repository.NewSettingRepository(db)
	blockRepo := repository.NewBlockRepository(db)

	hub := realtime.NewHub(nil, 64)
	notifier := NewNotifier(invalidate.NewVersions(), hub)
	blocks := NewBlockService(blockRepo, actorRepo)
	reads := NewReadStateService(msgRepo, convRepo, memberRepo, notifier)

	_, err := migration.SeedActors(db, []domain.Actor{
		{ID: "alice", Kind: domain.ActorKindUser, DisplayName: "Alice"},
		{ID: "bob", Kind: domain.ActorKindUser, DisplayName: "Bob"},
		{ID: "carol", Kind: domain.ActorKindUser, DisplayName: "Carol"},
	})
	require.NoError(t, err)

	return &harness{
		db:       db,
		hub:      hub,
		notifier: notifier,
		gate:     NewGate(convRepo, memberRepo),
		convs:    NewConversationService(convRepo, memberRepo, actorRepo, notifier),
		messages: NewMessageService(msgRepo, convRepo, memberRepo, blocks, hc.authorizer, notifier, hc.messaging),
		reads:    reads,
		inbox:    NewInboxService(convRepo, memberRepo, msgRepo, actorRepo, settingRepo, reads, hc.cache, notifier),
		blocks:   blocks,
	}
}

func (h *harness) resolve(t *testing.T, a, b string) string {
	t.Helper()
	id, err := h.convs.Resolve(context.Background(), a, b, "")
	require.NoError(t, err)
	return id
}

func (h *harness) send(t *testing.T, convID, sender, clientID, body string) *domain.MessageView {
	t.Helper()
	v, err := h.messages.Send(context.Background(), SendInput{
		ConversationID: convID, SenderActorID: sender, ClientID: clientID,
		Type: domain.MessageTypeText, Body: &body,
	})
	require.NoError(t, err)
	return v
}

func (h *harness) unread(t *testing.T, actorID, convID string) int64 {
	t.Helper()
	n, err := h.reads.UnreadCount(context.Background(), actorID, convID)
	require.NoError(t, err)
	return n
}

func strPtr(s string) *string { return &s }
