package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockReportRepository is a mock implementation of ReportRepository
type MockReportRepository struct {
	mock.Mock
}

func (m *MockReportRepository) Create(ctx context.Context, report *domain.Report) error {
	args := m.Called(ctx, report)
	return args.Error(0)
}

func TestGormReportSink_PersistsQueuedReports(t *testing.T) {
	repo := new(MockReportRepository)
	repo.On("Create", mock.Anything, mock.MatchedBy(func(r *domain.Report) bool {
		return r.ObjectType == domain.ReportObjectMessage && !r.CreatedAt.IsZero()
	})).Return(nil).Twice()

	sink := NewGormReportSink(repo, 4)
	sink.Submit(context.Background(), domain.Report{ReporterActorID: "bob", ObjectType: domain.ReportObjectMessage, ObjectID: "1", ReasonCode: "spam"})
	sink.Submit(context.Background(), domain.Report{ReporterActorID: "bob", ObjectType: domain.ReportObjectMessage, ObjectID: "2", ReasonCode: "abuse"})
	sink.Close()

	repo.AssertExpectations(t)
}

func TestGormReportSink_FailureIsSwallowed(t *testing.T) {
	repo := new(MockReportRepository)
	repo.On("Create", mock.Anything, mock.Anything).Return(errors.New("db down")).Once()

	sink := NewGormReportSink(repo, 1)
	assert.NotPanics(t, func() {
		sink.Submit(context.Background(), domain.Report{ReporterActorID: "bob", ObjectType: domain.ReportObjectActor, ObjectID: "alice"})
	})
	sink.Close()

	repo.AssertExpectations(t)
}

func TestGormReportSink_FullQueueDrops(t *testing.T) {
	release := make(chan time.Time)
	repo := new(MockReportRepository)
	repo.On("Create", mock.Anything, mock.Anything).
		WaitUntil(release).
		Return(nil)

	sink := NewGormReportSink(repo, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			sink.Submit(context.Background(), domain.Report{ReporterActorID: "bob", ObjectType: domain.ReportObjectConversation, ObjectID: "c1"})
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Submit blocked on a full queue")
	}
	close(release)
	sink.Close()

	// at most one in flight plus one buffered
	assert.LessOrEqual(t, len(repo.Calls), 2)
}

func TestGormReportSink_SubmitAfterClose(t *testing.T) {
	repo := new(MockReportRepository)
	sink := NewGormReportSink(repo, 1)
	sink.Close()

	assert.NotPanics(t, func() {
		sink.Submit(context.Background(), domain.Report{ReporterActorID: "bob", ObjectType: domain.ReportObjectActor, ObjectID: "alice"})
	})
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}
