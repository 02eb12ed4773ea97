package service

import (
	"context"
	"sync"
	"time"

	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/repository"
	"github.com/damoang/angple-messenger/pkg/logger"
)

// ReportSink accepts moderation reports. Fire-and-forget: callers get no result.
type ReportSink interface {
	Submit(ctx context.Context, report domain.Report)
}

// GormReportSink persists reports on a background worker
type GormReportSink struct {
	repo   repository.ReportRepository
	queue  chan domain.Report
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

// NewGormReportSink starts the worker; Close drains it
func NewGormReportSink(repo repository.ReportRepository, buffer int) *GormReportSink {
	if buffer <= 0 {
		buffer = 128
	}
	s := &GormReportSink{repo: repo, queue: make(chan domain.Report, buffer)}
	s.wg.Add(1)
	go s.run()
	return s
}

// Submit enqueues a report; a full queue drops it with a warning
func (s *GormReportSink) Submit(_ context.Context, report domain.Report) {
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now().UTC()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.queue <- report:
	default:
		logger.GetLogger().Warn().
			Str("reporter_actor_id", report.ReporterActorID).
			Str("object_type", string(report.ObjectType)).
			Msg("report queue full, dropping")
	}
}

// Close stops accepting reports and waits for queued ones
func (s *GormReportSink) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *GormReportSink) run() {
	defer s.wg.Done()
	for report := range s.queue {
		report := report
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.repo.Create(ctx, &report); err != nil {
			logger.GetLogger().Error().Err(err).
				Str("reporter_actor_id", report.ReporterActorID).
				Str("object_id", report.ObjectID).
				Msg("report persist failed")
		}
		cancel()
	}
}
