package repository

import (
	"context"

	"github.com/damoang/angple-messenger/internal/domain"
	"gorm.io/gorm"
)

// ReportRepository write-only moderation report storage
type ReportRepository interface {
	Create(ctx context.Context, report *domain.Report) error
}

type reportRepository struct {
	db *gorm.DB
}

// NewReportRepository creates a new ReportRepository
func NewReportRepository(db *gorm.DB) ReportRepository {
	return &reportRepository{db: db}
}

func (r *reportRepository) Create(ctx context.Context, report *domain.Report) error {
	return r.db.WithContext(ctx).Create(report).Error
}
