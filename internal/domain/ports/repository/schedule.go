package repository

import (
	"context"
	"time"

	"brandaion/internal/domain/model"
)

type ScheduleRepository interface {
	Save(ctx context.Context, tx Tx, s *model.PerformanceSchedule) error
	ListByUser(ctx context.Context, tx Tx, userID string) ([]*model.PerformanceSchedule, error)
	// ListDue returns active schedules with next_run_at <= now.
	ListDue(ctx context.Context, tx Tx, now time.Time, limit int) ([]*model.PerformanceSchedule, error)
}
