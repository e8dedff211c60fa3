package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"brandaion/internal/domain/model"
	"brandaion/internal/domain/ports/repository"
)

var _ repository.ScheduleRepository = (*scheduleRepo)(nil)

type scheduleRepo struct {
	pool *pgxpool.Pool
}

func NewScheduleRepo(pool *pgxpool.Pool) *scheduleRepo {
	return &scheduleRepo{pool: pool}
}

const scheduleColumns = `id::text, auth_user_id, cadence, ai_providers, next_run_at, run_day, last_run_at, active, created_at, updated_at`

func (r *scheduleRepo) Save(ctx context.Context, tx repository.Tx, s *model.PerformanceSchedule) error {
	s.UpdatedAt = time.Now()
	const q = `
INSERT INTO performance_schedules (id, auth_user_id, cadence, ai_providers, next_run_at, run_day, last_run_at, active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (id) DO UPDATE SET
  cadence = EXCLUDED.cadence,
  ai_providers = EXCLUDED.ai_providers,
  next_run_at = EXCLUDED.next_run_at,
  run_day = EXCLUDED.run_day,
  last_run_at = EXCLUDED.last_run_at,
  active = EXCLUDED.active,
  updated_at = EXCLUDED.updated_at;`

	providers := s.Providers
	if providers == nil {
		providers = []string{}
	}
	if s.RunDay == 0 {
		s.RunDay = s.NextRunAt.Day()
	}
	_, err := execSQL(ctx, r.pool, tx, q,
		s.ID, s.UserID, string(s.Cadence), providers, s.NextRunAt, s.RunDay, s.LastRunAt, s.Active, s.CreatedAt, s.UpdatedAt)
	return err
}

func (r *scheduleRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.PerformanceSchedule, error) {
	return r.list(ctx, tx, `SELECT `+scheduleColumns+` FROM performance_schedules WHERE auth_user_id = $1 ORDER BY created_at;`, userID)
}

// ListDue uses SKIP LOCKED so concurrent schedulers inside transactions split the work.
func (r *scheduleRepo) ListDue(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]*model.PerformanceSchedule, error) {
	return r.list(ctx, tx, `
SELECT `+scheduleColumns+`
FROM performance_schedules
WHERE active AND next_run_at <= $1
ORDER BY next_run_at
LIMIT $2
FOR UPDATE SKIP LOCKED;`, now, limit)
}

func (r *scheduleRepo) list(ctx context.Context, tx repository.Tx, q string, args ...interface{}) ([]*model.PerformanceSchedule, error) {
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.PerformanceSchedule
	for rows.Next() {
		var s model.PerformanceSchedule
		var cadence string
		if err := rows.Scan(&s.ID, &s.UserID, &cadence, &s.Providers, &s.NextRunAt, &s.RunDay, &s.LastRunAt, &s.Active, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, scanErr(err)
		}
		s.Cadence = model.TestSchedule(cadence)
		out = append(out, &s)
	}
	return out, rows.Err()
}
