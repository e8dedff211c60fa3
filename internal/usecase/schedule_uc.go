package usecase

import (
	"context"
	"fmt"
	"time"

	"brandaion/internal/domain"
	"brandaion/internal/domain/model"
	"brandaion/internal/domain/ports/repository"
	"brandaion/internal/infra/logging"
	"brandaion/internal/infra/metrics"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
)

// ScheduleUseCase manages recurring performance tests.
type ScheduleUseCase interface {
	Create(ctx context.Context, userID string, cadence model.TestSchedule, providers []string, firstRun time.Time) (*model.PerformanceSchedule, error)
	List(ctx context.Context, userID string) ([]*model.PerformanceSchedule, error)
	// RunDue tests every due schedule and advances it. Returns how many ran.
	RunDue(ctx context.Context, now time.Time) (int, error)
}

var _ ScheduleUseCase = (*scheduleUC)(nil)

const dueBatchSize = 50

type scheduleUC struct {
	schedules repository.ScheduleRepository
	questions repository.QuestionRepository
	tester    PerformanceUseCase
	tm        repository.TransactionManager
	log       *zerolog.Logger
}

// NewScheduleUseCase wires schedules. With a non-nil tm, due schedules are claimed
// inside a short transaction so concurrent schedulers skip rows another one holds.
func NewScheduleUseCase(
	schedules repository.ScheduleRepository,
	questions repository.QuestionRepository,
	tester PerformanceUseCase,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
) *scheduleUC {
	if logger == nil {
		logger = logging.Nop()
	}
	l := logger.With().Str("component", "ScheduleUC").Logger()
	return &scheduleUC{schedules: schedules, questions: questions, tester: tester, tm: tm, log: &l}
}

func (s *scheduleUC) Create(ctx context.Context, userID string, cadence model.TestSchedule, providers []string, firstRun time.Time) (*model.PerformanceSchedule, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: auth_user_id is required", domain.ErrInvalidArgument)
	}
	if _, ok := model.NextRun(cadence, time.Now(), 0); !ok {
		return nil, fmt.Errorf("%w: cadence must be weekly or monthly", domain.ErrInvalidArgument)
	}
	if firstRun.IsZero() {
		firstRun = time.Now()
	}
	ps := model.NewPerformanceSchedule(userID, cadence, providers, firstRun.UTC())
	if err := s.schedules.Save(ctx, repository.NoTX, ps); err != nil {
		return nil, fmt.Errorf("save schedule: %w", err)
	}
	s.log.Info().Str("user_id", userID).Str("cadence", string(cadence)).Time("next_run_at", ps.NextRunAt).Msg("schedule created")
	return ps, nil
}

func (s *scheduleUC) List(ctx context.Context, userID string) ([]*model.PerformanceSchedule, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: auth_user_id is required", domain.ErrInvalidArgument)
	}
	return s.schedules.ListByUser(ctx, repository.NoTX, userID)
}

// dueRun is a schedule advanced by the claim step, with what to restore if its test never started.
type dueRun struct {
	ps         *model.PerformanceSchedule
	prevNext   time.Time
	prevLast   *time.Time
	prevActive bool
}

// RunDue claims due schedules by advancing them in one short transaction, then
// tests each one outside it. A schedule whose test never reached a provider is
// put back so the next tick retries it; one that did is never re-run.
func (s *scheduleUC) RunDue(ctx context.Context, now time.Time) (int, error) {
	claimed, err := s.claimDue(ctx, now)
	if err != nil {
		return 0, err
	}
	ran := 0
	for i, c := range claimed {
		if err := ctx.Err(); err != nil {
			for _, rest := range claimed[i:] {
				s.unclaim(ctx, rest)
			}
			return ran, err
		}
		if s.runOne(ctx, c) {
			ran++
		}
	}
	return ran, nil
}

func (s *scheduleUC) claimDue(ctx context.Context, now time.Time) ([]dueRun, error) {
	var claimed []dueRun
	claim := func(ctx context.Context, tx repository.Tx) error {
		claimed = claimed[:0]
		due, err := s.schedules.ListDue(ctx, tx, now, dueBatchSize)
		if err != nil {
			return fmt.Errorf("list due schedules: %w", err)
		}
		for _, ps := range due {
			c := dueRun{ps: ps, prevNext: ps.NextRunAt, prevLast: ps.LastRunAt, prevActive: ps.Active}
			ps.Advance(now)
			if err := s.schedules.Save(ctx, tx, ps); err != nil {
				return fmt.Errorf("claim schedule %s: %w", ps.ID, err)
			}
			claimed = append(claimed, c)
		}
		return nil
	}
	if s.tm == nil {
		if err := claim(ctx, repository.NoTX); err != nil {
			return nil, err
		}
		return claimed, nil
	}
	if err := s.tm.WithTx(ctx, pgx.TxOptions{}, claim); err != nil {
		return nil, err
	}
	return claimed, nil
}

func (s *scheduleUC) runOne(ctx context.Context, c dueRun) bool {
	ps := c.ps
	log := s.log.With().Str("schedule_id", ps.ID).Str("user_id", ps.UserID).Logger()

	qs, err := s.questions.ListTestable(ctx, repository.NoTX, model.WorkFilter{UserID: ps.UserID})
	if err != nil {
		log.Error().Err(err).Msg("could not load questions for schedule")
		metrics.IncScheduleRun(string(ps.Cadence), "error")
		s.unclaim(ctx, c)
		return false
	}
	if len(qs) == 0 {
		metrics.IncScheduleRun(string(ps.Cadence), "ok")
		return true
	}

	res, err := s.tester.TestQuestions(ctx, qs, ps.Providers, ps.Cadence)
	if err != nil {
		if res != nil && len(res.Results) > 0 {
			// providers were already called and billed; keep the advance
			log.Warn().Err(err).Int("tested", len(res.Results)).Msg("scheduled performance test cut short")
			metrics.IncScheduleRun(string(ps.Cadence), "partial")
			return false
		}
		log.Error().Err(err).Msg("scheduled performance test failed")
		metrics.IncScheduleRun(string(ps.Cadence), "error")
		s.unclaim(ctx, c)
		return false
	}
	log.Info().Str("test_run_id", res.Summary.TestRunID).Int("total_tests", res.Summary.TotalTests).Msg("scheduled performance test finished")
	metrics.IncScheduleRun(string(ps.Cadence), "ok")
	return true
}

// unclaim restores the schedule's previous run times so the next tick picks it up again.
func (s *scheduleUC) unclaim(ctx context.Context, c dueRun) {
	ps := *c.ps
	ps.NextRunAt, ps.LastRunAt, ps.Active = c.prevNext, c.prevLast, c.prevActive
	if err := s.schedules.Save(context.WithoutCancel(ctx), repository.NoTX, &ps); err != nil {
		s.log.Error().Err(err).Str("schedule_id", ps.ID).Msg("could not restore schedule")
	}
}
