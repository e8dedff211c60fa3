package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"brandaion/internal/usecase"
)

// ScheduleWorker runs due performance schedules.
type ScheduleWorker struct {
	interval time.Duration
	schedUC  usecase.ScheduleUseCase
	now      func() time.Time
	log      *zerolog.Logger
}

func NewScheduleWorker(interval time.Duration, schedUC usecase.ScheduleUseCase, logger *zerolog.Logger) *ScheduleWorker {
	l := logger.With().Str("component", "ScheduleWorker").Logger()
	return &ScheduleWorker{interval: interval, schedUC: schedUC, now: time.Now, log: &l}
}

func (w *ScheduleWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting schedule worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping schedule worker")
			return ctx.Err()
		case <-ticker.C:
			w.Tick(ctx)
		}
	}
}

func (w *ScheduleWorker) Tick(ctx context.Context) {
	n, err := w.schedUC.RunDue(ctx, w.now().UTC())
	if err != nil {
		w.log.Error().Err(err).Msg("schedule worker error")
	}
	if n > 0 {
		w.log.Info().Int("count", n).Msg("performance schedules run")
	}
}
