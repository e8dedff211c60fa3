package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"brandaion/internal/domain"
	"brandaion/internal/domain/model"
	"brandaion/internal/usecase"
)

// GenerationWorker periodically releases abandoned claims and drains both
// generation queues for all users.
type GenerationWorker struct {
	interval time.Duration
	genUC    usecase.GenerationUseCase
	now      func() time.Time
	log      *zerolog.Logger
}

func NewGenerationWorker(interval time.Duration, genUC usecase.GenerationUseCase, logger *zerolog.Logger) *GenerationWorker {
	l := logger.With().Str("component", "GenerationWorker").Logger()
	return &GenerationWorker{interval: interval, genUC: genUC, now: time.Now, log: &l}
}

func (w *GenerationWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting generation worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping generation worker")
			return ctx.Err()
		case <-ticker.C:
			w.Tick(ctx)
		}
	}
}

// Tick runs one pass. Errors are logged; the next tick tries again.
func (w *GenerationWorker) Tick(ctx context.Context) {
	n, err := w.genUC.ReleaseStale(ctx, w.now())
	if err != nil {
		w.log.Error().Err(err).Msg("release stale claims")
	} else if n > 0 {
		w.log.Warn().Int("count", n).Msg("stale claims released")
	}

	w.report("questions", func() (*usecase.BatchReport, error) {
		return w.genUC.GenerateQuestions(ctx, model.WorkFilter{})
	})
	w.report("answers", func() (*usecase.BatchReport, error) {
		return w.genUC.GenerateAnswers(ctx, model.WorkFilter{})
	})
}

func (w *GenerationWorker) report(kind string, run func() (*usecase.BatchReport, error)) {
	rep, err := run()
	switch {
	case errors.Is(err, domain.ErrBatchInProgress):
		w.log.Debug().Str("kind", kind).Msg("batch already running, skipping tick")
	case err != nil:
		w.log.Error().Err(err).Str("kind", kind).Msg("generation pass failed")
	case rep.Selected > 0:
		w.log.Info().
			Str("kind", kind).
			Int("selected", rep.Selected).
			Int("succeeded", rep.Succeeded).
			Int("failed", rep.Failed).
			Int("skipped", rep.Skipped).
			Int("released", rep.Released).
			Bool("interrupted", rep.Interrupted).
			Msg("generation pass done")
	}
}
