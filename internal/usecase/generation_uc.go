package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"brandaion/internal/domain"
	"brandaion/internal/domain/model"
	"brandaion/internal/domain/ports/adapter"
	"brandaion/internal/domain/ports/repository"
	"brandaion/internal/infra/logging"
	"brandaion/internal/infra/metrics"

	"github.com/rs/zerolog"
)

const (
	// ItemSkipped is reported for items another worker claimed first.
	ItemSkipped = "skipped"
	// ItemReleased is reported for the item in flight when the caller went away; it is pending again.
	ItemReleased = "released"
	// ItemClaimError is reported when the claim itself failed, e.g. the database was unreachable.
	ItemClaimError = "claim_error"
)

// ItemResult is the outcome of one work item within a batch.
type ItemResult struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// BatchReport summarizes one orchestrator invocation. Interrupted is set when the
// caller's context ended before every selected item was processed.
type BatchReport struct {
	Kind        model.WorkItemKind `json:"kind"`
	Selected    int                `json:"selected"`
	Succeeded   int                `json:"succeeded"`
	Failed      int                `json:"failed"`
	Skipped     int                `json:"skipped"`
	Released    int                `json:"released"`
	Interrupted bool               `json:"interrupted"`
	Items       []ItemResult       `json:"items"`
}

// GenerationOptions carries the assistant ids and per-kind failure policy.
type GenerationOptions struct {
	QuestionAssistantID string
	AnswerAssistantID   string
	QuestionsRetry      bool
	AnswersRetry        bool
	// LockTTL bounds how long one invocation may hold the per-user batch lock.
	LockTTL time.Duration
	// ClaimTTL is the age after which an in_progress item counts as abandoned.
	ClaimTTL time.Duration
}

// GenerationUseCase drives pending work items through the assistant one at a time.
type GenerationUseCase interface {
	GenerateQuestions(ctx context.Context, f model.WorkFilter) (*BatchReport, error)
	GenerateAnswers(ctx context.Context, f model.WorkFilter) (*BatchReport, error)
	// ReleaseStale puts abandoned claims of both kinds back to pending.
	ReleaseStale(ctx context.Context, now time.Time) (int, error)
}

var _ GenerationUseCase = (*generationUC)(nil)

type generationUC struct {
	questions repository.WorkItemRepository
	answers   repository.WorkItemRepository
	runner    adapter.AssistantRunner
	locker    adapter.Locker
	opts      GenerationOptions
	log       *zerolog.Logger
}

// NewGenerationUseCase wires the orchestrator. runner may be nil when the assistant
// API key is not configured; both generate calls then fail with a ConfigurationError.
// locker may be nil to disable the per-user invocation lock.
func NewGenerationUseCase(
	questions repository.WorkItemRepository,
	answers repository.WorkItemRepository,
	runner adapter.AssistantRunner,
	locker adapter.Locker,
	opts GenerationOptions,
	logger *zerolog.Logger,
) *generationUC {
	if logger == nil {
		logger = logging.Nop()
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 30 * time.Minute
	}
	l := logger.With().Str("component", "GenerationUC").Logger()
	return &generationUC{
		questions: questions,
		answers:   answers,
		runner:    runner,
		locker:    locker,
		opts:      opts,
		log:       &l,
	}
}

func (g *generationUC) GenerateQuestions(ctx context.Context, f model.WorkFilter) (*BatchReport, error) {
	defer logging.TraceDuration(g.log, "GenerationUC.GenerateQuestions")()
	p := model.QuestionGenerationPolicy(g.opts.QuestionsRetry)
	return g.generate(ctx, g.questions, p, g.opts.QuestionAssistantID, "ai.assistant.question_assistant_id", f)
}

func (g *generationUC) GenerateAnswers(ctx context.Context, f model.WorkFilter) (*BatchReport, error) {
	defer logging.TraceDuration(g.log, "GenerationUC.GenerateAnswers")()
	p := model.AnswerGenerationPolicy(g.opts.AnswersRetry)
	return g.generate(ctx, g.answers, p, g.opts.AnswerAssistantID, "ai.assistant.answer_assistant_id", f)
}

func (g *generationUC) ReleaseStale(ctx context.Context, now time.Time) (int, error) {
	if g.opts.ClaimTTL <= 0 {
		return 0, nil
	}
	cutoff := now.Add(-g.opts.ClaimTTL)
	total := 0
	for _, kind := range []struct {
		repo repository.WorkItemRepository
		p    model.WorkItemPolicy
	}{
		{g.questions, model.QuestionGenerationPolicy(g.opts.QuestionsRetry)},
		{g.answers, model.AnswerGenerationPolicy(g.opts.AnswersRetry)},
	} {
		n, err := kind.repo.ReleaseStale(ctx, repository.NoTX, kind.p, cutoff)
		if err != nil {
			return total, fmt.Errorf("release stale %s: %w", kind.p.Kind, err)
		}
		if n > 0 {
			g.log.Warn().Str("kind", string(kind.p.Kind)).Int("released", n).Msg("released stale claims")
		}
		total += n
	}
	return total, nil
}

func (g *generationUC) generate(
	ctx context.Context,
	repo repository.WorkItemRepository,
	p model.WorkItemPolicy,
	assistantID, assistantKey string,
	f model.WorkFilter,
) (*BatchReport, error) {
	if g.runner == nil {
		return nil, &domain.ConfigurationError{Key: "ai.providers.openai.api_key"}
	}
	if assistantID == "" {
		return nil, &domain.ConfigurationError{Key: assistantKey}
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	if f.BatchID != "" {
		ctx = logging.WithBatchID(ctx, f.BatchID)
	}
	log := logging.With(ctx, g.log).With().Str("kind", string(p.Kind)).Logger()

	if g.locker != nil {
		key := batchLockKey(p.Kind, f.UserID)
		token, err := g.locker.TryLock(ctx, key, g.opts.LockTTL)
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := g.locker.Unlock(context.WithoutCancel(ctx), key, token); err != nil {
				log.Warn().Err(err).Str("key", key).Msg("could not release batch lock")
			}
		}()
	}

	items, err := repo.ListEligible(ctx, repository.NoTX, p, f)
	if err != nil {
		return nil, fmt.Errorf("select %s work items: %w", p.Kind, err)
	}

	report := &BatchReport{Kind: p.Kind, Selected: len(items), Items: make([]ItemResult, 0, len(items))}
	log.Info().Int("selected", len(items)).Msg("batch started")

	for _, it := range items {
		if ctx.Err() != nil {
			report.Interrupted = true
			break
		}
		res := g.processOne(ctx, repo, p, assistantID, it.ID)
		switch res.Status {
		case ItemSkipped:
			report.Skipped++
		case ItemReleased:
			report.Released++
			report.Interrupted = true
		case string(p.Success):
			report.Succeeded++
		default:
			report.Failed++
		}
		report.Items = append(report.Items, res)
		if report.Interrupted {
			break
		}
	}

	// An interrupted batch still ran: unprocessed items stay pending for the next trigger.
	if report.Interrupted {
		log.Warn().
			Err(ctx.Err()).
			Int("processed", len(report.Items)).
			Int("remaining", len(items)-len(report.Items)).
			Msg("batch interrupted")
		return report, nil
	}
	log.Info().
		Int("succeeded", report.Succeeded).
		Int("failed", report.Failed).
		Int("skipped", report.Skipped).
		Msg("batch finished")
	return report, nil
}

// processOne claims, runs and records a single item. The final write uses a
// context detached from cancellation so a disconnecting caller cannot strand the item.
func (g *generationUC) processOne(ctx context.Context, repo repository.WorkItemRepository, p model.WorkItemPolicy, assistantID, id string) ItemResult {
	ctx = logging.WithWorkItemID(ctx, id)
	log := logging.With(ctx, g.log)

	item, err := repo.Claim(ctx, repository.NoTX, p, id)
	if errors.Is(err, domain.ErrAlreadyClaimed) {
		metrics.IncWorkItem(string(p.Kind), ItemSkipped)
		return ItemResult{ID: id, Status: ItemSkipped}
	}
	if err != nil {
		log.Error().Err(err).Msg("claim failed")
		metrics.IncWorkItem(string(p.Kind), ItemClaimError)
		return ItemResult{ID: id, Status: ItemClaimError, Error: err.Error()}
	}

	var reply adapter.AssistantReply
	if strings.TrimSpace(item.Request) == "" {
		err = domain.ErrEmptyRequest
	} else {
		reply, err = g.runner.Run(ctx, item.Request, assistantID)
	}

	final := context.WithoutCancel(ctx)
	if err != nil && ctx.Err() != nil {
		// the run was cut short by the caller, not by the upstream: hand the item back
		log.Warn().Err(err).Msg("work item interrupted, releasing claim")
		if werr := repo.ReleaseClaim(final, repository.NoTX, p, id); werr != nil {
			log.Error().Err(werr).Msg("could not release work item claim")
		}
		metrics.IncWorkItem(string(p.Kind), ItemReleased)
		return ItemResult{ID: id, Status: ItemReleased, Error: err.Error()}
	}
	if err != nil {
		status := p.FailureStatus()
		log.Warn().Err(err).Str("next_status", string(status)).Msg("work item failed")
		if werr := repo.MarkFailed(final, repository.NoTX, p, id, err.Error()); werr != nil {
			log.Error().Err(werr).Msg("could not record work item failure")
		}
		metrics.IncWorkItem(string(p.Kind), string(status))
		return ItemResult{ID: id, Status: string(status), Error: err.Error()}
	}

	if werr := repo.MarkSucceeded(final, repository.NoTX, p, id, reply.Text); werr != nil {
		log.Error().Err(werr).Msg("could not record work item result")
		metrics.IncWorkItem(string(p.Kind), string(p.Claimed))
		return ItemResult{ID: id, Status: string(p.Claimed), Error: werr.Error()}
	}
	log.Debug().Int("tokens", reply.TotalTokens).Int("attempts", reply.Attempts).Msg("work item completed")
	metrics.IncWorkItem(string(p.Kind), string(p.Success))
	return ItemResult{ID: id, Status: string(p.Success)}
}

func batchLockKey(kind model.WorkItemKind, userID string) string {
	if userID == "" {
		userID = "all"
	}
	return "batch_lock:" + string(kind) + ":" + userID
}
