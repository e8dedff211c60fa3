package usecase

import (
	"context"
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

const answerPromptTemplate = "Please answer the following question based on the provided context.\n\n" +
	"Question: %s\n\n" +
	"Expected Answer Context: %s\n\n" +
	"Please provide your answer:"

// TestRequest selects questions and providers for one performance test run.
type TestRequest struct {
	UserID      string
	QuestionIDs []string
	Providers   []string
	Schedule    model.TestSchedule
}

// TestBatchResult is what one TestBatch invocation produced.
type TestBatchResult struct {
	Results []*model.ProviderOutcome `json:"results"`
	Summary model.TestSummary        `json:"summary"`
	Skipped []string                 `json:"skipped_providers,omitempty"`
}

// PerformanceUseCase tests FAQ answers against several LLM providers.
type PerformanceUseCase interface {
	// TestOne runs a single question against a single provider without persisting.
	// ok is false when the provider is not registered.
	TestOne(ctx context.Context, question, expectedAnswer, providerKey string) (o *model.ProviderOutcome, ok bool)

	// TestBatch loads the requested questions and tests each against each provider,
	// persisting every outcome as soon as it is known.
	TestBatch(ctx context.Context, req TestRequest) (*TestBatchResult, error)

	// TestQuestions is TestBatch for questions the caller already loaded.
	TestQuestions(ctx context.Context, questions []*model.QuestionRecord, providers []string, schedule model.TestSchedule) (*TestBatchResult, error)

	// GetRun reloads the stored outcomes of one test run. A non-empty userID
	// restricts the run to that user's rows.
	GetRun(ctx context.Context, runID, userID string) (*TestBatchResult, error)
}

var _ PerformanceUseCase = (*performanceUC)(nil)

type performanceUC struct {
	registry         *model.ProviderRegistry
	completer        adapter.Completer
	questions        repository.QuestionRepository
	results          repository.TestResultRepository
	defaultProviders []string
	requestTimeout   time.Duration
	now              func() time.Time
	log              *zerolog.Logger
}

func NewPerformanceUseCase(
	registry *model.ProviderRegistry,
	completer adapter.Completer,
	questions repository.QuestionRepository,
	results repository.TestResultRepository,
	defaultProviders []string,
	requestTimeout time.Duration,
	logger *zerolog.Logger,
) *performanceUC {
	if logger == nil {
		logger = logging.Nop()
	}
	l := logger.With().Str("component", "PerformanceUC").Logger()
	return &performanceUC{
		registry:         registry,
		completer:        completer,
		questions:        questions,
		results:          results,
		defaultProviders: defaultProviders,
		requestTimeout:   requestTimeout,
		now:              time.Now,
		log:              &l,
	}
}

func (p *performanceUC) TestOne(ctx context.Context, question, expectedAnswer, providerKey string) (*model.ProviderOutcome, bool) {
	cfg, ok := p.registry.Get(providerKey)
	if !ok {
		p.log.Warn().Err(domain.ErrUnknownProvider).Str("provider", providerKey).Msg("skipping provider")
		metrics.IncProviderSkipped(providerKey)
		return nil, false
	}
	q := model.QuestionRecord{Question: question, ExpectedAnswer: expectedAnswer}
	return p.testOne(ctx, "", q, cfg, model.ScheduleManual), true
}

func (p *performanceUC) TestBatch(ctx context.Context, req TestRequest) (*TestBatchResult, error) {
	if req.UserID == "" && len(req.QuestionIDs) == 0 {
		return nil, fmt.Errorf("%w: question_ids or auth_user_id is required", domain.ErrInvalidArgument)
	}
	qs, err := p.questions.ListTestable(ctx, repository.NoTX, model.WorkFilter{UserID: req.UserID, IDs: req.QuestionIDs})
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	return p.TestQuestions(ctx, qs, req.Providers, req.Schedule)
}

func (p *performanceUC) TestQuestions(ctx context.Context, questions []*model.QuestionRecord, providers []string, schedule model.TestSchedule) (*TestBatchResult, error) {
	if schedule == "" {
		schedule = model.ScheduleManual
	}
	if !schedule.Valid() {
		return nil, fmt.Errorf("%w: test_schedule %q", domain.ErrInvalidArgument, schedule)
	}
	if len(providers) == 0 {
		providers = p.defaultProviders
	}

	// Resolve providers once; unknown keys are skipped for the whole run.
	var cfgs []model.ProviderConfig
	var skipped []string
	for _, key := range providers {
		cfg, ok := p.registry.Get(key)
		if !ok {
			p.log.Warn().Err(domain.ErrUnknownProvider).Str("provider", key).Msg("skipping provider")
			metrics.IncProviderSkipped(key)
			skipped = append(skipped, key)
			continue
		}
		cfgs = append(cfgs, cfg)
	}

	runID := model.NewTestRunID()
	log := p.log.With().Str("test_run_id", runID).Str("schedule", string(schedule)).Logger()
	log.Info().Int("questions", len(questions)).Int("providers", len(cfgs)).Msg("performance test started")

	out := &TestBatchResult{Results: make([]*model.ProviderOutcome, 0, len(questions)*len(cfgs)), Skipped: skipped}
	for _, q := range questions {
		for _, cfg := range cfgs {
			if err := ctx.Err(); err != nil {
				out.Summary = model.Summarize(runID, out.Results)
				return out, err
			}
			o := p.testOne(ctx, runID, *q, cfg, schedule)
			if err := p.results.Save(context.WithoutCancel(ctx), repository.NoTX, o); err != nil {
				log.Error().Err(err).Str("question_id", q.ID).Str("provider", string(cfg.Key)).Msg("could not persist test result")
			}
			out.Results = append(out.Results, o)
		}
	}

	out.Summary = model.Summarize(runID, out.Results)
	log.Info().
		Int("total_tests", out.Summary.TotalTests).
		Int("successful_tests", out.Summary.SuccessfulTests).
		Float64("total_cost", out.Summary.TotalCost).
		Msg("performance test finished")
	return out, nil
}

func (p *performanceUC) GetRun(ctx context.Context, runID, userID string) (*TestBatchResult, error) {
	if runID == "" {
		return nil, fmt.Errorf("%w: test run id is required", domain.ErrInvalidArgument)
	}
	rows, err := p.results.ListByRun(ctx, repository.NoTX, runID)
	if err != nil {
		return nil, fmt.Errorf("load test run: %w", err)
	}
	if len(rows) == 0 {
		return nil, domain.ErrNotFound
	}
	if userID != "" {
		for _, o := range rows {
			if o.UserID != userID {
				return nil, domain.ErrForbidden
			}
		}
	}
	return &TestBatchResult{Results: rows, Summary: model.Summarize(runID, rows)}, nil
}

// testOne never fails: provider errors are captured in the outcome.
func (p *performanceUC) testOne(ctx context.Context, runID string, q model.QuestionRecord, cfg model.ProviderConfig, schedule model.TestSchedule) *model.ProviderOutcome {
	o := model.NewProviderOutcome(runID, q, string(cfg.Key), schedule, p.now())
	o.Model = cfg.Model

	callCtx := ctx
	if p.requestTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, p.requestTimeout)
		defer cancel()
	}

	prompt := fmt.Sprintf(answerPromptTemplate, q.Question, q.ExpectedAnswer)
	start := p.now()
	c, err := p.completer.Complete(callCtx, cfg, prompt)
	o.ResponseTimeMs = p.now().Sub(start).Milliseconds()

	if err == nil && strings.TrimSpace(c.Text) == "" {
		err = &domain.ProviderError{Provider: string(cfg.Key), Err: fmt.Errorf("empty response text")}
	}
	if err != nil {
		o.Fail(err.Error())
		metrics.ObserveProviderCall(string(cfg.Key), cfg.Model, 0, 0, o.ResponseTimeMs, false)
		p.log.Warn().Err(err).Str("provider", string(cfg.Key)).Str("question_id", q.ID).Msg("provider test failed")
		return o
	}

	o.Status = model.OutcomeSuccess
	o.ResponseText = c.Text
	o.TokenUsage = c.TokenUsage
	o.CostUSD = CostUSD(c.TokenUsage, cfg.CostPerKTokens)
	o.AccuracyScore = SimilarityScore(q.ExpectedAnswer, c.Text)
	metrics.ObserveProviderCall(string(cfg.Key), cfg.Model, o.TokenUsage, o.CostUSD, o.ResponseTimeMs, true)
	metrics.ObserveAccuracy(string(cfg.Key), o.AccuracyScore)
	return o
}
