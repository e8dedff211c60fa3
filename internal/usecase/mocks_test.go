//go:build !integration

package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"

	"brandaion/internal/domain"
	"brandaion/internal/domain/model"
	"brandaion/internal/domain/ports/adapter"
	"brandaion/internal/domain/ports/repository"
)

// -----------------------------
// Work items
// -----------------------------

// memWorkRepo is an in-memory WorkItemRepository honoring the policy transitions.
type memWorkRepo struct {
	mu    sync.Mutex
	items map[string]*model.WorkItem

	listCalls int
	// beforeClaim runs inside Claim before the eligibility check; tests use it
	// to simulate another worker winning the race.
	beforeClaim func(id string)
	claimErr    error
	markErr     error
}

func newMemWorkRepo(items ...*model.WorkItem) *memWorkRepo {
	r := &memWorkRepo{items: make(map[string]*model.WorkItem)}
	for _, it := range items {
		r.items[it.ID] = it
	}
	return r
}

func (r *memWorkRepo) ListEligible(ctx context.Context, tx repository.Tx, p model.WorkItemPolicy, f model.WorkFilter) ([]*model.WorkItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listCalls++
	var out []*model.WorkItem
	for _, it := range r.items {
		if it.Kind == p.Kind && p.Eligible(it) && f.Matches(it) {
			cp := *it
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *memWorkRepo) Claim(ctx context.Context, tx repository.Tx, p model.WorkItemPolicy, id string) (*model.WorkItem, error) {
	if r.beforeClaim != nil {
		r.beforeClaim(id)
	}
	if r.claimErr != nil {
		return nil, r.claimErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.items[id]
	if !ok || !p.Eligible(it) {
		return nil, domain.ErrAlreadyClaimed
	}
	it.Status = p.Claimed
	it.UpdatedAt = time.Now()
	cp := *it
	return &cp, nil
}

func (r *memWorkRepo) MarkSucceeded(ctx context.Context, tx repository.Tx, p model.WorkItemPolicy, id, result string) error {
	if r.markErr != nil {
		return r.markErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.items[id]
	if !ok {
		return domain.ErrNotFound
	}
	it.Status = p.Success
	it.Result = &result
	it.ErrorMessage = ""
	return nil
}

func (r *memWorkRepo) MarkFailed(ctx context.Context, tx repository.Tx, p model.WorkItemPolicy, id, message string) error {
	if r.markErr != nil {
		return r.markErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.items[id]
	if !ok {
		return domain.ErrNotFound
	}
	it.Status = p.FailureStatus()
	it.ErrorMessage = message
	return nil
}

func (r *memWorkRepo) ReleaseClaim(ctx context.Context, tx repository.Tx, p model.WorkItemPolicy, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.items[id]
	if !ok || it.Status != p.Claimed {
		return domain.ErrNotFound
	}
	it.Status = p.Pending
	return nil
}

func (r *memWorkRepo) ReleaseStale(ctx context.Context, tx repository.Tx, p model.WorkItemPolicy, olderThan time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, it := range r.items {
		if it.Kind == p.Kind && it.Status == p.Claimed && it.UpdatedAt.Before(olderThan) {
			it.Status = p.Pending
			n++
		}
	}
	return n, nil
}

func (r *memWorkRepo) get(id string) model.WorkItem {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.items[id]
}

func pendingItem(id string, kind model.WorkItemKind, userID, request string, created time.Time) *model.WorkItem {
	return &model.WorkItem{
		ID:        id,
		Kind:      kind,
		UserID:    userID,
		Request:   request,
		Status:    model.StatusPending,
		CreatedAt: created,
		UpdatedAt: created,
	}
}

// -----------------------------
// Assistant runner
// -----------------------------

type fakeRunner struct {
	mu      sync.Mutex
	calls   []string
	RunFunc func(ctx context.Context, requestText, assistantID string) (adapter.AssistantReply, error)
}

var _ adapter.AssistantRunner = (*fakeRunner)(nil)

func (f *fakeRunner) Run(ctx context.Context, requestText, assistantID string) (adapter.AssistantReply, error) {
	f.mu.Lock()
	f.calls = append(f.calls, requestText)
	f.mu.Unlock()
	if f.RunFunc != nil {
		return f.RunFunc(ctx, requestText, assistantID)
	}
	return adapter.AssistantReply{Text: "ok"}, nil
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// -----------------------------
// Locker
// -----------------------------

type memLocker struct {
	mu   sync.Mutex
	held map[string]string
}

var _ adapter.Locker = (*memLocker)(nil)

func newMemLocker() *memLocker { return &memLocker{held: make(map[string]string)} }

func (l *memLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return "", domain.ErrBatchInProgress
	}
	l.held[key] = "tok-" + key
	return l.held[key], nil
}

func (l *memLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
	}
	return nil
}

// -----------------------------
// Questions and results
// -----------------------------

type memQuestionRepo struct {
	records []*model.QuestionRecord
	err     error
}

func (r *memQuestionRepo) ListTestable(ctx context.Context, tx repository.Tx, f model.WorkFilter) ([]*model.QuestionRecord, error) {
	if r.err != nil {
		return nil, r.err
	}
	var out []*model.QuestionRecord
	for _, q := range r.records {
		it := &model.WorkItem{ID: q.ID, UserID: q.UserID}
		if f.Matches(it) {
			out = append(out, q)
		}
	}
	return out, nil
}

type memResultRepo struct {
	mu      sync.Mutex
	saved   []*model.ProviderOutcome
	saveErr error
}

func (r *memResultRepo) Save(ctx context.Context, tx repository.Tx, o *model.ProviderOutcome) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *o
	r.saved = append(r.saved, &cp)
	return nil
}

func (r *memResultRepo) ListByRun(ctx context.Context, tx repository.Tx, runID string) ([]*model.ProviderOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.ProviderOutcome
	for _, o := range r.saved {
		if o.TestRunID == runID {
			out = append(out, o)
		}
	}
	return out, nil
}

// fakeCompleter answers per provider key.
type fakeCompleter struct {
	mu      sync.Mutex
	prompts []string
	byKey   map[model.ProviderKey]func(ctx context.Context, prompt string) (adapter.Completion, error)
}

var _ adapter.Completer = (*fakeCompleter)(nil)

func (f *fakeCompleter) Complete(ctx context.Context, p model.ProviderConfig, prompt string) (adapter.Completion, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	fn := f.byKey[p.Key]
	f.mu.Unlock()
	if fn == nil {
		return adapter.Completion{}, &domain.ProviderError{Provider: string(p.Key), StatusCode: 500, Err: context.DeadlineExceeded}
	}
	return fn(ctx, prompt)
}

// -----------------------------
// Schedules
// -----------------------------

type memScheduleRepo struct {
	mu   sync.Mutex
	rows map[string]*model.PerformanceSchedule
	// saveErr fails Save for the given schedule ids.
	saveErr map[string]error
}

func newMemScheduleRepo() *memScheduleRepo {
	return &memScheduleRepo{rows: make(map[string]*model.PerformanceSchedule), saveErr: make(map[string]error)}
}

func (r *memScheduleRepo) Save(ctx context.Context, tx repository.Tx, s *model.PerformanceSchedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.saveErr[s.ID]; err != nil {
		return err
	}
	cp := *s
	r.rows[s.ID] = &cp
	return nil
}

func (r *memScheduleRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.PerformanceSchedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.PerformanceSchedule
	for _, s := range r.rows {
		if s.UserID == userID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memScheduleRepo) ListDue(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]*model.PerformanceSchedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.PerformanceSchedule
	for _, s := range r.rows {
		if s.Due(now) {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NextRunAt.Before(out[j].NextRunAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memScheduleRepo) get(id string) model.PerformanceSchedule {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.rows[id]
}

func (r *memScheduleRepo) snapshot() map[string]model.PerformanceSchedule {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]model.PerformanceSchedule, len(r.rows))
	for id, s := range r.rows {
		out[id] = *s
	}
	return out
}

func (r *memScheduleRepo) restore(snap map[string]model.PerformanceSchedule) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = make(map[string]*model.PerformanceSchedule, len(snap))
	for id, s := range snap {
		cp := s
		r.rows[id] = &cp
	}
}

// stubTester records TestQuestions calls. run, when set, replaces the canned result.
type stubTester struct {
	mu        sync.Mutex
	schedules []model.TestSchedule
	err       error
	run       func(ctx context.Context, questions []*model.QuestionRecord) (*TestBatchResult, error)
}

var _ PerformanceUseCase = (*stubTester)(nil)

func (s *stubTester) TestOne(ctx context.Context, question, expectedAnswer, providerKey string) (*model.ProviderOutcome, bool) {
	return nil, false
}

func (s *stubTester) TestBatch(ctx context.Context, req TestRequest) (*TestBatchResult, error) {
	return s.TestQuestions(ctx, nil, req.Providers, req.Schedule)
}

func (s *stubTester) TestQuestions(ctx context.Context, questions []*model.QuestionRecord, providers []string, schedule model.TestSchedule) (*TestBatchResult, error) {
	s.mu.Lock()
	s.schedules = append(s.schedules, schedule)
	run := s.run
	s.mu.Unlock()
	if run != nil {
		return run(ctx, questions)
	}
	if s.err != nil {
		return nil, s.err
	}
	return &TestBatchResult{Summary: model.TestSummary{TestRunID: "run", TotalTests: len(questions) * len(providers)}}, nil
}

func (s *stubTester) GetRun(context.Context, string, string) (*TestBatchResult, error) {
	return nil, domain.ErrNotFound
}

// passTx runs fn with a marker tx and counts invocations.
type passTx struct {
	mu    sync.Mutex
	calls int
}

func (p *passTx) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	return fn(ctx, "tx")
}

// rollbackTx behaves like a database transaction over memScheduleRepo:
// rows written inside fn are discarded when fn fails.
type rollbackTx struct {
	repo      *memScheduleRepo
	rollbacks int
}

func (r *rollbackTx) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	snap := r.repo.snapshot()
	if err := fn(ctx, "tx"); err != nil {
		r.repo.restore(snap)
		r.rollbacks++
		return err
	}
	return nil
}
