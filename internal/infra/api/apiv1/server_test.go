//go:build !integration

package apiv1_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"brandaion/internal/domain"
	"brandaion/internal/domain/model"
	apiv1 "brandaion/internal/infra/api/apiv1"
	"brandaion/internal/infra/logging"
	"brandaion/internal/usecase"
)

type memSchedules struct {
	byUser    map[string][]*model.PerformanceSchedule
	errList   error
	errCreate error
}

func newMemSchedules() *memSchedules {
	return &memSchedules{byUser: map[string][]*model.PerformanceSchedule{}}
}

func (m *memSchedules) Create(_ context.Context, userID string, cadence model.TestSchedule, providers []string, first time.Time) (*model.PerformanceSchedule, error) {
	if m.errCreate != nil {
		return nil, m.errCreate
	}
	if userID == "" || (cadence != model.ScheduleWeekly && cadence != model.ScheduleMonthly) {
		return nil, fmt.Errorf("%w: bad schedule", domain.ErrInvalidArgument)
	}
	ps := model.NewPerformanceSchedule(userID, cadence, providers, first)
	m.byUser[userID] = append(m.byUser[userID], ps)
	return ps, nil
}

func (m *memSchedules) List(_ context.Context, userID string) ([]*model.PerformanceSchedule, error) {
	if m.errList != nil {
		return nil, m.errList
	}
	return m.byUser[userID], nil
}

func (m *memSchedules) RunDue(context.Context, time.Time) (int, error) { return 0, nil }

func newRouter(uc *memSchedules) *chi.Mux {
	r := chi.NewRouter()
	apiv1.RegisterAPIV1(r, apiv1.NewServer(uc, nil, nil))
	return r
}

func do(r http.Handler, method, path, payload string, ctx context.Context) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(payload))
	if ctx != nil {
		req = req.WithContext(ctx)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestSchedules_Create(t *testing.T) {
	t.Run("201 created", func(t *testing.T) {
		uc := newMemSchedules()
		rec := do(newRouter(uc), http.MethodPost, "/api/v1/schedules",
			`{"auth_user_id":"u1","cadence":"weekly","ai_providers":["openai"],"first_run_at":"2026-07-01T09:00:00Z"}`, nil)
		if rec.Code != http.StatusCreated {
			t.Fatalf("got %d, body=%s", rec.Code, rec.Body.String())
		}
		var s apiv1.Schedule
		if err := json.NewDecoder(rec.Body).Decode(&s); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if s.Cadence != "weekly" || !s.NextRunAt.Equal(time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)) || !s.Active {
			t.Fatalf("unexpected schedule %+v", s)
		}
	})

	t.Run("400 manual cadence", func(t *testing.T) {
		rec := do(newRouter(newMemSchedules()), http.MethodPost, "/api/v1/schedules", `{"auth_user_id":"u1","cadence":"manual"}`, nil)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("want 400, got %d", rec.Code)
		}
	})

	t.Run("400 missing body", func(t *testing.T) {
		rec := do(newRouter(newMemSchedules()), http.MethodPost, "/api/v1/schedules", ``, nil)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("want 400, got %d", rec.Code)
		}
	})

	t.Run("403 for another user's schedule", func(t *testing.T) {
		ctx := logging.WithUserID(context.Background(), "u1")
		rec := do(newRouter(newMemSchedules()), http.MethodPost, "/api/v1/schedules", `{"auth_user_id":"u2","cadence":"weekly"}`, ctx)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("want 403, got %d", rec.Code)
		}
	})

	t.Run("500 on store failure", func(t *testing.T) {
		uc := newMemSchedules()
		uc.errCreate = errors.New("db down")
		rec := do(newRouter(uc), http.MethodPost, "/api/v1/schedules", `{"auth_user_id":"u1","cadence":"weekly"}`, nil)
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("want 500, got %d", rec.Code)
		}
	})
}

func TestSchedules_List(t *testing.T) {
	uc := newMemSchedules()
	_, _ = uc.Create(context.Background(), "u1", model.ScheduleMonthly, nil, time.Now())
	r := newRouter(uc)

	rec := do(r, http.MethodGet, "/api/v1/schedules?auth_user_id=u1", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
	var body struct {
		Items []apiv1.Schedule `json:"items"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Items) != 1 || body.Items[0].Cadence != "monthly" || body.Items[0].AIProviders == nil {
		t.Fatalf("unexpected items %+v", body.Items)
	}

	if rec := do(r, http.MethodGet, "/api/v1/schedules", "", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing user: want 400, got %d", rec.Code)
	}

	// the token subject scopes the listing when no query user is given
	ctx := logging.WithUserID(context.Background(), "u1")
	if rec := do(r, http.MethodGet, "/api/v1/schedules", "", ctx); rec.Code != http.StatusOK {
		t.Fatalf("token user: want 200, got %d", rec.Code)
	}

	uc.errList = errors.New("boom")
	if rec := do(r, http.MethodGet, "/api/v1/schedules?auth_user_id=u1", "", nil); rec.Code != http.StatusInternalServerError {
		t.Fatalf("want 500, got %d", rec.Code)
	}
}

type memRuns struct {
	lastUser string
	err      error
}

func (m *memRuns) GetRun(_ context.Context, runID, userID string) (*usecase.TestBatchResult, error) {
	m.lastUser = userID
	if m.err != nil {
		return nil, m.err
	}
	return &usecase.TestBatchResult{
		Results: []*model.ProviderOutcome{{TestRunID: runID, Provider: "openai", Status: model.OutcomeSuccess, CostUSD: 0.06}},
		Summary: model.TestSummary{TestRunID: runID, TotalTests: 1, SuccessfulTests: 1, TotalCost: 0.06},
	}, nil
}

func TestTestRuns_Get(t *testing.T) {
	newRunsRouter := func(runs *memRuns) *chi.Mux {
		r := chi.NewRouter()
		apiv1.RegisterAPIV1(r, apiv1.NewServer(newMemSchedules(), runs, nil))
		return r
	}

	t.Run("200 with summary", func(t *testing.T) {
		runs := &memRuns{}
		rec := do(newRunsRouter(runs), http.MethodGet, "/api/v1/test-runs/01J0RUN?auth_user_id=u1", "", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("got %d, body=%s", rec.Code, rec.Body.String())
		}
		var body struct {
			Results []model.ProviderOutcome `json:"results"`
			Summary model.TestSummary       `json:"summary"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(body.Results) != 1 || body.Summary.TestRunID != "01J0RUN" || body.Summary.TotalCost != 0.06 {
			t.Fatalf("unexpected body %+v", body)
		}
		if runs.lastUser != "u1" {
			t.Fatalf("user filter not passed, got %q", runs.lastUser)
		}
	})

	t.Run("token subject scopes the run", func(t *testing.T) {
		runs := &memRuns{}
		ctx := logging.WithUserID(context.Background(), "u9")
		rec := do(newRunsRouter(runs), http.MethodGet, "/api/v1/test-runs/r1?auth_user_id=u1", "", ctx)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("want 403, got %d", rec.Code)
		}
	})

	t.Run("404 and 403 from the use case", func(t *testing.T) {
		for err, code := range map[error]int{domain.ErrNotFound: http.StatusNotFound, domain.ErrForbidden: http.StatusForbidden} {
			rec := do(newRunsRouter(&memRuns{err: err}), http.MethodGet, "/api/v1/test-runs/r1", "", nil)
			if rec.Code != code {
				t.Fatalf("%v: want %d, got %d", err, code, rec.Code)
			}
		}
	})

	t.Run("route absent without a reader", func(t *testing.T) {
		rec := do(newRouter(newMemSchedules()), http.MethodGet, "/api/v1/test-runs/r1", "", nil)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("want 404, got %d", rec.Code)
		}
	})
}
