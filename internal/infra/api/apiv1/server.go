package apiv1

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"brandaion/internal/domain"
	"brandaion/internal/domain/model"
	"brandaion/internal/infra/logging"
	"brandaion/internal/usecase"
)

// Schedule is the wire form of a performance schedule.
type Schedule struct {
	ID          string     `json:"id"`
	AuthUserID  string     `json:"auth_user_id"`
	Cadence     string     `json:"cadence"`
	AIProviders []string   `json:"ai_providers"`
	NextRunAt   time.Time  `json:"next_run_at"`
	LastRunAt   *time.Time `json:"last_run_at,omitempty"`
	Active      bool       `json:"active"`
}

type CreateScheduleRequest struct {
	AuthUserID  string     `json:"auth_user_id"`
	Cadence     string     `json:"cadence"`
	AIProviders []string   `json:"ai_providers"`
	FirstRunAt  *time.Time `json:"first_run_at"`
}

type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// RunReader loads stored performance test runs.
type RunReader interface {
	GetRun(ctx context.Context, runID, userID string) (*usecase.TestBatchResult, error)
}

type Server struct {
	schedUC usecase.ScheduleUseCase
	runs    RunReader
	log     *zerolog.Logger
}

// NewServer builds the v1 handlers. runs may be nil, which disables the test run route.
func NewServer(schedUC usecase.ScheduleUseCase, runs RunReader, logger *zerolog.Logger) *Server {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Server{schedUC: schedUC, runs: runs, log: logger}
}

// RegisterAPIV1 mounts the versioned routes at their absolute paths.
func RegisterAPIV1(r chi.Router, s *Server) {
	r.Get("/api/v1/schedules", s.ListSchedules)
	r.Post("/api/v1/schedules", s.CreateSchedule)
	if s.runs != nil {
		r.Get("/api/v1/test-runs/{id}", s.GetTestRun)
	}
}

// GetTestRun returns every stored outcome of one run with its recomputed summary.
func (s *Server) GetTestRun(w http.ResponseWriter, r *http.Request) {
	user, err := callerUser(r, r.URL.Query().Get("auth_user_id"))
	if err != nil {
		writeErr(w, http.StatusForbidden, err)
		return
	}
	res, err := s.runs.GetRun(r.Context(), chi.URLParam(r, "id"), user)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeErr(w, http.StatusNotFound, errors.New("test run not found"))
		return
	case errors.Is(err, domain.ErrForbidden):
		writeErr(w, http.StatusForbidden, err)
		return
	case errors.Is(err, domain.ErrInvalidArgument):
		writeErr(w, http.StatusBadRequest, err)
		return
	case err != nil:
		s.log.Error().Err(err).Msg("get test run")
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "results": res.Results, "summary": res.Summary})
}

func (s *Server) ListSchedules(w http.ResponseWriter, r *http.Request) {
	user, err := callerUser(r, r.URL.Query().Get("auth_user_id"))
	if err != nil {
		writeErr(w, http.StatusForbidden, err)
		return
	}
	if user == "" {
		writeErr(w, http.StatusBadRequest, errors.New("auth_user_id is required"))
		return
	}
	list, err := s.schedUC.List(r.Context(), user)
	if err != nil {
		s.log.Error().Err(err).Msg("list schedules")
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	items := make([]Schedule, 0, len(list))
	for _, ps := range list {
		items = append(items, toSchedule(ps))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "items": items})
}

func (s *Server) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req CreateScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}
	user, err := callerUser(r, req.AuthUserID)
	if err != nil {
		writeErr(w, http.StatusForbidden, err)
		return
	}
	var first time.Time
	if req.FirstRunAt != nil {
		first = *req.FirstRunAt
	}
	ps, err := s.schedUC.Create(r.Context(), user, model.TestSchedule(req.Cadence), req.AIProviders, first)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) {
			writeErr(w, http.StatusBadRequest, err)
			return
		}
		s.log.Error().Err(err).Msg("create schedule")
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSchedule(ps))
}

func toSchedule(ps *model.PerformanceSchedule) Schedule {
	providers := ps.Providers
	if providers == nil {
		providers = []string{}
	}
	return Schedule{
		ID:          ps.ID,
		AuthUserID:  ps.UserID,
		Cadence:     string(ps.Cadence),
		AIProviders: providers,
		NextRunAt:   ps.NextRunAt,
		LastRunAt:   ps.LastRunAt,
		Active:      ps.Active,
	}
}

func callerUser(r *http.Request, requested string) (string, error) {
	authUser := logging.UserIDFrom(r.Context())
	if authUser == "" {
		return requested, nil
	}
	if requested != "" && requested != authUser {
		return "", domain.ErrForbidden
	}
	return authUser, nil
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, errorBody{Error: err.Error()})
}
