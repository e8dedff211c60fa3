package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"brandaion/internal/config"
	"brandaion/internal/domain"
	"brandaion/internal/infra/api/apiv1"
	"brandaion/internal/infra/logging"
	"brandaion/internal/infra/metrics"
	"brandaion/internal/usecase"
)

// Server exposes the batch trigger functions and the schedule API.
type Server struct {
	genUC    usecase.GenerationUseCase
	perfUC   usecase.PerformanceUseCase
	schedUC  usecase.ScheduleUseCase
	verifier *TokenVerifier
	limiter  Limiter
	cfg      config.HTTPConfig
	log      *zerolog.Logger
}

// NewServer builds the HTTP layer. verifier and limiter may be nil.
func NewServer(
	genUC usecase.GenerationUseCase,
	perfUC usecase.PerformanceUseCase,
	schedUC usecase.ScheduleUseCase,
	verifier *TokenVerifier,
	limiter Limiter,
	cfg config.HTTPConfig,
	logger *zerolog.Logger,
) *Server {
	if logger == nil {
		logger = logging.Nop()
	}
	l := logger.With().Str("component", "api").Logger()
	return &Server{
		genUC:    genUC,
		perfUC:   perfUC,
		schedUC:  schedUC,
		verifier: verifier,
		limiter:  limiter,
		cfg:      cfg,
		log:      &l,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		if s.cfg.RequestTimeout > 0 {
			r.Use(Timeout(s.cfg.RequestTimeout))
		}
		r.Use(Authenticate(s.verifier))
		r.Use(RateLimit(s.limiter, s.cfg.RateLimit, s.log))

		r.Post("/functions/generate-questions", s.generateQuestions)
		r.Post("/functions/generate-answers", s.generateAnswers)
		r.Post("/functions/test-faq-performance", s.testPerformance)
		r.Post("/functions/monthly-performance-test", s.monthlyPerformance)

		apiv1.RegisterAPIV1(r, apiv1.NewServer(s.schedUC, s.perfUC, s.log))
	})
	return Chain(r, TraceID(), RequestLog(s.log), Recover(s.log))
}

type envelope struct {
	Success bool        `json:"success"`
	Results interface{} `json:"results,omitempty"`
	Summary interface{} `json:"summary,omitempty"`
	Skipped []string    `json:"skipped_providers,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

// decodeBody accepts an empty body as the zero request.
func decodeBody(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// statusFor maps use case errors onto HTTP codes. Per-item failures never get here.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrBatchInProgress):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	l := logging.With(r.Context(), s.log)
	if code >= http.StatusInternalServerError {
		l.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	} else {
		l.Warn().Err(err).Str("path", r.URL.Path).Msg("request rejected")
	}
	writeJSON(w, code, envelope{Error: err.Error()})
}

func (s *Server) badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, envelope{Error: msg})
}

// resolveUser reconciles the token subject with the body's auth_user_id.
func resolveUser(r *http.Request, bodyUser string) (string, error) {
	authUser := logging.UserIDFrom(r.Context())
	if authUser == "" {
		return bodyUser, nil
	}
	if bodyUser != "" && bodyUser != authUser {
		return "", domain.ErrForbidden
	}
	return authUser, nil
}
