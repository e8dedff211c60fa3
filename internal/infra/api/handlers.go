package api

import (
	"net/http"

	"brandaion/internal/domain/model"
	"brandaion/internal/infra/logging"
	"brandaion/internal/usecase"
)

type generateQuestionsRequest struct {
	AuthUserID string `json:"auth_user_id"`
	BatchID    string `json:"batchId"`
	QuestionID string `json:"question_id"`
}

type generateAnswersRequest struct {
	AuthUserID  string   `json:"auth_user_id"`
	QuestionID  string   `json:"question_id"`
	QuestionIDs []string `json:"question_ids"`
}

type testPerformanceRequest struct {
	AuthUserID   string   `json:"auth_user_id"`
	QuestionIDs  []string `json:"question_ids"`
	AIProviders  []string `json:"ai_providers"`
	TestSchedule string   `json:"test_schedule"`
}

type monthlyPerformanceRequest struct {
	AuthUserID  string   `json:"auth_user_id"`
	AIProviders []string `json:"ai_providers"`
}

// batchSummary is the report without its per-item list.
type batchSummary struct {
	Kind        model.WorkItemKind `json:"kind"`
	Selected    int                `json:"selected"`
	Succeeded   int                `json:"succeeded"`
	Failed      int                `json:"failed"`
	Skipped     int                `json:"skipped"`
	Released    int                `json:"released"`
	Interrupted bool               `json:"interrupted"`
}

func reportEnvelope(rep *usecase.BatchReport) envelope {
	items := rep.Items
	if items == nil {
		items = []usecase.ItemResult{}
	}
	return envelope{
		Success: true,
		Results: items,
		Summary: batchSummary{
			Kind:        rep.Kind,
			Selected:    rep.Selected,
			Succeeded:   rep.Succeeded,
			Failed:      rep.Failed,
			Skipped:     rep.Skipped,
			Released:    rep.Released,
			Interrupted: rep.Interrupted,
		},
	}
}

func (s *Server) generateQuestions(w http.ResponseWriter, r *http.Request) {
	var req generateQuestionsRequest
	if err := decodeBody(r, &req); err != nil {
		s.badRequest(w, "invalid request body")
		return
	}
	user, err := resolveUser(r, req.AuthUserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	f := model.WorkFilter{UserID: user, BatchID: req.BatchID}
	if req.QuestionID != "" {
		f.IDs = []string{req.QuestionID}
	}
	ctx := logging.WithBatchID(r.Context(), req.BatchID)

	rep, err := s.genUC.GenerateQuestions(ctx, f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reportEnvelope(rep))
}

func (s *Server) generateAnswers(w http.ResponseWriter, r *http.Request) {
	var req generateAnswersRequest
	if err := decodeBody(r, &req); err != nil {
		s.badRequest(w, "invalid request body")
		return
	}
	user, err := resolveUser(r, req.AuthUserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ids := append([]string{}, req.QuestionIDs...)
	if req.QuestionID != "" {
		ids = append(ids, req.QuestionID)
	}

	rep, err := s.genUC.GenerateAnswers(r.Context(), model.WorkFilter{UserID: user, IDs: ids})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reportEnvelope(rep))
}

func (s *Server) testPerformance(w http.ResponseWriter, r *http.Request) {
	var req testPerformanceRequest
	if err := decodeBody(r, &req); err != nil {
		s.badRequest(w, "invalid request body")
		return
	}
	if len(req.QuestionIDs) == 0 {
		s.badRequest(w, "question_ids is required")
		return
	}
	user, err := resolveUser(r, req.AuthUserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	res, err := s.perfUC.TestBatch(r.Context(), usecase.TestRequest{
		UserID:      user,
		QuestionIDs: req.QuestionIDs,
		Providers:   req.AIProviders,
		Schedule:    model.TestSchedule(req.TestSchedule),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, testEnvelope(res))
}

func (s *Server) monthlyPerformance(w http.ResponseWriter, r *http.Request) {
	var req monthlyPerformanceRequest
	if err := decodeBody(r, &req); err != nil {
		s.badRequest(w, "invalid request body")
		return
	}
	user, err := resolveUser(r, req.AuthUserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if user == "" {
		s.badRequest(w, "auth_user_id is required")
		return
	}

	res, err := s.perfUC.TestBatch(r.Context(), usecase.TestRequest{
		UserID:    user,
		Providers: req.AIProviders,
		Schedule:  model.ScheduleMonthly,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, testEnvelope(res))
}

func testEnvelope(res *usecase.TestBatchResult) envelope {
	results := res.Results
	if results == nil {
		results = []*model.ProviderOutcome{}
	}
	return envelope{Success: true, Results: results, Summary: res.Summary, Skipped: res.Skipped}
}
