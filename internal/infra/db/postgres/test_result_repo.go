package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"brandaion/internal/domain/model"
	"brandaion/internal/domain/ports/repository"
)

var _ repository.TestResultRepository = (*testResultRepo)(nil)

type testResultRepo struct {
	pool *pgxpool.Pool
}

func NewTestResultRepo(pool *pgxpool.Pool) *testResultRepo {
	return &testResultRepo{pool: pool}
}

// Save inserts one outcome. Rows are immutable; a repeated id is ignored.
func (r *testResultRepo) Save(ctx context.Context, tx repository.Tx, o *model.ProviderOutcome) error {
	const q = `
INSERT INTO faq_performance_results (
  id, test_run_id, question_id, auth_user_id, question, expected_answer, ai_provider, model,
  response_text, accuracy_score, token_usage, cost_usd, response_time_ms, status, error_message,
  test_schedule, test_month, tested_at)
VALUES ($1, $2, NULLIF($3, '')::uuid, NULLIF($4, ''), $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NULLIF($15, ''), $16, $17, $18)
ON CONFLICT (id) DO NOTHING;`

	_, err := execSQL(ctx, r.pool, tx, q,
		o.ID, o.TestRunID, o.QuestionID, o.UserID, o.Question, o.ExpectedAnswer, o.Provider, o.Model,
		o.ResponseText, o.AccuracyScore, o.TokenUsage, o.CostUSD, o.ResponseTimeMs, string(o.Status), o.ErrorMessage,
		string(o.Schedule), o.TestMonth, o.TestedAt)
	return err
}

func (r *testResultRepo) ListByRun(ctx context.Context, tx repository.Tx, runID string) ([]*model.ProviderOutcome, error) {
	const q = `
SELECT id::text, test_run_id, COALESCE(question_id::text, ''), COALESCE(auth_user_id, ''), question, expected_answer,
  ai_provider, model, response_text, accuracy_score, token_usage, cost_usd, response_time_ms, status,
  COALESCE(error_message, ''), test_schedule, test_month, tested_at
FROM faq_performance_results
WHERE test_run_id = $1
ORDER BY tested_at, id;`

	rows, err := queryRows(ctx, r.pool, tx, q, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.ProviderOutcome
	for rows.Next() {
		var o model.ProviderOutcome
		var status, schedule string
		if err := rows.Scan(&o.ID, &o.TestRunID, &o.QuestionID, &o.UserID, &o.Question, &o.ExpectedAnswer,
			&o.Provider, &o.Model, &o.ResponseText, &o.AccuracyScore, &o.TokenUsage, &o.CostUSD, &o.ResponseTimeMs, &status,
			&o.ErrorMessage, &schedule, &o.TestMonth, &o.TestedAt); err != nil {
			return nil, scanErr(err)
		}
		o.Status = model.OutcomeStatus(status)
		o.Schedule = model.TestSchedule(schedule)
		out = append(out, &o)
	}
	return out, rows.Err()
}
