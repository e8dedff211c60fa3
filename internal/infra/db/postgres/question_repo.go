package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"brandaion/internal/domain/model"
	"brandaion/internal/domain/ports/repository"
)

var _ repository.QuestionRepository = (*questionRepo)(nil)

type questionRepo struct {
	pool *pgxpool.Pool
}

func NewQuestionRepo(pool *pgxpool.Pool) *questionRepo {
	return &questionRepo{pool: pool}
}

// ListTestable returns answered review questions; the generated answer is the expected answer.
func (r *questionRepo) ListTestable(ctx context.Context, tx repository.Tx, f model.WorkFilter) ([]*model.QuestionRecord, error) {
	const q = `
SELECT id::text, user_id, question, ai_response_answers
FROM review_questions
WHERE answer_status = 'completed' AND ai_response_answers IS NOT NULL
  AND ($1::text = '' OR user_id = $1::text)
  AND (cardinality($2::text[]) = 0 OR id::text = ANY($2::text[]))
ORDER BY created_at, id;`

	ids := f.IDs
	if ids == nil {
		ids = []string{}
	}
	rows, err := queryRows(ctx, r.pool, tx, q, f.UserID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.QuestionRecord
	for rows.Next() {
		var rec model.QuestionRecord
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Question, &rec.ExpectedAnswer); err != nil {
			return nil, scanErr(err)
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}
