package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"brandaion/internal/domain"
	"brandaion/internal/domain/model"
	"brandaion/internal/domain/ports/repository"
)

var _ repository.WorkItemRepository = (*workItemRepo)(nil)

// workTable maps a work item kind onto its table and columns.
type workTable struct {
	table    string
	status   string
	request  string
	result   string
	errorMsg string
	// eligible is an extra predicate ANDed into selection and claim.
	eligible string
}

var (
	questionTable = workTable{
		table:    "construct_faq_pairs",
		status:   "generation_status",
		request:  "ai_request_for_questions",
		result:   "ai_response_questions",
		errorMsg: "error_message",
	}
	answerTable = workTable{
		table:    "review_questions",
		status:   "answer_status",
		request:  "ai_request_for_answers",
		result:   "ai_response_answers",
		errorMsg: "answer_error_message",
		eligible: "AND question_status = '" + model.QuestionApproved + "'",
	}
)

type workItemRepo struct {
	pool *pgxpool.Pool
	t    workTable
	kind model.WorkItemKind
}

// NewQuestionWorkRepo serves question generation over construct_faq_pairs.
func NewQuestionWorkRepo(pool *pgxpool.Pool) *workItemRepo {
	return &workItemRepo{pool: pool, t: questionTable, kind: model.KindQuestionGeneration}
}

// NewAnswerWorkRepo serves answer generation over approved review_questions.
func NewAnswerWorkRepo(pool *pgxpool.Pool) *workItemRepo {
	return &workItemRepo{pool: pool, t: answerTable, kind: model.KindAnswerGeneration}
}

func (r *workItemRepo) columns() string {
	return fmt.Sprintf(`id::text, user_id, COALESCE(batch_id, ''), COALESCE(%s, ''), %s, %s, COALESCE(%s, ''), created_at, updated_at`,
		r.t.request, r.t.status, r.t.result, r.t.errorMsg)
}

func (r *workItemRepo) checkPolicy(p model.WorkItemPolicy) error {
	if p.Kind != r.kind {
		return fmt.Errorf("%w: %s repository cannot serve %s policy", domain.ErrInvalidArgument, r.kind, p.Kind)
	}
	return nil
}

func (r *workItemRepo) scan(row pgx.Row) (*model.WorkItem, error) {
	var it model.WorkItem
	var status string
	if err := row.Scan(&it.ID, &it.UserID, &it.BatchID, &it.Request, &status, &it.Result, &it.ErrorMessage, &it.CreatedAt, &it.UpdatedAt); err != nil {
		return nil, err
	}
	it.Kind = r.kind
	it.Status = model.WorkItemStatus(status)
	return &it, nil
}

func (r *workItemRepo) ListEligible(ctx context.Context, tx repository.Tx, p model.WorkItemPolicy, f model.WorkFilter) ([]*model.WorkItem, error) {
	if err := r.checkPolicy(p); err != nil {
		return nil, err
	}
	q := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE %s = $1 AND %s IS NULL %s
  AND ($2::text = '' OR user_id = $2::text)
  AND ($3::text = '' OR batch_id = $3::text)
  AND (cardinality($4::text[]) = 0 OR id::text = ANY($4::text[]))
ORDER BY created_at, id;`, r.columns(), r.t.table, r.t.status, r.t.result, r.t.eligible)

	ids := f.IDs
	if ids == nil {
		ids = []string{}
	}
	rows, err := queryRows(ctx, r.pool, tx, q, string(p.Pending), f.UserID, f.BatchID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.WorkItem
	for rows.Next() {
		it, err := r.scan(rows)
		if err != nil {
			return nil, scanErr(err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// Claim is a conditional update: zero rows means another worker got there first.
func (r *workItemRepo) Claim(ctx context.Context, tx repository.Tx, p model.WorkItemPolicy, id string) (*model.WorkItem, error) {
	if err := r.checkPolicy(p); err != nil {
		return nil, err
	}
	q := fmt.Sprintf(`
UPDATE %s SET %s = $2, updated_at = now()
WHERE id::text = $1 AND %s = $3 AND %s IS NULL %s
RETURNING %s;`, r.t.table, r.t.status, r.t.status, r.t.result, r.t.eligible, r.columns())

	row, err := pickRow(ctx, r.pool, tx, q, id, string(p.Claimed), string(p.Pending))
	if err != nil {
		return nil, err
	}
	it, err := r.scan(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAlreadyClaimed
		}
		return nil, scanErr(err)
	}
	return it, nil
}

func (r *workItemRepo) MarkSucceeded(ctx context.Context, tx repository.Tx, p model.WorkItemPolicy, id, result string) error {
	if err := r.checkPolicy(p); err != nil {
		return err
	}
	q := fmt.Sprintf(`
UPDATE %s SET %s = $2, %s = $3, %s = NULL, updated_at = now()
WHERE id::text = $1;`, r.t.table, r.t.status, r.t.result, r.t.errorMsg)

	tag, err := execSQL(ctx, r.pool, tx, q, id, string(p.Success), result)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *workItemRepo) MarkFailed(ctx context.Context, tx repository.Tx, p model.WorkItemPolicy, id, message string) error {
	if err := r.checkPolicy(p); err != nil {
		return err
	}
	q := fmt.Sprintf(`
UPDATE %s SET %s = $2, %s = $3, updated_at = now()
WHERE id::text = $1;`, r.t.table, r.t.status, r.t.errorMsg)

	tag, err := execSQL(ctx, r.pool, tx, q, id, string(p.FailureStatus()), message)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *workItemRepo) ReleaseClaim(ctx context.Context, tx repository.Tx, p model.WorkItemPolicy, id string) error {
	if err := r.checkPolicy(p); err != nil {
		return err
	}
	q := fmt.Sprintf(`
UPDATE %s SET %s = $2, updated_at = now()
WHERE id::text = $1 AND %s = $3 AND %s IS NULL;`, r.t.table, r.t.status, r.t.status, r.t.result)

	tag, err := execSQL(ctx, r.pool, tx, q, id, string(p.Pending), string(p.Claimed))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *workItemRepo) ReleaseStale(ctx context.Context, tx repository.Tx, p model.WorkItemPolicy, olderThan time.Time) (int, error) {
	if err := r.checkPolicy(p); err != nil {
		return 0, err
	}
	q := fmt.Sprintf(`
UPDATE %s SET %s = $1, updated_at = now()
WHERE %s = $2 AND %s IS NULL AND updated_at < $3;`, r.t.table, r.t.status, r.t.status, r.t.result)

	tag, err := execSQL(ctx, r.pool, tx, q, string(p.Pending), string(p.Claimed), olderThan)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
