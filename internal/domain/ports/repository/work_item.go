package repository

import (
	"context"
	"time"

	"brandaion/internal/domain/model"
)

type WorkItemRepository interface {
	// ListEligible returns items matching the policy's eligibility predicate
	// (pending and no result) narrowed by the filter, oldest first.
	ListEligible(ctx context.Context, tx Tx, p model.WorkItemPolicy, f model.WorkFilter) ([]*model.WorkItem, error)
	// Claim atomically moves one eligible item to the claimed status.
	// Returns domain.ErrAlreadyClaimed when the item is no longer eligible.
	Claim(ctx context.Context, tx Tx, p model.WorkItemPolicy, id string) (*model.WorkItem, error)
	MarkSucceeded(ctx context.Context, tx Tx, p model.WorkItemPolicy, id, result string) error
	// MarkFailed writes the error message and moves the item to p.FailureStatus().
	MarkFailed(ctx context.Context, tx Tx, p model.WorkItemPolicy, id, message string) error
	// ReleaseClaim returns one claimed item to pending without touching its error field.
	ReleaseClaim(ctx context.Context, tx Tx, p model.WorkItemPolicy, id string) error
	// ReleaseStale returns claimed items not updated since olderThan to pending.
	ReleaseStale(ctx context.Context, tx Tx, p model.WorkItemPolicy, olderThan time.Time) (int, error)
}

// QuestionRepository reads answered FAQ questions for performance testing.
type QuestionRepository interface {
	ListTestable(ctx context.Context, tx Tx, f model.WorkFilter) ([]*model.QuestionRecord, error)
}
