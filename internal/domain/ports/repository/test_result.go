package repository

import (
	"context"

	"brandaion/internal/domain/model"
)

type TestResultRepository interface {
	Save(ctx context.Context, tx Tx, o *model.ProviderOutcome) error
	ListByRun(ctx context.Context, tx Tx, runID string) ([]*model.ProviderOutcome, error)
}
