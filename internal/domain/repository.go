package domain

import "context"

// MintJobRepository persists the workflow journal.
type MintJobRepository interface {
	Create(ctx context.Context, job *MintJob) error
	UpdateStage(ctx context.Context, job *MintJob) error
	GetByID(ctx context.Context, id string) (*MintJob, error)
}
