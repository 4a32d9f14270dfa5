package repo

import (
	"context"
	"errors"

	"nftforge/internal/domain"
	"nftforge/internal/infra"
	"nftforge/internal/sqlinline"
)

// MintJobRepositoryPG implements domain.MintJobRepository on PostgreSQL.
type MintJobRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewMintJobRepository creates a journal repository backed by the given executor.
func NewMintJobRepository(sql infra.SQLExecutor) *MintJobRepositoryPG {
	return &MintJobRepositoryPG{sql: sql}
}

// Create inserts the journal row for a new request. Re-submitting under the
// same workflow id resets the row.
func (r *MintJobRepositoryPG) Create(ctx context.Context, job *domain.MintJob) error {
	if job == nil || job.ID == "" {
		return errors.New("mint job id is required")
	}
	_, err := r.sql.Exec(ctx, sqlinline.QInsertMintJob,
		job.ID,
		job.Name,
		job.Description,
		string(job.Stage),
	)
	return err
}

// UpdateStage records a transition. Empty artifact fields keep their previous value.
func (r *MintJobRepositoryPG) UpdateStage(ctx context.Context, job *domain.MintJob) error {
	if job == nil || job.ID == "" {
		return errors.New("mint job id is required")
	}
	_, err := r.sql.Exec(ctx, sqlinline.QUpdateMintJobStage,
		job.ID,
		string(job.Stage),
		job.ContentID,
		job.TokenURI,
		job.TransactionHash,
		job.ErrorMessage,
	)
	return err
}

// GetByID fetches a journal row.
func (r *MintJobRepositoryPG) GetByID(ctx context.Context, id string) (*domain.MintJob, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QSelectMintJob, id)
	var (
		job   domain.MintJob
		stage string
	)
	if err := row.Scan(
		&job.ID,
		&job.Name,
		&job.Description,
		&stage,
		&job.ContentID,
		&job.TokenURI,
		&job.TransactionHash,
		&job.ErrorMessage,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	job.Stage = domain.Stage(stage)
	return &job, nil
}

var _ domain.MintJobRepository = (*MintJobRepositoryPG)(nil)
