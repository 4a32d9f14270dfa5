package mint

import (
	"context"
	"errors"
	"time"

	"nftforge/internal/domain"
	"nftforge/internal/infra"
)

// Journal records every transition of a workflow in a MintJobRepository.
// Write failures are logged and never affect the workflow.
type Journal struct {
	repo    domain.MintJobRepository
	logger  *infra.Logger
	timeout time.Duration
}

func NewJournal(repo domain.MintJobRepository, logger *infra.Logger) *Journal {
	if logger == nil {
		logger = infra.NopLogger()
	}
	return &Journal{repo: repo, logger: logger, timeout: 5 * time.Second}
}

// Follow writes events until the stream closes. The replayed state at
// subscription time carries no transition and is skipped.
func (j *Journal) Follow(events <-chan Event) {
	var epoch uint64
	for ev := range events {
		if ev.Seq == 0 {
			continue
		}
		job := jobFromSnapshot(ev.Snapshot)
		ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
		var err error
		if ev.State.Stage == domain.StageGeneratingImage && ev.Epoch != epoch {
			err = j.repo.Create(ctx, job)
			epoch = ev.Epoch
		} else {
			err = j.repo.UpdateStage(ctx, job)
		}
		cancel()
		if err != nil {
			j.logger.Error().Err(err).Str("workflow_id", ev.ID).Str("stage", string(ev.State.Stage)).Msg("mint: journal write failed")
		}
	}
}

func jobFromSnapshot(s Snapshot) *domain.MintJob {
	job := &domain.MintJob{
		ID:           s.ID,
		Name:         s.Request.Name,
		Description:  s.Request.Description,
		Stage:        s.State.Stage,
		ErrorMessage: s.State.Reason,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
	if s.Artifact != nil {
		job.ContentID = s.Artifact.ContentID
	}
	if s.Receipt != nil {
		job.TokenURI = s.Receipt.TokenURI
		job.TransactionHash = s.Receipt.TransactionHash
	}
	// A sent but unconfirmed or reverted mint still has a hash worth keeping.
	var mintErr *domain.MintError
	if job.TransactionHash == "" && errors.As(s.State.Err, &mintErr) {
		job.TransactionHash = mintErr.TxHash
	}
	return job
}
