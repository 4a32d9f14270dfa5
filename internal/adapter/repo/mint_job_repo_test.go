package repo

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"nftforge/internal/domain"
)

type stubExecutor struct {
	execQuery string
	execArgs  []any
	execErr   error
	row       stubRow
}

func (s *stubExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.execQuery = query
	s.execArgs = args
	return pgconn.CommandTag{}, s.execErr
}

func (s *stubExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	return s.row
}

func (s *stubExecutor) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

type stubRow struct {
	job *domain.MintJob
	err error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != 10 {
		return errors.New("unexpected scan arity")
	}
	*dest[0].(*string) = r.job.ID
	*dest[1].(*string) = r.job.Name
	*dest[2].(*string) = r.job.Description
	*dest[3].(*string) = string(r.job.Stage)
	*dest[4].(*string) = r.job.ContentID
	*dest[5].(*string) = r.job.TokenURI
	*dest[6].(*string) = r.job.TransactionHash
	*dest[7].(*string) = r.job.ErrorMessage
	*dest[8].(*time.Time) = r.job.CreatedAt
	*dest[9].(*time.Time) = r.job.UpdatedAt
	return nil
}

func TestCreateRequiresID(t *testing.T) {
	r := NewMintJobRepository(&stubExecutor{})
	if err := r.Create(context.Background(), &domain.MintJob{}); err == nil {
		t.Fatalf("expected error for missing id")
	}
}

func TestUpdateStagePassesArtifacts(t *testing.T) {
	exec := &stubExecutor{}
	r := NewMintJobRepository(exec)
	err := r.UpdateStage(context.Background(), &domain.MintJob{
		ID:              "6f1c8e2a-0000-4000-8000-000000000001",
		Stage:           domain.StageSucceeded,
		ContentID:       "bafy123",
		TokenURI:        "https://gw/ipfs/bafy123",
		TransactionHash: "0xabc",
	})
	if err != nil {
		t.Fatalf("UpdateStage error: %v", err)
	}
	if !strings.Contains(exec.execQuery, "update mint_jobs") {
		t.Fatalf("unexpected query: %s", exec.execQuery)
	}
	if len(exec.execArgs) != 6 || exec.execArgs[1] != "succeeded" || exec.execArgs[3] != "https://gw/ipfs/bafy123" {
		t.Fatalf("unexpected args: %#v", exec.execArgs)
	}
}

func TestGetByIDNotFound(t *testing.T) {
	r := NewMintJobRepository(&stubExecutor{row: stubRow{err: pgx.ErrNoRows}})
	if _, err := r.GetByID(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetByIDScansStage(t *testing.T) {
	now := time.Now()
	r := NewMintJobRepository(&stubExecutor{row: stubRow{job: &domain.MintJob{
		ID:        "id-1",
		Name:      "Nova",
		Stage:     domain.StageMinting,
		ContentID: "bafy123",
		CreatedAt: now,
		UpdatedAt: now,
	}}})
	job, err := r.GetByID(context.Background(), "id-1")
	if err != nil {
		t.Fatalf("GetByID error: %v", err)
	}
	if job.Stage != domain.StageMinting || job.ContentID != "bafy123" {
		t.Fatalf("unexpected job: %+v", job)
	}
}
