package handlers

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"nftforge/internal/domain"
	"nftforge/internal/infra"
	"nftforge/internal/ledger"
	"nftforge/internal/mint"
)

// ContractReader is the read side of the ledger client.
type ContractReader interface {
	Contract(ctx context.Context) (*ledger.Contract, error)
	Owner(ctx context.Context) (common.Address, error)
	Cost(ctx context.Context) (*big.Int, error)
	Paused(ctx context.Context) (bool, error)
	TotalSupply(ctx context.Context) (*big.Int, error)
}

// ContentOpener serves content from a local store.
type ContentOpener interface {
	Open(contentID string) ([]byte, string, error)
}

// App carries the dependencies of the HTTP handlers. Jobs, Contract, Content
// and Ping are optional.
type App struct {
	Workflows *mint.Registry
	Jobs      domain.MintJobRepository
	Contract  ContractReader
	Content   ContentOpener
	Ping      func(ctx context.Context) error
	Logger    *infra.Logger
}

func NewApp(workflows *mint.Registry, logger *infra.Logger) *App {
	if logger == nil {
		logger = infra.NopLogger()
	}
	return &App{Workflows: workflows, Logger: logger}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (a *App) error(w http.ResponseWriter, code int, kind, message string) {
	a.json(w, code, errorResponse{Error: kind, Message: message})
}
