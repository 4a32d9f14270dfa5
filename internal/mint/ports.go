package mint

import (
	"context"
	"math/big"

	"nftforge/internal/domain"
)

// ImageGenerator produces image bytes from a description.
type ImageGenerator interface {
	Generate(ctx context.Context, description string) (*domain.GeneratedImage, error)
}

// ContentStore uploads image bytes and returns their content identifier.
type ContentStore interface {
	Store(ctx context.Context, img *domain.GeneratedImage, labels map[string]string) (*domain.StoredArtifact, error)
}

// Minter submits the mint transaction and blocks until it is final.
type Minter interface {
	Mint(ctx context.Context, tokenURI string, payment *big.Int) (*domain.MintReceipt, error)
}
