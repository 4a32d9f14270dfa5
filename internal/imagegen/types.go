package imagegen

import (
	"context"

	"nftforge/internal/domain"
)

// Generator turns a text description into image bytes.
type Generator interface {
	Generate(ctx context.Context, description string) (*domain.GeneratedImage, error)
}
