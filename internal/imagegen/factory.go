package imagegen

import (
	"errors"

	"nftforge/internal/infra"
)

// FromConfig returns the generator selected by IMAGEGEN_BACKEND. The Hugging
// Face backend requires an API key; synthetic images are only produced when
// asked for.
func FromConfig(cfg *infra.Config, logger *infra.Logger) (Generator, error) {
	if cfg.ImageBackend == infra.ImageBackendSynthetic {
		if logger != nil {
			logger.Warn().Msg("imagegen: synthetic backend selected, images are placeholders")
		}
		return &SyntheticGenerator{}, nil
	}
	if cfg.HuggingFaceAPIKey == "" {
		return nil, errors.New("imagegen: HF_API_KEY is required (set IMAGEGEN_BACKEND=synthetic for development)")
	}
	return NewHuggingFaceClient(Options{
		ModelURL: cfg.HuggingFaceModelURL,
		APIKey:   cfg.HuggingFaceAPIKey,
		Timeout:  cfg.HuggingFaceTimeout,
		Logger:   logger,
	}), nil
}
