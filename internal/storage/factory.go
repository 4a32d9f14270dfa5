package storage

import (
	"errors"
	"path/filepath"

	"nftforge/internal/infra"
)

// FromConfig returns the store selected by STORAGE_BACKEND. Pinata requires a
// JWT. The local store is also returned on its own so it can be served over
// HTTP; it is nil when Pinata is used.
func FromConfig(cfg *infra.Config, logger *infra.Logger) (ContentStore, *LocalStore, error) {
	if cfg.StorageBackend != infra.StorageBackendLocal {
		if cfg.PinataJWT == "" {
			return nil, nil, errors.New("storage: PINATA_JWT is required (set STORAGE_BACKEND=local for development)")
		}
		return NewPinataClient(PinataOptions{
			APIURL:         cfg.PinataAPIURL,
			JWT:            cfg.PinataJWT,
			GatewayHost:    cfg.IPFSGatewayHost,
			StrictMetadata: cfg.StorageStrictMetadata,
			Logger:         logger,
		}), nil, nil
	}

	path := cfg.LocalIPFSPath
	if !filepath.IsAbs(path) {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
	}
	local, err := NewLocalStore(LocalOptions{
		BasePath:       path,
		BaseURL:        cfg.PublicBaseURL,
		StrictMetadata: cfg.StorageStrictMetadata,
		Logger:         logger,
	})
	if err != nil {
		return nil, nil, err
	}
	if logger != nil {
		logger.Warn().Str("path", path).Str("base_url", cfg.PublicBaseURL).Msg("storage: local backend selected, token URIs resolve only through this service")
	}
	return local, local, nil
}
