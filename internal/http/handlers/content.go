package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"nftforge/internal/domain"
)

// ServeContent serves objects of the local content store under /ipfs/{cid}.
func (a *App) ServeContent(w http.ResponseWriter, r *http.Request) {
	if a.Content == nil {
		a.error(w, http.StatusNotFound, "not_found", "content not found")
		return
	}
	data, contentType, err := a.Content.Open(chi.URLParam(r, "cid"))
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			a.Logger.Warn().Err(err).Msg("http: open content failed")
		}
		a.error(w, http.StatusNotFound, "not_found", "content not found")
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
