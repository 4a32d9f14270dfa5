package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"nftforge/internal/domain"
	"nftforge/internal/mint"
	"nftforge/internal/storage"
	"nftforge/pkg/zip"
)

type mintCreateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type mintResponse struct {
	ID              string    `json:"id"`
	Stage           string    `json:"stage"`
	Reason          string    `json:"reason,omitempty"`
	Name            string    `json:"name,omitempty"`
	Description     string    `json:"description,omitempty"`
	Attempts        int       `json:"attempts,omitempty"`
	ImageURL        string    `json:"image_url,omitempty"`
	Preview         string    `json:"preview,omitempty"`
	ContentID       string    `json:"content_id,omitempty"`
	RetrievalURL    string    `json:"retrieval_url,omitempty"`
	MetadataWarning string    `json:"metadata_warning,omitempty"`
	TokenURI        string    `json:"token_uri,omitempty"`
	TransactionHash string    `json:"transaction_hash,omitempty"`
	TokenID         string    `json:"token_id,omitempty"`
	BlockNumber     uint64    `json:"block_number,omitempty"`
	Live            bool      `json:"live"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func snapshotResponse(s mint.Snapshot, withPreview bool) mintResponse {
	resp := mintResponse{
		ID:          s.ID,
		Stage:       string(s.State.Stage),
		Reason:      s.State.Reason,
		Name:        s.Request.Name,
		Description: s.Request.Description,
		Attempts:    s.Attempts,
		Live:        true,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
	if !s.Image.Empty() {
		resp.ImageURL = fmt.Sprintf("/v1/mints/%s/image", s.ID)
		if withPreview {
			resp.Preview = s.PreviewURL()
		}
	}
	if s.Artifact != nil {
		resp.ContentID = s.Artifact.ContentID
		resp.RetrievalURL = s.Artifact.RetrievalURL
		resp.MetadataWarning = s.Artifact.MetadataWarning
	}
	if s.Receipt != nil {
		resp.TokenURI = s.Receipt.TokenURI
		resp.TransactionHash = s.Receipt.TransactionHash
		resp.BlockNumber = s.Receipt.BlockNumber
		if s.Receipt.TokenID != nil {
			resp.TokenID = s.Receipt.TokenID.String()
		}
	}
	return resp
}

func jobResponse(j *domain.MintJob) mintResponse {
	return mintResponse{
		ID:              j.ID,
		Stage:           string(j.Stage),
		Reason:          j.ErrorMessage,
		Name:            j.Name,
		Description:     j.Description,
		ContentID:       j.ContentID,
		TokenURI:        j.TokenURI,
		RetrievalURL:    j.TokenURI,
		TransactionHash: j.TransactionHash,
		CreatedAt:       j.CreatedAt,
		UpdatedAt:       j.UpdatedAt,
	}
}

// CreateMint starts a workflow and submits the request to it.
func (a *App) CreateMint(w http.ResponseWriter, r *http.Request) {
	var req mintCreateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	mreq := domain.MintRequest{Name: req.Name, Description: req.Description}
	if err := mreq.Validate(); err != nil {
		a.writeWorkflowError(w, err)
		return
	}
	wf, err := a.Workflows.Create()
	if err != nil {
		a.writeWorkflowError(w, err)
		return
	}
	if err := wf.Submit(mreq); err != nil {
		_ = a.Workflows.Delete(wf.ID())
		a.writeWorkflowError(w, err)
		return
	}
	w.Header().Set("Location", "/v1/mints/"+wf.ID())
	a.json(w, http.StatusAccepted, snapshotResponse(wf.Snapshot(), false))
}

// SubmitMint submits a new request to an existing workflow. An empty body
// re-rolls the image for the current request.
func (a *App) SubmitMint(w http.ResponseWriter, r *http.Request) {
	wf, ok := a.workflow(w, r)
	if !ok {
		return
	}
	var req mintCreateRequest
	if r.Body != nil && r.ContentLength != 0 {
		// Chunked requests report ContentLength -1; an empty one decodes to io.EOF.
		err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req)
		if err != nil && !errors.Is(err, io.EOF) {
			a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
			return
		}
	}
	var err error
	if req.Name == "" && req.Description == "" {
		err = wf.Regenerate()
	} else {
		err = wf.Submit(domain.MintRequest{Name: req.Name, Description: req.Description})
	}
	if err != nil {
		a.writeWorkflowError(w, err)
		return
	}
	a.json(w, http.StatusAccepted, snapshotResponse(wf.Snapshot(), false))
}

// ConfirmMint commits the generated image to storage and the ledger.
func (a *App) ConfirmMint(w http.ResponseWriter, r *http.Request) {
	wf, ok := a.workflow(w, r)
	if !ok {
		return
	}
	if err := wf.ConfirmMint(); err != nil {
		a.writeWorkflowError(w, err)
		return
	}
	a.json(w, http.StatusAccepted, snapshotResponse(wf.Snapshot(), false))
}

// GetMint returns the live snapshot, or the journal entry once the workflow
// is gone from memory.
func (a *App) GetMint(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	wf, err := a.Workflows.Get(id)
	if err == nil {
		a.json(w, http.StatusOK, snapshotResponse(wf.Snapshot(), r.URL.Query().Get("preview") == "true"))
		return
	}
	if a.Jobs != nil {
		job, jerr := a.Jobs.GetByID(r.Context(), id)
		if jerr == nil {
			a.json(w, http.StatusOK, jobResponse(job))
			return
		}
		if !errors.Is(jerr, domain.ErrNotFound) {
			a.Logger.Error().Err(jerr).Str("workflow_id", id).Msg("http: journal lookup failed")
		}
	}
	a.error(w, http.StatusNotFound, "not_found", "mint not found")
}

// ListMints returns every live workflow.
func (a *App) ListMints(w http.ResponseWriter, r *http.Request) {
	snaps := a.Workflows.List()
	items := make([]mintResponse, 0, len(snaps))
	for _, s := range snaps {
		items = append(items, snapshotResponse(s, false))
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

// MintImage serves the generated image bytes.
func (a *App) MintImage(w http.ResponseWriter, r *http.Request) {
	wf, ok := a.workflow(w, r)
	if !ok {
		return
	}
	snap := wf.Snapshot()
	if snap.Image.Empty() {
		a.error(w, http.StatusNotFound, "not_found", "no image generated")
		return
	}
	ct := snap.Image.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(snap.Image.Bytes)
}

// MintBundle downloads the generated image together with the current mint
// record as a zip archive.
func (a *App) MintBundle(w http.ResponseWriter, r *http.Request) {
	wf, ok := a.workflow(w, r)
	if !ok {
		return
	}
	snap := wf.Snapshot()
	if snap.Image.Empty() {
		a.error(w, http.StatusNotFound, "not_found", "no image generated")
		return
	}
	record, err := json.MarshalIndent(snapshotResponse(snap, false), "", "  ")
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to encode record")
		return
	}
	archive, err := zip.Archive([]zip.Entry{
		{Name: storage.FileName("image", snap.Image.ContentType), Data: snap.Image.Bytes, Modified: snap.UpdatedAt},
		{Name: "mint.json", Data: record, Modified: snap.UpdatedAt},
	})
	if err != nil {
		a.Logger.Error().Err(err).Str("mint_id", snap.ID).Msg("http: bundle failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to build bundle")
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=mint-%s.zip", snap.ID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}

// DeleteMint abandons and forgets a workflow.
func (a *App) DeleteMint(w http.ResponseWriter, r *http.Request) {
	if err := a.Workflows.Delete(chi.URLParam(r, "id")); err != nil {
		a.writeWorkflowError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ResetMint returns a workflow to idle and discards its artifacts.
func (a *App) ResetMint(w http.ResponseWriter, r *http.Request) {
	wf, ok := a.workflow(w, r)
	if !ok {
		return
	}
	wf.Reset()
	a.json(w, http.StatusOK, snapshotResponse(wf.Snapshot(), false))
}

// MintEvents streams transitions as server-sent events until the workflow
// reaches a terminal stage or the client goes away.
func (a *App) MintEvents(w http.ResponseWriter, r *http.Request) {
	wf, ok := a.workflow(w, r)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		a.error(w, http.StatusInternalServerError, "internal", "streaming unsupported")
		return
	}
	events, cancel := wf.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, open := <-events:
			if !open {
				return
			}
			payload, err := json.Marshal(snapshotResponse(ev.Snapshot, false))
			if err != nil {
				return
			}
			if _, err := fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", ev.Seq, ev.State.Stage, payload); err != nil {
				return
			}
			flusher.Flush()
			if ev.State.Stage.Terminal() {
				return
			}
		}
	}
}

func (a *App) workflow(w http.ResponseWriter, r *http.Request) (*mint.Workflow, bool) {
	wf, err := a.Workflows.Get(chi.URLParam(r, "id"))
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", "mint not found")
		return nil, false
	}
	return wf, true
}

func (a *App) writeWorkflowError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotReady):
		a.error(w, http.StatusConflict, "not_ready", err.Error())
	case errors.Is(err, domain.ErrWorkflowBusy):
		a.error(w, http.StatusConflict, "busy", "a call is still in flight for this mint")
	case domain.IsValidation(err):
		a.error(w, http.StatusBadRequest, "validation", err.Error())
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, mint.ErrClosed):
		a.error(w, http.StatusNotFound, "not_found", "mint not found")
	case errors.Is(err, mint.ErrRegistryFull):
		a.error(w, http.StatusServiceUnavailable, "unavailable", err.Error())
	default:
		a.Logger.Error().Err(err).Msg("http: workflow call failed")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}
