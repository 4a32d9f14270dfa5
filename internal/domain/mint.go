package domain

import (
	"math/big"
	"strings"
	"time"
)

// MintRequest is the user input that starts a workflow.
type MintRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Validate rejects requests with an empty name or description.
func (r MintRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return &ValidationError{Field: "name", Message: "name is required"}
	}
	if strings.TrimSpace(r.Description) == "" {
		return &ValidationError{Field: "description", Message: "description is required"}
	}
	return nil
}

// Labels returns the descriptive key/value metadata attached to stored content.
func (r MintRequest) Labels() map[string]string {
	return map[string]string{
		"name":        r.Name,
		"description": r.Description,
	}
}

// GeneratedImage holds the raw bytes returned by the inference endpoint.
type GeneratedImage struct {
	Bytes       []byte
	ContentType string
}

// Empty reports whether no image data is present.
func (g *GeneratedImage) Empty() bool {
	return g == nil || len(g.Bytes) == 0
}

// StoredArtifact identifies content pinned to the storage network.
type StoredArtifact struct {
	ContentID    string `json:"content_id"`
	RetrievalURL string `json:"retrieval_url"`
	// MetadataWarning is set when the follow-up metadata call failed but the
	// primary upload succeeded.
	MetadataWarning string `json:"metadata_warning,omitempty"`
}

// MintReceipt is produced once the mint transaction is final.
type MintReceipt struct {
	TokenURI        string   `json:"token_uri"`
	TransactionHash string   `json:"transaction_hash"`
	TokenID         *big.Int `json:"token_id,omitempty"`
	BlockNumber     uint64   `json:"block_number,omitempty"`
}

// Stage enumerates the workflow lifecycle.
type Stage string

const (
	StageIdle            Stage = "idle"
	StageGeneratingImage Stage = "generating_image"
	StageImageReady      Stage = "image_ready"
	StageUploadingImage  Stage = "uploading_image"
	StageMinting         Stage = "minting"
	StageSucceeded       Stage = "succeeded"
	StageFailed          Stage = "failed"
)

// Terminal reports whether the stage ends the current request.
func (s Stage) Terminal() bool {
	return s == StageSucceeded || s == StageFailed
}

// InFlight reports whether an external call is running in this stage.
func (s Stage) InFlight() bool {
	switch s {
	case StageGeneratingImage, StageUploadingImage, StageMinting:
		return true
	default:
		return false
	}
}

// WorkflowState is the single value describing where a workflow is.
type WorkflowState struct {
	Stage Stage
	// Reason is the user-presentable failure message; set only for StageFailed.
	Reason string
	// Err is the underlying failure; set only for StageFailed.
	Err error
}

// MintJob is the persisted journal entry of a workflow.
type MintJob struct {
	ID              string
	Name            string
	Description     string
	Stage           Stage
	ContentID       string
	TokenURI        string
	TransactionHash string
	ErrorMessage    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
