package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"

	"nftforge/internal/domain"
	"nftforge/internal/infra"
)

// LocalStore is a content-addressed store on the local filesystem. Content
// ids are CIDv1 (raw codec, sha2-256) so identical bytes always map to the
// same id. It is meant for development when no pinning service is configured.
type LocalStore struct {
	basePath string
	baseURL  string
	strict   bool
	logger   *infra.Logger
}

type localMetadata struct {
	Name        string            `json:"name"`
	ContentType string            `json:"content_type"`
	KeyValues   map[string]string `json:"keyvalues"`
}

// LocalOptions configure a LocalStore.
type LocalOptions struct {
	BasePath string
	// BaseURL prefixes retrieval URLs: <BaseURL>/ipfs/<cid>.
	BaseURL string
	// StrictMetadata fails Store when the metadata file cannot be written.
	StrictMetadata bool
	Logger         *infra.Logger
}

// NewLocalStore initializes a LocalStore rooted at opts.BasePath.
func NewLocalStore(opts LocalOptions) (*LocalStore, error) {
	basePath := strings.TrimSpace(opts.BasePath)
	if basePath == "" {
		return nil, errors.New("storage: base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure base path: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.NopLogger()
	}
	return &LocalStore{
		basePath: basePath,
		baseURL:  strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"),
		strict:   opts.StrictMetadata,
		logger:   logger,
	}, nil
}

// ContentID returns the CIDv1 string for data.
func ContentID(data []byte) (string, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return "", err
	}
	return cid.NewCidV1(cid.Raw, sum).String(), nil
}

func (s *LocalStore) Store(ctx context.Context, img *domain.GeneratedImage, labels map[string]string) (*domain.StoredArtifact, error) {
	if s == nil {
		return nil, &domain.StorageError{Op: "upload", Err: errors.New("storage: no store configured")}
	}
	if img.Empty() {
		return nil, &domain.StorageError{Op: "upload", Err: errors.New("storage: image is empty")}
	}
	id, err := ContentID(img.Bytes)
	if err != nil {
		return nil, &domain.StorageError{Op: "upload", Err: err}
	}
	if err := s.write(ctx, id, img.Bytes); err != nil {
		return nil, &domain.StorageError{Op: "upload", Err: err}
	}
	artifact := &domain.StoredArtifact{ContentID: id, RetrievalURL: s.url(id)}

	meta := localMetadata{
		Name:        labels["name"],
		ContentType: img.ContentType,
		KeyValues:   withImageURL(labels, artifact.RetrievalURL),
	}
	raw, err := json.Marshal(meta)
	if err == nil {
		err = s.write(ctx, id+".json", raw)
	}
	if err != nil {
		if s.strict {
			return nil, &domain.StorageError{Op: "metadata", Err: fmt.Errorf("%w: %v", domain.ErrStoreMetadata, err)}
		}
		s.logger.Warn().Err(err).Str("cid", id).Msg("storage: metadata write failed, keeping upload")
		artifact.MetadataWarning = err.Error()
	}
	return artifact, nil
}

// Open returns the stored bytes and their content type.
func (s *LocalStore) Open(contentID string) ([]byte, string, error) {
	if _, err := cid.Decode(contentID); err != nil {
		return nil, "", domain.ErrNotFound
	}
	data, err := os.ReadFile(filepath.Join(s.basePath, contentID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, "", domain.ErrNotFound
		}
		return nil, "", err
	}
	contentType := "application/octet-stream"
	if raw, err := os.ReadFile(filepath.Join(s.basePath, contentID+".json")); err == nil {
		var meta localMetadata
		if json.Unmarshal(raw, &meta) == nil && meta.ContentType != "" {
			contentType = meta.ContentType
		}
	}
	return data, contentType, nil
}

func (s *LocalStore) url(id string) string {
	if s.baseURL == "" {
		return "/ipfs/" + id
	}
	return s.baseURL + "/ipfs/" + id
}

// write persists data at key through a rename so readers never observe a
// partially written file.
func (s *LocalStore) write(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return err
	}
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(cleanKey))
	tmp, err := os.CreateTemp(filepath.Dir(fullPath), ".upload-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("storage: write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close file: %w", err)
	}
	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		return fmt.Errorf("storage: commit file: %w", err)
	}
	return nil
}

// sanitizeKey normalizes a key and prevents escaping the storage root.
func sanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("storage: key is required")
	}
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimLeft(strings.TrimPrefix(key, "./"), "/")
	cleaned := filepath.ToSlash(filepath.Clean(key))
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") || strings.Contains(cleaned, "/") {
		return "", errors.New("storage: invalid key")
	}
	return cleaned, nil
}

var _ ContentStore = (*LocalStore)(nil)
