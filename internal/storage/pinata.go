package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"nftforge/internal/domain"
	"nftforge/internal/infra"
)

type PinataOptions struct {
	APIURL      string
	JWT         string
	GatewayHost string
	// StrictMetadata fails Store when the follow-up metadata update fails.
	StrictMetadata bool
	HTTPClient     *http.Client
	Timeout        time.Duration
	Logger         *infra.Logger
}

// PinataClient pins files to IPFS through the Pinata pinning API.
type PinataClient struct {
	httpClient     *http.Client
	apiURL         string
	jwt            string
	gatewayHost    string
	strictMetadata bool
	logger         *infra.Logger
}

func NewPinataClient(opts PinataOptions) *PinataClient {
	apiURL := strings.TrimRight(strings.TrimSpace(opts.APIURL), "/")
	if apiURL == "" {
		apiURL = "https://api.pinata.cloud"
	}
	gateway := strings.TrimSpace(opts.GatewayHost)
	if gateway == "" {
		gateway = "ipfs.io"
	}
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.NopLogger()
	}
	return &PinataClient{
		httpClient:     client,
		apiURL:         apiURL,
		jwt:            strings.TrimSpace(opts.JWT),
		gatewayHost:    gateway,
		strictMetadata: opts.StrictMetadata,
		logger:         logger,
	}
}

// HasCredentials reports whether a JWT is configured.
func (c *PinataClient) HasCredentials() bool {
	return c != nil && c.jwt != ""
}

type pinataMetadata struct {
	Name      string            `json:"name,omitempty"`
	KeyValues map[string]string `json:"keyvalues,omitempty"`
}

type pinFileResponse struct {
	IpfsHash  string `json:"IpfsHash"`
	PinSize   int64  `json:"PinSize"`
	Timestamp string `json:"Timestamp"`
}

type hashMetadataRequest struct {
	IpfsPinHash string            `json:"ipfsPinHash"`
	Name        string            `json:"name,omitempty"`
	KeyValues   map[string]string `json:"keyvalues,omitempty"`
}

// Store uploads the image with its labels and returns the pinned artifact.
// The upload is one step for the caller: any failure before a content id is
// returned is a single StorageError. The follow-up call that records the
// image URL in the pin metadata only fails Store in strict mode; otherwise
// the failure is carried on the artifact as MetadataWarning.
func (c *PinataClient) Store(ctx context.Context, img *domain.GeneratedImage, labels map[string]string) (*domain.StoredArtifact, error) {
	if c == nil || c.jwt == "" {
		return nil, &domain.StorageError{Op: "upload", Err: errors.New("pinata: JWT is missing")}
	}
	if img.Empty() {
		return nil, &domain.StorageError{Op: "upload", Err: errors.New("pinata: image is empty")}
	}
	fileName := FileName(labels["name"], img.ContentType)
	meta := pinataMetadata{Name: labels["name"], KeyValues: labels}
	if meta.Name == "" {
		meta.Name = baseName(fileName)
	}

	cid, err := c.pinFile(ctx, fileName, img, meta)
	if err != nil {
		return nil, &domain.StorageError{Op: "upload", Err: err}
	}
	artifact := &domain.StoredArtifact{
		ContentID:    cid,
		RetrievalURL: GatewayURL(c.gatewayHost, cid),
	}

	if err := c.updateMetadata(ctx, hashMetadataRequest{
		IpfsPinHash: cid,
		Name:        meta.Name,
		KeyValues:   withImageURL(labels, artifact.RetrievalURL),
	}); err != nil {
		if c.strictMetadata {
			return nil, &domain.StorageError{Op: "metadata", Err: fmt.Errorf("%w: %v", domain.ErrStoreMetadata, err)}
		}
		c.logger.Warn().Err(err).Str("cid", cid).Msg("pinata: metadata update failed, keeping upload")
		artifact.MetadataWarning = err.Error()
	}

	c.logger.Info().Str("cid", cid).Str("file", fileName).Msg("pinata: file pinned")
	return artifact, nil
}

func (c *PinataClient) pinFile(ctx context.Context, fileName string, img *domain.GeneratedImage, meta pinataMetadata) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, fileName))
	header.Set("Content-Type", img.ContentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(img.Bytes); err != nil {
		return "", err
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return "", err
	}
	if err := mw.WriteField("pinataMetadata", string(metaJSON)); err != nil {
		return "", err
	}
	if err := mw.WriteField("pinataOptions", `{"cidVersion":1}`); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/pinning/pinFileToIPFS", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.jwt)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("pinata: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", statusError(resp)
	}
	var out pinFileResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("pinata: decode response: %w", err)
	}
	if strings.TrimSpace(out.IpfsHash) == "" {
		return "", errors.New("pinata: response missing IpfsHash")
	}
	return out.IpfsHash, nil
}

func (c *PinataClient) updateMetadata(ctx context.Context, payload hashMetadataRequest) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.apiURL+"/pinning/hashMetadata", bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.jwt)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("pinata: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	var out struct {
		Error any `json:"error"`
	}
	if err := json.Unmarshal(raw, &out); err == nil && out.Error != nil {
		switch v := out.Error.(type) {
		case string:
			return fmt.Errorf("pinata: http %d: %s", resp.StatusCode, v)
		case map[string]any:
			if reason, ok := v["reason"].(string); ok {
				return fmt.Errorf("pinata: http %d: %s", resp.StatusCode, reason)
			}
		}
	}
	if msg := strings.TrimSpace(string(raw)); msg != "" {
		return fmt.Errorf("pinata: http %d: %s", resp.StatusCode, msg)
	}
	return fmt.Errorf("pinata: http %d", resp.StatusCode)
}

var _ ContentStore = (*PinataClient)(nil)
