package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"nftforge/internal/domain"
	"nftforge/internal/infra"
)

const (
	defaultModelURL = "https://api-inference.huggingface.co/models/stabilityai/stable-diffusion-2"
	maxImageBytes   = 32 << 20
	maxErrorBytes   = 4 << 10
)

type Options struct {
	ModelURL   string
	APIKey     string
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     *infra.Logger
}

// HuggingFaceClient calls a text-to-image model on the Hugging Face
// inference API. It never retries: every call costs the user money and
// re-rolling is an explicit user action.
type HuggingFaceClient struct {
	httpClient *http.Client
	modelURL   string
	token      string
	logger     *infra.Logger
}

func NewHuggingFaceClient(opts Options) *HuggingFaceClient {
	modelURL := strings.TrimSpace(opts.ModelURL)
	if modelURL == "" {
		modelURL = defaultModelURL
	}
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			// Cold models can take minutes to load with wait_for_model.
			timeout = 2 * time.Minute
		}
		client = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.NopLogger()
	}
	return &HuggingFaceClient{
		httpClient: client,
		modelURL:   modelURL,
		token:      strings.TrimSpace(opts.APIKey),
		logger:     logger,
	}
}

// HasCredentials reports whether an API token is configured.
func (c *HuggingFaceClient) HasCredentials() bool {
	return c != nil && c.token != ""
}

type inferenceRequest struct {
	Inputs  string `json:"inputs"`
	Options struct {
		WaitForModel bool `json:"wait_for_model"`
	} `json:"options"`
}

type inferenceError struct {
	Error         string  `json:"error"`
	EstimatedTime float64 `json:"estimated_time"`
}

// Generate sends the description to the model and returns the raw image.
func (c *HuggingFaceClient) Generate(ctx context.Context, description string) (*domain.GeneratedImage, error) {
	if c == nil {
		return nil, &domain.GenerationError{Err: errors.New("huggingface client not configured")}
	}
	if c.token == "" {
		return nil, &domain.GenerationError{Err: errors.New("huggingface: API key is missing")}
	}
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, &domain.GenerationError{Err: errors.New("huggingface: description required")}
	}

	var payload inferenceRequest
	payload.Inputs = description
	payload.Options.WaitForModel = true
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &domain.GenerationError{Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.modelURL, bytes.NewReader(body))
	if err != nil {
		return nil, &domain.GenerationError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "image/*, application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.GenerationError{Err: fmt.Errorf("huggingface: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &domain.GenerationError{StatusCode: resp.StatusCode, Err: decodeInferenceError(resp.Body)}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, &domain.GenerationError{StatusCode: resp.StatusCode, Err: fmt.Errorf("huggingface: read body: %w", err)}
	}
	if len(data) == 0 {
		return nil, &domain.GenerationError{StatusCode: resp.StatusCode, Err: errors.New("huggingface: empty response body")}
	}
	if len(data) > maxImageBytes {
		return nil, &domain.GenerationError{StatusCode: resp.StatusCode, Err: errors.New("huggingface: image exceeds size limit")}
	}

	contentType := strings.TrimSpace(resp.Header.Get("Content-Type"))
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	if strings.HasPrefix(contentType, "application/json") {
		return nil, &domain.GenerationError{StatusCode: resp.StatusCode, Err: decodeInferenceError(bytes.NewReader(data))}
	}

	c.logger.Debug().
		Str("content_type", contentType).
		Int("bytes", len(data)).
		Dur("elapsed", time.Since(start)).
		Msg("huggingface: image generated")

	return &domain.GeneratedImage{Bytes: data, ContentType: contentType}, nil
}

func decodeInferenceError(r io.Reader) error {
	raw, _ := io.ReadAll(io.LimitReader(r, maxErrorBytes))
	var out inferenceError
	if err := json.Unmarshal(raw, &out); err == nil && out.Error != "" {
		return fmt.Errorf("huggingface: %s", out.Error)
	}
	if msg := strings.TrimSpace(string(raw)); msg != "" {
		return fmt.Errorf("huggingface: %s", msg)
	}
	return errors.New("huggingface: unexpected response")
}

var _ Generator = (*HuggingFaceClient)(nil)
