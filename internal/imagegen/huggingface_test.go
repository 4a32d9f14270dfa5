package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"nftforge/internal/domain"
)

func TestHuggingFaceGenerate(t *testing.T) {
	imageBytes := []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method: %s", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Fatalf("unexpected auth header: %s", got)
		}
		var payload inferenceRequest
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if payload.Inputs != "a red fox" {
			t.Fatalf("unexpected inputs: %q", payload.Inputs)
		}
		if !payload.Options.WaitForModel {
			t.Fatalf("wait_for_model not requested")
		}
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write(imageBytes)
	}))
	defer ts.Close()

	client := NewHuggingFaceClient(Options{APIKey: "test-key", ModelURL: ts.URL})
	img, err := client.Generate(context.Background(), "a red fox")
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if img.ContentType != "image/jpeg" {
		t.Fatalf("content type not preserved: %s", img.ContentType)
	}
	if !bytes.Equal(img.Bytes, imageBytes) {
		t.Fatalf("bytes mismatch")
	}
}

func TestHuggingFaceServiceUnavailable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"Model is currently loading","estimated_time":20}`))
	}))
	defer ts.Close()

	client := NewHuggingFaceClient(Options{APIKey: "test-key", ModelURL: ts.URL})
	_, err := client.Generate(context.Background(), "a red fox")
	var genErr *domain.GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("expected GenerationError, got %v", err)
	}
	if genErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("unexpected status: %d", genErr.StatusCode)
	}
	if got := genErr.Err.Error(); got != "huggingface: Model is currently loading" {
		t.Fatalf("unexpected cause: %s", got)
	}
}

func TestHuggingFaceEmptyBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	client := NewHuggingFaceClient(Options{APIKey: "test-key", ModelURL: ts.URL})
	_, err := client.Generate(context.Background(), "a red fox")
	var genErr *domain.GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("expected GenerationError for empty body, got %v", err)
	}
}

func TestHuggingFaceSingleAttempt(t *testing.T) {
	calls := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	client := NewHuggingFaceClient(Options{APIKey: "test-key", ModelURL: ts.URL})
	if _, err := client.Generate(context.Background(), "a red fox"); err == nil {
		t.Fatalf("expected error")
	}
	if calls != 1 {
		t.Fatalf("expected exactly one request, got %d", calls)
	}
}

func TestHuggingFaceMissingKey(t *testing.T) {
	client := NewHuggingFaceClient(Options{})
	if client.HasCredentials() {
		t.Fatalf("client without key reports credentials")
	}
	if _, err := client.Generate(context.Background(), "a red fox"); err == nil {
		t.Fatalf("expected error when api key missing")
	}
}

func TestHuggingFaceSniffsMissingContentType(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header()["Content-Type"] = nil
		_, _ = w.Write(png)
	}))
	defer ts.Close()

	client := NewHuggingFaceClient(Options{APIKey: "test-key", ModelURL: ts.URL})
	img, err := client.Generate(context.Background(), "a red fox")
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if img.ContentType != "image/png" {
		t.Fatalf("unexpected sniffed type: %s", img.ContentType)
	}
}
