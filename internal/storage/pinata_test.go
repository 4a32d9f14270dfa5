package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"nftforge/internal/domain"
)

type fakePinata struct {
	mu            sync.Mutex
	uploads       int
	metadataCalls []hashMetadataRequest
	lastFile      []byte
	lastFileName  string
	lastFileType  string
	lastMeta      pinataMetadata
	uploadStatus  int
	metaStatus    int
	cid           string
}

func (f *fakePinata) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/pinning/pinFileToIPFS", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer jwt-token" {
			t.Errorf("unexpected auth header: %s", got)
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		f.uploads++
		if f.uploadStatus != 0 {
			w.WriteHeader(f.uploadStatus)
			_, _ = w.Write([]byte(`{"error":{"reason":"INVALID_CREDENTIALS","details":"bad jwt"}}`))
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("missing file part: %v", err)
			return
		}
		f.lastFile, _ = io.ReadAll(file)
		f.lastFileName = header.Filename
		f.lastFileType = header.Header.Get("Content-Type")
		_ = json.Unmarshal([]byte(r.FormValue("pinataMetadata")), &f.lastMeta)
		_ = json.NewEncoder(w).Encode(pinFileResponse{IpfsHash: f.cid, PinSize: int64(len(f.lastFile))})
	})
	mux.HandleFunc("/pinning/hashMetadata", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("unexpected method %s", r.Method)
		}
		var req hashMetadataRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		f.metadataCalls = append(f.metadataCalls, req)
		status := f.metaStatus
		f.mu.Unlock()
		if status != 0 {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":"metadata unavailable"}`))
			return
		}
		_, _ = w.Write([]byte("OK"))
	})
	return mux
}

func newTestPinata(t *testing.T, f *fakePinata, strict bool) *PinataClient {
	ts := httptest.NewServer(f.handler(t))
	t.Cleanup(ts.Close)
	return NewPinataClient(PinataOptions{
		APIURL:         ts.URL,
		JWT:            "jwt-token",
		GatewayHost:    "gw",
		StrictMetadata: strict,
	})
}

func testImage() *domain.GeneratedImage {
	return &domain.GeneratedImage{Bytes: []byte("jpeg-bytes"), ContentType: "image/jpeg"}
}

func TestPinataStore(t *testing.T) {
	fake := &fakePinata{cid: "bafy123"}
	client := newTestPinata(t, fake, false)

	artifact, err := client.Store(context.Background(), testImage(), map[string]string{"name": "Nova", "description": "a red fox"})
	if err != nil {
		t.Fatalf("Store error: %v", err)
	}
	if artifact.ContentID != "bafy123" {
		t.Fatalf("unexpected cid %q", artifact.ContentID)
	}
	if artifact.RetrievalURL != "https://gw/ipfs/bafy123" {
		t.Fatalf("unexpected url %q", artifact.RetrievalURL)
	}
	if artifact.MetadataWarning != "" {
		t.Fatalf("unexpected warning %q", artifact.MetadataWarning)
	}
	if string(fake.lastFile) != "jpeg-bytes" || fake.lastFileName != "nova.jpg" || fake.lastFileType != "image/jpeg" {
		t.Fatalf("file part mismatch: %q %q %q", fake.lastFile, fake.lastFileName, fake.lastFileType)
	}
	if fake.lastMeta.Name != "Nova" || fake.lastMeta.KeyValues["description"] != "a red fox" {
		t.Fatalf("metadata mismatch: %+v", fake.lastMeta)
	}
	if len(fake.metadataCalls) != 1 {
		t.Fatalf("expected one metadata call, got %d", len(fake.metadataCalls))
	}
	follow := fake.metadataCalls[0]
	if follow.IpfsPinHash != "bafy123" || follow.KeyValues["image"] != "https://gw/ipfs/bafy123" {
		t.Fatalf("follow-up metadata mismatch: %+v", follow)
	}
}

func TestPinataUploadFailure(t *testing.T) {
	fake := &fakePinata{cid: "bafy123", uploadStatus: http.StatusUnauthorized}
	client := newTestPinata(t, fake, false)

	_, err := client.Store(context.Background(), testImage(), map[string]string{"name": "Nova"})
	var storageErr *domain.StorageError
	if !errors.As(err, &storageErr) {
		t.Fatalf("expected StorageError, got %v", err)
	}
	if storageErr.Op != "upload" || !strings.Contains(storageErr.Err.Error(), "INVALID_CREDENTIALS") {
		t.Fatalf("unexpected storage error: %v", storageErr)
	}
	if len(fake.metadataCalls) != 0 {
		t.Fatalf("metadata call made after failed upload")
	}
}

func TestPinataMetadataFailureIsSurfaced(t *testing.T) {
	fake := &fakePinata{cid: "bafy123", metaStatus: http.StatusInternalServerError}
	client := newTestPinata(t, fake, false)

	artifact, err := client.Store(context.Background(), testImage(), map[string]string{"name": "Nova"})
	if err != nil {
		t.Fatalf("lenient store should succeed: %v", err)
	}
	if artifact.ContentID != "bafy123" {
		t.Fatalf("unexpected cid %q", artifact.ContentID)
	}
	if !strings.Contains(artifact.MetadataWarning, "metadata unavailable") {
		t.Fatalf("metadata failure not surfaced: %q", artifact.MetadataWarning)
	}
}

func TestPinataStrictMetadataFailure(t *testing.T) {
	fake := &fakePinata{cid: "bafy123", metaStatus: http.StatusInternalServerError}
	client := newTestPinata(t, fake, true)

	_, err := client.Store(context.Background(), testImage(), map[string]string{"name": "Nova"})
	if !errors.Is(err, domain.ErrStoreMetadata) {
		t.Fatalf("expected ErrStoreMetadata, got %v", err)
	}
}

func TestPinataRejectsEmptyImage(t *testing.T) {
	fake := &fakePinata{cid: "bafy123"}
	client := newTestPinata(t, fake, false)
	if _, err := client.Store(context.Background(), &domain.GeneratedImage{}, nil); err == nil {
		t.Fatalf("expected error for empty image")
	}
	if fake.uploads != 0 {
		t.Fatalf("upload attempted for empty image")
	}
}

func TestPinataMissingHash(t *testing.T) {
	fake := &fakePinata{}
	client := newTestPinata(t, fake, false)
	_, err := client.Store(context.Background(), testImage(), map[string]string{"name": "Nova"})
	var storageErr *domain.StorageError
	if !errors.As(err, &storageErr) {
		t.Fatalf("expected StorageError, got %v", err)
	}
}
