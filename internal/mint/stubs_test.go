package mint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"math/big"
	"sync"
	"testing"
	"time"

	"nftforge/internal/domain"
)

type stubGenerator struct {
	mu     sync.Mutex
	calls  []string
	images []*domain.GeneratedImage
	err    error
	gate   chan struct{}
}

func (s *stubGenerator) Generate(ctx context.Context, description string) (*domain.GeneratedImage, error) {
	s.mu.Lock()
	s.calls = append(s.calls, description)
	n := len(s.calls)
	gate := s.gate
	s.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	if len(s.images) == 0 {
		return &domain.GeneratedImage{Bytes: []byte("image-" + description), ContentType: "image/png"}, nil
	}
	if n > len(s.images) {
		n = len(s.images)
	}
	return s.images[n-1], nil
}

func (s *stubGenerator) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type storeCall struct {
	Bytes  []byte
	Labels map[string]string
}

// stubStore derives the content id from the bytes, like a content-addressed
// network would.
type stubStore struct {
	mu      sync.Mutex
	calls   []storeCall
	cid     string
	gateway string
	err     error
	warning string
	gate    chan struct{}
}

func (s *stubStore) Store(ctx context.Context, img *domain.GeneratedImage, labels map[string]string) (*domain.StoredArtifact, error) {
	s.mu.Lock()
	s.calls = append(s.calls, storeCall{Bytes: append([]byte(nil), img.Bytes...), Labels: labels})
	gate := s.gate
	s.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	cid := s.cid
	if cid == "" {
		sum := sha256.Sum256(img.Bytes)
		cid = "bafy" + hex.EncodeToString(sum[:8])
	}
	gw := s.gateway
	if gw == "" {
		gw = "gw"
	}
	return &domain.StoredArtifact{
		ContentID:       cid,
		RetrievalURL:    "https://" + gw + "/ipfs/" + cid,
		MetadataWarning: s.warning,
	}, nil
}

func (s *stubStore) Calls() []storeCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]storeCall(nil), s.calls...)
}

type mintCall struct {
	TokenURI string
	Payment  *big.Int
}

type stubMinter struct {
	mu    sync.Mutex
	calls []mintCall
	err   error
	gate  chan struct{}
}

func (s *stubMinter) Mint(ctx context.Context, tokenURI string, payment *big.Int) (*domain.MintReceipt, error) {
	s.mu.Lock()
	s.calls = append(s.calls, mintCall{TokenURI: tokenURI, Payment: payment})
	n := len(s.calls)
	gate := s.gate
	s.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return &domain.MintReceipt{
		TokenURI:        tokenURI,
		TransactionHash: "0xabc" + string(rune('0'+n)),
		TokenID:         big.NewInt(int64(n)),
		BlockNumber:     100,
	}, nil
}

func (s *stubMinter) Calls() []mintCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]mintCall(nil), s.calls...)
}

func newTestWorkflow(t *testing.T, gen *stubGenerator, store *stubStore, minter *stubMinter) *Workflow {
	t.Helper()
	wf, err := New(Options{ID: "wf-1", Generator: gen, Store: store, Minter: minter, Payment: big.NewInt(1e17)})
	if err != nil {
		t.Fatalf("new workflow: %v", err)
	}
	t.Cleanup(func() {
		wf.Close()
		wf.Wait()
	})
	return wf
}

// waitStage reads events until one reaches stage.
func waitStage(t *testing.T, events <-chan Event, stage domain.Stage) Event {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				t.Fatalf("event stream closed before %s", stage)
			}
			if ev.State.Stage == stage {
				return ev
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", stage)
		}
	}
}

// collect reads n events.
func collect(t *testing.T, events <-chan Event, n int) []Event {
	t.Helper()
	out := make([]Event, 0, n)
	timeout := time.After(2 * time.Second)
	for len(out) < n {
		select {
		case ev, ok := <-events:
			if !ok {
				t.Fatalf("event stream closed after %d events", len(out))
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatalf("timed out after %d events", len(out))
		}
	}
	return out
}

func stagesOf(events []Event) []domain.Stage {
	out := make([]domain.Stage, len(events))
	for i, ev := range events {
		out[i] = ev.State.Stage
	}
	return out
}
