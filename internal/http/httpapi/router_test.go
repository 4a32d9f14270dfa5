package httpapi

import (
	"context"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"nftforge/internal/domain"
	"nftforge/internal/http/handlers"
	"nftforge/internal/metrics"
	"nftforge/internal/middleware"
	"nftforge/internal/mint"
)

type stubGenerator struct{}

func (stubGenerator) Generate(context.Context, string) (*domain.GeneratedImage, error) {
	return &domain.GeneratedImage{Bytes: []byte("png"), ContentType: "image/png"}, nil
}

type stubStore struct{}

func (stubStore) Store(context.Context, *domain.GeneratedImage, map[string]string) (*domain.StoredArtifact, error) {
	return &domain.StoredArtifact{ContentID: "bafy123", RetrievalURL: "https://gw/ipfs/bafy123"}, nil
}

type stubMinter struct{}

func (stubMinter) Mint(_ context.Context, uri string, _ *big.Int) (*domain.MintReceipt, error) {
	return &domain.MintReceipt{TokenURI: uri, TransactionHash: "0x1"}, nil
}

func newTestRouter(t *testing.T, perMin int) http.Handler {
	t.Helper()
	reg, err := mint.NewRegistry(mint.RegistryOptions{Generator: stubGenerator{}, Store: stubStore{}, Minter: stubMinter{}})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	t.Cleanup(reg.Close)
	return NewRouter(handlers.NewApp(reg, nil), RouterOptions{
		Logger:          zerolog.Nop(),
		Metrics:         metrics.New(),
		AllowedOrigins:  []string{"http://localhost:3000"},
		RateLimitPerMin: perMin,
	})
}

func TestRouterWiring(t *testing.T) {
	h := newTestRouter(t, 10)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz: expected 200, got %d", rec.Code)
	}
	if rec.Header().Get(middleware.HeaderRequestID) == "" {
		t.Fatalf("expected request id header")
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/mints", strings.NewReader(`{"name":"Nova","description":"a red fox"}`)))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("create: expected 202, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `nftforge_http_requests_total{method="POST",route="/v1/mints`) {
		t.Fatalf("expected route metrics, got %d", rec.Code)
	}
}

func TestRouterRateLimitsCreate(t *testing.T) {
	h := newTestRouter(t, 1)
	body := `{"name":"Nova","description":"a red fox"}`

	first := httptest.NewRecorder()
	h.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/v1/mints", strings.NewReader(body)))
	if first.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", first.Code)
	}
	second := httptest.NewRecorder()
	h.ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/v1/mints", strings.NewReader(body)))
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", second.Code)
	}

	read := httptest.NewRecorder()
	h.ServeHTTP(read, httptest.NewRequest(http.MethodGet, "/v1/mints", nil))
	if read.Code != http.StatusOK {
		t.Fatalf("reads are not rate limited, got %d", read.Code)
	}
}
