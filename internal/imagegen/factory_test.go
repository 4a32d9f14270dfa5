package imagegen

import (
	"strings"
	"testing"

	"nftforge/internal/infra"
)

func TestFromConfig(t *testing.T) {
	if _, err := FromConfig(&infra.Config{ImageBackend: infra.ImageBackendHuggingFace}, nil); err == nil || !strings.Contains(err.Error(), "HF_API_KEY") {
		t.Fatalf("expected missing key error, got %v", err)
	}

	gen, err := FromConfig(&infra.Config{ImageBackend: infra.ImageBackendHuggingFace, HuggingFaceAPIKey: "key"}, nil)
	if err != nil {
		t.Fatalf("FromConfig error: %v", err)
	}
	if _, ok := gen.(*HuggingFaceClient); !ok {
		t.Fatalf("expected HuggingFaceClient, got %T", gen)
	}

	gen, err = FromConfig(&infra.Config{ImageBackend: infra.ImageBackendSynthetic}, nil)
	if err != nil {
		t.Fatalf("FromConfig error: %v", err)
	}
	if _, ok := gen.(*SyntheticGenerator); !ok {
		t.Fatalf("expected SyntheticGenerator, got %T", gen)
	}
}
