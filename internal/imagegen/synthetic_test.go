package imagegen

import (
	"bytes"
	"context"
	"testing"
)

func TestSyntheticGeneratorRerollsDiffer(t *testing.T) {
	g := &SyntheticGenerator{Size: 64}
	first, err := g.Generate(context.Background(), "a red fox")
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	second, err := g.Generate(context.Background(), "a red fox")
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if first.ContentType != "image/png" {
		t.Fatalf("unexpected content type %s", first.ContentType)
	}
	if !bytes.HasPrefix(first.Bytes, []byte("\x89PNG")) {
		t.Fatalf("output is not a png")
	}
	if bytes.Equal(first.Bytes, second.Bytes) {
		t.Fatalf("re-rolls produced identical images")
	}
}

func TestSyntheticGeneratorHonorsCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (&SyntheticGenerator{}).Generate(ctx, "x"); err == nil {
		t.Fatalf("expected error for canceled context")
	}
}
