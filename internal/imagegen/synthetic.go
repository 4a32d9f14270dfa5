package imagegen

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strconv"
	"sync/atomic"

	"nftforge/internal/domain"
)

// SyntheticGenerator renders a deterministic pattern from the description.
// It stands in for the inference API when no key is configured so the rest
// of the pipeline stays exercisable locally.
type SyntheticGenerator struct {
	Size    int
	attempt atomic.Uint64
}

func (g *SyntheticGenerator) Generate(ctx context.Context, description string) (*domain.GeneratedImage, error) {
	if err := ctx.Err(); err != nil {
		return nil, &domain.GenerationError{Err: err}
	}
	size := g.Size
	if size <= 0 {
		size = 512
	}
	// Each call is a re-roll, so the attempt number feeds the seed.
	seed := seedFor(description, g.attempt.Add(1))
	data, err := renderPattern(size, seed)
	if err != nil {
		return nil, &domain.GenerationError{Err: err}
	}
	return &domain.GeneratedImage{Bytes: data, ContentType: "image/png"}, nil
}

func renderPattern(size int, seed string) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), &image.Uniform{colorFromSeed(seed, 0)}, image.Point{}, draw.Src)

	band := max(16, size/12)
	accent := colorFromSeed(seed, 1)
	for y := 0; y < size; y += band * 2 {
		draw.Draw(img, image.Rect(0, y, size, min(size, y+band)), &image.Uniform{accent}, image.Point{}, draw.Over)
	}
	diagonal := colorFromSeed(seed, 2)
	for x := 0; x < size; x += max(8, size/32) {
		for y := 0; x+y < size; y++ {
			img.Set(x+y, y, diagonal)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("synthetic: encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func seedFor(description string, attempt uint64) string {
	sum := sha256.Sum256([]byte(description + "|" + strconv.FormatUint(attempt, 10)))
	return hex.EncodeToString(sum[:9])
}

func colorFromSeed(seed string, shift int) color.RGBA {
	doubled := seed + seed
	start := (shift * 6) % len(seed)
	segment := doubled[start : start+6]
	return color.RGBA{R: hexByte(segment[0:2]), G: hexByte(segment[2:4]), B: hexByte(segment[4:6]), A: 255}
}

func hexByte(s string) uint8 {
	v, err := strconv.ParseUint(s, 16, 8)
	if err != nil {
		return 0
	}
	return uint8(v)
}

var _ Generator = (*SyntheticGenerator)(nil)
