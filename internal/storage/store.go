package storage

import (
	"context"
	"path"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"nftforge/internal/domain"
)

// ContentStore persists image bytes on a content-addressed network.
type ContentStore interface {
	Store(ctx context.Context, img *domain.GeneratedImage, labels map[string]string) (*domain.StoredArtifact, error)
}

// GatewayURL builds the public retrieval URL for a content identifier.
func GatewayURL(gatewayHost, contentID string) string {
	return "https://" + strings.Trim(strings.TrimSpace(gatewayHost), "/") + "/ipfs/" + contentID
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// FileName derives the name of the uploaded file object from the token name
// and the image content type, e.g. "Nova Fox" + image/jpeg -> "nova-fox.jpg".
func FileName(name, contentType string) string {
	slug := cases.Lower(language.Und).String(strings.TrimSpace(name))
	slug = strings.Trim(nonSlug.ReplaceAllString(slug, "-"), "-")
	if slug == "" {
		slug = "image"
	}
	ext := extensionForMIME(contentType)
	if ext == "" {
		ext = ".bin"
	}
	return slug + ext
}

func extensionForMIME(mime string) string {
	mime = strings.ToLower(strings.TrimSpace(mime))
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	switch mime {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ""
	}
}

func withImageURL(labels map[string]string, url string) map[string]string {
	out := make(map[string]string, len(labels)+1)
	for k, v := range labels {
		out[k] = v
	}
	out["image"] = url
	return out
}

func baseName(file string) string {
	return strings.TrimSuffix(file, path.Ext(file))
}
