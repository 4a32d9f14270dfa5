package mint

import (
	"errors"
	"strings"

	"nftforge/internal/domain"
)

// PresentMessage returns the part of a raw node or contract message that is
// shown to users: everything before the first "(", trimmed.
func PresentMessage(raw string) string {
	if i := strings.IndexByte(raw, '('); i >= 0 {
		raw = raw[:i]
	}
	return strings.TrimSpace(raw)
}

// Reason renders the user-facing failure reason for err. Only ledger
// rejections are cut down; other failures are shown as they are.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	var mintErr *domain.MintError
	if errors.As(err, &mintErr) {
		if msg := PresentMessage(mintErr.Error()); msg != "" {
			return msg
		}
		return "mint failed"
	}
	return err.Error()
}
