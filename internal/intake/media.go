package intake

import (
	"fmt"
	"strings"

	"roadAccident/internal/domain"
	"roadAccident/pkg/e"
)

const (
	MaxImageBytes int64 = 10 << 20
	MaxVideoBytes int64 = 50 << 20
)

var (
	ErrTooLarge        = fmt.Errorf("media file is too large: %w", e.ErrInvalidInput)
	ErrUnsupportedType = fmt.Errorf("unsupported media type: %w", e.ErrInvalidInput)
)

var allowedImageTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
}

type MediaMeta struct {
	Size        int64
	ContentType string
}

// MediaKindOf classifies a declared MIME type. ok is false for anything outside the allow-list.
func MediaKindOf(contentType string) (domain.MediaKind, bool) {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if _, ok := allowedImageTypes[ct]; ok {
		return domain.MediaImage, true
	}
	if strings.HasPrefix(ct, "video/") && len(ct) > len("video/") {
		return domain.MediaVideo, true
	}
	return "", false
}

func ValidateMedia(m MediaMeta) error {
	kind, ok := MediaKindOf(m.ContentType)
	if !ok {
		return ErrUnsupportedType
	}
	limit := MaxImageBytes
	if kind == domain.MediaVideo {
		limit = MaxVideoBytes
	}
	if m.Size > limit {
		return fmt.Errorf("%d bytes over %d for %s: %w", m.Size, limit, kind, ErrTooLarge)
	}
	return nil
}
