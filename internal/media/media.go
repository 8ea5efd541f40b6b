// Package media stores uploaded report files on local disk or in S3.
package media

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"roadAccident/internal/config"
	"roadAccident/internal/domain"

	"github.com/google/uuid"
)

type Store interface {
	Save(ctx context.Context, upload *domain.MediaUpload) (string, error)
	Delete(ctx context.Context, ref string) error
}

var extByType = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"video/mp4":       ".mp4",
	"video/webm":      ".webm",
	"video/quicktime": ".mov",
}

// objectName builds <prefix>_<unixnano>_<rand><ext>. The extension comes from
// the declared type first and falls back to the client filename.
func objectName(prefix string, upload *domain.MediaUpload) string {
	ct := strings.ToLower(upload.ContentType)
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	ext, ok := extByType[ct]
	if !ok {
		ext = strings.ToLower(filepath.Ext(filepath.Base(upload.Filename)))
		if len(ext) > 8 {
			ext = ext[:8]
		}
	}
	return fmt.Sprintf("%s_%d_%s%s", prefix, time.Now().UnixNano(), uuid.NewString()[:8], ext)
}

func New(ctx context.Context, cfg config.MediaConfig) (Store, error) {
	switch cfg.Backend {
	case "s3":
		return NewS3Store(ctx, cfg.S3)
	default:
		return NewLocalStore(cfg.UploadDir)
	}
}
