package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/illegalcall/palmistry/internal/config"
)

var ErrUnsupportedType = errors.New("unsupported image type")

// Storage holds uploaded palm images and hands out time-limited links to them.
type Storage interface {
	// Upload stores r under objectPath inside the bucket
	Upload(ctx context.Context, objectPath, contentType string, r io.Reader) error

	// SignedURL returns a link to objectPath valid for ttl
	SignedURL(ctx context.Context, objectPath string, ttl time.Duration) (string, error)
}

// New picks the backend named in the configuration.
func New(cfg config.StorageConfig) (Storage, error) {
	switch cfg.Backend {
	case "local":
		return NewLocalStorage(cfg.LocalDir, cfg.LocalBaseURL, cfg.LocalSignature)
	case "supabase":
		return NewSupabaseStorage(cfg.SupabaseURL, cfg.ServiceKey, cfg.Bucket)
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
}

var extensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
	"image/heic": "heic",
}

// Extension returns the file extension for an accepted image content type.
func Extension(contentType string) (string, error) {
	ct := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	ext, ok := extensions[ct]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, contentType)
	}
	return ext, nil
}

// ObjectPath is where a user's upload lives: <userId>/<unix millis>.<ext>.
func ObjectPath(userID string, at time.Time, ext string) string {
	return path.Join(userID, fmt.Sprintf("%d.%s", at.UnixMilli(), ext))
}

// PathFromURL recovers the object path from a stored image URL by cutting
// everything up to "/<bucket>/" and dropping the query string.
func PathFromURL(rawURL, bucket string) (string, bool) {
	marker := "/" + bucket + "/"
	idx := strings.LastIndex(rawURL, marker)
	if idx < 0 {
		return "", false
	}
	p := rawURL[idx+len(marker):]
	if q := strings.IndexByte(p, '?'); q >= 0 {
		p = p[:q]
	}
	if p == "" {
		return "", false
	}
	return p, true
}
