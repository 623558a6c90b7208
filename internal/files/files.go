// Package files stores the evidence documents vendors attach to answers.
package files

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"vendorrisk/config"
	"vendorrisk/internal/core"
)

// MaxUploadSize is the largest accepted document, in bytes.
const MaxUploadSize = 10 << 20

// AllowedContentTypes are the accepted document types.
var AllowedContentTypes = []string{"application/pdf", "image/jpeg", "image/png"}

// Store keeps uploaded documents and hands out download URLs for them.
type Store interface {
	// Put stores the document and returns its key.
	Put(ctx context.Context, name, contentType string, r io.Reader) (string, error)
	// URL returns a download URL for key.
	URL(ctx context.Context, key string) (string, error)
}

// Validate rejects documents of a disallowed type or size. A negative size
// skips the size check.
func Validate(contentType string, size int64) error {
	mediaType, _, _ := strings.Cut(contentType, ";")
	if !slices.Contains(AllowedContentTypes, strings.TrimSpace(strings.ToLower(mediaType))) {
		return core.NewInvalidRequestError("Only PDF, JPEG, and PNG files are allowed", nil)
	}
	if size > MaxUploadSize {
		return core.NewInvalidRequestError("File exceeds the 10 MB limit", nil)
	}
	return nil
}

var whitespace = regexp.MustCompile(`\s+`)

// ObjectKey names an upload: the upload time in epoch milliseconds, a dash,
// then the file's base name with whitespace runs replaced by underscores.
func ObjectKey(now time.Time, name string) string {
	base := filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	if base == "." || base == "/" {
		base = "upload"
	}
	return strconv.FormatInt(now.UnixMilli(), 10) + "-" + whitespace.ReplaceAllString(base, "_")
}

// readLimited buffers r, failing when it exceeds MaxUploadSize.
func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxUploadSize+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(data) > MaxUploadSize {
		return nil, core.NewInvalidRequestError("File exceeds the 10 MB limit", nil)
	}
	return data, nil
}

// New builds the store cfg selects. urlPrefix is where a local store's
// directory is served.
func New(ctx context.Context, cfg config.FilesConfig, urlPrefix string) (Store, error) {
	switch cfg.Backend {
	case "", "local":
		return NewLocalStore(cfg.Dir, urlPrefix)
	case "s3":
		return NewS3Store(ctx, S3Config{
			Bucket:   cfg.S3.Bucket,
			Region:   cfg.S3.Region,
			Endpoint: cfg.S3.Endpoint,
			URLTTL:   time.Duration(cfg.S3.URLTTL) * time.Second,
		})
	default:
		return nil, fmt.Errorf("unknown files backend: %s", cfg.Backend)
	}
}

