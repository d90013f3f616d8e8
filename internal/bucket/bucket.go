// Package bucket hands finished snapshot blobs to an object-storage sink.
// The pipeline only ever produces a byte blob and a destination key; what
// the sink does with them is its own business.
package bucket

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gctaylor/techsubs/internal/config"
)

// Uploader is the sink the overview worker publishes snapshots to.
type Uploader interface {
	Upload(ctx context.Context, key, contentType string, blob []byte) error
}

// OverviewKey is the destination key for a category's overview snapshot.
// Dev snapshots live under a separate prefix so they never shadow prod.
func OverviewKey(environment, category string) string {
	prefix := "api"
	if environment != config.EnvProd {
		prefix = "dev/api"
	}
	return fmt.Sprintf("%s/category/%s/overview", prefix, category)
}

// FSUploader writes snapshots under a local directory. Each blob is stored
// twice: as-is, and gzipped alongside for servers that prefer precompressed
// content.
type FSUploader struct {
	Dir string
}

func (u *FSUploader) Upload(ctx context.Context, key, contentType string, blob []byte) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	path := filepath.Join(u.Dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	if err := os.WriteFile(path, blob, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}

	var compressed bytes.Buffer
	gz := gzip.NewWriter(&compressed)
	if _, err := gz.Write(blob); err != nil {
		return fmt.Errorf("gzip snapshot: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("gzip snapshot: %w", err)
	}
	if err := os.WriteFile(path+".gz", compressed.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write gzipped snapshot: %w", err)
	}
	return nil
}
