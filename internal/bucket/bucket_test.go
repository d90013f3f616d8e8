package bucket

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOverviewKey(t *testing.T) {
	require.Equal(t, "api/category/databases/overview", OverviewKey("prod", "databases"))
	require.Equal(t, "dev/api/category/databases/overview", OverviewKey("dev", "databases"))
}

func TestFSUploader(t *testing.T) {
	dir := t.TempDir()
	u := &FSUploader{Dir: dir}
	blob := []byte(`{"records": []}`)

	err := u.Upload(context.Background(), "api/category/databases/overview", "application/json", blob)
	require.NoError(t, err)

	written, err := os.ReadFile(filepath.Join(dir, "api", "category", "databases", "overview"))
	require.NoError(t, err)
	require.Equal(t, blob, written)

	compressed, err := os.ReadFile(filepath.Join(dir, "api", "category", "databases", "overview.gz"))
	require.NoError(t, err)
	gr, err := gzip.NewReader(bytes.NewReader(compressed))
	require.NoError(t, err)
	decompressed, err := io.ReadAll(gr)
	require.NoError(t, err)
	require.Equal(t, blob, decompressed)
}
