package downloader

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csrc-disclosure/fundreport-sync/internal/fetcher"
	"github.com/csrc-disclosure/fundreport-sync/internal/model"
)

func newTestDownloader(t *testing.T) *Downloader {
	t.Helper()
	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:  "test-agent",
		Timeout:    5 * time.Second,
		MaxRetries: 2,
	})
	return New(f, t.TempDir())
}

func TestDownload_WritesFileAndHash(t *testing.T) {
	const body = "<html>report</html>"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer srv.Close()

	d := newTestDownloader(t)
	ref := model.ReportRef{UploadInfoID: "abc123"}

	rec, err := d.Download(context.Background(), ref, srv.URL, "")
	require.NoError(t, err)

	sum := sha256.Sum256([]byte(body))
	assert.Equal(t, hex.EncodeToString(sum[:]), rec.SHA256)
	assert.Equal(t, int64(len(body)), rec.Bytes)
	assert.False(t, rec.Skipped)

	data, err := os.ReadFile(rec.Path)
	require.NoError(t, err)
	assert.Equal(t, body, string(data))
}

func TestDownload_SkipsWhenHashMatches(t *testing.T) {
	const body = "unchanged content"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer srv.Close()

	d := newTestDownloader(t)
	ref := model.ReportRef{UploadInfoID: "unchanged"}

	sum := sha256.Sum256([]byte(body))
	existing := hex.EncodeToString(sum[:])

	rec, err := d.Download(context.Background(), ref, srv.URL, existing)
	require.NoError(t, err)
	assert.True(t, rec.Skipped)

	_, statErr := os.Stat(filepath.Join(d.destDir, ref.UploadInfoID+".html"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestDownload_PropagatesFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	d := newTestDownloader(t)
	ref := model.ReportRef{UploadInfoID: "missing"}

	_, err := d.Download(context.Background(), ref, srv.URL, "")
	require.Error(t, err)
}
