package download

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchToFileStreamsWithProgress(t *testing.T) {
	payload := make([]byte, 256*1024)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
		_, _ = w.Write(payload)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "out.bin")
	var lastDownloaded, lastTotal int64
	err := fetchToFile(context.Background(), newDownloadClient(), server.URL, dest, func(downloaded, total int64) {
		require.GreaterOrEqual(t, downloaded, lastDownloaded, "byte counter must be monotonic")
		lastDownloaded, lastTotal = downloaded, total
	})
	require.NoError(t, err)

	assert.Equal(t, int64(len(payload)), lastDownloaded)
	assert.Equal(t, int64(len(payload)), lastTotal)
	info, err := os.Stat(dest)
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), info.Size())
}

func TestFetchFollowsRelativeRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Location", "/hop")
		w.WriteHeader(http.StatusFound)
	})
	mux.HandleFunc("/hop", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Location", "final.bin")
		w.WriteHeader(http.StatusMovedPermanently)
	})
	mux.HandleFunc("/final.bin", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("binary payload"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "out.bin")
	err := fetchToFile(context.Background(), newDownloadClient(), server.URL+"/start", dest, nil)
	require.NoError(t, err)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "binary payload", string(data))
}

func TestFetchCapsRedirectDepth(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", fmt.Sprintf("%s/loop%d", server.URL, len(r.URL.Path)))
		w.WriteHeader(http.StatusFound)
	}))
	defer server.Close()

	err := fetchToFile(context.Background(), newDownloadClient(), server.URL, filepath.Join(t.TempDir(), "out"), nil)
	require.ErrorIs(t, err, ErrNetwork)
	assert.Contains(t, err.Error(), "redirects")
}

func TestFetchRejectsNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	err := fetchToFile(context.Background(), newDownloadClient(), server.URL, filepath.Join(t.TempDir(), "out"), nil)
	require.ErrorIs(t, err, ErrNetwork)
	assert.Contains(t, err.Error(), "404")
}

func TestFetchRejectsHTMLContentType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html>blocked</html>"))
	}))
	defer server.Close()

	err := fetchToFile(context.Background(), newDownloadClient(), server.URL, filepath.Join(t.TempDir(), "out"), nil)
	require.ErrorIs(t, err, ErrNetwork)
	assert.Contains(t, err.Error(), "HTML")
}

func TestFetchSendsBrowserUserAgent(t *testing.T) {
	var agent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agent = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	require.NoError(t, fetchToFile(context.Background(), newDownloadClient(), server.URL, filepath.Join(t.TempDir(), "out"), nil))
	assert.Contains(t, agent, "Mozilla/5.0")
}

func TestFetchCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	err := fetchToFile(ctx, newDownloadClient(), server.URL, filepath.Join(t.TempDir(), "out"), nil)
	require.ErrorIs(t, err, context.Canceled)
}
