package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-yaml"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hybridui/dombridge/internal/infrastructure/logging"
	"github.com/hybridui/dombridge/internal/resolver"
)

func newTestRouter(t *testing.T, assetsDir string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	h := NewHandlers(assetsDir, logging.NewDefault())
	r := gin.New()
	r.GET("/", h.Root)
	r.GET("/health", h.Health)
	r.GET("/manifest", h.Manifest)
	r.GET("/assets/*filepath", h.Asset)
	return r
}

func get(r *gin.Engine, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	r := newTestRouter(t, t.TempDir())
	w := get(r, "/health", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestRootListsEndpoints(t *testing.T) {
	r := newTestRouter(t, t.TempDir())
	w := get(r, "/", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/ws/:instance")
}

func TestManifest(t *testing.T) {
	dir := t.TempDir()
	r := newTestRouter(t, dir)

	t.Run("absent manifest is 404", func(t *testing.T) {
		w := get(r, "/manifest", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("serves parsed manifest", func(t *testing.T) {
		m := resolver.Manifest{
			GeneratedAt: time.Now().UTC(),
			Bundles: []resolver.ManifestBundle{{
				Module:   "src/widgets/map.js",
				Artifact: "src_widgets_map.bundle.js",
				Factory:  "src_widgets_map.proxy.js",
			}},
		}
		data, err := yaml.Marshal(m)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, resolver.ManifestFile), data, 0o644))

		w := get(r, "/manifest", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "src_widgets_map.bundle.js")
	})
}

func TestAsset(t *testing.T) {
	dir := t.TempDir()
	body := []byte("globalThis.answer = 42;\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "w.bundle.js"), body, 0o644))

	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	_, err := zw.Write(body)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(filepath.Join(dir, "w.bundle.js.gz"), gz.Bytes(), 0o644))

	r := newTestRouter(t, dir)

	t.Run("plain body", func(t *testing.T) {
		w := get(r, "/assets/w.bundle.js", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, body, w.Body.Bytes())
		assert.Contains(t, w.Header().Get("Content-Type"), "javascript")
		assert.Empty(t, w.Header().Get("Content-Encoding"))
	})

	t.Run("precompressed body when accepted", func(t *testing.T) {
		w := get(r, "/assets/w.bundle.js", map[string]string{"Accept-Encoding": "gzip"})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
		assert.Equal(t, gz.Bytes(), w.Body.Bytes())
	})

	t.Run("missing artifact", func(t *testing.T) {
		w := get(r, "/assets/nope.bundle.js", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("rejects traversal", func(t *testing.T) {
		w := get(r, "/assets/..%2F..%2Fetc%2Fpasswd", nil)
		assert.NotEqual(t, http.StatusOK, w.Code)
	})
}
