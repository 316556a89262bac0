// Package http contains the bridge daemon's HTTP handlers: service
// info, health, the resolver manifest, and bundle asset serving with
// precompressed variants.
package http

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/goccy/go-yaml"

	"github.com/hybridui/dombridge/internal/infrastructure/logging"
	"github.com/hybridui/dombridge/internal/resolver"
)

// Handlers holds dependencies for HTTP endpoints.
type Handlers struct {
	assetsDir string
	logger    *logging.Logger
	startTime time.Time
}

// NewHandlers creates the handler set. assetsDir is the directory the
// resolver emitted artifacts into.
func NewHandlers(assetsDir string, logger *logging.Logger) *Handlers {
	return &Handlers{
		assetsDir: assetsDir,
		logger:    logger.Named("http"),
		startTime: time.Now(),
	}
}

// Root returns service identification and the endpoint map.
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "dombridge",
		"endpoints": gin.H{
			"health":   "/health",
			"manifest": "/manifest",
			"assets":   "/assets/:artifact",
			"attach":   "/ws/:instance",
			"metrics":  "/metrics",
		},
	})
}

// Health reports liveness and uptime.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(h.startTime).Round(time.Second).String(),
	})
}

// Manifest serves the resolver build manifest as JSON.
func (h *Handlers) Manifest(c *gin.Context) {
	data, err := os.ReadFile(filepath.Join(h.assetsDir, resolver.ManifestFile))
	if err != nil {
		if os.IsNotExist(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no build manifest; run the resolver first"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "read manifest"})
		return
	}
	var m resolver.Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "parse manifest"})
		return
	}
	c.JSON(http.StatusOK, m)
}

// knownTypes short-circuits content detection for the extensions the
// resolver emits; everything else falls back to sniffing.
var knownTypes = map[string]string{
	".js":   "text/javascript; charset=utf-8",
	".mjs":  "text/javascript; charset=utf-8",
	".json": "application/json",
	".yaml": "application/yaml",
	".css":  "text/css; charset=utf-8",
	".html": "text/html; charset=utf-8",
	".map":  "application/json",
}

// Asset serves a bundle artifact. When the client accepts gzip and the
// resolver emitted a precompressed sibling, that body is served with
// Content-Encoding set, skipping recompression.
func (h *Handlers) Asset(c *gin.Context) {
	name := strings.TrimPrefix(c.Param("filepath"), "/")
	cleaned := filepath.Clean(name)
	if cleaned == "." || strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid artifact path"})
		return
	}

	full := filepath.Join(h.assetsDir, cleaned)
	info, err := os.Stat(full)
	if err != nil || info.IsDir() {
		c.JSON(http.StatusNotFound, gin.H{"error": "artifact not found"})
		return
	}

	c.Header("Content-Type", contentTypeFor(full))
	c.Header("Cache-Control", "no-cache")

	if strings.Contains(c.GetHeader("Accept-Encoding"), "gzip") {
		if gz := full + ".gz"; fileExists(gz) {
			c.Header("Content-Encoding", "gzip")
			c.Header("Vary", "Accept-Encoding")
			c.File(gz)
			return
		}
	}
	c.File(full)
}

func contentTypeFor(path string) string {
	if ct, ok := knownTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return ct
	}
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return "application/octet-stream"
	}
	return mt.String()
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
