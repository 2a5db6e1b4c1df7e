package server

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/texture-upscaler/internal/config"
	"github.com/menta2k/texture-upscaler/pkg/pipeline"
	"github.com/menta2k/texture-upscaler/pkg/stages"
)

const serverGraph = `
stages:
  source:
    Directory: {path: .}
  double:
    Resize: {factor: 2}
  gray:
    Mode: {mode: gray}
  sizes:
    SizeSorter: {}
  out:
    Discard: {}
`

func newTestServer(t *testing.T, cfg config.ServerConfig) *Server {
	t.Helper()
	doc, err := config.Parse([]byte(serverGraph))
	require.NoError(t, err)
	g, err := pipeline.Build(doc, stages.Default(), pipeline.NewContext(t.TempDir(), 0, nil))
	require.NoError(t, err)
	return New(g, cfg, nil, nil)
}

func pngBody(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = uint8(i)
	}
	img.Set(0, 0, color.NRGBA{255, 0, 0, 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func do(s *Server, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, config.Default().Server)
	rec := do(s, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, body["run_id"])
}

func TestStages(t *testing.T) {
	s := newTestServer(t, config.Default().Server)
	rec := do(s, http.MethodGet, "/api/stages", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got []StageInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, []StageInfo{{Name: "double", Class: "Resize"}, {Name: "gray", Class: "Mode"}}, got)
}

func TestProcess(t *testing.T) {
	s := newTestServer(t, config.Default().Server)
	rec := do(s, http.MethodPost, "/api/process/double", pngBody(t, 10, 6))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("X-Object-Name"), "_x2")

	img, err := png.Decode(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, image.Pt(20, 12), img.Bounds().Size())
}

func TestProcessCleansWIP(t *testing.T) {
	s := newTestServer(t, config.Default().Server)
	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, do(s, http.MethodPost, "/api/process/double", pngBody(t, 8, 8)).Code)
		require.Equal(t, http.StatusOK, do(s, http.MethodPost, "/api/process/gray", pngBody(t, 8, 8)).Code)
	}

	entries, err := os.ReadDir(s.graph.Context().WIPDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestProcessErrors(t *testing.T) {
	s := newTestServer(t, config.Default().Server)

	assert.Equal(t, http.StatusNotFound, do(s, http.MethodPost, "/api/process/nope", pngBody(t, 4, 4)).Code)
	assert.Equal(t, http.StatusBadRequest, do(s, http.MethodPost, "/api/process/sizes", pngBody(t, 4, 4)).Code)
	assert.Equal(t, http.StatusBadRequest, do(s, http.MethodPost, "/api/process/double", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(s, http.MethodPost, "/api/process/double", []byte("not an image")).Code)
}

func TestBodyLimit(t *testing.T) {
	s := newTestServer(t, config.ServerConfig{MaxUploadMB: 1})
	big := make([]byte, 2<<20)
	assert.Equal(t, http.StatusRequestEntityTooLarge, do(s, http.MethodPost, "/api/process/double", big).Code)
}
