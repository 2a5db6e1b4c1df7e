package ollama

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatServer(t *testing.T, answer string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llava", req["model"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model":   "llava",
			"message": map[string]any{"role": "assistant", "content": answer},
			"done":    true,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewClient(t *testing.T) {
	_, err := NewClient("http://localhost:11434/api/chat")
	require.NoError(t, err)

	_, err = NewClient("localhost")
	require.Error(t, err)
}

func TestClassify(t *testing.T) {
	srv := chatServer(t, `{"label": "Wood", "confidence": 0.7, "tags": ["planks"]}`)
	c, err := NewClient(srv.URL + "/api/chat")
	require.NoError(t, err)

	img := base64.StdEncoding.EncodeToString([]byte("png bytes"))
	got, err := c.Classify(context.Background(), "llava", "classify", img)
	require.NoError(t, err)
	assert.Equal(t, "Wood", got.Label)
	assert.Equal(t, []string{"planks"}, got.Tags)
}

func TestClassifyBadImage(t *testing.T) {
	srv := chatServer(t, "{}")
	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	_, err = c.Classify(context.Background(), "llava", "classify", "%%%")
	require.Error(t, err)
}

func TestSimpleQuery(t *testing.T) {
	srv := chatServer(t, "a mossy stone wall")
	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	got, err := c.SimpleQuery(context.Background(), "llava", "describe", "")
	require.NoError(t, err)
	assert.Equal(t, "a mossy stone wall", got)
}
