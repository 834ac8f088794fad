package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEmbedServer(t *testing.T, dims int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req httpEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		var n int
		switch v := req.Input.(type) {
		case string:
			n = 1
		case []any:
			n = len(v)
		}
		embeddings := make([][]float64, n)
		for i := range embeddings {
			row := make([]float64, dims)
			row[0] = 1.0
			embeddings[i] = row
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(httpEmbedResponse{Embeddings: embeddings})
	}))
}

func TestHTTPEmbedderEmbed(t *testing.T) {
	srv := newEmbedServer(t, 8)
	defer srv.Close()

	e := NewHTTPEmbedder(HTTPConfig{Host: srv.URL, Dimensions: 8, Timeout: 2 * time.Second})
	v, err := e.Embed(context.Background(), "hello", KindDocument)
	require.NoError(t, err)
	assert.Len(t, v, 8)
}

func TestHTTPEmbedderEmbedBatchSkipsEmpty(t *testing.T) {
	srv := newEmbedServer(t, 4)
	defer srv.Close()

	e := NewHTTPEmbedder(HTTPConfig{Host: srv.URL, Dimensions: 4, Timeout: 2 * time.Second})
	out, err := e.EmbedBatch(context.Background(), []string{"a", "  ", "b"}, KindQuery)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Len(t, out[1], 4)
	for _, f := range out[1] {
		assert.Equal(t, float32(0), f)
	}
}

func TestHTTPEmbedderUnavailableAfterServerCloses(t *testing.T) {
	srv := newEmbedServer(t, 4)
	e := NewHTTPEmbedder(HTTPConfig{Host: srv.URL, Dimensions: 4, Timeout: 500 * time.Millisecond, MaxRetries: 1})
	srv.Close()

	ctx := context.Background()
	assert.False(t, e.Available(ctx))
	_, err := e.Embed(ctx, "hello", KindDocument)
	assert.Error(t, err)
}

func TestHTTPEmbedderClosedRejectsCalls(t *testing.T) {
	e := NewHTTPEmbedder(HTTPConfig{Host: "http://127.0.0.1:0", Dimensions: 4})
	require.NoError(t, e.Close())
	_, err := e.Embed(context.Background(), "hello", KindDocument)
	assert.Error(t, err)
}
