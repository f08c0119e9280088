package faceclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerify(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/compare":
			_ = json.NewDecoder(r.Body).Decode(&got)
			_ = json.NewEncoder(w).Encode(CompareResult{Similarity: 0.3, Match: got["image_url_1"] == got["image_url_2"], Threshold: 0.5})
		case "/health":
			w.WriteHeader(http.StatusOK)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := New(srv.URL+"/", false)
	ctx := context.Background()

	ok, err := c.Verify(ctx, "tpl", "tpl")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tpl", got["image_url_1"])

	ok, err = c.Verify(ctx, "tpl", "other")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = c.Verify(ctx, "tpl", " ")
	require.NoError(t, err)
	assert.False(t, ok, "blank capture never reaches the service")

	assert.NoError(t, c.Health(ctx))
}

func TestServiceErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(srv.URL, false)
	_, err := c.Verify(context.Background(), "tpl", "capture")
	assert.ErrorContains(t, err, "model not loaded")
	assert.Error(t, c.Health(context.Background()))
}

func TestSkip(t *testing.T) {
	c := New("http://127.0.0.1:1", true)
	ok, err := c.Verify(context.Background(), "tpl", "capture")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, c.Health(context.Background()))
}
