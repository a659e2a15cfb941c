package ollama_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiliankoe/fabricdash/internal/ai"
	"github.com/kiliankoe/fabricdash/internal/ai/ollama"
)

func TestStream_NDJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3.2", req["model"])
		assert.Equal(t, true, req["stream"])
		opts := req["options"].(map[string]any)
		assert.InDelta(t, 0.2, opts["temperature"], 1e-9)

		_, _ = io.WriteString(w, `{"message":{"role":"assistant","content":"Hel"},"done":false}`+"\n")
		_, _ = io.WriteString(w, `{"message":{"role":"assistant","content":"lo"},"done":false}`+"\n")
		_, _ = io.WriteString(w, `{"message":{"role":"assistant","content":""},"done":true}`+"\n")
	}))
	t.Cleanup(srv.Close)

	var got []string
	err := ollama.New(srv.URL, 0).Stream(context.Background(), ai.Request{Model: "llama3.2", UserInput: "hi", Temperature: ai.Float(0.2)}, func(c string) error {
		got = append(got, c)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"Hel", "lo"}, got)
}

func TestStream_ErrorLine(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"error":"model 'nope' not found"}`+"\n")
	}))
	t.Cleanup(srv.Close)

	err := ollama.New(srv.URL, 0).Stream(context.Background(), ai.Request{Model: "nope"}, func(string) error { return nil })

	require.Error(t, err)
	assert.Equal(t, "model 'nope' not found", err.Error())
}

func TestStream_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := ollama.New(url, 0).Stream(context.Background(), ai.Request{Model: "m"}, func(string) error { return nil })

	require.Error(t, err)
	assert.Contains(t, err.Error(), "Network error")
}
