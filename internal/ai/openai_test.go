package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req chatCompletionRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "json_object", req.ResponseFormat.Type)
		assert.Equal(t, "test-model", req.Model)
		assert.Len(t, req.Messages, 2)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"ok\":true}"}}]}`))
	}))
	defer srv.Close()

	c, err := NewOpenAI(OpenAIConfig{APIKey: "secret", Model: "test-model", BaseURL: srv.URL + "/v1/"})
	require.NoError(t, err)

	content, err := c.Complete(context.Background(), BuildPrompt(sampleReport(), "a1"))
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, content)
}

func TestOpenAIStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"overloaded"}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, err := NewOpenAI(OpenAIConfig{APIKey: "secret", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), nil)
	var status *StatusError
	require.ErrorAs(t, err, &status)
	assert.Equal(t, http.StatusServiceUnavailable, status.Code)
	assert.True(t, status.Transient())
	assert.True(t, transient(err))
}

func TestNewOpenAIWithoutKey(t *testing.T) {
	_, err := NewOpenAI(OpenAIConfig{Model: "x"})
	assert.ErrorIs(t, err, ErrDisabled)
}
