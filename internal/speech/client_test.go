package speech

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{BaseURL: "https://x"})
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = New(Config{APIKey: "k"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestSynthesize(t *testing.T) {
	var gotReq speechRequest
	var gotAuth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/audio/speech", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.Write([]byte("mp3-bytes"))
	}))
	defer srv.Close()

	client, err := New(Config{BaseURL: srv.URL, APIKey: "tts-key", Model: "tts-1", Voice: "alloy"})
	require.NoError(t, err)

	audio, err := client.Synthesize(context.Background(), "welcome to the briefing")
	require.NoError(t, err)

	assert.Equal(t, []byte("mp3-bytes"), audio)
	assert.Equal(t, "Bearer tts-key", gotAuth)
	assert.Equal(t, "tts-1", gotReq.Model)
	assert.Equal(t, "alloy", gotReq.Voice)
	assert.Equal(t, "welcome to the briefing", gotReq.Input)
}

func TestSynthesize_EmptyInput(t *testing.T) {
	client, err := New(Config{BaseURL: "https://x", APIKey: "k"})
	require.NoError(t, err)

	_, err = client.Synthesize(context.Background(), "")
	require.Error(t, err)
}

func TestSynthesize_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte("quota exceeded"))
	}))
	defer srv.Close()

	client, err := New(Config{BaseURL: srv.URL, APIKey: "k"})
	require.NoError(t, err)

	_, err = client.Synthesize(context.Background(), "script")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstream)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestSynthesize_EmptyAudio(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client, err := New(Config{BaseURL: srv.URL, APIKey: "k"})
	require.NoError(t, err)

	_, err = client.Synthesize(context.Background(), "script")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstream)
}
