package scrape

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestText_ReaderService(t *testing.T) {
	var gotPath, gotAccept, gotFormat string

	reader := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.String()
		gotAccept = r.Header.Get("Accept")
		gotFormat = r.Header.Get("X-Return-Format")
		w.Write([]byte("# Report\n\nplain text content"))
	}))
	defer reader.Close()

	client := New(Config{ReaderBaseURL: reader.URL}, zap.NewNop())

	text, err := client.Text(context.Background(), "https://example.com/report.pdf", 0)
	require.NoError(t, err)

	assert.Equal(t, "# Report\n\nplain text content", text)
	assert.Equal(t, "/https://example.com/report.pdf", gotPath)
	assert.Equal(t, "text/plain", gotAccept)
	assert.Equal(t, "markdown", gotFormat)
}

func TestText_ReaderFailure(t *testing.T) {
	reader := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer reader.Close()

	client := New(Config{ReaderBaseURL: reader.URL}, zap.NewNop())

	_, err := client.Text(context.Background(), "https://example.com/doc", 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFetchFailed)
}

func TestText_LocalReadability(t *testing.T) {
	page := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><head><title>Market Report</title></head><body>
			<article>
			<h1>Market Report</h1>
			<p>Bitcoin spot volumes rose sharply this quarter as institutional
			desks rotated into exchange traded products.</p>
			<p>Derivatives open interest followed with a lag of roughly two
			weeks across major venues.</p>
			</article></body></html>`))
	}))
	defer page.Close()

	client := New(Config{}, zap.NewNop())

	text, err := client.Text(context.Background(), page.URL, 0)
	require.NoError(t, err)
	assert.Contains(t, text, "Bitcoin spot volumes")
}

func TestText_Truncation(t *testing.T) {
	long := strings.Repeat("x", 500)
	reader := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(long))
	}))
	defer reader.Close()

	client := New(Config{ReaderBaseURL: reader.URL}, zap.NewNop())

	text, err := client.Text(context.Background(), "https://example.com/doc", 100)
	require.NoError(t, err)
	assert.Len(t, text, 100)
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		maxChars int
		want     string
	}{
		{"zero disables", "abc", 0, "abc"},
		{"under budget", "abc", 10, "abc"},
		{"exact budget", "abc", 3, "abc"},
		{"ascii cut", "abcdef", 4, "abcd"},
		{"multibyte at boundary", "ab€cd", 4, "ab"},
		{"multibyte inside boundary", "ab€cd", 5, "ab€"},
		{"emoji at boundary", "a📄b", 3, "a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Truncate(tt.text, tt.maxChars)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}
