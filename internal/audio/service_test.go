package audio

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/reportd/internal/blobcache"
	"github.com/fyrsmithlabs/reportd/internal/llm"
	"github.com/fyrsmithlabs/reportd/internal/retrieval"
)

// fakeCompleter records prompts and returns a canned script.
type fakeCompleter struct {
	script string
	err    error
	calls  int
	gotReq llm.Request
}

func (f *fakeCompleter) Complete(ctx context.Context, req llm.Request) (string, error) {
	f.calls++
	f.gotReq = req
	return f.script, f.err
}

// fakeSynthesizer returns canned audio bytes.
type fakeSynthesizer struct {
	audio []byte
	err   error
	calls int
}

func (f *fakeSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	f.calls++
	return f.audio, f.err
}

// fakeResolver returns a fixed context.
type fakeResolver struct {
	text   string
	source retrieval.Source
}

func (f *fakeResolver) Context(ctx context.Context, docURL, query string, maxChars int) (string, retrieval.Source) {
	return f.text, f.source
}

func newTestCache(t *testing.T) *blobcache.Cache {
	t.Helper()

	store, err := blobcache.NewFSStore(t.TempDir(), "http://localhost/blobs", zap.NewNop())
	require.NoError(t, err)
	return blobcache.NewCache(store)
}

func longContext() string {
	return strings.Repeat("detailed report analysis sentence. ", 30)
}

func TestSummarize_GenerateThenCacheHit(t *testing.T) {
	completer := &fakeCompleter{script: "Today we examine the quarterly report."}
	synthesizer := &fakeSynthesizer{audio: []byte("mp3-bytes")}
	resolver := &fakeResolver{text: longContext(), source: retrieval.SourceSemantic}
	svc := New(completer, synthesizer, resolver, newTestCache(t), zap.NewNop())
	ctx := context.Background()

	first, err := svc.Summarize(ctx, "https://example.com/report", "Quarterly Report", "")
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Equal(t, "Today we examine the quarterly report.", first.Script)
	assert.Contains(t, first.AudioURL, "audio/"+blobcache.Key("https://example.com/report")+".mp3")

	second, err := svc.Summarize(ctx, "https://example.com/report", "Quarterly Report", "")
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, "Audio loaded from cache.", second.Script)
	assert.Equal(t, first.AudioURL, second.AudioURL)

	// The second request touches neither the model nor the synthesizer.
	assert.Equal(t, 1, completer.calls)
	assert.Equal(t, 1, synthesizer.calls)
}

func TestSummarize_LongFormPrompt(t *testing.T) {
	completer := &fakeCompleter{script: "script"}
	resolver := &fakeResolver{text: longContext(), source: retrieval.SourceScraped}
	svc := New(completer, &fakeSynthesizer{audio: []byte("a")}, resolver, newTestCache(t), zap.NewNop())

	_, err := svc.Summarize(context.Background(), "https://example.com/r1", "Deep Dive", "")
	require.NoError(t, err)

	prompt := completer.gotReq.Messages[1].Content
	assert.Contains(t, prompt, "key findings")
	assert.Contains(t, prompt, "Deep Dive")
	assert.NotContains(t, prompt, "Do not invent specific findings")
	assert.Equal(t, 250, completer.gotReq.MaxTokens)
	assert.InDelta(t, 0.3, completer.gotReq.Temperature, 0.001)
}

func TestSummarize_ShortFormPrompt(t *testing.T) {
	tests := []struct {
		name     string
		resolver *fakeResolver
		hint     string
		wantText string
	}{
		{
			name:     "thin context switches to short form",
			resolver: &fakeResolver{text: "tiny", source: retrieval.SourceScraped},
			hint:     "a short stored summary",
			wantText: "a short stored summary",
		},
		{
			name:     "unavailable context uses hint",
			resolver: &fakeResolver{text: retrieval.FailedContext, source: retrieval.SourceUnavailable},
			hint:     "fallback summary hint",
			wantText: "fallback summary hint",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			completer := &fakeCompleter{script: "short script"}
			svc := New(completer, &fakeSynthesizer{audio: []byte("a")}, tt.resolver, newTestCache(t), zap.NewNop())

			_, err := svc.Summarize(context.Background(), "https://example.com/r2", "Thin Report", tt.hint)
			require.NoError(t, err)

			prompt := completer.gotReq.Messages[1].Content
			assert.Contains(t, prompt, "Do not invent specific findings")
			assert.Contains(t, prompt, tt.wantText)
		})
	}
}

func TestSummarize_SynthesisFailureCachesNothing(t *testing.T) {
	cache := newTestCache(t)
	completer := &fakeCompleter{script: "script"}
	synthesizer := &fakeSynthesizer{err: fmt.Errorf("tts quota exceeded")}
	resolver := &fakeResolver{text: longContext(), source: retrieval.SourceScraped}
	svc := New(completer, synthesizer, resolver, cache, zap.NewNop())
	ctx := context.Background()

	_, err := svc.Summarize(ctx, "https://example.com/r3", "Report", "")
	require.Error(t, err)

	// No partial artifacts: the next request regenerates.
	_, ok, err := cache.Lookup(ctx, "audio", "https://example.com/r3", ".mp3")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSummarize_ScriptFailure(t *testing.T) {
	completer := &fakeCompleter{err: fmt.Errorf("model down")}
	resolver := &fakeResolver{text: longContext(), source: retrieval.SourceScraped}
	synthesizer := &fakeSynthesizer{audio: []byte("a")}
	svc := New(completer, synthesizer, resolver, newTestCache(t), zap.NewNop())

	_, err := svc.Summarize(context.Background(), "https://example.com/r4", "Report", "")
	require.Error(t, err)
	assert.Equal(t, 0, synthesizer.calls)
}

func TestSummarize_RequiresURL(t *testing.T) {
	svc := New(&fakeCompleter{}, &fakeSynthesizer{}, &fakeResolver{}, newTestCache(t), zap.NewNop())

	_, err := svc.Summarize(context.Background(), "", "Title", "")
	require.Error(t, err)
}
