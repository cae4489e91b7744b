// Package answer generates grounded answers about a specific report.
package answer

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/reportd/internal/llm"
	"github.com/fyrsmithlabs/reportd/internal/retrieval"
	"github.com/fyrsmithlabs/reportd/internal/scrape"
)

// answerMaxTokens bounds one reply.
const answerMaxTokens = 1000

// Completer is the chat-completion dependency.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (string, error)
}

// ContextResolver supplies grounding text for a document.
type ContextResolver interface {
	Context(ctx context.Context, docURL, query string, maxChars int) (string, retrieval.Source)
}

// Turn is one prior exchange in the conversation.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is one question about one report.
type Request struct {
	DocumentURL string `json:"url"`
	Title       string `json:"title"`
	Question    string `json:"question"`
	History     []Turn `json:"history"`
}

// Response carries the answer and how it was grounded.
type Response struct {
	Answer        string `json:"answer"`
	ContextSource string `json:"contextSource"`
}

// Service answers questions grounded in retrieved report context.
type Service struct {
	completer Completer
	resolver  ContextResolver
	logger    *zap.Logger
}

// New creates the answering service.
func New(completer Completer, resolver ContextResolver, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{completer: completer, resolver: resolver, logger: logger}
}

// Answer resolves context for the report and asks the model. The call
// is interactive, so upstream failures surface immediately instead of
// being retried; a context-extraction failure still produces an
// answer, explicitly flagged as ungrounded by the resolver sentinel.
func (s *Service) Answer(ctx context.Context, req Request) (Response, error) {
	if req.Question == "" {
		return Response{}, fmt.Errorf("question is required")
	}
	if req.DocumentURL == "" {
		return Response{}, fmt.Errorf("report url is required")
	}

	contextText, source := s.resolver.Context(ctx, req.DocumentURL, req.Question, scrape.DeepContextChars)

	messages := []llm.Message{
		{Role: "system", Content: buildSystemPrompt(req.Title, contextText)},
	}
	for _, t := range req.History {
		role := t.Role
		if role != "assistant" {
			role = "user"
		}
		messages = append(messages, llm.Message{Role: role, Content: t.Content})
	}
	messages = append(messages, llm.Message{Role: "user", Content: req.Question})

	content, err := s.completer.Complete(ctx, llm.Request{
		Messages:    messages,
		MaxTokens:   answerMaxTokens,
		Temperature: 0.7,
	})
	if err != nil {
		return Response{}, fmt.Errorf("generate answer: %w", err)
	}

	s.logger.Debug("answered report question",
		zap.String("url", req.DocumentURL),
		zap.String("context_source", string(source)),
		zap.Int("history_turns", len(req.History)),
	)

	return Response{Answer: content, ContextSource: string(source)}, nil
}

func buildSystemPrompt(title, contextText string) string {
	var b strings.Builder
	b.WriteString("You are a research analyst answering questions about the report ")
	if title != "" {
		fmt.Fprintf(&b, "%q. ", title)
	} else {
		b.WriteString("provided below. ")
	}
	b.WriteString("Ground every answer in the report content below. When asked about ")
	b.WriteString("specifics the content does not cover, say explicitly that the provided ")
	b.WriteString("report does not contain that information instead of speculating. You may ")
	b.WriteString("add general background, but label it clearly as outside the report.\n\n")
	b.WriteString("Report content:\n")
	b.WriteString(contextText)
	return b.String()
}
