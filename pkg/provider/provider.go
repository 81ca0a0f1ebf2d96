package provider

import (
	"context"
	"errors"

	"github.com/lkeap-plugin/lkeap/pkg/model"
)

// LargeLanguageModel abstracts a chat-completion backend.
//
// Implementations must be safe for concurrent use by multiple goroutines.
// No state is shared between invocations.
type LargeLanguageModel interface {
	// Invoke performs a non-streaming invocation and returns the terminal result.
	Invoke(ctx context.Context, req *model.LLMRequest) (*model.LLMResult, error)

	// InvokeStream performs a streaming invocation. Fragments are produced
	// lazily as the caller pulls them from the returned stream.
	InvokeStream(ctx context.Context, req *model.LLMRequest) (ChunkStream, error)

	// ValidateCredentials performs a minimal real invocation. Any failure is
	// reported as a credentials error.
	ValidateCredentials(ctx context.Context, modelName string, creds model.Credentials) error

	// CountTokens estimates the prompt size in tokens.
	CountTokens(ctx context.Context, modelName string, creds model.Credentials, msgs []model.PromptMessage, tools []model.PromptTool) (int, error)
}

// RerankModel abstracts a document-reranking backend.
type RerankModel interface {
	// Invoke scores docs against the query and returns the retained documents.
	Invoke(ctx context.Context, req *model.RerankRequest) (*model.RerankResult, error)

	// ValidateCredentials performs a minimal real rerank call. Any failure is
	// reported as a credentials error.
	ValidateCredentials(ctx context.Context, modelName string, creds model.Credentials) error
}

// ChunkStream is a pull-driven sequence of streamed chat fragments.
//
// Usage:
//
//	for s.Next() {
//		chunk := s.Chunk()
//		...
//	}
//	if err := s.Err(); err != nil { ... }
//
// A well-formed stream ends with exactly one terminal chunk (non-empty
// FinishReason). The consumer may stop early; Close releases the
// underlying connection and is safe to call more than once.
type ChunkStream interface {
	Next() bool
	Chunk() model.LLMResultChunk
	Err() error
	Close() error
}

// Invoke routes a request to the streaming or non-streaming path according
// to req.Stream. Exactly one of the returned result and stream is non-nil
// on success.
func Invoke(ctx context.Context, llm LargeLanguageModel, req *model.LLMRequest) (*model.LLMResult, ChunkStream, error) {
	if req.Stream {
		s, err := llm.InvokeStream(ctx, req)
		return nil, s, err
	}
	res, err := llm.Invoke(ctx, req)
	return res, nil, err
}

// ErrNoTerminalChunk is returned by Collect when a stream ends without a
// chunk carrying a finish reason.
var ErrNoTerminalChunk = errors.New("stream ended without a finish reason")

// Collect drains a stream, calling onDelta for every incremental fragment,
// and returns the terminal result. The stream is closed before returning.
func Collect(s ChunkStream, onDelta func(model.LLMResultChunk)) (*model.LLMResult, error) {
	defer s.Close()

	for s.Next() {
		chunk := s.Chunk()
		if !chunk.IsTerminal() {
			if onDelta != nil {
				onDelta(chunk)
			}
			continue
		}
		res := &model.LLMResult{
			Model:          chunk.Model,
			PromptMessages: chunk.PromptMessages,
			Message:        chunk.Delta.Message,
		}
		if chunk.Delta.Usage != nil {
			res.Usage = *chunk.Delta.Usage
		}
		return res, nil
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return nil, ErrNoTerminalChunk
}
