package lkeap

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/lkeap-plugin/lkeap/pkg/debug"
	"github.com/lkeap-plugin/lkeap/pkg/model"
	"github.com/lkeap-plugin/lkeap/pkg/observability"
	"github.com/lkeap-plugin/lkeap/pkg/provider"
)

// Markers wrapped around the reasoning sub-stream in the accumulated content.
const (
	thinkOpen  = "<think>\n"
	thinkClose = "\n</think>"
)

// maxLineSize bounds a single SSE line. Tool-call argument chunks can be
// larger than bufio's 64KB default.
const maxLineSize = 1024 * 1024

// streamState accumulates one streaming invocation. It is a reducer over the
// decoded vendor chunks: apply consumes one chunk and returns the fragments
// to emit for it.
type streamState struct {
	modelName string

	content   strings.Builder
	reasoning bool
	toolCalls []model.ToolCall

	// usage converts raw token counts into a Usage. Nil leaves usage unset.
	usage func(promptTokens, completionTokens int) model.Usage
}

// apply folds a vendor chunk into the state. Incremental fragments carry only
// their own delta text; the terminal fragment carries the full accumulated
// message. index is the ordinal of the chunk in the vendor stream.
func (s *streamState) apply(index int, chunk *chatCompletionChunk) []model.LLMResultChunkDelta {
	if len(chunk.Choices) == 0 {
		return nil
	}

	choice := chunk.Choices[0]
	delta := choice.Delta
	var out []model.LLMResultChunkDelta

	if delta.ReasoningContent != nil && *delta.ReasoningContent != "" {
		if !s.reasoning {
			s.content.WriteString(thinkOpen)
			s.reasoning = true
		}
		s.content.WriteString(*delta.ReasoningContent)
		out = append(out, model.LLMResultChunkDelta{
			Index:   index,
			Message: model.AssistantPromptMessage{Content: *delta.ReasoningContent},
		})
		s.observe("reasoning")
	}

	if delta.Content != nil && *delta.Content != "" {
		if s.reasoning {
			s.content.WriteString(thinkClose)
			s.reasoning = false
		}
		s.content.WriteString(*delta.Content)
		out = append(out, model.LLMResultChunkDelta{
			Index:   index,
			Message: model.AssistantPromptMessage{Content: *delta.Content},
		})
		s.observe("content")
	}

	for _, tc := range delta.ToolCalls {
		s.bufferToolCall(tc)
	}

	if choice.FinishReason != nil && *choice.FinishReason != "" {
		final := model.LLMResultChunkDelta{
			Index:        index,
			Message:      model.AssistantPromptMessage{Content: s.content.String()},
			FinishReason: *choice.FinishReason,
		}
		if len(s.toolCalls) > 0 {
			final.Message.ToolCalls = append([]model.ToolCall(nil), s.toolCalls...)
		}
		if chunk.Usage != nil && s.usage != nil {
			u := s.usage(chunk.Usage.PromptTokens, chunk.Usage.CompletionTokens)
			final.Usage = &u
		}
		out = append(out, final)
		s.observe("terminal")
	}

	return out
}

// bufferToolCall addresses the buffer by the declared index, growing it as
// needed. Name and argument fragments are concatenated in arrival order.
func (s *streamState) bufferToolCall(tc chatChunkToolCall) {
	if tc.Index < 0 {
		slog.Warn("skipping tool call delta with negative index", "index", tc.Index)
		return
	}
	for len(s.toolCalls) <= tc.Index {
		s.toolCalls = append(s.toolCalls, model.ToolCall{Type: "function"})
	}

	buf := &s.toolCalls[tc.Index]
	if tc.ID != "" {
		buf.ID = tc.ID
	}
	buf.Function.Name += tc.Function.Name
	buf.Function.Arguments += tc.Function.Arguments
}

func (s *streamState) observe(kind string) {
	observability.StreamFragmentsTotal.WithLabelValues(s.modelName, kind).Inc()
}

// chunkStream is a pull-driven provider.ChunkStream over an SSE body. Each
// call to Next reads only as many lines as needed to produce one fragment.
type chunkStream struct {
	ctx     context.Context
	body    io.ReadCloser
	scanner *bufio.Scanner
	state   *streamState

	modelName      string
	promptMessages []model.PromptMessage
	invocationID   string
	started        time.Time

	ordinal int
	pending []model.LLMResultChunkDelta
	current model.LLMResultChunk
	done    bool
	closed  bool
	err     error

	closeOnce sync.Once
	closeErr  error
}

var _ provider.ChunkStream = (*chunkStream)(nil)

func newChunkStream(ctx context.Context, body io.ReadCloser, state *streamState, req *model.LLMRequest, invocationID string, started time.Time) *chunkStream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	return &chunkStream{
		ctx:            ctx,
		body:           body,
		scanner:        scanner,
		state:          state,
		modelName:      req.Model,
		promptMessages: req.PromptMessages,
		invocationID:   invocationID,
		started:        started,
	}
}

// Next advances to the next fragment. It returns false when the stream has
// ended, either after the terminal fragment or on error.
func (s *chunkStream) Next() bool {
	for {
		if len(s.pending) > 0 {
			s.current = model.LLMResultChunk{
				Model:          s.modelName,
				PromptMessages: s.promptMessages,
				Delta:          s.pending[0],
			}
			s.pending = s.pending[1:]
			if s.current.IsTerminal() {
				s.finish(nil)
			}
			return true
		}

		if s.done || s.closed {
			return false
		}

		if !s.scanner.Scan() {
			s.finishScan()
			return false
		}

		payload, ok := ssePayload(s.scanner.Text())
		if !ok {
			continue
		}

		// [DONE] without a finish_reason ends the stream without a
		// terminal fragment.
		if payload == "[DONE]" {
			slog.Warn("stream ended without finish_reason",
				"model", s.modelName,
				"invocation_id", s.invocationID,
			)
			s.finish(nil)
			continue
		}

		if err := inBandError(payload); err != nil {
			s.finish(mapVendorError(err))
			continue
		}

		var chunk chatCompletionChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			slog.Warn("skipping malformed SSE chunk",
				"error", err.Error(),
				"data", debug.Truncate(payload, 200),
				"invocation_id", s.invocationID,
			)
			continue
		}

		debug.Trace("streaming", "chunk", "index", s.ordinal, "data", payload)

		s.pending = s.state.apply(s.ordinal, &chunk)
		s.ordinal++
	}
}

// Chunk returns the fragment produced by the last successful Next.
func (s *chunkStream) Chunk() model.LLMResultChunk {
	return s.current
}

// Err returns the error that ended the stream, if any.
func (s *chunkStream) Err() error {
	return s.err
}

// Close releases the response body. It may be called at any time and more
// than once; abandoning the remainder of the vendor stream is not an error.
func (s *chunkStream) Close() error {
	s.closeOnce.Do(func() {
		if !s.done {
			s.done = true
			observability.ObserveRequest(ProviderName, s.modelName, s.started, nil)
			debug.Log("streaming", "stream closed early",
				"model", s.modelName,
				"invocation_id", s.invocationID,
				"chunks", s.ordinal,
			)
		}
		s.closed = true
		s.pending = nil
		s.closeErr = s.body.Close()
	})
	return s.closeErr
}

func (s *chunkStream) finishScan() {
	err := s.scanner.Err()
	switch {
	case s.ctx.Err() != nil:
		err = s.ctx.Err()
	case err == nil:
		slog.Warn("stream ended without finish_reason",
			"model", s.modelName,
			"invocation_id", s.invocationID,
		)
	}
	if err != nil {
		s.finish(mapVendorError(networkError(err)))
		return
	}
	s.finish(nil)
}

// finish marks the stream ended, records the outcome and releases the body.
func (s *chunkStream) finish(err error) {
	if s.done {
		return
	}
	s.done = true
	s.err = err

	observability.ObserveRequest(ProviderName, s.modelName, s.started, err)
	if u := s.current.Delta.Usage; err == nil && u != nil {
		observability.ObserveTokens(ProviderName, s.modelName, u.PromptTokens, u.CompletionTokens)
	}

	if err != nil {
		slog.Error("stream failed",
			"model", s.modelName,
			"invocation_id", s.invocationID,
			"error", err.Error(),
		)
	} else {
		debug.Log("streaming", "stream complete",
			"model", s.modelName,
			"invocation_id", s.invocationID,
			"chunks", s.ordinal,
		)
	}

	s.Close()
}

// ssePayload extracts the data of an SSE "data:" line. Comments, event names
// and blank lines are ignored.
func ssePayload(line string) (string, bool) {
	if !strings.HasPrefix(line, "data:") {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(line, "data:")), true
}
