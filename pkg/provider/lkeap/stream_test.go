package lkeap

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/lkeap-plugin/lkeap/pkg/model"
	"github.com/lkeap-plugin/lkeap/pkg/observability"
	"github.com/lkeap-plugin/lkeap/pkg/provider"
)

func mustChunk(t *testing.T, raw string) *chatCompletionChunk {
	t.Helper()
	var c chatCompletionChunk
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		t.Fatalf("invalid chunk %s: %v", raw, err)
	}
	return &c
}

func applyAll(t *testing.T, s *streamState, raws ...string) []model.LLMResultChunkDelta {
	t.Helper()
	var out []model.LLMResultChunkDelta
	for i, raw := range raws {
		out = append(out, s.apply(i, mustChunk(t, raw))...)
	}
	return out
}

func TestStreamState_ReasoningThenContent(t *testing.T) {
	s := &streamState{modelName: "deepseek-r1"}
	deltas := applyAll(t, s,
		`{"choices":[{"delta":{"reasoning_content":"Let me think"}}]}`,
		`{"choices":[{"delta":{"content":"The answer is 4"}}]}`,
		`{"choices":[{"delta":{},"finish_reason":"stop"}]}`,
	)

	if len(deltas) != 3 {
		t.Fatalf("expected 3 fragments, got %d", len(deltas))
	}

	// Incremental fragments carry only their own delta text.
	if deltas[0].Message.Content != "Let me think" {
		t.Errorf("fragment 0 = %q, want %q", deltas[0].Message.Content, "Let me think")
	}
	if deltas[1].Message.Content != "The answer is 4" {
		t.Errorf("fragment 1 = %q, want %q", deltas[1].Message.Content, "The answer is 4")
	}
	for i := 0; i < 2; i++ {
		if deltas[i].FinishReason != "" {
			t.Errorf("fragment %d should not be terminal, finish_reason=%q", i, deltas[i].FinishReason)
		}
	}

	final := deltas[2]
	want := "<think>\nLet me think\n</think>The answer is 4"
	if final.Message.Content != want {
		t.Errorf("terminal content = %q, want %q", final.Message.Content, want)
	}
	if final.FinishReason != "stop" {
		t.Errorf("finish_reason = %q, want %q", final.FinishReason, "stop")
	}
	if final.Index != 2 {
		t.Errorf("terminal index = %d, want 2", final.Index)
	}
	if final.Usage != nil {
		t.Errorf("expected no usage without vendor counts, got %+v", final.Usage)
	}
}

func TestStreamState_MultipleReasoningChunksOpenOnce(t *testing.T) {
	s := &streamState{}
	deltas := applyAll(t, s,
		`{"choices":[{"delta":{"reasoning_content":"a"}}]}`,
		`{"choices":[{"delta":{"reasoning_content":"b"}}]}`,
		`{"choices":[{"delta":{"content":"c"}}]}`,
		`{"choices":[{"delta":{"content":"d"}}]}`,
		`{"choices":[{"delta":{},"finish_reason":"stop"}]}`,
	)

	final := deltas[len(deltas)-1]
	if want := "<think>\nab\n</think>cd"; final.Message.Content != want {
		t.Errorf("terminal content = %q, want %q", final.Message.Content, want)
	}
}

func TestStreamState_MixedChunkYieldsReasoningFirst(t *testing.T) {
	s := &streamState{}
	deltas := applyAll(t, s,
		`{"choices":[{"delta":{"reasoning_content":"hmm","content":"ok"}}]}`,
	)

	if len(deltas) != 2 {
		t.Fatalf("expected 2 fragments, got %d", len(deltas))
	}
	if deltas[0].Message.Content != "hmm" || deltas[1].Message.Content != "ok" {
		t.Errorf("fragments = %q, %q; want reasoning then content", deltas[0].Message.Content, deltas[1].Message.Content)
	}
	if deltas[0].Index != 0 || deltas[1].Index != 0 {
		t.Errorf("both fragments should carry the chunk ordinal 0, got %d and %d", deltas[0].Index, deltas[1].Index)
	}
	if got := s.content.String(); got != "<think>\nhmm\n</think>ok" {
		t.Errorf("buffer = %q", got)
	}
}

func TestStreamState_UnclosedReasoning(t *testing.T) {
	s := &streamState{}
	deltas := applyAll(t, s,
		`{"choices":[{"delta":{"reasoning_content":"only thinking"}}]}`,
		`{"choices":[{"delta":{},"finish_reason":"length"}]}`,
	)

	final := deltas[len(deltas)-1]
	if want := "<think>\nonly thinking"; final.Message.Content != want {
		t.Errorf("terminal content = %q, want %q", final.Message.Content, want)
	}
}

func TestStreamState_ToolCallNameConcatenation(t *testing.T) {
	s := &streamState{}
	deltas := applyAll(t, s,
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_1","type":"function","function":{"name":"get_"}}]}}]}`,
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"name":"weather","arguments":"{\"city\":"}}]}}]}`,
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"\"Paris\"}"}}]}}]}`,
		`{"choices":[{"delta":{},"finish_reason":"tool_calls"}]}`,
	)

	// Tool-call deltas emit nothing; only the terminal fragment remains.
	if len(deltas) != 1 {
		t.Fatalf("expected 1 fragment, got %d", len(deltas))
	}
	calls := deltas[0].Message.ToolCalls
	if len(calls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(calls))
	}
	tc := calls[0]
	if tc.Function.Name != "get_weather" {
		t.Errorf("name = %q, want %q", tc.Function.Name, "get_weather")
	}
	if tc.Function.Arguments != `{"city":"Paris"}` {
		t.Errorf("arguments = %q", tc.Function.Arguments)
	}
	if tc.ID != "call_1" {
		t.Errorf("id = %q, want %q", tc.ID, "call_1")
	}
	if tc.Type != "function" {
		t.Errorf("type = %q, want function", tc.Type)
	}
}

func TestStreamState_ToolCallBufferGrowsToIndex(t *testing.T) {
	s := &streamState{}
	deltas := applyAll(t, s,
		`{"choices":[{"delta":{"tool_calls":[{"index":1,"id":"call_b","function":{"name":"second"}}]}}]}`,
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_a","function":{"name":"first"}}]}}]}`,
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_a2"}]}}]}`,
		`{"choices":[{"delta":{},"finish_reason":"tool_calls"}]}`,
	)

	calls := deltas[len(deltas)-1].Message.ToolCalls
	if len(calls) != 2 {
		t.Fatalf("expected 2 tool calls, got %d", len(calls))
	}
	if calls[0].Function.Name != "first" || calls[1].Function.Name != "second" {
		t.Errorf("names = %q, %q", calls[0].Function.Name, calls[1].Function.Name)
	}
	// A later non-empty id overwrites the earlier one.
	if calls[0].ID != "call_a2" {
		t.Errorf("id = %q, want call_a2", calls[0].ID)
	}
}

func TestStreamState_NoChoicesSkipped(t *testing.T) {
	s := &streamState{}
	deltas := s.apply(0, mustChunk(t, `{"choices":[],"usage":{"prompt_tokens":1,"completion_tokens":2}}`))
	if len(deltas) != 0 {
		t.Errorf("expected no fragments, got %d", len(deltas))
	}
	if s.content.Len() != 0 || s.reasoning {
		t.Error("state should be unchanged")
	}
}

func TestStreamState_TerminalUsage(t *testing.T) {
	s := &streamState{
		usage: func(p, c int) model.Usage {
			return model.PriceTable(nil).CalcUsage("m", p, c, time.Time{})
		},
	}
	deltas := applyAll(t, s,
		`{"choices":[{"delta":{"content":"hi"}}]}`,
		`{"choices":[{"delta":{},"finish_reason":"stop"}],"usage":{"prompt_tokens":5,"completion_tokens":7,"total_tokens":12}}`,
	)

	final := deltas[len(deltas)-1]
	if final.Usage == nil {
		t.Fatal("expected usage on terminal fragment")
	}
	if final.Usage.PromptTokens != 5 || final.Usage.CompletionTokens != 7 || final.Usage.TotalTokens != 12 {
		t.Errorf("usage = %+v", final.Usage)
	}
	if deltas[0].Usage != nil {
		t.Error("incremental fragment should not carry usage")
	}
}

func TestSSEPayload(t *testing.T) {
	tests := []struct {
		line string
		want string
		ok   bool
	}{
		{"data: {}", "{}", true},
		{"data:{}", "{}", true},
		{"data: [DONE]", "[DONE]", true},
		{": keep-alive", "", false},
		{"event: message", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ssePayload(tt.line)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ssePayload(%q) = %q, %v; want %q, %v", tt.line, got, ok, tt.want, tt.ok)
		}
	}
}

// sseServer streams the given data lines and then [DONE] if done is true.
func sseServer(t *testing.T, lines []string, done bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != "text/event-stream" {
			t.Errorf("expected Accept text/event-stream, got %q", r.Header.Get("Accept"))
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, l := range lines {
			fmt.Fprintf(w, "data: %s\n\n", l)
		}
		if done {
			fmt.Fprint(w, "data: [DONE]\n\n")
		}
	}))
}

func streamRequest(modelName string) *model.LLMRequest {
	return &model.LLMRequest{
		Model:       modelName,
		Credentials: model.Credentials{"secret_key": "sk-test"},
		PromptMessages: []model.PromptMessage{
			&model.UserPromptMessage{Content: "What is 2+2?"},
		},
		Stream: true,
	}
}

func TestInvokeStream_Reassembly(t *testing.T) {
	srv := sseServer(t, []string{
		`{"choices":[{"delta":{"role":"assistant"}}]}`,
		`{"choices":[{"delta":{"reasoning_content":"Let me think"}}]}`,
		`not json at all`,
		`{"choices":[{"delta":{"content":"The answer is 4"}}]}`,
		`{"choices":[{"delta":{},"finish_reason":"stop"}],"usage":{"prompt_tokens":9,"completion_tokens":6,"total_tokens":15}}`,
	}, true)
	defer srv.Close()

	l := newTestLLM(t, srv)
	s, err := l.InvokeStream(context.Background(), streamRequest("deepseek-r1"))
	if err != nil {
		t.Fatalf("InvokeStream: %v", err)
	}
	defer s.Close()

	var chunks []model.LLMResultChunk
	for s.Next() {
		chunks = append(chunks, s.Chunk())
	}
	if err := s.Err(); err != nil {
		t.Fatalf("stream error: %v", err)
	}

	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}

	// The malformed line is skipped and does not consume an ordinal.
	wantIndex := []int{1, 2, 3}
	for i, c := range chunks {
		if c.Delta.Index != wantIndex[i] {
			t.Errorf("chunk %d index = %d, want %d", i, c.Delta.Index, wantIndex[i])
		}
		if c.Model != "deepseek-r1" {
			t.Errorf("chunk %d model = %q", i, c.Model)
		}
	}

	final := chunks[2]
	if !final.IsTerminal() {
		t.Fatal("last chunk should be terminal")
	}
	if want := "<think>\nLet me think\n</think>The answer is 4"; final.Delta.Message.Content != want {
		t.Errorf("terminal content = %q, want %q", final.Delta.Message.Content, want)
	}
	if final.Delta.Usage == nil || final.Delta.Usage.TotalTokens != 15 {
		t.Errorf("usage = %+v", final.Delta.Usage)
	}
}

func TestInvokeStream_CollectViaProvider(t *testing.T) {
	srv := sseServer(t, []string{
		`{"choices":[{"delta":{"content":"Hel"}}]}`,
		`{"choices":[{"delta":{"content":"lo"}}]}`,
		`{"choices":[{"delta":{},"finish_reason":"stop"}]}`,
	}, true)
	defer srv.Close()

	l := newTestLLM(t, srv)
	res, s, err := provider.Invoke(context.Background(), l, streamRequest("deepseek-v3"))
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if res != nil {
		t.Fatal("streaming invoke should not return a result")
	}

	var deltas []string
	final, err := provider.Collect(s, func(c model.LLMResultChunk) {
		deltas = append(deltas, c.Delta.Message.Content)
	})
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if strings.Join(deltas, "|") != "Hel|lo" {
		t.Errorf("deltas = %v", deltas)
	}
	if final.Message.Content != "Hello" {
		t.Errorf("final content = %q", final.Message.Content)
	}
}

func TestInvokeStream_NoFinishReason(t *testing.T) {
	srv := sseServer(t, []string{
		`{"choices":[{"delta":{"content":"partial"}}]}`,
	}, false)
	defer srv.Close()

	l := newTestLLM(t, srv)
	s, err := l.InvokeStream(context.Background(), streamRequest("deepseek-v3"))
	if err != nil {
		t.Fatalf("InvokeStream: %v", err)
	}
	defer s.Close()

	var n int
	for s.Next() {
		chunk := s.Chunk()
		if chunk.IsTerminal() {
			t.Error("no terminal chunk should be synthesized")
		}
		n++
	}
	if n != 1 {
		t.Errorf("expected 1 chunk, got %d", n)
	}
	if err := s.Err(); err != nil {
		t.Errorf("expected clean end, got %v", err)
	}
}

func TestInvokeStream_InBandError(t *testing.T) {
	srv := sseServer(t, []string{
		`{"choices":[{"delta":{"content":"partial"}}]}`,
		`{"error":{"message":"upstream overloaded","type":"server_error"}}`,
		`{"choices":[{"delta":{"content":"never seen"}}]}`,
	}, true)
	defer srv.Close()

	l := newTestLLM(t, srv)
	s, err := l.InvokeStream(context.Background(), streamRequest("deepseek-v3"))
	if err != nil {
		t.Fatalf("InvokeStream: %v", err)
	}
	defer s.Close()

	var contents []string
	for s.Next() {
		contents = append(contents, s.Chunk().Delta.Message.Content)
	}
	if len(contents) != 1 || contents[0] != "partial" {
		t.Errorf("contents = %v", contents)
	}

	err = s.Err()
	if !model.IsInvokeError(err) {
		t.Fatalf("expected invoke error, got %v", err)
	}
	if !strings.Contains(err.Error(), "upstream overloaded") {
		t.Errorf("error should carry vendor message: %v", err)
	}
}

func TestInvokeStream_EarlyCloseLeaksNothing(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"first\"}}]}\n\n")
		w.(http.Flusher).Flush()
		// Hold the stream open until the client goes away.
		<-r.Context().Done()
	}))
	defer srv.Close()

	l := newTestLLM(t, srv)
	s, err := l.InvokeStream(context.Background(), streamRequest("deepseek-v3"))
	if err != nil {
		t.Fatalf("InvokeStream: %v", err)
	}

	if !s.Next() {
		t.Fatalf("expected a first chunk, err=%v", s.Err())
	}
	if got := s.Chunk().Delta.Message.Content; got != "first" {
		t.Errorf("content = %q", got)
	}

	if err := s.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if s.Next() {
		t.Error("Next after Close should return false")
	}
	if err := s.Err(); err != nil {
		t.Errorf("abandoning a stream is not an error, got %v", err)
	}
}

func TestInvokeStream_EarlyCloseRecordsRequest(t *testing.T) {
	srv := sseServer(t, []string{
		`{"choices":[{"delta":{"content":"one"}}]}`,
		`{"choices":[{"delta":{"content":"two"}}]}`,
		`{"choices":[{"delta":{},"finish_reason":"stop"}]}`,
	}, true)
	defer srv.Close()

	const modelName = "deepseek-v3-abandoned"
	okCounter := observability.ProviderRequestsTotal.WithLabelValues(ProviderName, modelName, observability.StatusOK)
	before := counterValue(t, okCounter)

	l := newTestLLM(t, srv)
	s, err := l.InvokeStream(context.Background(), streamRequest(modelName))
	if err != nil {
		t.Fatalf("InvokeStream: %v", err)
	}
	if !s.Next() {
		t.Fatalf("expected a first chunk, err=%v", s.Err())
	}

	s.Close()
	s.Close()

	if got := counterValue(t, okCounter) - before; got != 1 {
		t.Errorf("requests recorded = %v, want 1", got)
	}
}

func TestInvokeStream_CompletedStreamRecordsOnce(t *testing.T) {
	srv := sseServer(t, []string{
		`{"choices":[{"delta":{"content":"hi"},"finish_reason":"stop"}]}`,
	}, true)
	defer srv.Close()

	const modelName = "deepseek-v3-completed"
	okCounter := observability.ProviderRequestsTotal.WithLabelValues(ProviderName, modelName, observability.StatusOK)
	before := counterValue(t, okCounter)

	l := newTestLLM(t, srv)
	s, err := l.InvokeStream(context.Background(), streamRequest(modelName))
	if err != nil {
		t.Fatalf("InvokeStream: %v", err)
	}
	if _, err := provider.Collect(s, nil); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	s.Close()

	if got := counterValue(t, okCounter) - before; got != 1 {
		t.Errorf("requests recorded = %v, want 1", got)
	}
}

func TestInvokeStream_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	l := newTestLLM(t, srv)
	s, err := l.InvokeStream(context.Background(), streamRequest("deepseek-v3"))
	if s != nil {
		t.Error("expected nil stream on HTTP error")
	}
	if !model.IsInvokeError(err) {
		t.Errorf("expected invoke error, got %v", err)
	}
}
