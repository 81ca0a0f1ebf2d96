package integration

import (
	"context"
	"strings"
	"testing"

	"github.com/lkeap-plugin/lkeap/pkg/mockbackend"
	"github.com/lkeap-plugin/lkeap/pkg/model"
	"github.com/lkeap-plugin/lkeap/pkg/provider"
)

func streamRequest(modelName string, tools ...model.PromptTool) *model.LLMRequest {
	return &model.LLMRequest{
		Model:          modelName,
		Credentials:    chatCredentials(),
		PromptMessages: userPrompt("Hello"),
		Tools:          tools,
		Stream:         true,
	}
}

func TestStreamingText(t *testing.T) {
	_, s, err := provider.Invoke(context.Background(), testEnv.Chat, streamRequest("deepseek-v3"))
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}

	var deltas strings.Builder
	res, err := provider.Collect(s, func(c model.LLMResultChunk) {
		deltas.WriteString(c.Delta.Message.Content)
	})
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}

	if deltas.String() != mockbackend.Answer {
		t.Errorf("deltas = %q, want %q", deltas.String(), mockbackend.Answer)
	}
	if res.Message.Content != mockbackend.Answer {
		t.Errorf("final content = %q, want %q", res.Message.Content, mockbackend.Answer)
	}
	if res.Usage.CompletionTokens == 0 {
		t.Error("expected completion tokens on the terminal fragment")
	}
}

func TestStreamingReasoning(t *testing.T) {
	s, err := testEnv.Chat.InvokeStream(context.Background(), streamRequest("deepseek-r1"))
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
	if len(chunks) == 0 {
		t.Fatal("no chunks received")
	}

	last := chunks[len(chunks)-1]
	if !last.IsTerminal() {
		t.Fatalf("last chunk is not terminal: %+v", last.Delta)
	}
	want := "<think>\n" + mockbackend.Reasoning + "\n</think>" + mockbackend.Answer
	if last.Delta.Message.Content != want {
		t.Errorf("final content = %q, want %q", last.Delta.Message.Content, want)
	}

	for i, c := range chunks[:len(chunks)-1] {
		if c.IsTerminal() {
			t.Errorf("chunk %d is terminal before the end", i)
		}
		if c.Model != "deepseek-r1" {
			t.Errorf("chunk %d model = %q", i, c.Model)
		}
	}
}

func TestStreamingToolCallReassembly(t *testing.T) {
	_, s, err := provider.Invoke(context.Background(), testEnv.Chat, streamRequest("deepseek-v3", weatherTool()))
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}

	res, err := provider.Collect(s, nil)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}

	if len(res.Message.ToolCalls) != 1 {
		t.Fatalf("tool calls = %d, want 1", len(res.Message.ToolCalls))
	}
	tc := res.Message.ToolCalls[0]
	if tc.ID != "call_mock_1" {
		t.Errorf("id = %q, want call_mock_1", tc.ID)
	}
	if tc.Function.Name != "get_weather" {
		t.Errorf("name = %q, want get_weather", tc.Function.Name)
	}
	if tc.Function.Arguments != mockbackend.ToolArgs {
		t.Errorf("arguments = %q, want %q", tc.Function.Arguments, mockbackend.ToolArgs)
	}
}

func TestStreamingEarlyClose(t *testing.T) {
	s, err := testEnv.Chat.InvokeStream(context.Background(), streamRequest("deepseek-r1"))
	if err != nil {
		t.Fatalf("InvokeStream: %v", err)
	}

	if !s.Next() {
		t.Fatalf("expected a first chunk, err = %v", s.Err())
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if s.Next() {
		t.Error("Next returned true after Close")
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
