// Package mockbackend serves deterministic stand-ins for both LKEAP vendor
// endpoints so the adapters can be exercised without network access.
//
// Routes:
//
//	POST /v1/chat/completions - OpenAI-compatible chat (streaming and not)
//	POST /                    - Tencent Cloud API 3.0, action RunRerank
//	GET  /healthz             - liveness
//
// Chat responses depend on the request: models containing "r1" stream a
// reasoning sub-stream before the answer, requests carrying tools get a
// get_weather tool call, everything else gets plain text. Rerank scores are
// the fraction of query words found in each document.
package mockbackend

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// Canned output of the chat endpoint.
const (
	Reasoning = "The user asked a simple question. I should answer briefly."
	Answer    = "Hello from the LKEAP mock backend!"
	ToolArgs  = `{"location":"Jakarta","unit":"celsius"}`
)

// RerankModel is the only model accepted by the RunRerank action.
const RerankModel = "lke-reranker-base"

// NewHandler returns the mux serving every mock route.
func NewHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat/completions", handleChatCompletions)
	mux.HandleFunc("POST /{$}", handleCloudAPI)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	return mux
}

// --- Chat request types ---

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	Tools     []any         `json:"tools,omitempty"`
	Stream    bool          `json:"stream"`
	MaxTokens int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// --- Chat response types ---

type chatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

type chatChoice struct {
	Index        int     `json:"index"`
	Message      chatMsg `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

type chatMsg struct {
	Role             string     `json:"role"`
	Content          *string    `json:"content"`
	ReasoningContent *string    `json:"reasoning_content,omitempty"`
	ToolCalls        []toolCall `json:"tool_calls,omitempty"`
}

type toolCall struct {
	ID       string   `json:"id"`
	Type     string   `json:"type"`
	Function funcCall `json:"function"`
}

type funcCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// --- Chat handler ---

func handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
		writeChatError(w, http.StatusUnauthorized, "missing bearer token", "authentication_error")
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeChatError(w, http.StatusBadRequest, "invalid request", "invalid_request_error")
		return
	}
	if req.Model == "" {
		req.Model = "deepseek-v3"
	}

	if req.Stream {
		handleStreaming(w, &req)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(respond(&req))
}

func respond(req *chatRequest) chatResponse {
	resp := chatResponse{
		ID:     "chatcmpl-mock-" + uuid.NewString(),
		Object: "chat.completion",
		Model:  req.Model,
		Usage:  chatUsage{PromptTokens: 10, CompletionTokens: 8, TotalTokens: 18},
	}

	msg := chatMsg{Role: "assistant"}
	finish := "stop"
	switch {
	case len(req.Tools) > 0:
		msg.ToolCalls = []toolCall{{
			ID:       "call_mock_1",
			Type:     "function",
			Function: funcCall{Name: "get_weather", Arguments: ToolArgs},
		}}
		finish = "tool_calls"
	case isReasoningModel(req.Model):
		reasoning, answer := Reasoning, Answer
		msg.ReasoningContent = &reasoning
		msg.Content = &answer
	default:
		answer := Answer
		msg.Content = &answer
	}

	resp.Choices = []chatChoice{{Index: 0, Message: msg, FinishReason: finish}}
	return resp
}

// --- Streaming ---

func handleStreaming(w http.ResponseWriter, req *chatRequest) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	id := "chatcmpl-mock-" + uuid.NewString()
	send := func(delta map[string]any, finish any, usage *chatUsage) {
		chunk := map[string]any{
			"id":     id,
			"object": "chat.completion.chunk",
			"model":  req.Model,
			"choices": []any{map[string]any{
				"index":         0,
				"delta":         delta,
				"finish_reason": finish,
			}},
		}
		if usage != nil {
			chunk["usage"] = usage
		}
		data, _ := json.Marshal(chunk)
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}

	send(map[string]any{"role": "assistant"}, nil, nil)

	finish := "stop"
	completion := 0
	switch {
	case len(req.Tools) > 0:
		// Split the call across deltas the way the vendor does.
		send(map[string]any{"tool_calls": []any{map[string]any{
			"index": 0, "id": "call_mock_1", "type": "function",
			"function": map[string]any{"name": "get_"},
		}}}, nil, nil)
		send(map[string]any{"tool_calls": []any{map[string]any{
			"index": 0, "function": map[string]any{"name": "weather", "arguments": ToolArgs[:12]},
		}}}, nil, nil)
		send(map[string]any{"tool_calls": []any{map[string]any{
			"index": 0, "function": map[string]any{"arguments": ToolArgs[12:]},
		}}}, nil, nil)
		finish = "tool_calls"
		completion = 3
	default:
		if isReasoningModel(req.Model) {
			for _, tok := range splitTokens(Reasoning) {
				send(map[string]any{"reasoning_content": tok}, nil, nil)
				completion++
			}
		}
		for _, tok := range splitTokens(Answer) {
			send(map[string]any{"content": tok}, nil, nil)
			completion++
		}
	}

	send(map[string]any{}, finish, &chatUsage{
		PromptTokens:     10,
		CompletionTokens: completion,
		TotalTokens:      10 + completion,
	})

	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

// --- Tencent Cloud API ---

type rerankRequest struct {
	Query string   `json:"Query"`
	Docs  []string `json:"Docs"`
	Model string   `json:"Model"`
}

func handleCloudAPI(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()

	if !strings.HasPrefix(r.Header.Get("Authorization"), "TC3-HMAC-SHA256") {
		writeCloudError(w, requestID, "AuthFailure.SignatureFailure", "The request is not signed.")
		return
	}

	action := r.Header.Get("X-TC-Action")
	if action != "RunRerank" {
		writeCloudError(w, requestID, "InvalidAction", fmt.Sprintf("The action %q is not supported.", action))
		return
	}

	var req rerankRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeCloudError(w, requestID, "InvalidParameter", "The request body is not valid JSON.")
		return
	}
	if req.Model != RerankModel {
		writeCloudError(w, requestID, "InvalidParameterValue.Model", fmt.Sprintf("The model %q does not exist.", req.Model))
		return
	}

	scores := make([]float64, len(req.Docs))
	for i, doc := range req.Docs {
		scores[i] = OverlapScore(req.Query, doc)
	}

	writeCloudResponse(w, map[string]any{
		"ScoreList": scores,
		"RequestId": requestID,
	})
}

// OverlapScore is the fraction of distinct query words present in doc.
func OverlapScore(query, doc string) float64 {
	words := strings.Fields(strings.ToLower(query))
	if len(words) == 0 {
		return 0
	}
	docWords := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(doc)) {
		docWords[w] = true
	}

	seen := make(map[string]bool)
	hits := 0
	for _, w := range words {
		if seen[w] {
			continue
		}
		seen[w] = true
		if docWords[w] {
			hits++
		}
	}
	return float64(hits) / float64(len(seen))
}

// --- Helpers ---

func isReasoningModel(model string) bool {
	return strings.Contains(strings.ToLower(model), "r1")
}

// splitTokens breaks text into word-sized pieces, keeping separators.
func splitTokens(text string) []string {
	words := strings.SplitAfter(text, " ")
	out := words[:0]
	for _, w := range words {
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}

func writeChatError(w http.ResponseWriter, status int, message, errType string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"message": message, "type": errType},
	})
}

func writeCloudResponse(w http.ResponseWriter, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"Response": body})
}

func writeCloudError(w http.ResponseWriter, requestID, code, message string) {
	writeCloudResponse(w, map[string]any{
		"Error":     map[string]any{"Code": code, "Message": message},
		"RequestId": requestID,
	})
}
