package model

// LLMRequest is a single chat invocation.
type LLMRequest struct {
	Model          string
	Credentials    Credentials
	PromptMessages []PromptMessage

	// Parameters holds model parameters such as temperature, top_p,
	// max_tokens, presence_penalty and frequency_penalty.
	Parameters map[string]any

	Tools  []PromptTool
	Stop   []string
	Stream bool
	User   string
}

// LLMResult is the terminal result of a non-streaming chat invocation.
type LLMResult struct {
	Model          string                 `json:"model"`
	PromptMessages []PromptMessage        `json:"-"`
	Message        AssistantPromptMessage `json:"message"`
	Usage          Usage                  `json:"usage"`
}

// LLMResultChunkDelta is the payload of one streamed fragment. Incremental
// fragments carry only their own text; the terminal fragment carries the
// full message together with FinishReason and optional Usage.
type LLMResultChunkDelta struct {
	Index        int                    `json:"index"`
	Message      AssistantPromptMessage `json:"message"`
	FinishReason string                 `json:"finish_reason,omitempty"`
	Usage        *Usage                 `json:"usage,omitempty"`
}

// LLMResultChunk is one fragment of a streaming chat invocation.
type LLMResultChunk struct {
	Model          string              `json:"model"`
	PromptMessages []PromptMessage     `json:"-"`
	Delta          LLMResultChunkDelta `json:"delta"`
}

// IsTerminal reports whether the chunk ends the stream.
func (c *LLMResultChunk) IsTerminal() bool {
	return c.Delta.FinishReason != ""
}

// RerankRequest is a single rerank invocation.
type RerankRequest struct {
	Model       string
	Credentials Credentials
	Query       string
	Docs        []string

	// ScoreThreshold, when set, drops documents scoring below it.
	ScoreThreshold *float64

	// TopN is accepted for interface compatibility and is not enforced.
	TopN *int

	User string
}

// RerankDocument is one retained document. Index is its position in the
// filtered output, not in the input list.
type RerankDocument struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
	Text  string  `json:"text"`
}

// RerankResult is the result of a rerank invocation.
type RerankResult struct {
	Model string           `json:"model"`
	Docs  []RerankDocument `json:"docs"`
}
