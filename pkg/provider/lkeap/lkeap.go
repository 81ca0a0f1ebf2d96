package lkeap

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lkeap-plugin/lkeap/pkg/debug"
	"github.com/lkeap-plugin/lkeap/pkg/model"
	"github.com/lkeap-plugin/lkeap/pkg/observability"
	"github.com/lkeap-plugin/lkeap/pkg/provider"
)

// CredentialSecretKey is the credential field holding the API secret key.
const CredentialSecretKey = "secret_key"

// LargeLanguageModel is the chat adapter. It holds no per-invocation state
// and is safe for concurrent use.
type LargeLanguageModel struct {
	baseURL    string
	httpClient *http.Client
	pricing    model.PriceTable

	// tokenize counts tokens in flattened prompt text.
	tokenize func(text string) int
}

// Compile-time interface check.
var _ provider.LargeLanguageModel = (*LargeLanguageModel)(nil)

// New creates a chat adapter with the given configuration.
func New(cfg Config) (*LargeLanguageModel, error) {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("lkeap: invalid base URL %q", cfg.BaseURL)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &LargeLanguageModel{
		baseURL:    baseURL,
		httpClient: httpClient,
		pricing:    cfg.Pricing,
		tokenize:   countBPETokens,
	}, nil
}

// Invoke performs a non-streaming chat completion.
func (l *LargeLanguageModel) Invoke(ctx context.Context, req *model.LLMRequest) (*model.LLMResult, error) {
	key, err := secretKey(req.Credentials)
	if err != nil {
		return nil, err
	}
	chatReq, err := buildRequest(req, false)
	if err != nil {
		return nil, err
	}

	invocationID := uuid.NewString()
	started := time.Now()

	httpResp, err := l.send(ctx, l.httpClient, key, chatReq, invocationID)
	if err != nil {
		observability.ObserveRequest(ProviderName, req.Model, started, err)
		return nil, err
	}
	defer httpResp.Body.Close()

	var chatResp chatCompletionResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&chatResp); err != nil {
		merr := mapVendorError(fmt.Errorf("failed to parse backend response: %w", err))
		observability.ObserveRequest(ProviderName, req.Model, started, merr)
		return nil, merr
	}

	var promptTokens, completionTokens int
	if chatResp.Usage != nil {
		promptTokens = chatResp.Usage.PromptTokens
		completionTokens = chatResp.Usage.CompletionTokens
	}
	usage := l.pricing.CalcUsage(req.Model, promptTokens, completionTokens, started)

	res, err := translateResponse(req, &chatResp, usage)
	observability.ObserveRequest(ProviderName, req.Model, started, err)
	if err != nil {
		return nil, err
	}
	observability.ObserveTokens(ProviderName, req.Model, promptTokens, completionTokens)

	debug.Log("providers", "chat response",
		"invocation_id", invocationID,
		"model", req.Model,
		"tool_calls", len(res.Message.ToolCalls),
		"prompt_tokens", promptTokens,
		"completion_tokens", completionTokens,
	)
	return res, nil
}

// InvokeStream performs a streaming chat completion. The returned stream
// reads the vendor response lazily; the caller must Close it.
//
// The HTTP client timeout is not applied to streams because a stream can
// legitimately outlast any fixed timeout. The context bounds its lifetime.
func (l *LargeLanguageModel) InvokeStream(ctx context.Context, req *model.LLMRequest) (provider.ChunkStream, error) {
	key, err := secretKey(req.Credentials)
	if err != nil {
		return nil, err
	}
	chatReq, err := buildRequest(req, true)
	if err != nil {
		return nil, err
	}

	invocationID := uuid.NewString()
	started := time.Now()

	streamClient := &http.Client{
		Transport: l.httpClient.Transport,
	}
	httpResp, err := l.send(ctx, streamClient, key, chatReq, invocationID)
	if err != nil {
		observability.ObserveRequest(ProviderName, req.Model, started, err)
		return nil, err
	}

	state := &streamState{
		modelName: req.Model,
		usage: func(promptTokens, completionTokens int) model.Usage {
			return l.pricing.CalcUsage(req.Model, promptTokens, completionTokens, started)
		},
	}
	return newChunkStream(ctx, httpResp.Body, state, req, invocationID, started), nil
}

// ValidateCredentials sends a short "Hello" prompt capped at 10 output
// tokens. Any failure is reported as a credentials error.
func (l *LargeLanguageModel) ValidateCredentials(ctx context.Context, modelName string, creds model.Credentials) error {
	req := &model.LLMRequest{
		Model:       modelName,
		Credentials: creds,
		PromptMessages: []model.PromptMessage{
			&model.UserPromptMessage{Content: "Hello"},
		},
		Parameters: map[string]any{"max_tokens": 10},
	}

	if _, err := l.Invoke(ctx, req); err != nil {
		if model.IsCredentialsError(err) {
			return err
		}
		msg := err.Error()
		var me *model.Error
		if errors.As(err, &me) {
			msg = me.Message
		}
		return model.NewCredentialsError("Credentials validation failed: " + msg)
	}
	return nil
}

// CountTokens estimates the number of prompt tokens. The count uses the
// GPT-2 vocabulary, not the vendor's tokenizer, and is an approximation.
// Tools are not counted.
func (l *LargeLanguageModel) CountTokens(_ context.Context, modelName string, _ model.Credentials, msgs []model.PromptMessage, _ []model.PromptTool) (int, error) {
	if len(msgs) == 0 {
		return 0, nil
	}
	n := l.tokenize(flattenMessages(msgs))
	debug.Log("providers", "token count", "model", modelName, "tokens", n)
	return n, nil
}

// send posts a chat completion request and returns the response when the
// vendor answered with a 2xx status. All failures are invocation errors.
func (l *LargeLanguageModel) send(ctx context.Context, client *http.Client, key string, chatReq *chatCompletionRequest, invocationID string) (*http.Response, error) {
	body, err := json.Marshal(chatReq)
	if err != nil {
		return nil, mapVendorError(fmt.Errorf("failed to marshal request: %w", err))
	}

	endpoint := l.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, mapVendorError(fmt.Errorf("failed to create HTTP request: %w", err))
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+key)
	if chatReq.Stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}

	debug.Log("providers", "chat request",
		"invocation_id", invocationID,
		"model", chatReq.Model,
		"url", endpoint,
		"stream", chatReq.Stream,
		"messages", len(chatReq.Messages),
		"tools", len(chatReq.Tools),
	)
	debug.Trace("providers", "chat request body", "invocation_id", invocationID, "body", string(body))

	httpResp, err := client.Do(httpReq)
	if err != nil {
		return nil, mapVendorError(networkError(err))
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		defer httpResp.Body.Close()
		return nil, mapVendorError(newStatusError(httpResp))
	}

	return httpResp, nil
}

func secretKey(creds model.Credentials) (string, error) {
	key := creds.Get(CredentialSecretKey)
	if key == "" {
		return "", model.NewCredentialsError("Secret Key is required")
	}
	return key, nil
}
