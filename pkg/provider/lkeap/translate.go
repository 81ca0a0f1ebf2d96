package lkeap

import (
	"encoding/json"
	"fmt"

	"github.com/lkeap-plugin/lkeap/pkg/model"
)

// Parameter defaults applied when the host does not supply a value.
const (
	DefaultTemperature = 0.6
	DefaultTopP        = 0.6
	DefaultMaxTokens   = 4096
)

// buildRequest translates a host request into the vendor request body.
// Tools and penalties are only forwarded when the model supports them.
func buildRequest(req *model.LLMRequest, stream bool) (*chatCompletionRequest, error) {
	messages, err := convertMessages(req.PromptMessages)
	if err != nil {
		return nil, err
	}

	temperature, err := floatParam(req.Parameters, "temperature", DefaultTemperature)
	if err != nil {
		return nil, err
	}
	topP, err := floatParam(req.Parameters, "top_p", DefaultTopP)
	if err != nil {
		return nil, err
	}
	maxTokens, err := floatParam(req.Parameters, "max_tokens", DefaultMaxTokens)
	if err != nil {
		return nil, err
	}

	chatReq := &chatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: temperature,
		TopP:        topP,
		MaxTokens:   int(maxTokens),
		Stream:      stream,
	}

	if len(req.Stop) > 0 {
		chatReq.Stop = req.Stop
	}
	if req.User != "" {
		chatReq.User = req.User
	}

	caps := CapabilitiesFor(req.Model)
	if caps.ToolCalling && len(req.Tools) > 0 {
		chatReq.Tools = convertTools(req.Tools)
	}
	if caps.Penalties {
		if chatReq.PresencePenalty, err = passthroughNumberParam(req.Parameters, "presence_penalty"); err != nil {
			return nil, err
		}
		if chatReq.FrequencyPenalty, err = passthroughNumberParam(req.Parameters, "frequency_penalty"); err != nil {
			return nil, err
		}
	}

	return chatReq, nil
}

// convertMessages maps every prompt message to exactly one vendor message.
func convertMessages(msgs []model.PromptMessage) ([]chatMessage, error) {
	out := make([]chatMessage, 0, len(msgs))
	for i, m := range msgs {
		cm, err := convertMessage(m)
		if err != nil {
			return nil, model.NewValidationError(fmt.Sprintf("prompt_messages[%d]", i), err.Error())
		}
		out = append(out, cm)
	}
	return out, nil
}

func convertMessage(m model.PromptMessage) (chatMessage, error) {
	switch msg := m.(type) {
	case *model.SystemPromptMessage:
		return chatMessage{Role: string(model.RoleSystem), Content: msg.Content}, nil

	case *model.UserPromptMessage:
		if !msg.IsMultimodal() {
			return chatMessage{Role: string(model.RoleUser), Content: msg.Content}, nil
		}
		parts := make([]chatContentPart, 0, len(msg.Parts))
		for _, p := range msg.Parts {
			switch p.Type {
			case model.ContentPartText:
				parts = append(parts, chatContentPart{Type: "text", Text: p.Data})
			case model.ContentPartImage:
				parts = append(parts, chatContentPart{Type: "image_url", ImageURL: &chatImageURL{URL: p.Data}})
			default:
				return chatMessage{}, fmt.Errorf("unsupported content part type %q", p.Type)
			}
		}
		return chatMessage{Role: string(model.RoleUser), Content: parts}, nil

	case *model.AssistantPromptMessage:
		cm := chatMessage{Role: string(model.RoleAssistant), Content: msg.Content}
		for _, tc := range msg.ToolCalls {
			cm.ToolCalls = append(cm.ToolCalls, chatToolCall{
				ID:   tc.ID,
				Type: "function",
				Function: chatFunctionCall{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			})
		}
		return cm, nil

	case *model.ToolPromptMessage:
		return chatMessage{
			Role:       string(model.RoleTool),
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
		}, nil

	default:
		return chatMessage{}, fmt.Errorf("unsupported prompt message type %T", m)
	}
}

func convertTools(tools []model.PromptTool) []chatTool {
	out := make([]chatTool, 0, len(tools))
	for _, t := range tools {
		out = append(out, chatTool{
			Type: "function",
			Function: chatFunctionDef{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return out
}

// translateResponse builds the terminal result from the first choice of a
// non-streaming response.
func translateResponse(req *model.LLMRequest, resp *chatCompletionResponse, usage model.Usage) (*model.LLMResult, error) {
	if len(resp.Choices) == 0 {
		return nil, mapVendorError(fmt.Errorf("response contains no choices"))
	}
	msg := resp.Choices[0].Message

	assistant := model.AssistantPromptMessage{}
	if msg.Content != nil {
		assistant.Content = *msg.Content
	}
	for _, tc := range msg.ToolCalls {
		assistant.ToolCalls = append(assistant.ToolCalls, model.ToolCall{
			ID:   tc.ID,
			Type: tc.Type,
			Function: model.ToolCallFunction{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		})
	}

	return &model.LLMResult{
		Model:          req.Model,
		PromptMessages: req.PromptMessages,
		Message:        assistant,
		Usage:          usage,
	}, nil
}

// floatParam returns params[key] as a float64, or def when absent or nil.
func floatParam(params map[string]any, key string, def float64) (float64, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return def, nil
	}
	f, ok := toFloat(v)
	if !ok {
		return 0, model.NewValidationError(key, fmt.Sprintf("expected a number, got %T", v))
	}
	return f, nil
}

// jsonNull is sent for a parameter the host supplied without a value.
var jsonNull = json.RawMessage("null")

// passthroughNumberParam encodes params[key] for the wire. An absent key
// yields nil so the field is omitted; a present nil value is sent as null.
func passthroughNumberParam(params map[string]any, key string) (json.RawMessage, error) {
	v, ok := params[key]
	if !ok {
		return nil, nil
	}
	if v == nil {
		return jsonNull, nil
	}
	f, ok := toFloat(v)
	if !ok {
		return nil, model.NewValidationError(key, fmt.Sprintf("expected a number, got %T", v))
	}
	data, err := json.Marshal(f)
	if err != nil {
		return nil, model.NewValidationError(key, err.Error())
	}
	return data, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
