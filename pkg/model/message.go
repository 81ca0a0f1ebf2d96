package model

// PromptMessageRole identifies the variant of a PromptMessage.
type PromptMessageRole string

const (
	RoleSystem    PromptMessageRole = "system"
	RoleUser      PromptMessageRole = "user"
	RoleAssistant PromptMessageRole = "assistant"
	RoleTool      PromptMessageRole = "tool"
)

// AllRoles returns the role of every PromptMessage variant. Conversion sites
// are tested against this list so that a new variant cannot be ignored.
func AllRoles() []PromptMessageRole {
	return []PromptMessageRole{RoleSystem, RoleUser, RoleAssistant, RoleTool}
}

// PromptMessage is one role-tagged message of a prompt. The set of
// implementations is closed: *SystemPromptMessage, *UserPromptMessage,
// *AssistantPromptMessage and *ToolPromptMessage.
type PromptMessage interface {
	Role() PromptMessageRole
	promptMessage()
}

// SystemPromptMessage carries system instructions.
type SystemPromptMessage struct {
	Content string `json:"content"`
}

// ContentPartType classifies a part of multimodal user content.
type ContentPartType string

const (
	ContentPartText  ContentPartType = "text"
	ContentPartImage ContentPartType = "image"
)

// ContentPart is one typed element of multimodal user content. For image
// parts Data holds a URL or a base64 data URI.
type ContentPart struct {
	Type ContentPartType `json:"type"`
	Data string          `json:"data"`
}

// UserPromptMessage carries user input. When Parts is non-nil the message is
// multimodal and Content is ignored.
type UserPromptMessage struct {
	Content string        `json:"content,omitempty"`
	Parts   []ContentPart `json:"parts,omitempty"`
}

// IsMultimodal reports whether the message uses typed content parts.
func (m *UserPromptMessage) IsMultimodal() bool {
	return m.Parts != nil
}

// ToolCallFunction holds the function name and its JSON-encoded arguments.
type ToolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolCall is a function invocation requested by the assistant.
type ToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function ToolCallFunction `json:"function"`
}

// AssistantPromptMessage carries model output, optionally with tool calls.
type AssistantPromptMessage struct {
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// ToolPromptMessage carries the result of a tool call back to the model.
type ToolPromptMessage struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
}

func (*SystemPromptMessage) Role() PromptMessageRole    { return RoleSystem }
func (*UserPromptMessage) Role() PromptMessageRole      { return RoleUser }
func (*AssistantPromptMessage) Role() PromptMessageRole { return RoleAssistant }
func (*ToolPromptMessage) Role() PromptMessageRole      { return RoleTool }

func (*SystemPromptMessage) promptMessage()    {}
func (*UserPromptMessage) promptMessage()      {}
func (*AssistantPromptMessage) promptMessage() {}
func (*ToolPromptMessage) promptMessage()      {}

// PromptTool describes a function the model may call. Parameters is a JSON
// Schema object.
type PromptTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}
