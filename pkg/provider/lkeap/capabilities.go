package lkeap

import "strings"

// Capabilities describes which optional request fields a model accepts.
type Capabilities struct {
	// ToolCalling is true for V3 models; earlier variants silently drop tools.
	ToolCalling bool

	// Penalties is true for V3.1-Terminus models, which accept
	// presence_penalty and frequency_penalty.
	Penalties bool
}

// CapabilitiesFor derives the capabilities of a model from its name.
func CapabilitiesFor(modelName string) Capabilities {
	name := strings.ToLower(modelName)
	return Capabilities{
		ToolCalling: strings.Contains(name, "v3"),
		Penalties:   strings.Contains(name, "terminus"),
	}
}
