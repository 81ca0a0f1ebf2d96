package lkeap

import (
	"net/http"
	"time"

	"github.com/lkeap-plugin/lkeap/pkg/model"
)

// ProviderName labels metrics and logs emitted by this adapter.
const ProviderName = "lkeap"

// DefaultBaseURL is the vendor's OpenAI-compatible endpoint.
const DefaultBaseURL = "https://api.lkeap.tencentcloud.com/v1"

// DefaultTimeout bounds non-streaming requests.
const DefaultTimeout = 120 * time.Second

// Config holds configuration for the chat adapter.
type Config struct {
	// BaseURL is the chat API base URL. Defaults to DefaultBaseURL.
	BaseURL string

	// Timeout is the HTTP request timeout for non-streaming requests.
	// Defaults to DefaultTimeout. Streams are bounded by the context only.
	Timeout time.Duration

	// Pricing supplies per-model prices for usage cost fields. Optional.
	Pricing model.PriceTable

	// HTTPClient overrides the client used for requests. Optional.
	HTTPClient *http.Client
}
