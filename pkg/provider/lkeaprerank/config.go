package lkeaprerank

import "time"

// ProviderName labels metrics and logs emitted by this adapter.
const ProviderName = "lkeap-rerank"

// SupportedModel is the only model name accepted by Invoke.
const SupportedModel = "lke-reranker-base"

// Vendor API defaults.
const (
	DefaultEndpoint = "lkeap.intl.tencentcloudapi.com"
	DefaultRegion   = "ap-jakarta"
	DefaultScheme   = "HTTPS"
	DefaultTimeout  = 60 * time.Second
)

// Credential field names.
const (
	CredentialSecretID  = "secret_id"
	CredentialSecretKey = "secret_key"
)

// Config holds configuration for the rerank adapter.
type Config struct {
	// Endpoint is the API host. Defaults to DefaultEndpoint.
	Endpoint string

	// Region scopes the signed request. Defaults to DefaultRegion.
	Region string

	// Scheme is HTTPS or HTTP. Defaults to DefaultScheme.
	Scheme string

	// Timeout bounds each request. Defaults to DefaultTimeout.
	Timeout time.Duration

	// NewClient overrides how vendor clients are built. Optional.
	NewClient ClientFactory
}
