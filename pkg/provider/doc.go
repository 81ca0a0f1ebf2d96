// Package provider defines the uniform model interface the host invokes.
// Each adapter (lkeap for chat, lkeaprerank for reranking) translates the
// host's types from package model into its vendor's wire format internally,
// keeping vendor protocol details invisible to the caller.
package provider
