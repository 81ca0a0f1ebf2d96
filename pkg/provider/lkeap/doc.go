// Package lkeap implements the chat adapter for the Tencent Cloud LKEAP
// OpenAI-compatible chat completions endpoint. It translates host prompt
// messages into the vendor wire format and reassembles single results or
// lazily pulled streams, including the DeepSeek-style reasoning sub-stream.
package lkeap
