// Package model defines the host-facing schema shared by the LKEAP adapters:
// prompt messages, tool definitions, invocation results and streamed chunks,
// rerank documents, credentials, usage accounting, and the unified error kinds.
//
// The package performs no I/O. Adapters translate between these types and
// their vendor wire formats.
//
// Core types:
//   - [PromptMessage]: closed sum type over system, user, assistant and tool messages
//   - [LLMRequest], [LLMResult], [LLMResultChunk]: chat invocation input and output
//   - [RerankRequest], [RerankResult]: rerank invocation input and output
//   - [Usage], [PriceTable]: token counts and derived prices
//   - [Error]: credentials, invoke and validation failures
package model
