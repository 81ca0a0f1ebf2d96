// Package lkeaprerank implements the rerank adapter for the Tencent Cloud
// LKEAP RunRerank API. Requests are signed and sent through the Tencent
// Cloud Go SDK.
package lkeaprerank
