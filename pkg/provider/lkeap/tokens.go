package lkeap

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"

	"github.com/lkeap-plugin/lkeap/pkg/model"
)

// tokenEncoding is the GPT-2 vocabulary. Counts are an approximation of the
// vendor's tokenizer and must not be used for billing.
const tokenEncoding = "r50k_base"

// tokensPerWord scales word counts when the BPE encoding is unavailable.
const tokensPerWord = 1.3

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
	encodingErr  error
)

func loadEncoding() (*tiktoken.Tiktoken, error) {
	encodingOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
		encoding, encodingErr = tiktoken.GetEncoding(tokenEncoding)
		if encodingErr != nil {
			slog.Warn("token encoding unavailable, falling back to word estimate",
				"encoding", tokenEncoding,
				"error", encodingErr.Error(),
			)
		}
	})
	return encoding, encodingErr
}

// countBPETokens counts tokens in text with the GPT-2 encoding.
func countBPETokens(text string) int {
	enc, err := loadEncoding()
	if err != nil {
		return estimateTokens(text)
	}
	return len(enc.Encode(text, nil, nil))
}

// estimateTokens approximates a token count as words x 1.3, with at least
// one token for non-empty text.
func estimateTokens(text string) int {
	words := 0
	inWord := false
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			if !inWord {
				words++
				inWord = true
			}
		} else {
			inWord = false
		}
	}

	tokens := int(float64(words) * tokensPerWord)
	if tokens == 0 && words > 0 {
		tokens = 1
	}
	return tokens
}

// flattenMessages renders messages as one role-prefixed text block. Only the
// text parts of multimodal user content are included.
func flattenMessages(msgs []model.PromptMessage) string {
	var b strings.Builder
	for _, m := range msgs {
		switch msg := m.(type) {
		case *model.SystemPromptMessage:
			b.WriteString("System: " + msg.Content + "\n")
		case *model.UserPromptMessage:
			if !msg.IsMultimodal() {
				b.WriteString("User: " + msg.Content + "\n")
				continue
			}
			for _, p := range msg.Parts {
				if p.Type == model.ContentPartText {
					b.WriteString("User: " + p.Data + "\n")
				}
			}
		case *model.AssistantPromptMessage:
			b.WriteString("Assistant: " + msg.Content + "\n")
		case *model.ToolPromptMessage:
			b.WriteString("Tool: " + msg.Content + "\n")
		default:
			slog.Warn("unsupported prompt message in token count", "type", fmt.Sprintf("%T", m))
		}
	}
	return strings.TrimRightFunc(b.String(), unicode.IsSpace)
}
