package openai_tools

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
	"github.com/sashabaranov/go-openai"
)

const (
	tokensPerMessage = 3
	tokensPerName    = 1
	// every reply is primed with <|start|>assistant<|message|>
	tokensPerReply = 3
)

func init() {
	// encodings are embedded, nothing is fetched at runtime
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
}

// TokenCounter estimates prompt sizes with one resolved encoding.
type TokenCounter struct {
	tkm *tiktoken.Tiktoken
}

func NewTokenCounter(model string) (*TokenCounter, error) {
	tkm, err := encodingFor(model)
	if err != nil {
		return nil, err
	}
	return &TokenCounter{tkm: tkm}, nil
}

// Count returns the prompt size of messages including the reply priming.
func (c *TokenCounter) Count(messages []openai.ChatCompletionMessage) int {
	numTokens := 0
	for _, message := range messages {
		numTokens += tokensPerMessage
		numTokens += len(c.tkm.Encode(message.Content, nil, nil))
		numTokens += len(c.tkm.Encode(message.Role, nil, nil))
		if message.Name != "" {
			numTokens += len(c.tkm.Encode(message.Name, nil, nil))
			numTokens += tokensPerName
		}
	}
	return numTokens + tokensPerReply
}

// CountToken estimates the prompt size of messages for the given model.
func CountToken(messages []openai.ChatCompletionMessage, model string) (int, error) {
	counter, err := NewTokenCounter(model)
	if err != nil {
		return 0, err
	}
	return counter.Count(messages), nil
}

func encodingFor(model string) (*tiktoken.Tiktoken, error) {
	tkm, err := tiktoken.EncodingForModel(model)
	if err == nil {
		return tkm, nil
	}
	if strings.HasPrefix(model, "gpt-") {
		if tkm, err = tiktoken.GetEncoding(tiktoken.MODEL_CL100K_BASE); err == nil {
			return tkm, nil
		}
	}
	return nil, fmt.Errorf("failed to get encoding for model %s: %w", model, err)
}
