package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/iamvkosarev/telegpt/config"
	"github.com/iamvkosarev/telegpt/internal/model"
	openai_tools "github.com/iamvkosarev/telegpt/pkg/openai-tools"
	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
)

var (
	ErrEmptyCompletion = errors.New("completion has no choices")
	ErrNoAPIKey        = errors.New("openai api key is not set")
)

type OpenAIUsecase struct {
	cfg    config.OpenAI
	client *openai.Client
	logger *logrus.Logger
}

func NewOpenAIUsecase(cfg config.OpenAI, logger *logrus.Logger) *OpenAIUsecase {
	clientConfig := openai.DefaultConfig(cfg.OpenAIAPIKey)
	if cfg.OpenAIBaseURL != "" {
		clientConfig.BaseURL = cfg.OpenAIBaseURL
	}
	if cfg.RequestTimeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: cfg.RequestTimeout}
	}
	return &OpenAIUsecase{
		cfg:    cfg,
		client: openai.NewClientWithConfig(clientConfig),
		logger: logger,
	}
}

// Complete sends the transcript as a single non-streaming request and returns the
// trimmed text of the first choice.
func (o *OpenAIUsecase) Complete(ctx context.Context, messages []model.CompletionMessage) (string, error) {
	if o.cfg.OpenAIAPIKey == "" {
		return "", ErrNoAPIKey
	}

	messageHistory := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, message := range messages {
		messageHistory = append(
			messageHistory, openai.ChatCompletionMessage{
				Role:    string(message.Role),
				Content: message.Content,
			},
		)
	}
	messageHistory = o.fitContext(messageHistory)

	req := openai.ChatCompletionRequest{
		Model:       o.cfg.OpenAIModel,
		Messages:    messageHistory,
		Temperature: o.cfg.Temperature,
		MaxTokens:   o.cfg.MaxTokens,
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// fitContext drops the oldest non-system messages until the prompt fits
// MaxContextTokens. A leading system message and the newest message are always kept.
func (o *OpenAIUsecase) fitContext(messages []openai.ChatCompletionMessage) []openai.ChatCompletionMessage {
	if o.cfg.MaxContextTokens <= 0 {
		return messages
	}
	counter, err := openai_tools.NewTokenCounter(o.cfg.OpenAIModel)
	if err != nil {
		o.logger.WithError(err).Warn("count token error, sending full history")
		return messages
	}
	first := 0
	if len(messages) > 0 && messages[0].Role == openai.ChatMessageRoleSystem {
		first = 1
	}
	for {
		tokenCount := counter.Count(messages)
		if tokenCount <= o.cfg.MaxContextTokens || len(messages)-first <= 1 {
			return messages
		}
		messages = append(messages[:first:first], messages[first+1:]...)
		o.logger.WithField("tokens", tokenCount).Debug("history trimmed due to token limit")
	}
}
