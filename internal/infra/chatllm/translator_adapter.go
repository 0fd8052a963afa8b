package chatllm

import (
	"context"
	"fmt"
	"strings"

	"github.com/yanqian/ai-helloworld/internal/domain/retrieval"
)

// TranslatorAdapter implements retrieval.Translator by reusing the
// chat completion endpoint with a one-shot translation prompt, since
// no dedicated translation SDK is wired into this module.
type TranslatorAdapter struct {
	client *Client
	model  string
}

// NewTranslatorAdapter wraps client as a retrieval.Translator.
func NewTranslatorAdapter(client *Client, model string) *TranslatorAdapter {
	return &TranslatorAdapter{client: client, model: model}
}

func (a *TranslatorAdapter) Detect(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "en", nil
	}
	resp, err := a.client.CreateChatCompletion(ctx, ChatCompletionRequest{
		Model: a.model,
		Messages: []Message{
			{Role: "system", Content: "Identify the ISO 639-1 language code of the user's text. Reply with only the two-letter code."},
			{Role: "user", Content: text},
		},
		Temperature: 0,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chatllm: empty detection response")
	}
	code := strings.ToLower(strings.TrimSpace(resp.Choices[0].Message.Content))
	if len(code) != 2 {
		return "en", nil
	}
	return code, nil
}

func (a *TranslatorAdapter) Translate(ctx context.Context, text, from, to string) (string, error) {
	if from == to || strings.TrimSpace(text) == "" {
		return text, nil
	}
	resp, err := a.client.CreateChatCompletion(ctx, ChatCompletionRequest{
		Model: a.model,
		Messages: []Message{
			{Role: "system", Content: fmt.Sprintf("Translate the user's text from %s to %s. Reply with only the translation, no commentary.", from, to)},
			{Role: "user", Content: text},
		},
		Temperature: 0,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chatllm: empty translation response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

var _ retrieval.Translator = (*TranslatorAdapter)(nil)
