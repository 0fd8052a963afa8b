package chatllm

import (
	"context"
	"fmt"

	"github.com/yanqian/ai-helloworld/internal/domain/retrieval"
)

// ChatAdapter implements retrieval.Chat against an OpenAI-compatible
// chat completions endpoint.
type ChatAdapter struct {
	client *Client
}

// NewChatAdapter wraps a Client as a retrieval.Chat.
func NewChatAdapter(client *Client) *ChatAdapter {
	return &ChatAdapter{client: client}
}

func (a *ChatAdapter) Generate(ctx context.Context, req retrieval.GenerationRequest) (retrieval.GenerationResult, error) {
	messages := make([]Message, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = Message{Role: m.Role, Content: m.Content}
	}
	resp, err := a.client.CreateChatCompletion(ctx, ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: req.Temperature,
	})
	if err != nil {
		return retrieval.GenerationResult{}, err
	}
	if len(resp.Choices) == 0 {
		return retrieval.GenerationResult{}, fmt.Errorf("chatllm: empty completion response")
	}
	return retrieval.GenerationResult{
		Text:             resp.Choices[0].Message.Content,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

var _ retrieval.Chat = (*ChatAdapter)(nil)
