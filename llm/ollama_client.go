package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/SaiNageswarS/agent-memory/schema"
	"github.com/ollama/ollama/api"
)

type OllamaClient struct {
	client *api.Client
	model  string
}

// NewOllamaClient connects to the server named by OLLAMA_HOST.
func NewOllamaClient(model string) (*OllamaClient, error) {
	client, err := api.ClientFromEnvironment()
	if err != nil {
		return nil, fmt.Errorf("create ollama client: %w", err)
	}
	return NewOllamaClientFromAPI(client, model), nil
}

func NewOllamaClientFromAPI(client *api.Client, model string) *OllamaClient {
	return &OllamaClient{client: client, model: model}
}

func (c *OllamaClient) GetModel() string {
	return c.model
}

func (c *OllamaClient) Invoke(ctx context.Context, messages []schema.Message, opts ...LLMOption) (*Reply, error) {
	settings := newSettings(c.model, opts)

	chatMessages := make([]api.Message, 0, len(messages)+1)
	if settings.system != "" {
		chatMessages = append(chatMessages, api.Message{Role: schema.RoleSystem.String(), Content: settings.system})
	}
	for _, m := range messages {
		chatMessages = append(chatMessages, api.Message{Role: m.Role.String(), Content: m.Content})
	}

	stream := false
	req := &api.ChatRequest{
		Model:    settings.model,
		Messages: chatMessages,
		Stream:   &stream,
		Options: map[string]any{
			"temperature": settings.temperature,
			"num_predict": settings.maxTokens,
		},
	}

	start := time.Now()
	var content strings.Builder
	reply := &Reply{Usage: UsageMetadata{Model: settings.model}}

	err := c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		if resp.Done {
			reply.Usage.PromptTokens = resp.PromptEvalCount
			reply.Usage.CompletionTokens = resp.EvalCount
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ollama chat %s: %w", settings.model, err)
	}

	reply.Content = content.String()
	reply.Usage.TotalTokens = reply.Usage.PromptTokens + reply.Usage.CompletionTokens
	reply.Usage.Latency = time.Since(start)
	return reply, nil
}

var _ ModelClient = (*OllamaClient)(nil)
