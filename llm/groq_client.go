package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/SaiNageswarS/agent-memory/schema"
)

var ErrMissingAPIKey = errors.New("GROQ_API_KEY environment variable is not set")

const groqChatURL = "https://api.groq.com/openai/v1/chat/completions"

type GroqClient struct {
	apiKey     string
	httpClient *http.Client
	url        string
	model      string
}

func NewGroqClient(model string) (*GroqClient, error) {
	apiKey := os.Getenv("GROQ_API_KEY")
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	return &GroqClient{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		url:        groqChatURL,
		model:      model,
	}, nil
}

func (c *GroqClient) GetModel() string {
	return c.model
}

func (c *GroqClient) Invoke(ctx context.Context, messages []schema.Message, opts ...LLMOption) (*Reply, error) {
	settings := newSettings(c.model, opts)

	request := groqRequest{
		Model:       settings.model,
		Messages:    make([]groqMessage, 0, len(messages)+1),
		Temperature: settings.temperature,
		MaxTokens:   settings.maxTokens,
	}

	// Groq takes the system prompt as the first message
	if settings.system != "" {
		request.Messages = append(request.Messages, groqMessage{Role: schema.RoleSystem.String(), Content: settings.system})
	}
	for _, m := range messages {
		request.Messages = append(request.Messages, groqMessage{Role: m.Role.String(), Content: m.Content})
	}

	start := time.Now()
	response, err := c.makeRequest(ctx, request)
	if err != nil {
		return nil, err
	}

	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	model := response.Model
	if model == "" {
		model = settings.model
	}

	return &Reply{
		Content: response.Choices[0].Message.Content,
		Usage: UsageMetadata{
			PromptTokens:     response.Usage.PromptTokens,
			CompletionTokens: response.Usage.CompletionTokens,
			TotalTokens:      response.Usage.TotalTokens,
			Latency:          time.Since(start),
			Model:            model,
		},
	}, nil
}

func (c *GroqClient) makeRequest(ctx context.Context, request groqRequest) (*groqResponse, error) {
	jsonData, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("error marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var response groqResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("error unmarshaling response: %w", err)
	}
	return &response, nil
}

var _ ModelClient = (*GroqClient)(nil)

// Groq API types
type groqRequest struct {
	Model       string        `json:"model"`
	Messages    []groqMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_completion_tokens,omitempty"`
}

type groqResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []groqChoice `json:"choices"`
	Usage   groqUsage    `json:"usage"`
}

type groqChoice struct {
	Index        int         `json:"index"`
	Message      groqMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type groqMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type groqUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
