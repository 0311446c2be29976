package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/SaiNageswarS/agent-memory/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGroqClient(t *testing.T, handler http.HandlerFunc) *GroqClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	t.Setenv("GROQ_API_KEY", "test-key")
	client, err := NewGroqClient("llama-3.3-70b-versatile")
	require.NoError(t, err)
	client.url = server.URL + "/openai/v1/chat/completions"
	return client
}

func TestNewGroqClient(t *testing.T) {
	t.Run("missing api key", func(t *testing.T) {
		t.Setenv("GROQ_API_KEY", "")
		client, err := NewGroqClient("llama-3.3-70b-versatile")
		assert.ErrorIs(t, err, ErrMissingAPIKey)
		assert.Nil(t, client)
	})

	t.Run("api key set", func(t *testing.T) {
		t.Setenv("GROQ_API_KEY", "test-key")
		client, err := NewGroqClient("llama-3.3-70b-versatile")
		require.NoError(t, err)
		assert.Equal(t, "llama-3.3-70b-versatile", client.GetModel())
	})
}

func TestGroqClientInvoke(t *testing.T) {
	client := newTestGroqClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/openai/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var request groqRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&request))
		assert.Equal(t, []groqMessage{
			{Role: "system", Content: "Be brief."},
			{Role: "user", Content: "Hello"},
		}, request.Messages)
		assert.Equal(t, 256, request.MaxTokens)

		response := groqResponse{
			Model: "llama-3.3-70b-versatile",
			Choices: []groqChoice{
				{Message: groqMessage{Role: "assistant", Content: "Hello, this is a test response"}},
			},
			Usage: groqUsage{PromptTokens: 12, CompletionTokens: 7, TotalTokens: 19},
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response)
	})

	messages := []schema.Message{
		schema.NewMessage(schema.RoleSystem, "Be brief."),
		schema.NewMessage(schema.RoleUser, "Hello"),
	}

	reply, err := client.Invoke(context.Background(), messages, WithMaxTokens(256))
	require.NoError(t, err)
	assert.Equal(t, "Hello, this is a test response", reply.Content)
	assert.Equal(t, 12, reply.Usage.PromptTokens)
	assert.Equal(t, 7, reply.Usage.CompletionTokens)
	assert.Equal(t, 19, reply.Usage.TotalTokens)
	assert.Equal(t, "llama-3.3-70b-versatile", reply.Usage.Model)
}

func TestGroqClientWithSystemPrompt(t *testing.T) {
	client := newTestGroqClient(t, func(w http.ResponseWriter, r *http.Request) {
		var request groqRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&request))

		// Check that system message was added
		if assert.Len(t, request.Messages, 2) {
			assert.Equal(t, "system", request.Messages[0].Role)
			assert.Equal(t, "You are a helpful assistant", request.Messages[0].Content)
			assert.Equal(t, "user", request.Messages[1].Role)
		}

		response := groqResponse{
			Choices: []groqChoice{{Message: groqMessage{Content: "Hello! How can I help you?"}}},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response)
	})

	reply, err := client.Invoke(context.Background(),
		[]schema.Message{schema.NewMessage(schema.RoleUser, "Hello")},
		WithSystemPrompt("You are a helpful assistant"))

	require.NoError(t, err)
	assert.Equal(t, "Hello! How can I help you?", reply.Content)
	assert.Equal(t, "llama-3.3-70b-versatile", reply.Usage.Model)
}

func TestGroqClientErrors(t *testing.T) {
	t.Run("non-200 status", func(t *testing.T) {
		client := newTestGroqClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
		})

		_, err := client.Invoke(context.Background(), []schema.Message{schema.NewMessage(schema.RoleUser, "Hello")})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "429")
	})

	t.Run("no choices", func(t *testing.T) {
		client := newTestGroqClient(t, func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(groqResponse{})
		})

		_, err := client.Invoke(context.Background(), []schema.Message{schema.NewMessage(schema.RoleUser, "Hello")})
		assert.EqualError(t, err, "no choices in response")
	})
}

func TestUsageMetadataAttributes(t *testing.T) {
	u := UsageMetadata{PromptTokens: 3, CompletionTokens: 4, TotalTokens: 7, Model: "m"}
	attrs := u.Attributes()

	assert.Equal(t, "m", attrs["model"])
	assert.Equal(t, 7, attrs["total_tokens"])
	assert.Equal(t, int64(0), attrs["latency_ms"])

	md, err := schema.NewMetadata(nil, attrs)
	require.NoError(t, err)
	assert.Equal(t, float64(4), md.AttributesMap()["completion_tokens"])
}
