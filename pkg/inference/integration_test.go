//go:build integration

package inference

import (
	"context"
	"os"
	"testing"
	"time"
)

// Integration tests for real API calls.
// Run with: go test -tags=integration -v ./pkg/inference/...

func TestOpenAIIntegration(t *testing.T) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		t.Skip("OPENAI_API_KEY not set")
	}

	client, err := NewClient(WithAPIKey(apiKey))
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	t.Run("Health", func(t *testing.T) {
		if err := client.Health(ctx); err != nil {
			t.Errorf("Health check failed: %v", err)
		}
	})

	t.Run("Chat", func(t *testing.T) {
		resp, err := client.Chat(ctx, &ChatRequest{
			Messages: []Message{
				NewSystemMessage("You are a helpful assistant. Be very brief."),
				NewUserMessage("What is 2+2?"),
			},
			MaxTokens: 50,
		})
		if err != nil {
			t.Fatalf("Chat failed: %v", err)
		}
		if resp.Message.Content == "" {
			t.Error("Expected non-empty response")
		}
		t.Logf("Response: %s", resp.Message.Content)
	})
}

func TestOllamaIntegration(t *testing.T) {
	client, err := NewClient(
		WithBaseURL("http://localhost:11434/v1"),
		WithModel("llama3.2"),
	)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	if err := client.Health(ctx); err != nil {
		t.Skip("Ollama not running: " + err.Error())
	}

	resp, err := client.Chat(ctx, &ChatRequest{
		Messages:  []Message{NewUserMessage("Say 'hello' and nothing else.")},
		MaxTokens: 10,
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	t.Logf("Ollama response: %s", resp.Message.Content)
}
