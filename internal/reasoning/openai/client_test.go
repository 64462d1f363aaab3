package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ProofFlow-Chain/internal/reasoning"
)

func completion(content string) map[string]any {
	return map[string]any{
		"id":     "chatcmpl-1",
		"object": "chat.completion",
		"model":  "gpt-4o-mini",
		"choices": []map[string]any{
			{
				"index":         0,
				"finish_reason": "stop",
				"message": map[string]any{
					"role":    "assistant",
					"content": content,
				},
			},
		},
	}
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Fatalf("expected error when api key is missing")
	}
}

func TestGenerateSuccess(t *testing.T) {
	var captured struct {
		Path          string
		Authorization string
		Body          struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.Path = r.URL.Path
		captured.Authorization = r.Header.Get("Authorization")
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&captured.Body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(completion("[STEP 1] a [FINAL] b"))
	}))
	defer srv.Close()

	client, err := NewClient(Config{APIKey: "test", BaseURL: srv.URL + "/v1", Timeout: time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out, err := client.Generate(context.Background(), "is BTC bullish?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "[STEP 1] a [FINAL] b" {
		t.Fatalf("unexpected output %q", out)
	}
	if captured.Path != "/v1/chat/completions" {
		t.Fatalf("unexpected path %s", captured.Path)
	}
	if captured.Authorization != "Bearer test" {
		t.Fatalf("authorization header missing: %q", captured.Authorization)
	}
	if captured.Body.Model != defaultModelName || len(captured.Body.Messages) != 2 {
		t.Fatalf("unexpected request body %+v", captured.Body)
	}
	if !strings.Contains(captured.Body.Messages[0].Content, "[FINAL]") || captured.Body.Messages[1].Content != "is BTC bullish?" {
		t.Fatalf("unexpected messages %+v", captured.Body.Messages)
	}
}

func TestGenerateHTTPErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
	}))
	defer srv.Close()

	client, err := NewClient(Config{APIKey: "test", BaseURL: srv.URL, Timeout: time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := client.Generate(context.Background(), "q"); !errors.Is(err, reasoning.ErrModelUnavailable) {
		t.Fatalf("expected model unavailable, got %v", err)
	}
}

func TestGenerateTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	client, err := NewClient(Config{APIKey: "test", BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := client.Generate(context.Background(), "q"); !errors.Is(err, reasoning.ErrModelTimeout) {
		t.Fatalf("expected model timeout, got %v", err)
	}
}

func TestGenerateEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","choices":[]}`))
	}))
	defer srv.Close()

	client, _ := NewClient(Config{APIKey: "test", BaseURL: srv.URL})
	if _, err := client.Generate(context.Background(), "q"); !errors.Is(err, reasoning.ErrModelUnavailable) {
		t.Fatalf("expected model unavailable, got %v", err)
	}
}
