package genai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientGenerate(t *testing.T) {
	var gotAuth string
	var gotReq generateRequest
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]any{
				{"type": "text", "text": "hello "},
				{"type": "text", "text": "world"},
			},
		})
	}))
	defer backend.Close()

	client := NewClient("tok123", 4096, WithEndpoint(backend.URL))
	out, err := client.Generate(context.Background(), "STAGING", "claude-3-5-sonnet-20241022", "be brief", "say hi")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if out != "hello world" {
		t.Fatalf("unexpected output: %q", out)
	}
	if gotAuth != "Bearer tok123" {
		t.Fatalf("unexpected auth header: %q", gotAuth)
	}
	if gotReq.Model != "claude-3-5-sonnet-20241022" || gotReq.MaxTokens != 4096 {
		t.Fatalf("unexpected request: %+v", gotReq)
	}
	if gotReq.System != "be brief" || len(gotReq.Messages) != 1 || gotReq.Messages[0].Role != "user" {
		t.Fatalf("unexpected request shape: %+v", gotReq)
	}
}

func TestClientGenerateBackendError(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer backend.Close()

	client := NewClient("tok123", 4096, WithEndpoint(backend.URL))
	_, err := client.Generate(context.Background(), "STAGING", "claude-3-5-sonnet-20241022", "", "say hi")
	backendErr := &BackendError{}
	if !errors.As(err, &backendErr) {
		t.Fatalf("expected BackendError, got %v", err)
	}
	if backendErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("unexpected status: %d", backendErr.StatusCode)
	}
}

func TestClientGenerateHonorsContext(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer backend.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	client := NewClient("tok123", 4096, WithEndpoint(backend.URL))
	if _, err := client.Generate(ctx, "STAGING", "claude-3-5-sonnet-20241022", "", "say hi"); err == nil {
		t.Fatalf("expected a cancelled context to fail the call")
	}
}

func TestClientResolvesEndpointPerEnvironment(t *testing.T) {
	client := NewClient("tok123", 4096)
	if got := client.endpointFor("PRODUCTION"); got != productionBaseURL {
		t.Fatalf("unexpected production endpoint: %q", got)
	}
	if got := client.endpointFor("STAGING"); got != stagingBaseURL {
		t.Fatalf("unexpected staging endpoint: %q", got)
	}
	pinned := NewClient("tok123", 4096, WithEndpoint("http://localhost:1234"))
	if got := pinned.endpointFor("PRODUCTION"); got != "http://localhost:1234" {
		t.Fatalf("WithEndpoint should win over the environment, got %q", got)
	}
}

func TestBaseURLFor(t *testing.T) {
	if got := BaseURLFor("PRODUCTION"); got != productionBaseURL {
		t.Fatalf("unexpected production url: %q", got)
	}
	if got := BaseURLFor("production"); got != productionBaseURL {
		t.Fatalf("expected case-insensitive match, got %q", got)
	}
	for _, env := range []string{"STAGING", "", "dev"} {
		if got := BaseURLFor(env); got != stagingBaseURL {
			t.Fatalf("expected staging url for %q, got %q", env, got)
		}
	}
}
