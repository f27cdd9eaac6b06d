package memory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGetContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/context" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("session_id") != "proj-1" {
			t.Errorf("unexpected session_id: %s", r.URL.Query().Get("session_id"))
		}
		json.NewEncoder(w).Encode(map[string]string{"context": "user prefers terse answers"})
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	got, err := c.GetContext(context.Background(), "proj-1", "dev-user")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "user prefers terse answers" {
		t.Errorf("unexpected context: %s", got)
	}
}

func TestGetContext_Disabled(t *testing.T) {
	c := NewClient(Config{})

	got, err := c.GetContext(context.Background(), "proj-1", "dev-user")
	if err != nil {
		t.Fatalf("disabled client should not error: %v", err)
	}
	if got != "" {
		t.Errorf("expected empty context, got %s", got)
	}
}

func TestAddMessages(t *testing.T) {
	var received map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("bad body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	err := c.AddMessages(context.Background(), "proj-1", "dev-user", []Message{
		{Role: "user", Content: "Hello"},
		{Role: "assistant", Content: "Hi there"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msgs, ok := received["messages"].([]any)
	if !ok || len(msgs) != 2 {
		t.Errorf("expected 2 messages, got %v", received["messages"])
	}
}

func TestAddMessages_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	err := c.AddMessages(context.Background(), "s", "u", []Message{{Role: "user", Content: "x"}})
	if err == nil {
		t.Error("expected error from 500 response")
	}
}
