package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/threadloom/threadloom/internal/ai"
	"github.com/threadloom/threadloom/internal/assembler"
	"github.com/threadloom/threadloom/internal/catalog"
	"github.com/threadloom/threadloom/internal/compress"
	"github.com/threadloom/threadloom/internal/config"
	"github.com/threadloom/threadloom/internal/db"
	"github.com/threadloom/threadloom/internal/graph"
	"github.com/threadloom/threadloom/internal/logging"
	"github.com/threadloom/threadloom/internal/memory"
	"github.com/threadloom/threadloom/internal/orchestrator"
	"github.com/threadloom/threadloom/internal/summarizer"
	"github.com/threadloom/threadloom/internal/svc"
)

type fakeProvider struct {
	fragments []string
	fail      error
}

func (p *fakeProvider) ID() string { return "anthropic" }

func (p *fakeProvider) Stream(ctx context.Context, req *ai.ChatRequest) (<-chan ai.StreamEvent, error) {
	if p.fail != nil {
		return nil, p.fail
	}
	events := make(chan ai.StreamEvent, len(p.fragments)+1)
	go func() {
		defer close(events)
		for _, f := range p.fragments {
			events <- ai.StreamEvent{Type: ai.EventTypeText, Text: f}
		}
		events <- ai.StreamEvent{Type: ai.EventTypeDone}
	}()
	return events, nil
}

func (p *fakeProvider) Complete(ctx context.Context, req *ai.ChatRequest) (*ai.Completion, error) {
	return nil, errors.New("not scripted")
}

func newTestServer(t *testing.T, provider ai.Provider) (*httptest.Server, *svc.ServiceContext) {
	t.Helper()
	logging.Disable()
	t.Cleanup(logging.Enable)

	store, err := db.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	var c config.Config
	c.App.DevUserID = "dev-user"
	c.App.SystemInstructions = "be helpful"

	compressor := compress.NewClient(compress.Config{})
	mem := memory.NewClient(memory.Config{})
	registry := ai.NewRegistry(provider)

	svcCtx := &svc.ServiceContext{
		Config:     c,
		DB:         store,
		Catalog:    catalog.Load(t.TempDir()),
		Registry:   registry,
		Compressor: compressor,
		Memory:     mem,
		Orchestrator: orchestrator.New(store, registry, assembler.New(compressor),
			summarizer.New(nil, ""), graph.NewLinker(store), mem, orchestrator.Options{
				SystemText: c.App.SystemInstructions,
				MaxTokens:  1024,
			}),
	}

	srv := httptest.NewServer(Router(svcCtx, true))
	t.Cleanup(srv.Close)
	return srv, svcCtx
}

type sseEvent struct {
	Name string
	Data map[string]string
}

func parseSSE(t *testing.T, body io.Reader) []sseEvent {
	t.Helper()
	raw, err := io.ReadAll(body)
	if err != nil {
		t.Fatal(err)
	}
	var events []sseEvent
	for _, block := range strings.Split(strings.TrimSpace(string(raw)), "\n\n") {
		var ev sseEvent
		for _, line := range strings.Split(block, "\n") {
			if name, ok := strings.CutPrefix(line, "event: "); ok {
				ev.Name = name
			}
			if data, ok := strings.CutPrefix(line, "data: "); ok {
				if err := json.Unmarshal([]byte(data), &ev.Data); err != nil {
					t.Fatalf("bad event payload %q: %v", data, err)
				}
			}
		}
		if ev.Name != "" {
			events = append(events, ev)
		}
	}
	return events
}

func postJSON(t *testing.T, url string, payload any) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatal(err)
	}
}

func createProject(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	resp := postJSON(t, srv.URL+"/api/v1/projects", map[string]string{"name": "demo"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create project: status %d", resp.StatusCode)
	}
	var out struct {
		Project struct {
			Id string `json:"id"`
		} `json:"project"`
	}
	decodeJSON(t, resp, &out)
	return out.Project.Id
}

func streamTurn(t *testing.T, srv *httptest.Server, projectID, userText string) []sseEvent {
	t.Helper()
	resp := postJSON(t, fmt.Sprintf("%s/api/v1/projects/%s/turns/stream", srv.URL, projectID),
		map[string]string{"provider": "anthropic", "model": "test-model", "userText": userText})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stream: status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}
	return parseSSE(t, resp.Body)
}

func TestStreamTurn_HappyPath(t *testing.T) {
	srv, _ := newTestServer(t, &fakeProvider{fragments: []string{"Hi", " there"}})
	projectID := createProject(t, srv)

	events := streamTurn(t, srv, projectID, "Hello")

	if len(events) != 3 {
		t.Fatalf("events: %+v", events)
	}
	if events[0].Name != "token" || events[0].Data["text"] != "Hi" {
		t.Errorf("first event: %+v", events[0])
	}
	if events[1].Name != "token" || events[1].Data["text"] != " there" {
		t.Errorf("second event: %+v", events[1])
	}
	last := events[2]
	if last.Name != "complete" || last.Data["turnId"] == "" || last.Data["nodeId"] == "" {
		t.Errorf("terminal event: %+v", last)
	}

	// The turn shows up in the CRUD surface.
	resp, err := http.Get(fmt.Sprintf("%s/api/v1/projects/%s/turns", srv.URL, projectID))
	if err != nil {
		t.Fatal(err)
	}
	var list struct {
		Turns []struct {
			Id            string `json:"id"`
			AssistantText string `json:"assistantText"`
		} `json:"turns"`
		Total int64 `json:"total"`
	}
	decodeJSON(t, resp, &list)
	if list.Total != 1 || len(list.Turns) != 1 {
		t.Fatalf("turn list: %+v", list)
	}
	if list.Turns[0].AssistantText != "Hi there" {
		t.Errorf("assistantText = %q", list.Turns[0].AssistantText)
	}

	// Audit endpoint returns the exact injected text.
	resp, err = http.Get(fmt.Sprintf("%s/api/v1/turns/%s/injected", srv.URL, last.Data["turnId"]))
	if err != nil {
		t.Fatal(err)
	}
	var injected struct {
		Injected string `json:"injected"`
	}
	decodeJSON(t, resp, &injected)
	if !strings.Contains(injected.Injected, "Hello") || !strings.Contains(injected.Injected, "be helpful") {
		t.Errorf("injected = %q", injected.Injected)
	}
}

func TestStreamTurn_SecondTurnGrowsGraph(t *testing.T) {
	srv, _ := newTestServer(t, &fakeProvider{fragments: []string{"ok"}})
	projectID := createProject(t, srv)

	streamTurn(t, srv, projectID, "first")
	streamTurn(t, srv, projectID, "second")

	resp, err := http.Get(fmt.Sprintf("%s/api/v1/projects/%s/graph", srv.URL, projectID))
	if err != nil {
		t.Fatal(err)
	}
	var view struct {
		Nodes []struct {
			Id string `json:"id"`
		} `json:"nodes"`
		Edges []struct {
			Kind string `json:"kind"`
		} `json:"edges"`
	}
	decodeJSON(t, resp, &view)
	if len(view.Nodes) != 2 {
		t.Fatalf("nodes: %+v", view.Nodes)
	}
	if len(view.Edges) != 1 || view.Edges[0].Kind != "follows" {
		t.Fatalf("edges: %+v", view.Edges)
	}
}

func TestStreamTurn_ValidationRejectsBeforeStreaming(t *testing.T) {
	srv, _ := newTestServer(t, &fakeProvider{fragments: []string{"ok"}})
	projectID := createProject(t, srv)

	cases := []map[string]string{
		{"provider": "anthropic", "model": "m"},             // no userText
		{"model": "m", "userText": "hi"},                    // no provider
		{"provider": "mystery", "model": "m", "userText": "hi"}, // unknown provider
	}
	for i, payload := range cases {
		resp := postJSON(t, fmt.Sprintf("%s/api/v1/projects/%s/turns/stream", srv.URL, projectID), payload)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("case %d: status %d, want 400", i, resp.StatusCode)
		}
		if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
			t.Errorf("case %d: Content-Type %q, want JSON error", i, ct)
		}
		resp.Body.Close()
	}
}

func TestStreamTurn_UnknownProjectErrorsOverStream(t *testing.T) {
	srv, _ := newTestServer(t, &fakeProvider{fragments: []string{"ok"}})

	events := streamTurn(t, srv, "nope", "Hello")
	if len(events) != 1 || events[0].Name != "error" {
		t.Fatalf("events: %+v", events)
	}
	if events[0].Data["code"] != "not_found" {
		t.Errorf("code = %q", events[0].Data["code"])
	}
}

func TestStreamTurn_ProviderFailureEmitsErrorEvent(t *testing.T) {
	srv, svcCtx := newTestServer(t, &fakeProvider{fail: errors.New("overloaded")})
	projectID := createProject(t, srv)

	events := streamTurn(t, srv, projectID, "Hello")
	if len(events) != 1 || events[0].Name != "error" {
		t.Fatalf("events: %+v", events)
	}
	if events[0].Data["code"] != "anthropic_error" {
		t.Errorf("code = %q", events[0].Data["code"])
	}

	turns, err := svcCtx.DB.ListTurns(context.Background(), db.ListTurnsParams{ProjectID: projectID, Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(turns) != 0 {
		t.Errorf("failed turn must not persist, got %d rows", len(turns))
	}
}

func TestNodeCrudFlow(t *testing.T) {
	srv, _ := newTestServer(t, &fakeProvider{fragments: []string{"ok"}})
	projectID := createProject(t, srv)

	events := streamTurn(t, srv, projectID, "Hello")
	nodeID := events[len(events)-1].Data["nodeId"]
	if nodeID == "" {
		t.Fatal("no nodeId in terminal event")
	}
	client := srv.Client()

	// Pin via PATCH.
	body, _ := json.Marshal(map[string]any{"pinned": true})
	req, _ := http.NewRequest(http.MethodPatch, srv.URL+"/api/v1/nodes/"+nodeID, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	var updated struct {
		Node struct {
			Pinned bool `json:"pinned"`
			Edited bool `json:"edited"`
		} `json:"node"`
	}
	decodeJSON(t, resp, &updated)
	if !updated.Node.Pinned || updated.Node.Edited {
		t.Errorf("after pin: %+v", updated.Node)
	}

	// Soft delete.
	req, _ = http.NewRequest(http.MethodDelete, srv.URL+"/api/v1/nodes/"+nodeID, nil)
	resp, err = client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete: status %d", resp.StatusCode)
	}

	// Hidden from the default graph view, visible with includeDeleted.
	resp, err = http.Get(fmt.Sprintf("%s/api/v1/projects/%s/graph", srv.URL, projectID))
	if err != nil {
		t.Fatal(err)
	}
	var view struct {
		Nodes []any `json:"nodes"`
	}
	decodeJSON(t, resp, &view)
	if len(view.Nodes) != 0 {
		t.Errorf("deleted node visible by default: %+v", view.Nodes)
	}
	resp, err = http.Get(fmt.Sprintf("%s/api/v1/projects/%s/graph?includeDeleted=1", srv.URL, projectID))
	if err != nil {
		t.Fatal(err)
	}
	decodeJSON(t, resp, &view)
	if len(view.Nodes) != 1 {
		t.Errorf("includeDeleted should surface the node: %+v", view.Nodes)
	}

	// Restore.
	resp = postJSON(t, srv.URL+"/api/v1/nodes/"+nodeID+"/restore", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("restore: status %d", resp.StatusCode)
	}

	// Restoring twice is a 404.
	resp = postJSON(t, srv.URL+"/api/v1/nodes/"+nodeID+"/restore", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("double restore: status %d, want 404", resp.StatusCode)
	}
}

func TestGetNode_UnknownIs404(t *testing.T) {
	srv, _ := newTestServer(t, &fakeProvider{fragments: []string{"ok"}})

	resp, err := http.Get(srv.URL + "/api/v1/nodes/none")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status %d, want 404", resp.StatusCode)
	}
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, &fakeProvider{fragments: []string{"ok"}})

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	var out struct {
		Status string `json:"status"`
	}
	decodeJSON(t, resp, &out)
	if out.Status != "ok" {
		t.Errorf("status = %q", out.Status)
	}
}
