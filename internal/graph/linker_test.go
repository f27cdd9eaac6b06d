package graph

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/threadloom/threadloom/internal/db"
	"github.com/threadloom/threadloom/internal/logging"
)

func newTestStore(t *testing.T) *db.Store {
	t.Helper()
	logging.Disable()
	t.Cleanup(logging.Enable)

	store, err := db.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func newTestProject(t *testing.T, store *db.Store) db.Project {
	t.Helper()
	p, err := store.CreateProject(context.Background(), db.CreateProjectParams{
		ID: uuid.NewString(), OwnerID: "dev-user", Name: "test",
	})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	return p
}

func newTestTurn(t *testing.T, store *db.Store, projectID string) db.Turn {
	t.Helper()
	turn, err := store.CreateTurn(context.Background(), db.CreateTurnParams{
		ID: uuid.NewString(), ProjectID: projectID, Provider: "anthropic",
		Model: "m", UserText: "u", AssistantText: "a", InjectedContext: "i",
	})
	if err != nil {
		t.Fatalf("create turn: %v", err)
	}
	return turn
}

func TestLinkTurn_FirstNodeHasNoEdge(t *testing.T) {
	store := newTestStore(t)
	linker := NewLinker(store)
	project := newTestProject(t, store)
	turn := newTestTurn(t, store, project.ID)

	node, err := linker.LinkTurn(context.Background(), project.ID, turn.ID, nil, "first")
	if err != nil {
		t.Fatalf("LinkTurn: %v", err)
	}
	if node.Summary != "first" || node.TurnID != turn.ID {
		t.Errorf("unexpected node: %+v", node)
	}

	edges, err := store.ListEdges(context.Background(), project.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(edges) != 0 {
		t.Errorf("first node should have no edges, got %d", len(edges))
	}
}

func TestLinkTurn_SequentialTurnsFormChain(t *testing.T) {
	store := newTestStore(t)
	linker := NewLinker(store)
	project := newTestProject(t, store)

	var nodes []*db.Node
	for i := 0; i < 4; i++ {
		turn := newTestTurn(t, store, project.ID)
		node, err := linker.LinkTurn(context.Background(), project.ID, turn.ID, nil, "n")
		if err != nil {
			t.Fatalf("LinkTurn %d: %v", i, err)
		}
		nodes = append(nodes, node)
	}

	edges, err := store.ListEdges(context.Background(), project.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(edges) != 3 {
		t.Fatalf("expected 3 follows edges, got %d", len(edges))
	}
	for i, e := range edges {
		if e.Kind != db.EdgeKindFollows || e.Weight != 1 {
			t.Errorf("edge %d: kind=%q weight=%v", i, e.Kind, e.Weight)
		}
	}
	// Every node except the last is the source of exactly one edge to its
	// successor.
	bySrc := make(map[string]string)
	for _, e := range edges {
		if _, dup := bySrc[e.SrcNodeID]; dup {
			t.Errorf("node %s has two outgoing follows edges", e.SrcNodeID)
		}
		bySrc[e.SrcNodeID] = e.DstNodeID
	}
	cur := nodes[0].ID
	for i := 1; i < len(nodes); i++ {
		next, ok := bySrc[cur]
		if !ok || next != nodes[i].ID {
			t.Fatalf("chain broken at node %d", i)
		}
		cur = next
	}
}

func TestLinkTurn_SkipsSoftDeletedPredecessor(t *testing.T) {
	store := newTestStore(t)
	linker := NewLinker(store)
	project := newTestProject(t, store)
	ctx := context.Background()

	t1 := newTestTurn(t, store, project.ID)
	n1, err := linker.LinkTurn(ctx, project.ID, t1.ID, nil, "one")
	if err != nil {
		t.Fatal(err)
	}
	t2 := newTestTurn(t, store, project.ID)
	n2, err := linker.LinkTurn(ctx, project.ID, t2.ID, nil, "two")
	if err != nil {
		t.Fatal(err)
	}

	if err := store.SoftDeleteNode(ctx, n2.ID); err != nil {
		t.Fatal(err)
	}

	t3 := newTestTurn(t, store, project.ID)
	n3, err := linker.LinkTurn(ctx, project.ID, t3.ID, nil, "three")
	if err != nil {
		t.Fatal(err)
	}

	edges, err := store.ListEdges(ctx, project.ID)
	if err != nil {
		t.Fatal(err)
	}
	var found bool
	for _, e := range edges {
		if e.DstNodeID == n3.ID {
			found = true
			if e.SrcNodeID != n1.ID {
				t.Errorf("new node should follow %s (most recent active), got %s", n1.ID, e.SrcNodeID)
			}
		}
	}
	if !found {
		t.Error("expected a follows edge into the new node")
	}
}

func TestLinkTurn_EmptyProjectAfterAllDeleted(t *testing.T) {
	store := newTestStore(t)
	linker := NewLinker(store)
	project := newTestProject(t, store)
	ctx := context.Background()

	t1 := newTestTurn(t, store, project.ID)
	n1, err := linker.LinkTurn(ctx, project.ID, t1.ID, nil, "one")
	if err != nil {
		t.Fatal(err)
	}
	if err := store.SoftDeleteNode(ctx, n1.ID); err != nil {
		t.Fatal(err)
	}

	t2 := newTestTurn(t, store, project.ID)
	if _, err := linker.LinkTurn(ctx, project.ID, t2.ID, nil, "two"); err != nil {
		t.Fatal(err)
	}

	edges, err := store.ListEdges(ctx, project.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(edges) != 0 {
		t.Errorf("node created after all predecessors deleted should start a new chain, got %d edges", len(edges))
	}
}

func TestLinkTurn_ConcurrentTurnsStillChain(t *testing.T) {
	store := newTestStore(t)
	linker := NewLinker(store)
	project := newTestProject(t, store)
	ctx := context.Background()

	const n = 8
	turns := make([]db.Turn, n)
	for i := range turns {
		turns[i] = newTestTurn(t, store, project.ID)
	}

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(turnID string) {
			defer wg.Done()
			if _, err := linker.LinkTurn(ctx, project.ID, turnID, nil, "c"); err != nil {
				errs <- err
			}
		}(turns[i].ID)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("LinkTurn: %v", err)
	}

	edges, err := store.ListEdges(ctx, project.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(edges) != n-1 {
		t.Fatalf("expected %d edges, got %d", n-1, len(edges))
	}
	inDeg := make(map[string]int)
	outDeg := make(map[string]int)
	for _, e := range edges {
		inDeg[e.DstNodeID]++
		outDeg[e.SrcNodeID]++
	}
	for id, d := range inDeg {
		if d != 1 {
			t.Errorf("node %s has in-degree %d", id, d)
		}
	}
	for id, d := range outDeg {
		if d != 1 {
			t.Errorf("node %s has out-degree %d", id, d)
		}
	}
}
