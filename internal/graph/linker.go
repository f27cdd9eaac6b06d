package graph

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/threadloom/threadloom/internal/db"
)

// Linker appends turn nodes to a project's memory graph. Invocations are
// serialized per project so the non-deleted nodes always form a single chain
// of follows edges.
type Linker struct {
	store *db.Store

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewLinker(store *db.Store) *Linker {
	return &Linker{store: store, locks: make(map[string]*sync.Mutex)}
}

func (l *Linker) projectLock(projectID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.locks[projectID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[projectID] = lock
	}
	return lock
}

// LinkTurn creates a graph node for the turn and, when the project already
// has a non-deleted node, a follows edge from that node to the new one. Node
// and edge are written in one transaction.
func (l *Linker) LinkTurn(ctx context.Context, projectID, turnID string, title *string, summary string) (*db.Node, error) {
	lock := l.projectLock(projectID)
	lock.Lock()
	defer lock.Unlock()

	var node db.Node
	err := l.store.WithTx(ctx, func(q *db.Queries) error {
		prev, err := q.LatestActiveNode(ctx, projectID)
		hasPrev := true
		if err != nil {
			if !errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("load predecessor: %w", err)
			}
			hasPrev = false
		}

		node, err = q.CreateNode(ctx, db.CreateNodeParams{
			ID:        uuid.NewString(),
			ProjectID: projectID,
			TurnID:    turnID,
			Title:     title,
			Summary:   summary,
		})
		if err != nil {
			return fmt.Errorf("create node: %w", err)
		}

		if hasPrev {
			_, err = q.CreateEdge(ctx, db.CreateEdgeParams{
				ID:        uuid.NewString(),
				ProjectID: projectID,
				SrcNodeID: prev.ID,
				DstNodeID: node.ID,
				Kind:      db.EdgeKindFollows,
				Weight:    1,
			})
			if err != nil {
				return fmt.Errorf("create edge: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &node, nil
}
