package graphview

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/threadloom/threadloom/internal/db"
	"github.com/threadloom/threadloom/internal/httputil"
	"github.com/threadloom/threadloom/internal/logic/node"
	"github.com/threadloom/threadloom/internal/middleware"
	"github.com/threadloom/threadloom/internal/svc"
	"github.com/threadloom/threadloom/internal/types"
)

type GetGraphLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

// Project-scoped view of the memory graph
func NewGetGraphLogic(ctx context.Context, svcCtx *svc.ServiceContext) *GetGraphLogic {
	return &GetGraphLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

func (l *GetGraphLogic) GetGraph(req *types.GraphViewRequest) (*types.GraphViewResponse, error) {
	p, err := l.svcCtx.DB.GetProject(l.ctx, req.ProjectId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: project", httputil.ErrNotFound)
		}
		return nil, err
	}
	if p.OwnerID != middleware.UserID(l.ctx) {
		return nil, fmt.Errorf("%w: project", httputil.ErrNotFound)
	}

	nodes, err := l.svcCtx.DB.ListNodes(l.ctx, db.ListNodesParams{
		ProjectID:      req.ProjectId,
		IncludeDeleted: req.IncludeDeleted,
	})
	if err != nil {
		l.Errorf("Failed to list nodes: %v", err)
		return nil, err
	}
	edges, err := l.svcCtx.DB.ListEdges(l.ctx, req.ProjectId)
	if err != nil {
		l.Errorf("Failed to list edges: %v", err)
		return nil, err
	}

	// Deleted nodes hide their edges too unless explicitly requested.
	visible := make(map[string]bool, len(nodes))
	nodeViews := make([]types.Node, len(nodes))
	for i, n := range nodes {
		visible[n.ID] = true
		nodeViews[i] = node.ToNodeView(n)
	}
	var edgeViews []types.Edge
	for _, e := range edges {
		if !visible[e.SrcNodeID] || !visible[e.DstNodeID] {
			continue
		}
		edgeViews = append(edgeViews, types.Edge{
			Id:        e.ID,
			SrcNodeId: e.SrcNodeID,
			DstNodeId: e.DstNodeID,
			Kind:      e.Kind,
			Weight:    e.Weight,
			CreatedAt: e.CreatedAt.Format(time.RFC3339),
		})
	}

	return &types.GraphViewResponse{Nodes: nodeViews, Edges: edgeViews}, nil
}
