package node

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/threadloom/threadloom/internal/db"
	"github.com/threadloom/threadloom/internal/httputil"
	"github.com/threadloom/threadloom/internal/middleware"
	"github.com/threadloom/threadloom/internal/svc"
	"github.com/threadloom/threadloom/internal/types"
)

type GetNodeLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewGetNodeLogic(ctx context.Context, svcCtx *svc.ServiceContext) *GetNodeLogic {
	return &GetNodeLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

func (l *GetNodeLogic) GetNode(req *types.GetNodeRequest) (*types.NodeResponse, error) {
	n, err := loadOwnedNode(l.ctx, l.svcCtx, req.Id)
	if err != nil {
		return nil, err
	}
	return &types.NodeResponse{Node: ToNodeView(n)}, nil
}

// loadOwnedNode fetches a node and verifies its project belongs to the
// caller. Nodes of foreign projects are reported as missing.
func loadOwnedNode(ctx context.Context, svcCtx *svc.ServiceContext, id string) (db.Node, error) {
	n, err := svcCtx.DB.GetNode(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return db.Node{}, fmt.Errorf("%w: node", httputil.ErrNotFound)
		}
		return db.Node{}, err
	}
	p, err := svcCtx.DB.GetProject(ctx, n.ProjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return db.Node{}, fmt.Errorf("%w: node", httputil.ErrNotFound)
		}
		return db.Node{}, err
	}
	if p.OwnerID != middleware.UserID(ctx) {
		return db.Node{}, fmt.Errorf("%w: node", httputil.ErrNotFound)
	}
	return n, nil
}

// ToNodeView converts a stored node to its API shape.
func ToNodeView(n db.Node) types.Node {
	view := types.Node{
		Id:        n.ID,
		ProjectId: n.ProjectID,
		TurnId:    n.TurnID,
		Title:     n.Title,
		Summary:   n.Summary,
		Pinned:    n.Pinned,
		Edited:    n.Edited,
		CreatedAt: n.CreatedAt.Format(time.RFC3339),
		UpdatedAt: n.UpdatedAt.Format(time.RFC3339),
	}
	if n.DeletedAt != nil {
		view.DeletedAt = n.DeletedAt.Format(time.RFC3339)
	}
	return view
}
