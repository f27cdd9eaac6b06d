package node

import (
	"context"
	"errors"
	"strings"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/threadloom/threadloom/internal/db"
	"github.com/threadloom/threadloom/internal/svc"
	"github.com/threadloom/threadloom/internal/types"
)

type UpdateNodeLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

// Edit a node's title/summary or toggle its pinned flag
func NewUpdateNodeLogic(ctx context.Context, svcCtx *svc.ServiceContext) *UpdateNodeLogic {
	return &UpdateNodeLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

func (l *UpdateNodeLogic) UpdateNode(req *types.UpdateNodeRequest) (*types.NodeResponse, error) {
	if _, err := loadOwnedNode(l.ctx, l.svcCtx, req.Id); err != nil {
		return nil, err
	}
	if req.Summary != nil && strings.TrimSpace(*req.Summary) == "" {
		return nil, errors.New("summary cannot be empty")
	}

	err := l.svcCtx.DB.UpdateNode(l.ctx, db.UpdateNodeParams{
		ID:      req.Id,
		Title:   req.Title,
		Summary: req.Summary,
		Pinned:  req.Pinned,
	})
	if err != nil {
		l.Errorf("Failed to update node: %v", err)
		return nil, err
	}

	n, err := l.svcCtx.DB.GetNode(l.ctx, req.Id)
	if err != nil {
		return nil, err
	}
	return &types.NodeResponse{Node: ToNodeView(n)}, nil
}
