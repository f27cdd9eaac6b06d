package node

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/threadloom/threadloom/internal/httputil"
	"github.com/threadloom/threadloom/internal/svc"
	"github.com/threadloom/threadloom/internal/types"
)

type DeleteNodeLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

// Soft-delete a node: it keeps its row but leaves the chain and pinned
// context until restored
func NewDeleteNodeLogic(ctx context.Context, svcCtx *svc.ServiceContext) *DeleteNodeLogic {
	return &DeleteNodeLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

func (l *DeleteNodeLogic) DeleteNode(req *types.DeleteNodeRequest) (*types.NodeResponse, error) {
	if _, err := loadOwnedNode(l.ctx, l.svcCtx, req.Id); err != nil {
		return nil, err
	}

	if err := l.svcCtx.DB.SoftDeleteNode(l.ctx, req.Id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: node already deleted", httputil.ErrNotFound)
		}
		l.Errorf("Failed to delete node: %v", err)
		return nil, err
	}

	n, err := l.svcCtx.DB.GetNode(l.ctx, req.Id)
	if err != nil {
		return nil, err
	}
	return &types.NodeResponse{Node: ToNodeView(n)}, nil
}
