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

type RestoreNodeLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

// Clear a node's delete timestamp, returning it to the chain
func NewRestoreNodeLogic(ctx context.Context, svcCtx *svc.ServiceContext) *RestoreNodeLogic {
	return &RestoreNodeLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

func (l *RestoreNodeLogic) RestoreNode(req *types.RestoreNodeRequest) (*types.NodeResponse, error) {
	if _, err := loadOwnedNode(l.ctx, l.svcCtx, req.Id); err != nil {
		return nil, err
	}

	if err := l.svcCtx.DB.RestoreNode(l.ctx, req.Id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: node is not deleted", httputil.ErrNotFound)
		}
		l.Errorf("Failed to restore node: %v", err)
		return nil, err
	}

	n, err := l.svcCtx.DB.GetNode(l.ctx, req.Id)
	if err != nil {
		return nil, err
	}
	return &types.NodeResponse{Node: ToNodeView(n)}, nil
}
