package turn

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

type GetInjectedLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

// Read the exact injected-context text a turn was sent with (audit)
func NewGetInjectedLogic(ctx context.Context, svcCtx *svc.ServiceContext) *GetInjectedLogic {
	return &GetInjectedLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

func (l *GetInjectedLogic) GetInjected(req *types.GetInjectedRequest) (*types.GetInjectedResponse, error) {
	t, err := l.svcCtx.DB.GetTurn(l.ctx, req.Id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: turn", httputil.ErrNotFound)
		}
		l.Errorf("Failed to get turn: %v", err)
		return nil, err
	}
	if err := requireProject(l.ctx, l.svcCtx, t.ProjectID); err != nil {
		return nil, err
	}

	return &types.GetInjectedResponse{TurnId: t.ID, Injected: t.InjectedContext}, nil
}
