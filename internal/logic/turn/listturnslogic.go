package turn

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

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type ListTurnsLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewListTurnsLogic(ctx context.Context, svcCtx *svc.ServiceContext) *ListTurnsLogic {
	return &ListTurnsLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

func (l *ListTurnsLogic) ListTurns(req *types.ListTurnsRequest) (*types.ListTurnsResponse, error) {
	if err := requireProject(l.ctx, l.svcCtx, req.ProjectId); err != nil {
		return nil, err
	}

	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	turns, err := l.svcCtx.DB.ListTurns(l.ctx, db.ListTurnsParams{
		ProjectID: req.ProjectId,
		Limit:     int64(pageSize),
		Offset:    int64((page - 1) * pageSize),
	})
	if err != nil {
		l.Errorf("Failed to list turns: %v", err)
		return nil, err
	}
	total, err := l.svcCtx.DB.CountTurns(l.ctx, req.ProjectId)
	if err != nil {
		l.Errorf("Failed to count turns: %v", err)
		return nil, err
	}

	out := make([]types.Turn, len(turns))
	for i, t := range turns {
		out[i] = types.Turn{
			Id:            t.ID,
			ProjectId:     t.ProjectID,
			Provider:      t.Provider,
			Model:         t.Model,
			UserText:      t.UserText,
			AssistantText: t.AssistantText,
			LatencyMs:     t.LatencyMs,
			RequestId:     t.RequestID,
			CreatedAt:     t.CreatedAt.Format(time.RFC3339),
		}
	}
	return &types.ListTurnsResponse{Turns: out, Total: total}, nil
}

// requireProject verifies the project exists and belongs to the caller.
// Missing and foreign projects are indistinguishable to the caller.
func requireProject(ctx context.Context, svcCtx *svc.ServiceContext, projectID string) error {
	p, err := svcCtx.DB.GetProject(ctx, projectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: project", httputil.ErrNotFound)
		}
		return err
	}
	if p.OwnerID != middleware.UserID(ctx) {
		return fmt.Errorf("%w: project", httputil.ErrNotFound)
	}
	return nil
}
