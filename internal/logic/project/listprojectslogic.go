package project

import (
	"context"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/threadloom/threadloom/internal/middleware"
	"github.com/threadloom/threadloom/internal/svc"
	"github.com/threadloom/threadloom/internal/types"
)

type ListProjectsLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewListProjectsLogic(ctx context.Context, svcCtx *svc.ServiceContext) *ListProjectsLogic {
	return &ListProjectsLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

func (l *ListProjectsLogic) ListProjects() (*types.ListProjectsResponse, error) {
	projects, err := l.svcCtx.DB.ListProjects(l.ctx, middleware.UserID(l.ctx))
	if err != nil {
		l.Errorf("Failed to list projects: %v", err)
		return nil, err
	}

	out := make([]types.Project, len(projects))
	for i, p := range projects {
		out[i] = toProjectView(p)
	}
	return &types.ListProjectsResponse{Projects: out}, nil
}
