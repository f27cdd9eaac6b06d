package project

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/threadloom/threadloom/internal/db"
	"github.com/threadloom/threadloom/internal/middleware"
	"github.com/threadloom/threadloom/internal/svc"
	"github.com/threadloom/threadloom/internal/types"
)

type CreateProjectLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewCreateProjectLogic(ctx context.Context, svcCtx *svc.ServiceContext) *CreateProjectLogic {
	return &CreateProjectLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

func (l *CreateProjectLogic) CreateProject(req *types.CreateProjectRequest) (*types.CreateProjectResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, errors.New("name is required")
	}

	p, err := l.svcCtx.DB.CreateProject(l.ctx, db.CreateProjectParams{
		ID:      uuid.NewString(),
		OwnerID: middleware.UserID(l.ctx),
		Name:    name,
	})
	if err != nil {
		l.Errorf("Failed to create project: %v", err)
		return nil, err
	}

	return &types.CreateProjectResponse{Project: toProjectView(p)}, nil
}

func toProjectView(p db.Project) types.Project {
	return types.Project{
		Id:        p.ID,
		Name:      p.Name,
		CreatedAt: p.CreatedAt.Format(time.RFC3339),
	}
}
