package project

import (
	"net/http"

	"github.com/threadloom/threadloom/internal/httputil"
	"github.com/threadloom/threadloom/internal/logic/project"
	"github.com/threadloom/threadloom/internal/svc"
)

// List the caller's projects
func ListProjectsHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l := project.NewListProjectsLogic(r.Context(), svcCtx)
		resp, err := l.ListProjects()
		if err != nil {
			httputil.Error(w, err)
		} else {
			httputil.OkJSON(w, resp)
		}
	}
}
