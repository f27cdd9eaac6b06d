package handler

import (
	"net/http"

	"github.com/threadloom/threadloom/internal/httputil"
	"github.com/threadloom/threadloom/internal/svc"
)

// HealthCheckHandler reports process liveness and database reachability.
func HealthCheckHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		if err := svcCtx.DB.DB().PingContext(r.Context()); err != nil {
			httputil.InternalError(w, "database unreachable")
			return
		}
		httputil.OkJSON(w, map[string]any{
			"status":    status,
			"providers": svcCtx.Registry.IDs(),
		})
	}
}
