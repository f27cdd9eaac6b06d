package node

import (
	"net/http"

	"github.com/threadloom/threadloom/internal/httputil"
	"github.com/threadloom/threadloom/internal/logic/node"
	"github.com/threadloom/threadloom/internal/svc"
	"github.com/threadloom/threadloom/internal/types"
)

// Restore a soft-deleted node
func RestoreNodeHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.RestoreNodeRequest
		if err := httputil.Parse(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}

		l := node.NewRestoreNodeLogic(r.Context(), svcCtx)
		resp, err := l.RestoreNode(&req)
		if err != nil {
			httputil.Error(w, err)
		} else {
			httputil.OkJSON(w, resp)
		}
	}
}
