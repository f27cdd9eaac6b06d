package node

import (
	"net/http"

	"github.com/threadloom/threadloom/internal/httputil"
	"github.com/threadloom/threadloom/internal/logic/node"
	"github.com/threadloom/threadloom/internal/svc"
	"github.com/threadloom/threadloom/internal/types"
)

// Soft-delete a node
func DeleteNodeHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.DeleteNodeRequest
		if err := httputil.Parse(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}

		l := node.NewDeleteNodeLogic(r.Context(), svcCtx)
		resp, err := l.DeleteNode(&req)
		if err != nil {
			httputil.Error(w, err)
		} else {
			httputil.OkJSON(w, resp)
		}
	}
}
