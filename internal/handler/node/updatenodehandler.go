package node

import (
	"net/http"

	"github.com/threadloom/threadloom/internal/httputil"
	"github.com/threadloom/threadloom/internal/logic/node"
	"github.com/threadloom/threadloom/internal/svc"
	"github.com/threadloom/threadloom/internal/types"
)

// Edit a node's title/summary or pin state
func UpdateNodeHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.UpdateNodeRequest
		if err := httputil.Parse(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}

		l := node.NewUpdateNodeLogic(r.Context(), svcCtx)
		resp, err := l.UpdateNode(&req)
		if err != nil {
			httputil.Error(w, err)
		} else {
			httputil.OkJSON(w, resp)
		}
	}
}
