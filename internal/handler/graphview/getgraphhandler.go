package graphview

import (
	"net/http"

	"github.com/threadloom/threadloom/internal/httputil"
	"github.com/threadloom/threadloom/internal/logic/graphview"
	"github.com/threadloom/threadloom/internal/svc"
	"github.com/threadloom/threadloom/internal/types"
)

// Project graph: nodes plus follows edges
func GetGraphHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.GraphViewRequest
		if err := httputil.Parse(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}

		l := graphview.NewGetGraphLogic(r.Context(), svcCtx)
		resp, err := l.GetGraph(&req)
		if err != nil {
			httputil.Error(w, err)
		} else {
			httputil.OkJSON(w, resp)
		}
	}
}
