package turn

import (
	"net/http"
	"strings"

	"github.com/threadloom/threadloom/internal/httputil"
	"github.com/threadloom/threadloom/internal/middleware"
	"github.com/threadloom/threadloom/internal/orchestrator"
	"github.com/threadloom/threadloom/internal/svc"
	"github.com/threadloom/threadloom/internal/types"
)

// StreamTurnHandler runs the turn pipeline for one user message, streaming
// tokens back as SSE. Validation failures are rejected with a normal 400
// before the response commits to a stream.
func StreamTurnHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.StreamTurnRequest
		if err := httputil.Parse(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}
		if strings.TrimSpace(req.UserText) == "" {
			httputil.ErrorWithCode(w, http.StatusBadRequest, "userText is required")
			return
		}
		if req.Provider == "" {
			httputil.ErrorWithCode(w, http.StatusBadRequest, "provider is required")
			return
		}
		if !svcCtx.Registry.Has(req.Provider) {
			httputil.ErrorWithCode(w, http.StatusBadRequest, "unknown provider: "+req.Provider)
			return
		}

		ew, err := httputil.NewEventWriter(w)
		if err != nil {
			httputil.InternalError(w, err.Error())
			return
		}

		svcCtx.Orchestrator.Run(r.Context(), orchestrator.Request{
			ProjectID: req.ProjectId,
			UserID:    middleware.UserID(r.Context()),
			Provider:  req.Provider,
			Model:     req.Model,
			UserText:  req.UserText,
		}, &sseEmitter{ew: ew})
	}
}

// sseEmitter maps pipeline events onto the wire protocol.
type sseEmitter struct {
	ew *httputil.EventWriter
}

func (e *sseEmitter) Token(text string) {
	e.ew.WriteEvent("token", map[string]string{"text": text})
}

func (e *sseEmitter) Complete(turnID, nodeID string) {
	e.ew.WriteEvent("complete", map[string]string{"turnId": turnID, "nodeId": nodeID})
}

func (e *sseEmitter) Error(code, message string) {
	e.ew.WriteEvent("error", map[string]string{"code": code, "message": message})
}
