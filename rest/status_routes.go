package rest

import (
	"context"
	"net/http"

	"github.com/Nikpro200125/orchestrator"
	"github.com/Nikpro200125/orchestrator/rest/data"
	"github.com/evergreen-ci/gimlet"
	"github.com/mongodb/amboy"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
)

////////////////////////////////////////////////////////////////////////
//
// GET /status

type StatusResponse struct {
	Revision   string           `json:"revision"`
	QueueStats amboy.QueueStats `json:"queue"`
	Services   int              `json:"services"`
	ByStatus   map[string]int   `json:"by_status"`
}

type statusHandler struct {
	sc    data.Connector
	queue amboy.Queue
}

func makeGetStatus(sc data.Connector, q amboy.Queue) gimlet.RouteHandler {
	return &statusHandler{
		sc:    sc,
		queue: q,
	}
}

// Factory returns a pointer to a new statusHandler.
func (h *statusHandler) Factory() gimlet.RouteHandler {
	return &statusHandler{
		sc:    h.sc,
		queue: h.queue,
	}
}

func (h *statusHandler) Parse(_ context.Context, _ *http.Request) error { return nil }

// Run reports the build revision, the state of the deployment queue and the
// number of recorded services.
func (h *statusHandler) Run(ctx context.Context) gimlet.Responder {
	services, err := h.sc.FindServices(ctx)
	if err != nil {
		err = errors.Wrap(err, "problem counting services")
		logFindError(err, message.Fields{
			"request": gimlet.GetRequestID(ctx),
			"method":  "GET",
			"route":   "/status",
		})
		return gimlet.MakeJSONErrorResponder(err)
	}

	resp := &StatusResponse{
		Revision: orchestrator.BuildRevision,
		Services: len(services),
		ByStatus: map[string]int{},
	}
	for _, svc := range services {
		if svc.Status != nil {
			resp.ByStatus[*svc.Status]++
		}
	}
	if h.queue != nil {
		resp.QueueStats = h.queue.Stats(ctx)
	}

	return gimlet.NewJSONResponse(resp)
}
