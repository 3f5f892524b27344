package mock

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Nikpro200125/orchestrator/contract"
	"github.com/Nikpro200125/orchestrator/openapi"
	"github.com/evergreen-ci/gimlet"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxBodySize = 8 << 20

// utilityRoutes are served by every mock next to the operations. An
// operation declared on one of them is shadowed.
var utilityRoutes = map[string]bool{
	"/stats":                    true,
	"/stats/reset":              true,
	"/control/configs":          true,
	"/control/configs/resetAll": true,
	"/openapi":                  true,
	"/v3/api-docs":              true,
	"/metrics":                  true,
	"/ui":                       true,
}

type router struct {
	svc      *Service
	stats    *Stats
	controls *Controls
}

// NewHandler builds the router of a service. Stats and controls are
// passed in so they survive a reload of the service.
func NewHandler(svc *Service, stats *Stats, controls *Controls) (h http.Handler, err error) {
	if svc == nil {
		return nil, errors.New("service is nil")
	}
	if stats == nil {
		stats = NewStats()
	}
	if controls == nil {
		controls = NewControls()
	}

	// chi reports malformed patterns by panicking
	defer func() {
		if p := recover(); p != nil {
			h = nil
			err = errors.Errorf("building routes for '%s': %v", svc.Name, p)
		}
	}()

	rt := &router{svc: svc, stats: stats, controls: controls}

	mux := chi.NewRouter()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.RealIP)
	mux.Use(middleware.Recoverer)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "PATCH", "HEAD", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		MaxAge:         300,
	}))

	for _, op := range svc.Operations {
		if utilityRoutes[op.Path] {
			grip.Warning(message.Fields{
				"message":   "operation shadowed by a built-in route",
				"service":   svc.Name,
				"operation": op.Key(),
			})
			continue
		}
		mux.Method(op.Method, op.Path, rt.operation(op))
	}

	mux.Get("/stats", rt.statsHandler)
	mux.Post("/stats/reset", rt.resetStatsHandler)
	mux.Get("/control/configs", controls.listHandler)
	mux.Post("/control/configs", controls.setHandler)
	mux.Delete("/control/configs", controls.resetHandler)
	mux.Post("/control/configs/resetAll", controls.resetAllHandler)
	mux.Get("/openapi", rt.documentHandler(openapi.FormatYAML))
	mux.Get("/v3/api-docs", rt.documentHandler(openapi.FormatJSON))
	mux.Handle("/metrics", promhttp.HandlerFor(stats.registry, promhttp.HandlerOpts{}))
	mux.Get("/ui", rt.uiHandler)

	return mux, nil
}

// operation answers one operation. The call is counted before the control
// panel overrides run, so delayed and overridden calls are counted too.
func (rt *router) operation(op openapi.Operation) http.HandlerFunc {
	status, schema := op.SuccessResponse()
	params := pathParams(op.Path)

	return func(w http.ResponseWriter, r *http.Request) {
		rt.stats.Increment(op.Method, op.Path)
		grip.Info(message.Fields{
			"message": "incoming request",
			"request": middleware.GetReqID(r.Context()),
			"method":  op.Method,
			"route":   op.Path,
			"service": rt.svc.Name,
		})

		if rt.controls.apply(w, r, op.Path) {
			return
		}

		req, err := decode(r, params)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		out, err := rt.svc.Responder.Respond(r.Context(), op, req)
		if err != nil {
			code := http.StatusInternalServerError
			if contract.IsClientError(err) {
				code = http.StatusBadRequest
			}
			grip.Log(levelFor(code), message.WrapError(err, message.Fields{
				"message": "operation failed",
				"request": middleware.GetReqID(r.Context()),
				"method":  op.Method,
				"route":   op.Path,
				"service": rt.svc.Name,
			}))
			writeError(w, code, err)
			return
		}

		if out == nil && schema == nil {
			w.WriteHeader(status)
			return
		}
		gimlet.WriteJSONResponse(w, status, out)
	}
}

// pathParams returns the parameter names of a path template.
func pathParams(template string) []string {
	var out []string
	for {
		start := strings.IndexByte(template, '{')
		if start < 0 {
			return out
		}
		end := strings.IndexByte(template[start:], '}')
		if end < 0 {
			return out
		}
		name := template[start+1 : start+end]
		if i := strings.IndexByte(name, ':'); i >= 0 {
			name = name[:i]
		}
		out = append(out, name)
		template = template[start+end+1:]
	}
}

func decode(r *http.Request, params []string) (contract.Request, error) {
	req := contract.Request{
		Path:  make(map[string]string, len(params)),
		Query: r.URL.Query(),
	}
	for _, name := range params {
		req.Path[name] = chi.URLParam(r, name)
	}

	if r.Body == nil {
		return req, nil
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return req, errors.Wrap(err, "reading request body")
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return req, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err = dec.Decode(&req.Body); err != nil {
		return req, errors.Wrap(err, "request body is not valid JSON")
	}
	return req, nil
}

func writeError(w http.ResponseWriter, code int, err error) {
	gimlet.WriteJSONResponse(w, code, gimlet.ErrorResponse{
		StatusCode: code,
		Message:    err.Error(),
	})
}

func (rt *router) statsHandler(w http.ResponseWriter, _ *http.Request) {
	gimlet.WriteJSON(w, rt.stats.Counts())
}

func (rt *router) resetStatsHandler(w http.ResponseWriter, _ *http.Request) {
	rt.stats.Reset()
	w.WriteHeader(http.StatusOK)
}

func (rt *router) documentHandler(format openapi.Format) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		data, err := openapi.Encode(rt.svc.Source.Document, format)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}

		contentType := "application/json"
		if format == openapi.FormatYAML {
			contentType = "application/yaml"
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Length", fmt.Sprint(len(data)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
