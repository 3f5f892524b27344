package mock

import (
	"html/template"
	"net/http"
	"sort"

	"github.com/mongodb/grip"
	"github.com/mongodb/grip/level"
	"github.com/mongodb/grip/message"
)

// levelFor logs client errors below server errors.
func levelFor(code int) level.Priority {
	if code < http.StatusInternalServerError {
		return level.Info
	}
	return level.Error
}

type uiEndpoint struct {
	Method string
	Path   string
	Count  int64
	Config *EndpointConfig
}

var controlPanel = template.Must(template.New("ui").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{ .Name }} control panel</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; }
td, th { border: 1px solid #ccc; padding: 4px 10px; text-align: left; }
</style>
</head>
<body>
<h1>{{ .Name }}</h1>
<table>
<tr><th>Method</th><th>Endpoint</th><th>Requests</th><th>Override</th></tr>
{{ range .Endpoints }}
<tr>
<td>{{ .Method }}</td>
<td>{{ .Path }}</td>
<td>{{ .Count }}</td>
<td>
<form method="post" action="/control/configs">
<input type="hidden" name="endpoint" value="{{ .Path }}">
delay ms <input name="delayMs" size="6" value="{{ with .Config }}{{ with .DelayMs }}{{ . }}{{ end }}{{ end }}">
status <input name="httpCodeOverride" size="4" value="{{ with .Config }}{{ with .HTTPCodeOverride }}{{ . }}{{ end }}{{ end }}">
<button type="submit">Save</button>
</form>
</td>
</tr>
{{ end }}
</table>
<form method="post" action="/control/configs/resetAll"><button type="submit">Reset all overrides</button></form>
<form method="post" action="/stats/reset"><button type="submit">Reset statistics</button></form>
<p><a href="/openapi">OpenAPI document</a> | <a href="/stats">Statistics</a> | <a href="/metrics">Metrics</a></p>
</body>
</html>
`))

func (rt *router) uiHandler(w http.ResponseWriter, _ *http.Request) {
	configs := rt.controls.All()

	var endpoints []uiEndpoint
	for _, op := range rt.svc.Operations {
		if utilityRoutes[op.Path] {
			continue
		}
		e := uiEndpoint{Method: op.Method, Path: op.Path, Count: rt.stats.Count(op.Method, op.Path)}
		if conf, ok := configs[op.Path]; ok {
			e.Config = &conf
		}
		endpoints = append(endpoints, e)
	}
	sort.Slice(endpoints, func(i, j int) bool {
		if endpoints[i].Path == endpoints[j].Path {
			return endpoints[i].Method < endpoints[j].Method
		}
		return endpoints[i].Path < endpoints[j].Path
	})

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := controlPanel.Execute(w, struct {
		Name      string
		Endpoints []uiEndpoint
	}{Name: rt.svc.Name, Endpoints: endpoints})
	grip.Error(message.WrapError(err, message.Fields{
		"message": "rendering control panel",
		"service": rt.svc.Name,
	}))
}
