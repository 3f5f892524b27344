package mock

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/evergreen-ci/gimlet"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
)

// EndpointConfig overrides the behavior of one endpoint template. Unset
// fields leave the behavior alone.
type EndpointConfig struct {
	DelayMs          *int64 `json:"delayMs"`
	HTTPCodeOverride *int   `json:"httpCodeOverride"`
}

func (c EndpointConfig) delay() time.Duration {
	if c.DelayMs == nil || *c.DelayMs <= 0 {
		return 0
	}
	return time.Duration(*c.DelayMs) * time.Millisecond
}

// Controls holds the control panel overrides, keyed by endpoint template.
type Controls struct {
	mu      sync.RWMutex
	configs map[string]EndpointConfig
}

func NewControls() *Controls {
	return &Controls{configs: map[string]EndpointConfig{}}
}

func (c *Controls) Get(endpoint string) (EndpointConfig, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	conf, ok := c.configs[endpoint]
	return conf, ok
}

func (c *Controls) Set(endpoint string, conf EndpointConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.configs[endpoint] = conf
}

func (c *Controls) Reset(endpoint string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.configs, endpoint)
}

func (c *Controls) ResetAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.configs = map[string]EndpointConfig{}
}

// All returns a copy of every override.
func (c *Controls) All() map[string]EndpointConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]EndpointConfig, len(c.configs))
	for k, v := range c.configs {
		out[k] = v
	}
	return out
}

// apply delays the request and reports whether the override answered it.
// A request canceled during the delay is answered with nothing.
func (c *Controls) apply(w http.ResponseWriter, r *http.Request, endpoint string) bool {
	conf, ok := c.Get(endpoint)
	if !ok {
		return false
	}

	if d := conf.delay(); d > 0 {
		grip.Info(message.Fields{
			"message":  "delaying response",
			"endpoint": endpoint,
			"delay_ms": *conf.DelayMs,
		})
		timer := time.NewTimer(d)
		select {
		case <-r.Context().Done():
			timer.Stop()
			return true
		case <-timer.C:
		}
	}

	if conf.HTTPCodeOverride != nil {
		grip.Info(message.Fields{
			"message":  "overriding response code",
			"endpoint": endpoint,
			"code":     *conf.HTTPCodeOverride,
		})
		w.WriteHeader(*conf.HTTPCodeOverride)
		return true
	}
	return false
}

////////////////////////////////////////////////////////////////////////
//
// /control/configs

func (c *Controls) listHandler(w http.ResponseWriter, _ *http.Request) {
	gimlet.WriteJSON(w, c.All())
}

func (c *Controls) setHandler(w http.ResponseWriter, r *http.Request) {
	endpoint := r.FormValue("endpoint")
	if endpoint == "" {
		writeError(w, http.StatusBadRequest, errors.New("missing required parameter 'endpoint'"))
		return
	}

	conf := EndpointConfig{}
	if raw := r.FormValue("delayMs"); raw != "" {
		delay, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, errors.Wrapf(err, "invalid delayMs '%s'", raw))
			return
		}
		conf.DelayMs = &delay
	}
	if raw := r.FormValue("httpCodeOverride"); raw != "" {
		code, err := strconv.Atoi(raw)
		if err != nil || code < 100 || code > 999 {
			writeError(w, http.StatusBadRequest, errors.Errorf("invalid httpCodeOverride '%s'", raw))
			return
		}
		conf.HTTPCodeOverride = &code
	}

	c.Set(endpoint, conf)
	w.WriteHeader(http.StatusOK)
}

func (c *Controls) resetHandler(w http.ResponseWriter, r *http.Request) {
	endpoint := r.FormValue("endpoint")
	if endpoint == "" {
		writeError(w, http.StatusBadRequest, errors.New("missing required parameter 'endpoint'"))
		return
	}
	c.Reset(endpoint)
	w.WriteHeader(http.StatusOK)
}

func (c *Controls) resetAllHandler(w http.ResponseWriter, _ *http.Request) {
	c.ResetAll()
	w.WriteHeader(http.StatusOK)
}
