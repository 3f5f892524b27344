package rest

import (
	"context"
	"net/http"

	"github.com/Nikpro200125/orchestrator"
	"github.com/Nikpro200125/orchestrator/rest/data"
	"github.com/evergreen-ci/gimlet"
	"github.com/mongodb/amboy"
	"github.com/pkg/errors"
	"github.com/rs/cors"
)

type Service struct {
	Port        int
	Prefix      string
	Environment orchestrator.Environment
	// Connector defaults to a DBConnector for the environment.
	Connector data.Connector

	// internal settings
	queue amboy.Queue
	app   *gimlet.APIApp
	sc    data.Connector
}

func (s *Service) Validate() error {
	var err error

	if s.Environment == nil {
		return errors.New("must specify an environment")
	}

	if s.queue == nil {
		s.queue = s.Environment.GetQueue()
		if s.queue == nil {
			return errors.New("no queue defined")
		}
	}

	if s.sc == nil {
		s.sc = s.Connector
	}
	if s.sc == nil {
		ctx, cancel := s.Environment.Context()
		defer cancel()
		s.sc, err = data.CreateDBConnector(ctx, s.Environment)
		if err != nil {
			return errors.Wrap(err, "problem creating data connector")
		}
	}

	if s.app == nil {
		s.app = gimlet.NewApp()
		s.app.NoVersions = true
		s.app.AddMiddleware(gimlet.MakeRecoveryLogger())
		s.app.AddMiddleware(gimlet.NewAppLogger())
		s.app.AddMiddleware(cors.New(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"*"},
		}))
	}

	if s.Port == 0 {
		s.Port = 8080
	}

	if err := s.app.SetPort(s.Port); err != nil {
		return errors.WithStack(err)
	}

	if s.Prefix != "" {
		s.app.SetPrefix(s.Prefix)
	}

	return nil
}

// Start registers the routes and serves them until the context is canceled.
func (s *Service) Start(ctx context.Context) error {
	if s.queue == nil || s.app == nil {
		return errors.New("application is not valid")
	}

	s.addRoutes()

	if err := s.app.Resolve(); err != nil {
		return errors.Wrap(err, "problem resolving routes")
	}

	return s.app.Run(ctx)
}

// Handler returns the resolved application without starting a listener.
func (s *Service) Handler() (http.Handler, error) {
	if s.queue == nil || s.app == nil {
		return nil, errors.New("application is not valid")
	}

	s.addRoutes()

	return s.app.Handler()
}

func (s *Service) addRoutes() {
	conf := s.Environment.GetConf()

	// every route is served both under /v1 and without a version
	for _, versioned := range []bool{true, false} {
		route := func(path string) *gimlet.APIRoute {
			r := s.app.AddRoute(path)
			if versioned {
				r = r.Version(1)
			}
			return r
		}

		generate := route("/api/generate-service").Post()
		if conf.GenerateRateLimit > 0 {
			generate.Wrap(NewRateLimitMiddleware(conf.GenerateRateLimit, conf.GenerateBurst))
		}
		generate.RouteHandler(makeGenerateService(s.sc))

		route("/api/convert").Post().RouteHandler(makeConvert(s.sc))
		route("/api/services").Get().RouteHandler(makeGetServices(s.sc))
		route("/api/services/{id}").Get().RouteHandler(makeGetServiceByID(s.sc))
		route("/api/services/{id}").Delete().RouteHandler(makeRemoveServiceByID(s.sc))

		route("/status").Get().RouteHandler(makeGetStatus(s.sc, s.queue))
	}
}
