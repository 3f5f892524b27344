package mock

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/mongodb/grip/recovery"
	"github.com/pkg/errors"
)

const shutdownTimeout = 10 * time.Second

// Server runs one service. The service can be replaced while the server
// is running; request statistics and control panel overrides carry over.
type Server struct {
	stats    *Stats
	controls *Controls

	mu      sync.RWMutex
	service *Service
	handler http.Handler

	srv      *http.Server
	listener net.Listener
	done     chan struct{}
	err      error
}

func NewServer(svc *Service) (*Server, error) {
	s := &Server{
		stats:    NewStats(),
		controls: NewControls(),
	}
	if err := s.Reload(svc); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Server) Stats() *Stats       { return s.stats }
func (s *Server) Controls() *Controls { return s.controls }

func (s *Server) Service() *Service {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.service
}

// Reload swaps the service answering requests. Requests already in
// flight finish on the old one.
func (s *Server) Reload(svc *Service) error {
	h, err := NewHandler(svc, s.stats, s.controls)
	if err != nil {
		return errors.WithStack(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.service = svc
	s.handler = h
	return nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	h := s.handler
	s.mu.RUnlock()

	h.ServeHTTP(w, r)
}

// Start listens on addr and serves in the background until Close is
// called or ctx is canceled. Port 0 picks a free port; Addr reports it.
func (s *Server) Start(ctx context.Context, addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return errors.New("server already started")
	}

	lc := net.ListenConfig{}
	l, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "listening on '%s'", addr)
	}

	s.listener = l
	s.done = make(chan struct{})
	s.srv = &http.Server{
		Handler:           s,
		ReadHeaderTimeout: time.Minute,
	}

	name := s.service.Name
	go func() {
		defer recovery.LogStackTraceAndContinue("mock server")
		defer close(s.done)

		grip.Info(message.Fields{
			"message": "starting mock service",
			"service": name,
			"addr":    l.Addr().String(),
		})
		err := s.srv.Serve(l)
		if err == http.ErrServerClosed {
			err = nil
		}
		grip.Error(message.WrapError(err, message.Fields{
			"message": "mock service stopped",
			"service": name,
		}))
		s.err = err
	}()

	go func() {
		defer recovery.LogStackTraceAndContinue("mock server shutdown")
		select {
		case <-ctx.Done():
			grip.Warning(message.WrapError(s.Close(), message.Fields{
				"message": "closing mock service",
				"service": name,
			}))
		case <-s.done:
		}
	}()

	return nil
}

// Addr is the address the server listens on, or empty before Start.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Port is the port the server listens on, or zero before Start.
func (s *Server) Port() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return 0
	}
	if tcp, ok := s.listener.Addr().(*net.TCPAddr); ok {
		return tcp.Port
	}
	return 0
}

// Wait blocks until the server stops and returns the error it stopped
// with.
func (s *Server) Wait() error {
	s.mu.RLock()
	done := s.done
	s.mu.RUnlock()
	if done == nil {
		return errors.New("server not started")
	}

	<-done
	return s.err
}

// Close stops the server, waiting for in-flight requests for a bounded
// time.
func (s *Server) Close() error {
	s.mu.RLock()
	srv := s.srv
	s.mu.RUnlock()
	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return errors.Wrap(srv.Shutdown(ctx), "shutting down mock service")
}
