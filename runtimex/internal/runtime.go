package internal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"go.eggybyte.com/busnode/core/log"
)

// Service is started before the servers accept traffic and stopped after
// they shut down.
type Service interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Server is an HTTP server the runtime listens for.
type Server struct {
	Name string
	Addr string
	srv  *http.Server
	ln   net.Listener
}

// Runtime manages the lifecycle of services and servers.
type Runtime struct {
	logger          log.Logger
	services        []Service
	servers         []*Server
	shutdownTimeout time.Duration

	ready   atomic.Bool
	readyCh chan struct{}
}

// NewRuntime creates a runtime. Services start in order and stop in reverse.
func NewRuntime(logger log.Logger, services []Service, shutdownTimeout time.Duration) *Runtime {
	return &Runtime{
		logger:          logger,
		services:        services,
		shutdownTimeout: shutdownTimeout,
		readyCh:         make(chan struct{}),
	}
}

// AddServer registers an HTTP server under name. Responses carry the
// default operational headers.
func (r *Runtime) AddServer(name, addr string, handler http.Handler) {
	handler = OpsMiddleware(DefaultOpsHeaders())(handler)
	r.servers = append(r.servers, &Server{
		Name: name,
		Addr: addr,
		srv:  &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 5 * time.Second},
	})
}

// ReadyFlag is set while every service is running.
func (r *Runtime) ReadyFlag() *atomic.Bool { return &r.ready }

// Ready is closed once services have started and servers are listening.
func (r *Runtime) Ready() <-chan struct{} { return r.readyCh }

// Addr returns the bound address of the named server, or "".
func (r *Runtime) Addr(name string) string {
	for _, s := range r.servers {
		if s.Name == name && s.ln != nil {
			return s.ln.Addr().String()
		}
	}
	return ""
}

// Run binds the servers, starts the services, serves until ctx is done or
// a server fails, then shuts everything down.
func (r *Runtime) Run(ctx context.Context) error {
	r.logger.Info("starting runtime")

	if err := r.listen(); err != nil {
		return err
	}
	if err := r.startServices(ctx); err != nil {
		r.closeListeners()
		return err
	}
	r.ready.Store(true)
	close(r.readyCh)
	r.logger.Info("runtime started", log.Int("services", len(r.services)), log.Int("servers", len(r.servers)))

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range r.servers {
		g.Go(func() error {
			r.logger.Info("serving", log.Str("server", s.Name), log.Str("addr", s.ln.Addr().String()))
			if err := s.srv.Serve(s.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("%s server: %w", s.Name, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		r.ready.Store(false)
		r.shutdownServers()
		return nil
	})

	serveErr := g.Wait()
	stopErr := r.stopServices(len(r.services))
	r.logger.Info("runtime stopped")
	return errors.Join(serveErr, stopErr)
}

func (r *Runtime) listen() error {
	for i, s := range r.servers {
		ln, err := net.Listen("tcp", s.Addr)
		if err != nil {
			for _, prev := range r.servers[:i] {
				_ = prev.ln.Close()
			}
			return fmt.Errorf("listen %s server on %s: %w", s.Name, s.Addr, err)
		}
		s.ln = ln
	}
	return nil
}

func (r *Runtime) closeListeners() {
	for _, s := range r.servers {
		if s.ln != nil {
			_ = s.ln.Close()
		}
	}
}

func (r *Runtime) startServices(ctx context.Context) error {
	for i, svc := range r.services {
		r.logger.Debug("starting service", log.Int("index", i), log.Str("service", fmt.Sprintf("%T", svc)))
		if err := svc.Start(ctx); err != nil {
			r.logger.Error(err, "service start failed", log.Int("index", i))
			if stopErr := r.stopServices(i); stopErr != nil {
				r.logger.Error(stopErr, "rollback after failed start")
			}
			return fmt.Errorf("service %d start failed: %w", i, err)
		}
	}
	return nil
}

// stopServices stops the first n services in reverse order.
func (r *Runtime) stopServices(n int) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.shutdownTimeout)
	defer cancel()

	var errs []error
	for i := n - 1; i >= 0; i-- {
		if err := r.services[i].Stop(ctx); err != nil {
			r.logger.Error(err, "service stop failed", log.Int("index", i))
			errs = append(errs, fmt.Errorf("service %d stop failed: %w", i, err))
			continue
		}
		r.logger.Debug("service stopped", log.Int("index", i))
	}
	return errors.Join(errs...)
}

func (r *Runtime) shutdownServers() {
	ctx, cancel := context.WithTimeout(context.Background(), r.shutdownTimeout)
	defer cancel()
	for _, s := range r.servers {
		if err := s.srv.Shutdown(ctx); err != nil {
			r.logger.Error(err, "server shutdown failed", log.Str("server", s.Name))
		}
	}
}
