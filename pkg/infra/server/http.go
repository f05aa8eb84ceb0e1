package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/pdfrag/pkg/infra/middleware"
	httpopts "github.com/kart-io/pdfrag/pkg/options/http"
	apierrors "github.com/kart-io/pdfrag/pkg/utils/errors"
	"github.com/kart-io/pdfrag/pkg/utils/response"
)

// HTTPServer is the gin based HTTP server.
type HTTPServer struct {
	opts   *httpopts.Options
	engine *gin.Engine

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	errCh    chan error
}

// NewHTTPServer creates a gin engine with the configured middleware chain.
// rec receives per-request metrics and may be nil.
func NewHTTPServer(opts *httpopts.Options, rec middleware.RequestRecorder) *HTTPServer {
	if opts == nil {
		opts = httpopts.NewOptions()
	}
	gin.SetMode(opts.Mode)

	// 中间件必须在注册路由之前挂载，否则路由组不会继承
	engine := gin.New()
	engine.Use(middleware.Chain(opts.Middleware, rec)...)
	engine.NoRoute(func(c *gin.Context) {
		response.Fail(c, apierrors.ErrNotFound.WithMessagef("route %s %s not found", c.Request.Method, c.Request.URL.Path))
	})

	return &HTTPServer{opts: opts, engine: engine, errCh: make(chan error, 1)}
}

// Name returns the server name.
func (s *HTTPServer) Name() string {
	return "http[gin]"
}

// Engine returns the underlying gin.Engine for route registration.
func (s *HTTPServer) Engine() *gin.Engine {
	return s.engine
}

// Addr returns the bound address once started, the configured one before.
func (s *HTTPServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.opts.Addr
}

// Errors reports a fatal serve error after Start returned.
func (s *HTTPServer) Errors() <-chan error {
	return s.errCh
}

// Start binds the listen address and serves in the background.
func (s *HTTPServer) Start(_ context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:      s.engine,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  s.opts.IdleTimeout,
	}

	s.mu.Lock()
	s.server, s.listener = srv, ln
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorw("http server stopped unexpectedly", "error", err.Error())
			s.errCh <- err
		}
	}()
	return nil
}

// Stop stops the HTTP server gracefully.
func (s *HTTPServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

var _ Runnable = (*HTTPServer)(nil)
