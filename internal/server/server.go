// Package server exposes the daemon over JSON-RPC 2.0 on a WebSocket
// endpoint. Each authenticated connection gets its own jrpc2 server
// scoped to one user; push notifications flow back over the same
// connection.
package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	cws "github.com/coder/websocket"
	"github.com/creachadair/jrpc2"

	"github.com/taskfuse/taskfuse/internal/api"
	"github.com/taskfuse/taskfuse/pkg/logger"
)

// RPCPath is the WebSocket endpoint path.
const RPCPath = "/rpc/ws"

// Config holds the RPC endpoint configuration.
type Config struct {
	Addr    string // listen address, e.g. "127.0.0.1:7419"
	Secret  string // bearer token (required -- empty disables the endpoint)
	Version string
}

// Server is the daemon's RPC front end.
type Server struct {
	cfg      Config
	api      *api.Api
	notifier *RPCNotifier
	log      logger.Logger

	mu   sync.Mutex
	http *http.Server
}

// New creates the RPC server. The notifier must be the same instance
// wired into the admission path so pushes reach connected clients.
func New(cfg Config, a *api.Api, n *RPCNotifier, l logger.Logger) *Server {
	if l == nil {
		l = logger.NewNopLogger()
	}
	return &Server{cfg: cfg, api: a, notifier: n, log: l}
}

// Notifier returns the push fan-out.
func (s *Server) Notifier() *RPCNotifier { return s.notifier }

// Handler returns the authenticated HTTP handler, exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(RPCPath, requireAuth(s.cfg.Secret, http.HandlerFunc(s.handleWS)))
	return mux
}

// handleWS upgrades the request and serves JSON-RPC over the socket
// until the client disconnects.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(userHeader)

	conn, err := cws.Accept(w, r, nil)
	if err != nil {
		s.log.Warning("websocket upgrade failed: %s", err.Error())
		return
	}

	session := &rpcSession{api: s.api, userID: userID, version: s.cfg.Version}
	ch := &wsChannel{conn: conn, ctx: r.Context()}
	srv := jrpc2.NewServer(session.methods(), &jrpc2.ServerOptions{AllowPush: true})

	s.notifier.Register(userID, srv)
	defer s.notifier.Unregister(userID, srv)

	s.log.Info("rpc connection opened for user %s", userID)
	srv.Start(ch)
	_ = srv.Wait()
	s.log.Info("rpc connection closed for user %s", userID)
}

// Start runs the HTTP listener until Shutdown or a listener error.
// http.ErrServerClosed (the expected shutdown outcome) is mapped to
// nil.
func (s *Server) Start() error {
	s.mu.Lock()
	s.http = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.http
	s.mu.Unlock()

	s.log.Info("rpc listening on %s", s.cfg.Addr)
	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}
