package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"mrecommender/internal/metrics"
	"mrecommender/pkg/config"
	"mrecommender/pkg/latency"
	"mrecommender/pkg/models"
)

const (
	DefaultHost = "localhost"
	DefaultPort = 3000
)

// Server answers every POST with the same bytes and every other method with 501
type Server struct {
	httpServer *http.Server
	listener   net.Listener
	logger     *slog.Logger
	addr       string
	body       []byte
	latency    *latency.Injector
	metrics    *metrics.Metrics
}

// New creates a new server instance from the "server" sub-config and the root config
func New(serverCfg *config.Config, rootCfg *config.Config, m *metrics.Metrics, logger *slog.Logger) *Server {
	host := serverCfg.GetStringWithDefault("host", DefaultHost)
	port := serverCfg.GetIntWithDefault("port", DefaultPort)
	readTimeout := serverCfg.GetIntWithDefault("readTimeout", 15)
	writeTimeout := serverCfg.GetIntWithDefault("writeTimeout", 15)
	idleTimeout := serverCfg.GetIntWithDefault("idleTimeout", 60)

	srv := &Server{
		logger:  logger,
		addr:    net.JoinHostPort(host, strconv.Itoa(port)),
		body:    []byte(rootCfg.GetStringWithDefault("response.body", models.FixedResponseBody)),
		latency: latency.New(rootCfg.GetSubConfig("latency"), logger),
		metrics: m,
	}

	srv.httpServer = &http.Server{
		Addr:         srv.addr,
		Handler:      srv.instrument(http.HandlerFunc(srv.route)),
		ReadTimeout:  time.Duration(readTimeout) * time.Second,
		WriteTimeout: time.Duration(writeTimeout) * time.Second,
		IdleTimeout:  time.Duration(idleTimeout) * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelDebug),
	}

	return srv
}

// Listen binds the configured address. A bind failure (address in use, bad host)
// is returned here, before anything is served.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", s.addr, err)
	}
	s.listener = ln
	s.logger.Info("Starting mock recommender server", "address", ln.Addr().String())
	return nil
}

// Serve blocks until the server is shut down. Listen must have succeeded first.
func (s *Server) Serve() error {
	return serve(s.httpServer, s.listener)
}

// Start binds and serves
func (s *Server) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server gracefully", "address", s.Addr())
	err := s.httpServer.Shutdown(ctx)
	closeListener(s.listener)
	return err
}

// Addr returns the bound address once listening, the configured one before
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Handler returns the full handler chain, for use with httptest
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// LatencyEnabled reports whether responses are delayed
func (s *Server) LatencyEnabled() bool {
	return s.latency.Enabled()
}

// closeListener releases a listener that was bound but possibly never served;
// http.Server only tracks listeners passed to Serve.
func closeListener(ln net.Listener) {
	if ln != nil {
		_ = ln.Close()
	}
}

func serve(httpServer *http.Server, ln net.Listener) error {
	if ln == nil {
		return errors.New("server is not listening")
	}
	if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
