package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"mrecommender/internal/metrics"
	"mrecommender/pkg/config"
	"mrecommender/utils"
)

const DefaultAdminPort = 3001

// AdminServer exposes /metrics and /status on a listener separate from the mock,
// so the mock itself keeps a single route.
type AdminServer struct {
	httpServer *http.Server
	listener   net.Listener
	logger     *slog.Logger
	addr       string
	target     *Server
}

// NewAdmin creates the admin listener from the "admin" sub-config. target is the
// fixed-response server whose state /status reports.
func NewAdmin(adminCfg *config.Config, target *Server, m *metrics.Metrics, logger *slog.Logger) *AdminServer {
	host := adminCfg.GetStringWithDefault("host", DefaultHost)
	port := adminCfg.GetIntWithDefault("port", DefaultAdminPort)

	a := &AdminServer{
		logger: logger,
		addr:   net.JoinHostPort(host, strconv.Itoa(port)),
		target: target,
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", m.Handler())
	mux.HandleFunc("GET /status", a.statusHandler)

	a.httpServer = &http.Server{
		Addr:              a.addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return a
}

func (a *AdminServer) statusHandler(w http.ResponseWriter, r *http.Request) {
	status := utils.NewStatusResponse(a.target.Addr(), a.target.LatencyEnabled())

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		a.logger.Warn("Failed to encode status", "error", err)
	}
	a.logger.Debug("Status endpoint accessed", "goroutines", status.Goroutines)
}

func (a *AdminServer) Listen() error {
	ln, err := net.Listen("tcp", a.addr)
	if err != nil {
		return fmt.Errorf("failed to bind admin listener %s: %w", a.addr, err)
	}
	a.listener = ln
	a.logger.Info("Starting admin server", "address", ln.Addr().String(),
		"endpoints", []string{"GET /metrics", "GET /status"})
	return nil
}

func (a *AdminServer) Serve() error {
	return serve(a.httpServer, a.listener)
}

func (a *AdminServer) Shutdown(ctx context.Context) error {
	err := a.httpServer.Shutdown(ctx)
	closeListener(a.listener)
	return err
}

func (a *AdminServer) Addr() string {
	if a.listener != nil {
		return a.listener.Addr().String()
	}
	return a.addr
}

func (a *AdminServer) Handler() http.Handler {
	return a.httpServer.Handler
}
