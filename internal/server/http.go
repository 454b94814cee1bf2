package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/MKhiriev/go-fish-log/internal/config"
	"github.com/MKhiriev/go-fish-log/internal/logger"
)

type httpServer struct {
	server *http.Server
	logger *logger.Logger
}

// newHTTPServer bounds request reading by the configured timeout. Writes are
// not bounded so long streamed responses can finish.
func newHTTPServer(handler http.Handler, cfg config.ClientServer, logger *logger.Logger) *httpServer {
	return &httpServer{
		server: &http.Server{
			Addr:              cfg.HTTPAddress,
			Handler:           handler,
			ReadHeaderTimeout: cfg.RequestTimeout,
			ReadTimeout:       cfg.RequestTimeout,
			IdleTimeout:       4 * cfg.RequestTimeout,
		},
		logger: logger,
	}
}

// listen binds the address so bind errors surface before serving starts.
func (h *httpServer) listen() (net.Listener, error) {
	l, err := net.Listen("tcp", h.server.Addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", errListen, h.server.Addr, err)
	}
	return l, nil
}

func (h *httpServer) serve(l net.Listener) error {
	h.logger.Info().Str("address", l.Addr().String()).Msg("HTTP server listening")
	if err := h.server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server Serve: %w", err)
	}
	return nil
}

func (h *httpServer) Shutdown(ctx context.Context) error {
	h.logger.Info().Msg("HTTP server Shutdown")
	return h.server.Shutdown(ctx)
}
