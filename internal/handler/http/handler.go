package http

import (
	"github.com/MKhiriev/go-fish-log/internal/config"
	"github.com/MKhiriev/go-fish-log/internal/logger"
	"github.com/MKhiriev/go-fish-log/internal/service"
	"golang.org/x/time/rate"
)

type Handler struct {
	services *service.Services
	app      config.ClientApp
	limiter  *rate.Limiter

	logger *logger.Logger
}

// NewHandler creates the API handler. A non-positive rate limit disables
// request throttling.
func NewHandler(services *service.Services, cfg *config.ClientConfig, logger *logger.Logger) *Handler {
	h := &Handler{
		services: services,
		app:      cfg.App,
		logger:   logger,
	}
	if cfg.Server.RateLimit > 0 {
		h.limiter = rate.NewLimiter(rate.Limit(cfg.Server.RateLimit), max(cfg.Server.RateBurst, 1))
	}

	logger.Info().Msg("http handler created")
	return h
}
