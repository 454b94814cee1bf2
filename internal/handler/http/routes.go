package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func (h *Handler) Init() *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(h.withTraceID, h.withLogging, h.withRateLimit)
	router.Use(middleware.Compress(5, "application/json"))

	router.Get("/api/version", h.getVersion)

	router.Get("/api/session", h.getSession)
	router.Delete("/api/session", h.signOut)
	router.Put("/api/connectivity", h.setConnectivity)

	router.Get("/api/trips", h.listTrips)
	router.Post("/api/trips", h.createTrip)
	router.Get("/api/trips/{id}", h.getTrip)
	router.Put("/api/trips/{id}", h.updateTrip)
	router.Delete("/api/trips/{id}", h.deleteTrip)
	router.Get("/api/trips/{id}/weather", h.listWeatherForTrip)
	router.Get("/api/trips/{id}/fish", h.listFishForTrip)

	router.Get("/api/weather", h.listWeather)
	router.Post("/api/weather", h.createWeather)
	router.Put("/api/weather/{id}", h.updateWeather)
	router.Delete("/api/weather/{id}", h.deleteWeather)

	router.Get("/api/fish", h.listFish)
	router.Post("/api/fish", h.createFish)
	router.Put("/api/fish/{id}", h.updateFish)
	router.Delete("/api/fish/{id}", h.deleteFish)
	router.Get("/api/fish/{id}/photo", h.getFishPhoto)

	router.Post("/api/import/{collection}", h.importRecords)

	router.Get("/api/sync/status", h.syncStatus)
	router.Post("/api/sync/drain", h.drain)

	router.Get("/api/migration", h.migrationState)
	router.Post("/api/migration/run", h.runMigration)
	router.Post("/api/migration/abort", h.abortMigration)

	// routes that need a sign-in token
	router.Group(func(r chi.Router) {
		r.Use(h.auth)
		r.Post("/api/session", h.signIn)
		r.Post("/api/wipe", h.wipe)
		r.Post("/api/migration/reset", h.resetMigration)
	})

	router.MethodNotAllowed(CheckHTTPMethod(router))

	return router
}
