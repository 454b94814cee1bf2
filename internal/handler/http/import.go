package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/MKhiriev/go-fish-log/internal/service"
	"github.com/MKhiriev/go-fish-log/internal/utils"
	"github.com/MKhiriev/go-fish-log/models"
	"github.com/go-chi/chi/v5"
)

type importFailure struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// importReport counts upsert outcomes by name ("created", "skipped", ...).
type importReport struct {
	Outcomes map[string]int  `json:"outcomes"`
	Failed   []importFailure `json:"failed,omitempty"`
}

type upsertFunc func(ctx context.Context, raw json.RawMessage) (service.UpsertOutcome, error)

func (h *Handler) upserter(collection models.Collection) (upsertFunc, bool) {
	data := h.services.DataService
	switch collection {
	case models.CollectionTrips:
		return func(ctx context.Context, raw json.RawMessage) (service.UpsertOutcome, error) {
			var trip models.Trip
			if err := json.Unmarshal(raw, &trip); err != nil {
				return 0, fmt.Errorf("%w: %w", ErrInvalidJSON, err)
			}
			return data.UpsertTripFromImport(ctx, trip)
		}, true
	case models.CollectionWeatherLogs:
		return func(ctx context.Context, raw json.RawMessage) (service.UpsertOutcome, error) {
			var log models.WeatherLog
			if err := json.Unmarshal(raw, &log); err != nil {
				return 0, fmt.Errorf("%w: %w", ErrInvalidJSON, err)
			}
			return data.UpsertWeatherLogFromImport(ctx, log)
		}, true
	case models.CollectionFishCaught:
		return func(ctx context.Context, raw json.RawMessage) (service.UpsertOutcome, error) {
			var fish models.FishCaught
			if err := json.Unmarshal(raw, &fish); err != nil {
				return 0, fmt.Errorf("%w: %w", ErrInvalidJSON, err)
			}
			return data.UpsertFishCaughtFromImport(ctx, fish)
		}, true
	}
	return nil, false
}

// importRecords upserts a JSON array of records into one collection.
// Records whose content hash is unchanged are skipped; a failing record does
// not stop the rest.
func (h *Handler) importRecords(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	collection := models.Collection(chi.URLParam(r, "collection"))
	upsert, ok := h.upserter(collection)
	if !ok {
		h.fail(w, r, "*Handler.importRecords", fmt.Errorf("%w: %s", ErrUnknownCollection, collection), "unknown collection")
		return
	}

	var records []json.RawMessage
	if err := decodeJSON(r, &records); err != nil {
		h.fail(w, r, "*Handler.importRecords", err, "invalid import payload")
		return
	}

	report := importReport{Outcomes: make(map[string]int)}
	for i, raw := range records {
		outcome, err := upsert(ctx, raw)
		if err != nil {
			report.Failed = append(report.Failed, importFailure{Index: i, Error: err.Error()})
			continue
		}
		report.Outcomes[outcome.String()]++
	}

	utils.WriteJSON(w, report, http.StatusOK)
}
