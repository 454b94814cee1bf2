package http

import (
	"net/http"

	"github.com/MKhiriev/go-fish-log/internal/utils"
	"github.com/MKhiriev/go-fish-log/models"
)

// listTrips returns every trip, or the trips of one day with ?date=YYYY-MM-DD.
func (h *Handler) listTrips(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var (
		trips []models.Trip
		err   error
	)
	if date := r.URL.Query().Get("date"); date != "" {
		trips, err = h.services.DataService.GetTripsByDate(ctx, date)
	} else {
		trips, err = h.services.DataService.GetAllTrips(ctx)
	}
	if err != nil {
		h.fail(w, r, "*Handler.listTrips", err, "error listing trips")
		return
	}

	utils.WriteJSON(w, nonNil(trips), http.StatusOK)
}

func (h *Handler) getTrip(w http.ResponseWriter, r *http.Request) {
	id, err := tripIDParam(r)
	if err != nil {
		h.fail(w, r, "*Handler.getTrip", err, "invalid trip id")
		return
	}

	trip, err := h.services.DataService.GetTrip(r.Context(), id)
	if err != nil {
		h.fail(w, r, "*Handler.getTrip", err, "error getting trip")
		return
	}
	utils.WriteJSON(w, trip, http.StatusOK)
}

func (h *Handler) createTrip(w http.ResponseWriter, r *http.Request) {
	var trip models.Trip
	if err := decodeJSON(r, &trip); err != nil {
		h.fail(w, r, "*Handler.createTrip", err, "invalid trip")
		return
	}

	saved, outcome, err := h.services.DataService.CreateTrip(r.Context(), trip)
	if err != nil {
		h.fail(w, r, "*Handler.createTrip", err, "error creating trip")
		return
	}
	utils.WriteJSON(w, writeResponse[models.Trip]{Record: saved, Outcome: outcome.String()}, http.StatusCreated)
}

// updateTrip takes the id from the path; an id in the body is ignored.
func (h *Handler) updateTrip(w http.ResponseWriter, r *http.Request) {
	id, err := tripIDParam(r)
	if err != nil {
		h.fail(w, r, "*Handler.updateTrip", err, "invalid trip id")
		return
	}

	var trip models.Trip
	if err = decodeJSON(r, &trip); err != nil {
		h.fail(w, r, "*Handler.updateTrip", err, "invalid trip")
		return
	}
	trip.ID = id

	saved, outcome, err := h.services.DataService.UpdateTrip(r.Context(), trip)
	if err != nil {
		h.fail(w, r, "*Handler.updateTrip", err, "error updating trip")
		return
	}
	utils.WriteJSON(w, writeResponse[models.Trip]{Record: saved, Outcome: outcome.String()}, http.StatusOK)
}

// deleteTrip removes the trip together with its weather logs and catches.
func (h *Handler) deleteTrip(w http.ResponseWriter, r *http.Request) {
	id, err := tripIDParam(r)
	if err != nil {
		h.fail(w, r, "*Handler.deleteTrip", err, "invalid trip id")
		return
	}

	outcome, err := h.services.DataService.DeleteTrip(r.Context(), id)
	if err != nil {
		h.fail(w, r, "*Handler.deleteTrip", err, "error deleting trip")
		return
	}
	utils.WriteJSON(w, outcomeResponse{Outcome: outcome.String()}, http.StatusOK)
}
