package http

import (
	"net/http"

	"github.com/MKhiriev/go-fish-log/internal/utils"
	"github.com/MKhiriev/go-fish-log/models"
	"github.com/go-chi/chi/v5"
)

func (h *Handler) listWeatherForTrip(w http.ResponseWriter, r *http.Request) {
	tripID, err := tripIDParam(r)
	if err != nil {
		h.fail(w, r, "*Handler.listWeatherForTrip", err, "invalid trip id")
		return
	}

	logs, err := h.services.DataService.GetWeatherLogsForTrip(r.Context(), tripID)
	if err != nil {
		h.fail(w, r, "*Handler.listWeatherForTrip", err, "error listing weather logs")
		return
	}
	utils.WriteJSON(w, nonNil(logs), http.StatusOK)
}

func (h *Handler) listWeather(w http.ResponseWriter, r *http.Request) {
	logs, err := h.services.DataService.GetAllWeatherLogs(r.Context())
	if err != nil {
		h.fail(w, r, "*Handler.listWeather", err, "error listing weather logs")
		return
	}
	utils.WriteJSON(w, nonNil(logs), http.StatusOK)
}

func (h *Handler) createWeather(w http.ResponseWriter, r *http.Request) {
	var log models.WeatherLog
	if err := decodeJSON(r, &log); err != nil {
		h.fail(w, r, "*Handler.createWeather", err, "invalid weather log")
		return
	}

	saved, outcome, err := h.services.DataService.CreateWeatherLog(r.Context(), log)
	if err != nil {
		h.fail(w, r, "*Handler.createWeather", err, "error creating weather log")
		return
	}
	utils.WriteJSON(w, writeResponse[models.WeatherLog]{Record: saved, Outcome: outcome.String()}, http.StatusCreated)
}

func (h *Handler) updateWeather(w http.ResponseWriter, r *http.Request) {
	var log models.WeatherLog
	if err := decodeJSON(r, &log); err != nil {
		h.fail(w, r, "*Handler.updateWeather", err, "invalid weather log")
		return
	}
	log.ID = chi.URLParam(r, "id")

	saved, outcome, err := h.services.DataService.UpdateWeatherLog(r.Context(), log)
	if err != nil {
		h.fail(w, r, "*Handler.updateWeather", err, "error updating weather log")
		return
	}
	utils.WriteJSON(w, writeResponse[models.WeatherLog]{Record: saved, Outcome: outcome.String()}, http.StatusOK)
}

func (h *Handler) deleteWeather(w http.ResponseWriter, r *http.Request) {
	outcome, err := h.services.DataService.DeleteWeatherLog(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "*Handler.deleteWeather", err, "error deleting weather log")
		return
	}
	utils.WriteJSON(w, outcomeResponse{Outcome: outcome.String()}, http.StatusOK)
}

func (h *Handler) listFishForTrip(w http.ResponseWriter, r *http.Request) {
	tripID, err := tripIDParam(r)
	if err != nil {
		h.fail(w, r, "*Handler.listFishForTrip", err, "invalid trip id")
		return
	}

	fish, err := h.services.DataService.GetFishCaughtForTrip(r.Context(), tripID)
	if err != nil {
		h.fail(w, r, "*Handler.listFishForTrip", err, "error listing catches")
		return
	}
	utils.WriteJSON(w, nonNil(fish), http.StatusOK)
}

func (h *Handler) listFish(w http.ResponseWriter, r *http.Request) {
	fish, err := h.services.DataService.GetAllFishCaught(r.Context())
	if err != nil {
		h.fail(w, r, "*Handler.listFish", err, "error listing catches")
		return
	}
	utils.WriteJSON(w, nonNil(fish), http.StatusOK)
}

func (h *Handler) createFish(w http.ResponseWriter, r *http.Request) {
	var fish models.FishCaught
	if err := decodeJSON(r, &fish); err != nil {
		h.fail(w, r, "*Handler.createFish", err, "invalid catch")
		return
	}

	saved, outcome, err := h.services.DataService.CreateFishCaught(r.Context(), fish)
	if err != nil {
		h.fail(w, r, "*Handler.createFish", err, "error creating catch")
		return
	}
	utils.WriteJSON(w, writeResponse[models.FishCaught]{Record: saved, Outcome: outcome.String()}, http.StatusCreated)
}

func (h *Handler) updateFish(w http.ResponseWriter, r *http.Request) {
	var fish models.FishCaught
	if err := decodeJSON(r, &fish); err != nil {
		h.fail(w, r, "*Handler.updateFish", err, "invalid catch")
		return
	}
	fish.ID = chi.URLParam(r, "id")

	saved, outcome, err := h.services.DataService.UpdateFishCaught(r.Context(), fish)
	if err != nil {
		h.fail(w, r, "*Handler.updateFish", err, "error updating catch")
		return
	}
	utils.WriteJSON(w, writeResponse[models.FishCaught]{Record: saved, Outcome: outcome.String()}, http.StatusOK)
}

func (h *Handler) deleteFish(w http.ResponseWriter, r *http.Request) {
	outcome, err := h.services.DataService.DeleteFishCaught(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "*Handler.deleteFish", err, "error deleting catch")
		return
	}
	utils.WriteJSON(w, outcomeResponse{Outcome: outcome.String()}, http.StatusOK)
}

// getFishPhoto serves the decoded photo bytes, decrypting stored blobs.
func (h *Handler) getFishPhoto(w http.ResponseWriter, r *http.Request) {
	data, mime, err := h.services.DataService.GetFishPhoto(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "*Handler.getFishPhoto", err, "error reading photo")
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
