package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/MKhiriev/go-fish-log/internal/service"
	"github.com/MKhiriev/go-fish-log/internal/utils"
)

func (h *Handler) syncStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.services.DataService.SyncStatus(r.Context())
	if err != nil {
		h.fail(w, r, "*Handler.syncStatus", err, "error getting sync status")
		return
	}
	utils.WriteJSON(w, status, http.StatusOK)
}

// drain applies the sync queue and waits for the result. With
// ?aggressive=true entries that still fail are moved to quarantine.
func (h *Handler) drain(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	aggressive, _ := strconv.ParseBool(r.URL.Query().Get("aggressive"))

	var (
		result service.DrainResult
		err    error
	)
	if aggressive {
		result, err = h.services.DataService.DrainSyncQueueAggressive(ctx)
	} else {
		result, err = h.services.DataService.DrainSyncQueue(context.WithoutCancel(ctx)).Wait(ctx)
	}
	if err != nil {
		h.fail(w, r, "*Handler.drain", err, "error draining sync queue")
		return
	}

	utils.WriteJSON(w, result, http.StatusOK)
}
