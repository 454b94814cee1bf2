package http

import (
	"context"
	"net/http"

	"github.com/MKhiriev/go-fish-log/internal/service"
	"github.com/MKhiriev/go-fish-log/internal/utils"
)

type migrationAccepted struct {
	Status string `json:"status"`
}

// runMigration starts an encryption migration pass. Precondition failures
// and passes that finish at once are answered directly; otherwise 202 is
// returned while the pass keeps running. ?wait=true blocks until it ends.
func (h *Handler) runMigration(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	task := h.services.MigrationJob.Run(context.WithoutCancel(ctx))

	if !wantsWait(r) {
		select {
		case <-task.Done():
		default:
			utils.WriteJSON(w, migrationAccepted{Status: service.MigrationRunning.String()}, http.StatusAccepted)
			return
		}
	}

	summary, err := task.Wait(ctx)
	if err != nil {
		h.fail(w, r, "*Handler.runMigration", err, "migration failed")
		return
	}
	utils.WriteJSON(w, summary, http.StatusOK)
}

func (h *Handler) abortMigration(w http.ResponseWriter, r *http.Request) {
	if err := h.services.MigrationJob.Abort(r.Context()); err != nil {
		h.fail(w, r, "*Handler.abortMigration", err, "error aborting migration")
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// resetMigration runs behind auth and resets the token's user.
func (h *Handler) resetMigration(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := utils.GetUserIDFromContext(ctx)

	if err := h.services.MigrationJob.Reset(ctx, userID); err != nil {
		h.fail(w, r, "*Handler.resetMigration", err, "error resetting migration")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) migrationState(w http.ResponseWriter, r *http.Request) {
	session := h.services.DataService.Session()
	if !session.IsAuthenticated() {
		h.fail(w, r, "*Handler.migrationState", service.ErrNotAuthenticated, "no user is signed in")
		return
	}

	state, err := h.services.MigrationJob.State(r.Context(), session.UserID)
	if err != nil {
		h.fail(w, r, "*Handler.migrationState", err, "error reading migration state")
		return
	}
	utils.WriteJSON(w, state, http.StatusOK)
}
