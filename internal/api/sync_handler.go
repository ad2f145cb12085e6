package api

import (
	"net/http"

	"github.com/blagoySimandov/proaccount/internal/logging"
	"github.com/blagoySimandov/proaccount/internal/reconcile"
)

type SyncHandler struct {
	reconciler *reconcile.Reconciler
}

// NewSyncHandler takes a nil reconciler when no payment provider key is set.
func NewSyncHandler(reconciler *reconcile.Reconciler) *SyncHandler {
	return &SyncHandler{reconciler: reconciler}
}

func (h *SyncHandler) Run(w http.ResponseWriter, r *http.Request) {
	if h.reconciler == nil {
		writeError(w, http.StatusInternalServerError, configurationError)
		return
	}

	summary, err := reconcile.RunAndRecord(r.Context(), h.reconciler, "http")
	if summary != nil && summary.Stats != nil {
		logging.EnrichSync(r.Context(), summary.Stats.TotalUsers, summary.Stats.UpdatedUsers, summary.Stats.ErrorCount)
	}
	if err != nil {
		logging.EnrichError(r.Context(), err, "sync")
		if summary != nil {
			writeJSON(w, http.StatusInternalServerError, summary)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to fetch users from database")
		return
	}

	writeJSON(w, http.StatusOK, summary)
}
