package rest

import (
	"log"
	"net/http"
)

func (h *Handler) cashflowSnapshot(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.cashflow.Snapshot(r.Context())
	if err != nil {
		log.Printf("[HTTP] cashflowSnapshot error: %v", err)
		ErrorFromDomain(w, err)
		return
	}

	Success(w, "", snapshot)
}
