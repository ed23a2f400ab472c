package rest

import (
	"log"
	"net/http"
)

func (h *Handler) crossAccountAnalysis(w http.ResponseWriter, r *http.Request) {
	ids, err := parseInt64List(r.URL.Query().Get("account_ids"))
	if err != nil {
		ErrorBadRequest(w, "account_ids must be a comma-separated list of integers")
		return
	}

	analysis, err := h.analytics.CrossAccountAnalysis(r.Context(), ids)
	if err != nil {
		log.Printf("[HTTP] crossAccountAnalysis error: %v", err)
		ErrorFromDomain(w, err)
		return
	}

	Success(w, "", analysis)
}
