package rest

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/AstroMined/debtonator-sub002/internal/repository"
	"github.com/AstroMined/debtonator-sub002/internal/transport/auth"

	"github.com/go-chi/chi/v5"
)

type ExportListService interface {
	GetExports(ctx context.Context, userID int64) ([]any, error)
	GetExport(ctx context.Context, exportID string, userID int64) (any, error)
}

type PaymentExporter interface {
	StartPaymentsExport(ctx context.Context, selected []string, filter repository.PaymentsFilter, userID int64) (string, error)
}

type paymentsExportRequest struct {
	Fields      []string `json:"fields"`
	StartDate   *string  `json:"start_date"`
	EndDate     *string  `json:"end_date"`
	Category    *string  `json:"category"`
	LiabilityID *int64   `json:"liability_id"`
	AccountID   *int64   `json:"account_id"`
}

func (req *paymentsExportRequest) toFilter() (repository.PaymentsFilter, error) {
	var f repository.PaymentsFilter
	if req.StartDate != nil && *req.StartDate != "" {
		t, err := time.Parse("2006-01-02", *req.StartDate)
		if err != nil {
			return f, &ValidationError{Field: "start_date", Message: "must be YYYY-MM-DD or empty"}
		}
		f.StartDate = &t
	}
	if req.EndDate != nil && *req.EndDate != "" {
		t, err := time.Parse("2006-01-02", *req.EndDate)
		if err != nil {
			return f, &ValidationError{Field: "end_date", Message: "must be YYYY-MM-DD or empty"}
		}
		f.EndDate = &t
	}
	if req.Category != nil && *req.Category != "" {
		f.Category = req.Category
	}
	f.LiabilityID = req.LiabilityID
	f.AccountID = req.AccountID
	return f, nil
}

func (h *Handler) exportPayments(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.GetUserID(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	var req paymentsExportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		ErrorBadRequest(w, "invalid JSON")
		return
	}

	filter, err := req.toFilter()
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	exportID, err := h.exporter.StartPaymentsExport(r.Context(), req.Fields, filter, userID)
	if err != nil {
		log.Printf("[HTTP] startPaymentsExport error: %v", err)
		ErrorInternal(w, "failed to start export")
		return
	}

	SuccessAccepted(w, "export queued", map[string]any{"export_id": exportID})
}

func (h *Handler) listExports(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.GetUserID(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	exports, err := h.exportList.GetExports(r.Context(), userID)
	if err != nil {
		log.Printf("[HTTP] listExports error: %v", err)
		ErrorInternal(w, "failed to get exports")
		return
	}

	Success(w, "", exports)
}

func (h *Handler) getExport(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.GetUserID(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	exportIDParam := chi.URLParam(r, "export_id")
	if exportIDParam == "" {
		ErrorBadRequest(w, "export_id is required")
		return
	}
	exportID := "exports:" + exportIDParam

	export, err := h.exportList.GetExport(r.Context(), exportID, userID)
	if err != nil {
		log.Printf("[HTTP] getExport error: %v", err)
		ErrorNotFound(w, "export not found")
		return
	}

	Success(w, "", export)
}
