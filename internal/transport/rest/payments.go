package rest

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/AstroMined/debtonator-sub002/internal/domain"
	"github.com/AstroMined/debtonator-sub002/internal/repository"
	"github.com/AstroMined/debtonator-sub002/internal/service"
	"github.com/AstroMined/debtonator-sub002/internal/transport/auth"

	"github.com/go-chi/chi/v5"
)

type sourceRequest struct {
	AccountID int64   `json:"account_id"`
	Amount    float64 `json:"amount"`
}

type paymentCreateRequest struct {
	Amount      *float64        `json:"amount"`
	PaymentDate *time.Time      `json:"payment_date"`
	Category    *string         `json:"category"`
	Description *string         `json:"description"`
	LiabilityID *int64          `json:"liability_id"`
	IncomeID    *int64          `json:"income_id"`
	Sources     []sourceRequest `json:"sources"`
}

type paymentUpdateRequest struct {
	Amount      *float64        `json:"amount"`
	PaymentDate *time.Time      `json:"payment_date"`
	Category    *string         `json:"category"`
	Description *string         `json:"description"`
	LiabilityID *int64          `json:"liability_id"`
	IncomeID    *int64          `json:"income_id"`
	Sources     []sourceRequest `json:"sources"`
}

type sourceView struct {
	ID        string  `json:"id"`
	AccountID int64   `json:"account_id"`
	Amount    float64 `json:"amount"`
}

type paymentView struct {
	ID          string       `json:"id"`
	LiabilityID *int64       `json:"liability_id"`
	IncomeID    *int64       `json:"income_id"`
	Amount      float64      `json:"amount"`
	PaymentDate time.Time    `json:"payment_date"`
	Category    string       `json:"category"`
	Description *string      `json:"description"`
	Sources     []sourceView `json:"sources"`
}

func toPaymentView(p *domain.Payment) paymentView {
	v := paymentView{
		ID:          p.ID,
		LiabilityID: p.LiabilityID,
		IncomeID:    p.IncomeID,
		Amount:      p.Amount,
		PaymentDate: p.PaymentDate,
		Category:    p.Category,
		Description: p.Description,
		Sources:     []sourceView{},
	}
	for _, s := range p.Sources {
		v.Sources = append(v.Sources, sourceView{ID: s.ID, AccountID: s.AccountID, Amount: s.Amount})
	}
	return v
}

func (h *Handler) createPayment(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.GetUserID(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	var req paymentCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorBadRequest(w, "invalid JSON")
		return
	}

	if req.Amount == nil {
		ErrorBadRequest(w, "amount is required")
		return
	}
	if req.PaymentDate == nil {
		ErrorBadRequest(w, "payment_date is required")
		return
	}
	if req.Category == nil || *req.Category == "" {
		ErrorBadRequest(w, "category is required")
		return
	}

	in := service.PaymentCreate{
		Amount:      *req.Amount,
		PaymentDate: *req.PaymentDate,
		Category:    *req.Category,
		Description: req.Description,
		LiabilityID: req.LiabilityID,
		IncomeID:    req.IncomeID,
		Sources:     toSourceInputs(req.Sources),
	}

	p, err := h.payments.Create(r.Context(), userID, in)
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}

	SuccessCreated(w, "payment created", toPaymentView(p))
}

func (h *Handler) updatePayment(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.GetUserID(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	paymentID := chi.URLParam(r, "payment_id")
	if paymentID == "" {
		ErrorBadRequest(w, "payment_id is required")
		return
	}

	var req paymentUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorBadRequest(w, "invalid JSON")
		return
	}

	patch := service.PaymentUpdate{
		Amount:      req.Amount,
		PaymentDate: req.PaymentDate,
		Category:    req.Category,
		Description: req.Description,
		LiabilityID: req.LiabilityID,
		IncomeID:    req.IncomeID,
	}
	if req.Sources != nil {
		patch.Sources = toSourceInputs(req.Sources)
	}

	p, err := h.payments.Update(r.Context(), userID, paymentID, patch)
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}

	Success(w, "payment updated", toPaymentView(p))
}

func (h *Handler) deletePayment(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.GetUserID(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	paymentID := chi.URLParam(r, "payment_id")
	if paymentID == "" {
		ErrorBadRequest(w, "payment_id is required")
		return
	}

	existed, err := h.payments.Delete(r.Context(), userID, paymentID)
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}

	Success(w, "", map[string]any{"deleted": existed})
}

func (h *Handler) getPayment(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "payment_id")
	if paymentID == "" {
		ErrorBadRequest(w, "payment_id is required")
		return
	}

	p, err := h.payments.Get(r.Context(), paymentID)
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}

	Success(w, "", toPaymentView(p))
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	filter, err := parsePaymentsFilter(r)
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	payments, err := h.payments.List(r.Context(), filter)
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}

	views := make([]paymentView, 0, len(payments))
	for i := range payments {
		views = append(views, toPaymentView(&payments[i]))
	}
	Success(w, "", views)
}

func toSourceInputs(in []sourceRequest) []service.SourceInput {
	out := make([]service.SourceInput, 0, len(in))
	for _, s := range in {
		out = append(out, service.SourceInput{AccountID: s.AccountID, Amount: s.Amount})
	}
	return out
}

func parsePaymentsFilter(r *http.Request) (repository.PaymentsFilter, error) {
	var f repository.PaymentsFilter
	q := r.URL.Query()

	if v := q.Get("start_date"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return f, &ValidationError{Field: "start_date", Message: "must be YYYY-MM-DD"}
		}
		f.StartDate = &t
	}
	if v := q.Get("end_date"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return f, &ValidationError{Field: "end_date", Message: "must be YYYY-MM-DD"}
		}
		f.EndDate = &t
	}
	if v := q.Get("category"); v != "" {
		f.Category = &v
	}
	if v := q.Get("liability_id"); v != "" {
		id, err := parseInt64(v)
		if err != nil {
			return f, &ValidationError{Field: "liability_id", Message: "must be an integer"}
		}
		f.LiabilityID = &id
	}
	if v := q.Get("account_id"); v != "" {
		id, err := parseInt64(v)
		if err != nil {
			return f, &ValidationError{Field: "account_id", Message: "must be an integer"}
		}
		f.AccountID = &id
	}
	return f, nil
}
