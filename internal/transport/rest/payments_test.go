package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/AstroMined/debtonator-sub002/internal/domain"
	"github.com/AstroMined/debtonator-sub002/internal/repository"
	"github.com/AstroMined/debtonator-sub002/internal/service"
	"github.com/AstroMined/debtonator-sub002/internal/transport/auth"
)

type fakePayments struct {
	createErr  error
	updateErr  error
	deleted    bool
	lastCreate service.PaymentCreate
	lastFilter repository.PaymentsFilter
	payment    *domain.Payment
	list       []domain.Payment
}

func (f *fakePayments) Create(ctx context.Context, userID int64, in service.PaymentCreate) (*domain.Payment, error) {
	f.lastCreate = in
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.payment, nil
}

func (f *fakePayments) Update(ctx context.Context, userID int64, paymentID string, patch service.PaymentUpdate) (*domain.Payment, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return f.payment, nil
}

func (f *fakePayments) Delete(ctx context.Context, userID int64, paymentID string) (bool, error) {
	return f.deleted, nil
}

func (f *fakePayments) Get(ctx context.Context, paymentID string) (*domain.Payment, error) {
	if f.payment == nil {
		return nil, domain.NewNotFoundError("payment " + paymentID + " not found")
	}
	return f.payment, nil
}

func (f *fakePayments) List(ctx context.Context, filter repository.PaymentsFilter) ([]domain.Payment, error) {
	f.lastFilter = filter
	return f.list, nil
}

// testAuth injects a fixed user the way the token middleware would.
func testAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), auth.UserIDKey, int64(1))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func newTestServer(fake *fakePayments, withAuth bool) *httptest.Server {
	h := NewHandler(fake, nil, nil, nil, nil)
	if withAuth {
		return httptest.NewServer(h.InitRouterWithAuth(testAuth))
	}
	return httptest.NewServer(h.InitRouter())
}

func samplePayment() *domain.Payment {
	desc := "rent for june"
	return &domain.Payment{
		ID:          "4b8c7e2a-1f2d-4d0a-9a6c-000000000001",
		Amount:      150,
		PaymentDate: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		Category:    "housing",
		Description: &desc,
		Sources: []domain.PaymentSource{
			{ID: "s1", AccountID: 1, Amount: 100},
			{ID: "s2", AccountID: 2, Amount: 50},
		},
	}
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, APIResponse) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	var env APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return resp, env
}

func TestCreatePayment(t *testing.T) {
	fake := &fakePayments{payment: samplePayment()}
	ts := newTestServer(fake, true)
	defer ts.Close()

	body := map[string]any{
		"amount":       150,
		"payment_date": "2025-06-01T00:00:00Z",
		"category":     "housing",
		"sources": []map[string]any{
			{"account_id": 1, "amount": 100},
			{"account_id": 2, "amount": 50},
		},
	}

	resp, env := doJSON(t, http.MethodPost, ts.URL+"/payments", body)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if env.Status != "success" {
		t.Fatalf("expected success, got %s: %s", env.Status, env.Message)
	}

	if fake.lastCreate.Amount != 150 || fake.lastCreate.Category != "housing" {
		t.Fatalf("service received wrong input: %+v", fake.lastCreate)
	}
	if len(fake.lastCreate.Sources) != 2 || fake.lastCreate.Sources[1].AccountID != 2 {
		t.Fatalf("service received wrong sources: %+v", fake.lastCreate.Sources)
	}

	data, ok := env.Data.(map[string]any)
	if !ok {
		t.Fatalf("expected object data, got %T", env.Data)
	}
	if data["id"] != "4b8c7e2a-1f2d-4d0a-9a6c-000000000001" {
		t.Fatalf("unexpected payment id in response: %v", data["id"])
	}
}

func TestCreatePayment_MissingFields(t *testing.T) {
	fake := &fakePayments{payment: samplePayment()}
	ts := newTestServer(fake, true)
	defer ts.Close()

	cases := []struct {
		name string
		body map[string]any
	}{
		{"no amount", map[string]any{"payment_date": "2025-06-01T00:00:00Z", "category": "housing"}},
		{"no payment_date", map[string]any{"amount": 10, "category": "housing"}},
		{"no category", map[string]any{"amount": 10, "payment_date": "2025-06-01T00:00:00Z"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, env := doJSON(t, http.MethodPost, ts.URL+"/payments", tc.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", resp.StatusCode)
			}
			if env.Status != "error" {
				t.Fatalf("expected error status, got %s", env.Status)
			}
		})
	}
}

func TestCreatePayment_DomainErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"validation", domain.NewValidationError("sources", "payment must have at least one source"), http.StatusBadRequest},
		{"reference", domain.NewReferenceError("account_id", "account 999 does not exist"), http.StatusBadRequest},
		{"insufficient funds", domain.NewInsufficientFundsError("account 4 has 50.00 available, need 100.00"), http.StatusUnprocessableEntity},
		{"insufficient credit", domain.NewInsufficientCreditError("account 3 has 800.00 credit available, need 900.00"), http.StatusUnprocessableEntity},
	}

	body := map[string]any{
		"amount":       100,
		"payment_date": "2025-06-01T00:00:00Z",
		"category":     "housing",
		"sources":      []map[string]any{{"account_id": 1, "amount": 100}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fake := &fakePayments{createErr: tc.err}
			ts := newTestServer(fake, true)
			defer ts.Close()

			resp, env := doJSON(t, http.MethodPost, ts.URL+"/payments", body)
			if resp.StatusCode != tc.wantStatus {
				t.Fatalf("expected %d, got %d", tc.wantStatus, resp.StatusCode)
			}
			if env.Status != "error" {
				t.Fatalf("expected error status, got %s", env.Status)
			}
		})
	}
}

func TestCreatePayment_Unauthorized(t *testing.T) {
	fake := &fakePayments{payment: samplePayment()}
	ts := newTestServer(fake, false)
	defer ts.Close()

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/payments", map[string]any{"amount": 1})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestUpdatePayment_NotFound(t *testing.T) {
	fake := &fakePayments{updateErr: domain.NewNotFoundError("payment missing not found")}
	ts := newTestServer(fake, true)
	defer ts.Close()

	resp, _ := doJSON(t, http.MethodPut, ts.URL+"/payments/missing", map[string]any{"amount": 20})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestDeletePayment_Idempotent(t *testing.T) {
	fake := &fakePayments{deleted: false}
	ts := newTestServer(fake, true)
	defer ts.Close()

	resp, env := doJSON(t, http.MethodDelete, ts.URL+"/payments/whatever", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	data, ok := env.Data.(map[string]any)
	if !ok {
		t.Fatalf("expected object data, got %T", env.Data)
	}
	if data["deleted"] != false {
		t.Fatalf("expected deleted=false, got %v", data["deleted"])
	}
}

func TestListPayments_FilterParsing(t *testing.T) {
	fake := &fakePayments{list: []domain.Payment{*samplePayment()}}
	ts := newTestServer(fake, true)
	defer ts.Close()

	resp, env := doJSON(t, http.MethodGet,
		ts.URL+"/payments/?start_date=2025-06-01&end_date=2025-06-30&category=housing&account_id=2", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	f := fake.lastFilter
	if f.StartDate == nil || !f.StartDate.Equal(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("start_date not parsed: %+v", f.StartDate)
	}
	if f.EndDate == nil || f.Category == nil || *f.Category != "housing" {
		t.Fatalf("filter not parsed: %+v", f)
	}
	if f.AccountID == nil || *f.AccountID != 2 {
		t.Fatalf("account_id not parsed: %+v", f.AccountID)
	}

	items, ok := env.Data.([]any)
	if !ok || len(items) != 1 {
		t.Fatalf("expected one payment in response, got %v", env.Data)
	}
}

func TestListPayments_BadDate(t *testing.T) {
	fake := &fakePayments{}
	ts := newTestServer(fake, true)
	defer ts.Close()

	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/payments/?start_date=june", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestGetPayment(t *testing.T) {
	fake := &fakePayments{payment: samplePayment()}
	ts := newTestServer(fake, true)
	defer ts.Close()

	resp, env := doJSON(t, http.MethodGet, ts.URL+"/payments/"+fake.payment.ID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	data := env.Data.(map[string]any)
	sources, ok := data["sources"].([]any)
	if !ok || len(sources) != 2 {
		t.Fatalf("expected two sources in view, got %v", data["sources"])
	}
}
