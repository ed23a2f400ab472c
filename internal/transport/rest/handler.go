package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/AstroMined/debtonator-sub002/internal/domain"
	"github.com/AstroMined/debtonator-sub002/internal/repository"
	"github.com/AstroMined/debtonator-sub002/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type PaymentManager interface {
	Create(ctx context.Context, userID int64, in service.PaymentCreate) (*domain.Payment, error)
	Update(ctx context.Context, userID int64, paymentID string, patch service.PaymentUpdate) (*domain.Payment, error)
	Delete(ctx context.Context, userID int64, paymentID string) (bool, error)
	Get(ctx context.Context, paymentID string) (*domain.Payment, error)
	List(ctx context.Context, f repository.PaymentsFilter) ([]domain.Payment, error)
}

type AnalyticsEngine interface {
	CrossAccountAnalysis(ctx context.Context, accountIDs []int64) (*service.CrossAccountAnalysis, error)
}

type CashflowReader interface {
	Snapshot(ctx context.Context) (*service.CashflowSnapshot, error)
}

type Handler struct {
	payments   PaymentManager
	analytics  AnalyticsEngine
	cashflow   CashflowReader
	exporter   PaymentExporter
	exportList ExportListService
}

func NewHandler(
	payments PaymentManager,
	analytics AnalyticsEngine,
	cashflow CashflowReader,
	exporter PaymentExporter,
	exportList ExportListService,
) *Handler {
	return &Handler{
		payments:   payments,
		analytics:  analytics,
		cashflow:   cashflow,
		exporter:   exporter,
		exportList: exportList,
	}
}

func (h *Handler) InitRouter() *chi.Mux {
	return h.InitRouterWithAuth(nil)
}

func (h *Handler) InitRouterWithAuth(authMiddleware func(http.Handler) http.Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		middleware.Timeout(60*time.Second),
	)

	if authMiddleware != nil {
		r.Use(authMiddleware)
	}

	r.Route("/payments", func(r chi.Router) {
		r.Post("/", h.createPayment)
		r.Get("/", h.listPayments)
		r.Get("/{payment_id}", h.getPayment)
		r.Put("/{payment_id}", h.updatePayment)
		r.Delete("/{payment_id}", h.deletePayment)
	})

	r.Get("/analytics/cross-account", h.crossAccountAnalysis)
	r.Get("/cashflow", h.cashflowSnapshot)

	r.Route("/export", func(r chi.Router) {
		r.Get("/", h.listExports)
		r.Get("/{export_id}", h.getExport)
		r.Post("/payments", h.exportPayments)
	})

	return r
}
