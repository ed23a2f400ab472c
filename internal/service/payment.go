package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/AstroMined/debtonator-sub002/internal/clients"
	"github.com/AstroMined/debtonator-sub002/internal/domain"
	"github.com/AstroMined/debtonator-sub002/internal/repository"

	"github.com/google/uuid"
)

type PaymentStore interface {
	Create(ctx context.Context, p *domain.Payment) error
	Update(ctx context.Context, p *domain.Payment, replaceSources bool) error
	Delete(ctx context.Context, id string) (bool, error)
	GetByID(ctx context.Context, id string) (*domain.Payment, error)
	List(ctx context.Context, f repository.PaymentsFilter) ([]domain.Payment, error)
	IncomeExists(ctx context.Context, id int64) (bool, error)
}

type AccountLedger interface {
	GetByID(ctx context.Context, id int64) (*domain.Account, error)
}

type LiabilityStore interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

type SourceInput struct {
	AccountID int64
	Amount    float64
}

type PaymentCreate struct {
	Amount      float64
	PaymentDate time.Time
	Category    string
	Description *string
	LiabilityID *int64
	IncomeID    *int64
	Sources     []SourceInput
}

// PaymentUpdate carries the fields of a partial update; nil means unchanged.
// Sources, when present, replaces the full source set.
type PaymentUpdate struct {
	Amount      *float64
	PaymentDate *time.Time
	Category    *string
	Description *string
	LiabilityID *int64
	IncomeID    *int64
	Sources     []SourceInput
}

// PaymentService owns the payment/source aggregate: the sum invariant, the
// unique-account rule and the availability checks are enforced here because
// they are properties of the source set, not of any single row.
type PaymentService struct {
	repo        PaymentStore
	accounts    AccountLedger
	liabilities LiabilityStore
	registry    *domain.AccountTypeRegistry
	cashflow    *CashflowService
	ws          *clients.WebSocketClient
}

func NewPaymentService(
	repo PaymentStore,
	accounts AccountLedger,
	liabilities LiabilityStore,
	registry *domain.AccountTypeRegistry,
	cashflow *CashflowService,
	ws *clients.WebSocketClient,
) *PaymentService {
	return &PaymentService{
		repo:        repo,
		accounts:    accounts,
		liabilities: liabilities,
		registry:    registry,
		cashflow:    cashflow,
		ws:          ws,
	}
}

func (s *PaymentService) Create(ctx context.Context, userID int64, in PaymentCreate) (*domain.Payment, error) {
	if in.Amount <= 0 {
		return nil, domain.NewValidationError("amount", "amount must be positive")
	}
	if in.Category == "" {
		return nil, domain.NewValidationError("category", "category is required")
	}

	sources := toSources(in.Sources)
	if err := s.validateSources(ctx, in.Amount, sources); err != nil {
		return nil, err
	}
	if err := s.validateReferences(ctx, in.LiabilityID, in.IncomeID); err != nil {
		return nil, err
	}

	p := &domain.Payment{
		ID:          uuid.NewString(),
		LiabilityID: in.LiabilityID,
		IncomeID:    in.IncomeID,
		Amount:      in.Amount,
		PaymentDate: in.PaymentDate.UTC(),
		Category:    in.Category,
		Description: in.Description,
		Sources:     sources,
	}
	for i := range p.Sources {
		p.Sources[i].ID = uuid.NewString()
		p.Sources[i].PaymentID = p.ID
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}

	s.notifyCashflow(ctx, userID)
	return p, nil
}

func (s *PaymentService) Update(ctx context.Context, userID int64, paymentID string, patch PaymentUpdate) (*domain.Payment, error) {
	p, err := s.repo.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	if patch.Amount != nil {
		if *patch.Amount <= 0 {
			return nil, domain.NewValidationError("amount", "amount must be positive")
		}
		p.Amount = *patch.Amount
	}
	if patch.PaymentDate != nil {
		p.PaymentDate = patch.PaymentDate.UTC()
	}
	if patch.Category != nil {
		if *patch.Category == "" {
			return nil, domain.NewValidationError("category", "category is required")
		}
		p.Category = *patch.Category
	}
	if patch.Description != nil {
		p.Description = patch.Description
	}
	if patch.LiabilityID != nil {
		p.LiabilityID = patch.LiabilityID
	}
	if patch.IncomeID != nil {
		p.IncomeID = patch.IncomeID
	}
	if err := s.validateReferences(ctx, p.LiabilityID, p.IncomeID); err != nil {
		return nil, err
	}

	replaceSources := patch.Sources != nil
	if replaceSources {
		sources := toSources(patch.Sources)
		if err := s.validateSources(ctx, p.Amount, sources); err != nil {
			return nil, err
		}
		for i := range sources {
			sources[i].ID = uuid.NewString()
			sources[i].PaymentID = p.ID
		}
		p.Sources = sources
	} else if patch.Amount != nil {
		// An amount-only update must still agree with the existing split;
		// changing the total requires a new source set otherwise.
		if !domain.SumMatches(p.Amount, p.Sources) {
			return nil, domain.NewValidationError("amount",
				"amount no longer matches existing sources; provide a new source set")
		}
	}

	if err := s.repo.Update(ctx, p, replaceSources); err != nil {
		return nil, err
	}

	s.notifyCashflow(ctx, userID)
	return p, nil
}

// Delete removes the payment and its sources in one transaction. Deleting an
// unknown id is not an error; the bool reports whether anything was removed.
func (s *PaymentService) Delete(ctx context.Context, userID int64, paymentID string) (bool, error) {
	existed, err := s.repo.Delete(ctx, paymentID)
	if err != nil {
		return false, err
	}
	if existed {
		s.notifyCashflow(ctx, userID)
	}
	return existed, nil
}

func (s *PaymentService) Get(ctx context.Context, paymentID string) (*domain.Payment, error) {
	return s.repo.GetByID(ctx, paymentID)
}

func (s *PaymentService) List(ctx context.Context, f repository.PaymentsFilter) ([]domain.Payment, error) {
	return s.repo.List(ctx, f)
}

func (s *PaymentService) validateSources(ctx context.Context, amount float64, sources []domain.PaymentSource) error {
	if len(sources) == 0 {
		return domain.NewValidationError("sources", "at least one payment source is required")
	}

	seen := make(map[int64]bool, len(sources))
	for _, src := range sources {
		if src.Amount <= 0 {
			return domain.NewValidationError("sources", fmt.Sprintf("source amount for account %d must be positive", src.AccountID))
		}
		if seen[src.AccountID] {
			return domain.NewValidationError("sources", fmt.Sprintf("account %d appears more than once in the split", src.AccountID))
		}
		seen[src.AccountID] = true
	}

	if !domain.SumMatches(amount, sources) {
		return domain.NewValidationError("sources", fmt.Sprintf(
			"source amounts sum to %.2f, payment amount is %.2f", domain.SourcesTotal(sources), amount))
	}

	for _, src := range sources {
		account, err := s.accounts.GetByID(ctx, src.AccountID)
		if err != nil {
			return err
		}
		if !s.registry.Known(account.Type) {
			return domain.NewValidationError("sources", fmt.Sprintf("account %d has unregistered type %q", account.ID, account.Type))
		}
		if err := account.CheckAvailability(src.Amount); err != nil {
			return err
		}
	}
	return nil
}

func (s *PaymentService) validateReferences(ctx context.Context, liabilityID, incomeID *int64) error {
	if liabilityID != nil {
		ok, err := s.liabilities.Exists(ctx, *liabilityID)
		if err != nil {
			return err
		}
		if !ok {
			return domain.NewReferenceError("liability_id", fmt.Sprintf("liability %d not found", *liabilityID))
		}
	}
	if incomeID != nil {
		ok, err := s.repo.IncomeExists(ctx, *incomeID)
		if err != nil {
			return err
		}
		if !ok {
			return domain.NewReferenceError("income_id", fmt.Sprintf("income %d not found", *incomeID))
		}
	}
	return nil
}

// notifyCashflow pushes a fresh snapshot to the user's websocket connections
// after a successful mutation. Best-effort; an error here must not fail the
// committed write.
func (s *PaymentService) notifyCashflow(ctx context.Context, userID int64) {
	if s.cashflow == nil || s.ws == nil {
		return
	}
	snapshot, err := s.cashflow.Snapshot(ctx)
	if err != nil {
		log.Printf("[PAYMENT] cashflow recompute after mutation failed: %v", err)
		return
	}
	if err := s.ws.NotifyCashflowUpdate(ctx, userID, snapshot); err != nil {
		log.Printf("[PAYMENT] cashflow push failed: %v", err)
	}
}

func toSources(in []SourceInput) []domain.PaymentSource {
	out := make([]domain.PaymentSource, 0, len(in))
	for _, s := range in {
		out = append(out, domain.PaymentSource{AccountID: s.AccountID, Amount: s.Amount})
	}
	return out
}
