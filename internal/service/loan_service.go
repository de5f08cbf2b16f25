package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dafibh/loanbook/loanbook-backend/internal/domain"
	"github.com/dafibh/loanbook/loanbook-backend/internal/view"
	"github.com/dafibh/loanbook/loanbook-backend/internal/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// LoanService handles loan business logic
type LoanService struct {
	loanRepo       domain.LoanRepository
	archiver       domain.LoanArchiver
	eventPublisher websocket.EventPublisher
	now            func() time.Time
}

// NewLoanService creates a new LoanService. archiver may be nil.
func NewLoanService(loanRepo domain.LoanRepository, archiver domain.LoanArchiver) *LoanService {
	return &LoanService{
		loanRepo: loanRepo,
		archiver: archiver,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetEventPublisher sets the event publisher for real-time updates
func (s *LoanService) SetEventPublisher(publisher websocket.EventPublisher) {
	s.eventPublisher = publisher
}

// publishEvent publishes a WebSocket event if a publisher is configured
func (s *LoanService) publishEvent(loanID uuid.UUID, event websocket.Event) {
	if s.eventPublisher != nil {
		s.eventPublisher.Publish(loanID, event)
	}
}

// CreateLoan opens a loan with an empty history and its initial balance
func (s *LoanService) CreateLoan(ctx context.Context, intent CreateLoanIntent) (*domain.Loan, error) {
	if err := intent.Validate(); err != nil {
		return nil, err
	}

	now := s.now()
	period := intent.InterestPeriod
	if period == "" {
		period = domain.InterestPeriodMonthly
	}

	loan := &domain.Loan{
		ID:             uuid.New(),
		Name:           strings.TrimSpace(intent.Name),
		Contact:        strings.TrimSpace(intent.Contact),
		Address:        strings.TrimSpace(intent.Address),
		Principal:      intent.Principal,
		TermMonths:     intent.TermMonths,
		InterestRate:   intent.InterestRate,
		InterestPeriod: period,
		MonthlyPayment: intent.MonthlyPayment,
		Payments:       []domain.Payment{},
		Penalties:      []domain.Penalty{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if intent.NextDueDate != nil {
		due := *intent.NextDueDate
		loan.NextDueDate = &due
	}
	loan.RemainingBalance = InitialBalance(loan.Principal, loan.InterestRate, loan.TermMonths, loan.InterestPeriod)

	created, err := s.loanRepo.Create(ctx, loan)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("loan_id", created.ID.String()).
		Str("remaining_balance", created.RemainingBalance.String()).
		Msg("Loan created")

	s.publishEvent(created.ID, websocket.LoanCreated(view.NewLoanResponse(created, s.now())))
	return created, nil
}

// GetLoans returns every loan, newest first
func (s *LoanService) GetLoans(ctx context.Context) ([]*domain.Loan, error) {
	loans, err := s.loanRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(loans, func(i, j int) bool {
		return loans[i].CreatedAt.After(loans[j].CreatedAt)
	})
	return loans, nil
}

// GetLoanByID retrieves a single loan
func (s *LoanService) GetLoanByID(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	return s.loanRepo.GetByID(ctx, id)
}

// GetLoanSummary returns the ledger breakdown of a loan
func (s *LoanService) GetLoanSummary(ctx context.Context, id uuid.UUID) (*LoanSummary, error) {
	loan, err := s.loanRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	summary := Summarize(loan)
	return &summary, nil
}

// Apply validates an intent and applies it to an existing loan atomically.
// CreateLoanIntent is rejected here; use CreateLoan.
func (s *LoanService) Apply(ctx context.Context, id uuid.UUID, intent Intent) (*domain.Loan, error) {
	if intent == nil {
		return nil, domain.ErrNoRecognizedUpdate
	}
	if err := intent.Validate(); err != nil {
		return nil, err
	}

	var event func(payload interface{}) websocket.Event
	switch intent.(type) {
	case RecordPaymentIntent:
		event = websocket.LoanPaymentRecorded
	case RecordPenaltyIntent:
		event = websocket.LoanPenaltyRecorded
	case EditTermsIntent:
		event = websocket.LoanUpdated
	default:
		return nil, domain.ErrUnsupportedLoanIntent
	}

	loan, err := s.loanRepo.Mutate(ctx, id, func(loan *domain.Loan) error {
		now := s.now()
		switch in := intent.(type) {
		case RecordPaymentIntent:
			if _, err := ApplyPayment(loan, in.input(), now); err != nil {
				return err
			}
		case RecordPenaltyIntent:
			ApplyPenalty(loan, PenaltyInput{Amount: in.Amount, Reason: in.Reason}, now)
		case EditTermsIntent:
			ApplyTermsEdit(loan, in.Update, now)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("loan_id", loan.ID.String()).
		Str("intent", fmt.Sprintf("%T", intent)).
		Str("remaining_balance", loan.RemainingBalance.String()).
		Str("status", string(loan.Status())).
		Msg("Loan updated")

	s.publishEvent(loan.ID, event(view.NewLoanResponse(loan, s.now())))
	return loan, nil
}

// DeleteLoan removes a loan. When an archiver is configured the loan is
// archived while the store holds it, and an archive failure keeps the loan.
func (s *LoanService) DeleteLoan(ctx context.Context, id uuid.UUID) error {
	var archive domain.LoanRemoval
	if s.archiver != nil {
		archive = func(loan *domain.Loan) error {
			if err := s.archiver.Archive(ctx, loan); err != nil {
				return fmt.Errorf("archive loan %s: %w", id, err)
			}
			return nil
		}
	}

	if err := s.loanRepo.Delete(ctx, id, archive); err != nil {
		return err
	}

	log.Info().Str("loan_id", id.String()).Msg("Loan deleted")

	s.publishEvent(id, websocket.LoanDeleted(view.DeletedLoanResponse{ID: id.String()}))
	return nil
}
