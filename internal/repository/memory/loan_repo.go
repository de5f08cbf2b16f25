package memory

import (
	"context"
	"sync"

	"github.com/dafibh/loanbook/loanbook-backend/internal/domain"
	"github.com/google/uuid"
)

// LoanRepository keeps loans in process memory. Contents are lost on restart.
type LoanRepository struct {
	mu    sync.RWMutex
	loans map[uuid.UUID]*domain.Loan
}

var _ domain.LoanRepository = (*LoanRepository)(nil)

// NewLoanRepository creates an empty in-memory repository
func NewLoanRepository() *LoanRepository {
	return &LoanRepository{
		loans: make(map[uuid.UUID]*domain.Loan),
	}
}

// Create stores a copy of the loan
func (r *LoanRepository) Create(ctx context.Context, loan *domain.Loan) (*domain.Loan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if loan.ID == uuid.Nil {
		loan.ID = uuid.New()
	}
	r.loans[loan.ID] = loan.Clone()
	return loan.Clone(), nil
}

// GetByID retrieves a copy of a loan
func (r *LoanRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	loan, ok := r.loans[id]
	if !ok {
		return nil, domain.ErrLoanNotFound
	}
	return loan.Clone(), nil
}

// List returns copies of every loan in no particular order
func (r *LoanRepository) List(ctx context.Context) ([]*domain.Loan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	loans := make([]*domain.Loan, 0, len(r.loans))
	for _, loan := range r.loans {
		loans = append(loans, loan.Clone())
	}
	return loans, nil
}

// Mutate runs fn on a copy under the write lock and keeps the copy when fn succeeds
func (r *LoanRepository) Mutate(ctx context.Context, id uuid.UUID, fn domain.LoanMutation) (*domain.Loan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	loan, ok := r.loans[id]
	if !ok {
		return nil, domain.ErrLoanNotFound
	}
	working := loan.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	r.loans[id] = working
	return working.Clone(), nil
}

// Delete runs fn on a copy under the write lock and removes the loan when fn succeeds
func (r *LoanRepository) Delete(ctx context.Context, id uuid.UUID, fn domain.LoanRemoval) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	loan, ok := r.loans[id]
	if !ok {
		return domain.ErrLoanNotFound
	}
	if fn != nil {
		if err := fn(loan.Clone()); err != nil {
			return err
		}
	}
	delete(r.loans, id)
	return nil
}

// Ping always succeeds
func (r *LoanRepository) Ping(ctx context.Context) error {
	return nil
}
