package testutil

import (
	"context"
	"sync"

	"github.com/dafibh/loanbook/loanbook-backend/internal/domain"
	"github.com/dafibh/loanbook/loanbook-backend/internal/websocket"
	"github.com/google/uuid"
)

// MockLoanRepository is a mock implementation of domain.LoanRepository
type MockLoanRepository struct {
	Loans map[uuid.UUID]*domain.Loan

	CreateErr error
	ListErr   error
	MutateErr error
	DeleteErr error
	PingErr   error

	MutateCalls int
	DeleteCalls int

	mu sync.Mutex
}

// NewMockLoanRepository creates a new MockLoanRepository
func NewMockLoanRepository() *MockLoanRepository {
	return &MockLoanRepository{
		Loans: make(map[uuid.UUID]*domain.Loan),
	}
}

// AddLoan stores a copy of a loan
func (m *MockLoanRepository) AddLoan(loan *domain.Loan) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Loans[loan.ID] = loan.Clone()
}

// Create stores a new loan
func (m *MockLoanRepository) Create(ctx context.Context, loan *domain.Loan) (*domain.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	if loan.ID == uuid.Nil {
		loan.ID = uuid.New()
	}
	m.Loans[loan.ID] = loan.Clone()
	return loan.Clone(), nil
}

// GetByID retrieves a loan by ID
func (m *MockLoanRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if loan, ok := m.Loans[id]; ok {
		return loan.Clone(), nil
	}
	return nil, domain.ErrLoanNotFound
}

// List retrieves every loan
func (m *MockLoanRepository) List(ctx context.Context) ([]*domain.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	loans := make([]*domain.Loan, 0, len(m.Loans))
	for _, loan := range m.Loans {
		loans = append(loans, loan.Clone())
	}
	return loans, nil
}

// Mutate applies fn to a copy and stores it when fn succeeds
func (m *MockLoanRepository) Mutate(ctx context.Context, id uuid.UUID, fn domain.LoanMutation) (*domain.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MutateCalls++
	if m.MutateErr != nil {
		return nil, m.MutateErr
	}
	loan, ok := m.Loans[id]
	if !ok {
		return nil, domain.ErrLoanNotFound
	}
	working := loan.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	m.Loans[id] = working.Clone()
	return working, nil
}

// Delete removes a loan
func (m *MockLoanRepository) Delete(ctx context.Context, id uuid.UUID, fn domain.LoanRemoval) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeleteCalls++
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	loan, ok := m.Loans[id]
	if !ok {
		return domain.ErrLoanNotFound
	}
	if fn != nil {
		if err := fn(loan.Clone()); err != nil {
			return err
		}
	}
	delete(m.Loans, id)
	return nil
}

// Ping reports PingErr
func (m *MockLoanRepository) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.PingErr
}

// SetPingErr changes the Ping result while the repository is in use
func (m *MockLoanRepository) SetPingErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PingErr = err
}

// PublishedEvent is an event captured by MockEventPublisher
type PublishedEvent struct {
	LoanID uuid.UUID
	Event  websocket.Event
}

// MockEventPublisher is a mock implementation of websocket.EventPublisher
type MockEventPublisher struct {
	Events []PublishedEvent
	mu     sync.Mutex
}

// NewMockEventPublisher creates a new MockEventPublisher
func NewMockEventPublisher() *MockEventPublisher {
	return &MockEventPublisher{}
}

// Publish records the event
func (m *MockEventPublisher) Publish(loanID uuid.UUID, event websocket.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, PublishedEvent{LoanID: loanID, Event: event})
}

// EventTypes returns the types of all published events in order
func (m *MockEventPublisher) EventTypes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]string, 0, len(m.Events))
	for _, e := range m.Events {
		types = append(types, e.Event.Type)
	}
	return types
}

// MockLoanArchiver is a mock implementation of domain.LoanArchiver
type MockLoanArchiver struct {
	Archived []*domain.Loan
	Err      error
}

// NewMockLoanArchiver creates a new MockLoanArchiver
func NewMockLoanArchiver() *MockLoanArchiver {
	return &MockLoanArchiver{}
}

// Archive records the loan or returns Err
func (m *MockLoanArchiver) Archive(ctx context.Context, loan *domain.Loan) error {
	if m.Err != nil {
		return m.Err
	}
	m.Archived = append(m.Archived, loan.Clone())
	return nil
}
