package failover

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"net"

	"github.com/dafibh/loanbook/loanbook-backend/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// HealthReporter tells the store whether the primary is usable
type HealthReporter interface {
	Healthy() bool
	ReportFailure(err error)
}

// Classifier reports whether an error returned by the primary means the
// primary itself is unreachable rather than that one call failed.
type Classifier func(err error) bool

// ConnectionFailure classifies the failures every driver shares: network
// errors and broken or closed connections. Cancelled and timed out requests
// are not failures of the primary.
func ConnectionFailure(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

// Store routes every call to the primary while it is healthy and to the
// fallback otherwise. Loans written to one backend are not copied to the other.
type Store struct {
	primary      domain.LoanRepository
	primaryName  string
	fallback     domain.LoanRepository
	fallbackName string
	health       HealthReporter
	unavailable  Classifier
}

var _ domain.LoanRepository = (*Store)(nil)

// NewStore creates a routing store. A nil primary always routes to the fallback.
// unavailable decides which primary errors switch routing; nil means ConnectionFailure.
func NewStore(primary domain.LoanRepository, primaryName string, fallback domain.LoanRepository, fallbackName string, health HealthReporter, unavailable Classifier) *Store {
	if unavailable == nil {
		unavailable = ConnectionFailure
	}
	return &Store{
		primary:      primary,
		primaryName:  primaryName,
		fallback:     fallback,
		fallbackName: fallbackName,
		health:       health,
		unavailable:  unavailable,
	}
}

// Backend returns the name of the backend the next call will use
func (s *Store) Backend() string {
	_, name, _ := s.active()
	return name
}

func (s *Store) active() (domain.LoanRepository, string, bool) {
	if s.primary != nil && s.health != nil && s.health.Healthy() {
		return s.primary, s.primaryName, true
	}
	return s.fallback, s.fallbackName, false
}

// observe reports primary errors that mean the primary is unreachable to the
// health monitor. Any other error is returned to the caller unchanged.
func (s *Store) observe(isPrimary bool, err error) error {
	if err == nil || !isPrimary {
		return err
	}
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrValidation) || !s.unavailable(err) {
		return err
	}
	log.Error().Err(err).Str("backend", s.primaryName).Msg("Primary store unreachable")
	s.health.ReportFailure(err)
	return err
}

// Create stores a new loan in the active backend
func (s *Store) Create(ctx context.Context, loan *domain.Loan) (*domain.Loan, error) {
	repo, _, isPrimary := s.active()
	created, err := repo.Create(ctx, loan)
	return created, s.observe(isPrimary, err)
}

// GetByID reads a loan from the active backend
func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	repo, _, isPrimary := s.active()
	loan, err := repo.GetByID(ctx, id)
	return loan, s.observe(isPrimary, err)
}

// List reads every loan from the active backend
func (s *Store) List(ctx context.Context) ([]*domain.Loan, error) {
	repo, _, isPrimary := s.active()
	loans, err := repo.List(ctx)
	return loans, s.observe(isPrimary, err)
}

// Mutate updates a loan in the active backend
func (s *Store) Mutate(ctx context.Context, id uuid.UUID, fn domain.LoanMutation) (*domain.Loan, error) {
	repo, _, isPrimary := s.active()
	loan, err := repo.Mutate(ctx, id, fn)
	return loan, s.observe(isPrimary, err)
}

// Delete removes a loan from the active backend
func (s *Store) Delete(ctx context.Context, id uuid.UUID, fn domain.LoanRemoval) error {
	repo, _, isPrimary := s.active()
	return s.observe(isPrimary, repo.Delete(ctx, id, fn))
}

// Ping checks the active backend
func (s *Store) Ping(ctx context.Context) error {
	repo, _, isPrimary := s.active()
	return s.observe(isPrimary, repo.Ping(ctx))
}
