package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dafibh/loanbook/loanbook-backend/internal/domain"
	"github.com/dafibh/loanbook/loanbook-backend/internal/testutil"
	"github.com/dafibh/loanbook/loanbook-backend/internal/view"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLoanService() (*LoanService, *testutil.MockLoanRepository, *testutil.MockEventPublisher) {
	repo := testutil.NewMockLoanRepository()
	publisher := testutil.NewMockEventPublisher()
	svc := NewLoanService(repo, nil)
	svc.SetEventPublisher(publisher)
	svc.now = func() time.Time { return ledgerNow }
	return svc, repo, publisher
}

// newStoredLoan returns a zero-interest loan with an id, ready to add to a repository.
func newStoredLoan(principal, monthlyPayment string) *domain.Loan {
	loan := newLedgerLoan(principal)
	loan.ID = uuid.New()
	loan.MonthlyPayment = dec(monthlyPayment)
	loan.CreatedAt = ledgerNow
	loan.UpdatedAt = ledgerNow
	loan.RemainingBalance = ComputeBalance(loan)
	return loan
}

func validCreateIntent() CreateLoanIntent {
	return CreateLoanIntent{
		Name:           " Juan Dela Cruz ",
		Contact:        "0917",
		Address:        "Cebu",
		Principal:      dec("10000"),
		TermMonths:     12,
		InterestRate:   dec("5"),
		InterestPeriod: domain.InterestPeriodMonthly,
		MonthlyPayment: dec("1333.33"),
	}
}

func TestLoanService_CreateLoan(t *testing.T) {
	svc, repo, publisher := newTestLoanService()

	loan, err := svc.CreateLoan(context.Background(), validCreateIntent())
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, loan.ID)
	assert.Equal(t, "Juan Dela Cruz", loan.Name)
	assertDecimal(t, "16000", loan.RemainingBalance)
	assertDecimal(t, "0", loan.TotalPenalties)
	assert.Empty(t, loan.Payments)
	assert.Empty(t, loan.Penalties)
	assert.Equal(t, ledgerNow, loan.CreatedAt)
	assert.Len(t, repo.Loans, 1)
	assert.Equal(t, []string{"loan.created"}, publisher.EventTypes())
}

func TestLoanService_CreateLoan_DefaultsPeriodToMonthly(t *testing.T) {
	svc, _, _ := newTestLoanService()
	intent := validCreateIntent()
	intent.InterestPeriod = ""

	loan, err := svc.CreateLoan(context.Background(), intent)
	require.NoError(t, err)
	assert.Equal(t, domain.InterestPeriodMonthly, loan.InterestPeriod)
}

func TestLoanService_CreateLoan_ValidationError(t *testing.T) {
	svc, repo, publisher := newTestLoanService()
	intent := validCreateIntent()
	intent.Contact = ""

	_, err := svc.CreateLoan(context.Background(), intent)
	assert.ErrorIs(t, err, domain.ErrContactRequired)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Empty(t, repo.Loans)
	assert.Empty(t, publisher.Events)
}

func TestLoanService_CreateLoan_RepositoryError(t *testing.T) {
	svc, repo, _ := newTestLoanService()
	repo.CreateErr = errors.New("db down")

	_, err := svc.CreateLoan(context.Background(), validCreateIntent())
	assert.EqualError(t, err, "db down")
}

func TestLoanService_GetLoans_NewestFirst(t *testing.T) {
	svc, repo, _ := newTestLoanService()
	older := newStoredLoan("100", "0")
	older.CreatedAt = ledgerNow.Add(-48 * time.Hour)
	newer := newStoredLoan("200", "0")
	newer.CreatedAt = ledgerNow
	repo.AddLoan(older)
	repo.AddLoan(newer)

	loans, err := svc.GetLoans(context.Background())
	require.NoError(t, err)
	require.Len(t, loans, 2)
	assert.Equal(t, newer.ID, loans[0].ID)
	assert.Equal(t, older.ID, loans[1].ID)
}

func TestLoanService_GetLoanByID_NotFound(t *testing.T) {
	svc, _, _ := newTestLoanService()

	_, err := svc.GetLoanByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrLoanNotFound)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLoanService_GetLoanSummary(t *testing.T) {
	svc, repo, _ := newTestLoanService()
	loan := newStoredLoan("1000", "0")
	loan.Payments = []domain.Payment{{Amount: dec("400"), Date: ledgerNow}}
	repo.AddLoan(loan)

	summary, err := svc.GetLoanSummary(context.Background(), loan.ID)
	require.NoError(t, err)
	assertDecimal(t, "600", summary.RemainingBalance)
	assertDecimal(t, "400", summary.TotalPayments)
	assert.Equal(t, domain.LoanStatusActive, summary.Status)
}

func TestLoanService_Apply_Payment(t *testing.T) {
	svc, repo, publisher := newTestLoanService()
	loan := newStoredLoan("1000", "200")
	due := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	loan.NextDueDate = &due
	repo.AddLoan(loan)

	updated, err := svc.Apply(context.Background(), loan.ID, RecordPaymentIntent{
		Amount:         dec("450"),
		Note:           "cash",
		AdvanceDueDate: true,
	})
	require.NoError(t, err)

	assertDecimal(t, "550", updated.RemainingBalance)
	require.Len(t, updated.Payments, 1)
	assert.Equal(t, "cash", updated.Payments[0].Note)
	require.NotNil(t, updated.LastAdvancePayment)
	assert.Equal(t, int64(2), updated.LastAdvancePayment.MonthsCovered)
	assert.Equal(t, time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), *updated.NextDueDate)

	stored, err := repo.GetByID(context.Background(), loan.ID)
	require.NoError(t, err)
	assertDecimal(t, "550", stored.RemainingBalance)

	assert.Equal(t, []string{"loan.payment_recorded"}, publisher.EventTypes())
	assert.Equal(t, loan.ID, publisher.Events[0].LoanID)

	payload, ok := publisher.Events[0].Event.Payload.(view.LoanResponse)
	require.True(t, ok, "payload is %T", publisher.Events[0].Event.Payload)
	assert.Equal(t, loan.ID.String(), payload.ID)
	assert.Equal(t, "550.00", payload.RemainingBalance)
	assert.Equal(t, "450.00", payload.Payments[0].Amount)
}

func TestLoanService_Apply_InvalidPaymentLeavesLoanUntouched(t *testing.T) {
	svc, repo, publisher := newTestLoanService()
	loan := newStoredLoan("1000", "0")
	repo.AddLoan(loan)

	_, err := svc.Apply(context.Background(), loan.ID, RecordPaymentIntent{Amount: dec("1000000000")})
	assert.ErrorIs(t, err, domain.ErrPaymentAmountInvalid)
	assert.Equal(t, 0, repo.MutateCalls)
	assert.Empty(t, publisher.Events)

	stored, err := repo.GetByID(context.Background(), loan.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Payments)
	assertDecimal(t, "1000", stored.RemainingBalance)
}

func TestLoanService_Apply_Penalty(t *testing.T) {
	svc, repo, publisher := newTestLoanService()
	loan := newStoredLoan("1000", "0")
	repo.AddLoan(loan)

	updated, err := svc.Apply(context.Background(), loan.ID, RecordPenaltyIntent{Amount: dec("100")})
	require.NoError(t, err)
	updated, err = svc.Apply(context.Background(), loan.ID, RecordPenaltyIntent{Amount: dec("50"), Reason: "late"})
	require.NoError(t, err)

	require.Len(t, updated.Penalties, 2)
	assert.Equal(t, domain.DefaultPenaltyReason, updated.Penalties[0].Reason)
	assert.Equal(t, "late", updated.Penalties[1].Reason)
	assertDecimal(t, "150", updated.TotalPenalties)
	assertDecimal(t, "1150", updated.RemainingBalance)
	assert.Equal(t, []string{"loan.penalty_recorded", "loan.penalty_recorded"}, publisher.EventTypes())
}

func TestLoanService_Apply_EditTerms(t *testing.T) {
	svc, repo, publisher := newTestLoanService()
	loan := newStoredLoan("1000", "0")
	loan.Payments = []domain.Payment{{Amount: dec("100"), Date: ledgerNow}}
	repo.AddLoan(loan)

	principal := dec("2000")
	name := "Maria"
	updated, err := svc.Apply(context.Background(), loan.ID, EditTermsIntent{Update: TermsUpdate{
		Name:      &name,
		Principal: &principal,
	}})
	require.NoError(t, err)

	assert.Equal(t, "Maria", updated.Name)
	assertDecimal(t, "1900", updated.RemainingBalance)
	assert.Len(t, updated.Payments, 1)
	assert.Equal(t, []string{"loan.updated"}, publisher.EventTypes())
}

func TestLoanService_Apply_NotFound(t *testing.T) {
	svc, _, publisher := newTestLoanService()

	_, err := svc.Apply(context.Background(), uuid.New(), RecordPenaltyIntent{Amount: dec("1")})
	assert.ErrorIs(t, err, domain.ErrLoanNotFound)
	assert.Empty(t, publisher.Events)
}

func TestLoanService_Apply_RejectsCreateAndNil(t *testing.T) {
	svc, repo, _ := newTestLoanService()
	loan := newStoredLoan("1000", "0")
	repo.AddLoan(loan)

	_, err := svc.Apply(context.Background(), loan.ID, validCreateIntent())
	assert.ErrorIs(t, err, domain.ErrUnsupportedLoanIntent)

	_, err = svc.Apply(context.Background(), loan.ID, nil)
	assert.ErrorIs(t, err, domain.ErrNoRecognizedUpdate)
	assert.Equal(t, 0, repo.MutateCalls)
}

func TestLoanService_Apply_ConcurrentPaymentsAllPersist(t *testing.T) {
	svc, repo, _ := newTestLoanService()
	loan := newStoredLoan("1000", "0")
	repo.AddLoan(loan)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Apply(context.Background(), loan.ID, RecordPaymentIntent{Amount: dec("10")})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	stored, err := repo.GetByID(context.Background(), loan.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Payments, 20)
	assertDecimal(t, "800", stored.RemainingBalance)
}

func TestLoanService_DeleteLoan(t *testing.T) {
	repo := testutil.NewMockLoanRepository()
	archiver := testutil.NewMockLoanArchiver()
	publisher := testutil.NewMockEventPublisher()
	svc := NewLoanService(repo, archiver)
	svc.SetEventPublisher(publisher)

	loan := newStoredLoan("1000", "0")
	repo.AddLoan(loan)

	require.NoError(t, svc.DeleteLoan(context.Background(), loan.ID))

	assert.Empty(t, repo.Loans)
	require.Len(t, archiver.Archived, 1)
	assert.Equal(t, loan.ID, archiver.Archived[0].ID)
	assert.Equal(t, []string{"loan.deleted"}, publisher.EventTypes())
	assert.Equal(t, view.DeletedLoanResponse{ID: loan.ID.String()}, publisher.Events[0].Event.Payload)
}

func TestLoanService_DeleteLoan_ArchiveFailureKeepsLoan(t *testing.T) {
	repo := testutil.NewMockLoanRepository()
	archiver := testutil.NewMockLoanArchiver()
	archiver.Err = errors.New("bucket unavailable")
	svc := NewLoanService(repo, archiver)

	loan := newStoredLoan("1000", "0")
	repo.AddLoan(loan)

	err := svc.DeleteLoan(context.Background(), loan.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket unavailable")
	assert.Len(t, repo.Loans, 1)
}

// racingArchiver records a payment against the loan while it is being archived
type racingArchiver struct {
	svc      *LoanService
	archived *domain.Loan
	payment  chan error
}

func (a *racingArchiver) Archive(ctx context.Context, loan *domain.Loan) error {
	a.archived = loan.Clone()
	go func() {
		_, err := a.svc.Apply(ctx, loan.ID, RecordPaymentIntent{Amount: dec("100")})
		a.payment <- err
	}()
	return nil
}

func TestLoanService_DeleteLoan_NoPaymentLandsBetweenArchiveAndDelete(t *testing.T) {
	repo := testutil.NewMockLoanRepository()
	archiver := &racingArchiver{payment: make(chan error, 1)}
	svc := NewLoanService(repo, archiver)
	archiver.svc = svc

	loan := newStoredLoan("1000", "0")
	repo.AddLoan(loan)

	require.NoError(t, svc.DeleteLoan(context.Background(), loan.ID))

	assert.ErrorIs(t, <-archiver.payment, domain.ErrLoanNotFound)
	require.NotNil(t, archiver.archived)
	assert.Empty(t, archiver.archived.Payments)
	assert.Empty(t, repo.Loans)
}

func TestLoanService_DeleteLoan_NotFound(t *testing.T) {
	svc, _, publisher := newTestLoanService()

	err := svc.DeleteLoan(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrLoanNotFound)
	assert.Empty(t, publisher.Events)
}
