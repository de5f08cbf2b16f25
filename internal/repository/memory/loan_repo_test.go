package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dafibh/loanbook/loanbook-backend/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoanRepository_CreateAndGet(t *testing.T) {
	repo := NewLoanRepository()
	ctx := context.Background()

	loan := &domain.Loan{Name: "Juan", Principal: decimal.NewFromInt(1000)}
	created, err := repo.Create(ctx, loan)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)

	got, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Juan", got.Name)

	// Returned loans are copies
	got.Name = "changed"
	again, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Juan", again.Name)
}

func TestLoanRepository_GetByID_NotFound(t *testing.T) {
	repo := NewLoanRepository()

	_, err := repo.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrLoanNotFound)
}

func TestLoanRepository_List(t *testing.T) {
	repo := NewLoanRepository()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := repo.Create(ctx, &domain.Loan{})
		require.NoError(t, err)
	}

	loans, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, loans, 3)
}

func TestLoanRepository_Mutate(t *testing.T) {
	repo := NewLoanRepository()
	ctx := context.Background()
	created, err := repo.Create(ctx, &domain.Loan{})
	require.NoError(t, err)

	updated, err := repo.Mutate(ctx, created.ID, func(l *domain.Loan) error {
		l.Payments = append(l.Payments, domain.Payment{Amount: decimal.NewFromInt(10)})
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, updated.Payments, 1)

	got, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Len(t, got.Payments, 1)
}

func TestLoanRepository_Mutate_ErrorDiscardsChanges(t *testing.T) {
	repo := NewLoanRepository()
	ctx := context.Background()
	created, err := repo.Create(ctx, &domain.Loan{Name: "Juan"})
	require.NoError(t, err)

	_, err = repo.Mutate(ctx, created.ID, func(l *domain.Loan) error {
		l.Name = "changed"
		return errors.New("abort")
	})
	assert.EqualError(t, err, "abort")

	got, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Juan", got.Name)
}

func TestLoanRepository_Mutate_NotFound(t *testing.T) {
	repo := NewLoanRepository()

	_, err := repo.Mutate(context.Background(), uuid.New(), func(l *domain.Loan) error { return nil })
	assert.ErrorIs(t, err, domain.ErrLoanNotFound)
}

func TestLoanRepository_Mutate_Concurrent(t *testing.T) {
	repo := NewLoanRepository()
	ctx := context.Background()
	created, err := repo.Create(ctx, &domain.Loan{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = repo.Mutate(ctx, created.ID, func(l *domain.Loan) error {
				l.Penalties = append(l.Penalties, domain.Penalty{Amount: decimal.NewFromInt(1)})
				return nil
			})
		}()
	}
	wg.Wait()

	got, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Len(t, got.Penalties, 50)
}

func TestLoanRepository_Delete(t *testing.T) {
	repo := NewLoanRepository()
	ctx := context.Background()
	created, err := repo.Create(ctx, &domain.Loan{})
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, created.ID, nil))
	assert.ErrorIs(t, repo.Delete(ctx, created.ID, nil), domain.ErrLoanNotFound)
	require.NoError(t, repo.Ping(ctx))
}

func TestLoanRepository_DeleteGuardBlocksConcurrentMutation(t *testing.T) {
	repo := NewLoanRepository()
	ctx := context.Background()
	created, err := repo.Create(ctx, &domain.Loan{})
	require.NoError(t, err)

	inGuard := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- repo.Delete(ctx, created.ID, func(l *domain.Loan) error {
			close(inGuard)
			<-release
			assert.Empty(t, l.Payments)
			return nil
		})
	}()
	<-inGuard

	mutated := make(chan error, 1)
	go func() {
		_, err := repo.Mutate(ctx, created.ID, func(l *domain.Loan) error {
			l.Payments = append(l.Payments, domain.Payment{Amount: decimal.NewFromInt(1)})
			return nil
		})
		mutated <- err
	}()

	close(release)
	require.NoError(t, <-done)
	assert.ErrorIs(t, <-mutated, domain.ErrLoanNotFound)
}

func TestLoanRepository_DeleteGuardErrorKeepsLoan(t *testing.T) {
	repo := NewLoanRepository()
	ctx := context.Background()
	created, err := repo.Create(ctx, &domain.Loan{})
	require.NoError(t, err)

	refused := errors.New("refused")
	assert.ErrorIs(t, repo.Delete(ctx, created.ID, func(*domain.Loan) error { return refused }), refused)

	_, err = repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
}
