package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dafibh/loanbook/loanbook-backend/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS loans (
	id UUID PRIMARY KEY,
	name TEXT NOT NULL,
	contact TEXT NOT NULL,
	address TEXT NOT NULL,
	principal NUMERIC NOT NULL,
	term_months INTEGER NOT NULL,
	interest_rate NUMERIC NOT NULL,
	interest_period TEXT NOT NULL,
	monthly_payment NUMERIC NOT NULL,
	next_due_date TIMESTAMPTZ,
	total_penalties NUMERIC NOT NULL DEFAULT 0,
	remaining_balance NUMERIC NOT NULL,
	last_advance_payment JSONB,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS loan_payments (
	loan_id UUID NOT NULL REFERENCES loans(id) ON DELETE CASCADE,
	seq INTEGER NOT NULL,
	amount NUMERIC NOT NULL,
	paid_at TIMESTAMPTZ NOT NULL,
	note TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (loan_id, seq)
);
CREATE TABLE IF NOT EXISTS loan_penalties (
	loan_id UUID NOT NULL REFERENCES loans(id) ON DELETE CASCADE,
	seq INTEGER NOT NULL,
	amount NUMERIC NOT NULL,
	reason TEXT NOT NULL,
	charged_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (loan_id, seq)
);
`

const loanColumns = `id, name, contact, address, principal, term_months, interest_rate, interest_period,
	monthly_payment, next_due_date, total_penalties, remaining_balance, last_advance_payment, created_at, updated_at`

// LoanRepository implements domain.LoanRepository using PostgreSQL
type LoanRepository struct {
	pool        *pgxpool.Pool
	schemaReady atomic.Bool
}

var _ domain.LoanRepository = (*LoanRepository)(nil)

// NewLoanRepository creates a new LoanRepository
func NewLoanRepository(pool *pgxpool.Pool) *LoanRepository {
	return &LoanRepository{pool: pool}
}

// EnsureSchema creates the loan tables when they do not exist
func (r *LoanRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create loan schema: %w", err)
	}
	r.schemaReady.Store(true)
	return nil
}

// Ping checks the database connection. The first successful ping also
// creates the schema, so a database that was down at startup is usable
// once it comes back.
func (r *LoanRepository) Ping(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return err
	}
	if !r.schemaReady.Load() {
		return r.EnsureSchema(ctx)
	}
	return nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// loanParams holds a loan converted to pgtype values, in loanColumns order
type loanParams struct {
	principal        pgtype.Numeric
	interestRate     pgtype.Numeric
	monthlyPayment   pgtype.Numeric
	totalPenalties   pgtype.Numeric
	remainingBalance pgtype.Numeric
	nextDueDate      pgtype.Timestamptz
	lastAdvance      []byte
}

func toLoanParams(loan *domain.Loan) (*loanParams, error) {
	var p loanParams
	var err error
	if p.principal, err = decimalToPgNumeric(loan.Principal); err != nil {
		return nil, err
	}
	if p.interestRate, err = decimalToPgNumeric(loan.InterestRate); err != nil {
		return nil, err
	}
	if p.monthlyPayment, err = decimalToPgNumeric(loan.MonthlyPayment); err != nil {
		return nil, err
	}
	if p.totalPenalties, err = decimalToPgNumeric(loan.TotalPenalties); err != nil {
		return nil, err
	}
	if p.remainingBalance, err = decimalToPgNumeric(loan.RemainingBalance); err != nil {
		return nil, err
	}
	p.nextDueDate = timeToPgTimestamptz(loan.NextDueDate)
	if loan.LastAdvancePayment != nil {
		if p.lastAdvance, err = json.Marshal(loan.LastAdvancePayment); err != nil {
			return nil, fmt.Errorf("failed to encode last advance payment: %w", err)
		}
	}
	return &p, nil
}

// Create inserts a loan with its history
func (r *LoanRepository) Create(ctx context.Context, loan *domain.Loan) (*domain.Loan, error) {
	if loan.ID == uuid.Nil {
		loan.ID = uuid.New()
	}
	p, err := toLoanParams(loan)
	if err != nil {
		return nil, err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO loans (`+loanColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		uuidToPg(loan.ID), loan.Name, loan.Contact, loan.Address, p.principal, loan.TermMonths,
		p.interestRate, string(loan.InterestPeriod), p.monthlyPayment, p.nextDueDate,
		p.totalPenalties, p.remainingBalance, p.lastAdvance, loan.CreatedAt, loan.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create loan: %w", err)
	}
	if err := insertHistory(ctx, tx, loan, 0, 0); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit loan: %w", err)
	}
	return loan.Clone(), nil
}

// GetByID retrieves a loan with its payments and penalties
func (r *LoanRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	return loadLoan(ctx, r.pool, id, false)
}

// List retrieves every loan with its history
func (r *LoanRepository) List(ctx context.Context) ([]*domain.Loan, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+loanColumns+` FROM loans ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list loans: %w", err)
	}
	var loans []*domain.Loan
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		loans = append(loans, loan)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate loans: %w", err)
	}

	for _, loan := range loans {
		if err := loadHistory(ctx, r.pool, loan); err != nil {
			return nil, err
		}
	}
	return loans, nil
}

// Mutate locks the loan row, applies fn and writes the result in one transaction
func (r *LoanRepository) Mutate(ctx context.Context, id uuid.UUID, fn domain.LoanMutation) (*domain.Loan, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	loan, err := loadLoan(ctx, tx, id, true)
	if err != nil {
		return nil, err
	}
	paymentCount, penaltyCount := len(loan.Payments), len(loan.Penalties)

	if err := fn(loan); err != nil {
		return nil, err
	}

	p, err := toLoanParams(loan)
	if err != nil {
		return nil, err
	}
	_, err = tx.Exec(ctx,
		`UPDATE loans SET name = $2, contact = $3, address = $4, principal = $5, term_months = $6,
			interest_rate = $7, interest_period = $8, monthly_payment = $9, next_due_date = $10,
			total_penalties = $11, remaining_balance = $12, last_advance_payment = $13, updated_at = $14
		WHERE id = $1`,
		uuidToPg(id), loan.Name, loan.Contact, loan.Address, p.principal, loan.TermMonths,
		p.interestRate, string(loan.InterestPeriod), p.monthlyPayment, p.nextDueDate,
		p.totalPenalties, p.remainingBalance, p.lastAdvance, loan.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update loan: %w", err)
	}
	if err := insertHistory(ctx, tx, loan, paymentCount, penaltyCount); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit loan: %w", err)
	}
	return loan, nil
}

// Delete locks the loan row, runs fn and removes the loan in one transaction.
// History rows are removed by cascade.
func (r *LoanRepository) Delete(ctx context.Context, id uuid.UUID, fn domain.LoanRemoval) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	loan, err := loadLoan(ctx, tx, id, true)
	if err != nil {
		return err
	}
	if fn != nil {
		if err := fn(loan); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM loans WHERE id = $1`, uuidToPg(id)); err != nil {
		return fmt.Errorf("failed to delete loan: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}
	return nil
}

func scanLoan(row pgx.Row) (*domain.Loan, error) {
	var (
		loan             domain.Loan
		id               pgtype.UUID
		period           string
		principal        pgtype.Numeric
		interestRate     pgtype.Numeric
		monthlyPayment   pgtype.Numeric
		nextDueDate      pgtype.Timestamptz
		totalPenalties   pgtype.Numeric
		remainingBalance pgtype.Numeric
		lastAdvance      []byte
		createdAt        time.Time
		updatedAt        time.Time
	)
	err := row.Scan(&id, &loan.Name, &loan.Contact, &loan.Address, &principal, &loan.TermMonths,
		&interestRate, &period, &monthlyPayment, &nextDueDate, &totalPenalties,
		&remainingBalance, &lastAdvance, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrLoanNotFound
		}
		return nil, fmt.Errorf("failed to scan loan: %w", err)
	}

	loan.ID = pgToUUID(id)
	loan.InterestPeriod = domain.InterestPeriod(period)
	loan.Principal = pgNumericToDecimal(principal)
	loan.InterestRate = pgNumericToDecimal(interestRate)
	loan.MonthlyPayment = pgNumericToDecimal(monthlyPayment)
	loan.NextDueDate = pgTimestamptzToTime(nextDueDate)
	loan.TotalPenalties = pgNumericToDecimal(totalPenalties)
	loan.RemainingBalance = pgNumericToDecimal(remainingBalance)
	loan.CreatedAt = createdAt
	loan.UpdatedAt = updatedAt
	if len(lastAdvance) > 0 {
		var adv domain.AdvancePayment
		if err := json.Unmarshal(lastAdvance, &adv); err != nil {
			return nil, fmt.Errorf("invalid last advance payment: %w", err)
		}
		loan.LastAdvancePayment = &adv
	}
	loan.Payments = []domain.Payment{}
	loan.Penalties = []domain.Penalty{}
	return &loan, nil
}

func loadLoan(ctx context.Context, q querier, id uuid.UUID, forUpdate bool) (*domain.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	loan, err := scanLoan(q.QueryRow(ctx, query, uuidToPg(id)))
	if err != nil {
		return nil, err
	}
	if err := loadHistory(ctx, q, loan); err != nil {
		return nil, err
	}
	return loan, nil
}

func loadHistory(ctx context.Context, q querier, loan *domain.Loan) error {
	rows, err := q.Query(ctx,
		`SELECT amount, paid_at, note FROM loan_payments WHERE loan_id = $1 ORDER BY seq`, uuidToPg(loan.ID))
	if err != nil {
		return fmt.Errorf("failed to get payments: %w", err)
	}
	for rows.Next() {
		var amount pgtype.Numeric
		var p domain.Payment
		if err := rows.Scan(&amount, &p.Date, &p.Note); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan payment: %w", err)
		}
		p.Amount = pgNumericToDecimal(amount)
		loan.Payments = append(loan.Payments, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate payments: %w", err)
	}

	rows, err = q.Query(ctx,
		`SELECT amount, reason, charged_at FROM loan_penalties WHERE loan_id = $1 ORDER BY seq`, uuidToPg(loan.ID))
	if err != nil {
		return fmt.Errorf("failed to get penalties: %w", err)
	}
	for rows.Next() {
		var amount pgtype.Numeric
		var p domain.Penalty
		if err := rows.Scan(&amount, &p.Reason, &p.Date); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan penalty: %w", err)
		}
		p.Amount = pgNumericToDecimal(amount)
		loan.Penalties = append(loan.Penalties, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate penalties: %w", err)
	}
	return nil
}

// insertHistory appends the payments and penalties after the first
// paymentsFrom and penaltiesFrom entries. Earlier entries are never rewritten.
func insertHistory(ctx context.Context, q querier, loan *domain.Loan, paymentsFrom, penaltiesFrom int) error {
	for i := paymentsFrom; i < len(loan.Payments); i++ {
		p := loan.Payments[i]
		amount, err := decimalToPgNumeric(p.Amount)
		if err != nil {
			return err
		}
		_, err = q.Exec(ctx,
			`INSERT INTO loan_payments (loan_id, seq, amount, paid_at, note) VALUES ($1, $2, $3, $4, $5)`,
			uuidToPg(loan.ID), i, amount, p.Date, p.Note)
		if err != nil {
			return fmt.Errorf("failed to insert payment: %w", err)
		}
	}
	for i := penaltiesFrom; i < len(loan.Penalties); i++ {
		p := loan.Penalties[i]
		amount, err := decimalToPgNumeric(p.Amount)
		if err != nil {
			return err
		}
		_, err = q.Exec(ctx,
			`INSERT INTO loan_penalties (loan_id, seq, amount, reason, charged_at) VALUES ($1, $2, $3, $4, $5)`,
			uuidToPg(loan.ID), i, amount, p.Reason, p.Date)
		if err != nil {
			return fmt.Errorf("failed to insert penalty: %w", err)
		}
	}
	return nil
}
