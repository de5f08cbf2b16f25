package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dafibh/loanbook/loanbook-backend/internal/domain"
	"github.com/google/uuid"

	_ "github.com/mattn/go-sqlite3"
)

// Decimal columns are TEXT so no precision is lost.
const schema = `
CREATE TABLE IF NOT EXISTS loans (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	contact TEXT NOT NULL,
	address TEXT NOT NULL,
	principal TEXT NOT NULL,
	term_months INTEGER NOT NULL,
	interest_rate TEXT NOT NULL,
	interest_period TEXT NOT NULL,
	monthly_payment TEXT NOT NULL,
	next_due_date DATETIME,
	total_penalties TEXT NOT NULL DEFAULT '0',
	remaining_balance TEXT NOT NULL,
	last_advance_payment TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS loan_payments (
	loan_id TEXT NOT NULL REFERENCES loans(id) ON DELETE CASCADE,
	seq INTEGER NOT NULL,
	amount TEXT NOT NULL,
	paid_at DATETIME NOT NULL,
	note TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (loan_id, seq)
);
CREATE TABLE IF NOT EXISTS loan_penalties (
	loan_id TEXT NOT NULL REFERENCES loans(id) ON DELETE CASCADE,
	seq INTEGER NOT NULL,
	amount TEXT NOT NULL,
	reason TEXT NOT NULL,
	charged_at DATETIME NOT NULL,
	PRIMARY KEY (loan_id, seq)
);
`

const loanColumns = `id, name, contact, address, principal, term_months, interest_rate, interest_period,
	monthly_payment, next_due_date, total_penalties, remaining_balance, last_advance_payment, created_at, updated_at`

// LoanRepository implements domain.LoanRepository on a SQLite file
type LoanRepository struct {
	db *sql.DB
}

var _ domain.LoanRepository = (*LoanRepository)(nil)

// Open opens (or creates) the database at path and initializes the schema.
// Writes take the database lock when their transaction begins.
func Open(path string) (*LoanRepository, error) {
	db, err := sql.Open("sqlite3", dataSourceName(path))
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not initialize schema: %w", err)
	}
	return &LoanRepository{db: db}, nil
}

func dataSourceName(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_txlock=immediate&_foreign_keys=on&_busy_timeout=5000"
}

// Close closes the database
func (r *LoanRepository) Close() error {
	return r.db.Close()
}

// Ping checks the database connection
func (r *LoanRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Create inserts a loan with its history
func (r *LoanRepository) Create(ctx context.Context, loan *domain.Loan) (*domain.Loan, error) {
	if loan.ID == uuid.Nil {
		loan.ID = uuid.New()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	advance, err := encodeAdvance(loan.LastAdvancePayment)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO loans (`+loanColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		loan.ID.String(), loan.Name, loan.Contact, loan.Address, loan.Principal, loan.TermMonths,
		loan.InterestRate, string(loan.InterestPeriod), loan.MonthlyPayment, loan.NextDueDate,
		loan.TotalPenalties, loan.RemainingBalance, advance, loan.CreatedAt, loan.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create loan: %w", err)
	}
	if err := insertHistory(ctx, tx, loan, 0, 0); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit loan: %w", err)
	}
	return loan.Clone(), nil
}

// GetByID retrieves a loan with its payments and penalties
func (r *LoanRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	return loadLoan(ctx, r.db, id)
}

// List retrieves every loan with its history
func (r *LoanRepository) List(ctx context.Context) ([]*domain.Loan, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+loanColumns+` FROM loans ORDER BY created_at DESC`)
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
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to iterate loans: %w", err)
	}
	rows.Close()

	// History is loaded after the cursor is closed; the pool has a single connection.
	for _, loan := range loans {
		if err := loadHistory(ctx, r.db, loan); err != nil {
			return nil, err
		}
	}
	return loans, nil
}

// Mutate applies fn inside an immediate transaction so concurrent writers to
// the same database are serialized
func (r *LoanRepository) Mutate(ctx context.Context, id uuid.UUID, fn domain.LoanMutation) (*domain.Loan, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	loan, err := loadLoan(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	paymentCount, penaltyCount := len(loan.Payments), len(loan.Penalties)

	if err := fn(loan); err != nil {
		return nil, err
	}

	advance, err := encodeAdvance(loan.LastAdvancePayment)
	if err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE loans SET name = ?, contact = ?, address = ?, principal = ?, term_months = ?, interest_rate = ?,
			interest_period = ?, monthly_payment = ?, next_due_date = ?, total_penalties = ?, remaining_balance = ?,
			last_advance_payment = ?, updated_at = ?
		WHERE id = ?`,
		loan.Name, loan.Contact, loan.Address, loan.Principal, loan.TermMonths, loan.InterestRate,
		string(loan.InterestPeriod), loan.MonthlyPayment, loan.NextDueDate, loan.TotalPenalties, loan.RemainingBalance,
		advance, loan.UpdatedAt, id.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update loan: %w", err)
	}
	if err := insertHistory(ctx, tx, loan, paymentCount, penaltyCount); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit loan: %w", err)
	}
	return loan, nil
}

// Delete runs fn on the loan and removes it in the same immediate transaction.
// History rows are removed by cascade.
func (r *LoanRepository) Delete(ctx context.Context, id uuid.UUID, fn domain.LoanRemoval) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	loan, err := loadLoan(ctx, tx, id)
	if err != nil {
		return err
	}
	if fn != nil {
		if err := fn(loan); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM loans WHERE id = ?`, id.String()); err != nil {
		return fmt.Errorf("failed to delete loan: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLoan(row rowScanner) (*domain.Loan, error) {
	var (
		loan    domain.Loan
		idStr   string
		period  string
		nextDue sql.NullTime
		advance sql.NullString
	)
	err := row.Scan(&idStr, &loan.Name, &loan.Contact, &loan.Address, &loan.Principal, &loan.TermMonths,
		&loan.InterestRate, &period, &loan.MonthlyPayment, &nextDue, &loan.TotalPenalties,
		&loan.RemainingBalance, &advance, &loan.CreatedAt, &loan.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrLoanNotFound
		}
		return nil, fmt.Errorf("failed to scan loan: %w", err)
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid loan id %q: %w", idStr, err)
	}
	loan.ID = id
	loan.InterestPeriod = domain.InterestPeriod(period)
	if nextDue.Valid {
		due := nextDue.Time
		loan.NextDueDate = &due
	}
	if advance.Valid && advance.String != "" {
		var adv domain.AdvancePayment
		if err := json.Unmarshal([]byte(advance.String), &adv); err != nil {
			return nil, fmt.Errorf("invalid last advance payment: %w", err)
		}
		loan.LastAdvancePayment = &adv
	}
	loan.Payments = []domain.Payment{}
	loan.Penalties = []domain.Penalty{}
	return &loan, nil
}

func loadLoan(ctx context.Context, q queryer, id uuid.UUID) (*domain.Loan, error) {
	row := q.QueryRowContext(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = ?`, id.String())
	loan, err := scanLoan(row)
	if err != nil {
		return nil, err
	}
	if err := loadHistory(ctx, q, loan); err != nil {
		return nil, err
	}
	return loan, nil
}

func loadHistory(ctx context.Context, q queryer, loan *domain.Loan) error {
	rows, err := q.QueryContext(ctx,
		`SELECT amount, paid_at, note FROM loan_payments WHERE loan_id = ? ORDER BY seq`, loan.ID.String())
	if err != nil {
		return fmt.Errorf("failed to get payments: %w", err)
	}
	for rows.Next() {
		var p domain.Payment
		if err := rows.Scan(&p.Amount, &p.Date, &p.Note); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan payment: %w", err)
		}
		loan.Payments = append(loan.Payments, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate payments: %w", err)
	}

	rows, err = q.QueryContext(ctx,
		`SELECT amount, reason, charged_at FROM loan_penalties WHERE loan_id = ? ORDER BY seq`, loan.ID.String())
	if err != nil {
		return fmt.Errorf("failed to get penalties: %w", err)
	}
	for rows.Next() {
		var p domain.Penalty
		if err := rows.Scan(&p.Amount, &p.Reason, &p.Date); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan penalty: %w", err)
		}
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
func insertHistory(ctx context.Context, q queryer, loan *domain.Loan, paymentsFrom, penaltiesFrom int) error {
	for i := paymentsFrom; i < len(loan.Payments); i++ {
		p := loan.Payments[i]
		_, err := q.ExecContext(ctx,
			`INSERT INTO loan_payments (loan_id, seq, amount, paid_at, note) VALUES (?, ?, ?, ?, ?)`,
			loan.ID.String(), i, p.Amount, p.Date, p.Note)
		if err != nil {
			return fmt.Errorf("failed to insert payment: %w", err)
		}
	}
	for i := penaltiesFrom; i < len(loan.Penalties); i++ {
		p := loan.Penalties[i]
		_, err := q.ExecContext(ctx,
			`INSERT INTO loan_penalties (loan_id, seq, amount, reason, charged_at) VALUES (?, ?, ?, ?, ?)`,
			loan.ID.String(), i, p.Amount, p.Reason, p.Date)
		if err != nil {
			return fmt.Errorf("failed to insert penalty: %w", err)
		}
	}
	return nil
}

func encodeAdvance(adv *domain.AdvancePayment) (sql.NullString, error) {
	if adv == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(adv)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode last advance payment: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}
