package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/cuotas/pkg/models"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

// SQLStore implements Storage on database/sql for SQLite and PostgreSQL.
// Decimal amounts are stored as TEXT so no precision is lost.
type SQLStore struct {
	db      *sql.DB
	q       querier
	dialect Dialect
	inTx    bool
}

// Options tune the connection pool opened by Open.
type Options struct {
	MaxOpenConns int
}

// Open connects to the database named by dsn and creates the schema.
func Open(ctx context.Context, dialect Dialect, dsn string, opts Options) (*SQLStore, error) {
	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	switch dialect {
	case DialectSQLite:
		// SQLite has a single writer; one connection also keeps the
		// per-connection pragmas below in effect.
		db.SetMaxOpenConns(1)
		for _, pragma := range []string{"PRAGMA foreign_keys = ON;", "PRAGMA journal_mode = WAL;", "PRAGMA busy_timeout = 5000;"} {
			if _, err := db.ExecContext(ctx, pragma); err != nil {
				db.Close()
				return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
			}
		}
	default:
		if opts.MaxOpenConns > 0 {
			db.SetMaxOpenConns(opts.MaxOpenConns)
			db.SetMaxIdleConns(opts.MaxOpenConns)
		}
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}

	s := NewSQLStore(db, dialect)
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not initialize schema: %w", err)
	}
	return s, nil
}

// NewSQLStore wraps an already opened database without touching the schema.
func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, q: db, dialect: dialect}
}

func (s *SQLStore) initSchema(ctx context.Context) error {
	ts := s.dialect.timestampType()
	statements := []string{
		`CREATE TABLE IF NOT EXISTS clients (
			id TEXT PRIMARY KEY,
			first_name TEXT NOT NULL,
			last_name TEXT NOT NULL,
			national_id TEXT NOT NULL UNIQUE,
			phone TEXT NOT NULL,
			email TEXT NOT NULL DEFAULT '',
			address TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			active_loans INTEGER NOT NULL DEFAULT 0,
			registered_at ` + ts + ` NOT NULL,
			created_at ` + ts + ` NOT NULL,
			updated_at ` + ts + ` NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS loans (
			id TEXT PRIMARY KEY,
			client_id TEXT NOT NULL REFERENCES clients(id),
			client_first_name TEXT NOT NULL,
			client_last_name TEXT NOT NULL,
			client_national_id TEXT NOT NULL,
			client_phone TEXT NOT NULL,
			principal TEXT NOT NULL,
			monthly_rate TEXT NOT NULL,
			installment_count INTEGER NOT NULL,
			installments_paid INTEGER NOT NULL DEFAULT 0,
			outstanding_balance TEXT NOT NULL,
			status TEXT NOT NULL,
			principal_portion TEXT NOT NULL,
			interest_portion TEXT NOT NULL,
			levy_portion TEXT NOT NULL,
			installment_amount TEXT NOT NULL,
			total_interest TEXT NOT NULL,
			total_levy TEXT NOT NULL,
			total_payable TEXT NOT NULL,
			issued_at ` + ts + ` NOT NULL,
			maturity_date ` + ts + ` NOT NULL,
			notes TEXT NOT NULL DEFAULT '',
			created_at ` + ts + ` NOT NULL,
			updated_at ` + ts + ` NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_loans_client ON loans (client_id)`,
		`CREATE INDEX IF NOT EXISTS idx_loans_status ON loans (status)`,
		`CREATE TABLE IF NOT EXISTS payments (
			id TEXT PRIMARY KEY,
			loan_id TEXT NOT NULL REFERENCES loans(id),
			client_id TEXT NOT NULL REFERENCES clients(id),
			installment_number INTEGER NOT NULL,
			amount_paid TEXT NOT NULL,
			principal_paid TEXT NOT NULL,
			interest_paid TEXT NOT NULL,
			levy_paid TEXT NOT NULL,
			payment_date ` + ts + ` NOT NULL,
			method TEXT NOT NULL,
			reference TEXT NOT NULL DEFAULT '',
			notes TEXT NOT NULL DEFAULT '',
			created_at ` + ts + ` NOT NULL,
			UNIQUE (loan_id, installment_number)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_client ON payments (client_id, payment_date)`,
	}
	for _, stmt := range statements {
		if _, err := s.q.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLStore) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	res, err := s.q.ExecContext(ctx, s.dialect.rebind(query), args...)
	return res, translateError(err)
}

func (s *SQLStore) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.q.QueryContext(ctx, s.dialect.rebind(query), args...)
}

func (s *SQLStore) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.q.QueryRowContext(ctx, s.dialect.rebind(query), args...)
}

// execOne runs a statement that must touch exactly one row.
func execOne(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) count(ctx context.Context, table string, where string, args []any) (int, error) {
	var total int
	if err := s.queryRow(ctx, "SELECT COUNT(*) FROM "+table+where, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// WithTx runs fn inside a transaction. Nested calls reuse the outer one.
func (s *SQLStore) WithTx(ctx context.Context, fn func(tx Storage) error) error {
	if s.inTx {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	txStore := &SQLStore{db: s.db, q: tx, dialect: s.dialect, inTx: true}
	if err := fn(txStore); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("failed to roll back transaction: %w (original error: %w)", rbErr, err)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Ping checks the database connection.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func whereClause(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

func likePattern(search string) string {
	return "%" + strings.ToLower(strings.TrimSpace(search)) + "%"
}

func parseID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("corrupt id %q: %w", raw, err)
	}
	return id, nil
}

// ---- clients ----

const clientColumns = `id, first_name, last_name, national_id, phone, email, address, status, active_loans, registered_at, created_at, updated_at`

func scanClient(sc scanner) (*models.Client, error) {
	var c models.Client
	var id, status string
	if err := sc.Scan(&id, &c.FirstName, &c.LastName, &c.NationalID, &c.Phone, &c.Email, &c.Address, &status, &c.ActiveLoans, &c.RegisteredAt, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	parsed, err := parseID(id)
	if err != nil {
		return nil, err
	}
	c.ID = parsed
	c.Status = models.Status(status)
	return &c, nil
}

// CreateClient inserts a new client.
func (s *SQLStore) CreateClient(ctx context.Context, c *models.Client) error {
	_, err := s.exec(ctx,
		`INSERT INTO clients (`+clientColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID.String(), c.FirstName, c.LastName, c.NationalID, c.Phone, c.Email, c.Address, string(c.Status), c.ActiveLoans, c.RegisteredAt, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	return nil
}

// GetClient retrieves a client by its ID.
func (s *SQLStore) GetClient(ctx context.Context, id uuid.UUID) (*models.Client, error) {
	c, err := scanClient(s.queryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = ?`, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	return c, nil
}

// UpdateClient overwrites every mutable column of the client.
func (s *SQLStore) UpdateClient(ctx context.Context, c *models.Client) error {
	err := execOne(s.exec(ctx,
		`UPDATE clients SET first_name = ?, last_name = ?, national_id = ?, phone = ?, email = ?, address = ?, status = ?, active_loans = ?, updated_at = ? WHERE id = ?`,
		c.FirstName, c.LastName, c.NationalID, c.Phone, c.Email, c.Address, string(c.Status), c.ActiveLoans, c.UpdatedAt, c.ID.String(),
	))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("failed to update client: %w", err)
	}
	return err
}

// DeleteClient removes a client. It fails with ErrReferenced while loans or
// payments still point at it.
func (s *SQLStore) DeleteClient(ctx context.Context, id uuid.UUID) error {
	err := execOne(s.exec(ctx, `DELETE FROM clients WHERE id = ?`, id.String()))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("failed to delete client: %w", err)
	}
	return err
}

// ListClients returns clients matching the filter, newest first.
func (s *SQLStore) ListClients(ctx context.Context, f ClientFilter) ([]*models.Client, int, error) {
	var conds []string
	var args []any
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.Search != "" {
		p := likePattern(f.Search)
		conds = append(conds, "(LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR LOWER(national_id) LIKE ? OR LOWER(phone) LIKE ?)")
		args = append(args, p, p, p, p)
	}
	where := whereClause(conds)

	total, err := s.count(ctx, "clients", where, args)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count clients: %w", err)
	}

	page := f.Page.Normalize()
	rows, err := s.query(ctx,
		`SELECT `+clientColumns+` FROM clients`+where+` ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		append(args, page.Limit, page.Offset())...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list clients: %w", err)
	}
	defer rows.Close()

	var clients []*models.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan client row: %w", err)
		}
		clients = append(clients, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error during rows iteration: %w", err)
	}
	return clients, total, nil
}

// ---- loans ----

const loanColumns = `id, client_id, client_first_name, client_last_name, client_national_id, client_phone, principal, monthly_rate, installment_count, installments_paid, outstanding_balance, status, principal_portion, interest_portion, levy_portion, installment_amount, total_interest, total_levy, total_payable, issued_at, maturity_date, notes, created_at, updated_at`

func scanLoan(sc scanner) (*models.Loan, error) {
	var l models.Loan
	var id, clientID, status string
	err := sc.Scan(&id, &clientID, &l.Client.FirstName, &l.Client.LastName, &l.Client.NationalID, &l.Client.Phone,
		&l.Principal, &l.MonthlyRate, &l.InstallmentCount, &l.InstallmentsPaid, &l.OutstandingBalance, &status,
		&l.PrincipalPortion, &l.InterestPortion, &l.LevyPortion, &l.InstallmentAmount, &l.TotalInterest, &l.TotalLevy, &l.TotalPayable,
		&l.IssuedAt, &l.MaturityDate, &l.Notes, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if l.ID, err = parseID(id); err != nil {
		return nil, err
	}
	if l.ClientID, err = parseID(clientID); err != nil {
		return nil, err
	}
	l.Status = models.Status(status)
	return &l, nil
}

func (s *SQLStore) scanLoans(rows *sql.Rows) ([]*models.Loan, error) {
	var loans []*models.Loan
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan loan row: %w", err)
		}
		loans = append(loans, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return loans, nil
}

// CreateLoan inserts a new loan.
func (s *SQLStore) CreateLoan(ctx context.Context, l *models.Loan) error {
	_, err := s.exec(ctx,
		`INSERT INTO loans (`+loanColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID.String(), l.ClientID.String(), l.Client.FirstName, l.Client.LastName, l.Client.NationalID, l.Client.Phone,
		l.Principal, l.MonthlyRate, l.InstallmentCount, l.InstallmentsPaid, l.OutstandingBalance, string(l.Status),
		l.PrincipalPortion, l.InterestPortion, l.LevyPortion, l.InstallmentAmount, l.TotalInterest, l.TotalLevy, l.TotalPayable,
		l.IssuedAt, l.MaturityDate, l.Notes, l.CreatedAt, l.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create loan: %w", err)
	}
	return nil
}

func (s *SQLStore) getLoan(ctx context.Context, id uuid.UUID, suffix string) (*models.Loan, error) {
	l, err := scanLoan(s.queryRow(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = ?`+suffix, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get loan: %w", err)
	}
	return l, nil
}

// GetLoan retrieves a loan by its ID.
func (s *SQLStore) GetLoan(ctx context.Context, id uuid.UUID) (*models.Loan, error) {
	return s.getLoan(ctx, id, "")
}

// GetLoanForUpdate retrieves a loan and, on PostgreSQL, locks its row.
func (s *SQLStore) GetLoanForUpdate(ctx context.Context, id uuid.UUID) (*models.Loan, error) {
	return s.getLoan(ctx, id, s.dialect.forUpdate())
}

// UpdateLoan writes the loan's mutable state. Terms, schedule figures and the
// client snapshot are fixed at creation.
func (s *SQLStore) UpdateLoan(ctx context.Context, l *models.Loan) error {
	err := execOne(s.exec(ctx,
		`UPDATE loans SET installments_paid = ?, outstanding_balance = ?, status = ?, notes = ?, updated_at = ? WHERE id = ?`,
		l.InstallmentsPaid, l.OutstandingBalance, string(l.Status), l.Notes, l.UpdatedAt, l.ID.String(),
	))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("failed to update loan: %w", err)
	}
	return err
}

// DeleteLoan removes a loan and its payments within a transaction.
func (s *SQLStore) DeleteLoan(ctx context.Context, id uuid.UUID) error {
	return s.WithTx(ctx, func(tx Storage) error {
		txs := tx.(*SQLStore)
		if _, err := txs.exec(ctx, `DELETE FROM payments WHERE loan_id = ?`, id.String()); err != nil {
			return fmt.Errorf("failed to delete associated payments: %w", err)
		}
		err := execOne(txs.exec(ctx, `DELETE FROM loans WHERE id = ?`, id.String()))
		if err != nil && !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("failed to delete loan: %w", err)
		}
		return err
	})
}

// ListLoans returns loans matching the filter, most recently issued first.
func (s *SQLStore) ListLoans(ctx context.Context, f LoanFilter) ([]*models.Loan, int, error) {
	var conds []string
	var args []any
	if f.ClientID != uuid.Nil {
		conds = append(conds, "client_id = ?")
		args = append(args, f.ClientID.String())
	}
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.Search != "" {
		p := likePattern(f.Search)
		conds = append(conds, "(LOWER(client_first_name) LIKE ? OR LOWER(client_last_name) LIKE ? OR LOWER(client_national_id) LIKE ?)")
		args = append(args, p, p, p)
	}
	where := whereClause(conds)

	total, err := s.count(ctx, "loans", where, args)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count loans: %w", err)
	}

	page := f.Page.Normalize()
	rows, err := s.query(ctx,
		`SELECT `+loanColumns+` FROM loans`+where+` ORDER BY issued_at DESC LIMIT ? OFFSET ?`,
		append(args, page.Limit, page.Offset())...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list loans: %w", err)
	}
	defer rows.Close()

	loans, err := s.scanLoans(rows)
	if err != nil {
		return nil, 0, err
	}
	return loans, total, nil
}

// GetLoansForClient returns every loan of a client, oldest first.
func (s *SQLStore) GetLoansForClient(ctx context.Context, clientID uuid.UUID) ([]*models.Loan, error) {
	rows, err := s.query(ctx, `SELECT `+loanColumns+` FROM loans WHERE client_id = ? ORDER BY issued_at ASC`, clientID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to get loans for client %s: %w", clientID, err)
	}
	defer rows.Close()
	return s.scanLoans(rows)
}

// MarkLoansDelinquent flags every pending loan of the client as delinquent.
func (s *SQLStore) MarkLoansDelinquent(ctx context.Context, clientID uuid.UUID, at time.Time) (int64, error) {
	res, err := s.exec(ctx,
		`UPDATE loans SET status = ?, updated_at = ? WHERE client_id = ? AND status = ?`,
		string(models.StatusDelinquent), at, clientID.String(), string(models.StatusPending),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark loans delinquent: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check rows affected: %w", err)
	}
	return n, nil
}

// ---- payments ----

const paymentColumns = `id, loan_id, client_id, installment_number, amount_paid, principal_paid, interest_paid, levy_paid, payment_date, method, reference, notes, created_at`

func scanPayment(sc scanner) (*models.Payment, error) {
	var p models.Payment
	var id, loanID, clientID, method string
	err := sc.Scan(&id, &loanID, &clientID, &p.InstallmentNumber, &p.AmountPaid, &p.PrincipalPaid, &p.InterestPaid, &p.LevyPaid,
		&p.PaymentDate, &method, &p.Reference, &p.Notes, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	if p.ID, err = parseID(id); err != nil {
		return nil, err
	}
	if p.LoanID, err = parseID(loanID); err != nil {
		return nil, err
	}
	if p.ClientID, err = parseID(clientID); err != nil {
		return nil, err
	}
	p.Method = models.PaymentMethod(method)
	return &p, nil
}

func (s *SQLStore) scanPayments(rows *sql.Rows) ([]*models.Payment, error) {
	var payments []*models.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment row: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return payments, nil
}

// CreatePayment inserts a payment. A second payment for the same loan and
// installment number fails with ErrDuplicate.
func (s *SQLStore) CreatePayment(ctx context.Context, p *models.Payment) error {
	_, err := s.exec(ctx,
		`INSERT INTO payments (`+paymentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID.String(), p.LoanID.String(), p.ClientID.String(), p.InstallmentNumber, p.AmountPaid, p.PrincipalPaid, p.InterestPaid, p.LevyPaid,
		p.PaymentDate, string(p.Method), p.Reference, p.Notes, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

// GetPayment retrieves a payment by its ID.
func (s *SQLStore) GetPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	p, err := scanPayment(s.queryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = ?`, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return p, nil
}

// GetPaymentForInstallment retrieves the payment of one installment of a loan.
func (s *SQLStore) GetPaymentForInstallment(ctx context.Context, loanID uuid.UUID, installment int) (*models.Payment, error) {
	p, err := scanPayment(s.queryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE loan_id = ? AND installment_number = ?`,
		loanID.String(), installment,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get payment for installment: %w", err)
	}
	return p, nil
}

// DeletePayment removes a single payment record.
func (s *SQLStore) DeletePayment(ctx context.Context, id uuid.UUID) error {
	err := execOne(s.exec(ctx, `DELETE FROM payments WHERE id = ?`, id.String()))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("failed to delete payment: %w", err)
	}
	return err
}

// ListPayments returns payments matching the filter, newest first.
func (s *SQLStore) ListPayments(ctx context.Context, f PaymentFilter) ([]*models.Payment, int, error) {
	var conds []string
	var args []any
	if f.LoanID != uuid.Nil {
		conds = append(conds, "loan_id = ?")
		args = append(args, f.LoanID.String())
	}
	if f.ClientID != uuid.Nil {
		conds = append(conds, "client_id = ?")
		args = append(args, f.ClientID.String())
	}
	where := whereClause(conds)

	total, err := s.count(ctx, "payments", where, args)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count payments: %w", err)
	}

	page := f.Page.Normalize()
	rows, err := s.query(ctx,
		`SELECT `+paymentColumns+` FROM payments`+where+` ORDER BY payment_date DESC LIMIT ? OFFSET ?`,
		append(args, page.Limit, page.Offset())...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	payments, err := s.scanPayments(rows)
	if err != nil {
		return nil, 0, err
	}
	return payments, total, nil
}

// GetPaymentsForLoan returns a loan's payments ordered by installment number.
func (s *SQLStore) GetPaymentsForLoan(ctx context.Context, loanID uuid.UUID) ([]*models.Payment, error) {
	rows, err := s.query(ctx, `SELECT `+paymentColumns+` FROM payments WHERE loan_id = ? ORDER BY installment_number ASC`, loanID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to get payments for loan %s: %w", loanID, err)
	}
	defer rows.Close()
	return s.scanPayments(rows)
}
