package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/cuotas/pkg/models"
)

var (
	// ErrNotFound is returned when the addressed row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique constraint rejects a write.
	ErrDuplicate = errors.New("duplicate record")
	// ErrReferenced is returned when a delete would orphan dependent rows.
	ErrReferenced = errors.New("record is still referenced")
)

type ClientFilter struct {
	Status models.Status
	Search string
	Page   models.PageRequest
}

type LoanFilter struct {
	ClientID uuid.UUID
	Status   models.Status
	Search   string
	Page     models.PageRequest
}

type PaymentFilter struct {
	LoanID   uuid.UUID
	ClientID uuid.UUID
	Page     models.PageRequest
}

// Storage defines the persistence operations for clients, loans and payments.
// List methods return the requested page and the total number of matches.
type Storage interface {
	CreateClient(ctx context.Context, client *models.Client) error
	GetClient(ctx context.Context, id uuid.UUID) (*models.Client, error)
	UpdateClient(ctx context.Context, client *models.Client) error
	DeleteClient(ctx context.Context, id uuid.UUID) error
	ListClients(ctx context.Context, filter ClientFilter) ([]*models.Client, int, error)

	CreateLoan(ctx context.Context, loan *models.Loan) error
	GetLoan(ctx context.Context, id uuid.UUID) (*models.Loan, error)
	// GetLoanForUpdate reads a loan and locks its row until the surrounding
	// transaction ends, where the backend supports row locks.
	GetLoanForUpdate(ctx context.Context, id uuid.UUID) (*models.Loan, error)
	UpdateLoan(ctx context.Context, loan *models.Loan) error
	// DeleteLoan removes a loan together with its payments.
	DeleteLoan(ctx context.Context, id uuid.UUID) error
	ListLoans(ctx context.Context, filter LoanFilter) ([]*models.Loan, int, error)
	GetLoansForClient(ctx context.Context, clientID uuid.UUID) ([]*models.Loan, error)
	// MarkLoansDelinquent moves every pending loan of the client to
	// delinquent and returns how many rows changed.
	MarkLoansDelinquent(ctx context.Context, clientID uuid.UUID, at time.Time) (int64, error)

	CreatePayment(ctx context.Context, payment *models.Payment) error
	GetPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	// GetPaymentForInstallment returns the payment recorded for one
	// installment of a loan, or ErrNotFound.
	GetPaymentForInstallment(ctx context.Context, loanID uuid.UUID, installment int) (*models.Payment, error)
	DeletePayment(ctx context.Context, id uuid.UUID) error
	ListPayments(ctx context.Context, filter PaymentFilter) ([]*models.Payment, int, error)
	GetPaymentsForLoan(ctx context.Context, loanID uuid.UUID) ([]*models.Payment, error)

	// WithTx runs fn against a Storage bound to a single transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(tx Storage) error) error
	Ping(ctx context.Context) error
	Close() error
}
