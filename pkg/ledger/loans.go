package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mcclellann/cuotas/pkg/amortization"
	"github.com/mcclellann/cuotas/pkg/models"
	"github.com/mcclellann/cuotas/pkg/store"
)

// CreateLoan issues a loan to an existing client. The schedule is computed
// once and the full total payable becomes the outstanding balance. The
// client's active-loan counter and status are updated in the same
// transaction.
func (l *Ledger) CreateLoan(ctx context.Context, req CreateLoanRequest) (*models.Loan, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	schedule, err := amortization.Calculate(req.Principal, req.MonthlyRate, req.InstallmentCount)
	if err != nil {
		return nil, err
	}

	var loan *models.Loan
	err = l.storage.WithTx(ctx, func(tx store.Storage) error {
		client, err := tx.GetClient(ctx, req.ClientID)
		if err != nil {
			return notFoundOr("failed to get client", "client", req.ClientID, err)
		}

		now := l.now()
		loan = &models.Loan{
			ID:                 uuid.New(),
			ClientID:           client.ID,
			Client:             client.Snapshot(),
			Principal:          req.Principal,
			MonthlyRate:        req.MonthlyRate,
			InstallmentCount:   req.InstallmentCount,
			OutstandingBalance: schedule.TotalPayable,
			Status:             models.StatusPending,
			PrincipalPortion:   schedule.PrincipalPortion,
			InterestPortion:    schedule.InterestPortion,
			LevyPortion:        schedule.LevyPortion,
			InstallmentAmount:  schedule.InstallmentAmount,
			TotalInterest:      schedule.TotalInterest,
			TotalLevy:          schedule.TotalLevy,
			TotalPayable:       schedule.TotalPayable,
			IssuedAt:           now,
			MaturityDate:       amortization.MaturityDate(now, req.InstallmentCount),
			Notes:              req.Notes,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		if err := tx.CreateLoan(ctx, loan); err != nil {
			return internal("failed to store loan", err)
		}

		loans, err := tx.GetLoansForClient(ctx, client.ID)
		if err != nil {
			return internal("failed to get client loans", err)
		}
		client.ActiveLoans++
		client.Status = DeriveClientStatus(client.Status, loans)
		client.UpdatedAt = now
		if err := tx.UpdateClient(ctx, client); err != nil {
			return internal("failed to update client", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.metrics.LoansCreated.Inc()
	l.metrics.AmountDisbursed.Add(loan.Principal.InexactFloat64())
	l.logger.Info("loan created",
		zap.Stringer("loan_id", loan.ID),
		zap.Stringer("client_id", loan.ClientID),
		zap.String("principal", loan.Principal.String()),
		zap.String("installment_amount", loan.InstallmentAmount.StringFixed(2)),
		zap.Int("installments", loan.InstallmentCount))
	return loan, nil
}

// GetLoan retrieves a loan by its ID.
func (l *Ledger) GetLoan(ctx context.Context, id uuid.UUID) (*models.Loan, error) {
	loan, err := l.storage.GetLoan(ctx, id)
	if err != nil {
		return nil, notFoundOr("failed to get loan", "loan", id, err)
	}
	return loan, nil
}

// ListLoans returns a page of loans matching filter.
func (l *Ledger) ListLoans(ctx context.Context, filter store.LoanFilter) ([]*models.Loan, models.Page, error) {
	filter.Page = filter.Page.Normalize()
	loans, total, err := l.storage.ListLoans(ctx, filter)
	if err != nil {
		return nil, models.Page{}, internal("failed to list loans", err)
	}
	return loans, models.NewPage(filter.Page, total), nil
}

// DeleteLoan removes a loan and its payments. Client counters are left as
// they are.
func (l *Ledger) DeleteLoan(ctx context.Context, id uuid.UUID) error {
	if err := l.storage.DeleteLoan(ctx, id); err != nil {
		return notFoundOr("failed to delete loan", "loan", id, err)
	}
	l.logger.Info("loan deleted", zap.Stringer("loan_id", id))
	return nil
}

// ScheduleEntry is an installment row annotated with its payment, if any.
type ScheduleEntry struct {
	amortization.Installment
	Paid      bool       `json:"paid"`
	PaymentID *uuid.UUID `json:"payment_id,omitempty"`
	PaidAt    *time.Time `json:"paid_at,omitempty"`
}

// LoanSchedule is the full installment plan of a loan.
type LoanSchedule struct {
	Loan         *models.Loan    `json:"loan"`
	Installments []ScheduleEntry `json:"installments"`
}

// LoanSchedule expands a loan's plan from its stored figures and marks the
// installments that have a recorded payment.
func (l *Ledger) LoanSchedule(ctx context.Context, id uuid.UUID) (*LoanSchedule, error) {
	loan, err := l.GetLoan(ctx, id)
	if err != nil {
		return nil, err
	}
	payments, err := l.storage.GetPaymentsForLoan(ctx, id)
	if err != nil {
		return nil, internal("failed to get loan payments", err)
	}
	paid := make(map[int]*models.Payment, len(payments))
	for _, p := range payments {
		paid[p.InstallmentNumber] = p
	}

	plan := amortization.Schedule{
		InstallmentCount:  loan.InstallmentCount,
		PrincipalPortion:  loan.PrincipalPortion,
		InterestPortion:   loan.InterestPortion,
		BaseInstallment:   loan.PrincipalPortion.Add(loan.InterestPortion),
		LevyPortion:       loan.LevyPortion,
		InstallmentAmount: loan.InstallmentAmount,
		TotalInterest:     loan.TotalInterest,
		TotalLevy:         loan.TotalLevy,
		TotalPayable:      loan.TotalPayable,
	}
	rows := plan.Installments(loan.IssuedAt)
	entries := make([]ScheduleEntry, len(rows))
	for i, row := range rows {
		entries[i] = ScheduleEntry{Installment: row}
		if p, ok := paid[row.Number]; ok {
			entries[i].Paid = true
			entries[i].PaymentID = &p.ID
			entries[i].PaidAt = &p.PaymentDate
		}
	}
	return &LoanSchedule{Loan: loan, Installments: entries}, nil
}

// MarkDelinquent flags a client and every one of its pending loans as
// delinquent. Paid loans are untouched. It returns the updated client and
// the number of loans changed.
func (l *Ledger) MarkDelinquent(ctx context.Context, clientID uuid.UUID) (*models.Client, int64, error) {
	var (
		client  *models.Client
		changed int64
	)
	err := l.storage.WithTx(ctx, func(tx store.Storage) error {
		var err error
		client, err = tx.GetClient(ctx, clientID)
		if err != nil {
			return notFoundOr("failed to get client", "client", clientID, err)
		}

		now := l.now()
		changed, err = tx.MarkLoansDelinquent(ctx, clientID, now)
		if err != nil {
			return internal("failed to mark loans delinquent", err)
		}
		client.Status = models.StatusDelinquent
		client.UpdatedAt = now
		if err := tx.UpdateClient(ctx, client); err != nil {
			return internal("failed to update client", err)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	l.metrics.ClientsMarkedDelinquent.Inc()
	l.metrics.LoansMarkedDelinquent.Add(float64(changed))
	l.logger.Warn("client marked delinquent", zap.Stringer("client_id", clientID), zap.Int64("loans_changed", changed))
	return client, changed, nil
}

// RecomputeClientStatus re-derives a client's status from its loans and
// stores it if it changed.
func (l *Ledger) RecomputeClientStatus(ctx context.Context, clientID uuid.UUID) (*models.Client, error) {
	var client *models.Client
	err := l.storage.WithTx(ctx, func(tx store.Storage) error {
		var err error
		client, err = tx.GetClient(ctx, clientID)
		if err != nil {
			return notFoundOr("failed to get client", "client", clientID, err)
		}
		loans, err := tx.GetLoansForClient(ctx, clientID)
		if err != nil {
			return internal("failed to get client loans", err)
		}

		status := DeriveClientStatus(client.Status, loans)
		if status == client.Status {
			return nil
		}
		l.logger.Info("client status recomputed",
			zap.Stringer("client_id", clientID),
			zap.String("from", string(client.Status)),
			zap.String("to", string(status)))
		client.Status = status
		client.UpdatedAt = l.now()
		if err := tx.UpdateClient(ctx, client); err != nil {
			return internal("failed to update client", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Quote computes the plan of a prospective loan without storing anything.
func (l *Ledger) Quote(req CreateLoanRequest) (amortization.Schedule, []amortization.Installment, error) {
	schedule, err := amortization.Calculate(req.Principal, req.MonthlyRate, req.InstallmentCount)
	if err != nil {
		return amortization.Schedule{}, nil, err
	}
	return schedule, schedule.Installments(l.now()), nil
}
