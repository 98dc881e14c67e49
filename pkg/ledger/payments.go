package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mcclellann/cuotas/pkg/apperrors"
	"github.com/mcclellann/cuotas/pkg/models"
	"github.com/mcclellann/cuotas/pkg/store"
)

// PaymentTolerance is the largest accepted deviation of the amount paid from
// the installment amount, as a fraction of the installment amount.
var PaymentTolerance = decimal.RequireFromString("0.05")

// PaymentResult is a recorded payment together with the loan it updated.
type PaymentResult struct {
	Payment *models.Payment `json:"payment"`
	Loan    *models.Loan    `json:"loan"`
}

// ApplyPayment records the payment of one installment and advances the
// loan. Paying the last installment settles the balance to zero, marks the
// loan paid and marks the owning client paid with one active loan less. All
// writes happen in one transaction; a rejected payment leaves the ledger
// unchanged.
func (l *Ledger) ApplyPayment(ctx context.Context, req ApplyPaymentRequest) (*PaymentResult, error) {
	result, err := l.applyPayment(ctx, req)
	if err != nil {
		l.metrics.PaymentsRejected.WithLabelValues(rejectionReason(err)).Inc()
		if apperrors.Is(err, apperrors.CodeInternal) {
			l.logger.Error("payment failed", zap.Stringer("loan_id", req.LoanID), zap.Error(err))
		} else {
			l.logger.Warn("payment rejected",
				zap.Stringer("loan_id", req.LoanID),
				zap.Int("installment", req.InstallmentNumber),
				zap.String("reason", apperrors.PublicMessage(err)))
		}
		return nil, err
	}

	l.metrics.PaymentsRecorded.WithLabelValues(string(result.Payment.Method)).Inc()
	fields := []zap.Field{
		zap.Stringer("loan_id", result.Loan.ID),
		zap.Int("installment", result.Payment.InstallmentNumber),
		zap.String("balance", result.Loan.OutstandingBalance.StringFixed(2)),
	}
	if result.Loan.Status == models.StatusPaid {
		l.metrics.LoansPaidOff.Inc()
		l.logger.Info("loan paid off", fields...)
	} else {
		l.logger.Info("payment recorded", fields...)
	}
	return result, nil
}

func (l *Ledger) applyPayment(ctx context.Context, req ApplyPaymentRequest) (*PaymentResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var result *PaymentResult
	err := l.storage.WithTx(ctx, func(tx store.Storage) error {
		loan, err := tx.GetLoanForUpdate(ctx, req.LoanID)
		if err != nil {
			return notFoundOr("failed to get loan", "loan", req.LoanID, err)
		}

		if req.InstallmentNumber > loan.InstallmentCount {
			return apperrors.Validation("installment_number",
				"installment %d is out of range: loan has %d installments", req.InstallmentNumber, loan.InstallmentCount)
		}
		if loan.Status == models.StatusPaid || loan.InstallmentsPaid >= loan.InstallmentCount {
			return apperrors.Conflict("loan %s is already paid", loan.ID)
		}
		switch _, err := tx.GetPaymentForInstallment(ctx, loan.ID, req.InstallmentNumber); {
		case err == nil:
			return apperrors.Conflict("installment %d of loan %s is already paid", req.InstallmentNumber, loan.ID)
		case !errors.Is(err, store.ErrNotFound):
			return internal("failed to check installment payment", err)
		}
		band := loan.InstallmentAmount.Mul(PaymentTolerance)
		if req.AmountPaid.Sub(loan.InstallmentAmount).Abs().GreaterThan(band) {
			return apperrors.Validation("amount_paid",
				"amount %s differs from the installment amount %s by more than 5%%",
				req.AmountPaid.String(), loan.InstallmentAmount.StringFixed(2))
		}

		now := l.now()
		payment := &models.Payment{
			ID:                uuid.New(),
			LoanID:            loan.ID,
			ClientID:          loan.ClientID,
			InstallmentNumber: req.InstallmentNumber,
			AmountPaid:        loan.InstallmentAmount,
			PrincipalPaid:     loan.PrincipalPortion,
			InterestPaid:      loan.InterestPortion,
			LevyPaid:          loan.LevyPortion,
			PaymentDate:       now,
			Method:            req.Method,
			Reference:         req.Reference,
			Notes:             req.Notes,
			CreatedAt:         now,
		}
		if req.PaymentDate != nil {
			payment.PaymentDate = req.PaymentDate.UTC()
		}
		if payment.Method == "" {
			payment.Method = models.PaymentMethodCash
		}
		if err := tx.CreatePayment(ctx, payment); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return apperrors.Conflict("installment %d of loan %s is already paid", req.InstallmentNumber, loan.ID)
			}
			return internal("failed to store payment", err)
		}

		loan.InstallmentsPaid++
		if loan.InstallmentsPaid >= loan.InstallmentCount {
			loan.OutstandingBalance = decimal.Zero
			loan.Status = models.StatusPaid
		} else {
			loan.OutstandingBalance = loan.OutstandingBalance.Sub(payment.AmountPaid)
			if loan.OutstandingBalance.IsNegative() {
				loan.OutstandingBalance = decimal.Zero
			}
		}
		loan.UpdatedAt = now
		if err := tx.UpdateLoan(ctx, loan); err != nil {
			return internal("failed to update loan", err)
		}

		if loan.Status == models.StatusPaid {
			client, err := tx.GetClient(ctx, loan.ClientID)
			if err != nil {
				return internal("failed to get loan client", err)
			}
			if client.ActiveLoans > 0 {
				client.ActiveLoans--
			}
			client.Status = models.StatusPaid
			client.UpdatedAt = now
			if err := tx.UpdateClient(ctx, client); err != nil {
				return internal("failed to update client", err)
			}
		}

		result = &PaymentResult{Payment: payment, Loan: loan}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func rejectionReason(err error) string {
	switch apperrors.CodeOf(err) {
	case apperrors.CodeValidation:
		return "validation"
	case apperrors.CodeNotFound:
		return "not_found"
	case apperrors.CodeConflict:
		return "conflict"
	}
	return "internal"
}

// GetPayment retrieves a payment by its ID.
func (l *Ledger) GetPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	p, err := l.storage.GetPayment(ctx, id)
	if err != nil {
		return nil, notFoundOr("failed to get payment", "payment", id, err)
	}
	return p, nil
}

// ListPayments returns a page of payments, newest first.
func (l *Ledger) ListPayments(ctx context.Context, filter store.PaymentFilter) ([]*models.Payment, models.Page, error) {
	filter.Page = filter.Page.Normalize()
	payments, total, err := l.storage.ListPayments(ctx, filter)
	if err != nil {
		return nil, models.Page{}, internal("failed to list payments", err)
	}
	return payments, models.NewPage(filter.Page, total), nil
}

// DeletePayment removes a payment record. The loan's counters, balance and
// status are not rolled back.
func (l *Ledger) DeletePayment(ctx context.Context, id uuid.UUID) error {
	if err := l.storage.DeletePayment(ctx, id); err != nil {
		return notFoundOr("failed to delete payment", "payment", id, err)
	}
	l.logger.Warn("payment deleted; loan totals not adjusted", zap.Stringer("payment_id", id))
	return nil
}
