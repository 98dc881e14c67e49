// Package amortization computes flat-rate installment plans.
//
// Interest and the transaction levy are computed once on the original
// principal and repeated unchanged on every installment; the balance does
// not decline between installments for interest purposes.
package amortization

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mcclellann/cuotas/pkg/apperrors"
)

var (
	hundred = decimal.NewFromInt(100)

	// LevyRate is the proportional levy (4 per 1000) charged on each
	// installment's base amount.
	LevyRate = decimal.RequireFromString("0.004")
)

// MaxInstallments bounds the installment count of a plan (50 years monthly).
const MaxInstallments = 600

// Schedule holds the figures derived from a loan's terms. Values are kept at
// full precision; callers round for display.
type Schedule struct {
	InstallmentCount  int             `json:"installment_count"`
	PrincipalPortion  decimal.Decimal `json:"principal_portion"`
	InterestPortion   decimal.Decimal `json:"interest_portion"`
	BaseInstallment   decimal.Decimal `json:"base_installment"`
	LevyPortion       decimal.Decimal `json:"levy_portion"`
	InstallmentAmount decimal.Decimal `json:"installment_amount"`
	TotalInterest     decimal.Decimal `json:"total_interest"`
	TotalLevy         decimal.Decimal `json:"total_levy"`
	TotalPayable      decimal.Decimal `json:"total_payable"`
}

// Calculate derives the fixed monthly plan for principal lent at
// monthlyRatePercent (percent per month) over installmentCount installments.
func Calculate(principal, monthlyRatePercent decimal.Decimal, installmentCount int) (Schedule, error) {
	if !principal.IsPositive() {
		return Schedule{}, apperrors.Validation("principal", "principal must be greater than 0")
	}
	if monthlyRatePercent.IsNegative() {
		return Schedule{}, apperrors.Validation("monthly_rate", "monthly rate cannot be negative")
	}
	if installmentCount < 1 {
		return Schedule{}, apperrors.Validation("installment_count", "installment count must be at least 1")
	}
	if installmentCount > MaxInstallments {
		return Schedule{}, apperrors.Validation("installment_count", "installment count cannot exceed %d", MaxInstallments)
	}

	count := decimal.NewFromInt(int64(installmentCount))
	rate := monthlyRatePercent.Div(hundred)

	principalPortion := principal.Div(count)
	interestPortion := principal.Mul(rate)
	base := principalPortion.Add(interestPortion)
	levy := base.Mul(LevyRate)
	totalInterest := interestPortion.Mul(count)
	totalLevy := levy.Mul(count)

	return Schedule{
		InstallmentCount:  installmentCount,
		PrincipalPortion:  principalPortion,
		InterestPortion:   interestPortion,
		BaseInstallment:   base,
		LevyPortion:       levy,
		InstallmentAmount: base.Add(levy),
		TotalInterest:     totalInterest,
		TotalLevy:         totalLevy,
		TotalPayable:      principal.Add(totalInterest).Add(totalLevy),
	}, nil
}

// Installment is one row of an expanded plan.
type Installment struct {
	Number           int             `json:"number"`
	DueDate          time.Time       `json:"due_date"`
	Principal        decimal.Decimal `json:"principal"`
	Interest         decimal.Decimal `json:"interest"`
	Levy             decimal.Decimal `json:"levy"`
	Amount           decimal.Decimal `json:"amount"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
}

// Installments expands the plan into one row per installment, the first due
// one month after start. The last row's remaining balance is exactly zero.
func (s Schedule) Installments(start time.Time) []Installment {
	rows := make([]Installment, 0, s.InstallmentCount)
	remaining := s.TotalPayable
	for n := 1; n <= s.InstallmentCount; n++ {
		remaining = remaining.Sub(s.InstallmentAmount)
		if n == s.InstallmentCount || remaining.IsNegative() {
			remaining = decimal.Zero
		}
		rows = append(rows, Installment{
			Number:           n,
			DueDate:          start.AddDate(0, n, 0),
			Principal:        s.PrincipalPortion,
			Interest:         s.InterestPortion,
			Levy:             s.LevyPortion,
			Amount:           s.InstallmentAmount,
			RemainingBalance: remaining,
		})
	}
	return rows
}

// MaturityDate is the due date of the last installment.
func MaturityDate(issued time.Time, installmentCount int) time.Time {
	return issued.AddDate(0, installmentCount, 0)
}
