package ledger

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mcclellann/cuotas/pkg/amortization"
	"github.com/mcclellann/cuotas/pkg/apperrors"
	"github.com/mcclellann/cuotas/pkg/models"
)

// RegisterClientRequest carries the fields of a new client.
type RegisterClientRequest struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	NationalID string `json:"national_id"`
	Phone      string `json:"phone"`
	Email      string `json:"email"`
	Address    string `json:"address"`
}

// normalize trims every field and lower-cases the e-mail.
func (r RegisterClientRequest) normalize() RegisterClientRequest {
	return RegisterClientRequest{
		FirstName:  strings.TrimSpace(r.FirstName),
		LastName:   strings.TrimSpace(r.LastName),
		NationalID: strings.TrimSpace(r.NationalID),
		Phone:      strings.TrimSpace(r.Phone),
		Email:      strings.ToLower(strings.TrimSpace(r.Email)),
		Address:    strings.TrimSpace(r.Address),
	}
}

// Validate checks required fields after trimming.
func (r RegisterClientRequest) Validate() error {
	n := r.normalize()
	for _, f := range []struct{ name, value string }{
		{"first_name", n.FirstName},
		{"last_name", n.LastName},
		{"national_id", n.NationalID},
		{"phone", n.Phone},
	} {
		if f.value == "" {
			return apperrors.Validation(f.name, "%s is required", f.name)
		}
	}
	return validateEmail(n.Email)
}

func validateEmail(email string) error {
	if email == "" {
		return nil
	}
	at := strings.Index(email, "@")
	if at < 1 || at == len(email)-1 || strings.ContainsAny(email, " \t") {
		return apperrors.Validation("email", "email %q is not a valid address", email)
	}
	return nil
}

// UpdateClientRequest changes the non-nil fields of a client. Status is the
// manual override used to clear a delinquency.
type UpdateClientRequest struct {
	ID         uuid.UUID      `json:"-"`
	FirstName  *string        `json:"first_name,omitempty"`
	LastName   *string        `json:"last_name,omitempty"`
	NationalID *string        `json:"national_id,omitempty"`
	Phone      *string        `json:"phone,omitempty"`
	Email      *string        `json:"email,omitempty"`
	Address    *string        `json:"address,omitempty"`
	Status     *models.Status `json:"status,omitempty"`
}

func (r UpdateClientRequest) Validate() error {
	if r.ID == uuid.Nil {
		return apperrors.Validation("id", "client id is required")
	}
	for _, f := range []struct {
		name  string
		value *string
	}{
		{"first_name", r.FirstName},
		{"last_name", r.LastName},
		{"national_id", r.NationalID},
		{"phone", r.Phone},
	} {
		if f.value != nil && strings.TrimSpace(*f.value) == "" {
			return apperrors.Validation(f.name, "%s cannot be empty", f.name)
		}
	}
	if r.Email != nil {
		if err := validateEmail(strings.ToLower(strings.TrimSpace(*r.Email))); err != nil {
			return err
		}
	}
	if r.Status != nil && !r.Status.Valid() {
		return apperrors.Validation("status", "invalid status %q: use pending, paid or delinquent", *r.Status)
	}
	return nil
}

// apply copies the set fields onto c.
func (r UpdateClientRequest) apply(c *models.Client) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	set(&c.FirstName, r.FirstName)
	set(&c.LastName, r.LastName)
	set(&c.NationalID, r.NationalID)
	set(&c.Phone, r.Phone)
	set(&c.Address, r.Address)
	if r.Email != nil {
		c.Email = strings.ToLower(strings.TrimSpace(*r.Email))
	}
	if r.Status != nil {
		c.Status = *r.Status
	}
}

// CreateLoanRequest issues a loan of Principal at MonthlyRate percent per
// month over InstallmentCount monthly installments.
type CreateLoanRequest struct {
	ClientID         uuid.UUID       `json:"client_id"`
	Principal        decimal.Decimal `json:"principal"`
	MonthlyRate      decimal.Decimal `json:"monthly_rate"`
	InstallmentCount int             `json:"installment_count"`
	Notes            string          `json:"notes"`
}

func (r CreateLoanRequest) Validate() error {
	if r.ClientID == uuid.Nil {
		return apperrors.Validation("client_id", "client id is required")
	}
	if !r.Principal.IsPositive() {
		return apperrors.Validation("principal", "principal must be greater than 0")
	}
	if r.MonthlyRate.IsNegative() {
		return apperrors.Validation("monthly_rate", "monthly rate cannot be negative")
	}
	if r.InstallmentCount < 1 {
		return apperrors.Validation("installment_count", "installment count must be at least 1")
	}
	if r.InstallmentCount > amortization.MaxInstallments {
		return apperrors.Validation("installment_count", "installment count cannot exceed %d", amortization.MaxInstallments)
	}
	return nil
}

// ApplyPaymentRequest pays one installment of a loan. AmountPaid is only
// checked against the tolerance band; the recorded amount is always the
// loan's installment amount.
type ApplyPaymentRequest struct {
	LoanID            uuid.UUID            `json:"loan_id"`
	InstallmentNumber int                  `json:"installment_number"`
	AmountPaid        decimal.Decimal      `json:"amount_paid"`
	PaymentDate       *time.Time           `json:"payment_date,omitempty"`
	Method            models.PaymentMethod `json:"method,omitempty"`
	Reference         string               `json:"reference,omitempty"`
	Notes             string               `json:"notes,omitempty"`
}

func (r ApplyPaymentRequest) Validate() error {
	if r.LoanID == uuid.Nil {
		return apperrors.Validation("loan_id", "loan id is required")
	}
	if r.InstallmentNumber < 1 {
		return apperrors.Validation("installment_number", "installment number must be at least 1")
	}
	if !r.AmountPaid.IsPositive() {
		return apperrors.Validation("amount_paid", "amount paid must be greater than 0")
	}
	if r.Method != "" && !r.Method.Valid() {
		return apperrors.Validation("method", "invalid payment method %q: use cash, transfer, card or check", r.Method)
	}
	return nil
}
