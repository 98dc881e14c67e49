package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is shared by clients and loans.
type Status string

const (
	StatusPending    Status = "pending"
	StatusPaid       Status = "paid"
	StatusDelinquent Status = "delinquent"
)

// Valid reports whether s is one of the three known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPaid, StatusDelinquent:
		return true
	}
	return false
}

// ParseStatus accepts the canonical names and the legacy Spanish ones
// (pendiente, pagado, mora).
func ParseStatus(raw string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "pending", "pendiente":
		return StatusPending, nil
	case "paid", "pagado":
		return StatusPaid, nil
	case "delinquent", "mora":
		return StatusDelinquent, nil
	}
	return "", fmt.Errorf("invalid status %q: use pending, paid or delinquent", raw)
}

// ParseStatusFilter is ParseStatus plus "all"/"todos" and the empty string,
// which all return the zero Status (no filtering).
func ParseStatusFilter(raw string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "all", "todos":
		return "", nil
	}
	return ParseStatus(raw)
}

type PaymentMethod string

const (
	PaymentMethodCash     PaymentMethod = "cash"
	PaymentMethodTransfer PaymentMethod = "transfer"
	PaymentMethodCard     PaymentMethod = "card"
	PaymentMethodCheck    PaymentMethod = "check"
)

// Valid reports whether m is an accepted payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodTransfer, PaymentMethodCard, PaymentMethodCheck:
		return true
	}
	return false
}

type Client struct {
	ID           uuid.UUID `json:"id"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	NationalID   string    `json:"national_id"`
	Phone        string    `json:"phone"`
	Email        string    `json:"email,omitempty"`
	Address      string    `json:"address,omitempty"`
	Status       Status    `json:"status"`
	ActiveLoans  int       `json:"active_loans"`
	RegisteredAt time.Time `json:"registered_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ClientSnapshot is the copy of a client's identity stored on each loan at
// creation time. It is not refreshed when the client is later edited.
type ClientSnapshot struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	NationalID string `json:"national_id"`
	Phone      string `json:"phone"`
}

// Snapshot returns the identity fields copied onto new loans.
func (c *Client) Snapshot() ClientSnapshot {
	return ClientSnapshot{
		FirstName:  c.FirstName,
		LastName:   c.LastName,
		NationalID: c.NationalID,
		Phone:      c.Phone,
	}
}

// ClientSummary is a client enriched with figures derived from its loans.
// Status is re-derived from the loans and may differ from the stored one.
type ClientSummary struct {
	Client
	PendingLoans    int             `json:"pending_loans"`
	PaidLoans       int             `json:"paid_loans"`
	DelinquentLoans int             `json:"delinquent_loans"`
	TotalLoans      int             `json:"total_loans"`
	TotalBalance    decimal.Decimal `json:"total_balance"`
	TotalLent       decimal.Decimal `json:"total_lent"`
}

type Loan struct {
	ID                 uuid.UUID       `json:"id"`
	ClientID           uuid.UUID       `json:"client_id"`
	Client             ClientSnapshot  `json:"client"`
	Principal          decimal.Decimal `json:"principal"`
	MonthlyRate        decimal.Decimal `json:"monthly_rate"` // percent per month
	InstallmentCount   int             `json:"installment_count"`
	InstallmentsPaid   int             `json:"installments_paid"`
	OutstandingBalance decimal.Decimal `json:"outstanding_balance"`
	Status             Status          `json:"status"`
	PrincipalPortion   decimal.Decimal `json:"principal_portion"`
	InterestPortion    decimal.Decimal `json:"interest_portion"`
	LevyPortion        decimal.Decimal `json:"levy_portion"`
	InstallmentAmount  decimal.Decimal `json:"installment_amount"`
	TotalInterest      decimal.Decimal `json:"total_interest"`
	TotalLevy          decimal.Decimal `json:"total_levy"`
	TotalPayable       decimal.Decimal `json:"total_payable"`
	IssuedAt           time.Time       `json:"issued_at"`
	MaturityDate       time.Time       `json:"maturity_date"`
	Notes              string          `json:"notes,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

type Payment struct {
	ID                uuid.UUID       `json:"id"`
	LoanID            uuid.UUID       `json:"loan_id"`
	ClientID          uuid.UUID       `json:"client_id"`
	InstallmentNumber int             `json:"installment_number"`
	AmountPaid        decimal.Decimal `json:"amount_paid"`
	PrincipalPaid     decimal.Decimal `json:"principal_paid"`
	InterestPaid      decimal.Decimal `json:"interest_paid"`
	LevyPaid          decimal.Decimal `json:"levy_paid"`
	PaymentDate       time.Time       `json:"payment_date"`
	Method            PaymentMethod   `json:"method"`
	Reference         string          `json:"reference,omitempty"`
	Notes             string          `json:"notes,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}

const (
	DefaultPageLimit = 100
	MaxPageLimit     = 500
	// MaxPage keeps (Page-1)*Limit well inside the range of a SQL OFFSET.
	MaxPage = 1_000_000
)

// PageRequest carries 1-based pagination parameters.
type PageRequest struct {
	Page  int
	Limit int
}

// Normalize applies the defaults (page 1, limit 100) and caps page and limit.
func (p PageRequest) Normalize() PageRequest {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Page > MaxPage {
		p.Page = MaxPage
	}
	if p.Limit < 1 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	return p
}

// Offset is the number of rows to skip.
func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Page describes the slice of results returned by a list operation.
type Page struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// NewPage builds pagination metadata for total matching rows.
func NewPage(req PageRequest, total int) Page {
	pages := 0
	if req.Limit > 0 {
		pages = (total + req.Limit - 1) / req.Limit
	}
	return Page{Page: req.Page, Limit: req.Limit, Total: total, Pages: pages}
}
