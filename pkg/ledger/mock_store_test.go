package ledger

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mcclellann/cuotas/pkg/models"
	"github.com/mcclellann/cuotas/pkg/store"
)

// MockStore is a simple in-memory implementation of the Storage interface for
// testing. It enforces the same unique keys as the SQL schema and restores
// its previous contents when a WithTx callback fails.
type MockStore struct {
	clients  map[uuid.UUID]*models.Client
	loans    map[uuid.UUID]*models.Loan
	payments map[uuid.UUID]*models.Payment

	// failOn makes the named method return errBoom.
	failOn string
}

var errBoom = errors.New("boom")

func NewMockStore() *MockStore {
	return &MockStore{
		clients:  make(map[uuid.UUID]*models.Client),
		loans:    make(map[uuid.UUID]*models.Loan),
		payments: make(map[uuid.UUID]*models.Payment),
	}
}

func (m *MockStore) fail(method string) error {
	if m.failOn == method {
		return errBoom
	}
	return nil
}

func (m *MockStore) CreateClient(_ context.Context, c *models.Client) error {
	if err := m.fail("CreateClient"); err != nil {
		return err
	}
	for _, existing := range m.clients {
		if existing.NationalID == c.NationalID {
			return store.ErrDuplicate
		}
	}
	cp := *c
	m.clients[c.ID] = &cp
	return nil
}

func (m *MockStore) GetClient(_ context.Context, id uuid.UUID) (*models.Client, error) {
	c, ok := m.clients[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *MockStore) UpdateClient(_ context.Context, c *models.Client) error {
	if err := m.fail("UpdateClient"); err != nil {
		return err
	}
	if _, ok := m.clients[c.ID]; !ok {
		return store.ErrNotFound
	}
	for id, existing := range m.clients {
		if id != c.ID && existing.NationalID == c.NationalID {
			return store.ErrDuplicate
		}
	}
	cp := *c
	m.clients[c.ID] = &cp
	return nil
}

func (m *MockStore) DeleteClient(_ context.Context, id uuid.UUID) error {
	if _, ok := m.clients[id]; !ok {
		return store.ErrNotFound
	}
	for _, l := range m.loans {
		if l.ClientID == id {
			return store.ErrReferenced
		}
	}
	delete(m.clients, id)
	return nil
}

func (m *MockStore) ListClients(_ context.Context, f store.ClientFilter) ([]*models.Client, int, error) {
	var out []*models.Client
	for _, c := range m.clients {
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(c.FirstName+" "+c.LastName+" "+c.NationalID), strings.ToLower(f.Search)) {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	total := len(out)
	return paginate(out, f.Page), total, nil
}

func (m *MockStore) CreateLoan(_ context.Context, l *models.Loan) error {
	if err := m.fail("CreateLoan"); err != nil {
		return err
	}
	if _, ok := m.clients[l.ClientID]; !ok {
		return store.ErrReferenced
	}
	cp := *l
	m.loans[l.ID] = &cp
	return nil
}

func (m *MockStore) GetLoan(_ context.Context, id uuid.UUID) (*models.Loan, error) {
	l, ok := m.loans[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (m *MockStore) GetLoanForUpdate(ctx context.Context, id uuid.UUID) (*models.Loan, error) {
	return m.GetLoan(ctx, id)
}

func (m *MockStore) UpdateLoan(_ context.Context, l *models.Loan) error {
	if err := m.fail("UpdateLoan"); err != nil {
		return err
	}
	if _, ok := m.loans[l.ID]; !ok {
		return store.ErrNotFound
	}
	cp := *l
	m.loans[l.ID] = &cp
	return nil
}

func (m *MockStore) DeleteLoan(_ context.Context, id uuid.UUID) error {
	if _, ok := m.loans[id]; !ok {
		return store.ErrNotFound
	}
	for pid, p := range m.payments {
		if p.LoanID == id {
			delete(m.payments, pid)
		}
	}
	delete(m.loans, id)
	return nil
}

func (m *MockStore) ListLoans(_ context.Context, f store.LoanFilter) ([]*models.Loan, int, error) {
	var out []*models.Loan
	for _, l := range m.loans {
		if f.ClientID != uuid.Nil && l.ClientID != f.ClientID {
			continue
		}
		if f.Status != "" && l.Status != f.Status {
			continue
		}
		cp := *l
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IssuedAt.After(out[j].IssuedAt) })
	total := len(out)
	return paginate(out, f.Page), total, nil
}

func (m *MockStore) GetLoansForClient(_ context.Context, clientID uuid.UUID) ([]*models.Loan, error) {
	out := []*models.Loan{}
	for _, l := range m.loans {
		if l.ClientID == clientID {
			cp := *l
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IssuedAt.Before(out[j].IssuedAt) })
	return out, nil
}

func (m *MockStore) MarkLoansDelinquent(_ context.Context, clientID uuid.UUID, at time.Time) (int64, error) {
	var n int64
	for _, l := range m.loans {
		if l.ClientID == clientID && l.Status == models.StatusPending {
			l.Status = models.StatusDelinquent
			l.UpdatedAt = at
			n++
		}
	}
	return n, nil
}

func (m *MockStore) CreatePayment(_ context.Context, p *models.Payment) error {
	if err := m.fail("CreatePayment"); err != nil {
		return err
	}
	for _, existing := range m.payments {
		if existing.LoanID == p.LoanID && existing.InstallmentNumber == p.InstallmentNumber {
			return store.ErrDuplicate
		}
	}
	cp := *p
	m.payments[p.ID] = &cp
	return nil
}

func (m *MockStore) GetPayment(_ context.Context, id uuid.UUID) (*models.Payment, error) {
	p, ok := m.payments[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockStore) GetPaymentForInstallment(_ context.Context, loanID uuid.UUID, installment int) (*models.Payment, error) {
	if err := m.fail("GetPaymentForInstallment"); err != nil {
		return nil, err
	}
	for _, p := range m.payments {
		if p.LoanID == loanID && p.InstallmentNumber == installment {
			cp := *p
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *MockStore) DeletePayment(_ context.Context, id uuid.UUID) error {
	if _, ok := m.payments[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.payments, id)
	return nil
}

func (m *MockStore) ListPayments(_ context.Context, f store.PaymentFilter) ([]*models.Payment, int, error) {
	var out []*models.Payment
	for _, p := range m.payments {
		if f.LoanID != uuid.Nil && p.LoanID != f.LoanID {
			continue
		}
		if f.ClientID != uuid.Nil && p.ClientID != f.ClientID {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PaymentDate.After(out[j].PaymentDate) })
	total := len(out)
	return paginate(out, f.Page), total, nil
}

func (m *MockStore) GetPaymentsForLoan(_ context.Context, loanID uuid.UUID) ([]*models.Payment, error) {
	out := []*models.Payment{}
	for _, p := range m.payments {
		if p.LoanID == loanID {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InstallmentNumber < out[j].InstallmentNumber })
	return out, nil
}

func (m *MockStore) WithTx(_ context.Context, fn func(tx store.Storage) error) error {
	clients, loans, payments := cloneMap(m.clients), cloneMap(m.loans), cloneMap(m.payments)
	if err := fn(m); err != nil {
		m.clients, m.loans, m.payments = clients, loans, payments
		return err
	}
	return nil
}

func (m *MockStore) Ping(context.Context) error { return nil }

func (m *MockStore) Close() error {
	return nil
}

func cloneMap[T any](src map[uuid.UUID]*T) map[uuid.UUID]*T {
	dst := make(map[uuid.UUID]*T, len(src))
	for k, v := range src {
		cp := *v
		dst[k] = &cp
	}
	return dst
}

func paginate[T any](items []T, req models.PageRequest) []T {
	req = req.Normalize()
	start := req.Offset()
	if start >= len(items) {
		return nil
	}
	end := start + req.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
