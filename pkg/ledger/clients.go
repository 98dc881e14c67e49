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

// RegisterClient stores a new client with status pending. A national ID
// already on file is a conflict.
func (l *Ledger) RegisterClient(ctx context.Context, req RegisterClientRequest) (*models.Client, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	req = req.normalize()

	now := l.now()
	client := &models.Client{
		ID:           uuid.New(),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		NationalID:   req.NationalID,
		Phone:        req.Phone,
		Email:        req.Email,
		Address:      req.Address,
		Status:       models.StatusPending,
		RegisteredAt: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := l.storage.CreateClient(ctx, client); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperrors.Conflict("a client with national id %s already exists", client.NationalID)
		}
		return nil, internal("failed to store client", err)
	}

	l.logger.Info("client registered", zap.Stringer("client_id", client.ID))
	return client, nil
}

// GetClient returns a client with the figures derived from its loans.
func (l *Ledger) GetClient(ctx context.Context, id uuid.UUID) (*models.ClientSummary, error) {
	client, err := l.storage.GetClient(ctx, id)
	if err != nil {
		return nil, notFoundOr("failed to get client", "client", id, err)
	}
	return l.summarize(ctx, client)
}

// ListClients returns a page of clients with their loan aggregates.
func (l *Ledger) ListClients(ctx context.Context, filter store.ClientFilter) ([]*models.ClientSummary, models.Page, error) {
	filter.Page = filter.Page.Normalize()
	clients, total, err := l.storage.ListClients(ctx, filter)
	if err != nil {
		return nil, models.Page{}, internal("failed to list clients", err)
	}

	summaries := make([]*models.ClientSummary, 0, len(clients))
	for _, c := range clients {
		s, err := l.summarize(ctx, c)
		if err != nil {
			return nil, models.Page{}, err
		}
		summaries = append(summaries, s)
	}
	return summaries, models.NewPage(filter.Page, total), nil
}

func (l *Ledger) summarize(ctx context.Context, c *models.Client) (*models.ClientSummary, error) {
	loans, err := l.storage.GetLoansForClient(ctx, c.ID)
	if err != nil {
		return nil, internal("failed to get client loans", err)
	}

	s := &models.ClientSummary{
		Client:       *c,
		TotalLoans:   len(loans),
		TotalBalance: decimal.Zero,
		TotalLent:    decimal.Zero,
	}
	for _, loan := range loans {
		switch loan.Status {
		case models.StatusPending:
			s.PendingLoans++
		case models.StatusPaid:
			s.PaidLoans++
		case models.StatusDelinquent:
			s.DelinquentLoans++
		}
		s.TotalBalance = s.TotalBalance.Add(loan.OutstandingBalance)
		s.TotalLent = s.TotalLent.Add(loan.Principal)
	}
	s.Status = DeriveClientStatus(c.Status, loans)
	return s, nil
}

// UpdateClient applies a partial update, including a manual status change.
func (l *Ledger) UpdateClient(ctx context.Context, req UpdateClientRequest) (*models.Client, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var updated *models.Client
	err := l.storage.WithTx(ctx, func(tx store.Storage) error {
		client, err := tx.GetClient(ctx, req.ID)
		if err != nil {
			return notFoundOr("failed to get client", "client", req.ID, err)
		}
		previous := client.Status
		req.apply(client)
		client.UpdatedAt = l.now()

		if err := tx.UpdateClient(ctx, client); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return apperrors.Conflict("a client with national id %s already exists", client.NationalID)
			}
			return internal("failed to update client", err)
		}
		if previous != client.Status {
			l.logger.Info("client status changed manually",
				zap.Stringer("client_id", client.ID),
				zap.String("from", string(previous)),
				zap.String("to", string(client.Status)))
		}
		updated = client
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteClient removes a client. A client that still has loans is only
// removed when cascade is set, in which case its payments and loans are
// deleted first within the same transaction.
func (l *Ledger) DeleteClient(ctx context.Context, id uuid.UUID, cascade bool) error {
	err := l.storage.WithTx(ctx, func(tx store.Storage) error {
		if _, err := tx.GetClient(ctx, id); err != nil {
			return notFoundOr("failed to get client", "client", id, err)
		}
		loans, err := tx.GetLoansForClient(ctx, id)
		if err != nil {
			return internal("failed to get client loans", err)
		}

		if len(loans) > 0 && !cascade {
			var open, paid int
			for _, loan := range loans {
				if loan.Status == models.StatusPaid {
					paid++
				} else {
					open++
				}
			}
			return apperrors.Conflict("client has %d pending and %d paid loans; confirm cascade to delete them", open, paid)
		}

		for _, loan := range loans {
			if err := tx.DeleteLoan(ctx, loan.ID); err != nil {
				return internal("failed to delete client loan", err)
			}
		}
		if err := tx.DeleteClient(ctx, id); err != nil {
			if errors.Is(err, store.ErrReferenced) {
				return apperrors.Conflict("client %s still has loans or payments", id)
			}
			return notFoundOr("failed to delete client", "client", id, err)
		}
		if len(loans) > 0 {
			l.logger.Warn("client deleted with cascade", zap.Stringer("client_id", id), zap.Int("loans", len(loans)))
		}
		return nil
	})
	if err != nil {
		return err
	}
	l.logger.Info("client deleted", zap.Stringer("client_id", id))
	return nil
}
