package main

import (
	"net/http"
	"time"

	"github.com/mcclellann/cuotas/pkg/apperrors"
	"github.com/mcclellann/cuotas/pkg/ledger"
	"github.com/mcclellann/cuotas/pkg/store"
)

// paymentBody accepts payment_date either as a calendar date or as RFC 3339.
type paymentBody struct {
	ledger.ApplyPaymentRequest
	PaymentDate string `json:"payment_date"`
}

func (b paymentBody) request() (ledger.ApplyPaymentRequest, error) {
	req := b.ApplyPaymentRequest
	if b.PaymentDate == "" {
		return req, nil
	}
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if t, err := time.Parse(layout, b.PaymentDate); err == nil {
			req.PaymentDate = &t
			return req, nil
		}
	}
	return req, apperrors.Validation("payment_date", "payment_date %q must be YYYY-MM-DD or RFC 3339", b.PaymentDate)
}

func (s *Server) listPaymentsHandler(w http.ResponseWriter, r *http.Request) {
	loanID, err := queryID(r, "loanId")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	clientID, err := queryID(r, "clientId")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	page, err := queryPage(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	payments, meta, err := s.ledger.ListPayments(r.Context(), store.PaymentFilter{
		LoanID:   loanID,
		ClientID: clientID,
		Page:     page,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.okPage(w, payments, meta)
}

func (s *Server) applyPaymentHandler(w http.ResponseWriter, r *http.Request) {
	var body paymentBody
	if err := decode(r, applyPaymentSchema, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	req, err := body.request()
	if err != nil {
		s.fail(w, r, err)
		return
	}

	result, err := s.ledger.ApplyPayment(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.ok(w, http.StatusCreated, result, "payment recorded")
}

func (s *Server) getPaymentHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "payment")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	payment, err := s.ledger.GetPayment(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.ok(w, http.StatusOK, payment, "")
}

func (s *Server) deletePaymentHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "payment")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if err := s.ledger.DeletePayment(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	s.ok(w, http.StatusOK, nil, "payment deleted")
}
