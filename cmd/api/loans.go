package main

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mcclellann/cuotas/pkg/apperrors"
	"github.com/mcclellann/cuotas/pkg/ledger"
	"github.com/mcclellann/cuotas/pkg/store"
)

func (s *Server) listLoansHandler(w http.ResponseWriter, r *http.Request) {
	clientID, err := queryID(r, "clientId")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	status, err := queryStatus(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	page, err := queryPage(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	loans, meta, err := s.ledger.ListLoans(r.Context(), store.LoanFilter{
		ClientID: clientID,
		Status:   status,
		Search:   strings.TrimSpace(r.URL.Query().Get("search")),
		Page:     page,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.okPage(w, loans, meta)
}

func (s *Server) createLoanHandler(w http.ResponseWriter, r *http.Request) {
	var req ledger.CreateLoanRequest
	if err := decode(r, createLoanSchema, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	loan, err := s.ledger.CreateLoan(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.ok(w, http.StatusCreated, loan, "loan created")
}

func (s *Server) quoteHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	principal, err := decimal.NewFromString(q.Get("principal"))
	if err != nil {
		s.fail(w, r, apperrors.Validation("principal", "principal must be a number"))
		return
	}
	rate := decimal.Zero
	if raw := q.Get("rate"); raw != "" {
		if rate, err = decimal.NewFromString(raw); err != nil {
			s.fail(w, r, apperrors.Validation("rate", "rate must be a number"))
			return
		}
	}
	count, err := strconv.Atoi(q.Get("installments"))
	if err != nil {
		s.fail(w, r, apperrors.Validation("installments", "installments must be an integer"))
		return
	}

	schedule, rows, err := s.ledger.Quote(ledger.CreateLoanRequest{
		Principal:        principal,
		MonthlyRate:      rate,
		InstallmentCount: count,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.ok(w, http.StatusOK, map[string]any{
		"schedule":     schedule,
		"installments": rows,
	}, "")
}

func (s *Server) getLoanHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "loan")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	loan, err := s.ledger.GetLoan(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.ok(w, http.StatusOK, loan, "")
}

func (s *Server) deleteLoanHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "loan")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if err := s.ledger.DeleteLoan(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	s.ok(w, http.StatusOK, nil, "loan deleted")
}

func (s *Server) loanScheduleHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "loan")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	schedule, err := s.ledger.LoanSchedule(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.ok(w, http.StatusOK, schedule, "")
}
