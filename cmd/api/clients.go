package main

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/mcclellann/cuotas/pkg/apperrors"
	"github.com/mcclellann/cuotas/pkg/ledger"
	"github.com/mcclellann/cuotas/pkg/models"
	"github.com/mcclellann/cuotas/pkg/store"
)

func (s *Server) listClientsHandler(w http.ResponseWriter, r *http.Request) {
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

	clients, meta, err := s.ledger.ListClients(r.Context(), store.ClientFilter{
		Status: status,
		Search: strings.TrimSpace(r.URL.Query().Get("search")),
		Page:   page,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.okPage(w, clients, meta)
}

func (s *Server) registerClientHandler(w http.ResponseWriter, r *http.Request) {
	var req ledger.RegisterClientRequest
	if err := decode(r, registerClientSchema, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	client, err := s.ledger.RegisterClient(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.ok(w, http.StatusCreated, client, "client registered")
}

func (s *Server) getClientHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "client")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	client, err := s.ledger.GetClient(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.ok(w, http.StatusOK, client, "")
}

func (s *Server) updateClientHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "client")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var req ledger.UpdateClientRequest
	if err := decode(r, updateClientSchema, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	req.ID = id
	if req.Status != nil {
		status, err := models.ParseStatus(string(*req.Status))
		if err != nil {
			s.fail(w, r, apperrors.Validation("status", "%v", err))
			return
		}
		req.Status = &status
	}

	client, err := s.ledger.UpdateClient(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.ok(w, http.StatusOK, client, "client updated")
}

func (s *Server) deleteClientHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "client")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	cascade := false
	if raw := r.URL.Query().Get("cascade"); raw != "" {
		if cascade, err = strconv.ParseBool(raw); err != nil {
			s.fail(w, r, apperrors.Validation("cascade", "cascade must be true or false"))
			return
		}
	}

	if err := s.ledger.DeleteClient(r.Context(), id, cascade); err != nil {
		s.fail(w, r, err)
		return
	}
	s.ok(w, http.StatusOK, nil, "client deleted")
}

func (s *Server) markDelinquentHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "client")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	client, changed, err := s.ledger.MarkDelinquent(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.ok(w, http.StatusOK, map[string]any{
		"client":        client,
		"loans_changed": changed,
	}, "client marked delinquent")
}

func (s *Server) recomputeStatusHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "client")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	client, err := s.ledger.RecomputeClientStatus(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.ok(w, http.StatusOK, client, "")
}
