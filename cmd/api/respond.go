package main

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	"github.com/mcclellann/cuotas/pkg/apperrors"
	"github.com/mcclellann/cuotas/pkg/models"
)

const maxBodyBytes = 1 << 20

// envelope is the shape of every JSON response.
type envelope struct {
	Success    bool         `json:"success"`
	Data       any          `json:"data,omitempty"`
	Error      string       `json:"error,omitempty"`
	Message    string       `json:"message,omitempty"`
	Pagination *models.Page `json:"pagination,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (s *Server) ok(w http.ResponseWriter, status int, data any, message string) {
	s.writeJSON(w, status, envelope{Success: true, Data: data, Message: message})
}

func (s *Server) okPage(w http.ResponseWriter, data any, page models.Page) {
	s.writeJSON(w, http.StatusOK, envelope{Success: true, Data: data, Pagination: &page})
}

// fail maps err onto its HTTP status. Internal failures are logged and
// replaced by a generic message.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := apperrors.CodeOf(err)
	if code == apperrors.CodeInternal {
		s.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	s.writeJSON(w, apperrors.HTTPStatus(code), envelope{Success: false, Error: apperrors.PublicMessage(err)})
}

// decode validates the request body against schema and unmarshals it into dst.
func decode(r *http.Request, schema *gojsonschema.Schema, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return apperrors.Validation("body", "could not read request body")
	}
	if len(body) > maxBodyBytes {
		return apperrors.Validation("body", "request body is too large")
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return apperrors.Validation("body", "request body is required")
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return apperrors.Validation("body", "request body is not valid JSON")
	}
	if !result.Valid() {
		first := result.Errors()[0]
		field := first.Field()
		if field == "(root)" {
			if p, ok := first.Details()["property"].(string); ok {
				field = p
			}
		}
		return apperrors.Validation(field, "%s", first.String())
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return apperrors.Validation("body", "invalid request body: %v", err)
	}
	return nil
}

func pathID(r *http.Request, entity string) (uuid.UUID, error) {
	raw := mux.Vars(r)["id"]
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperrors.Validation("id", "invalid %s id %q", entity, raw)
	}
	return id, nil
}

func queryID(r *http.Request, name string) (uuid.UUID, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperrors.Validation(name, "invalid %s %q", name, raw)
	}
	return id, nil
}

func queryPage(r *http.Request) (models.PageRequest, error) {
	var req models.PageRequest
	for _, p := range []struct {
		name string
		dst  *int
	}{{"page", &req.Page}, {"limit", &req.Limit}} {
		raw := r.URL.Query().Get(p.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return req, apperrors.Validation(p.name, "%s must be a positive integer", p.name)
		}
		*p.dst = n
	}
	if req.Page > models.MaxPage {
		return req, apperrors.Validation("page", "page cannot exceed %d", models.MaxPage)
	}
	return req.Normalize(), nil
}

func queryStatus(r *http.Request) (models.Status, error) {
	status, err := models.ParseStatusFilter(r.URL.Query().Get("status"))
	if err != nil {
		return "", apperrors.Validation("status", "%v", err)
	}
	return status, nil
}
