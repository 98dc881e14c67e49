package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mcclellann/cuotas/pkg/ledger"
	"github.com/mcclellann/cuotas/pkg/metrics"
	"github.com/mcclellann/cuotas/pkg/models"
	"github.com/mcclellann/cuotas/pkg/store"
)

type testAPI struct {
	router  *mux.Router
	metrics *metrics.Metrics
}

func setupTestServer(t *testing.T) *testAPI {
	t.Helper()
	s, err := store.Open(context.Background(), store.DialectSQLite, filepath.Join(t.TempDir(), "test_api.db"), store.Options{})
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	log := zaptest.NewLogger(t)
	server := NewServer(ledger.NewLedger(s, ledger.WithLogger(log), ledger.WithMetrics(m)), log, m, reg)
	return &testAPI{router: server.Router(), metrics: m}
}

type response struct {
	Success    bool            `json:"success"`
	Data       json.RawMessage `json:"data"`
	Error      string          `json:"error"`
	Message    string          `json:"message"`
	Pagination *models.Page    `json:"pagination"`
}

func (a *testAPI) do(t *testing.T, method, path string, body any) (int, response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rr := httptest.NewRecorder()
	a.router.ServeHTTP(rr, req)

	var resp response
	if strings.HasPrefix(rr.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp), rr.Body.String())
	}
	return rr.Code, resp
}

func decodeData[T any](t *testing.T, resp response) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(resp.Data, &v), string(resp.Data))
	return v
}

func (a *testAPI) createClient(t *testing.T, nationalID string) models.Client {
	t.Helper()
	code, resp := a.do(t, "POST", "/api/clients", map[string]any{
		"first_name":  "Ana",
		"last_name":   "Restrepo",
		"national_id": nationalID,
		"phone":       "3001234567",
		"email":       "Ana@Example.com",
	})
	require.Equal(t, http.StatusCreated, code, resp.Error)
	return decodeData[models.Client](t, resp)
}

func (a *testAPI) createLoan(t *testing.T, clientID string) models.Loan {
	t.Helper()
	code, resp := a.do(t, "POST", "/api/loans", map[string]any{
		"client_id":         clientID,
		"principal":         1000000,
		"monthly_rate":      "2",
		"installment_count": 12,
	})
	require.Equal(t, http.StatusCreated, code, resp.Error)
	return decodeData[models.Loan](t, resp)
}

func TestAPI_CreateAndGetLoan(t *testing.T) {
	api := setupTestServer(t)
	client := api.createClient(t, "1020304050")
	if client.Email != "ana@example.com" {
		t.Errorf("Expected lower-cased email, got %s", client.Email)
	}

	loan := api.createLoan(t, client.ID.String())
	if got := loan.InstallmentAmount.StringFixed(2); got != "103746.67" {
		t.Errorf("Expected installment 103746.67, got %s", got)
	}
	if got := loan.TotalPayable.StringFixed(2); got != "1244960.00" {
		t.Errorf("Expected total payable 1244960.00, got %s", got)
	}

	code, resp := api.do(t, "GET", "/api/loans/"+loan.ID.String(), nil)
	if code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", code)
	}
	fetched := decodeData[models.Loan](t, resp)
	if fetched.ID != loan.ID {
		t.Errorf("Expected ID %s, got %s", loan.ID, fetched.ID)
	}
	if fetched.Client.NationalID != "1020304050" {
		t.Errorf("Expected snapshot national id, got %s", fetched.Client.NationalID)
	}

	code, resp = api.do(t, "GET", "/api/clients/"+client.ID.String(), nil)
	require.Equal(t, http.StatusOK, code)
	summary := decodeData[models.ClientSummary](t, resp)
	assert.Equal(t, 1, summary.ActiveLoans)
	assert.Equal(t, 1, summary.PendingLoans)
}

func TestAPI_RecordPayments(t *testing.T) {
	api := setupTestServer(t)
	client := api.createClient(t, "1")
	loan := api.createLoan(t, client.ID.String())

	code, resp := api.do(t, "POST", "/api/payments", map[string]any{
		"loan_id":            loan.ID,
		"installment_number": 1,
		"amount_paid":        100000,
		"payment_date":       "2026-02-10",
		"method":             "transfer",
	})
	require.Equal(t, http.StatusCreated, code, resp.Error)
	result := decodeData[ledger.PaymentResult](t, resp)
	assert.True(t, result.Payment.AmountPaid.Equal(loan.InstallmentAmount))
	assert.Equal(t, "2026-02-10", result.Payment.PaymentDate.Format("2006-01-02"))
	assert.Equal(t, 1, result.Loan.InstallmentsPaid)

	code, resp = api.do(t, "POST", "/api/payments", map[string]any{
		"loan_id":            loan.ID,
		"installment_number": 1,
		"amount_paid":        loan.InstallmentAmount,
	})
	assert.Equal(t, http.StatusConflict, code)
	assert.False(t, resp.Success)

	code, resp = api.do(t, "POST", "/api/payments", map[string]any{
		"loan_id":            loan.ID,
		"installment_number": 1,
		"amount_paid":        "1",
	})
	assert.Equal(t, http.StatusConflict, code, resp.Error)

	code, _ = api.do(t, "POST", "/api/payments", map[string]any{
		"loan_id":            loan.ID,
		"installment_number": 2,
		"amount_paid":        50000,
	})
	assert.Equal(t, http.StatusBadRequest, code)

	for n := 2; n <= 12; n++ {
		code, resp = api.do(t, "POST", "/api/payments", map[string]any{
			"loan_id":            loan.ID,
			"installment_number": n,
			"amount_paid":        loan.InstallmentAmount.StringFixed(2),
		})
		require.Equal(t, http.StatusCreated, code, resp.Error)
	}
	result = decodeData[ledger.PaymentResult](t, resp)
	assert.Equal(t, models.StatusPaid, result.Loan.Status)
	assert.True(t, result.Loan.OutstandingBalance.IsZero())

	code, resp = api.do(t, "GET", "/api/payments?loanId="+loan.ID.String()+"&limit=5", nil)
	require.Equal(t, http.StatusOK, code)
	require.NotNil(t, resp.Pagination)
	assert.Equal(t, 12, resp.Pagination.Total)
	assert.Equal(t, 3, resp.Pagination.Pages)
	assert.Len(t, decodeData[[]models.Payment](t, resp), 5)

	code, resp = api.do(t, "GET", "/api/clients?status=pagado", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decodeData[[]models.ClientSummary](t, resp), 1)

	assert.Equal(t, 12.0, testutil.ToFloat64(api.metrics.PaymentsRecorded.WithLabelValues("cash"))+
		testutil.ToFloat64(api.metrics.PaymentsRecorded.WithLabelValues("transfer")))
}

func TestAPI_ValidationErrors(t *testing.T) {
	api := setupTestServer(t)
	client := api.createClient(t, "1")

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"missing phone", "POST", "/api/clients", map[string]any{"first_name": "A", "last_name": "B", "national_id": "9"}, http.StatusBadRequest},
		{"unknown field", "POST", "/api/clients", map[string]any{"first_name": "A", "last_name": "B", "national_id": "9", "phone": "1", "action": "x"}, http.StatusBadRequest},
		{"malformed json", "POST", "/api/clients", "{", http.StatusBadRequest},
		{"empty body", "POST", "/api/loans", nil, http.StatusBadRequest},
		{"zero principal", "POST", "/api/loans", map[string]any{"client_id": client.ID, "principal": 0, "monthly_rate": 2, "installment_count": 12}, http.StatusBadRequest},
		{"bad client id", "POST", "/api/loans", map[string]any{"client_id": "nope", "principal": 10, "monthly_rate": 2, "installment_count": 12}, http.StatusBadRequest},
		{"bad method", "POST", "/api/payments", map[string]any{"loan_id": client.ID, "installment_number": 1, "amount_paid": 1, "method": "crypto"}, http.StatusBadRequest},
		{"bad path id", "GET", "/api/loans/not-a-uuid", nil, http.StatusBadRequest},
		{"bad status filter", "GET", "/api/loans?status=late", nil, http.StatusBadRequest},
		{"bad page", "GET", "/api/clients?page=0", nil, http.StatusBadRequest},
		{"page out of range", "GET", "/api/payments?page=4611686018427387904", nil, http.StatusBadRequest},
		{"too many installments", "POST", "/api/loans", map[string]any{"client_id": client.ID, "principal": 1000, "monthly_rate": 1, "installment_count": 601}, http.StatusBadRequest},
		{"quote too many installments", "GET", "/api/loans/quote?principal=1000&rate=1&installments=2199023255552", nil, http.StatusBadRequest},
		{"unknown loan", "GET", "/api/loans/" + client.ID.String(), nil, http.StatusNotFound},
		{"duplicate national id", "POST", "/api/clients", map[string]any{"first_name": "A", "last_name": "B", "national_id": "1", "phone": "1"}, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, resp := api.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, code, resp.Error)
			assert.False(t, resp.Success)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestAPI_DelinquencyAndCascadeDelete(t *testing.T) {
	api := setupTestServer(t)
	client := api.createClient(t, "1")
	id := client.ID.String()
	api.createLoan(t, id)
	api.createLoan(t, id)

	code, resp := api.do(t, "POST", "/api/clients/"+id+"/delinquency", nil)
	require.Equal(t, http.StatusOK, code, resp.Error)
	out := decodeData[struct {
		Client       models.Client `json:"client"`
		LoansChanged int64         `json:"loans_changed"`
	}](t, resp)
	assert.Equal(t, models.StatusDelinquent, out.Client.Status)
	assert.Equal(t, int64(2), out.LoansChanged)

	code, resp = api.do(t, "GET", "/api/loans?status=mora&clientId="+id, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 2, resp.Pagination.Total)

	code, resp = api.do(t, "PUT", "/api/clients/"+id, map[string]any{"status": "pendiente"})
	require.Equal(t, http.StatusOK, code, resp.Error)
	assert.Equal(t, models.StatusPending, decodeData[models.Client](t, resp).Status)

	code, resp = api.do(t, "POST", "/api/clients/"+id+"/status", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, models.StatusDelinquent, decodeData[models.Client](t, resp).Status)

	code, resp = api.do(t, "DELETE", "/api/clients/"+id, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Contains(t, resp.Error, "2 pending and 0 paid")

	code, _ = api.do(t, "DELETE", "/api/clients/"+id+"?cascade=true", nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = api.do(t, "GET", "/api/clients/"+id, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestAPI_QuoteAndSchedule(t *testing.T) {
	api := setupTestServer(t)

	code, resp := api.do(t, "GET", "/api/loans/quote?principal=1000000&rate=2&installments=12", nil)
	require.Equal(t, http.StatusOK, code, resp.Error)
	quote := decodeData[struct {
		Schedule struct {
			InstallmentAmount string `json:"installment_amount"`
		} `json:"schedule"`
		Installments []json.RawMessage `json:"installments"`
	}](t, resp)
	assert.Len(t, quote.Installments, 12)
	assert.True(t, strings.HasPrefix(quote.Schedule.InstallmentAmount, "103746.66"))

	code, _ = api.do(t, "GET", "/api/loans/quote?principal=0&installments=12", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	client := api.createClient(t, "1")
	loan := api.createLoan(t, client.ID.String())
	code, _ = api.do(t, "POST", "/api/payments", map[string]any{
		"loan_id": loan.ID, "installment_number": 1, "amount_paid": loan.InstallmentAmount,
	})
	require.Equal(t, http.StatusCreated, code)

	code, resp = api.do(t, "GET", "/api/loans/"+loan.ID.String()+"/schedule", nil)
	require.Equal(t, http.StatusOK, code)
	sched := decodeData[ledger.LoanSchedule](t, resp)
	require.Len(t, sched.Installments, 12)
	assert.True(t, sched.Installments[0].Paid)
	assert.False(t, sched.Installments[1].Paid)
}

func TestAPI_DeleteLoanAndPayment(t *testing.T) {
	api := setupTestServer(t)
	client := api.createClient(t, "1")
	loan := api.createLoan(t, client.ID.String())

	code, resp := api.do(t, "POST", "/api/payments", map[string]any{
		"loan_id": loan.ID, "installment_number": 1, "amount_paid": loan.InstallmentAmount,
	})
	require.Equal(t, http.StatusCreated, code)
	payment := decodeData[ledger.PaymentResult](t, resp).Payment

	code, _ = api.do(t, "DELETE", "/api/payments/"+payment.ID.String(), nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = api.do(t, "GET", "/api/payments/"+payment.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = api.do(t, "DELETE", "/api/loans/"+loan.ID.String(), nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = api.do(t, "DELETE", "/api/loans/"+loan.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestAPI_HealthAndMetrics(t *testing.T) {
	api := setupTestServer(t)

	code, resp := api.do(t, "GET", "/api/health", nil)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, resp.Success)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rr := httptest.NewRecorder()
	api.router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `cuotas_http_request_duration_seconds_count{method="GET",route="/api/health",status="200"} 1`)
}
