package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/core"
	"ledger/internal/services"
	"ledger/internal/storage"
)

// fakeLedger keeps transactions in memory and can be told to fail.
type fakeLedger struct {
	mu      sync.Mutex
	nextID  int64
	txs     []core.Transaction
	err     error
	pingErr error
	deletes int
}

func (f *fakeLedger) ListTransactions(ctx context.Context, userID string) ([]core.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []core.Transaction
	for i := len(f.txs) - 1; i >= 0; i-- {
		if f.txs[i].UserID == userID {
			out = append(out, f.txs[i])
		}
	}
	return out, nil
}

func (f *fakeLedger) CreateTransaction(ctx context.Context, n core.NewTransaction) (core.Transaction, error) {
	if err := n.Validate(); err != nil {
		return core.Transaction{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return core.Transaction{}, f.err
	}
	f.nextID++
	t := core.Transaction{
		ID:        f.nextID,
		UserID:    n.UserID,
		Title:     n.Title,
		Amount:    n.Amount,
		Category:  n.Category,
		CreatedAt: core.Today(),
	}
	f.txs = append(f.txs, t)
	return t, nil
}

func (f *fakeLedger) DeleteTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	if f.err != nil {
		return core.Transaction{}, f.err
	}
	for i, t := range f.txs {
		if t.ID == id {
			f.txs = append(f.txs[:i], f.txs[i+1:]...)
			return t, nil
		}
	}
	return core.Transaction{}, storage.ErrNotFound
}

func (f *fakeLedger) Summary(ctx context.Context, userID string) (core.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return core.Summary{}, f.err
	}
	var s core.Summary
	for _, t := range f.txs {
		if t.UserID != userID {
			continue
		}
		s.Balance = s.Balance.Add(t.Amount)
		if t.Amount.IsPositive() {
			s.Income = s.Income.Add(t.Amount)
		} else {
			s.Expenses = s.Expenses.Add(t.Amount)
		}
	}
	return s, nil
}

func (f *fakeLedger) Ping(ctx context.Context) error { return f.pingErr }

func newTestServer(t *testing.T, ledger Ledger, opts Options) *Server {
	t.Helper()
	srv := NewServer(":0", ledger, opts)
	t.Cleanup(srv.rateLimiter.Stop)
	return srv
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func messageOf(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var m messageResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &m), rr.Body.String())
	return m.Message
}

func TestIndexAndHealth(t *testing.T) {
	srv := newTestServer(t, &fakeLedger{}, Options{})

	rr := do(t, srv, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, welcomeMessage, rr.Body.String())
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))

	rr = do(t, srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"ok"`)

	rr = do(t, srv, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestReady(t *testing.T) {
	ledger := &fakeLedger{}
	srv := newTestServer(t, ledger, Options{})

	rr := do(t, srv, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"database":"ok"`)

	ledger.pingErr = errors.New("connection refused")
	rr = do(t, srv, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), `"not_ready"`)
	assert.NotContains(t, rr.Body.String(), "connection refused")
}

func TestCreateTransactionValidation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		status  int
		message string
	}{
		{"missing title", `{"user_id":"u1","amount":5,"category":"Food"}`, http.StatusBadRequest, msgMissingFields},
		{"empty user", `{"user_id":"","title":"x","amount":5,"category":"Food"}`, http.StatusBadRequest, msgMissingFields},
		{"missing category", `{"user_id":"u1","title":"x","amount":5}`, http.StatusBadRequest, msgMissingFields},
		{"zero amount", `{"user_id":"u1","title":"x","amount":0,"category":"Food"}`, http.StatusBadRequest, msgMissingFields},
		{"null amount", `{"user_id":"u1","title":"x","amount":null,"category":"Food"}`, http.StatusBadRequest, msgMissingFields},
		{"missing amount", `{"user_id":"u1","title":"x","category":"Food"}`, http.StatusBadRequest, msgMissingFields},
		{"empty object", `{}`, http.StatusBadRequest, msgMissingFields},
		{"malformed json", `{"user_id":`, http.StatusBadRequest, msgInvalidBody},
		{"non numeric amount", `{"user_id":"u1","title":"x","amount":"abc","category":"Food"}`, http.StatusBadRequest, msgInvalidBody},
		{"amount too large", `{"user_id":"u1","title":"x","amount":100000000,"category":"Food"}`, http.StatusBadRequest, msgAmountOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := &fakeLedger{}
			srv := newTestServer(t, ledger, Options{})

			rr := do(t, srv, http.MethodPost, "/api/transactions", tt.body)
			assert.Equal(t, tt.status, rr.Code)
			assert.Equal(t, tt.message, messageOf(t, rr))
			assert.Empty(t, ledger.txs, "no row must be stored")
		})
	}
}

func TestCreateTransaction(t *testing.T) {
	srv := newTestServer(t, &fakeLedger{}, Options{})

	rr := do(t, srv, http.MethodPost, "/api/transactions",
		`{"title":"Salary","amount":"2500.00","category":"Work","user_id":"u1"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var got core.Transaction
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, int64(1), got.ID)
	assert.Equal(t, "2500.00", got.Amount.String())
	assert.Equal(t, core.Today().String(), got.CreatedAt.String())

	rr = do(t, srv, http.MethodPost, "/api/transactions",
		`{"title":"Rounding","amount":0.004,"category":"Misc","user_id":"u1"}`)
	require.Equal(t, http.StatusCreated, rr.Code, "a non-zero sub-cent amount is present")
	assert.Contains(t, rr.Body.String(), `"amount":0.00`)
}

func TestDeleteTransaction(t *testing.T) {
	ledger := &fakeLedger{}
	srv := newTestServer(t, ledger, Options{})

	rr := do(t, srv, http.MethodDelete, "/api/transactions/abc", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, msgInvalidID, messageOf(t, rr))
	assert.Equal(t, 0, ledger.deletes, "storage must not be touched")

	rr = do(t, srv, http.MethodDelete, "/api/transactions/1.5", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, srv, http.MethodDelete, "/api/transactions/42", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, msgNotFound, messageOf(t, rr))

	do(t, srv, http.MethodPost, "/api/transactions", `{"title":"Coffee","amount":-4.5,"category":"Food","user_id":"u1"}`)
	rr = do(t, srv, http.MethodDelete, "/api/transactions/1", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Message     string           `json:"message"`
		Transaction core.Transaction `json:"transaction"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, msgDeleted, resp.Message)
	assert.Equal(t, int64(1), resp.Transaction.ID)
	assert.Equal(t, "Coffee", resp.Transaction.Title)
	assert.Empty(t, ledger.txs)
}

func TestStorageFailuresAreInternalErrors(t *testing.T) {
	ledger := &fakeLedger{err: errors.New("dial tcp: connection refused")}
	srv := newTestServer(t, ledger, Options{})

	requests := []struct{ method, path, body string }{
		{http.MethodGet, "/api/transactions/u1", ""},
		{http.MethodPost, "/api/transactions", `{"title":"x","amount":1,"category":"c","user_id":"u1"}`},
		{http.MethodDelete, "/api/transactions/1", ""},
		{http.MethodGet, "/api/transactions/summary/u1", ""},
	}
	for _, req := range requests {
		rr := do(t, srv, req.method, req.path, req.body)
		assert.Equal(t, http.StatusInternalServerError, rr.Code, req.path)
		assert.Equal(t, msgInternal, messageOf(t, rr))
		assert.NotContains(t, rr.Body.String(), "connection refused")
	}
}

func TestListEmptyIsArray(t *testing.T) {
	srv := newTestServer(t, &fakeLedger{}, Options{})

	rr := do(t, srv, http.MethodGet, "/api/transactions/nobody", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, &fakeLedger{}, Options{})

	rr := do(t, srv, http.MethodPut, "/api/transactions/1", `{}`)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestRateLimitAppliesToMutations(t *testing.T) {
	srv := newTestServer(t, &fakeLedger{}, Options{RateLimitPerMinute: 1})

	body := `{"title":"x","amount":1,"category":"c","user_id":"u1"}`
	assert.Equal(t, http.StatusCreated, do(t, srv, http.MethodPost, "/api/transactions", body).Code)

	rr := do(t, srv, http.MethodPost, "/api/transactions", body)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "60", rr.Header().Get("Retry-After"))
	assert.Equal(t, msgRateLimited, messageOf(t, rr))

	// Reads are never limited.
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/api/transactions/u1", "").Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, &fakeLedger{}, Options{})

	do(t, srv, http.MethodPost, "/api/transactions", `{"title":"x","amount":1,"category":"c","user_id":"u1"}`)
	do(t, srv, http.MethodGet, "/api/transactions/u1", "")

	rr := do(t, srv, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "ledger_transactions_created_total 1")
	assert.Contains(t, body, `ledger_http_requests_total{code="200",method="GET",route="GET /api/transactions/{userId}"} 1`)
	assert.Contains(t, body, `ledger_http_requests_total{code="201",method="POST",route="POST /api/transactions"} 1`)
}

func TestScenarioAgainstSQLite(t *testing.T) {
	repo, err := storage.NewSQLiteRepository(context.Background(), filepath.Join(t.TempDir(), "ledger.db"), 4)
	require.NoError(t, err)
	svc := services.NewTransactionService(repo, nil)
	t.Cleanup(func() { svc.Close() })

	srv := newTestServer(t, svc, Options{})

	rr := do(t, srv, http.MethodPost, "/api/transactions",
		`{"title":"Coffee","amount":-4.5,"category":"Food","user_id":"u1"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.JSONEq(t,
		`{"id":1,"user_id":"u1","title":"Coffee","amount":-4.50,"category":"Food","created_at":"`+core.Today().String()+`"}`,
		rr.Body.String())
	assert.Contains(t, rr.Body.String(), `"amount":-4.50`)

	rr = do(t, srv, http.MethodGet, "/api/transactions/summary/u1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"balance":-4.5,"income":0,"expenses":-4.5}`, rr.Body.String())

	rr = do(t, srv, http.MethodGet, "/api/transactions/summary/u2", "")
	assert.JSONEq(t, `{"balance":0,"income":0,"expenses":0}`, rr.Body.String())

	rr = do(t, srv, http.MethodGet, "/api/transactions/u1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var listed []core.Transaction
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, "Coffee", listed[0].Title)

	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodDelete, "/api/transactions/abc", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodDelete, "/api/transactions/99", "").Code)
	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodDelete, "/api/transactions/1", "").Code)

	rr = do(t, srv, http.MethodGet, "/api/transactions/u1", "")
	assert.JSONEq(t, `[]`, rr.Body.String())
}
