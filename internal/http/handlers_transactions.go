package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"ledger/internal/core"
	applog "ledger/internal/log"
	"ledger/internal/storage"
)

// createTransactionRequest is the POST body. Missing and null fields
// decode to zero values, which validation rejects.
type createTransactionRequest struct {
	UserID   string      `json:"user_id"`
	Title    string      `json:"title"`
	Amount   core.Amount `json:"amount"`
	Category string      `json:"category"`
}

type deleteTransactionResponse struct {
	Message     string           `json:"message"`
	Transaction core.Transaction `json:"transaction"`
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")

	txs, err := s.ledger.ListTransactions(r.Context(), userID)
	if err != nil {
		writeServerError(w, r, applog.OpList, err)
		return
	}
	if txs == nil {
		txs = []core.Transaction{}
	}

	writeJSON(w, r, http.StatusOK, txs)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)

	var req createTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		applog.FromContext(r.Context()).DebugContext(r.Context(), "Rejected request body", applog.FieldError, err)
		writeMessage(w, r, http.StatusBadRequest, msgInvalidBody)
		return
	}

	t, err := s.ledger.CreateTransaction(r.Context(), core.NewTransaction{
		UserID:   req.UserID,
		Title:    req.Title,
		Amount:   req.Amount,
		Category: req.Category,
	})
	switch {
	case errors.Is(err, core.ErrMissingFields):
		writeMessage(w, r, http.StatusBadRequest, msgMissingFields)
		return
	case errors.Is(err, core.ErrAmountOutOfRange):
		writeMessage(w, r, http.StatusBadRequest, msgAmountOutOfRange)
		return
	case err != nil:
		writeServerError(w, r, applog.OpCreate, err)
		return
	}

	s.transactionsCreated.Inc()
	applog.FromContext(r.Context()).InfoContext(r.Context(), "Transaction created",
		applog.NewFields().
			WithTransaction(t.ID, t.UserID, t.Category, t.Amount.String()).
			ToSlice()...)

	writeJSON(w, r, http.StatusCreated, t)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeMessage(w, r, http.StatusBadRequest, msgInvalidID)
		return
	}

	t, err := s.ledger.DeleteTransaction(r.Context(), id)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeMessage(w, r, http.StatusNotFound, msgNotFound)
		return
	case err != nil:
		writeServerError(w, r, applog.OpDelete, err)
		return
	}

	s.transactionsDeleted.Inc()
	applog.FromContext(r.Context()).InfoContext(r.Context(), "Transaction deleted",
		applog.NewFields().
			WithTransaction(t.ID, t.UserID, t.Category, t.Amount.String()).
			ToSlice()...)

	writeJSON(w, r, http.StatusOK, deleteTransactionResponse{
		Message:     msgDeleted,
		Transaction: t,
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.ledger.Summary(r.Context(), r.PathValue("userId"))
	if err != nil {
		writeServerError(w, r, applog.OpSummary, err)
		return
	}

	writeJSON(w, r, http.StatusOK, summary)
}
