package handler

import (
	"net/http"

	"library-catalog/internal/errors"
	"library-catalog/internal/service"
)

type TransactionHandler struct {
	circulationService *service.CirculationService
}

func NewTransactionHandler(circulationService *service.CirculationService) *TransactionHandler {
	return &TransactionHandler{
		circulationService: circulationService,
	}
}

func (h *TransactionHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "transaction_id", errors.ErrTransactionNotFound)
	if err != nil {
		writeError(w, err)
		return
	}

	transaction, err := h.circulationService.GetTransaction(r.Context(), UserFromContext(r.Context()), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, transaction)
}

func (h *TransactionHandler) ReturnBook(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "transaction_id", errors.ErrTransactionNotFound)
	if err != nil {
		writeError(w, err)
		return
	}

	transaction, err := h.circulationService.ReturnBook(r.Context(), UserFromContext(r.Context()), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, transaction)
}

func (h *TransactionHandler) ListOverdue(w http.ResponseWriter, r *http.Request) {
	transactions, err := h.circulationService.ListOverdue(r.Context(), UserFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, transactions)
}

func (h *TransactionHandler) ScanOverdue(w http.ResponseWriter, r *http.Request) {
	result, err := h.circulationService.RunOverdueScan(r.Context(), UserFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *TransactionHandler) PayPenalty(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "overdue_id", errors.ErrOverdueNotFound)
	if err != nil {
		writeError(w, err)
		return
	}

	overdue, err := h.circulationService.PayPenalty(r.Context(), UserFromContext(r.Context()), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, overdue)
}
