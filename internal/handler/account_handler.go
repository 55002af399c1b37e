package handler

import (
	"net/http"

	"github.com/google/uuid"
	service "github.com/honeynil/UPIPaymentService/internal/services"
	"github.com/shopspring/decimal"
)

func (h *Handler) AddBankAccount(w http.ResponseWriter, r *http.Request) {
	userID, err := h.userID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req service.AddAccountInput
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	account, err := h.accounts.AddAccount(r.Context(), userID, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"account": account})
}

func (h *Handler) ListBankAccounts(w http.ResponseWriter, r *http.Request) {
	userID, err := h.userID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	accounts, err := h.accounts.ListAccounts(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"accounts": accounts})
}

func (h *Handler) AddMoney(w http.ResponseWriter, r *http.Request) {
	userID, err := h.userID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req struct {
		AccountID uuid.UUID       `json:"accountId" validate:"required"`
		Amount    decimal.Decimal `json:"amount"`
	}
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	account, err := h.accounts.Deposit(r.Context(), userID, req.AccountID, req.Amount)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"message": "Money added successfully", "account": account})
}

func (h *Handler) DeleteBankAccount(w http.ResponseWriter, r *http.Request) {
	userID, err := h.userID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	accountID, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.accounts.DeleteAccount(r.Context(), userID, accountID); err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Bank account deleted successfully"})
}
