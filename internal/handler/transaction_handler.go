package handler

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/honeynil/UPIPaymentService/internal/models"
	pkgerrors "github.com/honeynil/UPIPaymentService/pkg/errors"
	"github.com/shopspring/decimal"
)

type transactionResponse struct {
	Message       string              `json:"message"`
	TransactionID string              `json:"txId"`
	Status        models.StatusType   `json:"status"`
	Transaction   *models.Transaction `json:"transaction"`
}

func (h *Handler) SendMoney(w http.ResponseWriter, r *http.Request) {
	userID, err := h.userID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req struct {
		ToPaymentID string          `json:"to_upi" validate:"required"`
		Amount      decimal.Decimal `json:"amount"`
		Note        *string         `json:"note" validate:"omitempty,max=200"`
	}
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	tx, err := h.payments.Transfer(r.Context(), userID, req.ToPaymentID, req.Amount, req.Note)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, transactionResponse{
		Message:       "Transaction successful",
		TransactionID: tx.ID.String(),
		Status:        tx.Status,
		Transaction:   tx,
	})
}

func (h *Handler) RequestMoney(w http.ResponseWriter, r *http.Request) {
	userID, err := h.userID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req struct {
		FromPaymentID string          `json:"from_upi" validate:"required"`
		Amount        decimal.Decimal `json:"amount"`
		Note          *string         `json:"note" validate:"omitempty,max=200"`
	}
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	tx, err := h.payments.CreateRequest(r.Context(), userID, req.FromPaymentID, req.Amount, req.Note)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, transactionResponse{
		Message:       "Request created",
		TransactionID: tx.ID.String(),
		Status:        tx.Status,
		Transaction:   tx,
	})
}

func (h *Handler) RespondRequest(w http.ResponseWriter, r *http.Request) {
	userID, err := h.userID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	txID, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req struct {
		Action string `json:"action" validate:"required"`
	}
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	action := models.Action(strings.ToUpper(strings.TrimSpace(req.Action)))

	tx, err := h.payments.Respond(r.Context(), userID, txID, action)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	message := "Request rejected"
	if tx.Status == models.StatusSuccess {
		message = "Request accepted, money transferred"
	}
	writeJSON(w, http.StatusOK, transactionResponse{
		Message:       message,
		TransactionID: tx.ID.String(),
		Status:        tx.Status,
		Transaction:   tx,
	})
}

func parseTime(name, raw string, endOfDay bool) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be RFC 3339 or YYYY-MM-DD", pkgerrors.ErrInvalidFilter, name)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	userID, err := h.userID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	q := r.URL.Query()
	var filter models.HistoryFilter
	if filter.From, err = parseTime("from", q.Get("from"), false); err != nil {
		h.writeError(w, r, err)
		return
	}
	if filter.To, err = parseTime("to", q.Get("to"), true); err != nil {
		h.writeError(w, r, err)
		return
	}
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		status := models.StatusType(strings.ToUpper(raw))
		filter.Status = &status
	}

	history, err := h.queries.History(r.Context(), userID, filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"transactions": history})
}

func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	userID, err := h.userID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	accounts, err := h.queries.Balance(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"accounts": accounts})
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	userID, err := h.userID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	txID, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	detail, err := h.queries.Status(r.Context(), userID, txID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, detail)
}
