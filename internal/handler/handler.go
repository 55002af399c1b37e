package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/honeynil/UPIPaymentService/internal/infrastructure/auth"
	service "github.com/honeynil/UPIPaymentService/internal/services"
	pkgerrors "github.com/honeynil/UPIPaymentService/pkg/errors"
	"github.com/honeynil/UPIPaymentService/pkg/validation"
)

const maxBodyBytes = 1 << 20

type Handler struct {
	auth     service.AuthService
	payments service.PaymentService
	queries  service.QueryService
	accounts service.AccountService
}

func NewHandler(authService service.AuthService, payments service.PaymentService, queries service.QueryService, accounts service.AccountService) *Handler {
	return &Handler{
		auth:     authService,
		payments: payments,
		queries:  queries,
		accounts: accounts,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// writeError maps err to its status code. Validation errors keep their
// detail; everything else is reduced to its sentinel message.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := pkgerrors.HTTPStatus(err)
	msg := pkgerrors.PublicMessage(err)
	if pkgerrors.KindOf(err) == pkgerrors.KindValidation {
		msg = err.Error()
	}
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: malformed JSON body: %v", pkgerrors.ErrInvalidInput, err)
	}
	return validation.Struct(dst)
}

func (h *Handler) userID(r *http.Request) (uuid.UUID, error) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		return uuid.Nil, pkgerrors.ErrUnauthenticated
	}
	return userID, nil
}

func pathID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s must be a UUID", pkgerrors.ErrInvalidInput, name)
	}
	return id, nil
}

func (h *Handler) RegisterPublicRoutes(r *mux.Router) {
	r.HandleFunc("/auth/register", h.Register).Methods(http.MethodPost)
	r.HandleFunc("/auth/login", h.Login).Methods(http.MethodPost)
}

func (h *Handler) RegisterProtectedRoutes(r *mux.Router) {
	r.HandleFunc("/transactions/send", h.SendMoney).Methods(http.MethodPost)
	r.HandleFunc("/transactions/request", h.RequestMoney).Methods(http.MethodPost)
	r.HandleFunc("/transactions/respond/{id}", h.RespondRequest).Methods(http.MethodPost)
	r.HandleFunc("/transactions/history", h.History).Methods(http.MethodGet)
	r.HandleFunc("/transactions/balance", h.Balance).Methods(http.MethodGet)
	r.HandleFunc("/transactions/status/{id}", h.Status).Methods(http.MethodGet)

	r.HandleFunc("/bankacc/add", h.AddBankAccount).Methods(http.MethodPost)
	r.HandleFunc("/bankacc/add-money", h.AddMoney).Methods(http.MethodPost)
	r.HandleFunc("/bankacc/getall", h.ListBankAccounts).Methods(http.MethodGet)
	r.HandleFunc("/bankacc/delete/{id}", h.DeleteBankAccount).Methods(http.MethodDelete)
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterInput
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	user, err := h.auth.Register(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"message": "User registered", "user": user})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	token, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, pkgerrors.ErrInvalidCredentials) {
			slog.Warn("login failed", "email", req.Email)
		}
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}
