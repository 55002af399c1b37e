package errors

import (
	"errors"
	"net/http"
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrUserAlreadyExists   = errors.New("user already exists")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInvalidInput        = errors.New("invalid input")
	ErrInvalidAmount       = errors.New("amount must be a positive value with at most two decimal places")
	ErrInvalidAction       = errors.New("invalid action")
	ErrInvalidFilter       = errors.New("invalid history filter")
	ErrSelfTransfer        = errors.New("cannot transfer to your own account")
	ErrPaymentIDNotFound   = errors.New("recipient not found")
	ErrAccountNotFound     = errors.New("account not found")
	ErrAccountInUse        = errors.New("account has pending or recorded transactions")
	ErrNoLinkedAccount     = errors.New("no linked bank account")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrNotAuthorized       = errors.New("not authorized to respond")
	ErrAlreadyResolved     = errors.New("request already resolved")
	ErrTransactionFailed   = errors.New("transaction failed")
	ErrNilTransaction      = errors.New("transaction is nil")
	ErrInvalidStatus       = errors.New("invalid transaction status")
	ErrInvalidKind         = errors.New("invalid transaction kind")
	ErrUnauthenticated     = errors.New("unauthenticated")
	ErrRequestInProgress   = errors.New("a request with this idempotency key is being processed")
	ErrRateLimited         = errors.New("too many requests")
	ErrInternal            = errors.New("internal error")
)

// Kind is the stable classification of a failure surfaced to callers.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindNotAuthorized
	KindInsufficientFunds
	KindAlreadyResolved
	KindNoLinkedAccount
	KindTransactionFailed
	KindConflict
	KindUnauthenticated
	KindRateLimited
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindNotAuthorized:
		return "not_authorized"
	case KindInsufficientFunds:
		return "insufficient_funds"
	case KindAlreadyResolved:
		return "already_resolved"
	case KindNoLinkedAccount:
		return "no_linked_account"
	case KindTransactionFailed:
		return "transaction_failed"
	case KindConflict:
		return "conflict"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "internal"
	}
}

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrInvalidInput, KindValidation},
	{ErrInvalidAmount, KindValidation},
	{ErrInvalidAction, KindValidation},
	{ErrInvalidFilter, KindValidation},
	{ErrSelfTransfer, KindValidation},
	{ErrInvalidStatus, KindValidation},
	{ErrInvalidKind, KindValidation},
	{ErrNilTransaction, KindValidation},
	{ErrPaymentIDNotFound, KindNotFound},
	{ErrAccountNotFound, KindNotFound},
	{ErrTransactionNotFound, KindNotFound},
	{ErrUserNotFound, KindNotFound},
	{ErrNotAuthorized, KindNotAuthorized},
	{ErrInsufficientFunds, KindInsufficientFunds},
	{ErrAlreadyResolved, KindAlreadyResolved},
	{ErrNoLinkedAccount, KindNoLinkedAccount},
	{ErrTransactionFailed, KindTransactionFailed},
	{ErrUserAlreadyExists, KindConflict},
	{ErrAccountInUse, KindConflict},
	{ErrRequestInProgress, KindConflict},
	{ErrInvalidCredentials, KindUnauthenticated},
	{ErrUnauthenticated, KindUnauthenticated},
	{ErrRateLimited, KindRateLimited},
}

// KindOf classifies err by the first sentinel it wraps.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// HTTPStatus maps err to the status code the HTTP layer responds with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation, KindInsufficientFunds, KindNoLinkedAccount:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindNotAuthorized:
		return http.StatusForbidden
	case KindAlreadyResolved, KindConflict:
		return http.StatusConflict
	case KindTransactionFailed:
		return http.StatusServiceUnavailable
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the sentinel text for err so store diagnostics
// never reach the response body.
func PublicMessage(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.err.Error()
		}
	}
	return ErrInternal.Error()
}
