package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindInternal},
		{"plain", errors.New("boom"), KindInternal},
		{"insufficient funds", ErrInsufficientFunds, KindInsufficientFunds},
		{"wrapped not found", fmt.Errorf("resolve: %w", ErrPaymentIDNotFound), KindNotFound},
		{"wrapped store failure", fmt.Errorf("%w: lock timeout", ErrTransactionFailed), KindTransactionFailed},
		{"already resolved", ErrAlreadyResolved, KindAlreadyResolved},
		{"self transfer", ErrSelfTransfer, KindValidation},
		{"no account", ErrNoLinkedAccount, KindNoLinkedAccount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, HTTPStatus(ErrTransactionNotFound))
	assert.Equal(t, http.StatusForbidden, HTTPStatus(ErrNotAuthorized))
	assert.Equal(t, http.StatusConflict, HTTPStatus(ErrAlreadyResolved))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(ErrInsufficientFunds))
	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatus(fmt.Errorf("%w: x", ErrTransactionFailed)))
	assert.Equal(t, http.StatusTooManyRequests, HTTPStatus(ErrRateLimited))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("pq: connection refused")))
}

func TestPublicMessage_HidesStoreDiagnostics(t *testing.T) {
	err := fmt.Errorf("%w: pq: relation \"accounts\" does not exist", ErrTransactionFailed)
	assert.Equal(t, "transaction failed", PublicMessage(err))
	assert.Equal(t, "internal error", PublicMessage(errors.New("pq: syntax error")))
}
