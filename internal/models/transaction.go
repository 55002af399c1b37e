package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Transaction struct {
	ID                   uuid.UUID       `json:"id"`
	SourceAccountID      uuid.UUID       `json:"from_account_id"`
	DestinationAccountID uuid.UUID       `json:"to_account_id"`
	Amount               decimal.Decimal `json:"amount"`
	Status               StatusType      `json:"status"`
	Kind                 KindType        `json:"type"`
	Note                 *string         `json:"note,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// TransactionDetail is a transaction with readable references to both accounts.
type TransactionDetail struct {
	ID              uuid.UUID       `json:"id"`
	Amount          decimal.Decimal `json:"amount"`
	Status          StatusType      `json:"status"`
	Kind            KindType        `json:"type"`
	Note            *string         `json:"note,omitempty"`
	FromAccount     string          `json:"from_account"`
	FromInstitution string          `json:"from_bank"`
	FromUserID      uuid.UUID       `json:"from_user_id"`
	ToAccount       string          `json:"to_account"`
	ToInstitution   string          `json:"to_bank"`
	ToUserID        uuid.UUID       `json:"to_user_id"`
	CreatedAt       time.Time       `json:"created_at"`
}

// InvolvesUser reports whether userID owns either side of the transaction.
func (d *TransactionDetail) InvolvesUser(userID uuid.UUID) bool {
	return d.FromUserID == userID || d.ToUserID == userID
}

type KindType string

const (
	KindTransfer KindType = "TRANSFER"
	KindRequest  KindType = "REQUEST"
)

func (k KindType) Valid() bool {
	return k == KindTransfer || k == KindRequest
}

type StatusType string

const (
	StatusPending  StatusType = "PENDING"
	StatusSuccess  StatusType = "SUCCESS"
	StatusFailed   StatusType = "FAILED"
	StatusRejected StatusType = "REJECTED"
)

func (s StatusType) Valid() bool {
	switch s {
	case StatusPending, StatusSuccess, StatusFailed, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s StatusType) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed || s == StatusRejected
}

// CanTransitionTo reports whether s may advance to next. Only PENDING moves,
// and only forward into a terminal status.
func (s StatusType) CanTransitionTo(next StatusType) bool {
	return s == StatusPending && next.Terminal()
}

// Action is a payer's response to a money request.
type Action string

const (
	ActionAccept Action = "ACCEPT"
	ActionReject Action = "REJECT"
)

func (a Action) Valid() bool {
	return a == ActionAccept || a == ActionReject
}

// HistoryFilter narrows a history query. Nil fields are not applied; all
// supplied fields must hold.
type HistoryFilter struct {
	From   *time.Time
	To     *time.Time
	Status *StatusType
}
