/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON structures for the HTTP facade. Amounts cross this boundary as
  decimal strings ("100.00") and are converted to integer minor units at
  the edge - no float ever reaches the engine.

NAMING CONVENTION:
  - *DTO: response types returned to clients
  - *Request: request body types from clients
*/
package api

import (
	"time"

	"github.com/smartbank/wallet-engine/ledger"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// DepositRequest / WithdrawRequest carry an optional idempotency key for
// retryable clients; a plain button click sends none.
type DepositRequest struct {
	Amount         string `json:"amount"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

type WithdrawRequest struct {
	Amount         string `json:"amount"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// TransferRequest requires an idempotency key so a retried submission is
// recognized rather than double-charged.
type TransferRequest struct {
	Amount         string `json:"amount"`
	Recipient      string `json:"recipient"`
	IdempotencyKey string `json:"idempotency_key"`
}

// AdjustmentRequest is the admin portal's manual correction, applied
// through the same deposit/withdraw primitives as user operations.
type AdjustmentRequest struct {
	AccountID string `json:"account_id"`
	Direction string `json:"direction"` // "credit" or "debit"
	Amount    string `json:"amount"`
}

// AddDelegateRequest registers a spending delegate on the session account.
type AddDelegateRequest struct {
	Name  string `json:"name"`
	Limit string `json:"limit"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// TransactionDTO represents one ledger transaction.
type TransactionDTO struct {
	ID           string `json:"id"`
	AccountID    string `json:"account_id"`
	Kind         string `json:"kind"`
	Amount       string `json:"amount"`
	Currency     string `json:"currency"`
	Counterparty string `json:"counterparty,omitempty"`
	Description  string `json:"description,omitempty"`
	Category     string `json:"category,omitempty"`
	CreatedAt    string `json:"created_at"`
	Status       string `json:"status"`
}

// BalanceDTO is the wallet balance, optionally with a read-time display
// conversion. Display is absent when no conversion was requested; a rates
// failure fails the request instead of rendering a stale number.
type BalanceDTO struct {
	AccountID string      `json:"account_id"`
	Balance   string      `json:"balance"`
	Currency  string      `json:"currency"`
	Display   *DisplayDTO `json:"display,omitempty"`
}

// DisplayDTO is a converted amount for presentation only.
type DisplayDTO struct {
	Currency string `json:"currency"`
	Amount   string `json:"amount"`
	RateAsOf string `json:"rate_as_of"`
}

// OperationDTO is returned by deposit/withdraw/transfer. Outcome is
// "completed" or "duplicate"; clients suppress success animations on
// duplicates but treat both as success.
type OperationDTO struct {
	Outcome     string         `json:"outcome"`
	Balance     string         `json:"balance"`
	Transaction TransactionDTO `json:"transaction"`
}

// TransactionListDTO is one newest-first history page.
type TransactionListDTO struct {
	Items      []TransactionDTO `json:"items"`
	NextCursor string           `json:"next_cursor,omitempty"`
	HasMore    bool             `json:"has_more"`
}

// DelegateDTO is one spending delegate.
type DelegateDTO struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Limit   string `json:"limit"`
	Spent   string `json:"spent"`
	Expiry  string `json:"expiry"`
	Active  bool   `json:"active"`
	Expired bool   `json:"expired"`
}

// DelegateListDTO is the account's delegate roster.
type DelegateListDTO struct {
	Items []DelegateDTO `json:"items"`
}

// ErrorDTO mirrors the engine's error taxonomy for UI mapping.
type ErrorDTO struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toTransactionDTO(tx ledger.Transaction) TransactionDTO {
	return TransactionDTO{
		ID:           string(tx.ID),
		AccountID:    string(tx.AccountID),
		Kind:         string(tx.Kind),
		Amount:       tx.Amount.String(),
		Currency:     string(tx.Currency),
		Counterparty: tx.Counterparty,
		Description:  tx.Description,
		Category:     tx.Category,
		CreatedAt:    tx.CreatedAt.Format(time.RFC3339),
		Status:       string(tx.Status),
	}
}

func toDelegateDTO(d ledger.Delegate, now time.Time) DelegateDTO {
	return DelegateDTO{
		ID:      string(d.ID),
		Name:    d.Name,
		Limit:   d.Limit.String(),
		Spent:   d.Spent.String(),
		Expiry:  d.Expiry.Format(time.RFC3339),
		Active:  d.Active,
		Expired: d.Expired(now),
	}
}

func toTransactionListDTO(page ledger.Page) TransactionListDTO {
	items := make([]TransactionDTO, len(page.Items))
	for i, tx := range page.Items {
		items[i] = toTransactionDTO(tx)
	}
	return TransactionListDTO{
		Items:      items,
		NextCursor: string(page.NextCursor),
		HasMore:    page.HasMore,
	}
}
