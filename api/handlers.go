/*
handlers.go - HTTP handlers for the wallet engine

PURPOSE:
  Exposes the engine via REST. Handlers parse and validate the boundary
  representation (decimal-string amounts, cursors), resolve the session
  account, delegate to the MutationCoordinator, and map engine errors to
  HTTP statuses.

ENDPOINTS:
  Wallet:
    GET    /api/wallet/balance        Committed balance (+ optional display conversion)
    POST   /api/wallet/deposit        Deposit
    POST   /api/wallet/withdraw       Withdraw

  Transactions:
    GET    /api/transactions          Newest-first cursor-paginated history
    POST   /api/transactions/transfer P2P transfer (idempotency key required)

  Delegation:
    GET    /api/delegation/delegates        Delegate roster
    POST   /api/delegation/delegates        Add a spending delegate
    DELETE /api/delegation/delegates/{id}   Revoke a delegate

  Admin (same primitives, different caller):
    POST   /api/admin/accounts        Create/seed an account profile
    POST   /api/admin/adjustments     Manual credit/debit
    DELETE /api/admin/accounts/{id}   Wipe all persisted account state

ERROR HANDLING:
  Every failure maps to exactly one taxonomy kind:
    400 invalid_amount / invalid_request
    401 unauthenticated
    403 demo_account_restricted
    404 delegate_not_found
    409 insufficient_funds, concurrency_conflict, duplicate_idempotency_key
    500 storage_failure, internal
    503 rates_unavailable
*/
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/smartbank/wallet-engine/ledger"
	"github.com/smartbank/wallet-engine/rates"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Coordinator *ledger.MutationCoordinator
	Accounts    *ledger.Accounts
	Delegations *ledger.Delegations
	Views       *ViewCache
	Sessions    Sessions
	Rates       rates.Provider     // optional; nil disables display conversion
	Delay       ledger.DelayPolicy // simulated latency at the boundary
	Logger      *slog.Logger
}

// NewHandler wires a handler with sensible defaults; the view cache is
// registered with the coordinator by the caller (see cmd/server).
func NewHandler(coordinator *ledger.MutationCoordinator, accounts *ledger.Accounts, delegations *ledger.Delegations, views *ViewCache, sessions Sessions) *Handler {
	return &Handler{
		Coordinator: coordinator,
		Accounts:    accounts,
		Delegations: delegations,
		Views:       views,
		Sessions:    sessions,
		Delay:       ledger.NoDelay{},
		Logger:      slog.Default(),
	}
}

// =============================================================================
// WALLET HANDLERS
// =============================================================================

// GetBalance returns the committed balance for the session account. The
// optional ?display_currency= query adds a read-time conversion; a rates
// failure fails the request (no stale fallback).
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	id, ok := h.Sessions.CurrentAccount(r)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "unauthenticated", "no session account")
		return
	}

	acct, err := h.Accounts.Get(r.Context(), id)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	balance, err := h.Views.Balance(r.Context(), id)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	dto := BalanceDTO{
		AccountID: string(id),
		Balance:   balance.String(),
		Currency:  string(acct.Currency),
	}

	if display := r.URL.Query().Get("display_currency"); display != "" && display != string(acct.Currency) {
		if h.Rates == nil {
			h.writeError(w, http.StatusServiceUnavailable, "rates_unavailable", "no rate provider configured")
			return
		}
		snapshot, err := h.Rates.GetRates(r.Context(), acct.Currency)
		if err != nil {
			h.writeError(w, http.StatusServiceUnavailable, "rates_unavailable", err.Error())
			return
		}
		converted, err := snapshot.Convert(balance, ledger.Currency(display))
		if err != nil {
			h.writeError(w, http.StatusServiceUnavailable, "rates_unavailable", err.Error())
			return
		}
		dto.Display = &DisplayDTO{
			Currency: display,
			Amount:   converted.StringFixed(2),
			RateAsOf: snapshot.Timestamp.UTC().Format("2006-01-02T15:04:05Z"),
		}
	}

	writeJSON(w, http.StatusOK, dto)
}

// Deposit credits the session account.
func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	var req DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	h.mutate(w, r, req.Amount, func(id ledger.AccountID, amount ledger.Amount) (ledger.Receipt, error) {
		return h.Coordinator.Deposit(r.Context(), id, amount, req.IdempotencyKey)
	})
}

// Withdraw debits the session account.
func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req WithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	h.mutate(w, r, req.Amount, func(id ledger.AccountID, amount ledger.Amount) (ledger.Receipt, error) {
		return h.Coordinator.Withdraw(r.Context(), id, amount, req.IdempotencyKey)
	})
}

// Transfer debits the session account toward a recipient. The idempotency
// key is required here: transfers are the retry-sensitive operation.
func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if req.Recipient == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "recipient is required")
		return
	}
	if req.IdempotencyKey == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "idempotency_key is required")
		return
	}
	h.mutate(w, r, req.Amount, func(id ledger.AccountID, amount ledger.Amount) (ledger.Receipt, error) {
		return h.Coordinator.Transfer(r.Context(), id, req.Recipient, amount, req.IdempotencyKey)
	})
}

// mutate is the shared write-path plumbing: session, amount parsing,
// simulated latency (outside the lock), the operation, and the response
// carrying the post-operation committed balance.
func (h *Handler) mutate(w http.ResponseWriter, r *http.Request, rawAmount string, op func(ledger.AccountID, ledger.Amount) (ledger.Receipt, error)) {
	id, ok := h.Sessions.CurrentAccount(r)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "unauthenticated", "no session account")
		return
	}

	amount, err := ledger.ParseAmount(rawAmount)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	h.Delay.Wait(r.Context())

	receipt, err := op(id, amount)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	balance, err := h.Views.Balance(r.Context(), id)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, OperationDTO{
		Outcome:     string(receipt.Outcome),
		Balance:     balance.String(),
		Transaction: toTransactionDTO(receipt.Transaction),
	})
}

// =============================================================================
// TRANSACTION HANDLERS
// =============================================================================

// ListTransactions returns one newest-first page. ?cursor= anchors the page
// after a previously returned transaction; ?page_size= caps the page.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	id, ok := h.Sessions.CurrentAccount(r)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "unauthenticated", "no session account")
		return
	}

	pageSize := ledger.DefaultPageSize
	if raw := r.URL.Query().Get("page_size"); raw != "" {
		if n, err := parsePositiveInt(raw); err == nil {
			pageSize = n
		}
	}
	cursor := ledger.TransactionID(r.URL.Query().Get("cursor"))

	var page ledger.Page
	var err error
	if cursor == "" {
		page, err = h.Views.FirstPage(r.Context(), id, pageSize)
	} else {
		page, err = h.Coordinator.ListTransactions(r.Context(), id, cursor, pageSize)
	}
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toTransactionListDTO(page))
}

// =============================================================================
// DELEGATION HANDLERS
// =============================================================================

// ListDelegates returns the session account's delegate roster, active and
// revoked alike.
func (h *Handler) ListDelegates(w http.ResponseWriter, r *http.Request) {
	id, ok := h.Sessions.CurrentAccount(r)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "unauthenticated", "no session account")
		return
	}

	delegates, err := h.Delegations.List(r.Context(), id)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	now := time.Now().UTC()
	items := make([]DelegateDTO, len(delegates))
	for i, d := range delegates {
		items[i] = toDelegateDTO(d, now)
	}
	writeJSON(w, http.StatusOK, DelegateListDTO{Items: items})
}

// AddDelegate registers a spending delegate with a limit.
func (h *Handler) AddDelegate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.Sessions.CurrentAccount(r)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "unauthenticated", "no session account")
		return
	}

	var req AddDelegateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if req.Name == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "name is required")
		return
	}
	limit, err := ledger.ParseAmount(req.Limit)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	delegate, err := h.Delegations.Add(r.Context(), id, req.Name, limit)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDelegateDTO(delegate, time.Now().UTC()))
}

// RevokeDelegate deactivates a delegate. The record survives as history.
func (h *Handler) RevokeDelegate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.Sessions.CurrentAccount(r)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "unauthenticated", "no session account")
		return
	}

	delegateID := ledger.DelegateID(chi.URLParam(r, "id"))
	if err := h.Delegations.Revoke(r.Context(), id, delegateID); err != nil {
		h.writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// ADMIN HANDLERS - Same primitives, administrative caller
// =============================================================================

// CreateAccountRequest seeds an account profile (e.g. the demo account).
type CreateAccountRequest struct {
	AccountID string `json:"account_id"`
	Currency  string `json:"currency,omitempty"`
	Demo      bool   `json:"demo"`
}

func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AccountID == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "account_id is required")
		return
	}
	currency := ledger.Currency(req.Currency)
	if currency == "" {
		currency = ledger.DefaultCurrency
	}
	acct, err := h.Accounts.Create(r.Context(), ledger.AccountID(req.AccountID), currency, req.Demo)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, acct)
}

// CreateAdjustment applies a manual credit or debit through the same
// deposit/withdraw path as user operations, so every invariant holds.
func (h *Handler) CreateAdjustment(w http.ResponseWriter, r *http.Request) {
	var req AdjustmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AccountID == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "account_id is required")
		return
	}

	amount, err := ledger.ParseAmount(req.Amount)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	id := ledger.AccountID(req.AccountID)
	var receipt ledger.Receipt
	switch req.Direction {
	case "credit":
		receipt, err = h.Coordinator.Deposit(r.Context(), id, amount, "")
	case "debit":
		receipt, err = h.Coordinator.Withdraw(r.Context(), id, amount, "")
	default:
		h.writeError(w, http.StatusBadRequest, "invalid_request", "direction must be credit or debit")
		return
	}
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	balance, err := h.Coordinator.Balance(r.Context(), id)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, OperationDTO{
		Outcome:     string(receipt.Outcome),
		Balance:     balance.String(),
		Transaction: toTransactionDTO(receipt.Transaction),
	})
}

// WipeAccount clears all persisted state for an account. The wipe goes
// through the coordinator so it holds the account's write lock and cannot
// interleave with an in-flight commit; the coordinator also drops the
// cached views, balance first.
func (h *Handler) WipeAccount(w http.ResponseWriter, r *http.Request) {
	id := ledger.AccountID(chi.URLParam(r, "id"))
	if err := h.Coordinator.Wipe(r.Context(), id); err != nil {
		h.writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, ErrorDTO{Kind: kind, Message: message})
}

// writeEngineError maps the engine's error taxonomy onto HTTP.
func (h *Handler) writeEngineError(w http.ResponseWriter, err error) {
	status, kind := http.StatusInternalServerError, "internal"
	switch {
	case errors.Is(err, ledger.ErrInvalidAmount):
		status, kind = http.StatusBadRequest, "invalid_amount"
	case errors.Is(err, ledger.ErrInsufficientFunds):
		status, kind = http.StatusConflict, "insufficient_funds"
	case errors.Is(err, ledger.ErrDemoAccountRestricted):
		status, kind = http.StatusForbidden, "demo_account_restricted"
	case errors.Is(err, ledger.ErrDuplicateIdempotencyKey):
		status, kind = http.StatusConflict, "duplicate_idempotency_key"
	case errors.Is(err, ledger.ErrDelegateNotFound):
		status, kind = http.StatusNotFound, "delegate_not_found"
	case errors.Is(err, ledger.ErrConcurrencyConflict):
		status, kind = http.StatusConflict, "concurrency_conflict"
	case errors.Is(err, ledger.ErrStorageFailure):
		status, kind = http.StatusInternalServerError, "storage_failure"
	}

	if status >= http.StatusInternalServerError {
		h.Logger.Error("operation failed", "kind", kind, "error", err)
	}
	h.writeError(w, status, kind, err.Error())
}

func parsePositiveInt(s string) (int, error) {
	var n int
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, errors.New("not a positive integer")
		}
		n = n*10 + int(r-'0')
	}
	if n <= 0 {
		return 0, errors.New("not a positive integer")
	}
	return n, nil
}
