/*
transfer.go - Peer transfer processing

PURPOSE:
  Orchestrates a P2P transfer: demo restriction, validation, idempotency,
  funds check, then the atomic debit+append. The counterparty is stored as
  free text on the transaction for display - this engine deliberately does
  not credit a destination account (the observed behavior of the system it
  models; see DESIGN.md for the double-entry decision).

ORDER OF CHECKS:
  1. Demo restriction (before any other validation, so demo users can
     exercise the UI without mutating shared state)
  2. Amount validation
  3. Idempotency lookup - a replay returns the existing transaction as a
     duplicate Receipt, never a second charge
  4. Funds check + atomic commit
*/
package ledger

import "context"

// TransferProcessor executes outgoing peer transfers.
type TransferProcessor struct {
	accounts  *Accounts
	balances  *BalanceLedger
	log       *TransactionLog
	guard     *IdempotencyGuard
	maxAmount Amount
}

func NewTransferProcessor(accounts *Accounts, balances *BalanceLedger, log *TransactionLog) *TransferProcessor {
	return &TransferProcessor{
		accounts:  accounts,
		balances:  balances,
		log:       log,
		guard:     NewIdempotencyGuard(log),
		maxAmount: DefaultMaxAmount,
	}
}

// WithMaxAmount overrides the per-operation cap. Zero disables it.
func (p *TransferProcessor) WithMaxAmount(max Amount) *TransferProcessor {
	p.maxAmount = max
	return p
}

// Transfer debits amount from the account and records a transfer_out
// transaction naming counterparty. idempotencyKey is required for transfers
// so retried submissions are recognized rather than re-applied.
//
// NOT self-serializing: callers go through the MutationCoordinator, which
// holds the per-account lock across this whole call.
func (p *TransferProcessor) Transfer(ctx context.Context, from AccountID, counterparty string, amount Amount, idempotencyKey string) (Receipt, error) {
	acct, err := p.accounts.Get(ctx, from)
	if err != nil {
		return Receipt{}, err
	}
	if acct.Demo {
		return Receipt{}, ErrDemoAccountRestricted
	}

	if err := validateAmount(amount, p.maxAmount); err != nil {
		return Receipt{}, err
	}

	check, err := p.guard.CheckAndReserve(ctx, from, idempotencyKey)
	if err != nil {
		return Receipt{}, err
	}
	if !check.Fresh {
		return Receipt{Outcome: OutcomeDuplicate, Transaction: *check.Existing}, nil
	}

	balance, err := p.balances.Balance(ctx, from)
	if err != nil {
		return Receipt{}, err
	}
	if balance < amount {
		return Receipt{}, &InsufficientFundsError{AccountID: from, Available: balance, Requested: amount}
	}

	tx := Transaction{
		AccountID:      from,
		Kind:           KindTransferOut,
		Amount:         amount,
		Currency:       acct.Currency,
		Counterparty:   counterparty,
		Description:    "Transfer to " + counterparty,
		Category:       "Transfer",
		IdempotencyKey: idempotencyKey,
	}
	recorded, err := commitTransaction(ctx, p.balances, p.log, tx)
	if err != nil {
		return Receipt{}, err
	}
	return Receipt{Outcome: OutcomeCompleted, Transaction: recorded}, nil
}
