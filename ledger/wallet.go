/*
wallet.go - Deposit and withdraw processing

PURPOSE:
  Orchestrates the two wallet operations. Deposits and withdrawals are
  UI-triggered (explicit click), so an idempotency key is optional; when a
  retryable client supplies one it behaves exactly like a transfer key.
  Withdrawals additionally require sufficient funds - the funds check is
  enforced by BalanceLedger.Apply inside the atomic unit, so a concurrent
  writer can never invalidate it between check and commit.
*/
package ledger

import "context"

// WalletOperationProcessor executes deposits and withdrawals.
type WalletOperationProcessor struct {
	accounts  *Accounts
	balances  *BalanceLedger
	log       *TransactionLog
	guard     *IdempotencyGuard
	maxAmount Amount
}

func NewWalletOperationProcessor(accounts *Accounts, balances *BalanceLedger, log *TransactionLog) *WalletOperationProcessor {
	return &WalletOperationProcessor{
		accounts:  accounts,
		balances:  balances,
		log:       log,
		guard:     NewIdempotencyGuard(log),
		maxAmount: DefaultMaxAmount,
	}
}

// WithMaxAmount overrides the per-operation cap. Zero disables it.
func (p *WalletOperationProcessor) WithMaxAmount(max Amount) *WalletOperationProcessor {
	p.maxAmount = max
	return p
}

// Deposit credits amount to the account. idempotencyKey may be empty.
func (p *WalletOperationProcessor) Deposit(ctx context.Context, id AccountID, amount Amount, idempotencyKey string) (Receipt, error) {
	return p.apply(ctx, id, KindDeposit, amount, idempotencyKey, "Manual Deposit")
}

// Withdraw debits amount from the account. Fails with InsufficientFunds
// when the balance cannot cover it. idempotencyKey may be empty.
func (p *WalletOperationProcessor) Withdraw(ctx context.Context, id AccountID, amount Amount, idempotencyKey string) (Receipt, error) {
	return p.apply(ctx, id, KindWithdraw, amount, idempotencyKey, "Manual Withdrawal")
}

func (p *WalletOperationProcessor) apply(ctx context.Context, id AccountID, kind Kind, amount Amount, idempotencyKey, description string) (Receipt, error) {
	if err := validateAmount(amount, p.maxAmount); err != nil {
		return Receipt{}, err
	}

	acct, err := p.accounts.Get(ctx, id)
	if err != nil {
		return Receipt{}, err
	}

	check, err := p.guard.CheckAndReserve(ctx, id, idempotencyKey)
	if err != nil {
		return Receipt{}, err
	}
	if !check.Fresh {
		return Receipt{Outcome: OutcomeDuplicate, Transaction: *check.Existing}, nil
	}

	tx := Transaction{
		AccountID:      id,
		Kind:           kind,
		Amount:         amount,
		Currency:       acct.Currency,
		Description:    description,
		Category:       "Wallet",
		IdempotencyKey: idempotencyKey,
	}
	recorded, err := commitTransaction(ctx, p.balances, p.log, tx)
	if err != nil {
		return Receipt{}, err
	}
	return Receipt{Outcome: OutcomeCompleted, Transaction: recorded}, nil
}
