package api

import (
	"net/http"

	"github.com/smartbank/wallet-engine/ledger"
)

// =============================================================================
// SESSION - Authentication collaborator
// =============================================================================

// Sessions resolves the calling user's account. Real authentication is an
// external collaborator; the engine only needs "who is this, if anyone".
type Sessions interface {
	CurrentAccount(r *http.Request) (ledger.AccountID, bool)
}

// HeaderSessions resolves the account from a request header. The demo
// frontend sets it after its simulated login.
type HeaderSessions struct {
	Header string
}

// DefaultAccountHeader is used when Header is empty.
const DefaultAccountHeader = "X-Account-ID"

func (s HeaderSessions) CurrentAccount(r *http.Request) (ledger.AccountID, bool) {
	header := s.Header
	if header == "" {
		header = DefaultAccountHeader
	}
	id := r.Header.Get(header)
	if id == "" {
		return "", false
	}
	return ledger.AccountID(id), true
}
