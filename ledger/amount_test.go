package ledger_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartbank/wallet-engine/ledger"
)

// =============================================================================
// PARSING - Decimal strings into minor units
// =============================================================================

func TestParseAmount_ValidInputs(t *testing.T) {
	cases := []struct {
		input string
		want  ledger.Amount
	}{
		{"100.00", 10000},
		{"100", 10000},
		{"0.01", 1},
		{"1050.50", 105050},
		{"1000000.00", 100000000},
	}

	for _, tc := range cases {
		got, err := ledger.ParseAmount(tc.input)
		require.NoError(t, err, "input %q", tc.input)
		assert.Equal(t, tc.want, got, "input %q", tc.input)
	}
}

func TestParseAmount_NonNumeric_Rejected(t *testing.T) {
	for _, input := range []string{"abc", "", "12.3.4", "$100", "1e"} {
		_, err := ledger.ParseAmount(input)
		assert.ErrorIs(t, err, ledger.ErrInvalidAmount, "input %q", input)
	}
}

func TestParseAmount_SubMinorPrecision_Rejected(t *testing.T) {
	// A cent is the smallest representable unit; "0.001" has nowhere to go.
	_, err := ledger.ParseAmount("0.001")
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)

	_, err = ledger.ParseAmount("10.505")
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)
}

func TestParseAmount_NegativeParsesButSignIsPreserved(t *testing.T) {
	// Parsing accepts signed input; positivity is an operation rule, not a
	// parsing rule (balances and deltas are legitimately signed).
	got, err := ledger.ParseAmount("-5.25")
	require.NoError(t, err)
	assert.Equal(t, ledger.Amount(-525), got)
	assert.True(t, got.IsNegative())
}

// =============================================================================
// FORMATTING - Minor units back to display strings
// =============================================================================

func TestAmount_String_FullMinorPrecision(t *testing.T) {
	assert.Equal(t, "100.00", ledger.Amount(10000).String())
	assert.Equal(t, "0.01", ledger.Amount(1).String())
	assert.Equal(t, "-3.50", ledger.Amount(-350).String())
	assert.Equal(t, "0.00", ledger.Amount(0).String())
}

func TestAmount_RoundTrip(t *testing.T) {
	// Many small amounts summed in integer space never drift: the classic
	// 0.1+0.2 float failure cannot occur.
	var total ledger.Amount
	for i := 0; i < 1000; i++ {
		a, err := ledger.ParseAmount("0.10")
		require.NoError(t, err)
		total += a
	}
	assert.Equal(t, "100.00", total.String())
}

// =============================================================================
// SIGNED ARITHMETIC - Kind implies the balance direction
// =============================================================================

func TestTransaction_SignedAmount(t *testing.T) {
	deposit := ledger.Transaction{Kind: ledger.KindDeposit, Amount: 500}
	withdraw := ledger.Transaction{Kind: ledger.KindWithdraw, Amount: 200}
	out := ledger.Transaction{Kind: ledger.KindTransferOut, Amount: 300}
	in := ledger.Transaction{Kind: ledger.KindTransferIn, Amount: 100}

	assert.Equal(t, ledger.Amount(500), deposit.SignedAmount())
	assert.Equal(t, ledger.Amount(-200), withdraw.SignedAmount())
	assert.Equal(t, ledger.Amount(-300), out.SignedAmount())
	assert.Equal(t, ledger.Amount(100), in.SignedAmount())

	sum := ledger.SumSigned([]ledger.Transaction{deposit, withdraw, out, in})
	assert.Equal(t, ledger.Amount(100), sum)
}
