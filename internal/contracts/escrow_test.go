package contracts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/novafoundation/nova-core/pkg/types"
)

func newTestEscrow() *Escrow {
	lender := types.DeriveAddress([]byte("lender"))
	borrower := types.DeriveAddress([]byte("borrower"))
	terms := Terms{
		Principal:         1000,
		InterestRateBps:   500,
		TotalOwed:         1050,
		RepaymentDeadline: time.Now().Add(24 * time.Hour),
		GracePeriod:       time.Hour,
	}
	return NewEscrow(lender, borrower, terms)
}

func TestEscrowPartialFundingCrossesToFunded(t *testing.T) {
	e := newTestEscrow()
	require.NoError(t, e.Fund(400))
	require.Equal(t, EscrowPending, e.Status)
	require.NoError(t, e.Fund(600))
	require.Equal(t, EscrowFunded, e.Status)
}

func TestEscrowOverfundingRejected(t *testing.T) {
	e := newTestEscrow()
	require.NoError(t, e.Fund(900))
	require.ErrorIs(t, e.Fund(200), ErrEscrowOverfunded)
}

func TestEscrowPartialReleaseCrossesToActive(t *testing.T) {
	e := newTestEscrow()
	require.NoError(t, e.Fund(1000))
	require.NoError(t, e.ReleaseToBorrower(300))
	require.Equal(t, EscrowFunded, e.Status)
	require.NoError(t, e.ReleaseToBorrower(700))
	require.Equal(t, EscrowActive, e.Status)
}

func TestEscrowReleaseBeforeFundedRejected(t *testing.T) {
	e := newTestEscrow()
	require.ErrorIs(t, e.ReleaseToBorrower(100), ErrEscrowInvalidState)
}

func TestEscrowMultiInstallmentRepaymentCompletes(t *testing.T) {
	e := newTestEscrow()
	require.NoError(t, e.Fund(1000))
	require.NoError(t, e.ReleaseToBorrower(1000))

	require.NoError(t, e.Repay(500))
	require.Equal(t, EscrowActive, e.Status)
	require.NoError(t, e.Repay(550))
	require.Equal(t, EscrowCompleted, e.Status)
}

func TestEscrowCheckDefaultBeforeDeadlineDoesNothing(t *testing.T) {
	e := newTestEscrow()
	require.NoError(t, e.Fund(1000))
	require.NoError(t, e.ReleaseToBorrower(1000))

	require.False(t, e.CheckDefault(time.Now()))
	require.Equal(t, EscrowActive, e.Status)
}

func TestEscrowCheckDefaultAfterDeadlineAndGrace(t *testing.T) {
	e := newTestEscrow()
	e.Terms.RepaymentDeadline = time.Now().Add(-2 * time.Hour)
	e.Terms.GracePeriod = time.Hour
	require.NoError(t, e.Fund(1000))
	require.NoError(t, e.ReleaseToBorrower(1000))

	require.True(t, e.CheckDefault(time.Now()))
	require.Equal(t, EscrowDefaulted, e.Status)
}

func TestEscrowDisputeFreezesReleaseAndRepay(t *testing.T) {
	e := newTestEscrow()
	require.NoError(t, e.Fund(1000))
	require.NoError(t, e.Dispute())

	require.ErrorIs(t, e.ReleaseToBorrower(100), ErrEscrowInvalidState)

	require.NoError(t, e.Unfreeze(EscrowFunded))
	require.NoError(t, e.ReleaseToBorrower(1000))
	require.NoError(t, e.Dispute())
	require.ErrorIs(t, e.Repay(10), ErrEscrowInvalidState)
}

func TestEscrowCannotDisputeTerminalOrAlreadyDisputed(t *testing.T) {
	e := newTestEscrow()
	require.NoError(t, e.Fund(1000))
	require.NoError(t, e.ReleaseToBorrower(1000))
	require.NoError(t, e.Repay(1050))
	require.Equal(t, EscrowCompleted, e.Status)

	require.ErrorIs(t, e.Dispute(), ErrEscrowInvalidState)

	e2 := newTestEscrow()
	require.NoError(t, e2.Fund(1000))
	require.NoError(t, e2.Dispute())
	require.ErrorIs(t, e2.Dispute(), ErrEscrowAlreadyFrozen)
}
