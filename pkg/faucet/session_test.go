package faucet

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zama-ai/faucet-contract/pkg/chain"
	"github.com/zama-ai/faucet-contract/pkg/currency"
)

func ether(s string) *uint256.Int {
	return currency.MustParseAmount(s, currency.DefaultETH)
}

// deployFixture funds two signers and deploys a faucet holding 1 ether from owner.
func deployFixture(t *testing.T) (*chain.Chain, *Session) {
	t.Helper()
	c := chain.New()
	require.NoError(t, c.Fund(owner, ether("10")))
	require.NoError(t, c.Fund(nonOwner, ether("10")))

	s, receipt, err := Deploy(context.Background(), c, owner, ether("1"))
	require.NoError(t, err)
	require.True(t, receipt.Succeeded())
	return c, s
}

func balanceOf(t *testing.T, c *chain.Chain, addr common.Address) *uint256.Int {
	t.Helper()
	b, err := c.BalanceAt(context.Background(), addr)
	require.NoError(t, err)
	return b
}

func TestDeploySetsOwner(t *testing.T) {
	_, s := deployFixture(t)

	got, err := s.Owner(context.Background())
	require.NoError(t, err)
	assert.Equal(t, owner, got)
	assert.Equal(t, DefaultLimit, s.Limit())
}

func TestDeployHoldsFunding(t *testing.T) {
	c, s := deployFixture(t)

	bal, err := s.Balance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ether("1"), bal)
	assert.Equal(t, ether("9"), balanceOf(t, c, owner))
}

func TestWithdrawAboveLimitReverts(t *testing.T) {
	c, s := deployFixture(t)
	ctx := context.Background()

	receipt, err := s.Withdraw(ctx, nonOwner, ether("0.2"))
	assert.ErrorIs(t, err, ErrLimitExceeded)

	var revertErr *chain.RevertError
	require.True(t, errors.As(err, &revertErr))
	assert.False(t, receipt.Succeeded())

	assert.Equal(t, ether("1"), balanceOf(t, c, s.Address()))
	assert.Equal(t, ether("10"), balanceOf(t, c, nonOwner))
}

func TestWithdrawWithinLimit(t *testing.T) {
	c, s := deployFixture(t)

	receipt, err := s.Withdraw(context.Background(), nonOwner, ether("0.1"))
	require.NoError(t, err)
	assert.True(t, receipt.Succeeded())

	assert.Equal(t, ether("0.9"), balanceOf(t, c, s.Address()))
	assert.Equal(t, ether("10.1"), balanceOf(t, c, nonOwner))
}

func TestWithdrawDrainsThenFails(t *testing.T) {
	c, s := deployFixture(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := s.Withdraw(ctx, nonOwner, ether("0.1"))
		require.NoError(t, err)
	}
	assert.True(t, balanceOf(t, c, s.Address()).IsZero())

	_, err := s.Withdraw(ctx, nonOwner, ether("0.1"))
	assert.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestNonOwnerCannotWithdrawAll(t *testing.T) {
	c, s := deployFixture(t)

	_, err := s.WithdrawAll(context.Background(), nonOwner)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, ether("1"), balanceOf(t, c, s.Address()))
}

func TestOwnerWithdrawAll(t *testing.T) {
	c, s := deployFixture(t)
	before := balanceOf(t, c, owner)

	_, err := s.WithdrawAll(context.Background(), owner)
	require.NoError(t, err)

	assert.True(t, balanceOf(t, c, s.Address()).IsZero())
	gained := new(uint256.Int).Sub(balanceOf(t, c, owner), before)
	assert.Equal(t, ether("1"), gained)
}

func TestNonOwnerCannotDestroy(t *testing.T) {
	c, s := deployFixture(t)
	ctx := context.Background()

	_, err := s.Destroy(ctx, nonOwner)
	assert.ErrorIs(t, err, ErrUnauthorized)

	alive, err := s.Alive(ctx)
	require.NoError(t, err)
	assert.True(t, alive)
	assert.Equal(t, ether("1"), balanceOf(t, c, s.Address()))
}

func TestOwnerDestroy(t *testing.T) {
	c, s := deployFixture(t)
	ctx := context.Background()
	before := balanceOf(t, c, owner)

	receipt, err := s.Destroy(ctx, owner)
	require.NoError(t, err)
	assert.True(t, receipt.Succeeded())

	code, err := c.CodeAt(ctx, s.Address())
	require.NoError(t, err)
	assert.Empty(t, code)
	assert.True(t, balanceOf(t, c, s.Address()).IsZero())
	gained := new(uint256.Int).Sub(balanceOf(t, c, owner), before)
	assert.Equal(t, ether("1"), gained)

	// every later call observes the faucet as gone
	_, err = s.Withdraw(ctx, nonOwner, ether("0.1"))
	assert.ErrorIs(t, err, ErrDestroyed)
	assert.ErrorIs(t, err, chain.ErrNoCode)
	_, err = s.Owner(ctx)
	assert.ErrorIs(t, err, ErrDestroyed)
	_, err = s.Destroy(ctx, owner)
	assert.ErrorIs(t, err, ErrDestroyed)
	_, err = s.Deposit(ctx, owner, ether("1"))
	assert.ErrorIs(t, err, ErrDestroyed)
}

func TestDeposit(t *testing.T) {
	c, s := deployFixture(t)

	_, err := s.Deposit(context.Background(), nonOwner, ether("0.5"))
	require.NoError(t, err)
	assert.Equal(t, ether("1.5"), balanceOf(t, c, s.Address()))
	assert.Equal(t, ether("9.5"), balanceOf(t, c, nonOwner))
}

func TestCustomLimit(t *testing.T) {
	c := chain.New()
	require.NoError(t, c.Fund(owner, ether("5")))
	s, _, err := Deploy(context.Background(), c, owner, ether("5"), WithLimit(ether("2")))
	require.NoError(t, err)

	_, err = s.Withdraw(context.Background(), nonOwner, ether("2"))
	require.NoError(t, err)
	_, err = s.Withdraw(context.Background(), nonOwner, ether("2.000000000000000001"))
	assert.ErrorIs(t, err, ErrLimitExceeded)
}
