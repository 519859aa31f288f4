package bank

import (
	"bytes"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"estatechain/storage"
)

func addr(fill byte) [20]byte {
	var a [20]byte
	copy(a[:], bytes.Repeat([]byte{fill}, 20))
	return a
}

func TestMintAndBalance(t *testing.T) {
	ledger := NewLedger(storage.NewMemDB())
	alice := addr(0x01)

	balance, err := ledger.BalanceOf(alice)
	require.NoError(t, err)
	require.Zero(t, balance.Sign(), "unknown account should report zero")

	require.NoError(t, ledger.Mint(alice, big.NewInt(1000)))
	require.NoError(t, ledger.Mint(alice, big.NewInt(500)))

	balance, err = ledger.BalanceOf(alice)
	require.NoError(t, err)
	require.Equal(t, int64(1500), balance.Int64())
}

func TestTransfer(t *testing.T) {
	ledger := NewLedger(storage.NewMemDB())
	alice, bob := addr(0x01), addr(0x02)
	require.NoError(t, ledger.Mint(alice, big.NewInt(1000)))

	require.NoError(t, ledger.Transfer(alice, bob, big.NewInt(400)))

	aliceBalance, err := ledger.BalanceOf(alice)
	require.NoError(t, err)
	require.Equal(t, int64(600), aliceBalance.Int64())
	bobBalance, err := ledger.BalanceOf(bob)
	require.NoError(t, err)
	require.Equal(t, int64(400), bobBalance.Int64())
}

func TestTransferInsufficientBalance(t *testing.T) {
	ledger := NewLedger(storage.NewMemDB())
	alice, bob := addr(0x01), addr(0x02)
	require.NoError(t, ledger.Mint(alice, big.NewInt(100)))

	err := ledger.Transfer(alice, bob, big.NewInt(400))
	require.ErrorIs(t, err, ErrInsufficientBalance)

	// Neither side moved.
	aliceBalance, _ := ledger.BalanceOf(alice)
	require.Equal(t, int64(100), aliceBalance.Int64())
	bobBalance, _ := ledger.BalanceOf(bob)
	require.Zero(t, bobBalance.Sign())
}

func TestTransferRejectsInvalidAmount(t *testing.T) {
	ledger := NewLedger(storage.NewMemDB())
	require.ErrorIs(t, ledger.Transfer(addr(0x01), addr(0x02), nil), ErrInvalidAmount)
	require.ErrorIs(t, ledger.Transfer(addr(0x01), addr(0x02), big.NewInt(-1)), ErrInvalidAmount)
	require.ErrorIs(t, ledger.Mint(addr(0x01), big.NewInt(-1)), ErrInvalidAmount)
}

func TestTransferSelfAndZeroAreNoops(t *testing.T) {
	ledger := NewLedger(storage.NewMemDB())
	alice := addr(0x01)
	require.NoError(t, ledger.Mint(alice, big.NewInt(100)))
	require.NoError(t, ledger.Transfer(alice, alice, big.NewInt(50)))
	require.NoError(t, ledger.Transfer(alice, addr(0x02), big.NewInt(0)))
	balance, _ := ledger.BalanceOf(alice)
	require.Equal(t, int64(100), balance.Int64())
}

func TestBalancesSurviveReopen(t *testing.T) {
	db := storage.NewMemDB()
	first := NewLedger(db)
	alice := addr(0x01)
	require.NoError(t, first.Mint(alice, big.NewInt(777)))

	second := NewLedger(db)
	balance, err := second.BalanceOf(alice)
	require.NoError(t, err)
	require.Equal(t, int64(777), balance.Int64())
}

func TestErrorsAreTyped(t *testing.T) {
	ledger := NewLedger(storage.NewMemDB())
	err := ledger.Transfer(addr(0x01), addr(0x02), big.NewInt(10))
	require.True(t, errors.Is(err, ErrInsufficientBalance))
}
