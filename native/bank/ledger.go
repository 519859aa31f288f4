package bank

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"estatechain/core/types"
	"estatechain/storage"
)

var (
	// ErrInsufficientBalance is returned when a transfer or burn exceeds the
	// sender's balance.
	ErrInsufficientBalance = errors.New("bank: insufficient balance")
	// ErrInvalidAmount is returned for nil or negative amounts.
	ErrInvalidAmount = errors.New("bank: amount must be non-negative")
)

const accountKeyPrefix = "bank/account/"

// Ledger tracks wei balances per address over a key-value database. It is the
// settlement backend the registry moves purchase funds through; both sides of
// a transfer are applied under one lock.
type Ledger struct {
	mu sync.Mutex
	db storage.Database
}

func NewLedger(db storage.Database) *Ledger {
	return &Ledger{db: db}
}

func accountKey(addr [20]byte) []byte {
	return []byte(accountKeyPrefix + hex.EncodeToString(addr[:]))
}

func (l *Ledger) getAccount(addr [20]byte) (*types.Account, error) {
	encoded, err := l.db.Get(accountKey(addr))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return &types.Account{Balance: big.NewInt(0)}, nil
		}
		return nil, err
	}
	account := &types.Account{}
	if err := json.Unmarshal(encoded, account); err != nil {
		return nil, fmt.Errorf("decode account: %w", err)
	}
	if account.Balance == nil {
		account.Balance = big.NewInt(0)
	}
	return account, nil
}

func (l *Ledger) putAccount(addr [20]byte, account *types.Account) error {
	encoded, err := json.Marshal(account)
	if err != nil {
		return err
	}
	return l.db.Put(accountKey(addr), encoded)
}

// BalanceOf returns the current balance for the address. Unknown addresses
// report zero.
func (l *Ledger) BalanceOf(addr [20]byte) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	account, err := l.getAccount(addr)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(account.Balance), nil
}

// Mint credits the address with new funds. Used for genesis allocations and
// test fixtures.
func (l *Ledger) Mint(addr [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	account, err := l.getAccount(addr)
	if err != nil {
		return err
	}
	account.Balance = new(big.Int).Add(account.Balance, amount)
	return l.putAccount(addr, account)
}

// Transfer moves amount from one address to another. A zero amount is a no-op;
// the debit and credit are applied together under the ledger lock.
func (l *Ledger) Transfer(from, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if amount.Sign() == 0 || from == to {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fromAccount, err := l.getAccount(from)
	if err != nil {
		return err
	}
	if fromAccount.Balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, fromAccount.Balance, amount)
	}
	toAccount, err := l.getAccount(to)
	if err != nil {
		return err
	}
	fromAccount.Balance = new(big.Int).Sub(fromAccount.Balance, amount)
	toAccount.Balance = new(big.Int).Add(toAccount.Balance, amount)
	if err := l.putAccount(from, fromAccount); err != nil {
		return err
	}
	if err := l.putAccount(to, toAccount); err != nil {
		// Restore the debit so a failed credit cannot destroy funds.
		fromAccount.Balance = new(big.Int).Add(fromAccount.Balance, amount)
		if restoreErr := l.putAccount(from, fromAccount); restoreErr != nil {
			return fmt.Errorf("credit %x: %w (restore failed: %v)", to, err, restoreErr)
		}
		return err
	}
	return nil
}
