package types

// Account is the state-tree leaf value for a single address: balance,
// replay-protection nonce, custom-token balances, and any credit lines the
// address participates in.
type Account struct {
	Address Address
	Nonce   uint64
	Balance uint64

	// TokenBalances holds balances of custom tokens minted via
	// TxTokenMint, keyed by ticker.
	TokenBalances map[string]uint64

	// CreditLines lists the escrow ids this address is a party to
	// (borrower or lender), for quick lookup without scanning
	// internal/contracts storage.
	CreditLines []Hash

	// Frozen marks an account that a dispute resolution has locked out
	// of further transfers pending resolution.
	Frozen bool
}

// NewAccount returns a fresh, empty account for the given address.
func NewAccount(address Address) *Account {
	return &Account{
		Address:       address,
		TokenBalances: make(map[string]uint64),
	}
}

// Clone returns a deep copy of the account, used by the state tree to
// avoid aliasing mutable maps across snapshots.
func (a *Account) Clone() *Account {
	clone := &Account{
		Address:     a.Address,
		Nonce:       a.Nonce,
		Balance:     a.Balance,
		Frozen:      a.Frozen,
		CreditLines: append([]Hash(nil), a.CreditLines...),
	}
	clone.TokenBalances = make(map[string]uint64, len(a.TokenBalances))
	for k, v := range a.TokenBalances {
		clone.TokenBalances[k] = v
	}
	return clone
}

// CanSpend reports whether the account can originate a transaction of
// the given amount plus fee: it must not be frozen, and for native
// currency the balance must cover amount+fee.
func (a *Account) CanSpend(amount Amount, fee uint64) bool {
	if a.Frozen {
		return false
	}
	switch amount.Currency.Kind {
	case CurrencyNative:
		total := amount.Value + fee
		return total >= amount.Value && a.Balance >= total
	case CurrencyCustom:
		return a.Balance >= fee && a.TokenBalances[amount.Currency.Ticker] >= amount.Value
	default:
		return a.Balance >= fee
	}
}
