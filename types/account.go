package types

import (
	"fmt"

	"github.com/colorfulnotion/zkwitness/common"
	"github.com/colorfulnotion/zkwitness/zkerrors"
	"github.com/holiman/uint256"
)

// Account is the ledger view of an account, as stored by the ledger.
type Account struct {
	Address    common.Address           `json:"address"`
	PubKeyHash PubKeyHash               `json:"pub_key_hash"`
	Nonce      Nonce                    `json:"nonce"`
	Balances   map[TokenID]*uint256.Int `json:"balances"`
}

func NewAccount(address common.Address) *Account {
	return &Account{
		Address:  address,
		Balances: make(map[TokenID]*uint256.Int),
	}
}

// GetBalance returns a copy of the token balance; missing tokens are zero.
func (a *Account) GetBalance(token TokenID) *uint256.Int {
	if b, ok := a.Balances[token]; ok && b != nil {
		return b.Clone()
	}
	return new(uint256.Int)
}

func (a *Account) SetBalance(token TokenID, amount *uint256.Int) {
	if a.Balances == nil {
		a.Balances = make(map[TokenID]*uint256.Int)
	}
	if amount.IsZero() {
		delete(a.Balances, token)
		return
	}
	a.Balances[token] = amount.Clone()
}

func (a *Account) AddBalance(token TokenID, amount *uint256.Int) {
	a.SetBalance(token, new(uint256.Int).Add(a.GetBalance(token), amount))
}

func (a *Account) SubBalance(token TokenID, amount *uint256.Int) error {
	cur := a.GetBalance(token)
	if cur.Lt(amount) {
		return fmt.Errorf("%w: token %d has %s, need %s", zkerrors.ErrLInsufficientBalance, token, cur.Dec(), amount.Dec())
	}
	a.SetBalance(token, new(uint256.Int).Sub(cur, amount))
	return nil
}

// HasBalance reports whether any token balance is non-zero.
func (a *Account) HasBalance() bool {
	for _, b := range a.Balances {
		if b != nil && !b.IsZero() {
			return true
		}
	}
	return false
}

func (a *Account) Clone() *Account {
	c := &Account{
		Address:    a.Address,
		PubKeyHash: a.PubKeyHash,
		Nonce:      a.Nonce,
		Balances:   make(map[TokenID]*uint256.Int, len(a.Balances)),
	}
	for t, b := range a.Balances {
		if b != nil {
			c.Balances[t] = b.Clone()
		}
	}
	return c
}

// CollectedFee is a fee taken by one operation, settled into the block's fee
// account once the whole block has been applied.
type CollectedFee struct {
	Token  TokenID      `json:"token"`
	Amount *uint256.Int `json:"amount"`
}
