// Package state executes ledger operations on plain accounts. It is the
// ledger side of the replay engine: blocks it commits carry the roots that
// replaying them must reproduce.
package state

import (
	"fmt"

	"github.com/colorfulnotion/zkwitness/common"
	"github.com/colorfulnotion/zkwitness/log"
	"github.com/colorfulnotion/zkwitness/trie"
	"github.com/colorfulnotion/zkwitness/types"
	"github.com/colorfulnotion/zkwitness/witness"
	"github.com/colorfulnotion/zkwitness/zkerrors"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/holiman/uint256"
	"golang.org/x/exp/slices"
)

type State struct {
	block    types.BlockNumber
	accounts map[types.AccountID]*types.Account
	touched  map[types.AccountID]struct{}
}

func New(block types.BlockNumber, accounts map[types.AccountID]*types.Account) *State {
	s := &State{
		block:    block,
		accounts: make(map[types.AccountID]*types.Account, len(accounts)),
		touched:  make(map[types.AccountID]struct{}),
	}
	for id, acc := range accounts {
		s.accounts[id] = acc.Clone()
	}
	return s
}

func (s *State) Block() types.BlockNumber {
	return s.block
}

func (s *State) Account(id types.AccountID) (*types.Account, bool) {
	acc, ok := s.accounts[id]
	if !ok {
		return nil, false
	}
	return acc.Clone(), true
}

func (s *State) Accounts() map[types.AccountID]*types.Account {
	out := make(map[types.AccountID]*types.Account, len(s.accounts))
	for id, acc := range s.accounts {
		out[id] = acc.Clone()
	}
	return out
}

func (s *State) Clone() *State {
	c := New(s.block, s.accounts)
	for id := range s.touched {
		c.touched[id] = struct{}{}
	}
	return c
}

// RootHash is the account tree root of the current state.
func (s *State) RootHash() (fr.Element, error) {
	tree, err := trie.FromAccounts(types.AccountTreeDepth, s.accounts)
	if err != nil {
		return fr.Element{}, err
	}
	return tree.RootHash(), nil
}

// Diff returns the accounts touched since the last call, with nil for the
// ones that were deleted, and resets the tracking.
func (s *State) Diff() map[types.AccountID]*types.Account {
	diff := make(map[types.AccountID]*types.Account, len(s.touched))
	for id := range s.touched {
		if acc, ok := s.accounts[id]; ok {
			diff[id] = acc.Clone()
		} else {
			diff[id] = nil
		}
	}
	s.touched = make(map[types.AccountID]struct{})
	return diff
}

func (s *State) put(id types.AccountID, acc *types.Account) {
	s.accounts[id] = acc
	s.touched[id] = struct{}{}
}

func (s *State) remove(id types.AccountID) {
	delete(s.accounts, id)
	s.touched[id] = struct{}{}
}

func (s *State) existing(id types.AccountID) (*types.Account, error) {
	acc, ok := s.accounts[id]
	if !ok {
		return nil, fmt.Errorf("%w: account %d", zkerrors.ErrLUnknownAccount, id)
	}
	return acc.Clone(), nil
}

// Execute applies op and returns the fee it collected, if any. On error the
// state is left unchanged. A FullExitOp gets its WithdrawAmount filled in.
// Ops the circuit cannot hold are rejected before anything else is checked.
func (s *State) Execute(op types.LedgerOp) (*types.CollectedFee, error) {
	if err := types.CheckBounds(op); err != nil {
		return nil, err
	}
	switch o := op.(type) {
	case *types.DepositOp:
		return nil, s.deposit(o)
	case *types.TransferOp:
		return s.transfer(o)
	case *types.TransferToNewOp:
		return s.transferToNew(o)
	case *types.WithdrawOp:
		return s.withdraw(o)
	case *types.CloseOp:
		return nil, s.closeAccount(o)
	case *types.FullExitOp:
		s.fullExit(o)
		return nil, nil
	case *types.ChangePubKeyOp:
		return nil, s.changePubKey(o)
	case *types.NoopOp:
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported ledger op %T", op)
	}
}

func checkNonce(acc *types.Account, nonce types.Nonce) error {
	if acc.Nonce != nonce {
		return fmt.Errorf("%w: account nonce %d, tx nonce %d", zkerrors.ErrLNonceMismatch, acc.Nonce, nonce)
	}
	return nil
}

// checkSignature verifies sig over txBytes and that it was made with the
// key the account committed to.
func checkSignature(acc *types.Account, sig *types.TxSignature, txBytes []byte) error {
	ok, err := witness.VerifyTxSignature(sig, txBytes)
	if err != nil {
		return fmt.Errorf("%w: %v", zkerrors.ErrLInvalidSignature, err)
	}
	if !ok {
		return fmt.Errorf("%w: signature does not verify", zkerrors.ErrLInvalidSignature)
	}
	if witness.PubKeyHash(sig.PubKey) != acc.PubKeyHash {
		return fmt.Errorf("%w: signer is not the account key %s", zkerrors.ErrLInvalidSignature, acc.PubKeyHash.Hex())
	}
	return nil
}

func orZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v
}

// credit adds amount to a token balance. Balances wider than
// types.MaxAmountBits are refused and acc is left as it was.
func credit(acc *types.Account, token types.TokenID, amount *uint256.Int) error {
	sum := new(uint256.Int).Add(acc.GetBalance(token), orZero(amount))
	if err := types.CheckAmount(fmt.Sprintf("token %d balance", token), sum); err != nil {
		return err
	}
	acc.SetBalance(token, sum)
	return nil
}

func (s *State) deposit(o *types.DepositOp) error {
	acc, ok := s.accounts[o.AccountID]
	if ok {
		acc = acc.Clone()
	} else {
		acc = types.NewAccount(o.Address)
	}
	if err := credit(acc, o.Token, o.Amount); err != nil {
		return err
	}
	s.put(o.AccountID, acc)
	return nil
}

// debitSigned validates and applies the sender side of a signed transfer
// or withdrawal. The returned account is not yet stored.
func (s *State) debitSigned(id types.AccountID, sig *types.TxSignature, txBytes []byte, nonce types.Nonce, token types.TokenID, amount, fee *uint256.Int) (*types.Account, error) {
	acc, err := s.existing(id)
	if err != nil {
		return nil, err
	}
	if err := checkNonce(acc, nonce); err != nil {
		return nil, err
	}
	if err := checkSignature(acc, sig, txBytes); err != nil {
		return nil, err
	}
	total, overflow := new(uint256.Int).AddOverflow(orZero(amount), orZero(fee))
	if overflow {
		return nil, fmt.Errorf("%w: amount plus fee overflows", zkerrors.ErrLInsufficientBalance)
	}
	if err := acc.SubBalance(token, total); err != nil {
		return nil, err
	}
	acc.Nonce++
	return acc, nil
}

func (s *State) transfer(o *types.TransferOp) (*types.CollectedFee, error) {
	tx := o.Tx
	if _, err := s.existing(o.To); err != nil {
		return nil, err
	}
	from, err := s.debitSigned(o.From, &tx.Signature, tx.Bytes(), tx.Nonce, tx.Token, tx.Amount, tx.Fee)
	if err != nil {
		return nil, err
	}
	to := from
	if o.To != o.From {
		to, _ = s.existing(o.To)
	}
	if err := credit(to, tx.Token, tx.Amount); err != nil {
		return nil, err
	}
	s.put(o.From, from)
	s.put(o.To, to)
	return &types.CollectedFee{Token: tx.Token, Amount: orZero(tx.Fee).Clone()}, nil
}

func (s *State) transferToNew(o *types.TransferToNewOp) (*types.CollectedFee, error) {
	tx := o.Tx
	if _, ok := s.accounts[o.To]; ok {
		return nil, fmt.Errorf("%w: account %d", zkerrors.ErrLAccountExists, o.To)
	}
	from, err := s.debitSigned(o.From, &tx.Signature, tx.Bytes(), tx.Nonce, tx.Token, tx.Amount, tx.Fee)
	if err != nil {
		return nil, err
	}
	to := types.NewAccount(tx.To)
	if err := credit(to, tx.Token, tx.Amount); err != nil {
		return nil, err
	}
	s.put(o.From, from)
	s.put(o.To, to)
	return &types.CollectedFee{Token: tx.Token, Amount: orZero(tx.Fee).Clone()}, nil
}

func (s *State) withdraw(o *types.WithdrawOp) (*types.CollectedFee, error) {
	tx := o.Tx
	acc, err := s.debitSigned(o.AccountID, &tx.Signature, tx.Bytes(), tx.Nonce, tx.Token, tx.Amount, tx.Fee)
	if err != nil {
		return nil, err
	}
	s.put(o.AccountID, acc)
	return &types.CollectedFee{Token: tx.Token, Amount: orZero(tx.Fee).Clone()}, nil
}

func (s *State) closeAccount(o *types.CloseOp) error {
	acc, err := s.existing(o.AccountID)
	if err != nil {
		return err
	}
	if err := checkNonce(acc, o.Tx.Nonce); err != nil {
		return err
	}
	if err := checkSignature(acc, &o.Tx.Signature, o.Tx.Bytes()); err != nil {
		return err
	}
	if acc.HasBalance() {
		return fmt.Errorf("%w: account %d", zkerrors.ErrLNonEmptyClose, o.AccountID)
	}
	s.remove(o.AccountID)
	return nil
}

// fullExit succeeds when the account exists and belongs to the exiting
// address; the whole token balance is withdrawn.
func (s *State) fullExit(o *types.FullExitOp) {
	o.WithdrawAmount = nil
	acc, err := s.existing(o.AccountID)
	if err != nil || acc.Address != o.EthAddress {
		log.Debug(log.StateMonitoring, "full exit failed", "account", o.AccountID, "token", o.Token)
		return
	}
	o.WithdrawAmount = acc.GetBalance(o.Token)
	acc.SetBalance(o.Token, new(uint256.Int))
	s.put(o.AccountID, acc)
}

func (s *State) changePubKey(o *types.ChangePubKeyOp) error {
	acc, err := s.existing(o.AccountID)
	if err != nil {
		return err
	}
	if err := checkNonce(acc, o.Tx.Nonce); err != nil {
		return err
	}
	acc.PubKeyHash = o.Tx.NewPubKeyHash
	acc.Nonce++
	s.put(o.AccountID, acc)
	return nil
}

// SettleFees credits collected fees to the fee account in ascending token
// order. The account is created if it does not exist and any fee is
// non-zero. Nothing is credited if a resulting balance would not fit.
func (s *State) SettleFees(feeAccount types.AccountID, fees []types.CollectedFee) error {
	if err := types.CheckAccountID(feeAccount); err != nil {
		return err
	}
	totals := make(map[types.TokenID]*uint256.Int)
	for _, f := range fees {
		sum, ok := totals[f.Token]
		if !ok {
			sum = new(uint256.Int)
			totals[f.Token] = sum
		}
		sum.Add(sum, orZero(f.Amount))
	}
	tokens := make([]types.TokenID, 0, len(totals))
	nonZero := false
	for t, v := range totals {
		tokens = append(tokens, t)
		nonZero = nonZero || !v.IsZero()
	}
	if !nonZero {
		return nil
	}
	slices.Sort(tokens)

	acc, ok := s.accounts[feeAccount]
	if ok {
		acc = acc.Clone()
	} else {
		acc = types.NewAccount(common.Address{})
	}
	for _, t := range tokens {
		if err := types.CheckToken(t); err != nil {
			return err
		}
		if err := credit(acc, t, totals[t]); err != nil {
			return fmt.Errorf("fee account %d: %w", feeAccount, err)
		}
	}
	s.put(feeAccount, acc)
	return nil
}
