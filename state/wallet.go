package state

import (
	"bytes"

	"github.com/colorfulnotion/zkwitness/common"
	"github.com/colorfulnotion/zkwitness/types"
	"github.com/colorfulnotion/zkwitness/witness"
	"github.com/consensys/gnark-crypto/ecc/bn254/twistededwards/eddsa"
	"github.com/holiman/uint256"
)

// Wallet signs transactions for one account and tracks its nonce.
type Wallet struct {
	Key       *eddsa.PrivateKey
	AccountID types.AccountID
	Address   common.Address
	Nonce     types.Nonce
}

// NewWallet derives the signing key deterministically from seed.
func NewWallet(seed []byte, id types.AccountID, address common.Address) (*Wallet, error) {
	digest := common.Keccak256(seed)
	key, err := eddsa.GenerateKey(bytes.NewReader(digest.Bytes()))
	if err != nil {
		return nil, err
	}
	return &Wallet{Key: key, AccountID: id, Address: address}, nil
}

func (w *Wallet) PubKeyHash() types.PubKeyHash {
	return witness.PubKeyHash(w.Key.PublicKey.Bytes())
}

// Account returns an empty ledger account owned by this wallet's key.
func (w *Wallet) Account() *types.Account {
	acc := types.NewAccount(w.Address)
	acc.PubKeyHash = w.PubKeyHash()
	acc.Nonce = w.Nonce
	return acc
}

func (w *Wallet) Transfer(to types.AccountID, toAddress common.Address, token types.TokenID, amount, fee uint64) (*types.TransferOp, error) {
	tx := w.transferTx(toAddress, token, amount, fee)
	sig, err := witness.SignTx(w.Key, tx.Bytes())
	if err != nil {
		return nil, err
	}
	tx.Signature = sig
	w.Nonce++
	return &types.TransferOp{Tx: tx, From: w.AccountID, To: to}, nil
}

func (w *Wallet) TransferToNew(to types.AccountID, toAddress common.Address, token types.TokenID, amount, fee uint64) (*types.TransferToNewOp, error) {
	tx := w.transferTx(toAddress, token, amount, fee)
	sig, err := witness.SignTx(w.Key, tx.Bytes())
	if err != nil {
		return nil, err
	}
	tx.Signature = sig
	w.Nonce++
	return &types.TransferToNewOp{Tx: tx, From: w.AccountID, To: to}, nil
}

func (w *Wallet) transferTx(toAddress common.Address, token types.TokenID, amount, fee uint64) *types.Transfer {
	return &types.Transfer{
		From:   w.Address,
		To:     toAddress,
		Token:  token,
		Amount: uint256.NewInt(amount),
		Fee:    uint256.NewInt(fee),
		Nonce:  w.Nonce,
	}
}

func (w *Wallet) Withdraw(ethAddress common.Address, token types.TokenID, amount, fee uint64) (*types.WithdrawOp, error) {
	tx := &types.Withdraw{
		Account:    w.Address,
		EthAddress: ethAddress,
		Token:      token,
		Amount:     uint256.NewInt(amount),
		Fee:        uint256.NewInt(fee),
		Nonce:      w.Nonce,
	}
	sig, err := witness.SignTx(w.Key, tx.Bytes())
	if err != nil {
		return nil, err
	}
	tx.Signature = sig
	w.Nonce++
	return &types.WithdrawOp{Tx: tx, AccountID: w.AccountID}, nil
}

func (w *Wallet) Close() (*types.CloseOp, error) {
	tx := &types.Close{Account: w.Address, Nonce: w.Nonce}
	sig, err := witness.SignTx(w.Key, tx.Bytes())
	if err != nil {
		return nil, err
	}
	tx.Signature = sig
	w.Nonce++
	return &types.CloseOp{Tx: tx, AccountID: w.AccountID}, nil
}

// ChangePubKey rotates the account to the key of next. The wallet keeps
// its nonce and takes over next's key.
func (w *Wallet) ChangePubKey(next *eddsa.PrivateKey) *types.ChangePubKeyOp {
	tx := &types.ChangePubKey{
		Account:       w.Address,
		NewPubKeyHash: witness.PubKeyHash(next.PublicKey.Bytes()),
		Nonce:         w.Nonce,
	}
	w.Key = next
	w.Nonce++
	return &types.ChangePubKeyOp{Tx: tx, AccountID: w.AccountID}
}
