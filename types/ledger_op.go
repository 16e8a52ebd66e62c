package types

import (
	"fmt"

	"github.com/colorfulnotion/zkwitness/common"
	"github.com/holiman/uint256"
)

// OpType is the circuit tx type code of a ledger operation.
type OpType uint8

const (
	OpNoop          OpType = 0
	OpDeposit       OpType = 1
	OpTransferToNew OpType = 2
	OpWithdraw      OpType = 3
	OpClose         OpType = 4
	OpTransfer      OpType = 5
	OpFullExit      OpType = 6
	OpChangePubKey  OpType = 7
)

func (t OpType) String() string {
	switch t {
	case OpNoop:
		return "Noop"
	case OpDeposit:
		return "Deposit"
	case OpTransferToNew:
		return "TransferToNew"
	case OpWithdraw:
		return "Withdraw"
	case OpClose:
		return "Close"
	case OpTransfer:
		return "Transfer"
	case OpFullExit:
		return "FullExit"
	case OpChangePubKey:
		return "ChangePubKey"
	default:
		return fmt.Sprintf("Unknown(%d)", t)
	}
}

// Chunks is the number of circuit slots an operation of this type occupies.
func (t OpType) Chunks() int {
	switch t {
	case OpDeposit, OpWithdraw, OpFullExit, OpChangePubKey:
		return 6
	case OpTransferToNew:
		return 5
	case OpTransfer:
		return 2
	case OpClose, OpNoop:
		return 1
	default:
		return 0
	}
}

// LedgerOp is one operation of a committed block. The set of implementations
// is closed: *DepositOp, *TransferOp, *TransferToNewOp, *WithdrawOp, *CloseOp,
// *FullExitOp, *ChangePubKeyOp and *NoopOp.
type LedgerOp interface {
	Type() OpType
	isLedgerOp()
}

// ChunksUsed sums the circuit slots taken by ops.
func ChunksUsed(ops []LedgerOp) int {
	n := 0
	for _, op := range ops {
		n += op.Type().Chunks()
	}
	return n
}

// TxSignature carries the signer's packed EdDSA public key and the packed
// signature (R || S) over the transaction bytes.
type TxSignature struct {
	PubKey    []byte `json:"pub_key"`
	Signature []byte `json:"signature"`
}

// amountBytes is the 16-byte big-endian wire form of an amount. v must fit
// in MaxAmountBits; CheckBounds rejects ops whose amounts do not.
func amountBytes(v *uint256.Int) []byte {
	if v == nil {
		return make([]byte, 16)
	}
	b := v.Bytes32()
	return b[16:]
}

// AmountBytes exposes the 16-byte amount encoding shared with public data.
func AmountBytes(v *uint256.Int) []byte {
	return amountBytes(v)
}

type Transfer struct {
	From      common.Address `json:"from"`
	To        common.Address `json:"to"`
	Token     TokenID        `json:"token"`
	Amount    *uint256.Int   `json:"amount"`
	Fee       *uint256.Int   `json:"fee"`
	Nonce     Nonce          `json:"nonce"`
	Signature TxSignature    `json:"signature"`
}

// Bytes is the signed message of the transfer.
func (tx *Transfer) Bytes() []byte {
	out := []byte{byte(OpTransfer)}
	out = append(out, tx.From.Bytes()...)
	out = append(out, tx.To.Bytes()...)
	out = append(out, common.Uint16ToBytes(uint16(tx.Token))...)
	out = append(out, amountBytes(tx.Amount)...)
	out = append(out, amountBytes(tx.Fee)...)
	out = append(out, common.Uint32ToBytes(uint32(tx.Nonce))...)
	return out
}

type Withdraw struct {
	Account    common.Address `json:"account"`
	EthAddress common.Address `json:"eth_address"`
	Token      TokenID        `json:"token"`
	Amount     *uint256.Int   `json:"amount"`
	Fee        *uint256.Int   `json:"fee"`
	Nonce      Nonce          `json:"nonce"`
	Signature  TxSignature    `json:"signature"`
}

func (tx *Withdraw) Bytes() []byte {
	out := []byte{byte(OpWithdraw)}
	out = append(out, tx.Account.Bytes()...)
	out = append(out, tx.EthAddress.Bytes()...)
	out = append(out, common.Uint16ToBytes(uint16(tx.Token))...)
	out = append(out, amountBytes(tx.Amount)...)
	out = append(out, amountBytes(tx.Fee)...)
	out = append(out, common.Uint32ToBytes(uint32(tx.Nonce))...)
	return out
}

type Close struct {
	Account   common.Address `json:"account"`
	Nonce     Nonce          `json:"nonce"`
	Signature TxSignature    `json:"signature"`
}

func (tx *Close) Bytes() []byte {
	out := []byte{byte(OpClose)}
	out = append(out, tx.Account.Bytes()...)
	out = append(out, common.Uint32ToBytes(uint32(tx.Nonce))...)
	return out
}

type ChangePubKey struct {
	Account       common.Address `json:"account"`
	NewPubKeyHash PubKeyHash     `json:"new_pub_key_hash"`
	Nonce         Nonce          `json:"nonce"`
}

// DepositOp credits an account from a priority (L1) request, creating the
// account if the id is not yet in use.
type DepositOp struct {
	AccountID AccountID      `json:"account_id"`
	Address   common.Address `json:"address"`
	Token     TokenID        `json:"token"`
	Amount    *uint256.Int   `json:"amount"`
}

type TransferOp struct {
	Tx   *Transfer `json:"tx"`
	From AccountID `json:"from"`
	To   AccountID `json:"to"`
}

// TransferToNewOp is a transfer whose recipient account is created by it.
type TransferToNewOp struct {
	Tx   *Transfer `json:"tx"`
	From AccountID `json:"from"`
	To   AccountID `json:"to"`
}

type WithdrawOp struct {
	Tx        *Withdraw `json:"tx"`
	AccountID AccountID `json:"account_id"`
}

type CloseOp struct {
	Tx        *Close    `json:"tx"`
	AccountID AccountID `json:"account_id"`
}

// FullExitOp is a priority exit of a whole token balance. WithdrawAmount is
// nil when the exit failed on the ledger side; the op still takes its slots.
type FullExitOp struct {
	AccountID      AccountID      `json:"account_id"`
	EthAddress     common.Address `json:"eth_address"`
	Token          TokenID        `json:"token"`
	WithdrawAmount *uint256.Int   `json:"withdraw_amount,omitempty"`
}

type ChangePubKeyOp struct {
	Tx        *ChangePubKey `json:"tx"`
	AccountID AccountID     `json:"account_id"`
}

// NoopOp fills unused block slots.
type NoopOp struct{}

func (*DepositOp) Type() OpType       { return OpDeposit }
func (*TransferOp) Type() OpType      { return OpTransfer }
func (*TransferToNewOp) Type() OpType { return OpTransferToNew }
func (*WithdrawOp) Type() OpType      { return OpWithdraw }
func (*CloseOp) Type() OpType         { return OpClose }
func (*FullExitOp) Type() OpType      { return OpFullExit }
func (*ChangePubKeyOp) Type() OpType  { return OpChangePubKey }
func (*NoopOp) Type() OpType          { return OpNoop }

func (*DepositOp) isLedgerOp()       {}
func (*TransferOp) isLedgerOp()      {}
func (*TransferToNewOp) isLedgerOp() {}
func (*WithdrawOp) isLedgerOp()      {}
func (*CloseOp) isLedgerOp()         {}
func (*FullExitOp) isLedgerOp()      {}
func (*ChangePubKeyOp) isLedgerOp()  {}
func (*NoopOp) isLedgerOp()          {}
