package types

import (
	"fmt"

	"github.com/colorfulnotion/zkwitness/zkerrors"
	"github.com/holiman/uint256"
)

func CheckAccountID(id AccountID) error {
	if id > MaxAccountID() {
		return fmt.Errorf("%w: account id %d exceeds tree capacity", zkerrors.ErrLUnknownAccount, id)
	}
	return nil
}

func CheckToken(token TokenID) error {
	if int(token) >= TotalTokens() {
		return fmt.Errorf("%w: token %d, balance tree holds %d", zkerrors.ErrLTokenOutOfRange, token, TotalTokens())
	}
	return nil
}

// CheckAmount rejects values wider than MaxAmountBits. A nil value is zero.
func CheckAmount(what string, v *uint256.Int) error {
	if v != nil && v.BitLen() > MaxAmountBits {
		return fmt.Errorf("%w: %s %s is %d bits", zkerrors.ErrLAmountTooWide, what, v.Hex(), v.BitLen())
	}
	return nil
}

// CheckBalances reports the first balance of a that the balance tree cannot
// hold.
func CheckBalances(a *Account) error {
	for token, bal := range a.Balances {
		if bal == nil || bal.IsZero() {
			continue
		}
		if err := CheckToken(token); err != nil {
			return err
		}
		if err := CheckAmount(fmt.Sprintf("token %d balance", token), bal); err != nil {
			return err
		}
	}
	return nil
}

// CheckBounds reports the first field of op that does not fit the circuit:
// account ids outside the account tree, tokens outside the balance tree and
// amounts or fees wider than MaxAmountBits.
func CheckBounds(op LedgerOp) error {
	switch o := op.(type) {
	case *DepositOp:
		return firstError(CheckAccountID(o.AccountID), CheckToken(o.Token), CheckAmount("amount", o.Amount))
	case *TransferOp:
		if o.Tx == nil {
			return missingTx(op)
		}
		return firstError(CheckAccountID(o.From), CheckAccountID(o.To), checkTransfer(o.Tx))
	case *TransferToNewOp:
		if o.Tx == nil {
			return missingTx(op)
		}
		return firstError(CheckAccountID(o.From), CheckAccountID(o.To), checkTransfer(o.Tx))
	case *WithdrawOp:
		if o.Tx == nil {
			return missingTx(op)
		}
		return firstError(CheckAccountID(o.AccountID), CheckToken(o.Tx.Token),
			CheckAmount("amount", o.Tx.Amount), CheckAmount("fee", o.Tx.Fee))
	case *CloseOp:
		if o.Tx == nil {
			return missingTx(op)
		}
		return CheckAccountID(o.AccountID)
	case *FullExitOp:
		return firstError(CheckAccountID(o.AccountID), CheckToken(o.Token), CheckAmount("withdraw amount", o.WithdrawAmount))
	case *ChangePubKeyOp:
		if o.Tx == nil {
			return missingTx(op)
		}
		return CheckAccountID(o.AccountID)
	case *NoopOp:
		return nil
	default:
		return fmt.Errorf("unsupported ledger op %T", op)
	}
}

func checkTransfer(tx *Transfer) error {
	return firstError(CheckToken(tx.Token), CheckAmount("amount", tx.Amount), CheckAmount("fee", tx.Fee))
}

func missingTx(op LedgerOp) error {
	return fmt.Errorf("%w: %s op without its transaction", zkerrors.ErrSCodec, op.Type())
}

func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
