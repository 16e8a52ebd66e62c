package types

import (
	"encoding/json"
	"fmt"

	"github.com/colorfulnotion/zkwitness/zkerrors"
)

// opEnvelope is the stored form of a LedgerOp: the type code selects the
// concrete struct the payload decodes into.
type opEnvelope struct {
	Type OpType          `json:"type"`
	Op   json.RawMessage `json:"op"`
}

func EncodeLedgerOps(ops []LedgerOp) ([]byte, error) {
	envs := make([]opEnvelope, 0, len(ops))
	for i, op := range ops {
		payload, err := json.Marshal(op)
		if err != nil {
			return nil, fmt.Errorf("%w: op %d (%s): %v", zkerrors.ErrSCodec, i, op.Type(), err)
		}
		envs = append(envs, opEnvelope{Type: op.Type(), Op: payload})
	}
	return json.Marshal(envs)
}

func DecodeLedgerOps(data []byte) ([]LedgerOp, error) {
	var envs []opEnvelope
	if err := json.Unmarshal(data, &envs); err != nil {
		return nil, fmt.Errorf("%w: %v", zkerrors.ErrSCodec, err)
	}
	ops := make([]LedgerOp, 0, len(envs))
	for i, env := range envs {
		op, err := newLedgerOp(env.Type)
		if err != nil {
			return nil, fmt.Errorf("op %d: %w", i, err)
		}
		if err := json.Unmarshal(env.Op, op); err != nil {
			return nil, fmt.Errorf("%w: op %d (%s): %v", zkerrors.ErrSCodec, i, env.Type, err)
		}
		ops = append(ops, op)
	}
	return ops, nil
}

func newLedgerOp(t OpType) (LedgerOp, error) {
	switch t {
	case OpNoop:
		return &NoopOp{}, nil
	case OpDeposit:
		return &DepositOp{}, nil
	case OpTransferToNew:
		return &TransferToNewOp{}, nil
	case OpWithdraw:
		return &WithdrawOp{}, nil
	case OpClose:
		return &CloseOp{}, nil
	case OpTransfer:
		return &TransferOp{}, nil
	case OpFullExit:
		return &FullExitOp{}, nil
	case OpChangePubKey:
		return &ChangePubKeyOp{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown ledger op type %d", zkerrors.ErrSCodec, t)
	}
}
