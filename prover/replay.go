package prover

import (
	"context"
	"fmt"

	"github.com/colorfulnotion/zkwitness/log"
	"github.com/colorfulnotion/zkwitness/storage"
	"github.com/colorfulnotion/zkwitness/trie"
	"github.com/colorfulnotion/zkwitness/types"
	"github.com/colorfulnotion/zkwitness/witness"
	"github.com/colorfulnotion/zkwitness/zkerrors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/colorfulnotion/zkwitness/prover")

// BuildProverData replays a committed block on top of the state committed
// just before it and returns the circuit input for it.
//
// Storage and signature failures are returned, as are stored accounts and
// operations the circuit cannot hold (ids, tokens or amounts out of range).
// A witness of the wrong shape
// or a replayed root that differs from the committed one panics with an
// *InvariantViolation.
func BuildProverData(ctx context.Context, ledger storage.Ledger, commit *types.Operation) (pd *ProverData, err error) {
	block := commit.Block.BlockNumber
	blockSize := commit.Block.BlockSize

	_, span := tracer.Start(ctx, "BuildProverData", trace.WithAttributes(
		attribute.Int64("block", int64(block)),
		attribute.Int("block_size", blockSize),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	log.Info(log.ReplayMonitoring, "building prover data", "block", block, "size", blockSize)

	var prev types.BlockNumber
	if block > 0 {
		prev = block - 1
	}
	_, accounts, err := ledger.LoadCommittedState(&prev)
	if err != nil {
		return nil, fmt.Errorf("failed to load committed state: %w", err)
	}
	if err := types.CheckAccountID(commit.Block.FeeAccount); err != nil {
		return nil, fmt.Errorf("%w: block %d fee account: %v", zkerrors.ErrRUnrepresentable, block, err)
	}
	tree, err := trie.FromAccounts(types.AccountTreeDepth, accounts)
	if err != nil {
		return nil, fmt.Errorf("%w: state before block %d: %v", zkerrors.ErrRUnrepresentable, block, err)
	}

	accum := witness.NewWitnessBuilder(tree, commit.Block.FeeAccount, block)
	initialRoot := accum.InitialRoot()

	ops, err := ledger.GetBlockOperations(block)
	if err != nil {
		return nil, fmt.Errorf("failed to get block operations: %w", err)
	}

	var operations []witness.Operation
	var pubdata []byte
	var fees []types.CollectedFee
	for i, op := range ops {
		if err := types.CheckBounds(op); err != nil {
			return nil, fmt.Errorf("%w: block %d op %d (%s): %v", zkerrors.ErrRUnrepresentable, block, i, op.Type(), err)
		}
		var w *witness.OpWitness
		var sig *witness.TxSignatureWitness
		switch o := op.(type) {
		case *types.DepositOp:
			w = witness.ApplyDepositTx(tree, o)
		case *types.TransferOp:
			w = witness.ApplyTransferTx(tree, o)
			sig, err = signatureWitness(&o.Tx.Signature, o.Tx.Bytes())
			fees = append(fees, types.CollectedFee{Token: o.Tx.Token, Amount: o.Tx.Fee})
		case *types.TransferToNewOp:
			w = witness.ApplyTransferToNewTx(tree, o)
			sig, err = signatureWitness(&o.Tx.Signature, o.Tx.Bytes())
			fees = append(fees, types.CollectedFee{Token: o.Tx.Token, Amount: o.Tx.Fee})
		case *types.WithdrawOp:
			w = witness.ApplyWithdrawTx(tree, o)
			sig, err = signatureWitness(&o.Tx.Signature, o.Tx.Bytes())
			fees = append(fees, types.CollectedFee{Token: o.Tx.Token, Amount: o.Tx.Fee})
		case *types.CloseOp:
			w = witness.ApplyCloseAccountTx(tree, o)
			sig, err = signatureWitness(&o.Tx.Signature, o.Tx.Bytes())
		case *types.FullExitOp:
			w = witness.ApplyFullExitTx(tree, o, o.WithdrawAmount != nil)
		case *types.ChangePubKeyOp:
			w = witness.ApplyChangePubKeyTx(tree, o)
		case *types.NoopOp:
			// filler, padded below
			continue
		default:
			return nil, fmt.Errorf("block %d op %d: unsupported ledger op %T", block, i, op)
		}
		if err != nil {
			return nil, fmt.Errorf("block %d op %d (%s): %w", block, i, op.Type(), err)
		}
		operations = append(operations, w.CalculateOperations(sig)...)
		pubdata = append(pubdata, w.Pubdata...)
	}

	accum.AddOperationWithPubdata(operations, pubdata)
	accum.ExtendPubdataWithNoops(blockSize)
	if len(accum.Pubdata) != types.ChunkBytes*blockSize {
		panic(&InvariantViolation{Block: block, Err: zkerrors.ErrIPubdataLength,
			Detail: fmt.Sprintf("pubdata is %d bytes, want %d", len(accum.Pubdata), types.ChunkBytes*blockSize)})
	}
	if len(accum.Operations) != blockSize {
		panic(&InvariantViolation{Block: block, Err: zkerrors.ErrIOperationsLength,
			Detail: fmt.Sprintf("%d operations, want %d", len(accum.Operations), blockSize)})
	}

	accum.CollectFees(fees)
	if !accum.RootAfterFees.Equal(&commit.Block.NewRootHash) {
		panic(&InvariantViolation{Block: block, Err: zkerrors.ErrIRootMismatch,
			Detail: fmt.Sprintf("replayed %s, committed %s", accum.RootAfterFees.String(), commit.Block.NewRootHash.String())})
	}
	accum.CalculatePubdataCommitment()

	return &ProverData{
		PublicDataCommitment: *accum.PubdataCommitment,
		OldRoot:              initialRoot,
		NewRoot:              commit.Block.NewRootHash,
		ValidatorAddress:     trie.FrFromUint64(uint64(commit.Block.FeeAccount)),
		Operations:           accum.Operations,
		ValidatorBalances:    accum.FeeAccountBalances,
		ValidatorAuditPath:   accum.FeeAccountAuditPath,
		ValidatorAccount:     *accum.FeeAccountWitness,
	}, nil
}

// signatureWitness packs a transaction signature and derives the circuit
// signature data for it.
func signatureWitness(sig *types.TxSignature, txBytes []byte) (*witness.TxSignatureWitness, error) {
	packed, err := witness.PackSignature(sig)
	if err != nil {
		return nil, fmt.Errorf("failed to pack transaction signature: %w", err)
	}
	return witness.PrepareSigData(packed, txBytes, sig.PubKey)
}
