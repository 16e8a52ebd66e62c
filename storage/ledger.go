package storage

import (
	"github.com/colorfulnotion/zkwitness/types"
)

// Ledger is the read side of the chain storage that the prover pool and
// the replay engine depend on.
type Ledger interface {
	// LoadUnverifiedCommitsAfterBlock returns committed but not yet verified
	// blocks of the given size with numbers strictly greater than after,
	// ascending, at most limit of them.
	LoadUnverifiedCommitsAfterBlock(blockSize int, after types.BlockNumber, limit int) ([]*types.Operation, error)

	// LoadCommittedState returns the full account snapshot as of block at,
	// together with the block the snapshot belongs to. A nil at means genesis.
	LoadCommittedState(at *types.BlockNumber) (types.BlockNumber, map[types.AccountID]*types.Account, error)

	// GetBlockOperations returns the ordered ledger operations of a block.
	GetBlockOperations(block types.BlockNumber) ([]types.LedgerOp, error)
}
