package types

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// Block is the header of a committed block as recorded by the ledger.
type Block struct {
	BlockNumber BlockNumber `json:"block_number"`
	// NewRootHash is the account tree root the chain committed to after
	// this block, fees included.
	NewRootHash fr.Element `json:"new_root_hash"`
	FeeAccount  AccountID  `json:"fee_account"`
	// BlockSize is the declared capacity in chunks; one of the size classes.
	BlockSize  int `json:"block_size"`
	ChunksUsed int `json:"chunks_used"`
}

func (b *Block) String() string {
	return fmt.Sprintf("block{#%d size=%d used=%d fee_account=%d root=%s}",
		b.BlockNumber, b.BlockSize, b.ChunksUsed, b.FeeAccount, b.NewRootHash.String())
}

type ActionType uint8

const (
	ActionCommit ActionType = iota
	ActionVerify
)

func (a ActionType) String() string {
	switch a {
	case ActionCommit:
		return "Commit"
	case ActionVerify:
		return "Verify"
	default:
		return fmt.Sprintf("Unknown(%d)", a)
	}
}

type Action struct {
	Type  ActionType `json:"type"`
	Proof []byte     `json:"proof,omitempty"`
}

// Operation is a ledger action on a block. Commit operations not yet followed
// by a Verify are what the prover pool consumes.
type Operation struct {
	ID     int64  `json:"id"`
	Action Action `json:"action"`
	Block  Block  `json:"block"`
}
