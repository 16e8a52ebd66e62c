package prover

import (
	"fmt"

	"github.com/colorfulnotion/zkwitness/common"
	"github.com/colorfulnotion/zkwitness/types"
	"github.com/colorfulnotion/zkwitness/witness"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// ProverData is the complete input of the block circuit.
type ProverData struct {
	PublicDataCommitment fr.Element             `json:"public_data_commitment"`
	OldRoot              fr.Element             `json:"old_root"`
	NewRoot              fr.Element             `json:"new_root"`
	ValidatorAddress     fr.Element             `json:"validator_address"`
	Operations           []witness.Operation    `json:"operations"`
	ValidatorBalances    []fr.Element           `json:"validator_balances"`
	ValidatorAuditPath   []fr.Element           `json:"validator_audit_path"`
	ValidatorAccount     witness.AccountWitness `json:"validator_account"`
}

// Pubdata reassembles the padded public data from the operation chunks.
func (pd *ProverData) Pubdata() []byte {
	out := make([]byte, 0, len(pd.Operations)*types.ChunkBytes)
	for _, op := range pd.Operations {
		out = append(out, op.PubdataChunk...)
	}
	return out
}

// PubdataDigest is a BLAKE2b digest of the padded public data, used to
// compare builds in logs.
func (pd *ProverData) PubdataDigest() common.Hash {
	return common.Blake2Hash(pd.Pubdata())
}

func (pd *ProverData) String() string {
	return fmt.Sprintf("prover_data{ops=%d old_root=%s new_root=%s commitment=%s}",
		len(pd.Operations), pd.OldRoot.String(), pd.NewRoot.String(), pd.PublicDataCommitment.String())
}

// InvariantViolation is the panic value raised when a replay produces a
// witness that must not reach a prover.
type InvariantViolation struct {
	Block  types.BlockNumber
	Err    error
	Detail string
}

func (v *InvariantViolation) Error() string {
	return fmt.Sprintf("block %d: %v (%s)", v.Block, v.Err, v.Detail)
}

func (v *InvariantViolation) Unwrap() error {
	return v.Err
}
