package types

// Circuit parameters. These are fixed by the circuit, not by configuration:
// changing any of them changes the shape of every witness.
const (
	// ChunkBytes is the width of one public data slot. Every circuit
	// operation consumes exactly one chunk.
	ChunkBytes = 64

	AccountTreeDepth = 24
	BalanceTreeDepth = 5

	// MaxAmountBits is the width of amounts, fees and balances in public
	// data and signed messages.
	MaxAmountBits = 128

	// MaxBlockChunkSize bounds the configurable block size classes.
	MaxBlockChunkSize = 1024
)

// DefaultBlockChunkSizes are the supported block size classes, in chunks.
var DefaultBlockChunkSizes = []int{10, 32, 72}

// TotalTokens is the number of token slots in an account's balance subtree.
func TotalTokens() int {
	return 1 << BalanceTreeDepth
}

// MaxAccountID is the last addressable leaf of the account tree.
func MaxAccountID() AccountID {
	return AccountID(1<<AccountTreeDepth - 1)
}

// SmallestBlockSize returns the smallest size class that fits chunks.
func SmallestBlockSize(chunks int, sizes []int) (int, bool) {
	best := 0
	for _, s := range sizes {
		if s >= chunks && (best == 0 || s < best) {
			best = s
		}
	}
	return best, best != 0
}
