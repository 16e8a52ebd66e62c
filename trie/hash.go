package trie

import (
	"hash"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
	"github.com/holiman/uint256"
)

// hashElements hashes field elements with MiMC over the bn254 scalar field,
// the same hash the circuit uses for the account tree.
func hashElements(elems ...*fr.Element) fr.Element {
	var h hash.Hash = mimc.NewMiMC()
	for _, e := range elems {
		b := e.Bytes()
		h.Write(b[:])
	}
	var out fr.Element
	out.SetBytes(h.Sum(nil))
	return out
}

// computeNode hashes two children into their parent.
func computeNode(left, right *fr.Element) fr.Element {
	return hashElements(left, right)
}

// HashElements exposes the tree hash for witness code that needs to recompute
// nodes (account leaves, audit path checks).
func HashElements(elems ...*fr.Element) fr.Element {
	return hashElements(elems...)
}

func FrFromUint64(v uint64) fr.Element {
	var e fr.Element
	e.SetUint64(v)
	return e
}

// FrFromBytes interprets b as a big-endian integer reduced into the field.
func FrFromBytes(b []byte) fr.Element {
	var e fr.Element
	e.SetBytes(b)
	return e
}

func FrFromUint256(v *uint256.Int) fr.Element {
	if v == nil {
		return fr.Element{}
	}
	b := v.Bytes32()
	return FrFromBytes(b[:])
}
