package common

import (
	"encoding/binary"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

// ComputeHash computes the BLAKE2b hash of the given data
func ComputeHash(data []byte) []byte {
	hash := blake2b.Sum256(data)
	return hash[:]
}

func Blake2Hash(data []byte) Hash {
	return BytesToHash(ComputeHash(data))
}

// Keccak256 hashes the concatenation of all inputs.
func Keccak256(data ...[]byte) Hash {
	hash := sha3.NewLegacyKeccak256()
	for _, d := range data {
		hash.Write(d)
	}
	return BytesToHash(hash.Sum(nil))
}

// Big-endian helpers. Everything that ends up in public data or in a
// signed message is encoded big-endian.

func Uint32ToBytes(val uint32) []byte {
	bytes := make([]byte, 4)
	binary.BigEndian.PutUint32(bytes, val)
	return bytes
}

func Uint16ToBytes(value uint16) []byte {
	bytes := make([]byte, 2)
	binary.BigEndian.PutUint16(bytes, value)
	return bytes
}

func BytesToUint32(data []byte) uint32 {
	if len(data) < 4 {
		panic("BytesToUint32: byte slice too short")
	}
	return binary.BigEndian.Uint32(data)
}

// Uint24ToBytes writes the low 3 bytes of val. Account ids are 24-bit on the wire.
func Uint24ToBytes(val uint32) []byte {
	return []byte{byte(val >> 16), byte(val >> 8), byte(val)}
}

// PadToMultipleOfN right-pads input with zeros up to a multiple of n.
func PadToMultipleOfN(input []byte, n int) []byte {
	if n <= 0 {
		return input
	}
	paddingSize := (n - (len(input) % n)) % n
	if paddingSize == 0 {
		return input
	}
	padded := make([]byte, len(input)+paddingSize)
	copy(padded, input)
	return padded
}

// BytesToBitsBE expands bytes into bits, most significant bit first.
func BytesToBitsBE(data []byte) []bool {
	bits := make([]bool, 0, len(data)*8)
	for _, b := range data {
		for i := 7; i >= 0; i-- {
			bits = append(bits, (b>>uint(i))&1 == 1)
		}
	}
	return bits
}
