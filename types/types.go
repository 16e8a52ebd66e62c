package types

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

type BlockNumber uint32

type AccountID uint32

type TokenID uint16

type Nonce uint32

// PubKeyHash is the 20-byte commitment to an account's signing key.
type PubKeyHash [20]byte

func (p PubKeyHash) Hex() string {
	return "sync:" + hex.EncodeToString(p[:])
}

func (p PubKeyHash) IsZero() bool {
	return p == PubKeyHash{}
}

func (p PubKeyHash) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Hex())
}

func (p *PubKeyHash) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	s = strings.TrimPrefix(s, "sync:")
	b, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	if len(b) != len(p) {
		return fmt.Errorf("pub key hash: want %d bytes, got %d", len(p), len(b))
	}
	copy(p[:], b)
	return nil
}
