package witness

import (
	"fmt"

	"github.com/colorfulnotion/zkwitness/common"
	"github.com/colorfulnotion/zkwitness/trie"
	"github.com/colorfulnotion/zkwitness/types"
	"github.com/colorfulnotion/zkwitness/zkerrors"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
	"github.com/consensys/gnark-crypto/ecc/bn254/twistededwards/eddsa"
)

const (
	PackedPubKeyBytes    = 32
	PackedSignatureBytes = 64
)

// TxSignatureWitness is what the circuit needs to check a transaction
// signature: the message split into field elements, the signature bits and
// the signer's packed key bits.
type TxSignatureWitness struct {
	FirstSigMsg        fr.Element
	SecondSigMsg       fr.Element
	ThirdSigMsg        fr.Element
	Signature          SignatureData
	SignerPubKeyPacked []bool
}

// PackSignature parses a transaction signature and returns it in packed
// R || S form.
func PackSignature(sig *types.TxSignature) ([]byte, error) {
	var s eddsa.Signature
	if _, err := s.SetBytes(sig.Signature); err != nil {
		return nil, fmt.Errorf("%w: %v", zkerrors.ErrGSignaturePack, err)
	}
	return s.Bytes(), nil
}

// SignedMessage maps transaction bytes to the field element that is signed.
func SignedMessage(txBytes []byte) fr.Element {
	digest := common.Keccak256(txBytes)
	return trie.FrFromBytes(digest.Bytes())
}

// PrepareSigData derives the circuit signature witness from a packed
// signature, the transaction bytes and the signer's packed public key.
func PrepareSigData(packedSig, txBytes, pubKey []byte) (*TxSignatureWitness, error) {
	if len(packedSig) != PackedSignatureBytes {
		return nil, fmt.Errorf("%w: packed signature is %d bytes", zkerrors.ErrGSignatureData, len(packedSig))
	}
	var pk eddsa.PublicKey
	if _, err := pk.SetBytes(pubKey); err != nil {
		return nil, fmt.Errorf("%w: signer key: %v", zkerrors.ErrGSignatureData, err)
	}
	digest := common.Keccak256(txBytes).Bytes()
	return &TxSignatureWitness{
		FirstSigMsg:  trie.FrFromBytes(digest[:16]),
		SecondSigMsg: trie.FrFromBytes(digest[16:]),
		ThirdSigMsg:  SignedMessage(txBytes),
		Signature: SignatureData{
			RPacked: common.BytesToBitsBE(packedSig[:32]),
			S:       common.BytesToBitsBE(packedSig[32:]),
		},
		SignerPubKeyPacked: common.BytesToBitsBE(pk.Bytes()),
	}, nil
}

// SignTx signs txBytes with key and returns the signature as carried by a
// ledger transaction.
func SignTx(key *eddsa.PrivateKey, txBytes []byte) (types.TxSignature, error) {
	msg := SignedMessage(txBytes)
	b := msg.Bytes()
	sig, err := key.Sign(b[:], mimc.NewMiMC())
	if err != nil {
		return types.TxSignature{}, err
	}
	return types.TxSignature{PubKey: key.PublicKey.Bytes(), Signature: sig}, nil
}

// VerifyTxSignature checks sig over txBytes.
func VerifyTxSignature(sig *types.TxSignature, txBytes []byte) (bool, error) {
	var pk eddsa.PublicKey
	if _, err := pk.SetBytes(sig.PubKey); err != nil {
		return false, err
	}
	msg := SignedMessage(txBytes)
	b := msg.Bytes()
	return pk.Verify(sig.Signature, b[:], mimc.NewMiMC())
}

// PubKeyHash is the account-level commitment to a packed signing key.
func PubKeyHash(packedPubKey []byte) types.PubKeyHash {
	var h types.PubKeyHash
	digest := common.Keccak256(packedPubKey)
	copy(h[:], digest.Bytes()[12:])
	return h
}
