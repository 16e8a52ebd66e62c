package zkerrors

import (
	"errors"
	"strings"
)

// Storage (S) Errors
var (
	ErrSStorageRead  = errors.New("S1|StorageRead: Failed to read from the ledger storage.")
	ErrSStorageWrite = errors.New("S2|StorageWrite: Failed to write to the ledger storage.")
	ErrSCodec        = errors.New("S3|Codec: Stored record could not be encoded or decoded.")
)

// Signature (G) Errors
var (
	ErrGSignaturePack = errors.New("G1|SignaturePack: Transaction signature could not be packed.")
	ErrGSignatureData = errors.New("G2|SignatureData: Signature witness data could not be prepared.")
)

// Invariant (I) Errors. These are never returned to a caller: the replay engine
// panics with them, since a malformed witness must not reach a prover.
var (
	ErrIPubdataLength    = errors.New("I1|PubdataLength: Padded public data length does not match the block size.")
	ErrIOperationsLength = errors.New("I2|OperationsLength: Padded operation count does not match the block size.")
	ErrIRootMismatch     = errors.New("I3|RootMismatch: Replayed root does not match the committed root.")
)

// Replay (R) Errors
var (
	ErrRUnrepresentable = errors.New("R1|Unrepresentable: Stored ledger data does not fit the circuit.")
)

// Config (C) Errors
var (
	ErrCInvalidConfig = errors.New("C1|InvalidConfig: Configuration is not valid.")
)

// Ledger (L) Errors, raised by the state keeper while executing operations.
var (
	ErrLInsufficientBalance = errors.New("L1|InsufficientBalance: Account balance is too low for the operation.")
	ErrLNonceMismatch       = errors.New("L2|NonceMismatch: Transaction nonce does not match the account nonce.")
	ErrLUnknownAccount      = errors.New("L3|UnknownAccount: Referenced account does not exist.")
	ErrLAccountExists       = errors.New("L4|AccountExists: Target account already exists.")
	ErrLNonEmptyClose       = errors.New("L5|NonEmptyClose: Account with a non-zero balance cannot be closed.")
	ErrLInvalidSignature    = errors.New("L6|InvalidSignature: Transaction signature does not verify for the account.")
	ErrLTokenOutOfRange     = errors.New("L7|TokenOutOfRange: Token id is outside the balance tree.")
	ErrLAmountTooWide       = errors.New("L8|AmountTooWide: Amount or balance does not fit in 128 bits.")
)

// GetErrorName extracts the error name from the error message.
func GetErrorName(err error) string {
	if err == nil {
		return "No Error"
	}
	errStr := rootMessage(err)
	if !strings.Contains(errStr, "|") || !strings.Contains(errStr, ":") {
		return errStr
	}
	parts := strings.SplitN(errStr, "|", 2)
	if len(parts) < 2 {
		return errStr
	}
	// Split on ':' to separate the error name from its description.
	nameParts := strings.SplitN(parts[1], ":", 2)
	return strings.TrimSpace(nameParts[0])
}

// GetErrorCode extracts the error code from the error message.
func GetErrorCode(err error) string {
	if err == nil {
		return ""
	}
	errStr := rootMessage(err)
	if !strings.Contains(errStr, "|") {
		return ""
	}
	parts := strings.SplitN(errStr, "|", 2)
	return strings.TrimSpace(parts[0])
}

// GetErrorCodeWithName returns the error code and name in the format "Code_ErrorName".
func GetErrorCodeWithName(err error) string {
	code := GetErrorCode(err)
	name := GetErrorName(err)
	if code == "" || name == "" {
		return ""
	}
	return code + "_" + name
}

// GetErrorDesc extracts the error description from the error message.
func GetErrorDesc(err error) string {
	if err == nil {
		return ""
	}
	parts := strings.SplitN(rootMessage(err), ":", 2)
	if len(parts) < 2 {
		return "DESC NOT SET"
	}
	return strings.TrimSpace(parts[1])
}

// rootMessage returns the message of the first coded sentinel in err's chain,
// so wrapped errors ("failed to read commits: S1|...") still classify.
func rootMessage(err error) string {
	for e := err; e != nil; e = errors.Unwrap(e) {
		msg := e.Error()
		if i := strings.Index(msg, "|"); i > 0 && i <= 3 {
			return msg
		}
	}
	return err.Error()
}
