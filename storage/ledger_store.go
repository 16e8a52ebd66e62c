package storage

import (
	"encoding/json"
	"fmt"

	"github.com/colorfulnotion/zkwitness/common"
	"github.com/colorfulnotion/zkwitness/log"
	"github.com/colorfulnotion/zkwitness/types"
	"github.com/colorfulnotion/zkwitness/zkerrors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// Key layout. Block numbers and ids are big-endian so that key order is
// numeric order.
//
//	c/<block>            commit operation (JSON)
//	s/<size>/<block>     size class index, empty value
//	v/<block>            verify mark, empty value
//	o/<block>            ledger operations of the block
//	a/<block>/<account>  account state after the block, empty value = deleted
//	m/last               last committed block
var (
	prefixCommit   = []byte("c/")
	prefixSize     = []byte("s/")
	prefixVerified = []byte("v/")
	prefixOps      = []byte("o/")
	prefixAccount  = []byte("a/")
	keyLastCommit  = []byte("m/last")
)

func blockKey(prefix []byte, block types.BlockNumber) []byte {
	return append(append([]byte{}, prefix...), common.Uint32ToBytes(uint32(block))...)
}

func sizePrefix(size int) []byte {
	k := append([]byte{}, prefixSize...)
	k = append(k, common.Uint32ToBytes(uint32(size))...)
	return append(k, '/')
}

func sizeKey(size int, block types.BlockNumber) []byte {
	return append(sizePrefix(size), common.Uint32ToBytes(uint32(block))...)
}

func accountKey(block types.BlockNumber, id types.AccountID) []byte {
	k := blockKey(prefixAccount, block)
	k = append(k, '/')
	return append(k, common.Uint32ToBytes(uint32(id))...)
}

// LedgerStore keeps committed blocks, their operations and per-block
// account diffs in LevelDB. It implements Ledger.
type LedgerStore struct {
	store *PersistenceStore
}

func NewLedgerStore(store *PersistenceStore) *LedgerStore {
	return &LedgerStore{store: store}
}

// OpenLedgerStore opens a LevelDB ledger at path; an empty path is in-memory.
func OpenLedgerStore(path string) (*LedgerStore, error) {
	ps, err := NewPersistenceStore(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", zkerrors.ErrSStorageRead, err)
	}
	return NewLedgerStore(ps), nil
}

func (s *LedgerStore) Close() error {
	return s.store.Close()
}

// SaveGenesis writes the block 0 account snapshot.
func (s *LedgerStore) SaveGenesis(accounts map[types.AccountID]*types.Account) error {
	diffs := make(map[types.AccountID]*types.Account, len(accounts))
	for id, acc := range accounts {
		diffs[id] = acc
	}
	return s.writeBlock(0, nil, nil, diffs)
}

// SaveCommit records a committed block: its commit operation, its ledger
// operations and the accounts it changed (nil for accounts it deleted).
// Everything is written in one batch.
func (s *LedgerStore) SaveCommit(op *types.Operation, ops []types.LedgerOp, diffs map[types.AccountID]*types.Account) error {
	if op.Action.Type != types.ActionCommit {
		return fmt.Errorf("%w: block %d: not a commit operation", zkerrors.ErrSStorageWrite, op.Block.BlockNumber)
	}
	return s.writeBlock(op.Block.BlockNumber, op, ops, diffs)
}

func (s *LedgerStore) writeBlock(block types.BlockNumber, op *types.Operation, ops []types.LedgerOp, diffs map[types.AccountID]*types.Account) error {
	var commit, encodedOps []byte
	var err error
	if op != nil {
		if commit, err = json.Marshal(op); err != nil {
			return fmt.Errorf("%w: commit %d: %v", zkerrors.ErrSCodec, block, err)
		}
		if encodedOps, err = types.EncodeLedgerOps(ops); err != nil {
			return err
		}
	}
	accounts := make(map[types.AccountID][]byte, len(diffs))
	for id, acc := range diffs {
		if acc == nil {
			accounts[id] = []byte{}
			continue
		}
		b, err := json.Marshal(acc)
		if err != nil {
			return fmt.Errorf("%w: account %d: %v", zkerrors.ErrSCodec, id, err)
		}
		accounts[id] = b
	}

	err = s.store.WriteBatch(func(b *leveldb.Batch) {
		if op != nil {
			b.Put(blockKey(prefixCommit, block), commit)
			b.Put(sizeKey(op.Block.BlockSize, block), []byte{})
			b.Put(blockKey(prefixOps, block), encodedOps)
		}
		for id, v := range accounts {
			b.Put(accountKey(block, id), v)
		}
		b.Put(keyLastCommit, common.Uint32ToBytes(uint32(block)))
	})
	if err != nil {
		return fmt.Errorf("%w: block %d: %v", zkerrors.ErrSStorageWrite, block, err)
	}
	log.Debug(log.StorageMonitoring, "block stored", "block", block, "ops", len(ops), "accounts", len(diffs))
	return nil
}

// MarkVerified records that a proof for block has been accepted.
func (s *LedgerStore) MarkVerified(block types.BlockNumber) error {
	if err := s.store.Put(blockKey(prefixVerified, block), []byte{}); err != nil {
		return fmt.Errorf("%w: verify mark %d: %v", zkerrors.ErrSStorageWrite, block, err)
	}
	return nil
}

func (s *LedgerStore) IsVerified(block types.BlockNumber) (bool, error) {
	ok, err := s.store.Has(blockKey(prefixVerified, block))
	if err != nil {
		return false, fmt.Errorf("%w: verify mark %d: %v", zkerrors.ErrSStorageRead, block, err)
	}
	return ok, nil
}

// LastCommittedBlock returns the highest stored block; false before genesis.
func (s *LedgerStore) LastCommittedBlock() (types.BlockNumber, bool, error) {
	v, ok, err := s.store.Get(keyLastCommit)
	if err != nil {
		return 0, false, fmt.Errorf("%w: %v", zkerrors.ErrSStorageRead, err)
	}
	if !ok {
		return 0, false, nil
	}
	return types.BlockNumber(common.BytesToUint32(v)), true, nil
}

// LoadCommit returns the commit operation of block, if any.
func (s *LedgerStore) LoadCommit(block types.BlockNumber) (*types.Operation, bool, error) {
	v, ok, err := s.store.Get(blockKey(prefixCommit, block))
	if err != nil {
		return nil, false, fmt.Errorf("%w: commit %d: %v", zkerrors.ErrSStorageRead, block, err)
	}
	if !ok {
		return nil, false, nil
	}
	var op types.Operation
	if err := json.Unmarshal(v, &op); err != nil {
		return nil, false, fmt.Errorf("%w: commit %d: %v", zkerrors.ErrSCodec, block, err)
	}
	return &op, true, nil
}

func (s *LedgerStore) LoadUnverifiedCommitsAfterBlock(blockSize int, after types.BlockNumber, limit int) ([]*types.Operation, error) {
	if limit <= 0 {
		return nil, nil
	}
	r := &util.Range{
		Start: sizeKey(blockSize, after+1),
		Limit: util.BytesPrefix(sizePrefix(blockSize)).Limit,
	}
	var blocks []types.BlockNumber
	var scanErr error
	err := s.store.Scan(r, func(key, _ []byte) bool {
		block := types.BlockNumber(common.BytesToUint32(key[len(key)-4:]))
		verified, err := s.IsVerified(block)
		if err != nil {
			scanErr = err
			return false
		}
		if !verified {
			blocks = append(blocks, block)
		}
		return len(blocks) < limit
	})
	if err != nil {
		return nil, fmt.Errorf("%w: size %d index: %v", zkerrors.ErrSStorageRead, blockSize, err)
	}
	if scanErr != nil {
		return nil, scanErr
	}

	ops := make([]*types.Operation, 0, len(blocks))
	for _, block := range blocks {
		op, ok, err := s.LoadCommit(block)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: commit %d indexed but missing", zkerrors.ErrSStorageRead, block)
		}
		ops = append(ops, op)
	}
	return ops, nil
}

func (s *LedgerStore) LoadCommittedState(at *types.BlockNumber) (types.BlockNumber, map[types.AccountID]*types.Account, error) {
	var upto types.BlockNumber
	if at != nil {
		upto = *at
	}
	last, ok, err := s.LastCommittedBlock()
	if err != nil {
		return 0, nil, err
	}
	if ok && upto > last {
		upto = last
	}

	accounts := make(map[types.AccountID]*types.Account)
	r := &util.Range{
		Start: append([]byte{}, prefixAccount...),
		Limit: blockKey(prefixAccount, upto+1),
	}
	var decodeErr error
	err = s.store.Scan(r, func(key, value []byte) bool {
		id := types.AccountID(common.BytesToUint32(key[len(key)-4:]))
		if len(value) == 0 {
			delete(accounts, id)
			return true
		}
		var acc types.Account
		if err := json.Unmarshal(value, &acc); err != nil {
			decodeErr = fmt.Errorf("%w: account %d: %v", zkerrors.ErrSCodec, id, err)
			return false
		}
		accounts[id] = &acc
		return true
	})
	if err != nil {
		return 0, nil, fmt.Errorf("%w: committed state at %d: %v", zkerrors.ErrSStorageRead, upto, err)
	}
	if decodeErr != nil {
		return 0, nil, decodeErr
	}
	return upto, accounts, nil
}

func (s *LedgerStore) GetBlockOperations(block types.BlockNumber) ([]types.LedgerOp, error) {
	v, ok, err := s.store.Get(blockKey(prefixOps, block))
	if err != nil {
		return nil, fmt.Errorf("%w: operations of %d: %v", zkerrors.ErrSStorageRead, block, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: no operations stored for block %d", zkerrors.ErrSStorageRead, block)
	}
	ops, err := types.DecodeLedgerOps(v)
	if err != nil {
		return nil, fmt.Errorf("block %d: %w", block, err)
	}
	return ops, nil
}
