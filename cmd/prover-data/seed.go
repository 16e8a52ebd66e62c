package main

import (
	"fmt"

	"github.com/colorfulnotion/zkwitness/common"
	"github.com/colorfulnotion/zkwitness/log"
	"github.com/colorfulnotion/zkwitness/state"
	"github.com/colorfulnotion/zkwitness/storage"
	"github.com/colorfulnotion/zkwitness/types"
	"github.com/holiman/uint256"
	"github.com/spf13/cobra"
)

func newSeedCmd() *cobra.Command {
	var (
		flags       commonFlags
		blocks      int
		wallets     int
		verifyEvery int
	)
	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Write a deterministic development ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load(cmd)
			if err != nil {
				return err
			}
			if cfg.DataPath == "" {
				return fmt.Errorf("seed needs a data path")
			}
			if wallets < 2 {
				return fmt.Errorf("seed needs at least 2 wallets, got %d", wallets)
			}
			store, err := storage.OpenLedgerStore(cfg.DataPath)
			if err != nil {
				return err
			}
			defer store.Close()

			s := &seeder{feeAccount: types.AccountID(cfg.FeeAccount)}
			if err := s.init(store, cfg.BlockChunkSizes, wallets); err != nil {
				return err
			}
			for b := 1; b <= blocks; b++ {
				op, err := s.committer.CommitBlock(s.blockOps(b), s.feeAccount)
				if err != nil {
					return err
				}
				if verifyEvery > 0 && b%verifyEvery == 0 {
					if err := store.MarkVerified(op.Block.BlockNumber); err != nil {
						return err
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "block %d size %d chunks %d root %s\n",
					op.Block.BlockNumber, op.Block.BlockSize, op.Block.ChunksUsed, op.Block.NewRootHash.String())
			}
			return nil
		},
	}
	flags.register(seedCmd)
	seedCmd.Flags().IntVar(&blocks, "blocks", 20, "Blocks to commit")
	seedCmd.Flags().IntVar(&wallets, "wallets", 8, "Funded wallets at genesis")
	seedCmd.Flags().IntVar(&verifyEvery, "verify-every", 0, "Mark every n-th block verified (0 for none)")
	return seedCmd
}

// seeder produces a varied but reproducible stream of ledger operations.
type seeder struct {
	committer  *state.Committer
	feeAccount types.AccountID
	wallets    []*state.Wallet
	nextID     types.AccountID
}

func (s *seeder) init(store *storage.LedgerStore, sizes []int, n int) error {
	if _, ok, err := store.LastCommittedBlock(); err != nil {
		return err
	} else if ok {
		return fmt.Errorf("ledger is not empty")
	}
	committer, err := state.NewCommitter(store, sizes)
	if err != nil {
		return err
	}
	genesis := map[types.AccountID]*types.Account{
		s.feeAccount: types.NewAccount(common.Address{}),
	}
	id := types.AccountID(1)
	for len(s.wallets) < n {
		if id == s.feeAccount {
			id++
			continue
		}
		w, err := state.NewWallet([]byte(fmt.Sprintf("dev-wallet-%d", id)), id, common.BytesToAddress(common.Keccak256([]byte{byte(id >> 8), byte(id)}).Bytes()))
		if err != nil {
			return err
		}
		acc := w.Account()
		acc.AddBalance(0, uint256.NewInt(1_000_000))
		acc.AddBalance(1, uint256.NewInt(50_000))
		genesis[id] = acc
		s.wallets = append(s.wallets, w)
		id++
	}
	s.nextID = id
	if err := committer.Genesis(genesis); err != nil {
		return err
	}
	s.committer = committer
	log.Info(log.StateMonitoring, "genesis written", "wallets", n, "fee_account", s.feeAccount)
	return nil
}

// blockOps picks the operations of block b. Each one is tried on a copy
// of the committed state first; wallet operations the state keeper rejects
// are dropped and their nonce handed back, so every block commits.
func (s *seeder) blockOps(b int) []types.LedgerOp {
	n := len(s.wallets)
	from := s.wallets[b%n]
	to := s.wallets[(b+1)%n]
	work := s.committer.State()

	var ops []types.LedgerOp
	add := func(op types.LedgerOp, signer *state.Wallet) {
		if _, err := work.Execute(op); err != nil {
			log.Debug(log.StateMonitoring, "seed op skipped", "block", b, "type", op.Type(), "err", err)
			if signer != nil {
				signer.Nonce--
			}
			return
		}
		ops = append(ops, op)
	}

	add(&types.DepositOp{
		AccountID: to.AccountID,
		Address:   to.Address,
		Token:     types.TokenID(b % 2),
		Amount:    uint256.NewInt(uint64(100 * b)),
	}, nil)
	if tr, err := from.Transfer(to.AccountID, to.Address, 0, uint64(10+b), 1); err == nil {
		add(tr, from)
	}
	if b%3 == 0 {
		if wd, err := to.Withdraw(to.Address, 1, uint64(b), 2); err == nil {
			add(wd, to)
		}
	}
	if b%4 == 0 {
		for i := 0; i < 3; i++ {
			w := s.wallets[(b+2+i)%n]
			if w == from || w == to {
				continue
			}
			if tr, err := w.Transfer(from.AccountID, from.Address, 1, 5, 0); err == nil {
				add(tr, w)
			}
		}
	}
	if b%5 == 0 && s.nextID <= types.MaxAccountID() {
		if tn, err := from.TransferToNew(s.nextID, common.BytesToAddress([]byte{0xfe, byte(s.nextID)}), 0, 25, 1); err == nil {
			before := len(ops)
			add(tn, from)
			if len(ops) > before {
				s.nextID++
				if s.nextID == s.feeAccount {
					s.nextID++
				}
			}
		}
	}
	if b%7 == 0 {
		add(&types.FullExitOp{AccountID: to.AccountID, EthAddress: to.Address, Token: 1}, nil)
	}
	if b%11 == 0 {
		add(&types.NoopOp{}, nil)
	}
	return ops
}
