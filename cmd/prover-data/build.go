package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/colorfulnotion/zkwitness/prover"
	"github.com/colorfulnotion/zkwitness/storage"
	"github.com/colorfulnotion/zkwitness/types"
	"github.com/spf13/cobra"
)

type buildSummary struct {
	Block         types.BlockNumber `json:"block"`
	BlockSize     int               `json:"block_size"`
	ChunksUsed    int               `json:"chunks_used"`
	Operations    int               `json:"operations"`
	PubdataLen    int               `json:"pubdata_len"`
	PubdataDigest string            `json:"pubdata_digest"`
	OldRoot       string            `json:"old_root"`
	NewRoot       string            `json:"new_root"`
	Commitment    string            `json:"commitment"`
}

func newBuildCmd() *cobra.Command {
	var (
		flags commonFlags
		block uint32
		out   string
	)
	buildCmd := &cobra.Command{
		Use:   "build",
		Short: "Replay one committed block and print its prover data summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load(cmd)
			if err != nil {
				return err
			}
			store, err := storage.OpenLedgerStore(cfg.DataPath)
			if err != nil {
				return err
			}
			defer store.Close()

			commit, ok, err := store.LoadCommit(types.BlockNumber(block))
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("block %d is not committed", block)
			}
			pd, err := prover.BuildProverData(context.Background(), store, commit)
			if err != nil {
				return err
			}

			if out != "" {
				data, err := json.MarshalIndent(pd, "", "  ")
				if err != nil {
					return err
				}
				if err := os.WriteFile(out, data, 0o644); err != nil {
					return err
				}
			}
			summary := buildSummary{
				Block:         commit.Block.BlockNumber,
				BlockSize:     commit.Block.BlockSize,
				ChunksUsed:    commit.Block.ChunksUsed,
				Operations:    len(pd.Operations),
				PubdataLen:    len(pd.Pubdata()),
				PubdataDigest: pd.PubdataDigest().Hex(),
				OldRoot:       pd.OldRoot.String(),
				NewRoot:       pd.NewRoot.String(),
				Commitment:    pd.PublicDataCommitment.String(),
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(summary)
		},
	}
	flags.register(buildCmd)
	buildCmd.Flags().Uint32Var(&block, "block", 1, "Block number to replay")
	buildCmd.Flags().StringVarP(&out, "out", "o", "", "Write the full prover data as JSON to this file")
	return buildCmd
}
