package xyn

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"xyron.node/xyn/internal/ledger"
	"xyron.node/xyn/internal/store"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Read the ledger files without starting the node",
}

var inspectStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print tokenomics for the committed state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		st, err := store.New(cfg.StatePath(), cfg.BlocksPath()).ReadState()
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), ledger.StatsFor(ledger.ParamsFromConfig(cfg), st))
	},
}

var inspectBlocksCmd = &cobra.Command{
	Use:   "blocks",
	Short: "Print the most recent blocks, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")
		blocks, err := store.New(cfg.StatePath(), cfg.BlocksPath()).ListBlocks(limit)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), blocks)
	},
}

var inspectBlockCmd = &cobra.Command{
	Use:   "block HEIGHT",
	Short: "Print one block",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		height, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid height %q", args[0])
		}
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		b, err := store.New(cfg.StatePath(), cfg.BlocksPath()).ReadBlock(height)
		if err != nil {
			return fmt.Errorf("block %d: %w", height, err)
		}
		return printJSON(cmd.OutOrStdout(), b)
	},
}

func init() {
	for _, c := range []*cobra.Command{inspectStatsCmd, inspectBlocksCmd, inspectBlockCmd} {
		addNodeFlags(c)
		inspectCmd.AddCommand(c)
	}
	inspectBlocksCmd.Flags().Int("limit", 10, "number of blocks")
	rootCmd.AddCommand(inspectCmd)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
