package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// statusCmd inspects a transfer from either end: the source transaction's
// emitted messages, or the destination's completion state for an
// attestation.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Inspect a transfer's source messages or destination completion",
	Long: `With --tx, fetches the source transaction and prints every bridge message
it emitted. With --vaa, asks the destination bridge whether the attestation
has already been redeemed.`,
	PreRun: func(cmd *cobra.Command, args []string) {
		configureLogging(cmd, args)
	},
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().String("chain", "", "Chain to query (name or Wormhole chain ID)")
	statusCmd.Flags().String("tx", "", "Source transaction to parse messages from")
	statusCmd.Flags().String("vaa", "", "Signed attestation, hex or base64 encoded")
	statusCmd.Flags().String("vaa-file", "", "Path to a file holding the signed attestation")

	statusCmd.MarkFlagRequired("chain")
}

func runStatus(cmd *cobra.Command, args []string) error {
	logger := zap.L()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry, err := buildRegistry(cmd, logger)
	if err != nil {
		return err
	}
	chain, err := flagChainRef(cmd, "chain")
	if err != nil {
		return err
	}
	chainCtx, err := registry.Context(chain)
	if err != nil {
		return err
	}

	if txID, _ := cmd.Flags().GetString("tx"); txID != "" {
		msgs, err := chainCtx.ParseMessagesFromTx(ctx, txID)
		if err != nil {
			return err
		}
		if len(msgs) == 0 {
			fmt.Println("no bridge messages in transaction")
			return nil
		}
		printMessages(msgs)
		return nil
	}

	signedVAA, err := flagVAA(cmd)
	if err != nil {
		return fmt.Errorf("one of --tx, --vaa or --vaa-file is required")
	}
	done, err := chainCtx.IsTransferCompleted(ctx, signedVAA)
	if err != nil {
		return err
	}
	if done {
		fmt.Println("transfer completed")
	} else {
		fmt.Println("transfer not yet completed")
	}
	return nil
}
