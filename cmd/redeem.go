package cmd

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wormhole-demo/bridge/bridge"
)

// redeemCmd submits a signed attestation to the destination bridge.
var redeemCmd = &cobra.Command{
	Use:   "redeem",
	Short: "Redeem a signed attestation on the destination chain",
	Long: `Submits a guardian-signed attestation to the destination chain's token
bridge completion entry point and waits for finality. Already-redeemed
attestations are rejected before any transaction is built.`,
	PreRun: func(cmd *cobra.Command, args []string) {
		configureLogging(cmd, args)
	},
	RunE: runRedeem,
}

func init() {
	rootCmd.AddCommand(redeemCmd)

	redeemCmd.Flags().String("chain", "", "Destination chain (name or Wormhole chain ID)")
	redeemCmd.Flags().String("vaa", "", "Signed attestation, hex or base64 encoded")
	redeemCmd.Flags().String("vaa-file", "", "Path to a file holding the signed attestation")

	redeemCmd.MarkFlagRequired("chain")
}

func runRedeem(cmd *cobra.Command, args []string) error {
	logger := zap.L()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry, err := buildRegistry(cmd, logger)
	if err != nil {
		return err
	}
	dest, err := flagChainRef(cmd, "chain")
	if err != nil {
		return err
	}
	signedVAA, err := flagVAA(cmd)
	if err != nil {
		return err
	}

	pipeline := bridge.NewTransferPipeline(logger, registry)
	result, err := pipeline.Redeem(ctx, dest, signedVAA)
	if err != nil {
		return err
	}

	fmt.Printf("redeemed in transaction: %s\n", result.TxID)
	return nil
}

// flagVAA reads the attestation bytes from --vaa or --vaa-file, accepting
// hex (with or without 0x) and base64.
func flagVAA(cmd *cobra.Command) ([]byte, error) {
	raw, _ := cmd.Flags().GetString("vaa")
	if file, _ := cmd.Flags().GetString("vaa-file"); file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read attestation: %w", err)
		}
		raw = strings.TrimSpace(string(data))
	}
	if raw == "" {
		return nil, fmt.Errorf("one of --vaa or --vaa-file is required")
	}
	if decoded, err := hex.DecodeString(strings.TrimPrefix(raw, "0x")); err == nil {
		return decoded, nil
	}
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("attestation is neither hex nor base64")
	}
	return decoded, nil
}
