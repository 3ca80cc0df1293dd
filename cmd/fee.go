package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/holiman/uint256"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wormhole-demo/bridge/bridge"
)

// feeCmd quotes relayer pricing for a token route.
var feeCmd = &cobra.Command{
	Use:   "fee",
	Short: "Quote relayer fees and swap limits for a route",
	Long: `Quotes the relayer fee for carrying a token from source to destination,
the destination relayer's maximum native-gas swap amount, and, when --amount
is given, the native gas paid out for that amount.`,
	PreRun: func(cmd *cobra.Command, args []string) {
		configureLogging(cmd, args)
	},
	RunE: runFee,
}

func init() {
	rootCmd.AddCommand(feeCmd)

	feeCmd.Flags().String("from", "", "Source chain (name or Wormhole chain ID)")
	feeCmd.Flags().String("to", "", "Destination chain (name or Wormhole chain ID)")
	feeCmd.Flags().String("token-chain", "", "Token's home chain (defaults to the source chain)")
	feeCmd.Flags().String("token", "native", "Token address on its home chain, or \"native\"")
	feeCmd.Flags().String("amount", "", "Optional amount to quote a native-gas payout for")

	feeCmd.MarkFlagRequired("from")
	feeCmd.MarkFlagRequired("to")
}

func runFee(cmd *cobra.Command, args []string) error {
	logger := zap.L()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry, err := buildRegistry(cmd, logger)
	if err != nil {
		return err
	}
	from, err := flagChainRef(cmd, "from")
	if err != nil {
		return err
	}
	to, err := flagChainRef(cmd, "to")
	if err != nil {
		return err
	}
	token, err := flagToken(cmd, from)
	if err != nil {
		return err
	}

	engine := bridge.NewRelayerFeeEngine(logger, registry)

	fee, err := engine.Fee(ctx, from, to, token)
	if err != nil {
		return err
	}
	fmt.Printf("relayer fee: %s (token units)\n", fee.Dec())

	maxSwap, err := engine.MaxSwapAmount(ctx, to, token)
	if err != nil {
		return err
	}
	fmt.Printf("max swap amount: %s (token units)\n", maxSwap.Dec())

	if amountStr, _ := cmd.Flags().GetString("amount"); amountStr != "" {
		amount, err := uint256.FromDecimal(amountStr)
		if err != nil {
			return fmt.Errorf("invalid amount %q: %w", amountStr, err)
		}
		payout, err := engine.NativeTokenAmount(ctx, to, token, amount)
		if err != nil {
			return err
		}
		fmt.Printf("native payout for %s: %s\n", amount.Dec(), payout.Dec())
	}
	return nil
}
