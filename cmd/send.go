package cmd

import (
	"context"
	"encoding/hex"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/holiman/uint256"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/wormhole-demo/bridge/bridge"
)

// sendCmd submits a token transfer on the source chain and waits for
// finality.
var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send tokens from one chain to another",
	Long: `Submits a transfer on the source chain's token bridge and waits for the
transaction to finalize, then prints the emitted bridge messages.

The token is identified by its home chain and home-chain address. Use
"native" for the chain's gas asset (ETH, SOL, SUI, ...). Amounts are in the
token's smallest native unit.`,
	PreRun: func(cmd *cobra.Command, args []string) {
		configureLogging(cmd, args)
	},
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().String("from", "", "Source chain (name or Wormhole chain ID)")
	sendCmd.Flags().String("to", "", "Destination chain (name or Wormhole chain ID)")
	sendCmd.Flags().String("token-chain", "", "Token's home chain (defaults to the source chain)")
	sendCmd.Flags().String("token", "native", "Token address on its home chain, or \"native\"")
	sendCmd.Flags().String("amount", "", "Amount in the token's smallest unit")
	sendCmd.Flags().String("sender", "", "Sender wallet address on the source chain")
	sendCmd.Flags().String("recipient", "", "Recipient address on the destination chain")
	sendCmd.Flags().String("fee", "0", "Relayer fee deducted from the amount, in token units")
	sendCmd.Flags().String("payload", "", "Optional hex payload delivered to the destination contract")
	sendCmd.Flags().Bool("relay", false, "Route through the relayer contract for automatic delivery")
	sendCmd.Flags().String("to-native", "0", "With --relay: token amount swapped into destination gas currency")

	sendCmd.MarkFlagRequired("from")
	sendCmd.MarkFlagRequired("to")
	sendCmd.MarkFlagRequired("amount")
	sendCmd.MarkFlagRequired("recipient")

	viper.BindPFlag("send_from", sendCmd.Flags().Lookup("from"))
	viper.BindPFlag("send_to", sendCmd.Flags().Lookup("to"))
}

func runSend(cmd *cobra.Command, args []string) error {
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

	amountStr, _ := cmd.Flags().GetString("amount")
	amount, err := uint256.FromDecimal(amountStr)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", amountStr, err)
	}
	feeStr, _ := cmd.Flags().GetString("fee")
	fee, err := uint256.FromDecimal(feeStr)
	if err != nil {
		return fmt.Errorf("invalid fee %q: %w", feeStr, err)
	}

	sender, _ := cmd.Flags().GetString("sender")
	recipient, _ := cmd.Flags().GetString("recipient")

	params := bridge.SendParams{
		Token:      token,
		Amount:     amount,
		Sender:     sender,
		Recipient:  recipient,
		ToChain:    to,
		RelayerFee: fee,
	}

	pipeline := bridge.NewTransferPipeline(logger, registry)

	var receipt *bridge.TransferReceipt
	relay, _ := cmd.Flags().GetBool("relay")
	payloadHex, _ := cmd.Flags().GetString("payload")
	switch {
	case relay:
		toNativeStr, _ := cmd.Flags().GetString("to-native")
		toNative, err := uint256.FromDecimal(toNativeStr)
		if err != nil {
			return fmt.Errorf("invalid to-native amount %q: %w", toNativeStr, err)
		}
		receipt, err = pipeline.TransferWithRelay(ctx, from, bridge.RelaySendParams{
			SendParams:          params,
			ToNativeTokenAmount: toNative,
		})
		if err != nil {
			return err
		}
	case payloadHex != "":
		payload, err := hex.DecodeString(strings.TrimPrefix(payloadHex, "0x"))
		if err != nil {
			return fmt.Errorf("invalid payload hex: %w", err)
		}
		receipt, err = pipeline.TransferWithPayload(ctx, from, params, payload)
		if err != nil {
			return err
		}
	default:
		receipt, err = pipeline.Transfer(ctx, from, params)
		if err != nil {
			return err
		}
	}

	fmt.Printf("transaction: %s\n", receipt.TxID)
	printMessages(receipt.Messages)
	return nil
}

// flagChainRef parses a name-or-id chain flag.
func flagChainRef(cmd *cobra.Command, name string) (bridge.ChainRef, error) {
	value, _ := cmd.Flags().GetString(name)
	ref, err := bridge.ParseChainRef(value)
	if err != nil {
		return bridge.ChainRef{}, fmt.Errorf("--%s: %w", name, err)
	}
	return ref, nil
}

// flagToken builds the token identity from --token-chain/--token, defaulting
// the home chain to fallback.
func flagToken(cmd *cobra.Command, fallback bridge.ChainRef) (bridge.TokenID, error) {
	homeFlag, _ := cmd.Flags().GetString("token-chain")
	home := fallback
	if homeFlag != "" {
		ref, err := bridge.ParseChainRef(homeFlag)
		if err != nil {
			return bridge.TokenID{}, fmt.Errorf("--token-chain: %w", err)
		}
		home = ref
	}
	address, _ := cmd.Flags().GetString("token")
	if strings.EqualFold(address, "native") {
		address = bridge.NativeSentinel
	}
	return bridge.TokenID{Chain: home, Address: address}, nil
}

func printMessages(msgs []*bridge.ParsedMessage) {
	for _, m := range msgs {
		fmt.Printf("message: emitter chain %s, emitter %s, sequence %d\n",
			m.FromChain, m.EmitterAddress, m.Sequence)
		fmt.Printf("  token %s (chain %s), amount %s -> %s on %s\n",
			m.TokenAddress, m.TokenChain, m.Amount.Dec(),
			m.Recipient, m.ToChain)
	}
}
