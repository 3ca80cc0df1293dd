package cmd

import (
	"os"
	"strings"

	dotenv "github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wormhole-demo/bridge/bridge"
	"github.com/wormhole-demo/bridge/bridge/chains"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Token transfers between chains over attested bridge messages",
}

func init() {
	// Tentatively load .env file
	_ = dotenv.Load()

	rootCmd.PersistentFlags().Bool(
		"debug",
		false,
		"Enables debug output.")

	rootCmd.PersistentFlags().Bool(
		"json",
		false,
		"Enables structured logging in JSON format.")

	rootCmd.PersistentFlags().String(
		"network",
		string(chains.Mainnet),
		"Deployment environment (mainnet or testnet)")

	rootCmd.PersistentFlags().StringToString(
		"rpc",
		nil,
		"Per-chain RPC endpoints, e.g. --rpc ethereum=https://...,solana=https://...")

	rootCmd.PersistentFlags().StringToString(
		"key",
		nil,
		"Per-chain signing keys, e.g. --key ethereum=<hex>. Chains without one are read-only")

	viper.BindPFlag("network", rootCmd.PersistentFlags().Lookup("network"))
	viper.BindPFlag("rpc", rootCmd.PersistentFlags().Lookup("rpc"))
	viper.BindPFlag("key", rootCmd.PersistentFlags().Lookup("key"))

	cobra.OnInitialize(initConfig)
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("bridge")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

func configureLogging(cmd *cobra.Command, _ []string) *zap.Logger {
	debug, _ := cmd.Flags().GetBool("debug")
	json, _ := cmd.Flags().GetBool("json")

	var config zap.Config
	if debug {
		config = zap.NewDevelopmentConfig()
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		config.Development = true
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	// Configure JSON output if requested
	if json {
		config.Encoding = "json"
	} else {
		config.Encoding = "console"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	logger, err := config.Build()
	if err != nil {
		// Fallback to a basic logger if config fails
		logger, _ = zap.NewProduction()
	}

	// Replace the global logger
	zap.ReplaceGlobals(logger)

	return logger
}

// buildRegistry assembles the chain registry from the persistent connection
// flags shared by every subcommand.
func buildRegistry(cmd *cobra.Command, logger *zap.Logger) (*bridge.Registry, error) {
	network, _ := cmd.Flags().GetString("network")
	rpcs, _ := cmd.Flags().GetStringToString("rpc")
	keys, _ := cmd.Flags().GetStringToString("key")

	endpoints := make(map[string]chains.Endpoint, len(rpcs))
	for chain, rpc := range rpcs {
		endpoints[chain] = chains.Endpoint{
			RPC:        rpc,
			PrivateKey: keys[chain],
		}
	}

	return chains.BuildRegistry(logger, chains.Options{
		Network:   chains.Network(network),
		Endpoints: endpoints,
	})
}
