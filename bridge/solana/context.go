// Package solana implements the chain capability contract for Solana-like
// chains on top of gagliardetto/solana-go.
package solana

import (
	"context"
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	solanalib "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/holiman/uint256"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
	"go.uber.org/zap"

	"github.com/wormhole-demo/bridge/bridge"
	"github.com/wormhole-demo/bridge/bridge/message"
)

// WrappedSolMint backs the native-asset sentinel: SOL travels over the token
// bridge as wrapped SOL.
var WrappedSolMint = solanalib.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")

// Token bridge instruction discriminators.
const (
	ixCompleteNative             = 2
	ixCompleteWrapped            = 3
	ixTransferWrapped            = 4
	ixTransferNative             = 5
	ixTransferWrappedWithPayload = 11
	ixTransferNativeWithPayload  = 12
)

const confirmPollInterval = 3 * time.Second

// Context is the Solana chain backend.
type Context struct {
	cfg      bridge.ChainConfig
	registry *bridge.Registry
	client   *rpc.Client
	payer    solanalib.PrivateKey // nil when read-only
	core     solanalib.PublicKey
	bridgePg solanalib.PublicKey
	logger   *zap.Logger
}

var _ bridge.ChainContext = (*Context)(nil)

// New connects to the chain's RPC endpoint. An empty private key yields a
// read-only context.
func New(logger *zap.Logger, registry *bridge.Registry, cfg bridge.ChainConfig, rpcURL, privateKeyBase58 string) (*Context, error) {
	c := &Context{
		cfg:      cfg,
		registry: registry,
		logger:   logger.With(zap.String("component", "SolanaContext"), zap.String("chain", cfg.Key)),
	}

	c.logger.Info("Connecting to Solana", zap.String("rpcURL", rpcURL))
	c.client = rpc.New(rpcURL)

	core, err := solanalib.PublicKeyFromBase58(cfg.Contracts.CoreBridge)
	if err != nil {
		return nil, fmt.Errorf("invalid core bridge program: %w", err)
	}
	tokenBridge, err := solanalib.PublicKeyFromBase58(cfg.Contracts.TokenBridge)
	if err != nil {
		return nil, fmt.Errorf("invalid token bridge program: %w", err)
	}
	c.core = core
	c.bridgePg = tokenBridge

	if privateKeyBase58 != "" {
		key, err := solanalib.PrivateKeyFromBase58(privateKeyBase58)
		if err != nil {
			return nil, fmt.Errorf("invalid private key: %w", err)
		}
		c.payer = key
		c.logger.Info("Signer configured", zap.String("payer", key.PublicKey().String()))
	}

	return c, nil
}

func (c *Context) Kind() bridge.ContextKind   { return bridge.KindSolana }
func (c *Context) Config() bridge.ChainConfig { return c.cfg }

func (c *Context) requireSigner() error {
	if c.payer == nil {
		return fmt.Errorf("%s: %w", c.cfg.Key, bridge.ErrNoSigner)
	}
	return nil
}

// deriveWrappedMint derives the deterministic mint address of a foreign
// token's wrapped representation.
func (c *Context) deriveWrappedMint(originChain vaaLib.ChainID, origin vaaLib.Address) (solanalib.PublicKey, error) {
	chainBytes := make([]byte, 2)
	binary.BigEndian.PutUint16(chainBytes, uint16(originChain))
	mint, _, err := solanalib.FindProgramAddress(
		[][]byte{[]byte("wrapped"), chainBytes, origin[:]}, c.bridgePg)
	return mint, err
}

func (c *Context) GetForeignAsset(ctx context.Context, tokenID bridge.TokenID, chain bridge.ChainRef) (string, error) {
	chainID, err := chain.ChainID()
	if err != nil {
		return "", err
	}
	homeID, err := tokenID.Chain.ChainID()
	if err != nil {
		return "", err
	}
	if chainID == homeID {
		return tokenID.Address, nil
	}
	if chainID != c.cfg.ID {
		other, err := c.registry.Context(chain)
		if err != nil {
			return "", err
		}
		return other.GetForeignAsset(ctx, tokenID, chain)
	}

	universal, err := c.registry.FormatTokenAddress(tokenID)
	if err != nil {
		return "", err
	}
	mint, err := c.deriveWrappedMint(homeID, universal)
	if err != nil {
		return "", fmt.Errorf("derive wrapped mint: %w", err)
	}
	// The mint exists only once the asset has been attested here.
	_, err = c.client.GetAccountInfo(ctx, mint)
	if err == rpc.ErrNotFound {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("wrapped mint lookup on %s: %w", c.cfg.Key, err)
	}
	return mint.String(), nil
}

func (c *Context) FetchTokenDecimals(ctx context.Context, assetAddress string) (uint8, error) {
	mint, err := solanalib.PublicKeyFromBase58(assetAddress)
	if err != nil {
		return 0, fmt.Errorf("invalid mint %q: %w", assetAddress, err)
	}
	supply, err := c.client.GetTokenSupply(ctx, mint, rpc.CommitmentFinalized)
	if err != nil {
		return 0, fmt.Errorf("token supply of %s on %s: %w", assetAddress, c.cfg.Key, err)
	}
	return supply.Value.Decimals, nil
}

func (c *Context) GetNativeBalance(ctx context.Context, wallet string) (*uint256.Int, error) {
	owner, err := solanalib.PublicKeyFromBase58(wallet)
	if err != nil {
		return nil, fmt.Errorf("invalid wallet %q: %w", wallet, err)
	}
	out, err := c.client.GetBalance(ctx, owner, rpc.CommitmentFinalized)
	if err != nil {
		return nil, fmt.Errorf("balance of %s on %s: %w", wallet, c.cfg.Key, err)
	}
	return uint256.NewInt(out.Value), nil
}

func (c *Context) GetTokenBalance(ctx context.Context, wallet string, tokenID bridge.TokenID) (*uint256.Int, error) {
	local, err := c.GetForeignAsset(ctx, tokenID, c.cfg.Ref())
	if err != nil {
		return nil, err
	}
	if local == "" {
		return nil, nil
	}
	owner, err := solanalib.PublicKeyFromBase58(wallet)
	if err != nil {
		return nil, fmt.Errorf("invalid wallet %q: %w", wallet, err)
	}
	mint := solanalib.MustPublicKeyFromBase58(local)
	ata, _, err := solanalib.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return nil, fmt.Errorf("derive token account: %w", err)
	}
	bal, err := c.client.GetTokenAccountBalance(ctx, ata, rpc.CommitmentFinalized)
	if err == rpc.ErrNotFound {
		// Registered asset, wallet just never held it.
		return uint256.NewInt(0), nil
	}
	if err != nil {
		return nil, fmt.Errorf("token balance on %s: %w", c.cfg.Key, err)
	}
	out := new(uint256.Int)
	if err := out.SetFromDecimal(bal.Value.Amount); err != nil {
		return nil, fmt.Errorf("parse balance %q: %w", bal.Value.Amount, err)
	}
	return out, nil
}

// Approve delegates amount of the token account to spender. Solana's SPL
// delegate model replaces the delegation wholesale, so the check is "same
// delegate with enough allowance", and a satisfying delegation sends nothing.
func (c *Context) Approve(ctx context.Context, spender, asset string, amount *uint256.Int) (*bridge.TxResult, error) {
	if err := c.requireSigner(); err != nil {
		return nil, err
	}
	delegate, err := solanalib.PublicKeyFromBase58(spender)
	if err != nil {
		return nil, fmt.Errorf("invalid delegate %q: %w", spender, err)
	}
	mint, err := solanalib.PublicKeyFromBase58(asset)
	if err != nil {
		return nil, fmt.Errorf("invalid mint %q: %w", asset, err)
	}
	owner := c.payer.PublicKey()
	source, _, err := solanalib.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return nil, fmt.Errorf("derive token account: %w", err)
	}

	var target uint64
	if amount == nil || !amount.IsUint64() {
		target = ^uint64(0)
	} else {
		target = amount.Uint64()
	}

	var acc token.Account
	if err := c.client.GetAccountDataInto(ctx, source, &acc); err == nil {
		if acc.Delegate != nil && *acc.Delegate == delegate && acc.DelegatedAmount >= target {
			c.logger.Debug("Delegation already sufficient",
				zap.String("asset", asset),
				zap.String("delegate", spender))
			return nil, nil
		}
	}

	ix := token.NewApproveInstruction(target, source, delegate, owner, nil).Build()
	return c.submit(ctx, []solanalib.Instruction{ix}, nil)
}

// submit assembles, signs, and sends a transaction. extraSigners covers
// one-shot accounts like the bridge message keypair.
func (c *Context) submit(ctx context.Context, instructions []solanalib.Instruction, extraSigners []solanalib.PrivateKey) (*bridge.TxResult, error) {
	tx, err := c.assemble(ctx, instructions, extraSigners)
	if err != nil {
		return nil, err
	}
	sig, err := c.client.SendTransaction(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("failed to send transaction: %w", err)
	}
	c.logger.Debug("Transaction sent", zap.String("signature", sig.String()))
	return &bridge.TxResult{TxID: sig.String()}, nil
}

func (c *Context) assemble(ctx context.Context, instructions []solanalib.Instruction, extraSigners []solanalib.PrivateKey) (*solanalib.Transaction, error) {
	recent, err := c.client.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent blockhash: %w", err)
	}
	tx, err := solanalib.NewTransaction(instructions, recent.Value.Blockhash,
		solanalib.TransactionPayer(c.payer.PublicKey()))
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}
	_, err = tx.Sign(func(key solanalib.PublicKey) *solanalib.PrivateKey {
		if key.Equals(c.payer.PublicKey()) {
			return &c.payer
		}
		for i := range extraSigners {
			if key.Equals(extraSigners[i].PublicKey()) {
				return &extraSigners[i]
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	return tx, nil
}

// simulate dry-runs the assembled transaction and surfaces the program error
// with its logs.
func (c *Context) simulate(ctx context.Context, op string, tx *solanalib.Transaction) error {
	out, err := c.client.SimulateTransaction(ctx, tx)
	if err != nil {
		return &bridge.SimulationError{Chain: c.cfg.Key, Op: op, Reason: err.Error()}
	}
	if out.Value != nil && out.Value.Err != nil {
		return &bridge.SimulationError{
			Chain:  c.cfg.Key,
			Op:     op,
			Reason: fmt.Sprintf("%v: %s", out.Value.Err, strings.Join(out.Value.Logs, "; ")),
		}
	}
	return nil
}

func (c *Context) DecodeRelayerPayload(payload []byte) (*message.RelayerPayload, error) {
	return message.DecodeRelayerPayload(payload)
}

// WaitForConfirmation polls the signature status until finalized.
func (c *Context) WaitForConfirmation(ctx context.Context, txID string) error {
	sig, err := solanalib.SignatureFromBase58(txID)
	if err != nil {
		return fmt.Errorf("invalid signature %q: %w", txID, err)
	}
	for {
		out, err := c.client.GetSignatureStatuses(ctx, true, sig)
		if err != nil {
			return fmt.Errorf("signature status on %s: %w", c.cfg.Key, err)
		}
		if len(out.Value) > 0 && out.Value[0] != nil {
			status := out.Value[0]
			if status.Err != nil {
				return fmt.Errorf("transaction %s failed: %v", txID, status.Err)
			}
			if status.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(confirmPollInterval):
		}
	}
}
