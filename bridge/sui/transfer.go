package sui

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/block-vision/sui-go-sdk/models"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/wormhole-demo/bridge/bridge"
	"github.com/wormhole-demo/bridge/bridge/message"
)

// preparedTx wraps the serialized transaction bytes the node built for us.
type preparedTx struct {
	chain   bridge.ChainRef
	summary string
	meta    models.TxnMetaData
}

func (p *preparedTx) Chain() bridge.ChainRef { return p.chain }
func (p *preparedTx) Summary() string        { return p.summary }

// entryPackage is the integration package exposing single entry wrappers
// around the bridge's programmable calls. It is derived from the relayer
// state object's type.
func (c *Context) entryPackage(ctx context.Context) (string, error) {
	if err := c.resolveRelayer(ctx); err != nil {
		return "", err
	}
	return c.relayerPkg, nil
}

// pickCoin finds a coin object covering amount. Transfers spend one coin
// object; callers holding only fragmented coins merge them first.
func (c *Context) pickCoin(ctx context.Context, owner, coinType string, amount *uint256.Int) (string, error) {
	coins, err := c.client.SuiXGetCoins(ctx, models.SuiXGetCoinsRequest{
		Owner:    owner,
		CoinType: coinType,
	})
	if err != nil {
		return "", fmt.Errorf("coins of %s on %s: %w", owner, c.cfg.Key, err)
	}
	for _, coin := range coins.Data {
		bal := new(uint256.Int)
		if err := bal.SetFromDecimal(coin.Balance); err != nil {
			continue
		}
		if bal.Cmp(amount) >= 0 {
			return coin.CoinObjectId, nil
		}
	}
	return "", fmt.Errorf("no single %s coin covers %s on %s", coinType, amount, c.cfg.Key)
}

type moveCallSpec struct {
	function  string
	typeArgs  []interface{}
	arguments []interface{}
	summary   string
}

// buildMoveCall asks the node to serialize the entry call into transaction
// bytes, which simulate and submit both consume.
func (c *Context) buildMoveCall(ctx context.Context, pkg string, spec moveCallSpec) (*preparedTx, error) {
	meta, err := c.client.MoveCall(ctx, models.MoveCallRequest{
		Signer:          c.signer.Address,
		PackageObjectId: pkg,
		Module:          "bridge_entry",
		Function:        spec.function,
		TypeArguments:   spec.typeArgs,
		Arguments:       spec.arguments,
		GasBudget:       gasBudget,
	})
	if err != nil {
		return nil, fmt.Errorf("build %s on %s: %w", spec.function, c.cfg.Key, err)
	}
	return &preparedTx{chain: c.cfg.Ref(), summary: spec.summary, meta: meta}, nil
}

func (c *Context) simulate(ctx context.Context, op string, meta models.TxnMetaData) error {
	resp, err := c.client.SuiDryRunTransactionBlock(ctx, models.SuiDryRunTransactionBlockRequest{
		TxBytes: meta.TxBytes,
	})
	if err != nil {
		return &bridge.SimulationError{Chain: c.cfg.Key, Op: op, Reason: err.Error()}
	}
	if resp.Effects.Status.Status != "success" {
		return &bridge.SimulationError{Chain: c.cfg.Key, Op: op, Reason: resp.Effects.Status.Error}
	}
	return nil
}

func (c *Context) sendPrepared(ctx context.Context, op string, prepared *preparedTx) (*bridge.TxResult, error) {
	if err := c.simulate(ctx, op, prepared.meta); err != nil {
		return nil, err
	}
	resp, err := c.client.SignAndExecuteTransactionBlock(ctx, models.SignAndExecuteTransactionBlockRequest{
		TxnMetaData: prepared.meta,
		PriKey:      c.signer.PriKey,
		Options: models.SuiTransactionBlockOptions{
			ShowEffects: true,
			ShowEvents:  true,
		},
		RequestType: "WaitForLocalExecution",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to send transaction: %w", err)
	}
	c.logger.Info("Transaction submitted",
		zap.String("op", op),
		zap.String("digest", resp.Digest))
	return &bridge.TxResult{TxID: resp.Digest}, nil
}

// buildSend assembles a transfer entry call. The relayer sub-amounts are nil
// for the plain and payload shapes.
func (c *Context) buildSend(ctx context.Context, p bridge.SendParams, payload []byte, toNative *uint256.Int, withRelay bool) (*preparedTx, error) {
	if err := c.requireSigner(); err != nil {
		return nil, err
	}
	if p.Amount == nil || !p.Amount.IsUint64() {
		return nil, fmt.Errorf("amount out of range for %s", c.cfg.Key)
	}
	pkg, err := c.entryPackage(ctx)
	if err != nil {
		return nil, err
	}
	toChainID, err := p.ToChain.ChainID()
	if err != nil {
		return nil, err
	}
	dest, err := c.registry.Context(p.ToChain)
	if err != nil {
		return nil, err
	}
	target, err := dest.FormatAddress(p.Recipient)
	if err != nil {
		return nil, fmt.Errorf("recipient: %w", err)
	}

	coinType, err := c.coinTypeFor(ctx, p.Token)
	if err != nil {
		return nil, err
	}
	if coinType == "" {
		return nil, fmt.Errorf("%s on %s: %w", p.Token, c.cfg.Key, bridge.ErrAssetNotRegistered)
	}
	coin, err := c.pickCoin(ctx, c.signer.Address, coinType, p.Amount)
	if err != nil {
		return nil, err
	}

	var relayerFee uint64
	if p.RelayerFee != nil {
		if !p.RelayerFee.IsUint64() {
			return nil, fmt.Errorf("relayer fee out of range for %s", c.cfg.Key)
		}
		relayerFee = p.RelayerFee.Uint64()
	}

	spec := moveCallSpec{
		typeArgs: []interface{}{coinType},
		arguments: []interface{}{
			c.cfg.Contracts.TokenBridge,
			c.cfg.Contracts.CoreBridge,
			coin,
			fmt.Sprintf("%d", p.Amount.Uint64()),
			fmt.Sprintf("%d", toChainID),
			"0x" + hex.EncodeToString(target[:]),
		},
		summary: fmt.Sprintf("transfer %s of %s from %s to %s on %s",
			p.Amount, coinType, c.cfg.Key, p.Recipient, p.ToChain),
	}
	switch {
	case withRelay:
		var swap uint64
		if toNative != nil {
			if !toNative.IsUint64() {
				return nil, fmt.Errorf("swap amount out of range for %s", c.cfg.Key)
			}
			swap = toNative.Uint64()
		}
		spec.function = "transfer_tokens_with_relay"
		spec.arguments = append(spec.arguments, fmt.Sprintf("%d", swap))
	case payload != nil:
		spec.function = "transfer_tokens_with_payload"
		spec.arguments = append(spec.arguments, "0x"+hex.EncodeToString(payload))
	default:
		spec.function = "transfer_tokens"
		spec.arguments = append(spec.arguments, fmt.Sprintf("%d", relayerFee))
	}

	return c.buildMoveCall(ctx, pkg, spec)
}

func (c *Context) PrepareSend(ctx context.Context, p bridge.SendParams) (bridge.PreparedTx, error) {
	return c.buildSend(ctx, p, nil, nil, false)
}

func (c *Context) Send(ctx context.Context, p bridge.SendParams) (*bridge.TxResult, error) {
	prepared, err := c.buildSend(ctx, p, nil, nil, false)
	if err != nil {
		return nil, err
	}
	return c.sendPrepared(ctx, "send", prepared)
}

func (c *Context) SendWithPayload(ctx context.Context, p bridge.SendParams, payload []byte) (*bridge.TxResult, error) {
	if payload == nil {
		payload = []byte{}
	}
	prepared, err := c.buildSend(ctx, p, payload, nil, false)
	if err != nil {
		return nil, err
	}
	return c.sendPrepared(ctx, "sendWithPayload", prepared)
}

func (c *Context) PrepareSendWithRelay(ctx context.Context, p bridge.RelaySendParams) (bridge.PreparedTx, error) {
	return c.buildSend(ctx, p.SendParams, nil, p.ToNativeTokenAmount, true)
}

func (c *Context) SendWithRelay(ctx context.Context, p bridge.RelaySendParams) (*bridge.TxResult, error) {
	prepared, err := c.buildSend(ctx, p.SendParams, nil, p.ToNativeTokenAmount, true)
	if err != nil {
		return nil, err
	}
	return c.sendPrepared(ctx, "sendWithRelay", prepared)
}

// buildRedeem assembles the complete-transfer entry call with the raw signed
// attestation. The coin type of the transferred asset selects the generic.
func (c *Context) buildRedeem(ctx context.Context, signedVAA []byte) (*preparedTx, error) {
	if err := c.requireSigner(); err != nil {
		return nil, err
	}
	pkg, err := c.entryPackage(ctx)
	if err != nil {
		return nil, err
	}
	v, err := message.ParseVAA(signedVAA)
	if err != nil {
		return nil, err
	}
	t, err := message.DecodeTransfer(v.Payload)
	if err != nil {
		return nil, err
	}
	coinType, err := c.coinTypeForUniversal(ctx, t.TokenChain, t.TokenAddress)
	if err != nil {
		return nil, err
	}
	if coinType == "" {
		return nil, fmt.Errorf("redeem on %s: %w", c.cfg.Key, bridge.ErrAssetNotRegistered)
	}

	return c.buildMoveCall(ctx, pkg, moveCallSpec{
		function: "complete_transfer",
		typeArgs: []interface{}{coinType},
		arguments: []interface{}{
			c.cfg.Contracts.TokenBridge,
			c.cfg.Contracts.CoreBridge,
			"0x" + hex.EncodeToString(signedVAA),
		},
		summary: fmt.Sprintf("redeem transfer of %s on %s", coinType, c.cfg.Key),
	})
}

func (c *Context) PrepareRedeem(ctx context.Context, signedVAA []byte) (bridge.PreparedTx, error) {
	return c.buildRedeem(ctx, signedVAA)
}

func (c *Context) Redeem(ctx context.Context, signedVAA []byte) (*bridge.TxResult, error) {
	prepared, err := c.buildRedeem(ctx, signedVAA)
	if err != nil {
		return nil, err
	}
	return c.sendPrepared(ctx, "redeem", prepared)
}
