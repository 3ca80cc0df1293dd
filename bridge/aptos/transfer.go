package aptos

import (
	"context"
	"fmt"

	aptoslib "github.com/aptos-labs/aptos-go-sdk"
	"github.com/aptos-labs/aptos-go-sdk/bcs"
	"go.uber.org/zap"

	"github.com/wormhole-demo/bridge/bridge"
	"github.com/wormhole-demo/bridge/bridge/message"
)

// preparedTx holds an entry-function payload built but not yet signed.
type preparedTx struct {
	chain   bridge.ChainRef
	summary string
	payload aptoslib.TransactionPayload
}

func (p *preparedTx) Chain() bridge.ChainRef { return p.chain }
func (p *preparedTx) Summary() string        { return p.summary }

// buildSend assembles the token bridge transfer entry function.
func (c *Context) buildSend(ctx context.Context, p bridge.SendParams, payload []byte) (*preparedTx, error) {
	if err := c.requireSigner(); err != nil {
		return nil, err
	}
	if p.Amount == nil || !p.Amount.IsUint64() {
		return nil, fmt.Errorf("amount out of range for %s", c.cfg.Key)
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
	typeTag, err := aptoslib.ParseTypeTag(coinType)
	if err != nil {
		return nil, fmt.Errorf("coin type %q: %w", coinType, err)
	}

	amountArg, err := bcs.SerializeU64(p.Amount.Uint64())
	if err != nil {
		return nil, err
	}
	chainArg, err := bcs.SerializeU64(uint64(toChainID))
	if err != nil {
		return nil, err
	}
	recipientArg, err := bcs.SerializeBytes(target[:])
	if err != nil {
		return nil, err
	}
	nonceArg, err := bcs.SerializeU64(0)
	if err != nil {
		return nil, err
	}

	var function string
	var args [][]byte
	if payload != nil {
		function = "transfer_tokens_with_payload"
		payloadArg, err := bcs.SerializeBytes(payload)
		if err != nil {
			return nil, err
		}
		args = [][]byte{amountArg, chainArg, recipientArg, nonceArg, payloadArg}
	} else {
		function = "transfer_tokens_entry"
		var relayerFee uint64
		if p.RelayerFee != nil {
			if !p.RelayerFee.IsUint64() {
				return nil, fmt.Errorf("relayer fee out of range for %s", c.cfg.Key)
			}
			relayerFee = p.RelayerFee.Uint64()
		}
		feeArg, err := bcs.SerializeU64(relayerFee)
		if err != nil {
			return nil, err
		}
		args = [][]byte{amountArg, chainArg, recipientArg, feeArg, nonceArg}
	}

	entry := &aptoslib.EntryFunction{
		Module:   aptoslib.ModuleId{Address: c.tbAddr, Name: "transfer_tokens"},
		Function: function,
		ArgTypes: []aptoslib.TypeTag{*typeTag},
		Args:     args,
	}
	return &preparedTx{
		chain: c.cfg.Ref(),
		summary: fmt.Sprintf("transfer %s of %s from %s to %s on %s",
			p.Amount, coinType, c.cfg.Key, p.Recipient, p.ToChain),
		payload: aptoslib.TransactionPayload{Payload: entry},
	}, nil
}

// sendPrepared simulates the payload, then signs and submits it.
func (c *Context) sendPrepared(ctx context.Context, op string, prepared *preparedTx) (*bridge.TxResult, error) {
	raw, err := c.client.BuildTransaction(c.account.Address, prepared.payload)
	if err != nil {
		return nil, fmt.Errorf("build %s on %s: %w", op, c.cfg.Key, err)
	}
	sims, err := c.client.SimulateTransaction(raw, c.account)
	if err != nil {
		return nil, &bridge.SimulationError{Chain: c.cfg.Key, Op: op, Reason: err.Error()}
	}
	if len(sims) > 0 && !sims[0].Success {
		return nil, &bridge.SimulationError{Chain: c.cfg.Key, Op: op, Reason: sims[0].VmStatus}
	}

	resp, err := c.client.BuildSignAndSubmitTransaction(c.account, prepared.payload)
	if err != nil {
		return nil, fmt.Errorf("failed to send transaction: %w", err)
	}
	c.logger.Info("Transaction submitted",
		zap.String("op", op),
		zap.String("hash", resp.Hash))
	return &bridge.TxResult{TxID: resp.Hash}, nil
}

func (c *Context) PrepareSend(ctx context.Context, p bridge.SendParams) (bridge.PreparedTx, error) {
	return c.buildSend(ctx, p, nil)
}

func (c *Context) Send(ctx context.Context, p bridge.SendParams) (*bridge.TxResult, error) {
	prepared, err := c.buildSend(ctx, p, nil)
	if err != nil {
		return nil, err
	}
	return c.sendPrepared(ctx, "send", prepared)
}

func (c *Context) SendWithPayload(ctx context.Context, p bridge.SendParams, payload []byte) (*bridge.TxResult, error) {
	if payload == nil {
		payload = []byte{}
	}
	prepared, err := c.buildSend(ctx, p, payload)
	if err != nil {
		return nil, err
	}
	return c.sendPrepared(ctx, "sendWithPayload", prepared)
}

// buildRedeem assembles the complete-transfer entry function, registering the
// recipient's coin store along the way.
func (c *Context) buildRedeem(ctx context.Context, signedVAA []byte) (*preparedTx, error) {
	if err := c.requireSigner(); err != nil {
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
	typeTag, err := aptoslib.ParseTypeTag(coinType)
	if err != nil {
		return nil, fmt.Errorf("coin type %q: %w", coinType, err)
	}
	vaaArg, err := bcs.SerializeBytes(signedVAA)
	if err != nil {
		return nil, err
	}

	entry := &aptoslib.EntryFunction{
		Module:   aptoslib.ModuleId{Address: c.tbAddr, Name: "complete_transfer"},
		Function: "submit_vaa_and_register_entry",
		ArgTypes: []aptoslib.TypeTag{*typeTag},
		Args:     [][]byte{vaaArg},
	}
	return &preparedTx{
		chain: c.cfg.Ref(),
		summary: fmt.Sprintf("redeem transfer seq %d from chain %d on %s",
			v.Sequence, v.EmitterChain, c.cfg.Key),
		payload: aptoslib.TransactionPayload{Payload: entry},
	}, nil
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
