package sei

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/wormhole-demo/bridge/bridge"
)

// preparedTx is a wasm execute message built but not yet broadcast.
type preparedTx struct {
	chain    bridge.ChainRef
	summary  string
	contract string
	msg      []byte
	funds    []Coin
}

func (p *preparedTx) Chain() bridge.ChainRef { return p.chain }
func (p *preparedTx) Summary() string        { return p.summary }

// assetInfo is the CosmWasm asset discriminated union.
type assetInfo struct {
	Token *struct {
		ContractAddr string `json:"contract_addr"`
	} `json:"token,omitempty"`
	NativeToken *struct {
		Denom string `json:"denom"`
	} `json:"native_token,omitempty"`
}

func cw20Asset(contract string) assetInfo {
	return assetInfo{Token: &struct {
		ContractAddr string `json:"contract_addr"`
	}{ContractAddr: contract}}
}

func nativeAsset(denom string) assetInfo {
	return assetInfo{NativeToken: &struct {
		Denom string `json:"denom"`
	}{Denom: denom}}
}

// buildSend assembles the initiate-transfer execution. Native denoms attach
// as funds; CW20 assets get the token bridge's allowance raised first so the
// contract can pull the amount.
func (c *Context) buildSend(ctx context.Context, p bridge.SendParams, payload []byte) (*preparedTx, error) {
	if err := c.requireBroadcaster(); err != nil {
		return nil, err
	}
	if p.Amount == nil {
		return nil, fmt.Errorf("amount required on %s", c.cfg.Key)
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

	var info assetInfo
	var funds []Coin
	if p.Token.IsNative() {
		info = nativeAsset(NativeDenom)
		funds = []Coin{{Denom: NativeDenom, Amount: p.Amount.Dec()}}
	} else {
		local, err := c.registry.MustGetForeignAsset(ctx, p.Token, c.cfg.Ref())
		if err != nil {
			return nil, err
		}
		if _, err := c.Approve(ctx, c.cfg.Contracts.TokenBridge, local, p.Amount); err != nil {
			return nil, err
		}
		info = cw20Asset(local)
	}

	fee := uint256.NewInt(0)
	if p.RelayerFee != nil {
		fee = p.RelayerFee
	}

	inner := map[string]interface{}{
		"asset": map[string]interface{}{
			"info":   info,
			"amount": p.Amount.Dec(),
		},
		"recipient_chain": uint16(toChainID),
		"recipient":       base64.StdEncoding.EncodeToString(target[:]),
		"fee":             fee.Dec(),
		"nonce":           0,
	}
	name := "initiate_transfer"
	if payload != nil {
		name = "initiate_transfer_with_payload"
		inner["payload"] = base64.StdEncoding.EncodeToString(payload)
	}
	msg, err := json.Marshal(map[string]interface{}{name: inner})
	if err != nil {
		return nil, err
	}

	return &preparedTx{
		chain: c.cfg.Ref(),
		summary: fmt.Sprintf("transfer %s from %s to %s on %s",
			p.Amount, c.cfg.Key, p.Recipient, p.ToChain),
		contract: c.cfg.Contracts.TokenBridge,
		msg:      msg,
		funds:    funds,
	}, nil
}

// sendPrepared broadcasts through the caller's wallet. The LCD has no
// execution dry-run, so submission itself is the validity check here.
func (c *Context) sendPrepared(ctx context.Context, op string, prepared *preparedTx) (*bridge.TxResult, error) {
	txHash, err := c.broadcaster.ExecuteContract(ctx, prepared.contract, prepared.msg, prepared.funds)
	if err != nil {
		return nil, fmt.Errorf("failed to broadcast %s on %s: %w", op, c.cfg.Key, err)
	}
	c.logger.Info("Transaction broadcast",
		zap.String("op", op),
		zap.String("txHash", txHash))
	return &bridge.TxResult{TxID: txHash}, nil
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

// No relayer contract family is deployed on this chain kind.

func (c *Context) PrepareSendWithRelay(ctx context.Context, p bridge.RelaySendParams) (bridge.PreparedTx, error) {
	return nil, fmt.Errorf("%s: %w", c.cfg.Key, bridge.ErrNoRelayerContract)
}

func (c *Context) SendWithRelay(ctx context.Context, p bridge.RelaySendParams) (*bridge.TxResult, error) {
	return nil, fmt.Errorf("%s: %w", c.cfg.Key, bridge.ErrNoRelayerContract)
}

func (c *Context) buildRedeem(signedVAA []byte) (*preparedTx, error) {
	if err := c.requireBroadcaster(); err != nil {
		return nil, err
	}
	msg, err := json.Marshal(map[string]interface{}{
		"submit_vaa": map[string]string{
			"data": base64.StdEncoding.EncodeToString(signedVAA),
		},
	})
	if err != nil {
		return nil, err
	}
	return &preparedTx{
		chain:    c.cfg.Ref(),
		summary:  fmt.Sprintf("redeem transfer on %s", c.cfg.Key),
		contract: c.cfg.Contracts.TokenBridge,
		msg:      msg,
	}, nil
}

func (c *Context) PrepareRedeem(ctx context.Context, signedVAA []byte) (bridge.PreparedTx, error) {
	return c.buildRedeem(signedVAA)
}

func (c *Context) Redeem(ctx context.Context, signedVAA []byte) (*bridge.TxResult, error) {
	prepared, err := c.buildRedeem(signedVAA)
	if err != nil {
		return nil, err
	}
	return c.sendPrepared(ctx, "redeem", prepared)
}
