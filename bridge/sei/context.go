// Package sei implements the chain capability contract for Sei-like CosmWasm
// chains over the LCD REST API with gjson, the way guardian watchers read
// these chains. Transaction signing stays with the caller through the
// Broadcaster interface.
package sei

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/holiman/uint256"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/wormhole-demo/bridge/bridge"
	"github.com/wormhole-demo/bridge/bridge/message"
)

// NativeDenom is the gas denom backing the native-asset sentinel.
const NativeDenom = "usei"

const confirmPollInterval = 2 * time.Second

// Coin is a denom amount attached to an execution as funds.
type Coin struct {
	Denom  string
	Amount string
}

// Broadcaster signs and broadcasts contract executions. The context builds
// every execute message; key management and the cosmos tx envelope stay with
// the caller's connected wallet.
type Broadcaster interface {
	// SenderAddress is the bech32 account the executions are signed with.
	SenderAddress() string
	// ExecuteContract broadcasts a wasm execute of msg against contract and
	// returns the transaction hash.
	ExecuteContract(ctx context.Context, contract string, msg []byte, funds []Coin) (string, error)
}

// Context is the Sei chain backend.
type Context struct {
	cfg         bridge.ChainConfig
	registry    *bridge.Registry
	lcdURL      string
	http        *http.Client
	broadcaster Broadcaster // nil when read-only
	logger      *zap.Logger
}

var _ bridge.ChainContext = (*Context)(nil)

// New wires a context against an LCD endpoint. A nil broadcaster yields a
// read-only context.
func New(logger *zap.Logger, registry *bridge.Registry, cfg bridge.ChainConfig, lcdURL string, broadcaster Broadcaster) (*Context, error) {
	c := &Context{
		cfg:         cfg,
		registry:    registry,
		lcdURL:      strings.TrimRight(lcdURL, "/"),
		http:        &http.Client{Timeout: 30 * time.Second},
		broadcaster: broadcaster,
		logger:      logger.With(zap.String("component", "SeiContext"), zap.String("chain", cfg.Key)),
	}
	c.logger.Info("Using LCD endpoint", zap.String("lcdURL", lcdURL))
	if broadcaster != nil {
		c.logger.Info("Broadcaster configured", zap.String("sender", broadcaster.SenderAddress()))
	}
	return c, nil
}

func (c *Context) Kind() bridge.ContextKind   { return bridge.KindSei }
func (c *Context) Config() bridge.ChainConfig { return c.cfg }

// hrp is the bech32 prefix, taken from the configured token bridge contract.
func (c *Context) hrp() string {
	if hrp, _, err := decodeBech32(c.cfg.Contracts.TokenBridge); err == nil {
		return hrp
	}
	return "sei"
}

func (c *Context) requireBroadcaster() error {
	if c.broadcaster == nil {
		return fmt.Errorf("%s: %w", c.cfg.Key, bridge.ErrNoSigner)
	}
	return nil
}

// lcdGet fetches an LCD path and returns the parsed body with the status.
func (c *Context) lcdGet(ctx context.Context, path string) (int, gjson.Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.lcdURL+path, nil)
	if err != nil {
		return 0, gjson.Result{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, gjson.Result{}, fmt.Errorf("GET %s on %s: %w", path, c.cfg.Key, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, gjson.Result{}, fmt.Errorf("GET %s on %s: %w", path, c.cfg.Key, err)
	}
	return resp.StatusCode, gjson.ParseBytes(raw), nil
}

// smartQuery runs a contract smart query and returns the "data" subtree.
// The gRPC gateway maps contract-level rejections to 400 and 404; those
// surface as queryErr true so callers can map "not registered" style answers
// to absence. Any other status is a node failure and comes back as a plain
// error.
func (c *Context) smartQuery(ctx context.Context, contract, query string) (gjson.Result, bool, error) {
	encoded := url.PathEscape(base64.StdEncoding.EncodeToString([]byte(query)))
	status, body, err := c.lcdGet(ctx, fmt.Sprintf("/cosmwasm/wasm/v1/contract/%s/smart/%s", contract, encoded))
	if err != nil {
		return gjson.Result{}, false, err
	}
	switch {
	case status == http.StatusOK:
		return body.Get("data"), false, nil
	case status == http.StatusBadRequest || status == http.StatusNotFound:
		return gjson.Result{}, true, fmt.Errorf("query %s on %s: %s", contract, c.cfg.Key, body.Get("message").String())
	default:
		return gjson.Result{}, false, fmt.Errorf("query %s on %s: status %d: %s",
			contract, c.cfg.Key, status, body.Get("message").String())
	}
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
	query := fmt.Sprintf(`{"wrapped_registry":{"chain":%d,"address":"%s"}}`,
		uint16(homeID), base64.StdEncoding.EncodeToString(universal[:]))
	data, queryErr, err := c.smartQuery(ctx, c.cfg.Contracts.TokenBridge, query)
	if queryErr {
		// The registry rejects lookups of assets that were never attested.
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return data.Get("address").String(), nil
}

// FetchTokenDecimals accepts a CW20 contract address or a bank denom.
func (c *Context) FetchTokenDecimals(ctx context.Context, assetAddress string) (uint8, error) {
	if _, _, err := decodeBech32(assetAddress); err != nil {
		// Bank denoms have fixed chain-level decimals.
		return c.cfg.NativeTokenDecimals, nil
	}
	data, _, err := c.smartQuery(ctx, assetAddress, `{"token_info":{}}`)
	if err != nil {
		return 0, fmt.Errorf("token info of %s on %s: %w", assetAddress, c.cfg.Key, err)
	}
	return uint8(data.Get("decimals").Uint()), nil
}

func (c *Context) GetNativeBalance(ctx context.Context, wallet string) (*uint256.Int, error) {
	status, body, err := c.lcdGet(ctx,
		fmt.Sprintf("/cosmos/bank/v1beta1/balances/%s/by_denom?denom=%s", wallet, NativeDenom))
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("balance of %s on %s: %s", wallet, c.cfg.Key, body.Get("message").String())
	}
	out := new(uint256.Int)
	amount := body.Get("balance.amount").String()
	if amount == "" {
		amount = "0"
	}
	if err := out.SetFromDecimal(amount); err != nil {
		return nil, fmt.Errorf("parse balance %q: %w", amount, err)
	}
	return out, nil
}

func (c *Context) GetTokenBalance(ctx context.Context, wallet string, tokenID bridge.TokenID) (*uint256.Int, error) {
	local, err := c.GetForeignAsset(ctx, tokenID, c.cfg.Ref())
	if err != nil {
		return nil, err
	}
	if local == "" {
		return nil, nil
	}
	data, _, err := c.smartQuery(ctx, local, fmt.Sprintf(`{"balance":{"address":"%s"}}`, wallet))
	if err != nil {
		return nil, fmt.Errorf("balance query on %s: %w", c.cfg.Key, err)
	}
	out := new(uint256.Int)
	if err := out.SetFromDecimal(data.Get("balance").String()); err != nil {
		return nil, fmt.Errorf("parse balance: %w", err)
	}
	return out, nil
}

// Approve raises the CW20 allowance of spender when the current one does not
// cover amount. Bank denoms attach as funds instead and need no allowance.
func (c *Context) Approve(ctx context.Context, spender, asset string, amount *uint256.Int) (*bridge.TxResult, error) {
	if err := c.requireBroadcaster(); err != nil {
		return nil, err
	}
	if _, _, err := decodeBech32(asset); err != nil {
		return nil, nil
	}
	target := amount
	if target == nil {
		target = new(uint256.Int).Not(uint256.NewInt(0))
	}

	data, _, err := c.smartQuery(ctx, asset, fmt.Sprintf(
		`{"allowance":{"owner":"%s","spender":"%s"}}`,
		c.broadcaster.SenderAddress(), spender))
	if err == nil {
		current := new(uint256.Int)
		if err := current.SetFromDecimal(data.Get("allowance").String()); err == nil && current.Cmp(target) >= 0 {
			c.logger.Debug("Allowance already sufficient",
				zap.String("asset", asset),
				zap.String("spender", spender))
			return nil, nil
		}
	}

	msg := fmt.Sprintf(`{"increase_allowance":{"spender":"%s","amount":"%s"}}`, spender, target.Dec())
	txHash, err := c.broadcaster.ExecuteContract(ctx, asset, []byte(msg), nil)
	if err != nil {
		return nil, fmt.Errorf("increase allowance on %s: %w", c.cfg.Key, err)
	}
	return &bridge.TxResult{TxID: txHash}, nil
}

// IsTransferCompleted asks the token bridge whether it has redeemed the
// attestation.
func (c *Context) IsTransferCompleted(ctx context.Context, signedVAA []byte) (bool, error) {
	query := fmt.Sprintf(`{"is_vaa_redeemed":{"vaa":"%s"}}`,
		base64.StdEncoding.EncodeToString(signedVAA))
	data, _, err := c.smartQuery(ctx, c.cfg.Contracts.TokenBridge, query)
	if err != nil {
		return false, err
	}
	return data.Get("is_redeemed").Bool(), nil
}

func (c *Context) DecodeRelayerPayload(payload []byte) (*message.RelayerPayload, error) {
	return message.DecodeRelayerPayload(payload)
}

// WaitForConfirmation polls until the transaction executed and the chain
// advanced FinalityThreshold blocks past it.
func (c *Context) WaitForConfirmation(ctx context.Context, txID string) error {
	var txHeight uint64
	for txHeight == 0 {
		status, body, err := c.lcdGet(ctx, "/cosmos/tx/v1beta1/txs/"+txID)
		if err != nil {
			return err
		}
		if status == http.StatusOK {
			if code := body.Get("tx_response.code").Uint(); code != 0 {
				return fmt.Errorf("transaction %s failed: %s", txID, body.Get("tx_response.raw_log").String())
			}
			txHeight = body.Get("tx_response.height").Uint()
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(confirmPollInterval):
		}
	}

	for {
		_, block, err := c.lcdGet(ctx, "/cosmos/base/tendermint/v1beta1/blocks/latest")
		if err != nil {
			return err
		}
		if block.Get("block.header.height").Uint() >= txHeight+c.cfg.FinalityThreshold {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(confirmPollInterval):
		}
	}
}

// No relayer contract family is deployed on this chain kind.

func (c *Context) CalculateMaxSwapAmount(ctx context.Context, token bridge.TokenID) (*uint256.Int, error) {
	return nil, fmt.Errorf("%s: %w", c.cfg.Key, bridge.ErrNoRelayerContract)
}

func (c *Context) CalculateNativeTokenAmt(ctx context.Context, token bridge.TokenID, amount *uint256.Int) (*uint256.Int, error) {
	return nil, fmt.Errorf("%s: %w", c.cfg.Key, bridge.ErrNoRelayerContract)
}

func (c *Context) GetRelayerFee(ctx context.Context, dest bridge.ChainRef, token bridge.TokenID) (*uint256.Int, error) {
	return nil, fmt.Errorf("%s: %w", c.cfg.Key, bridge.ErrNoRelayerContract)
}
