// Package sui implements the chain capability contract for Sui-like chains
// on top of block-vision/sui-go-sdk, with raw JSON-RPC and gjson for the
// dynamic-field registry lookups the SDK has no typed surface for.
package sui

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/block-vision/sui-go-sdk/models"
	"github.com/block-vision/sui-go-sdk/signer"
	suisdk "github.com/block-vision/sui-go-sdk/sui"
	"github.com/holiman/uint256"
	"github.com/tidwall/gjson"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
	"go.uber.org/zap"

	"github.com/wormhole-demo/bridge/bridge"
	"github.com/wormhole-demo/bridge/bridge/message"
)

// NativeCoinType is the gas coin, the native-asset sentinel's concrete type.
const NativeCoinType = "0x2::sui::SUI"

const (
	gasBudget           = "100000000"
	confirmPollInterval = 2 * time.Second
)

// Context is the Sui chain backend. Contracts.CoreBridge,
// Contracts.TokenBridge and Contracts.Relayer are state object ids; the
// relayer state belongs to the integration package exposing the entry
// wrappers and carries the fee tables the quotes read.
type Context struct {
	cfg      bridge.ChainConfig
	registry *bridge.Registry
	client   suisdk.ISuiAPI
	signer   *signer.Signer // nil when read-only
	rpcURL   string
	http     *http.Client
	logger   *zap.Logger

	mu          sync.Mutex
	tokenPkg    string // token bridge package id, resolved lazily
	corePkg     string // core bridge package id, resolved lazily
	coinTypesID string // coin_types table object id
	coinTypeKey string // coin_types table key type

	relayerPkg      string // integration package id, resolved lazily
	relayerTokensID string // registered_tokens table object id
	relayerFeesID   string // relayer_fees table object id
	swapRatePrec    *uint256.Int
	relayerFeePrec  *uint256.Int
}

var _ bridge.ChainContext = (*Context)(nil)

// New connects to the chain's RPC endpoint. An empty seed yields a read-only
// context.
func New(logger *zap.Logger, registry *bridge.Registry, cfg bridge.ChainConfig, rpcURL string, seed []byte) (*Context, error) {
	c := &Context{
		cfg:      cfg,
		registry: registry,
		rpcURL:   rpcURL,
		http:     &http.Client{Timeout: 30 * time.Second},
		logger:   logger.With(zap.String("component", "SuiContext"), zap.String("chain", cfg.Key)),
	}

	c.logger.Info("Connecting to Sui", zap.String("rpcURL", rpcURL))
	c.client = suisdk.NewSuiClient(rpcURL)

	if len(seed) > 0 {
		c.signer = signer.NewSigner(seed)
		c.logger.Info("Signer configured", zap.String("address", c.signer.Address))
	}

	return c, nil
}

func (c *Context) Kind() bridge.ContextKind   { return bridge.KindSui }
func (c *Context) Config() bridge.ChainConfig { return c.cfg }

func (c *Context) requireSigner() error {
	if c.signer == nil {
		return fmt.Errorf("%s: %w", c.cfg.Key, bridge.ErrNoSigner)
	}
	return nil
}

// rpcCall performs a raw JSON-RPC request and returns the parsed response.
func (c *Context) rpcCall(ctx context.Context, method string, params ...interface{}) (gjson.Result, error) {
	if params == nil {
		params = []interface{}{}
	}
	body, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	})
	if err != nil {
		return gjson.Result{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(body))
	if err != nil {
		return gjson.Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("%s on %s: %w", method, c.cfg.Key, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("%s on %s: %w", method, c.cfg.Key, err)
	}
	parsed := gjson.ParseBytes(raw)
	if e := parsed.Get("error"); e.Exists() {
		return gjson.Result{}, fmt.Errorf("%s on %s: %s", method, c.cfg.Key, e.Get("message").String())
	}
	return parsed.Get("result"), nil
}

// missingObject reports whether an object read answered with an in-band
// absence code instead of object data. Transport and node failures never
// reach here, rpcCall already turned those into errors.
func missingObject(res gjson.Result) bool {
	switch res.Get("error.code").String() {
	case "dynamicFieldNotFound", "notExists", "deleted":
		return true
	}
	return false
}

// objectType returns the full Move type of an object.
func (c *Context) objectType(ctx context.Context, objectID string) (string, error) {
	res, err := c.rpcCall(ctx, "sui_getObject", objectID,
		map[string]interface{}{"showType": true})
	if err != nil {
		return "", err
	}
	t := res.Get("data.type")
	if !t.Exists() {
		return "", fmt.Errorf("object %s has no type", objectID)
	}
	return t.String(), nil
}

// resolvePackages discovers the core and token bridge package ids from their
// state objects, plus the coin_types registry table. Results are cached.
func (c *Context) resolvePackages(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tokenPkg != "" && c.corePkg != "" {
		return nil
	}

	coreType, err := c.objectType(ctx, c.cfg.Contracts.CoreBridge)
	if err != nil {
		return fmt.Errorf("core bridge state: %w", err)
	}
	c.corePkg = strings.SplitN(coreType, "::", 2)[0]

	res, err := c.rpcCall(ctx, "sui_getObject", c.cfg.Contracts.TokenBridge,
		map[string]interface{}{"showType": true, "showContent": true})
	if err != nil {
		return fmt.Errorf("token bridge state: %w", err)
	}
	tbType := res.Get("data.type")
	if !tbType.Exists() {
		return fmt.Errorf("token bridge state %s has no type", c.cfg.Contracts.TokenBridge)
	}
	c.tokenPkg = strings.SplitN(tbType.String(), "::", 2)[0]

	coinTypes := res.Get("data.content.fields.token_registry.fields.coin_types")
	c.coinTypesID = coinTypes.Get("fields.id.id").String()
	// Table<KeyType, String>: the key type sits between the angle bracket and
	// the comma.
	tableType := coinTypes.Get("type").String()
	if open := strings.Index(tableType, "<"); open >= 0 {
		if comma := strings.Index(tableType[open:], ","); comma >= 0 {
			c.coinTypeKey = strings.TrimSpace(tableType[open+1 : open+comma])
		}
	}
	if c.coinTypesID == "" || c.coinTypeKey == "" {
		return fmt.Errorf("token bridge state %s has no coin type registry", c.cfg.Contracts.TokenBridge)
	}
	return nil
}

// coinTypeFor resolves a token's concrete coin type through the on-chain
// registry. Empty when the asset was never registered here.
func (c *Context) coinTypeFor(ctx context.Context, tokenID bridge.TokenID) (string, error) {
	if tokenID.IsNative() {
		return NativeCoinType, nil
	}
	homeID, err := tokenID.Chain.ChainID()
	if err != nil {
		return "", err
	}
	universal, err := c.registry.FormatTokenAddress(tokenID)
	if err != nil {
		return "", err
	}
	return c.coinTypeForUniversal(ctx, homeID, universal)
}

func (c *Context) coinTypeForUniversal(ctx context.Context, homeID vaaLib.ChainID, universal vaaLib.Address) (string, error) {
	if err := c.resolvePackages(ctx); err != nil {
		return "", err
	}

	addr := make([]interface{}, len(universal))
	for i, b := range universal {
		addr[i] = b
	}
	res, err := c.rpcCall(ctx, "suix_getDynamicFieldObject", c.coinTypesID,
		map[string]interface{}{
			"type": c.coinTypeKey,
			"value": map[string]interface{}{
				"addr":  addr,
				"chain": uint16(homeID),
			},
		})
	if err != nil {
		return "", err
	}
	if missingObject(res) {
		return "", nil
	}
	coinType := res.Get("data.content.fields.value").String()
	if coinType == "" {
		return "", fmt.Errorf("registry entry for chain %d on %s has no coin type", homeID, c.cfg.Key)
	}
	if !strings.HasPrefix(coinType, "0x") {
		coinType = "0x" + coinType
	}
	return coinType, nil
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
	return c.coinTypeFor(ctx, tokenID)
}

// FetchTokenDecimals accepts a coin type, as returned by GetForeignAsset for
// assets living on this chain.
func (c *Context) FetchTokenDecimals(ctx context.Context, assetAddress string) (uint8, error) {
	md, err := c.client.SuiXGetCoinMetadata(ctx, models.SuiXGetCoinMetadataRequest{
		CoinType: assetAddress,
	})
	if err != nil {
		return 0, fmt.Errorf("coin metadata of %s on %s: %w", assetAddress, c.cfg.Key, err)
	}
	return uint8(md.Decimals), nil
}

func (c *Context) balanceOf(ctx context.Context, wallet, coinType string) (*uint256.Int, error) {
	resp, err := c.client.SuiXGetBalance(ctx, models.SuiXGetBalanceRequest{
		Owner:    wallet,
		CoinType: coinType,
	})
	if err != nil {
		return nil, fmt.Errorf("balance of %s on %s: %w", wallet, c.cfg.Key, err)
	}
	out := new(uint256.Int)
	if err := out.SetFromDecimal(resp.TotalBalance); err != nil {
		return nil, fmt.Errorf("parse balance %q: %w", resp.TotalBalance, err)
	}
	return out, nil
}

func (c *Context) GetNativeBalance(ctx context.Context, wallet string) (*uint256.Int, error) {
	return c.balanceOf(ctx, wallet, NativeCoinType)
}

func (c *Context) GetTokenBalance(ctx context.Context, wallet string, tokenID bridge.TokenID) (*uint256.Int, error) {
	coinType, err := c.coinTypeFor(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	if coinType == "" {
		return nil, nil
	}
	return c.balanceOf(ctx, wallet, coinType)
}

// Approve is a no-op: the object ownership model has no allowance concept,
// coins move by value in the transaction itself.
func (c *Context) Approve(ctx context.Context, spender, asset string, amount *uint256.Int) (*bridge.TxResult, error) {
	return nil, nil
}

// IsTransferCompleted checks the consumed-attestation table under the token
// bridge state for the attestation's digest.
func (c *Context) IsTransferCompleted(ctx context.Context, signedVAA []byte) (bool, error) {
	digest, err := message.VAADigest(signedVAA)
	if err != nil {
		return false, err
	}
	res, err := c.rpcCall(ctx, "sui_getObject", c.cfg.Contracts.TokenBridge,
		map[string]interface{}{"showContent": true})
	if err != nil {
		return false, err
	}
	itemsID := res.Get("data.content.fields.consumed_vaas.fields.hashes.fields.items.fields.id.id").String()
	if itemsID == "" {
		return false, fmt.Errorf("token bridge state %s has no consumed table", c.cfg.Contracts.TokenBridge)
	}

	bytesVal := make([]interface{}, len(digest))
	for i, b := range digest {
		bytesVal[i] = b
	}
	entry, err := c.rpcCall(ctx, "suix_getDynamicFieldObject", itemsID,
		map[string]interface{}{
			"type":  "vector<u8>",
			"value": bytesVal,
		})
	if err != nil {
		return false, err
	}
	if missingObject(entry) {
		return false, nil
	}
	if !entry.Get("data").Exists() {
		return false, fmt.Errorf("consumed table lookup on %s: %s", c.cfg.Key, entry.Get("error.code").String())
	}
	return true, nil
}

func (c *Context) DecodeRelayerPayload(payload []byte) (*message.RelayerPayload, error) {
	return message.DecodeRelayerPayload(payload)
}

// pendingTxMarker is how full nodes report a digest they have not indexed
// yet; any other lookup failure is a real error.
const pendingTxMarker = "Could not find the referenced transaction"

// WaitForConfirmation polls until the transaction lands in a checkpoint.
// Checkpointed transactions are final.
func (c *Context) WaitForConfirmation(ctx context.Context, txID string) error {
	for {
		res, err := c.rpcCall(ctx, "sui_getTransactionBlock", txID,
			map[string]interface{}{"showEffects": true})
		switch {
		case err == nil && res.Get("checkpoint").String() != "":
			return nil
		case err != nil && !strings.Contains(err.Error(), pendingTxMarker):
			return fmt.Errorf("transaction %s: %w", txID, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(confirmPollInterval):
		}
	}
}

// resolveRelayer discovers the integration package id and the fee tables
// from the relayer state object. Results are cached.
func (c *Context) resolveRelayer(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.relayerPkg != "" {
		return nil
	}
	if c.cfg.Contracts.Relayer == "" {
		return fmt.Errorf("%s: %w", c.cfg.Key, bridge.ErrNoRelayerContract)
	}

	res, err := c.rpcCall(ctx, "sui_getObject", c.cfg.Contracts.Relayer,
		map[string]interface{}{"showType": true, "showContent": true})
	if err != nil {
		return fmt.Errorf("relayer state: %w", err)
	}
	stateType := res.Get("data.type")
	if !stateType.Exists() {
		return fmt.Errorf("relayer state %s has no type", c.cfg.Contracts.Relayer)
	}

	fields := res.Get("data.content.fields")
	c.relayerTokensID = fields.Get("registered_tokens.fields.id.id").String()
	c.relayerFeesID = fields.Get("relayer_fees.fields.id.id").String()
	c.swapRatePrec = uint256.NewInt(fields.Get("swap_rate_precision").Uint())
	c.relayerFeePrec = uint256.NewInt(fields.Get("relayer_fee_precision").Uint())
	if c.relayerTokensID == "" || c.relayerFeesID == "" ||
		c.swapRatePrec.IsZero() || c.relayerFeePrec.IsZero() {
		return fmt.Errorf("relayer state %s has no fee tables", c.cfg.Contracts.Relayer)
	}
	c.relayerPkg = strings.SplitN(stateType.String(), "::", 2)[0]
	return nil
}

// relayerTokenInfo reads a coin's row from the registered_tokens table: the
// USD swap rate scaled by swap_rate_precision, and the swap cap in gas-coin
// units.
func (c *Context) relayerTokenInfo(ctx context.Context, coinType string) (swapRate, maxNativeSwap *uint256.Int, err error) {
	res, err := c.rpcCall(ctx, "suix_getDynamicFieldObject", c.relayerTokensID,
		map[string]interface{}{
			"type":  "0x1::string::String",
			"value": strings.TrimPrefix(coinType, "0x"),
		})
	if err != nil {
		return nil, nil, err
	}
	if missingObject(res) {
		return nil, nil, fmt.Errorf("%s not registered with relayer on %s", coinType, c.cfg.Key)
	}
	row := res.Get("data.content.fields.value.fields")
	swapRate = new(uint256.Int)
	if err := swapRate.SetFromDecimal(row.Get("swap_rate").String()); err != nil {
		return nil, nil, fmt.Errorf("parse swap rate of %s: %w", coinType, err)
	}
	maxNativeSwap = new(uint256.Int)
	if err := maxNativeSwap.SetFromDecimal(row.Get("max_native_swap_amount").String()); err != nil {
		return nil, nil, fmt.Errorf("parse swap cap of %s: %w", coinType, err)
	}
	return swapRate, maxNativeSwap, nil
}

// nativeSwapRate is the gas-coin price over the token price, scaled by
// swap_rate_precision.
func (c *Context) nativeSwapRate(ctx context.Context, tokenSwapRate *uint256.Int) (*uint256.Int, error) {
	suiRate, _, err := c.relayerTokenInfo(ctx, NativeCoinType)
	if err != nil {
		return nil, err
	}
	if tokenSwapRate.IsZero() {
		return nil, fmt.Errorf("zero swap rate on %s", c.cfg.Key)
	}
	rate := new(uint256.Int).Mul(c.swapRatePrec, suiRate)
	return rate.Div(rate, tokenSwapRate), nil
}

func pow10(exp uint8) *uint256.Int {
	return new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(exp)))
}

// quoteInputs resolves the registered coin type, its fee table row and its
// on-chain decimals for the quote math below.
func (c *Context) quoteInputs(ctx context.Context, token bridge.TokenID) (coinType string, swapRate, maxNativeSwap *uint256.Int, decimals uint8, err error) {
	if err = c.resolveRelayer(ctx); err != nil {
		return "", nil, nil, 0, err
	}
	coinType, err = c.coinTypeFor(ctx, token)
	if err != nil {
		return "", nil, nil, 0, err
	}
	if coinType == "" {
		return "", nil, nil, 0, fmt.Errorf("%s on %s: %w", token, c.cfg.Key, bridge.ErrAssetNotRegistered)
	}
	swapRate, maxNativeSwap, err = c.relayerTokenInfo(ctx, coinType)
	if err != nil {
		return "", nil, nil, 0, err
	}
	decimals, err = c.FetchTokenDecimals(ctx, coinType)
	if err != nil {
		return "", nil, nil, 0, err
	}
	return coinType, swapRate, maxNativeSwap, decimals, nil
}

// CalculateMaxSwapAmount converts the token's native swap cap into token
// units at the state's swap rates.
func (c *Context) CalculateMaxSwapAmount(ctx context.Context, token bridge.TokenID) (*uint256.Int, error) {
	_, swapRate, maxNativeSwap, decimals, err := c.quoteInputs(ctx, token)
	if err != nil {
		return nil, err
	}
	nativeRate, err := c.nativeSwapRate(ctx, swapRate)
	if err != nil {
		return nil, err
	}
	num := new(uint256.Int).Mul(maxNativeSwap, nativeRate)
	num.Mul(num, pow10(decimals))
	den := new(uint256.Int).Mul(pow10(c.cfg.NativeTokenDecimals), c.swapRatePrec)
	return num.Div(num, den), nil
}

// CalculateNativeTokenAmt converts a token amount surrendered for gas into
// gas-coin units, capped at the token's native swap cap.
func (c *Context) CalculateNativeTokenAmt(ctx context.Context, token bridge.TokenID, amount *uint256.Int) (*uint256.Int, error) {
	_, swapRate, maxNativeSwap, decimals, err := c.quoteInputs(ctx, token)
	if err != nil {
		return nil, err
	}
	nativeRate, err := c.nativeSwapRate(ctx, swapRate)
	if err != nil {
		return nil, err
	}
	num := new(uint256.Int).Mul(amount, c.swapRatePrec)
	num.Mul(num, pow10(c.cfg.NativeTokenDecimals))
	den := new(uint256.Int).Mul(nativeRate, pow10(decimals))
	native := num.Div(num, den)
	if native.Cmp(maxNativeSwap) > 0 {
		native.Set(maxNativeSwap)
	}
	return native, nil
}

// GetRelayerFee prices the destination chain's USD fee in token units.
func (c *Context) GetRelayerFee(ctx context.Context, dest bridge.ChainRef, token bridge.TokenID) (*uint256.Int, error) {
	destID, err := dest.ChainID()
	if err != nil {
		return nil, err
	}
	_, swapRate, _, decimals, err := c.quoteInputs(ctx, token)
	if err != nil {
		return nil, err
	}
	res, err := c.rpcCall(ctx, "suix_getDynamicFieldObject", c.relayerFeesID,
		map[string]interface{}{"type": "u16", "value": fmt.Sprintf("%d", destID)})
	if err != nil {
		return nil, err
	}
	if missingObject(res) {
		return nil, fmt.Errorf("no relayer fee for chain %d on %s", destID, c.cfg.Key)
	}
	usdFee := new(uint256.Int)
	if err := usdFee.SetFromDecimal(res.Get("data.content.fields.value").String()); err != nil {
		return nil, fmt.Errorf("parse relayer fee for chain %d: %w", destID, err)
	}

	fee := new(uint256.Int).Mul(pow10(decimals), usdFee)
	fee.Mul(fee, c.swapRatePrec)
	den := new(uint256.Int).Mul(swapRate, c.relayerFeePrec)
	if den.IsZero() {
		return nil, fmt.Errorf("zero swap rate on %s", c.cfg.Key)
	}
	return fee.Div(fee, den), nil
}
