// Package aptos implements the chain capability contract for Aptos-like
// chains on top of aptos-labs/aptos-go-sdk, with the node REST API and gjson
// for resource and table reads.
package aptos

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	aptoslib "github.com/aptos-labs/aptos-go-sdk"
	"github.com/aptos-labs/aptos-go-sdk/crypto"
	"github.com/holiman/uint256"
	"github.com/tidwall/gjson"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
	"go.uber.org/zap"
	"golang.org/x/crypto/sha3"

	"github.com/wormhole-demo/bridge/bridge"
	"github.com/wormhole-demo/bridge/bridge/message"
)

// NativeCoinType is the gas coin, the native-asset sentinel's concrete type.
const NativeCoinType = "0x1::aptos_coin::AptosCoin"

// deriveResourceAccountScheme is the authentication scheme byte appended when
// hashing a resource account derivation seed.
const deriveResourceAccountScheme = 0xFF

// Context is the Aptos chain backend.
type Context struct {
	cfg      bridge.ChainConfig
	registry *bridge.Registry
	client   *aptoslib.NodeClient
	account  *aptoslib.Account // nil when read-only
	restURL  string
	http     *http.Client
	tbAddr   aptoslib.AccountAddress
	coreAddr aptoslib.AccountAddress
	logger   *zap.Logger
}

var _ bridge.ChainContext = (*Context)(nil)

// New connects to the node's REST endpoint, e.g. https://host/v1. An empty
// private key yields a read-only context. networkChainID is the node's own
// chain id used when signing, distinct from the bridge chain id.
func New(logger *zap.Logger, registry *bridge.Registry, cfg bridge.ChainConfig, rpcURL, privateKeyHex string, networkChainID uint8) (*Context, error) {
	c := &Context{
		cfg:      cfg,
		registry: registry,
		restURL:  strings.TrimRight(rpcURL, "/"),
		http:     &http.Client{Timeout: 30 * time.Second},
		logger:   logger.With(zap.String("component", "AptosContext"), zap.String("chain", cfg.Key)),
	}

	c.logger.Info("Connecting to Aptos", zap.String("rpcURL", rpcURL))
	client, err := aptoslib.NewNodeClient(c.restURL, networkChainID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Aptos client: %w", err)
	}
	c.client = client

	if err := c.tbAddr.ParseStringRelaxed(cfg.Contracts.TokenBridge); err != nil {
		return nil, fmt.Errorf("invalid token bridge address: %w", err)
	}
	if err := c.coreAddr.ParseStringRelaxed(cfg.Contracts.CoreBridge); err != nil {
		return nil, fmt.Errorf("invalid core bridge address: %w", err)
	}

	if privateKeyHex != "" {
		privateKey := &crypto.Ed25519PrivateKey{}
		if err := privateKey.FromHex(privateKeyHex); err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
		account, err := aptoslib.NewAccountFromSigner(privateKey)
		if err != nil {
			return nil, fmt.Errorf("failed to derive account: %w", err)
		}
		c.account = account
		c.logger.Info("Signer configured", zap.String("address", account.Address.StringLong()))
	}

	return c, nil
}

func (c *Context) Kind() bridge.ContextKind   { return bridge.KindAptos }
func (c *Context) Config() bridge.ChainConfig { return c.cfg }

func (c *Context) requireSigner() error {
	if c.account == nil {
		return fmt.Errorf("%s: %w", c.cfg.Key, bridge.ErrNoSigner)
	}
	return nil
}

// restGet fetches a REST path and returns the parsed body with the HTTP
// status. 404 is a signal, not an error.
func (c *Context) restGet(ctx context.Context, path string) (int, gjson.Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.restURL+path, nil)
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

func (c *Context) restPost(ctx context.Context, path string, body interface{}) (int, gjson.Result, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, gjson.Result{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.restURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, gjson.Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, gjson.Result{}, fmt.Errorf("POST %s on %s: %w", path, c.cfg.Key, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, gjson.Result{}, fmt.Errorf("POST %s on %s: %w", path, c.cfg.Key, err)
	}
	return resp.StatusCode, gjson.ParseBytes(raw), nil
}

// deriveWrappedAssetAddress computes the resource account holding a foreign
// token's wrapped coin: sha3-256 of creator, seed "chain::origin", and the
// derivation scheme byte.
func (c *Context) deriveWrappedAssetAddress(originChain vaaLib.ChainID, origin vaaLib.Address) aptoslib.AccountAddress {
	seed := make([]byte, 0, 32+2+2+32+1)
	seed = append(seed, c.tbAddr[:]...)
	seed = append(seed, byte(originChain>>8), byte(originChain))
	seed = append(seed, []byte("::")...)
	seed = append(seed, origin[:]...)
	seed = append(seed, deriveResourceAccountScheme)
	return aptoslib.AccountAddress(sha3.Sum256(seed))
}

// coinTypeFor resolves a token to its fully qualified coin type on this
// chain. Empty when the asset was never attested here. Home-chain assets name
// their coin type directly in the token identity.
func (c *Context) coinTypeFor(ctx context.Context, tokenID bridge.TokenID) (string, error) {
	if tokenID.IsNative() {
		return NativeCoinType, nil
	}
	homeID, err := tokenID.Chain.ChainID()
	if err != nil {
		return "", err
	}
	if homeID == c.cfg.ID {
		if !strings.Contains(tokenID.Address, "::") {
			return "", fmt.Errorf("home asset %q on %s must be a coin type", tokenID.Address, c.cfg.Key)
		}
		return tokenID.Address, nil
	}
	universal, err := c.registry.FormatTokenAddress(tokenID)
	if err != nil {
		return "", err
	}
	return c.wrappedCoinType(ctx, homeID, universal)
}

// wrappedCoinType derives the wrapped coin type for a foreign asset and
// confirms the attestation deployed it. Empty when it never was.
func (c *Context) wrappedCoinType(ctx context.Context, homeID vaaLib.ChainID, universal vaaLib.Address) (string, error) {
	derived := c.deriveWrappedAssetAddress(homeID, universal)
	coinType := derived.StringLong() + "::coin::T"
	status, _, err := c.restGet(ctx, fmt.Sprintf("/accounts/%s/resource/0x1::coin::CoinInfo<%s>",
		derived.StringLong(), coinType))
	if err != nil {
		return "", err
	}
	if status == http.StatusNotFound {
		return "", nil
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("coin info lookup on %s: status %d", c.cfg.Key, status)
	}
	return coinType, nil
}

// coinTypeForUniversal resolves a coin type from the wire-format token
// identity of an attestation. Home assets travel as a hash of their coin
// type, reversed through the bridge's native-info table.
func (c *Context) coinTypeForUniversal(ctx context.Context, homeID vaaLib.ChainID, universal vaaLib.Address) (string, error) {
	if homeID != c.cfg.ID {
		return c.wrappedCoinType(ctx, homeID, universal)
	}

	status, body, err := c.restGet(ctx, fmt.Sprintf("/accounts/%s/resource/%s::state::State",
		c.tbAddr.StringLong(), c.tbAddr.StringLong()))
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("bridge state on %s: status %d", c.cfg.Key, status)
	}
	handle := body.Get("data.native_infos.handle").String()
	if handle == "" {
		return "", fmt.Errorf("bridge state on %s has no native info table", c.cfg.Key)
	}

	status, item, err := c.restPost(ctx, "/tables/"+handle+"/item", map[string]interface{}{
		"key_type":   c.tbAddr.StringLong() + "::token_hash::TokenHash",
		"value_type": "0x1::type_info::TypeInfo",
		"key":        map[string]string{"hash": "0x" + hex.EncodeToString(universal[:])},
	})
	if err != nil {
		return "", err
	}
	if status == http.StatusNotFound {
		return "", nil
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("native info lookup on %s: status %d", c.cfg.Key, status)
	}
	moduleName, err := hex.DecodeString(strings.TrimPrefix(item.Get("module_name").String(), "0x"))
	if err != nil {
		return "", fmt.Errorf("native info module name: %w", err)
	}
	structName, err := hex.DecodeString(strings.TrimPrefix(item.Get("struct_name").String(), "0x"))
	if err != nil {
		return "", fmt.Errorf("native info struct name: %w", err)
	}
	return fmt.Sprintf("%s::%s::%s",
		item.Get("account_address").String(), moduleName, structName), nil
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

// FetchTokenDecimals accepts a fully qualified coin type.
func (c *Context) FetchTokenDecimals(ctx context.Context, assetAddress string) (uint8, error) {
	var owner aptoslib.AccountAddress
	if err := owner.ParseStringRelaxed(strings.SplitN(assetAddress, "::", 2)[0]); err != nil {
		return 0, fmt.Errorf("invalid coin type %q: %w", assetAddress, err)
	}
	status, body, err := c.restGet(ctx, fmt.Sprintf("/accounts/%s/resource/0x1::coin::CoinInfo<%s>",
		owner.StringLong(), assetAddress))
	if err != nil {
		return 0, err
	}
	if status != http.StatusOK {
		return 0, fmt.Errorf("coin info of %s on %s: status %d", assetAddress, c.cfg.Key, status)
	}
	return uint8(body.Get("data.decimals").Uint()), nil
}

func (c *Context) GetNativeBalance(ctx context.Context, wallet string) (*uint256.Int, error) {
	var addr aptoslib.AccountAddress
	if err := addr.ParseStringRelaxed(wallet); err != nil {
		return nil, fmt.Errorf("invalid wallet %q: %w", wallet, err)
	}
	balance, err := c.client.AccountAPTBalance(addr)
	if err != nil {
		return nil, fmt.Errorf("balance of %s on %s: %w", wallet, c.cfg.Key, err)
	}
	return uint256.NewInt(balance), nil
}

func (c *Context) GetTokenBalance(ctx context.Context, wallet string, tokenID bridge.TokenID) (*uint256.Int, error) {
	coinType, err := c.coinTypeFor(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	if coinType == "" {
		return nil, nil
	}
	var addr aptoslib.AccountAddress
	if err := addr.ParseStringRelaxed(wallet); err != nil {
		return nil, fmt.Errorf("invalid wallet %q: %w", wallet, err)
	}
	status, body, err := c.restGet(ctx, fmt.Sprintf("/accounts/%s/resource/0x1::coin::CoinStore<%s>",
		addr.StringLong(), coinType))
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		// Registered asset, wallet just has no store for it.
		return uint256.NewInt(0), nil
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("coin store on %s: status %d", c.cfg.Key, status)
	}
	out := new(uint256.Int)
	if err := out.SetFromDecimal(body.Get("data.coin.value").String()); err != nil {
		return nil, fmt.Errorf("parse balance: %w", err)
	}
	return out, nil
}

// Approve is a no-op: entry functions withdraw coins from the signer
// directly, there is no allowance concept.
func (c *Context) Approve(ctx context.Context, spender, asset string, amount *uint256.Int) (*bridge.TxResult, error) {
	return nil, nil
}

// IsTransferCompleted checks the bridge state's consumed-attestation table
// for the attestation's digest.
func (c *Context) IsTransferCompleted(ctx context.Context, signedVAA []byte) (bool, error) {
	digest, err := message.VAADigest(signedVAA)
	if err != nil {
		return false, err
	}
	status, body, err := c.restGet(ctx, fmt.Sprintf("/accounts/%s/resource/%s::state::State",
		c.tbAddr.StringLong(), c.tbAddr.StringLong()))
	if err != nil {
		return false, err
	}
	if status != http.StatusOK {
		return false, fmt.Errorf("bridge state on %s: status %d", c.cfg.Key, status)
	}
	handle := body.Get("data.consumed_vaas.elems.handle").String()
	if handle == "" {
		return false, fmt.Errorf("bridge state on %s has no consumed table", c.cfg.Key)
	}

	status, _, err = c.restPost(ctx, "/tables/"+handle+"/item", map[string]string{
		"key_type":   "vector<u8>",
		"value_type": "u8",
		"key":        "0x" + hex.EncodeToString(digest[:]),
	})
	if err != nil {
		return false, err
	}
	return status == http.StatusOK, nil
}

func (c *Context) DecodeRelayerPayload(payload []byte) (*message.RelayerPayload, error) {
	return message.DecodeRelayerPayload(payload)
}

// WaitForConfirmation blocks until the node reports the transaction executed.
// Executed Aptos transactions are final.
func (c *Context) WaitForConfirmation(ctx context.Context, txID string) error {
	tx, err := c.client.WaitForTransaction(txID)
	if err != nil {
		return fmt.Errorf("wait for %s on %s: %w", txID, c.cfg.Key, err)
	}
	if !tx.Success {
		return fmt.Errorf("transaction %s failed: %s", txID, tx.VmStatus)
	}
	return nil
}

// No relayer contract family is deployed on this chain kind.

func (c *Context) PrepareSendWithRelay(ctx context.Context, p bridge.RelaySendParams) (bridge.PreparedTx, error) {
	return nil, fmt.Errorf("%s: %w", c.cfg.Key, bridge.ErrNoRelayerContract)
}

func (c *Context) SendWithRelay(ctx context.Context, p bridge.RelaySendParams) (*bridge.TxResult, error) {
	return nil, fmt.Errorf("%s: %w", c.cfg.Key, bridge.ErrNoRelayerContract)
}

func (c *Context) CalculateMaxSwapAmount(ctx context.Context, token bridge.TokenID) (*uint256.Int, error) {
	return nil, fmt.Errorf("%s: %w", c.cfg.Key, bridge.ErrNoRelayerContract)
}

func (c *Context) CalculateNativeTokenAmt(ctx context.Context, token bridge.TokenID, amount *uint256.Int) (*uint256.Int, error) {
	return nil, fmt.Errorf("%s: %w", c.cfg.Key, bridge.ErrNoRelayerContract)
}

func (c *Context) GetRelayerFee(ctx context.Context, dest bridge.ChainRef, token bridge.TokenID) (*uint256.Int, error) {
	return nil, fmt.Errorf("%s: %w", c.cfg.Key, bridge.ErrNoRelayerContract)
}
