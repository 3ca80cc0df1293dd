package sui

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
	"go.uber.org/zap/zaptest"

	"github.com/wormhole-demo/bridge/bridge"
	"github.com/wormhole-demo/bridge/bridge/evm"
)

const (
	relayerStateID     = "0x51"
	coreStateID        = "0x52"
	tokenBridgeStateID = "0x53"
	coinTypesTableID   = "0x54"
	tokensTableID      = "0x55"
	feesTableID        = "0x56"
	consumedTableID    = "0x58"

	// Registry value for the test ERC20, stored without the 0x prefix.
	wrappedCoinType = "abc123::coin::COIN"
	testERC20       = "0x3ee18B2214AFF97000D974cf647E7C347E8fa585"
)

// rpcStub answers JSON-RPC posts through a per-test handler. A non-empty
// rpcErr string becomes an in-envelope error response.
type rpcStub struct {
	t      *testing.T
	handle func(method string, params gjson.Result) (result, rpcErr string)
}

func (s *rpcStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	require.NoError(s.t, err)
	req := gjson.ParseBytes(body)
	result, rpcErr := s.handle(req.Get("method").String(), req.Get("params"))
	w.Header().Set("Content-Type", "application/json")
	if rpcErr != "" {
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":1,"error":{"code":-32000,"message":%q}}`, rpcErr)
		return
	}
	fmt.Fprintf(w, `{"jsonrpc":"2.0","id":1,"result":%s}`, result)
}

// rpcContext wires a read-only context against a stubbed node, with an
// ethereum context alongside for the token codecs.
func rpcContext(t *testing.T, handle func(method string, params gjson.Result) (string, string)) *Context {
	t.Helper()
	srv := httptest.NewServer(&rpcStub{t: t, handle: handle})
	t.Cleanup(srv.Close)

	suiCfg := bridge.ChainConfig{
		Key:  "sui",
		ID:   vaaLib.ChainIDSui,
		Kind: bridge.KindSui,
		Contracts: bridge.Contracts{
			CoreBridge:  coreStateID,
			TokenBridge: tokenBridgeStateID,
			Relayer:     relayerStateID,
		},
		NativeTokenDecimals: 9,
	}
	ethCfg := bridge.ChainConfig{
		Key:                 "ethereum",
		ID:                  vaaLib.ChainIDEthereum,
		Kind:                bridge.KindEVM,
		NativeTokenDecimals: 18,
	}
	registry := bridge.NewRegistry(zaptest.NewLogger(t), []bridge.ChainConfig{suiCfg, ethCfg})

	// Never dialed: only the address codecs of this context are exercised.
	eth, err := evm.New(zaptest.NewLogger(t), registry, ethCfg, "http://127.0.0.1:1", "")
	require.NoError(t, err)
	registry.Register(eth)

	c, err := New(zaptest.NewLogger(t), registry, suiCfg, srv.URL, nil)
	require.NoError(t, err)
	registry.Register(c)
	return c
}

func erc20Token() bridge.TokenID {
	return bridge.TokenID{Chain: bridge.ChainByName("ethereum"), Address: testERC20}
}

// bridgeStates answers the object reads every registry lookup starts with.
func bridgeStates(id string) (string, bool) {
	switch id {
	case coreStateID:
		return `{"data":{"objectId":"0x52","type":"0xc0de::state::State"}}`, true
	case tokenBridgeStateID:
		return `{"data":{"objectId":"0x53","type":"0x70b::state::State","content":{"fields":{
			"token_registry":{"fields":{"coin_types":{
				"type":"0x2::table::Table<0x70b::token_registry::Key, 0x1::string::String>",
				"fields":{"id":{"id":"0x54"}}}}},
			"consumed_vaas":{"fields":{"hashes":{"fields":{"items":{"fields":{"id":{"id":"0x58"}}}}}}}
		}}}}`, true
	case relayerStateID:
		return `{"data":{"objectId":"0x51","type":"0xre1::owner::State","content":{"fields":{
			"swap_rate_precision":"100000000",
			"relayer_fee_precision":"100000000",
			"registered_tokens":{"fields":{"id":{"id":"0x55"}}},
			"relayer_fees":{"fields":{"id":{"id":"0x56"}}}
		}}}}`, true
	}
	return "", false
}

// quoteHandler serves the full fee-table state: token at 1 USD with 6
// decimals, gas coin at 2 USD, a 1 SUI swap cap and a 5 USD fee row.
func quoteHandler(method string, params gjson.Result) (string, string) {
	id := params.Get("0").String()
	switch method {
	case "sui_getObject":
		if res, ok := bridgeStates(id); ok {
			return res, ""
		}
	case "suix_getDynamicFieldObject":
		switch id {
		case coinTypesTableID:
			return fmt.Sprintf(`{"data":{"content":{"fields":{"value":"%s"}}}}`, wrappedCoinType), ""
		case tokensTableID:
			if params.Get("1.value").String() == "2::sui::SUI" {
				return `{"data":{"content":{"fields":{"value":{"fields":{"swap_rate":"200000000","max_native_swap_amount":"1000000000"}}}}}}`, ""
			}
			return `{"data":{"content":{"fields":{"value":{"fields":{"swap_rate":"100000000","max_native_swap_amount":"1000000000"}}}}}}`, ""
		case feesTableID:
			return `{"data":{"content":{"fields":{"value":"500000000"}}}}`, ""
		}
	case "suix_getCoinMetadata":
		return `{"decimals":6,"name":"Wrapped","symbol":"W","description":"","id":"0x57"}`, ""
	}
	return "", fmt.Sprintf("unexpected call %s %s", method, id)
}

func TestGetRelayerFeeFromStateTables(t *testing.T) {
	c := rpcContext(t, quoteHandler)

	fee, err := c.GetRelayerFee(context.Background(), bridge.ChainByName("ethereum"), erc20Token())
	require.NoError(t, err)
	// 5 USD at 1 USD per token with 6 decimals.
	assert.Equal(t, uint256.NewInt(5_000_000), fee)
}

func TestCalculateMaxSwapAmount(t *testing.T) {
	c := rpcContext(t, quoteHandler)

	max, err := c.CalculateMaxSwapAmount(context.Background(), erc20Token())
	require.NoError(t, err)
	// The 1 SUI cap at 2 USD buys 2 tokens at 1 USD.
	assert.Equal(t, uint256.NewInt(2_000_000), max)
}

func TestCalculateNativeTokenAmt(t *testing.T) {
	c := rpcContext(t, quoteHandler)

	native, err := c.CalculateNativeTokenAmt(context.Background(), erc20Token(), uint256.NewInt(1_000_000))
	require.NoError(t, err)
	// 1 token at 1 USD buys half a SUI at 2 USD.
	assert.Equal(t, uint256.NewInt(500_000_000), native)
}

func TestCalculateNativeTokenAmtCapsAtSwapLimit(t *testing.T) {
	c := rpcContext(t, quoteHandler)

	native, err := c.CalculateNativeTokenAmt(context.Background(), erc20Token(), uint256.NewInt(10_000_000_000_000))
	require.NoError(t, err)
	assert.Equal(t, uint256.NewInt(1_000_000_000), native)
}

func TestQuotesWithoutRelayerState(t *testing.T) {
	c := rpcContext(t, quoteHandler)
	c.cfg.Contracts.Relayer = ""

	_, err := c.GetRelayerFee(context.Background(), bridge.ChainByName("ethereum"), erc20Token())
	assert.ErrorIs(t, err, bridge.ErrNoRelayerContract)
}

func TestGetForeignAssetMissingEntryIsAbsence(t *testing.T) {
	c := rpcContext(t, func(method string, params gjson.Result) (string, string) {
		id := params.Get("0").String()
		if method == "sui_getObject" {
			if res, ok := bridgeStates(id); ok {
				return res, ""
			}
		}
		if method == "suix_getDynamicFieldObject" && id == coinTypesTableID {
			return `{"error":{"code":"dynamicFieldNotFound","parent_object_id":"0x54"}}`, ""
		}
		return "", "unexpected call " + method
	})

	addr, err := c.GetForeignAsset(context.Background(), erc20Token(), bridge.ChainByName("sui"))
	require.NoError(t, err)
	assert.Empty(t, addr)
}

func TestGetForeignAssetNodeFailureIsAnError(t *testing.T) {
	c := rpcContext(t, func(method string, params gjson.Result) (string, string) {
		id := params.Get("0").String()
		if method == "sui_getObject" {
			if res, ok := bridgeStates(id); ok {
				return res, ""
			}
		}
		return "", "Internal error"
	})

	_, err := c.GetForeignAsset(context.Background(), erc20Token(), bridge.ChainByName("sui"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Internal error")
}

func testSignedVAA(t *testing.T) []byte {
	t.Helper()
	var emitter vaaLib.Address
	emitter[31] = 0x29
	v := &vaaLib.VAA{
		Version:          1,
		GuardianSetIndex: 4,
		Timestamp:        time.Unix(1700000000, 0),
		Nonce:            17,
		Sequence:         1337,
		ConsistencyLevel: 1,
		EmitterChain:     vaaLib.ChainIDEthereum,
		EmitterAddress:   emitter,
		Payload:          []byte{0x01},
	}
	signed, err := v.Marshal()
	require.NoError(t, err)
	return signed
}

func consumedHandler(entry string) func(method string, params gjson.Result) (string, string) {
	return func(method string, params gjson.Result) (string, string) {
		id := params.Get("0").String()
		if method == "sui_getObject" {
			if res, ok := bridgeStates(id); ok {
				return res, ""
			}
		}
		if method == "suix_getDynamicFieldObject" && id == consumedTableID {
			if entry == "" {
				return "", "Internal error"
			}
			return entry, ""
		}
		return "", "unexpected call " + method
	}
}

func TestIsTransferCompleted(t *testing.T) {
	t.Run("consumed entry present", func(t *testing.T) {
		c := rpcContext(t, consumedHandler(`{"data":{"objectId":"0x59","content":{"fields":{}}}}`))
		done, err := c.IsTransferCompleted(context.Background(), testSignedVAA(t))
		require.NoError(t, err)
		assert.True(t, done)
	})

	t.Run("missing entry is not completed", func(t *testing.T) {
		c := rpcContext(t, consumedHandler(`{"error":{"code":"dynamicFieldNotFound","parent_object_id":"0x58"}}`))
		done, err := c.IsTransferCompleted(context.Background(), testSignedVAA(t))
		require.NoError(t, err)
		assert.False(t, done)
	})

	t.Run("node failure is an error", func(t *testing.T) {
		c := rpcContext(t, consumedHandler(""))
		_, err := c.IsTransferCompleted(context.Background(), testSignedVAA(t))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Internal error")
	})
}

func waitHandler(result, rpcErr string) func(method string, params gjson.Result) (string, string) {
	return func(method string, params gjson.Result) (string, string) {
		if method == "sui_getTransactionBlock" {
			return result, rpcErr
		}
		return "", "unexpected call " + method
	}
}

func TestWaitForConfirmation(t *testing.T) {
	t.Run("checkpointed", func(t *testing.T) {
		c := rpcContext(t, waitHandler(`{"digest":"0xd1","checkpoint":"12345"}`, ""))
		require.NoError(t, c.WaitForConfirmation(context.Background(), "0xd1"))
	})

	t.Run("pending digest keeps polling", func(t *testing.T) {
		c := rpcContext(t, waitHandler("", "Could not find the referenced transaction [TransactionDigest(0xd1)]."))
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		err := c.WaitForConfirmation(ctx, "0xd1")
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("node failure surfaces", func(t *testing.T) {
		c := rpcContext(t, waitHandler("", "Internal error"))
		err := c.WaitForConfirmation(context.Background(), "0xd1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Internal error")
	})
}
