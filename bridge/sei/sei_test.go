package sei

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
	"go.uber.org/zap/zaptest"

	"github.com/wormhole-demo/bridge/bridge"
)

const testTokenBridge = "sei1jv5xw094mclanxt5emammy875qelf3v62u4tl4lp5nhte3w3s9ts9w9az2"

func testContext(t *testing.T) *Context {
	t.Helper()
	cfg := bridge.ChainConfig{
		Key:  "sei",
		ID:   vaaLib.ChainIDSei,
		Kind: bridge.KindSei,
		Contracts: bridge.Contracts{
			TokenBridge: testTokenBridge,
		},
		NativeTokenDecimals: 6,
	}
	registry := bridge.NewRegistry(zaptest.NewLogger(t), []bridge.ChainConfig{cfg})
	// The LCD endpoint is unroutable on purpose: tests exercising it would
	// be network tests, everything here must resolve locally.
	c, err := New(zaptest.NewLogger(t), registry, cfg, "http://127.0.0.1:1", nil)
	require.NoError(t, err)
	registry.Register(c)
	return c
}

func TestAccountAddressRoundTrip(t *testing.T) {
	c := testContext(t)
	// 20-byte account address.
	address := "sei1qqqqqqqqqqqqqqqqqqqqqqqqqqqqqqp2urmu82"

	universal, err := c.FormatAddress(address)
	require.NoError(t, err)
	for _, b := range universal[:12] {
		assert.Equal(t, byte(0), b)
	}

	back, err := c.ParseAddress(universal)
	require.NoError(t, err)
	assert.Equal(t, address, back)
}

func TestContractAddressIs32Bytes(t *testing.T) {
	c := testContext(t)

	universal, err := c.FormatAssetAddress(testTokenBridge)
	require.NoError(t, err)
	assert.NotEqual(t, byte(0), universal[0])

	back, err := c.ParseAssetAddress(universal)
	require.NoError(t, err)
	assert.Equal(t, testTokenBridge, back)
}

func TestNarrowAssetAddressRoundTrip(t *testing.T) {
	c := testContext(t)
	// A 20-byte CW20 address widens with a zero prefix and must narrow back
	// to the same bech32 string.
	address := "sei1qqqqqqqqqqqqqqqqqqqqqqqqqqqqqqp2urmu82"

	universal, err := c.FormatAssetAddress(address)
	require.NoError(t, err)
	for _, b := range universal[:12] {
		assert.Equal(t, byte(0), b)
	}

	back, err := c.ParseAssetAddress(universal)
	require.NoError(t, err)
	assert.Equal(t, address, back)
}

func TestFormatAddressRejectsContractWidth(t *testing.T) {
	c := testContext(t)
	// A 32-byte contract address is not an account address.
	_, err := c.FormatAddress(testTokenBridge)
	assert.Error(t, err)
}

func TestParseAddressRejectsWideAddress(t *testing.T) {
	c := testContext(t)
	var universal vaaLib.Address
	universal[0] = 0x01
	_, err := c.ParseAddress(universal)
	assert.Error(t, err)
}

func TestGetForeignAssetHomeChainShortCircuit(t *testing.T) {
	c := testContext(t)
	token := bridge.TokenID{Chain: bridge.ChainByName("sei"), Address: "usei"}

	// Must resolve without touching the (unroutable) LCD.
	addr, err := c.GetForeignAsset(context.Background(), token, bridge.ChainByID(vaaLib.ChainIDSei))
	require.NoError(t, err)
	assert.Equal(t, "usei", addr)
}
