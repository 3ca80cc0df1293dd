package sei

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
	"go.uber.org/zap/zaptest"

	"github.com/wormhole-demo/bridge/bridge"
	"github.com/wormhole-demo/bridge/bridge/evm"
)

const (
	// Wrapped form of the test ERC20, a valid 20-byte contract address.
	testWrappedAsset = "sei19g4z52329g4z52329g4z52329g4z5232vykrlu"
	testSender       = "sei1qqqqqqqqqqqqqqqqqqqqqqqqqqqqqqp2urmu82"
	testERC20        = "0x3ee18B2214AFF97000D974cf647E7C347E8fa585"
	testRecipient    = "0x0b794674D274Ce77A10a95dCb33aF0330E0ac7Cf"
)

// lcdStub routes contract smart queries to a per-test handler. Everything
// else 404s.
type lcdStub struct {
	t       *testing.T
	handler func(contract, query string) (int, string)
}

func (s *lcdStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(r.URL.EscapedPath(), "/")
	if len(parts) != 8 || parts[4] != "contract" || parts[6] != "smart" {
		http.NotFound(w, r)
		return
	}
	unescaped, err := url.PathUnescape(parts[7])
	require.NoError(s.t, err)
	raw, err := base64.StdEncoding.DecodeString(unescaped)
	require.NoError(s.t, err)
	status, body := s.handler(parts[5], string(raw))
	w.WriteHeader(status)
	fmt.Fprint(w, body)
}

type execution struct {
	contract string
	msg      string
	funds    []Coin
}

// recordingBroadcaster captures executions instead of signing them.
type recordingBroadcaster struct {
	execs []execution
}

func (b *recordingBroadcaster) SenderAddress() string { return testSender }

func (b *recordingBroadcaster) ExecuteContract(ctx context.Context, contract string, msg []byte, funds []Coin) (string, error) {
	b.execs = append(b.execs, execution{contract: contract, msg: string(msg), funds: funds})
	return fmt.Sprintf("TX%d", len(b.execs)), nil
}

// lcdContext wires a context against a stubbed LCD, with an ethereum
// context alongside for recipient and token codecs.
func lcdContext(t *testing.T, handler func(contract, query string) (int, string), b Broadcaster) *Context {
	t.Helper()
	srv := httptest.NewServer(&lcdStub{t: t, handler: handler})
	t.Cleanup(srv.Close)

	seiCfg := bridge.ChainConfig{
		Key:  "sei",
		ID:   vaaLib.ChainIDSei,
		Kind: bridge.KindSei,
		Contracts: bridge.Contracts{
			TokenBridge: testTokenBridge,
		},
		NativeTokenDecimals: 6,
	}
	ethCfg := bridge.ChainConfig{
		Key:                 "ethereum",
		ID:                  vaaLib.ChainIDEthereum,
		Kind:                bridge.KindEVM,
		NativeTokenDecimals: 18,
	}
	registry := bridge.NewRegistry(zaptest.NewLogger(t), []bridge.ChainConfig{seiCfg, ethCfg})

	// Never dialed: only the address codecs of this context are exercised.
	eth, err := evm.New(zaptest.NewLogger(t), registry, ethCfg, "http://127.0.0.1:1", "")
	require.NoError(t, err)
	registry.Register(eth)

	c, err := New(zaptest.NewLogger(t), registry, seiCfg, srv.URL, b)
	require.NoError(t, err)
	registry.Register(c)
	return c
}

func erc20Token() bridge.TokenID {
	return bridge.TokenID{Chain: bridge.ChainByName("ethereum"), Address: testERC20}
}

func sendParams() bridge.SendParams {
	return bridge.SendParams{
		Token:     erc20Token(),
		Amount:    uint256.NewInt(1_000_000),
		Sender:    testSender,
		Recipient: testRecipient,
		ToChain:   bridge.ChainByName("ethereum"),
	}
}

func registryAndAllowance(allowance string) func(contract, query string) (int, string) {
	return func(contract, query string) (int, string) {
		switch {
		case strings.Contains(query, `"wrapped_registry"`):
			return http.StatusOK, fmt.Sprintf(`{"data":{"address":"%s"}}`, testWrappedAsset)
		case strings.Contains(query, `"allowance"`):
			return http.StatusOK, fmt.Sprintf(`{"data":{"allowance":"%s"}}`, allowance)
		}
		return http.StatusBadRequest, `{"message":"unexpected query"}`
	}
}

func TestSendRaisesAllowanceBeforeTransfer(t *testing.T) {
	b := &recordingBroadcaster{}
	c := lcdContext(t, registryAndAllowance("0"), b)

	res, err := c.Send(context.Background(), sendParams())
	require.NoError(t, err)
	assert.NotEmpty(t, res.TxID)

	require.Len(t, b.execs, 2)
	assert.Equal(t, testWrappedAsset, b.execs[0].contract)
	assert.Contains(t, b.execs[0].msg, `"increase_allowance"`)
	assert.Contains(t, b.execs[0].msg, testTokenBridge)
	assert.Equal(t, testTokenBridge, b.execs[1].contract)
	assert.Contains(t, b.execs[1].msg, `"initiate_transfer"`)
	assert.Contains(t, b.execs[1].msg, testWrappedAsset)
}

func TestSendSkipsSufficientAllowance(t *testing.T) {
	b := &recordingBroadcaster{}
	c := lcdContext(t, registryAndAllowance("1000000000"), b)

	_, err := c.Send(context.Background(), sendParams())
	require.NoError(t, err)

	require.Len(t, b.execs, 1)
	assert.Equal(t, testTokenBridge, b.execs[0].contract)
	assert.Contains(t, b.execs[0].msg, `"initiate_transfer"`)
}

func TestSendWithPayloadRaisesAllowance(t *testing.T) {
	b := &recordingBroadcaster{}
	c := lcdContext(t, registryAndAllowance("0"), b)

	_, err := c.SendWithPayload(context.Background(), sendParams(), []byte{0xAB})
	require.NoError(t, err)

	require.Len(t, b.execs, 2)
	assert.Contains(t, b.execs[0].msg, `"increase_allowance"`)
	assert.Contains(t, b.execs[1].msg, `"initiate_transfer_with_payload"`)
}

func TestNativeSendNeedsNoAllowance(t *testing.T) {
	b := &recordingBroadcaster{}
	c := lcdContext(t, func(contract, query string) (int, string) {
		return http.StatusBadRequest, `{"message":"unexpected query"}`
	}, b)

	p := sendParams()
	p.Token = bridge.TokenID{Chain: bridge.ChainByName("sei"), Address: bridge.NativeSentinel}
	_, err := c.Send(context.Background(), p)
	require.NoError(t, err)

	require.Len(t, b.execs, 1)
	assert.Equal(t, []Coin{{Denom: NativeDenom, Amount: "1000000"}}, b.execs[0].funds)
}

func TestGetForeignAssetAbsenceVersusFailure(t *testing.T) {
	t.Run("contract rejection is absence", func(t *testing.T) {
		c := lcdContext(t, func(contract, query string) (int, string) {
			return http.StatusBadRequest, `{"message":"generic error: not found"}`
		}, nil)
		addr, err := c.GetForeignAsset(context.Background(), erc20Token(), bridge.ChainByName("sei"))
		require.NoError(t, err)
		assert.Empty(t, addr)
	})

	t.Run("node failure is an error", func(t *testing.T) {
		c := lcdContext(t, func(contract, query string) (int, string) {
			return http.StatusInternalServerError, `{"message":"post failed"}`
		}, nil)
		_, err := c.GetForeignAsset(context.Background(), erc20Token(), bridge.ChainByName("sei"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 500")
	})
}
