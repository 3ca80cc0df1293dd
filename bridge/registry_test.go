package bridge

import (
	"context"
	"encoding/hex"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
	"go.uber.org/zap/zaptest"

	"github.com/wormhole-demo/bridge/bridge/message"
)

// stubContext is a ChainContext double for registry and enrichment tests.
// Only the methods those paths touch are implemented.
type stubContext struct {
	cfg      ChainConfig
	foreign  map[string]string
	decimals uint8
}

func (s *stubContext) Kind() ContextKind   { return s.cfg.Kind }
func (s *stubContext) Config() ChainConfig { return s.cfg }

func (s *stubContext) FormatAddress(address string) (vaaLib.Address, error) {
	var out vaaLib.Address
	raw, err := hex.DecodeString(address)
	if err != nil {
		return out, err
	}
	copy(out[32-len(raw):], raw)
	return out, nil
}

func (s *stubContext) ParseAddress(universal vaaLib.Address) (string, error) {
	return s.cfg.Key + ":" + hex.EncodeToString(universal[30:]), nil
}

func (s *stubContext) FormatAssetAddress(address string) (vaaLib.Address, error) {
	return s.FormatAddress(address)
}

func (s *stubContext) ParseAssetAddress(universal vaaLib.Address) (string, error) {
	return s.cfg.Key + "-asset:" + hex.EncodeToString(universal[30:]), nil
}

func (s *stubContext) GetForeignAsset(ctx context.Context, token TokenID, chain ChainRef) (string, error) {
	if token.Chain.Equal(s.cfg.Ref()) {
		return token.Address, nil
	}
	return s.foreign[token.Address], nil
}

func (s *stubContext) FetchTokenDecimals(ctx context.Context, assetAddress string) (uint8, error) {
	return s.decimals, nil
}

func (s *stubContext) GetNativeBalance(ctx context.Context, wallet string) (*uint256.Int, error) {
	return uint256.NewInt(0), nil
}

func (s *stubContext) GetTokenBalance(ctx context.Context, wallet string, token TokenID) (*uint256.Int, error) {
	return nil, nil
}

func (s *stubContext) Approve(ctx context.Context, spender, asset string, amount *uint256.Int) (*TxResult, error) {
	return nil, nil
}

func (s *stubContext) PrepareSend(ctx context.Context, p SendParams) (PreparedTx, error) {
	return nil, nil
}

func (s *stubContext) Send(ctx context.Context, p SendParams) (*TxResult, error) {
	return &TxResult{TxID: "stub-tx"}, nil
}

func (s *stubContext) SendWithPayload(ctx context.Context, p SendParams, payload []byte) (*TxResult, error) {
	return &TxResult{TxID: "stub-tx"}, nil
}

func (s *stubContext) PrepareSendWithRelay(ctx context.Context, p RelaySendParams) (PreparedTx, error) {
	return nil, nil
}

func (s *stubContext) SendWithRelay(ctx context.Context, p RelaySendParams) (*TxResult, error) {
	return &TxResult{TxID: "stub-tx"}, nil
}

func (s *stubContext) PrepareRedeem(ctx context.Context, signedVAA []byte) (PreparedTx, error) {
	return nil, nil
}

func (s *stubContext) Redeem(ctx context.Context, signedVAA []byte) (*TxResult, error) {
	return &TxResult{TxID: "stub-redeem"}, nil
}

func (s *stubContext) IsTransferCompleted(ctx context.Context, signedVAA []byte) (bool, error) {
	return len(signedVAA) > 0 && signedVAA[0] == 0xFF, nil
}

func (s *stubContext) CalculateMaxSwapAmount(ctx context.Context, token TokenID) (*uint256.Int, error) {
	return uint256.NewInt(0), nil
}

func (s *stubContext) CalculateNativeTokenAmt(ctx context.Context, token TokenID, amount *uint256.Int) (*uint256.Int, error) {
	return uint256.NewInt(0), nil
}

func (s *stubContext) GetRelayerFee(ctx context.Context, dest ChainRef, token TokenID) (*uint256.Int, error) {
	return uint256.NewInt(0), nil
}

func (s *stubContext) ParseMessagesFromTx(ctx context.Context, txID string) ([]*ParsedMessage, error) {
	return []*ParsedMessage{}, nil
}

func (s *stubContext) DecodeRelayerPayload(payload []byte) (*message.RelayerPayload, error) {
	return message.DecodeRelayerPayload(payload)
}

func (s *stubContext) WaitForConfirmation(ctx context.Context, txID string) error {
	return nil
}

func testRegistry(t *testing.T) (*Registry, *stubContext, *stubContext) {
	t.Helper()
	eth := &stubContext{
		cfg: ChainConfig{
			Key:                 "ethereum",
			ID:                  vaaLib.ChainIDEthereum,
			Kind:                KindEVM,
			NativeTokenDecimals: 18,
		},
		foreign:  map[string]string{},
		decimals: 6,
	}
	sol := &stubContext{
		cfg: ChainConfig{
			Key:                 "solana",
			ID:                  vaaLib.ChainIDSolana,
			Kind:                KindSolana,
			NativeTokenDecimals: 9,
		},
		foreign:  map[string]string{},
		decimals: 8,
	}
	r := NewRegistry(zaptest.NewLogger(t), []ChainConfig{eth.cfg, sol.cfg})
	r.Register(eth)
	r.Register(sol)
	return r, eth, sol
}

func TestRegistryResolvesNameAndID(t *testing.T) {
	r, _, _ := testRegistry(t)

	byName, err := r.Context(ChainByName("ethereum"))
	require.NoError(t, err)
	byID, err := r.Context(ChainByID(vaaLib.ChainIDEthereum))
	require.NoError(t, err)
	assert.Same(t, byName, byID)
}

func TestRegistryUnknownChain(t *testing.T) {
	r, _, _ := testRegistry(t)

	_, err := r.Context(ChainByName("aptos"))
	assert.ErrorIs(t, err, ErrUnknownChain)

	_, err = r.Config(ChainByID(vaaLib.ChainID(999)))
	assert.ErrorIs(t, err, ErrUnknownChain)
}

func TestRegistryForeignAssetAbsence(t *testing.T) {
	r, _, _ := testRegistry(t)
	token := TokenID{Chain: ChainByName("ethereum"), Address: "aaaa"}

	// Never bridged to solana: empty result, nil error.
	addr, err := r.GetForeignAsset(context.Background(), token, ChainByName("solana"))
	require.NoError(t, err)
	assert.Empty(t, addr)

	_, err = r.MustGetForeignAsset(context.Background(), token, ChainByName("solana"))
	assert.ErrorIs(t, err, ErrAssetNotRegistered)
}

func TestRegistryForeignAssetHomeChain(t *testing.T) {
	r, _, _ := testRegistry(t)
	token := TokenID{Chain: ChainByName("ethereum"), Address: "aaaa"}

	addr, err := r.GetForeignAsset(context.Background(), token, ChainByID(vaaLib.ChainIDEthereum))
	require.NoError(t, err)
	assert.Equal(t, "aaaa", addr)
}

func TestRegistryTokenDecimals(t *testing.T) {
	r, _, _ := testRegistry(t)

	native := TokenID{Chain: ChainByName("ethereum")}
	decimals, err := r.TokenDecimals(context.Background(), native)
	require.NoError(t, err)
	assert.Equal(t, uint8(18), decimals)

	erc20 := TokenID{Chain: ChainByName("ethereum"), Address: "aaaa"}
	decimals, err = r.TokenDecimals(context.Background(), erc20)
	require.NoError(t, err)
	assert.Equal(t, uint8(6), decimals)
}
