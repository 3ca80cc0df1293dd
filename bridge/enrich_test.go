package bridge

import (
	"encoding/binary"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"

	"github.com/wormhole-demo/bridge/bridge/message"
)

func wireTransfer(payloadID uint8, trailing []byte) *message.Transfer {
	var token, to vaaLib.Address
	token[31] = 0xAA
	to[31] = 0xBB
	return &message.Transfer{
		PayloadID:    payloadID,
		Amount:       uint256.NewInt(1_000_000),
		TokenAddress: token,
		TokenChain:   vaaLib.ChainIDEthereum,
		To:           to,
		ToChain:      vaaLib.ChainIDSolana,
		Payload:      trailing,
	}
}

func TestEnrichTransferTranslatesAddresses(t *testing.T) {
	r, _, _ := testRegistry(t)

	parsed := EnrichTransfer(r, wireTransfer(message.PayloadIDTransfer, nil))

	// Token through the home chain's asset codec, recipient through the
	// destination's wallet codec.
	assert.Equal(t, "ethereum-asset:00aa", parsed.TokenAddress)
	assert.Equal(t, "solana:00bb", parsed.Recipient)
	assert.Equal(t, vaaLib.ChainIDEthereum, parsed.TokenChain)
	assert.True(t, parsed.ToChain.Equal(ChainByID(vaaLib.ChainIDSolana)))
	assert.Equal(t, uint256.NewInt(1_000_000), parsed.Amount)
	assert.Nil(t, parsed.Relay)
}

func TestEnrichTransferUnknownChainsKeepHex(t *testing.T) {
	r, _, _ := testRegistry(t)

	transfer := wireTransfer(message.PayloadIDTransfer, nil)
	transfer.TokenChain = vaaLib.ChainIDAptos
	transfer.ToChain = vaaLib.ChainIDSui

	parsed := EnrichTransfer(r, transfer)
	assert.Equal(t, "0x"+"00000000000000000000000000000000000000000000000000000000000000aa", parsed.TokenAddress)
	assert.Equal(t, "0x"+"00000000000000000000000000000000000000000000000000000000000000bb", parsed.Recipient)
}

func TestEnrichTransferDecodesRelayerPayload(t *testing.T) {
	r, _, _ := testRegistry(t)

	relayer := make([]byte, 97)
	relayer[0] = 1
	binary.BigEndian.PutUint64(relayer[25:33], 500)
	binary.BigEndian.PutUint64(relayer[57:65], 40)
	relayer[96] = 0xCC

	parsed := EnrichTransfer(r, wireTransfer(message.PayloadIDTransferWithPayload, relayer))
	require.NotNil(t, parsed.Relay)
	assert.Equal(t, uint8(1), parsed.Relay.RelayerPayloadID)
	assert.Equal(t, "solana:00cc", parsed.Relay.Recipient)
	assert.Equal(t, uint256.NewInt(500), parsed.Relay.RelayerFee)
	assert.Equal(t, uint256.NewInt(40), parsed.Relay.ToNativeTokenAmount)
}

func TestEnrichTransferOpaquePayloadStaysOpaque(t *testing.T) {
	r, _, _ := testRegistry(t)

	trailing := []byte{0x01, 0x02, 0x03}
	parsed := EnrichTransfer(r, wireTransfer(message.PayloadIDTransferWithPayload, trailing))
	assert.Nil(t, parsed.Relay)
	assert.Equal(t, trailing, parsed.Payload)
}
