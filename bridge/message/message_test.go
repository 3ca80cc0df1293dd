package message

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
	"golang.org/x/crypto/sha3"
)

func buildTransferPayload(id uint8, amount uint64, tokenChain, toChain uint16, trailing []byte) []byte {
	data := make([]byte, 101)
	data[0] = id
	binary.BigEndian.PutUint64(data[25:33], amount)
	for i := 33; i < 65; i++ {
		data[i] = 0xAA
	}
	binary.BigEndian.PutUint16(data[65:67], tokenChain)
	for i := 67; i < 99; i++ {
		data[i] = 0xBB
	}
	binary.BigEndian.PutUint16(data[99:101], toChain)
	return append(data, trailing...)
}

func TestDecodeTransfer(t *testing.T) {
	data := buildTransferPayload(PayloadIDTransfer, 0xF4240, 2, 1, nil)

	transfer, err := DecodeTransfer(data)
	require.NoError(t, err)

	assert.Equal(t, uint8(PayloadIDTransfer), transfer.PayloadID)
	assert.Equal(t, uint256.NewInt(1_000_000), transfer.Amount)
	assert.Equal(t, vaaLib.ChainIDEthereum, transfer.TokenChain)
	assert.Equal(t, vaaLib.ChainIDSolana, transfer.ToChain)
	assert.Nil(t, transfer.Payload)
	for _, b := range transfer.TokenAddress {
		assert.Equal(t, byte(0xAA), b)
	}
	for _, b := range transfer.To {
		assert.Equal(t, byte(0xBB), b)
	}
}

func TestDecodeTransferWithPayload(t *testing.T) {
	trailing := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	data := buildTransferPayload(PayloadIDTransferWithPayload, 5, 21, 22, trailing)

	transfer, err := DecodeTransfer(data)
	require.NoError(t, err)
	assert.Equal(t, uint8(PayloadIDTransferWithPayload), transfer.PayloadID)
	assert.Equal(t, trailing, transfer.Payload)
}

func TestDecodeTransferLengthChecks(t *testing.T) {
	_, err := DecodeTransfer(nil)
	assert.Error(t, err)

	// A basic transfer must be exactly 101 bytes, trailing bytes are not a
	// compatible superset.
	data := buildTransferPayload(PayloadIDTransfer, 1, 2, 1, []byte{0x00})
	_, err = DecodeTransfer(data)
	assert.Error(t, err)

	short := buildTransferPayload(PayloadIDTransferWithPayload, 1, 2, 1, nil)
	_, err = DecodeTransfer(short[:100])
	assert.Error(t, err)
}

func TestDecodeTransferUnknownDiscriminant(t *testing.T) {
	for _, id := range []uint8{0, 2, 4, 0xFF} {
		data := buildTransferPayload(id, 1, 2, 1, nil)
		_, err := DecodeTransfer(data)
		assert.ErrorIs(t, err, ErrUnrecognizedPayload, "id=%d", id)
	}
}

func TestDecodeRelayerPayload(t *testing.T) {
	data := make([]byte, 97)
	data[0] = 1
	binary.BigEndian.PutUint64(data[25:33], 7_000)
	binary.BigEndian.PutUint64(data[57:65], 300)
	for i := 65; i < 97; i++ {
		data[i] = 0xCC
	}

	p, err := DecodeRelayerPayload(data)
	require.NoError(t, err)
	assert.Equal(t, uint8(1), p.PayloadID)
	assert.Equal(t, uint256.NewInt(7_000), p.RelayerFee)
	assert.Equal(t, uint256.NewInt(300), p.ToNativeTokenAmount)
	for _, b := range p.TargetRecipient {
		assert.Equal(t, byte(0xCC), b)
	}

	_, err = DecodeRelayerPayload(data[:96])
	assert.Error(t, err)
}

func testVAA() *vaaLib.VAA {
	var emitter vaaLib.Address
	emitter[31] = 0x29
	return &vaaLib.VAA{
		Version:          1,
		GuardianSetIndex: 4,
		Timestamp:        time.Unix(1700000000, 0),
		Nonce:            17,
		Sequence:         1337,
		ConsistencyLevel: 1,
		EmitterChain:     vaaLib.ChainIDEthereum,
		EmitterAddress:   emitter,
		Payload:          buildTransferPayload(PayloadIDTransfer, 0xF4240, 2, 1, nil),
	}
}

func TestVAADigestMatchesSigningDigest(t *testing.T) {
	v := testVAA()
	signed, err := v.Marshal()
	require.NoError(t, err)

	digest, err := VAADigest(signed)
	require.NoError(t, err)
	assert.Equal(t, [32]byte(v.SigningDigest()), digest)
}

func TestVAABodyHash(t *testing.T) {
	v := testVAA()

	// The signing digest is the keccak of the single-keccak body hash.
	body := VAABodyHash(v)
	h := sha3.NewLegacyKeccak256()
	h.Write(body[:])
	assert.Equal(t, v.SigningDigest().Bytes(), h.Sum(nil))
}

func TestParseVAARejectsGarbage(t *testing.T) {
	_, err := ParseVAA([]byte{0x01, 0x02})
	assert.Error(t, err)
}
