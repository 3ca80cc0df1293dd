// Package message decodes the token bridge wire formats: the transfer payload
// embedded in a signed attestation and the relayer sub-payload nested inside
// a transfer-with-payload.
package message

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
	"golang.org/x/crypto/sha3"
)

// ErrUnrecognizedPayload means the payload discriminant byte names a shape
// this codec does not understand.
var ErrUnrecognizedPayload = errors.New("unrecognized payload discriminant")

// Payload discriminants of the token bridge message envelope.
const (
	PayloadIDTransfer            = 1
	PayloadIDTransferWithPayload = 3
)

// Transfer payload layout, big-endian:
//
//	0    payloadID            1 byte
//	1    amount               32 bytes
//	33   token address        32 bytes
//	65   token chain id       2 bytes
//	67   recipient address    32 bytes
//	99   recipient chain id   2 bytes
//	101  trailing payload     variable (payloadID 3 only)
const transferLen = 101

// Transfer is a decoded token bridge transfer payload. Addresses are in the
// canonical 32-byte representation; translation to native formats is the
// chain contexts' job.
type Transfer struct {
	PayloadID    uint8
	Amount       *uint256.Int
	TokenAddress vaaLib.Address
	TokenChain   vaaLib.ChainID
	To           vaaLib.Address
	ToChain      vaaLib.ChainID
	// Payload carries the opaque trailing bytes of a transfer-with-payload.
	// Nil for a basic transfer.
	Payload []byte
}

// DecodeTransfer decodes a token bridge payload. The leading discriminant
// selects the shape; anything other than 1 or 3 is a hard error, never
// interpreted as a compatible superset.
func DecodeTransfer(data []byte) (*Transfer, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("empty payload")
	}
	switch data[0] {
	case PayloadIDTransfer:
		if len(data) != transferLen {
			return nil, fmt.Errorf("transfer payload must be %d bytes, got %d", transferLen, len(data))
		}
	case PayloadIDTransferWithPayload:
		if len(data) < transferLen {
			return nil, fmt.Errorf("transfer-with-payload must be at least %d bytes, got %d", transferLen, len(data))
		}
	default:
		return nil, fmt.Errorf("payload id %d: %w", data[0], ErrUnrecognizedPayload)
	}

	t := &Transfer{
		PayloadID:  data[0],
		Amount:     new(uint256.Int).SetBytes32(data[1:33]),
		TokenChain: vaaLib.ChainID(binary.BigEndian.Uint16(data[65:67])),
		ToChain:    vaaLib.ChainID(binary.BigEndian.Uint16(data[99:101])),
	}
	copy(t.TokenAddress[:], data[33:65])
	copy(t.To[:], data[67:99])
	if t.PayloadID == PayloadIDTransferWithPayload {
		t.Payload = data[transferLen:]
	}
	return t, nil
}

// RelayerPayload is the structured sub-payload a relayer message carries in
// the trailing bytes of a transfer-with-payload. This is the conventional
// layout; ecosystems with a different layout override decoding in their
// chain context.
type RelayerPayload struct {
	PayloadID           uint8
	TargetRecipient     vaaLib.Address
	RelayerFee          *uint256.Int
	ToNativeTokenAmount *uint256.Int
}

// Relayer sub-payload layout, big-endian:
//
//	0   payloadID                  1 byte
//	1   target relayer fee         32 bytes
//	33  to-native token amount     32 bytes
//	65  target recipient           32 bytes
const relayerPayloadLen = 97

// DecodeRelayerPayload decodes the conventional relayer sub-payload.
func DecodeRelayerPayload(data []byte) (*RelayerPayload, error) {
	if len(data) != relayerPayloadLen {
		return nil, fmt.Errorf("relayer payload must be %d bytes, got %d", relayerPayloadLen, len(data))
	}
	p := &RelayerPayload{
		PayloadID:           data[0],
		RelayerFee:          new(uint256.Int).SetBytes32(data[1:33]),
		ToNativeTokenAmount: new(uint256.Int).SetBytes32(data[33:65]),
	}
	copy(p.TargetRecipient[:], data[65:97])
	return p, nil
}

// ParseVAA decodes a signed attestation envelope. The payload bytes stay
// opaque here; callers hand them to DecodeTransfer.
func ParseVAA(signed []byte) (*vaaLib.VAA, error) {
	v, err := vaaLib.Unmarshal(signed)
	if err != nil {
		return nil, fmt.Errorf("unmarshal vaa: %w", err)
	}
	return v, nil
}

// VAADigest computes the double-keccak body digest destination bridges use to
// track redeemed transfers.
func VAADigest(signed []byte) ([32]byte, error) {
	v, err := ParseVAA(signed)
	if err != nil {
		return [32]byte{}, err
	}
	return [32]byte(v.SigningDigest()), nil
}

// VAABodyHash is the single-keccak hash of the attestation body. Solana-style
// bridges key the posted-attestation account by this hash rather than the
// double-keccak signing digest.
func VAABodyHash(v *vaaLib.VAA) [32]byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.BigEndian, uint32(v.Timestamp.Unix()))
	binary.Write(buf, binary.BigEndian, v.Nonce)
	binary.Write(buf, binary.BigEndian, v.EmitterChain)
	buf.Write(v.EmitterAddress[:])
	binary.Write(buf, binary.BigEndian, v.Sequence)
	binary.Write(buf, binary.BigEndian, v.ConsistencyLevel)
	buf.Write(v.Payload)

	h := sha3.NewLegacyKeccak256()
	h.Write(buf.Bytes())
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
