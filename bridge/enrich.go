package bridge

import (
	"encoding/hex"

	"github.com/wormhole-demo/bridge/bridge/message"
)

// EnrichTransfer lifts a decoded wire transfer into a ParsedMessage,
// translating canonical addresses into the native formats of the chains that
// own them: the token address through the token's home-chain context, the
// recipient and any relayer sub-payload through the destination's. Chains
// missing from the registry leave the raw 32-byte hex in place.
func EnrichTransfer(registry *Registry, t *message.Transfer) *ParsedMessage {
	tokenNative := "0x" + hex.EncodeToString(t.TokenAddress[:])
	if home, err := registry.Context(ChainByID(t.TokenChain)); err == nil {
		if addr, err := home.ParseAssetAddress(t.TokenAddress); err == nil {
			tokenNative = addr
		}
	}

	toChain := ChainByID(t.ToChain)
	recipient := "0x" + hex.EncodeToString(t.To[:])
	var destCtx ChainContext
	if dest, err := registry.Context(toChain); err == nil {
		destCtx = dest
		if addr, err := dest.ParseAddress(t.To); err == nil {
			recipient = addr
		}
	}

	parsed := &ParsedMessage{
		PayloadID:    t.PayloadID,
		Amount:       t.Amount,
		Recipient:    recipient,
		ToChain:      toChain,
		TokenAddress: tokenNative,
		TokenChain:   t.TokenChain,
		TokenID: TokenID{
			Chain:   ChainByID(t.TokenChain),
			Address: tokenNative,
		},
		Payload: t.Payload,
	}

	if t.PayloadID == message.PayloadIDTransferWithPayload && destCtx != nil {
		// Relayer layouts vary per destination ecosystem, so the destination
		// context interprets the trailing bytes. Bytes that do not decode as
		// a relayer payload stay an opaque application payload.
		if relay, err := destCtx.DecodeRelayerPayload(t.Payload); err == nil {
			finalRecipient := recipient
			if addr, err := destCtx.ParseAddress(relay.TargetRecipient); err == nil {
				finalRecipient = addr
			}
			parsed.Relay = &RelayDetails{
				RelayerPayloadID:    relay.PayloadID,
				Recipient:           finalRecipient,
				RelayerFee:          relay.RelayerFee,
				ToNativeTokenAmount: relay.ToNativeTokenAmount,
			}
		}
	}
	return parsed
}
