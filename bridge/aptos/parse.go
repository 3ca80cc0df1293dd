package aptos

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"

	aptoslib "github.com/aptos-labs/aptos-go-sdk"
	"github.com/holiman/uint256"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
	"go.uber.org/zap"

	"github.com/wormhole-demo/bridge/bridge"
	"github.com/wormhole-demo/bridge/bridge/message"
)

// isPublishEvent matches the core contract's message event, tolerating the
// API's short-form address rendering.
func (c *Context) isPublishEvent(eventType string) bool {
	parts := strings.SplitN(eventType, "::", 2)
	if len(parts) != 2 || parts[1] != "state::WormholeMessage" {
		return false
	}
	var addr aptoslib.AccountAddress
	if err := addr.ParseStringRelaxed(parts[0]); err != nil {
		return false
	}
	return addr == c.coreAddr
}

// ParseMessagesFromTx fetches the transaction and decodes every bridge
// message event the core contract emitted, in event order.
func (c *Context) ParseMessagesFromTx(ctx context.Context, txID string) ([]*bridge.ParsedMessage, error) {
	status, body, err := c.restGet(ctx, "/transactions/by_hash/"+txID)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, fmt.Errorf("%s on %s: %w", txID, c.cfg.Key, bridge.ErrReceiptNotFound)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("transaction %s on %s: status %d", txID, c.cfg.Key, status)
	}

	blockNumber := body.Get("version").Uint()
	sender := body.Get("sender").String()
	gasFee := new(uint256.Int).Mul(
		uint256.NewInt(body.Get("gas_used").Uint()),
		uint256.NewInt(body.Get("gas_unit_price").Uint()))

	events := body.Get("events").Array()
	msgs := make([]*bridge.ParsedMessage, 0, len(events))
	for _, ev := range events {
		if !c.isPublishEvent(ev.Get("type").String()) {
			continue
		}
		data := ev.Get("data")

		// The emitter id is a u64 occupying the low 8 bytes of the address.
		var emitter vaaLib.Address
		binary.BigEndian.PutUint64(emitter[24:], data.Get("sender").Uint())

		payload, err := hex.DecodeString(strings.TrimPrefix(data.Get("payload").String(), "0x"))
		if err != nil {
			return nil, fmt.Errorf("event payload of %s: %w", txID, err)
		}

		t, err := message.DecodeTransfer(payload)
		if err != nil {
			return nil, fmt.Errorf("decode message of %s on %s: %w", txID, c.cfg.Key, err)
		}
		parsed := bridge.EnrichTransfer(c.registry, t)
		parsed.Sender = sender
		parsed.FromChain = c.cfg.Ref()
		parsed.Sequence = data.Get("sequence").Uint()
		parsed.EmitterAddress = emitter
		parsed.BlockNumber = blockNumber
		parsed.GasFee = gasFee
		msgs = append(msgs, parsed)
	}

	c.logger.Debug("Parsed bridge messages",
		zap.String("txID", txID),
		zap.Int("count", len(msgs)))
	return msgs, nil
}
