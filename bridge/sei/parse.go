package sei

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"

	"github.com/tidwall/gjson"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
	"go.uber.org/zap"

	"github.com/wormhole-demo/bridge/bridge"
	"github.com/wormhole-demo/bridge/bridge/message"
)

// eventAttributes flattens a wasm event's attributes, decoding the base64
// form older nodes emit.
func eventAttributes(event gjson.Result) map[string]string {
	out := map[string]string{}
	for _, attr := range event.Get("attributes").Array() {
		key := attr.Get("key").String()
		value := attr.Get("value").String()
		if k, err := base64.StdEncoding.DecodeString(key); err == nil {
			if v, err := base64.StdEncoding.DecodeString(value); err == nil {
				key, value = string(k), string(v)
			}
		}
		if _, dup := out[key]; !dup {
			out[key] = value
		}
	}
	return out
}

// ParseMessagesFromTx fetches the transaction and decodes every bridge
// message the core contract's wasm events carry, in event order.
func (c *Context) ParseMessagesFromTx(ctx context.Context, txID string) ([]*bridge.ParsedMessage, error) {
	status, body, err := c.lcdGet(ctx, "/cosmos/tx/v1beta1/txs/"+txID)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, fmt.Errorf("%s on %s: %w", txID, c.cfg.Key, bridge.ErrReceiptNotFound)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("transaction %s on %s: status %d", txID, c.cfg.Key, status)
	}
	if code := body.Get("tx_response.code").Uint(); code != 0 {
		return nil, fmt.Errorf("transaction %s failed: %s", txID, body.Get("tx_response.raw_log").String())
	}

	blockNumber := body.Get("tx_response.height").Uint()
	sender := body.Get("tx.body.messages.0.sender").String()

	events := body.Get("tx_response.events").Array()
	msgs := make([]*bridge.ParsedMessage, 0, len(events))
	for _, event := range events {
		if event.Get("type").String() != "wasm" {
			continue
		}
		attrs := eventAttributes(event)
		contract := attrs["_contract_address"]
		if contract == "" {
			contract = attrs["contract_address"]
		}
		if contract != c.cfg.Contracts.CoreBridge {
			continue
		}
		payloadHex, ok := attrs["message.message"]
		if !ok {
			continue
		}
		payload, err := hex.DecodeString(payloadHex)
		if err != nil {
			return nil, fmt.Errorf("event payload of %s: %w", txID, err)
		}
		emitterRaw, err := hex.DecodeString(attrs["message.sender"])
		if err != nil || len(emitterRaw) != 32 {
			return nil, fmt.Errorf("event emitter of %s is invalid", txID)
		}
		var emitter vaaLib.Address
		copy(emitter[:], emitterRaw)

		t, err := message.DecodeTransfer(payload)
		if err != nil {
			return nil, fmt.Errorf("decode message of %s on %s: %w", txID, c.cfg.Key, err)
		}
		parsed := bridge.EnrichTransfer(c.registry, t)
		parsed.Sender = sender
		parsed.FromChain = c.cfg.Ref()
		sequence, err := strconv.ParseUint(attrs["message.sequence"], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("event sequence of %s is invalid", txID)
		}
		parsed.Sequence = sequence
		parsed.EmitterAddress = emitter
		parsed.BlockNumber = blockNumber
		msgs = append(msgs, parsed)
	}

	c.logger.Debug("Parsed bridge messages",
		zap.String("txID", txID),
		zap.Int("count", len(msgs)))
	return msgs, nil
}
