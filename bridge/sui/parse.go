package sui

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/block-vision/sui-go-sdk/models"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/wormhole-demo/bridge/bridge"
	"github.com/wormhole-demo/bridge/bridge/message"
)

// eventPayloadBytes decodes the payload field of a publish event, which nodes
// report either as a byte array or base64.
func eventPayloadBytes(payload gjson.Result) ([]byte, error) {
	if payload.IsArray() {
		arr := payload.Array()
		out := make([]byte, len(arr))
		for i, v := range arr {
			out[i] = byte(v.Uint())
		}
		return out, nil
	}
	raw, err := base64.StdEncoding.WithPadding(base64.NoPadding).DecodeString(payload.String())
	if err != nil {
		return nil, fmt.Errorf("decode event payload: %w", err)
	}
	return raw, nil
}

// ParseMessagesFromTx fetches the transaction block and decodes every bridge
// publish event the core package emitted, in event order.
func (c *Context) ParseMessagesFromTx(ctx context.Context, txID string) ([]*bridge.ParsedMessage, error) {
	resp, err := c.client.SuiGetTransactionBlock(ctx, models.SuiGetTransactionBlockRequest{
		Digest: txID,
		Options: models.SuiTransactionBlockOptions{
			ShowEvents:  true,
			ShowEffects: true,
		},
	})
	if err != nil {
		if strings.Contains(err.Error(), "not find") || strings.Contains(err.Error(), "not found") {
			return nil, fmt.Errorf("%s on %s: %w", txID, c.cfg.Key, bridge.ErrReceiptNotFound)
		}
		return nil, fmt.Errorf("transaction %s on %s: %w", txID, c.cfg.Key, err)
	}
	if err := c.resolvePackages(ctx); err != nil {
		return nil, err
	}
	publishType := c.corePkg + "::publish_message::WormholeMessage"

	var blockNumber uint64
	if resp.Checkpoint != "" {
		blockNumber, _ = strconv.ParseUint(resp.Checkpoint, 10, 64)
	}

	msgs := make([]*bridge.ParsedMessage, 0, len(resp.Events))
	for _, ev := range resp.Events {
		if ev.Type != publishType {
			continue
		}
		raw, err := json.Marshal(ev.ParsedJson)
		if err != nil {
			return nil, fmt.Errorf("event of %s on %s: %w", txID, c.cfg.Key, err)
		}
		fields := gjson.ParseBytes(raw)

		payload, err := eventPayloadBytes(fields.Get("payload"))
		if err != nil {
			return nil, err
		}
		emitter, err := c.FormatAddress(fields.Get("sender").String())
		if err != nil {
			return nil, fmt.Errorf("event emitter of %s: %w", txID, err)
		}

		t, err := message.DecodeTransfer(payload)
		if err != nil {
			return nil, fmt.Errorf("decode message of %s on %s: %w", txID, c.cfg.Key, err)
		}
		parsed := bridge.EnrichTransfer(c.registry, t)
		parsed.Sender = ev.Sender
		parsed.FromChain = c.cfg.Ref()
		parsed.Sequence = fields.Get("sequence").Uint()
		parsed.EmitterAddress = emitter
		parsed.BlockNumber = blockNumber
		msgs = append(msgs, parsed)
	}

	c.logger.Debug("Parsed bridge messages",
		zap.String("txID", txID),
		zap.Int("count", len(msgs)))
	return msgs, nil
}
