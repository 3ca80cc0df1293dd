package evm

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/wormhole-demo/bridge/bridge"
	"github.com/wormhole-demo/bridge/bridge/message"
)

// ParseMessagesFromTx fetches the transaction receipt and decodes every
// bridge message the core contract emitted, in log order. A receipt with no
// matching logs yields an empty slice.
func (c *Context) ParseMessagesFromTx(ctx context.Context, txID string) ([]*bridge.ParsedMessage, error) {
	receipt, err := c.client.TransactionReceipt(ctx, common.HexToHash(txID))
	if errors.Is(err, ethereum.NotFound) {
		return nil, fmt.Errorf("%s on %s: %w", txID, c.cfg.Key, bridge.ErrReceiptNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("receipt of %s on %s: %w", txID, c.cfg.Key, err)
	}

	// Gas actually paid. EffectiveGasPrice is absent on some pre-London
	// chains; the fee stays nil then, never estimated.
	var gasFee *uint256.Int
	if receipt.EffectiveGasPrice != nil {
		price, _ := uint256.FromBig(receipt.EffectiveGasPrice)
		gasFee = new(uint256.Int).Mul(price, uint256.NewInt(receipt.GasUsed))
	}

	coreBridge := common.HexToAddress(c.cfg.Contracts.CoreBridge)
	senderHex := ""
	if tx, _, err := c.client.TransactionByHash(ctx, common.HexToHash(txID)); err == nil && tx != nil {
		if from, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx); err == nil {
			senderHex = from.Hex()
		}
	}

	msgs := make([]*bridge.ParsedMessage, 0, len(receipt.Logs))
	for _, l := range receipt.Logs {
		if l == nil || l.Address != coreBridge {
			continue
		}
		if len(l.Topics) < 2 || l.Topics[0] != logMessagePublishedTopic {
			continue
		}

		var ev logMessagePublished
		if err := coreBridgeABI.UnpackIntoInterface(&ev, "LogMessagePublished", l.Data); err != nil {
			return nil, fmt.Errorf("unpack LogMessagePublished: %w", err)
		}
		emitter := common.BytesToAddress(l.Topics[1].Bytes())
		emitterUniversal, err := c.FormatAddress(emitter.Hex())
		if err != nil {
			return nil, err
		}

		t, err := message.DecodeTransfer(ev.Payload)
		if err != nil {
			return nil, fmt.Errorf("decode message of %s on %s: %w", txID, c.cfg.Key, err)
		}
		parsed := bridge.EnrichTransfer(c.registry, t)
		parsed.Sender = senderHex
		parsed.FromChain = c.cfg.Ref()
		parsed.Sequence = ev.Sequence
		parsed.EmitterAddress = emitterUniversal
		parsed.BlockNumber = receipt.BlockNumber.Uint64()
		parsed.GasFee = gasFee
		msgs = append(msgs, parsed)
	}

	c.logger.Debug("Parsed bridge messages",
		zap.String("txID", txID),
		zap.Int("count", len(msgs)))
	return msgs, nil
}
