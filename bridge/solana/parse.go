package solana

import (
	"context"
	"fmt"

	solanalib "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/holiman/uint256"
	"github.com/near/borsh-go"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
	"go.uber.org/zap"

	"github.com/wormhole-demo/bridge/bridge"
	"github.com/wormhole-demo/bridge/bridge/message"
)

// Core bridge post-message instruction discriminators and the message account
// data prefixes they produce.
const (
	postMessageInstructionID           = 0x01
	postMessageUnreliableInstructionID = 0x08
	accountPrefixReliable              = "msg"
	accountPrefixUnreliable            = "msu"
)

// messagePublicationAccount is the borsh layout of a posted bridge message
// account, after its 3-byte prefix.
type messagePublicationAccount struct {
	VaaVersion          uint8
	ConsistencyLevel    uint8
	VaaTime             uint32
	VaaSignatureAccount vaaLib.Address
	SubmissionTime      uint32
	Nonce               uint32
	Sequence            uint64
	EmitterChain        uint16
	EmitterAddress      vaaLib.Address
	Payload             []byte
}

func parseMessagePublicationAccount(data []byte) (*messagePublicationAccount, error) {
	if len(data) < 3 {
		return nil, fmt.Errorf("message account too short: %d bytes", len(data))
	}
	prefix := string(data[:3])
	if prefix != accountPrefixReliable && prefix != accountPrefixUnreliable {
		return nil, fmt.Errorf("unexpected message account prefix %q", prefix)
	}
	acc := &messagePublicationAccount{}
	if err := borsh.Deserialize(acc, data[3:]); err != nil {
		return nil, fmt.Errorf("deserialize message account: %w", err)
	}
	return acc, nil
}

// ParseMessagesFromTx fetches the transaction and decodes every bridge
// message posted through the core program, including CPI calls from the token
// bridge. A transaction with no matching instructions yields an empty slice.
func (c *Context) ParseMessagesFromTx(ctx context.Context, txID string) ([]*bridge.ParsedMessage, error) {
	sig, err := solanalib.SignatureFromBase58(txID)
	if err != nil {
		return nil, fmt.Errorf("invalid signature %q: %w", txID, err)
	}
	maxVersion := uint64(0)
	out, err := c.client.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Encoding:                       solanalib.EncodingBase64,
		Commitment:                     rpc.CommitmentFinalized,
		MaxSupportedTransactionVersion: &maxVersion,
	})
	if err == rpc.ErrNotFound {
		return nil, fmt.Errorf("%s on %s: %w", txID, c.cfg.Key, bridge.ErrReceiptNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("transaction %s on %s: %w", txID, c.cfg.Key, err)
	}

	tx, err := out.Transaction.GetTransaction()
	if err != nil {
		return nil, fmt.Errorf("decode transaction %s: %w", txID, err)
	}
	keys := tx.Message.AccountKeys

	// The second account of a well-formed post-message instruction is the
	// message account.
	var messageAccounts []solanalib.PublicKey
	collect := func(inst solanalib.CompiledInstruction) {
		if int(inst.ProgramIDIndex) >= len(keys) || !keys[inst.ProgramIDIndex].Equals(c.core) {
			return
		}
		if len(inst.Data) == 0 {
			return
		}
		if inst.Data[0] != postMessageInstructionID && inst.Data[0] != postMessageUnreliableInstructionID {
			return
		}
		if len(inst.Accounts) < 2 || int(inst.Accounts[1]) >= len(keys) {
			return
		}
		messageAccounts = append(messageAccounts, keys[inst.Accounts[1]])
	}
	for _, inst := range tx.Message.Instructions {
		collect(inst)
	}
	if out.Meta != nil {
		for _, inner := range out.Meta.InnerInstructions {
			for _, inst := range inner.Instructions {
				collect(inst)
			}
		}
	}

	var gasFee *uint256.Int
	sender := ""
	if len(keys) > 0 {
		sender = keys[0].String()
	}
	if out.Meta != nil {
		gasFee = uint256.NewInt(out.Meta.Fee)
	}

	msgs := make([]*bridge.ParsedMessage, 0, len(messageAccounts))
	for _, acc := range messageAccounts {
		info, err := c.client.GetAccountInfo(ctx, acc)
		if err != nil {
			return nil, fmt.Errorf("message account %s on %s: %w", acc, c.cfg.Key, err)
		}
		published, err := parseMessagePublicationAccount(info.Value.Data.GetBinary())
		if err != nil {
			return nil, err
		}

		t, err := message.DecodeTransfer(published.Payload)
		if err != nil {
			return nil, fmt.Errorf("decode message of %s on %s: %w", txID, c.cfg.Key, err)
		}
		parsed := bridge.EnrichTransfer(c.registry, t)
		parsed.Sender = sender
		parsed.FromChain = c.cfg.Ref()
		parsed.Sequence = published.Sequence
		parsed.EmitterAddress = published.EmitterAddress
		parsed.BlockNumber = out.Slot
		parsed.GasFee = gasFee
		msgs = append(msgs, parsed)
	}

	c.logger.Debug("Parsed bridge messages",
		zap.String("txID", txID),
		zap.Int("count", len(msgs)))
	return msgs, nil
}
