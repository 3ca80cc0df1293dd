package bridge

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// TransferPipeline orchestrates prepare, simulate, submit and confirm
// uniformly across backends. Approval (when required) strictly precedes the
// transfer, and simulation strictly precedes submission; both orderings are
// enforced inside the contexts, the pipeline adds confirmation waits and
// message extraction on top.
//
// Concurrent invocations share no mutable state. Two sends from the same
// wallet must be serialized by the caller; nonce assignment is a backend
// concern. On cancellation nothing is rolled back beyond what the chain
// already committed: an approval may have landed even when the transfer was
// cancelled, so callers should re-check allowance before retrying.
type TransferPipeline struct {
	registry *Registry
	logger   *zap.Logger
}

func NewTransferPipeline(logger *zap.Logger, registry *Registry) *TransferPipeline {
	return &TransferPipeline{
		registry: registry,
		logger:   logger.With(zap.String("component", "TransferPipeline")),
	}
}

// TransferReceipt is the outcome of a completed send: the source transaction
// and the bridge messages it emitted, in log order.
type TransferReceipt struct {
	Chain    ChainRef
	TxID     string
	Messages []*ParsedMessage
}

// Transfer sends token out of its source chain to p.ToChain and waits for
// source-chain finality.
func (t *TransferPipeline) Transfer(ctx context.Context, from ChainRef, p SendParams) (*TransferReceipt, error) {
	src, err := t.registry.Context(from)
	if err != nil {
		return nil, err
	}

	t.logger.Info("Submitting transfer",
		zap.String("from", from.String()),
		zap.String("to", p.ToChain.String()),
		zap.String("token", p.Token.String()),
		zap.String("amount", p.Amount.Dec()))

	result, err := src.Send(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("send on %s: %w", from, err)
	}
	return t.finish(ctx, src, from, result)
}

// TransferWithPayload is Transfer with caller-supplied opaque bytes attached
// for the destination application.
func (t *TransferPipeline) TransferWithPayload(ctx context.Context, from ChainRef, p SendParams, payload []byte) (*TransferReceipt, error) {
	src, err := t.registry.Context(from)
	if err != nil {
		return nil, err
	}
	result, err := src.SendWithPayload(ctx, p, payload)
	if err != nil {
		return nil, fmt.Errorf("send with payload on %s: %w", from, err)
	}
	return t.finish(ctx, src, from, result)
}

// TransferWithRelay routes the send through the source chain's relayer
// contract so a third party delivers it on the destination.
func (t *TransferPipeline) TransferWithRelay(ctx context.Context, from ChainRef, p RelaySendParams) (*TransferReceipt, error) {
	src, err := t.registry.Context(from)
	if err != nil {
		return nil, err
	}
	result, err := src.SendWithRelay(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("send with relay on %s: %w", from, err)
	}
	return t.finish(ctx, src, from, result)
}

func (t *TransferPipeline) finish(ctx context.Context, src ChainContext, from ChainRef, result *TxResult) (*TransferReceipt, error) {
	t.logger.Info("Transfer submitted, waiting for finality",
		zap.String("chain", from.String()),
		zap.String("txID", result.TxID))

	if err := src.WaitForConfirmation(ctx, result.TxID); err != nil {
		return nil, fmt.Errorf("confirm %s on %s: %w", result.TxID, from, err)
	}

	msgs, err := src.ParseMessagesFromTx(ctx, result.TxID)
	if err != nil {
		return nil, fmt.Errorf("parse messages of %s on %s: %w", result.TxID, from, err)
	}

	return &TransferReceipt{Chain: from, TxID: result.TxID, Messages: msgs}, nil
}

// Redeem submits the signed attestation to the destination bridge's
// completion entry point. Already-redeemed attestations fail fast with
// ErrTransferCompleted before any transaction is built.
func (t *TransferPipeline) Redeem(ctx context.Context, dest ChainRef, signedVAA []byte) (*TxResult, error) {
	dst, err := t.registry.Context(dest)
	if err != nil {
		return nil, err
	}

	done, err := dst.IsTransferCompleted(ctx, signedVAA)
	if err != nil {
		return nil, fmt.Errorf("completion check on %s: %w", dest, err)
	}
	if done {
		return nil, fmt.Errorf("on %s: %w", dest, ErrTransferCompleted)
	}

	result, err := dst.Redeem(ctx, signedVAA)
	if err != nil {
		return nil, fmt.Errorf("redeem on %s: %w", dest, err)
	}

	t.logger.Info("Redeem submitted",
		zap.String("chain", dest.String()),
		zap.String("txID", result.TxID))

	if err := dst.WaitForConfirmation(ctx, result.TxID); err != nil {
		return nil, fmt.Errorf("confirm redeem %s on %s: %w", result.TxID, dest, err)
	}
	return result, nil
}
