package bridge

import (
	"context"

	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

// RelayerFeeEngine composes fee and swap-amount quotes out of context
// queries. Pure delegation, no caching: decimals and foreign-asset
// resolution are stable per token/chain pair, so callers needing repeated
// quotes cache at the call site.
type RelayerFeeEngine struct {
	registry *Registry
	logger   *zap.Logger
}

func NewRelayerFeeEngine(logger *zap.Logger, registry *Registry) *RelayerFeeEngine {
	return &RelayerFeeEngine{
		registry: registry,
		logger:   logger.With(zap.String("component", "RelayerFeeEngine")),
	}
}

// Fee quotes the relayer fee for carrying token from source to dest,
// denominated in token units on the source chain.
func (e *RelayerFeeEngine) Fee(ctx context.Context, source, dest ChainRef, token TokenID) (*uint256.Int, error) {
	src, err := e.registry.Context(source)
	if err != nil {
		return nil, err
	}
	return src.GetRelayerFee(ctx, dest, token)
}

// MaxSwapAmount quotes the largest amount of token the destination relayer
// will convert into native gas currency.
func (e *RelayerFeeEngine) MaxSwapAmount(ctx context.Context, dest ChainRef, token TokenID) (*uint256.Int, error) {
	dst, err := e.registry.Context(dest)
	if err != nil {
		return nil, err
	}
	return dst.CalculateMaxSwapAmount(ctx, token)
}

// NativeTokenAmount quotes how much destination-chain gas currency the
// relayer pays out for converting amount of token.
func (e *RelayerFeeEngine) NativeTokenAmount(ctx context.Context, dest ChainRef, token TokenID, amount *uint256.Int) (*uint256.Int, error) {
	dst, err := e.registry.Context(dest)
	if err != nil {
		return nil, err
	}
	return dst.CalculateNativeTokenAmt(ctx, token, amount)
}
