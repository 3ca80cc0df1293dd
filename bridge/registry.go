package bridge

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
	"go.uber.org/zap"

	"github.com/wormhole-demo/bridge/bridge/amount"
)

// Registry maps configured chains to their ChainContext and routes
// cross-chain queries. Built once at startup; read-only afterwards.
type Registry struct {
	configs  map[vaaLib.ChainID]ChainConfig
	byKey    map[string]vaaLib.ChainID
	contexts map[vaaLib.ChainID]ChainContext
	logger   *zap.Logger
}

// NewRegistry builds a registry over the given configs. Contexts are attached
// afterwards with Register, since each context needs the registry for
// cross-chain delegation.
func NewRegistry(logger *zap.Logger, configs []ChainConfig) *Registry {
	r := &Registry{
		configs:  make(map[vaaLib.ChainID]ChainConfig, len(configs)),
		byKey:    make(map[string]vaaLib.ChainID, len(configs)),
		contexts: make(map[vaaLib.ChainID]ChainContext, len(configs)),
		logger:   logger.With(zap.String("component", "Registry")),
	}
	for _, cfg := range configs {
		r.configs[cfg.ID] = cfg
		r.byKey[cfg.Key] = cfg.ID
	}
	return r
}

// Register attaches a context for its configured chain. Not safe for use
// after callers start issuing operations.
func (r *Registry) Register(ctx ChainContext) {
	cfg := ctx.Config()
	r.contexts[cfg.ID] = ctx
	r.logger.Debug("Registered chain context",
		zap.String("chain", cfg.Key),
		zap.Uint16("chainId", uint16(cfg.ID)),
		zap.String("kind", cfg.Kind.String()))
}

// Resolve coalesces a name-or-id reference to the configured chain ID.
func (r *Registry) Resolve(ref ChainRef) (vaaLib.ChainID, error) {
	id, err := ref.ChainID()
	if err != nil {
		return vaaLib.ChainIDUnset, err
	}
	if _, ok := r.configs[id]; !ok {
		return vaaLib.ChainIDUnset, fmt.Errorf("%w: %s not configured", ErrUnknownChain, ref)
	}
	return id, nil
}

// Config returns the static configuration for the chain.
func (r *Registry) Config(ref ChainRef) (ChainConfig, error) {
	id, err := r.Resolve(ref)
	if err != nil {
		return ChainConfig{}, err
	}
	return r.configs[id], nil
}

// Context returns the chain's backend.
func (r *Registry) Context(ref ChainRef) (ChainContext, error) {
	id, err := r.Resolve(ref)
	if err != nil {
		return nil, err
	}
	c, ok := r.contexts[id]
	if !ok {
		return nil, fmt.Errorf("%w: no context registered for %s", ErrUnknownChain, ref)
	}
	return c, nil
}

// Chains lists the configured chain configs.
func (r *Registry) Chains() []ChainConfig {
	out := make([]ChainConfig, 0, len(r.configs))
	for _, cfg := range r.configs {
		out = append(out, cfg)
	}
	return out
}

// GetForeignAsset resolves the token's representation on the given chain by
// delegating to that chain's context. The home-chain short-circuit lives in
// the contexts themselves.
func (r *Registry) GetForeignAsset(ctx context.Context, token TokenID, chain ChainRef) (string, error) {
	c, err := r.Context(chain)
	if err != nil {
		return "", err
	}
	return c.GetForeignAsset(ctx, token, chain)
}

// MustGetForeignAsset is GetForeignAsset that fails when the asset was never
// bridged to the chain.
func (r *Registry) MustGetForeignAsset(ctx context.Context, token TokenID, chain ChainRef) (string, error) {
	addr, err := r.GetForeignAsset(ctx, token, chain)
	if err != nil {
		return "", err
	}
	if addr == "" {
		return "", fmt.Errorf("%s on %s: %w", token, chain, ErrAssetNotRegistered)
	}
	return addr, nil
}

// TokenDecimals answers "what decimals does this token have on its home
// chain" by asking the home chain's context, regardless of which chain the
// caller is operating on.
func (r *Registry) TokenDecimals(ctx context.Context, token TokenID) (uint8, error) {
	home, err := r.Context(token.Chain)
	if err != nil {
		return 0, err
	}
	if token.IsNative() {
		return home.Config().NativeTokenDecimals, nil
	}
	return home.FetchTokenDecimals(ctx, token.Address)
}

// FormatTokenAddress maps the token's home-chain native address to the
// canonical 32-byte form using the home chain's asset codec.
func (r *Registry) FormatTokenAddress(token TokenID) (vaaLib.Address, error) {
	home, err := r.Context(token.Chain)
	if err != nil {
		return vaaLib.Address{}, err
	}
	return home.FormatAssetAddress(token.Address)
}

// WireAmount converts a home-chain native amount of the token to the
// 8-decimal wire scale. Lossy above 8 decimals.
func (r *Registry) WireAmount(ctx context.Context, token TokenID, raw *uint256.Int) (*uint256.Int, error) {
	decimals, err := r.TokenDecimals(ctx, token)
	if err != nil {
		return nil, err
	}
	return amount.Normalize(raw, decimals), nil
}
