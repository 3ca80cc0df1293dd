package chains

import (
	"encoding/hex"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/wormhole-demo/bridge/bridge"
	"github.com/wormhole-demo/bridge/bridge/aptos"
	"github.com/wormhole-demo/bridge/bridge/evm"
	"github.com/wormhole-demo/bridge/bridge/sei"
	"github.com/wormhole-demo/bridge/bridge/solana"
	"github.com/wormhole-demo/bridge/bridge/sui"
)

// Aptos ledger chain ids, distinct from Wormhole chain ids.
const (
	aptosMainnetChainID uint8 = 1
	aptosTestnetChainID uint8 = 2
)

// Endpoint is the operator-supplied connection material for one chain.
// PrivateKey is optional; a chain without one is registered read-only and
// rejects signing operations.
type Endpoint struct {
	RPC        string
	PrivateKey string
}

// Options configures registry assembly. Endpoints is keyed by the chain key
// from the network table; chains without an endpoint stay configured but get
// no context, so operations against them fail with ErrUnknownChain.
type Options struct {
	Network   Network
	Endpoints map[string]Endpoint
	// Contracts overrides the table's deployment addresses per chain key,
	// for private deployments and forks.
	Contracts map[string]bridge.Contracts
	// SeiBroadcaster signs and broadcasts CosmWasm executes. Without it the
	// Sei context is read-only.
	SeiBroadcaster sei.Broadcaster
}

// BuildRegistry assembles a registry with one context per endpointed chain.
func BuildRegistry(logger *zap.Logger, opts Options) (*bridge.Registry, error) {
	configs, err := Configs(opts.Network)
	if err != nil {
		return nil, err
	}
	for i, cfg := range configs {
		if override, ok := opts.Contracts[cfg.Key]; ok {
			configs[i].Contracts = override
		}
	}

	registry := bridge.NewRegistry(logger, configs)
	for _, cfg := range configs {
		ep, ok := opts.Endpoints[cfg.Key]
		if !ok {
			continue
		}
		ctx, err := buildContext(logger, registry, cfg, ep, opts)
		if err != nil {
			return nil, fmt.Errorf("build %s context: %w", cfg.Key, err)
		}
		registry.Register(ctx)
	}
	return registry, nil
}

func buildContext(logger *zap.Logger, registry *bridge.Registry, cfg bridge.ChainConfig, ep Endpoint, opts Options) (bridge.ChainContext, error) {
	switch cfg.Kind {
	case bridge.KindEVM:
		return evm.New(logger, registry, cfg, ep.RPC, ep.PrivateKey)
	case bridge.KindSolana:
		return solana.New(logger, registry, cfg, ep.RPC, ep.PrivateKey)
	case bridge.KindSui:
		var seed []byte
		if ep.PrivateKey != "" {
			var err error
			seed, err = hex.DecodeString(strings.TrimPrefix(ep.PrivateKey, "0x"))
			if err != nil {
				return nil, fmt.Errorf("decode key seed: %w", err)
			}
		}
		return sui.New(logger, registry, cfg, ep.RPC, seed)
	case bridge.KindAptos:
		ledgerID := aptosMainnetChainID
		if opts.Network == Testnet {
			ledgerID = aptosTestnetChainID
		}
		return aptos.New(logger, registry, cfg, ep.RPC, ep.PrivateKey, ledgerID)
	case bridge.KindSei:
		return sei.New(logger, registry, cfg, ep.RPC, opts.SeiBroadcaster)
	default:
		return nil, fmt.Errorf("unsupported context kind %s", cfg.Kind)
	}
}
