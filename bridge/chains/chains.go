// Package chains carries the static per-network deployment tables and
// assembles a ready-to-use registry from them.
package chains

import (
	"fmt"

	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"

	"github.com/wormhole-demo/bridge/bridge"
)

// Network selects a deployment environment.
type Network string

const (
	Mainnet Network = "mainnet"
	Testnet Network = "testnet"
)

// mainnetConfigs lists the production bridge deployments, one chain per
// supported context kind. Contract addresses are the canonical Wormhole
// deployments.
var mainnetConfigs = []bridge.ChainConfig{
	{
		Key:  "ethereum",
		ID:   vaaLib.ChainIDEthereum,
		Kind: bridge.KindEVM,
		Contracts: bridge.Contracts{
			CoreBridge:  "0x98f3c9e6E3fAce36bAAd05FE09d375Ef1464288B",
			TokenBridge: "0x3ee18B2214AFF97000D974cf647E7C347E8fa585",
			Relayer:     "0xCafd2f0A35A4459fA40C0517e17e6fA2939441CA",
		},
		FinalityThreshold:   64,
		NativeTokenDecimals: 18,
	},
	{
		Key:  "solana",
		ID:   vaaLib.ChainIDSolana,
		Kind: bridge.KindSolana,
		Contracts: bridge.Contracts{
			CoreBridge:  "worm2ZoG2kUd4vFXhvjh93UUH596ayRfgQ2MgjNMTth",
			TokenBridge: "wormDTUJ6AWPNvk59vGQbDvGJmqbDTdgWgAqcLBCgUb",
		},
		FinalityThreshold:   32,
		NativeTokenDecimals: 9,
	},
	{
		Key:  "sui",
		ID:   vaaLib.ChainIDSui,
		Kind: bridge.KindSui,
		Contracts: bridge.Contracts{
			CoreBridge:  "0xaeab97f96cf9877fee2883315d459552b2b921edc16d7ceac6eab944dd44919a",
			TokenBridge: "0xc57508ee0d4595e5a8728974a4a93a787d38f339757230d441e895422c07aba9",
		},
		FinalityThreshold:   0,
		NativeTokenDecimals: 9,
	},
	{
		Key:  "aptos",
		ID:   vaaLib.ChainIDAptos,
		Kind: bridge.KindAptos,
		Contracts: bridge.Contracts{
			CoreBridge:  "0x5bc11445584a763c1fa7ed39081f1b920954da14e04b32440cba863d03e19625",
			TokenBridge: "0x576410486a2da45eee6c949c995670112ddf2fbeedab20350d506328eefc9d4f",
		},
		FinalityThreshold:   0,
		NativeTokenDecimals: 8,
	},
	{
		Key:  "sei",
		ID:   vaaLib.ChainIDSei,
		Kind: bridge.KindSei,
		Contracts: bridge.Contracts{
			CoreBridge:  "sei1gjrrme22cyha4ht2xapn3f08zzw6z3d4uxx6fyy9zd5dyr3yxgzqqncdqn",
			TokenBridge: "sei1smzlm9t79kur392nu9egl8p8je9j92q4gzguewj56a05kyxxra0qy0nuf3",
		},
		FinalityThreshold:   1,
		NativeTokenDecimals: 6,
	},
}

// testnetConfigs lists the public test deployments. The EVM chain is
// Sepolia; the rest are the chains' own testnets (Aptos and Sui reuse the
// mainnet package addresses on their testnets where the deployments match).
var testnetConfigs = []bridge.ChainConfig{
	{
		Key:  "sepolia",
		ID:   vaaLib.ChainIDSepolia,
		Kind: bridge.KindEVM,
		Contracts: bridge.Contracts{
			CoreBridge:  "0x4a8bc80Ed5a4067f1CCf107057b8270E0cC11A78",
			TokenBridge: "0xDB5492265f6038831E89f495670FF909aDe94bd9",
		},
		FinalityThreshold:   32,
		NativeTokenDecimals: 18,
	},
	{
		Key:  "solana",
		ID:   vaaLib.ChainIDSolana,
		Kind: bridge.KindSolana,
		Contracts: bridge.Contracts{
			CoreBridge:  "3u8hJUVTA4jH1wYAyUur7FFZVQ8H635K3tSHHF4ssjQ5",
			TokenBridge: "DZnkkTmCiFWfYTfT41X3Rd1kDgozqzxWaHqsw6W4x2oe",
		},
		FinalityThreshold:   32,
		NativeTokenDecimals: 9,
	},
	{
		Key:  "sui",
		ID:   vaaLib.ChainIDSui,
		Kind: bridge.KindSui,
		Contracts: bridge.Contracts{
			CoreBridge:  "0x31358d198147da50db32eda2562951d53973a0c0ad5ed738e9b17d88b213d790",
			TokenBridge: "0x6fb10cdb7aa299e9a4308752dadecb049ff55a892de92992a1edbd7912b3d6da",
		},
		FinalityThreshold:   0,
		NativeTokenDecimals: 9,
	},
	{
		Key:  "aptos",
		ID:   vaaLib.ChainIDAptos,
		Kind: bridge.KindAptos,
		Contracts: bridge.Contracts{
			CoreBridge:  "0x5bc11445584a763c1fa7ed39081f1b920954da14e04b32440cba863d03e19625",
			TokenBridge: "0x576410486a2da45eee6c949c995670112ddf2fbeedab20350d506328eefc9d4f",
		},
		FinalityThreshold:   0,
		NativeTokenDecimals: 8,
	},
	{
		Key:  "sei",
		ID:   vaaLib.ChainIDSei,
		Kind: bridge.KindSei,
		Contracts: bridge.Contracts{
			CoreBridge:  "sei1nna9mzp274djrgzhzkac2gvm3j27l402s4xzr08chq57pjsupqnqaj0d5s",
			TokenBridge: "sei1jv5xw094mclanxt5emammy875qelf3v62u4tl4lp5nhte3w3s9ts9w9az2",
		},
		FinalityThreshold:   1,
		NativeTokenDecimals: 6,
	},
}

// Configs returns a copy of the chain table for the network.
func Configs(network Network) ([]bridge.ChainConfig, error) {
	var src []bridge.ChainConfig
	switch network {
	case Mainnet:
		src = mainnetConfigs
	case Testnet:
		src = testnetConfigs
	default:
		return nil, fmt.Errorf("unknown network %q", network)
	}
	out := make([]bridge.ChainConfig, len(src))
	copy(out, src)
	return out, nil
}

// Config returns the chain's entry in the network table.
func Config(network Network, key string) (bridge.ChainConfig, error) {
	configs, err := Configs(network)
	if err != nil {
		return bridge.ChainConfig{}, err
	}
	for _, cfg := range configs {
		if cfg.Key == key {
			return cfg, nil
		}
	}
	return bridge.ChainConfig{}, fmt.Errorf("%w: %q on %s", bridge.ErrUnknownChain, key, network)
}
