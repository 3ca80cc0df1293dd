package chains

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wormhole-demo/bridge/bridge"
)

func TestConfigsCoverEveryKind(t *testing.T) {
	for _, network := range []Network{Mainnet, Testnet} {
		configs, err := Configs(network)
		require.NoError(t, err)

		kinds := map[bridge.ContextKind]bool{}
		for _, cfg := range configs {
			kinds[cfg.Kind] = true

			assert.NotEmpty(t, cfg.Key, "%s/%s", network, cfg.Key)
			assert.NotEmpty(t, cfg.Contracts.CoreBridge, "%s/%s", network, cfg.Key)
			assert.NotEmpty(t, cfg.Contracts.TokenBridge, "%s/%s", network, cfg.Key)
			assert.NotZero(t, cfg.NativeTokenDecimals, "%s/%s", network, cfg.Key)

			// Keys must resolve through the SDK's chain name registry to the
			// configured numeric id.
			id, err := bridge.ChainByName(cfg.Key).ChainID()
			require.NoError(t, err, "%s/%s", network, cfg.Key)
			assert.Equal(t, cfg.ID, id, "%s/%s", network, cfg.Key)
		}
		assert.Len(t, kinds, 5, "one chain per context kind on %s", network)
	}
}

func TestConfigLookup(t *testing.T) {
	cfg, err := Config(Mainnet, "ethereum")
	require.NoError(t, err)
	assert.Equal(t, bridge.KindEVM, cfg.Kind)
	assert.Equal(t, "0x3ee18B2214AFF97000D974cf647E7C347E8fa585", cfg.Contracts.TokenBridge)

	_, err = Config(Mainnet, "near")
	assert.ErrorIs(t, err, bridge.ErrUnknownChain)
}

func TestConfigsUnknownNetwork(t *testing.T) {
	_, err := Configs(Network("devnet"))
	assert.Error(t, err)
}

func TestConfigsReturnsACopy(t *testing.T) {
	first, err := Configs(Mainnet)
	require.NoError(t, err)
	first[0].Contracts.TokenBridge = "mutated"

	second, err := Configs(Mainnet)
	require.NoError(t, err)
	assert.NotEqual(t, "mutated", second[0].Contracts.TokenBridge)
}
