package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
)

func TestChainRefCoalescing(t *testing.T) {
	byName := ChainByName("ethereum")
	byID := ChainByID(vaaLib.ChainIDEthereum)

	nameID, err := byName.ChainID()
	require.NoError(t, err)
	idID, err := byID.ChainID()
	require.NoError(t, err)
	assert.Equal(t, nameID, idID)
	assert.True(t, byName.Equal(byID))
}

func TestChainRefNameIsCaseInsensitive(t *testing.T) {
	ref := ChainByName("Solana")
	id, err := ref.ChainID()
	require.NoError(t, err)
	assert.Equal(t, vaaLib.ChainIDSolana, id)
}

func TestParseChainRef(t *testing.T) {
	numeric, err := ParseChainRef("2")
	require.NoError(t, err)
	named, err := ParseChainRef("ethereum")
	require.NoError(t, err)
	assert.True(t, numeric.Equal(named))

	_, err = ParseChainRef("")
	assert.ErrorIs(t, err, ErrUnknownChain)
}

func TestChainRefUnknownName(t *testing.T) {
	_, err := ChainByName("atlantis").ChainID()
	assert.ErrorIs(t, err, ErrUnknownChain)
}

func TestTokenIDNativeSentinel(t *testing.T) {
	native := TokenID{Chain: ChainByName("sui")}
	assert.True(t, native.IsNative())
	assert.Equal(t, "sui/native", native.String())

	erc20 := TokenID{Chain: ChainByName("ethereum"), Address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"}
	assert.False(t, erc20.IsNative())
}
