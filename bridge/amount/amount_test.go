package amount

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeLowDecimalsIsIdentity(t *testing.T) {
	for _, decimals := range []uint8{0, 6, 8} {
		raw := uint256.NewInt(123456789)
		wire := Normalize(raw, decimals)
		assert.Equal(t, raw, wire, "decimals=%d", decimals)

		back, err := Denormalize(wire, decimals)
		require.NoError(t, err)
		assert.Equal(t, raw, back, "decimals=%d", decimals)
	}
}

func TestNormalizeFloorsSubWirePrecision(t *testing.T) {
	// 1.5 tokens at 18 decimals plus one wei of dust below the wire scale.
	raw, err := uint256.FromDecimal("1500000000000000001")
	require.NoError(t, err)

	wire := Normalize(raw, 18)
	assert.Equal(t, uint256.NewInt(150000000), wire)

	back, err := Denormalize(wire, 18)
	require.NoError(t, err)
	expected, err := uint256.FromDecimal("1500000000000000000")
	require.NoError(t, err)
	assert.Equal(t, expected, back)
}

func TestTruncateIsIdempotent(t *testing.T) {
	raw, err := uint256.FromDecimal("1500000000000000001")
	require.NoError(t, err)

	once := Truncate(raw, 18)
	twice := Truncate(once, 18)
	assert.Equal(t, once, twice)

	expected, err := uint256.FromDecimal("1500000000000000000")
	require.NoError(t, err)
	assert.Equal(t, expected, once)
}

func TestTruncateLowDecimalsIsIdentity(t *testing.T) {
	raw := uint256.NewInt(999)
	assert.Equal(t, raw, Truncate(raw, 8))
	assert.Equal(t, raw, Truncate(raw, 3))
}

func TestDenormalizeOverflow(t *testing.T) {
	max := new(uint256.Int).Not(uint256.NewInt(0))
	_, err := Denormalize(max, 18)
	assert.Error(t, err)
}

func TestNormalizeDoesNotAliasInput(t *testing.T) {
	raw := uint256.NewInt(42)
	wire := Normalize(raw, 8)
	wire.AddUint64(wire, 1)
	assert.Equal(t, uint64(42), raw.Uint64())
}
