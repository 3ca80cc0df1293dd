package aptos

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddressRoundTrip(t *testing.T) {
	c := &Context{}
	address := "0x576410486a2da45eee6c949c995670112ddf2fbeedab20350d506328eefc9d4f"

	universal, err := c.FormatAddress(address)
	require.NoError(t, err)
	back, err := c.ParseAddress(universal)
	require.NoError(t, err)
	assert.Equal(t, address, back)
}

func TestFormatAddressAcceptsSpecialForms(t *testing.T) {
	c := &Context{}

	universal, err := c.FormatAddress("0x1")
	require.NoError(t, err)
	back, err := c.ParseAddress(universal)
	require.NoError(t, err)
	assert.Equal(t, "0x0000000000000000000000000000000000000000000000000000000000000001", back)
}

func TestFormatAddressRejectsGarbage(t *testing.T) {
	c := &Context{}
	for _, bad := range []string{"", "not-hex", "0xzz"} {
		_, err := c.FormatAddress(bad)
		assert.Error(t, err, "input %q", bad)
	}
}
