package evm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
)

func TestAddressRoundTrip(t *testing.T) {
	c := &Context{}
	checksummed := "0x3ee18B2214AFF97000D974cf647E7C347E8fa585"

	universal, err := c.FormatAddress(checksummed)
	require.NoError(t, err)
	for _, b := range universal[:12] {
		assert.Equal(t, byte(0), b)
	}

	back, err := c.ParseAddress(universal)
	require.NoError(t, err)
	assert.Equal(t, checksummed, back)
}

func TestFormatAddressNormalizesCase(t *testing.T) {
	c := &Context{}
	lower, err := c.FormatAddress("0x3ee18b2214aff97000d974cf647e7c347e8fa585")
	require.NoError(t, err)
	mixed, err := c.FormatAddress("0x3ee18B2214AFF97000D974cf647E7C347E8fa585")
	require.NoError(t, err)
	assert.Equal(t, mixed, lower)
}

func TestFormatAddressRejectsGarbage(t *testing.T) {
	c := &Context{}
	for _, bad := range []string{"", "0x123", "not-an-address", "0xZZe18B2214AFF97000D974cf647E7C347E8fa585"} {
		_, err := c.FormatAddress(bad)
		assert.Error(t, err, "input %q", bad)
	}
}

func TestParseAddressRejectsWideAddress(t *testing.T) {
	c := &Context{}
	var universal vaaLib.Address
	universal[0] = 0x01
	_, err := c.ParseAddress(universal)
	assert.Error(t, err)
}
