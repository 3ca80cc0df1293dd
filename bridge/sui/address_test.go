package sui

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatAddressNormalizesShortForms(t *testing.T) {
	c := &Context{}

	universal, err := c.FormatAddress("0x2")
	require.NoError(t, err)
	back, err := c.ParseAddress(universal)
	require.NoError(t, err)
	assert.Equal(t, "0x0000000000000000000000000000000000000000000000000000000000000002", back)
}

func TestAddressRoundTrip(t *testing.T) {
	c := &Context{}
	address := "0xc57508ee0d4595e5a8728974a4a93a787d38f339757230d441e895422c07aba9"

	universal, err := c.FormatAddress(address)
	require.NoError(t, err)
	back, err := c.ParseAddress(universal)
	require.NoError(t, err)
	assert.Equal(t, address, back)
}

func TestFormatAddressAcceptsOddLengthHex(t *testing.T) {
	c := &Context{}
	padded, err := c.FormatAddress("0xabc")
	require.NoError(t, err)
	explicit, err := c.FormatAddress("0x0abc")
	require.NoError(t, err)
	assert.Equal(t, explicit, padded)
}

func TestFormatAddressRejectsGarbage(t *testing.T) {
	c := &Context{}
	for _, bad := range []string{"", "0x", "0xzz", "0x" + "00" + "c57508ee0d4595e5a8728974a4a93a787d38f339757230d441e895422c07aba9"} {
		_, err := c.FormatAddress(bad)
		assert.Error(t, err, "input %q", bad)
	}
}
