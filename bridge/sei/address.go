package sei

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil/bech32"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
)

// Account addresses are 20-byte bech32 and left-pad to the canonical width.
// Contract addresses, which identify CW20 assets, are already 32 bytes.

func decodeBech32(address string) (string, []byte, error) {
	hrp, data, err := bech32.Decode(address)
	if err != nil {
		return "", nil, fmt.Errorf("invalid bech32 address %q: %w", address, err)
	}
	raw, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return "", nil, fmt.Errorf("invalid bech32 address %q: %w", address, err)
	}
	return hrp, raw, nil
}

func encodeBech32(hrp string, raw []byte) (string, error) {
	data, err := bech32.ConvertBits(raw, 8, 5, true)
	if err != nil {
		return "", err
	}
	return bech32.Encode(hrp, data)
}

func (c *Context) FormatAddress(address string) (vaaLib.Address, error) {
	_, raw, err := decodeBech32(address)
	if err != nil {
		return vaaLib.Address{}, err
	}
	if len(raw) != 20 {
		return vaaLib.Address{}, fmt.Errorf("account address %q must be 20 bytes, got %d", address, len(raw))
	}
	var out vaaLib.Address
	copy(out[12:], raw)
	return out, nil
}

func (c *Context) ParseAddress(universal vaaLib.Address) (string, error) {
	for _, b := range universal[:12] {
		if b != 0 {
			return "", fmt.Errorf("universal address %s does not narrow to 20 bytes", universal)
		}
	}
	return encodeBech32(c.hrp(), universal[12:])
}

func (c *Context) FormatAssetAddress(address string) (vaaLib.Address, error) {
	_, raw, err := decodeBech32(address)
	if err != nil {
		return vaaLib.Address{}, err
	}
	var out vaaLib.Address
	switch len(raw) {
	case 20:
		copy(out[12:], raw)
	case 32:
		copy(out[:], raw)
	default:
		return vaaLib.Address{}, fmt.Errorf("asset address %q must be 20 or 32 bytes, got %d", address, len(raw))
	}
	return out, nil
}

func (c *Context) ParseAssetAddress(universal vaaLib.Address) (string, error) {
	// Left-padded addresses narrow back to their 20-byte account form so
	// FormatAssetAddress and ParseAssetAddress stay inverses for both widths.
	padded := true
	for _, b := range universal[:12] {
		if b != 0 {
			padded = false
			break
		}
	}
	if padded {
		return encodeBech32(c.hrp(), universal[12:])
	}
	return encodeBech32(c.hrp(), universal[:])
}
