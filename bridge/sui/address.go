package sui

import (
	"encoding/hex"
	"fmt"
	"strings"

	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
)

// Addresses are 32-byte hex. Short forms like 0x2 are accepted and
// left-padded; output is always the fully normalized 0x form.

func normalizeHex(address string) ([]byte, error) {
	s := strings.TrimPrefix(strings.ToLower(address), "0x")
	if len(s) == 0 || len(s) > 64 {
		return nil, fmt.Errorf("invalid address %q", address)
	}
	if len(s)%2 == 1 {
		s = "0" + s
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid address %q: %w", address, err)
	}
	out := make([]byte, 32)
	copy(out[32-len(raw):], raw)
	return out, nil
}

func (c *Context) FormatAddress(address string) (vaaLib.Address, error) {
	raw, err := normalizeHex(address)
	if err != nil {
		return vaaLib.Address{}, err
	}
	var out vaaLib.Address
	copy(out[:], raw)
	return out, nil
}

func (c *Context) ParseAddress(universal vaaLib.Address) (string, error) {
	return "0x" + hex.EncodeToString(universal[:]), nil
}

// Asset identity is the 32-byte token address the bridge registry assigns.
// Coin types stay internal; resolution goes through the on-chain registry.

func (c *Context) FormatAssetAddress(address string) (vaaLib.Address, error) {
	return c.FormatAddress(address)
}

func (c *Context) ParseAssetAddress(universal vaaLib.Address) (string, error) {
	return c.ParseAddress(universal)
}
