package evm

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
)

// FormatAddress maps a 20-byte EVM address to the canonical 32-byte form by
// zero-left-padding.
func (c *Context) FormatAddress(address string) (vaaLib.Address, error) {
	if !common.IsHexAddress(address) {
		return vaaLib.Address{}, fmt.Errorf("invalid EVM address %q", address)
	}
	var out vaaLib.Address
	copy(out[12:], common.HexToAddress(address).Bytes())
	return out, nil
}

// ParseAddress narrows a canonical address back to 20 bytes, validating the
// zero prefix, and returns the checksummed hex form.
func (c *Context) ParseAddress(universal vaaLib.Address) (string, error) {
	for _, b := range universal[:12] {
		if b != 0 {
			return "", fmt.Errorf("universal address %s does not fit in 20 bytes", universal)
		}
	}
	return common.BytesToAddress(universal[12:]).Hex(), nil
}

// Asset addresses on EVM chains are plain contract addresses.

func (c *Context) FormatAssetAddress(address string) (vaaLib.Address, error) {
	return c.FormatAddress(address)
}

func (c *Context) ParseAssetAddress(universal vaaLib.Address) (string, error) {
	return c.ParseAddress(universal)
}
