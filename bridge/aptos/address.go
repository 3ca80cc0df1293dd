package aptos

import (
	"fmt"

	aptoslib "github.com/aptos-labs/aptos-go-sdk"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
)

// Addresses are 32 bytes. ParseStringRelaxed accepts the short and special
// forms (0x1, 0xA) and normalizes them.

func (c *Context) FormatAddress(address string) (vaaLib.Address, error) {
	var addr aptoslib.AccountAddress
	if err := addr.ParseStringRelaxed(address); err != nil {
		return vaaLib.Address{}, fmt.Errorf("invalid Aptos address %q: %w", address, err)
	}
	return vaaLib.Address(addr), nil
}

func (c *Context) ParseAddress(universal vaaLib.Address) (string, error) {
	addr := aptoslib.AccountAddress(universal)
	return addr.StringLong(), nil
}

// Asset identity is the 32-byte token address assigned by the bridge; the
// fully qualified coin type is recovered through GetForeignAsset.

func (c *Context) FormatAssetAddress(address string) (vaaLib.Address, error) {
	return c.FormatAddress(address)
}

func (c *Context) ParseAssetAddress(universal vaaLib.Address) (string, error) {
	return c.ParseAddress(universal)
}
