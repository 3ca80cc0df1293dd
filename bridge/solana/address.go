package solana

import (
	"fmt"

	solanalib "github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
)

// Solana addresses are already 32 bytes, so the canonical mapping is the
// base58 codec with no padding.

func (c *Context) FormatAddress(address string) (vaaLib.Address, error) {
	key, err := solanalib.PublicKeyFromBase58(address)
	if err != nil {
		return vaaLib.Address{}, fmt.Errorf("invalid Solana address %q: %w", address, err)
	}
	return vaaLib.Address(key), nil
}

func (c *Context) ParseAddress(universal vaaLib.Address) (string, error) {
	return base58.Encode(universal[:]), nil
}

// Asset addresses are mint accounts, same codec as wallets.

func (c *Context) FormatAssetAddress(address string) (vaaLib.Address, error) {
	return c.FormatAddress(address)
}

func (c *Context) ParseAssetAddress(universal vaaLib.Address) (string, error) {
	return c.ParseAddress(universal)
}
