// Package amount converts between chain-native token amounts and the bridge's
// fixed 8-decimal wire scale.
package amount

import (
	"fmt"

	"github.com/holiman/uint256"
)

// WireDecimals is the protocol-wide precision of amounts on the wire.
const WireDecimals = 8

func pow10(n uint8) *uint256.Int {
	p := uint256.NewInt(1)
	ten := uint256.NewInt(10)
	for i := uint8(0); i < n; i++ {
		p.Mul(p, ten)
	}
	return p
}

// Normalize projects a chain-native amount with the given decimals onto the
// 8-decimal wire scale. For decimals > 8 the sub-wire precision is floored
// away; this projection is lossy and one-way.
func Normalize(raw *uint256.Int, decimals uint8) *uint256.Int {
	if decimals <= WireDecimals {
		return new(uint256.Int).Set(raw)
	}
	return new(uint256.Int).Div(raw, pow10(decimals-WireDecimals))
}

// Denormalize converts a wire-scaled amount back to chain-native units. For
// decimals > 8 the scale-up is overflow-checked.
func Denormalize(wire *uint256.Int, decimals uint8) (*uint256.Int, error) {
	if decimals <= WireDecimals {
		return new(uint256.Int).Set(wire), nil
	}
	out, overflow := new(uint256.Int).MulOverflow(wire, pow10(decimals-WireDecimals))
	if overflow {
		return nil, fmt.Errorf("amount %s overflows at %d decimals", wire, decimals)
	}
	return out, nil
}

// Truncate floors a chain-native amount to the precision the wire can carry.
// Truncating an already-truncated amount is a no-op.
func Truncate(raw *uint256.Int, decimals uint8) *uint256.Int {
	if decimals <= WireDecimals {
		return new(uint256.Int).Set(raw)
	}
	p := pow10(decimals - WireDecimals)
	out := new(uint256.Int).Div(raw, p)
	return out.Mul(out, p)
}
