package bridge

import (
	"fmt"
	"strconv"
	"strings"

	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
)

// ContextKind identifies which chain family a ChainContext implementation
// speaks. Registry lookups return it so callers can match exhaustively
// instead of relying on runtime type identity.
type ContextKind uint8

const (
	KindEVM ContextKind = iota + 1
	KindSolana
	KindSui
	KindAptos
	KindSei
)

func (k ContextKind) String() string {
	switch k {
	case KindEVM:
		return "evm"
	case KindSolana:
		return "solana"
	case KindSui:
		return "sui"
	case KindAptos:
		return "aptos"
	case KindSei:
		return "sei"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// ChainRef refers to a chain either by its symbolic name ("ethereum") or its
// Wormhole chain ID (2). Every public operation accepts both forms and
// coalesces them to the numeric ID internally.
type ChainRef struct {
	name string
	id   vaaLib.ChainID
}

// ChainByID builds a ChainRef from a numeric Wormhole chain ID.
func ChainByID(id vaaLib.ChainID) ChainRef {
	return ChainRef{id: id}
}

// ChainByName builds a ChainRef from a symbolic chain name.
func ChainByName(name string) ChainRef {
	return ChainRef{name: strings.ToLower(name)}
}

// ParseChainRef accepts either a chain name or a decimal chain ID.
func ParseChainRef(s string) (ChainRef, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return ChainRef{}, fmt.Errorf("%w: empty chain reference", ErrUnknownChain)
	}
	if n, err := strconv.ParseUint(s, 10, 16); err == nil {
		return ChainByID(vaaLib.ChainID(n)), nil
	}
	return ChainByName(s), nil
}

// ChainID resolves the reference to a numeric chain ID. Symbolic names are
// resolved through the Wormhole SDK's registry of known chains.
func (r ChainRef) ChainID() (vaaLib.ChainID, error) {
	if r.id != vaaLib.ChainIDUnset {
		return r.id, nil
	}
	if r.name == "" {
		return vaaLib.ChainIDUnset, fmt.Errorf("%w: empty chain reference", ErrUnknownChain)
	}
	id, err := vaaLib.ChainIDFromString(r.name)
	if err != nil {
		return vaaLib.ChainIDUnset, fmt.Errorf("%w: %q", ErrUnknownChain, r.name)
	}
	return id, nil
}

func (r ChainRef) String() string {
	if r.name != "" {
		return r.name
	}
	return r.id.String()
}

// Equal reports whether both references resolve to the same chain.
func (r ChainRef) Equal(other ChainRef) bool {
	a, err := r.ChainID()
	if err != nil {
		return false
	}
	b, err := other.ChainID()
	if err != nil {
		return false
	}
	return a == b
}

// NativeSentinel is the TokenID address marking "the chain's native asset"
// (ETH, SOL, SUI, ...). Sends of the native asset route through the bridge's
// wrap-and-transfer entry point instead of a token transfer.
const NativeSentinel = ""

// TokenID is a token's identity on its home chain. Address is always in the
// home chain's native format; wrapped representations on other chains are
// recoverable only by query, never stored here.
type TokenID struct {
	Chain   ChainRef
	Address string
}

// IsNative reports whether the token is the native-asset sentinel.
func (t TokenID) IsNative() bool {
	return t.Address == NativeSentinel
}

func (t TokenID) String() string {
	if t.IsNative() {
		return fmt.Sprintf("%s/native", t.Chain)
	}
	return fmt.Sprintf("%s/%s", t.Chain, t.Address)
}

// Contracts holds the bridge deployment addresses for one chain, in that
// chain's native address format.
type Contracts struct {
	// CoreBridge is the messaging contract that emits attested messages.
	CoreBridge string
	// TokenBridge is the token transfer application on top of the core bridge.
	TokenBridge string
	// Relayer is the token bridge relayer deployment. Empty when the chain
	// has no relayer service.
	Relayer string
}

// ChainConfig is the static per-chain configuration. Built once at startup
// and read-only afterwards.
type ChainConfig struct {
	Key                 string
	ID                  vaaLib.ChainID
	Kind                ContextKind
	Contracts           Contracts
	FinalityThreshold   uint64
	NativeTokenDecimals uint8
}

// Ref returns a ChainRef for this chain.
func (c ChainConfig) Ref() ChainRef {
	return ChainRef{name: c.Key, id: c.ID}
}
