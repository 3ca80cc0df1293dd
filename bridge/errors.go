package bridge

import (
	"errors"
	"fmt"

	"github.com/wormhole-demo/bridge/bridge/message"
)

var (
	// ErrNoSigner means the chain was configured without a signing key. Raised
	// before any network call on mutating operations.
	ErrNoSigner = errors.New("no signer configured for chain")

	// ErrAssetNotRegistered means the token has never been attested on the
	// queried chain. Recoverable: the caller may bridge the asset first.
	ErrAssetNotRegistered = errors.New("asset not registered on chain")

	// ErrUnrecognizedPayload means a bridge message carried a payload
	// discriminant this codec does not understand. Fatal for that message.
	ErrUnrecognizedPayload = message.ErrUnrecognizedPayload

	// ErrReceiptNotFound means the queried chain does not (yet) know the
	// transaction hash. Recoverable by retrying after a confirmation delay.
	ErrReceiptNotFound = errors.New("transaction receipt not found")

	// ErrUnknownChain means a chain reference could not be resolved against
	// the configured chain set.
	ErrUnknownChain = errors.New("unknown chain")

	// ErrNoRelayerContract means the chain has no relayer deployment and
	// cannot serve relay sends or fee quotes.
	ErrNoRelayerContract = errors.New("no relayer contract configured for chain")

	// ErrTransferCompleted means the attestation was already redeemed on the
	// destination chain.
	ErrTransferCompleted = errors.New("transfer already completed")
)

// SimulationError is returned when the dry-run of a transaction reverted. It
// carries the node's revert reason unmodified.
type SimulationError struct {
	Chain  string
	Op     string
	Reason string
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("simulation of %s on %s failed: %s", e.Op, e.Chain, e.Reason)
}
