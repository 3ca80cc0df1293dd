package bridge

import (
	"context"

	"github.com/holiman/uint256"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"

	"github.com/wormhole-demo/bridge/bridge/message"
)

// TxResult identifies a submitted transaction.
type TxResult struct {
	TxID        string
	BlockNumber uint64
}

// PreparedTx is a backend-specific transaction built but not yet submitted.
// Callers that sign externally can inspect it; Send-style operations build
// and submit in one step.
type PreparedTx interface {
	Chain() ChainRef
	// Summary describes the operation for logs and prompts.
	Summary() string
}

// SendParams describes a token transfer out of a chain.
type SendParams struct {
	// Token is the asset's home-chain identity. The native-asset sentinel
	// routes the send through the bridge's wrap-and-transfer entry point.
	Token TokenID
	// Amount in the source chain's native units.
	Amount *uint256.Int
	// Sender wallet address in source-chain native format.
	Sender string
	// Recipient address in destination-chain native format.
	Recipient string
	// ToChain is the destination.
	ToChain ChainRef
	// RelayerFee is deducted from the transferred amount and paid to whoever
	// redeems on the destination. Nil means zero.
	RelayerFee *uint256.Int
}

// RelaySendParams is SendParams routed through the relayer contract.
type RelaySendParams struct {
	SendParams
	// ToNativeTokenAmount is the slice of the transferred value the relayer
	// converts into destination-chain gas currency.
	ToNativeTokenAmount *uint256.Int
}

// RelayDetails carries the relayer sub-fields of a transfer-with-payload
// decoded as a relayer message.
type RelayDetails struct {
	RelayerPayloadID uint8
	// Recipient is the final recipient, distinct from the pass-through "to"
	// contract of the outer envelope. Destination-chain native format.
	Recipient           string
	RelayerFee          *uint256.Int
	ToNativeTokenAmount *uint256.Int
}

// ParsedMessage is a decoded bridge transfer recovered from a source-chain
// transaction. Token fields identify the origin token, not its wrapped
// representation. Derived, never mutated after creation.
type ParsedMessage struct {
	PayloadID uint8
	Sender    string
	// Amount at the 8-decimal wire scale.
	Amount *uint256.Int
	// Recipient in destination-chain native format.
	Recipient string
	ToChain   ChainRef
	FromChain ChainRef
	// TokenAddress in the home chain's native format.
	TokenAddress   string
	TokenChain     vaaLib.ChainID
	TokenID        TokenID
	Sequence       uint64
	EmitterAddress vaaLib.Address
	BlockNumber    uint64
	// GasFee actually paid by the sender, when the backend reports it.
	// Nil otherwise, never estimated.
	GasFee *uint256.Int
	// Payload carries the opaque trailing bytes of a transfer-with-payload.
	Payload []byte
	// Relay is set when the trailing payload decodes as a relayer message.
	Relay *RelayDetails
}

// ChainContext is the capability contract every chain backend implements.
// All operations accepting a ChainRef coalesce name and numeric forms
// internally. Blocking operations take a context; cancellation wraps each
// network round-trip, and no retries happen inside the core.
type ChainContext interface {
	Kind() ContextKind
	Config() ChainConfig

	// FormatAddress maps a native wallet address to the canonical 32-byte
	// representation, zero-left-padded for shorter native widths.
	FormatAddress(address string) (vaaLib.Address, error)
	// ParseAddress is the inverse of FormatAddress. Narrowing validates the
	// zero prefix.
	ParseAddress(universal vaaLib.Address) (string, error)
	// FormatAssetAddress / ParseAssetAddress are the same mapping for token
	// identifiers, which on some chains differ from wallet addresses.
	FormatAssetAddress(address string) (vaaLib.Address, error)
	ParseAssetAddress(universal vaaLib.Address) (string, error)

	// GetForeignAsset resolves the token's representation on the given chain.
	// When chain equals the token's home chain the native address is returned
	// with zero network queries. An empty result with nil error means the
	// asset was never bridged there: a normal outcome, not a failure.
	GetForeignAsset(ctx context.Context, token TokenID, chain ChainRef) (string, error)

	// FetchTokenDecimals returns the decimals of an asset on this chain.
	FetchTokenDecimals(ctx context.Context, assetAddress string) (uint8, error)
	// GetNativeBalance returns the wallet's native-asset balance.
	GetNativeBalance(ctx context.Context, wallet string) (*uint256.Int, error)
	// GetTokenBalance returns the wallet's balance of the token's local
	// representation, or nil when the asset is unregistered on this chain.
	GetTokenBalance(ctx context.Context, wallet string, token TokenID) (*uint256.Int, error)

	// Approve ensures spender's allowance covers amount (unbounded when nil).
	// The current allowance is checked first; a transaction is submitted only
	// when insufficient, and the returned result is nil when nothing was sent.
	Approve(ctx context.Context, spender, asset string, amount *uint256.Int) (*TxResult, error)

	PrepareSend(ctx context.Context, p SendParams) (PreparedTx, error)
	Send(ctx context.Context, p SendParams) (*TxResult, error)
	// SendWithPayload attaches opaque bytes for the destination application.
	SendWithPayload(ctx context.Context, p SendParams, payload []byte) (*TxResult, error)

	PrepareSendWithRelay(ctx context.Context, p RelaySendParams) (PreparedTx, error)
	SendWithRelay(ctx context.Context, p RelaySendParams) (*TxResult, error)

	PrepareRedeem(ctx context.Context, signedVAA []byte) (PreparedTx, error)
	Redeem(ctx context.Context, signedVAA []byte) (*TxResult, error)
	// IsTransferCompleted asks the bridge whether the attestation has already
	// been processed. Used for idempotent redeem retries.
	IsTransferCompleted(ctx context.Context, signedVAA []byte) (bool, error)

	// CalculateMaxSwapAmount and CalculateNativeTokenAmt delegate to this
	// chain's relayer contract using the foreign asset resolved from the
	// home TokenID.
	CalculateMaxSwapAmount(ctx context.Context, token TokenID) (*uint256.Int, error)
	CalculateNativeTokenAmt(ctx context.Context, token TokenID, amount *uint256.Int) (*uint256.Int, error)
	// GetRelayerFee quotes the relayer fee for a transfer to dest, denominated
	// in units of the token on this chain.
	GetRelayerFee(ctx context.Context, dest ChainRef, token TokenID) (*uint256.Int, error)

	// ParseMessagesFromTx decodes all bridge messages emitted by the
	// transaction, in log order. Zero matches yield an empty slice, not an
	// error.
	ParseMessagesFromTx(ctx context.Context, txID string) ([]*ParsedMessage, error)

	// DecodeRelayerPayload interprets the trailing bytes of a relayer message
	// destined for this chain. Layouts vary per ecosystem, so each backend
	// owns its decoding.
	DecodeRelayerPayload(payload []byte) (*message.RelayerPayload, error)

	// WaitForConfirmation blocks until the transaction reaches this chain's
	// finality threshold.
	WaitForConfirmation(ctx context.Context, txID string) error
}
