package evm

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Minimal ABI fragments for the contracts this backend talks to. Kept inline
// the same way the relayer packs its call data; full bindings would pull in
// generated code for a handful of functions.

const erc20JSON = `[
	{"name":"allowance","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"approve","type":"function","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"name":"balanceOf","type":"function","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"decimals","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]}
]`

const tokenBridgeJSON = `[
	{"name":"wrappedAsset","type":"function","stateMutability":"view","inputs":[{"name":"tokenChainId","type":"uint16"},{"name":"tokenAddress","type":"bytes32"}],"outputs":[{"name":"","type":"address"}]},
	{"name":"transferTokens","type":"function","stateMutability":"payable","inputs":[{"name":"token","type":"address"},{"name":"amount","type":"uint256"},{"name":"recipientChain","type":"uint16"},{"name":"recipient","type":"bytes32"},{"name":"arbiterFee","type":"uint256"},{"name":"nonce","type":"uint32"}],"outputs":[{"name":"sequence","type":"uint64"}]},
	{"name":"wrapAndTransferETH","type":"function","stateMutability":"payable","inputs":[{"name":"recipientChain","type":"uint16"},{"name":"recipient","type":"bytes32"},{"name":"arbiterFee","type":"uint256"},{"name":"nonce","type":"uint32"}],"outputs":[{"name":"sequence","type":"uint64"}]},
	{"name":"transferTokensWithPayload","type":"function","stateMutability":"payable","inputs":[{"name":"token","type":"address"},{"name":"amount","type":"uint256"},{"name":"recipientChain","type":"uint16"},{"name":"recipient","type":"bytes32"},{"name":"nonce","type":"uint32"},{"name":"payload","type":"bytes"}],"outputs":[{"name":"sequence","type":"uint64"}]},
	{"name":"wrapAndTransferETHWithPayload","type":"function","stateMutability":"payable","inputs":[{"name":"recipientChain","type":"uint16"},{"name":"recipient","type":"bytes32"},{"name":"nonce","type":"uint32"},{"name":"payload","type":"bytes"}],"outputs":[{"name":"sequence","type":"uint64"}]},
	{"name":"completeTransfer","type":"function","stateMutability":"nonpayable","inputs":[{"name":"encodedVm","type":"bytes"}],"outputs":[]},
	{"name":"isTransferCompleted","type":"function","stateMutability":"view","inputs":[{"name":"hash","type":"bytes32"}],"outputs":[{"name":"","type":"bool"}]}
]`

const relayerJSON = `[
	{"name":"transferTokensWithRelay","type":"function","stateMutability":"payable","inputs":[{"name":"token","type":"address"},{"name":"amount","type":"uint256"},{"name":"toNativeTokenAmount","type":"uint256"},{"name":"targetChain","type":"uint16"},{"name":"targetRecipient","type":"bytes32"},{"name":"batchId","type":"uint32"}],"outputs":[{"name":"messageSequence","type":"uint64"}]},
	{"name":"wrapAndTransferEthWithRelay","type":"function","stateMutability":"payable","inputs":[{"name":"toNativeTokenAmount","type":"uint256"},{"name":"targetChain","type":"uint16"},{"name":"targetRecipient","type":"bytes32"},{"name":"batchId","type":"uint32"}],"outputs":[{"name":"messageSequence","type":"uint64"}]},
	{"name":"completeTransferWithRelay","type":"function","stateMutability":"payable","inputs":[{"name":"encodedTransferMessage","type":"bytes"}],"outputs":[]},
	{"name":"calculateMaxSwapAmountIn","type":"function","stateMutability":"view","inputs":[{"name":"token","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"calculateNativeSwapAmountOut","type":"function","stateMutability":"view","inputs":[{"name":"token","type":"address"},{"name":"toNativeAmount","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"calculateRelayerFee","type":"function","stateMutability":"view","inputs":[{"name":"targetChainId","type":"uint16"},{"name":"token","type":"address"},{"name":"decimals","type":"uint8"}],"outputs":[{"name":"feeInTokenDenomination","type":"uint256"}]}
]`

const coreBridgeJSON = `[
	{"name":"LogMessagePublished","type":"event","anonymous":false,"inputs":[{"name":"sender","type":"address","indexed":true},{"name":"sequence","type":"uint64","indexed":false},{"name":"nonce","type":"uint32","indexed":false},{"name":"payload","type":"bytes","indexed":false},{"name":"consistencyLevel","type":"uint8","indexed":false}]}
]`

var (
	erc20ABI       = mustABI(erc20JSON)
	tokenBridgeABI = mustABI(tokenBridgeJSON)
	relayerABI     = mustABI(relayerJSON)
	coreBridgeABI  = mustABI(coreBridgeJSON)

	logMessagePublishedTopic = common.BytesToHash(
		crypto.Keccak256([]byte("LogMessagePublished(address,uint64,uint32,bytes,uint8)")))
)

func mustABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}

// logMessagePublished mirrors the core bridge's message event.
type logMessagePublished struct {
	Sequence         uint64
	Nonce            uint32
	Payload          []byte
	ConsistencyLevel uint8
}
