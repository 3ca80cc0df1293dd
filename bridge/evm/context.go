// Package evm implements the chain capability contract for account-based EVM
// chains on top of go-ethereum.
package evm

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/wormhole-demo/bridge/bridge"
	"github.com/wormhole-demo/bridge/bridge/message"
)

const receiptPollInterval = 5 * time.Second

// Context is the EVM chain backend.
type Context struct {
	cfg      bridge.ChainConfig
	registry *bridge.Registry
	client   *ethclient.Client
	key      *ecdsa.PrivateKey
	sender   common.Address
	logger   *zap.Logger
}

var _ bridge.ChainContext = (*Context)(nil)

// New connects to the chain's RPC endpoint. An empty private key yields a
// read-only context: queries work, mutating operations fail with ErrNoSigner.
func New(logger *zap.Logger, registry *bridge.Registry, cfg bridge.ChainConfig, rpcURL, privateKeyHex string) (*Context, error) {
	c := &Context{
		cfg:      cfg,
		registry: registry,
		logger:   logger.With(zap.String("component", "EVMContext"), zap.String("chain", cfg.Key)),
	}

	c.logger.Info("Connecting to EVM chain", zap.String("rpcURL", rpcURL))
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to EVM node: %w", err)
	}
	c.client = client

	if privateKeyHex != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
		if err != nil {
			return nil, fmt.Errorf("invalid private key: %w", err)
		}
		c.key = key
		c.sender = crypto.PubkeyToAddress(key.PublicKey)
		c.logger.Info("Signer configured", zap.String("address", c.sender.Hex()))
	}

	return c, nil
}

func (c *Context) Kind() bridge.ContextKind   { return bridge.KindEVM }
func (c *Context) Config() bridge.ChainConfig { return c.cfg }

func (c *Context) requireSigner() error {
	if c.key == nil {
		return fmt.Errorf("%s: %w", c.cfg.Key, bridge.ErrNoSigner)
	}
	return nil
}

// callView packs, executes and unpacks a read-only contract call.
func (c *Context) callView(ctx context.Context, to common.Address, contract abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	data, err := contract.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	out, err := c.client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s on %s: %w", method, c.cfg.Key, err)
	}
	return contract.Unpack(method, out)
}

// simulate dry-runs the exact transaction parameters before anything is
// signed, surfacing contract-level rejections before gas is spent.
func (c *Context) simulate(ctx context.Context, op string, msg ethereum.CallMsg) error {
	if _, err := c.client.CallContract(ctx, msg, nil); err != nil {
		return &bridge.SimulationError{Chain: c.cfg.Key, Op: op, Reason: err.Error()}
	}
	return nil
}

// submit signs and sends an EIP-1559 transaction carrying data to contract.
func (c *Context) submit(ctx context.Context, to common.Address, value *big.Int, data []byte) (*bridge.TxResult, error) {
	nonce, err := c.client.PendingNonceAt(ctx, c.sender)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}
	chainID, err := c.client.NetworkID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}
	header, err := c.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest block header: %w", err)
	}

	gas, err := c.client.EstimateGas(ctx, ethereum.CallMsg{From: c.sender, To: &to, Value: value, Data: data})
	if err != nil {
		return nil, fmt.Errorf("failed to estimate gas: %w", err)
	}
	gas = gas + gas/5

	// 2x base fee absorbs fluctuations until inclusion.
	tip := big.NewInt(100000000) // 0.1 gwei
	feeCap := new(big.Int).Mul(header.BaseFee, big.NewInt(2))
	feeCap.Add(feeCap, tip)

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &to,
		Value:     value,
		Data:      data,
	})

	signed, err := types.SignTx(tx, types.NewLondonSigner(chainID), c.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	if err := c.client.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("failed to send transaction: %w", err)
	}

	c.logger.Debug("Transaction submitted", zap.String("txHash", signed.Hash().Hex()))
	return &bridge.TxResult{TxID: signed.Hash().Hex()}, nil
}

func (c *Context) GetForeignAsset(ctx context.Context, token bridge.TokenID, chain bridge.ChainRef) (string, error) {
	chainID, err := chain.ChainID()
	if err != nil {
		return "", err
	}
	homeID, err := token.Chain.ChainID()
	if err != nil {
		return "", err
	}
	// Home chain: the native address is the answer, no query.
	if chainID == homeID {
		return token.Address, nil
	}
	if chainID != c.cfg.ID {
		other, err := c.registry.Context(chain)
		if err != nil {
			return "", err
		}
		return other.GetForeignAsset(ctx, token, chain)
	}

	universal, err := c.registry.FormatTokenAddress(token)
	if err != nil {
		return "", err
	}
	out, err := c.callView(ctx, common.HexToAddress(c.cfg.Contracts.TokenBridge), tokenBridgeABI,
		"wrappedAsset", uint16(homeID), [32]byte(universal))
	if err != nil {
		return "", err
	}
	wrapped := out[0].(common.Address)
	if wrapped == (common.Address{}) {
		// Never attested here. A normal outcome, not a failure.
		return "", nil
	}
	return wrapped.Hex(), nil
}

func (c *Context) FetchTokenDecimals(ctx context.Context, assetAddress string) (uint8, error) {
	out, err := c.callView(ctx, common.HexToAddress(assetAddress), erc20ABI, "decimals")
	if err != nil {
		return 0, err
	}
	return out[0].(uint8), nil
}

func (c *Context) GetNativeBalance(ctx context.Context, wallet string) (*uint256.Int, error) {
	bal, err := c.client.BalanceAt(ctx, common.HexToAddress(wallet), nil)
	if err != nil {
		return nil, fmt.Errorf("balance of %s on %s: %w", wallet, c.cfg.Key, err)
	}
	out, _ := uint256.FromBig(bal)
	return out, nil
}

func (c *Context) GetTokenBalance(ctx context.Context, wallet string, token bridge.TokenID) (*uint256.Int, error) {
	local, err := c.GetForeignAsset(ctx, token, c.cfg.Ref())
	if err != nil {
		return nil, err
	}
	if local == "" {
		return nil, nil
	}
	out, err := c.callView(ctx, common.HexToAddress(local), erc20ABI, "balanceOf", common.HexToAddress(wallet))
	if err != nil {
		return nil, err
	}
	bal, _ := uint256.FromBig(out[0].(*big.Int))
	return bal, nil
}

// Approve tops up spender's allowance for asset when the current allowance is
// below amount. Nil amount means unbounded. The allowance check makes repeat
// calls idempotent: a second call under sufficient allowance sends nothing.
func (c *Context) Approve(ctx context.Context, spender, asset string, amount *uint256.Int) (*bridge.TxResult, error) {
	if err := c.requireSigner(); err != nil {
		return nil, err
	}

	target := math.MaxBig256
	if amount != nil {
		target = amount.ToBig()
	}

	assetAddr := common.HexToAddress(asset)
	spenderAddr := common.HexToAddress(spender)
	out, err := c.callView(ctx, assetAddr, erc20ABI, "allowance", c.sender, spenderAddr)
	if err != nil {
		return nil, err
	}
	current := out[0].(*big.Int)
	if current.Cmp(target) >= 0 {
		c.logger.Debug("Allowance already sufficient",
			zap.String("asset", asset),
			zap.String("spender", spender))
		return nil, nil
	}

	data, err := erc20ABI.Pack("approve", spenderAddr, target)
	if err != nil {
		return nil, fmt.Errorf("pack approve: %w", err)
	}
	return c.submit(ctx, assetAddr, big.NewInt(0), data)
}

// buildSend constructs the calldata and value of a transfer, resolving the
// local asset representation and the canonical recipient.
func (c *Context) buildSend(ctx context.Context, p bridge.SendParams, payload []byte) (*preparedTx, error) {
	toChainID, err := p.ToChain.ChainID()
	if err != nil {
		return nil, err
	}
	dest, err := c.registry.Context(p.ToChain)
	if err != nil {
		return nil, err
	}
	recipient, err := dest.FormatAddress(p.Recipient)
	if err != nil {
		return nil, err
	}

	fee := big.NewInt(0)
	if p.RelayerFee != nil {
		fee = p.RelayerFee.ToBig()
	}

	bridgeAddr := common.HexToAddress(c.cfg.Contracts.TokenBridge)
	if p.Token.IsNative() {
		var data []byte
		if payload == nil {
			data, err = tokenBridgeABI.Pack("wrapAndTransferETH", uint16(toChainID), [32]byte(recipient), fee, uint32(0))
		} else {
			data, err = tokenBridgeABI.Pack("wrapAndTransferETHWithPayload", uint16(toChainID), [32]byte(recipient), uint32(0), payload)
		}
		if err != nil {
			return nil, fmt.Errorf("pack wrap and transfer: %w", err)
		}
		return &preparedTx{
			chain:   c.cfg.Ref(),
			summary: fmt.Sprintf("wrap and transfer %s native to %s", p.Amount.Dec(), p.ToChain),
			to:      bridgeAddr,
			value:   p.Amount.ToBig(),
			data:    data,
		}, nil
	}

	local, err := c.registry.MustGetForeignAsset(ctx, p.Token, c.cfg.Ref())
	if err != nil {
		return nil, err
	}
	var data []byte
	if payload == nil {
		data, err = tokenBridgeABI.Pack("transferTokens",
			common.HexToAddress(local), p.Amount.ToBig(), uint16(toChainID), [32]byte(recipient), fee, uint32(0))
	} else {
		data, err = tokenBridgeABI.Pack("transferTokensWithPayload",
			common.HexToAddress(local), p.Amount.ToBig(), uint16(toChainID), [32]byte(recipient), uint32(0), payload)
	}
	if err != nil {
		return nil, fmt.Errorf("pack transfer: %w", err)
	}
	return &preparedTx{
		chain:   c.cfg.Ref(),
		summary: fmt.Sprintf("transfer %s of %s to %s", p.Amount.Dec(), p.Token, p.ToChain),
		to:      bridgeAddr,
		value:   big.NewInt(0),
		data:    data,
		asset:   local,
	}, nil
}

func (c *Context) PrepareSend(ctx context.Context, p bridge.SendParams) (bridge.PreparedTx, error) {
	return c.buildSend(ctx, p, nil)
}

func (c *Context) Send(ctx context.Context, p bridge.SendParams) (*bridge.TxResult, error) {
	return c.sendPrepared(ctx, p, nil)
}

func (c *Context) SendWithPayload(ctx context.Context, p bridge.SendParams, payload []byte) (*bridge.TxResult, error) {
	if len(payload) == 0 {
		return nil, errors.New("payload must not be empty")
	}
	return c.sendPrepared(ctx, p, payload)
}

func (c *Context) sendPrepared(ctx context.Context, p bridge.SendParams, payload []byte) (*bridge.TxResult, error) {
	if err := c.requireSigner(); err != nil {
		return nil, err
	}
	prepared, err := c.buildSend(ctx, p, payload)
	if err != nil {
		return nil, err
	}

	// Approval strictly precedes the transfer.
	if prepared.asset != "" {
		if _, err := c.Approve(ctx, c.cfg.Contracts.TokenBridge, prepared.asset, p.Amount); err != nil {
			return nil, fmt.Errorf("approve on %s: %w", c.cfg.Key, err)
		}
	}
	// Simulation strictly precedes submission.
	if err := c.simulate(ctx, "send", ethereum.CallMsg{
		From: c.sender, To: &prepared.to, Value: prepared.value, Data: prepared.data,
	}); err != nil {
		return nil, err
	}
	return c.submit(ctx, prepared.to, prepared.value, prepared.data)
}

func (c *Context) buildRelaySend(ctx context.Context, p bridge.RelaySendParams) (*preparedTx, error) {
	if c.cfg.Contracts.Relayer == "" {
		return nil, fmt.Errorf("%s: %w", c.cfg.Key, bridge.ErrNoRelayerContract)
	}
	toChainID, err := p.ToChain.ChainID()
	if err != nil {
		return nil, err
	}
	dest, err := c.registry.Context(p.ToChain)
	if err != nil {
		return nil, err
	}
	recipient, err := dest.FormatAddress(p.Recipient)
	if err != nil {
		return nil, err
	}

	toNative := big.NewInt(0)
	if p.ToNativeTokenAmount != nil {
		toNative = p.ToNativeTokenAmount.ToBig()
	}
	relayerAddr := common.HexToAddress(c.cfg.Contracts.Relayer)

	// batchId 0 is the no-batching sentinel.
	if p.Token.IsNative() {
		data, err := relayerABI.Pack("wrapAndTransferEthWithRelay",
			toNative, uint16(toChainID), [32]byte(recipient), uint32(0))
		if err != nil {
			return nil, fmt.Errorf("pack relay wrap: %w", err)
		}
		return &preparedTx{
			chain:   c.cfg.Ref(),
			summary: fmt.Sprintf("relay wrap and transfer %s native to %s", p.Amount.Dec(), p.ToChain),
			to:      relayerAddr,
			value:   p.Amount.ToBig(),
			data:    data,
		}, nil
	}

	local, err := c.registry.MustGetForeignAsset(ctx, p.Token, c.cfg.Ref())
	if err != nil {
		return nil, err
	}
	data, err := relayerABI.Pack("transferTokensWithRelay",
		common.HexToAddress(local), p.Amount.ToBig(), toNative, uint16(toChainID), [32]byte(recipient), uint32(0))
	if err != nil {
		return nil, fmt.Errorf("pack relay transfer: %w", err)
	}
	return &preparedTx{
		chain:   c.cfg.Ref(),
		summary: fmt.Sprintf("relay transfer %s of %s to %s", p.Amount.Dec(), p.Token, p.ToChain),
		to:      relayerAddr,
		value:   big.NewInt(0),
		data:    data,
		asset:   local,
	}, nil
}

func (c *Context) PrepareSendWithRelay(ctx context.Context, p bridge.RelaySendParams) (bridge.PreparedTx, error) {
	return c.buildRelaySend(ctx, p)
}

func (c *Context) SendWithRelay(ctx context.Context, p bridge.RelaySendParams) (*bridge.TxResult, error) {
	if err := c.requireSigner(); err != nil {
		return nil, err
	}
	prepared, err := c.buildRelaySend(ctx, p)
	if err != nil {
		return nil, err
	}
	if prepared.asset != "" {
		if _, err := c.Approve(ctx, c.cfg.Contracts.Relayer, prepared.asset, p.Amount); err != nil {
			return nil, fmt.Errorf("approve on %s: %w", c.cfg.Key, err)
		}
	}
	if err := c.simulate(ctx, "sendWithRelay", ethereum.CallMsg{
		From: c.sender, To: &prepared.to, Value: prepared.value, Data: prepared.data,
	}); err != nil {
		return nil, err
	}
	return c.submit(ctx, prepared.to, prepared.value, prepared.data)
}

func (c *Context) PrepareRedeem(ctx context.Context, signedVAA []byte) (bridge.PreparedTx, error) {
	data, err := tokenBridgeABI.Pack("completeTransfer", signedVAA)
	if err != nil {
		return nil, fmt.Errorf("pack completeTransfer: %w", err)
	}
	return &preparedTx{
		chain:   c.cfg.Ref(),
		summary: fmt.Sprintf("redeem %d byte attestation", len(signedVAA)),
		to:      common.HexToAddress(c.cfg.Contracts.TokenBridge),
		value:   big.NewInt(0),
		data:    data,
	}, nil
}

// Redeem dry-runs the completion first, surfacing "already redeemed" and
// "invalid attestation" before submission.
func (c *Context) Redeem(ctx context.Context, signedVAA []byte) (*bridge.TxResult, error) {
	if err := c.requireSigner(); err != nil {
		return nil, err
	}
	prepared, err := c.PrepareRedeem(ctx, signedVAA)
	if err != nil {
		return nil, err
	}
	tx := prepared.(*preparedTx)
	if err := c.simulate(ctx, "redeem", ethereum.CallMsg{
		From: c.sender, To: &tx.to, Value: tx.value, Data: tx.data,
	}); err != nil {
		return nil, err
	}
	return c.submit(ctx, tx.to, tx.value, tx.data)
}

func (c *Context) IsTransferCompleted(ctx context.Context, signedVAA []byte) (bool, error) {
	digest, err := message.VAADigest(signedVAA)
	if err != nil {
		return false, err
	}
	out, err := c.callView(ctx, common.HexToAddress(c.cfg.Contracts.TokenBridge), tokenBridgeABI,
		"isTransferCompleted", digest)
	if err != nil {
		return false, err
	}
	return out[0].(bool), nil
}

func (c *Context) CalculateMaxSwapAmount(ctx context.Context, token bridge.TokenID) (*uint256.Int, error) {
	if c.cfg.Contracts.Relayer == "" {
		return nil, fmt.Errorf("%s: %w", c.cfg.Key, bridge.ErrNoRelayerContract)
	}
	local, err := c.registry.MustGetForeignAsset(ctx, token, c.cfg.Ref())
	if err != nil {
		return nil, err
	}
	out, err := c.callView(ctx, common.HexToAddress(c.cfg.Contracts.Relayer), relayerABI,
		"calculateMaxSwapAmountIn", common.HexToAddress(local))
	if err != nil {
		return nil, err
	}
	quote, _ := uint256.FromBig(out[0].(*big.Int))
	return quote, nil
}

func (c *Context) CalculateNativeTokenAmt(ctx context.Context, token bridge.TokenID, amount *uint256.Int) (*uint256.Int, error) {
	if c.cfg.Contracts.Relayer == "" {
		return nil, fmt.Errorf("%s: %w", c.cfg.Key, bridge.ErrNoRelayerContract)
	}
	local, err := c.registry.MustGetForeignAsset(ctx, token, c.cfg.Ref())
	if err != nil {
		return nil, err
	}
	out, err := c.callView(ctx, common.HexToAddress(c.cfg.Contracts.Relayer), relayerABI,
		"calculateNativeSwapAmountOut", common.HexToAddress(local), amount.ToBig())
	if err != nil {
		return nil, err
	}
	native, _ := uint256.FromBig(out[0].(*big.Int))
	return native, nil
}

func (c *Context) GetRelayerFee(ctx context.Context, dest bridge.ChainRef, token bridge.TokenID) (*uint256.Int, error) {
	if c.cfg.Contracts.Relayer == "" {
		return nil, fmt.Errorf("%s: %w", c.cfg.Key, bridge.ErrNoRelayerContract)
	}
	destID, err := dest.ChainID()
	if err != nil {
		return nil, err
	}
	local, err := c.registry.MustGetForeignAsset(ctx, token, c.cfg.Ref())
	if err != nil {
		return nil, err
	}
	decimals, err := c.FetchTokenDecimals(ctx, local)
	if err != nil {
		return nil, err
	}
	out, err := c.callView(ctx, common.HexToAddress(c.cfg.Contracts.Relayer), relayerABI,
		"calculateRelayerFee", uint16(destID), common.HexToAddress(local), decimals)
	if err != nil {
		return nil, err
	}
	fee, _ := uint256.FromBig(out[0].(*big.Int))
	return fee, nil
}

func (c *Context) DecodeRelayerPayload(payload []byte) (*message.RelayerPayload, error) {
	return message.DecodeRelayerPayload(payload)
}

// WaitForConfirmation polls until the transaction has the chain's finality
// threshold of confirmations. Timeouts come from the caller's context.
func (c *Context) WaitForConfirmation(ctx context.Context, txID string) error {
	hash := common.HexToHash(txID)
	for {
		receipt, err := c.client.TransactionReceipt(ctx, hash)
		switch {
		case errors.Is(err, ethereum.NotFound):
			// Not mined yet.
		case err != nil:
			return fmt.Errorf("receipt of %s on %s: %w", txID, c.cfg.Key, err)
		default:
			latest, err := c.client.BlockNumber(ctx)
			if err != nil {
				return fmt.Errorf("latest block on %s: %w", c.cfg.Key, err)
			}
			if latest >= receipt.BlockNumber.Uint64()+c.cfg.FinalityThreshold {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(receiptPollInterval):
		}
	}
}

// preparedTx is an unsigned EVM call ready for simulation and submission.
type preparedTx struct {
	chain   bridge.ChainRef
	summary string
	to      common.Address
	value   *big.Int
	data    []byte
	// asset is the local token contract needing approval, empty for native
	// sends.
	asset string
}

func (p *preparedTx) Chain() bridge.ChainRef { return p.chain }
func (p *preparedTx) Summary() string        { return p.summary }
