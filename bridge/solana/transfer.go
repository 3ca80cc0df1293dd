package solana

import (
	"context"
	"encoding/binary"
	"fmt"

	solanalib "github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/holiman/uint256"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
	"go.uber.org/zap"

	"github.com/wormhole-demo/bridge/bridge"
	"github.com/wormhole-demo/bridge/bridge/message"
)

// preparedTx is an assembled but unsubmitted instruction bundle.
type preparedTx struct {
	chain        bridge.ChainRef
	summary      string
	instructions []solanalib.Instruction
	// extraSigners holds one-shot keypairs like the bridge message account.
	extraSigners []solanalib.PrivateKey
}

func (p *preparedTx) Chain() bridge.ChainRef { return p.chain }
func (p *preparedTx) Summary() string        { return p.summary }

// Token bridge PDAs.

func (c *Context) configPDA() (solanalib.PublicKey, error) {
	pda, _, err := solanalib.FindProgramAddress([][]byte{[]byte("config")}, c.bridgePg)
	return pda, err
}

func (c *Context) authoritySignerPDA() (solanalib.PublicKey, error) {
	pda, _, err := solanalib.FindProgramAddress([][]byte{[]byte("authority_signer")}, c.bridgePg)
	return pda, err
}

func (c *Context) custodySignerPDA() (solanalib.PublicKey, error) {
	pda, _, err := solanalib.FindProgramAddress([][]byte{[]byte("custody_signer")}, c.bridgePg)
	return pda, err
}

func (c *Context) mintAuthorityPDA() (solanalib.PublicKey, error) {
	pda, _, err := solanalib.FindProgramAddress([][]byte{[]byte("mint_signer")}, c.bridgePg)
	return pda, err
}

func (c *Context) custodyPDA(mint solanalib.PublicKey) (solanalib.PublicKey, error) {
	pda, _, err := solanalib.FindProgramAddress([][]byte{mint.Bytes()}, c.bridgePg)
	return pda, err
}

func (c *Context) wrappedMetaPDA(mint solanalib.PublicKey) (solanalib.PublicKey, error) {
	pda, _, err := solanalib.FindProgramAddress([][]byte{[]byte("meta"), mint.Bytes()}, c.bridgePg)
	return pda, err
}

func (c *Context) emitterPDA() (solanalib.PublicKey, error) {
	pda, _, err := solanalib.FindProgramAddress([][]byte{[]byte("emitter")}, c.bridgePg)
	return pda, err
}

// endpointPDA is the registered foreign token bridge for a chain.
func (c *Context) endpointPDA(chain vaaLib.ChainID, emitter vaaLib.Address) (solanalib.PublicKey, error) {
	chainBytes := make([]byte, 2)
	binary.BigEndian.PutUint16(chainBytes, uint16(chain))
	pda, _, err := solanalib.FindProgramAddress([][]byte{chainBytes, emitter[:]}, c.bridgePg)
	return pda, err
}

// claimPDA marks a processed attestation. Its existence is the completion bit.
func (c *Context) claimPDA(emitter vaaLib.Address, chain vaaLib.ChainID, sequence uint64) (solanalib.PublicKey, error) {
	chainBytes := make([]byte, 2)
	binary.BigEndian.PutUint16(chainBytes, uint16(chain))
	seqBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(seqBytes, sequence)
	pda, _, err := solanalib.FindProgramAddress([][]byte{emitter[:], chainBytes, seqBytes}, c.bridgePg)
	return pda, err
}

// Core bridge PDAs.

func (c *Context) coreConfigPDA() (solanalib.PublicKey, error) {
	pda, _, err := solanalib.FindProgramAddress([][]byte{[]byte("Bridge")}, c.core)
	return pda, err
}

func (c *Context) sequencePDA(emitter solanalib.PublicKey) (solanalib.PublicKey, error) {
	pda, _, err := solanalib.FindProgramAddress([][]byte{[]byte("Sequence"), emitter.Bytes()}, c.core)
	return pda, err
}

func (c *Context) feeCollectorPDA() (solanalib.PublicKey, error) {
	pda, _, err := solanalib.FindProgramAddress([][]byte{[]byte("fee_collector")}, c.core)
	return pda, err
}

func (c *Context) postedVAAPDA(bodyHash [32]byte) (solanalib.PublicKey, error) {
	pda, _, err := solanalib.FindProgramAddress([][]byte{[]byte("PostedVAA"), bodyHash[:]}, c.core)
	return pda, err
}

// messageFee reads the publication fee out of the core bridge config account.
// Layout: guardian_set_index u32, last_lamports u64, then the config struct
// whose second field is the fee.
func (c *Context) messageFee(ctx context.Context) (uint64, error) {
	cfg, err := c.coreConfigPDA()
	if err != nil {
		return 0, err
	}
	info, err := c.client.GetAccountInfo(ctx, cfg)
	if err != nil {
		return 0, fmt.Errorf("core bridge config on %s: %w", c.cfg.Key, err)
	}
	data := info.Value.Data.GetBinary()
	if len(data) < 24 {
		return 0, fmt.Errorf("core bridge config too short: %d bytes", len(data))
	}
	return binary.LittleEndian.Uint64(data[16:24]), nil
}

// resolveSendMint maps the send params to the local mint and whether it is
// held in custody here (true) or burned from a wrapped supply (false).
func (c *Context) resolveSendMint(ctx context.Context, tokenID bridge.TokenID) (solanalib.PublicKey, bool, error) {
	if tokenID.IsNative() {
		return WrappedSolMint, true, nil
	}
	homeID, err := tokenID.Chain.ChainID()
	if err != nil {
		return solanalib.PublicKey{}, false, err
	}
	if homeID == c.cfg.ID {
		mint, err := solanalib.PublicKeyFromBase58(tokenID.Address)
		if err != nil {
			return solanalib.PublicKey{}, false, fmt.Errorf("invalid mint %q: %w", tokenID.Address, err)
		}
		return mint, true, nil
	}
	local, err := c.registry.MustGetForeignAsset(ctx, tokenID, c.cfg.Ref())
	if err != nil {
		return solanalib.PublicKey{}, false, err
	}
	mint, err := solanalib.PublicKeyFromBase58(local)
	if err != nil {
		return solanalib.PublicKey{}, false, fmt.Errorf("invalid wrapped mint %q: %w", local, err)
	}
	return mint, false, nil
}

// buildSend assembles the full instruction bundle for an outbound transfer:
// optional SOL wrapping, delegate approval, the bridge fee payment, and the
// transfer instruction itself.
func (c *Context) buildSend(ctx context.Context, p bridge.SendParams, payload []byte) (*preparedTx, error) {
	if err := c.requireSigner(); err != nil {
		return nil, err
	}
	if p.Amount == nil || !p.Amount.IsUint64() {
		return nil, fmt.Errorf("amount out of range for %s", c.cfg.Key)
	}
	amount := p.Amount.Uint64()

	var fee uint64
	if p.RelayerFee != nil {
		if !p.RelayerFee.IsUint64() {
			return nil, fmt.Errorf("relayer fee out of range for %s", c.cfg.Key)
		}
		fee = p.RelayerFee.Uint64()
	}

	toChainID, err := p.ToChain.ChainID()
	if err != nil {
		return nil, err
	}
	dest, err := c.registry.Context(p.ToChain)
	if err != nil {
		return nil, err
	}
	target, err := dest.FormatAddress(p.Recipient)
	if err != nil {
		return nil, fmt.Errorf("recipient: %w", err)
	}

	mint, isNative, err := c.resolveSendMint(ctx, p.Token)
	if err != nil {
		return nil, err
	}
	payer := c.payer.PublicKey()
	from, _, err := solanalib.FindAssociatedTokenAddress(payer, mint)
	if err != nil {
		return nil, fmt.Errorf("derive token account: %w", err)
	}

	var instructions []solanalib.Instruction

	if p.Token.IsNative() {
		wrapIxs, err := c.wrapSolInstructions(ctx, payer, from, amount)
		if err != nil {
			return nil, err
		}
		instructions = append(instructions, wrapIxs...)
	}

	authoritySigner, err := c.authoritySignerPDA()
	if err != nil {
		return nil, err
	}
	instructions = append(instructions,
		token.NewApproveInstruction(amount, from, authoritySigner, payer, nil).Build())

	bridgeFee, err := c.messageFee(ctx)
	if err != nil {
		return nil, err
	}
	feeCollector, err := c.feeCollectorPDA()
	if err != nil {
		return nil, err
	}
	if bridgeFee > 0 {
		instructions = append(instructions,
			system.NewTransferInstruction(bridgeFee, payer, feeCollector).Build())
	}

	messageAccount := solanalib.NewWallet()

	transferIx, err := c.buildTransferInstruction(transferArgs{
		mint:         mint,
		isNative:     isNative,
		from:         from,
		amount:       amount,
		fee:          fee,
		target:       target,
		targetChain:  toChainID,
		payload:      payload,
		messageKey:   messageAccount.PublicKey(),
		feeCollector: feeCollector,
	})
	if err != nil {
		return nil, err
	}
	instructions = append(instructions, transferIx)

	return &preparedTx{
		chain: c.cfg.Ref(),
		summary: fmt.Sprintf("transfer %d of %s from %s to %s on %s",
			amount, mint, c.cfg.Key, p.Recipient, p.ToChain),
		instructions: instructions,
		extraSigners: []solanalib.PrivateKey{messageAccount.PrivateKey},
	}, nil
}

// wrapSolInstructions funds the payer's wrapped-SOL token account with
// lamports, creating it when absent.
func (c *Context) wrapSolInstructions(ctx context.Context, payer, ata solanalib.PublicKey, lamports uint64) ([]solanalib.Instruction, error) {
	var instructions []solanalib.Instruction
	_, err := c.client.GetAccountInfo(ctx, ata)
	if err == rpc.ErrNotFound {
		instructions = append(instructions,
			associatedtokenaccount.NewCreateInstruction(payer, payer, WrappedSolMint).Build())
	} else if err != nil {
		return nil, fmt.Errorf("wrapped SOL account lookup: %w", err)
	}
	instructions = append(instructions,
		system.NewTransferInstruction(lamports, payer, ata).Build(),
		token.NewSyncNativeInstruction(ata).Build(),
	)
	return instructions, nil
}

type transferArgs struct {
	mint         solanalib.PublicKey
	isNative     bool
	from         solanalib.PublicKey
	amount       uint64
	fee          uint64
	target       vaaLib.Address
	targetChain  vaaLib.ChainID
	payload      []byte
	messageKey   solanalib.PublicKey
	feeCollector solanalib.PublicKey
}

// buildTransferInstruction encodes the token bridge transfer instruction.
// Arguments are little-endian after the one-byte discriminator.
func (c *Context) buildTransferInstruction(a transferArgs) (solanalib.Instruction, error) {
	var data []byte
	withPayload := a.payload != nil
	switch {
	case withPayload:
		if a.isNative {
			data = append(data, ixTransferNativeWithPayload)
		} else {
			data = append(data, ixTransferWrappedWithPayload)
		}
	case a.isNative:
		data = append(data, ixTransferNative)
	default:
		data = append(data, ixTransferWrapped)
	}
	data = binary.LittleEndian.AppendUint32(data, 0) // nonce
	data = binary.LittleEndian.AppendUint64(data, a.amount)
	if !withPayload {
		data = binary.LittleEndian.AppendUint64(data, a.fee)
	}
	data = append(data, a.target[:]...)
	data = binary.LittleEndian.AppendUint16(data, uint16(a.targetChain))
	if withPayload {
		data = binary.LittleEndian.AppendUint32(data, uint32(len(a.payload)))
		data = append(data, a.payload...)
		data = append(data, 0) // no CPI program
	}

	config, err := c.configPDA()
	if err != nil {
		return nil, err
	}
	authoritySigner, err := c.authoritySignerPDA()
	if err != nil {
		return nil, err
	}
	coreConfig, err := c.coreConfigPDA()
	if err != nil {
		return nil, err
	}
	emitter, err := c.emitterPDA()
	if err != nil {
		return nil, err
	}
	sequence, err := c.sequencePDA(emitter)
	if err != nil {
		return nil, err
	}

	payer := c.payer.PublicKey()
	accounts := []*solanalib.AccountMeta{
		{PublicKey: payer, IsSigner: true, IsWritable: true},
		{PublicKey: config, IsSigner: false, IsWritable: false},
		{PublicKey: a.from, IsSigner: false, IsWritable: true},
	}
	if a.isNative {
		custody, err := c.custodyPDA(a.mint)
		if err != nil {
			return nil, err
		}
		custodySigner, err := c.custodySignerPDA()
		if err != nil {
			return nil, err
		}
		accounts = append(accounts,
			&solanalib.AccountMeta{PublicKey: a.mint, IsSigner: false, IsWritable: true},
			&solanalib.AccountMeta{PublicKey: custody, IsSigner: false, IsWritable: true},
			&solanalib.AccountMeta{PublicKey: authoritySigner, IsSigner: false, IsWritable: false},
			&solanalib.AccountMeta{PublicKey: custodySigner, IsSigner: false, IsWritable: false},
		)
	} else {
		meta, err := c.wrappedMetaPDA(a.mint)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts,
			&solanalib.AccountMeta{PublicKey: payer, IsSigner: true, IsWritable: false},
			&solanalib.AccountMeta{PublicKey: a.mint, IsSigner: false, IsWritable: true},
			&solanalib.AccountMeta{PublicKey: meta, IsSigner: false, IsWritable: false},
			&solanalib.AccountMeta{PublicKey: authoritySigner, IsSigner: false, IsWritable: false},
		)
	}
	accounts = append(accounts,
		&solanalib.AccountMeta{PublicKey: coreConfig, IsSigner: false, IsWritable: true},
		&solanalib.AccountMeta{PublicKey: a.messageKey, IsSigner: true, IsWritable: true},
		&solanalib.AccountMeta{PublicKey: emitter, IsSigner: false, IsWritable: false},
		&solanalib.AccountMeta{PublicKey: sequence, IsSigner: false, IsWritable: true},
		&solanalib.AccountMeta{PublicKey: a.feeCollector, IsSigner: false, IsWritable: true},
		&solanalib.AccountMeta{PublicKey: solanalib.SysVarClockPubkey, IsSigner: false, IsWritable: false},
	)
	if withPayload {
		// Sender identity for the payload-3 "from address" field.
		accounts = append(accounts,
			&solanalib.AccountMeta{PublicKey: payer, IsSigner: true, IsWritable: false})
	}
	accounts = append(accounts,
		&solanalib.AccountMeta{PublicKey: solanalib.SysVarRentPubkey, IsSigner: false, IsWritable: false},
		&solanalib.AccountMeta{PublicKey: solanalib.SystemProgramID, IsSigner: false, IsWritable: false},
		&solanalib.AccountMeta{PublicKey: c.core, IsSigner: false, IsWritable: false},
		&solanalib.AccountMeta{PublicKey: solanalib.TokenProgramID, IsSigner: false, IsWritable: false},
	)

	return solanalib.NewInstruction(c.bridgePg, accounts, data), nil
}

func (c *Context) PrepareSend(ctx context.Context, p bridge.SendParams) (bridge.PreparedTx, error) {
	return c.buildSend(ctx, p, nil)
}

func (c *Context) Send(ctx context.Context, p bridge.SendParams) (*bridge.TxResult, error) {
	prepared, err := c.buildSend(ctx, p, nil)
	if err != nil {
		return nil, err
	}
	return c.sendPrepared(ctx, "send", prepared)
}

func (c *Context) SendWithPayload(ctx context.Context, p bridge.SendParams, payload []byte) (*bridge.TxResult, error) {
	if payload == nil {
		payload = []byte{}
	}
	prepared, err := c.buildSend(ctx, p, payload)
	if err != nil {
		return nil, err
	}
	return c.sendPrepared(ctx, "sendWithPayload", prepared)
}

// The relayer contract family has no deployment on this chain kind, so the
// relay path and its quotes are unavailable rather than zero.

func (c *Context) PrepareSendWithRelay(ctx context.Context, p bridge.RelaySendParams) (bridge.PreparedTx, error) {
	return nil, fmt.Errorf("%s: %w", c.cfg.Key, bridge.ErrNoRelayerContract)
}

func (c *Context) SendWithRelay(ctx context.Context, p bridge.RelaySendParams) (*bridge.TxResult, error) {
	return nil, fmt.Errorf("%s: %w", c.cfg.Key, bridge.ErrNoRelayerContract)
}

func (c *Context) CalculateMaxSwapAmount(ctx context.Context, token bridge.TokenID) (*uint256.Int, error) {
	return nil, fmt.Errorf("%s: %w", c.cfg.Key, bridge.ErrNoRelayerContract)
}

func (c *Context) CalculateNativeTokenAmt(ctx context.Context, token bridge.TokenID, amount *uint256.Int) (*uint256.Int, error) {
	return nil, fmt.Errorf("%s: %w", c.cfg.Key, bridge.ErrNoRelayerContract)
}

func (c *Context) GetRelayerFee(ctx context.Context, dest bridge.ChainRef, token bridge.TokenID) (*uint256.Int, error) {
	return nil, fmt.Errorf("%s: %w", c.cfg.Key, bridge.ErrNoRelayerContract)
}

func (c *Context) sendPrepared(ctx context.Context, op string, prepared *preparedTx) (*bridge.TxResult, error) {
	tx, err := c.assemble(ctx, prepared.instructions, prepared.extraSigners)
	if err != nil {
		return nil, err
	}
	if err := c.simulate(ctx, op, tx); err != nil {
		return nil, err
	}
	sig, err := c.client.SendTransaction(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("failed to send transaction: %w", err)
	}
	c.logger.Info("Transaction submitted",
		zap.String("op", op),
		zap.String("signature", sig.String()))
	return &bridge.TxResult{TxID: sig.String()}, nil
}

// buildRedeem encodes the complete-transfer instruction against the posted
// attestation account. Posting the attestation itself is the guardian or
// relayer network's job and is assumed done.
func (c *Context) buildRedeem(signedVAA []byte) (*preparedTx, error) {
	if err := c.requireSigner(); err != nil {
		return nil, err
	}
	v, err := message.ParseVAA(signedVAA)
	if err != nil {
		return nil, err
	}
	t, err := message.DecodeTransfer(v.Payload)
	if err != nil {
		return nil, err
	}

	postedVAA, err := c.postedVAAPDA(message.VAABodyHash(v))
	if err != nil {
		return nil, err
	}
	claim, err := c.claimPDA(v.EmitterAddress, v.EmitterChain, v.Sequence)
	if err != nil {
		return nil, err
	}
	endpoint, err := c.endpointPDA(v.EmitterChain, v.EmitterAddress)
	if err != nil {
		return nil, err
	}
	config, err := c.configPDA()
	if err != nil {
		return nil, err
	}

	// On this chain kind the recipient field is the token account itself.
	to := solanalib.PublicKey(t.To)
	payer := c.payer.PublicKey()

	accounts := []*solanalib.AccountMeta{
		{PublicKey: payer, IsSigner: true, IsWritable: true},
		{PublicKey: config, IsSigner: false, IsWritable: false},
		{PublicKey: postedVAA, IsSigner: false, IsWritable: false},
		{PublicKey: claim, IsSigner: false, IsWritable: true},
		{PublicKey: endpoint, IsSigner: false, IsWritable: false},
		{PublicKey: to, IsSigner: false, IsWritable: true},
		{PublicKey: to, IsSigner: false, IsWritable: true}, // fee recipient
	}

	var data []byte
	if t.TokenChain == c.cfg.ID {
		mint := solanalib.PublicKey(t.TokenAddress)
		custody, err := c.custodyPDA(mint)
		if err != nil {
			return nil, err
		}
		custodySigner, err := c.custodySignerPDA()
		if err != nil {
			return nil, err
		}
		accounts = append(accounts,
			&solanalib.AccountMeta{PublicKey: custody, IsSigner: false, IsWritable: true},
			&solanalib.AccountMeta{PublicKey: mint, IsSigner: false, IsWritable: false},
			&solanalib.AccountMeta{PublicKey: custodySigner, IsSigner: false, IsWritable: false},
		)
		data = []byte{ixCompleteNative}
	} else {
		mint, err := c.deriveWrappedMint(t.TokenChain, t.TokenAddress)
		if err != nil {
			return nil, err
		}
		meta, err := c.wrappedMetaPDA(mint)
		if err != nil {
			return nil, err
		}
		mintAuthority, err := c.mintAuthorityPDA()
		if err != nil {
			return nil, err
		}
		accounts = append(accounts,
			&solanalib.AccountMeta{PublicKey: mint, IsSigner: false, IsWritable: true},
			&solanalib.AccountMeta{PublicKey: meta, IsSigner: false, IsWritable: false},
			&solanalib.AccountMeta{PublicKey: mintAuthority, IsSigner: false, IsWritable: false},
		)
		data = []byte{ixCompleteWrapped}
	}
	accounts = append(accounts,
		&solanalib.AccountMeta{PublicKey: solanalib.SysVarRentPubkey, IsSigner: false, IsWritable: false},
		&solanalib.AccountMeta{PublicKey: solanalib.SystemProgramID, IsSigner: false, IsWritable: false},
		&solanalib.AccountMeta{PublicKey: c.core, IsSigner: false, IsWritable: false},
		&solanalib.AccountMeta{PublicKey: solanalib.TokenProgramID, IsSigner: false, IsWritable: false},
	)

	return &preparedTx{
		chain: c.cfg.Ref(),
		summary: fmt.Sprintf("redeem transfer seq %d from chain %d on %s",
			v.Sequence, v.EmitterChain, c.cfg.Key),
		instructions: []solanalib.Instruction{solanalib.NewInstruction(c.bridgePg, accounts, data)},
	}, nil
}

func (c *Context) PrepareRedeem(ctx context.Context, signedVAA []byte) (bridge.PreparedTx, error) {
	return c.buildRedeem(signedVAA)
}

func (c *Context) Redeem(ctx context.Context, signedVAA []byte) (*bridge.TxResult, error) {
	prepared, err := c.buildRedeem(signedVAA)
	if err != nil {
		return nil, err
	}
	return c.sendPrepared(ctx, "redeem", prepared)
}

// IsTransferCompleted checks whether the claim account for the attestation
// exists. The bridge allocates it exactly once, on redemption.
func (c *Context) IsTransferCompleted(ctx context.Context, signedVAA []byte) (bool, error) {
	v, err := message.ParseVAA(signedVAA)
	if err != nil {
		return false, err
	}
	claim, err := c.claimPDA(v.EmitterAddress, v.EmitterChain, v.Sequence)
	if err != nil {
		return false, err
	}
	_, err = c.client.GetAccountInfo(ctx, claim)
	if err == rpc.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("claim lookup on %s: %w", c.cfg.Key, err)
	}
	return true, nil
}
