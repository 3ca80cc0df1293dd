package bridge

import (
	"context"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestPipelineTransfer(t *testing.T) {
	r, _, _ := testRegistry(t)
	pipeline := NewTransferPipeline(zaptest.NewLogger(t), r)

	receipt, err := pipeline.Transfer(context.Background(), ChainByName("ethereum"), SendParams{
		Token:     TokenID{Chain: ChainByName("ethereum"), Address: "aaaa"},
		Amount:    uint256.NewInt(500),
		Recipient: "recipient",
		ToChain:   ChainByName("solana"),
	})
	require.NoError(t, err)
	assert.Equal(t, "stub-tx", receipt.TxID)
	assert.NotNil(t, receipt.Messages)
}

func TestPipelineTransferUnknownSource(t *testing.T) {
	r, _, _ := testRegistry(t)
	pipeline := NewTransferPipeline(zaptest.NewLogger(t), r)

	_, err := pipeline.Transfer(context.Background(), ChainByName("aptos"), SendParams{})
	assert.ErrorIs(t, err, ErrUnknownChain)
}

func TestPipelineRedeemRejectsCompleted(t *testing.T) {
	r, _, _ := testRegistry(t)
	pipeline := NewTransferPipeline(zaptest.NewLogger(t), r)

	// The stub reports any attestation starting 0xFF as already redeemed.
	_, err := pipeline.Redeem(context.Background(), ChainByName("solana"), []byte{0xFF, 0x01})
	assert.ErrorIs(t, err, ErrTransferCompleted)

	result, err := pipeline.Redeem(context.Background(), ChainByName("solana"), []byte{0x01})
	require.NoError(t, err)
	assert.Equal(t, "stub-redeem", result.TxID)
}
