package pdf

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReceiptRendersPDF(t *testing.T) {
	out, err := New().Receipt(context.Background(), ReceiptData{
		PaymentID:    "1",
		OrgName:      "Acme",
		Amount:       5000,
		DatePaid:     "2024-06-01",
		AuthorityRef: "A0001",
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestReceiptHonorsCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().Receipt(ctx, ReceiptData{})
	assert.ErrorIs(t, err, context.Canceled)
}
