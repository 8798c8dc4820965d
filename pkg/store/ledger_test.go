package store_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/docfix/pkg/payment"
	"github.com/xhad/docfix/pkg/store"
)

func newLedger(t *testing.T) *store.Ledger {
	t.Helper()

	conn := os.Getenv("DOCFIX_TEST_DATABASE_URL")
	if conn == "" {
		t.Skip("DOCFIX_TEST_DATABASE_URL not set")
	}

	l, err := store.NewWithConfig(context.Background(), store.LedgerConfig{
		ConnString: conn,
		TableName:  "test_redeemed_tokens",
	})
	require.NoError(t, err)
	t.Cleanup(l.Close)

	return l
}

func TestLedgerRedeem(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	id := fmt.Sprintf("token-%d", time.Now().UnixNano())

	require.NoError(t, l.Redeem(ctx, id))

	err := l.Redeem(ctx, id)
	assert.ErrorIs(t, err, payment.ErrAlreadyRedeemed)
	assert.Contains(t, err.Error(), "redeemed at ")

	assert.ErrorIs(t, l.Redeem(ctx, ""), payment.ErrTokenInvalid)
}

func TestLedgerInvalidTableName(t *testing.T) {
	_, err := store.NewWithConfig(context.Background(), store.LedgerConfig{
		ConnString: "postgres://localhost/none",
		TableName:  "tokens; DROP TABLE users",
	})
	assert.Error(t, err)
}
