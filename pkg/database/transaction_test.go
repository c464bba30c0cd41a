package database

import (
	"context"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func TestGetTx_ReusesOpenContextTransaction(t *testing.T) {
	outer := NewTx(nil, noopLogger())
	ctx := context.WithValue(context.Background(), txStatusKey, "open")
	ctx = context.WithValue(ctx, txKey, outer)

	gotCtx, gotTx, err := GetTx(ctx, noopLogger(), nil, nil)
	require.NoError(t, err)
	assert.Same(t, outer, gotTx)
	assert.Equal(t, ctx, gotCtx)
}

func TestTransaction_RollbackDefersToOuterOwner(t *testing.T) {
	tx := NewTx(nil, noopLogger())
	ctx := context.WithValue(context.Background(), txStatusKey, "open")

	// The context says an outer caller owns the transaction, so rollback
	// must leave it open.
	require.NoError(t, tx.Rollback(ctx))
	assert.True(t, tx.IsOpen())
}

func TestTransaction_ClosedTransactionIsInert(t *testing.T) {
	tx := &Transaction{logger: noopLogger(), isClosed: true}

	require.NoError(t, tx.Commit(context.Background()))
	require.NoError(t, tx.Rollback(context.Background()))
	assert.False(t, tx.IsOpen())
}
