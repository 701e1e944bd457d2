package ledger

import (
	"context"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/docuchain/docuchain-backend/internal/wallet"
)

var (
	docIDPattern = regexp.MustCompile(`^0x[0-9a-f]{64}$`)
	txPattern    = regexp.MustCompile(`^0x[0-9a-f]{64}$`)
)

func newTestMemLedger(t *testing.T) *MemLedger {
	t.Helper()
	d, err := wallet.NewDeriver("ledger-test-secret", 16, 0)
	require.NoError(t, err)
	return NewMemLedger(d)
}

func TestMemLedgerAddDocument(t *testing.T) {
	l := newTestMemLedger(t)
	ctx := context.Background()

	res, err := l.AddDocument(ctx, "owner", "QmAAA", DocumentMeta{Title: "t", FileName: "f.pdf"})
	require.NoError(t, err)
	require.Regexp(t, docIDPattern, res.DocID)
	require.Regexp(t, txPattern, res.TxHash)
	require.NotZero(t, res.BlockNumber)
	require.Len(t, res.OwnerAddress, 42)

	// owner always has access to their own document
	ok, err := l.HasAccess(ctx, "owner", res.DocID)
	require.NoError(t, err)
	require.True(t, ok)

	// writes advance the simulated block
	res2, err := l.AddDocument(ctx, "owner", "QmBBB", DocumentMeta{})
	require.NoError(t, err)
	require.Greater(t, res2.BlockNumber, res.BlockNumber)
}

func TestMemLedgerGrantRevoke(t *testing.T) {
	l := newTestMemLedger(t)
	ctx := context.Background()

	res, err := l.AddDocument(ctx, "alice", "QmCCC", DocumentMeta{})
	require.NoError(t, err)

	grant, err := l.GrantAccess(ctx, "alice", res.DocID, "bob")
	require.NoError(t, err)
	require.Regexp(t, txPattern, grant.TxHash)
	require.Len(t, grant.TargetAddress, 42)

	ok, err := l.HasAccess(ctx, "bob", res.DocID)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = l.HasAccess(ctx, "carol", res.DocID)
	require.NoError(t, err)
	require.False(t, ok)

	_, err = l.RevokeAccess(ctx, "alice", res.DocID, "bob")
	require.NoError(t, err)

	ok, err = l.HasAccess(ctx, "bob", res.DocID)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemLedgerOwnerOnly(t *testing.T) {
	l := newTestMemLedger(t)
	ctx := context.Background()

	res, err := l.AddDocument(ctx, "alice", "QmDDD", DocumentMeta{})
	require.NoError(t, err)

	_, err = l.GrantAccess(ctx, "mallory", res.DocID, "bob")
	require.ErrorIs(t, err, ErrNotOwner)
	_, err = l.RevokeAccess(ctx, "mallory", res.DocID, "bob")
	require.ErrorIs(t, err, ErrNotOwner)
	_, err = l.RemoveDocument(ctx, "mallory", res.DocID)
	require.ErrorIs(t, err, ErrNotOwner)
	_, err = l.GetAccessors(ctx, "mallory", res.DocID)
	require.ErrorIs(t, err, ErrNotOwner)
}

func TestMemLedgerUnknownDocument(t *testing.T) {
	l := newTestMemLedger(t)
	ctx := context.Background()
	missing := "0x" + strings.Repeat("ab", 32)

	_, err := l.GrantAccess(ctx, "alice", missing, "bob")
	require.ErrorIs(t, err, ErrDocNotFound)

	// access checks on unknown ids report an error, not a denial
	_, err = l.HasAccess(ctx, "alice", missing)
	require.ErrorIs(t, err, ErrDocNotFound)
}

func TestMemLedgerRemoveDocument(t *testing.T) {
	l := newTestMemLedger(t)
	ctx := context.Background()

	res, err := l.AddDocument(ctx, "alice", "QmEEE", DocumentMeta{})
	require.NoError(t, err)

	_, err = l.RemoveDocument(ctx, "alice", res.DocID)
	require.NoError(t, err)

	_, err = l.HasAccess(ctx, "alice", res.DocID)
	require.ErrorIs(t, err, ErrDocNotFound)
}

func TestMemLedgerBatchGrant(t *testing.T) {
	l := newTestMemLedger(t)
	ctx := context.Background()

	res, err := l.AddDocument(ctx, "alice", "QmFFF", DocumentMeta{})
	require.NoError(t, err)

	batch, err := l.BatchGrantAccess(ctx, "alice", res.DocID, []string{"bob", "carol", "dave"})
	require.NoError(t, err)
	require.Regexp(t, txPattern, batch.TxHash)
	require.Len(t, batch.TargetAddresses, 3)

	for _, id := range []string{"bob", "carol", "dave"} {
		ok, herr := l.HasAccess(ctx, id, res.DocID)
		require.NoError(t, herr)
		require.True(t, ok, "user %s", id)
	}

	accessors, err := l.GetAccessors(ctx, "alice", res.DocID)
	require.NoError(t, err)
	require.Len(t, accessors, 3)
	require.IsIncreasing(t, accessors)
	require.ElementsMatch(t, batch.TargetAddresses, accessors)
}

func TestDeriveDocumentID(t *testing.T) {
	at := time.Now()
	id1 := DeriveDocumentID("0xabc", "QmXYZ", at)
	require.Regexp(t, docIDPattern, id1)

	// deterministic over identical inputs
	require.Equal(t, id1, DeriveDocumentID("0xabc", "QmXYZ", at))

	// any input change produces a different id
	require.NotEqual(t, id1, DeriveDocumentID("0xabd", "QmXYZ", at))
	require.NotEqual(t, id1, DeriveDocumentID("0xabc", "QmXYW", at))
	require.NotEqual(t, id1, DeriveDocumentID("0xabc", "QmXYZ", at.Add(time.Nanosecond)))
}
