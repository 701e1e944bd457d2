package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/docuchain/docuchain-backend/internal/document"
)

func TestMemoryRepoCRUD(t *testing.T) {
	r := NewMemoryRepo()
	ctx := context.Background()
	owner := primitive.NewObjectID()

	d := &document.Document{
		Title:       "report",
		FileName:    "report.pdf",
		ContentType: "application/pdf",
		Size:        3,
		IPFSHash:    "Qm111",
		LedgerDocID: "0x111",
		OwnerID:     owner,
	}
	require.NoError(t, r.Create(ctx, d))
	require.False(t, d.ID.IsZero())

	got, err := r.FindByID(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, "report", got.Title)
	require.True(t, got.Active)
	require.Zero(t, got.DownloadCount)

	got.Title = "renamed"
	require.NoError(t, r.Update(ctx, got))
	got2, err := r.FindByID(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, "renamed", got2.Title)

	require.NoError(t, r.SoftDelete(ctx, d.ID))
	_, err = r.FindByID(ctx, d.ID)
	require.ErrorIs(t, err, ErrNotFound)

	// soft-deleted documents reject further mutation
	require.ErrorIs(t, r.Update(ctx, got2), ErrNotFound)
	require.ErrorIs(t, r.SoftDelete(ctx, d.ID), ErrNotFound)
}

func TestMemoryRepoUniqueFields(t *testing.T) {
	r := NewMemoryRepo()
	ctx := context.Background()

	first := &document.Document{IPFSHash: "QmAAA", LedgerDocID: "0xaaa", OwnerID: primitive.NewObjectID()}
	require.NoError(t, r.Create(ctx, first))

	dupBlob := &document.Document{IPFSHash: "QmAAA", LedgerDocID: "0xbbb", OwnerID: primitive.NewObjectID()}
	require.ErrorIs(t, r.Create(ctx, dupBlob), ErrDuplicate)

	dupLedger := &document.Document{IPFSHash: "QmCCC", LedgerDocID: "0xaaa", OwnerID: primitive.NewObjectID()}
	require.ErrorIs(t, r.Create(ctx, dupLedger), ErrDuplicate)

	// uniqueness holds even against soft-deleted documents
	require.NoError(t, r.SoftDelete(ctx, first.ID))
	require.ErrorIs(t, r.Create(ctx, dupBlob), ErrDuplicate)
}

func TestMemoryRepoOwnerAndSharedQueries(t *testing.T) {
	r := NewMemoryRepo()
	ctx := context.Background()
	alice := primitive.NewObjectID()
	bob := primitive.NewObjectID()

	mine := &document.Document{IPFSHash: "Qm1", LedgerDocID: "0x1", OwnerID: alice}
	require.NoError(t, r.Create(ctx, mine))

	shared := &document.Document{
		IPFSHash:    "Qm2",
		LedgerDocID: "0x2",
		OwnerID:     alice,
		SharedWith:  []document.ShareEntry{{UserID: bob, Permission: document.PermissionRead, SharedAt: time.Now()}},
	}
	require.NoError(t, r.Create(ctx, shared))

	other := &document.Document{IPFSHash: "Qm3", LedgerDocID: "0x3", OwnerID: bob}
	require.NoError(t, r.Create(ctx, other))

	owned, err := r.FindByOwner(ctx, alice)
	require.NoError(t, err)
	require.Len(t, owned, 2)

	sharedWithBob, err := r.FindSharedWith(ctx, bob)
	require.NoError(t, err)
	require.Len(t, sharedWithBob, 1)
	require.Equal(t, shared.ID, sharedWithBob[0].ID)

	sharedWithAlice, err := r.FindSharedWith(ctx, alice)
	require.NoError(t, err)
	require.Empty(t, sharedWithAlice)

	// soft-deleted documents drop out of both listings
	require.NoError(t, r.SoftDelete(ctx, shared.ID))
	owned, err = r.FindByOwner(ctx, alice)
	require.NoError(t, err)
	require.Len(t, owned, 1)
	sharedWithBob, err = r.FindSharedWith(ctx, bob)
	require.NoError(t, err)
	require.Empty(t, sharedWithBob)
}

func TestMemoryRepoIncrementDownload(t *testing.T) {
	r := NewMemoryRepo()
	ctx := context.Background()

	d := &document.Document{IPFSHash: "Qm4", LedgerDocID: "0x4", OwnerID: primitive.NewObjectID()}
	require.NoError(t, r.Create(ctx, d))

	at := time.Now().Truncate(time.Millisecond)
	require.NoError(t, r.IncrementDownload(ctx, d.ID, at))
	require.NoError(t, r.IncrementDownload(ctx, d.ID, at.Add(time.Minute)))

	got, err := r.FindByID(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, int64(2), got.DownloadCount)
	require.NotNil(t, got.LastAccessed)
	require.Equal(t, at.Add(time.Minute), *got.LastAccessed)

	require.ErrorIs(t, r.IncrementDownload(ctx, primitive.NewObjectID(), at), ErrNotFound)
}

func TestMemoryRepoReturnsCopies(t *testing.T) {
	r := NewMemoryRepo()
	ctx := context.Background()
	bob := primitive.NewObjectID()

	d := &document.Document{IPFSHash: "Qm5", LedgerDocID: "0x5", OwnerID: primitive.NewObjectID()}
	require.NoError(t, r.Create(ctx, d))

	got, err := r.FindByID(ctx, d.ID)
	require.NoError(t, err)
	got.Title = "mutated"
	got.ShareWith(bob, document.PermissionRead, time.Now())

	// un-persisted mutation is invisible to the store
	fresh, err := r.FindByID(ctx, d.ID)
	require.NoError(t, err)
	require.Empty(t, fresh.Title)
	require.Empty(t, fresh.SharedWith)
}
