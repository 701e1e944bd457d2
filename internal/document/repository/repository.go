package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/docuchain/docuchain-backend/internal/document"
)

var (
	// ErrNotFound is returned when no active document matches.
	ErrNotFound = errors.New("document not found")
	// ErrDuplicate is returned when a unique field collides on create.
	ErrDuplicate = errors.New("document already exists")
)

// Repository defines persistence operations for documents. Reads only ever
// see active documents; soft-deleted records are invisible through this
// interface.
type Repository interface {
	Create(ctx context.Context, doc *document.Document) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*document.Document, error)
	FindByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]*document.Document, error)
	FindSharedWith(ctx context.Context, userID primitive.ObjectID) ([]*document.Document, error)
	// Update persists the mutable fields (title, shared-with set).
	Update(ctx context.Context, doc *document.Document) error
	SoftDelete(ctx context.Context, id primitive.ObjectID) error
	// IncrementDownload bumps the download counter and last-accessed stamp
	// in a single update.
	IncrementDownload(ctx context.Context, id primitive.ObjectID, at time.Time) error
}
