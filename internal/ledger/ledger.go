// Package ledger provides the access-control ledger behind document sharing.
// EVMLedger drives a deployed registry contract over JSON-RPC; MemLedger
// simulates the same contract in process memory for development mode. Both
// accept application user ids and resolve them to ledger addresses through
// wallet derivation, so callers never handle key material.
package ledger

import (
	"context"
	"encoding/hex"
	"errors"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
)

var (
	// ErrDocExists is returned when a document id is already registered.
	ErrDocExists = errors.New("document already registered")
	// ErrDocNotFound is returned when a document id is not registered.
	ErrDocNotFound = errors.New("document not registered")
	// ErrNotOwner is returned when a mutation is attempted by a non-owner.
	ErrNotOwner = errors.New("caller is not the document owner")
)

// DocumentMeta is the metadata blob registered alongside a document.
type DocumentMeta struct {
	Title       string `json:"title"`
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

// AddResult describes a successful document registration.
type AddResult struct {
	DocID        string
	TxHash       string
	BlockNumber  uint64
	OwnerAddress string
}

// TxResult describes a successful grant, revoke or removal.
type TxResult struct {
	TxHash        string
	BlockNumber   uint64
	TargetAddress string
}

// BatchResult describes a successful batch grant.
type BatchResult struct {
	TxHash          string
	BlockNumber     uint64
	TargetAddresses []string
}

// Ledger is the uniform interface over the access-control ledger.
type Ledger interface {
	// AddDocument registers a document under a freshly derived id and
	// returns the id together with the transaction reference.
	AddDocument(ctx context.Context, ownerID, blobAddress string, meta DocumentMeta) (*AddResult, error)
	// GrantAccess allows granteeID to read the document. Owner-only.
	GrantAccess(ctx context.Context, ownerID, docID, granteeID string) (*TxResult, error)
	// RevokeAccess withdraws a previous grant. Owner-only.
	RevokeAccess(ctx context.Context, ownerID, docID, granteeID string) (*TxResult, error)
	// RemoveDocument deregisters the document. Owner-only.
	RemoveDocument(ctx context.Context, ownerID, docID string) (*TxResult, error)
	// HasAccess reports whether userID may read the document.
	HasAccess(ctx context.Context, userID, docID string) (bool, error)
	// GetAccessors returns the ledger addresses currently granted access.
	GetAccessors(ctx context.Context, ownerID, docID string) ([]string, error)
	// BatchGrantAccess grants access to every grantee in one transaction.
	BatchGrantAccess(ctx context.Context, ownerID, docID string, granteeIDs []string) (*BatchResult, error)
	// Name identifies the backend in logs.
	Name() string
}

// DeriveDocumentID computes the ledger document id for a new registration:
// the keccak-256 digest of the owner's ledger address, the blob content
// address and the registration time in nanoseconds, hex encoded with an 0x
// prefix. The time component keeps ids unique when the same owner registers
// identical content twice.
func DeriveDocumentID(ownerAddress, blobAddress string, at time.Time) string {
	payload := []byte(ownerAddress + blobAddress + strconv.FormatInt(at.UnixNano(), 10))
	return "0x" + hex.EncodeToString(crypto.Keccak256(payload))
}
