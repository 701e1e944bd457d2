package document

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Permission is the access level a document is shared at.
type Permission string

const (
	PermissionRead  Permission = "read"
	PermissionWrite Permission = "write"
)

// ValidPermission reports whether p is one of the accepted permissions.
func ValidPermission(p Permission) bool {
	return p == PermissionRead || p == PermissionWrite
}

// ShareEntry records one user's access to a document.
type ShareEntry struct {
	UserID     primitive.ObjectID `json:"userId" bson:"userId"`
	Permission Permission         `json:"permission" bson:"permission"`
	SharedAt   time.Time          `json:"sharedAt" bson:"sharedAt"`
}

// Document is the persistent record for an uploaded document. The blob
// payload lives in the blob store under IPFSHash; the access-control list is
// mirrored between SharedWith and the ledger entry under LedgerDocID.
// EncryptionKey is only set when the service encrypted the payload itself and
// is never serialized to JSON.
type Document struct {
	ID            primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Title         string             `json:"title" bson:"title"`
	FileName      string             `json:"fileName" bson:"fileName"`
	ContentType   string             `json:"contentType" bson:"contentType"`
	Size          int64              `json:"size" bson:"size"`
	IPFSHash      string             `json:"ipfsHash" bson:"ipfsHash"`
	LedgerDocID   string             `json:"ledgerDocId" bson:"ledgerDocId"`
	OwnerID       primitive.ObjectID `json:"ownerId" bson:"ownerId"`
	SharedWith    []ShareEntry       `json:"sharedWith" bson:"sharedWith"`
	Encrypted     bool               `json:"encrypted" bson:"encrypted"`
	EncryptionKey string             `json:"-" bson:"encryptionKey,omitempty"`
	DownloadCount int64              `json:"downloadCount" bson:"downloadCount"`
	LastAccessed  *time.Time         `json:"lastAccessed,omitempty" bson:"lastAccessed,omitempty"`
	Active        bool               `json:"-" bson:"active"`
	CreatedAt     time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt     time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// IsOwner reports whether userID owns the document.
func (d *Document) IsOwner(userID primitive.ObjectID) bool {
	return d.OwnerID == userID
}

// HasAccess reports whether userID is the owner or appears in SharedWith.
func (d *Document) HasAccess(userID primitive.ObjectID) bool {
	if d.OwnerID == userID {
		return true
	}
	for _, e := range d.SharedWith {
		if e.UserID == userID {
			return true
		}
	}
	return false
}

// PermissionFor returns the effective permission for userID. Owners always
// hold write.
func (d *Document) PermissionFor(userID primitive.ObjectID) (Permission, bool) {
	if d.OwnerID == userID {
		return PermissionWrite, true
	}
	for _, e := range d.SharedWith {
		if e.UserID == userID {
			return e.Permission, true
		}
	}
	return "", false
}

// ShareWith appends a share entry for userID, or updates the existing one.
// The owner is never added to its own shared-with set.
func (d *Document) ShareWith(userID primitive.ObjectID, perm Permission, at time.Time) {
	if d.OwnerID == userID {
		return
	}
	for i := range d.SharedWith {
		if d.SharedWith[i].UserID == userID {
			d.SharedWith[i].Permission = perm
			d.SharedWith[i].SharedAt = at
			return
		}
	}
	d.SharedWith = append(d.SharedWith, ShareEntry{UserID: userID, Permission: perm, SharedAt: at})
}

// Unshare removes userID's entry and reports whether one was present.
func (d *Document) Unshare(userID primitive.ObjectID) bool {
	for i := range d.SharedWith {
		if d.SharedWith[i].UserID == userID {
			d.SharedWith = append(d.SharedWith[:i], d.SharedWith[i+1:]...)
			return true
		}
	}
	return false
}
