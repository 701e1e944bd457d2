package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User represents an application principal. Email is stored lowercased and is
// unique. WalletAddress is the derived ledger identity, backfilled on the
// user's first upload; it is display metadata only, since key material is
// re-derived on demand and never persisted.
type User struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name          string             `bson:"name" json:"name"`
	Email         string             `bson:"email" json:"email"`
	PasswordHash  string             `bson:"passwordHash" json:"-"`
	WalletAddress string             `bson:"walletAddress,omitempty" json:"walletAddress,omitempty"`
	Active        bool               `bson:"active" json:"active"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// PublicProfile is the sanitized user shape returned by search and sharing
// endpoints.
type PublicProfile struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	WalletAddress string `json:"walletAddress,omitempty"`
}

// Public converts a User to its sanitized profile.
func (u *User) Public() PublicProfile {
	return PublicProfile{
		ID:            u.ID.Hex(),
		Name:          u.Name,
		Email:         u.Email,
		WalletAddress: u.WalletAddress,
	}
}
