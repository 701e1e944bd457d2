package wallet

import (
	"crypto/ecdsa"
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Wallet is a user's derived ledger identity. The private key exists only in
// memory; nothing here is ever persisted.
type Wallet struct {
	Address    string
	PrivateKey *ecdsa.PrivateKey
}

// Deriver maps application user IDs to deterministic secp256k1 keypairs.
// Derivation is HMAC-SHA256(master secret, userID) used directly as the
// private scalar. Deterministic on purpose: the same user always maps to the
// same address with no key storage. The cost is that the master secret can
// reproduce every user key; callers treat the Deriver as the single seam to
// swap in per-user persisted key material later.
//
// The cache is size-bounded and safe for concurrent use; a concurrent miss
// on the same user derives twice and converges to the same value.
type Deriver struct {
	secret []byte
	cache  *expirable.LRU[string, *Wallet]
}

// NewDeriver creates a Deriver with an LRU cache of the given size. ttl of 0
// keeps entries until evicted by size.
func NewDeriver(masterSecret string, cacheSize int, ttl time.Duration) (*Deriver, error) {
	if masterSecret == "" {
		return nil, fmt.Errorf("wallet: master secret is required")
	}
	if cacheSize <= 0 {
		cacheSize = 256
	}
	return &Deriver{
		secret: []byte(masterSecret),
		cache:  expirable.NewLRU[string, *Wallet](cacheSize, nil, ttl),
	}, nil
}

// Derive returns the wallet for the given user ID, computing and caching it
// on first use.
func (d *Deriver) Derive(userID string) (*Wallet, error) {
	if userID == "" {
		return nil, fmt.Errorf("wallet: user id is required")
	}
	if w, ok := d.cache.Get(userID); ok {
		return w, nil
	}

	mac := hmac.New(sha256.New, d.secret)
	mac.Write([]byte(userID))
	seed := mac.Sum(nil)

	key, err := crypto.ToECDSA(seed)
	if err != nil {
		return nil, fmt.Errorf("wallet: derive key for user: %w", err)
	}
	w := &Wallet{
		Address:    crypto.PubkeyToAddress(key.PublicKey).Hex(),
		PrivateKey: key,
	}
	d.cache.Add(userID, w)
	return w, nil
}

// Address is a convenience that derives and returns only the address.
func (d *Deriver) Address(userID string) (string, error) {
	w, err := d.Derive(userID)
	if err != nil {
		return "", err
	}
	return w.Address, nil
}
