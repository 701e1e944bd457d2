package ledger

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/docuchain/docuchain-backend/internal/wallet"
)

type memDoc struct {
	ownerUserID string
	ownerAddr   string
	blobAddress string
	meta        DocumentMeta
	grants      map[string]string // grantee user id -> ledger address
}

// MemLedger simulates the registry contract in process memory. It derives
// real-looking addresses and transaction references but performs no network
// I/O, so it only fails for semantic reasons (unknown document, non-owner).
// State is lost on restart.
type MemLedger struct {
	deriver *wallet.Deriver

	mu    sync.Mutex
	docs  map[string]*memDoc
	block uint64
}

// NewMemLedger builds the simulation around the given wallet deriver.
func NewMemLedger(deriver *wallet.Deriver) *MemLedger {
	return &MemLedger{
		deriver: deriver,
		docs:    make(map[string]*memDoc),
	}
}

// Name identifies the backend in logs.
func (l *MemLedger) Name() string { return "memory-sim" }

// AddDocument registers the document under a freshly derived id.
func (l *MemLedger) AddDocument(ctx context.Context, ownerID, blobAddress string, meta DocumentMeta) (*AddResult, error) {
	w, err := l.deriver.Derive(ownerID)
	if err != nil {
		return nil, fmt.Errorf("derive owner wallet: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	docID := DeriveDocumentID(w.Address, blobAddress, time.Now())
	if _, ok := l.docs[docID]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDocExists, docID)
	}
	l.docs[docID] = &memDoc{
		ownerUserID: ownerID,
		ownerAddr:   w.Address,
		blobAddress: blobAddress,
		meta:        meta,
		grants:      make(map[string]string),
	}
	l.block++
	return &AddResult{
		DocID:        docID,
		TxHash:       fakeTxHash(),
		BlockNumber:  l.block,
		OwnerAddress: w.Address,
	}, nil
}

// GrantAccess records a grant for the grantee. Owner-only.
func (l *MemLedger) GrantAccess(ctx context.Context, ownerID, docID, granteeID string) (*TxResult, error) {
	w, err := l.deriver.Derive(granteeID)
	if err != nil {
		return nil, fmt.Errorf("derive grantee wallet: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	doc, ok := l.docs[docID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDocNotFound, docID)
	}
	if doc.ownerUserID != ownerID {
		return nil, ErrNotOwner
	}
	doc.grants[granteeID] = w.Address
	l.block++
	return &TxResult{TxHash: fakeTxHash(), BlockNumber: l.block, TargetAddress: w.Address}, nil
}

// RevokeAccess removes a grant. Revoking an absent grant succeeds.
func (l *MemLedger) RevokeAccess(ctx context.Context, ownerID, docID, granteeID string) (*TxResult, error) {
	w, err := l.deriver.Derive(granteeID)
	if err != nil {
		return nil, fmt.Errorf("derive grantee wallet: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	doc, ok := l.docs[docID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDocNotFound, docID)
	}
	if doc.ownerUserID != ownerID {
		return nil, ErrNotOwner
	}
	delete(doc.grants, granteeID)
	l.block++
	return &TxResult{TxHash: fakeTxHash(), BlockNumber: l.block, TargetAddress: w.Address}, nil
}

// RemoveDocument deregisters the document. Owner-only.
func (l *MemLedger) RemoveDocument(ctx context.Context, ownerID, docID string) (*TxResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	doc, ok := l.docs[docID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDocNotFound, docID)
	}
	if doc.ownerUserID != ownerID {
		return nil, ErrNotOwner
	}
	delete(l.docs, docID)
	l.block++
	return &TxResult{TxHash: fakeTxHash(), BlockNumber: l.block, TargetAddress: doc.ownerAddr}, nil
}

// HasAccess reports whether userID is the owner or holds a grant. An unknown
// document id is an error, not a denial; the simulation cannot tell a never
// registered document from one registered before the last restart.
func (l *MemLedger) HasAccess(ctx context.Context, userID, docID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	doc, ok := l.docs[docID]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrDocNotFound, docID)
	}
	if doc.ownerUserID == userID {
		return true, nil
	}
	_, granted := doc.grants[userID]
	return granted, nil
}

// GetAccessors returns the granted ledger addresses in sorted order.
func (l *MemLedger) GetAccessors(ctx context.Context, ownerID, docID string) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	doc, ok := l.docs[docID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDocNotFound, docID)
	}
	if doc.ownerUserID != ownerID {
		return nil, ErrNotOwner
	}
	addrs := make([]string, 0, len(doc.grants))
	for _, addr := range doc.grants {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)
	return addrs, nil
}

// BatchGrantAccess grants access to every grantee under one simulated
// transaction. Either all grants are recorded or none.
func (l *MemLedger) BatchGrantAccess(ctx context.Context, ownerID, docID string, granteeIDs []string) (*BatchResult, error) {
	wallets := make(map[string]string, len(granteeIDs))
	addrs := make([]string, 0, len(granteeIDs))
	for _, id := range granteeIDs {
		w, err := l.deriver.Derive(id)
		if err != nil {
			return nil, fmt.Errorf("derive grantee wallet: %w", err)
		}
		wallets[id] = w.Address
		addrs = append(addrs, w.Address)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	doc, ok := l.docs[docID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDocNotFound, docID)
	}
	if doc.ownerUserID != ownerID {
		return nil, ErrNotOwner
	}
	for id, addr := range wallets {
		doc.grants[id] = addr
	}
	l.block++
	return &BatchResult{TxHash: fakeTxHash(), BlockNumber: l.block, TargetAddresses: addrs}, nil
}

func fakeTxHash() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return "0x" + hex.EncodeToString(b)
}
