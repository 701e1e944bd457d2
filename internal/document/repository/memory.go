package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/docuchain/docuchain-backend/internal/document"
)

// MemoryRepo is an in-memory repository used by unit tests. It mirrors the
// Mongo implementation's semantics, including active-only reads and unique
// blob address / ledger doc id, and hands out copies so callers never share
// state with the store.
type MemoryRepo struct {
	mu   sync.RWMutex
	docs map[primitive.ObjectID]*document.Document
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{docs: make(map[primitive.ObjectID]*document.Document)}
}

func (m *MemoryRepo) Create(ctx context.Context, doc *document.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.docs {
		if doc.IPFSHash != "" && d.IPFSHash == doc.IPFSHash {
			return ErrDuplicate
		}
		if doc.LedgerDocID != "" && d.LedgerDocID == doc.LedgerDocID {
			return ErrDuplicate
		}
	}
	now := time.Now()
	if doc.ID.IsZero() {
		doc.ID = primitive.NewObjectID()
	}
	doc.Active = true
	doc.CreatedAt = now
	doc.UpdatedAt = now
	m.docs[doc.ID] = cloneDoc(doc)
	return nil
}

func (m *MemoryRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*document.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.docs[id]
	if !ok || !d.Active {
		return nil, ErrNotFound
	}
	return cloneDoc(d), nil
}

func (m *MemoryRepo) FindByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]*document.Document, error) {
	return m.filter(func(d *document.Document) bool {
		return d.OwnerID == ownerID
	}), nil
}

func (m *MemoryRepo) FindSharedWith(ctx context.Context, userID primitive.ObjectID) ([]*document.Document, error) {
	return m.filter(func(d *document.Document) bool {
		for _, e := range d.SharedWith {
			if e.UserID == userID {
				return true
			}
		}
		return false
	}), nil
}

func (m *MemoryRepo) filter(keep func(*document.Document) bool) []*document.Document {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []*document.Document{}
	for _, d := range m.docs {
		if d.Active && keep(d) {
			out = append(out, cloneDoc(d))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *MemoryRepo) Update(ctx context.Context, doc *document.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.docs[doc.ID]
	if !ok || !stored.Active {
		return ErrNotFound
	}
	stored.Title = doc.Title
	stored.SharedWith = append([]document.ShareEntry(nil), doc.SharedWith...)
	stored.UpdatedAt = time.Now()
	doc.UpdatedAt = stored.UpdatedAt
	return nil
}

func (m *MemoryRepo) SoftDelete(ctx context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok || !d.Active {
		return ErrNotFound
	}
	d.Active = false
	d.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryRepo) IncrementDownload(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok || !d.Active {
		return ErrNotFound
	}
	d.DownloadCount++
	t := at
	d.LastAccessed = &t
	d.UpdatedAt = at
	return nil
}

func cloneDoc(d *document.Document) *document.Document {
	c := *d
	c.SharedWith = append([]document.ShareEntry(nil), d.SharedWith...)
	if d.LastAccessed != nil {
		t := *d.LastAccessed
		c.LastAccessed = &t
	}
	return &c
}
