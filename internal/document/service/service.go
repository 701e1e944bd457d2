// Package service implements the access reconciliation layer. Every
// operation that touches more than one store lives here, together with the
// per-operation partial-failure policy: upload aborts on blob failure and
// tolerates nothing, grants degrade to record-store-only in development mode,
// revokes are strict in every mode, and deletion treats ledger and blob
// cleanup as best-effort behind the terminal soft-delete.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/docuchain/docuchain-backend/internal/blobstore"
	"github.com/docuchain/docuchain-backend/internal/document"
	"github.com/docuchain/docuchain-backend/internal/document/repository"
	"github.com/docuchain/docuchain-backend/internal/ledger"
	"github.com/docuchain/docuchain-backend/internal/models"
	"github.com/docuchain/docuchain-backend/internal/users"
	"github.com/docuchain/docuchain-backend/internal/wallet"
	"github.com/docuchain/docuchain-backend/pkg/logger"
	"github.com/docuchain/docuchain-backend/pkg/metrics"
)

var (
	// ErrNotFound covers both absent documents and documents the caller may
	// not see; the two are indistinguishable on purpose.
	ErrNotFound = errors.New("document not found")
	// ErrAccessDenied is returned when a reader fails the access check.
	ErrAccessDenied = errors.New("access denied")
	// ErrNotOwner is returned when a non-owner attempts an owner-only
	// operation on a document shared with them.
	ErrNotOwner = errors.New("only the document owner may do this")
	// ErrUserNotFound is returned when a share target email resolves to no
	// active user.
	ErrUserNotFound = errors.New("user not found")
	// ErrSelfShare is returned when the owner tries to share with themselves.
	ErrSelfShare = errors.New("cannot share a document with its owner")
	// ErrAlreadyShared is returned when the target already holds the same
	// permission.
	ErrAlreadyShared = errors.New("document already shared with this user")
	// ErrNotShared is returned when revoking a user who holds no share.
	ErrNotShared = errors.New("document is not shared with this user")
	// ErrNothingToShare is returned when a batch grant filters down to no
	// eligible targets.
	ErrNothingToShare = errors.New("no eligible users to share with")
	// ErrBatchTooLarge is returned when a batch grant exceeds MaxBatchShare.
	ErrBatchTooLarge = errors.New("too many share targets in one request")
	// ErrDuplicateContent is returned when the exact bytes are already
	// stored under another document.
	ErrDuplicateContent = errors.New("identical content already uploaded")
)

// MaxBatchShare bounds the number of targets in one batch grant, which is
// issued as a single ledger transaction.
const MaxBatchShare = 50

// syntheticTxRef marks record-store writes whose ledger grant was skipped in
// development mode after a ledger failure. Real transactions never carry it.
const syntheticTxRef = "0x0"

// Service coordinates the record store, blob store and ledger.
type Service struct {
	docs    repository.Repository
	users   users.UserRepository
	blobs   blobstore.Store
	ledger  ledger.Ledger
	deriver *wallet.Deriver
	devMode bool
}

// New wires the reconciliation layer. devMode relaxes the grant and download
// policies as documented on the individual methods.
func New(docs repository.Repository, usersRepo users.UserRepository, blobs blobstore.Store, led ledger.Ledger, deriver *wallet.Deriver, devMode bool) *Service {
	return &Service{
		docs:    docs,
		users:   usersRepo,
		blobs:   blobs,
		ledger:  led,
		deriver: deriver,
		devMode: devMode,
	}
}

// UploadInput carries one file upload.
type UploadInput struct {
	OwnerID     primitive.ObjectID
	Data        []byte
	Title       string
	FileName    string
	ContentType string
	Encrypt     bool
}

// UploadResult reports the stored document and its ledger registration.
type UploadResult struct {
	Document     *document.Document
	TxHash       string
	OwnerAddress string
}

// Upload stores the payload, registers it on the ledger and persists the
// document record, in that order. A blob failure aborts with nothing written.
// A ledger failure aborts the operation but leaves the blob stored; the
// orphan is logged, never silently cleaned up. Both rules hold in every mode.
func (s *Service) Upload(ctx context.Context, in UploadInput) (*UploadResult, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = in.FileName
	}

	blobRes, err := s.blobs.Upload(ctx, in.Data, blobstore.UploadOptions{Encrypt: in.Encrypt})
	if err != nil {
		metrics.BlobCalls.WithLabelValues("upload", "error").Inc()
		metrics.DocumentUploads.WithLabelValues("blob_error").Inc()
		return nil, fmt.Errorf("blob upload: %w", err)
	}
	metrics.BlobCalls.WithLabelValues("upload", "success").Inc()

	addRes, err := s.ledger.AddDocument(ctx, in.OwnerID.Hex(), blobRes.Address, ledger.DocumentMeta{
		Title:       title,
		FileName:    in.FileName,
		ContentType: in.ContentType,
		Size:        int64(len(in.Data)),
	})
	if err != nil {
		metrics.LedgerCalls.WithLabelValues("add", "error").Inc()
		metrics.DocumentUploads.WithLabelValues("ledger_error").Inc()
		logger.Errorf("ledger registration failed, blob %s remains stored: %v", blobRes.Address, err)
		return nil, fmt.Errorf("ledger registration: %w", err)
	}
	metrics.LedgerCalls.WithLabelValues("add", "success").Inc()

	doc := &document.Document{
		Title:         title,
		FileName:      in.FileName,
		ContentType:   in.ContentType,
		Size:          int64(len(in.Data)),
		IPFSHash:      blobRes.Address,
		LedgerDocID:   addRes.DocID,
		OwnerID:       in.OwnerID,
		SharedWith:    []document.ShareEntry{},
		Encrypted:     in.Encrypt,
		EncryptionKey: blobRes.Key,
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		metrics.DocumentUploads.WithLabelValues("db_error").Inc()
		logger.Errorf("document record create failed after blob %s and ledger doc %s: %v", blobRes.Address, addRes.DocID, err)
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDuplicateContent
		}
		return nil, fmt.Errorf("persist document: %w", err)
	}

	s.backfillWalletAddress(ctx, in.OwnerID, addRes.OwnerAddress)

	metrics.DocumentUploads.WithLabelValues("success").Inc()
	logger.Infof("uploaded document %s (blob %s, ledger %s)", doc.ID.Hex(), blobRes.Address, addRes.DocID)
	return &UploadResult{Document: doc, TxHash: addRes.TxHash, OwnerAddress: addRes.OwnerAddress}, nil
}

// backfillWalletAddress records the owner's derived address on first upload.
// Purely informational, so failures are logged and dropped.
func (s *Service) backfillWalletAddress(ctx context.Context, ownerID primitive.ObjectID, address string) {
	u, err := s.users.FindByID(ctx, ownerID)
	if err != nil || u == nil || u.WalletAddress != "" {
		return
	}
	if err := s.users.SetWalletAddress(ctx, ownerID, address); err != nil {
		logger.Warnf("wallet address backfill for %s failed: %v", ownerID.Hex(), err)
	}
}

// ShareResult reports a single grant or revoke.
type ShareResult struct {
	TxHash        string
	TargetAddress string
	TargetEmail   string
}

// Grant shares the document with the user behind email. In development mode
// a ledger failure is logged and replaced with a synthesized result so the
// record-store write still happens; in production it aborts the operation.
// A permission change for an existing share never touches the ledger, which
// only knows a boolean.
func (s *Service) Grant(ctx context.Context, callerID, docID primitive.ObjectID, email string, perm document.Permission) (*ShareResult, error) {
	doc, err := s.ownedDoc(ctx, callerID, docID)
	if err != nil {
		return nil, err
	}
	target, err := s.resolveTarget(ctx, email)
	if err != nil {
		return nil, err
	}
	if target.ID == callerID {
		return nil, ErrSelfShare
	}

	if current, shared := doc.PermissionFor(target.ID); shared {
		if current == perm {
			return nil, ErrAlreadyShared
		}
		doc.ShareWith(target.ID, perm, time.Now())
		if err := s.docs.Update(ctx, doc); err != nil {
			return nil, fmt.Errorf("persist share: %w", err)
		}
		addr, _ := s.deriver.Address(target.ID.Hex())
		return &ShareResult{TargetAddress: addr, TargetEmail: target.Email}, nil
	}

	txHash := syntheticTxRef
	var targetAddr string
	ledgerRes, err := s.ledger.GrantAccess(ctx, callerID.Hex(), doc.LedgerDocID, target.ID.Hex())
	switch {
	case err == nil:
		metrics.LedgerCalls.WithLabelValues("grant", "success").Inc()
		txHash = ledgerRes.TxHash
		targetAddr = ledgerRes.TargetAddress
	case s.devMode:
		metrics.LedgerCalls.WithLabelValues("grant", "synthesized").Inc()
		logger.Warnf("ledger grant for doc %s failed in development mode, recording share locally: %v", doc.LedgerDocID, err)
		targetAddr, _ = s.deriver.Address(target.ID.Hex())
	default:
		metrics.LedgerCalls.WithLabelValues("grant", "error").Inc()
		return nil, fmt.Errorf("ledger grant: %w", err)
	}

	doc.ShareWith(target.ID, perm, time.Now())
	if err := s.docs.Update(ctx, doc); err != nil {
		return nil, fmt.Errorf("persist share: %w", err)
	}
	return &ShareResult{TxHash: txHash, TargetAddress: targetAddr, TargetEmail: target.Email}, nil
}

// Revoke withdraws a share. The ledger revoke must succeed in every mode
// before the record store is touched; failing to revoke on chain while
// hiding the entry locally would leave the target with durable access.
func (s *Service) Revoke(ctx context.Context, callerID, docID primitive.ObjectID, email string) (*ShareResult, error) {
	doc, err := s.ownedDoc(ctx, callerID, docID)
	if err != nil {
		return nil, err
	}
	target, err := s.resolveTarget(ctx, email)
	if err != nil {
		return nil, err
	}
	if _, shared := doc.PermissionFor(target.ID); !shared || target.ID == callerID {
		return nil, ErrNotShared
	}

	ledgerRes, err := s.ledger.RevokeAccess(ctx, callerID.Hex(), doc.LedgerDocID, target.ID.Hex())
	if err != nil {
		metrics.LedgerCalls.WithLabelValues("revoke", "error").Inc()
		return nil, fmt.Errorf("ledger revoke: %w", err)
	}
	metrics.LedgerCalls.WithLabelValues("revoke", "success").Inc()

	doc.Unshare(target.ID)
	if err := s.docs.Update(ctx, doc); err != nil {
		return nil, fmt.Errorf("persist revoke: %w", err)
	}
	return &ShareResult{TxHash: ledgerRes.TxHash, TargetAddress: ledgerRes.TargetAddress, TargetEmail: target.Email}, nil
}

// BatchShareResult reports a batch grant.
type BatchShareResult struct {
	Shared   []string
	NotFound []string
	Skipped  []string
	TxHash   string
}

// BatchGrant shares with up to MaxBatchShare emails in one ledger
// transaction. Unknown emails are reported, the owner and already-shared
// users are skipped, and the ledger failure policy mirrors Grant.
func (s *Service) BatchGrant(ctx context.Context, callerID, docID primitive.ObjectID, emails []string, perm document.Permission) (*BatchShareResult, error) {
	if len(emails) > MaxBatchShare {
		return nil, ErrBatchTooLarge
	}
	doc, err := s.ownedDoc(ctx, callerID, docID)
	if err != nil {
		return nil, err
	}

	deduped := make([]string, 0, len(emails))
	seen := make(map[string]bool, len(emails))
	for _, e := range emails {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" || seen[e] {
			continue
		}
		seen[e] = true
		deduped = append(deduped, e)
	}

	found, err := s.users.FindActiveByEmails(ctx, deduped)
	if err != nil {
		return nil, fmt.Errorf("resolve share targets: %w", err)
	}
	byEmail := make(map[string]*models.User, len(found))
	for _, u := range found {
		byEmail[u.Email] = u
	}

	res := &BatchShareResult{Shared: []string{}, NotFound: []string{}, Skipped: []string{}}
	targets := []*models.User{}
	for _, e := range deduped {
		u, ok := byEmail[e]
		switch {
		case !ok:
			res.NotFound = append(res.NotFound, e)
		case u.ID == callerID, doc.HasAccess(u.ID):
			res.Skipped = append(res.Skipped, e)
		default:
			targets = append(targets, u)
		}
	}
	if len(targets) == 0 {
		return nil, ErrNothingToShare
	}

	ids := make([]string, len(targets))
	for i, u := range targets {
		ids[i] = u.ID.Hex()
	}
	res.TxHash = syntheticTxRef
	batchRes, err := s.ledger.BatchGrantAccess(ctx, callerID.Hex(), doc.LedgerDocID, ids)
	switch {
	case err == nil:
		metrics.LedgerCalls.WithLabelValues("batch_grant", "success").Inc()
		res.TxHash = batchRes.TxHash
	case s.devMode:
		metrics.LedgerCalls.WithLabelValues("batch_grant", "synthesized").Inc()
		logger.Warnf("ledger batch grant for doc %s failed in development mode, recording shares locally: %v", doc.LedgerDocID, err)
	default:
		metrics.LedgerCalls.WithLabelValues("batch_grant", "error").Inc()
		return nil, fmt.Errorf("ledger batch grant: %w", err)
	}

	now := time.Now()
	for _, u := range targets {
		doc.ShareWith(u.ID, perm, now)
		res.Shared = append(res.Shared, u.Email)
	}
	if err := s.docs.Update(ctx, doc); err != nil {
		return nil, fmt.Errorf("persist batch share: %w", err)
	}
	return res, nil
}

// AccessCheck reports the two halves of the dual verification.
type AccessCheck struct {
	Local   bool `json:"local"`
	OnChain bool `json:"onchain"`
	Granted bool `json:"granted"`
}

// CheckAccess answers whether userID may read the document: the record-store
// view AND the ledger view. A ledger error counts as "no" in every mode;
// the explicit check always fails closed.
func (s *Service) CheckAccess(ctx context.Context, userID, docID primitive.ObjectID) (*AccessCheck, error) {
	doc, err := s.docs.FindByID(ctx, docID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	check := &AccessCheck{Local: doc.HasAccess(userID)}
	onchain, err := s.ledger.HasAccess(ctx, userID.Hex(), doc.LedgerDocID)
	if err != nil {
		metrics.LedgerCalls.WithLabelValues("check", "error").Inc()
		logger.Warnf("ledger access check for doc %s failed, treating as denied: %v", doc.LedgerDocID, err)
	} else {
		metrics.LedgerCalls.WithLabelValues("check", "success").Inc()
		check.OnChain = onchain
	}
	check.Granted = check.Local && check.OnChain
	return check, nil
}

// DownloadResult carries the plaintext payload and serving metadata.
type DownloadResult struct {
	Data        []byte
	FileName    string
	ContentType string
}

// Download fetches the payload for a caller with access. The on-chain check
// applies with one exception: in development mode a ledger *error* passes
// (simulated ledger state does not survive restarts), while an explicit
// on-chain "no" denies in every mode. The download counter moves only after
// the bytes are actually retrieved.
func (s *Service) Download(ctx context.Context, callerID, docID primitive.ObjectID) (*DownloadResult, error) {
	doc, err := s.docs.FindByID(ctx, docID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !doc.HasAccess(callerID) {
		metrics.DocumentDownloads.WithLabelValues("denied").Inc()
		return nil, ErrAccessDenied
	}

	onchain, err := s.ledger.HasAccess(ctx, callerID.Hex(), doc.LedgerDocID)
	switch {
	case err != nil && s.devMode:
		metrics.LedgerCalls.WithLabelValues("check", "error").Inc()
		logger.Warnf("ledger check for doc %s failed in development mode, allowing download: %v", doc.LedgerDocID, err)
	case err != nil:
		metrics.LedgerCalls.WithLabelValues("check", "error").Inc()
		metrics.DocumentDownloads.WithLabelValues("denied").Inc()
		return nil, ErrAccessDenied
	case !onchain:
		metrics.LedgerCalls.WithLabelValues("check", "success").Inc()
		metrics.DocumentDownloads.WithLabelValues("denied").Inc()
		return nil, ErrAccessDenied
	default:
		metrics.LedgerCalls.WithLabelValues("check", "success").Inc()
	}

	data, err := s.blobs.Download(ctx, doc.IPFSHash, blobstore.DownloadOptions{
		Decrypt: doc.EncryptionKey != "",
		Key:     doc.EncryptionKey,
	})
	if err != nil {
		metrics.BlobCalls.WithLabelValues("download", "error").Inc()
		metrics.DocumentDownloads.WithLabelValues("blob_error").Inc()
		return nil, fmt.Errorf("blob download: %w", err)
	}
	metrics.BlobCalls.WithLabelValues("download", "success").Inc()

	if err := s.docs.IncrementDownload(ctx, doc.ID, time.Now()); err != nil {
		logger.Warnf("download counter update for %s failed: %v", doc.ID.Hex(), err)
	}
	metrics.DocumentDownloads.WithLabelValues("success").Inc()
	return &DownloadResult{Data: data, FileName: doc.FileName, ContentType: doc.ContentType}, nil
}

// Delete soft-deletes the document. Ledger removal and blob unpin are
// attempted first but never block: the record becoming invisible is the
// operation's one durable guarantee.
func (s *Service) Delete(ctx context.Context, callerID, docID primitive.ObjectID) error {
	doc, err := s.ownedDoc(ctx, callerID, docID)
	if err != nil {
		return err
	}

	if _, err := s.ledger.RemoveDocument(ctx, callerID.Hex(), doc.LedgerDocID); err != nil {
		metrics.LedgerCalls.WithLabelValues("remove", "error").Inc()
		logger.Warnf("ledger removal for doc %s failed, continuing with delete: %v", doc.LedgerDocID, err)
	} else {
		metrics.LedgerCalls.WithLabelValues("remove", "success").Inc()
	}
	if _, err := s.blobs.Unpin(ctx, doc.IPFSHash); err != nil {
		metrics.BlobCalls.WithLabelValues("unpin", "error").Inc()
		logger.Warnf("blob unpin for %s failed, continuing with delete: %v", doc.IPFSHash, err)
	} else {
		metrics.BlobCalls.WithLabelValues("unpin", "success").Inc()
	}

	if err := s.docs.SoftDelete(ctx, doc.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("soft delete: %w", err)
	}
	logger.Infof("deleted document %s", doc.ID.Hex())
	return nil
}

// Get returns the document metadata for the owner or a shared user. Everyone
// else sees not-found.
func (s *Service) Get(ctx context.Context, callerID, docID primitive.ObjectID) (*document.Document, error) {
	doc, err := s.docs.FindByID(ctx, docID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !doc.HasAccess(callerID) {
		return nil, ErrNotFound
	}
	return doc, nil
}

// List returns the caller's active documents.
func (s *Service) List(ctx context.Context, ownerID primitive.ObjectID) ([]*document.Document, error) {
	return s.docs.FindByOwner(ctx, ownerID)
}

// SharedWithMe returns active documents shared with the caller.
func (s *Service) SharedWithMe(ctx context.Context, callerID primitive.ObjectID) ([]*document.Document, error) {
	return s.docs.FindSharedWith(ctx, callerID)
}

// Rename updates the document title. Owner-only.
func (s *Service) Rename(ctx context.Context, callerID, docID primitive.ObjectID, title string) (*document.Document, error) {
	doc, err := s.ownedDoc(ctx, callerID, docID)
	if err != nil {
		return nil, err
	}
	doc.Title = strings.TrimSpace(title)
	if err := s.docs.Update(ctx, doc); err != nil {
		return nil, fmt.Errorf("persist rename: %w", err)
	}
	return doc, nil
}

// SharedUser is a share entry resolved to a public profile.
type SharedUser struct {
	models.PublicProfile
	Permission document.Permission `json:"permission"`
	SharedAt   time.Time           `json:"sharedAt"`
}

// SharingInfo is the owner's view of a document's access state across both
// stores.
type SharingInfo struct {
	Document        *document.Document `json:"document"`
	SharedWith      []SharedUser       `json:"sharedWith"`
	LedgerAccessors []string           `json:"ledgerAccessors"`
}

// Sharing returns the resolved shared-with list plus the ledger's accessor
// list. The ledger half is best-effort: on failure the field stays empty and
// the record-store view still renders, which makes store disagreement
// visible instead of fatal.
func (s *Service) Sharing(ctx context.Context, callerID, docID primitive.ObjectID) (*SharingInfo, error) {
	doc, err := s.ownedDoc(ctx, callerID, docID)
	if err != nil {
		return nil, err
	}

	info := &SharingInfo{Document: doc, SharedWith: []SharedUser{}, LedgerAccessors: []string{}}
	for _, entry := range doc.SharedWith {
		u, uerr := s.users.FindByID(ctx, entry.UserID)
		if uerr != nil || u == nil {
			logger.Debugf("share entry user %s not resolvable", entry.UserID.Hex())
			continue
		}
		info.SharedWith = append(info.SharedWith, SharedUser{
			PublicProfile: u.Public(),
			Permission:    entry.Permission,
			SharedAt:      entry.SharedAt,
		})
	}

	accessors, err := s.ledger.GetAccessors(ctx, callerID.Hex(), doc.LedgerDocID)
	if err != nil {
		metrics.LedgerCalls.WithLabelValues("accessors", "error").Inc()
		logger.Warnf("ledger accessor list for doc %s unavailable: %v", doc.LedgerDocID, err)
	} else {
		metrics.LedgerCalls.WithLabelValues("accessors", "success").Inc()
		info.LedgerAccessors = accessors
	}
	return info, nil
}

// ownedDoc loads an active document and verifies ownership. Shared users get
// ErrNotOwner, strangers get ErrNotFound; the latter cannot probe existence.
func (s *Service) ownedDoc(ctx context.Context, callerID, docID primitive.ObjectID) (*document.Document, error) {
	doc, err := s.docs.FindByID(ctx, docID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if doc.IsOwner(callerID) {
		return doc, nil
	}
	if doc.HasAccess(callerID) {
		return nil, ErrNotOwner
	}
	return nil, ErrNotFound
}

// resolveTarget maps a share target email to an active user.
func (s *Service) resolveTarget(ctx context.Context, email string) (*models.User, error) {
	u, err := s.users.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, fmt.Errorf("resolve user: %w", err)
	}
	if u == nil || !u.Active {
		return nil, ErrUserNotFound
	}
	return u, nil
}
