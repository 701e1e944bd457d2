// Package handler exposes the document and sharing REST surface.
package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/docuchain/docuchain-backend/internal/config"
	"github.com/docuchain/docuchain-backend/internal/document"
	"github.com/docuchain/docuchain-backend/internal/document/service"
	"github.com/docuchain/docuchain-backend/pkg/logger"
)

// DocumentHandler holds dependencies
type DocumentHandler struct {
	svc *service.Service
	cfg *config.Config
}

func NewDocumentHandler(svc *service.Service, cfg *config.Config) *DocumentHandler {
	return &DocumentHandler{svc: svc, cfg: cfg}
}

// Register routes under /documents and /share. The group must already carry
// the auth middleware; every handler assumes an authenticated caller.
func (h *DocumentHandler) Register(rg *gin.RouterGroup) {
	d := rg.Group("/documents")
	d.POST("/upload", h.Upload)
	d.GET("", h.List)
	d.GET("/:id", h.Get)
	d.PUT("/:id", h.Rename)
	d.DELETE("/:id", h.Delete)
	d.GET("/:id/download", h.Download)

	s := rg.Group("/share")
	s.POST("/grant", h.Grant)
	s.POST("/revoke", h.Revoke)
	s.POST("/batch-grant", h.BatchGrant)
	s.GET("/info/:id", h.SharingInfo)
	s.GET("/check/:id", h.CheckAccess)
	s.GET("/my-shares", h.MyShares)
}

// Upload accepts one multipart file plus optional title and encrypt fields.
func (h *DocumentHandler) Upload(c *gin.Context) {
	uid, ok := callerID(c)
	if !ok {
		return
	}

	// Reject oversized bodies before buffering them. The extra megabyte
	// leaves room for the multipart framing around a maximum-size file.
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.cfg.Upload.MaxBytes+1<<20)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "file is required"})
		return
	}
	if fileHeader.Size > h.cfg.Upload.MaxBytes {
		c.JSON(http.StatusBadRequest, gin.H{"message": "file exceeds the upload size limit"})
		return
	}
	contentType := fileHeader.Header.Get("Content-Type")
	if !h.cfg.ContentTypeAllowed(contentType) {
		c.JSON(http.StatusBadRequest, gin.H{"message": fmt.Sprintf("content type %q is not allowed", contentType)})
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "cannot read uploaded file"})
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "cannot read uploaded file"})
		return
	}

	res, err := h.svc.Upload(c.Request.Context(), service.UploadInput{
		OwnerID:     uid,
		Data:        data,
		Title:       c.PostForm("title"),
		FileName:    fileHeader.Filename,
		ContentType: contentType,
		Encrypt:     parseBool(c.PostForm("encrypt")),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message":      "document uploaded",
		"document":     res.Document,
		"txHash":       res.TxHash,
		"ownerAddress": res.OwnerAddress,
	})
}

func (h *DocumentHandler) List(c *gin.Context) {
	uid, ok := callerID(c)
	if !ok {
		return
	}
	docs, err := h.svc.List(c.Request.Context(), uid)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs, "count": len(docs)})
}

func (h *DocumentHandler) Get(c *gin.Context) {
	uid, ok := callerID(c)
	if !ok {
		return
	}
	id, ok := docParam(c)
	if !ok {
		return
	}
	doc, err := h.svc.Get(c.Request.Context(), uid, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (h *DocumentHandler) Rename(c *gin.Context) {
	uid, ok := callerID(c)
	if !ok {
		return
	}
	id, ok := docParam(c)
	if !ok {
		return
	}
	var req struct {
		Title string `json:"title" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "title is required"})
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "title is required"})
		return
	}
	doc, err := h.svc.Rename(c.Request.Context(), uid, id, req.Title)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	uid, ok := callerID(c)
	if !ok {
		return
	}
	id, ok := docParam(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), uid, id); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "document deleted"})
}

func (h *DocumentHandler) Download(c *gin.Context) {
	uid, ok := callerID(c)
	if !ok {
		return
	}
	id, ok := docParam(c)
	if !ok {
		return
	}
	res, err := h.svc.Download(c.Request.Context(), uid, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.FileName))
	c.Data(http.StatusOK, res.ContentType, res.Data)
}

func (h *DocumentHandler) Grant(c *gin.Context) {
	uid, ok := callerID(c)
	if !ok {
		return
	}
	var req struct {
		DocumentID string `json:"documentId" binding:"required"`
		Email      string `json:"email" binding:"required,email"`
		Permission string `json:"permission"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "documentId and a valid email are required"})
		return
	}
	docID, perm, ok := shareParams(c, req.DocumentID, req.Permission)
	if !ok {
		return
	}
	res, err := h.svc.Grant(c.Request.Context(), uid, docID, req.Email, perm)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":        "access granted",
		"email":          res.TargetEmail,
		"granteeAddress": res.TargetAddress,
		"txHash":         res.TxHash,
	})
}

func (h *DocumentHandler) Revoke(c *gin.Context) {
	uid, ok := callerID(c)
	if !ok {
		return
	}
	var req struct {
		DocumentID string `json:"documentId" binding:"required"`
		Email      string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "documentId and a valid email are required"})
		return
	}
	docID, err := primitive.ObjectIDFromHex(req.DocumentID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid document id"})
		return
	}
	res, err := h.svc.Revoke(c.Request.Context(), uid, docID, req.Email)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "access revoked",
		"email":   res.TargetEmail,
		"txHash":  res.TxHash,
	})
}

func (h *DocumentHandler) BatchGrant(c *gin.Context) {
	uid, ok := callerID(c)
	if !ok {
		return
	}
	var req struct {
		DocumentID string   `json:"documentId" binding:"required"`
		Emails     []string `json:"emails" binding:"required,min=1"`
		Permission string   `json:"permission"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "documentId and at least one email are required"})
		return
	}
	docID, perm, ok := shareParams(c, req.DocumentID, req.Permission)
	if !ok {
		return
	}
	res, err := h.svc.BatchGrant(c.Request.Context(), uid, docID, req.Emails, perm)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":  "batch grant processed",
		"shared":   res.Shared,
		"skipped":  res.Skipped,
		"notFound": res.NotFound,
		"txHash":   res.TxHash,
	})
}

func (h *DocumentHandler) SharingInfo(c *gin.Context) {
	uid, ok := callerID(c)
	if !ok {
		return
	}
	id, ok := docParam(c)
	if !ok {
		return
	}
	info, err := h.svc.Sharing(c.Request.Context(), uid, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (h *DocumentHandler) CheckAccess(c *gin.Context) {
	uid, ok := callerID(c)
	if !ok {
		return
	}
	id, ok := docParam(c)
	if !ok {
		return
	}
	check, err := h.svc.CheckAccess(c.Request.Context(), uid, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, check)
}

func (h *DocumentHandler) MyShares(c *gin.Context) {
	uid, ok := callerID(c)
	if !ok {
		return
	}
	docs, err := h.svc.SharedWithMe(c.Request.Context(), uid)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs, "count": len(docs)})
}

// fail maps service errors onto the status-code families. Unexpected errors
// are logged server-side; their detail reaches the client only in the
// development environment.
func (h *DocumentHandler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "document not found"})
	case errors.Is(err, service.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "user not found"})
	case errors.Is(err, service.ErrNotOwner):
		c.JSON(http.StatusForbidden, gin.H{"message": service.ErrNotOwner.Error()})
	case errors.Is(err, service.ErrAccessDenied):
		c.JSON(http.StatusForbidden, gin.H{"message": "access denied"})
	case errors.Is(err, service.ErrSelfShare),
		errors.Is(err, service.ErrNothingToShare),
		errors.Is(err, service.ErrBatchTooLarge):
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
	case errors.Is(err, service.ErrAlreadyShared),
		errors.Is(err, service.ErrNotShared),
		errors.Is(err, service.ErrDuplicateContent):
		c.JSON(http.StatusConflict, gin.H{"message": err.Error()})
	default:
		logger.Errorf("document handler: %v", err)
		body := gin.H{"message": "internal server error"}
		if h.cfg.IsDevelopmentEnv() {
			body["detail"] = err.Error()
		}
		c.JSON(http.StatusInternalServerError, body)
	}
}

func callerID(c *gin.Context) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.GetString("userID"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "authentication required"})
		return primitive.NilObjectID, false
	}
	return id, true
}

func docParam(c *gin.Context) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid document id"})
		return primitive.NilObjectID, false
	}
	return id, true
}

func shareParams(c *gin.Context, rawID, rawPerm string) (primitive.ObjectID, document.Permission, bool) {
	docID, err := primitive.ObjectIDFromHex(rawID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid document id"})
		return primitive.NilObjectID, "", false
	}
	perm := document.Permission(rawPerm)
	if rawPerm == "" {
		perm = document.PermissionRead
	}
	if !document.ValidPermission(perm) {
		c.JSON(http.StatusBadRequest, gin.H{"message": "permission must be read or write"})
		return primitive.NilObjectID, "", false
	}
	return docID, perm, true
}

func parseBool(v string) bool {
	return strings.EqualFold(v, "true") || v == "1"
}
