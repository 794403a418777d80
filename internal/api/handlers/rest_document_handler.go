package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"estatelink/marketplace/internal/api/middleware"
	"estatelink/marketplace/internal/config"
	"estatelink/marketplace/internal/models"
	"estatelink/marketplace/internal/services"
)

// multipartOverhead is the slack allowed on top of the file size limit for form fields and boundaries.
const multipartOverhead = 1 << 20

// RestDocumentHandler handles REST requests for offer documents.
type RestDocumentHandler struct {
	cfg       *config.Config
	documents services.IDocumentService
}

// NewRestDocumentHandler creates a new RestDocumentHandler.
func NewRestDocumentHandler(cfg *config.Config, documents services.IDocumentService) *RestDocumentHandler {
	return &RestDocumentHandler{cfg: cfg, documents: documents}
}

// Catalogue handles GET /v1/documents/catalogue
func (h *RestDocumentHandler) Catalogue(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"data":          models.DocumentCatalogue,
		"max_size_mb":   h.cfg.DocumentMaxSizeMB,
		"allowed_types": h.cfg.DocumentAllowedTypes,
	})
}

// Upload handles POST /v1/offers/:id/documents (multipart: file, document_type, description).
// Oversized bodies are cut off well past the limit; the limit itself is enforced by the service.
func (h *RestDocumentHandler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 2*h.cfg.DocumentMaxSizeBytes()+multipartOverhead)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{
				"error":   fmt.Sprintf("File exceeds maximum size of %dMB", h.cfg.DocumentMaxSizeMB),
				"variant": errorVariant,
			})
			return
		}
		respondBadRequest(c, "A file is required")
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		respondError(c, err, "upload document")
		return
	}
	defer file.Close()

	result, err := h.documents.Upload(c.Request.Context(), middleware.ActorFrom(c), services.UploadInput{
		OfferIntentID: c.Param("id"),
		DocumentType:  models.DocumentType(c.PostForm("document_type")),
		FileName:      fileHeader.Filename,
		FileSize:      fileHeader.Size,
		ContentType:   fileHeader.Header.Get("Content-Type"),
		Description:   c.PostForm("description"),
		Content:       file,
	})
	if err != nil {
		respondError(c, err, "upload document")
		return
	}
	c.JSON(http.StatusCreated, result)
}

// List handles GET /v1/offers/:id/documents
func (h *RestDocumentHandler) List(c *gin.Context) {
	docs, err := h.documents.List(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err, "load documents")
		return
	}
	if docs == nil {
		docs = []models.OfferDocument{}
	}
	c.JSON(http.StatusOK, gin.H{"data": docs, "counts": models.CountDocuments(docs)})
}

// Requirements handles GET /v1/offers/:id/documents/requirements
func (h *RestDocumentHandler) Requirements(c *gin.Context) {
	reqs, err := h.documents.Requirements(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err, "load document requirements")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": reqs})
}

// SignedURL handles GET /v1/documents/:id/url
func (h *RestDocumentHandler) SignedURL(c *gin.Context) {
	link, err := h.documents.SignedURL(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err, "open document")
		return
	}
	c.JSON(http.StatusOK, link)
}

// Delete handles DELETE /v1/documents/:id
func (h *RestDocumentHandler) Delete(c *gin.Context) {
	if err := h.documents.Delete(c.Request.Context(), middleware.ActorFrom(c), c.Param("id")); err != nil {
		respondError(c, err, "delete document")
		return
	}
	c.Status(http.StatusNoContent)
}

type uploadStatusRequest struct {
	Status models.UploadStatus `json:"status" binding:"required"`
}

// SetStatus handles POST /v1/documents/:id/status
func (h *RestDocumentHandler) SetStatus(c *gin.Context) {
	var req uploadStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "status is required")
		return
	}
	doc, err := h.documents.SetUploadStatus(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"), req.Status)
	if err != nil {
		respondError(c, err, "update document status")
		return
	}
	c.JSON(http.StatusOK, doc)
}
