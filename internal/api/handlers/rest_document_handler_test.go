package handlers_test

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"estatelink/marketplace/internal/api/handlers"
	"estatelink/marketplace/internal/config"
	"estatelink/marketplace/internal/models"
	"estatelink/marketplace/internal/services"
)

func documentRouter(actor models.Actor, svc *MockDocumentService) http.Handler {
	cfg := &config.Config{DocumentMaxSizeMB: 10, DocumentAllowedTypes: []string{"application/pdf"}}
	h := handlers.NewRestDocumentHandler(cfg, svc)
	r := newEngine(actor)
	r.GET("/v1/documents/catalogue", h.Catalogue)
	r.POST("/v1/offers/:id/documents", h.Upload)
	r.GET("/v1/offers/:id/documents", h.List)
	r.GET("/v1/documents/:id/url", h.SignedURL)
	r.DELETE("/v1/documents/:id", h.Delete)
	r.POST("/v1/documents/:id/status", h.SetStatus)
	return r
}

func multipartUpload(t *testing.T, fields map[string]string, fileName string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if fileName != "" {
		fw, err := mw.CreateFormFile("file", fileName)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req, err := http.NewRequest(http.MethodPost, "/v1/offers/intent-1/documents", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestRestDocumentHandler_Upload(t *testing.T) {
	svc := new(MockDocumentService)
	content := []byte("%PDF-1.7 test document")
	var received []byte
	svc.On("Upload", mock.Anything, buyer, mock.MatchedBy(func(in services.UploadInput) bool {
		return in.OfferIntentID == "intent-1" &&
			in.DocumentType == models.DocPreApprovalLetter &&
			in.FileName == "letter.pdf" &&
			in.FileSize == int64(len(content)) &&
			in.Description == "from the bank"
	})).Run(func(args mock.Arguments) {
		received, _ = io.ReadAll(args.Get(2).(services.UploadInput).Content)
	}).Return(&services.UploadResult{
		Document: &models.OfferDocument{Base: models.Base{ID: "doc-1"}},
		Counts:   models.DocumentCounts{Total: 1, Required: 1},
	}, nil)

	w := httptest.NewRecorder()
	documentRouter(buyer, svc).ServeHTTP(w, multipartUpload(t, map[string]string{
		"document_type": "pre_approval_letter",
		"description":   "from the bank",
	}, "letter.pdf", content))

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, content, received)
	svc.AssertExpectations(t)
}

func TestRestDocumentHandler_UploadWithoutFile(t *testing.T) {
	svc := new(MockDocumentService)

	w := httptest.NewRecorder()
	documentRouter(buyer, svc).ServeHTTP(w, multipartUpload(t, map[string]string{"document_type": "other"}, "", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "A file is required", decode(t, w)["error"])
	svc.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything)
}

func TestRestDocumentHandler_UploadRejected(t *testing.T) {
	svc := new(MockDocumentService)
	svc.On("Upload", mock.Anything, buyer, mock.Anything).
		Return(nil, &services.ValidationError{Field: "file", Message: "File exceeds maximum size of 10MB"})

	w := httptest.NewRecorder()
	documentRouter(buyer, svc).ServeHTTP(w, multipartUpload(t, map[string]string{"document_type": "other"}, "big.pdf", []byte("%PDF")))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "File exceeds maximum size of 10MB", decode(t, w)["error"])
}

func TestRestDocumentHandler_ListIncludesCounts(t *testing.T) {
	svc := new(MockDocumentService)
	svc.On("List", mock.Anything, buyer, "intent-1").Return([]models.OfferDocument{
		{Base: models.Base{ID: "d1"}, DocumentType: models.DocPreApprovalLetter, IsRequired: true, IsSensitive: true},
		{Base: models.Base{ID: "d2"}, DocumentType: models.DocOther},
	}, nil)

	w := doJSON(t, documentRouter(buyer, svc), http.MethodGet, "/v1/offers/intent-1/documents", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Len(t, body["data"], 2)
	counts := body["counts"].(map[string]interface{})
	assert.EqualValues(t, 2, counts["total"])
	assert.EqualValues(t, 1, counts["required"])
}

func TestRestDocumentHandler_DeleteAndStatus(t *testing.T) {
	svc := new(MockDocumentService)
	svc.On("Delete", mock.Anything, buyer, "doc-1").Return(nil)
	svc.On("SetUploadStatus", mock.Anything, agent, "doc-1", models.UploadVerified).
		Return(&models.OfferDocument{Base: models.Base{ID: "doc-1"}, UploadStatus: models.UploadVerified}, nil)

	w := doJSON(t, documentRouter(buyer, svc), http.MethodDelete, "/v1/documents/doc-1", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, documentRouter(agent, svc), http.MethodPost, "/v1/documents/doc-1/status", map[string]string{"status": "verified"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "verified", decode(t, w)["upload_status"])
	svc.AssertExpectations(t)
}

func TestRestDocumentHandler_Catalogue(t *testing.T) {
	w := doJSON(t, documentRouter(buyer, new(MockDocumentService)), http.MethodGet, "/v1/documents/catalogue", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Len(t, body["data"], len(models.DocumentCatalogue))
	assert.EqualValues(t, 10, body["max_size_mb"])
}
