package models

import "time"

// DocumentType identifies an entry of the document catalogue.
type DocumentType string

const (
	DocPreApprovalLetter DocumentType = "pre_approval_letter"
	DocIdentification    DocumentType = "identification"
	DocProofOfFunds      DocumentType = "proof_of_funds"
	DocBankStatement     DocumentType = "bank_statement"
	DocPurchaseAgreement DocumentType = "purchase_agreement"
	DocAddendum          DocumentType = "addendum"
	DocInspectionReport  DocumentType = "inspection_report"
	DocAppraisal         DocumentType = "appraisal"
	DocOther             DocumentType = "other"
)

// DocumentCatalogueEntry describes one document type.
type DocumentCatalogueEntry struct {
	Type      DocumentType `json:"type"`
	Label     string       `json:"label"`
	Required  bool         `json:"required"`
	Sensitive bool         `json:"sensitive"`
}

// DocumentCatalogue is the fixed set of accepted document types, in display order.
var DocumentCatalogue = []DocumentCatalogueEntry{
	{Type: DocPreApprovalLetter, Label: "Pre-Approval Letter", Required: true, Sensitive: true},
	{Type: DocIdentification, Label: "Identification", Required: true, Sensitive: true},
	{Type: DocProofOfFunds, Label: "Proof of Funds", Sensitive: true},
	{Type: DocBankStatement, Label: "Bank Statement", Sensitive: true},
	{Type: DocPurchaseAgreement, Label: "Purchase Agreement"},
	{Type: DocAddendum, Label: "Addendum"},
	{Type: DocInspectionReport, Label: "Inspection Report"},
	{Type: DocAppraisal, Label: "Appraisal"},
	{Type: DocOther, Label: "Other"},
}

// CatalogueEntry looks up a document type.
func CatalogueEntry(t DocumentType) (DocumentCatalogueEntry, bool) {
	for _, e := range DocumentCatalogue {
		if e.Type == t {
			return e, true
		}
	}
	return DocumentCatalogueEntry{}, false
}

// IsValid checks if a document type is in the catalogue.
func (t DocumentType) IsValid() bool {
	_, ok := CatalogueEntry(t)
	return ok
}

// UploadStatus is the review state of an uploaded document.
type UploadStatus string

const (
	UploadUploaded   UploadStatus = "uploaded"
	UploadProcessing UploadStatus = "processing"
	UploadVerified   UploadStatus = "verified"
	UploadRejected   UploadStatus = "rejected"
)

var ValidUploadStatuses = []UploadStatus{UploadUploaded, UploadProcessing, UploadVerified, UploadRejected}

func (s UploadStatus) IsValid() bool {
	for _, v := range ValidUploadStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// OfferDocument is an uploaded file supporting an offer intent.
type OfferDocument struct {
	Base          `bson:",inline"`
	OfferIntentID string       `bson:"offer_intent_id" json:"offer_intent_id"`
	BuyerID       string       `bson:"buyer_id" json:"buyer_id"`
	AgentID       *string      `bson:"agent_id,omitempty" json:"agent_id,omitempty"`
	FileName      string       `bson:"file_name" json:"file_name"`
	FileSize      int64        `bson:"file_size" json:"file_size"`
	FileType      string       `bson:"file_type" json:"file_type"`
	StoragePath   string       `bson:"storage_path" json:"storage_path"`
	PreviewPath   string       `bson:"preview_path,omitempty" json:"preview_path,omitempty"`
	DocumentType  DocumentType `bson:"document_type" json:"document_type"`
	UploadStatus  UploadStatus `bson:"upload_status" json:"upload_status"`
	IsRequired    bool         `bson:"is_required" json:"is_required"`
	IsSensitive   bool         `bson:"is_sensitive" json:"is_sensitive"`
	Description   string       `bson:"description,omitempty" json:"description,omitempty"`
	CreatedAt     time.Time    `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time    `bson:"updated_at" json:"updated_at"`
}

// DocumentCounts aggregates the documents of one offer intent. Required never exceeds Total.
type DocumentCounts struct {
	Total    int `bson:"total" json:"total"`
	Required int `bson:"required" json:"required"`
}

// CountDocuments tallies docs.
func CountDocuments(docs []OfferDocument) DocumentCounts {
	counts := DocumentCounts{Total: len(docs)}
	for _, d := range docs {
		if d.IsRequired {
			counts.Required++
		}
	}
	return counts
}

// DocumentRequirement reports catalogue coverage for one document type.
type DocumentRequirement struct {
	DocumentCatalogueEntry
	Uploaded  int  `json:"uploaded"`
	Satisfied bool `json:"satisfied"`
}

// Requirements walks the catalogue against docs. Optional types are always satisfied.
func Requirements(docs []OfferDocument) []DocumentRequirement {
	uploaded := make(map[DocumentType]int)
	for _, d := range docs {
		if d.UploadStatus == UploadRejected {
			continue
		}
		uploaded[d.DocumentType]++
	}
	out := make([]DocumentRequirement, 0, len(DocumentCatalogue))
	for _, e := range DocumentCatalogue {
		n := uploaded[e.Type]
		out = append(out, DocumentRequirement{
			DocumentCatalogueEntry: e,
			Uploaded:               n,
			Satisfied:              !e.Required || n > 0,
		})
	}
	return out
}
