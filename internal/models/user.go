package models

import "time"

// User represents a cashier or back-office operator account.
type User struct {
	BaseModel
	Username     string `gorm:"uniqueIndex" json:"username"`
	DisplayName  string `json:"display_name"`
	PasswordHash string `json:"-"`
	Role         string `json:"role"`
}

// SubmissionRecord keeps a local trace of each document pushed to the ERP.
type SubmissionRecord struct {
	BaseModel
	Username       string     `gorm:"index" json:"username"`
	DocumentType   string     `json:"document_type"`
	ERPDocumentID  string     `gorm:"column:erp_document_id" json:"erp_document_id"`
	ClientID       string     `json:"client_id"`
	LineCount      int        `json:"line_count"`
	GrandTotal     float64    `json:"grand_total"`
	PriceListCode  string     `json:"price_list_code"`
	SubmittedAt    time.Time  `json:"submitted_at"`
	NotifiedAt     *time.Time `json:"notified_at"`
	SyncError      string     `json:"sync_error"`
	EditedDocument string     `json:"edited_document"`
}
