package models

import "time"

const (
	ImportStatusParsed     = "parsed"
	ImportStatusProcessing = "processing"
	ImportStatusDone       = "done"
	ImportStatusFailed     = "failed"
)

// ImportRecord tracks one uploaded file through the bulk importer.
type ImportRecord struct {
	ID        string    `bson:"-" json:"id"`
	TenantID  string    `bson:"tenant_id" json:"tenant_id"`
	UserID    string    `bson:"user_id,omitempty" json:"user_id,omitempty"`
	Type      string    `bson:"type" json:"type"`
	Status    string    `bson:"status" json:"status"`
	Count     int       `bson:"count" json:"count"`
	Errors    string    `bson:"errors,omitempty" json:"errors,omitempty"`
	Path      string    `bson:"path,omitempty" json:"path,omitempty"`
	Bucket    string    `bson:"bucket,omitempty" json:"bucket,omitempty"`
	Key       string    `bson:"key,omitempty" json:"key,omitempty"`
	SizeBytes int64     `bson:"size_bytes,omitempty" json:"size_bytes,omitempty"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// ImportItem is the outcome of a single imported row.
type ImportItem struct {
	ImportRecordID string    `bson:"import_record_id" json:"import_record_id"`
	ModelType      string    `bson:"model_type" json:"model_type"`
	ModelID        string    `bson:"model_id" json:"model_id"`
	Payload        string    `bson:"payload" json:"payload"`
	Status         string    `bson:"status" json:"status"`
	Errors         string    `bson:"errors" json:"errors"`
	CreatedAt      time.Time `bson:"created_at" json:"created_at"`
}
