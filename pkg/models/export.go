package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Export formats
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// Export statuses
const (
	ExportPending    = "pending"
	ExportProcessing = "processing"
	ExportReady      = "ready"
	ExportFailed     = "failed"
)

// ExportableResources lists the collections an export may target
var ExportableResources = []string{
	"contacts", "companies", "opportunities", "activities", "expenses", "leads",
}

// Export tracks a generated file download. Files expire and are swept by
// the daily cleanup job.
type Export struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID    primitive.ObjectID `json:"user_id" bson:"user_id"`
	Resource  string             `json:"resource" bson:"resource"`
	Format    string             `json:"format" bson:"format"`
	Status    string             `json:"status" bson:"status"`
	RowCount  int                `json:"row_count" bson:"row_count"`
	FilePath  string             `json:"-" bson:"file_path,omitempty"`
	FileURL   string             `json:"file_url,omitempty" bson:"file_url,omitempty"`
	Error     string             `json:"error,omitempty" bson:"error,omitempty"`
	ExpiresAt time.Time          `json:"expires_at" bson:"expires_at"`
	CreatedAt time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time          `json:"updated_at" bson:"updated_at"`
}

// CreateExportRequest represents a create export request
type CreateExportRequest struct {
	Resource string `json:"resource" validate:"required,oneof=contacts companies opportunities activities expenses leads"`
	Format   string `json:"format,omitempty" validate:"omitempty,oneof=csv xlsx"`
}
