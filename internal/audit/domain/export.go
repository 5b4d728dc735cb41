package domain

import (
	"context"
	"time"
)

// ExportFormat is the output format of an audit export.
type ExportFormat string

const (
	ExportFormatCSV  ExportFormat = "csv"
	ExportFormatJSON ExportFormat = "json"
)

type ExportRequest struct {
	InstitutionID *string
	StartDate     time.Time
	EndDate       time.Time
	Format        ExportFormat
	Actions       []string
}

// ExportResult carries the rendered export and a sha256 of its bytes.
type ExportResult struct {
	Data     []byte
	Checksum string
	Format   ExportFormat
	Count    int
}

type ExportService interface {
	Export(ctx context.Context, req ExportRequest) (*ExportResult, error)
}
