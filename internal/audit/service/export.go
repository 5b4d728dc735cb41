package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	auditdomain "github.com/railzwaylabs/interviewledger/internal/audit/domain"
	"gorm.io/gorm"
)

type ExportService struct {
	db *gorm.DB
}

func NewExportService(db *gorm.DB) auditdomain.ExportService {
	return &ExportService{db: db}
}

func (s *ExportService) Export(ctx context.Context, req auditdomain.ExportRequest) (*auditdomain.ExportResult, error) {
	if !req.EndDate.IsZero() && !req.StartDate.IsZero() && !req.EndDate.After(req.StartDate) {
		return nil, fmt.Errorf("export window is empty: %s..%s", req.StartDate.Format(time.RFC3339), req.EndDate.Format(time.RFC3339))
	}

	query := s.db.WithContext(ctx).Model(&auditdomain.AuditLog{})
	if req.InstitutionID != nil {
		query = query.Where("institution_id = ?", *req.InstitutionID)
	}
	if len(req.Actions) > 0 {
		query = query.Where("action IN ?", req.Actions)
	}

	var rows []auditdomain.AuditLog
	if err := query.Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}

	// Window filtering happens here so the comparison does not depend on how
	// the driver stores timestamps.
	logs := rows[:0]
	for _, log := range rows {
		if !req.StartDate.IsZero() && log.CreatedAt.Before(req.StartDate) {
			continue
		}
		if !req.EndDate.IsZero() && !log.CreatedAt.Before(req.EndDate) {
			continue
		}
		logs = append(logs, log)
	}

	var data []byte
	var err error

	switch req.Format {
	case auditdomain.ExportFormatCSV:
		data, err = s.formatCSV(logs)
	case auditdomain.ExportFormatJSON:
		data, err = s.formatJSON(logs)
	default:
		return nil, fmt.Errorf("unsupported export format: %s", req.Format)
	}
	if err != nil {
		return nil, err
	}

	return &auditdomain.ExportResult{
		Data:     data,
		Checksum: calculateChecksum(data),
		Format:   req.Format,
		Count:    len(logs),
	}, nil
}

func (s *ExportService) formatCSV(logs []auditdomain.AuditLog) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{
		"id",
		"timestamp",
		"institution_id",
		"actor_type",
		"actor_id",
		"action",
		"target_type",
		"target_id",
		"metadata",
	}
	if err := w.Write(header); err != nil {
		return nil, err
	}

	for _, log := range logs {
		metadataJSON, err := json.Marshal(log.Metadata)
		if err != nil {
			return nil, err
		}

		row := []string{
			log.ID.String(),
			log.CreatedAt.UTC().Format(time.RFC3339),
			formatStringPtr(log.InstitutionID),
			log.ActorType,
			formatStringPtr(log.ActorID),
			log.Action,
			log.TargetType,
			formatStringPtr(log.TargetID),
			string(metadataJSON),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *ExportService) formatJSON(logs []auditdomain.AuditLog) ([]byte, error) {
	type exportRecord struct {
		ID            string         `json:"id"`
		Timestamp     string         `json:"timestamp"`
		InstitutionID string         `json:"institution_id,omitempty"`
		ActorType     string         `json:"actor_type"`
		ActorID       string         `json:"actor_id,omitempty"`
		Action        string         `json:"action"`
		TargetType    string         `json:"target_type"`
		TargetID      string         `json:"target_id,omitempty"`
		Metadata      map[string]any `json:"metadata,omitempty"`
	}

	records := make([]exportRecord, 0, len(logs))
	for _, log := range logs {
		records = append(records, exportRecord{
			ID:            log.ID.String(),
			Timestamp:     log.CreatedAt.UTC().Format(time.RFC3339),
			InstitutionID: formatStringPtr(log.InstitutionID),
			ActorType:     log.ActorType,
			ActorID:       formatStringPtr(log.ActorID),
			Action:        log.Action,
			TargetType:    log.TargetType,
			TargetID:      formatStringPtr(log.TargetID),
			Metadata:      log.Metadata,
		})
	}

	return json.MarshalIndent(records, "", "  ")
}

func formatStringPtr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func calculateChecksum(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
