package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/railzwaylabs/interviewledger/internal/audit/domain"
)

const maxExportWindow = 90 * 24 * time.Hour

// ListAuditLogs handles GET /api/v1/audit/logs
func (s *Server) ListAuditLogs(c *gin.Context) {
	req := auditdomain.ListRequest{Action: strings.TrimSpace(c.Query("action"))}
	if id := strings.TrimSpace(c.Query("institution_id")); id != "" {
		req.InstitutionID = &id
	}
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		req.Limit = limit
	}

	logs, err := s.auditSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondList(c, logs, nil)
}

// ExportAuditLogs handles GET /api/v1/audit/export
func (s *Server) ExportAuditLogs(c *gin.Context) {
	// Parse query parameters
	startDateStr := strings.TrimSpace(c.Query("start_date"))
	endDateStr := strings.TrimSpace(c.Query("end_date"))
	formatStr := strings.ToLower(strings.TrimSpace(c.DefaultQuery("format", "csv")))
	institutionID := strings.TrimSpace(c.Query("institution_id"))
	actionsStr := strings.TrimSpace(c.Query("actions"))

	// Validate required parameters
	if startDateStr == "" || endDateStr == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	// Parse dates
	startDate, err := time.Parse("2006-01-02", startDateStr)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	endDate, err := time.Parse("2006-01-02", endDateStr)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	// End date should be exclusive (end of day)
	endDate = endDate.Add(24 * time.Hour)

	// Validate date range
	if endDate.Before(startDate) {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if endDate.Sub(startDate) > maxExportWindow {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	// Parse format
	var format auditdomain.ExportFormat
	switch formatStr {
	case "csv":
		format = auditdomain.ExportFormatCSV
	case "json":
		format = auditdomain.ExportFormatJSON
	default:
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	var institution *string
	if institutionID != "" {
		institution = &institutionID
	}

	// Parse actions filter (optional)
	var actions []string
	if actionsStr != "" {
		actions = strings.Split(actionsStr, ",")
		for i := range actions {
			actions[i] = strings.TrimSpace(actions[i])
		}
	}

	result, err := s.auditExportSvc.Export(c.Request.Context(), auditdomain.ExportRequest{
		InstitutionID: institution,
		StartDate:     startDate,
		EndDate:       endDate,
		Format:        format,
		Actions:       actions,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	// Set response headers
	c.Header("X-Audit-Export-Checksum", result.Checksum)
	c.Header("X-Audit-Export-Count", strconv.Itoa(result.Count))

	// Set content type and filename
	var contentType, filename string
	switch result.Format {
	case auditdomain.ExportFormatCSV:
		contentType = "text/csv"
		filename = "audit_export_" + startDateStr + "_" + endDateStr + ".csv"
	case auditdomain.ExportFormatJSON:
		contentType = "application/json"
		filename = "audit_export_" + startDateStr + "_" + endDateStr + ".json"
	}

	c.Header("Content-Disposition", "attachment; filename=\""+filename+"\"")
	c.Data(http.StatusOK, contentType, result.Data)
}
