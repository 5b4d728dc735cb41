package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	invoicedomain "github.com/railzwaylabs/interviewledger/internal/invoice/domain"
)

func renderRequest(c *gin.Context) invoicedomain.RenderRequest {
	return invoicedomain.RenderRequest{
		PurchaseID: c.Param("purchase_id"),
		Payer: invoicedomain.Party{
			Name:  strings.TrimSpace(c.Query("payer_name")),
			Email: strings.TrimSpace(c.Query("payer_email")),
		},
	}
}

func (s *Server) GetInvoice(c *gin.Context) {
	doc, err := s.invoiceSvc.Render(c.Request.Context(), renderRequest(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, doc)
}

func (s *Server) GetInvoiceText(c *gin.Context) {
	doc, err := s.invoiceSvc.Render(c.Request.Context(), renderRequest(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.String(http.StatusOK, doc.Text())
}

// @Summary      Download Invoice PDF
// @Tags         invoices
// @Produce      application/pdf
// @Param        purchase_id  path  string  true  "Purchase ID"
// @Success      200
// @Router       /invoices/{purchase_id}/pdf [get]
func (s *Server) GetInvoicePDF(c *gin.Context) {
	out, err := s.invoiceSvc.RenderPDF(c.Request.Context(), renderRequest(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename=\""+out.FileName+"\"")
	if out.ArchiveKey != "" {
		c.Header("X-Invoice-Archive-Key", out.ArchiveKey)
	}
	c.Data(http.StatusOK, "application/pdf", out.PDF)
}
