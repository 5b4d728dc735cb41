package server

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	ledgerdomain "github.com/railzwaylabs/interviewledger/internal/ledger/domain"
)

const maxImportBody = 1 << 20

// @Summary      Create Purchase
// @Tags         purchases
// @Accept       json
// @Produce      json
// @Param        request body ledgerdomain.CreatePurchaseRequest true "Create Purchase Request"
// @Success      201  {object}  DataResponse
// @Router       /purchases [post]
func (s *Server) CreatePurchase(c *gin.Context) {
	var req ledgerdomain.CreatePurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	p, err := s.ledgerSvc.CreatePurchase(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondCreated(c, p)
}

// @Summary      Import Purchase
// @Description  Ingests one upstream payment record. Records that do not add up are stored as anomalies.
// @Tags         purchases
// @Accept       json
// @Produce      json
// @Success      200  {object}  DataResponse
// @Success      201  {object}  DataResponse
// @Router       /purchases/import [post]
func (s *Server) ImportPurchase(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxImportBody))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	res, err := s.ledgerSvc.ImportPurchase(c.Request.Context(), raw)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if res.Duplicate {
		respondData(c, res)
		return
	}
	respondCreated(c, res)
}

func (s *Server) GetPurchase(c *gin.Context) {
	p, err := s.ledgerSvc.GetPurchase(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, p)
}

func (s *Server) CompletePurchase(c *gin.Context) {
	p, err := s.ledgerSvc.CompletePurchase(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, p)
}

func (s *Server) CancelPurchase(c *gin.Context) {
	p, err := s.ledgerSvc.CancelPurchase(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, p)
}

func (s *Server) GetBalance(c *gin.Context) {
	b, err := s.ledgerSvc.GetBalance(c.Request.Context(), c.Param("institution_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, b)
}

type consumeBody struct {
	Count int64 `json:"count"`
}

// @Summary      Consume Sessions
// @Tags         sessions
// @Accept       json
// @Produce      json
// @Param        institution_id  path  string  true  "Institution ID"
// @Success      200  {object}  DataResponse
// @Failure      422  {object}  ErrorResponse
// @Router       /institutions/{institution_id}/sessions/consume [post]
func (s *Server) ConsumeSessions(c *gin.Context) {
	var body consumeBody
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	b, err := s.ledgerSvc.ConsumeSession(c.Request.Context(), ledgerdomain.ConsumeRequest{
		InstitutionID: c.Param("institution_id"),
		Count:         body.Count,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, b)
}

func (s *Server) ListBillingHistory(c *gin.Context) {
	history, err := s.ledgerSvc.ListBillingHistory(c.Request.Context(), c.Param("institution_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": history, "warnings": history.Warnings})
}
