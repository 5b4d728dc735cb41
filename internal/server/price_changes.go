package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/railzwaylabs/interviewledger/internal/clock"
	pricechangedomain "github.com/railzwaylabs/interviewledger/internal/pricechange/domain"
)

// @Summary      Schedule Price Change
// @Description  Schedules a rate change, or applies it at once when effective_date is omitted
// @Tags         price-changes
// @Accept       json
// @Produce      json
// @Param        request body pricechangedomain.ScheduleRequest true "Schedule Request"
// @Success      200  {object}  DataResponse
// @Success      201  {object}  DataResponse
// @Router       /price-changes [post]
func (s *Server) SchedulePriceChange(c *gin.Context) {
	var req pricechangedomain.ScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	req.InstitutionID = strings.TrimSpace(req.InstitutionID)

	change, err := s.priceChangeSvc.Schedule(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if change == nil {
		c.JSON(http.StatusOK, gin.H{"data": gin.H{"applied": true}})
		return
	}
	respondCreated(c, change)
}

func (s *Server) ListPriceChanges(c *gin.Context) {
	var req pricechangedomain.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	items, err := s.priceChangeSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondList(c, items, nil)
}

func (s *Server) GetPriceChange(c *gin.Context) {
	change, err := s.priceChangeSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, change)
}

func (s *Server) CancelPriceChange(c *gin.Context) {
	change, err := s.priceChangeSvc.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, change)
}

// @Summary      Run Scheduler Tick
// @Description  Applies every due change. "at" (RFC3339) evaluates the tick at a simulated instant.
// @Tags         price-changes
// @Produce      json
// @Param        at  query  string  false  "Evaluation instant"
// @Success      200  {object}  DataResponse
// @Router       /price-changes/tick [post]
func (s *Server) TickPriceChanges(c *gin.Context) {
	ctx := c.Request.Context()
	if raw := strings.TrimSpace(c.Query("at")); raw != "" {
		at, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		ctx = clock.WithSimulatedTime(ctx, at)
	}

	result, err := s.priceChangeSvc.Tick(ctx, s.clock.Now(ctx))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, result)
}
