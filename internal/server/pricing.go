package server

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// @Summary      Get Global Pricing
// @Tags         pricing
// @Produce      json
// @Success      200  {object}  DataResponse
// @Router       /pricing/global [get]
func (s *Server) GetGlobalPricing(c *gin.Context) {
	cfg, err := s.pricingSvc.GetGlobal(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, cfg)
}

// @Summary      Resolve Pricing
// @Description  Effective rates and derived numbers for an institution, or global when institution_id is empty
// @Tags         pricing
// @Produce      json
// @Param        institution_id  query  string  false  "Institution ID"
// @Success      200  {object}  DataResponse
// @Router       /pricing/resolve [get]
func (s *Server) ResolvePricing(c *gin.Context) {
	res, err := s.resolver.Resolve(c.Request.Context(), strings.TrimSpace(c.Query("institution_id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, res)
}

func (s *Server) ListOverrides(c *gin.Context) {
	items, err := s.pricingSvc.ListOverrides(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondList(c, items, nil)
}

func (s *Server) GetOverride(c *gin.Context) {
	o, err := s.pricingSvc.GetOverride(c.Request.Context(), c.Param("institution_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, o)
}

// @Summary      Enable Pricing Override
// @Description  Enables the institution's override, creating it from the global rates if needed
// @Tags         pricing
// @Produce      json
// @Param        institution_id  path  string  true  "Institution ID"
// @Success      200  {object}  DataResponse
// @Router       /pricing/overrides/{institution_id}/enable [post]
func (s *Server) EnableOverride(c *gin.Context) {
	o, err := s.pricingSvc.EnableOverride(c.Request.Context(), c.Param("institution_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, o)
}

func (s *Server) DisableOverride(c *gin.Context) {
	o, err := s.pricingSvc.DisableOverride(c.Request.Context(), c.Param("institution_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, o)
}
