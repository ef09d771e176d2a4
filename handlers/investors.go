package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"startup-hub/investors"
	"startup-hub/models"
)

// RegisterInvestorRoutes wires the investor profile and recommendations.
func RegisterInvestorRoutes(rg *gin.RouterGroup, svc *investors.Service) {
	rg.GET("/investor/profile/me", func(c *gin.Context) { getProfile(c, svc) })
	rg.PUT("/investor/profile/me", func(c *gin.Context) { updateProfile(c, svc) })
	rg.PATCH("/investor/profile/me", func(c *gin.Context) { updateProfile(c, svc) })
	rg.GET("/investor/recommendations", func(c *gin.Context) { recommendations(c, svc) })
}

func getProfile(c *gin.Context, svc *investors.Service) {
	view, err := svc.Profile(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func updateProfile(c *gin.Context, svc *investors.Service) {
	var dto models.InvestorProfileDTO
	if !bindJSON(c, &dto) {
		return
	}
	view, err := svc.UpdateProfile(c.Request.Context(), currentUser(c).ID, dto)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func recommendations(c *gin.Context, svc *investors.Service) {
	items, err := svc.Recommend(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}
