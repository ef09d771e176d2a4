package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"startup-hub/models"
	"startup-hub/reports"
)

// RegisterReportRoutes wires analysis report endpoints.
func RegisterReportRoutes(rg *gin.RouterGroup, svc *reports.Service) {
	rg.GET("/reports", func(c *gin.Context) { listReports(c, svc) })
	rg.POST("/reports", func(c *gin.Context) { createReport(c, svc) })
	rg.GET("/reports/:id", func(c *gin.Context) { getReport(c, svc) })
	rg.GET("/reports/:id/download", func(c *gin.Context) { downloadReport(c, svc) })
	rg.GET("/reports/:id/preview", func(c *gin.Context) { previewReport(c, svc) })
}

func listReports(c *gin.Context, svc *reports.Service) {
	items, err := svc.List(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func createReport(c *gin.Context, svc *reports.Service) {
	var dto models.AnalysisReportDTO
	if !bindJSON(c, &dto) {
		return
	}
	user := currentUser(c)
	report, err := svc.Submit(c.Request.Context(), user.ID, dto.InitialQueryInput)
	if err != nil {
		respondError(c, err)
		return
	}
	report.User = user
	c.JSON(http.StatusCreated, report.Detail())
}

func getReport(c *gin.Context, svc *reports.Service) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	report, err := svc.Get(c.Request.Context(), currentUser(c).ID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report.Detail())
}

func downloadReport(c *gin.Context, svc *reports.Service) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	name, pdf, err := svc.Download(c.Request.Context(), currentUser(c).ID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

func previewReport(c *gin.Context, svc *reports.Service) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	html, err := svc.Preview(c.Request.Context(), currentUser(c).ID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}
