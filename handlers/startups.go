package handlers

import (
	"fmt"
	"net/http"
	"path"

	"github.com/gin-gonic/gin"

	"startup-hub/apperrors"
	"startup-hub/constants"
	"startup-hub/investors"
	"startup-hub/models"
	"startup-hub/startups"
)

// RegisterStartupRoutes wires tags, startups and their sub-resources. Likes
// live under the startup path but belong to the investor service.
func RegisterStartupRoutes(rg *gin.RouterGroup, svc *startups.Service, inv *investors.Service) {
	rg.GET("/tags", func(c *gin.Context) { listTags(c, svc) })
	rg.GET("/tags/:id", func(c *gin.Context) { getTag(c, svc) })

	rg.GET("/startups", func(c *gin.Context) { listStartups(c, svc) })
	rg.POST("/startups", func(c *gin.Context) { createStartup(c, svc) })
	rg.GET("/startups/:id", func(c *gin.Context) { getStartup(c, svc) })
	rg.PUT("/startups/:id", func(c *gin.Context) { updateStartup(c, svc) })
	rg.PATCH("/startups/:id", func(c *gin.Context) { updateStartup(c, svc) })
	rg.DELETE("/startups/:id", func(c *gin.Context) { deleteStartup(c, svc) })

	rg.POST("/startups/:id/generate_description", func(c *gin.Context) { generateDescription(c, svc) })
	rg.POST("/startups/:id/like", func(c *gin.Context) { likeStartup(c, inv) })
	rg.GET("/startups/:id/report", func(c *gin.Context) { getStartupReport(c, svc) })
	rg.PUT("/startups/:id/report", func(c *gin.Context) { putStartupReport(c, svc) })
	rg.POST("/startups/:id/documents", func(c *gin.Context) { uploadDocument(c, svc) })
	rg.GET("/startups/:id/documents/:docID", func(c *gin.Context) { downloadDocument(c, svc) })
}

func listTags(c *gin.Context, svc *startups.Service) {
	tags, err := svc.Tags(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tags)
}

func getTag(c *gin.Context, svc *startups.Service) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	tag, err := svc.Tag(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tag)
}

func listStartups(c *gin.Context, svc *startups.Service) {
	items, err := svc.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func createStartup(c *gin.Context, svc *startups.Service) {
	var dto models.StartupDTO
	if !bindJSON(c, &dto) {
		return
	}
	detail, err := svc.Create(c.Request.Context(), currentUser(c).ID, dto)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, detail)
}

func getStartup(c *gin.Context, svc *startups.Service) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	detail, err := svc.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func updateStartup(c *gin.Context, svc *startups.Service) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var dto models.StartupDTO
	if !bindJSON(c, &dto) {
		return
	}
	detail, err := svc.Update(c.Request.Context(), currentUser(c).ID, id, dto)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func deleteStartup(c *gin.Context, svc *startups.Service) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := svc.Delete(c.Request.Context(), currentUser(c).ID, id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func generateDescription(c *gin.Context, svc *startups.Service) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var body struct {
		PromptData string `json:"prompt_data"`
	}
	if !bindOptionalJSON(c, &body) {
		return
	}
	job, err := svc.RequestDescription(c.Request.Context(), currentUser(c).ID, id, body.PromptData)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": constants.MsgDescriptionStarted, "job_id": job.ID})
}

func likeStartup(c *gin.Context, svc *investors.Service) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := svc.Like(c.Request.Context(), currentUser(c).ID, id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": constants.MsgStartupLiked})
}

func getStartupReport(c *gin.Context, svc *startups.Service) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	report, err := svc.Report(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func putStartupReport(c *gin.Context, svc *startups.Service) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var dto models.ReportDTO
	if !bindJSON(c, &dto) {
		return
	}
	report, err := svc.PutReport(c.Request.Context(), currentUser(c).ID, id, dto)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func uploadDocument(c *gin.Context, svc *startups.Service) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	fh, err := c.FormFile("document")
	if err != nil {
		respondError(c, apperrors.Validation("document file is required"))
		return
	}
	f, err := fh.Open()
	if err != nil {
		respondError(c, fmt.Errorf("open upload: %w", err))
		return
	}
	defer f.Close()

	doc, err := svc.AddDocument(c.Request.Context(), currentUser(c).ID, id, fh.Filename, c.PostForm("description"), f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, doc)
}

func downloadDocument(c *gin.Context, svc *startups.Service) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	docID, ok := idParam(c, "docID")
	if !ok {
		return
	}
	doc, f, err := svc.OpenDocument(c.Request.Context(), id, docID)
	if err != nil {
		respondError(c, err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		respondError(c, fmt.Errorf("stat document: %w", err))
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", path.Base(doc.Document)))
	http.ServeContent(c.Writer, c.Request, path.Base(doc.Document), info.ModTime(), f)
}
