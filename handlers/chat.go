package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"startup-hub/chat"
	"startup-hub/models"
)

// RegisterChatRoutes wires chat session endpoints.
func RegisterChatRoutes(rg *gin.RouterGroup, mgr *chat.Manager) {
	rg.GET("/chat/sessions", func(c *gin.Context) { listSessions(c, mgr) })
	rg.POST("/chat/sessions", func(c *gin.Context) { createSession(c, mgr) })
	rg.GET("/chat/sessions/:id", func(c *gin.Context) { getSession(c, mgr) })
	rg.POST("/chat/sessions/:id/send-message", func(c *gin.Context) { sendMessage(c, mgr) })
}

func listSessions(c *gin.Context, mgr *chat.Manager) {
	sessions, err := mgr.Sessions(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessions)
}

func createSession(c *gin.Context, mgr *chat.Manager) {
	var dto models.ChatSessionDTO
	if !bindOptionalJSON(c, &dto) {
		return
	}
	session, err := mgr.CreateSession(c.Request.Context(), currentUser(c).ID, dto.Topic, dto.Prompt)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

func getSession(c *gin.Context, mgr *chat.Manager) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	session, err := mgr.Session(c.Request.Context(), currentUser(c).ID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func sendMessage(c *gin.Context, mgr *chat.Manager) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var in models.MessageInput
	if !bindOptionalJSON(c, &in) {
		return
	}
	msg, err := mgr.Send(c.Request.Context(), currentUser(c).ID, id, in.Prompt)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}
