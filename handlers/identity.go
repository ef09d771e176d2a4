package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"startup-hub/constants"
	"startup-hub/models"
)

// Identity headers set by the upstream auth gateway.
const (
	HeaderUserID   = "X-User-Id"
	HeaderUserName = "X-User-Name"
	HeaderUserType = "X-User-Type"

	userKey = "user"
)

// Identity resolves the caller from the gateway headers. The user row is
// created on first sight; requests without a numeric X-User-Id get 401.
func Identity(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(HeaderUserID)
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || id == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": constants.ErrUnauthorized})
			return
		}

		name := c.GetHeader(HeaderUserName)
		if name == "" {
			name = "user-" + raw
		}
		var user models.User
		err = db.WithContext(c.Request.Context()).
			Where(models.User{ID: uint(id)}).
			Attrs(models.User{Username: name, UserType: models.ParseUserType(c.GetHeader(HeaderUserType))}).
			FirstOrCreate(&user).Error
		if err != nil {
			respondError(c, err)
			c.Abort()
			return
		}
		c.Set(userKey, user)
		c.Next()
	}
}

func currentUser(c *gin.Context) models.User {
	u, _ := c.Get(userKey)
	user, _ := u.(models.User)
	return user
}

// RegisterUserRoutes exposes the resolved caller.
func RegisterUserRoutes(rg *gin.RouterGroup) {
	rg.GET("/users/me", func(c *gin.Context) { c.JSON(http.StatusOK, currentUser(c)) })
}
