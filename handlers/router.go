package handlers

import (
	"slices"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"startup-hub/chat"
	"startup-hub/investors"
	"startup-hub/logging"
	"startup-hub/metrics"
	"startup-hub/reports"
	"startup-hub/startups"
)

// Deps are the services behind the HTTP surface.
type Deps struct {
	DB             *gorm.DB
	Logger         zerolog.Logger
	Metrics        *metrics.Recorder
	AllowedOrigins []string

	Reports   *reports.Service
	Chat      *chat.Manager
	Investors *investors.Service
	Startups  *startups.Service
}

// NewRouter builds the gin engine with every route under /api.
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), logging.Middleware(d.Logger), corsMiddleware(d.AllowedOrigins))

	RegisterHealthRoutes(r, d.DB, d.Metrics)

	api := r.Group("/api", Identity(d.DB))
	RegisterUserRoutes(api)
	RegisterStartupRoutes(api, d.Startups, d.Investors)
	RegisterInvestorRoutes(api, d.Investors)
	RegisterChatRoutes(api, d.Chat)
	RegisterReportRoutes(api, d.Reports)
	return r
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.DefaultConfig()
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	cfg.AllowHeaders = append(cfg.AllowHeaders, HeaderUserID, HeaderUserName, HeaderUserType, logging.RequestIDHeader)
	cfg.ExposeHeaders = []string{"Content-Disposition", logging.RequestIDHeader}
	return cors.New(cfg)
}
