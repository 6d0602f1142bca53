// Package router wires the HTTP routes to their handlers.
package router

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/weiwangfds/photosync/internal/handler"
	"github.com/weiwangfds/photosync/internal/middleware"
	"github.com/weiwangfds/photosync/internal/service/account"
	"github.com/weiwangfds/photosync/internal/service/session"
)

// Handlers collects the handler set mounted by Setup.
type Handlers struct {
	Account   *handler.AccountHandler
	Admin     *handler.AdminHandler
	File      *handler.FileHandler
	Changes   *handler.ChangesHandler
	Thumbnail *handler.ThumbnailHandler
	Mirror    *handler.MirrorHandler
}

// Setup builds the gin engine with middleware and every route group.
func Setup(h Handlers, sessionSvc session.Service, accountSvc account.Service) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Token"},
		ExposeHeaders: []string{"Content-Length", "Content-Disposition"},
	}))
	r.Use(middleware.Auth(sessionSvc, accountSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")

	accounts := api.Group("/accounts")
	{
		accounts.POST("/login", h.Account.Login)
		accounts.POST("/logout", h.Account.Logout)
		accounts.PUT("/create", h.Account.Create)
		accounts.GET("/test", h.Account.Test)

		authed := accounts.Group("", middleware.RequireLogin())
		{
			authed.GET("/get-user/:username", h.Account.GetUser)
			authed.GET("/get-users", h.Account.GetUsers)
		}
	}

	admin := api.Group("/admin", middleware.RequireLogin(), middleware.RequireAdmin())
	{
		admin.GET("/test", h.Admin.Test)
		admin.PATCH("/switch-index", h.Admin.SwitchIndex)
	}

	files := api.Group("/files", middleware.RequireLogin())
	{
		files.POST("/upload", h.File.Upload)
		files.GET("/page", h.File.Page)
		files.GET("/:id", h.File.Get)
		files.GET("/:id/download", h.File.Download)
		files.DELETE("/:id", h.File.Delete)
		files.PATCH("/:id/owner", h.File.SetOwner)

		adminOnly := files.Group("", middleware.RequireAdmin())
		{
			adminOnly.POST("/reindex", h.File.Reindex)
			adminOnly.POST("/upgrade", h.File.Upgrade)
		}
	}

	changes := api.Group("/changes", middleware.RequireLogin())
	{
		changes.GET("/since", h.Changes.Since)
		changes.GET("/since-id", h.Changes.SinceID)
	}

	timg := api.Group("/timg", middleware.RequireLogin())
	{
		timg.GET("/get/:id/:size", h.Thumbnail.Get)
		timg.POST("/get-multiple/:size", h.Thumbnail.GetMultiple)
	}

	mirror := api.Group("/mirror", middleware.RequireLogin(), middleware.RequireAdmin())
	{
		mirror.POST("/configs", h.Mirror.CreateConfig)
		mirror.GET("/configs", h.Mirror.ListConfigs)
		mirror.PUT("/configs/:id", h.Mirror.UpdateConfig)
		mirror.DELETE("/configs/:id", h.Mirror.DeleteConfig)
		mirror.PATCH("/configs/:id/activate", h.Mirror.ActivateConfig)
		mirror.POST("/configs/:id/test", h.Mirror.TestConfig)
		mirror.POST("/sync/:id", h.Mirror.Sync)
		mirror.GET("/logs", h.Mirror.Logs)
	}

	return r
}
