package router

import (
	"media_transcode_service/internal/transcode/api/handlers"
	"media_transcode_service/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
)

// RegisterRoutes 註冊轉碼服務的路由
// @title Media Transcode Service API
// @version 1.0
// @description API documentation for Media Transcode Service
// @host localhost:8084
// @BasePath /
func RegisterRoutes(app *fiber.App, transcodeHandler *handlers.TranscodeHandler) {
	app.Get("/swagger/*", swagger.HandlerDefault)
	app.Get("/", handlers.ConnectCheck)
	app.Post("/debug", handlers.DebugLogFlag)

	api := app.Group("/api/v1", middlewares.JWTMiddleware())
	api.Post("/upload", transcodeHandler.Submit)
	api.Get("/progress/:jobId", transcodeHandler.GetProgress)
	api.Get("/files", transcodeHandler.ListFiles)
	api.Get("/upload-url", transcodeHandler.UploadURL)
	api.Get("/download-url", transcodeHandler.DownloadURL)

	admin := api.Group("/admin", middlewares.AdminOnly())
	admin.Get("/files", transcodeHandler.AdminListFiles)
	admin.Post("/delete-file", transcodeHandler.AdminDeleteFile)
}
