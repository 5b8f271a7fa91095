package api

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes mounts every API route on the echo instance. The auth
// endpoints and the health check are public; everything else requires a
// bearer token.
func (s *Server) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", s.handleHealth)

	api := e.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.POST("/register", s.handleRegister)
	authGroup.POST("/login", s.handleLogin)
	authGroup.GET("/me", s.handleMe, s.Auth.Middleware())

	protected := api.Group("", s.Auth.Middleware())

	protected.GET("/workflows", s.handleListWorkflows)
	protected.POST("/workflows", s.handleCreateWorkflow)
	protected.GET("/workflows/:id", s.handleGetWorkflow)
	protected.PUT("/workflows/:id", s.handleUpdateWorkflow)
	protected.DELETE("/workflows/:id", s.handleDeleteWorkflow)

	protected.POST("/executions", s.handleStartExecution)
	protected.GET("/executions", s.handleListExecutions)
	protected.GET("/executions/:id", s.handleGetExecution)
	protected.DELETE("/executions/:id", s.handleDeleteExecution)
	protected.POST("/executions/:id/start", s.handleExecutionStart)
	protected.POST("/executions/:id/pause", s.handleExecutionPause)
	protected.POST("/executions/:id/resume", s.handleExecutionResume)
	protected.POST("/executions/:id/complete", s.handleExecutionComplete)
	protected.POST("/executions/:id/cancel", s.handleExecutionCancel)

	protected.PUT("/executions/:id/records/:recordId", s.handleUpdateStep)
	protected.POST("/executions/:id/records/:recordId/start", s.handleStartStep)
	protected.POST("/executions/:id/records/:recordId/complete", s.handleCompleteStep)
	protected.POST("/executions/:id/records/:recordId/skip", s.handleSkipStep)
	protected.POST("/executions/:id/records/:recordId/fail", s.handleFailStep)

	protected.POST("/records/:recordId/attachments", s.handleUploadToRecord)
	protected.GET("/records/:recordId/attachments", s.handleListRecordAttachments)
	protected.GET("/attachments/:id", s.handleGetAttachment)
	protected.GET("/attachments/:id/download", s.handleDownloadAttachment)
	protected.DELETE("/attachments/:id", s.handleDeleteAttachment)
	protected.POST("/attachments/batch-delete", s.handleBatchDeleteAttachments)

	protected.POST("/reviews", s.handleCreateReview)
	protected.GET("/reviews", s.handleListReviews)
	protected.GET("/reviews/:id", s.handleGetReview)
	protected.PUT("/reviews/:id", s.handleUpdateReview)
	protected.DELETE("/reviews/:id", s.handleDeleteReview)
	protected.POST("/reviews/:id/attachments", s.handleUploadToReview)

	protected.GET("/history/executions", s.handleHistory)
	protected.GET("/history/stats", s.handleHistoryStats)
	protected.GET("/history/trends", s.handleHistoryTrends)
	protected.GET("/history/export", s.handleHistoryExport)
}
