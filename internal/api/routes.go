package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"hireLens/internal/api/middleware"
	"hireLens/internal/config"
	"hireLens/internal/storage"
)

// RegisterRoutes 注册 API 路由。
func RegisterRoutes(
	router *gin.Engine,
	db *gorm.DB,
	enqueuer TaskEnqueuer,
	storageClient *storage.Client,
	logger *slog.Logger,
	cfg *config.Config,
) {
	jobHandler := NewJobHandler(db, storageClient, cfg.Upload.Prefix)
	candidateHandler := NewCandidateHandler(db, enqueuer, storageClient, cfg.Upload.Prefix)
	uploadHandler := NewUploadHandler(db, enqueuer, storageClient, logger, cfg.Upload)
	resultHandler := NewResultHandler(db)

	jobs := router.Group("/jobs")
	{
		jobs.POST("", jobHandler.CreateJob)
		jobs.GET("", jobHandler.ListJobs)
		jobs.DELETE("/:jobId", jobHandler.DeleteJob)
		jobs.GET("/:jobId/criteria", jobHandler.GetCriteria)
		jobs.PUT("/:jobId/criteria", jobHandler.UpdateCriteria)
		jobs.GET("/:jobId/candidates", candidateHandler.ListJobCandidates)
		jobs.POST("/:jobId/upload", uploadHandler.UploadResumes)
	}

	candidates := router.Group("/candidates")
	{
		candidates.GET("", candidateHandler.ListCandidates)
		candidates.POST("", candidateHandler.CreateCandidate)
		candidates.POST("/:id/reeval", candidateHandler.Reevaluate)
		candidates.GET("/:id/resume-link", candidateHandler.GetResumeLink)
	}

	// 解析服务的回写通道，只接受携带内部密钥的调用。
	internal := router.Group("/internal")
	internal.Use(middleware.InternalSecretMiddleware(cfg.API.InternalSecret))
	{
		internal.POST("/candidates/:id/result", resultHandler.SubmitResult)
	}
}
