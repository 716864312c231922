package api

import (
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"time"

	"github.com/dutchcoders/go-clamd"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"

	"hireLens/internal/api/middleware"
	"hireLens/internal/config"
	"hireLens/internal/database"
	"hireLens/internal/storage"
	"hireLens/internal/tasks"
)

// UploadHandler 负责批量上传简历并触发异步打分。
type UploadHandler struct {
	db       *gorm.DB
	enqueuer TaskEnqueuer
	store    ObjectStore
	logger   *slog.Logger
	cfg      config.UploadConfig
}

// NewUploadHandler 构造 UploadHandler。
func NewUploadHandler(db *gorm.DB, enqueuer TaskEnqueuer, store ObjectStore, logger *slog.Logger, cfg config.UploadConfig) *UploadHandler {
	return &UploadHandler{
		db:       db,
		enqueuer: enqueuer,
		store:    store,
		logger:   logger,
		cfg:      cfg,
	}
}

// UploadResumes 接收一批简历并为每个文件创建候选人记录。
//
// 两阶段流程：先在单个事务里写入全部占位行（任一失败则整批回滚），
// 提交后再逐个入队派发任务。派发失败只记录日志，不影响已提交的行 ——
// 对应候选人停留在 processing 状态，由重新评估通道兜底。
func (h *UploadHandler) UploadResumes(c *gin.Context) {
	jobID, err := parseIDParam(c, "jobId")
	if err != nil {
		BadRequest(c, "invalid job id")
		return
	}

	ctx := c.Request.Context()
	var job database.Job
	if err := h.db.WithContext(ctx).First(&job, jobID).Error; err != nil {
		respondJobLookupError(c, err)
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		BadRequest(c, "invalid multipart form")
		return
	}
	files := form.File["files"]

	if len(files) == 0 {
		BadRequest(c, "no files")
		return
	}
	if len(files) > h.cfg.MaxFiles {
		BadRequest(c, fmt.Sprintf("too many files: %d (limit %d)", len(files), h.cfg.MaxFiles))
		return
	}
	for _, file := range files {
		if file.Size > h.cfg.MaxFileBytes() {
			BadRequest(c, fmt.Sprintf("file %q exceeds %dMB limit", file.Filename, h.cfg.MaxFileSizeMB))
			return
		}
	}

	log := middleware.LoggerFromContext(c).With(slog.Uint64("job_id", uint64(jobID)))

	if h.cfg.ClamdAddr != "" {
		for _, file := range files {
			if err := h.scanFile(file); err != nil {
				log.Warn("resume rejected by virus scan",
					slog.String("filename", file.Filename),
					slog.Any("error", err),
				)
				BadRequest(c, fmt.Sprintf("file %q rejected by virus scan", file.Filename))
				return
			}
		}
	}

	// 存储阶段：对象先落盘，失败时清理掉本批已写入的对象。
	uploadedKeys := make([]string, 0, len(files))
	cleanup := func() {
		for _, key := range uploadedKeys {
			if err := h.store.DeleteObject(ctx, key); err != nil {
				log.Error("cleanup uploaded object failed", slog.String("object_key", key), slog.Any("error", err))
			}
		}
	}

	candidates := make([]database.Candidate, 0, len(files))
	for _, file := range files {
		storedName := fmt.Sprintf("%d-%s", time.Now().UnixMilli(), filepath.Base(file.Filename))
		objectKey := storage.ResumeObjectKey(h.cfg.Prefix, jobID, storedName)

		reader, err := file.Open()
		if err != nil {
			cleanup()
			Internal(c, "failed to open uploaded file")
			return
		}

		contentType := file.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		_, uploadErr := h.store.UploadFile(ctx, objectKey, reader, file.Size, contentType)
		reader.Close()
		if uploadErr != nil {
			log.Error("store resume failed", slog.String("filename", file.Filename), slog.Any("error", uploadErr))
			cleanup()
			Internal(c, "failed to store resume")
			return
		}

		uploadedKeys = append(uploadedKeys, objectKey)
		candidates = append(candidates, database.Candidate{
			JobID:    jobID,
			Filename: storedName,
		})
	}

	// 事务阶段：占位行全部写入或一个都不留。
	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range candidates {
			if err := tx.Create(&candidates[i]).Error; err != nil {
				return fmt.Errorf("insert candidate for %q: %w", candidates[i].Filename, err)
			}
		}
		return nil
	})
	if err != nil {
		log.Error("insert candidate batch failed", slog.Any("error", err))
		cleanup()
		Internal(c, "failed to create candidates")
		return
	}

	// 派发阶段：严格在事务提交之后。逐个入队，单个失败不影响其余。
	correlationID := middleware.GetCorrelationID(c)
	for i := range candidates {
		task, err := tasks.NewResumeProcessTask(candidates[i].ID, correlationID)
		if err == nil {
			_, err = h.enqueuer.Enqueue(task, asynq.MaxRetry(5))
		}
		if err != nil {
			log.Error("enqueue resume processing failed",
				slog.Uint64("candidate_id", uint64(candidates[i].ID)),
				slog.Any("error", err),
			)
		}
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "uploaded": len(files)})
}

func (h *UploadHandler) scanFile(file *multipart.FileHeader) error {
	reader, err := file.Open()
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}
	defer reader.Close()

	clamdClient := clamd.NewClamd(h.cfg.ClamdAddr)
	abortChan := make(chan bool)
	defer close(abortChan)

	scanChan, err := clamdClient.ScanStream(reader, abortChan)
	if err != nil {
		return fmt.Errorf("scan stream: %w", err)
	}

	for result := range scanChan {
		if result.Status != clamd.RES_OK {
			return fmt.Errorf("malicious file detected: %s", result.Description)
		}
	}
	return nil
}
