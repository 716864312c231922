package worker

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"gorm.io/gorm"

	"hireLens/internal/database"
	"hireLens/internal/parser"
	"hireLens/internal/storage"
	"hireLens/internal/tasks"
)

// objectReader 是任务处理器需要的存储子集，*storage.Client 满足。
type objectReader interface {
	ReadObject(ctx context.Context, objectKey string) ([]byte, error)
}

// processDispatcher 抽象解析服务调用，*parser.Client 满足。
type processDispatcher interface {
	Process(ctx context.Context, req parser.ProcessRequest) error
}

// ResumeTaskHandler 消费简历处理任务：取回文件并派发给外部解析服务。
type ResumeTaskHandler struct {
	db           *gorm.DB
	store        objectReader
	parserClient processDispatcher
	logger       *slog.Logger
	uploadPrefix string
}

// NewResumeTaskHandler 创建任务处理器。
func NewResumeTaskHandler(
	db *gorm.DB,
	store objectReader,
	parserClient processDispatcher,
	logger *slog.Logger,
	uploadPrefix string,
) *ResumeTaskHandler {
	return &ResumeTaskHandler{
		db:           db,
		store:        store,
		parserClient: parserClient,
		logger:       logger,
		uploadPrefix: uploadPrefix,
	}
}

// ProcessTask 实现 asynq.Handler。
// 返回错误会触发队列重试；候选人或文件已不存在时直接跳过，不做无谓重试。
func (h *ResumeTaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload tasks.ResumeProcessPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		h.logger.Error("unmarshal task payload failed", slog.Any("error", err))
		return fmt.Errorf("unmarshal payload: %w", asynq.SkipRetry)
	}

	log := h.logger.With(
		slog.String("correlation_id", payload.CorrelationID),
		slog.Uint64("candidate_id", uint64(payload.CandidateID)),
	)

	var candidate database.Candidate
	if err := h.db.WithContext(ctx).First(&candidate, payload.CandidateID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warn("candidate no longer exists, skipping dispatch")
			return nil
		}
		log.Error("query candidate failed", slog.Any("error", err))
		return err
	}

	if candidate.Filename == "" {
		log.Warn("candidate has no stored resume, skipping dispatch")
		return nil
	}

	objectKey := storage.ResumeObjectKey(h.uploadPrefix, candidate.JobID, candidate.Filename)
	fileContent, err := h.store.ReadObject(ctx, objectKey)
	if err != nil {
		if storage.IsNoSuchKey(err) {
			log.Error("resume object missing, aborting retries", slog.String("object_key", objectKey))
			return fmt.Errorf("resume object %q missing: %w", objectKey, asynq.SkipRetry)
		}
		log.Error("read resume object failed", slog.Any("error", err))
		return err
	}

	req := parser.ProcessRequest{
		JobID:       candidate.JobID,
		CandidateID: candidate.ID,
		Filename:    candidate.Filename,
		FileData:    base64.StdEncoding.EncodeToString(fileContent),
	}
	if err := h.parserClient.Process(ctx, req); err != nil {
		log.Error("dispatch to parser service failed", slog.Any("error", err))
		return err
	}

	log.Info("resume dispatched to parser service",
		slog.Uint64("job_id", uint64(candidate.JobID)),
		slog.String("filename", candidate.Filename),
	)
	return nil
}
