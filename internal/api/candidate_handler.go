package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"

	"hireLens/internal/api/middleware"
	"hireLens/internal/database"
	"hireLens/internal/storage"
	"hireLens/internal/tasks"
)

// CandidateHandler 负责候选人查询、手工录入与重新评估。
type CandidateHandler struct {
	db           *gorm.DB
	enqueuer     TaskEnqueuer
	store        ObjectStore
	uploadPrefix string
}

// NewCandidateHandler 构造 CandidateHandler。
func NewCandidateHandler(db *gorm.DB, enqueuer TaskEnqueuer, store ObjectStore, uploadPrefix string) *CandidateHandler {
	return &CandidateHandler{
		db:           db,
		enqueuer:     enqueuer,
		store:        store,
		uploadPrefix: uploadPrefix,
	}
}

type candidateResponse struct {
	ID            uint            `json:"id"`
	JobID         uint            `json:"job_id"`
	Name          *string         `json:"name"`
	Email         *string         `json:"email"`
	Filename      string          `json:"filename"`
	Score         *float64        `json:"score"`
	Subscores     json.RawMessage `json:"subscores"`
	Justification json.RawMessage `json:"justification"`
	CreatedAt     time.Time       `json:"created_at"`
	JobTitle      *string         `json:"job_title,omitempty"`
}

type createCandidateRequest struct {
	Name     *string  `json:"name"`
	JobID    uint     `json:"job_id" binding:"required"`
	Score    *float64 `json:"score"`
	Filename string   `json:"filename"`
}

// ListCandidates 返回全部候选人并附带职位名称，最新的排在前面。
func (h *CandidateHandler) ListCandidates(c *gin.Context) {
	type candidateWithJob struct {
		database.Candidate
		JobTitle *string
	}

	var rows []candidateWithJob
	if err := h.db.WithContext(c.Request.Context()).
		Model(&database.Candidate{}).
		Select("candidates.*, jobs.title AS job_title").
		Joins("LEFT JOIN jobs ON jobs.id = candidates.job_id").
		Order("candidates.created_at DESC").
		Scan(&rows).Error; err != nil {
		Internal(c, "failed to list candidates")
		return
	}

	items := make([]candidateResponse, 0, len(rows))
	for _, row := range rows {
		item := newCandidateResponse(row.Candidate)
		item.JobTitle = row.JobTitle
		items = append(items, item)
	}

	c.JSON(http.StatusOK, items)
}

// ListJobCandidates 返回某职位的候选人：分数降序，未打分的排在最后，
// 再按创建时间降序。
func (h *CandidateHandler) ListJobCandidates(c *gin.Context) {
	jobID, err := parseIDParam(c, "jobId")
	if err != nil {
		BadRequest(c, "invalid job id")
		return
	}

	var candidates []database.Candidate
	if err := h.db.WithContext(c.Request.Context()).
		Where("job_id = ?", jobID).
		Order("score DESC NULLS LAST, created_at DESC").
		Find(&candidates).Error; err != nil {
		Internal(c, "failed to list job candidates")
		return
	}

	items := make([]candidateResponse, 0, len(candidates))
	for _, candidate := range candidates {
		items = append(items, newCandidateResponse(candidate))
	}

	c.JSON(http.StatusOK, items)
}

// CreateCandidate 手工录入一条候选人记录。
func (h *CandidateHandler) CreateCandidate(c *gin.Context) {
	var req createCandidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	candidate := database.Candidate{
		JobID:    req.JobID,
		Name:     req.Name,
		Score:    req.Score,
		Filename: req.Filename,
	}
	if err := h.db.WithContext(c.Request.Context()).Create(&candidate).Error; err != nil {
		Internal(c, "failed to create candidate")
		return
	}

	c.JSON(http.StatusCreated, newCandidateResponse(candidate))
}

// Reevaluate 将已有候选人的简历重新派发给解析服务。
// 这是卡在 processing 状态的候选人的恢复通道，可重复调用。
func (h *CandidateHandler) Reevaluate(c *gin.Context) {
	candidate, err := h.getCandidate(c)
	if err != nil {
		respondCandidateLookupError(c, err)
		return
	}

	task, err := tasks.NewResumeProcessTask(candidate.ID, middleware.GetCorrelationID(c))
	if err != nil {
		Internal(c, "failed to create task")
		return
	}

	if _, err := h.enqueuer.Enqueue(task, asynq.MaxRetry(5)); err != nil {
		Internal(c, "failed to enqueue re-evaluation")
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// GetResumeLink 返回候选人简历的限时下载链接。
func (h *CandidateHandler) GetResumeLink(c *gin.Context) {
	candidate, err := h.getCandidate(c)
	if err != nil {
		respondCandidateLookupError(c, err)
		return
	}

	if candidate.Filename == "" {
		Conflict(c, "candidate has no stored resume")
		return
	}

	objectKey := storage.ResumeObjectKey(h.uploadPrefix, candidate.JobID, candidate.Filename)
	signedURL, err := h.store.GeneratePresignedURL(c.Request.Context(), objectKey, 5*time.Minute)
	if err != nil {
		Internal(c, "failed to generate download link")
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": signedURL})
}

func (h *CandidateHandler) getCandidate(c *gin.Context) (*database.Candidate, error) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return nil, errInvalidID
	}

	var candidate database.Candidate
	if err := h.db.WithContext(c.Request.Context()).First(&candidate, id).Error; err != nil {
		return nil, err
	}
	return &candidate, nil
}

func respondCandidateLookupError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errInvalidID):
		BadRequest(c, "invalid candidate id")
	case errors.Is(err, gorm.ErrRecordNotFound):
		NotFound(c, "candidate not found")
	default:
		Internal(c, "failed to query candidate")
	}
}

func newCandidateResponse(candidate database.Candidate) candidateResponse {
	return candidateResponse{
		ID:            candidate.ID,
		JobID:         candidate.JobID,
		Name:          candidate.Name,
		Email:         candidate.Email,
		Filename:      candidate.Filename,
		Score:         candidate.Score,
		Subscores:     json.RawMessage(candidate.Subscores),
		Justification: json.RawMessage(candidate.Justification),
		CreatedAt:     candidate.CreatedAt,
	}
}
