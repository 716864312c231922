package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"hireLens/internal/api/middleware"
	"hireLens/internal/database"
	"hireLens/internal/scoring"
	"hireLens/internal/storage"
)

// JobHandler 负责职位的增删查与评分权重配置。
type JobHandler struct {
	db           *gorm.DB
	store        ObjectStore
	uploadPrefix string
}

// NewJobHandler 构造 JobHandler。
func NewJobHandler(db *gorm.DB, store ObjectStore, uploadPrefix string) *JobHandler {
	return &JobHandler{
		db:           db,
		store:        store,
		uploadPrefix: uploadPrefix,
	}
}

var errInvalidID = errors.New("invalid id")

type createJobRequest struct {
	Title              string             `json:"title" binding:"required"`
	Description        string             `json:"description"`
	Location           string             `json:"location"`
	ExperienceRequired string             `json:"experience_required"`
	Criteria           map[string]float64 `json:"criteria"`
}

type updateCriteriaRequest struct {
	Criteria map[string]float64 `json:"criteria"`
}

type jobResponse struct {
	ID                 uint               `json:"id"`
	Title              string             `json:"title"`
	Description        string             `json:"description"`
	Location           string             `json:"location"`
	ExperienceRequired string             `json:"experience_required"`
	Criteria           map[string]float64 `json:"criteria"`
	CreatedAt          time.Time          `json:"created_at"`
}

// CreateJob 创建职位；若带有权重配置则在入库前归一化。
func (h *JobHandler) CreateJob(c *gin.Context) {
	var req createJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	job := database.Job{
		Title:              req.Title,
		Description:        req.Description,
		Location:           req.Location,
		ExperienceRequired: req.ExperienceRequired,
	}

	if len(req.Criteria) > 0 {
		normalized, err := scoring.Normalize(req.Criteria)
		if err != nil {
			BadRequest(c, "invalid criteria weights")
			return
		}
		encoded, err := encodeCriteria(normalized)
		if err != nil {
			Internal(c, "failed to encode criteria")
			return
		}
		job.Criteria = encoded
	}

	if err := h.db.WithContext(c.Request.Context()).Create(&job).Error; err != nil {
		Internal(c, "failed to create job")
		return
	}

	c.JSON(http.StatusCreated, newJobResponse(job))
}

// ListJobs 列出全部职位，最新的排在前面。
func (h *JobHandler) ListJobs(c *gin.Context) {
	var jobs []database.Job
	if err := h.db.WithContext(c.Request.Context()).
		Order("created_at DESC").
		Find(&jobs).Error; err != nil {
		Internal(c, "failed to list jobs")
		return
	}

	items := make([]jobResponse, 0, len(jobs))
	for _, job := range jobs {
		items = append(items, newJobResponse(job))
	}

	c.JSON(http.StatusOK, items)
}

// GetCriteria 返回职位的权重配置；未配置时返回空映射。
func (h *JobHandler) GetCriteria(c *gin.Context) {
	job, err := h.getJob(c)
	if err != nil {
		respondJobLookupError(c, err)
		return
	}

	criteria, err := decodeCriteria(job.Criteria)
	if err != nil {
		Internal(c, "failed to decode criteria")
		return
	}

	c.JSON(http.StatusOK, gin.H{"criteria": criteria})
}

// UpdateCriteria 整体替换职位的权重配置。
func (h *JobHandler) UpdateCriteria(c *gin.Context) {
	var req updateCriteriaRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Criteria == nil {
		BadRequest(c, "criteria must be an object of named weights")
		return
	}

	job, err := h.getJob(c)
	if err != nil {
		respondJobLookupError(c, err)
		return
	}

	normalized, err := scoring.Normalize(req.Criteria)
	if err != nil {
		BadRequest(c, "invalid criteria weights")
		return
	}

	encoded, err := encodeCriteria(normalized)
	if err != nil {
		Internal(c, "failed to encode criteria")
		return
	}

	ctx := c.Request.Context()
	if err := h.db.WithContext(ctx).Model(job).Update("criteria", encoded).Error; err != nil {
		Internal(c, "failed to update criteria")
		return
	}

	if err := h.db.WithContext(ctx).First(job, job.ID).Error; err != nil {
		Internal(c, "failed to reload job")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "criteria updated",
		"job":     newJobResponse(*job),
	})
}

// DeleteJob 删除职位并级联删除其全部候选人（单事务）。
// 简历文件在事务提交后做尽力而为的清理。
func (h *JobHandler) DeleteJob(c *gin.Context) {
	jobID, err := parseIDParam(c, "jobId")
	if err != nil {
		BadRequest(c, "invalid job id")
		return
	}

	ctx := c.Request.Context()
	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("job_id = ?", jobID).Delete(&database.Candidate{}).Error; err != nil {
			return fmt.Errorf("delete candidates: %w", err)
		}

		result := tx.Delete(&database.Job{}, jobID)
		if result.Error != nil {
			return fmt.Errorf("delete job: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "job not found")
			return
		}
		Internal(c, "failed to delete job")
		return
	}

	prefix := storage.ResumeObjectKey(h.uploadPrefix, jobID, "")
	if err := h.store.DeletePrefix(ctx, prefix); err != nil {
		middleware.LoggerFromContext(c).Error("cleanup job resumes failed",
			slog.Uint64("job_id", uint64(jobID)),
			slog.Any("error", err),
		)
	}

	c.JSON(http.StatusOK, gin.H{"message": "job deleted"})
}

func (h *JobHandler) getJob(c *gin.Context) (*database.Job, error) {
	jobID, err := parseIDParam(c, "jobId")
	if err != nil {
		return nil, errInvalidID
	}

	var job database.Job
	if err := h.db.WithContext(c.Request.Context()).First(&job, jobID).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

func respondJobLookupError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errInvalidID):
		BadRequest(c, "invalid job id")
	case errors.Is(err, gorm.ErrRecordNotFound):
		NotFound(c, "job not found")
	default:
		Internal(c, "failed to query job")
	}
}

func parseIDParam(c *gin.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, errInvalidID
	}
	return uint(id), nil
}

func newJobResponse(job database.Job) jobResponse {
	criteria, err := decodeCriteria(job.Criteria)
	if err != nil {
		criteria = map[string]float64{}
	}
	return jobResponse{
		ID:                 job.ID,
		Title:              job.Title,
		Description:        job.Description,
		Location:           job.Location,
		ExperienceRequired: job.ExperienceRequired,
		Criteria:           criteria,
		CreatedAt:          job.CreatedAt,
	}
}

func encodeCriteria(criteria map[string]float64) (datatypes.JSON, error) {
	data, err := json.Marshal(criteria)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(data), nil
}

func decodeCriteria(raw datatypes.JSON) (map[string]float64, error) {
	if len(raw) == 0 {
		return map[string]float64{}, nil
	}
	var criteria map[string]float64
	if err := json.Unmarshal(raw, &criteria); err != nil {
		return nil, err
	}
	if criteria == nil {
		criteria = map[string]float64{}
	}
	return criteria, nil
}
