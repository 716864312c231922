package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"hireLens/internal/database"
	"hireLens/internal/scoring"
)

// ResultHandler 接收解析服务的打分回写。
type ResultHandler struct {
	db *gorm.DB
}

// NewResultHandler 构造 ResultHandler。
func NewResultHandler(db *gorm.DB) *ResultHandler {
	return &ResultHandler{db: db}
}

type resultJustification struct {
	Overall       string             `json:"overall"`
	Contributions map[string]float64 `json:"contributions"`
}

type submitResultRequest struct {
	Name          *string                     `json:"name"`
	Email         *string                     `json:"email"`
	RawText       string                      `json:"raw_text"`
	Score         *float64                    `json:"score" binding:"required"`
	Subscores     map[string]scoring.Subscore `json:"subscores" binding:"required"`
	Justification resultJustification         `json:"justification"`
}

// SubmitResult 将一次打分结果落库。
// 分数、分项与总评在同一条 UPDATE 中写入，读侧不会看到只写了一半的状态。
func (h *ResultHandler) SubmitResult(c *gin.Context) {
	var req submitResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	id, err := parseIDParam(c, "id")
	if err != nil {
		BadRequest(c, "invalid candidate id")
		return
	}

	ctx := c.Request.Context()
	var candidate database.Candidate
	if err := h.db.WithContext(ctx).First(&candidate, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "candidate not found")
			return
		}
		Internal(c, "failed to query candidate")
		return
	}

	var job database.Job
	if err := h.db.WithContext(ctx).First(&job, candidate.JobID).Error; err != nil {
		Internal(c, "failed to query job")
		return
	}

	criteria, err := decodeCriteria(job.Criteria)
	if err != nil {
		Internal(c, "failed to decode criteria")
		return
	}

	if err := scoring.ValidateSubscores(req.Subscores, criteria); err != nil {
		BadRequest(c, err.Error())
		return
	}

	subscoresJSON, err := json.Marshal(req.Subscores)
	if err != nil {
		Internal(c, "failed to encode subscores")
		return
	}
	justificationJSON, err := json.Marshal(req.Justification)
	if err != nil {
		Internal(c, "failed to encode justification")
		return
	}

	updates := map[string]any{
		"name":          req.Name,
		"email":         req.Email,
		"raw_text":      req.RawText,
		"score":         *req.Score,
		"subscores":     subscoresJSON,
		"justification": justificationJSON,
		"processed_at":  time.Now(),
	}
	if err := h.db.WithContext(ctx).Model(&candidate).Updates(updates).Error; err != nil {
		Internal(c, "failed to store result")
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}
