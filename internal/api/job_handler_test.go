package api

import (
	"math"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"hireLens/internal/database"
)

func newJobRouter(db *gorm.DB, store ObjectStore) (*gin.Engine, *JobHandler) {
	gin.SetMode(gin.TestMode)
	h := NewJobHandler(db, store, "resumes")
	r := gin.New()
	r.POST("/jobs", h.CreateJob)
	r.GET("/jobs", h.ListJobs)
	r.DELETE("/jobs/:jobId", h.DeleteJob)
	r.GET("/jobs/:jobId/criteria", h.GetCriteria)
	r.PUT("/jobs/:jobId/criteria", h.UpdateCriteria)
	return r, h
}

func TestCreateJob_NormalizesCriteria(t *testing.T) {
	db := newTestDB(t)
	r, _ := newJobRouter(db, newFakeStorage())

	w := doJSON(t, r, http.MethodPost, "/jobs", gin.H{
		"title":               "Backend Engineer",
		"description":         "Go services",
		"location":            "Remote",
		"experience_required": "3",
		"criteria":            gin.H{"experience": 3.0, "skills": 2.0},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d body=%s", w.Code, w.Body.String())
	}

	var resp struct {
		ID       uint               `json:"id"`
		Criteria map[string]float64 `json:"criteria"`
	}
	decodeBody(t, w, &resp)

	var sum float64
	for _, v := range resp.Criteria {
		sum += v
	}
	if math.Abs(sum-1.0) > 1e-4 {
		t.Errorf("stored criteria sum to %v, want 1.0", sum)
	}
	if resp.Criteria["experience"] != 0.6 || resp.Criteria["skills"] != 0.4 {
		t.Errorf("unexpected normalized criteria: %v", resp.Criteria)
	}
}

func TestCreateJob_RejectsZeroWeights(t *testing.T) {
	db := newTestDB(t)
	r, _ := newJobRouter(db, newFakeStorage())

	w := doJSON(t, r, http.MethodPost, "/jobs", gin.H{
		"title":    "Janitor of NaNs",
		"criteria": gin.H{"experience": 0.0, "skills": 0.0},
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d body=%s", w.Code, w.Body.String())
	}

	var count int64
	db.Model(&database.Job{}).Count(&count)
	if count != 0 {
		t.Errorf("job created despite invalid weights")
	}
}

func TestListJobs_NewestFirst(t *testing.T) {
	db := newTestDB(t)
	r, _ := newJobRouter(db, newFakeStorage())

	base := time.Now().Add(-time.Hour)
	for i, title := range []string{"old", "middle", "new"} {
		job := database.Job{Title: title}
		job.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := db.Create(&job).Error; err != nil {
			t.Fatalf("seed job: %v", err)
		}
	}

	w := doJSON(t, r, http.MethodGet, "/jobs", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", w.Code)
	}

	var resp []struct {
		Title string `json:"title"`
	}
	decodeBody(t, w, &resp)
	if len(resp) != 3 || resp[0].Title != "new" || resp[2].Title != "old" {
		t.Errorf("unexpected order: %+v", resp)
	}
}

func TestCriteria_GetAndUpdate(t *testing.T) {
	db := newTestDB(t)
	r, _ := newJobRouter(db, newFakeStorage())

	job := database.Job{Title: "Data Engineer"}
	if err := db.Create(&job).Error; err != nil {
		t.Fatalf("seed job: %v", err)
	}

	// unset criteria reads back as empty map
	w := doJSON(t, r, http.MethodGet, "/jobs/1/criteria", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", w.Code)
	}
	var getResp struct {
		Criteria map[string]float64 `json:"criteria"`
	}
	decodeBody(t, w, &getResp)
	if getResp.Criteria == nil || len(getResp.Criteria) != 0 {
		t.Errorf("expected empty criteria map, got %v", getResp.Criteria)
	}

	// update replaces the entire mapping, normalized
	w = doJSON(t, r, http.MethodPut, "/jobs/1/criteria", gin.H{
		"criteria": gin.H{"experience": 1.0, "skills": 1.0, "education": 2.0},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodGet, "/jobs/1/criteria", nil)
	decodeBody(t, w, &getResp)
	if getResp.Criteria["education"] != 0.5 || getResp.Criteria["experience"] != 0.25 {
		t.Errorf("unexpected stored criteria: %v", getResp.Criteria)
	}

	// missing criteria body
	w = doJSON(t, r, http.MethodPut, "/jobs/1/criteria", gin.H{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing criteria, got %d", w.Code)
	}

	// unknown job
	w = doJSON(t, r, http.MethodPut, "/jobs/999/criteria", gin.H{"criteria": gin.H{"skills": 1.0}})
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown job, got %d", w.Code)
	}
	w = doJSON(t, r, http.MethodGet, "/jobs/999/criteria", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown job, got %d", w.Code)
	}
}

func TestDeleteJob_CascadesToCandidates(t *testing.T) {
	db := newTestDB(t)
	store := newFakeStorage()
	r, _ := newJobRouter(db, store)

	job := database.Job{Title: "SRE"}
	if err := db.Create(&job).Error; err != nil {
		t.Fatalf("seed job: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := db.Create(&database.Candidate{JobID: job.ID, Filename: "cv.pdf"}).Error; err != nil {
			t.Fatalf("seed candidate: %v", err)
		}
	}

	w := doJSON(t, r, http.MethodDelete, "/jobs/1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}

	var candidateCount int64
	db.Model(&database.Candidate{}).Where("job_id = ?", job.ID).Count(&candidateCount)
	if candidateCount != 0 {
		t.Errorf("expected 0 candidates after cascade, got %d", candidateCount)
	}

	if len(store.deletedPrefixes) != 1 {
		t.Errorf("expected resume prefix cleanup, got %v", store.deletedPrefixes)
	}

	// deleting again reports not found
	w = doJSON(t, r, http.MethodDelete, "/jobs/1", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 on second delete, got %d", w.Code)
	}
}
