package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"hireLens/internal/database"
)

func newCandidateRouter(db *gorm.DB, enqueuer TaskEnqueuer, store ObjectStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewCandidateHandler(db, enqueuer, store, "resumes")
	r := gin.New()
	r.GET("/candidates", h.ListCandidates)
	r.POST("/candidates", h.CreateCandidate)
	r.POST("/candidates/:id/reeval", h.Reevaluate)
	r.GET("/candidates/:id/resume-link", h.GetResumeLink)
	r.GET("/jobs/:jobId/candidates", h.ListJobCandidates)
	return r
}

func seedCandidate(t *testing.T, db *gorm.DB, jobID uint, score *float64, createdAt time.Time) database.Candidate {
	t.Helper()
	candidate := database.Candidate{JobID: jobID, Filename: "cv.pdf", Score: score}
	candidate.CreatedAt = createdAt
	if err := db.Create(&candidate).Error; err != nil {
		t.Fatalf("seed candidate: %v", err)
	}
	return candidate
}

func floatPtr(v float64) *float64 { return &v }

func TestListJobCandidates_ScoreDescendingNullsLast(t *testing.T) {
	db := newTestDB(t)
	r := newCandidateRouter(db, &fakeEnqueuer{}, newFakeStorage())

	job := database.Job{Title: "Analyst"}
	if err := db.Create(&job).Error; err != nil {
		t.Fatalf("seed job: %v", err)
	}

	base := time.Now().Add(-time.Hour)
	seedCandidate(t, db, job.ID, floatPtr(0.8), base)                     // id 1
	earlierNull := seedCandidate(t, db, job.ID, nil, base.Add(time.Minute)) // id 2
	seedCandidate(t, db, job.ID, floatPtr(0.95), base.Add(2*time.Minute))   // id 3
	laterNull := seedCandidate(t, db, job.ID, nil, base.Add(3*time.Minute)) // id 4

	w := doJSON(t, r, http.MethodGet, "/jobs/1/candidates", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", w.Code)
	}

	var resp []struct {
		ID    uint     `json:"id"`
		Score *float64 `json:"score"`
	}
	decodeBody(t, w, &resp)
	if len(resp) != 4 {
		t.Fatalf("expected 4 candidates, got %d", len(resp))
	}

	if resp[0].Score == nil || *resp[0].Score != 0.95 {
		t.Errorf("position 0: want score 0.95, got %+v", resp[0])
	}
	if resp[1].Score == nil || *resp[1].Score != 0.8 {
		t.Errorf("position 1: want score 0.8, got %+v", resp[1])
	}
	// null scores sort last, newest null first
	if resp[2].Score != nil || resp[2].ID != laterNull.ID {
		t.Errorf("position 2: want newer unscored candidate %d, got %+v", laterNull.ID, resp[2])
	}
	if resp[3].Score != nil || resp[3].ID != earlierNull.ID {
		t.Errorf("position 3: want older unscored candidate %d, got %+v", earlierNull.ID, resp[3])
	}
}

func TestListCandidates_IncludesJobTitleNewestFirst(t *testing.T) {
	db := newTestDB(t)
	r := newCandidateRouter(db, &fakeEnqueuer{}, newFakeStorage())

	jobA := database.Job{Title: "Frontend"}
	jobB := database.Job{Title: "Backend"}
	if err := db.Create(&jobA).Error; err != nil {
		t.Fatalf("seed job: %v", err)
	}
	if err := db.Create(&jobB).Error; err != nil {
		t.Fatalf("seed job: %v", err)
	}

	base := time.Now().Add(-time.Hour)
	seedCandidate(t, db, jobA.ID, nil, base)
	seedCandidate(t, db, jobB.ID, floatPtr(7.2), base.Add(time.Minute))

	w := doJSON(t, r, http.MethodGet, "/candidates", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}

	var resp []struct {
		JobID    uint    `json:"job_id"`
		JobTitle *string `json:"job_title"`
	}
	decodeBody(t, w, &resp)
	if len(resp) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(resp))
	}
	if resp[0].JobTitle == nil || *resp[0].JobTitle != "Backend" {
		t.Errorf("newest candidate should come first with its job title, got %+v", resp[0])
	}
	if resp[1].JobTitle == nil || *resp[1].JobTitle != "Frontend" {
		t.Errorf("unexpected second row: %+v", resp[1])
	}
}

func TestCreateCandidate_Manual(t *testing.T) {
	db := newTestDB(t)
	r := newCandidateRouter(db, &fakeEnqueuer{}, newFakeStorage())

	name := "Dana"
	w := doJSON(t, r, http.MethodPost, "/candidates", gin.H{
		"name":     name,
		"job_id":   5,
		"score":    6.5,
		"filename": "dana.pdf",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d body=%s", w.Code, w.Body.String())
	}

	var candidate database.Candidate
	if err := db.First(&candidate).Error; err != nil {
		t.Fatalf("load candidate: %v", err)
	}
	if candidate.JobID != 5 || candidate.Name == nil || *candidate.Name != name {
		t.Errorf("unexpected row: %+v", candidate)
	}
}

func TestReevaluate_EnqueuesTask(t *testing.T) {
	db := newTestDB(t)
	enqueuer := &fakeEnqueuer{}
	r := newCandidateRouter(db, enqueuer, newFakeStorage())

	candidate := seedCandidate(t, db, 1, nil, time.Now())

	w := doJSON(t, r, http.MethodPost, "/candidates/1/reeval", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}

	payloads := enqueuer.payloads(t)
	if len(payloads) != 1 || payloads[0].CandidateID != candidate.ID {
		t.Errorf("unexpected enqueued payloads: %+v", payloads)
	}
}

func TestReevaluate_UnknownCandidate(t *testing.T) {
	db := newTestDB(t)
	enqueuer := &fakeEnqueuer{}
	r := newCandidateRouter(db, enqueuer, newFakeStorage())

	w := doJSON(t, r, http.MethodPost, "/candidates/99/reeval", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", w.Code)
	}
	if len(enqueuer.enqueued) != 0 {
		t.Errorf("no dispatch may happen for an unknown candidate")
	}
}

func TestGetResumeLink(t *testing.T) {
	db := newTestDB(t)
	r := newCandidateRouter(db, &fakeEnqueuer{}, newFakeStorage())

	withFile := seedCandidate(t, db, 3, nil, time.Now())
	noFile := database.Candidate{JobID: 3}
	if err := db.Create(&noFile).Error; err != nil {
		t.Fatalf("seed candidate: %v", err)
	}

	w := doJSON(t, r, http.MethodGet, "/candidates/1/resume-link", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}
	var resp struct {
		URL string `json:"url"`
	}
	decodeBody(t, w, &resp)
	if resp.URL == "" {
		t.Errorf("expected presigned url for candidate %d", withFile.ID)
	}

	w = doJSON(t, r, http.MethodGet, "/candidates/2/resume-link", nil)
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 for candidate without stored resume, got %d", w.Code)
	}
}
