package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/minio/minio-go/v7"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"hireLens/internal/database"
	"hireLens/internal/tasks"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&database.Job{}, &database.Candidate{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type fakeStorage struct {
	uploaded        map[string][]byte
	deleted         []string
	deletedPrefixes []string
	failUploadAfter int // fail the (n+1)th upload when >= 0
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		uploaded:        map[string][]byte{},
		failUploadAfter: -1,
	}
}

func (s *fakeStorage) UploadFile(_ context.Context, objectKey string, reader io.Reader, _ int64, _ string) (*minio.UploadInfo, error) {
	if s.failUploadAfter >= 0 && len(s.uploaded) >= s.failUploadAfter {
		return nil, errors.New("storage unavailable")
	}
	b, _ := io.ReadAll(reader)
	s.uploaded[objectKey] = b
	return &minio.UploadInfo{}, nil
}

func (s *fakeStorage) DeleteObject(_ context.Context, objectKey string) error {
	s.deleted = append(s.deleted, objectKey)
	delete(s.uploaded, objectKey)
	return nil
}

func (s *fakeStorage) DeletePrefix(_ context.Context, prefix string) error {
	s.deletedPrefixes = append(s.deletedPrefixes, prefix)
	return nil
}

func (s *fakeStorage) GeneratePresignedURL(_ context.Context, objectKey string, _ time.Duration) (string, error) {
	return "https://example.invalid/" + objectKey, nil
}

type fakeEnqueuer struct {
	enqueued []*asynq.Task
	err      error
}

func (e *fakeEnqueuer) Enqueue(task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if e.err != nil {
		return nil, e.err
	}
	e.enqueued = append(e.enqueued, task)
	return &asynq.TaskInfo{ID: "task-1"}, nil
}

func (e *fakeEnqueuer) payloads(t *testing.T) []tasks.ResumeProcessPayload {
	t.Helper()
	out := make([]tasks.ResumeProcessPayload, 0, len(e.enqueued))
	for _, task := range e.enqueued {
		var p tasks.ResumeProcessPayload
		if err := json.Unmarshal(task.Payload(), &p); err != nil {
			t.Fatalf("unmarshal task payload: %v", err)
		}
		out = append(out, p)
	}
	return out
}

func doJSON(t *testing.T, handler http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
}

func newMultipartBatch(t *testing.T, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for name, content := range files {
		part, err := writer.CreateFormFile("files", name)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write(content); err != nil {
			t.Fatalf("write file: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return body, writer.FormDataContentType()
}
