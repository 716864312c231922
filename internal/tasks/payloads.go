package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// 任务类型常量，确保队列生产者与消费者一致。
const (
	TypeResumeProcess = "resume:process"
)

// ResumeProcessPayload 描述一次简历解析/打分派发所需的最小信息。
// The worker re-reads job/filename from the row, so a stale payload after a
// re-upload still dispatches the candidate's current blob.
type ResumeProcessPayload struct {
	CandidateID   uint   `json:"candidate_id"`
	CorrelationID string `json:"correlation_id"`
}

// NewResumeProcessTask 构造一个新的简历处理任务。
func NewResumeProcessTask(candidateID uint, correlationID string) (*asynq.Task, error) {
	payload, err := json.Marshal(ResumeProcessPayload{
		CandidateID:   candidateID,
		CorrelationID: correlationID,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeResumeProcess, payload), nil
}
