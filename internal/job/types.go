package job

import (
	"context"
	"encoding/json"
	"time"

	"github.com/reelscribe/backend/internal/notify"
	"github.com/reelscribe/backend/internal/pipeline"
)

// Job is one queued transcription request. Status follows the pipeline state
// machine; error fields are set only when the job failed.
type Job struct {
	ID          string          `json:"id"`
	UserID      int64           `json:"-"`
	Status      pipeline.Status `json:"status"`
	SourceURL   string          `json:"url"`
	Params      json.RawMessage `json:"params,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	ErrorKind   string          `json:"error_kind,omitempty"`
	FailedStage string          `json:"failed_stage,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// Params are the submission parameters stored with a job.
type Params struct {
	Language string          `json:"language,omitempty"`
	Targets  []notify.Target `json:"targets"`
}

// Handler processes one job, reporting forward status transitions through
// onStatus. The queue owns terminal states.
type Handler func(ctx context.Context, j *Job, onStatus func(pipeline.Status)) error
