package job

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/reelscribe/backend/internal/pipeline"
)

// Queue manages job persistence and dispatching. Jobs are processed by a
// bounded pool of workers; unrelated jobs have no ordering guarantee.
type Queue struct {
	db       *sql.DB
	mu       sync.RWMutex
	pending  chan string // job IDs to process
	cancels  map[string]context.CancelFunc
	inflight map[string]bool // jobs a worker currently holds
	handler  Handler
	workers  int
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewQueue creates a queue; call Start after registering the handler.
func NewQueue(db *sql.DB, workers int) *Queue {
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		db:       db,
		pending:  make(chan string, 100),
		cancels:  make(map[string]context.CancelFunc),
		inflight: make(map[string]bool),
		workers:  workers,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// SetHandler registers the job processor.
func (q *Queue) SetHandler(handler Handler) {
	q.handler = handler
}

// Start launches the workers and resumes jobs interrupted by a restart.
func (q *Queue) Start() {
	go q.resumeJobs()
	go q.repoll()
	for i := 0; i < q.workers; i++ {
		go q.worker()
	}
}

// Enqueue persists a new job and hands it to the workers. Every submission
// gets its own job; identical resubmissions are independent.
func (q *Queue) Enqueue(userID int64, sourceURL string, params Params) (*Job, error) {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal params: %w", err)
	}

	j := &Job{
		ID:        uuid.New().String(),
		UserID:    userID,
		Status:    pipeline.StatusReceived,
		SourceURL: sourceURL,
		Params:    paramsJSON,
		CreatedAt: time.Now(),
	}

	_, err = q.db.Exec(`
		INSERT INTO jobs (id, user_id, status, source_url, params, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		j.ID, j.UserID, j.Status, j.SourceURL, string(j.Params), j.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}

	select {
	case q.pending <- j.ID:
	default:
		log.Printf("[job] queue full, job %s will be picked up on restart", j.ID)
	}

	return j, nil
}

// GetJob retrieves a job owned by userID.
func (q *Queue) GetJob(id string, userID int64) (*Job, error) {
	j := &Job{}
	var params, result, errMsg, errKind, failedStage sql.NullString
	var startedAt, completedAt sql.NullTime

	err := q.db.QueryRow(`
		SELECT id, user_id, status, source_url, params, result, error, error_kind, failed_stage, created_at, started_at, completed_at
		FROM jobs WHERE id = ? AND user_id = ?`, id, userID,
	).Scan(&j.ID, &j.UserID, &j.Status, &j.SourceURL, &params, &result,
		&errMsg, &errKind, &failedStage, &j.CreatedAt, &startedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	if params.Valid {
		j.Params = json.RawMessage(params.String)
	}
	if result.Valid {
		j.Result = json.RawMessage(result.String)
	}
	j.Error = errMsg.String
	j.ErrorKind = errKind.String
	j.FailedStage = failedStage.String
	if startedAt.Valid {
		j.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		j.CompletedAt = &completedAt.Time
	}

	return j, nil
}

// CancelJob cancels a job owned by userID if it has not finished.
func (q *Queue) CancelJob(id string, userID int64) error {
	q.mu.Lock()
	if cancelFn, ok := q.cancels[id]; ok {
		cancelFn()
		delete(q.cancels, id)
	}
	q.mu.Unlock()

	_, err := q.db.Exec(`
		UPDATE jobs SET status = ?, completed_at = ?
		WHERE id = ? AND user_id = ? AND status NOT IN (?, ?, ?)`,
		pipeline.StatusCancelled, time.Now(), id, userID,
		pipeline.StatusCompleted, pipeline.StatusFailed, pipeline.StatusCancelled,
	)
	return err
}

// Stop shuts down the workers.
func (q *Queue) Stop() {
	q.cancel()
}

func (q *Queue) worker() {
	for {
		select {
		case <-q.ctx.Done():
			return
		case jobID := <-q.pending:
			// The re-poll can queue an ID twice; claiming keeps a job on one
			// worker at a time.
			if !q.claim(jobID) {
				continue
			}
			q.processJob(jobID)
			q.release(jobID)
		}
	}
}

func (q *Queue) claim(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.inflight[id] {
		return false
	}
	q.inflight[id] = true
	return true
}

func (q *Queue) release(id string) {
	q.mu.Lock()
	delete(q.inflight, id)
	q.mu.Unlock()
}

func (q *Queue) isInflight(id string) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.inflight[id]
}

func (q *Queue) processJob(jobID string) {
	j, err := q.loadJob(jobID)
	if err != nil {
		log.Printf("[job] failed to load job %s: %v", jobID, err)
		return
	}
	if j.Status != pipeline.StatusReceived {
		return
	}
	if q.handler == nil {
		q.failJob(j, pipeline.StatusReceived, pipeline.KindInternal, errors.New("no handler registered"))
		return
	}

	now := time.Now()
	j.StartedAt = &now
	q.db.Exec("UPDATE jobs SET started_at = ? WHERE id = ?", now, j.ID)

	ctx, cancelFn := context.WithCancel(q.ctx)
	q.mu.Lock()
	q.cancels[j.ID] = cancelFn
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		delete(q.cancels, j.ID)
		q.mu.Unlock()
		cancelFn()
	}()

	onStatus := func(s pipeline.Status) {
		q.setStatus(j, s)
	}

	err = q.handler(ctx, j, onStatus)
	if ctx.Err() != nil {
		// Cancelled; CancelJob already wrote the terminal state
		log.Printf("[job] job %s cancelled", j.ID)
		return
	}
	if err != nil {
		var stageErr *pipeline.StageError
		if errors.As(err, &stageErr) {
			q.failJob(j, stageErr.Stage, stageErr.Kind, stageErr.Err)
		} else {
			q.failJob(j, j.Status, pipeline.KindInternal, err)
		}
		return
	}
	q.completeJob(j)
}

// setStatus advances the persisted status, dropping any transition that
// would regress the state machine. The UPDATE re-checks the stored status so
// a cancel written concurrently from the HTTP goroutine is never overwritten
// by a stage transition the worker emits afterwards. Reports whether the
// transition was applied.
func (q *Queue) setStatus(j *Job, next pipeline.Status) bool {
	if !j.Status.CanTransition(next) {
		log.Printf("[job] job %s: ignoring status transition %s -> %s", j.ID, j.Status, next)
		return false
	}
	res, err := q.db.Exec(`
		UPDATE jobs SET status = ?
		WHERE id = ? AND status NOT IN (?, ?, ?)`,
		next, j.ID,
		pipeline.StatusCompleted, pipeline.StatusFailed, pipeline.StatusCancelled,
	)
	if err != nil {
		log.Printf("[job] job %s: status update failed: %v", j.ID, err)
		return false
	}
	if n, _ := res.RowsAffected(); n == 0 {
		log.Printf("[job] job %s: already terminal, dropping transition to %s", j.ID, next)
		return false
	}
	j.Status = next
	return true
}

func (q *Queue) completeJob(j *Job) {
	if !q.setStatus(j, pipeline.StatusCompleted) {
		return
	}
	q.db.Exec("UPDATE jobs SET result = ?, completed_at = ? WHERE id = ?",
		string(j.Result), time.Now(), j.ID)
	log.Printf("[job] job %s completed", j.ID)
}

func (q *Queue) failJob(j *Job, stage pipeline.Status, kind pipeline.Kind, cause error) {
	if !q.setStatus(j, pipeline.StatusFailed) {
		return
	}
	q.db.Exec("UPDATE jobs SET error = ?, error_kind = ?, failed_stage = ?, completed_at = ? WHERE id = ?",
		cause.Error(), string(kind), string(stage), time.Now(), j.ID)
	log.Printf("[job] job %s failed at %s (%s): %v", j.ID, stage, kind, cause)
}

func (q *Queue) loadJob(id string) (*Job, error) {
	j := &Job{}
	var params sql.NullString
	err := q.db.QueryRow(
		"SELECT id, user_id, status, source_url, params, created_at FROM jobs WHERE id = ?", id,
	).Scan(&j.ID, &j.UserID, &j.Status, &j.SourceURL, &params, &j.CreatedAt)
	if err != nil {
		return nil, err
	}
	if params.Valid {
		j.Params = json.RawMessage(params.String)
	}
	return j, nil
}

// resumeJobs re-queues jobs interrupted by a restart. In-flight stages lose
// their workspace on restart, so interrupted jobs start over from received.
func (q *Queue) resumeJobs() {
	q.db.Exec("UPDATE jobs SET status = ? WHERE status IN (?, ?, ?, ?)",
		pipeline.StatusReceived,
		pipeline.StatusFetching, pipeline.StatusExtracting,
		pipeline.StatusTranscribing, pipeline.StatusDelivering,
	)

	if count := q.enqueueReceived(); count > 0 {
		log.Printf("[job] resumed %d pending jobs", count)
	}
}

// repoll periodically re-queues received jobs. Enqueue drops the channel send
// when the channel is full; without this, those jobs would wait for a restart.
func (q *Queue) repoll() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-q.ctx.Done():
			return
		case <-ticker.C:
			q.enqueueReceived()
		}
	}
}

// enqueueReceived pushes every received job that no worker holds onto the
// pending channel, stopping when the channel fills up.
func (q *Queue) enqueueReceived() int {
	rows, err := q.db.Query("SELECT id FROM jobs WHERE status = ? ORDER BY created_at ASC", pipeline.StatusReceived)
	if err != nil {
		log.Printf("[job] failed to list received jobs: %v", err)
		return 0
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			continue
		}
		if q.isInflight(id) {
			continue
		}
		select {
		case q.pending <- id:
			count++
		default:
			return count
		}
	}
	return count
}
