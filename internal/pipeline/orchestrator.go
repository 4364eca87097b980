package pipeline

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/reelscribe/backend/internal/media"
	"github.com/reelscribe/backend/internal/notify"
	"github.com/reelscribe/backend/internal/transcribe"
)

// Fetcher downloads source media into a directory and returns the file path.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL, dir string) (string, error)
}

// Extractor converts downloaded media into normalized audio.
type Extractor interface {
	Extract(ctx context.Context, mediaPath string) (string, error)
}

// Deliverer fans a message out to delivery targets.
type Deliverer interface {
	Dispatch(ctx context.Context, msg notify.Message, targets []notify.Target) []notify.Result
}

// TranscriptStore persists finished transcripts. The pipeline only touches
// the account store through this capability interface.
type TranscriptStore interface {
	SaveTranscript(userID int64, sourceURL, text, language string, lineCount int) (int64, error)
	MarkDelivered(transcriptID int64, channel notify.Channel) error
}

// Timeouts bound each stage that calls an external service.
type Timeouts struct {
	Fetch      time.Duration
	Extract    time.Duration
	Transcribe time.Duration
	Delivery   time.Duration
}

// Request describes one job submission.
type Request struct {
	JobID     string
	UserID    int64
	SourceURL string
	Language  string
	Targets   []notify.Target

	// OnStatus is called on each forward transition. Terminal states are the
	// caller's responsibility, derived from Run's return value.
	OnStatus func(Status)
}

// Outcome is the result of a completed job. Delivery results are recorded
// per channel; a failed channel does not fail the job.
type Outcome struct {
	TranscriptID int64           `json:"transcript_id,omitempty"`
	Transcript   string          `json:"transcript"`
	Language     string          `json:"language"`
	LineCount    int             `json:"line_count"`
	Deliveries   []notify.Result `json:"deliveries"`
}

// Orchestrator sequences the pipeline stages for one job: fetch media,
// extract audio, transcribe, deliver. Each job gets its own workspace,
// removed on every exit path.
type Orchestrator struct {
	workPath   string
	fetcher    Fetcher
	extractor  Extractor
	engine     transcribe.Transcriber
	dispatcher Deliverer
	store      TranscriptStore
	timeouts   Timeouts
}

func NewOrchestrator(workPath string, fetcher Fetcher, extractor Extractor, engine transcribe.Transcriber, dispatcher Deliverer, store TranscriptStore, timeouts Timeouts) *Orchestrator {
	return &Orchestrator{
		workPath:   workPath,
		fetcher:    fetcher,
		extractor:  extractor,
		engine:     engine,
		dispatcher: dispatcher,
		store:      store,
		timeouts:   timeouts,
	}
}

// Run processes one job to completion. On failure it returns a *StageError
// naming the stage and error kind. Validation failures happen before any
// stage work, so a rejected job never leaves the received state.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Outcome, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, stageErr(StatusReceived, KindValidation, err)
	}

	status := func(s Status) {
		if req.OnStatus != nil {
			req.OnStatus(s)
		}
	}

	ws, err := media.NewWorkspace(o.workPath, req.JobID)
	if err != nil {
		return nil, stageErr(StatusReceived, KindInternal, err)
	}
	defer func() {
		if err := ws.Cleanup(); err != nil {
			log.Printf("[pipeline] job %s: workspace cleanup failed: %v", req.JobID, err)
		}
	}()

	// Stage 1: fetch
	status(StatusFetching)
	mediaPath, err := o.fetch(ctx, req.SourceURL, ws.Dir)
	if err != nil {
		return nil, stageErr(StatusFetching, KindFetch, err)
	}

	// Stage 2: extract
	status(StatusExtracting)
	audioPath, err := o.extract(ctx, mediaPath)
	if err != nil {
		return nil, stageErr(StatusExtracting, KindExtraction, err)
	}

	// Stage 3: transcribe
	status(StatusTranscribing)
	result, err := o.transcribe(ctx, audioPath, req.Language)
	if err != nil {
		return nil, stageErr(StatusTranscribing, KindTranscription, err)
	}

	script := transcribe.FormatScript(result)
	if script == "" {
		return nil, stageErr(StatusTranscribing, KindTranscription, fmt.Errorf("no speech detected in the video"))
	}

	outcome := &Outcome{
		Transcript: script,
		Language:   result.Language,
		LineCount:  strings.Count(script, "\n") + 1,
	}
	if outcome.Language == "" {
		outcome.Language = "unknown"
	}

	if o.store != nil {
		id, err := o.store.SaveTranscript(req.UserID, req.SourceURL, script, outcome.Language, outcome.LineCount)
		if err != nil {
			return nil, stageErr(StatusTranscribing, KindInternal, fmt.Errorf("save transcript: %w", err))
		}
		outcome.TranscriptID = id
	}

	// Stage 4: deliver. Per-channel failures are recorded, not escalated:
	// the transcript exists, so the job still completes.
	status(StatusDelivering)
	outcome.Deliveries = o.deliver(ctx, outcome, req)

	status(StatusCompleted)
	return outcome, nil
}

// ValidateRequest checks a submission before any stage work. The handler
// calls it at submission time so bad requests are rejected with a 4xx
// instead of becoming failed jobs.
func ValidateRequest(req Request) error {
	if strings.TrimSpace(req.SourceURL) == "" {
		return fmt.Errorf("url is required")
	}
	u, err := url.Parse(req.SourceURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("malformed url: %s", req.SourceURL)
	}
	if len(req.Targets) == 0 {
		return fmt.Errorf("at least one delivery target is required")
	}
	for _, t := range req.Targets {
		switch t.Channel {
		case notify.ChannelEmail, notify.ChannelWhatsApp:
		case notify.ChannelSMS:
			if t.Carrier == "" {
				return fmt.Errorf("sms target requires a carrier")
			}
		default:
			return fmt.Errorf("unknown delivery channel: %s", t.Channel)
		}
		if strings.TrimSpace(t.Address) == "" {
			return fmt.Errorf("delivery target for %s is missing an address", t.Channel)
		}
	}
	return nil
}

func (o *Orchestrator) fetch(ctx context.Context, rawURL, dir string) (string, error) {
	ctx, cancel := withTimeout(ctx, o.timeouts.Fetch)
	defer cancel()
	return o.fetcher.Fetch(ctx, rawURL, dir)
}

func (o *Orchestrator) extract(ctx context.Context, mediaPath string) (string, error) {
	ctx, cancel := withTimeout(ctx, o.timeouts.Extract)
	defer cancel()
	return o.extractor.Extract(ctx, mediaPath)
}

func (o *Orchestrator) transcribe(ctx context.Context, audioPath, language string) (*transcribe.Result, error) {
	ctx, cancel := withTimeout(ctx, o.timeouts.Transcribe)
	defer cancel()
	return o.engine.Transcribe(ctx, transcribe.Request{AudioPath: audioPath, Language: language})
}

func (o *Orchestrator) deliver(ctx context.Context, outcome *Outcome, req Request) []notify.Result {
	ctx, cancel := withTimeout(ctx, o.timeouts.Delivery)
	defer cancel()

	msg := notify.FormatTranscript(outcome.Transcript, req.SourceURL, outcome.Language, outcome.LineCount)
	results := o.dispatcher.Dispatch(ctx, msg, req.Targets)

	if o.store != nil && outcome.TranscriptID != 0 {
		for _, res := range results {
			if !res.OK {
				continue
			}
			if err := o.store.MarkDelivered(outcome.TranscriptID, res.Channel); err != nil {
				log.Printf("[pipeline] job %s: mark delivered %s: %v", req.JobID, res.Channel, err)
			}
		}
	}

	return results
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
