package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/reelscribe/backend/internal/notify"
	"github.com/reelscribe/backend/internal/transcribe"
)

type stubFetcher struct {
	calls int
	err   error
}

func (s *stubFetcher) Fetch(ctx context.Context, rawURL, dir string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	path := filepath.Join(dir, "source.mp4")
	os.WriteFile(path, []byte("video"), 0644)
	return path, nil
}

type stubExtractor struct {
	calls int
	err   error
}

func (s *stubExtractor) Extract(ctx context.Context, mediaPath string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	path := filepath.Join(filepath.Dir(mediaPath), "audio.wav")
	os.WriteFile(path, []byte("wav"), 0644)
	os.Remove(mediaPath)
	return path, nil
}

type stubEngine struct {
	calls  int
	result *transcribe.Result
	err    error
}

func (s *stubEngine) Transcribe(ctx context.Context, req transcribe.Request) (*transcribe.Result, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func (s *stubEngine) Name() string { return "stub" }

type stubDispatcher struct {
	fail map[notify.Channel]string
}

func (s *stubDispatcher) Dispatch(ctx context.Context, msg notify.Message, targets []notify.Target) []notify.Result {
	results := make([]notify.Result, len(targets))
	for i, t := range targets {
		results[i] = notify.Result{Channel: t.Channel, Address: t.Address, OK: true}
		if reason, ok := s.fail[t.Channel]; ok {
			results[i].OK = false
			results[i].Error = reason
		}
	}
	return results
}

type stubStore struct {
	saved     int
	saveErr   error
	delivered []notify.Channel
}

func (s *stubStore) SaveTranscript(userID int64, sourceURL, text, language string, lineCount int) (int64, error) {
	if s.saveErr != nil {
		return 0, s.saveErr
	}
	s.saved++
	return 7, nil
}

func (s *stubStore) MarkDelivered(transcriptID int64, channel notify.Channel) error {
	s.delivered = append(s.delivered, channel)
	return nil
}

type fixture struct {
	orch       *Orchestrator
	workPath   string
	fetcher    *stubFetcher
	extractor  *stubExtractor
	engine     *stubEngine
	dispatcher *stubDispatcher
	store      *stubStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		workPath:  t.TempDir(),
		fetcher:   &stubFetcher{},
		extractor: &stubExtractor{},
		engine: &stubEngine{result: &transcribe.Result{
			Text:     "hello world",
			Language: "en",
			Segments: []transcribe.Segment{{Start: 0, End: 1, Text: "hello world"}},
		}},
		dispatcher: &stubDispatcher{},
		store:      &stubStore{},
	}
	f.orch = NewOrchestrator(f.workPath, f.fetcher, f.extractor, f.engine, f.dispatcher, f.store, Timeouts{})
	return f
}

func emailTarget() []notify.Target {
	return []notify.Target{{Channel: notify.ChannelEmail, Address: "user@example.com"}}
}

func assertNoLeftovers(t *testing.T, workPath string) {
	t.Helper()
	entries, err := os.ReadDir(workPath)
	if err != nil {
		t.Fatalf("read work path: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("workspace leak: %d entries remain in %s", len(entries), workPath)
	}
}

func TestRunHappyPath(t *testing.T) {
	f := newFixture(t)

	var statuses []Status
	outcome, err := f.orch.Run(context.Background(), Request{
		JobID:     "job-1",
		UserID:    1,
		SourceURL: "https://instagram.com/reel/ABC123",
		Targets:   emailTarget(),
		OnStatus:  func(s Status) { statuses = append(statuses, s) },
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if outcome.Transcript != "hello world" {
		t.Errorf("Transcript = %q", outcome.Transcript)
	}
	if outcome.Language != "en" || outcome.LineCount != 1 {
		t.Errorf("Language = %q LineCount = %d", outcome.Language, outcome.LineCount)
	}
	if len(outcome.Deliveries) != 1 || !outcome.Deliveries[0].OK {
		t.Errorf("Deliveries = %+v", outcome.Deliveries)
	}
	if outcome.TranscriptID != 7 {
		t.Errorf("TranscriptID = %d", outcome.TranscriptID)
	}

	want := []Status{StatusFetching, StatusExtracting, StatusTranscribing, StatusDelivering, StatusCompleted}
	if len(statuses) != len(want) {
		t.Fatalf("statuses = %v, want %v", statuses, want)
	}
	for i := range want {
		if statuses[i] != want[i] {
			t.Errorf("statuses[%d] = %s, want %s", i, statuses[i], want[i])
		}
	}

	if len(f.store.delivered) != 1 || f.store.delivered[0] != notify.ChannelEmail {
		t.Errorf("delivered = %v", f.store.delivered)
	}
	assertNoLeftovers(t, f.workPath)
}

func TestRunValidation(t *testing.T) {
	tests := []struct {
		name string
		req  Request
	}{
		{"empty url", Request{JobID: "j", Targets: emailTarget()}},
		{"malformed url", Request{JobID: "j", SourceURL: "not-a-url", Targets: emailTarget()}},
		{"no targets", Request{JobID: "j", SourceURL: "https://instagram.com/reel/A"}},
		{"empty address", Request{JobID: "j", SourceURL: "https://instagram.com/reel/A",
			Targets: []notify.Target{{Channel: notify.ChannelEmail}}}},
		{"unknown channel", Request{JobID: "j", SourceURL: "https://instagram.com/reel/A",
			Targets: []notify.Target{{Channel: "pigeon", Address: "x"}}}},
		{"sms without carrier", Request{JobID: "j", SourceURL: "https://instagram.com/reel/A",
			Targets: []notify.Target{{Channel: notify.ChannelSMS, Address: "5551234567"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.orch.Run(context.Background(), tt.req)

			var stageErr *StageError
			if !errors.As(err, &stageErr) {
				t.Fatalf("error = %v, want *StageError", err)
			}
			if stageErr.Stage != StatusReceived || stageErr.Kind != KindValidation {
				t.Errorf("stage=%s kind=%s, want received/validation", stageErr.Stage, stageErr.Kind)
			}
			if f.fetcher.calls != 0 {
				t.Error("fetcher must not run on validation failure")
			}
		})
	}
}

func TestRunFetchFailureIsFailFast(t *testing.T) {
	f := newFixture(t)
	f.fetcher.err = errors.New("content unavailable or private")

	_, err := f.orch.Run(context.Background(), Request{
		JobID:     "job-2",
		SourceURL: "https://instagram.com/reel/PRIVATE",
		Targets:   emailTarget(),
	})

	var stageErr *StageError
	if !errors.As(err, &stageErr) {
		t.Fatalf("error = %v, want *StageError", err)
	}
	if stageErr.Stage != StatusFetching || stageErr.Kind != KindFetch {
		t.Errorf("stage=%s kind=%s, want fetching/fetch", stageErr.Stage, stageErr.Kind)
	}
	if f.extractor.calls != 0 || f.engine.calls != 0 {
		t.Error("downstream stages must not run after a fetch failure")
	}
	assertNoLeftovers(t, f.workPath)
}

func TestRunExtractionFailure(t *testing.T) {
	f := newFixture(t)
	f.extractor.err = errors.New("media has no audio stream")

	_, err := f.orch.Run(context.Background(), Request{
		JobID:     "job-3",
		SourceURL: "https://instagram.com/reel/ABC",
		Targets:   emailTarget(),
	})

	var stageErr *StageError
	if !errors.As(err, &stageErr) {
		t.Fatalf("error = %v, want *StageError", err)
	}
	if stageErr.Stage != StatusExtracting || stageErr.Kind != KindExtraction {
		t.Errorf("stage=%s kind=%s", stageErr.Stage, stageErr.Kind)
	}
	if f.engine.calls != 0 {
		t.Error("engine must not run after extraction failure")
	}
	assertNoLeftovers(t, f.workPath)
}

func TestRunNoSpeechDetected(t *testing.T) {
	f := newFixture(t)
	f.engine.result = &transcribe.Result{Language: "en"}

	_, err := f.orch.Run(context.Background(), Request{
		JobID:     "job-4",
		SourceURL: "https://instagram.com/reel/SILENT",
		Targets:   emailTarget(),
	})

	var stageErr *StageError
	if !errors.As(err, &stageErr) {
		t.Fatalf("error = %v, want *StageError", err)
	}
	if stageErr.Stage != StatusTranscribing || stageErr.Kind != KindTranscription {
		t.Errorf("stage=%s kind=%s", stageErr.Stage, stageErr.Kind)
	}
	assertNoLeftovers(t, f.workPath)
}

func TestRunDeliveryFailureStillCompletes(t *testing.T) {
	f := newFixture(t)
	f.dispatcher.fail = map[notify.Channel]string{notify.ChannelWhatsApp: "invalid phone number"}

	outcome, err := f.orch.Run(context.Background(), Request{
		JobID:     "job-5",
		UserID:    1,
		SourceURL: "https://instagram.com/reel/ABC",
		Targets: []notify.Target{
			{Channel: notify.ChannelEmail, Address: "user@example.com"},
			{Channel: notify.ChannelWhatsApp, Address: "12345"},
		},
	})
	if err != nil {
		t.Fatalf("Run must not fail on delivery errors, got %v", err)
	}

	if len(outcome.Deliveries) != 2 {
		t.Fatalf("Deliveries = %+v", outcome.Deliveries)
	}
	if !outcome.Deliveries[0].OK {
		t.Error("email delivery should succeed")
	}
	if outcome.Deliveries[1].OK || outcome.Deliveries[1].Error != "invalid phone number" {
		t.Errorf("whatsapp result = %+v", outcome.Deliveries[1])
	}
	if len(f.store.delivered) != 1 {
		t.Errorf("only the successful channel should be marked delivered, got %v", f.store.delivered)
	}
	assertNoLeftovers(t, f.workPath)
}

func TestRunStoreFailure(t *testing.T) {
	f := newFixture(t)
	f.store.saveErr = errors.New("disk full")

	_, err := f.orch.Run(context.Background(), Request{
		JobID:     "job-6",
		SourceURL: "https://instagram.com/reel/ABC",
		Targets:   emailTarget(),
	})

	var stageErr *StageError
	if !errors.As(err, &stageErr) {
		t.Fatalf("error = %v, want *StageError", err)
	}
	if stageErr.Kind != KindInternal {
		t.Errorf("kind = %s, want internal", stageErr.Kind)
	}
	assertNoLeftovers(t, f.workPath)
}

func TestRunIndependentJobs(t *testing.T) {
	f := newFixture(t)
	req := Request{
		SourceURL: "https://instagram.com/reel/ABC123",
		Targets:   emailTarget(),
	}

	req.JobID = "job-a"
	if _, err := f.orch.Run(context.Background(), req); err != nil {
		t.Fatalf("first run: %v", err)
	}
	req.JobID = "job-b"
	if _, err := f.orch.Run(context.Background(), req); err != nil {
		t.Fatalf("identical resubmission: %v", err)
	}
	if f.store.saved != 2 {
		t.Errorf("saved = %d, want 2 independent transcripts", f.store.saved)
	}
}

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusReceived, StatusFetching, true},
		{StatusFetching, StatusExtracting, true},
		{StatusTranscribing, StatusFailed, true},
		{StatusDelivering, StatusCompleted, true},
		{StatusExtracting, StatusFetching, false},
		{StatusCompleted, StatusFailed, false},
		{StatusFailed, StatusFetching, false},
		{StatusFetching, StatusFetching, false},
		{StatusReceived, StatusCancelled, true},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.want {
			t.Errorf("CanTransition(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}
