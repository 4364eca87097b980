package transcribe

import "context"

// Request is the input for a transcription.
type Request struct {
	AudioPath string // absolute path to a WAV 16kHz mono file
	Language  string // "" or "auto" for auto-detect
}

// Segment is one timed span of recognized speech.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Result is the output of a transcription.
type Result struct {
	Text     string
	Language string // detected language
	Segments []Segment
}

// Transcriber is the common interface for all speech-to-text engines. The
// engine is treated as a black box; callers own timeouts via ctx.
type Transcriber interface {
	Transcribe(ctx context.Context, req Request) (*Result, error)
	Name() string
}
