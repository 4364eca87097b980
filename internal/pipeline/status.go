package pipeline

// Status is the state of a transcription job. A job moves forward through
// received → fetching → extracting → transcribing → delivering → completed,
// or drops to failed from any non-terminal state. It never regresses.
type Status string

const (
	StatusReceived     Status = "received"
	StatusFetching     Status = "fetching"
	StatusExtracting   Status = "extracting"
	StatusTranscribing Status = "transcribing"
	StatusDelivering   Status = "delivering"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
	StatusCancelled    Status = "cancelled"
)

var statusRank = map[Status]int{
	StatusReceived:     0,
	StatusFetching:     1,
	StatusExtracting:   2,
	StatusTranscribing: 3,
	StatusDelivering:   4,
	StatusCompleted:    5,
	StatusFailed:       5,
	StatusCancelled:    5,
}

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether moving from s to next keeps the state
// machine monotonic.
func (s Status) CanTransition(next Status) bool {
	if s.Terminal() {
		return false
	}
	if next == StatusFailed || next == StatusCancelled {
		return true
	}
	return statusRank[next] > statusRank[s]
}
