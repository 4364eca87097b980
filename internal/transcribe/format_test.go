package transcribe

import "testing"

func TestFormatScriptFromSegments(t *testing.T) {
	result := &Result{
		Text: "hello world how are you",
		Segments: []Segment{
			{Start: 0, End: 1.5, Text: " hello world "},
			{Start: 1.5, End: 2, Text: ""},
			{Start: 2, End: 3.5, Text: "how are you"},
		},
	}

	got := FormatScript(result)
	want := "hello world\nhow are you"
	if got != want {
		t.Errorf("FormatScript = %q, want %q", got, want)
	}
}

func TestFormatScriptSentenceFallback(t *testing.T) {
	result := &Result{Text: "First sentence. Second one? Third! Trailing"}

	got := FormatScript(result)
	want := "First sentence.\nSecond one?\nThird!\nTrailing"
	if got != want {
		t.Errorf("FormatScript = %q, want %q", got, want)
	}
}

func TestFormatScriptEmpty(t *testing.T) {
	if got := FormatScript(&Result{}); got != "" {
		t.Errorf("FormatScript on empty result = %q, want empty", got)
	}
}
