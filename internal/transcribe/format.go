package transcribe

import "strings"

// FormatScript renders a transcription as a line-by-line script, one segment
// per line. When the engine returned no segments, the raw text is split on
// sentence boundaries instead.
func FormatScript(result *Result) string {
	var lines []string

	for _, segment := range result.Segments {
		if text := strings.TrimSpace(segment.Text); text != "" {
			lines = append(lines, text)
		}
	}

	if len(lines) == 0 && strings.TrimSpace(result.Text) != "" {
		lines = splitSentences(result.Text)
	}

	return strings.Join(lines, "\n")
}

func splitSentences(text string) []string {
	text = strings.TrimSpace(text)
	for _, sep := range []string{". ", "? ", "! "} {
		text = strings.ReplaceAll(text, sep, strings.TrimSuffix(sep, " ")+"\n")
	}

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
