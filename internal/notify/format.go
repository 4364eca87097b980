package notify

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// FormatTranscript builds the delivery message for a finished transcript.
func FormatTranscript(transcript, sourceURL, language string, lineCount int) Message {
	divider := strings.Repeat("-", 30)

	var b strings.Builder
	b.WriteString("Instagram Video Transcript\n\n")
	fmt.Fprintf(&b, "Video: %s\n", sourceURL)
	fmt.Fprintf(&b, "Language: %s\n\n", language)
	b.WriteString("Transcript:\n")
	b.WriteString(divider + "\n")
	b.WriteString(transcript + "\n")
	b.WriteString(divider + "\n")

	return Message{
		Subject: fmt.Sprintf("Your Instagram Transcript (%d lines)", lineCount),
		Body:    b.String(),
		Short:   fmt.Sprintf("Transcript ready! %d lines. Check your email for full text.", lineCount),
	}
}

// truncateMessage shortens s to at most limit bytes, backing up so a
// multi-byte rune is never split at the cut.
func truncateMessage(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
