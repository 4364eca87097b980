package media

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// Extractor converts downloaded media into the WAV 16kHz mono stream the
// transcription model requires.
type Extractor struct {
	ffmpegPath  string
	ffprobePath string
	runner      commandRunner
}

func NewExtractor(ffmpegPath, ffprobePath string) *Extractor {
	return &Extractor{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		runner:      execRunner{},
	}
}

// Extract writes audio.wav next to the source media and removes the source
// file once conversion succeeds.
func (e *Extractor) Extract(ctx context.Context, mediaPath string) (string, error) {
	if !isAudioOnly(mediaPath) {
		info, err := probe(ctx, e.runner, e.ffprobePath, mediaPath)
		if err != nil {
			return "", fmt.Errorf("probe media: %w", err)
		}
		if !info.HasAudio {
			return "", fmt.Errorf("media has no audio stream")
		}
	}

	audioPath := filepath.Join(filepath.Dir(mediaPath), "audio.wav")

	result, err := e.runner.Run(ctx, e.ffmpegPath,
		"-hide_banner",
		"-loglevel", "error",
		"-i", mediaPath,
		"-vn", // no video
		"-acodec", "pcm_s16le",
		"-ar", "16000", // 16kHz
		"-ac", "1", // mono
		"-y", // overwrite
		audioPath,
	)
	if err != nil {
		os.Remove(audioPath)
		return "", fmt.Errorf("ffmpeg: %s: %w", firstLine(result.Stderr), err)
	}

	// Source media is no longer needed once audio exists
	if err := os.Remove(mediaPath); err != nil && !os.IsNotExist(err) {
		log.Printf("[extract] failed to remove source media %s: %v", mediaPath, err)
	}

	return audioPath, nil
}

// isAudioOnly reports whether the file already carries audio without video,
// which still goes through ffmpeg to normalize sample rate and channels.
func isAudioOnly(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3", ".wav", ".m4a", ".aac", ".ogg", ".opus":
		return true
	}
	return false
}
