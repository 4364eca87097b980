package media

import (
	"context"
	"encoding/json"
	"strconv"
)

type probeResult struct {
	Format  probeFormat   `json:"format"`
	Streams []probeStream `json:"streams"`
}

type probeFormat struct {
	Duration string `json:"duration"`
	Size     string `json:"size"`
}

type probeStream struct {
	CodecName  string `json:"codec_name"`
	CodecType  string `json:"codec_type"` // video, audio, subtitle
	SampleRate string `json:"sample_rate,omitempty"`
	Channels   int    `json:"channels,omitempty"`
}

// MediaInfo summarizes what ffprobe reports about a file.
type MediaInfo struct {
	Duration   float64
	SizeBytes  int64
	HasAudio   bool
	HasVideo   bool
	AudioCodec string
}

func probe(ctx context.Context, runner commandRunner, ffprobePath, filePath string) (*MediaInfo, error) {
	result, err := runner.Run(ctx, ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		filePath,
	)
	if err != nil {
		return nil, err
	}

	var parsed probeResult
	if err := json.Unmarshal([]byte(result.Stdout), &parsed); err != nil {
		return nil, err
	}

	info := &MediaInfo{}
	info.Duration, _ = strconv.ParseFloat(parsed.Format.Duration, 64)
	info.SizeBytes, _ = strconv.ParseInt(parsed.Format.Size, 10, 64)

	for _, s := range parsed.Streams {
		switch s.CodecType {
		case "audio":
			info.HasAudio = true
			if info.AudioCodec == "" {
				info.AudioCodec = s.CodecName
			}
		case "video":
			info.HasVideo = true
		}
	}

	return info, nil
}
