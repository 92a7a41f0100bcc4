package transform

import (
	"fmt"
	"strconv"
	"strings"
)

// SubtitleStyle is the ASS force_style applied to burned-in subtitles: white
// 24pt text on a translucent opaque box.
const SubtitleStyle = "Fontsize=24,PrimaryColour=&H00FFFFFF,BackColour=&H80000000,BorderStyle=3"

// Spec is everything needed to build one ffmpeg invocation.
type Spec struct {
	Input        string
	Subtitles    string
	Output       string
	Resolution   Resolution
	Quality      int
	Codec        string
	Preset       string
	AudioCodec   string
	AudioBitrate string
}

// BuildArgs renders the ffmpeg argument list for spec. It is pure so the
// command contract can be asserted without running ffmpeg.
func BuildArgs(spec Spec) []string {
	w, h := spec.Resolution.Dimensions()
	filter := fmt.Sprintf("subtitles='%s':force_style='%s',scale=%d:%d",
		escapeFilterPath(spec.Subtitles), SubtitleStyle, w, h)

	args := []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", spec.Input,
		"-vf", filter,
		"-c:v", spec.Codec,
		"-crf", strconv.Itoa(spec.Quality),
		"-preset", spec.Preset,
	}
	if spec.AudioCodec != "" {
		args = append(args, "-c:a", spec.AudioCodec)
		if spec.AudioBitrate != "" {
			args = append(args, "-b:a", spec.AudioBitrate)
		}
	}
	return append(args, "-movflags", "+faststart", spec.Output)
}

// escapeFilterPath escapes a path for use inside a single-quoted filtergraph
// option value. Quotes cannot appear inside a quoted span, so they close the
// span, emit an escaped quote, and reopen it.
func escapeFilterPath(path string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		`'`, `'\''`,
		`:`, `\:`,
	)
	return r.Replace(path)
}
