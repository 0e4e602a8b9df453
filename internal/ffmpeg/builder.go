// Package ffmpeg constructs transcoder invocations. The argument layout is a
// wire protocol shared with external tooling: input order, filter labels and
// encode parameters must stay byte-for-byte stable.
package ffmpeg

import (
	"fmt"
	"strings"
)

// Params describes one worker invocation.
type Params struct {
	// BinaryPath is the transcoder executable, usually just "ffmpeg".
	BinaryPath string

	SourceURL string

	// WatermarkPaths are overlay image files in composition order: each one
	// is stacked on top of the composite built from its predecessors.
	WatermarkPaths []string

	OutputPlain   string
	OutputOverlay string

	// HardwareEncode selects the hardware encoder preset when the capability
	// probe found one and the deployment enables it.
	HardwareEncode bool
}

// BuildArgs constructs the full argument vector (excluding the binary name).
//
// With watermarks the invocation produces two renditions from one decode:
// the composited overlay stream and the untouched source video, each encoded
// and muxed into its own segmented output, both with optional audio
// passthrough. Without watermarks only the plain rendition is emitted.
func BuildArgs(p *Params) []string {
	args := []string{"-loglevel", "error", "-i", p.SourceURL}

	for _, path := range p.WatermarkPaths {
		args = append(args, "-i", path)
	}

	if len(p.WatermarkPaths) > 0 {
		filter, last := overlayFilter(len(p.WatermarkPaths))
		args = append(args, "-filter_complex", filter)
		args = append(args, "-map", last, "-map", "0:a?")
		args = append(args, segmentOutputArgs(p.OutputOverlay, p.HardwareEncode)...)
		args = append(args, "-map", "0:v", "-map", "0:a?")
		args = append(args, segmentOutputArgs(p.OutputPlain, p.HardwareEncode)...)
	} else {
		args = append(args, "-map", "0:v", "-map", "0:a?")
		args = append(args, segmentOutputArgs(p.OutputPlain, p.HardwareEncode)...)
	}

	return args
}

// overlayFilter builds the filter graph compositing n watermark inputs onto
// the source video in order, returning the graph and the label of the final
// composited stream. Input 0 is the source; watermark i is input i+1.
func overlayFilter(n int) (filter, last string) {
	var b strings.Builder
	last = "[0:v]"
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "[%d:v]scale=iw:ih[wm%d];", i+1, i)
		fmt.Fprintf(&b, "%s[wm%d]overlay=0:0:format=auto[v%d];", last, i, i)
		last = fmt.Sprintf("[v%d]", i)
	}
	return strings.TrimSuffix(b.String(), ";"), last
}

// segmentOutputArgs returns the fixed encode and segmenting parameters for
// one rendition. These are policy, not caller-configurable: constant frame
// rate, capped bitrate, AAC audio, rolling five-segment window.
func segmentOutputArgs(playlist string, hardware bool) []string {
	var codec []string
	if hardware {
		codec = []string{"-c:v", "h264_nvenc", "-preset", "p2", "-cq", "19"}
	} else {
		codec = []string{"-c:v", "libx264", "-preset", "medium", "-crf", "20"}
	}

	args := append([]string{}, codec...)
	args = append(args,
		"-r", "10",
		"-b:v", "3000k",
		"-maxrate", "4000k",
		"-bufsize", "10000k",
		"-c:a", "aac",
		"-f", "hls",
		"-hls_time", "5",
		"-hls_list_size", "5",
		"-hls_flags", "delete_segments",
		playlist,
	)
	return args
}
