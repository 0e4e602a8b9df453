package encoders

import "testing"

const sampleEncoders = `Encoders:
 V..... = Video
 A..... = Audio
 ------
 V....D libx264              libx264 H.264 / AVC / MPEG-4 AVC (codec h264)
 V....D h264_nvenc           NVIDIA NVENC H.264 encoder (codec h264)
 A....D aac                  AAC (Advanced Audio Coding)
`

func TestHasEncoder(t *testing.T) {
	if !hasEncoder(sampleEncoders, "h264_nvenc") {
		t.Error("h264_nvenc not found in sample output")
	}
	if !hasEncoder(sampleEncoders, "libx264") {
		t.Error("libx264 not found in sample output")
	}
	if hasEncoder(sampleEncoders, "h264_vaapi") {
		t.Error("h264_vaapi reported present")
	}
}

func TestHasEncoderIgnoresHeader(t *testing.T) {
	// Encoder names in the legend above "Encoders:" must not match.
	output := "h264_nvenc mentioned in banner\nEncoders:\n V....D libx264  x264\n"
	if hasEncoder(output, "h264_nvenc") {
		t.Error("matched encoder name outside the encoder table")
	}
}
