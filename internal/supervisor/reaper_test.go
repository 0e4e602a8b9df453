package supervisor

import "testing"

func TestIsOrphan(t *testing.T) {
	valid := map[string]bool{
		"cam-front": true,
		"cam-back":  true,
	}

	cases := []struct {
		name    string
		cmdline []string
		want    bool
	}{
		{
			name: "uid in output path",
			cmdline: []string{"ffmpeg", "-i", "rtsp://example/a",
				"/var/lib/fencecast/hls/cam-front/plain.m3u8"},
			want: false,
		},
		{
			name:    "no uid anywhere",
			cmdline: []string{"ffmpeg", "-i", "rtsp://example/a", "/tmp/out.m3u8"},
			want:    true,
		},
		{
			name:    "uid embedded in larger argument",
			cmdline: []string{"ffmpeg", "-hls_segment_filename", "/hls/cam-back/seg%d.ts"},
			want:    false,
		},
		{
			name:    "empty cmdline",
			cmdline: nil,
			want:    true,
		},
	}

	for _, tc := range cases {
		if got := isOrphan(tc.cmdline, valid); got != tc.want {
			t.Errorf("%s: isOrphan = %v, want %v", tc.name, got, tc.want)
		}
	}

	// With no bindings at all, every transcoder process is an orphan.
	if !isOrphan([]string{"ffmpeg", "-i", "x"}, map[string]bool{}) {
		t.Error("expected orphan when no bindings exist")
	}
	// An empty uid must never spare a process.
	if !isOrphan([]string{"ffmpeg"}, map[string]bool{"": true}) {
		t.Error("empty uid spared a process")
	}
}
