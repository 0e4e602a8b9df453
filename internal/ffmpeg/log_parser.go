package ffmpeg

import "strings"

// ParseLogLevel extracts the log level from a transcoder stderr line.
// ffmpeg emits "[level] message" or "[component @ 0x...] [level] message";
// the level is stripped, the component prefix is preserved. Lines without a
// recognizable level default to error: the workers run with -loglevel error,
// so anything on stderr is diagnostic.
func ParseLogLevel(line string) (level, msg string) {
	if len(line) < 3 || line[0] != '[' {
		return "error", line
	}

	end := strings.Index(line, "] ")
	if end == -1 {
		return "error", line
	}

	bracket := line[1:end]
	if isLogLevel(bracket) {
		return bracket, line[end+2:]
	}

	// Component prefix form: keep the component, strip only the [level].
	component := line[:end+2]
	rest := line[end+2:]
	if len(rest) > 2 && rest[0] == '[' {
		if nextEnd := strings.Index(rest, "] "); nextEnd != -1 {
			if nextBracket := rest[1:nextEnd]; isLogLevel(nextBracket) {
				return nextBracket, component + rest[nextEnd+2:]
			}
		}
	}

	return "error", line
}

func isLogLevel(s string) bool {
	switch s {
	case "quiet", "panic", "fatal", "error", "warning", "info", "verbose", "debug", "trace":
		return true
	}
	return false
}
