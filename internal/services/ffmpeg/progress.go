package ffmpeg

import (
	"regexp"
	"strconv"
	"strings"
)

// ProgressUpdate reports how far an encode has advanced.
type ProgressUpdate struct {
	Seconds float64
	Total   float64
	Percent float64
}

var (
	durationPattern = regexp.MustCompile(`Duration: (\d{2}:\d{2}:\d{2}\.\d{2})`)
	progressPattern = regexp.MustCompile(`frame=\s*\d+\s+.*?time=(\d{2}:\d{2}:\d{2}\.\d{2})`)
)

// parseDuration recognizes the one-time input duration announcement in the
// encoder's diagnostic stream. It is informational only.
func parseDuration(line string) (float64, bool) {
	m := durationPattern.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	return parseClock(m[1]), true
}

// parseProgressSeconds recognizes the repeating encoded-time announcement and
// returns the elapsed time it reports.
func parseProgressSeconds(line string) (float64, bool) {
	m := progressPattern.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	return parseClock(m[1]), true
}

// parseClock converts an HH:MM:SS.ff clock string to seconds. Malformed
// input yields zero rather than an error; the stream is noisy and a bad line
// is just skipped by the caller.
func parseClock(value string) float64 {
	parts := strings.Split(value, ":")
	if len(parts) != 3 {
		return 0
	}
	h, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0
	}
	m, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return 0
	}
	s, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return 0
	}
	return h*3600 + m*60 + s
}
