package creator

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// PrintLiveStatuses writes one line per status. outputFlags selects the
// columns in order: n (name), p (platform), t (stream title), v (viewer
// count), u (stream URL), l (live/featured).
func PrintLiveStatuses(w io.Writer, statuses []LiveStatus, outputFlags, delimiter string, liveOnly bool) error {
	for _, s := range statuses {
		if liveOnly && !s.IsLive {
			continue
		}
		line, err := createLine(s, outputFlags, delimiter)
		if err != nil {
			return err
		}
		if len(line) > 0 {
			fmt.Fprintln(w, line)
		}
	}
	return nil
}

func createLine(s LiveStatus, outputFlags, delimiter string) (string, error) {
	var line string
	for _, f := range outputFlags {
		switch f {
		case 'n':
			line += s.Name + delimiter
		case 'p':
			platform := string(s.Platform)
			if platform == "" {
				platform = "-"
			}
			line += platform + delimiter
		case 't':
			line += s.StreamTitle + delimiter
		case 'v':
			line += strconv.Itoa(s.ViewerCount) + delimiter
		case 'u':
			line += s.StreamURL + delimiter
		case 'l':
			if s.IsLive {
				line += "live" + delimiter
			} else {
				line += "featured" + delimiter
			}
		default:
			return "", fmt.Errorf("invalid print flag: %q", f)
		}
	}
	return strings.TrimSuffix(line, delimiter), nil
}
