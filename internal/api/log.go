package api

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"exportmap/pkg/logging"
)

// statusValueLimit drops URLs and error chains from the status line.
const statusValueLimit = 20

func handleLatestLog(w http.ResponseWriter, r *http.Request) {
	line := logging.GlobalLogCapture.GetLastLine()
	writeJSON(w, http.StatusOK, map[string]string{"log": formatLogLine(line)})
}

// handleEventLog returns up to ?n= recent events, oldest first.
func handleEventLog(w http.ResponseWriter, r *http.Request) {
	n := 20
	if v := r.URL.Query().Get("n"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "n must be a positive integer")
			return
		}
		n = parsed
	}
	lines := logging.GlobalEventCapture.Recent(n)
	if lines == nil {
		lines = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"events": lines})
}

// formatLogLine turns a slog text line into "15:04:05 msg (k=v, k=v)".
// Attributes are sorted and long values are left out. Lines without a msg
// attribute come back unchanged.
func formatLogLine(raw string) string {
	var (
		msg, clock string
		params     []string
	)
	for _, kv := range splitLogfmt(raw) {
		key, val := kv[0], strings.TrimSpace(kv[1])
		switch key {
		case "level":
		case "msg":
			msg = val
		case "time":
			if t, err := time.Parse(time.RFC3339, val); err == nil {
				clock = t.Format("15:04:05")
			}
		default:
			if len(val) <= statusValueLimit {
				params = append(params, key+"="+val)
			}
		}
	}
	if msg == "" {
		return raw
	}

	var b strings.Builder
	if clock != "" {
		b.WriteString(clock + " ")
	}
	b.WriteString(msg)
	if len(params) > 0 {
		slices.Sort(params)
		b.WriteString(" (" + strings.Join(params, ", ") + ")")
	}
	return b.String()
}

// splitLogfmt reads key=value pairs as written by slog.TextHandler, where
// values containing spaces or quotes are Go-quoted. Tokens without '=' are
// skipped.
func splitLogfmt(line string) [][2]string {
	var out [][2]string
	for line = strings.TrimSpace(line); line != ""; line = strings.TrimLeft(line, " ") {
		eq := strings.IndexByte(line, '=')
		sp := strings.IndexByte(line, ' ')
		if eq <= 0 || (sp >= 0 && sp < eq) {
			if sp < 0 {
				break
			}
			line = line[sp:]
			continue
		}
		key, rest := line[:eq], line[eq+1:]

		if strings.HasPrefix(rest, `"`) {
			if q, err := strconv.QuotedPrefix(rest); err == nil {
				val, _ := strconv.Unquote(q)
				out = append(out, [2]string{key, val})
				line = rest[len(q):]
				continue
			}
		}
		end := strings.IndexByte(rest, ' ')
		if end < 0 {
			end = len(rest)
		}
		out = append(out, [2]string{key, rest[:end]})
		line = rest[end:]
	}
	return out
}
