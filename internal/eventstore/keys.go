package eventstore

import (
	"cmp"
	"slices"
	"strconv"
	"strings"
)

const (
	// SessionsPrefix is the root of every event key.
	SessionsPrefix = "sessions/"
	keyDelimiter   = "/"
	keySuffix      = ".json"
)

// SessionPrefix is the listing prefix holding all of a session's events.
func SessionPrefix(sessionID string) string {
	return SessionsPrefix + sessionID + keyDelimiter
}

// EventKey builds sessions/{session}/{millis}_{eventID}.json.
func EventKey(sessionID string, millis int64, eventID string) string {
	return SessionPrefix(sessionID) + strconv.FormatInt(millis, 10) + "_" + eventID + keySuffix
}

// SessionFromPrefix extracts the session id from a common prefix like "sessions/abc/".
func SessionFromPrefix(prefix string) (string, bool) {
	rest, ok := strings.CutPrefix(prefix, SessionsPrefix)
	if !ok {
		return "", false
	}
	id, _, _ := strings.Cut(rest, keyDelimiter)
	if id == "" {
		return "", false
	}
	return id, true
}

// sortEventKeys orders keys chronologically. Timestamps are written without padding, so
// a shorter leading digit run is an earlier time; equal widths fall back to byte order,
// which also makes the event id the tiebreak. Keys of nested sessions (a "/" after the
// prefix) follow the session's own events in byte order.
func sortEventKeys(prefix string, keys []string) {
	slices.SortFunc(keys, func(a, b string) int {
		ra, rb := strings.TrimPrefix(a, prefix), strings.TrimPrefix(b, prefix)
		na, nb := strings.Contains(ra, keyDelimiter), strings.Contains(rb, keyDelimiter)
		if na != nb {
			if na {
				return 1
			}
			return -1
		}
		if !na {
			if c := cmp.Compare(leadingDigits(ra), leadingDigits(rb)); c != 0 {
				return c
			}
		}
		return strings.Compare(a, b)
	})
}

func leadingDigits(s string) int {
	n := 0
	for n < len(s) && s[n] >= '0' && s[n] <= '9' {
		n++
	}
	return n
}
