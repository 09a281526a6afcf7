package backend

import (
	"strings"
	"time"
)

// timestampLayout is YYYYMMDDHHMMSS.
const timestampLayout = "20060102150405"

// DetectTimestamp recognizes the path shape some sync clients use to request
// a modification-time update: the first segment after the root is a
// YYYYMMDDHHMMSS timestamp followed by exactly one space.
//
//	"/20221003093709 /Home/School" -> 2022-10-03 09:37:09 UTC, "/Home/School"
//
// Any deviation (no trailing space, short or invalid timestamp) reports no
// match, so ordinary paths are never misread.
func DetectTimestamp(p string) (time.Time, string, bool) {
	components := pathComponents(p)
	if len(components) < 2 {
		return time.Time{}, "", false
	}

	candidate := components[1]
	if !strings.HasSuffix(candidate, " ") {
		return time.Time{}, "", false
	}
	candidate = strings.TrimSuffix(candidate, " ")

	if len(candidate) != len(timestampLayout) || !allDigits(candidate) {
		return time.Time{}, "", false
	}

	ts, err := time.ParseInLocation(timestampLayout, candidate, time.UTC)
	if err != nil {
		return time.Time{}, "", false
	}

	rest := append([]string{components[0]}, components[2:]...)
	return ts, joinComponents(rest), true
}

// pathComponents splits p into the root marker ("/" for absolute paths)
// followed by its non-empty segments.
func pathComponents(p string) []string {
	var components []string
	if strings.HasPrefix(p, "/") {
		components = append(components, "/")
	}
	for _, seg := range strings.Split(p, "/") {
		if seg != "" {
			components = append(components, seg)
		}
	}
	return components
}

func joinComponents(components []string) string {
	if len(components) == 0 {
		return ""
	}
	if components[0] == "/" {
		return "/" + strings.Join(components[1:], "/")
	}
	return strings.Join(components, "/")
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
