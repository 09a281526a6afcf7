package backend

import (
	"path"
	"strings"
	"unicode/utf8"
)

// NormalizeAndValidate resolves "." and ".." in raw without any filesystem
// access and rejects results that still carry relative components.
//
// A ".." removes the previously kept segment; with nothing left to remove it
// is kept itself, so escaping the root surfaces as a literal "..". Empty
// segments and "." segments are dropped, except a leading "." of a relative
// path. A trailing slash on raw is preserved.
//
// Examples:
//
//	"/abc/test/../thing.png" -> "/abc/thing.png"
//	"/home/dys/../"          -> "/home/"
//	"/."                     -> "/"
//	"/abc/../../thing.png"   -> ErrPathInvalid
func NormalizeAndValidate(raw string) (string, error) {
	if !utf8.ValidString(raw) {
		return "", newError(ErrPathInvalid, "", "Path was not a valid utf8 text")
	}

	normalized := normalize(raw)

	if strings.Contains(normalized, "./") ||
		strings.Contains(normalized, "/.") ||
		strings.Contains(normalized, "..") {
		return "", newError(ErrPathInvalid, raw, "Path contained relative elements after normalizing")
	}

	return normalized, nil
}

func normalize(raw string) string {
	absolute := strings.HasPrefix(raw, "/")

	var segments []string
	for i, seg := range strings.Split(raw, "/") {
		switch seg {
		case "":
		case ".":
			if i == 0 && !absolute {
				segments = append(segments, seg)
			}
		case "..":
			if len(segments) > 0 {
				segments = segments[:len(segments)-1]
			} else {
				segments = append(segments, seg)
			}
		default:
			segments = append(segments, seg)
		}
	}

	out := strings.Join(segments, "/")
	if absolute {
		out = "/" + out
	}
	if strings.HasSuffix(raw, "/") && !strings.HasSuffix(out, "/") {
		out += "/"
	}
	return out
}

// SplitParentAndName returns the parent folder and leaf name of a normalized
// path. A trailing slash is ignored. Paths without both parts, such as the
// root, fail with ErrFileNameNotAllowed.
func SplitParentAndName(p string) (parent, name string, err error) {
	trimmed := strings.TrimRight(p, "/")
	if trimmed == "" || !strings.Contains(trimmed, "/") {
		return "", "", newError(ErrFileNameNotAllowed, p,
			"Path must contain a parent and child component")
	}

	name = path.Base(trimmed)
	parent = path.Dir(trimmed)

	if !utf8.ValidString(name) {
		return "", "", newError(ErrFileNameNotAllowed, p, "Filename was not valid utf-8")
	}

	return parent, name, nil
}
