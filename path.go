package zip

import "strings"

// sanitizeEntryName validates and normalizes a name to be used for a new
// writer entry, per Invariant 3: it must be non-empty, not absolute (neither
// "/foo" nor "X:foo"), and contain no ".." segment. Backslashes are
// normalized to forward slashes. isDir controls whether a trailing slash is
// required (true) or forbidden (false).
func sanitizeEntryName(name string, isDir bool) (string, error) {
	if name == "" {
		return "", ErrInvalidPath
	}

	normalized := strings.ReplaceAll(name, `\`, "/")

	if strings.HasPrefix(normalized, "/") {
		return "", ErrInvalidPath
	}
	if len(normalized) >= 2 && normalized[1] == ':' && isASCIILetter(normalized[0]) {
		return "", ErrInvalidPath
	}

	trimmed := strings.TrimSuffix(normalized, "/")
	for _, segment := range strings.Split(trimmed, "/") {
		if segment == ".." {
			return "", ErrInvalidPath
		}
	}

	hasTrailingSlash := strings.HasSuffix(normalized, "/")
	switch {
	case isDir && !hasTrailingSlash:
		normalized += "/"
	case !isDir && hasTrailingSlash:
		return "", ErrInvalidPath
	}

	return normalized, nil
}

func isASCIILetter(b byte) bool {
	return b >= 'A' && b <= 'Z' || b >= 'a' && b <= 'z'
}
