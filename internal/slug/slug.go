package slug

import (
	"errors"
	"fmt"
	"net/url"
)

var (
	ErrReserved = errors.New("slug is a reserved token")
	ErrEmpty    = errors.New("slug must be at least 1 character long")
)

// reserved slugs collide with fixed routes.
var reserved = map[string]bool{
	"slugs": true,
	"ping":  true,
}

// Normalize turns a client supplied slug into its store key: the string
// percent-encoded as a single URL path segment. The reserved check runs on
// the raw input.
func Normalize(candidate string) (string, error) {
	if reserved[candidate] {
		return "", fmt.Errorf("%w: %q", ErrReserved, candidate)
	}

	key := url.PathEscape(candidate)
	if len(key) == 0 {
		return "", ErrEmpty
	}

	return key, nil
}

// FromPath canonicalizes an escaped path segment taken from a request URL
// into the key form produced by Normalize.
func FromPath(segment string) (string, error) {
	decoded, err := url.PathUnescape(segment)
	if err != nil {
		return "", fmt.Errorf("invalid slug path segment: %w", err)
	}

	key := url.PathEscape(decoded)
	if len(key) == 0 {
		return "", ErrEmpty
	}

	return key, nil
}
