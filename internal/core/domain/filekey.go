package domain

import (
	"errors"
	"regexp"
)

var (
	bareKeyRe  = regexp.MustCompile(`^[a-zA-Z0-9_-]{10,64}$`)
	pathKeyRe  = regexp.MustCompile(`/(?:file|design|proto)/([a-zA-Z0-9_-]{10,64})`)
	queryKeyRe = regexp.MustCompile(`[?&]key=([a-zA-Z0-9_-]{10,64})`)
)

// ExtractFileKey resolves a file key from a full design-tool URL or returns
// the input unchanged when it already looks like a key. Supports /file/,
// /design/ and /proto/ URL shapes plus a key= query parameter fallback.
func ExtractFileKey(urlOrKey string) (string, error) {
	if urlOrKey == "" {
		return "", WrapError(ErrInvalidInput, "extract file key", errors.New("figma_url or file_key is required"))
	}
	if bareKeyRe.MatchString(urlOrKey) {
		return urlOrKey, nil
	}
	if m := pathKeyRe.FindStringSubmatch(urlOrKey); m != nil {
		return m[1], nil
	}
	if m := queryKeyRe.FindStringSubmatch(urlOrKey); m != nil {
		return m[1], nil
	}
	return "", WrapError(ErrInvalidInput, "extract file key", errors.New("could not extract a file key from the given URL"))
}
