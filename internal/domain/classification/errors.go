package classification

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation indicates a malformed or missing input URL.
	ErrValidation = errors.New("invalid request")
	// ErrFetch indicates the origin resource could not be retrieved.
	ErrFetch = errors.New("fetch failed")
	// ErrContentUnavailable indicates the extracted text was empty, so the oracle was not asked.
	ErrContentUnavailable = errors.New("content unavailable")
	// ErrOracleTransport indicates the oracle call itself failed.
	ErrOracleTransport = errors.New("oracle request failed")
	// ErrOracleBlocked indicates the oracle refused the content on policy grounds.
	ErrOracleBlocked = errors.New("content blocked")
	// ErrSanitize indicates the oracle text held no parseable JSON.
	ErrSanitize = errors.New("oracle response is not valid JSON")
	// ErrNotFound indicates a history entry does not exist.
	ErrNotFound = errors.New("not found")
)

// ExcerptLimit bounds raw text carried inside errors.
const ExcerptLimit = 200

// FetchError carries the origin status when one was received.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: http status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrFetch}
	}
	return []error{ErrFetch, e.Err}
}

// BlockedError is returned instead of a classification when the oracle signals a content block.
type BlockedError struct {
	Reason string
}

func (e *BlockedError) Error() string {
	if e.Reason == "" {
		return "content blocked by oracle"
	}
	return "content blocked by oracle: " + e.Reason
}

func (e *BlockedError) Is(target error) bool { return target == ErrOracleBlocked }

// SanitizeError keeps a bounded prefix of the offending text for diagnostics.
type SanitizeError struct {
	Excerpt string
	Err     error
}

func (e *SanitizeError) Error() string {
	return fmt.Sprintf("%s: %q", ErrSanitize.Error(), e.Excerpt)
}

func (e *SanitizeError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrSanitize}
	}
	return []error{ErrSanitize, e.Err}
}

// Excerpt returns at most limit runes of s.
func Excerpt(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}
