package classification

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"regexp"
	"strings"
)

const fence = "```"

// openingFence matches a ``` marker with an optional json language tag and the rest of its line.
var openingFence = regexp.MustCompile("```(?i:json)?[ \t]*\r?\n?")

// Sanitize turns untrusted oracle text into a parsed JSON value.
//
// Candidates are tried in order: the content between the first opening fence and each
// following closing fence (nearest first), then the whole trimmed text. Each one is
// decoded with strict JSON grammar; numbers stay json.Number so large integers survive.
// The value is returned as parsed; shape checks happen in Decode and WithDefaults.
func Sanitize(raw string) (any, error) {
	var lastErr error
	for _, candidate := range candidates(raw) {
		v, err := decodeStrict(candidate)
		if err == nil {
			return v, nil
		}
		lastErr = err
	}
	return nil, &SanitizeError{Excerpt: Excerpt(raw, ExcerptLimit), Err: lastErr}
}

func candidates(raw string) []string {
	var out []string
	if loc := openingFence.FindStringIndex(raw); loc != nil {
		body := raw[loc[1]:]
		// a ``` inside a JSON string must not end the block, so every closing fence is a candidate
		for end := 0; ; {
			i := strings.Index(body[end:], fence)
			if i < 0 {
				break
			}
			end += i
			out = append(out, strings.TrimSpace(body[:end]))
			end += len(fence)
		}
	}
	return append(out, strings.TrimSpace(raw))
}

func decodeStrict(s string) (any, error) {
	if s == "" {
		return nil, errors.New("empty candidate")
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("trailing data after JSON value")
	}
	return v, nil
}

// Parse runs Sanitize and Decode on an observation.
func Parse(obs RawObservation) (Classification, any, error) {
	v, err := Sanitize(obs.RawOracleText)
	if err != nil {
		return Classification{}, nil, err
	}
	return Decode(v), v, nil
}
