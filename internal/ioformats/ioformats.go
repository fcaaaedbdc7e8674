// Package ioformats reads URL lists and history dumps for the CLI, and writes NDJSON.
package ioformats

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bryanwahyu/webtaxon/internal/domain/classification"
)

// maxLine bounds a single NDJSON record.
const maxLine = 4 << 20

// ReadURLs reads URLs from a CSV file (header with a "url" column) or an NDJSON file
// (one URL or {"url": "..."} per line). Unknown extensions try CSV first.
func ReadURLs(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return URLsFromCSV(bytes.NewReader(data))
	case ".ndjson", ".jsonl":
		return URLsFromNDJSON(bytes.NewReader(data))
	default:
		if urls, err := URLsFromCSV(bytes.NewReader(data)); err == nil && len(urls) > 0 {
			return urls, nil
		}
		return URLsFromNDJSON(bytes.NewReader(data))
	}
}

func URLsFromCSV(r io.Reader) ([]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.New("empty csv")
	}

	col := -1
	for i, h := range rows[0] {
		if strings.EqualFold(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")), "url") {
			col = i
			break
		}
	}
	if col == -1 {
		return nil, errors.New("csv must contain a 'url' header column")
	}

	var out []string
	for _, row := range rows[1:] {
		if col < len(row) {
			if u := strings.TrimSpace(row[col]); u != "" {
				out = append(out, u)
			}
		}
	}
	return out, nil
}

func URLsFromNDJSON(r io.Reader) ([]string, error) {
	var out []string
	err := eachLine(r, func(line string) error {
		if strings.HasPrefix(line, "{") {
			var obj struct {
				URL string `json:"url"`
			}
			if err := json.Unmarshal([]byte(line), &obj); err == nil && obj.URL != "" {
				out = append(out, obj.URL)
				return nil
			}
		}
		// anything else is taken as the url itself
		out = append(out, line)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, errors.New("no urls found in ndjson")
	}
	return out, nil
}

// ReadHistory decodes NDJSON history entries in file order. Malformed lines are errors.
func ReadHistory(r io.Reader) ([]classification.HistoryEntry, error) {
	var out []classification.HistoryEntry
	n := 0
	err := eachLine(r, func(line string) error {
		n++
		var e classification.HistoryEntry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			return fmt.Errorf("history line %d: %w", n, err)
		}
		out = append(out, e)
		return nil
	})
	return out, err
}

// WriteNDJSON writes one JSON document per item.
func WriteNDJSON[T any](w io.Writer, items []T) error {
	enc := json.NewEncoder(w)
	for _, it := range items {
		if err := enc.Encode(it); err != nil {
			return err
		}
	}
	return nil
}

func eachLine(r io.Reader, fn func(line string) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if err := fn(line); err != nil {
			return err
		}
	}
	return sc.Err()
}
