package classification

import (
	"strings"
	"time"
)

// Confidence enum
type Confidence string

const (
	ConfidenceHigh   Confidence = "High"
	ConfidenceMedium Confidence = "Medium"
	ConfidenceLow    Confidence = "Low"
)

// Sentinel labels substituted for missing or blank fields.
const (
	UnknownType     = "Unknown Type"
	UnknownFormat   = "Unknown Format"
	UnknownCategory = "Unknown Category"
	UnknownLanguage = "Unknown Language"
)

const (
	MinKeywords = 3
	MaxKeywords = 15
)

// Classification is the oracle's verdict about one web resource.
// Values are never mutated after Decode; use WithDefaults to get a consumable copy.
type Classification struct {
	URLType              string     `json:"urlType,omitempty"`
	ContentFormat        string     `json:"contentFormat"`
	ContentTypeHierarchy []string   `json:"contentTypeHierarchy"`
	PrimaryLanguage      string     `json:"primaryLanguage"`
	Confidence           Confidence `json:"confidence"`
	Keywords             []string   `json:"keywords"`
}

// WithDefaults returns a copy where every missing or blank field carries its sentinel label.
// Keywords are trimmed, deduplicated case-insensitively and capped at MaxKeywords.
func (c Classification) WithDefaults() Classification {
	out := Classification{
		URLType:         orDefault(c.URLType, UnknownType),
		ContentFormat:   orDefault(c.ContentFormat, UnknownFormat),
		PrimaryLanguage: orDefault(c.PrimaryLanguage, UnknownLanguage),
		Confidence:      ParseConfidence(string(c.Confidence)),
	}

	out.ContentTypeHierarchy = make([]string, 0, len(c.ContentTypeHierarchy))
	for _, label := range c.ContentTypeHierarchy {
		out.ContentTypeHierarchy = append(out.ContentTypeHierarchy, orDefault(label, UnknownCategory))
	}
	if len(out.ContentTypeHierarchy) == 0 {
		out.ContentTypeHierarchy = []string{UnknownCategory}
	}

	seen := make(map[string]struct{}, len(c.Keywords))
	out.Keywords = make([]string, 0, len(c.Keywords))
	for _, kw := range c.Keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		key := strings.ToLower(kw)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out.Keywords = append(out.Keywords, kw)
		if len(out.Keywords) == MaxKeywords {
			break
		}
	}
	return out
}

// ParseConfidence maps free-form oracle text onto the Confidence enum, defaulting to Low.
func ParseConfidence(raw string) Confidence {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "high":
		return ConfidenceHigh
	case "medium", "moderate":
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

func orDefault(s, fallback string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback
	}
	return s
}

// RawObservation holds one oracle reply on its way to the sanitizer. It is never persisted.
type RawObservation struct {
	ResourceID    string
	URL           string
	RawOracleText string
	Timestamp     time.Time
}

// HistoryEntry is one past analysis. A nil Classification marks a failed or skipped analysis.
type HistoryEntry struct {
	ID             string          `json:"id"`
	URL            string          `json:"url"`
	Classification *Classification `json:"classification,omitempty"`
	Error          string          `json:"error,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Classified reports whether the entry takes part in aggregation.
func (e HistoryEntry) Classified() bool { return e.Classification != nil }
