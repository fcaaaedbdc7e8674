// Package heuristic is an offline oracle that classifies from surface signals in the
// extracted text. It needs no credentials and is used by the CLI and in development.
package heuristic

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"path"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/bryanwahyu/webtaxon/internal/domain/classification"
	"github.com/bryanwahyu/webtaxon/internal/infra/ai/prompt"
)

const maxTopics = 10

var (
	priceRe   = regexp.MustCompile(`[$€£₹]\s?\d|\bRp\s?\d`)
	cartRe    = regexp.MustCompile(`(?i)add\s+to\s+cart|buy\s+now|checkout|in\s+stock`)
	articleRe = regexp.MustCompile(`(?i)\bauthor\b|byline|published|updated|minutes?\s+read|breaking`)
	blogRe    = regexp.MustCompile(`(?i)\bblog\b|posted\s+by|leave\s+a\s+comment`)
	docsRe    = regexp.MustCompile(`(?i)documentation|api\s+reference|getting\s+started|installation|usage`)
	forumRe   = regexp.MustCompile(`(?i)\breplies\b|\bthread\b|\bforum\b|posted\s+in`)
)

type profile struct {
	urlType  string
	category string
	re       *regexp.Regexp
}

// evaluated in order, first profile with the most matches wins
var profiles = []profile{
	{"E-commerce", "Commerce", cartRe},
	{"Documentation", "Reference", docsRe},
	{"Forum", "Community", forumRe},
	{"News", "News", articleRe},
	{"Blog", "Blog", blogRe},
}

var stopwords = map[string]map[string]struct{}{
	"English":    set("the", "and", "of", "to", "in", "is", "for", "with", "that", "this", "are", "was", "you", "your"),
	"Indonesian": set("yang", "dan", "di", "dengan", "untuk", "ini", "itu", "dari", "tidak", "ada", "akan", "kami"),
	"Spanish":    set("el", "la", "los", "las", "que", "por", "para", "con", "una", "del", "es", "como"),
	"French":     set("le", "la", "les", "des", "est", "pour", "avec", "une", "dans", "qui", "sur", "pas"),
	"German":     set("der", "die", "das", "und", "ist", "mit", "nicht", "ein", "eine", "für", "auf", "den"),
}

// languages in tie-break order
var languages = []string{"English", "Indonesian", "Spanish", "French", "German"}

func set(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

// Oracle answers classification prompts locally.
type Oracle struct{}

func New() *Oracle { return &Oracle{} }

func (o *Oracle) Generate(ctx context.Context, p string) (classification.Reply, error) {
	if err := ctx.Err(); err != nil {
		return classification.Reply{}, err
	}
	rawURL, text, ok := prompt.Fields(p)
	if !ok {
		return classification.Reply{}, errors.New("heuristic oracle: unrecognised prompt")
	}

	c := Classify(rawURL, text)
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return classification.Reply{}, err
	}
	return classification.Reply{Text: "```json\n" + string(b) + "\n```"}, nil
}

// Classify derives a classification from the url and extracted text.
func Classify(rawURL, text string) classification.Classification {
	lower := strings.ToLower(text)
	words := tokenize(lower)

	urlType, category, signals := "Website", "General", 0
	for _, pr := range profiles {
		if n := len(pr.re.FindAllStringIndex(lower, -1)); n > signals {
			urlType, category, signals = pr.urlType, pr.category, n
		}
	}
	if priceRe.MatchString(text) && (signals == 0 || urlType == "E-commerce") {
		urlType, category = "E-commerce", "Commerce"
		signals++
	}

	topics := TopTopics(words, maxTopics)
	leaf := "General"
	if len(topics) > 0 {
		leaf = cases.Title(language.Und).String(topics[0])
	}

	confidence := classification.ConfidenceLow
	switch {
	case signals >= 3:
		confidence = classification.ConfidenceHigh
	case signals >= 1:
		confidence = classification.ConfidenceMedium
	}

	return classification.Classification{
		URLType:              urlType,
		ContentFormat:        formatOf(rawURL),
		ContentTypeHierarchy: []string{category, leaf},
		PrimaryLanguage:      detectLanguage(words),
		Confidence:           confidence,
		Keywords:             topics,
	}
}

func formatOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "HTML"
	}
	switch strings.ToLower(path.Ext(u.Path)) {
	case ".pdf":
		return "PDF"
	case ".json":
		return "JSON"
	case ".txt", ".md":
		return "Plain Text"
	case ".png", ".jpg", ".jpeg", ".gif", ".webp", ".svg":
		return "Image"
	case ".mp4", ".webm", ".mov":
		return "Video"
	default:
		return "HTML"
	}
}

func detectLanguage(words []string) string {
	best, hits := classification.UnknownLanguage, 0
	for _, lang := range languages {
		n := 0
		for _, w := range words {
			if _, ok := stopwords[lang][w]; ok {
				n++
			}
		}
		if n > hits {
			best, hits = lang, n
		}
	}
	return best
}

func tokenize(lower string) []string {
	return strings.FieldsFunc(lower, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsNumber(r) })
}

// TopTopics returns the n most frequent words, ignoring stopwords of every known
// language and tokens shorter than three bytes. Ties sort alphabetically.
func TopTopics(words []string, n int) []string {
	freq := map[string]int{}
	for _, w := range words {
		if len(w) < 3 || isStopword(w) {
			continue
		}
		freq[w]++
	}

	type kv struct {
		K string
		V int
	}
	list := make([]kv, 0, len(freq))
	for k, v := range freq {
		list = append(list, kv{k, v})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].V == list[j].V {
			return list[i].K < list[j].K
		}
		return list[i].V > list[j].V
	})
	if n > len(list) {
		n = len(list)
	}
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, list[i].K)
	}
	return out
}

func isStopword(w string) bool {
	for _, words := range stopwords {
		if _, ok := words[w]; ok {
			return true
		}
	}
	return false
}
