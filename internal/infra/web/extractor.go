package web

import (
	"bytes"
	"mime"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// Extractor turns markup into whitespace-collapsed plain text.
type Extractor struct{}

func NewExtractor() *Extractor { return &Extractor{} }

// Extract decodes body to UTF-8 and returns its visible text. HTML has script, style and
// noscript elements dropped. Plain text and JSON pass through. Binary formats yield "".
func (e *Extractor) Extract(body []byte, contentType string) (string, error) {
	mediaType, _, _ := mime.ParseMediaType(contentType)
	mediaType = strings.ToLower(mediaType)

	switch {
	case mediaType == "", strings.Contains(mediaType, "html"), strings.HasSuffix(mediaType, "xml"):
		return e.fromMarkup(body, contentType)
	case strings.HasPrefix(mediaType, "text/"), strings.HasSuffix(mediaType, "json"):
		data, err := toUTF8(body, contentType)
		if err != nil {
			return "", err
		}
		return collapse(string(data)), nil
	default:
		return "", nil
	}
}

func (e *Extractor) fromMarkup(body []byte, contentType string) (string, error) {
	data, err := toUTF8(body, contentType)
	if err != nil {
		return "", err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", err
	}

	// Remove script & style
	doc.Find("script,noscript,style,template").Remove()

	var parts []string
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		parts = append(parts, title)
	}
	if desc := strings.TrimSpace(doc.Find(`meta[name="description"]`).AttrOr("content", "")); desc != "" {
		parts = append(parts, desc)
	}
	for _, n := range doc.Find("body").Nodes {
		parts = appendText(parts, n)
	}
	return collapse(strings.Join(parts, " ")), nil
}

// appendText collects text nodes separately so adjacent blocks do not run together.
func appendText(parts []string, n *html.Node) []string {
	if n.Type == html.TextNode {
		return append(parts, n.Data)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		parts = appendText(parts, c)
	}
	return parts
}

func toUTF8(data []byte, contentType string) ([]byte, error) {
	enc, _, _ := charset.DetermineEncoding(data, contentType)
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		// fallback: if already utf-8, continue
		if !utf8.Valid(data) {
			return nil, err
		}
		return data, nil
	}
	return out, nil
}

func collapse(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}
