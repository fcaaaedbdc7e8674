package prompt

import (
	"fmt"
	"regexp"
	"strings"
)

// schema describes the JSON object the oracle must return.
const schema = `{
  "urlType": "<kind of site or page, e.g. Blog, News, E-commerce, Documentation, Forum>",
  "contentFormat": "<HTML, PDF, Video, Image, JSON, Plain Text, ...>",
  "contentTypeHierarchy": ["<broad category>", "<narrower category>", "<most specific category>"],
  "primaryLanguage": "<language name in English>",
  "confidence": "<High|Medium|Low>",
  "keywords": ["<3 to 15 short keywords>"]
}`

// Classification builds the single prompt sent to the oracle for one resource.
// The output depends only on its arguments.
func Classification(url, text string) string {
	var b strings.Builder
	b.WriteString("You are a web content librarian. Classify the web resource below.\n\n")
	b.WriteString("Requirements:\n")
	b.WriteString("- Respond with exactly one JSON object inside a ```json code block and nothing else.\n")
	b.WriteString("- contentTypeHierarchy goes from the broadest category to the most specific one and has at least one element.\n")
	b.WriteString("- keywords holds between 3 and 15 distinct entries.\n")
	b.WriteString("- confidence is one of High, Medium or Low.\n\n")
	b.WriteString("Schema:\n")
	b.WriteString(schema)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "URL: %s\n\n", url)
	b.WriteString("Extracted text:\n\"\"\"\n")
	b.WriteString(text)
	b.WriteString("\n\"\"\"\n")
	return b.String()
}

var (
	urlLine   = regexp.MustCompile(`(?m)^URL: (.*)$`)
	textBlock = regexp.MustCompile(`(?s)Extracted text:\n"""\n(.*)\n"""\n?$`)
)

// Fields recovers the url and text a prompt was built from.
func Fields(p string) (url, text string, ok bool) {
	u := urlLine.FindStringSubmatch(p)
	t := textBlock.FindStringSubmatch(p)
	if u == nil || t == nil {
		return "", "", false
	}
	return strings.TrimSpace(u[1]), t[1], true
}
