package domain

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Title returns the whitespace-collapsed text of the first <title> element,
// or "" when html has none or cannot be parsed.
func Title(html string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	return strings.Join(strings.Fields(doc.Find("title").First().Text()), " ")
}
