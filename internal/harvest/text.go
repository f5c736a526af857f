package harvest

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var blankRuns = regexp.MustCompile(`\n{3,}`)

// htmlToText renders an HTML fragment as plain text. When the fragment
// carries a rendered post body (div.md), only that body is kept.
func htmlToText(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.TrimSpace(fragment)
	}

	root := doc.Find("div.md").First()
	if root.Length() == 0 {
		root = doc.Find("body")
	}

	root.Find("script, style").Remove()
	root.Find("br").ReplaceWithHtml("\n")
	root.Find("p, li, pre, blockquote, h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n\n")
	})

	lines := strings.Split(root.Text(), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}
	text := blankRuns.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.TrimSpace(text)
}
