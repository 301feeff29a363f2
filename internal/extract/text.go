package extract

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

var spaceRun = regexp.MustCompile(`[ \t\f\v\x{00a0}]+`)
var blankLines = regexp.MustCompile(`\n\s*\n+`)

// Clean collapses horizontal whitespace, trims each line and drops blank lines
func Clean(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = spaceRun.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	s = strings.Join(lines, "\n")
	s = blankLines.ReplaceAllString(s, "\n")
	return strings.TrimSpace(s)
}

// SplitTerms splits s on any rune in seps and returns the trimmed, non-empty parts
func SplitTerms(s, seps string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return strings.ContainsRune(seps, r)
	})
	terms := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimFunc(p, unicode.IsSpace)
		if p != "" {
			terms = append(terms, p)
		}
	}
	return terms
}

// Submatch returns the first capture group of re in s, or ""
func Submatch(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

// HasPrefixFold reports whether s starts with prefix, ignoring case and surrounding space
func HasPrefixFold(s, prefix string) bool {
	s = strings.TrimSpace(s)
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

// ContainsFold reports whether s contains sub, ignoring case
func ContainsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

// OwnText is the element's text minus its descendants' text
func OwnText(s *goquery.Selection) string {
	var b strings.Builder
	for _, n := range s.Nodes {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				b.WriteString(c.Data)
			}
		}
	}
	return Clean(b.String())
}

var blockTags = map[string]bool{
	"p": true, "div": true, "li": true, "ul": true, "ol": true, "br": true,
	"tr": true, "table": true, "section": true, "blockquote": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"dt": true, "dd": true, "legend": true, "fieldset": true,
}

// BlockText is the element's text with line breaks at block boundaries,
// so list items and paragraphs do not run together
func BlockText(s *goquery.Selection) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
		case html.ElementNode:
			if n.Data == "script" || n.Data == "style" {
				return
			}
			block := blockTags[n.Data]
			if block {
				b.WriteByte('\n')
			}
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				walk(c)
			}
			if block {
				b.WriteByte('\n')
			}
		}
	}
	for _, n := range s.Nodes {
		walk(n)
	}
	return Clean(b.String())
}

// CSSPath builds a selector that addresses s in the live page: its id when it
// has a usable one, otherwise an nth-child chain from the nearest ancestor with an id.
func CSSPath(s *goquery.Selection) string {
	s = s.First()
	var parts []string
	for cur := s; cur.Length() > 0; cur = cur.Parent() {
		name := goquery.NodeName(cur)
		if name == "html" || name == "#document" {
			parts = append(parts, "html")
			break
		}
		if id, ok := cur.Attr("id"); ok && validIdent(id) {
			parts = append(parts, "#"+id)
			break
		}
		index := cur.PrevAll().Length() + 1
		parts = append(parts, name+":nth-child("+strconv.Itoa(index)+")")
	}

	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, " > ")
}

func validIdent(id string) bool {
	if id == "" || unicode.IsDigit(rune(id[0])) {
		return false
	}
	for _, r := range id {
		if !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_') {
			return false
		}
	}
	return true
}
