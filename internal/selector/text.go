package selector

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/text/unicode/norm"
)

// NodeText returns the visible text of every node in sel. Text nodes are
// joined with single spaces, <br> acts as a separator, whitespace runs
// collapse to one space, and the result is NFC-normalized.
func NodeText(sel *goquery.Selection) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
			return
		case html.ElementNode:
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript, atom.Br:
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return Clean(strings.Join(parts, " "))
}

// Clean collapses whitespace and applies NFC normalization.
func Clean(s string) string {
	return norm.NFC.String(strings.Join(strings.Fields(s), " "))
}
