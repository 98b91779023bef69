package trends

import (
	"fmt"
	"io"
	"strings"
	"unicode"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/ibeckermayer/trendpersona/internal/types"
)

// Parse reads the trend table: the first `scan` body rows, each carrying an
// <a class="tweet"> with the trend name, link and tweetcount attribute.
// Rows without such a link are skipped but still count towards scan.
func Parse(r io.Reader, scan int) ([]types.Trend, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse trends page: %w", err)
	}

	var rows []*html.Node
	walk(doc, func(n *html.Node) {
		if n.Type != html.ElementNode || n.DataAtom != atom.Tbody {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && c.DataAtom == atom.Tr {
				rows = append(rows, c)
			}
		}
	})

	var trends []types.Trend
	for i, row := range rows {
		if i >= scan {
			break
		}
		link := findTweetLink(row)
		if link == nil {
			continue
		}
		name := strings.Join(strings.Fields(textContent(link)), " ")
		if name == "" {
			continue
		}
		count := strings.TrimSpace(attr(link, "tweetcount"))
		if count == "" {
			count = "N/A"
		}
		trends = append(trends, types.Trend{
			Rank:  len(trends) + 1,
			Name:  name,
			URL:   attr(link, "href"),
			Count: count,
		})
	}

	return trends, nil
}

// LatinScript reports whether name is written in Latin script (which covers
// English and Turkish). Digits, spaces and common punctuation are allowed;
// anything else, emoji included, is not.
func LatinScript(name string) bool {
	for _, r := range name {
		switch {
		case r <= unicode.MaxASCII:
		case unicode.IsLetter(r) && unicode.Is(unicode.Latin, r):
		case unicode.In(r, unicode.Pd, unicode.Po, unicode.Ps, unicode.Pe, unicode.Pc, unicode.Sm, unicode.Zs):
		default:
			return false
		}
	}
	return true
}

func walk(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func findTweetLink(n *html.Node) *html.Node {
	var found *html.Node
	walk(n, func(c *html.Node) {
		if found != nil || c.Type != html.ElementNode || c.DataAtom != atom.A {
			return
		}
		for _, class := range strings.Fields(attr(c, "class")) {
			if class == "tweet" {
				found = c
				return
			}
		}
	})
	return found
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	walk(n, func(c *html.Node) {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	})
	return sb.String()
}
