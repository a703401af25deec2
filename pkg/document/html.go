package document

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/text/unicode/norm"
)

// StudyBlockID is the id of the element holding a page's requirements.
const StudyBlockID = "study"

// ParseHTML reads a plan page. Each element child of the study block becomes
// a Block; the first element after each h2 supplies that heading's link list.
func ParseHTML(r io.Reader, ref Ref) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", ref, err)
	}
	study := findByID(root, StudyBlockID)
	if study == nil {
		return nil, fmt.Errorf("%w: %s", ErrStudyBlockNotFound, ref)
	}

	doc := &Document{Ref: ref, Links: make(map[string]map[string]string)}
	var pendingLinks string
	for n := study.FirstChild; n != nil; n = n.NextSibling {
		if n.Type != html.ElementNode {
			continue
		}
		blk := Block{
			Tag:   n.Data,
			ID:    attr(n, "id"),
			Class: strings.Fields(attr(n, "class")),
			Style: attr(n, "style"),
			Lines: lines(n),
		}
		doc.Blocks = append(doc.Blocks, blk)

		if pendingLinks != "" {
			if links := anchors(n); len(links) > 0 {
				doc.Links[pendingLinks] = links
			}
			pendingLinks = ""
		}
		if n.DataAtom == atom.H2 && blk.ID != "" {
			pendingLinks = blk.ID
		}
	}
	return doc, nil
}

// Normalize applies NFC and collapses runs of whitespace, non-breaking
// spaces included.
func Normalize(s string) string {
	s = norm.NFC.String(s)
	return strings.Join(strings.Fields(s), " ")
}

func findByID(n *html.Node, id string) *html.Node {
	if n.Type == html.ElementNode && attr(n, "id") == id {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findByID(c, id); found != nil {
			return found
		}
	}
	return nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// lines collects the non-empty text strings under n, starting a new line at
// every <br>.
func lines(n *html.Node) [][]string {
	out := [][]string{nil}
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			switch {
			case c.Type == html.TextNode:
				if s := Normalize(c.Data); s != "" {
					out[len(out)-1] = append(out[len(out)-1], s)
				}
			case c.Type == html.ElementNode && c.DataAtom == atom.Br:
				out = append(out, nil)
			case c.Type == html.ElementNode && (c.DataAtom == atom.Script || c.DataAtom == atom.Style):
			default:
				walk(c)
			}
		}
	}
	walk(n)

	kept := out[:0]
	for _, l := range out {
		if len(l) > 0 {
			kept = append(kept, l)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	return kept
}

// anchors maps link text to href for every <a> under n.
func anchors(n *html.Node) map[string]string {
	links := make(map[string]string)
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && c.DataAtom == atom.A {
				href := attr(c, "href")
				var text []string
				for _, l := range lines(c) {
					text = append(text, l...)
				}
				if title := strings.Join(text, " "); title != "" && href != "" {
					links[title] = href
				}
				continue
			}
			walk(c)
		}
	}
	walk(n)
	return links
}
