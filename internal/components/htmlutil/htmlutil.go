package htmlutil

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

var innerWhitespace = regexp.MustCompile(`\s\s+`)

func removeNonPrintable(s string) string {
	newStr := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) || unicode.IsSpace(c) {
			newStr.WriteRune(c)
		}
	}
	return newStr.String()
}

// NormalizeText strips non-printable characters, trims the ends and
// collapses inner runs of whitespace into a single space.
func NormalizeText(s string) string {
	s = removeNonPrintable(s)
	s = strings.TrimSpace(s)
	s = innerWhitespace.ReplaceAllString(s, " ")
	return s
}

// Text returns the normalized text of every node in a selection.
func Text(sel *goquery.Selection) string {
	var out strings.Builder
	for _, n := range sel.Nodes {
		out.WriteString(GetText(n))
		out.WriteString(" ")
	}
	return NormalizeText(out.String())
}

// DigitsOnly strips every character that is not an ascii digit,
// ex. "#1,234" -> "1234".
func DigitsOnly(s string) string {
	var out strings.Builder
	for _, c := range s {
		if c >= '0' && c <= '9' {
			out.WriteRune(c)
		}
	}
	return out.String()
}

type Anchor struct {
	Name string
	Href string
	// Path is the path component of Href, empty if Href could not be parsed.
	Path string
}

// GetAnchor reads the name and href of an anchor element.
func GetAnchor(sel *goquery.Selection) (Anchor, bool) {
	href, ok := sel.Attr("href")
	if !ok {
		return Anchor{}, false
	}

	anchor := Anchor{
		Name: Text(sel),
		Href: href,
	}
	link, err := url.Parse(href)
	if err == nil {
		anchor.Path = link.Path
	}
	return anchor, true
}
