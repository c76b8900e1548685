package sitemap

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"strings"

	"github.com/antchfx/xmlquery"
)

// Element names are matched by local name so prefixed documents still parse.
const (
	sitemapQuery = "//*[local-name()='sitemap']"
	urlQuery     = "//*[local-name()='url']"
)

var gzipMagic = []byte{0x1f, 0x8b}

// XMLParser implements Parser with xmlquery.
type XMLParser struct{}

// NewXMLParser returns a sitemap parser.
func NewXMLParser() *XMLParser {
	return &XMLParser{}
}

// Parse extracts nested sitemap references and URL records in document order.
// Gzip-compressed bodies (sitemap.xml.gz) are inflated first.
func (p *XMLParser) Parse(body []byte) (Document, error) {
	reader, err := openBody(body)
	if err != nil {
		return Document{}, err
	}
	root, err := xmlquery.Parse(reader)
	if err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrParse, err)
	}

	var doc Document
	for _, node := range xmlquery.Find(root, sitemapQuery) {
		loc, ok := childText(node, "loc")
		if !ok || loc == "" {
			continue
		}
		doc.Sitemaps = append(doc.Sitemaps, loc)
	}
	for _, node := range xmlquery.Find(root, urlQuery) {
		doc.URLs = append(doc.URLs, URLRecord{
			Loc:      attrOrNA(node, "loc"),
			LastMod:  attrOrNA(node, "lastmod"),
			Priority: attrOrNA(node, "priority"),
		})
	}
	return doc, nil
}

func openBody(body []byte) (io.Reader, error) {
	if !bytes.HasPrefix(body, gzipMagic) {
		return bytes.NewReader(body), nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: gzip header: %v", ErrParse, err)
	}
	inflated, err := io.ReadAll(io.LimitReader(zr, maxSitemapBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: gzip body: %v", ErrParse, err)
	}
	return bytes.NewReader(inflated), nil
}

// attrOrNA returns the child's text, or NotAvailable when the child is absent.
// A present but empty child stays empty.
func attrOrNA(node *xmlquery.Node, name string) string {
	text, ok := childText(node, name)
	if !ok {
		return NotAvailable
	}
	return text
}

func childText(node *xmlquery.Node, name string) (string, bool) {
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.ElementNode && child.Data == name {
			return strings.TrimSpace(child.InnerText()), true
		}
	}
	return "", false
}
