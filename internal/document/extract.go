// Package document turns uploaded files into plain text for profile parsing
// and retrieval indexing.
package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

// ErrUnsupported is returned for file types Extract cannot read.
var ErrUnsupported = errors.New("unsupported file type")

// ErrEmpty is returned when a file yields no text.
var ErrEmpty = errors.New("no text found in file")

// Extensions lists the file extensions Extract accepts.
var Extensions = []string{".txt", ".md", ".json", ".pdf", ".docx", ".html", ".htm"}

// Supported reports whether filename has an extension Extract can read.
func Supported(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, e := range Extensions {
		if e == ext {
			return true
		}
	}
	return false
}

// Extract returns the text content of data, choosing a reader from the
// extension of filename.
func Extract(filename string, data []byte) (string, error) {
	var (
		text string
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".txt", ".md":
		text = string(data)
	case ".json":
		text, err = jsonText(data)
	case ".pdf":
		text, err = pdfText(data)
	case ".docx":
		text, err = docxText(data)
	case ".html", ".htm":
		text, err = htmlText(data)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupported, ext)
	}
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmpty
	}
	return text, nil
}

// jsonText pretty-prints a JSON document so the model sees one field per line.
func jsonText(data []byte) (string, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return "", fmt.Errorf("invalid json: %w", err)
	}
	return buf.String(), nil
}

func pdfText(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to read pdf: %w", err)
	}
	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("reading pdf page %d: %w", i, err)
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

func docxText(data []byte) (string, error) {
	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to parse docx: %w", err)
	}
	defer doc.Close()
	return stripXMLTags(doc.Editable().GetContent()), nil
}

// stripXMLTags reduces WordprocessingML to its text runs, ending a line at
// each closed paragraph.
func stripXMLTags(content string) string {
	content = strings.ReplaceAll(content, "</w:p>", "\n")
	var sb strings.Builder
	inTag := false
	for _, r := range content {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			sb.WriteRune(r)
		}
	}
	return cleanWhitespace(sb.String())
}

var contentSelectors = []string{"main", "article", ".resume", "#resume", ".content", "#content"}

// htmlText keeps the main content of a page, dropping navigation and scripts.
// Pages saved in a legacy encoding are decoded using their meta charset.
func htmlText(data []byte) (string, error) {
	r, err := charset.NewReader(bytes.NewReader(data), "text/html")
	if err != nil {
		return "", fmt.Errorf("decoding html: %w", err)
	}
	root, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("failed to parse html: %w", err)
	}
	doc := goquery.NewDocumentFromNode(root)
	doc.Find("nav, footer, script, style, noscript").Remove()

	body := doc.Find("body")
	for _, sel := range contentSelectors {
		if s := doc.Find(sel); s.Length() > 0 {
			body = s.First()
			break
		}
	}
	// Block elements would otherwise run together in Text().
	body.Find("p, li, h1, h2, h3, h4, h5, h6, tr, div").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})
	return cleanWhitespace(body.Text()), nil
}

func cleanWhitespace(text string) string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
