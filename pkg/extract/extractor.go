package extract

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"
)

// DefaultMaxChars bounds extracted text so prompts stay a reasonable size.
const DefaultMaxChars = 200_000

// Result is the plain text pulled out of an uploaded file.
type Result struct {
	Content  string
	Metadata map[string]string
}

// Extractor converts uploaded reference files into plain text.
type Extractor struct {
	maxChars int
}

func New() *Extractor {
	return &Extractor{maxChars: DefaultMaxChars}
}

// NewWithLimit returns an extractor that truncates output at maxChars runes.
func NewWithLimit(maxChars int) *Extractor {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return &Extractor{maxChars: maxChars}
}

// Extract pulls plain text from data based on the file extension of filename.
// Unknown extensions are treated as plain text.
func (e *Extractor) Extract(filename string, data []byte) (Result, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".pdf":
		return e.extractPDF(data)
	case ".html", ".htm":
		return e.extractHTML(data)
	default:
		return e.extractText(data)
	}
}

func (e *Extractor) extractPDF(data []byte) (Result, error) {
	// Try pdftotext first (better support for complex PDFs)
	res, err := e.extractPDFWithPdftotext(data)
	if err == nil && res.Content != "" {
		return res, nil
	}
	// Fallback to Go library
	return e.extractPDFWithGoLib(data)
}

// extractPDFWithPdftotext uses the system pdftotext tool (poppler-utils)
func (e *Extractor) extractPDFWithPdftotext(data []byte) (Result, error) {
	if _, err := exec.LookPath("pdftotext"); err != nil {
		return Result{}, fmt.Errorf("pdftotext not found: %w", err)
	}

	tmp, err := os.CreateTemp("", "upload-*.pdf")
	if err != nil {
		return Result{}, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return Result{}, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	cmd := exec.Command("pdftotext", "-layout", "-enc", "UTF-8", tmp.Name(), "-")
	output, err := cmd.Output()
	if err != nil {
		return Result{}, fmt.Errorf("pdftotext failed: %w", err)
	}

	text := normalizeText(string(output))
	if text == "" {
		return Result{}, fmt.Errorf("no text extracted from PDF")
	}
	return e.finish(text, map[string]string{"extractor": "pdftotext"}), nil
}

// extractPDFWithGoLib uses the Go PDF library (fallback)
func (e *Extractor) extractPDFWithGoLib(data []byte) (Result, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Result{}, fmt.Errorf("open pdf: %w", err)
	}
	totalPages := reader.NumPage()
	var parts []string
	for i := 1; i <= totalPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// Skip problematic pages instead of failing entirely
			continue
		}
		text = normalizeText(text)
		if text != "" {
			parts = append(parts, text)
		}
	}
	joined := strings.Join(parts, "\n")
	if joined == "" {
		return Result{}, fmt.Errorf("no text extracted from PDF")
	}
	return e.finish(joined, map[string]string{
		"extractor": "pdf",
		"pages":     strconv.Itoa(totalPages),
	}), nil
}

func (e *Extractor) extractHTML(data []byte) (Result, error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return Result{}, fmt.Errorf("parse html: %w", err)
	}
	text := normalizeText(extractText(doc))
	return e.finish(text, map[string]string{"extractor": "html"}), nil
}

func (e *Extractor) extractText(data []byte) (Result, error) {
	text := normalizeText(string(data))
	return e.finish(text, map[string]string{"extractor": "text"}), nil
}

func (e *Extractor) finish(text string, meta map[string]string) Result {
	runes := []rune(text)
	if len(runes) > e.maxChars {
		text = strings.TrimSpace(string(runes[:e.maxChars]))
		meta["truncated"] = "true"
	}
	return Result{Content: text, Metadata: meta}
}

func normalizeText(text string) string {
	text = strings.ReplaceAll(text, "\x00", " ")
	text = strings.ToValidUTF8(text, "")
	lines := strings.Split(text, "\n")
	var out []string
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

func extractText(n *html.Node) string {
	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		switch node.Type {
		case html.TextNode:
			buf.WriteString(node.Data)
			buf.WriteString(" ")
		case html.ElementNode:
			if node.Data == "script" || node.Data == "style" {
				return
			}
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
		if node.Type == html.ElementNode && (node.Data == "p" || node.Data == "br" || node.Data == "div" || node.Data == "li") {
			buf.WriteString("\n")
		}
	}
	walk(n)
	return buf.String()
}
