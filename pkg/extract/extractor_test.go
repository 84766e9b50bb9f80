package extract

import (
	"strings"
	"testing"
)

func TestExtractPlainText(t *testing.T) {
	e := New()
	res, err := e.Extract("notes.txt", []byte("  hello   world \n\n second  line \x00"))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	want := "hello world\nsecond line"
	if res.Content != want {
		t.Fatalf("content = %q, want %q", res.Content, want)
	}
	if res.Metadata["extractor"] != "text" {
		t.Fatalf("metadata = %v", res.Metadata)
	}
}

func TestExtractHTMLStripsScripts(t *testing.T) {
	e := New()
	page := `<html><head><style>p{color:red}</style></head><body>
		<p>first paragraph</p>
		<script>alert("nope")</script>
		<p>second paragraph</p>
	</body></html>`
	res, err := e.Extract("page.html", []byte(page))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if strings.Contains(res.Content, "alert") || strings.Contains(res.Content, "color:red") {
		t.Fatalf("script/style leaked into content: %q", res.Content)
	}
	if !strings.Contains(res.Content, "first paragraph") || !strings.Contains(res.Content, "second paragraph") {
		t.Fatalf("missing body text: %q", res.Content)
	}
}

func TestExtractMarkdownPassthrough(t *testing.T) {
	e := New()
	res, err := e.Extract("readme.md", []byte("# Title\n\nSome body text."))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !strings.Contains(res.Content, "# Title") {
		t.Fatalf("markdown markers stripped: %q", res.Content)
	}
}

func TestExtractTruncates(t *testing.T) {
	e := NewWithLimit(10)
	res, err := e.Extract("big.txt", []byte(strings.Repeat("a", 50)))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(res.Content) != 10 {
		t.Fatalf("content length = %d, want 10", len(res.Content))
	}
	if res.Metadata["truncated"] != "true" {
		t.Fatalf("metadata = %v", res.Metadata)
	}
}

func TestExtractBadPDF(t *testing.T) {
	e := New()
	if _, err := e.Extract("broken.pdf", []byte("not a pdf at all")); err == nil {
		t.Fatal("expected error for invalid pdf")
	}
}
