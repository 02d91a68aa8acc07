package xhtml

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	kepuberrors "github.com/FocuswithJustin/KepubForge/core/errors"
)

// TestParseValid verifies parsing of a plain XHTML document.
func TestParseValid(t *testing.T) {
	doc, err := Parse([]byte(`<html><body><p>Hello.</p></body></html>`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if doc.Root() == nil || doc.Root().Tag != "html" {
		t.Errorf("unexpected root: %v", doc.Root())
	}
}

// TestParseNamedEntities verifies that common XHTML entities are
// resolved instead of failing the parse.
func TestParseNamedEntities(t *testing.T) {
	doc, err := Parse([]byte(`<p>one&nbsp;two&mdash;three&hellip;</p>`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	want := "one\u00a0two—three…"
	if got := doc.Root().Text(); got != want {
		t.Errorf("text = %q, want %q", got, want)
	}
}

// TestParseEmpty verifies that input without a root element is rejected
// with a ParseError.
func TestParseEmpty(t *testing.T) {
	for _, data := range []string{"", "   ", "<!-- only a comment -->"} {
		_, err := Parse([]byte(data))
		if err == nil {
			t.Errorf("Parse(%q) should fail", data)
			continue
		}
		var perr *kepuberrors.ParseError
		if !kepuberrors.As(err, &perr) {
			t.Errorf("Parse(%q) error %v is not a ParseError", data, err)
		}
	}
}

// TestParseFile verifies file parsing and that the path is recorded on
// parse failures.
func TestParseFile(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "good.xhtml")
	if err := os.WriteFile(good, []byte(`<html><body/></html>`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ParseFile(good); err != nil {
		t.Errorf("ParseFile(good) failed: %v", err)
	}

	bad := filepath.Join(dir, "bad.xhtml")
	if err := os.WriteFile(bad, nil, 0644); err != nil {
		t.Fatal(err)
	}
	_, err := ParseFile(bad)
	var perr *kepuberrors.ParseError
	if !kepuberrors.As(err, &perr) {
		t.Fatalf("ParseFile(bad) error %v is not a ParseError", err)
	}
	if perr.Path != bad {
		t.Errorf("ParseError.Path = %q, want %q", perr.Path, bad)
	}

	if _, err := ParseFile(filepath.Join(dir, "missing.xhtml")); err == nil {
		t.Error("ParseFile(missing) should fail")
	}
}

// TestAnnotated verifies detection of previously generated spans.
func TestAnnotated(t *testing.T) {
	tests := []struct {
		name string
		data string
		want bool
	}{
		{
			name: "plain document",
			data: `<html><body><p>Text.</p></body></html>`,
			want: false,
		},
		{
			name: "generated span",
			data: `<html><body><p><span class="koboSpan" id="kobo.1.1">Text.</span></p></body></html>`,
			want: true,
		},
		{
			name: "unrelated span",
			data: `<html><body><p><span class="highlight">Text.</span></p></body></html>`,
			want: false,
		},
		{
			name: "deeply nested",
			data: `<html><body><div><div><span class="koboSpan" id="kobo.4.2">x</span></div></div></body></html>`,
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Parse([]byte(tt.data))
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			if got := Annotated(doc); got != tt.want {
				t.Errorf("Annotated = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestSerializeAddsDeclaration verifies that serialization prepends an
// XML declaration exactly once.
func TestSerializeAddsDeclaration(t *testing.T) {
	doc, err := Parse([]byte(`<html><body/></html>`))
	if err != nil {
		t.Fatal(err)
	}

	data, err := Serialize(doc)
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}
	if !strings.HasPrefix(string(data), "<?xml") {
		t.Errorf("output does not start with a declaration: %q", data)
	}

	// Serializing again must not duplicate the declaration.
	data, err = Serialize(doc)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Count(string(data), "<?xml") != 1 {
		t.Errorf("declaration duplicated: %q", data)
	}
}

// TestSerializeKeepsDeclaration verifies an existing declaration is kept
// as-is.
func TestSerializeKeepsDeclaration(t *testing.T) {
	doc, err := Parse([]byte(`<?xml version="1.0" encoding="UTF-8"?><html><body/></html>`))
	if err != nil {
		t.Fatal(err)
	}

	data, err := Serialize(doc)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Count(string(data), "<?xml") != 1 {
		t.Errorf("declaration duplicated: %q", data)
	}
	if !strings.Contains(string(data), `UTF-8`) {
		t.Errorf("original declaration rewritten: %q", data)
	}
}

// TestStripPrefixes verifies that element prefixes and prefixed xmlns
// declarations are removed while the default namespace survives.
func TestStripPrefixes(t *testing.T) {
	src := `<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops">` +
		`<body><epub:switch><p>Text.</p></epub:switch></body></html>`
	doc, err := Parse([]byte(src))
	if err != nil {
		t.Fatal(err)
	}

	StripPrefixes(doc)

	data, err := Serialize(doc)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)

	if strings.Contains(out, "epub:") {
		t.Errorf("prefix survived stripping: %q", out)
	}
	if strings.Contains(out, "xmlns:") {
		t.Errorf("prefixed xmlns declaration survived: %q", out)
	}
	if !strings.Contains(out, `xmlns="http://www.w3.org/1999/xhtml"`) {
		t.Errorf("default namespace dropped: %q", out)
	}
	if !strings.Contains(out, "<switch>") {
		t.Errorf("prefixed element not renamed: %q", out)
	}
}

// TestWriteFile verifies the serialize-and-write round trip.
func TestWriteFile(t *testing.T) {
	doc, err := Parse([]byte(`<html><body><p>Persist me.</p></body></html>`))
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "out.xhtml")
	if err := WriteFile(doc, path); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	back, err := ParseFile(path)
	if err != nil {
		t.Fatalf("reread failed: %v", err)
	}
	body := back.Root().SelectElement("body")
	if body == nil || body.SelectElement("p") == nil {
		t.Error("round trip lost document structure")
	}
}
