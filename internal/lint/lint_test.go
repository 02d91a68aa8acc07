package lint

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"
)

// writeDoc writes one XHTML file and returns its path.
func writeDoc(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	doc := `<html xmlns="http://www.w3.org/1999/xhtml"><body>` + body + `</body></html>`
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

// checks extracts the check identifiers from findings.
func checks(issues []Issue) []string {
	var names []string
	for _, issue := range issues {
		names = append(names, issue.Check)
	}
	return names
}

// TestRunClean verifies that a well-formed document produces no
// findings.
func TestRunClean(t *testing.T) {
	path := writeDoc(t, t.TempDir(), "clean.xhtml",
		`<p>“Proper quotes,” she said. One space only.</p><img src="a.jpg" alt="cover"/>`)

	issues, err := Run(path)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(issues) != 0 {
		t.Errorf("got findings %v, want none", issues)
	}
}

// TestRunChecks verifies each check fires on its trigger.
func TestRunChecks(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []string
	}{
		{
			name: "straight quotes",
			body: `<p>He said "go" and left.</p>`,
			want: []string{"straight-quotes"},
		},
		{
			name: "apostrophe",
			body: `<p>It's typewriter style.</p>`,
			want: []string{"straight-quotes"},
		},
		{
			name: "double space",
			body: `<p>Two  spaces between words.</p>`,
			want: []string{"double-space"},
		},
		{
			name: "tab in prose",
			body: "<p>Text with\ta tab inside.</p>",
			want: []string{"tab"},
		},
		{
			name: "empty paragraph",
			body: `<p>   </p>`,
			want: []string{"empty-paragraph"},
		},
		{
			name: "img without alt",
			body: `<img src="a.jpg"/>`,
			want: []string{"img-alt"},
		},
		{
			name: "several at once",
			body: `<p>Bad "quote" and  spacing.</p>`,
			want: []string{"straight-quotes", "double-space"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeDoc(t, t.TempDir(), "doc.xhtml", tt.body)
			issues, err := Run(path)
			if err != nil {
				t.Fatalf("Run failed: %v", err)
			}

			got := checks(issues)
			if len(got) != len(tt.want) {
				t.Fatalf("got checks %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("check %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

// TestRunSkipsRawText verifies that code and preformatted content is
// exempt from prose checks.
func TestRunSkipsRawText(t *testing.T) {
	path := writeDoc(t, t.TempDir(), "raw.xhtml",
		`<pre>x := "quoted";	tabbed</pre><code>it's fine</code><p>Prose stays clean.</p>`)

	issues, err := Run(path)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(issues) != 0 {
		t.Errorf("raw text produced findings: %v", issues)
	}
}

// TestRunIgnoresLayoutWhitespace verifies that indentation between
// elements is not flagged as doubled spacing.
func TestRunIgnoresLayoutWhitespace(t *testing.T) {
	path := writeDoc(t, t.TempDir(), "layout.xhtml",
		"\n    <p>Indented but clean.</p>\n    <p>Also clean.</p>\n")

	issues, err := Run(path)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(issues) != 0 {
		t.Errorf("layout whitespace produced findings: %v", issues)
	}
}

// TestRunMultipleFiles verifies findings keep their file attribution
// and input order.
func TestRunMultipleFiles(t *testing.T) {
	dir := t.TempDir()
	first := writeDoc(t, dir, "a.xhtml", `<p>Fine text here.</p>`)
	second := writeDoc(t, dir, "b.xhtml", `<p>Bad "quote" here.</p>`)

	issues, err := Run(first, second)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(issues) != 1 {
		t.Fatalf("got %d findings, want 1: %v", len(issues), issues)
	}
	if issues[0].Path != second {
		t.Errorf("finding attributed to %q, want %q", issues[0].Path, second)
	}
	if !strings.Contains(issues[0].String(), "straight-quotes") {
		t.Errorf("String() = %q", issues[0].String())
	}
}

// TestRunUnreadable verifies that an unparsable file fails the run.
func TestRunUnreadable(t *testing.T) {
	if _, err := Run(filepath.Join(t.TempDir(), "missing.xhtml")); err == nil {
		t.Error("Run should fail for a missing file")
	}
}

// TestExcerpt verifies message truncation for long text, including
// multibyte prose.
func TestExcerpt(t *testing.T) {
	long := strings.Repeat("a", 60)
	if got := excerpt(long); len(got) != 43 || !strings.HasSuffix(got, "...") {
		t.Errorf("excerpt(long) = %q", got)
	}
	if got := excerpt("  short  "); got != "short" {
		t.Errorf("excerpt trims to %q, want %q", got, "short")
	}

	wide := strings.Repeat("é", 60)
	got := excerpt(wide)
	if !utf8.ValidString(got) {
		t.Errorf("excerpt split a rune: %q", got)
	}
	if want := strings.Repeat("é", 40) + "..."; got != want {
		t.Errorf("excerpt(wide) = %q, want %q", got, want)
	}
}
