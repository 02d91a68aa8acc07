// Package lint checks XHTML content documents for style issues that
// tend to survive into published books: typewriter quotes, doubled
// spaces, stray tabs, empty paragraphs, and images without alt text.
// Findings are reported, never fixed.
package lint

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/beevik/etree"

	"github.com/FocuswithJustin/KepubForge/core/xhtml"
)

// Issue is a single finding in one document.
type Issue struct {
	Path    string // File the issue was found in
	Check   string // Check identifier (e.g., "straight-quotes")
	Message string // Human-readable description
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s: %s", i.Path, i.Check, i.Message)
}

// rawText holds tags whose text is code or preformatted content, where
// prose checks do not apply.
var rawText = map[string]bool{
	"style":  true,
	"script": true,
	"pre":    true,
	"code":   true,
}

// Run lints the given XHTML files and returns all findings in input
// order. A file that cannot be parsed produces an error, not an issue.
func Run(paths ...string) ([]Issue, error) {
	var issues []Issue
	for _, path := range paths {
		doc, err := xhtml.ParseFile(path)
		if err != nil {
			return nil, err
		}
		issues = append(issues, checkElement(path, doc.Root())...)
	}
	return issues, nil
}

func checkElement(path string, el *etree.Element) []Issue {
	if el == nil || rawText[el.Tag] {
		return nil
	}

	var issues []Issue

	if el.Tag == "img" && el.SelectAttr("alt") == nil {
		issues = append(issues, Issue{
			Path:    path,
			Check:   "img-alt",
			Message: "img element without alt attribute",
		})
	}

	if el.Tag == "p" && emptyParagraph(el) {
		issues = append(issues, Issue{
			Path:    path,
			Check:   "empty-paragraph",
			Message: "paragraph contains no content",
		})
	}

	for _, tok := range el.Child {
		switch child := tok.(type) {
		case *etree.CharData:
			issues = append(issues, checkText(path, child.Data)...)
		case *etree.Element:
			issues = append(issues, checkElement(path, child)...)
		}
	}

	return issues
}

// doubleSpace matches runs of two or more spaces between words;
// indentation whitespace around newlines is not a finding.
var doubleSpace = regexp.MustCompile(`\S {2,}\S`)

func checkText(path, text string) []Issue {
	// Inter-element whitespace is layout, not prose.
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var issues []Issue

	if strings.ContainsAny(text, `'"`) {
		issues = append(issues, Issue{
			Path:    path,
			Check:   "straight-quotes",
			Message: fmt.Sprintf("typewriter quote in %q", excerpt(text)),
		})
	}
	if doubleSpace.MatchString(text) {
		issues = append(issues, Issue{
			Path:    path,
			Check:   "double-space",
			Message: fmt.Sprintf("doubled space in %q", excerpt(text)),
		})
	}
	if strings.Contains(text, "\t") {
		issues = append(issues, Issue{
			Path:    path,
			Check:   "tab",
			Message: fmt.Sprintf("tab character in %q", excerpt(text)),
		})
	}

	return issues
}

func emptyParagraph(el *etree.Element) bool {
	if len(el.ChildElements()) > 0 {
		return false
	}
	for _, tok := range el.Child {
		if cd, ok := tok.(*etree.CharData); ok && strings.TrimSpace(cd.Data) != "" {
			return false
		}
	}
	return true
}

// excerpt shortens text for issue messages, truncating on a rune
// boundary.
func excerpt(text string) string {
	trimmed := strings.TrimSpace(text)
	runes := []rune(trimmed)
	if len(runes) > 40 {
		return string(runes[:40]) + "..."
	}
	return trimmed
}
