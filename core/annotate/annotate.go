// Package annotate wraps each sentence-like text run of an XHTML body in
// an individually addressable span element so downstream readers can
// track and highlight reading position at sentence granularity.
//
// The annotator walks the element tree depth-first and reconstructs each
// node: element text and child tails are replaced by generated spans
// carrying "kobo.<paragraph>.<segment>" identifiers, while tag names,
// attributes, and child order are preserved. Identifier numbering is
// positional, not semantic: the paragraph counter advances once per
// child boundary whether or not that child produced any spans, so the
// sequence may have gaps relative to visual paragraphs. Downstream
// consumers depend on this exact numbering scheme.
package annotate

import (
	"fmt"

	"github.com/beevik/etree"

	kepuberrors "github.com/FocuswithJustin/KepubForge/core/errors"
	"github.com/FocuswithJustin/KepubForge/core/split"
)

const (
	// SpanClass marks generated spans so readers (and later runs of
	// this tool) can recognize them.
	SpanClass = "koboSpan"

	// idPrefix namespaces generated span identifiers.
	idPrefix = "kobo"
)

// Annotator walks a body subtree depth-first and replaces each text run
// with generated spans. The paragraph/segment counters are scoped to a
// single document and are reset at the start of every annotation pass;
// annotating documents in parallel requires one Annotator per document.
type Annotator struct {
	paragraph int
	segment   int
	spans     int

	// atomic holds unqualified tags whose content is never
	// sentence-split; the element is wrapped whole in a single span.
	atomic map[string]bool
}

// New returns an Annotator with counters at their initial (1, 1) state
// and img as the only atomic-wrap tag.
func New() *Annotator {
	return &Annotator{
		paragraph: 1,
		segment:   1,
		atomic:    map[string]bool{"img": true},
	}
}

// Spans returns the number of spans emitted by the last annotation pass.
func (a *Annotator) Spans() int {
	return a.spans
}

// Document locates the body element of doc and replaces it in the tree
// with its annotated reconstruction. A document without a body is a
// structural precondition failure; the tree is left untouched.
func (a *Annotator) Document(doc *etree.Document) error {
	body := findElement(doc.Root(), "body")
	if body == nil {
		return kepuberrors.NewStructure("body", "")
	}

	parent := body.Parent()
	index := body.Index()
	annotated := a.Body(body)
	parent.RemoveChildAt(index)
	parent.InsertChildAt(index, annotated)
	return nil
}

// Body annotates the subtree rooted at body and returns the
// reconstructed element. Counters are reset first, so each call gets a
// fresh per-document identifier scope.
func (a *Annotator) Body(body *etree.Element) *etree.Element {
	a.paragraph = 1
	a.segment = 1
	a.spans = 0
	return a.node(body)
}

// node reconstructs one element. Atomic-wrap tags are wrapped whole in a
// single span consuming the current identifier; every other element has
// its text and child tails converted to spans.
func (a *Annotator) node(el *etree.Element) *etree.Element {
	if a.atomic[el.Tag] {
		span := a.newSpan()
		span.AddChild(el.Copy())
		return span
	}

	// Snapshot the children before reconstruction so building the
	// replacement cannot disturb the captured list.
	kids := make([]etree.Token, len(el.Child))
	copy(kids, el.Child)

	out := etree.NewElement(el.Tag)
	out.Space = el.Space
	for _, attr := range el.Attr {
		out.CreateAttr(attr.FullKey(), attr.Value)
	}

	// The element's own text is the leading character data run, ending at
	// the first non-text token of any kind. Character data after a comment
	// or processing instruction is that token's tail, handled below.
	i := 0
	text := ""
	for i < len(kids) {
		cd, ok := kids[i].(*etree.CharData)
		if !ok {
			break
		}
		text += cd.Data
		i++
	}

	if text != "" {
		if !a.appendSpans(out, text) {
			// Whitespace-only text is preserved verbatim.
			out.SetText(text)
		}
	}

	for i < len(kids) {
		tok := kids[i]
		i++

		// Character data following a child is that child's tail; it is
		// owned by this element, never by the child.
		tail := ""
		for i < len(kids) {
			cd, ok := kids[i].(*etree.CharData)
			if !ok {
				break
			}
			tail += cd.Data
			i++
		}

		switch child := tok.(type) {
		case *etree.Element:
			out.AddChild(a.node(child))
		case *etree.Comment:
			out.AddChild(etree.NewComment(child.Data))
		case *etree.ProcInst:
			out.AddChild(etree.NewProcInst(child.Target, child.Inst))
		case *etree.Directive:
			out.AddChild(etree.NewDirective(child.Data))
		}

		if tail != "" {
			a.paragraph++
			a.segment = 1
			if !a.appendSpans(out, tail) {
				// Whitespace-only tail: keep the original layout and
				// spend no identifier. The boundary advance stays, so
				// the next scope still starts one paragraph later.
				out.AddChild(etree.NewText(tail))
			}
		}

		// One boundary per child, whatever the tail produced.
		a.paragraph++
		a.segment = 1
	}

	return out
}

// appendSpans splits text and appends one span per fragment to parent.
// It reports whether any spans were added; a decline (empty or
// whitespace-only text) leaves parent untouched.
func (a *Annotator) appendSpans(parent *etree.Element, text string) bool {
	fragments, ok := split.Sentences(text)
	if !ok {
		return false
	}
	for _, fragment := range fragments {
		span := a.newSpan()
		span.SetText(fragment)
		parent.AddChild(span)
		a.segment++
	}
	return true
}

// newSpan allocates a span carrying the identifier at the current
// counter state. Spans emitted for text advance the segment counter at
// the call site; image wraps leave it in place and rely on the
// per-child paragraph advance for uniqueness.
func (a *Annotator) newSpan() *etree.Element {
	span := etree.NewElement("span")
	span.CreateAttr("class", SpanClass)
	span.CreateAttr("id", fmt.Sprintf("%s.%d.%d", idPrefix, a.paragraph, a.segment))
	a.spans++
	return span
}

// findElement returns the first element with the given unqualified tag,
// searching el and its descendants depth-first.
func findElement(el *etree.Element, tag string) *etree.Element {
	if el == nil {
		return nil
	}
	if el.Tag == tag {
		return el
	}
	for _, child := range el.ChildElements() {
		if found := findElement(child, tag); found != nil {
			return found
		}
	}
	return nil
}
