// Package xhtml handles reading and writing XHTML content documents for
// the annotator. It owns the serialization cosmetics the annotation core
// deliberately does not: XML declaration insertion and namespace prefix
// stripping. Input trees are parsed permissively; well-formedness
// validation is not this package's job.
package xhtml

import (
	"os"

	"github.com/beevik/etree"

	"github.com/FocuswithJustin/KepubForge/core/annotate"
	kepuberrors "github.com/FocuswithJustin/KepubForge/core/errors"
)

// entities maps the named XHTML entities commonly found in ebook content
// to their replacement text. Go's XML decoder only knows the five
// predefined XML entities.
var entities = map[string]string{
	"nbsp":   "\u00a0",
	"shy":    "\u00ad",
	"copy":   "©",
	"ndash":  "–",
	"mdash":  "—",
	"lsquo":  "‘",
	"rsquo":  "’",
	"ldquo":  "“",
	"rdquo":  "”",
	"hellip": "…",
}

// Parse parses XHTML data into an element tree.
func Parse(data []byte) (*etree.Document, error) {
	doc := etree.NewDocument()
	doc.ReadSettings.Permissive = true
	doc.ReadSettings.Entity = entities

	if err := doc.ReadFromBytes(data); err != nil {
		return nil, &kepuberrors.ParseError{Format: "XHTML", Message: err.Error(), Err: err}
	}
	if doc.Root() == nil {
		return nil, kepuberrors.NewParse("XHTML", "", "no root element")
	}
	return doc, nil
}

// ParseFile reads and parses an XHTML file.
func ParseFile(path string) (*etree.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, kepuberrors.NewIO("read", path, err)
	}

	doc, err := Parse(data)
	if err != nil {
		var perr *kepuberrors.ParseError
		if kepuberrors.As(err, &perr) {
			perr.Path = path
		}
		return nil, err
	}
	return doc, nil
}

// Annotated reports whether doc already contains generated spans, so
// repeated runs of the tool leave previously converted documents alone.
func Annotated(doc *etree.Document) bool {
	return hasSpan(doc.Root())
}

func hasSpan(el *etree.Element) bool {
	if el == nil {
		return false
	}
	if el.Tag == "span" && el.SelectAttrValue("class", "") == annotate.SpanClass {
		return true
	}
	for _, child := range el.ChildElements() {
		if hasSpan(child) {
			return true
		}
	}
	return false
}

// Serialize renders doc back to bytes, making sure an XML declaration
// leads the output.
func Serialize(doc *etree.Document) ([]byte, error) {
	ensureDeclaration(doc)

	data, err := doc.WriteToBytes()
	if err != nil {
		return nil, kepuberrors.Wrap(err, "serializing XHTML")
	}
	return data, nil
}

// WriteFile serializes doc and writes it to path.
func WriteFile(doc *etree.Document, path string) error {
	data, err := Serialize(doc)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return kepuberrors.NewIO("write", path, err)
	}
	return nil
}

// StripPrefixes removes namespace prefixes from element tags and drops
// prefixed xmlns declarations throughout the document. The default
// xmlns attribute is kept, so XHTML documents stay in their namespace.
func StripPrefixes(doc *etree.Document) {
	stripElement(doc.Root())
}

func stripElement(el *etree.Element) {
	if el == nil {
		return
	}
	el.Space = ""

	kept := el.Attr[:0]
	for _, attr := range el.Attr {
		if attr.Space == "xmlns" {
			continue
		}
		kept = append(kept, attr)
	}
	el.Attr = kept

	for _, child := range el.ChildElements() {
		stripElement(child)
	}
}

// ensureDeclaration inserts an XML declaration when the document does
// not already carry one.
func ensureDeclaration(doc *etree.Document) {
	for _, tok := range doc.Child {
		if pi, ok := tok.(*etree.ProcInst); ok && pi.Target == "xml" {
			return
		}
	}
	doc.InsertChildAt(0, etree.NewProcInst("xml", `version="1.0" encoding="utf-8"`))
}
