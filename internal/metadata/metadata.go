// Package metadata rewrites Dublin Core metadata in EPUB package (OPF)
// documents. Substitution is string replacement of element text; it
// never restructures the package document.
package metadata

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"sort"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	kepuberrors "github.com/FocuswithJustin/KepubForge/core/errors"
)

// dcNamespace is the Dublin Core elements namespace.
const dcNamespace = "http://purl.org/dc/elements/1.1/"

// elements lists the Dublin Core elements that may be substituted.
var elements = map[string]bool{
	"title":       true,
	"creator":     true,
	"language":    true,
	"identifier":  true,
	"publisher":   true,
	"description": true,
}

// Substitute replaces the text of Dublin Core metadata elements in an
// OPF document. Keys of repl name the unprefixed element ("title",
// "creator", ...); unknown keys are rejected. Elements absent from the
// document are left absent.
func Substitute(opf []byte, repl map[string]string) ([]byte, error) {
	if len(repl) == 0 {
		return opf, nil
	}

	keys := make([]string, 0, len(repl))
	for key := range repl {
		if !elements[key] {
			return nil, kepuberrors.NewValidation(key, "not a substitutable metadata element")
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	doc, err := parseOPF(opf)
	if err != nil {
		return nil, err
	}

	for _, key := range keys {
		nodes, err := queryMetadata(doc, key)
		if err != nil {
			return nil, err
		}
		for _, node := range nodes {
			setText(node, repl[key])
		}
	}

	return []byte(doc.OutputXML(true)), nil
}

// EnsureIdentifier adds a dc:identifier with the given value when the
// OPF has none. It reports whether the document was changed.
func EnsureIdentifier(opf []byte, id string) ([]byte, bool, error) {
	doc, err := parseOPF(opf)
	if err != nil {
		return nil, false, err
	}

	existing, err := queryMetadata(doc, "identifier")
	if err != nil {
		return nil, false, err
	}
	if len(existing) > 0 {
		return opf, false, nil
	}

	meta, err := xmlquery.Query(doc, "//*[local-name()='metadata']")
	if err != nil {
		return nil, false, fmt.Errorf("metadata query failed: %w", err)
	}
	if meta == nil {
		return nil, false, kepuberrors.NewStructure("metadata", "")
	}

	identifier := &xmlquery.Node{
		Type:   xmlquery.ElementNode,
		Data:   "identifier",
		Prefix: dcPrefix(meta),
	}
	if identifier.Prefix == "" {
		// No Dublin Core declaration anywhere in scope; declare one on
		// the new element.
		identifier.Prefix = "dc"
		identifier.Attr = []xmlquery.Attr{{
			Name:  xml.Name{Space: "xmlns", Local: "dc"},
			Value: dcNamespace,
		}}
	}
	xmlquery.AddChild(meta, identifier)
	xmlquery.AddChild(identifier, &xmlquery.Node{
		Type: xmlquery.TextNode,
		Data: id,
	})

	return []byte(doc.OutputXML(true)), true, nil
}

// dcPrefix returns the prefix the document declares for the Dublin Core
// namespace, searching from the metadata element up through its
// ancestors. Empty when no declaration is in scope.
func dcPrefix(meta *xmlquery.Node) string {
	for n := meta; n != nil; n = n.Parent {
		for _, attr := range n.Attr {
			if attr.Name.Space == "xmlns" && attr.Value == dcNamespace {
				return attr.Name.Local
			}
		}
	}
	return ""
}

func parseOPF(opf []byte) (*xmlquery.Node, error) {
	doc, err := xmlquery.Parse(bytes.NewReader(opf))
	if err != nil {
		return nil, &kepuberrors.ParseError{Format: "OPF", Message: err.Error(), Err: err}
	}
	return doc, nil
}

// queryMetadata returns the metadata elements with the given local
// name. The expression is compiled first to surface errors early, as
// with all XPath use in this codebase.
func queryMetadata(doc *xmlquery.Node, local string) ([]*xmlquery.Node, error) {
	expr := fmt.Sprintf("//*[local-name()='metadata']/*[local-name()='%s']", local)
	if _, err := xpath.Compile(expr); err != nil {
		return nil, fmt.Errorf("invalid xpath: %w", err)
	}

	nodes, err := xmlquery.QueryAll(doc, expr)
	if err != nil {
		return nil, fmt.Errorf("xpath query failed: %w", err)
	}
	return nodes, nil
}

func setText(node *xmlquery.Node, value string) {
	if node.FirstChild != nil && node.FirstChild.Type == xmlquery.TextNode {
		node.FirstChild.Data = value
		return
	}
	xmlquery.AddChild(node, &xmlquery.Node{
		Type: xmlquery.TextNode,
		Data: value,
	})
}
