// Package epub converts EPUB books to Kobo's kepub flavor: every XHTML
// content document in the package is annotated with sentence-level
// spans, the package metadata may be substituted, and the archive is
// repacked with the mimetype entry first and uncompressed.
package epub

import (
	"archive/zip"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	"github.com/FocuswithJustin/KepubForge/core/annotate"
	kepuberrors "github.com/FocuswithJustin/KepubForge/core/errors"
	"github.com/FocuswithJustin/KepubForge/core/xhtml"
	"github.com/FocuswithJustin/KepubForge/internal/metadata"
)

const (
	mimetypeEntry = "mimetype"
	mimetypeValue = "application/epub+zip"
	containerPath = "META-INF/container.xml"
	xhtmlMedia    = "application/xhtml+xml"
)

// Options controls a conversion.
type Options struct {
	// Substitutions rewrites Dublin Core metadata in the OPF
	// ("title", "creator", ...).
	Substitutions map[string]string
}

// FileResult describes one rewritten content document.
type FileResult struct {
	Path   string // Entry name inside the archive
	Spans  int    // Spans emitted for this document
	SHA256 string // Hash of the rewritten bytes
	BLAKE3 string // Secondary hash of the rewritten bytes
}

// Result summarizes a conversion.
type Result struct {
	OPF     string       // Package document entry name
	Files   []FileResult // Annotated content documents
	Skipped []string     // Content documents left untouched (already annotated)
}

// Spans returns the total spans emitted across all documents.
func (r *Result) Spans() int {
	total := 0
	for _, f := range r.Files {
		total += f.Spans
	}
	return total
}

// Convert reads the EPUB at inPath, annotates every XHTML content
// document with a fresh per-document identifier scope, and writes the
// kepub to outPath. All other entries are copied through unchanged.
func Convert(inPath, outPath string, opts Options) (*Result, error) {
	zr, err := zip.OpenReader(inPath)
	if err != nil {
		return nil, kepuberrors.NewIO("open", inPath, err)
	}
	defer zr.Close()

	opfPath, err := findOPF(&zr.Reader)
	if err != nil {
		return nil, err
	}

	contentDocs, err := contentDocuments(&zr.Reader, opfPath)
	if err != nil {
		return nil, err
	}

	outFile, err := os.Create(outPath)
	if err != nil {
		return nil, kepuberrors.NewIO("create", outPath, err)
	}
	defer outFile.Close()

	zw := zip.NewWriter(outFile)

	// mimetype must be the first entry and stored uncompressed.
	mw, err := zw.CreateHeader(&zip.FileHeader{
		Name:   mimetypeEntry,
		Method: zip.Store,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to write mimetype: %w", err)
	}
	if _, err := mw.Write([]byte(mimetypeValue)); err != nil {
		return nil, fmt.Errorf("failed to write mimetype: %w", err)
	}

	result := &Result{OPF: opfPath}

	for _, f := range zr.File {
		if f.Name == mimetypeEntry {
			continue
		}

		data, err := readEntry(f)
		if err != nil {
			return nil, err
		}

		switch {
		case f.Name == opfPath:
			data, err = rewriteOPF(data, opts)
			if err != nil {
				return nil, kepuberrors.Wrapf(err, "rewriting %s", f.Name)
			}
		case contentDocs[f.Name]:
			annotated, spans, skipped, err := annotateDocument(data)
			if err != nil {
				return nil, kepuberrors.Wrapf(err, "annotating %s", f.Name)
			}
			if skipped {
				result.Skipped = append(result.Skipped, f.Name)
				break
			}
			data = annotated
			sum := sha256.Sum256(data)
			b3 := blake3.Sum256(data)
			result.Files = append(result.Files, FileResult{
				Path:   f.Name,
				Spans:  spans,
				SHA256: hex.EncodeToString(sum[:]),
				BLAKE3: hex.EncodeToString(b3[:]),
			})
		}

		w, err := zw.Create(f.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to create entry %s: %w", f.Name, err)
		}
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("failed to write entry %s: %w", f.Name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish archive: %w", err)
	}
	return result, outFile.Close()
}

// annotateDocument parses one content document, annotates its body, and
// serializes it with prefixes stripped. Documents already carrying
// generated spans are reported as skipped and returned unchanged.
func annotateDocument(data []byte) (out []byte, spans int, skipped bool, err error) {
	doc, err := xhtml.Parse(data)
	if err != nil {
		return nil, 0, false, err
	}

	if xhtml.Annotated(doc) {
		return data, 0, true, nil
	}

	a := annotate.New()
	if err := a.Document(doc); err != nil {
		return nil, 0, false, err
	}

	xhtml.StripPrefixes(doc)
	out, err = xhtml.Serialize(doc)
	if err != nil {
		return nil, 0, false, err
	}
	return out, a.Spans(), false, nil
}

// rewriteOPF applies metadata substitutions and guarantees the package
// carries an identifier, synthesizing a urn:uuid when none is present.
func rewriteOPF(data []byte, opts Options) ([]byte, error) {
	data, err := metadata.Substitute(data, opts.Substitutions)
	if err != nil {
		return nil, err
	}

	data, _, err = metadata.EnsureIdentifier(data, "urn:uuid:"+uuid.NewString())
	if err != nil {
		return nil, err
	}
	return data, nil
}

// findOPF locates the package document via META-INF/container.xml.
func findOPF(zr *zip.Reader) (string, error) {
	data, err := readNamedEntry(zr, containerPath)
	if err != nil {
		return "", kepuberrors.NewUnsupported("archive", "not an EPUB: missing META-INF/container.xml")
	}

	doc, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return "", &kepuberrors.ParseError{Format: "container.xml", Message: err.Error(), Err: err}
	}

	rootfile, err := xmlquery.Query(doc, "//*[local-name()='rootfile']")
	if err != nil {
		return "", fmt.Errorf("xpath query failed: %w", err)
	}
	if rootfile == nil {
		return "", kepuberrors.NewParse("container.xml", "", "no rootfile element")
	}

	full := rootfile.SelectAttr("full-path")
	if full == "" {
		return "", kepuberrors.NewParse("container.xml", "", "rootfile has no full-path")
	}
	return full, nil
}

// contentDocuments returns the archive entry names of all XHTML
// manifest items, resolved relative to the OPF directory.
func contentDocuments(zr *zip.Reader, opfPath string) (map[string]bool, error) {
	data, err := readNamedEntry(zr, opfPath)
	if err != nil {
		return nil, kepuberrors.NewParse("OPF", opfPath, "package document missing from archive")
	}

	doc, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, &kepuberrors.ParseError{Format: "OPF", Path: opfPath, Message: err.Error(), Err: err}
	}

	items, err := xmlquery.QueryAll(doc, "//*[local-name()='manifest']/*[local-name()='item']")
	if err != nil {
		return nil, fmt.Errorf("xpath query failed: %w", err)
	}

	opfDir := path.Dir(opfPath)
	docs := make(map[string]bool)
	for _, item := range items {
		if item.SelectAttr("media-type") != xhtmlMedia {
			continue
		}
		href := item.SelectAttr("href")
		if href == "" || strings.Contains(href, "://") {
			continue
		}
		docs[path.Clean(path.Join(opfDir, href))] = true
	}
	return docs, nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, kepuberrors.NewIO("open", f.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, kepuberrors.NewIO("read", f.Name, err)
	}
	return data, nil
}

func readNamedEntry(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name == name {
			return readEntry(f)
		}
	}
	return nil, kepuberrors.ErrNotFound
}
