// Package docx exposes the paragraphs and runs of a WordprocessingML package.
//
// The main document part is parsed into an xmlquery tree and only the
// text-bearing children of runs (w:t, w:tab, w:br, w:cr) are ever rewritten.
// Every other package part, and every other node of the document part, is
// written back unchanged.
package docx

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
	"github.com/xhad/docfix/internal/types"
)

const (
	documentPart  = "word/document.xml"
	wordNamespace = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

	ContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

var ErrInvalidDocument = errors.New("invalid docx document")

var (
	bodyExpr       = xpath.MustCompile(wordPath("document", "body"))
	paragraphsExpr = xpath.MustCompile(wordPath("document", "body", "p"))
)

func wordPath(names ...string) string {
	var path string
	for _, name := range names {
		path += fmt.Sprintf("/*[local-name()='%s' and namespace-uri()='%s']", name, wordNamespace)
	}
	return path
}

type Document struct {
	archive *zip.Reader
	root    *xmlquery.Node
}

var _ types.Document = (*Document)(nil)

// Open parses a DOCX package. Any structural problem is reported as
// ErrInvalidDocument.
func Open(data []byte) (*Document, error) {
	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	var part *zip.File
	for _, f := range archive.File {
		if f.Name == documentPart {
			part = f
			break
		}
	}
	if part == nil {
		return nil, fmt.Errorf("%w: missing %s", ErrInvalidDocument, documentPart)
	}

	rc, err := part.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	defer rc.Close()

	root, err := xmlquery.Parse(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	if xmlquery.QuerySelector(root, bodyExpr) == nil {
		return nil, fmt.Errorf("%w: document has no body", ErrInvalidDocument)
	}

	return &Document{
		archive: archive,
		root:    root,
	}, nil
}

// Paragraphs returns the top-level body paragraphs in document order.
// Paragraphs nested in tables, text boxes or headers are not included.
func (d *Document) Paragraphs() []types.Paragraph {
	nodes := xmlquery.QuerySelectorAll(d.root, paragraphsExpr)

	paragraphs := make([]types.Paragraph, len(nodes))
	for i, n := range nodes {
		paragraphs[i] = &Paragraph{node: n}
	}
	return paragraphs
}

// Write emits the package with the current document part.
func (d *Document) Write(w io.Writer) error {
	zw := zip.NewWriter(w)

	for _, f := range d.archive.File {
		if f.Name != documentPart {
			if err := zw.Copy(f); err != nil {
				return fmt.Errorf("copying %s: %w", f.Name, err)
			}
			continue
		}

		fw, err := zw.CreateHeader(&zip.FileHeader{
			Name:     f.Name,
			Method:   zip.Deflate,
			Modified: f.Modified,
		})
		if err != nil {
			return fmt.Errorf("writing %s: %w", f.Name, err)
		}

		if err := d.root.Write(fw, false); err != nil {
			return fmt.Errorf("writing %s: %w", f.Name, err)
		}
	}

	return zw.Close()
}

// Bytes returns the serialized package.
func (d *Document) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type Paragraph struct {
	node *xmlquery.Node
}

// Runs returns the w:r children of the paragraph.
func (p *Paragraph) Runs() []types.Run {
	var runs []types.Run
	for n := p.node.FirstChild; n != nil; n = n.NextSibling {
		if isWord(n, "r") {
			runs = append(runs, &Run{node: n})
		}
	}
	return runs
}

type Run struct {
	node *xmlquery.Node
}

// content returns the text-bearing children of the run in document order.
func (r *Run) content() []*xmlquery.Node {
	var nodes []*xmlquery.Node
	for n := r.node.FirstChild; n != nil; n = n.NextSibling {
		if _, ok := contentText(n); ok {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

// contentText maps a run child to the text it renders as. Page and column
// breaks are layout, not text, and are left to the caller as markers.
func contentText(n *xmlquery.Node) (string, bool) {
	switch {
	case isWord(n, "t"):
		return n.InnerText(), true
	case isWord(n, "tab"):
		return "\t", true
	case isWord(n, "cr"):
		return "\n", true
	case isWord(n, "br"):
		for _, attr := range n.Attr {
			if attr.Name.Local == "type" && attr.Value != "textWrapping" {
				return "", false
			}
		}
		return "\n", true
	}
	return "", false
}

// Text returns the run's text. w:tab reads as a tab and w:br and w:cr as a
// newline, in the order they appear.
func (r *Run) Text() string {
	var b strings.Builder
	for _, n := range r.content() {
		text, _ := contentText(n)
		b.WriteString(text)
	}
	return b.String()
}

// SetText replaces the run's text. Tabs and newlines in text become w:tab and
// w:br. When text keeps the run's tabs and breaks, the new pieces are written
// into the existing w:t elements between them; otherwise the text-bearing
// children are rebuilt where the first of them was. Run properties, page
// breaks and markers stay where they are either way.
func (r *Run) SetText(text string) {
	nodes := r.content()
	chunks, separators := splitContent(text)

	if sameSeparators(nodes, separators) {
		r.fill(nodes, chunks)
		return
	}
	r.rebuild(nodes, chunks, separators)
}

// splitContent cuts text at every tab and newline. There is always one more
// chunk than separators.
func splitContent(text string) ([]string, []rune) {
	var (
		chunks     []string
		separators []rune
		start      int
	)
	for i, c := range text {
		if c == '\t' || c == '\n' {
			chunks = append(chunks, text[start:i])
			separators = append(separators, c)
			start = i + 1
		}
	}
	return append(chunks, text[start:]), separators
}

func sameSeparators(nodes []*xmlquery.Node, separators []rune) bool {
	i := 0
	for _, n := range nodes {
		if isWord(n, "t") {
			continue
		}
		text, _ := contentText(n)
		if i >= len(separators) || string(separators[i]) != text {
			return false
		}
		i++
	}
	return i == len(separators)
}

// fill writes chunk i into the w:t elements that sit between separator i-1
// and separator i.
func (r *Run) fill(nodes []*xmlquery.Node, chunks []string) {
	var (
		gap   int
		group []*xmlquery.Node
		last  *xmlquery.Node
	)

	flush := func(next *xmlquery.Node) {
		chunk := chunks[gap]
		switch {
		case len(group) > 0:
			distribute(group, chunk)
		case chunk == "":
		case next != nil:
			insertBefore(next, r.newElement("t", chunk))
		case last != nil:
			xmlquery.AddImmediateSibling(last, r.newElement("t", chunk))
		default:
			xmlquery.AddChild(r.node, r.newElement("t", chunk))
		}
		group = nil
		gap++
	}

	for _, n := range nodes {
		if isWord(n, "t") {
			group = append(group, n)
			continue
		}
		flush(n)
		last = n
	}
	flush(nil)
}

// distribute spreads chunk over the w:t elements of one gap. Each keeps its
// original length and the last one takes the rest.
func distribute(group []*xmlquery.Node, chunk string) {
	rest := []rune(chunk)
	for i, t := range group {
		take := len(rest)
		if i < len(group)-1 {
			if n := utf8.RuneCountInString(t.InnerText()); n < take {
				take = n
			}
		}
		setTextNode(t, string(rest[:take]))
		rest = rest[take:]
	}
}

func (r *Run) rebuild(nodes []*xmlquery.Node, chunks []string, separators []rune) {
	prev := r.node.LastChild
	if len(nodes) > 0 {
		prev = nodes[0].PrevSibling
	}
	for _, n := range nodes {
		xmlquery.RemoveFromTree(n)
	}

	add := func(n *xmlquery.Node) {
		if prev != nil {
			xmlquery.AddImmediateSibling(prev, n)
		} else if r.node.FirstChild != nil {
			insertBefore(r.node.FirstChild, n)
		} else {
			xmlquery.AddChild(r.node, n)
		}
		prev = n
	}

	for i, chunk := range chunks {
		if chunk != "" {
			add(r.newElement("t", chunk))
		}
		if i < len(separators) {
			if separators[i] == '\t' {
				add(r.newElement("tab", ""))
			} else {
				add(r.newElement("br", ""))
			}
		}
	}
}

func (r *Run) newElement(local, text string) *xmlquery.Node {
	n := &xmlquery.Node{
		Type:         xmlquery.ElementNode,
		Data:         local,
		Prefix:       r.node.Prefix,
		NamespaceURI: wordNamespace,
	}
	if local == "t" {
		setTextNode(n, text)
	}
	return n
}

func setTextNode(t *xmlquery.Node, text string) {
	for c := t.FirstChild; c != nil; c = t.FirstChild {
		xmlquery.RemoveFromTree(c)
	}
	if text != "" {
		xmlquery.AddChild(t, &xmlquery.Node{Type: xmlquery.TextNode, Data: text})
	}
	t.SetAttr("xml:space", "preserve")
}

func insertBefore(next, n *xmlquery.Node) {
	if prev := next.PrevSibling; prev != nil {
		xmlquery.AddImmediateSibling(prev, n)
		return
	}
	n.Parent = next.Parent
	n.PrevSibling = nil
	n.NextSibling = next
	next.PrevSibling = n
	next.Parent.FirstChild = n
}

// HasStructuralMarker reports whether the run has a direct child element of
// the given kind, such as a footnote reference.
func (r *Run) HasStructuralMarker(kind types.MarkerKind) bool {
	for n := r.node.FirstChild; n != nil; n = n.NextSibling {
		if isWord(n, string(kind)) {
			return true
		}
	}
	return false
}

func isWord(n *xmlquery.Node, local string) bool {
	return n.Type == xmlquery.ElementNode && n.Data == local && n.NamespaceURI == wordNamespace
}
