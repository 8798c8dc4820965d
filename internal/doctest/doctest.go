// Package doctest provides in-memory documents and DOCX packages for tests.
package doctest

import (
	"archive/zip"
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/xhad/docfix/internal/types"
)

type Run struct {
	Value   string
	Markers []types.MarkerKind
}

func (r *Run) Text() string { return r.Value }

func (r *Run) SetText(text string) { r.Value = text }

func (r *Run) HasStructuralMarker(kind types.MarkerKind) bool {
	for _, m := range r.Markers {
		if m == kind {
			return true
		}
	}
	return false
}

type Paragraph struct {
	RunList []*Run
}

func (p *Paragraph) Runs() []types.Run {
	runs := make([]types.Run, len(p.RunList))
	for i, r := range p.RunList {
		runs[i] = r
	}
	return runs
}

// Texts returns the current text of every run.
func (p *Paragraph) Texts() []string {
	texts := make([]string, len(p.RunList))
	for i, r := range p.RunList {
		texts[i] = r.Value
	}
	return texts
}

type Document struct {
	Paras []*Paragraph
}

func (d *Document) Paragraphs() []types.Paragraph {
	paragraphs := make([]types.Paragraph, len(d.Paras))
	for i, p := range d.Paras {
		paragraphs[i] = p
	}
	return paragraphs
}

// NewDocument builds a document with one paragraph per argument, each
// paragraph holding the given run texts.
func NewDocument(paragraphs ...[]string) *Document {
	doc := &Document{}
	for _, runs := range paragraphs {
		p := &Paragraph{}
		for _, text := range runs {
			p.RunList = append(p.RunList, &Run{Value: text})
		}
		doc.Paras = append(doc.Paras, p)
	}
	return doc
}

// WithFootnote attaches a footnote reference to the last run of paragraph i.
func (d *Document) WithFootnote(i int) *Document {
	p := d.Paras[i]
	if len(p.RunList) == 0 {
		p.RunList = append(p.RunList, &Run{})
	}
	last := p.RunList[len(p.RunList)-1]
	last.Markers = append(last.Markers, types.FootnoteReference)
	return d
}

const WordNamespace = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

// R renders a plain run.
func R(text string) string {
	return fmt.Sprintf(`<w:r><w:t xml:space="preserve">%s</w:t></w:r>`, html.EscapeString(text))
}

// Bold renders a bold run.
func Bold(text string) string {
	return fmt.Sprintf(`<w:r><w:rPr><w:b/></w:rPr><w:t xml:space="preserve">%s</w:t></w:r>`, html.EscapeString(text))
}

// FootnoteRun renders a run carrying a footnote reference.
func FootnoteRun(id int) string {
	return fmt.Sprintf(`<w:r><w:rPr><w:rStyle w:val="FootnoteReference"/></w:rPr><w:footnoteReference w:id="%d"/></w:r>`, id)
}

// P renders a paragraph from already rendered runs.
func P(runs ...string) string {
	return "<w:p>" + strings.Join(runs, "") + "</w:p>"
}

// DocumentXML wraps body content in a WordprocessingML document part.
func DocumentXML(body ...string) string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n" +
		`<w:document xmlns:w="` + WordNamespace + `" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">` +
		"<w:body>" + strings.Join(body, "") + `<w:sectPr><w:pgSz w:w="11906" w:h="16838"/></w:sectPr></w:body></w:document>`
}

// DOCX packages a document part into a minimal DOCX archive.
func DOCX(documentXML string) []byte {
	parts := []struct {
		name    string
		content string
	}{
		{"[Content_Types].xml", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"><Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/><Default Extension="xml" ContentType="application/xml"/><Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/></Types>`},
		{"_rels/.rels", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"><Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/></Relationships>`},
		{"word/document.xml", documentXML},
		{"word/footnotes.xml", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:footnotes xmlns:w="` + WordNamespace + `"><w:footnote w:id="1"><w:p><w:r><w:t>A note.</w:t></w:r></w:p></w:footnote></w:footnotes>`},
	}

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, part := range parts {
		f, err := w.Create(part.name)
		if err != nil {
			panic(err)
		}
		if _, err := f.Write([]byte(part.content)); err != nil {
			panic(err)
		}
	}
	if err := w.Close(); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// RunLayout lists the element children of every run in the package's
// document part, in order. A w:t appears as "t:<text>", anything else by its
// local name.
func RunLayout(data []byte) ([][]string, error) {
	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	for _, f := range archive.File {
		if f.Name != "word/document.xml" {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()

		root, err := xmlquery.Parse(rc)
		if err != nil {
			return nil, err
		}

		var layout [][]string
		for _, r := range xmlquery.Find(root, "//*[local-name()='r']") {
			children := []string{}
			for n := r.FirstChild; n != nil; n = n.NextSibling {
				switch {
				case n.Type != xmlquery.ElementNode:
				case n.Data == "t":
					children = append(children, "t:"+n.InnerText())
				default:
					children = append(children, n.Data)
				}
			}
			layout = append(layout, children)
		}
		return layout, nil
	}

	return nil, fmt.Errorf("word/document.xml not found")
}
