package ooxml

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"
)

// Paragraph is one block of an editable document. Line breaks inside Text
// become soft breaks within the same paragraph.
type Paragraph struct {
	Text string
	// Style is a paragraph style ID such as "Heading1". Empty means Normal.
	Style string
	// PageBreakBefore starts the paragraph on a new page.
	PageBreakBefore bool
}

// Document is the content written to a DOCX package.
type Document struct {
	Title      string
	Creator    string
	Paragraphs []Paragraph
}

// zipEpoch is the earliest timestamp a zip header can carry. Using it for
// every part keeps output byte-identical across runs.
var zipEpoch = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)

// WriteDocument encodes doc as a minimal, valid DOCX package.
func WriteDocument(w io.Writer, doc Document) error {
	zw := zip.NewWriter(w)

	parts := []struct {
		name string
		body []byte
	}{
		{"[Content_Types].xml", []byte(contentTypesXML)},
		{"_rels/.rels", []byte(packageRelsXML)},
		{PartDocument, documentXML(doc.Paragraphs)},
		{PartDocumentRels, []byte(documentRelsXML)},
		{PartStyles, []byte(stylesXML)},
		{PartCore, coreXML(doc.Title, doc.Creator)},
	}

	for _, p := range parts {
		fw, err := zw.CreateHeader(&zip.FileHeader{
			Name:     p.name,
			Method:   zip.Deflate,
			Modified: zipEpoch,
		})
		if err != nil {
			return fmt.Errorf("create %s: %w", p.name, err)
		}
		if _, err := fw.Write(p.body); err != nil {
			return fmt.Errorf("write %s: %w", p.name, err)
		}
	}
	return zw.Close()
}

func documentXML(paragraphs []Paragraph) []byte {
	var b bytes.Buffer
	b.WriteString(xml.Header)
	b.WriteString(`<w:document xmlns:w="` + NSWordprocessingML + `" xmlns:r="` + NSRelDoc + `"><w:body>`)
	for _, p := range paragraphs {
		b.WriteString("<w:p>")
		if p.Style != "" {
			b.WriteString(`<w:pPr><w:pStyle w:val="`)
			xml.EscapeText(&b, []byte(p.Style))
			b.WriteString(`"/></w:pPr>`)
		}
		if p.PageBreakBefore {
			b.WriteString(`<w:r><w:br w:type="page"/></w:r>`)
		}
		writeRuns(&b, p.Text)
		b.WriteString("</w:p>")
	}
	b.WriteString(`<w:sectPr><w:pgSz w:w="11906" w:h="16838"/>` +
		`<w:pgMar w:top="1440" w:right="1440" w:bottom="1440" w:left="1440" w:header="708" w:footer="708" w:gutter="0"/>` +
		`</w:sectPr></w:body></w:document>`)
	return b.Bytes()
}

// writeRuns emits text as a single run, mapping newlines and tabs to their
// WordprocessingML elements.
func writeRuns(b *bytes.Buffer, text string) {
	text = xmlSafe(text)
	if text == "" {
		return
	}
	b.WriteString("<w:r>")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if i > 0 {
			b.WriteString("<w:br/>")
		}
		segs := strings.Split(line, "\t")
		for j, seg := range segs {
			if j > 0 {
				b.WriteString("<w:tab/>")
			}
			if seg == "" {
				continue
			}
			b.WriteString(`<w:t xml:space="preserve">`)
			xml.EscapeText(b, []byte(seg))
			b.WriteString("</w:t>")
		}
	}
	b.WriteString("</w:r>")
}

// xmlSafe drops runes that XML 1.0 does not allow in character data.
func xmlSafe(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\t' || r == '\n':
			return r
		case r == '\r':
			return -1
		case r < 0x20:
			return -1
		case r >= 0xD800 && r <= 0xDFFF, r == 0xFFFE, r == 0xFFFF:
			return -1
		}
		return r
	}, s)
}

func coreXML(title, creator string) []byte {
	var b bytes.Buffer
	b.WriteString(xml.Header)
	b.WriteString(`<cp:coreProperties xmlns:cp="` + NSCoreProperties + `" xmlns:dc="` + NSDublinCore + `">`)
	if title != "" {
		b.WriteString("<dc:title>")
		xml.EscapeText(&b, []byte(xmlSafe(title)))
		b.WriteString("</dc:title>")
	}
	if creator != "" {
		b.WriteString("<dc:creator>")
		xml.EscapeText(&b, []byte(xmlSafe(creator)))
		b.WriteString("</dc:creator>")
	}
	b.WriteString("</cp:coreProperties>")
	return b.Bytes()
}

const contentTypesXML = xml.Header + `<Types xmlns="` + NSContentTypes + `">` +
	`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
	`<Default Extension="xml" ContentType="application/xml"/>` +
	`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
	`<Override PartName="/word/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"/>` +
	`<Override PartName="/docProps/core.xml" ContentType="application/vnd.openxmlformats-package.core-properties+xml"/>` +
	`</Types>`

const packageRelsXML = xml.Header + `<Relationships xmlns="` + NSRelationships + `">` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>` +
	`<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/package/2006/relationships/metadata/core-properties" Target="docProps/core.xml"/>` +
	`</Relationships>`

const documentRelsXML = xml.Header + `<Relationships xmlns="` + NSRelationships + `">` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>` +
	`</Relationships>`

const stylesXML = xml.Header + `<w:styles xmlns:w="` + NSWordprocessingML + `">` +
	`<w:docDefaults><w:rPrDefault><w:rPr><w:rFonts w:ascii="Calibri" w:hAnsi="Calibri" w:cs="Calibri"/><w:sz w:val="22"/></w:rPr></w:rPrDefault>` +
	`<w:pPrDefault><w:pPr><w:spacing w:after="160" w:line="259" w:lineRule="auto"/></w:pPr></w:pPrDefault></w:docDefaults>` +
	`<w:style w:type="paragraph" w:default="1" w:styleId="Normal"><w:name w:val="Normal"/><w:qFormat/></w:style>` +
	`<w:style w:type="paragraph" w:styleId="Title"><w:name w:val="Title"/><w:basedOn w:val="Normal"/><w:next w:val="Normal"/><w:qFormat/>` +
	`<w:rPr><w:sz w:val="56"/></w:rPr></w:style>` +
	`<w:style w:type="paragraph" w:styleId="Heading1"><w:name w:val="heading 1"/><w:basedOn w:val="Normal"/><w:next w:val="Normal"/><w:qFormat/>` +
	`<w:pPr><w:keepNext/><w:outlineLvl w:val="0"/></w:pPr><w:rPr><w:b/><w:sz w:val="32"/></w:rPr></w:style>` +
	`<w:style w:type="paragraph" w:styleId="Heading2"><w:name w:val="heading 2"/><w:basedOn w:val="Normal"/><w:next w:val="Normal"/><w:qFormat/>` +
	`<w:pPr><w:keepNext/><w:outlineLvl w:val="1"/></w:pPr><w:rPr><w:b/><w:sz w:val="26"/></w:rPr></w:style>` +
	`</w:styles>`
