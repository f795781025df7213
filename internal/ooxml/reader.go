package ooxml

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ReadDocument opens the DOCX at path and returns its paragraphs in reading
// order together with the package title. Page breaks placed before a
// paragraph's text are reported as PageBreakBefore.
func ReadDocument(path string) (Document, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return Document{}, fmt.Errorf("open DOCX: %w", err)
	}
	defer zr.Close()
	return ReadDocumentFrom(&zr.Reader)
}

// ReadDocumentFrom reads paragraphs and core properties from an open package.
func ReadDocumentFrom(zr *zip.Reader) (Document, error) {
	data, err := ReadFileFromZip(zr, PartDocument)
	if err != nil {
		return Document{}, err
	}
	paras, err := ParseParagraphs(data)
	if err != nil {
		return Document{}, err
	}
	doc := Document{Paragraphs: paras}
	doc.Title, doc.Creator = ReadCoreProperties(zr)
	return doc, nil
}

// ReadCoreProperties returns the title and creator recorded in the package's
// core properties, empty when the part is missing.
func ReadCoreProperties(zr *zip.Reader) (title, creator string) {
	core, err := ReadFileFromZip(zr, PartCore)
	if err != nil {
		return "", ""
	}
	return parseCore(core)
}

// ParseParagraphs scans document.xml leniently. Markup errors end the scan
// early; whatever was read before the error is returned when non-empty.
// Paragraphs nested in text boxes or table cells are emitted in document order,
// each before the paragraph that contains it. Of an mc:AlternateContent block
// only the mc:Choice branch is read.
func ParseParagraphs(data []byte) ([]Paragraph, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false

	type frame struct {
		text      strings.Builder
		style     string
		pageBreak bool
	}

	var (
		paras    []Paragraph
		stack    []*frame
		inText   bool
		runDepth int
		scanErr  error
	)

	top := func() *frame {
		if len(stack) == 0 {
			return nil
		}
		return stack[len(stack)-1]
	}

	for {
		tok, err := dec.Token()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				scanErr = err
			}
			break
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if IsFallback(t) {
				if err := dec.Skip(); err != nil {
					scanErr = err
				}
				continue
			}
			switch t.Name.Local {
			case "p":
				stack = append(stack, &frame{})
			case "pStyle":
				if f := top(); f != nil {
					f.style = Attr(t, "val")
				}
			case "pageBreakBefore":
				if f := top(); f != nil {
					v := Attr(t, "val")
					f.pageBreak = v != "0" && v != "false"
				}
			case "r":
				runDepth++
			case "t":
				inText = true
			case "tab":
				if f := top(); f != nil && runDepth > 0 {
					f.text.WriteByte('\t')
				}
			case "br", "cr":
				if f := top(); f != nil && runDepth > 0 {
					switch Attr(t, "type") {
					case "page":
						// Only a break ahead of any text starts the paragraph on a new page.
						if f.text.Len() == 0 {
							f.pageBreak = true
						}
					case "column":
					default:
						f.text.WriteByte('\n')
					}
				}
			case "noBreakHyphen":
				if f := top(); f != nil {
					f.text.WriteByte('-')
				}
			}

		case xml.CharData:
			if f := top(); f != nil && inText {
				f.text.Write(t)
			}

		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "r":
				if runDepth > 0 {
					runDepth--
				}
			case "p":
				if f := top(); f != nil {
					stack = stack[:len(stack)-1]
					paras = append(paras, Paragraph{Text: f.text.String(), Style: f.style, PageBreakBefore: f.pageBreak})
				}
			}
		}
	}

	// Unclosed paragraphs from a truncated part still carry text.
	for _, f := range stack {
		if f.text.Len() > 0 {
			paras = append(paras, Paragraph{Text: f.text.String(), Style: f.style, PageBreakBefore: f.pageBreak})
		}
	}

	if scanErr != nil && len(paras) == 0 {
		return nil, fmt.Errorf("parse document.xml: %w", scanErr)
	}
	return paras, nil
}

func parseCore(data []byte) (title, creator string) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false
	var field *string
	for {
		tok, err := dec.Token()
		if err != nil {
			return strings.TrimSpace(title), strings.TrimSpace(creator)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "title":
				field = &title
			case "creator":
				field = &creator
			default:
				field = nil
			}
		case xml.CharData:
			if field != nil {
				*field += string(t)
			}
		case xml.EndElement:
			field = nil
		}
	}
}
