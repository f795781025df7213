package docflip

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/nicholasgasior/docflip-go/internal/ooxml"
)

// docxToHTML renders the body of the DOCX at path as simple HTML: headings,
// paragraphs, nested lists, tables, hyperlinks and inline emphasis. Images,
// comments and fields are dropped.
func docxToHTML(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("open DOCX: %w", err)
	}
	defer zr.Close()

	docData, err := ooxml.ReadFileFromZip(&zr.Reader, ooxml.PartDocument)
	if err != nil {
		return "", fmt.Errorf("read document.xml: %w", err)
	}
	rels, err := ooxml.ParseRelationships(&zr.Reader, ooxml.PartDocumentRels)
	if err != nil {
		rels = map[string]ooxml.Relationship{}
	}
	title, _ := ooxml.ReadCoreProperties(&zr.Reader)

	r := &htmlRenderer{
		rels:      rels,
		styles:    parseStyleNames(&zr.Reader),
		numbering: parseListKinds(&zr.Reader),
	}
	body := r.render(docData)

	var b strings.Builder
	b.WriteString("<html><head><title>")
	b.WriteString(html.EscapeString(title))
	b.WriteString("</title></head><body>\n")
	b.WriteString(body)
	b.WriteString("</body></html>")
	return b.String(), nil
}

// parseStyleNames maps style IDs to their display names from styles.xml.
func parseStyleNames(zr *zip.Reader) map[string]string {
	styles := make(map[string]string)
	data, err := ooxml.ReadFileFromZip(zr, ooxml.PartStyles)
	if err != nil {
		return styles
	}

	dec := xml.NewDecoder(bytes.NewReader(data))
	var current string
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "style":
				current = ooxml.Attr(t, "styleId")
			case "name":
				if current != "" {
					styles[current] = ooxml.Attr(t, "val")
				}
			}
		case xml.EndElement:
			if t.Name.Local == "style" {
				current = ""
			}
		}
	}
	return styles
}

// parseListKinds resolves, per numbering ID and level, whether a list is
// ordered ("ol") or bulleted ("ul").
func parseListKinds(zr *zip.Reader) map[string]map[int]string {
	kinds := make(map[string]map[int]string)
	data, err := ooxml.ReadFileFromZip(zr, ooxml.PartNumbering)
	if err != nil {
		return kinds
	}

	abstract := make(map[string]map[int]string)
	numToAbstract := make(map[string]string)

	dec := xml.NewDecoder(bytes.NewReader(data))
	var (
		abstractID string
		numID      string
		level      = -1
	)
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "abstractNum":
				abstractID = ooxml.Attr(t, "abstractNumId")
				abstract[abstractID] = make(map[int]string)
			case "lvl":
				level, _ = strconv.Atoi(ooxml.Attr(t, "ilvl"))
			case "numFmt":
				if abstractID != "" && level >= 0 {
					kind := "ol"
					switch ooxml.Attr(t, "val") {
					case "bullet", "none", "":
						kind = "ul"
					}
					abstract[abstractID][level] = kind
				}
			case "num":
				numID = ooxml.Attr(t, "numId")
			case "abstractNumId":
				if numID != "" {
					numToAbstract[numID] = ooxml.Attr(t, "val")
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "abstractNum":
				abstractID = ""
			case "lvl":
				level = -1
			case "num":
				numID = ""
			}
		}
	}

	for num, abs := range numToAbstract {
		kinds[num] = abstract[abs]
	}
	return kinds
}

type htmlRenderer struct {
	rels      map[string]ooxml.Relationship
	styles    map[string]string
	numbering map[string]map[int]string

	out   strings.Builder
	lists []string
}

// paraState is the formatting collected for the paragraph being read.
type paraState struct {
	styleID string
	numID   string
	level   int
	text    strings.Builder
}

type runState struct {
	bold, italic, strike bool
}

func (r *htmlRenderer) render(docData []byte) string {
	dec := xml.NewDecoder(bytes.NewReader(docData))
	dec.Strict = false

	var (
		paras    []*paraState
		runs     []*runState
		inText   bool
		textBuf  strings.Builder
		href     string
		tblDepth int
		rows     [][]string
		row      []string
		cell     []string
	)

	// Text boxes nest whole paragraphs inside a run, so both paragraphs and
	// runs are kept as stacks and only the innermost receives text.
	para := func() *paraState {
		if len(paras) == 0 {
			return nil
		}
		return paras[len(paras)-1]
	}
	run := func() *runState {
		if len(runs) == 0 {
			return nil
		}
		return runs[len(runs)-1]
	}

	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if ooxml.IsFallback(t) {
				_ = dec.Skip()
				continue
			}
			switch t.Name.Local {
			case "p":
				paras = append(paras, &paraState{})
			case "pStyle":
				if p := para(); p != nil {
					p.styleID = ooxml.Attr(t, "val")
				}
			case "numId":
				if p := para(); p != nil {
					p.numID = ooxml.Attr(t, "val")
				}
			case "ilvl":
				if p := para(); p != nil {
					p.level, _ = strconv.Atoi(ooxml.Attr(t, "val"))
				}
			case "r":
				runs = append(runs, &runState{})
			case "b":
				if rs := run(); rs != nil {
					rs.bold = toggleOn(t)
				}
			case "i":
				if rs := run(); rs != nil {
					rs.italic = toggleOn(t)
				}
			case "strike", "dstrike":
				if rs := run(); rs != nil {
					rs.strike = toggleOn(t)
				}
			case "t":
				inText = true
				textBuf.Reset()
			case "tab":
				if p := para(); p != nil && run() != nil {
					p.text.WriteString("\t")
				}
			case "br":
				if p := para(); p != nil && run() != nil && ooxml.Attr(t, "type") == "" {
					p.text.WriteString("<br/>")
				}
			case "hyperlink":
				href = ""
				if rel, ok := r.rels[ooxml.AttrNS(t, ooxml.NSRelDoc, "id")]; ok {
					href = rel.Target
				}
			case "tbl":
				tblDepth++
				if tblDepth == 1 {
					r.closeLists()
					rows = nil
				}
			case "tr":
				if tblDepth == 1 {
					row = nil
				}
			case "tc":
				if tblDepth == 1 {
					cell = nil
				}
			}

		case xml.CharData:
			if inText {
				textBuf.Write(t)
			}

		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				if p, rs := para(), run(); inText && p != nil && rs != nil {
					p.text.WriteString(formatRun(textBuf.String(), rs, href))
				}
				inText = false
			case "r":
				if len(runs) > 0 {
					runs = runs[:len(runs)-1]
				}
			case "hyperlink":
				href = ""
			case "p":
				p := para()
				if p == nil {
					continue
				}
				paras = paras[:len(paras)-1]
				text := strings.TrimSpace(p.text.String())
				if tblDepth > 0 {
					if text != "" {
						cell = append(cell, text)
					}
				} else {
					r.block(p, text)
				}
			case "tc":
				if tblDepth == 1 {
					row = append(row, strings.Join(cell, " "))
				}
			case "tr":
				if tblDepth == 1 {
					rows = append(rows, row)
				}
			case "tbl":
				if tblDepth == 1 {
					r.table(rows)
				}
				if tblDepth > 0 {
					tblDepth--
				}
			}
		}
	}

	r.closeLists()
	return r.out.String()
}

// block writes one paragraph outside tables as a heading, list item or paragraph.
func (r *htmlRenderer) block(p *paraState, text string) {
	if p.numID != "" && p.numID != "0" {
		if text == "" {
			return
		}
		r.listItem(p, text)
		return
	}
	r.closeLists()
	if text == "" {
		return
	}
	if level := r.headingLevel(p.styleID); level > 0 {
		fmt.Fprintf(&r.out, "<h%d>%s</h%d>\n", level, text, level)
		return
	}
	if p.styleID == "Title" {
		fmt.Fprintf(&r.out, "<h1>%s</h1>\n", text)
		return
	}
	r.out.WriteString("<p>" + text + "</p>\n")
}

// listItem keeps a stack of open lists, one per nesting level. Every open
// list holds exactly one open <li>.
func (r *htmlRenderer) listItem(p *paraState, text string) {
	kind := "ul"
	if levels, ok := r.numbering[p.numID]; ok {
		if k, ok := levels[p.level]; ok {
			kind = k
		}
	}
	depth := p.level + 1

	for len(r.lists) > depth {
		r.popList()
	}
	if len(r.lists) == depth {
		if r.lists[depth-1] != kind {
			r.popList()
		} else {
			r.out.WriteString("</li>\n")
		}
	}
	for len(r.lists) < depth-1 {
		r.out.WriteString("<" + kind + "><li>")
		r.lists = append(r.lists, kind)
	}
	if len(r.lists) < depth {
		r.out.WriteString("<" + kind + ">\n")
		r.lists = append(r.lists, kind)
	}
	r.out.WriteString("<li>" + text)
}

func (r *htmlRenderer) popList() {
	kind := r.lists[len(r.lists)-1]
	r.lists = r.lists[:len(r.lists)-1]
	r.out.WriteString("</li></" + kind + ">\n")
}

func (r *htmlRenderer) closeLists() {
	for len(r.lists) > 0 {
		r.popList()
	}
}

func (r *htmlRenderer) table(rows [][]string) {
	if len(rows) == 0 {
		return
	}
	r.out.WriteString("<table>")
	for i, row := range rows {
		tag := "td"
		if i == 0 {
			tag = "th"
		}
		r.out.WriteString("<tr>")
		for _, c := range row {
			r.out.WriteString("<" + tag + ">" + c + "</" + tag + ">")
		}
		r.out.WriteString("</tr>")
	}
	r.out.WriteString("</table>\n")
}

func (r *htmlRenderer) headingLevel(styleID string) int {
	if styleID == "" {
		return 0
	}
	return headingLevelFor(styleID, r.styles[styleID])
}

// headingLevelFor returns 1-6 for the first of names that is a heading style
// ID or display name ("Heading2", "heading 2"), and 0 when none is.
func headingLevelFor(names ...string) int {
	for _, name := range names {
		lower := strings.ToLower(strings.ReplaceAll(name, " ", ""))
		if !strings.HasPrefix(lower, "heading") {
			continue
		}
		if n, err := strconv.Atoi(strings.TrimPrefix(lower, "heading")); err == nil && n >= 1 && n <= 6 {
			return n
		}
	}
	return 0
}

func formatRun(text string, run *runState, href string) string {
	text = html.EscapeString(text)
	if run.bold {
		text = "<b>" + text + "</b>"
	}
	if run.italic {
		text = "<i>" + text + "</i>"
	}
	if run.strike {
		text = "<s>" + text + "</s>"
	}
	if href != "" {
		text = `<a href="` + html.EscapeString(href) + `">` + text + "</a>"
	}
	return text
}

// toggleOn reads an OOXML on/off property such as <w:b/> or <w:b w:val="0"/>.
func toggleOn(el xml.StartElement) bool {
	switch ooxml.Attr(el, "val") {
	case "0", "false", "off":
		return false
	}
	return true
}
