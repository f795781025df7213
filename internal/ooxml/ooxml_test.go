package ooxml

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteDocumentRoundTrip(t *testing.T) {
	doc := Document{
		Title:   "Quarterly <Report> & Notes",
		Creator: "docflip",
		Paragraphs: []Paragraph{
			{Text: "Overview", Style: "Heading1"},
			{Text: "first line\nsecond\tcolumn", PageBreakBefore: true},
			{Text: "control\x01chars & <markup>"},
			{Text: ""},
		},
	}

	path := filepath.Join(t.TempDir(), "out.docx")
	var buf bytes.Buffer
	if err := WriteDocument(&buf, doc); err != nil {
		t.Fatalf("WriteDocument: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := ReadDocument(path)
	if err != nil {
		t.Fatalf("ReadDocument: %v", err)
	}
	if got.Title != doc.Title {
		t.Errorf("title = %q, want %q", got.Title, doc.Title)
	}
	if got.Creator != doc.Creator {
		t.Errorf("creator = %q, want %q", got.Creator, doc.Creator)
	}

	want := []Paragraph{
		{Text: "Overview", Style: "Heading1"},
		{Text: "first line\nsecond\tcolumn", PageBreakBefore: true},
		{Text: "controlchars & <markup>"},
		{Text: ""},
	}
	if len(got.Paragraphs) != len(want) {
		t.Fatalf("got %d paragraphs, want %d: %+v", len(got.Paragraphs), len(want), got.Paragraphs)
	}
	for i := range want {
		if got.Paragraphs[i] != want[i] {
			t.Errorf("paragraph %d = %+v, want %+v", i, got.Paragraphs[i], want[i])
		}
	}
}

func TestWriteDocumentIsDeterministic(t *testing.T) {
	doc := Document{Paragraphs: []Paragraph{{Text: "same"}, {Text: "bytes"}}}
	var a, b bytes.Buffer
	if err := WriteDocument(&a, doc); err != nil {
		t.Fatal(err)
	}
	if err := WriteDocument(&b, doc); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a.Bytes(), b.Bytes()) {
		t.Error("two writes of the same document differ")
	}
}

func TestWriteDocumentParts(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteDocument(&buf, Document{Paragraphs: []Paragraph{{Text: "x"}}}); err != nil {
		t.Fatal(err)
	}
	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("output is not a zip: %v", err)
	}
	if zr.File[0].Name != "[Content_Types].xml" {
		t.Errorf("first part = %q, want [Content_Types].xml", zr.File[0].Name)
	}
	rels, err := ParseRelationships(zr, PartDocumentRels)
	if err != nil {
		t.Fatalf("ParseRelationships: %v", err)
	}
	if rels["rId1"].Target != "styles.xml" {
		t.Errorf("rId1 target = %q, want styles.xml", rels["rId1"].Target)
	}
}

func TestParseParagraphsLenient(t *testing.T) {
	tests := []struct {
		name string
		xml  string
		want []string
	}{
		{
			name: "tab stops in properties are not text",
			xml: `<w:document xmlns:w="w"><w:body><w:p><w:pPr><w:tabs><w:tab w:val="left" w:pos="720"/></w:tabs></w:pPr>` +
				`<w:r><w:t>a</w:t><w:tab/><w:t>b</w:t></w:r></w:p></w:body></w:document>`,
			want: []string{"a\tb"},
		},
		{
			name: "page breaks are not text",
			xml:  `<w:document xmlns:w="w"><w:body><w:p><w:r><w:br w:type="page"/><w:t>next</w:t></w:r></w:p></w:body></w:document>`,
			want: []string{"next"},
		},
		{
			name: "deleted text is skipped",
			xml:  `<w:document xmlns:w="w"><w:body><w:p><w:r><w:delText>old</w:delText></w:r><w:r><w:t>new</w:t></w:r></w:p></w:body></w:document>`,
			want: []string{"new"},
		},
		{
			name: "text box paragraphs come before their container",
			xml: `<w:document xmlns:w="w"><w:body><w:p><w:r><w:t xml:space="preserve">Before box </w:t></w:r>` +
				`<w:r><w:txbxContent><w:p><w:r><w:t>Inside box</w:t></w:r></w:p></w:txbxContent></w:r>` +
				`<w:r><w:t>after box tail</w:t></w:r></w:p></w:body></w:document>`,
			want: []string{"Inside box", "Before box after box tail"},
		},
		{
			name: "alternate content reads the choice only",
			xml: `<w:document xmlns:w="w" xmlns:mc="http://schemas.openxmlformats.org/markup-compatibility/2006"><w:body><w:p>` +
				`<w:r><mc:AlternateContent><mc:Choice Requires="wps"><w:txbxContent><w:p><w:r><w:t>boxed</w:t></w:r></w:p></w:txbxContent></mc:Choice>` +
				`<mc:Fallback><w:txbxContent><w:p><w:r><w:t>boxed</w:t></w:r></w:p></w:txbxContent></mc:Fallback></mc:AlternateContent></w:r>` +
				`<w:r><w:t>outer</w:t></w:r></w:p></w:body></w:document>`,
			want: []string{"boxed", "outer"},
		},
		{
			name: "undeclared mc prefix is still recognized",
			xml: `<w:document xmlns:w="w"><w:body><w:p><w:r><mc:AlternateContent><mc:Choice><w:t>new</w:t></mc:Choice>` +
				`<mc:Fallback><w:t>old</w:t></mc:Fallback></mc:AlternateContent></w:r></w:p></w:body></w:document>`,
			want: []string{"new"},
		},
		{
			name: "truncated part keeps what was read",
			xml:  `<w:document xmlns:w="w"><w:body><w:p><w:r><w:t>kept</w:t></w:r></w:p><w:p><w:r><w:t>partial`,
			want: []string{"kept", "partial"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			paras, err := ParseParagraphs([]byte(tt.xml))
			if err != nil {
				t.Fatalf("ParseParagraphs: %v", err)
			}
			if len(paras) != len(tt.want) {
				t.Fatalf("got %d paragraphs %+v, want %d", len(paras), paras, len(tt.want))
			}
			for i, w := range tt.want {
				if paras[i].Text != w {
					t.Errorf("paragraph %d = %q, want %q", i, paras[i].Text, w)
				}
			}
		})
	}
}

func TestAttr(t *testing.T) {
	el := xml.StartElement{Attr: []xml.Attr{
		{Name: xml.Name{Space: NSWordprocessingML, Local: "val"}, Value: "Heading1"},
		{Name: xml.Name{Space: NSRelDoc, Local: "id"}, Value: "rId4"},
	}}
	if got := Attr(el, "val"); got != "Heading1" {
		t.Errorf("Attr(val) = %q", got)
	}
	if got := Attr(el, "missing"); got != "" {
		t.Errorf("Attr(missing) = %q, want empty", got)
	}
	if got := AttrNS(el, NSRelDoc, "id"); got != "rId4" {
		t.Errorf("AttrNS(r:id) = %q", got)
	}
	if got := AttrNS(el, NSWordprocessingML, "id"); got != "" {
		t.Errorf("AttrNS(w:id) = %q, want empty", got)
	}
}

func TestParseParagraphsGarbage(t *testing.T) {
	if _, err := ParseParagraphs([]byte("<<<not xml")); err == nil {
		t.Error("expected error for input with no paragraphs")
	}
}
