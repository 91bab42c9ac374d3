package export

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"time"
)

const (
	nsMain    = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	nsTypes   = "http://schemas.openxmlformats.org/package/2006/content-types"
	nsRels    = "http://schemas.openxmlformats.org/package/2006/relationships"
	relOffice = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument"
	ctMain    = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
	ctRels    = "application/vnd.openxmlformats-package.relationships+xml"
)

// colTwips mirrors colWidths in twentieths of a point.
var colTwips = [4]int{5102, 1417, 1984, 1984}

var zipEpoch = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)

type contentTypes struct {
	XMLName   xml.Name     `xml:"Types"`
	Xmlns     string       `xml:"xmlns,attr"`
	Defaults  []ctDefault  `xml:"Default"`
	Overrides []ctOverride `xml:"Override"`
}

type ctDefault struct {
	Extension   string `xml:"Extension,attr"`
	ContentType string `xml:"ContentType,attr"`
}

type ctOverride struct {
	PartName    string `xml:"PartName,attr"`
	ContentType string `xml:"ContentType,attr"`
}

type relationships struct {
	XMLName xml.Name       `xml:"Relationships"`
	Xmlns   string         `xml:"xmlns,attr"`
	Rels    []relationship `xml:"Relationship"`
}

type relationship struct {
	ID     string `xml:"Id,attr"`
	Type   string `xml:"Type,attr"`
	Target string `xml:"Target,attr"`
}

type wDocument struct {
	XMLName xml.Name `xml:"w:document"`
	W       string   `xml:"xmlns:w,attr"`
	Body    wBody    `xml:"w:body"`
}

type wBody struct {
	Blocks []any   `xml:",any"`
	Sect   wSectPr `xml:"w:sectPr"`
}

type wVal struct {
	Val string `xml:"w:val,attr"`
}

type wOn struct{}

type wPara struct {
	XMLName xml.Name `xml:"w:p"`
	Props   *wPPr    `xml:"w:pPr,omitempty"`
	Runs    []wRun   `xml:"w:r"`
}

type wPPr struct {
	Jc *wVal `xml:"w:jc,omitempty"`
}

type wRun struct {
	Props *wRPr `xml:"w:rPr,omitempty"`
	Text  wText `xml:"w:t"`
}

type wRPr struct {
	Bold   *wOn  `xml:"w:b,omitempty"`
	Italic *wOn  `xml:"w:i,omitempty"`
	Color  *wVal `xml:"w:color,omitempty"`
	Size   *wVal `xml:"w:sz,omitempty"`
}

type wText struct {
	Space string `xml:"xml:space,attr,omitempty"`
	Value string `xml:",chardata"`
}

type wTable struct {
	XMLName xml.Name `xml:"w:tbl"`
	Props   wTblPr   `xml:"w:tblPr"`
	Grid    wTblGrid `xml:"w:tblGrid"`
	Rows    []wRow   `xml:"w:tr"`
}

type wTblPr struct {
	Width wWidth `xml:"w:tblW"`
}

type wWidth struct {
	W    int    `xml:"w:w,attr"`
	Type string `xml:"w:type,attr"`
}

type wTblGrid struct {
	Cols []wGridCol `xml:"w:gridCol"`
}

type wGridCol struct {
	W int `xml:"w:w,attr"`
}

type wRow struct {
	Cells []wCell `xml:"w:tc"`
}

type wCell struct {
	Props wTcPr `xml:"w:tcPr"`
	Paras []wPara
}

type wTcPr struct {
	Width wWidth  `xml:"w:tcW"`
	Shade *wShade `xml:"w:shd,omitempty"`
}

type wShade struct {
	Val   string `xml:"w:val,attr"`
	Color string `xml:"w:color,attr"`
	Fill  string `xml:"w:fill,attr"`
}

type wSectPr struct {
	PgSz  wPgSz  `xml:"w:pgSz"`
	PgMar wPgMar `xml:"w:pgMar"`
}

type wPgSz struct {
	W int `xml:"w:w,attr"`
	H int `xml:"w:h,attr"`
}

type wPgMar struct {
	Top    int `xml:"w:top,attr"`
	Right  int `xml:"w:right,attr"`
	Bottom int `xml:"w:bottom,attr"`
	Left   int `xml:"w:left,attr"`
}

// runStyle is a shorthand for building w:rPr.
type runStyle struct {
	bold, italic bool
	color        string
	size         int
}

func run(text string, st runStyle) wRun {
	r := wRun{Text: wText{Value: text, Space: "preserve"}}
	if st == (runStyle{}) {
		return r
	}
	p := &wRPr{}
	if st.bold {
		p.Bold = &wOn{}
	}
	if st.italic {
		p.Italic = &wOn{}
	}
	if st.color != "" {
		p.Color = &wVal{Val: st.color}
	}
	if st.size > 0 {
		p.Size = &wVal{Val: fmt.Sprint(st.size)}
	}
	r.Props = p
	return r
}

func para(align string, runs ...wRun) wPara {
	p := wPara{Runs: runs}
	if align != "" {
		p.Props = &wPPr{Jc: &wVal{Val: align}}
	}
	return p
}

func blank() wPara { return wPara{} }

func docxAlign(a string) string {
	switch a {
	case "C":
		return "center"
	case "R":
		return "right"
	}
	return ""
}

// documentBody lays the view out as Word paragraphs and one items table.
func documentBody(v *view) []any {
	brand := v.Brand.Hex()
	muted := runStyle{size: 20, color: "666666"}
	var out []any
	add := func(p ...wPara) {
		for _, x := range p {
			out = append(out, x)
		}
	}

	add(
		para("", run(v.Heading, runStyle{bold: true, size: 48, color: brand})),
		para("", run("#"+v.Number, runStyle{size: 24, color: "666666"})),
		blank(),
		para("", run(v.Business.Name, runStyle{bold: true, size: 28})),
	)
	for _, line := range v.Business.Lines {
		add(para("", run(line, muted)))
	}
	add(blank(), para("", run("Bill To:", runStyle{bold: true, size: 24})))
	if v.BillTo == nil {
		add(para("", run(v.NoClient(), runStyle{italic: true, size: 20, color: "666666"})))
	} else {
		add(para("", run(v.BillTo.Name, runStyle{bold: true, size: 22})))
		for _, line := range v.BillTo.Lines {
			add(para("", run(line, muted)))
		}
	}
	add(blank())
	if v.IssueDate != "" {
		add(para("", run("Issue Date: "+v.IssueDate, runStyle{size: 20})))
	}
	if v.Date != "" {
		add(para("", run(v.DateLabel+": "+v.Date, runStyle{size: 20})))
	}
	add(para("", run("Status: "+v.Status, runStyle{bold: true, size: 20, color: brand})), blank())
	if v.Title != "" {
		add(para("", run(v.Title, runStyle{bold: true, size: 28})), blank())
	}

	out = append(out, itemsTable(v))
	add(
		blank(),
		para("right", run("Subtotal: "+v.Money(v.Subtotal), runStyle{size: 22})),
		para("right", run(v.TaxLabel+": "+v.Money(v.Tax), runStyle{size: 22})),
		para("right", run("Total: "+v.Money(v.Total), runStyle{bold: true, size: 28})),
		blank(),
	)
	if v.Notes != "" {
		add(para("", run("Notes:", runStyle{bold: true, size: 20, color: "666666"})),
			para("", run(v.Notes, runStyle{size: 20})), blank())
	}
	if v.Terms != "" {
		add(para("", run(v.TermsLabel+":", runStyle{bold: true, size: 20, color: "666666"})),
			para("", run(v.Terms, runStyle{size: 20})))
	}
	add(blank(), para("center", run(v.Footer, runStyle{size: 16, color: "999999"})))
	return out
}

func itemsTable(v *view) wTable {
	tbl := wTable{Props: wTblPr{Width: wWidth{W: 5000, Type: "pct"}}}
	for _, w := range colTwips {
		tbl.Grid.Cols = append(tbl.Grid.Cols, wGridCol{W: w})
	}
	head := wRow{}
	for i, h := range colHeads {
		head.Cells = append(head.Cells, wCell{
			Props: wTcPr{
				Width: wWidth{W: colTwips[i], Type: "dxa"},
				Shade: &wShade{Val: "clear", Color: "auto", Fill: v.Brand.Hex()},
			},
			Paras: []wPara{para(docxAlign(colAlign[i]), run(h, runStyle{bold: true, color: "FFFFFF"}))},
		})
	}
	tbl.Rows = append(tbl.Rows, head)
	for _, it := range v.Items {
		vals := [4]string{it.Description, it.Quantity, v.Money(it.UnitPrice), v.Money(it.Amount)}
		row := wRow{}
		for i, s := range vals {
			row.Cells = append(row.Cells, wCell{
				Props: wTcPr{Width: wWidth{W: colTwips[i], Type: "dxa"}},
				Paras: []wPara{para(docxAlign(colAlign[i]), run(s, runStyle{}))},
			})
		}
		tbl.Rows = append(tbl.Rows, row)
	}
	return tbl
}

func marshalPart(v any) ([]byte, error) {
	body, err := xml.Marshal(v)
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), body...), nil
}

// renderDocx packs the minimal Office Open XML parts Word needs to open the
// file. Entry timestamps are fixed so identical input gives identical bytes.
func renderDocx(v *view) ([]byte, error) {
	doc := wDocument{
		W: nsMain,
		Body: wBody{
			Blocks: documentBody(v),
			Sect: wSectPr{
				PgSz:  wPgSz{W: 11906, H: 16838},
				PgMar: wPgMar{Top: 1134, Right: 708, Bottom: 1134, Left: 708},
			},
		},
	}
	parts := []struct {
		name string
		v    any
	}{
		{"[Content_Types].xml", contentTypes{
			Xmlns: nsTypes,
			Defaults: []ctDefault{
				{Extension: "rels", ContentType: ctRels},
				{Extension: "xml", ContentType: "application/xml"},
			},
			Overrides: []ctOverride{{PartName: "/word/document.xml", ContentType: ctMain}},
		}},
		{"_rels/.rels", relationships{
			Xmlns: nsRels,
			Rels:  []relationship{{ID: "rId1", Type: relOffice, Target: "word/document.xml"}},
		}},
		{"word/document.xml", doc},
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, p := range parts {
		data, err := marshalPart(p.v)
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", p.name, err)
		}
		w, err := zw.CreateHeader(&zip.FileHeader{Name: p.name, Method: zip.Deflate, Modified: zipEpoch})
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", p.name, err)
		}
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("write %s: %w", p.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close docx: %w", err)
	}
	return buf.Bytes(), nil
}
