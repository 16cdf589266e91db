package extract

import (
	"strconv"

	"github.com/pmcharvest/pmcharvest/internal/domain"
	"github.com/pmcharvest/pmcharvest/internal/jats"
)

// Tables extracts every table-wrap into a label, caption, and a dense
// rectangular cell matrix: header rows first, then body rows, with
// colspan and rowspan expanded by repeating the cell value.
func Tables(article *jats.Node) []domain.Table {
	out := []domain.Table{}
	for _, tw := range article.FindAll("table-wrap") {
		t := domain.Table{Rows: [][]string{}}
		if l := tw.Child("label"); l != nil {
			t.Label = l.CleanText()
		}
		if c := tw.Child("caption"); c != nil {
			t.Caption = jats.RenderText(c, nil)
		}
		if table := tw.Find("table"); table != nil {
			t.Rows = tableMatrix(table)
		}
		out = append(out, t)
	}
	return out
}

// spill tracks a rowspan cell that still occupies its column in upcoming
// rows.
type spill struct {
	value     string
	remaining int
}

func tableMatrix(table *jats.Node) [][]string {
	var trs []*jats.Node
	for _, thead := range table.ChildrenNamed("thead") {
		trs = append(trs, thead.FindAll("tr")...)
	}
	for _, tbody := range table.ChildrenNamed("tbody") {
		trs = append(trs, tbody.FindAll("tr")...)
	}
	trs = append(trs, table.ChildrenNamed("tr")...)
	for _, tfoot := range table.ChildrenNamed("tfoot") {
		trs = append(trs, tfoot.FindAll("tr")...)
	}

	carry := map[int]*spill{}
	rows := [][]string{}
	for _, tr := range trs {
		var row []string
		col := 0
		place := func(v string) {
			row = append(row, v)
			col++
		}
		fillCarried := func() {
			for {
				sp := carry[col]
				if sp == nil || sp.remaining == 0 {
					return
				}
				sp.remaining--
				v := sp.value
				if sp.remaining == 0 {
					delete(carry, col)
				}
				place(v)
			}
		}
		for _, cell := range tr.Children {
			if cell.Name != "td" && cell.Name != "th" {
				continue
			}
			fillCarried()
			value := jats.RenderText(cell, nil)
			colspan := spanAttr(cell, "colspan")
			rowspan := spanAttr(cell, "rowspan")
			for i := 0; i < colspan; i++ {
				if rowspan > 1 {
					carry[col] = &spill{value: value, remaining: rowspan - 1}
				}
				place(value)
			}
		}
		fillCarried()
		rows = append(rows, row)
	}

	// Pad to a rectangle.
	width := 0
	for _, r := range rows {
		if len(r) > width {
			width = len(r)
		}
	}
	for i, r := range rows {
		for len(r) < width {
			r = append(r, "")
		}
		rows[i] = r
	}
	return rows
}

func spanAttr(cell *jats.Node, name string) int {
	v, err := strconv.Atoi(cell.Attr(name))
	if err != nil || v < 1 {
		return 1
	}
	return v
}
