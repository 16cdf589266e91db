package extract

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTablesSimple(t *testing.T) {
	article := parseArticle(t, `<article><body><sec>
		<table-wrap id="t1"><label>Table 1</label><caption><p>Counts by group.</p></caption>
		<table>
			<thead><tr><th>Group</th><th>N</th></tr></thead>
			<tbody>
				<tr><td>Control</td><td>10</td></tr>
				<tr><td>Treated</td><td>12</td></tr>
			</tbody>
		</table></table-wrap>
	</sec></body></article>`)
	tables := Tables(article)
	require.Len(t, tables, 1)
	require.Equal(t, "Table 1", tables[0].Label)
	require.Equal(t, "Counts by group.", tables[0].Caption)
	require.Equal(t, [][]string{
		{"Group", "N"},
		{"Control", "10"},
		{"Treated", "12"},
	}, tables[0].Rows)
}

func TestTablesColspanExpansion(t *testing.T) {
	article := parseArticle(t, `<article><body>
		<table-wrap><table>
			<tr><th colspan="2">Both</th><th>C</th></tr>
			<tr><td>a</td><td>b</td><td>c</td></tr>
		</table></table-wrap>
	</body></article>`)
	tables := Tables(article)
	require.Equal(t, [][]string{
		{"Both", "Both", "C"},
		{"a", "b", "c"},
	}, tables[0].Rows)
}

func TestTablesRowspanExpansion(t *testing.T) {
	article := parseArticle(t, `<article><body>
		<table-wrap><table>
			<tr><td rowspan="2">span</td><td>r1</td></tr>
			<tr><td>r2</td></tr>
			<tr><td>x</td><td>y</td></tr>
		</table></table-wrap>
	</body></article>`)
	tables := Tables(article)
	require.Equal(t, [][]string{
		{"span", "r1"},
		{"span", "r2"},
		{"x", "y"},
	}, tables[0].Rows)
}

func TestTablesRaggedRowsArePadded(t *testing.T) {
	article := parseArticle(t, `<article><body>
		<table-wrap><table>
			<tr><td>a</td><td>b</td><td>c</td></tr>
			<tr><td>only</td></tr>
		</table></table-wrap>
	</body></article>`)
	tables := Tables(article)
	require.Equal(t, [][]string{
		{"a", "b", "c"},
		{"only", "", ""},
	}, tables[0].Rows)
}

func TestTablesInvalidSpanTreatedAsOne(t *testing.T) {
	article := parseArticle(t, `<article><body>
		<table-wrap><table>
			<tr><td colspan="zero">a</td><td rowspan="-3">b</td></tr>
		</table></table-wrap>
	</body></article>`)
	tables := Tables(article)
	require.Equal(t, [][]string{{"a", "b"}}, tables[0].Rows)
}
