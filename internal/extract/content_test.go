package extract

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPermissions(t *testing.T) {
	article := parseArticle(t, `<article><front><article-meta><permissions>
		<copyright-statement>© The Authors 2020</copyright-statement>
		<copyright-year>2020</copyright-year>
		<license href="https://creativecommons.org/licenses/by-nc-nd/4.0/">
			<license-p>This is an open access article.</license-p>
		</license>
	</permissions></article-meta></front></article>`)
	out := Permissions(article)
	require.Equal(t, "© The Authors 2020", out["copyright_statement"])
	require.Equal(t, "2020", out["copyright_year"])
	require.Equal(t, "cc-by-nc-nd", out["license_type"])
	require.Equal(t, "This is an open access article.", out["license_text"])
}

func TestLicenseTypeSlugs(t *testing.T) {
	for _, tc := range []struct {
		src  string
		want string
	}{
		{`<license license-type="open-access"/>`, "open-access"},
		{`<license href="https://creativecommons.org/licenses/by/4.0/"/>`, "cc-by"},
		{`<license href="https://creativecommons.org/publicdomain/zero/1.0/"/>`, "cc0"},
		{`<license href="https://creativecommons.org/licenses/"/>`, "cc"},
		{`<license href="https://example.org/terms"/>`, "custom"},
		{`<license/>`, ""},
	} {
		root := parseArticle(t, tc.src)
		require.Equal(t, tc.want, licenseType(root), tc.src)
	}
}

func TestEthics(t *testing.T) {
	article := parseArticle(t, `<article><back>
		<fn-group><fn fn-type="conflict"><p>The authors declare no conflicts.</p></fn></fn-group>
		<sec sec-type="data-availability"><title>Data</title><p>Data are on Zenodo.</p></sec>
		<sec sec-type="ethics-statement"><p>Approved by IRB 17.</p></sec>
	</back></article>`)
	out := Ethics(article)
	require.Equal(t, "The authors declare no conflicts.", out["conflict_of_interest"])
	require.Contains(t, out["data_availability"], "Data are on Zenodo.")
	require.Contains(t, out["ethics_statement"], "Approved by IRB 17.")
}

func TestFunding(t *testing.T) {
	article := parseArticle(t, `<article><front><article-meta><funding-group>
		<award-group><funding-source><institution>NIH</institution></funding-source></award-group>
		<award-group><funding-source>Wellcome Trust</funding-source></award-group>
		<award-group><funding-source><institution>NIH</institution></funding-source></award-group>
	</funding-group></article-meta></front></article>`)
	require.Equal(t, []string{"NIH", "Wellcome Trust"}, Funding(article))
}

func TestEquations(t *testing.T) {
	article := parseArticle(t, `<article><body><sec><title>S</title>
		<disp-formula id="eq1">
			<math xmlns="http://www.w3.org/1998/Math/MathML"><mi>x</mi></math>
			<tex-math>x</tex-math>
		</disp-formula>
		<p>Inline <inline-formula><tex-math>y^2</tex-math></inline-formula> here.</p>
	</sec></body></article>`)
	eqs := Equations(article)
	require.Len(t, eqs, 2)
	require.Equal(t, "eq1", eqs[0].ID)
	require.Contains(t, eqs[0].MathML, "<math")
	require.Contains(t, eqs[0].MathML, "<mi>x</mi>")
	require.Equal(t, "x", eqs[0].Tex)
	require.Equal(t, "y^2", eqs[1].Tex)
	require.Empty(t, eqs[1].MathML)
}

func TestFigures(t *testing.T) {
	article := parseArticle(t, `<article><body><sec>
		<fig id="f1"><label>Figure 1</label>
			<caption><p>Survival curves by arm.</p></caption>
			<alt-text>Two diverging curves</alt-text>
			<graphic href="fig1.tif"/>
		</fig>
	</sec></body></article>`)
	figs := Figures(article)
	require.Len(t, figs, 1)
	require.Equal(t, "f1", figs[0].ID)
	require.Equal(t, "Figure 1", figs[0].Label)
	require.Equal(t, "Survival curves by arm.", figs[0].Caption)
	require.Equal(t, "fig1.tif", figs[0].GraphicHref)
	require.Equal(t, "Two diverging curves", figs[0].AltText)
}

func TestSupplementary(t *testing.T) {
	article := parseArticle(t, `<article><back><sec>
		<supplementary-material id="s1" href="supp1.zip">
			<label>S1</label><caption><p>Raw measurements.</p></caption>
		</supplementary-material>
	</sec></back></article>`)
	supps := Supplementary(article)
	require.Len(t, supps, 1)
	require.Equal(t, "S1", supps[0].Label)
	require.Equal(t, "Raw measurements.", supps[0].Caption)
	require.Equal(t, "supp1.zip", supps[0].Href)
}

func TestCustomMetaDeterministicKeys(t *testing.T) {
	src := `<article><front><article-meta><custom-meta-group>
		<custom-meta><meta-name>screened</meta-name><meta-value>yes</meta-value></custom-meta>
		<custom-meta><meta-value>orphan value</meta-value></custom-meta>
	</custom-meta-group></article-meta></front></article>`

	first := CustomMeta(parseArticle(t, src))
	second := CustomMeta(parseArticle(t, src))
	require.Equal(t, first, second)
	require.Equal(t, "yes", first["screened"])
	require.Len(t, first, 2)
	for k := range first {
		if k != "screened" {
			require.Contains(t, k, "custom-")
		}
	}
}

func TestFootnotesAndNotes(t *testing.T) {
	article := parseArticle(t, `<article><back>
		<fn-group><fn><p>First part.</p><p>Second part.</p></fn></fn-group>
		<notes><p>A closing note.</p></notes>
	</back></article>`)
	require.Equal(t, []string{"First part. - Second part."}, Footnotes(article))
	require.Equal(t, []string{"A closing note."}, Notes(article))
}

func TestGlossaryAndAppendices(t *testing.T) {
	article := parseArticle(t, `<article><back>
		<glossary><def-list><def-item>
			<term>PCR</term><def><p>Polymerase chain reaction</p></def>
		</def-item></def-list></glossary>
		<app-group><app><title>Appendix A</title><p>Extra derivations.</p></app></app-group>
	</back></article>`)
	gl := Glossary(article)
	require.Len(t, gl, 1)
	require.Equal(t, "PCR", gl[0].Term)
	require.Equal(t, "Polymerase chain reaction", gl[0].Definition)

	apps := Appendices(article)
	require.Len(t, apps, 1)
	require.Equal(t, "Appendix A", apps[0].Title)
	require.Equal(t, "Extra derivations.", apps[0].Text)
}
