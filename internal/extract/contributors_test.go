package extract

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestContributorsAuthorsAndEditors(t *testing.T) {
	article := parseArticle(t, `<article><front><article-meta>
		<contrib-group>
			<contrib contrib-type="author" corresp="yes">
				<contrib-id contrib-id-type="orcid">0000-0001-2345-6789</contrib-id>
				<name><surname>Curie</surname><given-names>Marie</given-names></name>
				<email>mc@example.org</email>
				<xref ref-type="aff" rid="aff1"/>
			</contrib>
			<contrib contrib-type="author">
				<name><surname>Meitner</surname><given-names>Lise</given-names></name>
				<xref ref-type="aff" rid="aff1 aff2"/>
			</contrib>
		</contrib-group>
		<contrib-group>
			<contrib contrib-type="editor">
				<name><surname>Bohr</surname><given-names>Niels</given-names></name>
			</contrib>
		</contrib-group>
		<aff id="aff1"><label>1</label><institution>Radium Institute</institution></aff>
		<aff id="aff2"><label>2</label>Kaiser Wilhelm Institute, Berlin</aff>
	</article-meta></front></article>`)

	authors, others := Contributors(article)
	require.Len(t, authors, 2)
	require.Len(t, others, 1)

	require.Equal(t, "Marie", authors[0].FirstName)
	require.Equal(t, "Curie", authors[0].LastName)
	require.Equal(t, "mc@example.org", authors[0].Email)
	require.Equal(t, []string{"Radium Institute"}, authors[0].Affiliations)
	require.Equal(t, "yes", authors[0].Extra["corresponding"])
	require.Equal(t, "0000-0001-2345-6789", authors[0].Extra["orcid"])

	require.Equal(t, []string{"Radium Institute", "Kaiser Wilhelm Institute, Berlin"},
		authors[1].Affiliations)

	require.Equal(t, "Editor", others[0].Type)
	require.Equal(t, "Bohr", others[0].LastName)
}

func TestContributorsCollab(t *testing.T) {
	article := parseArticle(t, `<article><front><article-meta>
		<contrib-group>
			<contrib contrib-type="author"><collab>The Genome Consortium</collab></contrib>
		</contrib-group>
	</article-meta></front></article>`)
	authors, _ := Contributors(article)
	require.Len(t, authors, 1)
	require.Equal(t, "The Genome Consortium", authors[0].LastName)
	require.Empty(t, authors[0].FirstName)
}

func TestContributorsGroupAffiliationFallback(t *testing.T) {
	article := parseArticle(t, `<article><front><article-meta>
		<contrib-group>
			<contrib contrib-type="author">
				<name><surname>Darwin</surname><given-names>Charles</given-names></name>
			</contrib>
			<aff><institution>Down House</institution></aff>
		</contrib-group>
	</article-meta></front></article>`)
	authors, _ := Contributors(article)
	require.Equal(t, []string{"Down House"}, authors[0].Affiliations)
}
