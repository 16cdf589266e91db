package jats

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pmcharvest/pmcharvest/internal/apperr"
)

func mustParse(t *testing.T, src string) *Node {
	t.Helper()
	root, _, err := Parse(strings.NewReader(src))
	require.NoError(t, err)
	return root
}

func TestParseMixedContent(t *testing.T) {
	root := mustParse(t, `<p>alpha <italic>beta</italic> gamma</p>`)
	require.Equal(t, "p", root.Name)
	require.Equal(t, "alpha ", root.Text)
	require.Len(t, root.Children, 1)
	require.Equal(t, "italic", root.Children[0].Name)
	require.Equal(t, "beta", root.Children[0].Text)
	require.Equal(t, " gamma", root.Children[0].Tail)
	require.Equal(t, "alpha beta gamma", root.CleanText())
}

func TestParseNamespacesAreLocal(t *testing.T) {
	root := mustParse(t, `<article xmlns:xlink="http://www.w3.org/1999/xlink">`+
		`<ext-link xlink:href="https://example.org">site</ext-link></article>`)
	link := root.Find("ext-link")
	require.NotNil(t, link)
	require.Equal(t, "https://example.org", link.Attr("href"))
}

func TestParseEmptyInput(t *testing.T) {
	_, _, err := Parse(strings.NewReader("   "))
	require.Error(t, err)
	require.True(t, apperr.Is(err, apperr.ValidationError))
}

func TestParseDoctype(t *testing.T) {
	_, dt, err := Parse(strings.NewReader(`<!DOCTYPE article PUBLIC "-//NLM//DTD JATS (Z39.96) Journal Archiving and Interchange DTD v1.2 20190208//EN" "JATS-archivearticle1.dtd"><article/>`))
	require.NoError(t, err)
	require.NotNil(t, dt)
	require.Empty(t, dt.Advisory())

	_, dt, err = Parse(strings.NewReader(`<article/>`))
	require.NoError(t, err)
	require.NotEmpty(t, dt.Advisory())
}

func TestFindIsDocumentOrder(t *testing.T) {
	root := mustParse(t, `<a><b><c id="first"/></b><c id="second"/></a>`)
	require.Equal(t, "first", root.Find("c").Attr("id"))
	all := root.FindAll("c")
	require.Len(t, all, 2)
	require.Equal(t, "second", all[1].Attr("id"))
}

func TestCloneIsIndependent(t *testing.T) {
	root := mustParse(t, `<p>one <b>two</b> three</p>`)
	cp := root.Clone()
	cp.Children[0].Text = "TWO"
	require.Equal(t, "two", root.Children[0].Text)
	require.Equal(t, " three", cp.Children[0].Tail)
}

func TestOuterXML(t *testing.T) {
	root := mustParse(t, `<fig id="f1"><label>Fig 1</label></fig>`)
	out := root.OuterXML()
	require.Contains(t, out, `<fig id="f1">`)
	require.Contains(t, out, `<label>Fig 1</label>`)
}
