package extract

import (
	"github.com/pmcharvest/pmcharvest/internal/domain"
	"github.com/pmcharvest/pmcharvest/internal/jats"
)

// Figures extracts figure metadata: label, caption, the first graphic's
// href, and alt-text when present. Image bytes are never downloaded; PMC
// XML carries relative links that need separate resolution anyway.
func Figures(article *jats.Node) []domain.Figure {
	out := []domain.Figure{}
	for _, fig := range article.FindAll("fig") {
		f := domain.Figure{ID: fig.Attr("id")}
		if l := fig.Child("label"); l != nil {
			f.Label = l.CleanText()
		}
		if c := fig.Child("caption"); c != nil {
			f.Caption = jats.RenderText(c, nil)
		}
		if g := fig.Find("graphic"); g != nil {
			f.GraphicHref = g.Attr("href")
		}
		if alt := fig.Find("alt-text"); alt != nil {
			f.AltText = alt.CleanText()
		}
		out = append(out, f)
	}
	return out
}
