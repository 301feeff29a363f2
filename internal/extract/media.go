package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/v0xg/coursescrape/internal/model"
)

const maxCaption = 500

// Images finds <img> elements under sel, skipping inline data URIs and
// resolving sources to absolute URLs. Order counts within sel.
func Images(sel *goquery.Selection, base *url.URL, section string) []model.Image {
	var images []model.Image
	seen := map[string]bool{}
	sel.Find("img").AddSelection(sel.Filter("img")).Each(func(_ int, img *goquery.Selection) {
		src := img.AttrOr("src", "")
		if src == "" {
			src = img.AttrOr("data-src", "")
		}
		abs, ok := Resolve(base, src)
		if !ok || seen[abs] {
			return
		}
		seen[abs] = true
		images = append(images, model.Image{
			URL:     abs,
			Alt:     strings.TrimSpace(img.AttrOr("alt", "")),
			Caption: caption(img),
			Section: section,
			Order:   len(images),
		})
	})
	return images
}

// caption prefers a figcaption, then a preceding paragraph, then the parent's text
func caption(img *goquery.Selection) string {
	if fc := img.Closest("figure").Find("figcaption"); fc.Length() > 0 {
		return truncate(Clean(fc.First().Text()), maxCaption)
	}
	parent := img.Parent()
	if prev := parent.Prev(); prev.Length() > 0 && goquery.NodeName(prev) == "p" {
		if t := Clean(prev.Text()); t != "" {
			return truncate(t, maxCaption)
		}
	}
	return truncate(Clean(parent.Text()), 200)
}

// Videos returns absolute video sources under sel
func Videos(sel *goquery.Selection, base *url.URL) []string {
	var out []string
	seen := map[string]bool{}
	sel.Find("video[src], video source[src]").Each(func(_ int, s *goquery.Selection) {
		abs, ok := Resolve(base, s.AttrOr("src", ""))
		if ok && !seen[abs] {
			seen[abs] = true
			out = append(out, abs)
		}
	})
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
