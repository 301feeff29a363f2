package curriculum

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/v0xg/coursescrape/internal/browser"
	"github.com/v0xg/coursescrape/internal/extract"
	"github.com/v0xg/coursescrape/internal/logger"
	"github.com/v0xg/coursescrape/internal/model"
)

// RoleLessonPDF marks a lesson's downloadable documents
const RoleLessonPDF = "lesson-pdf"

// PDFKey is the stable storage key of one lesson document. Keys follow the
// course hierarchy so every run finds the copy stored by the first.
func PDFKey(item model.WorkItem, filename string) string {
	parts := []string{"curriculum"}
	for _, p := range []string{item.CourseID, item.UnitID, item.SectionID, item.LessonID} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(append(parts, filename), "/")
}

// pdfLinks lists the distinct .pdf links on a lesson page
func pdfLinks(doc *goquery.Document, base *url.URL) []model.Link {
	links := extract.Links(doc, "a[href]", base, func(_, href string) bool {
		u, err := url.Parse(href)
		return err == nil && strings.HasSuffix(strings.ToLower(u.Path), ".pdf")
	})
	return extract.Dedupe(links)
}

func pdfFilename(link string, n int) string {
	if u, err := url.Parse(link); err == nil {
		if name := path.Base(u.Path); strings.HasSuffix(strings.ToLower(name), ".pdf") {
			return name
		}
	}
	return fmt.Sprintf("document-%d.pdf", n)
}

// lessonPDFs stores every document the lesson links to. A failed document
// is recorded on its artifact and does not fail the lesson.
func (s *Site) lessonPDFs(ctx context.Context, page browser.Page, doc *goquery.Document, res *model.ExtractionResult, log logger.Interface) {
	if s.opts.Artifacts == nil || s.opts.Fetcher == nil {
		return
	}
	base, err := url.Parse(page.URL())
	if err != nil || base.Host == "" {
		base, _ = url.Parse(res.Item.URL)
	}
	links := pdfLinks(doc, base)
	if len(links) == 0 {
		log.Debug("No lesson documents")
		return
	}

	cookies, err := page.Cookies(ctx)
	if err != nil {
		log.Debug("Fetching documents without cookies", "error", err)
	}
	for i, l := range links {
		key := PDFKey(res.Item, pdfFilename(l.URL, i+1))
		ref := model.ArtifactRef{
			Role:        RoleLessonPDF,
			LogicalKey:  key,
			SourceURL:   l.URL,
			Index:       i + 1,
			ContentType: "application/pdf",
		}
		stored, err := s.opts.Artifacts.PutIfAbsent(ctx, key, s.opts.Fetcher.Fetch(l.URL, cookies), ref.ContentType)
		if err != nil {
			log.Warn("Failed to store lesson document", "key", key, "error", err)
			ref.Error = err.Error()
		} else {
			ref.StoredURL = stored
		}
		res.Artifacts = append(res.Artifacts, ref)
	}
	log.Info("Stored lesson documents", "count", len(links))
}
