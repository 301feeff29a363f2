package roadmaps

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/v0xg/coursescrape/internal/artifact"
	"github.com/v0xg/coursescrape/internal/browser"
	"github.com/v0xg/coursescrape/internal/extract"
	"github.com/v0xg/coursescrape/internal/logger"
	"github.com/v0xg/coursescrape/internal/model"
)

const (
	RoleWorkedExample   = "worked-example-video"
	RolePracticeProblem = "practice-problem"

	videoDialog      = ".p-dialog"
	videoDialogClose = ".p-dialog .p-dialog-header-close"
	practiceTab      = "span.p-tabview-title"
	practiceProblem  = `div[id*="_practice_"]`

	dialogTimeout   = 5 * time.Second
	practiceTimeout = 5 * time.Second
	videoSettle     = time.Second
	practiceSettle  = 2 * time.Second
)

// VideoKey is the stable storage key of a skill's worked-example video
func VideoKey(skill string) string {
	return fmt.Sprintf("roadmaps/skill-%s/worked-example-video.mp4", skill)
}

// PracticeKey names one practice screenshot. The timestamp makes every capture unique.
func PracticeKey(skill string, problem int, at time.Time) string {
	return fmt.Sprintf("roadmaps/skill-%s/practice-%d-%d.png", skill, problem, at.UnixMilli())
}

// withText narrows sel to elements whose text contains text
func withText(sel *goquery.Selection, text string) *goquery.Selection {
	return sel.FilterFunction(func(_ int, s *goquery.Selection) bool {
		return extract.ContainsFold(s.Text(), text)
	}).First()
}

// workedExampleVideo opens the video dialog and stores the clip under a key
// shared by every run, so a video is downloaded at most once.
func (s *Site) workedExampleVideo(ctx context.Context, page browser.Page, doc *goquery.Document, res *model.ExtractionResult, skill string, base *url.URL, log logger.Interface) {
	if s.opts.Artifacts == nil || s.opts.Fetcher == nil {
		return
	}

	acc := withText(doc.Find(accordionHeader), "Additional Lessons")
	if acc.Length() == 0 {
		log.Debug("No additional lessons accordion")
		return
	}
	if acc.AttrOr("aria-expanded", "") == "false" {
		if err := page.Click(ctx, extract.CSSPath(acc)); err != nil {
			log.Warn("Could not expand additional lessons", "error", err)
			return
		}
		_ = s.opts.Sleep(ctx, accordionSettle)
		fresh, err := extract.Snapshot(ctx, page)
		if err != nil {
			log.Warn("Could not read page after expanding", "error", err)
			return
		}
		doc = fresh
	}

	link := withText(doc.Find("a, button"), "Worked Example Video")
	if link.Length() == 0 {
		log.Debug("No worked example video link")
		return
	}
	if err := page.Click(ctx, extract.CSSPath(link)); err != nil {
		log.Warn("Could not open worked example video", "error", err)
		return
	}
	defer s.closeDialog(ctx, page, log)

	if err := page.WaitForSelector(ctx, videoDialog, dialogTimeout); err != nil {
		log.Warn("Video dialog did not open", "error", err)
		return
	}
	_ = s.opts.Sleep(ctx, videoSettle)

	dialog, err := extract.Snapshot(ctx, page)
	if err != nil {
		log.Warn("Could not read video dialog", "error", err)
		return
	}
	sources := extract.Videos(dialog.Find(videoDialog), base)
	if len(sources) == 0 {
		log.Warn("Video dialog has no source")
		return
	}

	key := VideoKey(skill)
	ref := model.ArtifactRef{
		Role:        RoleWorkedExample,
		LogicalKey:  key,
		SourceURL:   sources[0],
		ContentType: "video/mp4",
	}
	cookies, err := page.Cookies(ctx)
	if err != nil {
		log.Debug("Fetching video without cookies", "error", err)
	}
	stored, err := s.opts.Artifacts.PutIfAbsent(ctx, key, s.opts.Fetcher.Fetch(sources[0], cookies), ref.ContentType)
	if err != nil {
		log.Warn("Failed to store worked example video", "key", key, "error", err)
		ref.Error = err.Error()
	} else {
		ref.StoredURL = stored
		res.Fields["videoUrl"] = stored
	}
	res.Artifacts = append(res.Artifacts, ref)
}

func (s *Site) closeDialog(ctx context.Context, page browser.Page, log logger.Interface) {
	if has, err := page.Has(ctx, videoDialogClose); err != nil || !has {
		return
	}
	if err := page.Click(ctx, videoDialogClose); err != nil {
		log.Debug("Could not close video dialog", "error", err)
		return
	}
	_ = s.opts.Sleep(ctx, accordionSettle)
}

// practiceProblems screenshots each practice problem on the practice tab.
// Screenshots are always uploaded fresh under a timestamped key.
func (s *Site) practiceProblems(ctx context.Context, page browser.Page, doc *goquery.Document, res *model.ExtractionResult, skill string, log logger.Interface) {
	if s.opts.Artifacts == nil || skill == "unknown" {
		return
	}

	tab := withText(doc.Find(practiceTab), "Practice Problems")
	if tab.Length() == 0 {
		log.Debug("No practice problems tab")
		return
	}
	if err := page.Click(ctx, extract.CSSPath(tab)); err != nil {
		log.Warn("Could not open practice problems", "error", err)
		return
	}
	if err := page.WaitForSelector(ctx, practiceProblem, practiceTimeout); err != nil {
		log.Info("No practice problems rendered", "error", err)
		return
	}
	_ = s.opts.Sleep(ctx, practiceSettle)

	doc, err := extract.Snapshot(ctx, page)
	if err != nil {
		log.Warn("Could not read practice problems", "error", err)
		return
	}

	prefix := skill + "_practice_"
	doc.Find(fmt.Sprintf(`div[id^="%s"]`, prefix)).Each(func(_ int, el *goquery.Selection) {
		id := el.AttrOr("id", "")
		number := problemNumber(strings.TrimPrefix(id, prefix))
		if number == 0 {
			return
		}
		key := PracticeKey(skill, number, s.opts.Clock())
		ref := model.ArtifactRef{Role: RolePracticeProblem, LogicalKey: key, ContentType: "image/png", Index: number}

		if stored, err := s.screenshot(ctx, page, id, key); err != nil {
			log.Warn("Failed to capture practice problem", "problem", number, "error", err)
			ref.Error = err.Error()
		} else {
			ref.StoredURL = stored
		}
		res.Artifacts = append(res.Artifacts, ref)
	})
}

func (s *Site) screenshot(ctx context.Context, page browser.Page, id, key string) (string, error) {
	// ids start with a digit, so they cannot be used as #id selectors
	shot, err := page.Screenshot(ctx, fmt.Sprintf(`[id="%s"]`, id))
	if err != nil {
		return "", err
	}
	shot, err = artifact.Downscale(shot, s.opts.MaxScreenshotWidth)
	if err != nil {
		return "", err
	}
	return s.opts.Artifacts.Put(ctx, key, shot, "image/png")
}

// problemNumber reads the leading digits of rest
func problemNumber(rest string) int {
	end := 0
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	n, _ := strconv.Atoi(rest[:end])
	return n
}
