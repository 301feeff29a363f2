package curriculum

import (
	"context"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/v0xg/coursescrape/internal/browser"
	"github.com/v0xg/coursescrape/internal/extract"
	"github.com/v0xg/coursescrape/internal/logger"
	"github.com/v0xg/coursescrape/internal/model"
)

const (
	crumbButton  = `button[data-toggle^="crumb-select-"]`
	crumbOptions = `ul[id^="crumb-select-"] li a`

	dropdownTimeout = 10 * time.Second
	dropdownSettle  = time.Second
	teachSettle     = 2 * time.Second
)

var (
	sectionStrict = regexp.MustCompile(`(?i)\d+\.\d+\s+Section\s+[A-Z]:`)
	sectionLoose  = regexp.MustCompile(`(?i)Section\s+[A-Z]`)

	lessonPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^Lesson\s+\d+\s*:`),
		regexp.MustCompile(`(?i)Lesson\s+\d+\s*[:-]`),
		regexp.MustCompile(`(?i)^Lesson\s+\d+\s+[A-Za-z]`),
	}
	lessonLoose = regexp.MustCompile(`(?i)Lesson\s+\d+`)

	gradeUnit = regexp.MustCompile(`Grade\s+(\d+)\s+Unit\s+(\d+)`)
	firstNum  = regexp.MustCompile(`\d+\.\d+|\d+`)
)

var titleChain = extract.TextChain("title",
	extract.FirstText("h1"),
	extract.FirstText(".wiki-title"),
	extract.FirstText("title"),
)

// linkStrategy wraps a link query as a strategy, deduped per URL
func linkStrategy(name string, base *url.URL, selector string, keep func(text, href string) bool) extract.Strategy[[]model.Link] {
	return extract.Strategy[[]model.Link]{
		Name: name,
		Run: func(doc *goquery.Document) []model.Link {
			return extract.Dedupe(extract.Links(doc, selector, base, keep))
		},
	}
}

func sectionChain(base *url.URL) extract.Chain[[]model.Link] {
	return extract.SliceChain("sections",
		linkStrategy("crumb-pattern", base, crumbOptions+`, a[href*="/wikis/"]`, extract.TextMatches(sectionStrict)),
		linkStrategy("wiki-links", base, `a[href*="/wikis/"]`, extract.TextMatches(sectionLoose)),
		linkStrategy("data-test", base, `a[data-test*="Wiki"]`, func(text, href string) bool {
			return strings.Contains(href, "section") || extract.ContainsFold(text, "section")
		}),
	)
}

func lessonChain(base *url.URL) extract.Chain[[]model.Link] {
	return extract.SliceChain("lessons",
		linkStrategy("dropdown", base, crumbOptions+`, .dropdown-pane.is-open li a`, extract.TextMatches(lessonPatterns...)),
		linkStrategy("lesson-plans", base, `a[href*="/lesson_plans/"]`, func(text, _ string) bool {
			return lessonLoose.MatchString(text) || strings.HasPrefix(text, "Lesson")
		}),
	)
}

func pageURL(page browser.Page) *url.URL {
	u, err := url.Parse(page.URL())
	if err != nil {
		return nil
	}
	return u
}

func (s *Site) sections(ctx context.Context, page browser.Page, log logger.Interface) []model.Link {
	// A second breadcrumb dropdown holds the section list on some units
	if has, _ := page.Has(ctx, crumbButton+`:nth-of-type(2)`); has {
		if err := page.Click(ctx, crumbButton+`:nth-of-type(2)`); err == nil {
			_ = s.opts.Sleep(ctx, dropdownSettle)
		}
	}
	doc, err := extract.Snapshot(ctx, page)
	if err != nil {
		log.Warn("Could not read unit page", "error", err)
		return []model.Link{}
	}
	return sectionChain(pageURL(page)).Run(doc, log).Value
}

func (s *Site) lessons(ctx context.Context, page browser.Page, log logger.Interface) []model.Link {
	doc, err := extract.Snapshot(ctx, page)
	if err != nil {
		log.Warn("Could not read page", "error", err)
		return []model.Link{}
	}

	picker := doc.Find("button").FilterFunction(func(_ int, b *goquery.Selection) bool {
		return extract.ContainsFold(b.Text(), "Select content")
	}).First()
	if picker.Length() > 0 {
		if err := page.Click(ctx, extract.CSSPath(picker)); err != nil {
			log.Debug("Could not open content picker", "error", err)
		} else {
			_ = s.opts.Sleep(ctx, dropdownSettle)
			if fresh, err := extract.Snapshot(ctx, page); err == nil {
				doc = fresh
			}
		}
	}
	return lessonChain(pageURL(page)).Run(doc, log).Value
}

// unitPrefix turns "Grade 8 Unit 1 | ..." into "8.1", the label used by the Teach option
func unitPrefix(title string) string {
	if m := gradeUnit.FindStringSubmatch(title); m != nil {
		return m[1] + "." + m[2]
	}
	return firstNum.FindString(title)
}

// openTeachView switches a middle school unit page to its Teach view, where
// the section links live. It reports whether the switch happened.
func (s *Site) openTeachView(ctx context.Context, page browser.Page, item model.WorkItem, log logger.Interface) bool {
	if err := page.WaitForSelector(ctx, crumbButton, dropdownTimeout); err != nil {
		log.Debug("No breadcrumb dropdown", "error", err)
		return false
	}
	if err := page.Click(ctx, crumbButton); err != nil {
		log.Debug("Could not open breadcrumb dropdown", "error", err)
		return false
	}
	_ = s.opts.Sleep(ctx, dropdownSettle)

	doc, err := extract.Snapshot(ctx, page)
	if err != nil {
		return false
	}
	options := doc.Find(crumbOptions)
	prefix := unitPrefix(item.Title)
	teach := options.FilterFunction(func(_ int, a *goquery.Selection) bool {
		return prefix != "" && strings.Contains(a.Text(), prefix+" Teach")
	}).First()
	if teach.Length() == 0 {
		log.Debug("No exact Teach option, taking the first", "prefix", prefix)
		teach = options.FilterFunction(func(_ int, a *goquery.Selection) bool {
			return strings.Contains(a.Text(), "Teach")
		}).First()
	}
	if teach.Length() == 0 {
		return false
	}

	if err := page.Click(ctx, extract.CSSPath(teach)); err != nil {
		log.Debug("Could not click Teach option", "error", err)
		return false
	}
	_ = s.opts.Sleep(ctx, teachSettle)
	return true
}
