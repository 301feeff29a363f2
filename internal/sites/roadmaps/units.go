package roadmaps

import (
	"context"
	"fmt"
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
	UnitsURL = BaseURL + "/units"

	// the units page has two dropdowns: roadmap, then unit
	dropdown        = ".p-dropdown"
	dropdownOption  = "li.p-dropdown-item"
	roadmapDropdown = 0
	unitDropdown    = 1

	dropdownTimeout = 5 * time.Second
	dropdownSettle  = time.Second
	unitSettle      = 2 * time.Second
)

var (
	unitNumberPattern = regexp.MustCompile(`^\s*(?:Unit\s+)?(\d+)`)
	nonSlug           = regexp.MustCompile(`[^a-z0-9]+`)
)

// skillGroups are the lists a unit page shows, keyed by result list name
var skillGroups = []section{
	{"targetSkills", "Target Skills"},
	{"supportSkills", "Additional Support Skills"},
	{"extensionSkills", "Extension Skills"},
}

// RoadmapItems turns roadmap names, as shown in the units page dropdown, into work items
func RoadmapItems(names []string) ([]model.WorkItem, error) {
	items := make([]model.WorkItem, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		id := slug(name)
		if id == "" {
			return nil, fmt.Errorf("not a roadmap name: %q", name)
		}
		items = append(items, model.WorkItem{
			URL:      UnitsURL,
			Level:    model.LevelCourse,
			Title:    name,
			CourseID: id,
			Group:    name,
		})
	}
	return items, nil
}

// UnitNumber reads the number a unit title starts with, or "" when it has none
func UnitNumber(title string) string {
	return extract.Submatch(unitNumberPattern, title)
}

func slug(s string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(s), "-"), "-")
}

// extractRoadmap selects the roadmap and lists the units it offers
func (s *Site) extractRoadmap(ctx context.Context, page browser.Page, item model.WorkItem, log logger.Interface) model.ExtractionResult {
	res := model.NewResult(item)
	res.Title = item.Group

	if err := s.choose(ctx, page, roadmapDropdown, item.Group); err != nil {
		res.Fail(fmt.Errorf("select roadmap: %w", err))
		return res
	}
	units, err := s.options(ctx, page, unitDropdown)
	if err != nil {
		res.Fail(fmt.Errorf("list units: %w", err))
		return res
	}
	res.Lists["units"] = units
	log.Info("Found units", "count", len(units))
	return res
}

// extractUnit selects roadmap and unit, then reads the unit's skill lists.
// A unit that cannot be selected fails; an empty list does not.
func (s *Site) extractUnit(ctx context.Context, page browser.Page, item model.WorkItem, log logger.Interface) model.ExtractionResult {
	res := model.NewResult(item)
	res.Title = item.Title

	if err := s.choose(ctx, page, roadmapDropdown, item.Group); err != nil {
		res.Fail(fmt.Errorf("select roadmap: %w", err))
		return res
	}
	if err := s.choose(ctx, page, unitDropdown, item.Title); err != nil {
		res.Fail(fmt.Errorf("select unit: %w", err))
		return res
	}
	if err := s.opts.Sleep(ctx, unitSettle); err != nil {
		res.Fail(err)
		return res
	}

	doc, err := extract.Snapshot(ctx, page)
	if err != nil {
		res.Fail(err)
		return res
	}
	base := pageBase(page, item)

	res.Fields["unitNumber"] = UnitNumber(item.Title)
	var all []model.Link
	for _, g := range skillGroups {
		links := skillListChain(g.key, g.label, base).Run(doc, log).Value
		numbers := make([]string, 0, len(links))
		for _, l := range links {
			numbers = append(numbers, SkillNumber(l.URL))
		}
		res.Lists[g.key] = numbers
		all = append(all, links...)
	}
	res.Links = extract.Dedupe(all)

	log.Info("Extracted unit",
		"target", len(res.Lists["targetSkills"]),
		"support", len(res.Lists["supportSkills"]),
		"extension", len(res.Lists["extensionSkills"]))
	return res
}

// choose opens dropdown number which and clicks the option labelled label
func (s *Site) choose(ctx context.Context, page browser.Page, which int, label string) error {
	if err := s.open(ctx, page, which); err != nil {
		return err
	}
	doc, err := extract.Snapshot(ctx, page)
	if err != nil {
		return err
	}
	want := extract.Clean(label)
	opt := doc.Find(dropdownOption).FilterFunction(func(_ int, o *goquery.Selection) bool {
		return strings.EqualFold(extract.Clean(o.Text()), want)
	}).First()
	if opt.Length() == 0 {
		return fmt.Errorf("no option %q", label)
	}
	if err := page.Click(ctx, extract.CSSPath(opt)); err != nil {
		return err
	}
	return s.opts.Sleep(ctx, dropdownSettle)
}

// options reads every label of dropdown number which and closes it again
func (s *Site) options(ctx context.Context, page browser.Page, which int) ([]string, error) {
	if err := s.open(ctx, page, which); err != nil {
		return nil, err
	}
	doc, err := extract.Snapshot(ctx, page)
	if err != nil {
		return nil, err
	}
	var labels []string
	doc.Find(dropdownOption).Each(func(_ int, o *goquery.Selection) {
		if t := extract.Clean(o.Text()); t != "" {
			labels = append(labels, t)
		}
	})
	if box := doc.Find(dropdown).Eq(which); box.Length() > 0 {
		if err := page.Click(ctx, extract.CSSPath(box)); err != nil {
			s.log.Debug("Could not close dropdown", "error", err)
		}
	}
	return labels, nil
}

func (s *Site) open(ctx context.Context, page browser.Page, which int) error {
	doc, err := extract.Snapshot(ctx, page)
	if err != nil {
		return err
	}
	box := doc.Find(dropdown).Eq(which)
	if box.Length() == 0 {
		return fmt.Errorf("dropdown %d not on page", which+1)
	}
	if err := page.Click(ctx, extract.CSSPath(box)); err != nil {
		return err
	}
	return page.WaitForSelector(ctx, dropdownOption, dropdownTimeout)
}

func skillLinks(sel *goquery.Selection, base *url.URL) []model.Link {
	var out []model.Link
	sel.Each(func(_ int, el *goquery.Selection) {
		el.Find(`a[href*="/skill/"]`).AddSelection(el.Filter(`a[href*="/skill/"]`)).Each(func(_ int, a *goquery.Selection) {
			abs, ok := extract.Resolve(base, a.AttrOr("href", ""))
			if !ok || SkillNumber(abs) == "unknown" {
				return
			}
			out = append(out, model.Link{Title: extract.Clean(a.Text()), URL: abs})
		})
	})
	return extract.Dedupe(out)
}

func groupHeading(label string) extract.Matcher {
	return func(s *goquery.Selection) bool {
		switch goquery.NodeName(s) {
		case "h2", "h3", "h4", "h5":
			return extract.HasPrefixFold(extract.Clean(s.Text()), label)
		}
		return false
	}
}

func skillListChain(field, label string, base *url.URL) extract.Chain[[]model.Link] {
	return extract.SliceChain[model.Link](field,
		extract.Strategy[[]model.Link]{
			Name: "heading",
			Run: func(doc *goquery.Document) []model.Link {
				span := extract.BetweenLandmarks(doc.Selection, groupHeading(label), extract.Tag("h2", "h3", "h4", "h5"))
				var out []model.Link
				for _, el := range span.Body {
					out = append(out, skillLinks(el, base)...)
				}
				return extract.Dedupe(out)
			},
		},
		extract.Strategy[[]model.Link]{
			Name: "container",
			Run: func(doc *goquery.Document) []model.Link {
				heading := doc.Find("h2, h3, h4, h5, legend").FilterFunction(func(_ int, s *goquery.Selection) bool {
					return extract.HasPrefixFold(extract.Clean(s.Text()), label)
				}).First()
				// a container shared with other groups would mix their skills
				if heading.Length() == 0 || heading.Parent().Find("h2, h3, h4, h5, legend").Length() > 1 {
					return nil
				}
				return skillLinks(heading.Parent(), base)
			},
		},
	)
}
