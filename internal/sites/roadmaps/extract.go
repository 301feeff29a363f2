package roadmaps

import (
	"context"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/v0xg/coursescrape/internal/browser"
	"github.com/v0xg/coursescrape/internal/extract"
	"github.com/v0xg/coursescrape/internal/logger"
	"github.com/v0xg/coursescrape/internal/model"
)

const (
	untitled = "Untitled Skill"

	collapsedAccordion = `[aria-controls*="content"][aria-expanded="false"]`
	accordionHeader    = `[aria-controls*="content"]`
	accordionSettle    = 300 * time.Millisecond

	termSeparators = ",\n\r\t•·"
)

type section struct {
	key   string
	label string
}

var fieldsetSections = []section{
	{"description", "Description"},
	{"skillChallengeCriteria", "Skill Challenge Criteria"},
	{"essentialQuestion", "Essential Question"},
}

var landmarkSections = []section{
	{"launch", "Launch:"},
	{"teacherStudentStrategies", "Teacher/Student Strategies:"},
	{"modelsAndManipulatives", "Models and Manipulatives:"},
	{"questionsToHelp", "Questions to Help Students Get Unstuck:"},
	{"discussionQuestions", "Discussion Questions:"},
	{"commonMisconceptions", "Common Misconceptions:"},
	{"additionalResources", "Additional Resources:"},
}

var titleChain = extract.TextChain("title",
	extract.FirstText(".nc_page-header h1"),
	extract.FirstText(".nc_page-header"),
	extract.FirstText("main h1"),
	extract.FirstText("h1"),
)

// extractSkill pulls one skill page. Only an unreadable page fails the item;
// every missing field degrades to empty.
func (s *Site) extractSkill(ctx context.Context, page browser.Page, item model.WorkItem) model.ExtractionResult {
	res := model.NewResult(item)
	skill := item.SkillID
	if skill == "" {
		skill = SkillNumber(item.URL)
	}
	log := s.log.With("skill", skill)
	base := pageBase(page, item)

	doc, err := extract.Snapshot(ctx, page)
	if err != nil {
		res.Fail(err)
		return res
	}
	if s.expandAccordions(ctx, page, doc, log) > 0 {
		if fresh, err := extract.Snapshot(ctx, page); err == nil {
			doc = fresh
		}
	}

	res.Fields["skillNumber"] = skill
	res.Title = titleChain.Run(doc, log).Value
	if res.Title == "" {
		res.Title = untitled
	}

	for _, sec := range fieldsetSections {
		res.Sections[sec.key] = fieldsetChain(sec.key, sec.label).Run(doc, log).Value
	}
	res.Sections["standards"] = extract.TextChain("standards",
		fieldsetContent("CC."),
		fieldsetBody("CC."),
	).Run(doc, log).Value

	for _, sec := range landmarkSections {
		span := landmarkChain(sec.key, sec.label).Run(doc, log).Value
		res.Sections[sec.key] = span.Text()
		res.Images = append(res.Images, span.Images(base, sec.key)...)
	}

	res.Lists["vocabulary"] = vocabularyChain.Run(doc, log).Value

	s.workedExampleVideo(ctx, page, doc, &res, skill, base, log)
	s.practiceProblems(ctx, page, doc, &res, skill, log)

	log.Info("Extracted skill",
		"title", res.Title,
		"vocabulary", len(res.Lists["vocabulary"]),
		"images", len(res.Images),
		"artifacts", len(res.Artifacts))
	return res
}

func pageBase(page browser.Page, item model.WorkItem) *url.URL {
	if u, err := url.Parse(page.URL()); err == nil && u.Host != "" {
		return u
	}
	u, _ := url.Parse(item.URL)
	return u
}

// expandAccordions clicks every collapsed accordion header. A header that
// cannot be clicked only costs its own section.
func (s *Site) expandAccordions(ctx context.Context, page browser.Page, doc *goquery.Document, log logger.Interface) int {
	expanded := 0
	doc.Find(collapsedAccordion).Each(func(i int, header *goquery.Selection) {
		path := extract.CSSPath(header)
		if err := page.Click(ctx, path); err != nil {
			log.Warn("Could not expand accordion", "index", i, "selector", path, "error", err)
			return
		}
		expanded++
		_ = s.opts.Sleep(ctx, accordionSettle)
	})
	if expanded > 0 {
		log.Debug("Expanded accordions", "count", expanded)
	}
	return expanded
}

// legendFieldset finds the fieldset whose legend mentions text
func legendFieldset(doc *goquery.Document, text string) *goquery.Selection {
	return doc.Find("fieldset").FilterFunction(func(_ int, fs *goquery.Selection) bool {
		return extract.ContainsFold(fs.ChildrenFiltered("legend").Text(), text)
	}).First()
}

func fieldsetContent(legend string) extract.Strategy[string] {
	return extract.Strategy[string]{
		Name: "fieldset-content",
		Run: func(doc *goquery.Document) string {
			return extract.BlockText(legendFieldset(doc, legend).Find(".p-fieldset-content"))
		},
	}
}

// fieldsetBody reads the whole fieldset minus its legend, for markup without the content wrapper
func fieldsetBody(legend string) extract.Strategy[string] {
	return extract.Strategy[string]{
		Name: "fieldset-body",
		Run: func(doc *goquery.Document) string {
			return extract.BlockText(legendFieldset(doc, legend).Children().Not("legend"))
		},
	}
}

func fieldsetChain(field, legend string) extract.Chain[string] {
	return extract.TextChain(field,
		fieldsetContent(legend),
		fieldsetBody(legend),
		extract.Strategy[string]{
			Name: "heading",
			Run: func(doc *goquery.Document) string {
				return extract.TextBetween(doc.Selection, headingAny(legend), extract.Tag("h2", "h3", "h4", "fieldset"))
			},
		},
	)
}

func headingAny(label string) extract.Matcher {
	return func(s *goquery.Selection) bool {
		switch goquery.NodeName(s) {
		case "h2", "h3", "h5":
			return extract.ContainsFold(s.Text(), label)
		}
		return false
	}
}

// boldLead matches a paragraph that opens with a bold label, e.g. <p><strong>Launch:</strong></p>
func boldLead(label string) extract.Matcher {
	return func(s *goquery.Selection) bool {
		if goquery.NodeName(s) != "p" {
			return false
		}
		lead := s.Children().First()
		name := goquery.NodeName(lead)
		return (name == "strong" || name == "b") && extract.HasPrefixFold(lead.Text(), label)
	}
}

func isBoldLead(s *goquery.Selection) bool {
	if goquery.NodeName(s) != "p" {
		return false
	}
	lead := s.Children().First()
	name := goquery.NodeName(lead)
	return (name == "strong" || name == "b") && extract.Clean(lead.Text()) == extract.Clean(s.Text())
}

func landmarkChain(field, label string) extract.Chain[extract.Span] {
	span := func(name string, start, end extract.Matcher) extract.Strategy[extract.Span] {
		return extract.Strategy[extract.Span]{
			Name: name,
			Run: func(doc *goquery.Document) extract.Span {
				return extract.BetweenLandmarks(doc.Selection, start, end)
			},
		}
	}
	return extract.Chain[extract.Span]{
		Field: field,
		Strategies: []extract.Strategy[extract.Span]{
			span("h4", extract.HeadingContaining("h4", label), extract.Tag("h4")),
			span("heading", headingAny(label), extract.Tag("h2", "h3", "h4", "h5")),
			span("bold-lead", boldLead(label), func(s *goquery.Selection) bool {
				return isBoldLead(s) || extract.Tag("h3", "h4")(s)
			}),
		},
		Empty: extract.Span.Empty,
	}
}

var vocabularyChain = extract.SliceChain[string]("vocabulary",
	extract.Strategy[[]string]{
		Name: "accordion",
		Run: func(doc *goquery.Document) []string {
			header := doc.Find(accordionHeader).FilterFunction(func(_ int, s *goquery.Selection) bool {
				return extract.ContainsFold(s.Text(), "Vocabulary")
			}).First()
			id := header.AttrOr("aria-controls", "")
			if id == "" {
				return nil
			}
			return terms(extract.BlockText(doc.Find(`[id="` + id + `"]`)))
		},
	},
	extract.Strategy[[]string]{
		Name: "fieldset",
		Run: func(doc *goquery.Document) []string {
			return terms(extract.BlockText(legendFieldset(doc, "Vocabulary").Children().Not("legend")))
		},
	},
	extract.Strategy[[]string]{
		Name: "heading",
		Run: func(doc *goquery.Document) []string {
			return terms(extract.TextBetween(doc.Selection, extract.HeadingContaining("h4", "Vocabulary"), extract.Tag("h4")))
		},
	},
)

// terms splits a vocabulary block, dropping resource badges
func terms(text string) []string {
	var out []string
	for _, t := range extract.SplitTerms(text, termSeparators) {
		if extract.ContainsFold(t, "Resource Available") {
			continue
		}
		out = append(out, t)
	}
	return out
}
