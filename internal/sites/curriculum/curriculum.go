// Package curriculum walks Illustrative Mathematics courses on ilclassroom:
// unit pages lead to sections (middle school) or straight to lessons.
package curriculum

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/v0xg/coursescrape/internal/artifact"
	"github.com/v0xg/coursescrape/internal/browser"
	"github.com/v0xg/coursescrape/internal/catalog"
	"github.com/v0xg/coursescrape/internal/executor"
	"github.com/v0xg/coursescrape/internal/extract"
	"github.com/v0xg/coursescrape/internal/logger"
	"github.com/v0xg/coursescrape/internal/model"
	"github.com/v0xg/coursescrape/internal/navigate"
)

const Name = "curriculum"

// pageReady matches once the wiki or lesson content has rendered
const pageReady = "h1, .wiki-title, " + crumbButton + `, a[href*="/lesson_plans/"]`

var lessonNumber = regexp.MustCompile(`(?i)^Lesson\s+(\d+)`)

// Fetcher downloads a URL with the browser's cookies
type Fetcher interface {
	Fetch(url string, cookies []browser.Cookie) artifact.FetchFunc
}

// Options wires a Site
type Options struct {
	// Artifacts stores lesson PDFs. Nil skips them.
	Artifacts *artifact.Store
	Fetcher   Fetcher
	Log       logger.Interface
	Sleep     executor.SleepFunc
	Nav       navigate.Options
}

// Site implements pipeline.Site and pipeline.Expander for curriculum pages
type Site struct {
	opts Options
	log  logger.Interface
}

func New(opts Options) *Site {
	if opts.Log == nil {
		opts.Log = logger.NewNoOp()
	}
	if opts.Sleep == nil {
		opts.Sleep = executor.Sleep
	}
	if opts.Nav.MaxRetries == 0 {
		opts.Nav = navigate.DefaultOptions()
		// wiki pages render slowly behind the district SSO
		opts.Nav.Timeout = 60 * time.Second
	}
	return &Site{opts: opts, log: opts.Log.With("site", Name)}
}

func (s *Site) Name() string { return Name }

func (s *Site) NavOptions(model.WorkItem) navigate.Options {
	o := s.opts.Nav
	o.RequiredSelector = pageReady
	return o
}

// Extract dispatches on the item level
func (s *Site) Extract(ctx context.Context, page browser.Page, item model.WorkItem) model.ExtractionResult {
	res := model.NewResult(item)
	log := s.log.With("level", item.Level, "title", item.Title)

	doc, err := extract.Snapshot(ctx, page)
	if err != nil {
		res.Fail(err)
		return res
	}
	res.Title = titleChain.Run(doc, log).Value
	if res.Title == "" {
		res.Title = item.Title
	}

	switch item.Level {
	case model.LevelUnit:
		if item.Group == catalog.GroupMiddleSchool {
			if !s.openTeachView(ctx, page, item, log) {
				log.Warn("Teach view not reached, looking for sections anyway")
			}
			res.Links = s.sections(ctx, page, log)
			log.Info("Found sections", "count", len(res.Links))
		} else {
			res.Links = s.lessons(ctx, page, log)
			log.Info("Found lessons", "count", len(res.Links))
		}
	case model.LevelSection:
		res.Links = s.lessons(ctx, page, log)
		log.Info("Found lessons", "count", len(res.Links))
	case model.LevelLesson:
		if n := extract.Submatch(lessonNumber, item.Title); n != "" {
			res.Fields["lessonNumber"] = n
		} else if n := extract.Submatch(lessonNumber, res.Title); n != "" {
			res.Fields["lessonNumber"] = n
		}
		s.lessonPDFs(ctx, page, doc, &res, log)
	default:
		res.Fail(fmt.Errorf("unsupported level %q", item.Level))
		return res
	}

	return res
}

// Expand turns discovered links into the next level of work
func (s *Site) Expand(res model.ExtractionResult) []model.WorkItem {
	parent := res.Item
	var level model.Level
	switch {
	case parent.Level == model.LevelUnit && parent.Group == catalog.GroupMiddleSchool:
		level = model.LevelSection
	case parent.Level == model.LevelUnit, parent.Level == model.LevelSection:
		level = model.LevelLesson
	default:
		return nil
	}

	children := make([]model.WorkItem, 0, len(res.Links))
	for i, l := range res.Links {
		child := parent.Child(level, l.URL, l.Title)
		position := strconv.Itoa(i + 1)
		if level == model.LevelSection {
			child.SectionID = "section-" + position
		} else {
			child.LessonID = "lesson-" + position
		}
		children = append(children, child)
	}
	return children
}
