// Package roadmaps scrapes Teach to One Roadmaps. Skill pages give the
// skill's teaching notes, vocabulary, images, worked-example video and
// practice problem screenshots. The units page lists a roadmap's units and
// the target, support and extension skills of each.
package roadmaps

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/v0xg/coursescrape/internal/ai"
	"github.com/v0xg/coursescrape/internal/artifact"
	"github.com/v0xg/coursescrape/internal/auth"
	"github.com/v0xg/coursescrape/internal/browser"
	"github.com/v0xg/coursescrape/internal/executor"
	"github.com/v0xg/coursescrape/internal/logger"
	"github.com/v0xg/coursescrape/internal/model"
	"github.com/v0xg/coursescrape/internal/navigate"
)

const (
	Name     = "roadmaps"
	BaseURL  = "https://roadmaps.teachtoone.org"
	LoginURL = BaseURL + "/login"

	// pageReady appears once the skill page has rendered
	pageReady = ".nc_page-header"
)

var skillPath = regexp.MustCompile(`/skill/(\d+)`)

// Flow is the Roadmaps email/password login
var Flow = auth.Flow{
	Name:     Name,
	LoginURL: LoginURL,
	LoginIndicators: []string{
		`input[type="email"]`,
		`button.login-button`,
	},
	Before: []executor.Action{
		{Type: executor.ActionClick, Selector: `button.login-button`, Optional: true, Duration: 1000},
	},
	EmailSelector:      `input[type="email"]`,
	PasswordSelector:   `input[type="password"]`,
	PasswordAlternates: []string{`input[name="password"]`, `#password`},
	SubmitSelector:     `button[type="submit"]`,
	AuthPathMarkers:    []string{"login", "auth"},
	ErrorSelectors:     []string{".error", ".alert", ".notification", `[class*="error"]`, `[class*="alert"]`},
	ErrorPatterns:      []string{"Invalid", "incorrect", "failed"},
}

// Fetcher downloads a URL with the browser's cookies
type Fetcher interface {
	Fetch(url string, cookies []browser.Cookie) artifact.FetchFunc
}

// Tagger labels a skill with topic tags
type Tagger interface {
	Tags(ctx context.Context, in ai.Input) ([]string, error)
}

// Options wires a Site
type Options struct {
	// Artifacts stores videos and screenshots. Nil skips both.
	Artifacts *artifact.Store
	Fetcher   Fetcher
	// Tagger is optional
	Tagger Tagger
	Log    logger.Interface
	Sleep  executor.SleepFunc
	Clock  func() time.Time
	// MaxScreenshotWidth downscales wider practice screenshots; 0 keeps them as captured
	MaxScreenshotWidth uint
	// SkipSkills stops a unit from queueing its skills
	SkipSkills bool
	Nav        navigate.Options
}

// Site implements pipeline.Site, pipeline.Expander and pipeline.Enricher.
// Expand is called from the run loop only.
type Site struct {
	opts Options
	log  logger.Interface
	// skills already queued this run; units share many of them
	queued map[string]bool
}

// New creates the site
func New(opts Options) *Site {
	if opts.Log == nil {
		opts.Log = logger.NewNoOp()
	}
	if opts.Sleep == nil {
		opts.Sleep = executor.Sleep
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Nav.MaxRetries == 0 {
		opts.Nav = navigate.DefaultOptions()
	}
	return &Site{opts: opts, log: opts.Log.With("site", Name), queued: map[string]bool{}}
}

func (s *Site) Name() string { return Name }

func (s *Site) NavOptions(item model.WorkItem) navigate.Options {
	o := s.opts.Nav
	switch item.Level {
	case model.LevelCourse, model.LevelUnit:
		o.RequiredSelector = dropdown
	default:
		o.RequiredSelector = pageReady
	}
	return o
}

// Extract dispatches on the item level. Items without a level are skills.
func (s *Site) Extract(ctx context.Context, page browser.Page, item model.WorkItem) model.ExtractionResult {
	switch item.Level {
	case model.LevelCourse:
		return s.extractRoadmap(ctx, page, item, s.log.With("roadmap", item.Group))
	case model.LevelUnit:
		return s.extractUnit(ctx, page, item, s.log.With("roadmap", item.Group, "unit", item.Title))
	default:
		return s.extractSkill(ctx, page, item)
	}
}

// Expand queues a roadmap's units and a unit's skills. A skill shared by
// several units is queued once.
func (s *Site) Expand(res model.ExtractionResult) []model.WorkItem {
	parent := res.Item
	switch parent.Level {
	case model.LevelCourse:
		children := make([]model.WorkItem, 0, len(res.Lists["units"]))
		for _, name := range res.Lists["units"] {
			child := parent.Child(model.LevelUnit, UnitsURL, name)
			child.UnitID = UnitNumber(name)
			if child.UnitID == "" {
				child.UnitID = slug(name)
			}
			children = append(children, child)
		}
		return children
	case model.LevelUnit:
		if s.opts.SkipSkills {
			return nil
		}
		var children []model.WorkItem
		for _, l := range res.Links {
			number := SkillNumber(l.URL)
			if number == "unknown" || s.queued[number] {
				continue
			}
			s.queued[number] = true
			children = append(children, model.WorkItem{
				URL:     SkillURL(number),
				Level:   model.LevelSkill,
				Title:   l.Title,
				SkillID: number,
				Group:   parent.Group,
			})
		}
		return children
	}
	return nil
}

// SkillURL returns the page for a skill number
func SkillURL(number string) string {
	return fmt.Sprintf("%s/skill/%s", BaseURL, number)
}

// SkillNumber pulls the skill number out of a skill URL
func SkillNumber(url string) string {
	if m := skillPath.FindStringSubmatch(url); m != nil {
		return m[1]
	}
	return "unknown"
}

// Items turns skill numbers or skill URLs into work items
func Items(refs []string) ([]model.WorkItem, error) {
	items := make([]model.WorkItem, 0, len(refs))
	for _, ref := range refs {
		ref = strings.TrimSpace(ref)
		if ref == "" {
			continue
		}
		var url, number string
		switch {
		case isDigits(ref):
			number, url = ref, SkillURL(ref)
		case strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://"):
			number, url = SkillNumber(ref), ref
			if number == "unknown" {
				return nil, fmt.Errorf("not a skill url: %s", ref)
			}
		default:
			return nil, fmt.Errorf("not a skill number or url: %q", ref)
		}
		items = append(items, model.WorkItem{URL: url, Level: model.LevelSkill, SkillID: number})
	}
	return items, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
