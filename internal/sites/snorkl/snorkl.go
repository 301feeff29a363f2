// Package snorkl lists the prompt activities assigned in Snorkl classes and
// derives their grade export URLs.
package snorkl

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/v0xg/coursescrape/internal/auth"
	"github.com/v0xg/coursescrape/internal/browser"
	"github.com/v0xg/coursescrape/internal/executor"
	"github.com/v0xg/coursescrape/internal/extract"
	"github.com/v0xg/coursescrape/internal/logger"
	"github.com/v0xg/coursescrape/internal/model"
	"github.com/v0xg/coursescrape/internal/navigate"
)

const (
	Name     = "snorkl"
	LoginURL = "https://teacher.snorkl.app/login"
	// ClassesURL is the teacher's class list, reachable only when signed in
	ClassesURL = "https://teacher.snorkl.app/classes"
	ExportURL  = "https://api.snorkl.app/assigned-prompt-activity/%s/export-grades"

	unknownTeacher = "Unknown Teacher"

	rowsReady     = "tbody.divide-y-2 tr"
	activityRow   = "tbody.divide-y-2 tr.group.cursor-pointer"
	titleCell     = `td[tabindex="0"]`
	titleText     = `td[tabindex="0"] .min-w-0.truncate.text-sm.font-semibold.text-black`
	responseCount = ".mt-1.text-xs.font-normal.normal-case.text-medium-gray"

	rowsTimeout    = 10 * time.Second
	activityWait   = 10 * time.Second
	tableSettle    = 2 * time.Second
	backSettle     = time.Second
	googleButton   = `button[aria-label*="Google"], a[href*="google"]`
	googleStepWait = 1500
)

var (
	activityPath = regexp.MustCompile(`/prompt-activities/([a-f0-9-]{36})`)
	responses    = regexp.MustCompile(`(\d+) Responses?`)
)

// Flow signs in through a Google account. A second factor is completed by a
// human in the visible browser while the flow waits for the redirect back.
var Flow = auth.Flow{
	Name:            Name,
	LoginURL:        LoginURL,
	LoginIndicators: []string{googleButton, `input[type="email"]`},
	Before: []executor.Action{
		{Type: executor.ActionClick, Selector: googleButton, Duration: googleStepWait},
	},
	EmailSelector:      `input[type="email"]`,
	EmailNext:          "#identifierNext",
	PasswordSelector:   `input[type="password"]`,
	PasswordAlternates: []string{`input[name="Passwd"]`},
	SubmitSelector:     "#passwordNext",
	AuthPathMarkers:    []string{"accounts.google.com", "/login"},
	ErrorSelectors:     []string{`div[aria-live="assertive"]`, `[jsname="B34EJ"]`},
	ErrorPatterns:      []string{"Wrong password", "Couldn't find your Google Account"},
	MFASelectors: []string{
		`input[type="tel"]`,
		`input[aria-label*="code"]`,
		`input[placeholder*="code"]`,
		`div[data-error-code]`,
	},
	SuccessURLContains: "teacher.snorkl.app",
	MFATimeout:         2 * time.Minute,
}

// Navigator reloads the class page between activities
type Navigator interface {
	Goto(ctx context.Context, page browser.Page, url string, opts navigate.Options) error
}

// Options wires a Site
type Options struct {
	Log       logger.Interface
	Sleep     executor.SleepFunc
	Navigator Navigator
	Nav       navigate.Options
}

// Site implements pipeline.Site for class pages
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
		opts.Nav.Timeout = rowsTimeout
	}
	if opts.Navigator == nil {
		opts.Navigator = navigate.NewController(opts.Log, opts.Sleep)
	}
	return &Site{opts: opts, log: opts.Log.With("site", Name)}
}

func (s *Site) Name() string { return Name }

func (s *Site) NavOptions(model.WorkItem) navigate.Options {
	o := s.opts.Nav
	o.RequiredSelector = rowsReady
	return o
}

// ActivityID pulls the activity id out of an activity URL
func ActivityID(url string) string {
	return extract.Submatch(activityPath, url)
}

// ResponseCount parses "12 Responses"; anything else is zero
func ResponseCount(text string) int {
	n, _ := strconv.Atoi(extract.Submatch(responses, text))
	return n
}

var teacherChain = extract.TextChain("teacher",
	extract.FirstText(`[data-testid="teacher-name"]`),
	extract.FirstText(".teacher-name"),
)

type row struct {
	title     string
	responses int
	cell      string // live selector of the clickable title cell
}

func readRow(sel *goquery.Selection) (row, bool) {
	title := extract.Clean(sel.Find(titleText).First().Text())
	if title == "" {
		return row{}, false
	}
	cell := sel.Find(titleCell).First()
	if cell.Length() == 0 {
		cell = sel
	}
	return row{
		title:     title,
		responses: ResponseCount(sel.Find(responseCount).First().Text()),
		cell:      extract.CSSPath(cell),
	}, true
}

// Extract opens every activity row of a class to learn its id. The class
// page re-renders after each visit, so rows are re-read from a fresh
// snapshot every time.
//
// Activities come back as Links, with Lists["responseCounts"] index-aligned
// to them and one derived export URL per activity.
func (s *Site) Extract(ctx context.Context, page browser.Page, item model.WorkItem) model.ExtractionResult {
	res := model.NewResult(item)
	log := s.log.With("class", item.Title)

	// rows render after the page is accepted
	if err := s.opts.Sleep(ctx, tableSettle); err != nil {
		res.Fail(err)
		return res
	}
	doc, err := extract.Snapshot(ctx, page)
	if err != nil {
		res.Fail(err)
		return res
	}
	res.Title = item.Title
	res.Fields["teacher"] = teacherChain.Run(doc, log).Value
	if res.Fields["teacher"] == "" {
		res.Fields["teacher"] = unknownTeacher
	}
	res.Fields["district"] = item.Group
	res.Lists["responseCounts"] = []string{}
	res.Lists["errors"] = []string{}

	total := doc.Find(activityRow).Length()
	log.Info("Found activity rows", "count", total)

	for i := 0; i < total; i++ {
		if ctx.Err() != nil {
			res.Fail(ctx.Err())
			return res
		}
		if i > 0 {
			if doc, err = extract.Snapshot(ctx, page); err != nil {
				res.Fail(err)
				return res
			}
		}
		r, ok := readRow(doc.Find(activityRow).Eq(i))
		if !ok {
			continue
		}

		id, err := s.openActivity(ctx, page, r)
		if err != nil {
			log.Warn("Could not resolve activity", "title", r.title, "error", err)
			res.Lists["errors"] = append(res.Lists["errors"], fmt.Sprintf("%s: %v", r.title, err))
		} else {
			res.Links = append(res.Links, model.Link{Title: r.title, URL: page.URL()})
			res.Lists["responseCounts"] = append(res.Lists["responseCounts"], strconv.Itoa(r.responses))
			res.DerivedURLs = append(res.DerivedURLs, fmt.Sprintf(ExportURL, id))
		}

		if err := s.opts.Navigator.Goto(ctx, page, item.URL, s.NavOptions(item)); err != nil {
			log.Error("Could not return to class page, stopping", "error", err)
			res.Lists["errors"] = append(res.Lists["errors"], "returning to class: "+err.Error())
			break
		}
		if err := s.opts.Sleep(ctx, backSettle); err != nil {
			res.Fail(err)
			return res
		}
	}
	return res
}

func (s *Site) openActivity(ctx context.Context, page browser.Page, r row) (string, error) {
	if err := page.Click(ctx, r.cell); err != nil {
		return "", err
	}
	err := page.WaitForURL(ctx, func(u string) bool {
		return strings.Contains(u, "/prompt-activities/")
	}, activityWait)
	if err != nil {
		return "", err
	}
	id := ActivityID(page.URL())
	if id == "" {
		return "", fmt.Errorf("no activity id in %s", page.URL())
	}
	return id, nil
}
