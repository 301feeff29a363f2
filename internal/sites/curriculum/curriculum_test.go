package curriculum

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/v0xg/coursescrape/internal/artifact"
	"github.com/v0xg/coursescrape/internal/browser"
	"github.com/v0xg/coursescrape/internal/browser/browsertest"
	"github.com/v0xg/coursescrape/internal/catalog"
	"github.com/v0xg/coursescrape/internal/model"
	"github.com/v0xg/coursescrape/internal/navigate"
	"github.com/v0xg/coursescrape/internal/validate"
)

const (
	unitURL  = "https://doe1nyc.ilclassroom.com/wikis/10801511"
	teachURL = "https://doe1nyc.ilclassroom.com/wikis/10801512-teach"
)

func newSite() (*Site, *[]time.Duration) {
	var sleeps []time.Duration
	site := New(Options{Sleep: func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}})
	return site, &sleeps
}

func middleSchoolUnit() model.WorkItem {
	return model.WorkItem{
		URL:      unitURL,
		Level:    model.LevelUnit,
		Title:    "Grade 8 Unit 1 | Rigid Transformations and Congruence",
		CourseID: "grade8",
		UnitID:   "10801511",
		Group:    catalog.GroupMiddleSchool,
	}
}

func TestMiddleSchoolUnitOpensTeachViewAndFindsSections(t *testing.T) {
	page := browsertest.New(nil)
	page.Load(unitURL, `<html><body><h1>Grade 8 Unit 1</h1>
<nav><button data-toggle="crumb-select-1">Unit 1</button></nav></body></html>`)
	page.OnClick[crumbButton] = func(p *browsertest.Page) {
		p.Doc().Find("nav").AppendHtml(`<ul id="crumb-select-1">
<li><a href="/wikis/10801599">8.2 Teach</a></li>
<li><a href="/wikis/10801512-teach">8.1 Teach</a></li>
</ul>`)
	}
	page.OnClick["#crumb-select-1 > li:nth-child(2) > a:nth-child(1)"] = func(p *browsertest.Page) {
		p.Load(teachURL, `<html><body><h1>Grade 8 Unit 1 Teach</h1>
<ul id="crumb-select-2">
<li><a href="/wikis/201">8.1 Section A: Rigid Transformations</a></li>
<li><a href="/wikis/202">8.1 Section B: Properties of Rigid Transformations</a></li>
</ul>
<a href="/wikis/201">8.1 Section A: Rigid Transformations (Lessons 1-5)</a>
<a href="/wikis/999">Glossary</a>
</body></html>`)
	}
	site, sleeps := newSite()

	res := site.Extract(context.Background(), page, middleSchoolUnit())

	require.True(t, res.Success, res.Error)
	assert.Len(t, page.Clicks, 2)
	assert.Equal(t, []time.Duration{dropdownSettle, teachSettle}, *sleeps)
	require.Len(t, res.Links, 2)
	assert.Equal(t, model.Link{Title: "8.1 Section A: Rigid Transformations", URL: "https://doe1nyc.ilclassroom.com/wikis/201"}, res.Links[0])
	assert.Equal(t, "https://doe1nyc.ilclassroom.com/wikis/202", res.Links[1].URL)

	children := site.Expand(res)
	require.Len(t, children, 2)
	assert.Equal(t, model.LevelSection, children[0].Level)
	assert.Equal(t, "section-1", children[0].SectionID)
	assert.Equal(t, "grade8", children[1].CourseID)
	assert.Equal(t, "section-2", children[1].SectionID)

	kind, key, record := site.Record(res)
	assert.Equal(t, "unit", kind)
	assert.Equal(t, "unit:grade8/10801511", key)
	require.NoError(t, validate.New().Validate(record))
	rec := record.(*UnitRecord)
	assert.True(t, rec.MiddleSchool)
	assert.Len(t, rec.Sections, 2)
	assert.Empty(t, rec.Lessons)
}

func TestSectionsFallBackToLooseWikiLinks(t *testing.T) {
	page := browsertest.New(nil)
	page.Load(unitURL, `<html><body><h1>Grade 6 Unit 2</h1>
<a href="/wikis/301">Section A - Ratios</a>
<a href="/wikis/302" data-test="WikiLink">Section B - Rates</a>
<a href="/wikis/303">Overview</a></body></html>`)
	site, _ := newSite()

	res := site.Extract(context.Background(), page, middleSchoolUnit())

	require.True(t, res.Success)
	require.Len(t, res.Links, 2)
	assert.Equal(t, "Section A - Ratios", res.Links[0].Title)
	assert.Empty(t, page.Clicks)
}

func TestSectionLessonsFromContentPicker(t *testing.T) {
	const sectionURL = "https://doe1nyc.ilclassroom.com/wikis/201"
	page := browsertest.New(nil)
	page.Load(sectionURL, `<html><body><h1>Section A</h1><div id="bar"><button>Select content</button></div></body></html>`)
	page.OnClick["#bar > button:nth-child(1)"] = func(p *browsertest.Page) {
		p.Doc().Find("body").AppendHtml(`<div class="dropdown-pane is-open"><ul>
<li><a href="/lesson_plans/1">Lesson 1: Moving in the Plane</a></li>
<li><a href="/lesson_plans/2">Lesson 2 - Naming the Moves</a></li>
<li><a href="/lesson_plans/2">Lesson 2 - Naming the Moves (Teacher)</a></li>
<li><a href="/lesson_plans/9">Practice Problems</a></li>
</ul></div>`)
	}
	site, _ := newSite()
	item := middleSchoolUnit().Child(model.LevelSection, sectionURL, "8.1 Section A: Rigid Transformations")
	item.SectionID = "section-1"

	res := site.Extract(context.Background(), page, item)

	require.True(t, res.Success)
	require.Len(t, res.Links, 2)
	assert.Equal(t, "Lesson 2 - Naming the Moves", res.Links[1].Title)

	children := site.Expand(res)
	require.Len(t, children, 2)
	assert.Equal(t, model.LevelLesson, children[0].Level)
	assert.Equal(t, "lesson-2", children[1].LessonID)
	assert.Equal(t, "section-1", children[1].SectionID)

	kind, _, record := site.Record(res)
	assert.Equal(t, "section", kind)
	require.NoError(t, validate.New().Validate(record))
	rec := record.(*SectionRecord)
	assert.Equal(t, 2, rec.Lessons[1].Number)
	assert.Equal(t, 2, rec.Lessons[1].OriginalNumber)
}

func TestHighSchoolUnitListsLessonsDirectly(t *testing.T) {
	const url = "https://doe1nyc.ilclassroom.com/wikis/316459"
	page := browsertest.New(nil)
	page.Load(url, `<html><body><h1>One-variable Statistics</h1>
<a href="/lesson_plans/10">Lesson 10 Comparing Data Sets</a>
<a href="/lesson_plans/11">Unit Overview</a></body></html>`)
	site, _ := newSite()
	item := model.WorkItem{URL: url, Level: model.LevelUnit, Title: "Alg1.1: One-variable Statistics",
		CourseID: "algebra1", UnitID: "316459", Group: catalog.GroupHighSchool}

	res := site.Extract(context.Background(), page, item)

	require.Len(t, res.Links, 1)
	assert.Equal(t, "https://doe1nyc.ilclassroom.com/lesson_plans/10", res.Links[0].URL)
	children := site.Expand(res)
	require.Len(t, children, 1)
	assert.Equal(t, model.LevelLesson, children[0].Level)
	assert.Empty(t, children[0].SectionID)

	_, _, record := site.Record(res)
	rec := record.(*UnitRecord)
	assert.False(t, rec.MiddleSchool)
	require.Len(t, rec.Lessons, 1)
	assert.Equal(t, 10, rec.Lessons[0].OriginalNumber)
}

func TestLessonRecord(t *testing.T) {
	const url = "https://doe1nyc.ilclassroom.com/lesson_plans/3"
	page := browsertest.New(nil)
	page.Load(url, `<html><body><h1>Translations</h1></body></html>`)
	site, _ := newSite()
	item := middleSchoolUnit().Child(model.LevelLesson, url, "Lesson 3: Grid Moves")
	item.SectionID = "section-1"
	item.LessonID = "lesson-3"

	res := site.Extract(context.Background(), page, item)
	require.True(t, res.Success)
	assert.Empty(t, site.Expand(res))

	kind, key, record := site.Record(res)
	assert.Equal(t, "lesson", kind)
	assert.Equal(t, "lesson:grade8/10801511/section-1/lesson-3", key)
	require.NoError(t, validate.New().Validate(record))
	rec := record.(*LessonRecord)
	assert.Equal(t, 3, rec.Number)
	assert.Equal(t, 3, rec.OriginalNumber)
	assert.Equal(t, "Lesson 3: Grid Moves", rec.Title)
	assert.Equal(t, "Translations", rec.PageTitle)
}

func TestUnsupportedLevelFails(t *testing.T) {
	page := browsertest.New(nil)
	page.Load("https://x/c", `<html><body></body></html>`)
	site, _ := newSite()
	res := site.Extract(context.Background(), page, model.WorkItem{URL: "https://x/c", Level: model.LevelClass})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "unsupported level")
}

func TestNavigationWaitsForContent(t *testing.T) {
	const loading = "https://doe1nyc.ilclassroom.com/wikis/1"
	page := browsertest.New(map[string]string{
		loading: `<html><head><title>Loading</title></head><body><div class="spinner"></div></body></html>`,
		unitURL: `<html><body><div class="wiki-title">Grade 8 Unit 1</div></body></html>`,
	})
	site, _ := newSite()
	opts := site.NavOptions(middleSchoolUnit())
	opts.MaxRetries = 1
	nav := navigate.NewController(nil, func(context.Context, time.Duration) error { return nil })

	err := nav.Goto(context.Background(), page, loading, opts)
	assert.ErrorIs(t, err, navigate.ErrSelectorNotFound)
	assert.NoError(t, nav.Goto(context.Background(), page, unitURL, opts))
}

func TestUnitPrefix(t *testing.T) {
	assert.Equal(t, "8.1", unitPrefix("Grade 8 Unit 1 | Rigid Transformations"))
	assert.Equal(t, "6.3", unitPrefix("6.3 Unit Rates and Percentages"))
	assert.Equal(t, "", unitPrefix("Mathematical Modeling Prompts"))
}

type memBackend struct {
	objects map[string][]byte
}

func (m *memBackend) List(_ context.Context, prefix string) ([]artifact.Object, error) {
	var out []artifact.Object
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, artifact.Object{Key: k, URL: "https://cdn.test/" + k})
		}
	}
	return out, nil
}

func (m *memBackend) Upload(_ context.Context, key string, data []byte, _ string) (artifact.Object, error) {
	if _, ok := m.objects[key]; ok {
		return artifact.Object{}, artifact.ErrUploadConflict
	}
	m.objects[key] = data
	return artifact.Object{Key: key, URL: "https://cdn.test/" + key}, nil
}

type fakeFetcher struct {
	fetched []string
	fail    map[string]bool
}

func (f *fakeFetcher) Fetch(url string, _ []browser.Cookie) artifact.FetchFunc {
	return func(context.Context) ([]byte, error) {
		f.fetched = append(f.fetched, url)
		if f.fail[url] {
			return nil, errors.New("status 404")
		}
		return []byte("%PDF-1.7"), nil
	}
}

func TestLessonPDFsStoredOnce(t *testing.T) {
	const (
		url      = "https://doe1nyc.ilclassroom.com/lesson_plans/3"
		practice = "https://doe1nyc.ilclassroom.com/files/8.1.3-practice.pdf"
		missing  = "https://doe1nyc.ilclassroom.com/files/8.1.3-cooldown.PDF?v=2"
	)
	backend := &memBackend{objects: map[string][]byte{}}
	fetcher := &fakeFetcher{fail: map[string]bool{missing: true}}
	item := middleSchoolUnit().Child(model.LevelLesson, url, "Lesson 3: Grid Moves")
	item.SectionID = "section-1"
	item.LessonID = "lesson-3"

	run := func() (model.ExtractionResult, artifact.Stats) {
		page := browsertest.New(nil)
		page.Load(url, `<html><body><h1>Translations</h1>
<a href="/files/8.1.3-practice.pdf">Practice Problems</a>
<a href="/files/8.1.3-practice.pdf">Download</a>
<a href="/files/8.1.3-cooldown.PDF?v=2">Cool-down</a>
<a href="/wikis/1">Back to unit</a></body></html>`)
		store := artifact.NewStore(backend, nil)
		site := New(Options{Artifacts: store, Fetcher: fetcher, Sleep: func(context.Context, time.Duration) error { return nil }})
		res := site.Extract(context.Background(), page, item)
		require.True(t, res.Success, res.Error)
		return res, store.Stats()
	}

	res, stats := run()
	assert.Equal(t, 1, stats.Uploaded)
	assert.Equal(t, 1, stats.Failed)
	require.Len(t, res.Artifacts, 2)
	assert.Equal(t, "curriculum/grade8/10801511/section-1/lesson-3/8.1.3-practice.pdf", res.Artifacts[0].LogicalKey)
	assert.Equal(t, "curriculum/grade8/10801511/section-1/lesson-3/8.1.3-cooldown.PDF", res.Artifacts[1].LogicalKey)
	assert.NotEmpty(t, res.Artifacts[1].Error)

	_, _, record := New(Options{}).Record(res)
	require.NoError(t, validate.New().Validate(record))
	rec := record.(*LessonRecord)
	require.Len(t, rec.PDFs, 1)
	assert.Equal(t, practice, rec.PDFs[0].SourceURL)
	assert.Equal(t, "https://cdn.test/curriculum/grade8/10801511/section-1/lesson-3/8.1.3-practice.pdf", rec.PDFs[0].URL)

	fetcher.fetched = nil
	_, stats = run()
	assert.Equal(t, 1, stats.Reused)
	assert.Equal(t, []string{missing}, fetcher.fetched, "stored documents are not downloaded again")
}

func TestLessonWithoutStoreSkipsPDFs(t *testing.T) {
	const url = "https://doe1nyc.ilclassroom.com/lesson_plans/4"
	page := browsertest.New(nil)
	page.Load(url, `<html><body><h1>Rotations</h1><a href="/files/x.pdf">PDF</a></body></html>`)
	site, _ := newSite()
	item := middleSchoolUnit().Child(model.LevelLesson, url, "Lesson 4: Making the Moves")
	item.LessonID = "lesson-4"

	res := site.Extract(context.Background(), page, item)
	require.True(t, res.Success)
	assert.Empty(t, res.Artifacts)

	_, _, record := site.Record(res)
	assert.NotNil(t, record.(*LessonRecord).PDFs)
}

func TestPDFFilename(t *testing.T) {
	assert.Equal(t, "a.pdf", pdfFilename("https://x/files/a.pdf?dl=1", 1))
	assert.Equal(t, "document-2.pdf", pdfFilename("https://x/download/99", 2))
}
