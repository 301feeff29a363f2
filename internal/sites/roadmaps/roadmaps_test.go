package roadmaps

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/v0xg/coursescrape/internal/ai"
	"github.com/v0xg/coursescrape/internal/artifact"
	"github.com/v0xg/coursescrape/internal/browser"
	"github.com/v0xg/coursescrape/internal/browser/browsertest"
	"github.com/v0xg/coursescrape/internal/model"
	"github.com/v0xg/coursescrape/internal/validate"
)

func noSleep(context.Context, time.Duration) error { return nil }

const skillPage = `<html><body>
<div class="nc_page-header"><h1>Understanding Ratios</h1></div>
<fieldset><legend>Description</legend><div class="p-fieldset-content"><p>Students describe ratio relationships.</p></div></fieldset>
<fieldset><legend>CC.6.RP.A.1</legend><div class="p-fieldset-content">Understand the concept of a ratio.</div></fieldset>
<div id="primer">
<h4>Launch:</h4>
<p>Show two recipes.</p>
<div><img src="/media/recipe.png" alt="recipes"></div>
<h4>Discussion Questions:</h4>
<p>What stays the same?</p>
</div>
<div id="vocab-header" aria-controls="vocab-content" aria-expanded="false">Vocabulary</div>
<div id="vocab-content"></div>
</body></html>`

func skillFixture() *browsertest.Page {
	page := browsertest.New(nil)
	page.Load(SkillURL("660"), skillPage)
	page.OnClick["#vocab-header"] = func(p *browsertest.Page) {
		p.Doc().Find("#vocab-header").SetAttr("aria-expanded", "true")
		p.Doc().Find("#vocab-content").SetHtml(`<ul><li>ratio</li><li>Resource Available</li></ul>`)
	}
	return page
}

func TestExtractSkillPage(t *testing.T) {
	page := skillFixture()
	site := New(Options{Sleep: noSleep})
	item := model.WorkItem{URL: SkillURL("660"), Level: model.LevelSkill, SkillID: "660"}

	res := site.Extract(context.Background(), page, item)

	require.True(t, res.Success, res.Error)
	assert.Equal(t, "Understanding Ratios", res.Title)
	assert.Equal(t, []string{"ratio"}, res.Lists["vocabulary"])
	assert.Equal(t, []string{"#vocab-header"}, page.Clicks)
	assert.Equal(t, "Students describe ratio relationships.", res.Sections["description"])
	assert.Equal(t, "Understand the concept of a ratio.", res.Sections["standards"])
	assert.Equal(t, "Show two recipes.", res.Sections["launch"])
	assert.Equal(t, "What stays the same?", res.Sections["discussionQuestions"])
	assert.Empty(t, res.Sections["commonMisconceptions"])

	require.Len(t, res.Images, 1)
	assert.Equal(t, "https://roadmaps.teachtoone.org/media/recipe.png", res.Images[0].URL)
	assert.Equal(t, "launch", res.Images[0].Section)
	assert.Empty(t, res.Artifacts)

	kind, key, record := site.Record(res)
	assert.Equal(t, RecordKind, kind)
	assert.Equal(t, "660", key)
	require.NoError(t, validate.New().Validate(record))
	rec := record.(*SkillRecord)
	assert.Equal(t, []string{"ratio"}, rec.Vocabulary)
	assert.Equal(t, []string{"https://roadmaps.teachtoone.org/media/recipe.png"}, rec.Images)
}

func TestExtractDegradesMissingFields(t *testing.T) {
	page := browsertest.New(nil)
	page.Load(SkillURL("12"), `<html><body><p>Nothing here yet</p></body></html>`)
	site := New(Options{Sleep: noSleep})

	res := site.Extract(context.Background(), page, model.WorkItem{URL: SkillURL("12"), Level: model.LevelSkill})

	require.True(t, res.Success)
	assert.Equal(t, untitled, res.Title)
	assert.Equal(t, "12", res.Fields["skillNumber"])
	assert.Empty(t, res.Lists["vocabulary"])
	for _, sec := range landmarkSections {
		assert.Empty(t, res.Sections[sec.key], sec.key)
	}

	_, _, record := site.Record(res)
	rec := record.(*SkillRecord)
	assert.NotNil(t, rec.Vocabulary)
	assert.NotNil(t, rec.PracticeProblems)
	assert.NoError(t, validate.New().Validate(record))
}

func TestVocabularyFallsBackToHeading(t *testing.T) {
	page := browsertest.New(nil)
	page.Load(SkillURL("7"), `<html><body><h1>Rates</h1>
<h4>Vocabulary</h4><p>rate, unit rate • per</p><h4>Launch:</h4><p>go</p></body></html>`)

	res := New(Options{Sleep: noSleep}).Extract(context.Background(), page, model.WorkItem{URL: SkillURL("7")})
	assert.Equal(t, "Rates", res.Title)
	assert.Equal(t, []string{"rate", "unit rate", "per"}, res.Lists["vocabulary"])
}

func TestEmptyLandmarkFallsThroughToNextStrategy(t *testing.T) {
	page := browsertest.New(nil)
	page.Load(SkillURL("8"), `<html><body><h1>Unit Rates</h1>
<h3>Launch:</h3><p>Compare two prices.</p>
<h4>Launch:</h4><h4>Discussion Questions:</h4><p>Which is cheaper?</p></body></html>`)

	res := New(Options{Sleep: noSleep}).Extract(context.Background(), page, model.WorkItem{URL: SkillURL("8")})

	require.True(t, res.Success)
	assert.Equal(t, "Compare two prices.", res.Sections["launch"])
	assert.Equal(t, "Which is cheaper?", res.Sections["discussionQuestions"])
}

// memBackend is an in-memory artifact.Backend shared across runs
type memBackend struct {
	objects map[string][]byte
	uploads int
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
	m.uploads++
	m.objects[key] = data
	return artifact.Object{Key: key, URL: "https://cdn.test/" + key}, nil
}

type fakeFetcher struct {
	calls   int
	url     string
	cookies []browser.Cookie
}

func (f *fakeFetcher) Fetch(url string, cookies []browser.Cookie) artifact.FetchFunc {
	return func(context.Context) ([]byte, error) {
		f.calls++
		f.url = url
		f.cookies = cookies
		return []byte("mp4"), nil
	}
}

const mediaPage = `<html><body>
<div class="nc_page-header"><h1>Equivalent Ratios</h1></div>
<div id="extra-header" aria-controls="extra-content" aria-expanded="false">Additional Lessons &amp; Resources</div>
<div id="extra-content"><a id="video-link" href="#">Worked Example Video</a></div>
<div id="tabs"><span class="p-tabview-title">Overview</span><span class="p-tabview-title">Practice Problems</span></div>
</body></html>`

func mediaFixture() *browsertest.Page {
	page := browsertest.New(nil)
	page.ScreenshotWidth = 1600
	page.CookieJar = []browser.Cookie{{Name: "session", Value: "abc"}}
	page.Load(SkillURL("660"), mediaPage)
	page.OnClick["#extra-header"] = func(p *browsertest.Page) {
		p.Doc().Find("#extra-header").SetAttr("aria-expanded", "true")
	}
	page.OnClick["#video-link"] = func(p *browsertest.Page) {
		p.Doc().Find("body").AppendHtml(`<div class="p-dialog"><button class="p-dialog-header-close">x</button><video><source src="/videos/660.mp4"></video></div>`)
	}
	page.OnClick[videoDialogClose] = func(p *browsertest.Page) {
		p.Doc().Find(videoDialog).Remove()
	}
	page.OnClick["#tabs > span:nth-child(2)"] = func(p *browsertest.Page) {
		p.Doc().Find("body").AppendHtml(`<div id="practiceProblems"><div id="660_practice_2">b</div><div id="660_practice_1">a</div></div>`)
	}
	return page
}

func TestArtifactsReusedAcrossRuns(t *testing.T) {
	ctx := context.Background()
	backend := &memBackend{objects: map[string][]byte{}}
	fetcher := &fakeFetcher{}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		now = now.Add(time.Millisecond)
		return now
	}
	item := model.WorkItem{URL: SkillURL("660"), Level: model.LevelSkill, SkillID: "660"}

	run := func() (model.ExtractionResult, artifact.Stats) {
		store := artifact.NewStore(backend, nil)
		site := New(Options{Artifacts: store, Fetcher: fetcher, Sleep: noSleep, Clock: clock, MaxScreenshotWidth: 800})
		res := site.Extract(ctx, mediaFixture(), item)
		require.True(t, res.Success)
		return res, store.Stats()
	}

	first, stats := run()
	assert.Equal(t, artifact.Stats{Uploaded: 3}, stats)
	assert.Equal(t, 1, fetcher.calls)
	assert.Equal(t, "https://roadmaps.teachtoone.org/videos/660.mp4", fetcher.url)
	assert.Equal(t, []browser.Cookie{{Name: "session", Value: "abc"}}, fetcher.cookies)
	assert.Equal(t, "https://cdn.test/"+VideoKey("660"), first.Fields["videoUrl"])

	second, stats := run()
	assert.Equal(t, artifact.Stats{Uploaded: 2, Reused: 1}, stats)
	assert.Equal(t, 1, fetcher.calls, "video must not be downloaded again")
	assert.Equal(t, first.Fields["videoUrl"], second.Fields["videoUrl"])
	assert.Equal(t, 5, backend.uploads)

	_, _, record := New(Options{}).Record(second)
	rec := record.(*SkillRecord)
	require.Len(t, rec.PracticeProblems, 2)
	assert.Equal(t, 1, rec.PracticeProblems[0].ProblemNumber)
	assert.Equal(t, 2, rec.PracticeProblems[1].ProblemNumber)
	assert.True(t, strings.HasPrefix(rec.PracticeProblems[0].ScreenshotURL, "https://cdn.test/roadmaps/skill-660/practice-1-"))
	require.NoError(t, validate.New().Validate(record))
}

type fakeTagger struct {
	tags []string
	err  error
	in   ai.Input
}

func (f *fakeTagger) Tags(_ context.Context, in ai.Input) ([]string, error) {
	f.in = in
	return f.tags, f.err
}

func TestEnrich(t *testing.T) {
	tagger := &fakeTagger{tags: []string{"ratios", " ratios", "unit rate"}}
	site := New(Options{Tagger: tagger})
	rec := &SkillRecord{Title: "Understanding Ratios", Description: "d", Vocabulary: []string{"ratio"}}

	require.NoError(t, site.Enrich(context.Background(), rec))
	assert.Equal(t, []string{"ratios", "unit rate"}, rec.Tags)
	assert.Equal(t, "Understanding Ratios", tagger.in.Title)

	tagger.err = errors.New("quota")
	rec.Tags = nil
	assert.Error(t, site.Enrich(context.Background(), rec))
	assert.Nil(t, rec.Tags)

	assert.NoError(t, New(Options{}).Enrich(context.Background(), rec))
}

func TestItems(t *testing.T) {
	items, err := Items([]string{"660", " ", "https://roadmaps.teachtoone.org/skill/12?tab=1"})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, SkillURL("660"), items[0].URL)
	assert.Equal(t, "12", items[1].SkillID)
	assert.Equal(t, model.LevelSkill, items[1].Level)

	_, err = Items([]string{"ratios"})
	assert.Error(t, err)
	_, err = Items([]string{"https://roadmaps.teachtoone.org/home"})
	assert.Error(t, err)
}

func TestSkillNumber(t *testing.T) {
	assert.Equal(t, "660", SkillNumber("https://x/skill/660"))
	assert.Equal(t, "unknown", SkillNumber("https://x/lesson/660"))
	assert.Equal(t, 12, problemNumber("12_extra"))
	assert.Equal(t, 0, problemNumber("x"))
}

const unitsPage = `<html><body>
<div id="roadmap-dropdown" class="p-dropdown">Select a roadmap</div>
<div id="unit-dropdown" class="p-dropdown">Select a unit</div>
<div id="unit-content"></div>
</body></html>`

const sixthGrade = "Illustrative Math New York - 6th Grade"

// unitsFixture serves the units page with PrimeNG-style dropdowns
func unitsFixture() *browsertest.Page {
	page := browsertest.New(map[string]string{UnitsURL: unitsPage})
	toggle := func(p *browsertest.Page, id, items string) {
		if p.Doc().Find("#"+id).Length() > 0 {
			p.Doc().Find("#" + id).Remove()
			return
		}
		p.Doc().Find("body").AppendHtml(`<ul id="` + id + `">` + items + `</ul>`)
	}
	roadmap := ""
	page.OnClick["#roadmap-dropdown"] = func(p *browsertest.Page) {
		toggle(p, "roadmap-options", `<li class="p-dropdown-item">`+sixthGrade+`</li>
<li class="p-dropdown-item">Illustrative Math New York - 7th Grade</li>`)
	}
	page.OnClick["#roadmap-options > li:nth-child(1)"] = func(p *browsertest.Page) {
		roadmap = sixthGrade
		p.Doc().Find("#roadmap-options").Remove()
	}
	page.OnClick["#unit-dropdown"] = func(p *browsertest.Page) {
		if roadmap == "" {
			toggle(p, "unit-options", "")
			return
		}
		toggle(p, "unit-options", `<li class="p-dropdown-item">1. Area and Surface Area</li>
<li class="p-dropdown-item">2. Introducing Ratios</li>`)
	}
	page.OnClick["#unit-options > li:nth-child(2)"] = func(p *browsertest.Page) {
		p.Doc().Find("#unit-options").Remove()
		p.Doc().Find("#unit-content").SetHtml(`<h3>Target Skills (2)</h3>
<div class="cards"><a href="/skill/660">660 Understanding Ratios</a><a href="/skill/661">661 Equivalent Ratios</a></div>
<h3>Additional Support Skills (2)</h3>
<div><a href="/skill/120">120 Multiplication Facts</a><a href="/skill/660">660 Understanding Ratios</a></div>
<h3>Extension Skills (0)</h3>
<p>No extension skills</p>`)
	}
	return page
}

func openUnits(t *testing.T, page *browsertest.Page) {
	t.Helper()
	require.NoError(t, page.Navigate(context.Background(), UnitsURL))
}

func TestRoadmapListsUnits(t *testing.T) {
	items, err := RoadmapItems([]string{sixthGrade, " "})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "illustrative-math-new-york-6th-grade", items[0].CourseID)

	page := unitsFixture()
	openUnits(t, page)
	site := New(Options{Sleep: noSleep})

	res := site.Extract(context.Background(), page, items[0])
	require.True(t, res.Success, res.Error)
	assert.Equal(t, []string{"1. Area and Surface Area", "2. Introducing Ratios"}, res.Lists["units"])
	assert.Empty(t, page.Doc().Find("#unit-options").Nodes, "unit dropdown left open")

	units := site.Expand(res)
	require.Len(t, units, 2)
	assert.Equal(t, model.LevelUnit, units[1].Level)
	assert.Equal(t, "2", units[1].UnitID)
	assert.Equal(t, sixthGrade, units[1].Group)
	assert.Equal(t, UnitsURL, units[1].URL)
	assert.Equal(t, "unit:illustrative-math-new-york-6th-grade/2", units[1].Key())

	kind, _, record := site.Record(res)
	assert.Equal(t, RecordKindRoadmap, kind)
	require.NoError(t, validate.New().Validate(record))
}

func TestUnitExtractsSkillLists(t *testing.T) {
	var sleeps []time.Duration
	site := New(Options{Sleep: func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}})
	item := model.WorkItem{URL: UnitsURL, Level: model.LevelUnit, Title: "2. Introducing Ratios",
		CourseID: "illustrative-math-new-york-6th-grade", UnitID: "2", Group: sixthGrade}
	page := unitsFixture()
	openUnits(t, page)

	assert.Equal(t, dropdown, site.NavOptions(item).RequiredSelector)
	res := site.Extract(context.Background(), page, item)

	require.True(t, res.Success, res.Error)
	assert.Equal(t, []string{"660", "661"}, res.Lists["targetSkills"])
	assert.Equal(t, []string{"120", "660"}, res.Lists["supportSkills"])
	assert.Empty(t, res.Lists["extensionSkills"])
	assert.Contains(t, sleeps, unitSettle)

	kind, key, record := site.Record(res)
	assert.Equal(t, RecordKindUnit, kind)
	assert.Equal(t, item.Key(), key)
	require.NoError(t, validate.New().Validate(record))
	rec := record.(*UnitRecord)
	assert.Equal(t, 2, rec.UnitNumber)
	assert.Equal(t, 2, rec.TargetCount)
	assert.Equal(t, 2, rec.SupportCount)
	assert.Equal(t, 0, rec.ExtensionCount)
	assert.NotNil(t, rec.ExtensionSkills)

	skills := site.Expand(res)
	require.Len(t, skills, 3)
	assert.Equal(t, SkillURL("660"), skills[0].URL)
	assert.Equal(t, "120", skills[2].SkillID)
	assert.Equal(t, model.LevelSkill, skills[2].Level)
	assert.Empty(t, site.Expand(res), "skills are queued once per run")

	assert.Empty(t, New(Options{SkipSkills: true}).Expand(res))
}

func TestUnitMissingFromDropdownFails(t *testing.T) {
	page := unitsFixture()
	openUnits(t, page)
	item := model.WorkItem{URL: UnitsURL, Level: model.LevelUnit, Title: "9. Statistics", Group: sixthGrade}

	res := New(Options{Sleep: noSleep}).Extract(context.Background(), page, item)

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "select unit")
	assert.Contains(t, res.Error, "9. Statistics")
}

func TestEnrichSkipsUnits(t *testing.T) {
	tagger := &fakeTagger{err: errors.New("must not be called")}
	assert.NoError(t, New(Options{Tagger: tagger}).Enrich(context.Background(), &UnitRecord{}))
	assert.Empty(t, tagger.in.Title)
}

func TestUnitNumber(t *testing.T) {
	assert.Equal(t, "2", UnitNumber("2. Introducing Ratios"))
	assert.Equal(t, "11", UnitNumber("Unit 11: Probability"))
	assert.Equal(t, "", UnitNumber("Review"))
}
