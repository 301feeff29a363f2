package roadmaps

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/v0xg/coursescrape/internal/ai"
	"github.com/v0xg/coursescrape/internal/model"
	"github.com/v0xg/coursescrape/internal/validate"
)

// Persistence kinds
const (
	RecordKind        = "skill"
	RecordKindUnit    = "unit"
	RecordKindRoadmap = "roadmap"
)

// PracticeProblem is one stored practice screenshot
type PracticeProblem struct {
	ProblemNumber int    `json:"problemNumber" validate:"gte=1"`
	ScreenshotURL string `json:"screenshotUrl" validate:"required,url"`
}

// SkillRecord is the persisted shape of a skill page
type SkillRecord struct {
	SkillNumber string `json:"skillNumber" validate:"required,numeric"`
	Title       string `json:"title" validate:"notblank"`
	URL         string `json:"url" validate:"required,url"`

	Description              string `json:"description"`
	SkillChallengeCriteria   string `json:"skillChallengeCriteria"`
	EssentialQuestion        string `json:"essentialQuestion"`
	Launch                   string `json:"launch"`
	TeacherStudentStrategies string `json:"teacherStudentStrategies"`
	ModelsAndManipulatives   string `json:"modelsAndManipulatives"`
	QuestionsToHelp          string `json:"questionsToHelp"`
	DiscussionQuestions      string `json:"discussionQuestions"`
	CommonMisconceptions     string `json:"commonMisconceptions"`
	AdditionalResources      string `json:"additionalResources"`
	Standards                string `json:"standards"`

	Vocabulary        []string          `json:"vocabulary" validate:"dive,notblank"`
	Images            []string          `json:"images" validate:"dive,url"`
	ImagesWithContext []model.Image     `json:"imagesWithContext"`
	VideoURL          string            `json:"videoUrl" validate:"omitempty,url"`
	PracticeProblems  []PracticeProblem `json:"practiceProblems" validate:"dive"`
	Tags              []string          `json:"tags"`
	ScrapedAt         time.Time         `json:"scrapedAt"`
}

// Repair trims text and tidies lists before validation
func (r *SkillRecord) Repair() {
	validate.TrimAll(&r.SkillNumber, &r.Title, &r.URL,
		&r.Description, &r.SkillChallengeCriteria, &r.EssentialQuestion,
		&r.Launch, &r.TeacherStudentStrategies, &r.ModelsAndManipulatives,
		&r.QuestionsToHelp, &r.DiscussionQuestions, &r.CommonMisconceptions,
		&r.AdditionalResources, &r.Standards, &r.VideoURL)
	r.Vocabulary = validate.CleanList(r.Vocabulary)
	r.Images = validate.CleanList(r.Images)
	r.Tags = validate.CleanList(r.Tags)
}

// UnitRecord is one unit of a roadmap with the skill numbers it lists
type UnitRecord struct {
	Roadmap                 string    `json:"roadmap" validate:"notblank"`
	UnitTitle               string    `json:"unitTitle" validate:"notblank"`
	UnitNumber              int       `json:"unitNumber" validate:"gte=0"`
	URL                     string    `json:"url" validate:"required,url"`
	TargetCount             int       `json:"targetCount"`
	SupportCount            int       `json:"supportCount"`
	ExtensionCount          int       `json:"extensionCount"`
	TargetSkills            []string  `json:"targetSkills" validate:"dive,numeric"`
	AdditionalSupportSkills []string  `json:"additionalSupportSkills" validate:"dive,numeric"`
	ExtensionSkills         []string  `json:"extensionSkills" validate:"dive,numeric"`
	ScrapedAt               time.Time `json:"scrapedAt"`
}

// Repair trims text, drops blank skill numbers and recounts the lists
func (r *UnitRecord) Repair() {
	validate.TrimAll(&r.Roadmap, &r.UnitTitle, &r.URL)
	r.TargetSkills = validate.CleanList(r.TargetSkills)
	r.AdditionalSupportSkills = validate.CleanList(r.AdditionalSupportSkills)
	r.ExtensionSkills = validate.CleanList(r.ExtensionSkills)
	r.TargetCount = len(r.TargetSkills)
	r.SupportCount = len(r.AdditionalSupportSkills)
	r.ExtensionCount = len(r.ExtensionSkills)
}

// RoadmapRecord lists the units a roadmap offers, in dropdown order
type RoadmapRecord struct {
	Roadmap   string    `json:"roadmap" validate:"notblank"`
	URL       string    `json:"url" validate:"required,url"`
	Units     []string  `json:"units" validate:"dive,notblank"`
	ScrapedAt time.Time `json:"scrapedAt"`
}

func (r *RoadmapRecord) Repair() {
	validate.TrimAll(&r.Roadmap, &r.URL)
	r.Units = validate.CleanList(r.Units)
}

// Record shapes an extraction result by level
func (s *Site) Record(res model.ExtractionResult) (string, string, any) {
	switch res.Item.Level {
	case model.LevelCourse:
		return RecordKindRoadmap, res.Item.Key(), &RoadmapRecord{
			Roadmap:   res.Item.Group,
			URL:       res.Item.URL,
			Units:     append([]string{}, res.Lists["units"]...),
			ScrapedAt: res.ScrapedAt,
		}
	case model.LevelUnit:
		return s.unitRecord(res)
	}
	return s.skillRecord(res)
}

func (s *Site) unitRecord(res model.ExtractionResult) (string, string, any) {
	rec := &UnitRecord{
		Roadmap:                 res.Item.Group,
		UnitTitle:               res.Item.Title,
		URL:                     res.Item.URL,
		TargetSkills:            append([]string{}, res.Lists["targetSkills"]...),
		AdditionalSupportSkills: append([]string{}, res.Lists["supportSkills"]...),
		ExtensionSkills:         append([]string{}, res.Lists["extensionSkills"]...),
		ScrapedAt:               res.ScrapedAt,
	}
	if n, err := strconv.Atoi(res.Fields["unitNumber"]); err == nil {
		rec.UnitNumber = n
	}
	rec.TargetCount = len(rec.TargetSkills)
	rec.SupportCount = len(rec.AdditionalSupportSkills)
	rec.ExtensionCount = len(rec.ExtensionSkills)
	return RecordKindUnit, res.Item.Key(), rec
}

func (s *Site) skillRecord(res model.ExtractionResult) (string, string, any) {
	sec := res.Sections
	rec := &SkillRecord{
		SkillNumber:              res.Fields["skillNumber"],
		Title:                    res.Title,
		URL:                      res.Item.URL,
		Description:              sec["description"],
		SkillChallengeCriteria:   sec["skillChallengeCriteria"],
		EssentialQuestion:        sec["essentialQuestion"],
		Launch:                   sec["launch"],
		TeacherStudentStrategies: sec["teacherStudentStrategies"],
		ModelsAndManipulatives:   sec["modelsAndManipulatives"],
		QuestionsToHelp:          sec["questionsToHelp"],
		DiscussionQuestions:      sec["discussionQuestions"],
		CommonMisconceptions:     sec["commonMisconceptions"],
		AdditionalResources:      sec["additionalResources"],
		Standards:                sec["standards"],
		Vocabulary:               append([]string{}, res.Lists["vocabulary"]...),
		Images:                   []string{},
		ImagesWithContext:        append([]model.Image{}, res.Images...),
		VideoURL:                 res.Fields["videoUrl"],
		PracticeProblems:         []PracticeProblem{},
		Tags:                     []string{},
		ScrapedAt:                res.ScrapedAt,
	}
	for _, img := range res.Images {
		rec.Images = append(rec.Images, img.URL)
	}
	for _, a := range res.Artifacts {
		if a.Role == RolePracticeProblem && a.Stored() {
			rec.PracticeProblems = append(rec.PracticeProblems, PracticeProblem{ProblemNumber: a.Index, ScreenshotURL: a.StoredURL})
		}
	}
	sort.SliceStable(rec.PracticeProblems, func(i, j int) bool {
		return rec.PracticeProblems[i].ProblemNumber < rec.PracticeProblems[j].ProblemNumber
	})
	return RecordKind, rec.SkillNumber, rec
}

// Enrich tags a skill when a tagger is configured
func (s *Site) Enrich(ctx context.Context, record any) error {
	if s.opts.Tagger == nil {
		return nil
	}
	rec, ok := record.(*SkillRecord)
	if !ok {
		// only skills are tagged
		return nil
	}
	tags, err := s.opts.Tagger.Tags(ctx, ai.Input{
		Title:       rec.Title,
		Description: rec.Description,
		Vocabulary:  rec.Vocabulary,
	})
	if err != nil {
		return err
	}
	rec.Tags = validate.CleanList(tags)
	return nil
}
