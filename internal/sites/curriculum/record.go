package curriculum

import (
	"strconv"
	"strings"
	"time"

	"github.com/v0xg/coursescrape/internal/catalog"
	"github.com/v0xg/coursescrape/internal/extract"
	"github.com/v0xg/coursescrape/internal/model"
	"github.com/v0xg/coursescrape/internal/validate"
)

// Entry is a titled child link with its position in the listing
type Entry struct {
	Number int    `json:"number" validate:"gte=1"`
	Title  string `json:"title" validate:"notblank"`
	URL    string `json:"url" validate:"required,url"`
	// OriginalNumber is the lesson number printed in the title, when there is one
	OriginalNumber int `json:"originalNumber,omitempty"`
}

// UnitRecord is a unit and whatever it lists directly
type UnitRecord struct {
	CourseID     string    `json:"courseId" validate:"required"`
	UnitID       string    `json:"unitId" validate:"required"`
	Title        string    `json:"title" validate:"notblank"`
	URL          string    `json:"url" validate:"required,url"`
	MiddleSchool bool      `json:"isMiddleSchool"`
	Sections     []Entry   `json:"sections,omitempty" validate:"dive"`
	Lessons      []Entry   `json:"lessons,omitempty" validate:"dive"`
	ScrapedAt    time.Time `json:"scrapedAt"`
}

func (r *UnitRecord) Repair() {
	validate.TrimAll(&r.CourseID, &r.UnitID, &r.Title, &r.URL)
	repairEntries(r.Sections)
	repairEntries(r.Lessons)
}

// SectionRecord is one section of a middle school unit
type SectionRecord struct {
	CourseID  string    `json:"courseId" validate:"required"`
	UnitID    string    `json:"unitId" validate:"required"`
	SectionID string    `json:"sectionId" validate:"required"`
	Title     string    `json:"title" validate:"notblank"`
	URL       string    `json:"url" validate:"required,url"`
	Lessons   []Entry   `json:"lessons" validate:"dive"`
	ScrapedAt time.Time `json:"scrapedAt"`
}

func (r *SectionRecord) Repair() {
	validate.TrimAll(&r.CourseID, &r.UnitID, &r.SectionID, &r.Title, &r.URL)
	repairEntries(r.Lessons)
}

// LessonRecord is a single lesson page
type LessonRecord struct {
	CourseID       string `json:"courseId" validate:"required"`
	UnitID         string `json:"unitId" validate:"required"`
	SectionID      string `json:"sectionId,omitempty"`
	LessonID       string `json:"lessonId" validate:"required"`
	Number         int    `json:"number" validate:"gte=1"`
	OriginalNumber int    `json:"originalNumber,omitempty"`
	Title          string `json:"title" validate:"notblank"`
	PageTitle      string `json:"pageTitle,omitempty"`
	URL            string `json:"url" validate:"required,url"`
	// PDFs are the stored copies of the documents the lesson links to
	PDFs      []LessonPDF `json:"pdfs" validate:"dive"`
	ScrapedAt time.Time   `json:"scrapedAt"`
}

// LessonPDF is one stored lesson document
type LessonPDF struct {
	Number    int    `json:"number" validate:"gte=1"`
	SourceURL string `json:"sourceUrl" validate:"required,url"`
	URL       string `json:"url" validate:"required,url"`
}

func (r *LessonRecord) Repair() {
	validate.TrimAll(&r.CourseID, &r.UnitID, &r.SectionID, &r.LessonID, &r.Title, &r.PageTitle, &r.URL)
}

func repairEntries(entries []Entry) {
	for i := range entries {
		validate.TrimAll(&entries[i].Title, &entries[i].URL)
	}
}

// entries numbers links in listing order, reading lesson numbers from titles
func entries(links []model.Link) []Entry {
	out := make([]Entry, 0, len(links))
	for i, l := range links {
		e := Entry{Number: i + 1, Title: l.Title, URL: l.URL}
		if n, err := strconv.Atoi(extract.Submatch(lessonNumber, strings.TrimSpace(l.Title))); err == nil {
			e.OriginalNumber = n
		}
		out = append(out, e)
	}
	return out
}

// position reads the 1-based index out of ids like "lesson-3"
func position(id string) int {
	i := strings.LastIndexByte(id, '-')
	n, err := strconv.Atoi(id[i+1:])
	if err != nil {
		return 0
	}
	return n
}

// Record shapes a result by level. Keys follow the course hierarchy so a
// rerun overwrites the same rows.
func (s *Site) Record(res model.ExtractionResult) (string, string, any) {
	item := res.Item
	key := item.Key()
	switch item.Level {
	case model.LevelUnit:
		rec := &UnitRecord{
			CourseID:     item.CourseID,
			UnitID:       item.UnitID,
			Title:        firstNonBlank(item.Title, res.Title),
			URL:          item.URL,
			MiddleSchool: item.Group == catalog.GroupMiddleSchool,
			ScrapedAt:    res.ScrapedAt,
		}
		if rec.MiddleSchool {
			rec.Sections = entries(res.Links)
		} else {
			rec.Lessons = entries(res.Links)
		}
		return string(model.LevelUnit), key, rec
	case model.LevelSection:
		return string(model.LevelSection), key, &SectionRecord{
			CourseID:  item.CourseID,
			UnitID:    item.UnitID,
			SectionID: item.SectionID,
			Title:     firstNonBlank(item.Title, res.Title),
			URL:       item.URL,
			Lessons:   entries(res.Links),
			ScrapedAt: res.ScrapedAt,
		}
	default:
		rec := &LessonRecord{
			CourseID:  item.CourseID,
			UnitID:    item.UnitID,
			SectionID: item.SectionID,
			LessonID:  item.LessonID,
			Number:    position(item.LessonID),
			Title:     firstNonBlank(item.Title, res.Title),
			PageTitle: res.Title,
			URL:       item.URL,
			PDFs:      []LessonPDF{},
			ScrapedAt: res.ScrapedAt,
		}
		if n, err := strconv.Atoi(res.Fields["lessonNumber"]); err == nil {
			rec.OriginalNumber = n
		}
		for _, a := range res.Artifacts {
			if a.Role == RoleLessonPDF && a.Stored() {
				rec.PDFs = append(rec.PDFs, LessonPDF{Number: a.Index, SourceURL: a.SourceURL, URL: a.StoredURL})
			}
		}
		return string(model.LevelLesson), key, rec
	}
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
