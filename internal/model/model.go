// Package model holds the values passed between pipeline stages: work
// items, extraction results and the links, images and artifacts they carry.
package model

import (
	"strings"
	"time"
)

// Level identifies where a WorkItem sits in a content hierarchy
type Level string

const (
	LevelCourse   Level = "course"
	LevelUnit     Level = "unit"
	LevelSection  Level = "section"
	LevelLesson   Level = "lesson"
	LevelSkill    Level = "skill"
	LevelClass    Level = "class"
	LevelActivity Level = "activity"
)

// WorkItem is one unit of scrape work: a target URL plus its hierarchical context.
// Values are copied, never mutated, once enqueued.
type WorkItem struct {
	URL       string `json:"url"`
	Level     Level  `json:"level,omitempty"`
	Title     string `json:"title,omitempty"`
	CourseID  string `json:"courseId,omitempty"`
	UnitID    string `json:"unitId,omitempty"`
	SectionID string `json:"sectionId,omitempty"`
	LessonID  string `json:"lessonId,omitempty"`
	SkillID   string `json:"skillId,omitempty"`
	ClassID   string `json:"classId,omitempty"`
	Group     string `json:"group,omitempty"` // district, grade band or similar grouping label
}

// Key returns a stable natural key for the item
func (w WorkItem) Key() string {
	var parts []string
	for _, p := range []string{w.CourseID, w.UnitID, w.SectionID, w.LessonID, w.SkillID, w.ClassID} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return string(w.Level) + ":" + w.URL
	}
	return string(w.Level) + ":" + strings.Join(parts, "/")
}

// Child derives a WorkItem one level down, inheriting the parent's identifiers
func (w WorkItem) Child(level Level, url, title string) WorkItem {
	c := w
	c.Level = level
	c.URL = url
	c.Title = title
	return c
}

// Link is a titled destination found on a page
type Link struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Image is an image discovered on a page together with its surrounding context
type Image struct {
	URL     string `json:"url"`
	Alt     string `json:"altText"`
	Caption string `json:"caption"`
	Section string `json:"section"`
	Order   int    `json:"orderInSection"`
}

// ArtifactRef tracks one binary artifact from discovery to storage
type ArtifactRef struct {
	Role        string `json:"role"`
	LogicalKey  string `json:"logicalKey"`
	SourceURL   string `json:"sourceUrl,omitempty"`
	Index       int    `json:"index,omitempty"` // position among artifacts of the same role
	ContentType string `json:"contentType"`
	StoredURL   string `json:"storedUrl"`
	Error       string `json:"error,omitempty"`
}

// Stored reports whether the artifact made it into storage
func (a ArtifactRef) Stored() bool {
	return a.StoredURL != "" && a.Error == ""
}

// ExtractionResult holds the raw fields pulled from one page.
// Collections are always non-nil so consumers never special-case absence.
type ExtractionResult struct {
	Item        WorkItem            `json:"item"`
	Title       string              `json:"title"`
	Fields      map[string]string   `json:"fields"`
	Sections    map[string]string   `json:"sections"`
	Lists       map[string][]string `json:"lists"`
	Links       []Link              `json:"links"`
	Images      []Image             `json:"images"`
	Artifacts   []ArtifactRef       `json:"artifacts"`
	DerivedURLs []string            `json:"derivedUrls"`
	Success     bool                `json:"success"`
	Error       string              `json:"error,omitempty"`
	RecordID    int64               `json:"recordId,omitempty"`
	ScrapedAt   time.Time           `json:"scrapedAt"`
}

// NewResult returns an empty, successful result for item
func NewResult(item WorkItem) ExtractionResult {
	return ExtractionResult{
		Item:        item,
		Fields:      map[string]string{},
		Sections:    map[string]string{},
		Lists:       map[string][]string{},
		Links:       []Link{},
		Images:      []Image{},
		Artifacts:   []ArtifactRef{},
		DerivedURLs: []string{},
		Success:     true,
	}
}

// Failed returns the placeholder result for an item that could not be extracted
func Failed(item WorkItem, err error) ExtractionResult {
	r := NewResult(item)
	r.Success = false
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

// Fail marks the result failed while keeping any fields gathered so far
func (r *ExtractionResult) Fail(err error) {
	r.Success = false
	if err != nil {
		r.Error = err.Error()
	}
}

// Normalize replaces nil collections with empty ones
func (r *ExtractionResult) Normalize() {
	if r.Fields == nil {
		r.Fields = map[string]string{}
	}
	if r.Sections == nil {
		r.Sections = map[string]string{}
	}
	if r.Lists == nil {
		r.Lists = map[string][]string{}
	}
	if r.Links == nil {
		r.Links = []Link{}
	}
	if r.Images == nil {
		r.Images = []Image{}
	}
	if r.Artifacts == nil {
		r.Artifacts = []ArtifactRef{}
	}
	if r.DerivedURLs == nil {
		r.DerivedURLs = []string{}
	}
}
