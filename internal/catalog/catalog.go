// Package catalog turns static configuration and saved listings into WorkItems.
package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/v0xg/coursescrape/internal/model"
)

const (
	wikiBaseURL  = "https://doe1nyc.ilclassroom.com/wikis/"
	classBaseURL = "https://teacher.snorkl.app/classes/"

	// GroupMiddleSchool marks units whose pages are split into sections
	GroupMiddleSchool = "middle-school"
	GroupHighSchool   = "high-school"
)

//go:embed courses.yaml
var coursesYAML []byte

//go:embed classes.yaml
var classesYAML []byte

// Unit is one unit of a course
type Unit struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
}

// URL returns the unit's wiki page
func (u Unit) URL() string {
	return wikiBaseURL + u.ID
}

// Course is a course and its units
type Course struct {
	ID           string `yaml:"id" json:"id"`
	Name         string `yaml:"name" json:"name"`
	BaseURL      string `yaml:"base_url" json:"baseUrl"`
	MiddleSchool bool   `yaml:"middle_school" json:"isMiddleSchool"`
	Units        []Unit `yaml:"units" json:"units"`
}

// Class is a class roster page
type Class struct {
	ID       string `yaml:"id" json:"id"`
	Name     string `yaml:"name" json:"name"`
	District string `yaml:"district" json:"district"`
}

// URL returns the class page
func (c Class) URL() string {
	return classBaseURL + c.ID
}

// Catalog is the static lookup table of courses and classes
type Catalog struct {
	Courses []Course `yaml:"courses"`
	Classes []Class  `yaml:"classes"`
}

// Load parses the embedded tables
func Load() (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(coursesYAML, &c); err != nil {
		return nil, fmt.Errorf("failed to parse courses: %w", err)
	}
	if err := yaml.Unmarshal(classesYAML, &c); err != nil {
		return nil, fmt.Errorf("failed to parse classes: %w", err)
	}
	return &c, nil
}

// Course looks up a course by id
func (c *Catalog) Course(id string) (Course, bool) {
	for _, course := range c.Courses {
		if course.ID == id {
			return course, true
		}
	}
	return Course{}, false
}

// CourseIDs lists every course id in catalog order
func (c *Catalog) CourseIDs() []string {
	ids := make([]string, len(c.Courses))
	for i, course := range c.Courses {
		ids[i] = course.ID
	}
	return ids
}

// UnitItems expands courses into unit WorkItems in catalog order. No ids
// means every course.
func (c *Catalog) UnitItems(courseIDs ...string) ([]model.WorkItem, error) {
	if len(courseIDs) == 0 {
		courseIDs = c.CourseIDs()
	}
	var items []model.WorkItem
	for _, id := range courseIDs {
		course, ok := c.Course(id)
		if !ok {
			return nil, fmt.Errorf("course %q not found (known: %s)", id, strings.Join(c.CourseIDs(), ", "))
		}
		group := GroupHighSchool
		if course.MiddleSchool {
			group = GroupMiddleSchool
		}
		for _, u := range course.Units {
			items = append(items, model.WorkItem{
				URL:      u.URL(),
				Level:    model.LevelUnit,
				Title:    u.Name,
				CourseID: course.ID,
				UnitID:   u.ID,
				Group:    group,
			})
		}
	}
	return items, nil
}

// ClassItems returns class WorkItems, optionally limited to some districts
func (c *Catalog) ClassItems(districts ...string) []model.WorkItem {
	var items []model.WorkItem
	for _, cl := range c.Classes {
		if len(districts) > 0 && !slices.ContainsFunc(districts, func(d string) bool {
			return strings.EqualFold(d, cl.District)
		}) {
			continue
		}
		items = append(items, model.WorkItem{
			URL:     cl.URL(),
			Level:   model.LevelClass,
			Title:   cl.Name,
			ClassID: cl.ID,
			Group:   cl.District,
		})
	}
	return items
}

// LoadListing reads a previously saved JSON array of WorkItems
func LoadListing(r io.Reader) ([]model.WorkItem, error) {
	var items []model.WorkItem
	if err := json.NewDecoder(r).Decode(&items); err != nil {
		return nil, fmt.Errorf("failed to decode listing: %w", err)
	}
	for i, it := range items {
		if strings.TrimSpace(it.URL) == "" {
			return nil, fmt.Errorf("listing entry %d has no url", i)
		}
	}
	return items, nil
}
