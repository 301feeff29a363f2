package snorkl

import (
	"strconv"
	"time"

	"github.com/v0xg/coursescrape/internal/model"
	"github.com/v0xg/coursescrape/internal/validate"
)

const RecordKind = "class"

// Activity is one assigned prompt activity
type Activity struct {
	ID            string `json:"activityId" validate:"required,uuid"`
	Title         string `json:"title" validate:"notblank"`
	URL           string `json:"fullUrl" validate:"required,url"`
	ResponseCount int    `json:"responseCount" validate:"gte=0"`
	HasResponses  bool   `json:"hasResponses"`
	ExportURL     string `json:"csvUrl" validate:"required,url"`
}

// ClassRecord is a class and its activities
type ClassRecord struct {
	ClassID    string     `json:"classId" validate:"required,uuid"`
	Name       string     `json:"name" validate:"notblank"`
	District   string     `json:"district"`
	Teacher    string     `json:"teacher" validate:"notblank"`
	URL        string     `json:"url" validate:"required,url"`
	Activities []Activity `json:"activities" validate:"dive"`
	Errors     []string   `json:"errors,omitempty"`
	ScrapedAt  time.Time  `json:"scrapedAt"`
}

func (r *ClassRecord) Repair() {
	validate.TrimAll(&r.ClassID, &r.Name, &r.District, &r.Teacher, &r.URL)
	for i := range r.Activities {
		validate.TrimAll(&r.Activities[i].Title)
	}
	r.Errors = validate.CleanList(r.Errors)
}

func (s *Site) Record(res model.ExtractionResult) (string, string, any) {
	rec := &ClassRecord{
		ClassID:    res.Item.ClassID,
		Name:       res.Title,
		District:   res.Fields["district"],
		Teacher:    res.Fields["teacher"],
		URL:        res.Item.URL,
		Activities: make([]Activity, 0, len(res.Links)),
		Errors:     res.Lists["errors"],
		ScrapedAt:  res.ScrapedAt,
	}
	counts := res.Lists["responseCounts"]
	for i, l := range res.Links {
		a := Activity{ID: ActivityID(l.URL), Title: l.Title, URL: l.URL}
		if i < len(counts) {
			a.ResponseCount, _ = strconv.Atoi(counts[i])
		}
		a.HasResponses = a.ResponseCount > 0
		if i < len(res.DerivedURLs) {
			a.ExportURL = res.DerivedURLs[i]
		}
		rec.Activities = append(rec.Activities, a)
	}
	return RecordKind, rec.ClassID, rec
}
