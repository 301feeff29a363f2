package model

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFailedHasEmptyCollections(t *testing.T) {
	item := WorkItem{URL: "https://x/skill/1", Level: LevelSkill, SkillID: "1"}
	r := Failed(item, errors.New("navigation timed out"))

	assert.False(t, r.Success)
	assert.Equal(t, "navigation timed out", r.Error)
	assert.Empty(t, r.Title)

	data, err := json.Marshal(r)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	for _, field := range []string{"fields", "sections", "lists", "links", "images", "artifacts", "derivedUrls"} {
		assert.NotNil(t, decoded[field], field)
	}
}

func TestWorkItemKey(t *testing.T) {
	unit := WorkItem{URL: "https://x/wikis/1", Level: LevelUnit, CourseID: "algebra1", UnitID: "316459"}
	assert.Equal(t, "unit:algebra1/316459", unit.Key())

	section := unit.Child(LevelSection, "https://x/wikis/2", "1.1 Section A: Intro")
	section.SectionID = "2"
	assert.Equal(t, "section:algebra1/316459/2", section.Key())
	assert.Equal(t, "316459", section.UnitID)

	bare := WorkItem{URL: "https://x/page"}
	assert.Equal(t, ":https://x/page", bare.Key())
}

func TestNormalize(t *testing.T) {
	var r ExtractionResult
	r.Normalize()
	assert.NotNil(t, r.Fields)
	assert.NotNil(t, r.Links)
	assert.NotNil(t, r.DerivedURLs)
}
