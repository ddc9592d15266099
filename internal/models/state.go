// Package models defines state management structures for TerraPipe questionnaires.
package models

import "time"

// StepID names one stage of the agricultural questionnaire.
type StepID string

const (
	StepLocation        StepID = "location"
	StepClimateDetails  StepID = "climate_details"
	StepSoilDescription StepID = "soil_description"
	StepSoilChallenges  StepID = "soil_challenges"
	StepCurrentSystem   StepID = "current_system"
	StepPractices       StepID = "practices"
	StepEconomicContext StepID = "economic_context"
	StepGoals           StepID = "goals"
	StepAnalysis        StepID = "analysis"
)

// DataKey names an entry of the conversation context.
type DataKey string

const (
	DataKeyCommune        DataKey = "commune"
	DataKeyClimate        DataKey = "climate"
	DataKeySoil           DataKey = "soil"
	DataKeySoilChallenges DataKey = "soil_challenges"
	DataKeyCurrentSystem  DataKey = "current_system"
	DataKeyPractices      DataKey = "practices"
	DataKeyEconomic       DataKey = "economic"
	DataKeyGoals          DataKey = "goals"
	DataKeySummary        DataKey = "summary"
)

// TextEntry is a free-text answer accepted by a step.
type TextEntry struct {
	Text      string `json:"text"`
	WordCount int    `json:"word_count,omitempty"`
}

// CommuneEntry holds the resolved farm location with best-effort enrichment.
type CommuneEntry struct {
	Commune
	Weather *Weather     `json:"weather,omitempty"`
	Soil    *SoilProfile `json:"soil,omitempty"`
}

// ChallengesEntry holds the soil challenge answer and the recognised keywords.
type ChallengesEntry struct {
	Text     string   `json:"text"`
	Keywords []string `json:"keywords"`
}

// SummaryEntry holds the synthesized analysis.
type SummaryEntry struct {
	Focus     string    `json:"focus"`
	Report    string    `json:"report"`
	Narrative string    `json:"narrative,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ConversationContext accumulates the validated answers of a questionnaire.
// An entry is non-nil only once the step owning it has validated.
type ConversationContext struct {
	Commune        *CommuneEntry    `json:"commune,omitempty"`
	Climate        *TextEntry       `json:"climate,omitempty"`
	Soil           *TextEntry       `json:"soil,omitempty"`
	SoilChallenges *ChallengesEntry `json:"soil_challenges,omitempty"`
	CurrentSystem  *TextEntry       `json:"current_system,omitempty"`
	Practices      *TextEntry       `json:"practices,omitempty"`
	Economic       *TextEntry       `json:"economic,omitempty"`
	Goals          *TextEntry       `json:"goals,omitempty"`
	Summary        *SummaryEntry    `json:"summary,omitempty"`
}

// Has reports whether the entry for key is populated.
func (c *ConversationContext) Has(key DataKey) bool {
	switch key {
	case DataKeyCommune:
		return c.Commune != nil
	case DataKeyClimate:
		return c.Climate != nil
	case DataKeySoil:
		return c.Soil != nil
	case DataKeySoilChallenges:
		return c.SoilChallenges != nil
	case DataKeyCurrentSystem:
		return c.CurrentSystem != nil
	case DataKeyPractices:
		return c.Practices != nil
	case DataKeyEconomic:
		return c.Economic != nil
	case DataKeyGoals:
		return c.Goals != nil
	case DataKeySummary:
		return c.Summary != nil
	}
	return false
}

// Clear removes the entry for key.
func (c *ConversationContext) Clear(key DataKey) {
	switch key {
	case DataKeyCommune:
		c.Commune = nil
	case DataKeyClimate:
		c.Climate = nil
	case DataKeySoil:
		c.Soil = nil
	case DataKeySoilChallenges:
		c.SoilChallenges = nil
	case DataKeyCurrentSystem:
		c.CurrentSystem = nil
	case DataKeyPractices:
		c.Practices = nil
	case DataKeyEconomic:
		c.Economic = nil
	case DataKeyGoals:
		c.Goals = nil
	case DataKeySummary:
		c.Summary = nil
	}
}

// Keys lists the populated entries.
func (c *ConversationContext) Keys() []DataKey {
	all := []DataKey{
		DataKeyCommune, DataKeyClimate, DataKeySoil, DataKeySoilChallenges,
		DataKeyCurrentSystem, DataKeyPractices, DataKeyEconomic, DataKeyGoals, DataKeySummary,
	}
	var keys []DataKey
	for _, k := range all {
		if c.Has(k) {
			keys = append(keys, k)
		}
	}
	return keys
}

// Session is the persisted snapshot of one questionnaire conversation.
type Session struct {
	ID          string              `json:"id"`
	CurrentStep StepID              `json:"current_step"`
	Context     ConversationContext `json:"context"`
	Messages    []Message           `json:"messages"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}
