package flow

import (
	"strings"

	"github.com/BTreeMap/TerraPipe/internal/models"
)

// Step describes one stage of the questionnaire.
type Step struct {
	ID    models.StepID
	Index int
	Label string
	// Key is the context entry owned by the step.
	Key  models.DataKey
	Next models.StepID // empty for the terminal step

	// Validate is nil for steps resolved by the controller itself.
	Validate func(input string) bool
	// Apply records accepted input into the context.
	Apply   func(cc *models.ConversationContext, input string)
	Success func(cc *models.ConversationContext) string
	Failure string
}

// Terminal reports whether the step ends the questionnaire.
func (s Step) Terminal() bool { return s.Next == "" }

func textEntry(input string) *models.TextEntry {
	return &models.TextEntry{Text: input, WordCount: len(strings.Fields(input))}
}

// Steps is the ordered questionnaire.
var Steps = []Step{
	{
		ID:      models.StepLocation,
		Label:   "Localisation",
		Key:     models.DataKeyCommune,
		Next:    models.StepClimateDetails,
		Success: locationSuccess,
		Failure: MsgLocationNotFound,
	},
	{
		ID:       models.StepClimateDetails,
		Label:    "Climat",
		Key:      models.DataKeyClimate,
		Next:     models.StepSoilDescription,
		Validate: minWords(MinClimateWords),
		Apply:    func(cc *models.ConversationContext, in string) { cc.Climate = textEntry(in) },
		Success:  climateSuccess,
		Failure:  msgClimateInvalid,
	},
	{
		ID:       models.StepSoilDescription,
		Label:    "Sol",
		Key:      models.DataKeySoil,
		Next:     models.StepSoilChallenges,
		Validate: minChars(MinSoilChars),
		Apply:    func(cc *models.ConversationContext, in string) { cc.Soil = textEntry(in) },
		Success:  soilSuccess,
		Failure:  msgSoilInvalid,
	},
	{
		ID:       models.StepSoilChallenges,
		Label:    "Défis",
		Key:      models.DataKeySoilChallenges,
		Next:     models.StepCurrentSystem,
		Validate: func(in string) bool { return len(matchChallenges(in)) > 0 },
		Apply: func(cc *models.ConversationContext, in string) {
			cc.SoilChallenges = &models.ChallengesEntry{Text: in, Keywords: matchChallenges(in)}
		},
		Success: challengesSuccess,
		Failure: msgChallengesInvalid,
	},
	{
		ID:       models.StepCurrentSystem,
		Label:    "Système actuel",
		Key:      models.DataKeyCurrentSystem,
		Next:     models.StepPractices,
		Validate: minChars(MinFreeTextChars),
		Apply:    func(cc *models.ConversationContext, in string) { cc.CurrentSystem = textEntry(in) },
		Success:  currentSystemSuccess,
		Failure:  msgCurrentSystemInvalid,
	},
	{
		ID:       models.StepPractices,
		Label:    "Pratiques",
		Key:      models.DataKeyPractices,
		Next:     models.StepEconomicContext,
		Validate: minChars(MinFreeTextChars),
		Apply:    func(cc *models.ConversationContext, in string) { cc.Practices = textEntry(in) },
		Success:  practicesSuccess,
		Failure:  msgPracticesInvalid,
	},
	{
		ID:       models.StepEconomicContext,
		Label:    "Économie",
		Key:      models.DataKeyEconomic,
		Next:     models.StepGoals,
		Validate: minChars(MinFreeTextChars),
		Apply:    func(cc *models.ConversationContext, in string) { cc.Economic = textEntry(in) },
		Success:  economicSuccess,
		Failure:  msgEconomicInvalid,
	},
	{
		ID:       models.StepGoals,
		Label:    "Objectifs",
		Key:      models.DataKeyGoals,
		Next:     models.StepAnalysis,
		Validate: minChars(MinFreeTextChars),
		Apply:    func(cc *models.ConversationContext, in string) { cc.Goals = textEntry(in) },
		Success:  goalsSuccess,
		Failure:  msgGoalsInvalid,
	},
	{
		ID:      models.StepAnalysis,
		Label:   "Analyse",
		Key:     models.DataKeySummary,
		Failure: MsgAnalysisFailed,
	},
}

func init() {
	for i := range Steps {
		Steps[i].Index = i
	}
}

// StepByID looks up a step in the table.
func StepByID(id models.StepID) (Step, bool) {
	for _, s := range Steps {
		if s.ID == id {
			return s, true
		}
	}
	return Step{}, false
}

// FirstStep returns the entry point of the questionnaire.
func FirstStep() models.StepID { return Steps[0].ID }
