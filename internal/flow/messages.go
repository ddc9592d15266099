package flow

import (
	"fmt"
	"strings"

	"github.com/BTreeMap/TerraPipe/internal/models"
)

// Fixed conversation texts
const (
	GreetingMessage = "Bonjour ! Je suis votre conseiller en agriculture régénératrice. Je vais vous accompagner dans votre transition vers des pratiques agricoles durables et économiquement viables. Pour commencer, pouvez-vous me dire où se situe votre exploitation ?"

	GreetingReprompt = "Bonjour ! Pour commencer, j'aurais besoin de connaître la commune où se trouve votre exploitation agricole. Pouvez-vous me donner le nom de votre commune ?"

	MsgEmptyInput        = "Merci de saisir une réponse avant d'envoyer."
	MsgLocationNotFound  = "Je ne trouve pas cette commune. Pouvez-vous vérifier l'orthographe ou essayer une commune proche ?"
	MsgLookupUnavailable = "Une erreur est survenue lors de la recherche. Veuillez réessayer."
	MsgGenericFailure    = "Une erreur est survenue. Veuillez réessayer."
	MsgAnalysisFailed    = "L'analyse n'a pas pu être générée pour le moment. Vos réponses sont conservées, veuillez réessayer dans quelques instants."
	MsgConfiguration     = "Le service d'analyse est mal configuré (clé d'accès manquante). Merci de prévenir l'administrateur de la plateforme."

	msgClimateInvalid       = "Pourriez-vous donner plus de détails sur votre climat local ? Par exemple, parlez-moi des précipitations, des périodes de gel, ou des événements climatiques marquants."
	msgSoilInvalid          = "Pour vous conseiller au mieux, j'ai besoin d'en savoir plus sur vos sols. 🌱"
	msgChallengesInvalid    = "Pourriez-vous préciser les défis spécifiques que vous rencontrez avec vos sols ? Par exemple : érosion, fertilité, compaction, drainage, acidité, etc."
	msgCurrentSystemInvalid = "Pourriez-vous donner plus de détails sur votre système de production ?"
	msgPracticesInvalid     = "Ces informations sont importantes pour vous conseiller. Pourriez-vous préciser vos pratiques ?"
	msgEconomicInvalid      = "Le contexte économique est important pour la transition. Pourriez-vous donner plus de détails ?"
	msgGoalsInvalid         = "Pourriez-vous préciser vos objectifs ?"
)

// ClimateSuggestions are sample answers offered at the climate step.
var ClimateSuggestions = []string{
	"Les précipitations sont d'environ 700mm par an, avec des périodes plus pluvieuses en automne.",
	"Nous avons des gelées fréquentes de novembre à mars, parfois tardives en avril.",
	"L'été est généralement sec avec des orages violents en juillet-août.",
	"Le printemps est variable avec des alternances de douceur et de froid.",
}

// Suggestions returns sample answers for a step, if any.
func Suggestions(step models.StepID) []string {
	if step == models.StepClimateDetails {
		out := make([]string, len(ClimateSuggestions))
		copy(out, ClimateSuggestions)
		return out
	}
	return nil
}

// Thresholds steering contextual wording.
const (
	coldRiskBelow    = 5.0
	heatRiskAbove    = 30.0
	heatAdviceAbove  = 25.0
	humidRiskAbove   = 80.0
	dryRiskBelow     = 30.0
	humidAdviceAbove = 85.0
	dryAdviceBelow   = 40.0
)

// currentWeather returns the enrichment weather, or nil.
func currentWeather(cc *models.ConversationContext) *models.Weather {
	if cc.Commune == nil {
		return nil
	}
	return cc.Commune.Weather
}

func locationSuccess(cc *models.ConversationContext) string {
	var b strings.Builder
	c := cc.Commune
	fmt.Fprintf(&b, "📍 Parfait ! Votre exploitation est située à %s", c.Name)
	if c.Department != "" {
		fmt.Fprintf(&b, " (%s)", c.Department)
	}
	b.WriteString(".\n\n")

	w := c.Weather
	if w != nil {
		b.WriteString("🌤️ Conditions météorologiques actuelles :\n")
		fmt.Fprintf(&b, "• Température : %.1f°C\n", w.Temperature)
		fmt.Fprintf(&b, "• Humidité : %g%%\n", w.Humidity)
		fmt.Fprintf(&b, "• Conditions : %s\n\n", w.Description)
	}

	switch {
	case w != nil && w.Temperature < coldRiskBelow:
		b.WriteString("Je vois qu'il fait actuellement assez froid. Est-ce représentatif de votre climat ? Quelles sont les variations saisonnières habituelles ?\n\n")
	case w != nil && w.Temperature > heatRiskAbove:
		b.WriteString("Je note qu'il fait actuellement chaud. Est-ce une situation habituelle ? Comment gérez-vous les périodes de chaleur ?\n\n")
	default:
		b.WriteString("Pour mieux vous conseiller, j'ai besoin d'en savoir plus sur votre climat local.\n\n")
	}
	b.WriteString("Pouvez-vous me décrire :\n")
	b.WriteString("• Les précipitations moyennes annuelles\n")
	b.WriteString("• Les périodes de gel habituelles\n")
	b.WriteString("• Les événements climatiques marquants (sécheresses, orages violents, etc.)\n")
	b.WriteString("• Les variations saisonnières importantes")
	return b.String()
}

func climateSuccess(cc *models.ConversationContext) string {
	var b strings.Builder
	b.WriteString("Merci pour ces informations précieuses sur votre climat local.\n\n")

	if w := currentWeather(cc); w != nil {
		if w.Temperature < coldRiskBelow {
			b.WriteString("⚠️ Avec les températures actuellement basses, il est important de :\n")
			b.WriteString("• Protéger les cultures sensibles au gel\n")
			b.WriteString("• Surveiller l'état du sol et son humidité\n")
			b.WriteString("• Planifier les semis en conséquence\n\n")
		} else if w.Temperature > heatAdviceAbove {
			b.WriteString("⚠️ Avec les températures actuellement élevées, pensez à :\n")
			b.WriteString("• Gérer l'irrigation avec attention\n")
			b.WriteString("• Protéger les cultures sensibles\n")
			b.WriteString("• Maintenir une bonne couverture du sol\n\n")
		}

		if w.Humidity > humidAdviceAbove {
			b.WriteString("💧 L'humidité étant élevée, surveillez :\n")
			b.WriteString("• Les risques de maladies fongiques\n")
			b.WriteString("• La ventilation des cultures sous abri\n")
			b.WriteString("• Le développement des adventices\n\n")
		} else if w.Humidity < dryAdviceBelow {
			b.WriteString("💧 L'humidité étant faible, veillez à :\n")
			b.WriteString("• Optimiser l'irrigation\n")
			b.WriteString("• Protéger le sol de l'évaporation\n")
			b.WriteString("• Choisir des variétés adaptées\n\n")
		}
	}

	b.WriteString("Maintenant, parlons de votre sol. Pouvez-vous me décrire :\n")
	b.WriteString("• Sa texture (argileux, limoneux, sableux...)\n")
	b.WriteString("• Sa profondeur approximative\n")
	b.WriteString("• Sa richesse en matière organique\n")
	b.WriteString("• Sa capacité de drainage")
	return b.String()
}

func soilSuccess(cc *models.ConversationContext) string {
	var b strings.Builder
	b.WriteString("Je comprends mieux la nature de vos sols. ")

	if cc.Commune != nil && cc.Commune.Soil != nil {
		s := cc.Commune.Soil
		b.WriteString("\n\n📊 Selon les données INRAE pour votre zone :\n")
		if s.Texture != "" {
			fmt.Fprintf(&b, "• Texture dominante : %s\n", s.Texture)
		}
		if s.UsefulDepth > 0 {
			fmt.Fprintf(&b, "• Profondeur utile : %g cm\n", s.UsefulDepth)
		}
		if s.PH > 0 {
			fmt.Fprintf(&b, "• pH : %g\n", s.PH)
		}
		if s.OrganicMatter > 0 {
			fmt.Fprintf(&b, "• Taux de matière organique : %g%%\n", s.OrganicMatter)
		}
	}

	b.WriteString("\n\n")
	if w := currentWeather(cc); w != nil && w.Humidity > humidRiskAbove {
		b.WriteString("Avec cette humidité élevée, rencontrez-vous des problèmes de drainage ?\n")
	} else if w != nil && w.Humidity < dryRiskBelow {
		b.WriteString("Avec cette faible humidité, comment gérez-vous l'irrigation ?\n")
	}
	b.WriteString("Quels sont les principaux défis que vous rencontrez avec vos sols ?\n")
	b.WriteString("• Érosion\n")
	b.WriteString("• Compaction\n")
	b.WriteString("• Fertilité\n")
	b.WriteString("• Drainage")
	return b.String()
}

func challengesSuccess(*models.ConversationContext) string {
	return "Je note ces défis concernant vos sols. Parlons maintenant de votre système de production actuel.\n\n" +
		"Pouvez-vous me décrire :\n" +
		"• Vos principales cultures\n" +
		"• Votre rotation actuelle\n" +
		"• Votre cheptel si vous en avez\n" +
		"• Vos équipements principaux"
}

func currentSystemSuccess(*models.ConversationContext) string {
	return "Et concernant vos pratiques culturales actuelles :\n1. Comment travaillez-vous le sol ?\n2. Utilisez-vous des couverts végétaux ?\n3. Quels types d'intrants utilisez-vous ?"
}

func practicesSuccess(*models.ConversationContext) string {
	return "Parlons maintenant de l'aspect économique. Pouvez-vous me dire :\n1. Vos principaux postes de dépenses\n2. Les aides que vous recevez actuellement\n3. Vos contraintes financières principales"
}

func economicSuccess(*models.ConversationContext) string {
	return "J'ai une bonne vue d'ensemble de votre situation. Pour finaliser, quels sont vos principaux objectifs pour la transition vers l'agriculture régénératrice ? Que souhaitez-vous améliorer en priorité ?"
}

func goalsSuccess(*models.ConversationContext) string {
	return "Merci pour toutes ces informations ! Je vais maintenant analyser votre situation et vous proposer une stratégie de transition adaptée à votre contexte. Souhaitez-vous que je commence par un aspect particulier ?"
}
