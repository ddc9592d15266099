package flow

import (
	"fmt"
	"strings"

	"github.com/BTreeMap/TerraPipe/internal/models"
)

// ReportTitle heads every generated report.
const ReportTitle = "Diagnostic de transition régénératrice"

// practiceHints maps a soil challenge to the practices addressing it.
var practiceHints = map[string][]string{
	"erosion": {
		"Couverts végétaux permanents pour garder le sol protégé toute l'année",
		"Haies bocagères et alignements d'arbres en bordure de parcelles",
	},
	"compaction": {
		"Strip-till ou travail superficiel à la place du labour",
		"Couverts à enracinement pivotant pour restructurer le profil",
	},
	"fertilite": {
		"Apports de compost ou de fumier composté",
		"Compostage sur site (andain ou lombricompostage)",
	},
	"drainage": {
		"Relever le taux de matière organique pour améliorer la structure",
		"Zones tampons et prairies humides sur les points bas",
	},
	"acidite": {
		"Amendements organiques réguliers et suivi du pH",
	},
	"salinite": {
		"Paillage organique et mulch vivant pour limiter l'évaporation",
	},
}

// MonitoringIndicators are tracked through the transition.
var MonitoringIndicators = []string{
	"Taux de matière organique",
	"Bilan carbone",
	"Indice de biodiversité",
	"Coûts d'exploitation (€/ha)",
	"Marge brute",
	"Charge de travail",
}

// BuildReport renders the collected context as Markdown. The document title
// is left to the caller.
func BuildReport(cc *models.ConversationContext, focus string) string {
	var b strings.Builder
	b.WriteString("## Votre exploitation\n\n")
	if c := cc.Commune; c != nil {
		fmt.Fprintf(&b, "- **Commune** : %s", c.Name)
		if c.Department != "" {
			fmt.Fprintf(&b, " (%s)", c.Department)
		}
		b.WriteString("\n")
		if w := c.Weather; w != nil {
			fmt.Fprintf(&b, "- **Météo au moment du diagnostic** : %.1f°C, %g%% d'humidité, %s\n",
				w.Temperature, w.Humidity, strings.ToLower(w.Description))
		}
		if s := c.Soil; s != nil && s.Texture != "" {
			fmt.Fprintf(&b, "- **Sol de référence (INRAE)** : %s\n", s.Texture)
		}
	}
	writeAnswer(&b, "Climat", cc.Climate)
	writeAnswer(&b, "Sol", cc.Soil)
	if sc := cc.SoilChallenges; sc != nil {
		fmt.Fprintf(&b, "- **Défis** : %s\n", sc.Text)
	}
	writeAnswer(&b, "Système actuel", cc.CurrentSystem)
	writeAnswer(&b, "Pratiques", cc.Practices)
	writeAnswer(&b, "Économie", cc.Economic)
	writeAnswer(&b, "Objectifs", cc.Goals)

	if focus = strings.TrimSpace(focus); focus != "" {
		fmt.Fprintf(&b, "\n**Priorité demandée** : %s\n", focus)
	}

	b.WriteString("\n## Pistes de transition\n\n")
	for _, rec := range recommendations(cc) {
		fmt.Fprintf(&b, "- %s\n", rec)
	}

	b.WriteString("\n## Indicateurs de suivi\n\n")
	for _, ind := range MonitoringIndicators {
		fmt.Fprintf(&b, "- %s\n", ind)
	}
	return b.String()
}

func writeAnswer(b *strings.Builder, label string, e *models.TextEntry) {
	if e == nil {
		return
	}
	fmt.Fprintf(b, "- **%s** : %s\n", label, e.Text)
}

func recommendations(cc *models.ConversationContext) []string {
	var recs []string
	if sc := cc.SoilChallenges; sc != nil {
		for _, k := range sc.Keywords {
			recs = append(recs, practiceHints[k]...)
		}
	}
	if w := currentWeather(cc); w != nil && w.Humidity < dryAdviceBelow {
		recs = append(recs, "Irrigation goutte-à-goutte pilotée selon l'humidité du sol")
	}
	recs = append(recs,
		"Semis direct sous couvert sur les parcelles les plus stables",
		"Bandes fleuries mellifères pour accueillir les auxiliaires",
	)
	return recs
}

// AnalysisText joins the report and the narrative of a summary.
func AnalysisText(sum *models.SummaryEntry) string {
	if sum.Narrative == "" {
		return sum.Report
	}
	return sum.Report + "\n## Stratégie proposée\n\n" + sum.Narrative + "\n"
}

// AnalysisPrompt asks the gateway for a narrative strategy built on the report.
func AnalysisPrompt(report string) string {
	return "Voici le diagnostic d'une exploitation agricole. Rédige une analyse et une stratégie de transition régénératrice adaptée, par étapes.\n\n" + report
}
