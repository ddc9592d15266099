package legal

// Template is a starter question offered on an empty conversation.
type Template struct {
	Title  string `json:"title"`
	Prompt string `json:"prompt"`
}

// Resource is an external reference link.
type Resource struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Contact is the firm users are referred to.
type Contact struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
}

// Resources groups the reference links and the firm contact.
type Resources struct {
	Links   []Resource `json:"links"`
	Contact Contact    `json:"contact"`
}

var templates = []Template{
	{
		Title:  "Licenciement",
		Prompt: "Je viens d'être licencié sans motif apparent et sans respect de la procédure. Quels sont mes droits et recours possibles ?",
	},
	{
		Title:  "Contrat de travail",
		Prompt: "Mon employeur veut modifier mon contrat de travail. Peut-il le faire sans mon accord ? Quelles sont les règles à respecter ?",
	},
	{
		Title:  "Heures supplémentaires",
		Prompt: "Mon employeur refuse de me payer mes heures supplémentaires. Comment puis-je faire valoir mes droits ?",
	},
	{
		Title:  "Harcèlement",
		Prompt: "Je subis du harcèlement moral au travail. Quelles sont les démarches à suivre pour me protéger ?",
	},
	{
		Title:  "Congés payés",
		Prompt: "Comment sont calculés mes congés payés ? Mon employeur peut-il refuser mes dates de congés ?",
	},
}

var links = []Resource{
	{Title: "Code du Travail", URL: "https://www.legifrance.gouv.fr/codes/texte_lc/LEGITEXT000006072050"},
	{Title: "Conventions Collectives", URL: "https://www.legifrance.gouv.fr/recherche-convention-collective"},
	{Title: "Jurisprudence Sociale", URL: "https://www.courdecassation.fr/recherche-judilibre?judilibre_chambre[]=CHAMBRE_SOCIALE"},
	{Title: "Inspection du Travail", URL: "https://dreets.gouv.fr/"},
	{Title: "Ministère du Travail", URL: "https://travail-emploi.gouv.fr/"},
}

// FirmContact is where every answer redirects for personalised advice.
var FirmContact = Contact{
	Name:    "DFGHK Avocats",
	Address: "15 rue Neuve Notre Dame, 78000 Versailles",
	Phone:   "01 32 65 98 98",
}

// Templates returns the starter questions.
func Templates() []Template {
	out := make([]Template, len(templates))
	copy(out, templates)
	return out
}

// ReferenceResources returns the reference links and the firm contact.
func ReferenceResources() Resources {
	out := make([]Resource, len(links))
	copy(out, links)
	return Resources{Links: out, Contact: FirmContact}
}
