package legal

import (
	"regexp"
	"strings"
)

// profanities are masked before a question is sent or stored.
var profanities = []string{
	"merde", "putain", "connard", "connasse", "salaud", "salope", "enculé", "encule",
	"bordel", "con", "conne", "pute", "batard", "bâtard", "enfoiré", "enfoire",
	"fuck", "shit", "bitch", "asshole",
}

var profanityPattern = func() *regexp.Regexp {
	quoted := make([]string, len(profanities))
	for i, w := range profanities {
		quoted[i] = regexp.QuoteMeta(w)
	}
	// \b is ASCII-only, so word edges are matched explicitly.
	return regexp.MustCompile(`(?i)(^|[^\p{L}])(` + strings.Join(quoted, "|") + `)($|[^\p{L}])`)
}()

// MaskProfanities replaces each listed word with asterisks of the same length.
func MaskProfanities(text string) string {
	// Adjacent matches share their separator, so run until stable.
	for {
		masked := profanityPattern.ReplaceAllStringFunc(text, maskMatch)
		if masked == text {
			return masked
		}
		text = masked
	}
}

func maskMatch(m string) string {
	sub := profanityPattern.FindStringSubmatch(m)
	return sub[1] + strings.Repeat("*", len([]rune(sub[2]))) + sub[3]
}
