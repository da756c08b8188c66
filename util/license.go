package util

import (
	"strings"

	"github.com/depscope/depscope/model"
)

// LicenseChoicesFromString converts a raw license string back into
// CycloneDX license choices. AND-joined expressions split into one
// entry per token; OR expressions stay intact as an expression choice
// since splitting would change their meaning.
func LicenseChoicesFromString(raw string) []model.LicenseChoice {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	if strings.Contains(raw, " OR ") {
		return []model.LicenseChoice{{Expression: raw}}
	}

	tokens := SplitLicenseExpression(raw)
	choices := make([]model.LicenseChoice, 0, len(tokens))
	for _, token := range tokens {
		entry := &model.LicenseEntry{}
		if IsSpdxIDString(token) {
			entry.ID = token
		} else {
			entry.Name = token
		}
		choices = append(choices, model.LicenseChoice{License: entry})
	}
	return choices
}

// LicenseStringFromChoices flattens CycloneDX license choices into a
// raw string, joining entries with AND.
func LicenseStringFromChoices(choices []model.LicenseChoice) string {
	var tokens []string
	for _, lc := range choices {
		switch {
		case lc.Expression != "":
			tokens = append(tokens, lc.Expression)
		case lc.License != nil && lc.License.ID != "":
			tokens = append(tokens, lc.License.ID)
		case lc.License != nil && lc.License.Name != "":
			tokens = append(tokens, lc.License.Name)
		}
	}
	return strings.Join(tokens, " AND ")
}
