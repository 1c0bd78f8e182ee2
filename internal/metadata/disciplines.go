package metadata

import "strings"

// DisciplineOther collects elements whose category matches no known
// discipline.
const DisciplineOther = "other"

// disciplineTable maps normalized element categories to disciplines.
var disciplineTable = map[string]string{
	"walls":         "architecture",
	"curtain walls": "architecture",
	"floors":        "architecture",
	"roofs":         "architecture",
	"ceilings":      "architecture",
	"doors":         "architecture",
	"windows":       "architecture",
	"stairs":        "architecture",
	"railings":      "architecture",
	"furniture":     "architecture",
	"rooms":         "architecture",
	"casework":      "architecture",

	"structural columns":     "structure",
	"structural framing":     "structure",
	"structural foundations": "structure",
	"structural rebar":       "structure",
	"structural trusses":     "structure",

	"ducts":                "mechanical",
	"duct fittings":        "mechanical",
	"air terminals":        "mechanical",
	"mechanical equipment": "mechanical",
	"hvac zones":           "mechanical",

	"electrical equipment": "electrical",
	"electrical fixtures":  "electrical",
	"lighting fixtures":    "electrical",
	"lighting devices":     "electrical",
	"conduits":             "electrical",
	"cable trays":          "electrical",

	"pipes":             "plumbing",
	"pipe fittings":     "plumbing",
	"plumbing fixtures": "plumbing",
	"sprinklers":        "plumbing",

	"topography": "site",
	"site":       "site",
	"parking":    "site",
	"planting":   "site",
	"roads":      "site",
}

// disciplineFor classifies one element category.
func disciplineFor(category string) string {
	normalized := strings.ToLower(strings.TrimSpace(category))
	if normalized == "" {
		return DisciplineOther
	}
	if discipline, ok := disciplineTable[normalized]; ok {
		return discipline
	}
	return DisciplineOther
}
