package hazard

import "strings"

// medicalKeywords is the curated indicator list for the medical short-circuit.
// Matching is case-insensitive substring — any hit wins. The list is
// configuration data, authored explicitly; it errs on the side of triggering.
var medicalKeywords = []string{
	"unconscious",
	"not breathing",
	"can't breathe",
	"cannot breathe",
	"chest pain",
	"heart attack",
	"stroke",
	"seizure",
	"choking",
	"bleeding a lot",
	"heavy bleeding",
	"spurting blood",
	"passed out",
}

// IsMedicalEmergency reports whether the text contains an explicit medical
// emergency indicator. When it does, the pipeline terminates immediately with
// the fixed call-emergency-services response — no classifier, no external
// call. This is a safety invariant, not an optimization.
func IsMedicalEmergency(text string) bool {
	lowered := strings.ToLower(text)
	for _, kw := range medicalKeywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}
