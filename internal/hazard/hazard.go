// Package hazard defines the closed hazard taxonomy and the two deterministic
// classification passes: the medical short-circuit and the rule classifier.
// It is intentionally dependency-free so it can be used from the pipeline,
// the AI client, and tests without any wiring.
package hazard

import "strings"

// ─── TAXONOMY ─────────────────────────────────────────────────────────────────

// Label is one hazard category from the closed taxonomy. String values are
// returned verbatim in API responses, so they are stable identifiers.
type Label string

const (
	// Home safety
	LabelFire        Label = "fire"
	LabelPowerOutage Label = "power_outage"
	LabelGasLeak     Label = "gas_leak"
	LabelWaterLeak   Label = "water_leak"

	// Weather & natural hazards
	LabelFlood      Label = "flood"
	LabelWildfire   Label = "wildfire"
	LabelEarthquake Label = "earthquake"
	LabelStorm      Label = "storm"
	LabelSnowStuck  Label = "snow_stuck"

	// Neighbourhood safety
	LabelSuspiciousActivity Label = "suspicious_activity"
	LabelBreakIn            Label = "break_in"
	LabelNoiseIssue         Label = "noise_issue"

	// Everyday problems
	LabelLostPhone  Label = "lost_phone"
	LabelLostWallet Label = "lost_wallet"

	// LabelGeneralSafety is a legitimate catch-all the AI classifier may
	// return for situations that don't fit a specific category. Unlike
	// LabelUnknownGeneral it has guides configured.
	LabelGeneralSafety Label = "general_safety"

	// LabelMedicalEmergency is produced exclusively by the medical
	// short-circuit. The AI classifier is never offered it and any attempt by
	// the AI to return it is collapsed to LabelUnknownGeneral.
	LabelMedicalEmergency Label = "medical_emergency"

	// LabelUnknownGeneral is the degradation sentinel: it is resolved when the
	// AI classifier fails, times out, or returns something outside the
	// taxonomy. It has no guides, so deep dives are never offered for it.
	LabelUnknownGeneral Label = "unknown_general"
)

// Source records which classification pass produced a label.
type Source string

const (
	SourceRules Source = "rules"
	SourceAI    Source = "ai"
)

// All lists every valid label, including the two labels the AI classifier may
// never produce (medical_emergency, unknown_general).
var All = []Label{
	LabelFire,
	LabelPowerOutage,
	LabelGasLeak,
	LabelWaterLeak,
	LabelFlood,
	LabelWildfire,
	LabelEarthquake,
	LabelStorm,
	LabelSnowStuck,
	LabelSuspiciousActivity,
	LabelBreakIn,
	LabelNoiseIssue,
	LabelLostPhone,
	LabelLostWallet,
	LabelGeneralSafety,
	LabelMedicalEmergency,
	LabelUnknownGeneral,
}

// AIAllowed lists the labels the AI classifier is permitted to return: the
// full taxonomy minus medical_emergency and unknown_general.
var AIAllowed = func() []Label {
	out := make([]Label, 0, len(All)-2)
	for _, l := range All {
		if l == LabelMedicalEmergency || l == LabelUnknownGeneral {
			continue
		}
		out = append(out, l)
	}
	return out
}()

// Valid reports whether l is part of the closed taxonomy.
func Valid(l Label) bool {
	for _, known := range All {
		if l == known {
			return true
		}
	}
	return false
}

// aliases maps free-form model answers that are close to — but not exactly —
// a taxonomy label. Kept deliberately short; anything not covered collapses
// to unknown_general.
var aliases = map[string]Label{
	"power outage": LabelPowerOutage,
	"snow":         LabelSnowStuck,
	"general":      LabelGeneralSafety,
}

// Normalize validates a raw classifier answer against the AI-allowed label
// set. Out-of-taxonomy answers — including medical_emergency, which only the
// short-circuit may produce — collapse to LabelUnknownGeneral.
func Normalize(raw string) Label {
	cleaned := Label(strings.ToLower(strings.TrimSpace(raw)))
	for _, allowed := range AIAllowed {
		if cleaned == allowed {
			return cleaned
		}
	}
	if alias, ok := aliases[string(cleaned)]; ok {
		return alias
	}
	return LabelUnknownGeneral
}
