package pipeline_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/safesteps-app/safesteps-backend/internal/ai"
	"github.com/safesteps-app/safesteps-backend/internal/catalog"
	"github.com/safesteps-app/safesteps-backend/internal/hazard"
	"github.com/safesteps-app/safesteps-backend/internal/pipeline"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// ─── STUBS ────────────────────────────────────────────────────────────────────

// stubClassifier satisfies ai.Classifier with a canned answer and a call
// counter for the never-invoked assertions.
type stubClassifier struct {
	label hazard.Label
	err   error
	calls int
}

func (s *stubClassifier) ClassifyHazard(context.Context, string) (hazard.Label, error) {
	s.calls++
	if s.err != nil {
		return hazard.LabelUnknownGeneral, s.err
	}
	return s.label, nil
}

// stubSynth satisfies ai.Synthesizer, counting calls per strategy.
type stubSynth struct {
	shortText  string
	shortErr   error
	docText    string
	docErr     error
	shortCalls int
	docCalls   int
}

func (s *stubSynth) ShortGuidance(context.Context, string, hazard.Label) (string, error) {
	s.shortCalls++
	return s.shortText, s.shortErr
}

func (s *stubSynth) DocumentGuidance(context.Context, string, hazard.Label, string, []ai.Document) (string, error) {
	s.docCalls++
	return s.docText, s.docErr
}

// stubSource feeds the catalog fixed entries.
type stubSource struct {
	entries map[string]catalog.Entry
}

func (s *stubSource) Load(context.Context) (map[string]catalog.Entry, error) { return s.entries, nil }
func (s *stubSource) String() string                                         { return "stub" }

func newCatalog(t *testing.T, entries map[string]catalog.Entry) *catalog.Catalog {
	t.Helper()
	cat := catalog.New(&stubSource{entries: entries}, discardLogger())
	if err := cat.Reload(context.Background()); err != nil {
		t.Fatalf("catalog reload: %v", err)
	}
	return cat
}

// fullEntries returns a catalog where every flood guide has a usable handle.
func fullEntries() map[string]catalog.Entry {
	return map[string]catalog.Entry{
		"flood_preparedness": {GuideKey: "flood_preparedness", FileURI: "files/flood", MimeType: "application/pdf"},
		"fema_are_you_ready": {GuideKey: "fema_are_you_ready", FileURI: "files/fema", MimeType: "application/pdf"},
	}
}

func newPipeline(t *testing.T, cls *stubClassifier, synth *stubSynth, entries map[string]catalog.Entry) *pipeline.Pipeline {
	t.Helper()
	return pipeline.New(cls, synth, newCatalog(t, entries), pipeline.Config{}, discardLogger())
}

// ─── MEDICAL SHORT-CIRCUIT ────────────────────────────────────────────────────

func TestRespond_MedicalShortCircuit(t *testing.T) {
	for _, mode := range []pipeline.Mode{pipeline.ModeNormal, pipeline.ModeDeep} {
		t.Run(string(mode), func(t *testing.T) {
			cls := &stubClassifier{label: hazard.LabelFlood}
			synth := &stubSynth{shortText: "steps", docText: "deep steps"}
			p := newPipeline(t, cls, synth, fullEntries())

			res, err := p.Respond(context.Background(), "He is unconscious and bleeding a lot", mode)
			if err != nil {
				t.Fatalf("Respond: %v", err)
			}

			if res.Hazard != "medical_emergency" || res.HazardSource != "rules" {
				t.Errorf("got hazard=%s source=%s", res.Hazard, res.HazardSource)
			}
			if res.CanDeepDive {
				t.Error("CanDeepDive must be false for medical responses")
			}
			if len(res.GuidesUsed) != 0 {
				t.Errorf("GuidesUsed = %v, want empty", res.GuidesUsed)
			}
			if res.Mode != mode {
				t.Errorf("Mode = %s, want %s", res.Mode, mode)
			}
			if res.Guidance == "" {
				t.Error("medical guidance must be non-empty")
			}
			// The hard invariant: zero external calls.
			if cls.calls != 0 || synth.shortCalls != 0 || synth.docCalls != 0 {
				t.Errorf("external calls issued for medical input: classify=%d short=%d doc=%d",
					cls.calls, synth.shortCalls, synth.docCalls)
			}
		})
	}
}

// ─── CLASSIFICATION ───────────────────────────────────────────────────────────

func TestRespond_RuleMatchSkipsAI(t *testing.T) {
	cls := &stubClassifier{label: hazard.LabelStorm}
	synth := &stubSynth{shortText: "steps"}
	p := newPipeline(t, cls, synth, fullEntries())

	res, err := p.Respond(context.Background(), "My basement is flooding", pipeline.ModeNormal)
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if res.Hazard != "flood" || res.HazardSource != "rules" {
		t.Errorf("got hazard=%s source=%s, want flood/rules", res.Hazard, res.HazardSource)
	}
	if cls.calls != 0 {
		t.Errorf("AI classifier invoked %d times for rule-matched input, want 0", cls.calls)
	}
	if len(res.GuidesUsed) == 0 {
		t.Error("flood should resolve guides")
	}
	if res.Mode != pipeline.ModeNormal {
		t.Errorf("Mode = %s", res.Mode)
	}
}

func TestRespond_AIFallbackInvokedExactlyOnce(t *testing.T) {
	cls := &stubClassifier{label: hazard.LabelLostWallet}
	synth := &stubSynth{shortText: "steps"}
	p := newPipeline(t, cls, synth, fullEntries())

	res, err := p.Respond(context.Background(), "someone took my belongings downtown", pipeline.ModeNormal)
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if cls.calls != 1 {
		t.Errorf("AI classifier invoked %d times, want 1", cls.calls)
	}
	if res.Hazard != "lost_wallet" || res.HazardSource != "ai" {
		t.Errorf("got hazard=%s source=%s", res.Hazard, res.HazardSource)
	}
}

func TestRespond_AIFailureCollapsesToUnknownGeneral(t *testing.T) {
	cls := &stubClassifier{err: errors.New("provider down")}
	synth := &stubSynth{shortText: "steps"}
	p := newPipeline(t, cls, synth, fullEntries())

	res, err := p.Respond(context.Background(), "something strange is happening", pipeline.ModeNormal)
	if err != nil {
		t.Fatalf("Respond must not fail on classifier outage: %v", err)
	}
	if res.Hazard != "unknown_general" || res.HazardSource != "ai" {
		t.Errorf("got hazard=%s source=%s, want unknown_general/ai", res.Hazard, res.HazardSource)
	}
	if len(res.GuidesUsed) != 0 || res.CanDeepDive {
		t.Errorf("unknown_general must resolve no guides: %v deepDive=%v", res.GuidesUsed, res.CanDeepDive)
	}
}

func TestRespond_Idempotent(t *testing.T) {
	cls := &stubClassifier{label: hazard.LabelFlood}
	synth := &stubSynth{shortText: "steps"}
	p := newPipeline(t, cls, synth, fullEntries())

	first, err := p.Respond(context.Background(), "My basement is flooding", pipeline.ModeNormal)
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	second, err := p.Respond(context.Background(), "My basement is flooding", pipeline.ModeNormal)
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if first.Hazard != second.Hazard || !reflect.DeepEqual(first.GuidesUsed, second.GuidesUsed) {
		t.Errorf("classification not idempotent: %+v vs %+v", first, second)
	}
}

// ─── DEEP MODE ────────────────────────────────────────────────────────────────

func TestRespond_DeepUsesDocumentInformed(t *testing.T) {
	cls := &stubClassifier{}
	synth := &stubSynth{docText: "document-grounded steps", shortText: "short steps"}
	p := newPipeline(t, cls, synth, fullEntries())

	res, err := p.Respond(context.Background(), "My basement is flooding", pipeline.ModeDeep)
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if res.Guidance != "document-grounded steps" {
		t.Errorf("Guidance = %q", res.Guidance)
	}
	if res.Mode != pipeline.ModeDeep || !res.CanDeepDive {
		t.Errorf("Mode=%s CanDeepDive=%v", res.Mode, res.CanDeepDive)
	}
	if synth.docCalls != 1 || synth.shortCalls != 0 {
		t.Errorf("doc=%d short=%d, want 1/0", synth.docCalls, synth.shortCalls)
	}
}

func TestRespond_DeepExpiredHandleFallsBackToShortForm(t *testing.T) {
	entries := map[string]catalog.Entry{
		"flood_preparedness": {
			GuideKey:  "flood_preparedness",
			FileURI:   "files/flood",
			ExpiresAt: time.Now().Add(-time.Hour), // rotated out, not yet refreshed
		},
		"fema_are_you_ready": {GuideKey: "fema_are_you_ready"}, // never uploaded
	}
	cls := &stubClassifier{}
	synth := &stubSynth{docText: "doc steps", shortText: "short steps"}
	p := newPipeline(t, cls, synth, entries)

	res, err := p.Respond(context.Background(), "My basement is flooding", pipeline.ModeDeep)
	if err != nil {
		t.Fatalf("Respond must not fail on expired handles: %v", err)
	}
	if res.Guidance != "short steps" {
		t.Errorf("Guidance = %q, want short-form fallback", res.Guidance)
	}
	if res.Mode != pipeline.ModeDeep {
		t.Errorf("Mode = %s, want deep", res.Mode)
	}
	if synth.docCalls != 0 {
		t.Errorf("document synthesis attempted %d times without a usable handle", synth.docCalls)
	}
}

func TestRespond_DeepSynthesisOutageFallsBackToStatic(t *testing.T) {
	cls := &stubClassifier{}
	synth := &stubSynth{docErr: errors.New("down"), shortErr: errors.New("down")}
	p := newPipeline(t, cls, synth, fullEntries())

	res, err := p.Respond(context.Background(), "My basement is flooding", pipeline.ModeDeep)
	if err != nil {
		t.Fatalf("Respond must not fail on total synthesis outage: %v", err)
	}
	if !strings.Contains(res.Guidance, "General non-medical safety steps") {
		t.Errorf("Guidance = %q, want static steps", res.Guidance)
	}
}

func TestRespond_DeepWithoutGuidesUsesShortForm(t *testing.T) {
	// Empty catalog: nothing resolves, deep degrades to the short-form chain.
	cls := &stubClassifier{}
	synth := &stubSynth{shortText: "short steps"}
	p := newPipeline(t, cls, synth, map[string]catalog.Entry{})

	res, err := p.Respond(context.Background(), "My basement is flooding", pipeline.ModeDeep)
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if res.CanDeepDive || len(res.GuidesUsed) != 0 {
		t.Errorf("CanDeepDive=%v GuidesUsed=%v, want false/empty", res.CanDeepDive, res.GuidesUsed)
	}
	if res.Guidance != "short steps" {
		t.Errorf("Guidance = %q", res.Guidance)
	}
	if synth.docCalls != 0 {
		t.Error("document synthesis must not run without resolved guides")
	}
}

// ─── INPUT VALIDATION ─────────────────────────────────────────────────────────

func TestRespond_EmptyText(t *testing.T) {
	p := newPipeline(t, &stubClassifier{}, &stubSynth{}, fullEntries())
	for _, text := range []string{"", "   ", "\n\t"} {
		if _, err := p.Respond(context.Background(), text, pipeline.ModeNormal); !errors.Is(err, pipeline.ErrInvalidInput) {
			t.Errorf("Respond(%q) error = %v, want ErrInvalidInput", text, err)
		}
	}
}

// ─── DIRECT DEEP ──────────────────────────────────────────────────────────────

func TestDirectDeep(t *testing.T) {
	cls := &stubClassifier{}
	synth := &stubSynth{docText: "flood guide summary"}
	p := newPipeline(t, cls, synth, fullEntries())

	res, err := p.DirectDeep(context.Background(), "River water entering ground floor", "flood", "flood_preparedness")
	if err != nil {
		t.Fatalf("DirectDeep: %v", err)
	}
	if res.Hazard != "flood" || res.GuideKey != "flood_preparedness" {
		t.Errorf("got %+v", res)
	}
	if res.DeepGuidance == "" {
		t.Error("DeepGuidance must be non-empty")
	}
	if cls.calls != 0 {
		t.Error("DirectDeep must skip classification")
	}
}

func TestDirectDeep_MissingFields(t *testing.T) {
	p := newPipeline(t, &stubClassifier{}, &stubSynth{}, fullEntries())

	if _, err := p.DirectDeep(context.Background(), "flooding", "flood", ""); !errors.Is(err, pipeline.ErrInvalidInput) {
		t.Errorf("missing guideKey: error = %v, want ErrInvalidInput", err)
	}
	if _, err := p.DirectDeep(context.Background(), "", "flood", "flood_preparedness"); !errors.Is(err, pipeline.ErrInvalidInput) {
		t.Errorf("missing situationText: error = %v, want ErrInvalidInput", err)
	}
}

func TestDirectDeep_DefaultsHazard(t *testing.T) {
	synth := &stubSynth{docText: "summary"}
	p := newPipeline(t, &stubClassifier{}, synth, fullEntries())

	res, err := p.DirectDeep(context.Background(), "not sure what this is", "", "fema_are_you_ready")
	if err != nil {
		t.Fatalf("DirectDeep: %v", err)
	}
	if res.Hazard != "general_safety" {
		t.Errorf("Hazard = %s, want general_safety", res.Hazard)
	}
}

func TestDirectDeep_UnknownGuideKeyFallsBack(t *testing.T) {
	synth := &stubSynth{docText: "doc", shortText: "short"}
	p := newPipeline(t, &stubClassifier{}, synth, fullEntries())

	res, err := p.DirectDeep(context.Background(), "flooding", "flood", "no_such_guide")
	if err != nil {
		t.Fatalf("DirectDeep must degrade, not fail: %v", err)
	}
	if res.DeepGuidance != "short" {
		t.Errorf("DeepGuidance = %q, want short-form fallback", res.DeepGuidance)
	}
	if synth.docCalls != 0 {
		t.Error("document synthesis must not run for an unknown guide")
	}
}

func TestDirectDeep_MedicalInputNeverReachesAI(t *testing.T) {
	cls := &stubClassifier{}
	synth := &stubSynth{docText: "doc", shortText: "short"}
	p := newPipeline(t, cls, synth, fullEntries())

	res, err := p.DirectDeep(context.Background(), "she passed out and is not breathing", "flood", "flood_preparedness")
	if err != nil {
		t.Fatalf("DirectDeep: %v", err)
	}
	if res.Hazard != "medical_emergency" {
		t.Errorf("Hazard = %s, want medical_emergency", res.Hazard)
	}
	if cls.calls != 0 || synth.docCalls != 0 || synth.shortCalls != 0 {
		t.Error("external calls issued for medical input")
	}
}
