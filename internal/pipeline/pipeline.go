// Package pipeline implements the hazard resolution and guidance generation
// pipeline: medical short-circuit → rule classifier → AI-fallback classifier
// → guide resolution → guidance synthesis. Per request the state machine is
//
//	Start → MedicalCheck → {terminal medical response}
//	                     | Classify → Resolve → Synthesize → terminal response
//
// No request revisits an earlier state and external calls are issued
// sequentially (classification, then synthesis).
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/safesteps-app/safesteps-backend/internal/ai"
	"github.com/safesteps-app/safesteps-backend/internal/catalog"
	"github.com/safesteps-app/safesteps-backend/internal/guidance"
	"github.com/safesteps-app/safesteps-backend/internal/hazard"
)

// ─── RESULTS ──────────────────────────────────────────────────────────────────

// Mode selects the synthesis strategy chain.
type Mode string

const (
	ModeNormal Mode = "normal"
	ModeDeep   Mode = "deep"
)

// GuidanceResult is the response contract for /api/help and /api/help/deep.
// Constructed once per request and returned verbatim.
type GuidanceResult struct {
	Hazard       string   `json:"hazard"`
	HazardSource string   `json:"hazardSource"`
	GuidesUsed   []string `json:"guidesUsed"`
	CanDeepDive  bool     `json:"canDeepDive"`
	Guidance     string   `json:"guidance"`
	Mode         Mode     `json:"mode"`
}

// DeepGuidanceResult is the response contract for /api/deep-guidance. There
// is no HazardSource: the caller, not the classifier, asserted the hazard.
type DeepGuidanceResult struct {
	Hazard       string `json:"hazard"`
	GuideKey     string `json:"guideKey"`
	DeepGuidance string `json:"deepGuidance"`
}

// ErrInvalidInput marks client input errors. Handlers map it to a 400.
var ErrInvalidInput = errors.New("invalid input")

// medicalGuidance is the fixed terminal response for the medical
// short-circuit. Deliberately constant: no classification, no external call.
const medicalGuidance = "It sounds like there might be a medical emergency. " +
	"This app cannot give medical advice. Please call emergency services " +
	"(911 or your local emergency number) immediately or seek urgent medical help."

// ─── RESPONDER ────────────────────────────────────────────────────────────────

// Responder is the narrow interface the api package consumes. The concrete
// implementation is *Pipeline; tests inject a stub.
type Responder interface {
	Respond(ctx context.Context, situationText string, mode Mode) (GuidanceResult, error)
	DirectDeep(ctx context.Context, situationText, hazardLabel, guideKey string) (DeepGuidanceResult, error)
}

// ─── PIPELINE ─────────────────────────────────────────────────────────────────

// Config bounds the pipeline's external calls. Zero values get defaults.
type Config struct {
	// ClassifyTimeout bounds the AI-fallback classification call. Default: 10s.
	ClassifyTimeout time.Duration

	// SynthesisTimeout bounds the whole synthesis chain, including the
	// document-informed attempt and its short-form fallback. Default: 60s.
	SynthesisTimeout time.Duration
}

// Pipeline orchestrates one request end to end. All fields are read-only
// after construction; the only shared state touched per request is the
// catalog snapshot, read once.
type Pipeline struct {
	classifier  ai.Classifier
	catalog     *catalog.Catalog
	normalChain *guidance.Chain
	deepChain   *guidance.Chain
	cfg         Config
	logger      *slog.Logger
}

// New constructs a Pipeline. The synthesis chains are built here so that
// the strategy order — the fallback decision table — lives in one place:
//
//	deep:   document-informed → short-form → static
//	normal: short-form → static
func New(classifier ai.Classifier, synth ai.Synthesizer, cat *catalog.Catalog, cfg Config, logger *slog.Logger) *Pipeline {
	if cfg.ClassifyTimeout <= 0 {
		cfg.ClassifyTimeout = 10 * time.Second
	}
	if cfg.SynthesisTimeout <= 0 {
		cfg.SynthesisTimeout = 60 * time.Second
	}
	return &Pipeline{
		classifier: classifier,
		catalog:    cat,
		normalChain: guidance.NewChain(logger,
			guidance.ShortForm(synth),
			guidance.Static(),
		),
		deepChain: guidance.NewChain(logger,
			guidance.DocumentInformed(synth),
			guidance.ShortForm(synth),
			guidance.Static(),
		),
		cfg:    cfg,
		logger: logger,
	}
}

// Respond runs the full pipeline for /api/help (ModeNormal) and
// /api/help/deep (ModeDeep). It returns an error only for client input
// problems or the genuinely fatal case where the whole synthesis chain —
// static tail included — cannot run.
func (p *Pipeline) Respond(ctx context.Context, situationText string, mode Mode) (GuidanceResult, error) {
	situationText = strings.TrimSpace(situationText)
	if situationText == "" {
		return GuidanceResult{}, fmt.Errorf("%w: situationText is required", ErrInvalidInput)
	}

	// MedicalCheck — evaluated synchronously before any external call is
	// scheduled. On match the pipeline terminates here, always.
	if hazard.IsMedicalEmergency(situationText) {
		p.logger.Info("pipeline: medical short-circuit", "mode", mode)
		return medicalResult(mode), nil
	}

	// Classify — rules first, AI only when no rule matched.
	label, source := p.classify(ctx, situationText)

	// Resolve — one consistent snapshot for the rest of the request.
	snap := p.catalog.Snapshot()
	guides := snap.GuidesFor(label)
	canDeepDive := len(guides) > 0

	// Synthesize — the deep chain is only selected when a guide resolved;
	// otherwise deep mode degrades to the short-form chain outright.
	req := guidance.Request{Text: situationText, Hazard: label}
	chain := p.normalChain
	if mode == ModeDeep && canDeepDive {
		chain = p.deepChain
		req.GuideKey = guides[0]
		req.Docs = p.usableDocs(snap, guides[0])
	}

	text, err := p.synthesize(ctx, chain, req)
	if err != nil {
		return GuidanceResult{}, err
	}

	return GuidanceResult{
		Hazard:       string(label),
		HazardSource: string(source),
		GuidesUsed:   guides,
		CanDeepDive:  canDeepDive,
		Guidance:     text,
		Mode:         mode,
	}, nil
}

// DirectDeep serves /api/deep-guidance: the caller asserts hazard and guide,
// classification is skipped entirely. The document-informed → short-form →
// static fallback policy still applies, so the response always carries
// usable guidance.
func (p *Pipeline) DirectDeep(ctx context.Context, situationText, hazardLabel, guideKey string) (DeepGuidanceResult, error) {
	situationText = strings.TrimSpace(situationText)
	guideKey = strings.TrimSpace(guideKey)
	if situationText == "" || guideKey == "" {
		return DeepGuidanceResult{}, fmt.Errorf("%w: situationText and guideKey are required", ErrInvalidInput)
	}

	label := hazard.Label(strings.TrimSpace(hazardLabel))
	if label == "" {
		label = hazard.LabelGeneralSafety
	}

	// The short-circuit is never bypassed, even when the caller asserts
	// context: medical phrasing must not reach any external service.
	if hazard.IsMedicalEmergency(situationText) {
		p.logger.Info("pipeline: medical short-circuit on direct deep")
		return DeepGuidanceResult{
			Hazard:       string(hazard.LabelMedicalEmergency),
			GuideKey:     guideKey,
			DeepGuidance: medicalGuidance,
		}, nil
	}

	snap := p.catalog.Snapshot()
	req := guidance.Request{
		Text:     situationText,
		Hazard:   label,
		GuideKey: guideKey,
		Docs:     p.usableDocs(snap, guideKey),
	}

	text, err := p.synthesize(ctx, p.deepChain, req)
	if err != nil {
		return DeepGuidanceResult{}, err
	}

	return DeepGuidanceResult{
		Hazard:       string(label),
		GuideKey:     guideKey,
		DeepGuidance: text,
	}, nil
}

// ─── STAGES ───────────────────────────────────────────────────────────────────

// classify runs the rule table and falls back to the AI classifier. AI
// failure is recovered here, at the boundary that issued the call: it
// collapses to unknown_general and the request carries on.
func (p *Pipeline) classify(ctx context.Context, text string) (hazard.Label, hazard.Source) {
	if label, ok := hazard.ClassifyByRules(text); ok {
		return label, hazard.SourceRules
	}

	classifyCtx, cancel := context.WithTimeout(ctx, p.cfg.ClassifyTimeout)
	defer cancel()

	label, err := p.classifier.ClassifyHazard(classifyCtx, text)
	if err != nil {
		p.logger.Warn("pipeline: ai classification failed, collapsing to unknown_general", "error", err)
		return hazard.LabelUnknownGeneral, hazard.SourceAI
	}
	return label, hazard.SourceAI
}

// usableDocs returns the attachable documents for a guide: the entry exists
// and its file handle is present and unexpired. A present-but-unusable handle
// is logged so operators know the catalog needs a refresh; the user never
// sees the difference.
func (p *Pipeline) usableDocs(snap *catalog.Snapshot, guideKey string) []ai.Document {
	entry, ok := snap.Entry(guideKey)
	if !ok {
		p.logger.Warn("pipeline: guide not in catalog", "guide_key", guideKey)
		return nil
	}
	if !entry.HandleUsable(time.Now()) {
		p.logger.Warn("pipeline: guide file handle missing or expired, catalog needs refresh",
			"guide_key", guideKey,
			"expires_at", entry.ExpiresAt,
		)
		return nil
	}
	return []ai.Document{{FileURI: entry.FileURI, MimeType: entry.MimeType}}
}

func (p *Pipeline) synthesize(ctx context.Context, chain *guidance.Chain, req guidance.Request) (string, error) {
	synthCtx, cancel := context.WithTimeout(ctx, p.cfg.SynthesisTimeout)
	defer cancel()

	text, err := chain.Generate(synthCtx, req)
	if err != nil {
		return "", fmt.Errorf("pipeline: synthesize: %w", err)
	}
	return text, nil
}

func medicalResult(mode Mode) GuidanceResult {
	return GuidanceResult{
		Hazard:       string(hazard.LabelMedicalEmergency),
		HazardSource: string(hazard.SourceRules),
		GuidesUsed:   []string{},
		CanDeepDive:  false,
		Guidance:     medicalGuidance,
		Mode:         mode,
	}
}
