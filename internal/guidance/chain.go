// Package guidance turns a classified situation into user-facing guidance
// text through an explicit, ordered chain of synthesis strategies. Each
// strategy either produces text or declines with an error; the chain walks on
// to the next. The final strategy is hand-authored constant text, so the
// chain as a whole cannot fail — degradation is a logged decision, not an
// exception path.
package guidance

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/safesteps-app/safesteps-backend/internal/ai"
	"github.com/safesteps-app/safesteps-backend/internal/hazard"
)

// Request carries everything a strategy may need. The orchestrator fills Docs
// only when a usable reference document resolved for the request; strategies
// that need documents decline when Docs is empty.
type Request struct {
	Text     string
	Hazard   hazard.Label
	GuideKey string
	Docs     []ai.Document
}

// Strategy is one way of producing guidance text. An error means "this
// strategy is unavailable for this request" — the chain treats it as a
// fall-through, not a failure.
type Strategy interface {
	Name() string
	Generate(ctx context.Context, req Request) (string, error)
}

// Chain evaluates strategies in order until one succeeds.
type Chain struct {
	strategies []Strategy
	logger     *slog.Logger
}

// NewChain builds a chain from ordered strategies. The caller is responsible
// for ending the chain with a strategy that cannot fail (see Static).
func NewChain(logger *slog.Logger, strategies ...Strategy) *Chain {
	return &Chain{strategies: strategies, logger: logger}
}

// Generate walks the chain. The returned error is only non-nil when every
// strategy failed — with a Static tail that does not happen in practice, and
// the caller may treat it as an internal error.
func (c *Chain) Generate(ctx context.Context, req Request) (string, error) {
	var lastErr error
	for _, s := range c.strategies {
		text, err := s.Generate(ctx, req)
		if err == nil {
			return text, nil
		}
		lastErr = err
		c.logger.Warn("guidance: strategy unavailable, falling through",
			"strategy", s.Name(),
			"hazard", req.Hazard,
			"guide_key", req.GuideKey,
			"error", err,
		)
	}
	return "", fmt.Errorf("guidance: all strategies failed: %w", lastErr)
}

// ─── STRATEGIES ───────────────────────────────────────────────────────────────

// DocumentInformed asks the reasoning service for document-grounded guidance.
// It declines when the request carries no usable documents, which is how the
// "handle missing or expired → short-form" fallback tier is expressed.
func DocumentInformed(synth ai.Synthesizer) Strategy {
	return &documentInformed{synth: synth}
}

type documentInformed struct {
	synth ai.Synthesizer
}

func (d *documentInformed) Name() string { return "document_informed" }

func (d *documentInformed) Generate(ctx context.Context, req Request) (string, error) {
	if len(req.Docs) == 0 {
		return "", fmt.Errorf("no usable reference document")
	}
	return d.synth.DocumentGuidance(ctx, req.Text, req.Hazard, req.GuideKey, req.Docs)
}

// ShortForm asks the reasoning service for numbered steps without document
// context. This is the universal fallback floor before the static tail.
func ShortForm(synth ai.Synthesizer) Strategy {
	return &shortForm{synth: synth}
}

type shortForm struct {
	synth ai.Synthesizer
}

func (s *shortForm) Name() string { return "short_form" }

func (s *shortForm) Generate(ctx context.Context, req Request) (string, error) {
	return s.synth.ShortGuidance(ctx, req.Text, req.Hazard)
}

// Static returns the hand-authored generic safety steps. It never fails and
// must terminate every chain.
func Static() Strategy {
	return staticStrategy{}
}

type staticStrategy struct{}

func (staticStrategy) Name() string { return "static" }

func (staticStrategy) Generate(_ context.Context, req Request) (string, error) {
	return StaticSteps(req.Hazard), nil
}
