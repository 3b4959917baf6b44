// Package ai defines the interfaces for the external classification and
// reasoning capabilities and provides a Gemini-backed implementation.
package ai

import (
	"context"

	"github.com/safesteps-app/safesteps-backend/internal/hazard"
)

// Document is a reference-document handle attached to a reasoning request.
// The handle comes from the guide catalog; this package never uploads files.
type Document struct {
	FileURI  string
	MimeType string
}

// Classifier is the external text-classification capability, constrained to
// the closed hazard taxonomy.
//
// Implementations must validate the raw model answer themselves: whatever
// comes back is normalized against hazard.AIAllowed, so a Classifier never
// returns an out-of-taxonomy label. A non-nil error means the call itself
// failed (transport, timeout, provider error); the caller maps that to
// hazard.LabelUnknownGeneral and carries on — a user request must never fail
// because the classifier is unreachable.
//
// Implementations must be safe to call concurrently.
type Classifier interface {
	ClassifyHazard(ctx context.Context, text string) (hazard.Label, error)
}

// Synthesizer is the external reasoning capability that produces the
// user-facing guidance text.
//
// ShortGuidance asks for calm, numbered, non-medical steps with no document
// context. DocumentGuidance attaches the provided reference documents and
// asks for longer, document-grounded guidance; it requires at least one
// document. Errors from either are recovered by the synthesis chain, never
// surfaced to the user.
//
// Implementations must be safe to call concurrently.
type Synthesizer interface {
	ShortGuidance(ctx context.Context, text string, label hazard.Label) (string, error)
	DocumentGuidance(ctx context.Context, text string, label hazard.Label, guideKey string, docs []Document) (string, error)
}

// Client bundles both capabilities. The Gemini implementation backs both with
// the same model and shared rate limit.
type Client interface {
	Classifier
	Synthesizer
}
