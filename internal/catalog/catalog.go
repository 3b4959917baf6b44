// Package catalog owns the guide catalog: the static hazard → guide-key table
// and the per-guide reference-document metadata produced by the out-of-band
// upload job. The pipeline only ever reads an immutable Snapshot; refreshes
// swap in a whole new snapshot atomically, so in-flight requests never observe
// a half-updated entry.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/safesteps-app/safesteps-backend/internal/hazard"
)

// ─── ENTRY ────────────────────────────────────────────────────────────────────

// Entry is one guide's reference-document metadata. Entries are created and
// rotated exclusively by the scheduled upload job; this package only reads
// them.
type Entry struct {
	// GuideKey is the stable logical identifier, e.g. "flood_preparedness".
	GuideKey string `json:"guide_key"`

	// DisplayName is the human-readable guide title shown by the frontend.
	DisplayName string `json:"display_name,omitempty"`

	// FileURI is the external file-service handle to attach to reasoning
	// requests. Empty when the document has not been uploaded (yet).
	FileURI string `json:"file_uri,omitempty"`

	// MimeType of the uploaded document. Defaults to application/pdf.
	MimeType string `json:"mime_type,omitempty"`

	// ExpiresAt is when the file handle stops being valid on the external
	// service. Zero means the source did not report an expiry.
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// HandleUsable reports whether the entry's file handle can be attached to a
// document-informed request right now: present and not expired.
func (e Entry) HandleUsable(now time.Time) bool {
	if e.FileURI == "" {
		return false
	}
	return e.ExpiresAt.IsZero() || now.Before(e.ExpiresAt)
}

// ─── HAZARD → GUIDES TABLE ────────────────────────────────────────────────────

// hazardGuides maps each hazard to its ordered guide keys. Order matters: the
// first key is the primary deep-dive guide, and the full order is preserved
// into guidesUsed. Hazards absent from this table (medical_emergency,
// unknown_general) resolve to no guides.
var hazardGuides = map[hazard.Label][]string{
	// Home safety
	hazard.LabelFire:        {"fema_are_you_ready", "household_preparedness"},
	hazard.LabelPowerOutage: {"canada_power_outage", "bc_power_outage", "ont_power_outage"},
	hazard.LabelGasLeak:     {"fema_are_you_ready", "household_preparedness"},
	hazard.LabelWaterLeak:   {"flood_preparedness", "household_preparedness"},

	// Weather & natural hazards
	hazard.LabelFlood:      {"flood_preparedness", "fema_are_you_ready"},
	hazard.LabelWildfire:   {"wildfire_preparedness", "wildfire_toolkit"},
	hazard.LabelEarthquake: {"earthquake_tsunami_guide", "household_preparedness"},
	hazard.LabelStorm:      {"winter_storm_guide", "fema_are_you_ready"},
	hazard.LabelSnowStuck:  {"winter_storm_guide"},

	// Neighbourhood safety
	hazard.LabelSuspiciousActivity: {"household_preparedness"},
	hazard.LabelBreakIn:            {"household_preparedness"},
	hazard.LabelNoiseIssue:         {"household_preparedness"},

	// Everyday problems
	hazard.LabelLostPhone:  {"household_preparedness"},
	hazard.LabelLostWallet: {"household_preparedness"},

	// Catch-all
	hazard.LabelGeneralSafety: {"fema_are_you_ready", "household_preparedness"},
}

// ─── SNAPSHOT ─────────────────────────────────────────────────────────────────

// Snapshot is an immutable view of the catalog at one point in time. All
// pipeline reads go through a single snapshot for the duration of a request.
type Snapshot struct {
	entries  map[string]Entry
	loadedAt time.Time
}

// NewSnapshot builds a snapshot from loaded entries. The map is copied so the
// caller cannot mutate the snapshot afterwards.
func NewSnapshot(entries map[string]Entry, loadedAt time.Time) *Snapshot {
	copied := make(map[string]Entry, len(entries))
	for k, v := range entries {
		copied[k] = v
	}
	return &Snapshot{entries: copied, loadedAt: loadedAt}
}

// Entry returns the catalog entry for a guide key.
func (s *Snapshot) Entry(guideKey string) (Entry, bool) {
	e, ok := s.entries[guideKey]
	return e, ok
}

// GuidesFor resolves a hazard to its ordered guide keys, filtered to keys the
// loaded catalog actually has. Hazards with no configured guides — including
// unknown_general — resolve to an empty list.
func (s *Snapshot) GuidesFor(label hazard.Label) []string {
	keys := hazardGuides[label]
	valid := make([]string, 0, len(keys))
	for _, key := range keys {
		if _, ok := s.entries[key]; ok {
			valid = append(valid, key)
		}
	}
	return valid
}

// Len returns the number of loaded entries.
func (s *Snapshot) Len() int { return len(s.entries) }

// LoadedAt returns when the snapshot was built.
func (s *Snapshot) LoadedAt() time.Time { return s.loadedAt }

// ─── CATALOG ──────────────────────────────────────────────────────────────────

// Source loads the full entry set from wherever the upload job publishes it
// (a JSON file or a database table).
type Source interface {
	Load(ctx context.Context) (map[string]Entry, error)

	// String names the source for logs, e.g. `file:guides_map.json`.
	String() string
}

// Watcher is an optional Source capability: push-based change notification.
// The catalog refresher subscribes when the source supports it; the periodic
// reload remains as a backstop either way.
type Watcher interface {
	Watch(ctx context.Context, onChange func()) error
}

// Catalog holds the current snapshot behind an atomic pointer. Readers never
// block the refresher and vice versa.
type Catalog struct {
	source  Source
	logger  *slog.Logger
	current atomic.Pointer[Snapshot]
}

// New constructs a Catalog with an empty snapshot. Call Reload (or start Run)
// to populate it from the source.
func New(source Source, logger *slog.Logger) *Catalog {
	c := &Catalog{source: source, logger: logger}
	c.current.Store(NewSnapshot(nil, time.Time{}))
	return c
}

// Snapshot returns the current immutable catalog view. Never nil.
func (c *Catalog) Snapshot() *Snapshot {
	return c.current.Load()
}

// Reload loads the source and swaps in a fresh snapshot. On failure the
// previous snapshot keeps serving and the error is returned for logging.
func (c *Catalog) Reload(ctx context.Context) error {
	entries, err := c.source.Load(ctx)
	if err != nil {
		return fmt.Errorf("catalog: load %s: %w", c.source, err)
	}

	// Warn once per reload about configured guide keys the source is missing;
	// resolution silently skips them.
	for label, keys := range hazardGuides {
		for _, key := range keys {
			if _, ok := entries[key]; !ok {
				c.logger.Warn("catalog: configured guide missing from source",
					"hazard", label,
					"guide_key", key,
				)
			}
		}
	}

	c.current.Store(NewSnapshot(entries, time.Now()))
	return nil
}
