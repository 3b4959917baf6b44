package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/safesteps-app/safesteps-backend/internal/pipeline"
)

// ─── POST /api/help and /api/help/deep ───────────────────────────────────────

type helpRequest struct {
	SituationText string `json:"situationText"`
}

// handleHelp runs the pipeline in normal mode: short-form guidance without
// document context.
func (s *Server) handleHelp(w http.ResponseWriter, r *http.Request) {
	s.serveHelp(w, r, pipeline.ModeNormal)
}

// handleHelpDeep runs the pipeline in deep mode: it attempts
// document-informed guidance and silently degrades to short-form on any
// unavailability — the response always contains usable guidance.
func (s *Server) handleHelpDeep(w http.ResponseWriter, r *http.Request) {
	s.serveHelp(w, r, pipeline.ModeDeep)
}

func (s *Server) serveHelp(w http.ResponseWriter, r *http.Request, mode pipeline.Mode) {
	var req helpRequest
	if !decode(w, r, &req) {
		return
	}

	if strings.TrimSpace(req.SituationText) == "" {
		respondErr(w, http.StatusBadRequest, "situationText is required")
		return
	}

	result, err := s.pipeline.Respond(r.Context(), req.SituationText, mode)
	if errors.Is(err, pipeline.ErrInvalidInput) {
		respondErr(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("help %s: %w", mode, err))
		return
	}

	respond(w, http.StatusOK, result)
}

// ─── POST /api/deep-guidance ─────────────────────────────────────────────────

type deepGuidanceRequest struct {
	SituationText string `json:"situationText"`
	Hazard        string `json:"hazard"`
	GuideKey      string `json:"guideKey"`
}

// handleDeepGuidance serves the direct deep endpoint: the caller asserts the
// hazard and guide, classification is skipped entirely.
func (s *Server) handleDeepGuidance(w http.ResponseWriter, r *http.Request) {
	var req deepGuidanceRequest
	if !decode(w, r, &req) {
		return
	}

	if strings.TrimSpace(req.SituationText) == "" || strings.TrimSpace(req.GuideKey) == "" {
		respondErr(w, http.StatusBadRequest, "situationText and guideKey are required")
		return
	}

	result, err := s.pipeline.DirectDeep(r.Context(), req.SituationText, req.Hazard, req.GuideKey)
	if errors.Is(err, pipeline.ErrInvalidInput) {
		respondErr(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("deep guidance: %w", err))
		return
	}

	respond(w, http.StatusOK, result)
}
