package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/safesteps-app/safesteps-backend/internal/hazard"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com"

// geminiClient implements Classifier and Synthesizer against the Gemini
// generateContent REST API. A shared token bucket throttles all outbound
// calls so a traffic spike degrades into fallbacks rather than provider-side
// rate-limit errors.
type geminiClient struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// GeminiConfig tunes the Gemini client. Zero values get defaults.
type GeminiConfig struct {
	// Model, e.g. "gemini-2.0-flash".
	Model string

	// CallTimeout is the per-request HTTP timeout. Default: 45s.
	CallTimeout time.Duration

	// RequestsPerSecond and Burst configure the proactive token bucket.
	// Defaults: 2 rps, burst 4.
	RequestsPerSecond float64
	Burst             int
}

// NewGeminiClient returns a Client backed by the Gemini generateContent API.
func NewGeminiClient(apiKey string, cfg GeminiConfig) Client {
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 45 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 2
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 4
	}

	return &geminiClient{
		apiKey:  apiKey,
		model:   cfg.Model,
		baseURL: defaultGeminiBaseURL,
		httpClient: &http.Client{
			Timeout: cfg.CallTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
	}
}

// ─── GEMINI API SHAPES ────────────────────────────────────────────────────────

type geminiPart struct {
	Text     string          `json:"text,omitempty"`
	FileData *geminiFileData `json:"file_data,omitempty"`
}

type geminiFileData struct {
	FileURI  string `json:"file_uri"`
	MimeType string `json:"mime_type"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"system_instruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// ─── PROMPTS ──────────────────────────────────────────────────────────────────

const shortGuidanceSystemPrompt = `You are a safety assistant. ` +
	`Provide 5-8 short, numbered, general safety steps. ` +
	`No medical or legal advice. ` +
	`If danger is immediate, remind the user to call emergency services.`

const documentGuidanceSystemPrompt = `You are a safety assistant. Use ONLY the attached document as your source. ` +
	`Do not invent information. No medical or legal advice. ` +
	`Keep the answer under 250 words.`

func classifierSystemPrompt() string {
	labels := make([]string, len(hazard.AIAllowed))
	for i, l := range hazard.AIAllowed {
		labels[i] = string(l)
	}
	return "You are a hazard classifier. " +
		"Return exactly one label from this list:\n" +
		strings.Join(labels, ", ") + "\n" +
		"Respond with the label only, nothing else. " +
		"If unsure, return 'general_safety'."
}

// ─── CLASSIFIER ───────────────────────────────────────────────────────────────

// ClassifyHazard asks the model for one label from the closed taxonomy and
// normalizes whatever comes back. Out-of-taxonomy answers collapse to
// unknown_general; only transport/provider failures return an error.
func (c *geminiClient) ClassifyHazard(ctx context.Context, text string) (hazard.Label, error) {
	raw, err := c.generate(ctx, geminiRequest{
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: classifierSystemPrompt()}}},
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: text}}},
		},
	})
	if err != nil {
		return hazard.LabelUnknownGeneral, err
	}
	return hazard.Normalize(raw), nil
}

// ─── SYNTHESIZER ──────────────────────────────────────────────────────────────

// ShortGuidance generates numbered safety steps without document context.
func (c *geminiClient) ShortGuidance(ctx context.Context, text string, label hazard.Label) (string, error) {
	userPrompt := fmt.Sprintf(
		"User description:\n%q\n\nHazard: %s\n\n"+
			"Give clear, actionable steps for the next minutes and hours.\n"+
			"Do NOT give medical or legal advice.\n",
		text, label,
	)

	reply, err := c.generate(ctx, geminiRequest{
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: shortGuidanceSystemPrompt}}},
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: userPrompt}}},
		},
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(reply) == "" {
		return "", fmt.Errorf("ai: empty guidance text")
	}
	return strings.TrimSpace(reply), nil
}

// DocumentGuidance generates longer guidance grounded in the attached
// reference documents.
func (c *geminiClient) DocumentGuidance(ctx context.Context, text string, label hazard.Label, guideKey string, docs []Document) (string, error) {
	if len(docs) == 0 {
		return "", fmt.Errorf("ai: document guidance requires at least one document")
	}

	userPrompt := fmt.Sprintf(
		"User description:\n%q\n\nHazard: %s\n\nGuide key: %s\n\n"+
			"Using ONLY the attached guide, summarize the most relevant steps and tips.",
		text, label, guideKey,
	)

	parts := []geminiPart{{Text: userPrompt}}
	for _, doc := range docs {
		parts = append(parts, geminiPart{
			FileData: &geminiFileData{FileURI: doc.FileURI, MimeType: doc.MimeType},
		})
	}

	reply, err := c.generate(ctx, geminiRequest{
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: documentGuidanceSystemPrompt}}},
		Contents: []geminiContent{
			{Role: "user", Parts: parts},
		},
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(reply) == "" {
		return "", fmt.Errorf("ai: empty document guidance text")
	}
	return strings.TrimSpace(reply), nil
}

// ─── TRANSPORT ────────────────────────────────────────────────────────────────

// generate sends one generateContent request and returns the text of the
// first candidate part.
func (c *geminiClient) generate(ctx context.Context, reqBody geminiRequest) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("ai: rate limiter: %w", err)
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("ai: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("ai: build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ai: http request: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1 MB cap
	if err != nil {
		return "", fmt.Errorf("ai: read response body: %w", err)
	}

	var parsed geminiResponse
	if err := json.Unmarshal(respBytes, &parsed); err != nil {
		return "", fmt.Errorf("ai: unmarshal response: %w", err)
	}

	if parsed.Error != nil {
		return "", fmt.Errorf("ai: API error %s: %s", parsed.Error.Status, parsed.Error.Message)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ai: unexpected status %d: %.200s", resp.StatusCode, string(respBytes))
	}

	for _, cand := range parsed.Candidates {
		for _, part := range cand.Content.Parts {
			if part.Text != "" {
				return part.Text, nil
			}
		}
	}

	return "", fmt.Errorf("ai: no text content in response")
}
