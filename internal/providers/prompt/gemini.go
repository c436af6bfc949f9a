package prompt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type GeminiOptions struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

// GeminiEnhancer rewrites instructions through the Gemini generateContent
// text API. Failures are reported to the caller, which then proceeds with
// the user's prompt verbatim.
type GeminiEnhancer struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

const geminiDefaultTimeout = 15 * time.Second

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

func NewGeminiEnhancer(opts GeminiOptions) (*GeminiEnhancer, error) {
	if opts.APIKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "gemini-2.5-flash"
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: geminiDefaultTimeout}
	}
	return &GeminiEnhancer{
		apiKey:  opts.APIKey,
		model:   model,
		baseURL: baseURL,
		client:  client,
	}, nil
}

func (g *GeminiEnhancer) Enhance(ctx context.Context, userPrompt string) (string, error) {
	payload := geminiRequest{
		Contents: []geminiContent{{
			Role: "user",
			Parts: []geminiPart{{
				Text: buildEnhanceInstruction(userPrompt),
			}},
		}},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", g.wrapErr(err)
	}
	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, url.PathEscape(g.model), url.QueryEscape(g.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", g.wrapErr(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", g.wrapErr(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", g.wrapErr(fmt.Errorf("status %d", resp.StatusCode))
	}

	var out geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", g.wrapErr(err)
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", g.wrapErr(errors.New("no candidates returned"))
	}
	text := strings.TrimSpace(out.Candidates[0].Content.Parts[0].Text)
	if text == "" {
		return "", g.wrapErr(errors.New("empty text returned"))
	}
	return text, nil
}

func (g *GeminiEnhancer) wrapErr(cause error) error {
	return fmt.Errorf("%s: enhance: %w", geminiProviderName, cause)
}

// buildEnhanceInstruction is the meta-prompt asking the text model to rewrite
// the user's editing instruction.
func buildEnhanceInstruction(userPrompt string) string {
	return fmt.Sprintf(`You are a professional real estate photo editing prompt engineer.

A user has written this image editing instruction:
%q

Your job is to rewrite and enhance this into a highly detailed, professional prompt for an AI image editor.

RULES:
- Keep the user's original intent exactly — do NOT change what they want
- Add hyper-specific details, professional photography language
- Use step-by-step structure for complex edits
- Use semantic positive descriptions instead of negatives (e.g. "clear blue sky" not "no clouds")
- Add cinematic/photographic terms where relevant (e.g. "soft natural lighting", "wide-angle perspective")
- Keep it focused on real estate photography best practices
- Return ONLY the enhanced prompt, no explanations or preamble`, userPrompt)
}

var _ Enhancer = (*GeminiEnhancer)(nil)
