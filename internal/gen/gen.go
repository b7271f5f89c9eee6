// Package gen talks to a Gemini-style generative endpoint to draft mnemonic
// cards. It is a black box to the rest of the app: a failed or rate-limited
// call surfaces a human-readable error and produces no card.
package gen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Errors surfaced to the user verbatim.
var (
	ErrQuotaExceeded = errors.New("daily AI quota exceeded, please try again later")
	ErrUnavailable   = errors.New("AI service is temporarily unavailable, please try again in a moment")
)

// systemInstruction asks for the strict 4-line mnemonic format: meaning,
// word with pronunciation, sound-alike keyword, memory story.
const systemInstruction = `You are an expert linguist and memory coach using the keyword mnemonic method for teaching Arabic vocabulary to Turkish speakers.
Given a word in Arabic or Turkish, output exactly 4 lines and nothing else:
1. The Turkish meaning only.
2. The Arabic word in Arabic script, followed by the Turkish pronunciation in parentheses.
3. A real, concrete, visualizable Turkish noun that sounds like the Arabic word, in uppercase.
4. A short, vivid Turkish sentence linking the meaning and the keyword.`

// Mnemonic is the successful output shape of a generation call.
type Mnemonic struct {
	Meaning string
	Word    string
	Keyword string
	Story   string
}

// Client calls the generation endpoint. A client without an API key is
// disabled; the create flow hides generation in that case.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewClient builds a client for the given endpoint. baseURL falls back to
// the public Gemini API.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// Enabled reports whether an API key is configured.
func (c *Client) Enabled() bool { return c.apiKey != "" }

type generateRequest struct {
	Contents          []content         `json:"contents"`
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type generationConfig struct {
	Temperature float64 `json:"temperature"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// GenerateMnemonic asks the model for a 4-line mnemonic for the given word.
func (c *Client) GenerateMnemonic(ctx context.Context, word, model string) (Mnemonic, error) {
	req := generateRequest{
		Contents:          []content{{Parts: []part{{Text: "User Input: " + word}}}},
		SystemInstruction: &content{Parts: []part{{Text: systemInstruction}}},
		GenerationConfig:  &generationConfig{Temperature: 0.7},
	}
	resp, err := c.generate(ctx, model, req)
	if err != nil {
		return Mnemonic{}, err
	}

	text := firstText(resp)
	var lines []string
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) < 4 {
		return Mnemonic{}, errors.New("the AI returned an incomplete card, please try again")
	}
	return Mnemonic{
		Meaning: lines[0],
		Word:    lines[1],
		Keyword: lines[2],
		Story:   lines[3],
	}, nil
}

// GenerateImage asks the model to draw the mnemonic scene and returns the
// image as a data URL suitable for storing as a card's image reference.
func (c *Client) GenerateImage(ctx context.Context, prompt, model string) (string, error) {
	req := generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	}
	resp, err := c.generate(ctx, model, req)
	if err != nil {
		return "", err
	}

	for _, cand := range resp.Candidates {
		for _, p := range cand.Content.Parts {
			if p.InlineData != nil {
				return fmt.Sprintf("data:%s;base64,%s", p.InlineData.MimeType, p.InlineData.Data), nil
			}
		}
	}
	return "", errors.New("no image was generated, please try again")
}

func (c *Client) generate(ctx context.Context, model string, payload generateRequest) (*generateResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode generation request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.baseURL, model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build generation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call generation endpoint: %w", err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read generation response: %w", err)
	}

	var resp generateResponse
	// Tolerate non-JSON error bodies; status mapping below still applies.
	_ = json.Unmarshal(raw, &resp)

	if err := mapStatus(httpResp.StatusCode, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// mapStatus turns transport failures into the messages the UI shows.
func mapStatus(status int, resp *generateResponse) error {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrQuotaExceeded
	case status >= 500:
		return ErrUnavailable
	case status >= 400:
		if resp.Error != nil {
			if resp.Error.Status == "RESOURCE_EXHAUSTED" {
				return ErrQuotaExceeded
			}
			return fmt.Errorf("generation failed: %s", resp.Error.Message)
		}
		return fmt.Errorf("generation failed with status %d", status)
	default:
		return nil
	}
}

func firstText(resp *generateResponse) string {
	for _, cand := range resp.Candidates {
		for _, p := range cand.Content.Parts {
			if p.Text != "" {
				return p.Text
			}
		}
	}
	return ""
}
