// Package recognition wraps the vision model that reads credential documents
// from webcam captures.
package recognition

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

// Sentinel is the exact reply the prompt instructs the model to produce when
// the image does not show a recognizable credential.
const Sentinel = "NOT A VALID CREDENTIAL"

const extractionPrompt = `Extract information as json only from this image.
Return json with:
- identification
- firstname
- surname
- birthDate (as mm/dd/yyyy)
- gender? (Male, Female, Unknown - if available:
  - Note that the last letter in the identification, if available, represents gender).

Match fields appropriately even if names differ slightly.
If the image does not contain an identification document, reply with exactly:
NOT A VALID CREDENTIAL
`

// Failure kinds. ErrNotConfigured is raised before any network call.
var (
	ErrNotConfigured        = errors.New("recognition api key not configured")
	ErrInvalidDocument      = errors.New("image is not a valid credential")
	ErrIncompleteExtraction = errors.New("recognition reply missing required fields")
)

// Fields is the structured partial record extracted from a credential.
// BirthDate is normalized to ISO form.
type Fields struct {
	Identification string `json:"identification"`
	Firstname      string `json:"firstname"`
	Surname        string `json:"surname"`
	BirthDate      string `json:"birthDate"`
	Gender         string `json:"gender"`
}

// Client calls an OpenAI-compatible chat-completions endpoint with vision
// input. A single call is made per Extract; no retries.
type Client struct {
	BaseURL string
	APIKey  string
	Model   string
	HTTP    *http.Client
}

// New creates a client with a configurable timeout.
func New(baseURL, apiKey, model string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Model:   model,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// Extract sends the image to the model and classifies the reply.
func (c *Client) Extract(ctx context.Context, imageData string) (Fields, error) {
	if c.APIKey == "" {
		return Fields{}, ErrNotConfigured
	}
	if imageData == "" {
		return Fields{}, fmt.Errorf("image data required")
	}

	payload := map[string]any{
		"model": c.Model,
		"messages": []map[string]any{
			{
				"role": "user",
				"content": []map[string]any{
					{"type": "text", "text": extractionPrompt},
					{
						"type": "image_url",
						"image_url": map[string]any{
							"url":    imageData,
							"detail": "low",
						},
					},
				},
			},
		},
		"max_tokens": 300,
	}

	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Fields{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return Fields{}, fmt.Errorf("recognition request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		raw, _ := io.ReadAll(resp.Body)
		msg := string(raw)
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Message != "" {
			msg = apiErr.Error.Message
		}
		return Fields{}, fmt.Errorf("recognition service error %s: %s", resp.Status, msg)
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Fields{}, fmt.Errorf("failed to decode recognition response: %w", err)
	}
	if len(out.Choices) == 0 {
		return Fields{}, fmt.Errorf("%w: empty reply", ErrIncompleteExtraction)
	}

	return Classify(out.Choices[0].Message.Content)
}

// Classify turns the model's free-text reply into a typed result: extracted
// fields, the invalid-document sentinel, or an incomplete-extraction failure.
func Classify(message string) (Fields, error) {
	cleaned := stripFences(message)
	if strings.EqualFold(cleaned, Sentinel) {
		return Fields{}, ErrInvalidDocument
	}

	var fields Fields
	if err := json.Unmarshal([]byte(cleaned), &fields); err != nil {
		return Fields{}, fmt.Errorf("%w: %v", ErrIncompleteExtraction, err)
	}
	for name, val := range map[string]string{
		"identification": fields.Identification,
		"firstname":      fields.Firstname,
		"surname":        fields.Surname,
		"birthDate":      fields.BirthDate,
	} {
		if val == "" {
			return Fields{}, fmt.Errorf("%w: %s", ErrIncompleteExtraction, name)
		}
	}

	fields.BirthDate = normalizeBirthDate(fields.BirthDate)
	return fields, nil
}

// stripFences removes a ```json ... ``` wrapper, if present.
func stripFences(message string) string {
	s := strings.TrimSpace(message)
	if idx := strings.Index(s, "```"); idx >= 0 {
		s = s[idx+3:]
		s = strings.TrimPrefix(s, "json")
		if end := strings.LastIndex(s, "```"); end >= 0 {
			s = s[:end]
		}
	}
	return strings.TrimSpace(s)
}

// normalizeBirthDate converts the prompt's mm/dd/yyyy form to ISO. Dates that
// parse under neither layout pass through untouched.
func normalizeBirthDate(raw string) string {
	for _, layout := range []string{"01/02/2006", "1/2/2006", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return raw
}
