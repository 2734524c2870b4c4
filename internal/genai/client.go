// Package genai is a REST client for the Gemini generateContent API.
package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/bekovrafik/DreamColor/internal/errs"
	"github.com/bekovrafik/DreamColor/internal/model"
	"github.com/bekovrafik/DreamColor/internal/service"
)

// Default endpoint and models.
const (
	DefaultBaseURL     = "https://generativelanguage.googleapis.com/v1beta"
	DefaultTextModel   = "gemini-3-flash-preview"
	DefaultImageModel  = "gemini-3-pro-image-preview"
	DefaultSpeechModel = "gemini-2.5-flash-preview-tts"
	DefaultVoice       = "Kore"
	DefaultImageSize   = "1K"
)

const maxErrorBody = 4096

// KeySource supplies the API key for each request.
type KeySource interface {
	APIKey(ctx context.Context) (string, error)
}

// Config configures the client. Empty fields take the defaults above.
type Config struct {
	BaseURL     string
	TextModel   string
	ImageModel  string
	SpeechModel string
	Voice       string
	ImageSize   string
	HTTPClient  *http.Client
}

// Client implements the text, image and speech collaborators.
type Client struct {
	cfg  Config
	keys KeySource
}

var (
	_ service.TextGenerator     = (*Client)(nil)
	_ service.ImageGenerator    = (*Client)(nil)
	_ service.SpeechSynthesizer = (*Client)(nil)
)

// New builds a client.
func New(cfg Config, keys KeySource) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.TextModel == "" {
		cfg.TextModel = DefaultTextModel
	}
	if cfg.ImageModel == "" {
		cfg.ImageModel = DefaultImageModel
	}
	if cfg.SpeechModel == "" {
		cfg.SpeechModel = DefaultSpeechModel
	}
	if cfg.Voice == "" {
		cfg.Voice = DefaultVoice
	}
	if cfg.ImageSize == "" {
		cfg.ImageSize = DefaultImageSize
	}
	return &Client{cfg: cfg, keys: keys}
}

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode int
	Status     string // e.g. PERMISSION_DENIED
	Message    string
}

func (e *APIError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("genai: status %d %s: %s", e.StatusCode, e.Status, e.Message)
	}
	return fmt.Sprintf("genai: status %d: %s", e.StatusCode, e.Message)
}

// IsPermissionDenied reports a rejected or unpaid key.
func (e *APIError) IsPermissionDenied() bool {
	return e.StatusCode == http.StatusForbidden || e.Status == "PERMISSION_DENIED" ||
		strings.Contains(e.Message, "PERMISSION_DENIED")
}

// Is lets errors.Is(err, errs.ErrPermissionDenied) match denials.
func (e *APIError) Is(target error) bool {
	return target == errs.ErrPermissionDenied && e.IsPermissionDenied()
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

// Generate continues a chat under a system instruction.
func (c *Client) Generate(ctx context.Context, systemPrompt string, history []model.ConversationTurn) (string, error) {
	if len(history) == 0 {
		return "", fmt.Errorf("%w: empty history", errs.ErrValidation)
	}
	contents := make([]content, 0, len(history))
	for _, t := range history {
		role := "user"
		if t.Role == model.RoleAssistant {
			role = "model"
		}
		contents = append(contents, content{Role: role, Parts: []part{{Text: t.Text}}})
	}
	body := map[string]any{"contents": contents}
	if systemPrompt != "" {
		body["systemInstruction"] = content{Parts: []part{{Text: systemPrompt}}}
	}
	res, err := c.call(ctx, c.cfg.TextModel, body)
	if err != nil {
		return "", err
	}
	return joinText(res), nil
}

// GenerateJSON requests a JSON array of strings and returns the raw text.
func (c *Client) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	body := map[string]any{
		"contents": []content{{Role: "user", Parts: []part{{Text: prompt}}}},
		"generationConfig": map[string]any{
			"responseMimeType": "application/json",
			"responseSchema": map[string]any{
				"type":  "ARRAY",
				"items": map[string]any{"type": "STRING"},
			},
		},
	}
	res, err := c.call(ctx, c.cfg.TextModel, body)
	if err != nil {
		return "", err
	}
	return joinText(res), nil
}

// GenerateImage returns every inline image of the first candidate.
func (c *Client) GenerateImage(ctx context.Context, prompt string, ref *model.Image) ([]model.Image, error) {
	parts := []part{{Text: prompt}}
	if ref != nil && !ref.Empty() {
		parts = append(parts, part{InlineData: &inlineData{
			MIMEType: ref.MIMEType,
			Data:     base64.StdEncoding.EncodeToString(ref.Data),
		}})
	}
	body := map[string]any{
		"contents":         []content{{Role: "user", Parts: parts}},
		"generationConfig": map[string]any{"imageConfig": map[string]any{"imageSize": c.cfg.ImageSize}},
	}
	res, err := c.call(ctx, c.cfg.ImageModel, body)
	if err != nil {
		return nil, err
	}
	var out []model.Image
	for _, p := range res.Get("candidates.0.content.parts").Array() {
		data := p.Get("inlineData.data").String()
		if data == "" {
			continue
		}
		raw, err := base64.StdEncoding.DecodeString(data)
		if err != nil {
			return nil, fmt.Errorf("genai: decode image: %w", err)
		}
		mime := p.Get("inlineData.mimeType").String()
		if mime == "" {
			mime = "image/png"
		}
		out = append(out, model.Image{Data: raw, MIMEType: mime})
	}
	return out, nil
}

// Synthesize returns PCM16 mono 24 kHz samples for text.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	body := map[string]any{
		"contents": []content{{Parts: []part{{Text: text}}}},
		"generationConfig": map[string]any{
			"responseModalities": []string{"AUDIO"},
			"speechConfig": map[string]any{
				"voiceConfig": map[string]any{
					"prebuiltVoiceConfig": map[string]any{"voiceName": c.cfg.Voice},
				},
			},
		},
	}
	res, err := c.call(ctx, c.cfg.SpeechModel, body)
	if err != nil {
		return nil, err
	}
	data := res.Get("candidates.0.content.parts.0.inlineData.data").String()
	if data == "" {
		return nil, errors.New("genai: response carried no audio")
	}
	pcm, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("genai: decode audio: %w", err)
	}
	return pcm, nil
}

func (c *Client) call(ctx context.Context, modelName string, body any) (gjson.Result, error) {
	key, err := c.keys.APIKey(ctx)
	if err != nil {
		if errors.Is(err, errs.ErrNoCredential) {
			return gjson.Result{}, fmt.Errorf("genai: %w: %w", errs.ErrPermissionDenied, err)
		}
		return gjson.Result{}, fmt.Errorf("genai: api key: %w", err)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("genai: marshal request: %w", err)
	}
	url := fmt.Sprintf("%s/models/%s:generateContent", c.cfg.BaseURL, modelName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("genai: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	// the key travels only in this header and is never echoed in errors
	req.Header.Set("x-goog-api-key", key)

	res, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("genai: request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		apiErr := &APIError{StatusCode: res.StatusCode, Message: strings.TrimSpace(string(raw))}
		if gjson.ValidBytes(raw) {
			doc := gjson.ParseBytes(raw)
			if msg := doc.Get("error.message").String(); msg != "" {
				apiErr.Message = msg
			}
			apiErr.Status = doc.Get("error.status").String()
		}
		return gjson.Result{}, apiErr
	}

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("genai: read response: %w", err)
	}
	if !gjson.ValidBytes(raw) {
		return gjson.Result{}, errors.New("genai: response is not JSON")
	}
	return gjson.ParseBytes(raw), nil
}

func joinText(res gjson.Result) string {
	var sb strings.Builder
	for _, p := range res.Get("candidates.0.content.parts").Array() {
		sb.WriteString(p.Get("text").String())
	}
	return sb.String()
}
