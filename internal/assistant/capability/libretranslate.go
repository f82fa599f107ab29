package capability

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/campusconnect-poc/server/internal/assistant/model"
)

// LibreTranslateClient adapts a LibreTranslate instance as both the language
// detector and the translator. Both stages treat its failures as advisory.
type LibreTranslateClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewLibreTranslateClient(baseURL, apiKey string, timeout time.Duration) *LibreTranslateClient {
	if baseURL == "" {
		baseURL = "http://localhost:5000"
	}
	return &LibreTranslateClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type detectRequest struct {
	Q      string `json:"q"`
	APIKey string `json:"api_key,omitempty"`
}

type detectCandidate struct {
	Language   string  `json:"language"`
	Confidence float64 `json:"confidence"`
}

// Detect returns the most confident language code for the text.
func (c *LibreTranslateClient) Detect(ctx context.Context, text string) (string, error) {
	var candidates []detectCandidate
	if err := c.post(ctx, "/detect", detectRequest{Q: text, APIKey: c.apiKey}, &candidates); err != nil {
		return "", err
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("language detector returned no candidates")
	}

	best := candidates[0]
	for _, cand := range candidates[1:] {
		if cand.Confidence > best.Confidence {
			best = cand
		}
	}
	return best.Language, nil
}

type translateRequest struct {
	Q      string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	APIKey string `json:"api_key,omitempty"`
}

type translateResponse struct {
	TranslatedText string `json:"translatedText"`
}

// Translate converts text from source to target language.
func (c *LibreTranslateClient) Translate(ctx context.Context, text, source, target string) (string, error) {
	var out translateResponse
	err := c.post(ctx, "/translate", translateRequest{
		Q:      text,
		Source: source,
		Target: target,
		APIKey: c.apiKey,
	}, &out)
	if err != nil {
		return "", err
	}
	if out.TranslatedText == "" {
		return "", fmt.Errorf("translator returned empty text")
	}
	return out.TranslatedText, nil
}

func (c *LibreTranslateClient) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("call libretranslate %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("libretranslate %s returned status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

var (
	_ model.LanguageDetector = (*LibreTranslateClient)(nil)
	_ model.Translator       = (*LibreTranslateClient)(nil)
)
