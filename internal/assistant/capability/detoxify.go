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

// DetoxifyScorer calls a detoxify model server for toxicity probabilities.
type DetoxifyScorer struct {
	baseURL string
	client  *http.Client
}

func NewDetoxifyScorer(baseURL string, timeout time.Duration) *DetoxifyScorer {
	if baseURL == "" {
		baseURL = "http://localhost:8085"
	}
	return &DetoxifyScorer{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type detoxifyRequest struct {
	Text string `json:"text"`
}

// detoxifyResponse carries the per-category probabilities; only the overall
// toxicity channel drives the gate.
type detoxifyResponse struct {
	Toxicity float64 `json:"toxicity"`
}

func (s *DetoxifyScorer) Score(ctx context.Context, text string) (float64, error) {
	body, err := json.Marshal(detoxifyRequest{Text: text})
	if err != nil {
		return 0, fmt.Errorf("marshal score request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("create score request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("call detoxify: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("detoxify returned status %d", resp.StatusCode)
	}

	var out detoxifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decode score response: %w", err)
	}
	return out.Toxicity, nil
}

var _ model.ToxicityScorer = (*DetoxifyScorer)(nil)
